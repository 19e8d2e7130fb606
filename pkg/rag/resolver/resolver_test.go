package resolver

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"writeup-rag-be/internal/entity"
	"writeup-rag-be/internal/repository/contract"
	"writeup-rag-be/internal/repository/memory"
)

func newResolver(t *testing.T, docs ...*entity.Writeup) *Resolver {
	t.Helper()
	repo := memory.NewWriteupRepository()
	for _, doc := range docs {
		require.NoError(t, repo.Upsert(context.Background(), doc))
	}
	return New(repo, log.New(io.Discard, "", 0))
}

func TestResolveBestDistanceWinsAcrossCorpora(t *testing.T) {
	r := newResolver(t,
		&entity.Writeup{Id: "docA", TaskName: "a"},
		&entity.Writeup{Id: "docB", TaskName: "b"},
		&entity.Writeup{Id: "docC", TaskName: "c"},
	)

	summaryHits := []contract.Hit{
		{Id: "docA", Distance: 0.1},
		{Id: "docB", Distance: 0.3},
	}
	detailedHits := []contract.Hit{
		{Id: "docB_0", Distance: 0.05},
		{Id: "docC_2", Distance: 0.2},
	}

	resolved, err := r.Resolve(context.Background(), summaryHits, detailedHits)
	require.NoError(t, err)
	require.Len(t, resolved, 3)

	assert.Equal(t, "docB", resolved[0].Writeup.Id)
	assert.Equal(t, 0.05, resolved[0].Distance)
	assert.Equal(t, "docA", resolved[1].Writeup.Id)
	assert.Equal(t, 0.1, resolved[1].Distance)
	assert.Equal(t, "docC", resolved[2].Writeup.Id)
	assert.Equal(t, 0.2, resolved[2].Distance)

	for i, doc := range resolved {
		assert.Equal(t, i+1, doc.Rank)
	}
}

func TestResolveDistanceTieBreaksById(t *testing.T) {
	r := newResolver(t,
		&entity.Writeup{Id: "200"},
		&entity.Writeup{Id: "100"},
	)

	resolved, err := r.Resolve(context.Background(), []contract.Hit{
		{Id: "200", Distance: 0.4},
		{Id: "100", Distance: 0.4},
	}, nil)
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, "100", resolved[0].Writeup.Id)
	assert.Equal(t, "200", resolved[1].Writeup.Id)
}

func TestResolveDropsMissesAndMalformedIds(t *testing.T) {
	r := newResolver(t, &entity.Writeup{Id: "docA"})

	resolved, err := r.Resolve(context.Background(),
		[]contract.Hit{
			{Id: "docA", Distance: 0.2},
			{Id: "ghost", Distance: 0.1},
		},
		[]contract.Hit{
			{Id: "not-a-chunk-id", Distance: 0.01},
		},
	)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "docA", resolved[0].Writeup.Id)
	assert.Equal(t, 1, resolved[0].Rank)
}

func TestResolveEmptyHits(t *testing.T) {
	r := newResolver(t)

	resolved, err := r.Resolve(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, resolved)
}

func TestResolveCachesFetchedDocuments(t *testing.T) {
	repo := memory.NewWriteupRepository()
	require.NoError(t, repo.Upsert(context.Background(), &entity.Writeup{Id: "docA", Summary: "v1"}))
	r := New(repo, log.New(io.Discard, "", 0))

	hits := []contract.Hit{{Id: "docA", Distance: 0.1}}
	first, err := r.Resolve(context.Background(), hits, nil)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A repository update is not visible until the cache entry expires.
	require.NoError(t, repo.Upsert(context.Background(), &entity.Writeup{Id: "docA", Summary: "v2"}))
	second, err := r.Resolve(context.Background(), hits, nil)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "v1", second[0].Writeup.Summary)
}
