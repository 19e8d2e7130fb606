package manifest_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"writeup-rag-be/internal/entity"
	"writeup-rag-be/internal/manifest"
	"writeup-rag-be/internal/repository/memory"
)

func openStore(t *testing.T) (*manifest.Store, *memory.Factory) {
	t.Helper()
	factory := memory.NewFactory()
	store, err := manifest.Open(context.Background(), "run_20260826_120000", factory)
	require.NoError(t, err)
	return store, factory
}

func register(t *testing.T, store *manifest.Store, keys ...string) {
	t.Helper()
	items := make([]*entity.SourceItem, 0, len(keys))
	for _, k := range keys {
		items = append(items, &entity.SourceItem{SourceKey: k})
	}
	require.NoError(t, store.Register(context.Background(), items))
}

func TestStoreHappyPath(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t)
	register(t, store, "ctftime:8823341")

	require.NoError(t, store.Advance(ctx, "ctftime:8823341", entity.StageFetched, entity.ArtifactRefs{RawPath: "raw/8823341.html"}))
	require.NoError(t, store.Advance(ctx, "ctftime:8823341", entity.StageCleaned, entity.ArtifactRefs{CleanPath: "clean/8823341.txt"}))
	require.NoError(t, store.Advance(ctx, "ctftime:8823341", entity.StageEnriched, entity.ArtifactRefs{}))
	require.NoError(t, store.Advance(ctx, "ctftime:8823341", entity.StageStored, entity.ArtifactRefs{}))

	item := store.Get("ctftime:8823341")
	require.NotNil(t, item)
	assert.Equal(t, entity.StageStored, item.Stage)
	assert.Equal(t, "raw/8823341.html", item.RawPath)
	assert.Equal(t, "clean/8823341.txt", item.CleanPath)
	assert.Equal(t, map[entity.Stage]int{entity.StageStored: 1}, store.Summary())
}

func TestStoreAdvanceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t)
	register(t, store, "ctftime:100")

	require.NoError(t, store.Advance(ctx, "ctftime:100", entity.StageFetched, entity.ArtifactRefs{RawPath: "raw/100.html"}))
	require.NoError(t, store.Advance(ctx, "ctftime:100", entity.StageCleaned, entity.ArtifactRefs{CleanPath: "clean/100.txt"}))

	// Replaying an earlier transition must change nothing.
	require.NoError(t, store.Advance(ctx, "ctftime:100", entity.StageFetched, entity.ArtifactRefs{RawPath: "raw/other.html"}))

	item := store.Get("ctftime:100")
	assert.Equal(t, entity.StageCleaned, item.Stage)
	assert.Equal(t, "raw/100.html", item.RawPath)
}

func TestStoreRejectsStageSkips(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t)
	register(t, store, "ctftime:200")

	err := store.Advance(ctx, "ctftime:200", entity.StageEnriched, entity.ArtifactRefs{})
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)
	assert.Equal(t, entity.StageDiscovered, store.Get("ctftime:200").Stage)
}

func TestStoreUnknownKey(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t)

	err := store.Advance(ctx, "ctftime:missing", entity.StageFetched, entity.ArtifactRefs{})
	assert.ErrorIs(t, err, entity.ErrSourceNotFound)
}

func TestStoreTerminalBranches(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t)
	register(t, store, "ctftime:300", "ctftime:301")

	require.NoError(t, store.Advance(ctx, "ctftime:300", entity.StageFetched, entity.ArtifactRefs{}))
	require.NoError(t, store.Advance(ctx, "ctftime:300", entity.StageCleaned, entity.ArtifactRefs{}))
	require.NoError(t, store.Reject(ctx, "ctftime:300", "only 84 chars of text"))

	item := store.Get("ctftime:300")
	assert.Equal(t, entity.StageRejected, item.Stage)
	assert.Equal(t, "only 84 chars of text", item.ErrorReason)

	// Terminal items ignore further terminations and refuse advances.
	require.NoError(t, store.Fail(ctx, "ctftime:300", "late failure"))
	assert.Equal(t, entity.StageRejected, store.Get("ctftime:300").Stage)
	assert.ErrorIs(t, store.Advance(ctx, "ctftime:300", entity.StageEnriched, entity.ArtifactRefs{}), entity.ErrInvalidTransition)

	require.NoError(t, store.Fail(ctx, "ctftime:301", "fetch retries exhausted"))
	assert.Equal(t, entity.StageFailed, store.Get("ctftime:301").Stage)
}

func TestStoreResumesInterruptedRun(t *testing.T) {
	ctx := context.Background()
	store, factory := openStore(t)
	register(t, store, "ctftime:400", "ctftime:401")

	require.NoError(t, store.Advance(ctx, "ctftime:400", entity.StageFetched, entity.ArtifactRefs{RawPath: "raw/400.html"}))
	require.NoError(t, store.Close())

	// A second Open against the same storage sees the persisted stages.
	resumed, err := manifest.Open(ctx, store.RunId(), factory)
	require.NoError(t, err)

	register(t, resumed, "ctftime:400", "ctftime:401", "ctftime:402")
	assert.Len(t, resumed.Items(), 3)

	assert.Equal(t, entity.StageFetched, resumed.Get("ctftime:400").Stage)
	assert.Equal(t, "raw/400.html", resumed.Get("ctftime:400").RawPath)
	assert.Equal(t, entity.StageDiscovered, resumed.Get("ctftime:401").Stage)
	assert.Equal(t, entity.StageDiscovered, resumed.Get("ctftime:402").Stage)

	// Replaying the completed transition on the resumed store is a no-op.
	require.NoError(t, resumed.Advance(ctx, "ctftime:400", entity.StageFetched, entity.ArtifactRefs{}))
	assert.Equal(t, "raw/400.html", resumed.Get("ctftime:400").RawPath)
}

func TestStoreConcurrentAdvances(t *testing.T) {
	ctx := context.Background()
	store, _ := openStore(t)

	keys := []string{"ctftime:500", "ctftime:501", "ctftime:502", "ctftime:503"}
	register(t, store, keys...)

	var wg sync.WaitGroup
	for _, k := range keys {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			assert.NoError(t, store.Advance(ctx, k, entity.StageFetched, entity.ArtifactRefs{}))
			assert.NoError(t, store.Advance(ctx, k, entity.StageCleaned, entity.ArtifactRefs{}))
		}(k)
	}
	wg.Wait()

	assert.Equal(t, map[entity.Stage]int{entity.StageCleaned: len(keys)}, store.Summary())
}
