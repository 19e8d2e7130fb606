package memory

import (
	"context"

	"writeup-rag-be/internal/entity"

	"github.com/patrickmn/go-cache"
)

// WriteupRepository is an in-memory document store used by tests. Entries
// never expire; go-cache just gives us a concurrency-safe keyed store.
type WriteupRepository struct {
	cache *cache.Cache
}

func NewWriteupRepository() *WriteupRepository {
	return &WriteupRepository{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (r *WriteupRepository) Upsert(_ context.Context, w *entity.Writeup) error {
	cp := *w
	r.cache.Set(w.Id, &cp, cache.NoExpiration)
	return nil
}

func (r *WriteupRepository) FetchMany(_ context.Context, ids []string) ([]*entity.Writeup, error) {
	var out []*entity.Writeup
	for _, id := range ids {
		if x, found := r.cache.Get(id); found {
			cp := *(x.(*entity.Writeup))
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *WriteupRepository) ExistingIds(_ context.Context) ([]string, error) {
	items := r.cache.Items()
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	return ids, nil
}
