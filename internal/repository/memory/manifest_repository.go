package memory

import (
	"context"
	"sync"

	"writeup-rag-be/internal/entity"
	"writeup-rag-be/internal/repository/contract"
	"writeup-rag-be/internal/repository/specification"
)

// ManifestRepository is an in-memory contract.ManifestRepository used by
// tests and single-process runs that do not need postgres. It honours the
// same compare-and-swap semantics as the gorm implementation.
type ManifestRepository struct {
	mu    sync.RWMutex
	items map[string]*entity.SourceItem // key: runId + "\x00" + sourceKey
}

func NewManifestRepository() *ManifestRepository {
	return &ManifestRepository{
		items: make(map[string]*entity.SourceItem),
	}
}

func key(runId, sourceKey string) string {
	return runId + "\x00" + sourceKey
}

func (r *ManifestRepository) CreateBulk(_ context.Context, items []*entity.SourceItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		cp := *item
		r.items[key(item.RunId, item.SourceKey)] = &cp
	}
	return nil
}

func (r *ManifestRepository) FindOne(_ context.Context, specs ...specification.Specification) (*entity.SourceItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, item := range r.items {
		if matches(item, specs) {
			cp := *item
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *ManifestRepository) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.SourceItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.SourceItem
	for _, item := range r.items {
		if matches(item, specs) {
			cp := *item
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *ManifestRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil {
		return 0, err
	}
	return int64(len(all)), nil
}

func (r *ManifestRepository) AdvanceStage(_ context.Context, runId, sourceKey string, upd contract.StageUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[key(runId, sourceKey)]
	if !ok {
		return entity.ErrSourceNotFound
	}
	if item.Stage != upd.From {
		return entity.ErrDuplicateKey
	}
	item.Stage = upd.To
	if upd.Artifacts.RawPath != "" {
		item.RawPath = upd.Artifacts.RawPath
	}
	if upd.Artifacts.CleanPath != "" {
		item.CleanPath = upd.Artifacts.CleanPath
	}
	if upd.Reason != "" {
		item.ErrorReason = upd.Reason
	}
	return nil
}

// matches interprets the subset of specifications the manifest queries use.
// The memory store has no query engine, so it pattern-matches on the
// specification types directly.
func matches(item *entity.SourceItem, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByRun:
			if item.RunId != s.RunId {
				return false
			}
		case specification.BySourceKey:
			if item.SourceKey != s.Key {
				return false
			}
		case specification.ByStage:
			if string(item.Stage) != s.Stage {
				return false
			}
		}
	}
	return true
}
