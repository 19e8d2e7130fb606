package manifest

import (
	"context"
	"fmt"
	"sync"

	"writeup-rag-be/internal/entity"
	"writeup-rag-be/internal/repository/contract"
	"writeup-rag-be/internal/repository/specification"
	"writeup-rag-be/internal/repository/unitofwork"
)

// Store is the per-run manifest state machine: the single source of truth for
// which source locations have reached which pipeline stage. It has an
// explicit lifecycle (Open at run start, one flush per transition, Close at
// run end) instead of being an ambient file touched from every stage.
//
// Concurrency contract: writes to the same source key are serialized through
// a per-key mutex; items with different keys advance in parallel without
// coordination. Every successful transition is persisted before Advance
// returns, so a crash mid-run leaves a consistent, resumable manifest.
type Store struct {
	runId      string
	uowFactory unitofwork.RepositoryFactory

	mu    sync.RWMutex
	items map[string]*entity.SourceItem
	locks map[string]*sync.Mutex
}

// Open loads (or starts) the manifest for runId. Existing rows from an
// interrupted run are reloaded so completed work is skipped.
func Open(ctx context.Context, runId string, uowFactory unitofwork.RepositoryFactory) (*Store, error) {
	s := &Store{
		runId:      runId,
		uowFactory: uowFactory,
		items:      make(map[string]*entity.SourceItem),
		locks:      make(map[string]*sync.Mutex),
	}

	uow := uowFactory.NewUnitOfWork(ctx)
	existing, err := uow.ManifestRepository().FindAll(ctx, specification.ByRun{RunId: runId})
	if err != nil {
		return nil, fmt.Errorf("load manifest for run %s: %w", runId, err)
	}
	for _, item := range existing {
		s.items[item.SourceKey] = item
	}
	return s, nil
}

// Register adds newly discovered SourceItems. Keys already present in the
// manifest (a resumed run) are left untouched; only genuinely new items are
// persisted at the discovered stage.
func (s *Store) Register(ctx context.Context, items []*entity.SourceItem) error {
	s.mu.Lock()
	var fresh []*entity.SourceItem
	for _, item := range items {
		if _, ok := s.items[item.SourceKey]; ok {
			continue
		}
		item.RunId = s.runId
		item.Stage = entity.StageDiscovered
		s.items[item.SourceKey] = item
		fresh = append(fresh, item)
	}
	s.mu.Unlock()

	if len(fresh) == 0 {
		return nil
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.ManifestRepository().CreateBulk(ctx, fresh)
}

// Advance moves sourceKey to next with the produced artifacts. Calling it for
// a stage the item already passed is a no-op; any other non-successor stage
// is an entity.ErrInvalidTransition.
func (s *Store) Advance(ctx context.Context, sourceKey string, next entity.Stage, artifacts entity.ArtifactRefs) error {
	lock := s.keyLock(sourceKey)
	lock.Lock()
	defer lock.Unlock()

	item, err := s.get(sourceKey)
	if err != nil {
		return err
	}
	if item.Stage.AtLeast(next) {
		// Idempotency: an earlier run (or a retried stage) already got here.
		return nil
	}
	if !item.Stage.CanAdvanceTo(next) {
		return fmt.Errorf("%w: %s -> %s for %s", entity.ErrInvalidTransition, item.Stage, next, sourceKey)
	}

	if err := s.flush(ctx, sourceKey, contract.StageUpdate{
		From:      item.Stage,
		To:        next,
		Artifacts: artifacts,
	}); err != nil {
		return err
	}

	s.mu.Lock()
	item.Stage = next
	if artifacts.RawPath != "" {
		item.RawPath = artifacts.RawPath
	}
	if artifacts.CleanPath != "" {
		item.CleanPath = artifacts.CleanPath
	}
	s.mu.Unlock()
	return nil
}

// Reject marks the item rejected_low_quality. Terminal for this run but not
// destructive: the row stays inspectable and may be retried in a later run.
func (s *Store) Reject(ctx context.Context, sourceKey, reason string) error {
	return s.terminate(ctx, sourceKey, entity.StageRejected, reason)
}

// Fail marks the item failed after adapter retries were exhausted.
func (s *Store) Fail(ctx context.Context, sourceKey, reason string) error {
	return s.terminate(ctx, sourceKey, entity.StageFailed, reason)
}

func (s *Store) terminate(ctx context.Context, sourceKey string, to entity.Stage, reason string) error {
	lock := s.keyLock(sourceKey)
	lock.Lock()
	defer lock.Unlock()

	item, err := s.get(sourceKey)
	if err != nil {
		return err
	}
	if item.Stage.Terminal() {
		return nil
	}

	if err := s.flush(ctx, sourceKey, contract.StageUpdate{
		From:   item.Stage,
		To:     to,
		Reason: reason,
	}); err != nil {
		return err
	}

	s.mu.Lock()
	item.Stage = to
	item.ErrorReason = reason
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the item for sourceKey, or nil if unknown.
func (s *Store) Get(sourceKey string) *entity.SourceItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[sourceKey]
	if !ok {
		return nil
	}
	cp := *item
	return &cp
}

// Items returns copies of every tracked item.
func (s *Store) Items() []*entity.SourceItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.SourceItem, 0, len(s.items))
	for _, item := range s.items {
		cp := *item
		out = append(out, &cp)
	}
	return out
}

// Summary counts items per stage, the run's success/failure report.
func (s *Store) Summary() map[entity.Stage]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[entity.Stage]int)
	for _, item := range s.items {
		out[item.Stage]++
	}
	return out
}

// RunId returns the run this store tracks.
func (s *Store) RunId() string {
	return s.runId
}

// Close releases the store. Transitions are flushed eagerly, so there is
// nothing pending; Close exists to make the lifecycle explicit at call sites.
func (s *Store) Close() error {
	return nil
}

func (s *Store) get(sourceKey string) (*entity.SourceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[sourceKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrSourceNotFound, sourceKey)
	}
	return item, nil
}

func (s *Store) flush(ctx context.Context, sourceKey string, upd contract.StageUpdate) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.ManifestRepository().AdvanceStage(ctx, s.runId, sourceKey, upd)
}

func (s *Store) keyLock(sourceKey string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sourceKey]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sourceKey] = lock
	}
	return lock
}
