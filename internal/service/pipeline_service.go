package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"writeup-rag-be/internal/dto"
	"writeup-rag-be/internal/entity"
	"writeup-rag-be/internal/manifest"
	"writeup-rag-be/internal/pkg/logger"
	"writeup-rag-be/internal/repository/unitofwork"
	"writeup-rag-be/pkg/cleaner"
	"writeup-rag-be/pkg/ctftime"
	"writeup-rag-be/pkg/enrich"
	"writeup-rag-be/pkg/events"
	"writeup-rag-be/pkg/grouper"
	pktNats "writeup-rag-be/pkg/nats"
)

// ContentFetcher downloads one source location.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// TaskDiscoverer lists new write-up tasks for a run.
type TaskDiscoverer interface {
	Discover(ctx context.Context, maxPages int) ([]*entity.Task, error)
}

// TaskEnricher derives rewrite, summary and keywords for one task.
type TaskEnricher interface {
	Enrich(ctx context.Context, eventName, taskName, writeup string) (*enrich.Enrichment, error)
}

// RunReport is the success/failure tally for one finished run.
type RunReport struct {
	RunId  string
	Stages map[entity.Stage]int
}

type IPipelineService interface {
	Run(ctx context.Context, runId string) (*RunReport, error)
	Status(ctx context.Context, runId string) (*dto.RunStatusResponse, error)
}

type pipelineService struct {
	uowFactory       unitofwork.RepositoryFactory
	discoverer       TaskDiscoverer
	fetcher          ContentFetcher
	cleaner          *cleaner.Cleaner
	enricher         TaskEnricher
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
	logger           logger.ILogger

	workerCount  int
	maxRetries   int
	maxPages     int
	runsDir      string
	skipListPath string
}

func NewPipelineService(
	uowFactory unitofwork.RepositoryFactory,
	discoverer TaskDiscoverer,
	fetcher ContentFetcher,
	cln *cleaner.Cleaner,
	enricher TaskEnricher,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
	workerCount int,
	maxRetries int,
	maxPages int,
	runsDir string,
	skipListPath string,
) IPipelineService {
	if workerCount <= 0 {
		workerCount = 1
	}
	if runsDir == "" {
		runsDir = "runs"
	}
	return &pipelineService{
		uowFactory:       uowFactory,
		discoverer:       discoverer,
		fetcher:          fetcher,
		cleaner:          cln,
		enricher:         enricher,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		logger:           log,
		workerCount:      workerCount,
		maxRetries:       maxRetries,
		maxPages:         maxPages,
		runsDir:          runsDir,
		skipListPath:     skipListPath,
	}
}

// Run executes one full pipeline pass: discover, register, then walk every
// item through fetch, clean, enrich and store under a bounded worker pool.
// Item failures are recorded in the manifest and never abort the run; the
// only fatal errors are opening the manifest and a discovery that yields
// nothing on a fresh run.
func (s *pipelineService) Run(ctx context.Context, runId string) (*RunReport, error) {
	store, err := manifest.Open(ctx, runId, s.uowFactory)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	tasks, err := s.discoverer.Discover(ctx, s.maxPages)
	if err != nil {
		if len(store.Items()) == 0 {
			return nil, fmt.Errorf("discovery failed with nothing to resume: %w", err)
		}
		s.logger.Warn("pipeline", "discovery failed, resuming registered items only", map[string]interface{}{
			"run_id": runId,
			"error":  err.Error(),
		})
	}

	if err := store.Register(ctx, grouper.Group(tasks)); err != nil {
		return nil, fmt.Errorf("register discovered items: %w", err)
	}

	items := store.Items()
	s.logger.Info("pipeline", "run started", map[string]interface{}{
		"run_id": runId,
		"items":  len(items),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerCount)
	for _, item := range items {
		item := item
		g.Go(func() error {
			s.processItem(gctx, store, item)
			return nil
		})
	}
	g.Wait()

	report := &RunReport{
		RunId:  runId,
		Stages: store.Summary(),
	}
	s.logger.Info("pipeline", "run finished", map[string]interface{}{
		"run_id": runId,
		"stages": stageCounts(report.Stages),
	})
	return report, nil
}

// Status reports the manifest stage counts for a run.
func (s *pipelineService) Status(ctx context.Context, runId string) (*dto.RunStatusResponse, error) {
	store, err := manifest.Open(ctx, runId, s.uowFactory)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	stages := stageCounts(store.Summary())
	total := 0
	for _, n := range stages {
		total += n
	}
	return &dto.RunStatusResponse{
		RunId:  runId,
		Stages: stages,
		Total:  total,
	}, nil
}

// processItem walks one source location forward from whatever stage it is
// at. Work a previous run already finished is read back from its artifacts
// instead of repeated against the network.
func (s *pipelineService) processItem(ctx context.Context, store *manifest.Store, item *entity.SourceItem) {
	if item.Stage.Terminal() {
		return
	}
	// A shutdown mid-run stops scheduling; untouched items resume next run.
	if ctx.Err() != nil {
		return
	}

	key := item.SourceKey
	stage := item.Stage

	raw, rawPath, ok := s.ensureRaw(ctx, store, item)
	if !ok {
		return
	}
	if stage == entity.StageDiscovered {
		stage = entity.StageFetched
	}

	text, ok := s.ensureClean(ctx, store, item, stage, raw, rawPath)
	if !ok {
		return
	}

	enrichments := s.enrichTasks(ctx, store, item, text)
	if len(enrichments) == 0 {
		s.fail(ctx, store, key, "every task enrichment failed")
		return
	}
	if err := store.Advance(ctx, key, entity.StageEnriched, entity.ArtifactRefs{}); err != nil {
		s.fail(ctx, store, key, err.Error())
		return
	}
	s.publishStageEvent(ctx, store.RunId(), key, entity.StageEnriched)

	if ok := s.storeWriteups(ctx, store, item, text, enrichments); !ok {
		return
	}
	if err := store.Advance(ctx, key, entity.StageStored, entity.ArtifactRefs{}); err != nil {
		s.fail(ctx, store, key, err.Error())
		return
	}
	s.publishStageEvent(ctx, store.RunId(), key, entity.StageStored)
}

// ensureRaw returns the raw page content, fetching it if this run has not
// yet, or reading the recorded artifact if it has.
func (s *pipelineService) ensureRaw(ctx context.Context, store *manifest.Store, item *entity.SourceItem) ([]byte, string, bool) {
	if item.Stage.AtLeast(entity.StageFetched) {
		raw, err := os.ReadFile(item.RawPath)
		if err != nil {
			s.fail(ctx, store, item.SourceKey, fmt.Sprintf("read raw artifact: %v", err))
			return nil, "", false
		}
		return raw, item.RawPath, true
	}

	raw, err := s.fetcher.Fetch(ctx, item.SourceKey)
	if err != nil {
		s.fail(ctx, store, item.SourceKey, err.Error())
		return nil, "", false
	}

	rawPath := s.artifactPath(store.RunId(), "raw", item.Id.String()+".html")
	if err := writeArtifact(rawPath, raw); err != nil {
		s.fail(ctx, store, item.SourceKey, err.Error())
		return nil, "", false
	}
	if err := store.Advance(ctx, item.SourceKey, entity.StageFetched, entity.ArtifactRefs{RawPath: rawPath}); err != nil {
		s.fail(ctx, store, item.SourceKey, err.Error())
		return nil, "", false
	}
	s.publishStageEvent(ctx, store.RunId(), item.SourceKey, entity.StageFetched)
	return raw, rawPath, true
}

// ensureClean returns the cleaned text, producing and quality-gating it if
// this run has not, or reading the recorded artifact if it has. Content below
// the quality threshold rejects the item before any model sees it.
func (s *pipelineService) ensureClean(ctx context.Context, store *manifest.Store, item *entity.SourceItem, stage entity.Stage, raw []byte, rawPath string) (string, bool) {
	if stage.AtLeast(entity.StageCleaned) {
		text, err := os.ReadFile(item.CleanPath)
		if err != nil {
			s.fail(ctx, store, item.SourceKey, fmt.Sprintf("read clean artifact: %v", err))
			return "", false
		}
		return string(text), true
	}

	text, err := s.cleaner.Clean(raw)
	if err != nil {
		s.fail(ctx, store, item.SourceKey, err.Error())
		return "", false
	}
	if err := s.cleaner.Check(text); err != nil {
		if rejErr := store.Reject(ctx, item.SourceKey, err.Error()); rejErr != nil {
			s.logger.Error("pipeline", "failed to record rejection", map[string]interface{}{
				"source_key": item.SourceKey,
				"error":      rejErr.Error(),
			})
		}
		// Rejected ids go onto the skip list so discovery never offers the
		// same junk source again.
		if err := ctftime.AppendSkipList(s.skipListPath, item.TaskIds()); err != nil {
			s.logger.Warn("pipeline", "failed to append skip list", map[string]interface{}{
				"source_key": item.SourceKey,
				"error":      err.Error(),
			})
		}
		s.publishStageEvent(ctx, store.RunId(), item.SourceKey, entity.StageRejected)
		return "", false
	}

	cleanPath := s.artifactPath(store.RunId(), "clean", item.Id.String()+".txt")
	if err := writeArtifact(cleanPath, []byte(text)); err != nil {
		s.fail(ctx, store, item.SourceKey, err.Error())
		return "", false
	}
	if err := store.Advance(ctx, item.SourceKey, entity.StageCleaned, entity.ArtifactRefs{CleanPath: cleanPath}); err != nil {
		s.fail(ctx, store, item.SourceKey, err.Error())
		return "", false
	}
	s.publishStageEvent(ctx, store.RunId(), item.SourceKey, entity.StageCleaned)
	return text, true
}

type taskEnrichment struct {
	task       *entity.Task
	enrichment *enrich.Enrichment
}

// enrichTasks runs the enrichment adapter once per task the item owns,
// concurrently, with bounded retries per task. Tasks that exhaust their
// retries are dropped; the survivors carry the item forward.
func (s *pipelineService) enrichTasks(ctx context.Context, store *manifest.Store, item *entity.SourceItem, text string) []taskEnrichment {
	var mu sync.Mutex
	var results []taskEnrichment

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range item.Tasks {
		task := task
		g.Go(func() error {
			var enrichment *enrich.Enrichment
			var err error
			for attempt := 0; attempt <= s.maxRetries; attempt++ {
				enrichment, err = s.enricher.Enrich(gctx, task.EventName, task.TaskName, text)
				if err == nil {
					break
				}
			}
			if err != nil {
				s.logger.Error("pipeline", "task enrichment exhausted retries", map[string]interface{}{
					"run_id":     store.RunId(),
					"ctftime_id": task.CtftimeId,
					"error":      err.Error(),
				})
				return nil
			}

			mu.Lock()
			results = append(results, taskEnrichment{task: task, enrichment: enrichment})
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

// storeWriteups upserts one write-up per enriched task and publishes an index
// job for each. Upsert keys on the ctftime id, so replays overwrite.
func (s *pipelineService) storeWriteups(ctx context.Context, store *manifest.Store, item *entity.SourceItem, text string, enrichments []taskEnrichment) bool {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	for _, te := range enrichments {
		w := &entity.Writeup{
			Id:            te.task.CtftimeId,
			SourceURL:     te.task.SourceURL,
			EventName:     te.task.EventName,
			TaskName:      te.task.TaskName,
			FullText:      text,
			RewrittenText: te.enrichment.RewrittenText,
			Summary:       te.enrichment.Summary,
			Keywords:      te.enrichment.Keywords,
			CreatedAt:     time.Now(),
		}
		if err := uow.WriteupRepository().Upsert(ctx, w); err != nil {
			s.fail(ctx, store, item.SourceKey, fmt.Sprintf("store writeup %s: %v", w.Id, err))
			return false
		}

		msgJson, err := json.Marshal(dto.IndexWriteupMessage{
			WriteupId: w.Id,
			Mode:      "append",
		})
		if err != nil {
			s.fail(ctx, store, item.SourceKey, err.Error())
			return false
		}
		if err := s.publisherService.Publish(ctx, msgJson); err != nil {
			s.fail(ctx, store, item.SourceKey, fmt.Sprintf("publish index job for %s: %v", w.Id, err))
			return false
		}
	}
	return true
}

func (s *pipelineService) fail(ctx context.Context, store *manifest.Store, sourceKey, reason string) {
	// An error during shutdown is not an item defect. Leave the stage where
	// it is so the next run resumes the item instead of skipping a terminal
	// failure it never earned.
	if ctx.Err() != nil {
		s.logger.Info("pipeline", "item interrupted, left resumable", map[string]interface{}{
			"source_key": sourceKey,
			"reason":     reason,
		})
		return
	}
	if err := store.Fail(ctx, sourceKey, reason); err != nil {
		s.logger.Error("pipeline", "failed to record failure", map[string]interface{}{
			"source_key": sourceKey,
			"error":      err.Error(),
		})
	}
	s.logger.Warn("pipeline", "item failed", map[string]interface{}{
		"source_key": sourceKey,
		"reason":     reason,
	})
	s.publishStageEvent(ctx, store.RunId(), sourceKey, entity.StageFailed)
}

// publishStageEvent emits a stage transition to the event bus. Best effort:
// the bus is an observer of the pipeline, never a dependency.
func (s *pipelineService) publishStageEvent(ctx context.Context, runId, sourceKey string, stage entity.Stage) {
	if s.eventPublisher == nil {
		return
	}
	evt := events.NewPipelineStageEvent(runId, sourceKey, string(stage))
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("pipeline", "failed to publish stage event", map[string]interface{}{
			"source_key": sourceKey,
			"stage":      string(stage),
			"error":      err.Error(),
		})
	}
}

func (s *pipelineService) artifactPath(runId, kind, name string) string {
	return filepath.Join(s.runsDir, runId, kind, name)
}

func writeArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	return nil
}

func stageCounts(summary map[entity.Stage]int) map[string]int {
	out := make(map[string]int, len(summary))
	for stage, n := range summary {
		out[string(stage)] = n
	}
	return out
}
