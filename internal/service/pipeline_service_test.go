package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"writeup-rag-be/internal/entity"
	"writeup-rag-be/internal/manifest"
	"writeup-rag-be/internal/pkg/logger"
	"writeup-rag-be/internal/repository/memory"
	"writeup-rag-be/internal/service"
	"writeup-rag-be/pkg/cleaner"
	"writeup-rag-be/pkg/ctftime"
	"writeup-rag-be/pkg/enrich"
)

type fakeDiscoverer struct {
	tasks []*entity.Task
	err   error
}

func (d *fakeDiscoverer) Discover(_ context.Context, _ int) ([]*entity.Task, error) {
	return d.tasks, d.err
}

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls map[string]int
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	page, ok := f.pages[url]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return []byte(page), nil
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fakeEnricher struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (e *fakeEnricher) Enrich(_ context.Context, eventName, taskName, _ string) (*enrich.Enrichment, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.fail {
		return nil, errors.New("model overloaded")
	}
	return &enrich.Enrichment{
		RewrittenText: "rewritten for " + taskName,
		Summary:       "summary for " + taskName,
		Keywords:      []string{"pwn"},
	}, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func goodPage() string {
	return "<html><body><p>" + strings.Repeat("detailed exploitation steps ", 20) + "</p></body></html>"
}

func newPipeline(t *testing.T, factory *memory.Factory, d service.TaskDiscoverer, f service.ContentFetcher, e service.TaskEnricher, pub service.IPublisherService, minRunes int) service.IPipelineService {
	t.Helper()
	return service.NewPipelineService(
		factory, d, f, cleaner.New(minRunes), e, pub, nil, logger.Nop{},
		4, 1, 1, t.TempDir(), "",
	)
}

func TestRunFanOutSharedSource(t *testing.T) {
	sharedURL := "https://blog.example.com/event-writeups"
	soleURL := "https://ctftime.org/writeup/777"
	tasks := []*entity.Task{
		{CtftimeId: "101", EventName: "E", TaskName: "pwn-1", SourceURL: sharedURL + "#pwn-1"},
		{CtftimeId: "102", EventName: "E", TaskName: "pwn-2", SourceURL: sharedURL + "#pwn-2"},
		{CtftimeId: "103", EventName: "E", TaskName: "web-1", SourceURL: soleURL},
	}

	factory := memory.NewFactory()
	fetcher := newFakeFetcher(map[string]string{
		sharedURL: goodPage(),
		soleURL:   goodPage(),
	})
	enricher := &fakeEnricher{}
	pub := &recordingPublisher{}

	svc := newPipeline(t, factory, &fakeDiscoverer{tasks: tasks}, fetcher, enricher, pub, 10)
	report, err := svc.Run(context.Background(), "run_20260826_130000")
	require.NoError(t, err)

	// One fetch per source location, one enrichment per task.
	assert.Equal(t, 2, fetcher.totalCalls())
	assert.Equal(t, 3, enricher.calls)
	assert.Equal(t, map[entity.Stage]int{entity.StageStored: 2}, report.Stages)

	// One index job per stored write-up.
	assert.Equal(t, 3, pub.count())

	uow := factory.NewUnitOfWork(context.Background())
	ids, err := uow.WriteupRepository().ExistingIds(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"101", "102", "103"}, ids)
}

func TestRunSkipsStoredItems(t *testing.T) {
	url := "https://ctftime.org/writeup/500"
	task := &entity.Task{CtftimeId: "500", EventName: "E", TaskName: "t", SourceURL: url}

	factory := memory.NewFactory()

	// A previous run already carried this item to stored.
	store, err := manifest.Open(context.Background(), "run_resume", factory)
	require.NoError(t, err)
	require.NoError(t, store.Register(context.Background(), []*entity.SourceItem{{SourceKey: url}}))
	for _, stage := range []entity.Stage{entity.StageFetched, entity.StageCleaned, entity.StageEnriched, entity.StageStored} {
		require.NoError(t, store.Advance(context.Background(), url, stage, entity.ArtifactRefs{}))
	}

	fetcher := newFakeFetcher(map[string]string{url: goodPage()})
	enricher := &fakeEnricher{}
	pub := &recordingPublisher{}

	svc := newPipeline(t, factory, &fakeDiscoverer{tasks: []*entity.Task{task}}, fetcher, enricher, pub, 10)
	report, err := svc.Run(context.Background(), "run_resume")
	require.NoError(t, err)

	// Stored items are skipped without a single adapter call.
	assert.Equal(t, 0, fetcher.totalCalls())
	assert.Equal(t, 0, enricher.calls)
	assert.Equal(t, 0, pub.count())
	assert.Equal(t, map[entity.Stage]int{entity.StageStored: 1}, report.Stages)
}

func TestRunRejectsLowQualityBeforeEnrichment(t *testing.T) {
	url := "https://blog.example.com/stub"
	task := &entity.Task{CtftimeId: "600", EventName: "E", TaskName: "t", SourceURL: url}

	factory := memory.NewFactory()
	fetcher := newFakeFetcher(map[string]string{url: "<p>soon</p>"})
	enricher := &fakeEnricher{}
	pub := &recordingPublisher{}

	svc := newPipeline(t, factory, &fakeDiscoverer{tasks: []*entity.Task{task}}, fetcher, enricher, pub, 200)
	report, err := svc.Run(context.Background(), "run_low_quality")
	require.NoError(t, err)

	assert.Equal(t, map[entity.Stage]int{entity.StageRejected: 1}, report.Stages)
	assert.Equal(t, 0, enricher.calls)
	assert.Equal(t, 0, pub.count())

	store, err := manifest.Open(context.Background(), "run_low_quality", factory)
	require.NoError(t, err)
	item := store.Get(url)
	require.NotNil(t, item)
	assert.Contains(t, item.ErrorReason, "quality threshold")
}

func TestRunAppendsRejectedIdsToSkipList(t *testing.T) {
	url := "https://blog.example.com/junk"
	tasks := []*entity.Task{
		{CtftimeId: "601", EventName: "E", TaskName: "a", SourceURL: url + "#a"},
		{CtftimeId: "602", EventName: "E", TaskName: "b", SourceURL: url + "#b"},
	}

	factory := memory.NewFactory()
	fetcher := newFakeFetcher(map[string]string{url: "<p>soon</p>"})
	skipPath := filepath.Join(t.TempDir(), "rejected_ids.log")
	svc := service.NewPipelineService(
		factory, &fakeDiscoverer{tasks: tasks}, fetcher, cleaner.New(200),
		&fakeEnricher{}, &recordingPublisher{}, nil, logger.Nop{},
		4, 1, 1, t.TempDir(), skipPath,
	)

	report, err := svc.Run(context.Background(), "run_skip_list")
	require.NoError(t, err)
	require.Equal(t, 1, report.Stages[entity.StageRejected])

	// Every task id behind the rejected source lands on the skip list, so
	// the next discovery pass never offers it again.
	skip, err := ctftime.LoadSkipList(skipPath)
	require.NoError(t, err)
	assert.True(t, skip["601"])
	assert.True(t, skip["602"])
}

func TestRunRecordsFetchFailures(t *testing.T) {
	okURL := "https://blog.example.com/good"
	badURL := "https://blog.example.com/gone"
	tasks := []*entity.Task{
		{CtftimeId: "700", EventName: "E", TaskName: "a", SourceURL: okURL},
		{CtftimeId: "701", EventName: "E", TaskName: "b", SourceURL: badURL},
	}

	factory := memory.NewFactory()
	fetcher := newFakeFetcher(map[string]string{okURL: goodPage()})
	enricher := &fakeEnricher{}
	pub := &recordingPublisher{}

	svc := newPipeline(t, factory, &fakeDiscoverer{tasks: tasks}, fetcher, enricher, pub, 10)
	report, err := svc.Run(context.Background(), "run_partial")
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stages[entity.StageStored])
	assert.Equal(t, 1, report.Stages[entity.StageFailed])
}

func TestRunFailsWhenEveryEnrichmentFails(t *testing.T) {
	url := "https://blog.example.com/cursed"
	task := &entity.Task{CtftimeId: "800", EventName: "E", TaskName: "t", SourceURL: url}

	factory := memory.NewFactory()
	fetcher := newFakeFetcher(map[string]string{url: goodPage()})
	enricher := &fakeEnricher{fail: true}
	pub := &recordingPublisher{}

	svc := newPipeline(t, factory, &fakeDiscoverer{tasks: []*entity.Task{task}}, fetcher, enricher, pub, 10)
	report, err := svc.Run(context.Background(), "run_enrich_fail")
	require.NoError(t, err)

	assert.Equal(t, map[entity.Stage]int{entity.StageFailed: 1}, report.Stages)
	// One try plus one retry per task.
	assert.Equal(t, 2, enricher.calls)
	assert.Equal(t, 0, pub.count())
}

func TestRunShutdownLeavesItemsResumable(t *testing.T) {
	url := "https://blog.example.com/interrupted"
	task := &entity.Task{CtftimeId: "900", EventName: "E", TaskName: "t", SourceURL: url}

	factory := memory.NewFactory()
	fetcher := newFakeFetcher(map[string]string{url: goodPage()})
	enricher := &fakeEnricher{}
	pub := &recordingPublisher{}
	svc := newPipeline(t, factory, &fakeDiscoverer{tasks: []*entity.Task{task}}, fetcher, enricher, pub, 10)

	// A run interrupted before any item starts must not mark items failed.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := svc.Run(cancelled, "run_interrupted")
	require.NoError(t, err)
	assert.Equal(t, 0, fetcher.totalCalls())
	assert.Equal(t, 0, report.Stages[entity.StageFailed])
	assert.Equal(t, 1, report.Stages[entity.StageDiscovered])

	// The next run picks the item up where it was left.
	report, err = svc.Run(context.Background(), "run_interrupted")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.totalCalls())
	assert.Equal(t, map[entity.Stage]int{entity.StageStored: 1}, report.Stages)
}

func TestRunFreshDiscoveryFailureIsFatal(t *testing.T) {
	factory := memory.NewFactory()
	svc := newPipeline(t, factory, &fakeDiscoverer{err: errors.New("listing down")},
		newFakeFetcher(nil), &fakeEnricher{}, &recordingPublisher{}, 10)

	_, err := svc.Run(context.Background(), "run_discovery_down")
	require.Error(t, err)
}
