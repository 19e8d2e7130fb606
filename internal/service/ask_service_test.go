package service_test

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"writeup-rag-be/internal/dto"
	"writeup-rag-be/internal/entity"
	"writeup-rag-be/internal/pkg/logger"
	"writeup-rag-be/internal/repository/contract"
	"writeup-rag-be/internal/repository/memory"
	"writeup-rag-be/internal/service"
	"writeup-rag-be/pkg/llm"
	"writeup-rag-be/pkg/rag/contextbuilder"
	"writeup-rag-be/pkg/rag/resolver"
)

type fakeIndexer struct {
	service.IIndexerService
	summaryHits  []contract.Hit
	detailedHits []contract.Hit
}

func (f *fakeIndexer) QuerySummary(_ context.Context, _ []float32, _ int) ([]contract.Hit, error) {
	return f.summaryHits, nil
}

func (f *fakeIndexer) QueryDetailed(_ context.Context, _ []float32, _ int) ([]contract.Hit, error) {
	return f.detailedHits, nil
}

type fakeLLM struct {
	lastPrompt string
	answer     string
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return f.Generate(ctx, history[len(history)-1].Content, opts...)
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	f.lastPrompt = prompt
	return f.answer, nil
}

func newAsk(t *testing.T, indexer service.IIndexerService, model *fakeLLM, docs ...*entity.Writeup) service.IAskService {
	t.Helper()
	repo := memory.NewWriteupRepository()
	for _, doc := range docs {
		require.NoError(t, repo.Upsert(context.Background(), doc))
	}
	return service.NewAskService(
		indexer,
		&fakeEmbedder{},
		model,
		resolver.New(repo, log.New(io.Discard, "", 0)),
		contextbuilder.New(0),
		nil,
		5,
		time.Minute,
		logger.Nop{},
	)
}

func TestAskGroundedAnswer(t *testing.T) {
	indexer := &fakeIndexer{
		summaryHits:  []contract.Hit{{Id: "101", Distance: 0.2}},
		detailedHits: []contract.Hit{{Id: "102_0", Distance: 0.1}},
	}
	model := &fakeLLM{answer: "Use a jinja2 SSTI payload to read the flag."}

	svc := newAsk(t, indexer, model,
		&entity.Writeup{Id: "101", EventName: "E", TaskName: "a", SourceURL: "https://x/101", RewrittenText: "writeup one body"},
		&entity.Writeup{Id: "102", EventName: "E", TaskName: "b", SourceURL: "https://x/102", RewrittenText: "writeup two body"},
	)

	res, err := svc.Ask(context.Background(), &dto.AskRequest{Question: "how to exploit the flask notes app?"})
	require.NoError(t, err)

	assert.True(t, res.Grounded)
	assert.Equal(t, "Use a jinja2 SSTI payload to read the flag.", res.Answer)
	assert.False(t, res.Cached)

	// Citations follow best-distance order: the chunk hit for 102 wins.
	require.Len(t, res.Citations, 2)
	assert.Equal(t, "102", res.Citations[0].Id)
	assert.Equal(t, "101", res.Citations[1].Id)

	// The model saw the documents and the question, nothing invented.
	assert.Contains(t, model.lastPrompt, "writeup one body")
	assert.Contains(t, model.lastPrompt, "writeup two body")
	assert.Contains(t, model.lastPrompt, "how to exploit the flask notes app?")
}

func TestAskWithoutGroundingRefusesToAnswer(t *testing.T) {
	model := &fakeLLM{answer: "should never be used"}
	svc := newAsk(t, &fakeIndexer{}, model)

	res, err := svc.Ask(context.Background(), &dto.AskRequest{Question: "anything at all?"})
	require.NoError(t, err)

	assert.False(t, res.Grounded)
	assert.NotEqual(t, "should never be used", res.Answer)
	assert.Empty(t, res.Citations)
	assert.Empty(t, model.lastPrompt, "model must not be called without grounding")
}

func TestAskDropsStaleHits(t *testing.T) {
	indexer := &fakeIndexer{
		summaryHits: []contract.Hit{
			{Id: "101", Distance: 0.3},
			{Id: "deleted", Distance: 0.1},
		},
	}
	model := &fakeLLM{answer: "answer"}
	svc := newAsk(t, indexer, model,
		&entity.Writeup{Id: "101", EventName: "E", TaskName: "a", RewrittenText: "surviving doc"},
	)

	res, err := svc.Ask(context.Background(), &dto.AskRequest{Question: "what remains indexed?"})
	require.NoError(t, err)

	assert.True(t, res.Grounded)
	require.Len(t, res.Citations, 1)
	assert.Equal(t, "101", res.Citations[0].Id)
	assert.NotContains(t, model.lastPrompt, "deleted")
}

func TestAskSeparateQuestionsSeparateStrings(t *testing.T) {
	// Same corpus, different questions: answers are generated independently
	// when no external cache is wired.
	indexer := &fakeIndexer{summaryHits: []contract.Hit{{Id: "101", Distance: 0.2}}}
	model := &fakeLLM{answer: "a"}
	svc := newAsk(t, indexer, model,
		&entity.Writeup{Id: "101", EventName: "E", TaskName: "a", RewrittenText: "body"},
	)

	first, err := svc.Ask(context.Background(), &dto.AskRequest{Question: "question one?"})
	require.NoError(t, err)
	second, err := svc.Ask(context.Background(), &dto.AskRequest{Question: "question two?"})
	require.NoError(t, err)

	assert.False(t, first.Cached)
	assert.False(t, second.Cached)
	assert.True(t, strings.Contains(model.lastPrompt, "question two?"))
}
