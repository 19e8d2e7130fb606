package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"writeup-rag-be/internal/dto"
	"writeup-rag-be/internal/entity"
	"writeup-rag-be/internal/pkg/logger"
	"writeup-rag-be/internal/repository/contract"
	"writeup-rag-be/pkg/embedding"
	"writeup-rag-be/pkg/llm"
	"writeup-rag-be/pkg/rag/contextbuilder"
	"writeup-rag-be/pkg/rag/resolver"
)

const answerPrompt = `You are an assistant answering questions about CTF challenges using only the provided write-up excerpts.

Context:
---
$context
---

Question: $question

Answer using only information from the context above. If the context does not contain enough to answer, say so plainly. Mention the write-ups you drew from by their titles.`

const noGroundingAnswer = "I don't have any indexed write-ups relevant to this question."

type IAskService interface {
	Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error)
}

type askService struct {
	indexer           IIndexerService
	embeddingProvider embedding.EmbeddingProvider
	llmProvider       llm.LLMProvider
	resolver          *resolver.Resolver
	builder           *contextbuilder.Builder
	redisClient       *redis.Client
	topK              int
	cacheTTL          time.Duration
	logger            logger.ILogger
}

func NewAskService(
	indexer IIndexerService,
	embeddingProvider embedding.EmbeddingProvider,
	llmProvider llm.LLMProvider,
	rsv *resolver.Resolver,
	builder *contextbuilder.Builder,
	redisClient *redis.Client,
	topK int,
	cacheTTL time.Duration,
	log logger.ILogger,
) IAskService {
	if topK <= 0 {
		topK = 10
	}
	return &askService{
		indexer:           indexer,
		embeddingProvider: embeddingProvider,
		llmProvider:       llmProvider,
		resolver:          rsv,
		builder:           builder,
		redisClient:       redisClient,
		topK:              topK,
		cacheTTL:          cacheTTL,
		logger:            log,
	}
}

// Ask answers a question from the indexed write-ups. The question is embedded
// once and searched against both corpora in parallel; hits are resolved to
// whole documents and assembled into the grounding context the model answers
// from. When nothing relevant is indexed the answer says so, grounded=false,
// instead of letting the model improvise.
func (s *askService) Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error) {
	question := strings.TrimSpace(req.Question)

	if cached := s.cacheGet(ctx, question); cached != nil {
		return cached, nil
	}

	queryVector, err := s.embeddingProvider.Generate(ctx, question, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	var summaryHits, detailedHits []contract.Hit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summaryHits, err = s.indexer.QuerySummary(gctx, queryVector, s.topK)
		return err
	})
	g.Go(func() error {
		var err error
		detailedHits, err = s.indexer.QueryDetailed(gctx, queryVector, s.topK)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("query corpora: %w", err)
	}

	docs, err := s.resolver.Resolve(ctx, summaryHits, detailedHits)
	if err != nil {
		return nil, err
	}

	assembled, err := s.builder.Assemble(docs)
	if err != nil {
		if errors.Is(err, entity.ErrNoGrounding) {
			return &dto.AskResponse{
				Answer:   noGroundingAnswer,
				Grounded: false,
			}, nil
		}
		return nil, err
	}

	prompt := strings.NewReplacer(
		"$context", assembled.Text,
		"$question", question,
	).Replace(answerPrompt)

	answer, err := s.llmProvider.Generate(ctx, prompt, llm.WithTemperature(0.3))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	res := &dto.AskResponse{
		Answer:    strings.TrimSpace(answer),
		Grounded:  true,
		Citations: assembled.Citations,
	}
	s.cacheSet(ctx, question, res)
	return res, nil
}

func cacheKey(question string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(question)))
	return "ask:" + hex.EncodeToString(sum[:])
}

func (s *askService) cacheGet(ctx context.Context, question string) *dto.AskResponse {
	if s.redisClient == nil {
		return nil
	}

	raw, err := s.redisClient.Get(ctx, cacheKey(question)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("ask", "answer cache read failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return nil
	}

	var res dto.AskResponse
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil
	}
	res.Cached = true
	return &res
}

func (s *askService) cacheSet(ctx context.Context, question string, res *dto.AskResponse) {
	if s.redisClient == nil {
		return
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := s.redisClient.Set(ctx, cacheKey(question), raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("ask", "answer cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
