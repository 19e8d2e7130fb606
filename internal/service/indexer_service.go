package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"golang.org/x/sync/errgroup"

	"writeup-rag-be/internal/dto"
	"writeup-rag-be/internal/entity"
	"writeup-rag-be/internal/pkg/logger"
	"writeup-rag-be/internal/repository/contract"
	"writeup-rag-be/internal/repository/unitofwork"
	"writeup-rag-be/pkg/chunker"
	"writeup-rag-be/pkg/embedding"
	"writeup-rag-be/pkg/events"
)

// EventPublisher puts domain events on the bus for outside observers.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// IIndexerService is the dual index coordinator. It owns both vector corpora:
// population (one summary vector per write-up, one vector per chunk of its
// rewritten text) and querying. The corpora are never mixed; a query runs
// against exactly one of them.
type IIndexerService interface {
	IndexWriteup(ctx context.Context, writeupId string, mode contract.UpdateMode) error
	Reindex(ctx context.Context, mode contract.UpdateMode) (int, error)
	QuerySummary(ctx context.Context, vector []float32, k int) ([]contract.Hit, error)
	QueryDetailed(ctx context.Context, vector []float32, k int) ([]contract.Hit, error)
	Consume(ctx context.Context) error
}

type indexerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	chunker           *chunker.Chunker
	eventPublisher    EventPublisher
	batchSize         int
	maxRetries        int
	logger            logger.ILogger
}

func NewIndexerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	chk *chunker.Chunker,
	eventPublisher EventPublisher,
	batchSize int,
	maxRetries int,
	log logger.ILogger,
) IIndexerService {
	if batchSize <= 0 {
		batchSize = 25
	}
	return &indexerService{
		pubSub:            pubSub,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		chunker:           chk,
		eventPublisher:    eventPublisher,
		batchSize:         batchSize,
		maxRetries:        maxRetries,
		logger:            log,
	}
}

// Consume subscribes to the index job topic and processes messages until ctx
// is cancelled.
func (s *indexerService) Consume(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, s.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (s *indexerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.IndexWriteupMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.logger.Error("indexer", "failed to unmarshal index job, dropping", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // malformed payloads never become valid on retry
		return
	}

	mode := contract.UpdateMode(payload.Mode)
	if mode == "" {
		mode = contract.ModeAppend
	}

	if err := s.IndexWriteup(ctx, payload.WriteupId, mode); err != nil {
		s.logger.Error("indexer", "index job failed", map[string]interface{}{
			"writeup_id": payload.WriteupId,
			"error":      err.Error(),
		})
		msg.Nack()
		return
	}
	msg.Ack()
}

// IndexWriteup embeds and upserts one write-up into both corpora. The two
// corpus updates run concurrently and the call succeeds only when both did.
func (s *indexerService) IndexWriteup(ctx context.Context, writeupId string, mode contract.UpdateMode) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	docs, err := uow.WriteupRepository().FetchMany(ctx, []string{writeupId})
	if err != nil {
		return fmt.Errorf("load writeup %s: %w", writeupId, err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("writeup %s not found", writeupId)
	}
	w := docs[0]

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.indexSummary(gctx, uow, w, mode)
	})
	g.Go(func() error {
		return s.indexChunks(gctx, uow, w, mode)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info("indexer", "writeup indexed", map[string]interface{}{
		"writeup_id": w.Id,
		"mode":       string(mode),
	})
	s.publishIndexedEvent(ctx, w.Id, mode)
	return nil
}

// publishIndexedEvent emits the indexed event to the bus. Best effort: the
// bus is an observer of the index, never a dependency.
func (s *indexerService) publishIndexedEvent(ctx context.Context, writeupId string, mode contract.UpdateMode) {
	if s.eventPublisher == nil {
		return
	}
	evt := events.NewWriteupIndexedEvent(writeupId, string(mode))
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("indexer", "failed to publish indexed event", map[string]interface{}{
			"writeup_id": writeupId,
			"error":      err.Error(),
		})
	}
}

// Reindex rebuilds the corpora from every stored write-up. Overwrite mode
// truncates each corpus on the first batch, then appends.
func (s *indexerService) Reindex(ctx context.Context, mode contract.UpdateMode) (int, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	ids, err := uow.WriteupRepository().ExistingIds(ctx)
	if err != nil {
		return 0, fmt.Errorf("list writeups: %w", err)
	}

	indexed := 0
	for _, id := range ids {
		itemMode := contract.ModeAppend
		if mode == contract.ModeOverwrite && indexed == 0 {
			itemMode = contract.ModeOverwrite
		}
		if err := s.IndexWriteup(ctx, id, itemMode); err != nil {
			// One bad write-up must not end the rebuild.
			s.logger.Error("indexer", "reindex skipped a writeup", map[string]interface{}{
				"writeup_id": id,
				"error":      err.Error(),
			})
			continue
		}
		indexed++
	}
	return indexed, nil
}

func (s *indexerService) QuerySummary(ctx context.Context, vector []float32, k int) ([]contract.Hit, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.SummaryIndexRepository().Search(ctx, vector, k)
}

func (s *indexerService) QueryDetailed(ctx context.Context, vector []float32, k int) ([]contract.Hit, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.ChunkIndexRepository().Search(ctx, vector, k)
}

// indexSummary puts exactly one vector per document into the summary corpus.
func (s *indexerService) indexSummary(ctx context.Context, uow unitofwork.UnitOfWork, w *entity.Writeup, mode contract.UpdateMode) error {
	content := w.Summary
	if content == "" {
		return fmt.Errorf("writeup %s has no summary to index", w.Id)
	}

	vectors, err := s.embedBatches(ctx, []string{content})
	if err != nil {
		return fmt.Errorf("embed summary of %s: %w", w.Id, err)
	}

	records := []contract.EmbeddingRecord{{
		Id:       w.Id,
		ParentId: w.Id,
		Content:  content,
		Vector:   vectors[0],
	}}
	return uow.SummaryIndexRepository().Upsert(ctx, records, mode)
}

// indexChunks splits the rewritten text into token windows and puts one
// vector per chunk into the detailed corpus.
func (s *indexerService) indexChunks(ctx context.Context, uow unitofwork.UnitOfWork, w *entity.Writeup, mode contract.UpdateMode) error {
	text := w.RewrittenText
	if text == "" {
		text = w.FullText
	}
	if text == "" {
		return fmt.Errorf("writeup %s has no text to chunk", w.Id)
	}

	chunks, err := s.chunker.Chunk(w.Id, text)
	if err != nil {
		return fmt.Errorf("chunk %s: %w", w.Id, err)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := s.embedBatches(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks of %s: %w", w.Id, err)
	}

	records := make([]contract.EmbeddingRecord, len(chunks))
	for i, ch := range chunks {
		records[i] = contract.EmbeddingRecord{
			Id:       ch.Id,
			ParentId: ch.ParentId,
			Ordinal:  ch.Ordinal,
			Content:  ch.Text,
			Vector:   vectors[i],
		}
	}
	return uow.ChunkIndexRepository().Upsert(ctx, records, mode)
}

// embedBatches embeds texts in batches of the configured size, retrying each
// failed batch up to maxRetries before giving up. A batch failure never
// affects batches that already succeeded.
func (s *indexerService) embedBatches(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		var batchVectors [][]float32
		var err error
		for attempt := 0; attempt <= s.maxRetries; attempt++ {
			batchVectors, err = s.embeddingProvider.GenerateBatch(ctx, batch, embedding.TaskRetrievalDocument)
			if err == nil {
				break
			}
			s.logger.Warn("indexer", "embedding batch failed", map[string]interface{}{
				"attempt": attempt + 1,
				"size":    len(batch),
				"error":   err.Error(),
			})
		}
		if err != nil {
			return nil, fmt.Errorf("embed batch starting at %d: %w", start, err)
		}
		vectors = append(vectors, batchVectors...)
	}
	return vectors, nil
}
