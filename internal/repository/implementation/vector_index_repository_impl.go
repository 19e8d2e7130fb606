package implementation

import (
	"context"

	"writeup-rag-be/internal/model"
	"writeup-rag-be/internal/repository/contract"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SummaryIndexRepositoryImpl is the summary corpus backed by the
// summary_embeddings pgvector table.
type SummaryIndexRepositoryImpl struct {
	db *gorm.DB
}

func NewSummaryIndexRepository(db *gorm.DB) contract.VectorIndexRepository {
	return &SummaryIndexRepositoryImpl{db: db}
}

func (r *SummaryIndexRepositoryImpl) Upsert(ctx context.Context, records []contract.EmbeddingRecord, mode contract.UpdateMode) error {
	if mode == contract.ModeOverwrite {
		if err := r.db.WithContext(ctx).
			Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&model.SummaryEmbedding{}).Error; err != nil {
			return err
		}
	}
	if len(records) == 0 {
		return nil
	}
	models := make([]*model.SummaryEmbedding, len(records))
	for i, rec := range records {
		models[i] = &model.SummaryEmbedding{
			Id:        rec.Id,
			Content:   rec.Content,
			Embedding: pgvector.NewVector(rec.Vector),
		}
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(models).Error
}

func (r *SummaryIndexRepositoryImpl) Search(ctx context.Context, vector []float32, k int) ([]contract.Hit, error) {
	return searchCorpus(ctx, r.db, "summary_embeddings", vector, k)
}

// ChunkIndexRepositoryImpl is the detailed corpus backed by the
// chunk_embeddings pgvector table.
type ChunkIndexRepositoryImpl struct {
	db *gorm.DB
}

func NewChunkIndexRepository(db *gorm.DB) contract.VectorIndexRepository {
	return &ChunkIndexRepositoryImpl{db: db}
}

func (r *ChunkIndexRepositoryImpl) Upsert(ctx context.Context, records []contract.EmbeddingRecord, mode contract.UpdateMode) error {
	if mode == contract.ModeOverwrite {
		if err := r.db.WithContext(ctx).
			Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&model.ChunkEmbedding{}).Error; err != nil {
			return err
		}
	}
	if len(records) == 0 {
		return nil
	}
	models := make([]*model.ChunkEmbedding, len(records))
	for i, rec := range records {
		models[i] = &model.ChunkEmbedding{
			Id:        rec.Id,
			WriteupId: rec.ParentId,
			Ordinal:   rec.Ordinal,
			Content:   rec.Content,
			Embedding: pgvector.NewVector(rec.Vector),
		}
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(models).Error
}

func (r *ChunkIndexRepositoryImpl) Search(ctx context.Context, vector []float32, k int) ([]contract.Hit, error) {
	return searchCorpus(ctx, r.db, "chunk_embeddings", vector, k)
}

// searchCorpus runs a cosine-distance nearest-neighbour query against one
// corpus table. The secondary id ordering makes equal-distance results
// deterministic.
func searchCorpus(ctx context.Context, db *gorm.DB, table string, vector []float32, k int) ([]contract.Hit, error) {
	if k <= 0 {
		k = 5
	}
	type row struct {
		Id       string
		Distance float64
	}
	var rows []row

	queryVector := pgvector.NewVector(vector)
	err := db.WithContext(ctx).
		Table(table).
		Select("id, embedding <=> ? AS distance", queryVector).
		Order("distance ASC, id ASC").
		Limit(k).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	hits := make([]contract.Hit, len(rows))
	for i, r := range rows {
		hits[i] = contract.Hit{Id: r.Id, Distance: r.Distance}
	}
	return hits, nil
}
