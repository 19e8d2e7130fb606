package implementation

import (
	"context"
	"errors"

	"writeup-rag-be/internal/entity"
	"writeup-rag-be/internal/mapper"
	"writeup-rag-be/internal/model"
	"writeup-rag-be/internal/repository/contract"
	"writeup-rag-be/internal/repository/scope"
	"writeup-rag-be/internal/repository/specification"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type ManifestRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ManifestMapper
}

func NewManifestRepository(db *gorm.DB) contract.ManifestRepository {
	return &ManifestRepositoryImpl{
		db:     db,
		mapper: mapper.NewManifestMapper(),
	}
}

func (r *ManifestRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ManifestRepositoryImpl) CreateBulk(ctx context.Context, items []*entity.SourceItem) error {
	if len(items) == 0 {
		return nil
	}
	models := make([]*model.SourceItem, len(items))
	for i, item := range items {
		models[i] = r.mapper.ToModel(item)
	}
	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique_violation, the (run_id, source_key) index
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return entity.ErrDuplicateKey
		}
		return err
	}
	for i, m := range models {
		*items[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *ManifestRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.SourceItem, error) {
	var m model.SourceItem
	query := r.applySpecifications(r.db.WithContext(ctx).Preload("Tasks"), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ManifestRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SourceItem, error) {
	var models []*model.SourceItem
	query := r.applySpecifications(r.db.WithContext(ctx).Preload("Tasks").Scopes(scope.OrderByCreatedAsc), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.SourceItem, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *ManifestRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.SourceItem{}).Count(&count).Error
	return count, err
}

func (r *ManifestRepositoryImpl) AdvanceStage(ctx context.Context, runId, sourceKey string, upd contract.StageUpdate) error {
	values := map[string]interface{}{
		"stage": string(upd.To),
	}
	if upd.Artifacts.RawPath != "" {
		values["raw_path"] = upd.Artifacts.RawPath
	}
	if upd.Artifacts.CleanPath != "" {
		values["clean_path"] = upd.Artifacts.CleanPath
	}
	if upd.Reason != "" {
		values["error_reason"] = upd.Reason
	}

	// Compare-and-swap on the expected stage: a concurrent writer that moved
	// the row first makes RowsAffected zero.
	res := r.db.WithContext(ctx).
		Model(&model.SourceItem{}).
		Where("run_id = ? AND source_key = ? AND stage = ?", runId, sourceKey, string(upd.From)).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&model.SourceItem{}).
			Where("run_id = ? AND source_key = ?", runId, sourceKey).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return entity.ErrSourceNotFound
		}
		return entity.ErrDuplicateKey
	}
	return nil
}
