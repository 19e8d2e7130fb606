package implementation

import (
	"context"

	"writeup-rag-be/internal/entity"
	"writeup-rag-be/internal/mapper"
	"writeup-rag-be/internal/model"
	"writeup-rag-be/internal/repository/contract"
	"writeup-rag-be/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WriteupRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.WriteupMapper
}

func NewWriteupRepository(db *gorm.DB) contract.WriteupRepository {
	return &WriteupRepositoryImpl{
		db:     db,
		mapper: mapper.NewWriteupMapper(),
	}
}

func (r *WriteupRepositoryImpl) Upsert(ctx context.Context, w *entity.Writeup) error {
	m := r.mapper.ToModel(w)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(m).Error
	if err != nil {
		return err
	}
	*w = *r.mapper.ToEntity(m)
	return nil
}

func (r *WriteupRepositoryImpl) FetchMany(ctx context.Context, ids []string) ([]*entity.Writeup, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var models []*model.Writeup
	err := specification.ByStringIDs{IDs: ids}.
		Apply(r.db.WithContext(ctx)).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	entities := make([]*entity.Writeup, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *WriteupRepositoryImpl) ExistingIds(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Writeup{}).
		Pluck("id", &ids).Error
	return ids, err
}
