package mapper

import (
	"writeup-rag-be/internal/entity"
	"writeup-rag-be/internal/model"
)

type ManifestMapper struct{}

func NewManifestMapper() *ManifestMapper {
	return &ManifestMapper{}
}

func (m *ManifestMapper) ToEntity(s *model.SourceItem) *entity.SourceItem {
	if s == nil {
		return nil
	}
	updatedAt := s.UpdatedAt
	item := &entity.SourceItem{
		Id:          s.Id,
		RunId:       s.RunId,
		SourceKey:   s.SourceKey,
		Stage:       entity.Stage(s.Stage),
		RawPath:     s.RawPath,
		CleanPath:   s.CleanPath,
		ErrorReason: s.ErrorReason,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   &updatedAt,
	}
	for i := range s.Tasks {
		item.Tasks = append(item.Tasks, m.taskToEntity(&s.Tasks[i]))
	}
	return item
}

func (m *ManifestMapper) ToModel(s *entity.SourceItem) *model.SourceItem {
	if s == nil {
		return nil
	}
	item := &model.SourceItem{
		Id:          s.Id,
		RunId:       s.RunId,
		SourceKey:   s.SourceKey,
		Stage:       string(s.Stage),
		RawPath:     s.RawPath,
		CleanPath:   s.CleanPath,
		ErrorReason: s.ErrorReason,
		CreatedAt:   s.CreatedAt,
	}
	for _, t := range s.Tasks {
		item.Tasks = append(item.Tasks, *m.taskToModel(t))
	}
	return item
}

func (m *ManifestMapper) taskToEntity(t *model.Task) *entity.Task {
	return &entity.Task{
		Id:           t.Id,
		CtftimeId:    t.CtftimeId,
		EventName:    t.EventName,
		TaskName:     t.TaskName,
		SourceURL:    t.SourceURL,
		SourceItemId: t.SourceItemId,
		CreatedAt:    t.CreatedAt,
	}
}

func (m *ManifestMapper) taskToModel(t *entity.Task) *model.Task {
	return &model.Task{
		Id:           t.Id,
		CtftimeId:    t.CtftimeId,
		EventName:    t.EventName,
		TaskName:     t.TaskName,
		SourceURL:    t.SourceURL,
		SourceItemId: t.SourceItemId,
		CreatedAt:    t.CreatedAt,
	}
}
