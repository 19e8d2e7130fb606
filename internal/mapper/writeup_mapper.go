package mapper

import (
	"encoding/json"

	"writeup-rag-be/internal/entity"
	"writeup-rag-be/internal/model"

	"gorm.io/datatypes"
)

type WriteupMapper struct{}

func NewWriteupMapper() *WriteupMapper {
	return &WriteupMapper{}
}

func (m *WriteupMapper) ToEntity(w *model.Writeup) *entity.Writeup {
	if w == nil {
		return nil
	}
	var keywords []string
	if len(w.Keywords) > 0 {
		// A corrupt keyword column degrades to no keywords, never an error.
		_ = json.Unmarshal(w.Keywords, &keywords)
	}
	updatedAt := w.UpdatedAt
	return &entity.Writeup{
		Id:            w.Id,
		SourceURL:     w.SourceURL,
		EventName:     w.EventName,
		TaskName:      w.TaskName,
		FullText:      w.FullText,
		RewrittenText: w.RewrittenText,
		Summary:       w.Summary,
		Keywords:      keywords,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     &updatedAt,
	}
}

func (m *WriteupMapper) ToModel(w *entity.Writeup) *model.Writeup {
	if w == nil {
		return nil
	}
	keywords, err := json.Marshal(w.Keywords)
	if err != nil {
		keywords = []byte("[]")
	}
	return &model.Writeup{
		Id:            w.Id,
		SourceURL:     w.SourceURL,
		EventName:     w.EventName,
		TaskName:      w.TaskName,
		FullText:      w.FullText,
		RewrittenText: w.RewrittenText,
		Summary:       w.Summary,
		Keywords:      datatypes.JSON(keywords),
		CreatedAt:     w.CreatedAt,
	}
}
