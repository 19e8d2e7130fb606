package model

import (
	"time"

	"github.com/google/uuid"
)

// SourceItem is the persisted manifest record for one source location in one
// run. It is the single source of truth for resumption: every stage
// transition is flushed before the runner moves on.
type SourceItem struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	RunId       string    `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_run_source,priority:1"`
	SourceKey   string    `gorm:"type:text;not null;uniqueIndex:idx_run_source,priority:2"`
	Stage       string    `gorm:"type:varchar(32);not null;index"`
	RawPath     string    `gorm:"type:text"`
	CleanPath   string    `gorm:"type:text"`
	ErrorReason string    `gorm:"type:text"`
	Tasks       []Task    `gorm:"foreignKey:SourceItemId"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (SourceItem) TableName() string {
	return "source_items"
}
