package model

import (
	"time"

	"gorm.io/datatypes"
)

// Writeup is the enriched document row. Primary key is the ctftime id, which
// makes Save an idempotent upsert-by-identifier.
type Writeup struct {
	Id            string         `gorm:"type:varchar(32);primaryKey"`
	SourceURL     string         `gorm:"type:text"`
	EventName     string         `gorm:"type:text"`
	TaskName      string         `gorm:"type:text"`
	FullText      string         `gorm:"type:text"`
	RewrittenText string         `gorm:"type:text"`
	Summary       string         `gorm:"type:text"`
	Keywords      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
}

func (Writeup) TableName() string {
	return "writeups"
}
