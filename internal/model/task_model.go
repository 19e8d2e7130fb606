package model

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	Id           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CtftimeId    string    `gorm:"type:varchar(32);not null;index"`
	EventName    string    `gorm:"type:text"`
	TaskName     string    `gorm:"type:text"`
	SourceURL    string    `gorm:"type:text"`
	SourceItemId uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (Task) TableName() string {
	return "tasks"
}
