package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// SummaryEmbedding is one row of the summary corpus: exactly one vector per
// stored write-up, keyed by the write-up id.
type SummaryEmbedding struct {
	Id        string          `gorm:"type:varchar(32);primaryKey"`
	Content   string          `gorm:"type:text"`
	Embedding pgvector.Vector `gorm:"type:vector(768)"` // text-embedding-004 dimensionality
	CreatedAt time.Time       `gorm:"autoCreateTime"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

func (SummaryEmbedding) TableName() string {
	return "summary_embeddings"
}

// ChunkEmbedding is one row of the detailed corpus. Its primary key is the
// derived chunk id (<writeupId>_<ordinal>); parent id and ordinal are also
// stored as columns so the id stays derivable and never authoritative.
type ChunkEmbedding struct {
	Id        string          `gorm:"type:varchar(48);primaryKey"`
	WriteupId string          `gorm:"type:varchar(32);not null;index"`
	Ordinal   int             `gorm:"not null"`
	Content   string          `gorm:"type:text"`
	Embedding pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

func (ChunkEmbedding) TableName() string {
	return "chunk_embeddings"
}
