package unitofwork

import (
	"context"

	"writeup-rag-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ManifestRepository() contract.ManifestRepository
	WriteupRepository() contract.WriteupRepository
	SummaryIndexRepository() contract.VectorIndexRepository
	ChunkIndexRepository() contract.VectorIndexRepository
}
