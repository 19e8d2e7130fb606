package contract

import (
	"context"

	"writeup-rag-be/internal/entity"
)

type WriteupRepository interface {
	// Upsert stores a write-up by id; calling it again with the same id
	// overwrites the prior row.
	Upsert(ctx context.Context, w *entity.Writeup) error

	// FetchMany returns the write-ups that exist among ids, in no particular
	// order. Missing ids are simply absent from the result, never an error.
	FetchMany(ctx context.Context, ids []string) ([]*entity.Writeup, error)

	// ExistingIds lists all stored write-up ids (discovery skip list).
	ExistingIds(ctx context.Context) ([]string, error)
}
