package contract

import "context"

// UpdateMode controls how an Upsert batch interacts with vectors already in
// the corpus.
type UpdateMode string

const (
	// ModeAppend adds records without removing existing ones. Re-upserting
	// an id overwrites its vector, never duplicates it.
	ModeAppend UpdateMode = "append"
	// ModeOverwrite replaces the whole corpus with the batch.
	ModeOverwrite UpdateMode = "overwrite"
)

// EmbeddingRecord pairs an identifier with its vector. For the detailed
// corpus ParentId/Ordinal carry the chunk provenance; the summary corpus
// leaves them zero.
type EmbeddingRecord struct {
	Id       string
	ParentId string
	Ordinal  int
	Content  string
	Vector   []float32
}

// Hit is one similarity-search result. Never persisted.
type Hit struct {
	Id       string
	Distance float64
}

// VectorIndexRepository is one embedding corpus. The summary and detailed
// corpora are two independent instances; a search never mixes them.
type VectorIndexRepository interface {
	Upsert(ctx context.Context, records []EmbeddingRecord, mode UpdateMode) error

	// Search returns up to k hits ordered by ascending distance, ties broken
	// by id ordering for determinism.
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
}
