package embedding

import "context"

// Task types tell asymmetric embedding models which side of retrieval a text
// sits on. Corpus content is always embedded as a document and user questions
// as a query; mixing them up silently degrades ranking.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// Dim is the fixed vector width both corpora are declared with. Providers
// must produce exactly this many components.
const Dim = 768

// EmbeddingProvider defines the contract for any embedding backend.
type EmbeddingProvider interface {
	// Generate embeds a single text.
	Generate(ctx context.Context, text string, taskType string) ([]float32, error)

	// GenerateBatch embeds texts in order. Either every vector is returned
	// or an error is; callers batch at the configured size and retry whole
	// batches.
	GenerateBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}
