// Exercises the local Ollama providers end to end. Needs a running Ollama
// server; set OLLAMA_BASE_URL to enable, otherwise the tests skip.

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"writeup-rag-be/pkg/embedding"
	"writeup-rag-be/pkg/llm"
	"writeup-rag-be/pkg/llm/ollama"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ollamaBaseURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("OLLAMA_BASE_URL")
	if url == "" {
		t.Skip("Skipping integration test: OLLAMA_BASE_URL not set")
	}
	return url
}

func TestOllamaEmbedding(t *testing.T) {
	url := ollamaBaseURL(t)
	model := os.Getenv("OLLAMA_EMBEDDING_MODEL")
	if model == "" {
		model = "nomic-embed-text"
	}

	provider := embedding.NewOllamaProvider(url, model)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	vec, err := provider.Generate(ctx, "SQL injection in the login form leaks the flag table.", embedding.TaskRetrievalDocument)
	require.NoError(t, err)
	require.NotEmpty(t, vec)

	// Vectors come back unit-normalized for cosine distance.
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 0.01)

	// Similar texts should land closer than unrelated ones.
	similar, err := provider.Generate(ctx, "The login form is vulnerable to SQL injection.", embedding.TaskRetrievalQuery)
	require.NoError(t, err)
	unrelated, err := provider.Generate(ctx, "Recipe for a chocolate sponge cake.", embedding.TaskRetrievalQuery)
	require.NoError(t, err)

	assert.Greater(t, dot(vec, similar), dot(vec, unrelated))
}

func TestOllamaGenerate(t *testing.T) {
	url := ollamaBaseURL(t)
	model := os.Getenv("LLM_MODEL")
	if model == "" {
		model = "gemma:2b"
	}

	provider := ollama.NewOllamaProvider(url, model)

	// First request can be slow while the model loads.
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	answer, err := provider.Generate(ctx, "Reply with the single word: pong", llm.WithTemperature(0))
	require.NoError(t, err)
	assert.NotEmpty(t, answer)
	t.Logf("Ollama replied: %q", answer)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
