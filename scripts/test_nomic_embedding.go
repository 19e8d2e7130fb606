//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"

	"writeup-rag-be/internal/config"
	"writeup-rag-be/pkg/embedding"
)

func main() {
	// 1. Load Config
	cfg := config.Load()
	fmt.Printf("Loaded Config > Embedding Provider: %s\n", cfg.Ai.EmbeddingProvider)
	fmt.Printf("Loaded Config > Ollama URL: %s\n", cfg.Ai.OllamaBaseURL)
	fmt.Printf("Loaded Config > Ollama Model: %s\n", cfg.Ai.OllamaModel)

	// 2. Initialize Ollama Provider explicitly for testing (ignoring main provider for now)
	provider := embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)

	// 3. Test Text
	text := "The heap challenge uses a tcache poisoning primitive."
	fmt.Printf("\nGenerating embedding for: \"%s\"\n", text)

	// 4. Generate
	vec, err := provider.Generate(context.Background(), text, embedding.TaskRetrievalQuery)
	if err != nil {
		log.Fatalf("Error generating embedding: %v", err)
	}

	// 5. Inspect Result
	dims := len(vec)
	fmt.Printf("Success! Generated Embedding Dimensions: %d\n", dims)

	if dims > 5 {
		fmt.Printf("First 5 values: %v...\n", vec[:5])
	}

	// 6. Validation
	// nomic-embed-text should be 768 dimensions
	if dims == embedding.Dim {
		fmt.Printf("✅ Dimensions match expected Nomic output (%d).\n", embedding.Dim)
	} else {
		fmt.Printf("⚠️  Dimensions %d do NOT match expected %d for nomic-embed-text. (Is it a different model?)\n", dims, embedding.Dim)
	}
}
