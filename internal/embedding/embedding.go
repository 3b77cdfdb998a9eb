// Package embedding provides vector embedding providers for passage and
// question text.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/QDev-Technolab/document-reader-ai/internal/config"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch generates embeddings for multiple texts in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// ModelName returns the model identifier recorded with ingested documents.
	ModelName() string
	// Ping validates the provider is reachable.
	Ping(ctx context.Context) error
}

// New creates an embedder from configuration.
func New(cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "ollama":
		return NewOllama(OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.EmbeddingModel,
			Timeout: 60 * time.Second,
		}), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai embedding provider requires OPENAI_API_KEY")
		}
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.EmbeddingModel), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbeddingProvider)
	}
}
