package llm

import (
	"context"
	"fmt"
	"io"

	"github.com/markdave123-py/flowdesk/internal/config"
	"github.com/markdave123-py/flowdesk/internal/core"
)

// Embedder is an embedding provider that holds a connection to release.
type Embedder interface {
	core.EmbeddingProvider
	io.Closer
}

// NewEmbedder returns the provider selected by EMBED_PROVIDER.
func NewEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	switch cfg.EmbedProvider {
	case config.EmbedProviderGemini:
		e, err := NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
		if err != nil {
			return nil, err
		}
		return e, nil
	case config.EmbedProviderOpenAI:
		e, err := NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbedModel, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbedProvider)
	}
}

var (
	_ Embedder = (*GeminiEmbedder)(nil)
	_ Embedder = (*OpenAIEmbedder)(nil)
)
