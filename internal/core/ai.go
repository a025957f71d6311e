package core

import (
	"context"
	"errors"
)

// ErrRateLimited is wrapped by embedding providers when the upstream rejected a
// request for quota reasons. Callers may retry these; any other error is final.
var ErrRateLimited = errors.New("embedding provider rate limited")

type EmbeddingProvider interface {
	// EmbedTexts returns one vector per input text, in input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
