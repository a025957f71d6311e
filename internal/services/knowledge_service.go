package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/models"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 20
)

// KnowledgeStore is the subset of the database a search needs.
type KnowledgeStore interface {
	core.WorkflowStore
	SearchKnowledgeChunks(ctx context.Context, workflowID string, queryVec []float32, limit int) ([]models.KnowledgeChunk, error)
}

type KnowledgeService struct {
	store    KnowledgeStore
	embedder core.EmbeddingProvider
}

func NewKnowledgeService(store KnowledgeStore, embedder core.EmbeddingProvider) *KnowledgeService {
	return &KnowledgeService{store: store, embedder: embedder}
}

// Search embeds query and returns the workflow's closest chunks, nearest first.
func (s *KnowledgeService) Search(ctx context.Context, actor Actor, workflowID, query string, limit int) ([]models.KnowledgeChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	switch {
	case limit <= 0:
		limit = defaultSearchLimit
	case limit > maxSearchLimit:
		limit = maxSearchLimit
	}

	if _, err := authorizeWorkflow(ctx, s.store, actor, workflowID); err != nil {
		return nil, err
	}

	vecs, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrUpstream, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: embed query: got %d vectors", ErrUpstream, len(vecs))
	}

	return s.store.SearchKnowledgeChunks(ctx, workflowID, vecs[0], limit)
}
