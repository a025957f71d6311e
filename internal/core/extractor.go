package core

import (
	"context"

	"github.com/markdave123-py/flowdesk/internal/models"
)

// DocumentExtractor turns a stored file into plain text.
type DocumentExtractor interface {
	// Extract parses data according to the declared file kind. Implementations
	// must release any parser resources before returning.
	Extract(ctx context.Context, data []byte, kind models.FileKind) (string, error)
}

// ProcessingTrigger starts the ingestion pipeline for a document without waiting
// for it to finish. The only observable effect is the eventual status update.
type ProcessingTrigger interface {
	Trigger(ctx context.Context, documentID string) error
}
