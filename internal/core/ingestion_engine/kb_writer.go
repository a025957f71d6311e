package ingestion_engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/models"
)

// KnowledgeWriter replaces the knowledge-base rows of one document.
type KnowledgeWriter struct {
	store     core.KnowledgeStore
	batchSize int
}

func NewKnowledgeWriter(store core.KnowledgeStore, batchSize int) *KnowledgeWriter {
	if batchSize <= 0 {
		batchSize = DefaultInsertBatchSize
	}
	return &KnowledgeWriter{store: store, batchSize: batchSize}
}

// Replace deletes every row whose metadata references doc and inserts one row
// per (chunk, vector) pair in batches. Delete and inserts share a transaction,
// so a failed insert leaves the previous chunk set in place. Before commit the
// document's row count must equal the rows written; anything else means a
// concurrent writer interleaved and the transaction is rolled back.
func (w *KnowledgeWriter) Replace(ctx context.Context, doc *models.Document, chunks []string, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, &WriteError{Stage: "insert", Err: fmt.Errorf("%d chunks but %d vectors", len(chunks), len(vectors))}
	}

	rows := BuildKnowledgeRows(doc, chunks, vectors)

	err := w.store.RunInTx(ctx, func(tx core.KnowledgeStore) error {
		if _, err := tx.DeleteDocumentChunks(ctx, doc.WorkflowID, doc.ID); err != nil {
			return &WriteError{Stage: "delete", Err: err}
		}
		for batch, start := 0, 0; start < len(rows); batch, start = batch+1, start+w.batchSize {
			end := min(start+w.batchSize, len(rows))
			if err := tx.InsertKnowledgeChunks(ctx, rows[start:end]); err != nil {
				return &WriteError{Stage: "insert", Batch: batch, Err: err}
			}
		}
		n, err := tx.CountDocumentChunks(ctx, doc.WorkflowID, doc.ID)
		if err != nil {
			return &WriteError{Stage: "verify", Err: err}
		}
		if n != len(rows) {
			return &WriteError{Stage: "verify", Err: fmt.Errorf("%w: wrote %d rows, found %d", ErrChunkCountMismatch, len(rows), n)}
		}
		return nil
	})
	if err != nil {
		var we *WriteError
		if errors.As(err, &we) {
			return 0, err
		}
		return 0, &WriteError{Stage: "commit", Err: err}
	}
	return len(rows), nil
}

// BuildKnowledgeRows maps chunk i to a row with chunk_index i.
func BuildKnowledgeRows(doc *models.Document, chunks []string, vectors [][]float32) []models.KnowledgeChunk {
	rows := make([]models.KnowledgeChunk, len(chunks))
	for i := range chunks {
		rows[i] = models.KnowledgeChunk{
			ID:         uuid.NewString(),
			WorkflowID: doc.WorkflowID,
			DocumentID: doc.ID,
			Content:    chunks[i],
			Embedding:  vectors[i],
			Metadata: models.ChunkMetadata{
				DocID:        fmt.Sprintf("%s_%d", doc.ID, i),
				FileID:       doc.ID,
				ChunkIndex:   i,
				WorkflowID:   doc.WorkflowID,
				DocumentName: doc.Name,
				FileType:     doc.FileType,
			},
		}
	}
	return rows
}
