package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/flowdesk/internal/models"
)

// Rows belong to a document through metadata->>'file_id'; the automation
// engine's vector-store node filters on the same key.

func (c *DatabaseClient) DeleteDocumentChunks(ctx context.Context, workflowID, documentID string) (int64, error) {
	const q = `DELETE FROM knowledge_base WHERE workflow_id = $1 AND metadata->>'file_id' = $2`
	res, err := c.q.ExecContext(ctx, q, workflowID, documentID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InsertKnowledgeChunks writes all chunks with a single multi-row INSERT.
func (c *DatabaseClient) InsertKnowledgeChunks(ctx context.Context, chunks []models.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	q, args, err := buildChunkInsert(chunks)
	if err != nil {
		return err
	}
	_, err = c.q.ExecContext(ctx, q, args...)
	return err
}

const chunkInsertColumns = 6

func buildChunkInsert(chunks []models.KnowledgeChunk) (string, []any, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO knowledge_base (id, workflow_id, document_id, content, metadata, embedding) VALUES ")

	args := make([]any, 0, len(chunks)*chunkInsertColumns)
	for i := range chunks {
		ch := &chunks[i]
		meta, err := json.Marshal(ch.Metadata)
		if err != nil {
			return "", nil, fmt.Errorf("marshal metadata for chunk %d: %w", ch.Metadata.ChunkIndex, err)
		}

		if i > 0 {
			b.WriteString(", ")
		}
		n := i * chunkInsertColumns
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6)
		args = append(args, ch.ID, ch.WorkflowID, ch.DocumentID, ch.Content, string(meta), pgvector.NewVector(ch.Embedding))
	}
	return b.String(), args, nil
}

func (c *DatabaseClient) CountDocumentChunks(ctx context.Context, workflowID, documentID string) (int, error) {
	const q = `SELECT COUNT(*) FROM knowledge_base WHERE workflow_id = $1 AND metadata->>'file_id' = $2`
	var n int
	if err := c.q.QueryRowContext(ctx, q, workflowID, documentID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SearchKnowledgeChunks returns the limit chunks of a workflow closest to
// queryVec by cosine distance.
func (c *DatabaseClient) SearchKnowledgeChunks(ctx context.Context, workflowID string, queryVec []float32, limit int) ([]models.KnowledgeChunk, error) {
	const q = `
		SELECT id, workflow_id, document_id, content, metadata, embedding <=> $2 AS distance, created_at
		FROM knowledge_base
		WHERE workflow_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`
	rows, err := c.q.QueryContext(ctx, q, workflowID, pgvector.NewVector(queryVec), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.KnowledgeChunk{}
	for rows.Next() {
		var (
			ch   models.KnowledgeChunk
			meta []byte
		)
		if err := rows.Scan(&ch.ID, &ch.WorkflowID, &ch.DocumentID, &ch.Content, &meta, &ch.Distance, &ch.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &ch.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of chunk %s: %w", ch.ID, err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}
