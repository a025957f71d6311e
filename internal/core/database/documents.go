package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/models"
)

const documentColumns = `id, workflow_id, uploaded_by, name, file_type, storage_path, file_size_bytes,
		status, error_message, chunk_count, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner, d *models.Document) error {
	return s.Scan(
		&d.ID, &d.WorkflowID, &d.UploadedBy, &d.Name, &d.FileType, &d.StoragePath, &d.FileSizeBytes,
		&d.Status, &d.ErrorMessage, &d.ChunkCount, &d.CreatedAt, &d.UpdatedAt,
	)
}

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	if doc.Status == "" {
		doc.Status = models.DocumentPending
	}
	const q = `
		INSERT INTO documents
			(id, workflow_id, uploaded_by, name, file_type, storage_path, file_size_bytes, status)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	return c.q.QueryRowContext(ctx, q,
		doc.ID, doc.WorkflowID, doc.UploadedBy, doc.Name, doc.FileType, doc.StoragePath, doc.FileSizeBytes, doc.Status,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	if !validID(id) {
		return nil, nil
	}
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	var d models.Document
	err := scanDocument(c.q.QueryRowContext(ctx, q, id), &d)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) ListDocumentsByWorkflow(ctx context.Context, workflowID string) ([]models.Document, error) {
	if !validID(workflowID) {
		return []models.Document{}, nil
	}
	q := `SELECT ` + documentColumns + ` FROM documents WHERE workflow_id = $1 ORDER BY created_at DESC`

	rows, err := c.q.QueryContext(ctx, q, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Document{}
	for rows.Next() {
		var d models.Document
		if err := scanDocument(rows, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	if !validID(id) {
		return nil
	}
	_, err := c.q.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}

// ClaimDocumentForProcessing takes a fresh lease unless a live one holds the
// row. A row left in processing without a deadline counts as expired.
func (c *DatabaseClient) ClaimDocumentForProcessing(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	const q = `
		UPDATE documents
		SET status = 'processing', error_message = NULL, chunk_count = NULL,
			processing_run = NULL, processing_deadline = now() + make_interval(secs => $2),
			updated_at = now()
		WHERE id = $1
			AND (status <> 'processing' OR processing_deadline IS NULL OR processing_deadline < now())
	`
	return c.affectedOne(ctx, q, id, c.leaseTTL.Seconds())
}

func (c *DatabaseClient) StartProcessingRun(ctx context.Context, id, runID string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	const q = `
		UPDATE documents
		SET processing_run = $2, processing_deadline = now() + make_interval(secs => $3), updated_at = now()
		WHERE id = $1 AND status = 'processing'
			AND (processing_run IS NULL OR processing_deadline IS NULL OR processing_deadline < now())
	`
	return c.affectedOne(ctx, q, id, runID, c.leaseTTL.Seconds())
}

func (c *DatabaseClient) MarkDocumentReady(ctx context.Context, id, runID string, chunkCount int) error {
	const q = `
		UPDATE documents
		SET status = 'ready', chunk_count = $3, error_message = NULL,
			processing_run = NULL, processing_deadline = NULL, updated_at = now()
		WHERE id = $1 AND status = 'processing' AND processing_run IS NOT DISTINCT FROM $2
	`
	return c.finishRun(ctx, q, id, runID, chunkCount)
}

func (c *DatabaseClient) MarkDocumentError(ctx context.Context, id, runID, message string) error {
	const q = `
		UPDATE documents
		SET status = 'error', error_message = $3, chunk_count = NULL,
			processing_run = NULL, processing_deadline = NULL, updated_at = now()
		WHERE id = $1 AND status = 'processing' AND processing_run IS NOT DISTINCT FROM $2
	`
	return c.finishRun(ctx, q, id, runID, message)
}

func (c *DatabaseClient) FailExpiredRuns(ctx context.Context, message string) (int64, error) {
	const q = `
		UPDATE documents
		SET status = 'error', error_message = $1, chunk_count = NULL,
			processing_run = NULL, processing_deadline = NULL, updated_at = now()
		WHERE status = 'processing' AND (processing_deadline IS NULL OR processing_deadline < now())
	`
	res, err := c.q.ExecContext(ctx, q, message)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *DatabaseClient) finishRun(ctx context.Context, q, id, runID string, arg any) error {
	if !validID(id) {
		return fmt.Errorf("document %s: %w", id, core.ErrRunSuperseded)
	}
	var run any // NULL matches a claim no run has started
	if runID != "" {
		run = runID
	}
	ok, err := c.affectedOne(ctx, q, id, run, arg)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("document %s: %w", id, core.ErrRunSuperseded)
	}
	return nil
}

func (c *DatabaseClient) affectedOne(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := c.q.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// validID reports whether id can be compared against a uuid column. Anything
// else cannot match a row, so lookups short-circuit instead of failing the cast.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
