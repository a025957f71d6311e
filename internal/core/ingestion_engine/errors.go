package ingestion_engine

import (
	"errors"
	"fmt"

	"github.com/markdave123-py/flowdesk/internal/models"
)

// EmptyDocumentMessage is persisted on documents whose extracted text is blank.
const EmptyDocumentMessage = "Could not extract text from document"

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrEmptyExtraction     = errors.New("empty document")
	ErrUnsupportedFileKind = errors.New("unsupported file kind")
	ErrInvalidChunkConfig  = errors.New("chunk size must be greater than overlap and overlap must not be negative")
	ErrQueueFull           = errors.New("ingestion queue is full")
	ErrChunkCountMismatch  = errors.New("knowledge base row count does not match the chunks written")
	ErrNotClaimed          = errors.New("document is not claimed for processing or another run holds it")
)

// DownloadError means the stored file could not be fetched.
type DownloadError struct {
	Path string
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download file %q: %v", e.Path, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ExtractionError means the file could not be parsed as its declared kind.
type ExtractionError struct {
	Kind models.FileKind
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError means a batch request to the embedding provider failed.
// Batch is zero-based.
type EmbeddingError struct {
	Batch int
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed batch %d: %v", e.Batch, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// WriteError means replacing the document's knowledge-base rows failed.
// Stage is "delete", "insert", "verify" or "commit"; Batch is set for inserts.
type WriteError struct {
	Stage string
	Batch int
	Err   error
}

func (e *WriteError) Error() string {
	if e.Stage == "insert" {
		return fmt.Sprintf("knowledge base insert batch %d: %v", e.Batch, e.Err)
	}
	return fmt.Sprintf("knowledge base %s: %v", e.Stage, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
