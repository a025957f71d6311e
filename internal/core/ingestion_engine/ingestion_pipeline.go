package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/models"
)

// Result is what a caller of ProcessDocument sees. Err keeps the classified
// cause for callers that need to map it (e.g. to an HTTP status).
type Result struct {
	Success bool   `json:"success"`
	Chunks  int    `json:"chunks,omitempty"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// DocumentIngestor orchestrates ingestion:
//
// docs:      document rows (status, chunk_count, error_message).
// obj:       object storage holding the uploaded files.
// extractor: file bytes -> plain text.
// chunker:   plain text -> overlapping windows.
// batcher:   windows -> vectors, in order.
// writer:    replaces the document's knowledge-base rows.
// jobs:      in-memory queue of document IDs for the background workers.
type DocumentIngestor struct {
	docs      core.DocumentStore
	obj       core.ObjectClient
	extractor core.DocumentExtractor
	chunker   *Chunker
	batcher   *EmbedBatcher
	writer    *KnowledgeWriter
	cfg       IngestConfig
	jobs      chan string
	logger    *slog.Logger
	done      chan struct{}
}

// NewDocumentIngestor constructs the ingestor with a bounded job queue (64).
func NewDocumentIngestor(
	docs core.DocumentStore,
	kb core.KnowledgeStore,
	obj core.ObjectClient,
	emb core.EmbeddingProvider,
	extractor core.DocumentExtractor,
	cfg IngestConfig,
) (*DocumentIngestor, error) {
	cfg = cfg.withDefaults()

	chunker, err := NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	return &DocumentIngestor{
		docs:      docs,
		obj:       obj,
		extractor: extractor,
		chunker:   chunker,
		batcher:   NewEmbedBatcher(emb, cfg),
		writer:    NewKnowledgeWriter(kb, cfg.InsertBatchSize),
		cfg:       cfg,
		jobs:      make(chan string, DefaultQueueSize),
		logger:    slog.Default(),
		done:      make(chan struct{}),
	}, nil
}

// ProcessDocument runs download -> extract -> chunk -> embed -> write for one
// claimed document and records the outcome on its row. It never returns an
// error; the outcome is in the Result. A document that is not claimed, or is
// held by another live run, is left alone with ErrNotClaimed.
func (i *DocumentIngestor) ProcessDocument(ctx context.Context, documentID string) (res Result) {
	ctx, cancel := context.WithTimeout(ctx, i.cfg.ProcessTimeout)
	defer cancel()

	log := i.logger.With("document_id", documentID)

	doc, err := i.docs.GetDocumentByID(ctx, documentID)
	if err != nil {
		log.ErrorContext(ctx, "load document failed", "error", err)
		return Result{Error: err.Error(), Err: fmt.Errorf("load document: %w", err)}
	}
	if doc == nil {
		log.WarnContext(ctx, "document not found")
		return Result{Error: ErrDocumentNotFound.Error(), Err: ErrDocumentNotFound}
	}

	// Only the run that stamps its id on the claimed row may proceed; a
	// redelivered or duplicated trigger stops here without touching the row.
	runID := uuid.NewString()
	started, err := i.docs.StartProcessingRun(ctx, doc.ID, runID)
	if err != nil {
		return i.fail(ctx, log, doc.ID, "", fmt.Errorf("start run: %w", err), err.Error())
	}
	if !started {
		log.WarnContext(ctx, "document not claimed or already being processed, skipping")
		return Result{Error: ErrNotClaimed.Error(), Err: ErrNotClaimed}
	}
	log = log.With("run_id", runID)

	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("panic during processing: %v", r)
			res = i.fail(ctx, log, doc.ID, runID, perr, perr.Error())
		}
	}()

	log.InfoContext(ctx, "processing document", "workflow_id", doc.WorkflowID, "file_type", doc.FileType)

	n, err := i.run(ctx, log, doc)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, ErrEmptyExtraction) {
			msg = EmptyDocumentMessage
		}
		return i.fail(ctx, log, doc.ID, runID, err, msg)
	}

	if err := i.docs.MarkDocumentReady(context.WithoutCancel(ctx), doc.ID, runID, n); err != nil {
		if errors.Is(err, core.ErrRunSuperseded) {
			log.WarnContext(ctx, "run lost its claim before finishing", "error", err)
			return Result{Error: err.Error(), Err: err}
		}
		return i.fail(ctx, log, doc.ID, runID, err, err.Error())
	}

	log.InfoContext(ctx, "document processed", "chunks", n)
	return Result{Success: true, Chunks: n}
}

func (i *DocumentIngestor) run(ctx context.Context, log *slog.Logger, doc *models.Document) (int, error) {
	data, err := i.obj.GetFile(ctx, doc.StoragePath)
	if err != nil {
		return 0, &DownloadError{Path: doc.StoragePath, Err: err}
	}

	text, err := i.extractor.Extract(ctx, data, doc.FileType)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyExtraction
	}

	chunks := i.chunker.Split(text)
	log.DebugContext(ctx, "chunked document", "bytes", len(data), "chunks", len(chunks))

	vectors, err := i.batcher.EmbedAll(ctx, chunks)
	if err != nil {
		return 0, err
	}

	return i.writer.Replace(ctx, doc, chunks, vectors)
}

// fail logs the failure and persists it on the document for runID. The status
// write uses a context that survives caller cancellation and the run timeout.
func (i *DocumentIngestor) fail(ctx context.Context, log *slog.Logger, documentID, runID string, err error, msg string) Result {
	log.ErrorContext(ctx, "document processing failed", "error", err)
	uerr := i.docs.MarkDocumentError(context.WithoutCancel(ctx), documentID, runID, msg)
	switch {
	case errors.Is(uerr, core.ErrRunSuperseded):
		log.WarnContext(ctx, "run lost its claim before finishing", "error", uerr)
	case uerr != nil:
		log.ErrorContext(ctx, "persist document error status failed", "error", uerr)
	}
	return Result{Error: msg, Err: err}
}
