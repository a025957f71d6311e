package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/core/ingestion_engine"
	objectclient "github.com/markdave123-py/flowdesk/internal/core/object-client"
	"github.com/markdave123-py/flowdesk/internal/models"
)

const uploadURLTTL = 5 * time.Minute

// DocumentProcessor runs the ingestion pipeline inline.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, documentID string) ingestion_engine.Result
}

type DocumentService struct {
	db        core.DbClient
	storage   core.ObjectClient
	trigger   core.ProcessingTrigger
	processor DocumentProcessor
	maxBytes  int64
	maxFiles  int
	now       func() time.Time
}

func NewDocumentService(db core.DbClient, storage core.ObjectClient, trigger core.ProcessingTrigger, processor DocumentProcessor, maxBytes int64, maxFiles int) *DocumentService {
	return &DocumentService{
		db:        db,
		storage:   storage,
		trigger:   trigger,
		processor: processor,
		maxBytes:  maxBytes,
		maxFiles:  maxFiles,
		now:       time.Now,
	}
}

// UploadRequest describes a file the client is about to upload.
type UploadRequest struct {
	Name     string `json:"fileName"`
	FileType string `json:"fileType"`
	Size     int64  `json:"fileSize"`
}

type UploadTicket struct {
	DocumentID string    `json:"documentId"`
	UploadURL  string    `json:"uploadUrl"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// UploadFile is one part of a direct multipart upload.
type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

type UploadResult struct {
	Document *models.Document `json:"document,omitempty"`
	Name     string           `json:"fileName"`
	Error    string           `json:"error,omitempty"`
}

type StatusView struct {
	ID           string                `json:"id"`
	Status       models.DocumentStatus `json:"status"`
	ChunkCount   *int                  `json:"chunkCount"`
	ErrorMessage *string               `json:"errorMessage"`
}

// FileKindOf resolves the declared kind of a file, falling back to its extension.
func FileKindOf(name, declared string) (models.FileKind, error) {
	kind := models.FileKind(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(declared), ".")))
	if kind == "" {
		kind = models.FileKind(strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")))
	}
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, kind)
	}
	return kind, nil
}

func (s *DocumentService) validateFile(name, declared string, size int64) (models.FileKind, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	kind, err := FileKindOf(name, declared)
	if err != nil {
		return "", err
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return "", fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, name, size, s.maxBytes)
	}
	return kind, nil
}

// InitiateUpload records a pending document and returns a presigned URL the
// client PUTs the file to before triggering processing.
func (s *DocumentService) InitiateUpload(ctx context.Context, actor Actor, workflowID string, req UploadRequest) (*UploadTicket, error) {
	kind, err := s.validateFile(req.Name, req.FileType, req.Size)
	if err != nil {
		return nil, err
	}
	if _, err := authorizeWorkflow(ctx, s.db, actor, workflowID); err != nil {
		return nil, err
	}

	now := s.now()
	key := objectclient.DocumentKey(workflowID, actor.UserID, req.Name, now)

	url, err := s.storage.PresignUpload(ctx, key, objectclient.ContentType(kind), uploadURLTTL)
	if err != nil {
		return nil, err
	}

	doc := s.newDocument(actor, workflowID, req.Name, kind, key, req.Size)
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	return &UploadTicket{DocumentID: doc.ID, UploadURL: url, ExpiresAt: now.Add(uploadURLTTL)}, nil
}

// UploadFiles stores each file, records it and schedules its processing. The
// whole batch is validated before anything is stored; afterwards failures are
// reported per file.
func (s *DocumentService) UploadFiles(ctx context.Context, actor Actor, workflowID string, files []UploadFile) ([]UploadResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files", ErrInvalidInput)
	}
	if s.maxFiles > 0 && len(files) > s.maxFiles {
		return nil, fmt.Errorf("%w: %d files, limit is %d", ErrTooManyFiles, len(files), s.maxFiles)
	}

	kinds := make([]models.FileKind, len(files))
	for i, f := range files {
		kind, err := s.validateFile(f.Name, "", f.Size)
		if err != nil {
			return nil, err
		}
		kinds[i] = kind
	}

	if _, err := authorizeWorkflow(ctx, s.db, actor, workflowID); err != nil {
		return nil, err
	}

	results := make([]UploadResult, len(files))
	for i, f := range files {
		results[i] = UploadResult{Name: f.Name}
		doc, err := s.storeAndRecord(ctx, actor, workflowID, f, kinds[i])
		if err != nil {
			slog.ErrorContext(ctx, "upload failed", "workflow_id", workflowID, "file", f.Name, "error", err)
			results[i].Error = err.Error()
			continue
		}
		if err := s.startProcessing(ctx, doc); err != nil {
			results[i].Error = err.Error()
		}
		results[i].Document = doc
	}
	return results, nil
}

func (s *DocumentService) storeAndRecord(ctx context.Context, actor Actor, workflowID string, f UploadFile, kind models.FileKind) (*models.Document, error) {
	key := objectclient.DocumentKey(workflowID, actor.UserID, f.Name, s.now())

	contentType := f.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = objectclient.ContentType(kind)
	}
	if err := s.storage.UploadFile(ctx, key, f.Body, contentType); err != nil {
		return nil, err
	}

	doc := s.newDocument(actor, workflowID, f.Name, kind, key, f.Size)
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		// Do not leave an object that no row points at.
		if derr := s.storage.DeleteFiles(context.WithoutCancel(ctx), key); derr != nil {
			slog.ErrorContext(ctx, "cleanup of orphaned upload failed", "key", key, "error", derr)
		}
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

func (s *DocumentService) newDocument(actor Actor, workflowID, name string, kind models.FileKind, key string, size int64) *models.Document {
	doc := &models.Document{
		ID:          uuid.NewString(),
		WorkflowID:  workflowID,
		UploadedBy:  actor.UserID,
		Name:        name,
		FileType:    kind,
		StoragePath: key,
		Status:      models.DocumentPending,
	}
	if size > 0 {
		doc.FileSizeBytes = &size
	}
	return doc
}

func (s *DocumentService) loadForActor(ctx context.Context, actor Actor, documentID string) (*models.Document, error) {
	doc, err := s.db.GetDocumentByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	}
	if !canManageDocument(actor, doc) {
		return nil, ErrForbidden
	}
	return doc, nil
}

// TriggerProcessing schedules ingestion and returns without waiting for it.
// A document already in processing is rejected so two runs never overlap.
func (s *DocumentService) TriggerProcessing(ctx context.Context, actor Actor, documentID string) error {
	doc, err := s.loadForActor(ctx, actor, documentID)
	if err != nil {
		return err
	}
	return s.startProcessing(ctx, doc)
}

func (s *DocumentService) startProcessing(ctx context.Context, doc *models.Document) error {
	claimed, err := s.db.ClaimDocumentForProcessing(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("claim document: %w", err)
	}
	if !claimed {
		return ErrAlreadyProcessing
	}
	doc.Status = models.DocumentProcessing

	if err := s.trigger.Trigger(ctx, doc.ID); err != nil {
		msg := fmt.Sprintf("could not schedule processing: %v", err)
		// No run exists yet, so the bare claim is released.
		if merr := s.db.MarkDocumentError(context.WithoutCancel(ctx), doc.ID, "", msg); merr != nil {
			slog.ErrorContext(ctx, "release claim failed", "document_id", doc.ID, "error", merr)
		}
		doc.Status, doc.ErrorMessage = models.DocumentError, &msg
		return fmt.Errorf("schedule processing: %w", err)
	}
	slog.InfoContext(ctx, "document processing scheduled", "document_id", doc.ID)
	return nil
}

// ProcessNow runs the pipeline inline for a server-to-server caller.
func (s *DocumentService) ProcessNow(ctx context.Context, documentID string) (ingestion_engine.Result, error) {
	doc, err := s.db.GetDocumentByID(ctx, documentID)
	if err != nil {
		return ingestion_engine.Result{}, fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return ingestion_engine.Result{}, fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	}
	claimed, err := s.db.ClaimDocumentForProcessing(ctx, documentID)
	if err != nil {
		return ingestion_engine.Result{}, fmt.Errorf("claim document: %w", err)
	}
	if !claimed {
		return ingestion_engine.Result{}, ErrAlreadyProcessing
	}
	return s.processor.ProcessDocument(ctx, documentID), nil
}

func (s *DocumentService) Status(ctx context.Context, actor Actor, documentID string) (*StatusView, error) {
	doc, err := s.loadForActor(ctx, actor, documentID)
	if err != nil {
		return nil, err
	}
	return &StatusView{ID: doc.ID, Status: doc.Status, ChunkCount: doc.ChunkCount, ErrorMessage: doc.ErrorMessage}, nil
}

func (s *DocumentService) List(ctx context.Context, actor Actor, workflowID string) ([]models.Document, error) {
	if _, err := authorizeWorkflow(ctx, s.db, actor, workflowID); err != nil {
		return nil, err
	}
	return s.db.ListDocumentsByWorkflow(ctx, workflowID)
}

// Delete removes the document's knowledge-base rows, its stored file and
// finally its row. If the file cannot be removed the row stays so the delete
// can be retried.
func (s *DocumentService) Delete(ctx context.Context, actor Actor, documentID string) error {
	doc, err := s.loadForActor(ctx, actor, documentID)
	if err != nil {
		return err
	}

	n, err := s.db.DeleteDocumentChunks(ctx, doc.WorkflowID, doc.ID)
	if err != nil {
		return fmt.Errorf("delete knowledge chunks: %w", err)
	}
	if err := s.storage.DeleteFiles(ctx, doc.StoragePath); err != nil && !errors.Is(err, core.ErrObjectNotFound) {
		return fmt.Errorf("delete stored file: %w", err)
	}
	if err := s.db.DeleteDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	slog.InfoContext(ctx, "document deleted", "document_id", doc.ID, "chunks_removed", n)
	return nil
}
