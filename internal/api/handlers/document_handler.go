package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/flowdesk/internal/core/ingestion_engine"
	"github.com/markdave123-py/flowdesk/internal/models"
	"github.com/markdave123-py/flowdesk/internal/services"
)

type DocumentService interface {
	InitiateUpload(ctx context.Context, actor services.Actor, workflowID string, req services.UploadRequest) (*services.UploadTicket, error)
	UploadFiles(ctx context.Context, actor services.Actor, workflowID string, files []services.UploadFile) ([]services.UploadResult, error)
	TriggerProcessing(ctx context.Context, actor services.Actor, documentID string) error
	ProcessNow(ctx context.Context, documentID string) (ingestion_engine.Result, error)
	Status(ctx context.Context, actor services.Actor, documentID string) (*services.StatusView, error)
	List(ctx context.Context, actor services.Actor, workflowID string) ([]models.Document, error)
	Delete(ctx context.Context, actor services.Actor, documentID string) error
}

type DocumentHandler struct {
	docs     DocumentService
	maxBytes int64
	maxFiles int
}

func NewDocumentHandler(docs DocumentService, maxBytes int64, maxFiles int) *DocumentHandler {
	return &DocumentHandler{docs: docs, maxBytes: maxBytes, maxFiles: maxFiles}
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	docs, err := h.docs.List(r.Context(), actor, chi.URLParam(r, "workflowID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// InitiateUpload returns a presigned URL for a direct-to-storage upload.
func (h *DocumentHandler) InitiateUpload(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req services.UploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ticket, err := h.docs.InitiateUpload(r.Context(), actor, chi.URLParam(r, "workflowID"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

// Upload accepts a multipart form with one or more "files" parts.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	limit := h.maxBytes*int64(h.maxFiles) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, fmt.Errorf("%w: request exceeds %d bytes", services.ErrFileTooLarge, limit))
			return
		}
		writeError(w, r, fmt.Errorf("%w: %v", services.ErrInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}

	files := make([]services.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll(files)
			writeError(w, r, fmt.Errorf("%w: open %s: %v", services.ErrInvalidInput, fh.Filename, err))
			return
		}
		files = append(files, services.UploadFile{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		})
	}
	defer closeAll(files)

	results, err := h.docs.UploadFiles(r.Context(), actor, chi.URLParam(r, "workflowID"), files)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"results": results})
}

func closeAll(files []services.UploadFile) {
	for _, f := range files {
		if c, ok := f.Body.(multipart.File); ok {
			_ = c.Close()
		}
	}
}

// Process schedules ingestion and returns immediately; clients poll Status.
func (h *DocumentHandler) Process(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "documentID")
	if err := h.docs.TriggerProcessing(r.Context(), actor, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": string(models.DocumentProcessing)})
}

func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	view, err := h.docs.Status(r.Context(), actor, chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := h.docs.Delete(r.Context(), actor, chi.URLParam(r, "documentID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
