package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/core/ingestion_engine"
	"github.com/markdave123-py/flowdesk/internal/services"
)

// InternalHandler serves server-to-server calls guarded by the internal token.
type InternalHandler struct {
	docs DocumentService
}

func NewInternalHandler(docs DocumentService) *InternalHandler {
	return &InternalHandler{docs: docs}
}

type processRequest struct {
	DocumentID string `json:"documentId"`
	UserID     string `json:"userId"`
}

// ProcessDocument runs the pipeline inline and reports its outcome.
func (h *InternalHandler) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.DocumentID) == "" {
		writeJSON(w, http.StatusBadRequest, ingestion_engine.Result{Error: "missing documentId"})
		return
	}

	res, err := h.docs.ProcessNow(r.Context(), req.DocumentID)
	if err != nil {
		writeJSON(w, statusFor(err), ingestion_engine.Result{Error: err.Error()})
		return
	}

	slog.InfoContext(r.Context(), "inline processing finished",
		"document_id", req.DocumentID, "requested_by", req.UserID, "success", res.Success)
	writeJSON(w, resultStatus(res), res)
}

func resultStatus(res ingestion_engine.Result) int {
	if res.Success {
		return http.StatusOK
	}
	var extractErr *ingestion_engine.ExtractionError
	switch {
	case errors.Is(res.Err, ingestion_engine.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(res.Err, ingestion_engine.ErrNotClaimed), errors.Is(res.Err, core.ErrRunSuperseded):
		return http.StatusConflict
	case errors.Is(res.Err, ingestion_engine.ErrEmptyExtraction), errors.As(res.Err, &extractErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

var _ DocumentService = (*services.DocumentService)(nil)
