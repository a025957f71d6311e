package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	middleware "github.com/markdave123-py/flowdesk/internal/api/middlewares"
	"github.com/markdave123-py/flowdesk/internal/core/ingestion_engine"
	"github.com/markdave123-py/flowdesk/internal/services"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

// writeError maps service errors to status codes. Unclassified errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, ingestion_engine.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrUnsupportedFileType),
		errors.Is(err, services.ErrTooManyFiles):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrAlreadyProcessing),
		errors.Is(err, ingestion_engine.ErrNotClaimed),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrWorkflowInactive),
		errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ingestion_engine.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

// actorFrom reads the identity set by the JWT middleware.
func actorFrom(w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return services.Actor{}, false
	}
	return services.Actor{UserID: id.UserID, Role: id.Role}, true
}
