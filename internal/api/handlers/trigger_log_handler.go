package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/models"
	"github.com/markdave123-py/flowdesk/internal/services"
)

type TriggerLogService interface {
	List(ctx context.Context, actor services.Actor, f core.TriggerLogFilter) (*services.TriggerLogPage, error)
	Get(ctx context.Context, actor services.Actor, id string) (*models.TriggerLog, error)
}

type TriggerLogHandler struct {
	logs TriggerLogService
}

func NewTriggerLogHandler(logs TriggerLogService) *TriggerLogHandler {
	return &TriggerLogHandler{logs: logs}
}

// List omits payloads and responses; fetch a single entry for those.
func (h *TriggerLogHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	page, ok := pageFrom(w, r)
	if !ok {
		return
	}
	res, err := h.logs.List(r.Context(), actor, core.TriggerLogFilter{WorkflowID: r.URL.Query().Get("workflow_id"), Page: page})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Logs == nil {
		res.Logs = []models.TriggerLog{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *TriggerLogHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	l, err := h.logs.Get(r.Context(), actor, chi.URLParam(r, "logID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}
