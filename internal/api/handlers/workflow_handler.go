package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/flowdesk/internal/core/automation"
	"github.com/markdave123-py/flowdesk/internal/models"
	"github.com/markdave123-py/flowdesk/internal/services"
)

type WorkflowService interface {
	Trigger(ctx context.Context, actor services.Actor, workflowID string, params map[string]any) (*automation.Response, error)
	Mine(ctx context.Context, actor services.Actor) ([]models.Workflow, error)
	Get(ctx context.Context, actor services.Actor, workflowID string) (*models.Workflow, error)
}

type KnowledgeService interface {
	Search(ctx context.Context, actor services.Actor, workflowID, query string, limit int) ([]models.KnowledgeChunk, error)
}

type WorkflowHandler struct {
	workflows WorkflowService
	knowledge KnowledgeService
}

func NewWorkflowHandler(workflows WorkflowService, knowledge KnowledgeService) *WorkflowHandler {
	return &WorkflowHandler{workflows: workflows, knowledge: knowledge}
}

// Mine lists the caller's assigned, active workflows.
func (h *WorkflowHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	wfs, err := h.workflows.Mine(r.Context(), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if wfs == nil {
		wfs = []models.Workflow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": wfs})
}

func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	wf, err := h.workflows.Get(r.Context(), actor, chi.URLParam(r, "workflowID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

// Trigger relays the webhook's status code and JSON body to the caller.
func (h *WorkflowHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	params := map[string]any{}
	if r.ContentLength != 0 && !decodeJSON(w, r, &params) {
		return
	}

	resp, err := h.workflows.Trigger(r.Context(), actor, chi.URLParam(r, "workflowID"), params)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Results []models.KnowledgeChunk `json:"results"`
}

func (h *WorkflowHandler) Search(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	chunks, err := h.knowledge.Search(r.Context(), actor, chi.URLParam(r, "workflowID"), req.Query, req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if chunks == nil {
		chunks = []models.KnowledgeChunk{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: chunks})
}
