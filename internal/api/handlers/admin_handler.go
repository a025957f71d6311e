package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/models"
	"github.com/markdave123-py/flowdesk/internal/services"
)

type WorkflowAdminService interface {
	Create(ctx context.Context, actor services.Actor, in services.WorkflowInput) (*models.Workflow, error)
	Update(ctx context.Context, actor services.Actor, workflowID string, in services.WorkflowInput) (*models.Workflow, error)
	Get(ctx context.Context, actor services.Actor, workflowID string) (*models.Workflow, error)
	List(ctx context.Context, actor services.Actor, f core.WorkflowFilter) (*services.WorkflowPage, error)
	Delete(ctx context.Context, actor services.Actor, workflowID string) error
	Assign(ctx context.Context, actor services.Actor, workflowID, userID string) (*models.Assignment, error)
	Unassign(ctx context.Context, actor services.Actor, workflowID, userID string) error
	Assignments(ctx context.Context, actor services.Actor, workflowID string) ([]models.Assignment, error)
}

type UserAdminService interface {
	CreateUser(ctx context.Context, actor services.Actor, in services.SignupInput, role models.Role) (*models.User, error)
	GetUser(ctx context.Context, actor services.Actor, id string) (*models.User, error)
	ListUsers(ctx context.Context, actor services.Actor, f core.UserFilter) (*services.UserPage, error)
	UpdateRole(ctx context.Context, actor services.Actor, id string, role models.Role) (*models.User, error)
	DeleteUser(ctx context.Context, actor services.Actor, id string) error
}

// AdminHandler serves /api/admin. The router admits only admins; the services
// check again.
type AdminHandler struct {
	workflows WorkflowAdminService
	users     UserAdminService
}

func NewAdminHandler(workflows WorkflowAdminService, users UserAdminService) *AdminHandler {
	return &AdminHandler{workflows: workflows, users: users}
}

// pageFrom reads ?limit= and ?offset=. Absent values are zero and the store
// applies its defaults.
func pageFrom(w http.ResponseWriter, r *http.Request) (core.Page, bool) {
	var p core.Page
	for name, dst := range map[string]*int{"limit": &p.Limit, "offset": &p.Offset} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid " + name})
			return core.Page{}, false
		}
		*dst = n
	}
	return p, true
}

func (h *AdminHandler) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var in services.WorkflowInput
	if !decodeJSON(w, r, &in) {
		return
	}
	wf, err := h.workflows.Create(r.Context(), actor, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wf)
}

func (h *AdminHandler) UpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var in services.WorkflowInput
	if !decodeJSON(w, r, &in) {
		return
	}
	wf, err := h.workflows.Update(r.Context(), actor, chi.URLParam(r, "workflowID"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (h *AdminHandler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
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

func (h *AdminHandler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	page, ok := pageFrom(w, r)
	if !ok {
		return
	}
	f := core.WorkflowFilter{Type: models.WorkflowType(r.URL.Query().Get("type")), Page: page}
	res, err := h.workflows.List(r.Context(), actor, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Workflows == nil {
		res.Workflows = []models.Workflow{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AdminHandler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := h.workflows.Delete(r.Context(), actor, chi.URLParam(r, "workflowID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignRequest struct {
	UserID string `json:"user_id"`
}

func (h *AdminHandler) AssignUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.workflows.Assign(r.Context(), actor, chi.URLParam(r, "workflowID"), req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *AdminHandler) UnassignUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	err := h.workflows.Unassign(r.Context(), actor, chi.URLParam(r, "workflowID"), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	as, err := h.workflows.Assignments(r.Context(), actor, chi.URLParam(r, "workflowID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if as == nil {
		as = []models.Assignment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": as})
}

type createUserRequest struct {
	services.SignupInput
	Role models.Role `json:"role"`
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}
	u, err := h.users.CreateUser(r.Context(), actor, req.SignupInput, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	u, err := h.users.GetUser(r.Context(), actor, chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	page, ok := pageFrom(w, r)
	if !ok {
		return
	}
	res, err := h.users.ListUsers(r.Context(), actor, core.UserFilter{Role: models.Role(r.URL.Query().Get("role")), Page: page})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Users == nil {
		res.Users = []models.User{}
	}
	writeJSON(w, http.StatusOK, res)
}

type roleRequest struct {
	Role models.Role `json:"role"`
}

func (h *AdminHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.users.UpdateRole(r.Context(), actor, chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if err := h.users.DeleteUser(r.Context(), actor, chi.URLParam(r, "userID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
