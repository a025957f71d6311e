package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/models"
)

// WorkflowAdminService is the administrator's view of workflows and who may
// use them. Every operation requires an admin actor.
type WorkflowAdminService struct {
	db      core.DbClient
	storage core.ObjectClient
}

func NewWorkflowAdminService(db core.DbClient, storage core.ObjectClient) *WorkflowAdminService {
	return &WorkflowAdminService{db: db, storage: storage}
}

// WorkflowInput is the editable part of a workflow. Params, when set, must be
// a JSON array of parameter definitions; it is stored as config.params.
type WorkflowInput struct {
	Name             string              `json:"name"`
	Description      string              `json:"description"`
	Type             models.WorkflowType `json:"type"`
	WebhookURL       string              `json:"webhook_url"`
	HasKnowledgeBase bool                `json:"has_knowledge_base"`
	IsActive         *bool               `json:"is_active"` // defaults to true
	Params           json.RawMessage     `json:"params"`
}

// WorkflowPage is one page of a workflow listing.
type WorkflowPage struct {
	Workflows []models.Workflow `json:"workflows"`
	Total     int               `json:"total"`
}

func requireAdmin(actor Actor) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func (in WorkflowInput) apply(w *models.Workflow) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	switch in.Type {
	case models.WorkflowChat, models.WorkflowTrigger:
	default:
		return fmt.Errorf("%w: type must be chat or trigger", ErrInvalidInput)
	}
	hook := strings.TrimSpace(in.WebhookURL)
	u, err := url.Parse(hook)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: webhook_url must be an http(s) URL", ErrInvalidInput)
	}

	params := json.RawMessage(`[]`)
	if trimmed := bytes.TrimSpace(in.Params); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("%w: params must be a JSON array", ErrInvalidInput)
		}
		params = trimmed
	}
	cfg, err := json.Marshal(map[string]json.RawMessage{"params": params})
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	w.Name, w.Type, w.WebhookURL = name, in.Type, hook
	w.Description = nil
	if d := strings.TrimSpace(in.Description); d != "" {
		w.Description = &d
	}
	w.HasKnowledgeBase = in.HasKnowledgeBase
	w.IsActive = in.IsActive == nil || *in.IsActive
	w.Config = cfg
	return nil
}

func (s *WorkflowAdminService) Create(ctx context.Context, actor Actor, in WorkflowInput) (*models.Workflow, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	w := &models.Workflow{ID: uuid.NewString(), CreatedBy: &actor.UserID}
	if err := in.apply(w); err != nil {
		return nil, err
	}
	if err := s.db.CreateWorkflow(ctx, w); err != nil {
		return nil, fmt.Errorf("create workflow: %w", err)
	}
	slog.InfoContext(ctx, "workflow created", "workflow_id", w.ID, "admin_id", actor.UserID)
	return w, nil
}

func (s *WorkflowAdminService) Update(ctx context.Context, actor Actor, workflowID string, in WorkflowInput) (*models.Workflow, error) {
	w, err := s.Get(ctx, actor, workflowID)
	if err != nil {
		return nil, err
	}
	if err := in.apply(w); err != nil {
		return nil, err
	}
	ok, err := s.db.UpdateWorkflow(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("update workflow: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, ErrNotFound)
	}
	slog.InfoContext(ctx, "workflow updated", "workflow_id", w.ID, "admin_id", actor.UserID)
	return w, nil
}

func (s *WorkflowAdminService) Get(ctx context.Context, actor Actor, workflowID string) (*models.Workflow, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	w, err := s.db.GetWorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("load workflow: %w", err)
	}
	if w == nil {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, ErrNotFound)
	}
	return w, nil
}

func (s *WorkflowAdminService) List(ctx context.Context, actor Actor, f core.WorkflowFilter) (*WorkflowPage, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if f.Type != "" && f.Type != models.WorkflowChat && f.Type != models.WorkflowTrigger {
		return nil, fmt.Errorf("%w: unknown workflow type %q", ErrInvalidInput, f.Type)
	}
	wfs, total, err := s.db.ListWorkflows(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	return &WorkflowPage{Workflows: wfs, Total: total}, nil
}

// Delete removes the workflow's stored files and then the workflow; the
// database cascades to documents, knowledge-base rows, assignments and logs.
// If the files cannot be removed the workflow stays so the delete can be retried.
func (s *WorkflowAdminService) Delete(ctx context.Context, actor Actor, workflowID string) error {
	w, err := s.Get(ctx, actor, workflowID)
	if err != nil {
		return err
	}

	docs, err := s.db.ListDocumentsByWorkflow(ctx, w.ID)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	keys := make([]string, 0, len(docs))
	for _, d := range docs {
		keys = append(keys, d.StoragePath)
	}
	if len(keys) > 0 {
		if err := s.storage.DeleteFiles(ctx, keys...); err != nil && !errors.Is(err, core.ErrObjectNotFound) {
			return fmt.Errorf("delete stored files: %w", err)
		}
	}

	ok, err := s.db.DeleteWorkflow(ctx, w.ID)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if !ok {
		return fmt.Errorf("workflow %s: %w", workflowID, ErrNotFound)
	}
	slog.InfoContext(ctx, "workflow deleted", "workflow_id", w.ID, "documents", len(docs), "admin_id", actor.UserID)
	return nil
}

// Assign grants userID access to the workflow. Assigning twice is harmless.
func (s *WorkflowAdminService) Assign(ctx context.Context, actor Actor, workflowID, userID string) (*models.Assignment, error) {
	if _, err := s.Get(ctx, actor, workflowID); err != nil {
		return nil, err
	}
	u, err := s.db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	a := &models.Assignment{UserID: u.ID, WorkflowID: workflowID, AssignedBy: &actor.UserID,
		Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
	if err := s.db.AssignUser(ctx, a); err != nil {
		return nil, fmt.Errorf("assign user: %w", err)
	}
	return a, nil
}

func (s *WorkflowAdminService) Unassign(ctx context.Context, actor Actor, workflowID, userID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	ok, err := s.db.UnassignUser(ctx, userID, workflowID)
	if err != nil {
		return fmt.Errorf("unassign user: %w", err)
	}
	if !ok {
		return fmt.Errorf("assignment %s/%s: %w", workflowID, userID, ErrNotFound)
	}
	return nil
}

func (s *WorkflowAdminService) Assignments(ctx context.Context, actor Actor, workflowID string) ([]models.Assignment, error) {
	if _, err := s.Get(ctx, actor, workflowID); err != nil {
		return nil, err
	}
	as, err := s.db.ListAssignments(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return as, nil
}
