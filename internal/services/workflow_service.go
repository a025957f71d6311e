package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/core/automation"
	"github.com/markdave123-py/flowdesk/internal/models"
)

// Forwarder posts a payload to an automation webhook.
type Forwarder interface {
	Forward(ctx context.Context, url string, payload any) (*automation.Response, error)
}

type WorkflowService struct {
	store     core.WorkflowStore
	forwarder Forwarder
}

func NewWorkflowService(store core.WorkflowStore, forwarder Forwarder) *WorkflowService {
	return &WorkflowService{store: store, forwarder: forwarder}
}

// Trigger forwards params to the workflow's webhook on behalf of actor and
// records the invocation. The webhook's status and body are returned as is.
func (s *WorkflowService) Trigger(ctx context.Context, actor Actor, workflowID string, params map[string]any) (*automation.Response, error) {
	wf, err := authorizeWorkflow(ctx, s.store, actor, workflowID)
	if err != nil {
		return nil, err
	}
	if !wf.IsActive {
		return nil, ErrWorkflowInactive
	}

	payload := make(map[string]any, len(params)+2)
	for k, v := range params {
		payload[k] = v
	}
	payload["workflowId"] = wf.ID
	payload["userId"] = actor.UserID

	resp, ferr := s.forwarder.Forward(ctx, wf.WebhookURL, payload)

	entry := &models.TriggerLog{ID: uuid.NewString(), WorkflowID: wf.ID, UserID: actor.UserID}
	entry.Payload, _ = json.Marshal(payload)
	if ferr != nil {
		entry.StatusCode = http.StatusBadGateway
		entry.Response, _ = json.Marshal(map[string]string{"error": ferr.Error()})
	} else {
		entry.StatusCode = resp.StatusCode
		entry.Response = resp.Body
	}
	if lerr := s.store.CreateTriggerLog(context.WithoutCancel(ctx), entry); lerr != nil {
		slog.WarnContext(ctx, "trigger log not written", "workflow_id", wf.ID, "error", lerr)
	}

	if ferr != nil {
		slog.ErrorContext(ctx, "webhook call failed", "workflow_id", wf.ID, "error", ferr)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, ferr)
	}
	return resp, nil
}

// Mine lists the active workflows the actor is assigned to, by name.
func (s *WorkflowService) Mine(ctx context.Context, actor Actor) ([]models.Workflow, error) {
	wfs, err := s.store.ListUserWorkflows(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list user workflows: %w", err)
	}
	return wfs, nil
}

// Get returns a workflow the actor may use.
func (s *WorkflowService) Get(ctx context.Context, actor Actor, workflowID string) (*models.Workflow, error) {
	return authorizeWorkflow(ctx, s.store, actor, workflowID)
}
