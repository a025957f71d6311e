package services

import (
	"context"
	"fmt"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/models"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID string
	Role   models.Role
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// authorizeWorkflow loads the workflow and checks that the actor is an admin or
// assigned to it.
func authorizeWorkflow(ctx context.Context, store core.WorkflowStore, actor Actor, workflowID string) (*models.Workflow, error) {
	wf, err := store.GetWorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("load workflow: %w", err)
	}
	if wf == nil {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, ErrNotFound)
	}
	if actor.IsAdmin() {
		return wf, nil
	}
	ok, err := store.IsUserAssigned(ctx, actor.UserID, workflowID)
	if err != nil {
		return nil, fmt.Errorf("check assignment: %w", err)
	}
	if !ok {
		return nil, ErrForbidden
	}
	return wf, nil
}

// canManageDocument: admins act on any document, users on their own uploads.
func canManageDocument(actor Actor, doc *models.Document) bool {
	return actor.IsAdmin() || doc.UploadedBy == actor.UserID
}
