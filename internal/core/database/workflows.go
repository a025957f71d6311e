package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/models"
)

const workflowColumns = `id, name, description, type, webhook_url, has_knowledge_base, config, is_active, created_by, created_at, updated_at`

func scanWorkflow(s rowScanner, w *models.Workflow, extra ...any) error {
	var cfg []byte
	dest := append([]any{
		&w.ID, &w.Name, &w.Description, &w.Type, &w.WebhookURL, &w.HasKnowledgeBase,
		&cfg, &w.IsActive, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt,
	}, extra...)
	if err := s.Scan(dest...); err != nil {
		return err
	}
	w.Config = cfg
	return nil
}

func workflowConfig(w *models.Workflow) any {
	if len(w.Config) == 0 {
		return "{}"
	}
	return string(w.Config)
}

func (c *DatabaseClient) CreateWorkflow(ctx context.Context, w *models.Workflow) error {
	if w == nil {
		return errors.New("nil workflow")
	}
	const q = `
		INSERT INTO workflows (id, name, description, type, webhook_url, has_knowledge_base, config, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	return c.q.QueryRowContext(ctx, q,
		w.ID, w.Name, w.Description, w.Type, w.WebhookURL, w.HasKnowledgeBase, workflowConfig(w), w.IsActive, w.CreatedBy,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
}

func (c *DatabaseClient) GetWorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	if !validID(id) {
		return nil, nil
	}
	q := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`

	var w models.Workflow
	err := scanWorkflow(c.q.QueryRowContext(ctx, q, id), &w)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWorkflows pages through every workflow, newest first.
func (c *DatabaseClient) ListWorkflows(ctx context.Context, f core.WorkflowFilter) ([]models.Workflow, int, error) {
	limit, offset := pageBounds(f.Page)
	q := `
		SELECT ` + workflowColumns + `, count(*) OVER ()
		FROM workflows
		WHERE ($1 = '' OR type = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`
	rows, err := c.q.QueryContext(ctx, q, string(f.Type), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.Workflow{}
	total := 0
	for rows.Next() {
		var w models.Workflow
		if err := scanWorkflow(rows, &w, &total); err != nil {
			return nil, 0, err
		}
		out = append(out, w)
	}
	return out, total, rows.Err()
}

func (c *DatabaseClient) UpdateWorkflow(ctx context.Context, w *models.Workflow) (bool, error) {
	if w == nil {
		return false, errors.New("nil workflow")
	}
	if !validID(w.ID) {
		return false, nil
	}
	const q = `
		UPDATE workflows
		SET name = $2, description = $3, type = $4, webhook_url = $5, has_knowledge_base = $6,
			config = $7, is_active = $8, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := c.q.QueryRowContext(ctx, q,
		w.ID, w.Name, w.Description, w.Type, w.WebhookURL, w.HasKnowledgeBase, workflowConfig(w), w.IsActive,
	).Scan(&w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// DeleteWorkflow removes the workflow; its documents, knowledge-base rows,
// assignments and trigger logs go with it.
func (c *DatabaseClient) DeleteWorkflow(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	return c.affectedOne(ctx, `DELETE FROM workflows WHERE id = $1`, id)
}

func (c *DatabaseClient) ListUserWorkflows(ctx context.Context, userID string) ([]models.Workflow, error) {
	if !validID(userID) {
		return []models.Workflow{}, nil
	}
	const q = `
		SELECT w.id, w.name, w.description, w.type, w.webhook_url, w.has_knowledge_base, w.config,
			w.is_active, w.created_by, w.created_at, w.updated_at
		FROM workflows w
		JOIN user_workflows uw ON uw.workflow_id = w.id
		WHERE uw.user_id = $1 AND w.is_active
		ORDER BY w.name, w.id
	`
	rows, err := c.q.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Workflow{}
	for rows.Next() {
		var w models.Workflow
		if err := scanWorkflow(rows, &w); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// AssignUser grants access; assigning again refreshes assigned_by and assigned_at.
func (c *DatabaseClient) AssignUser(ctx context.Context, a *models.Assignment) error {
	if a == nil {
		return errors.New("nil assignment")
	}
	const q = `
		INSERT INTO user_workflows (user_id, workflow_id, assigned_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, workflow_id)
		DO UPDATE SET assigned_by = EXCLUDED.assigned_by, assigned_at = now()
		RETURNING assigned_at
	`
	return c.q.QueryRowContext(ctx, q, a.UserID, a.WorkflowID, a.AssignedBy).Scan(&a.AssignedAt)
}

func (c *DatabaseClient) UnassignUser(ctx context.Context, userID, workflowID string) (bool, error) {
	if !validID(userID) || !validID(workflowID) {
		return false, nil
	}
	return c.affectedOne(ctx, `DELETE FROM user_workflows WHERE user_id = $1 AND workflow_id = $2`, userID, workflowID)
}

func (c *DatabaseClient) ListAssignments(ctx context.Context, workflowID string) ([]models.Assignment, error) {
	if !validID(workflowID) {
		return []models.Assignment{}, nil
	}
	const q = `
		SELECT uw.user_id, uw.workflow_id, uw.assigned_by, uw.assigned_at, u.email, u.first_name, u.last_name
		FROM user_workflows uw
		JOIN users u ON u.id = uw.user_id
		WHERE uw.workflow_id = $1
		ORDER BY uw.assigned_at DESC
	`
	rows, err := c.q.QueryContext(ctx, q, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Assignment{}
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.UserID, &a.WorkflowID, &a.AssignedBy, &a.AssignedAt, &a.Email, &a.FirstName, &a.LastName); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) IsUserAssigned(ctx context.Context, userID, workflowID string) (bool, error) {
	if !validID(userID) || !validID(workflowID) {
		return false, nil
	}
	const q = `SELECT EXISTS (SELECT 1 FROM user_workflows WHERE user_id = $1 AND workflow_id = $2)`
	var ok bool
	if err := c.q.QueryRowContext(ctx, q, userID, workflowID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
