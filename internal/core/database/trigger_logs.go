package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/models"
)

const triggerLogSelect = `
	SELECT t.id, t.workflow_id, COALESCE(t.user_id::text, ''), t.payload, t.response, t.status_code, t.created_at,
		w.name, COALESCE(u.email, '')
	FROM trigger_logs t
	JOIN workflows w ON w.id = t.workflow_id
	LEFT JOIN users u ON u.id = t.user_id
`

func scanTriggerLog(s rowScanner, l *models.TriggerLog, extra ...any) error {
	var payload, response []byte
	dest := append([]any{
		&l.ID, &l.WorkflowID, &l.UserID, &payload, &response, &l.StatusCode, &l.CreatedAt,
		&l.WorkflowName, &l.UserEmail,
	}, extra...)
	if err := s.Scan(dest...); err != nil {
		return err
	}
	l.Payload, l.Response = payload, response
	return nil
}

func (c *DatabaseClient) CreateTriggerLog(ctx context.Context, entry *models.TriggerLog) error {
	if entry == nil {
		return errors.New("nil trigger log")
	}
	const q = `
		INSERT INTO trigger_logs (id, workflow_id, user_id, payload, response, status_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	return c.q.QueryRowContext(ctx, q,
		entry.ID, entry.WorkflowID, entry.UserID, jsonParam(entry.Payload), jsonParam(entry.Response), entry.StatusCode,
	).Scan(&entry.CreatedAt)
}

func (c *DatabaseClient) GetTriggerLogByID(ctx context.Context, id string) (*models.TriggerLog, error) {
	if !validID(id) {
		return nil, nil
	}
	var l models.TriggerLog
	err := scanTriggerLog(c.q.QueryRowContext(ctx, triggerLogSelect+` WHERE t.id = $1`, id), &l)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListTriggerLogs pages through the log newest first. List rows leave out
// payload and response; GetTriggerLogByID returns them.
func (c *DatabaseClient) ListTriggerLogs(ctx context.Context, f core.TriggerLogFilter) ([]models.TriggerLog, int, error) {
	if (f.WorkflowID != "" && !validID(f.WorkflowID)) || (f.VisibleTo != "" && !validID(f.VisibleTo)) {
		return []models.TriggerLog{}, 0, nil
	}
	limit, offset := pageBounds(f.Page)
	q := `
		SELECT t.id, t.workflow_id, COALESCE(t.user_id::text, ''), NULL::jsonb, NULL::jsonb, t.status_code, t.created_at,
			w.name, COALESCE(u.email, ''), count(*) OVER ()
		FROM trigger_logs t
		JOIN workflows w ON w.id = t.workflow_id
		LEFT JOIN users u ON u.id = t.user_id
		WHERE ($1 = '' OR t.workflow_id::text = $1)
			AND ($2 = '' OR t.workflow_id IN (SELECT workflow_id FROM user_workflows WHERE user_id::text = $2))
		ORDER BY t.created_at DESC, t.id
		LIMIT $3 OFFSET $4
	`
	rows, err := c.q.QueryContext(ctx, q, f.WorkflowID, f.VisibleTo, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.TriggerLog{}
	total := 0
	for rows.Next() {
		var l models.TriggerLog
		if err := scanTriggerLog(rows, &l, &total); err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

// jsonParam sends raw JSON as text so pgx lets Postgres cast it to jsonb.
func jsonParam(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
