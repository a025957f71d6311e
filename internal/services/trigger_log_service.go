package services

import (
	"context"
	"fmt"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/models"
)

// TriggerLogService reads the trigger log. Admins see every entry; users see
// entries of the workflows they are assigned to.
type TriggerLogService struct {
	store core.WorkflowStore
}

func NewTriggerLogService(store core.WorkflowStore) *TriggerLogService {
	return &TriggerLogService{store: store}
}

type TriggerLogPage struct {
	Logs  []models.TriggerLog `json:"logs"`
	Total int                 `json:"total"`
}

func (s *TriggerLogService) List(ctx context.Context, actor Actor, f core.TriggerLogFilter) (*TriggerLogPage, error) {
	f.VisibleTo = ""
	if !actor.IsAdmin() {
		f.VisibleTo = actor.UserID
	}
	logs, total, err := s.store.ListTriggerLogs(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list trigger logs: %w", err)
	}
	return &TriggerLogPage{Logs: logs, Total: total}, nil
}

func (s *TriggerLogService) Get(ctx context.Context, actor Actor, id string) (*models.TriggerLog, error) {
	l, err := s.store.GetTriggerLogByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load trigger log: %w", err)
	}
	if l == nil {
		return nil, fmt.Errorf("trigger log %s: %w", id, ErrNotFound)
	}
	if actor.IsAdmin() {
		return l, nil
	}
	ok, err := s.store.IsUserAssigned(ctx, actor.UserID, l.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("check assignment: %w", err)
	}
	if !ok {
		return nil, ErrForbidden
	}
	return l, nil
}
