package handlers

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/core/automation"
	"github.com/markdave123-py/flowdesk/internal/core/ingestion_engine"
	"github.com/markdave123-py/flowdesk/internal/models"
	"github.com/markdave123-py/flowdesk/internal/services"
)

type MockDocs struct {
	mock.Mock
	uploaded map[string]string
}

func (m *MockDocs) InitiateUpload(ctx context.Context, actor services.Actor, workflowID string, req services.UploadRequest) (*services.UploadTicket, error) {
	args := m.Called(ctx, actor, workflowID, req)
	t, _ := args.Get(0).(*services.UploadTicket)
	return t, args.Error(1)
}

func (m *MockDocs) UploadFiles(ctx context.Context, actor services.Actor, workflowID string, files []services.UploadFile) ([]services.UploadResult, error) {
	m.uploaded = map[string]string{}
	for _, f := range files {
		b, _ := io.ReadAll(f.Body)
		m.uploaded[f.Name] = string(b)
	}
	args := m.Called(ctx, actor, workflowID, len(files))
	r, _ := args.Get(0).([]services.UploadResult)
	return r, args.Error(1)
}

func (m *MockDocs) TriggerProcessing(ctx context.Context, actor services.Actor, documentID string) error {
	return m.Called(ctx, actor, documentID).Error(0)
}

func (m *MockDocs) ProcessNow(ctx context.Context, documentID string) (ingestion_engine.Result, error) {
	args := m.Called(ctx, documentID)
	return args.Get(0).(ingestion_engine.Result), args.Error(1)
}

func (m *MockDocs) Status(ctx context.Context, actor services.Actor, documentID string) (*services.StatusView, error) {
	args := m.Called(ctx, actor, documentID)
	v, _ := args.Get(0).(*services.StatusView)
	return v, args.Error(1)
}

func (m *MockDocs) List(ctx context.Context, actor services.Actor, workflowID string) ([]models.Document, error) {
	args := m.Called(ctx, actor, workflowID)
	d, _ := args.Get(0).([]models.Document)
	return d, args.Error(1)
}

func (m *MockDocs) Delete(ctx context.Context, actor services.Actor, documentID string) error {
	return m.Called(ctx, actor, documentID).Error(0)
}

type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) Signup(ctx context.Context, in services.SignupInput) (*models.User, error) {
	args := m.Called(ctx, in)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockUsers) Login(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

type MockWorkflows struct {
	mock.Mock
}

func (m *MockWorkflows) Trigger(ctx context.Context, actor services.Actor, workflowID string, params map[string]any) (*automation.Response, error) {
	args := m.Called(ctx, actor, workflowID, params)
	r, _ := args.Get(0).(*automation.Response)
	return r, args.Error(1)
}

func (m *MockWorkflows) Mine(ctx context.Context, actor services.Actor) ([]models.Workflow, error) {
	args := m.Called(ctx, actor)
	w, _ := args.Get(0).([]models.Workflow)
	return w, args.Error(1)
}

func (m *MockWorkflows) Get(ctx context.Context, actor services.Actor, workflowID string) (*models.Workflow, error) {
	args := m.Called(ctx, actor, workflowID)
	w, _ := args.Get(0).(*models.Workflow)
	return w, args.Error(1)
}

type MockKnowledge struct {
	mock.Mock
}

func (m *MockKnowledge) Search(ctx context.Context, actor services.Actor, workflowID, query string, limit int) ([]models.KnowledgeChunk, error) {
	args := m.Called(ctx, actor, workflowID, query, limit)
	c, _ := args.Get(0).([]models.KnowledgeChunk)
	return c, args.Error(1)
}

type staticIssuer string

func (s staticIssuer) IssueToken(userID string, role models.Role) (string, error) {
	return string(s) + ":" + userID + ":" + string(role), nil
}

type MockWorkflowAdmin struct {
	mock.Mock
}

func (m *MockWorkflowAdmin) Create(ctx context.Context, actor services.Actor, in services.WorkflowInput) (*models.Workflow, error) {
	args := m.Called(ctx, actor, in)
	w, _ := args.Get(0).(*models.Workflow)
	return w, args.Error(1)
}

func (m *MockWorkflowAdmin) Update(ctx context.Context, actor services.Actor, workflowID string, in services.WorkflowInput) (*models.Workflow, error) {
	args := m.Called(ctx, actor, workflowID, in)
	w, _ := args.Get(0).(*models.Workflow)
	return w, args.Error(1)
}

func (m *MockWorkflowAdmin) Get(ctx context.Context, actor services.Actor, workflowID string) (*models.Workflow, error) {
	args := m.Called(ctx, actor, workflowID)
	w, _ := args.Get(0).(*models.Workflow)
	return w, args.Error(1)
}

func (m *MockWorkflowAdmin) List(ctx context.Context, actor services.Actor, f core.WorkflowFilter) (*services.WorkflowPage, error) {
	args := m.Called(ctx, actor, f)
	p, _ := args.Get(0).(*services.WorkflowPage)
	return p, args.Error(1)
}

func (m *MockWorkflowAdmin) Delete(ctx context.Context, actor services.Actor, workflowID string) error {
	return m.Called(ctx, actor, workflowID).Error(0)
}

func (m *MockWorkflowAdmin) Assign(ctx context.Context, actor services.Actor, workflowID, userID string) (*models.Assignment, error) {
	args := m.Called(ctx, actor, workflowID, userID)
	a, _ := args.Get(0).(*models.Assignment)
	return a, args.Error(1)
}

func (m *MockWorkflowAdmin) Unassign(ctx context.Context, actor services.Actor, workflowID, userID string) error {
	return m.Called(ctx, actor, workflowID, userID).Error(0)
}

func (m *MockWorkflowAdmin) Assignments(ctx context.Context, actor services.Actor, workflowID string) ([]models.Assignment, error) {
	args := m.Called(ctx, actor, workflowID)
	a, _ := args.Get(0).([]models.Assignment)
	return a, args.Error(1)
}

type MockUserAdmin struct {
	mock.Mock
}

func (m *MockUserAdmin) CreateUser(ctx context.Context, actor services.Actor, in services.SignupInput, role models.Role) (*models.User, error) {
	args := m.Called(ctx, actor, in, role)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockUserAdmin) GetUser(ctx context.Context, actor services.Actor, id string) (*models.User, error) {
	args := m.Called(ctx, actor, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockUserAdmin) ListUsers(ctx context.Context, actor services.Actor, f core.UserFilter) (*services.UserPage, error) {
	args := m.Called(ctx, actor, f)
	p, _ := args.Get(0).(*services.UserPage)
	return p, args.Error(1)
}

func (m *MockUserAdmin) UpdateRole(ctx context.Context, actor services.Actor, id string, role models.Role) (*models.User, error) {
	args := m.Called(ctx, actor, id, role)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockUserAdmin) DeleteUser(ctx context.Context, actor services.Actor, id string) error {
	return m.Called(ctx, actor, id).Error(0)
}

type MockTriggerLogs struct {
	mock.Mock
}

func (m *MockTriggerLogs) List(ctx context.Context, actor services.Actor, f core.TriggerLogFilter) (*services.TriggerLogPage, error) {
	args := m.Called(ctx, actor, f)
	p, _ := args.Get(0).(*services.TriggerLogPage)
	return p, args.Error(1)
}

func (m *MockTriggerLogs) Get(ctx context.Context, actor services.Actor, id string) (*models.TriggerLog, error) {
	args := m.Called(ctx, actor, id)
	l, _ := args.Get(0).(*models.TriggerLog)
	return l, args.Error(1)
}
