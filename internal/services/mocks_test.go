package services

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/core/automation"
	"github.com/markdave123-py/flowdesk/internal/core/ingestion_engine"
	"github.com/markdave123-py/flowdesk/internal/models"
)

type MockStore struct {
	mock.Mock
}

var _ core.DbClient = (*MockStore)(nil)

func (m *MockStore) CreateUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockStore) ListUsers(ctx context.Context, f core.UserFilter) ([]models.User, int, error) {
	args := m.Called(ctx, f)
	users, _ := args.Get(0).([]models.User)
	return users, args.Int(1), args.Error(2)
}

func (m *MockStore) UpdateUserRole(ctx context.Context, id string, role models.Role) (bool, error) {
	args := m.Called(ctx, id, role)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) DeleteUser(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) CreateWorkflow(ctx context.Context, w *models.Workflow) error {
	return m.Called(ctx, w).Error(0)
}

func (m *MockStore) ListWorkflows(ctx context.Context, f core.WorkflowFilter) ([]models.Workflow, int, error) {
	args := m.Called(ctx, f)
	wfs, _ := args.Get(0).([]models.Workflow)
	return wfs, args.Int(1), args.Error(2)
}

func (m *MockStore) UpdateWorkflow(ctx context.Context, w *models.Workflow) (bool, error) {
	args := m.Called(ctx, w)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) DeleteWorkflow(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) ListUserWorkflows(ctx context.Context, userID string) ([]models.Workflow, error) {
	args := m.Called(ctx, userID)
	wfs, _ := args.Get(0).([]models.Workflow)
	return wfs, args.Error(1)
}

func (m *MockStore) AssignUser(ctx context.Context, a *models.Assignment) error {
	return m.Called(ctx, a).Error(0)
}

func (m *MockStore) UnassignUser(ctx context.Context, userID, workflowID string) (bool, error) {
	args := m.Called(ctx, userID, workflowID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) ListAssignments(ctx context.Context, workflowID string) ([]models.Assignment, error) {
	args := m.Called(ctx, workflowID)
	as, _ := args.Get(0).([]models.Assignment)
	return as, args.Error(1)
}

func (m *MockStore) GetTriggerLogByID(ctx context.Context, id string) (*models.TriggerLog, error) {
	args := m.Called(ctx, id)
	l, _ := args.Get(0).(*models.TriggerLog)
	return l, args.Error(1)
}

func (m *MockStore) ListTriggerLogs(ctx context.Context, f core.TriggerLogFilter) ([]models.TriggerLog, int, error) {
	args := m.Called(ctx, f)
	logs, _ := args.Get(0).([]models.TriggerLog)
	return logs, args.Int(1), args.Error(2)
}

func (m *MockStore) GetWorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)
	wf, _ := args.Get(0).(*models.Workflow)
	return wf, args.Error(1)
}

func (m *MockStore) IsUserAssigned(ctx context.Context, userID, workflowID string) (bool, error) {
	args := m.Called(ctx, userID, workflowID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) CreateTriggerLog(ctx context.Context, entry *models.TriggerLog) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *MockStore) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	args := m.Called(ctx, id)
	doc, _ := args.Get(0).(*models.Document)
	return doc, args.Error(1)
}

func (m *MockStore) ListDocumentsByWorkflow(ctx context.Context, workflowID string) ([]models.Document, error) {
	args := m.Called(ctx, workflowID)
	docs, _ := args.Get(0).([]models.Document)
	return docs, args.Error(1)
}

func (m *MockStore) DeleteDocument(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) ClaimDocumentForProcessing(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) StartProcessingRun(ctx context.Context, id, runID string) (bool, error) {
	args := m.Called(ctx, id, runID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) MarkDocumentReady(ctx context.Context, id, runID string, chunkCount int) error {
	return m.Called(ctx, id, runID, chunkCount).Error(0)
}

func (m *MockStore) MarkDocumentError(ctx context.Context, id, runID, message string) error {
	return m.Called(ctx, id, runID, message).Error(0)
}

func (m *MockStore) FailExpiredRuns(ctx context.Context, message string) (int64, error) {
	args := m.Called(ctx, message)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) DeleteDocumentChunks(ctx context.Context, workflowID, documentID string) (int64, error) {
	args := m.Called(ctx, workflowID, documentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) InsertKnowledgeChunks(ctx context.Context, chunks []models.KnowledgeChunk) error {
	return m.Called(ctx, chunks).Error(0)
}

func (m *MockStore) CountDocumentChunks(ctx context.Context, workflowID, documentID string) (int, error) {
	args := m.Called(ctx, workflowID, documentID)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) SearchKnowledgeChunks(ctx context.Context, workflowID string, queryVec []float32, limit int) ([]models.KnowledgeChunk, error) {
	args := m.Called(ctx, workflowID, queryVec, limit)
	chunks, _ := args.Get(0).([]models.KnowledgeChunk)
	return chunks, args.Error(1)
}

func (m *MockStore) RunInTx(ctx context.Context, fn func(tx core.KnowledgeStore) error) error {
	return fn(m)
}

func (m *MockStore) Close() error { return nil }

type MockObjects struct {
	mock.Mock
}

func (m *MockObjects) UploadFile(ctx context.Context, key string, data io.Reader, contentType string) error {
	return m.Called(ctx, key, data, contentType).Error(0)
}

func (m *MockObjects) GetFile(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockObjects) DeleteFiles(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *MockObjects) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, contentType, ttl)
	return args.String(0), args.Error(1)
}

type MockTrigger struct {
	mock.Mock
}

func (m *MockTrigger) Trigger(ctx context.Context, documentID string) error {
	return m.Called(ctx, documentID).Error(0)
}

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) ProcessDocument(ctx context.Context, documentID string) ingestion_engine.Result {
	return m.Called(ctx, documentID).Get(0).(ingestion_engine.Result)
}

type MockForwarder struct {
	mock.Mock
}

func (m *MockForwarder) Forward(ctx context.Context, url string, payload any) (*automation.Response, error) {
	args := m.Called(ctx, url, payload)
	resp, _ := args.Get(0).(*automation.Response)
	return resp, args.Error(1)
}

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	v, _ := args.Get(0).([][]float32)
	return v, args.Error(1)
}
