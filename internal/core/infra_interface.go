package core

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/markdave123-py/flowdesk/internal/models"
)

var (
	// ErrObjectNotFound is returned by ObjectClient.GetFile when the key does not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrRunSuperseded is returned when a status write names a run that no
	// longer holds the document, because its lease expired and it was
	// claimed again or it already finished.
	ErrRunSuperseded = errors.New("processing run no longer holds the document")

	// ErrReferenced is returned when a row cannot be deleted because other
	// rows still point at it.
	ErrReferenced = errors.New("row is still referenced")
)

// Page bounds a list query. Total counts ignore it.
type Page struct {
	Limit  int
	Offset int
}

type UserFilter struct {
	Role models.Role // empty matches every role
	Page
}

type WorkflowFilter struct {
	Type models.WorkflowType // empty matches every type
	Page
}

// TriggerLogFilter narrows the trigger log. VisibleTo restricts the result to
// workflows that user is assigned to; empty means every workflow.
type TriggerLogFilter struct {
	WorkflowID string
	VisibleTo  string
	Page
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) (err error)
	GetUserByEmail(ctx context.Context, email string) (user *models.User, err error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, f UserFilter) ([]models.User, int, error)
	UpdateUserRole(ctx context.Context, id string, role models.Role) (bool, error)
	DeleteUser(ctx context.Context, id string) (bool, error)
}

type WorkflowStore interface {
	CreateWorkflow(ctx context.Context, w *models.Workflow) error
	GetWorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	ListWorkflows(ctx context.Context, f WorkflowFilter) ([]models.Workflow, int, error)
	UpdateWorkflow(ctx context.Context, w *models.Workflow) (bool, error)
	DeleteWorkflow(ctx context.Context, id string) (bool, error)

	// ListUserWorkflows returns the active workflows assigned to the user, by name.
	ListUserWorkflows(ctx context.Context, userID string) ([]models.Workflow, error)
	AssignUser(ctx context.Context, a *models.Assignment) error
	UnassignUser(ctx context.Context, userID, workflowID string) (bool, error)
	ListAssignments(ctx context.Context, workflowID string) ([]models.Assignment, error)
	IsUserAssigned(ctx context.Context, userID, workflowID string) (bool, error)

	CreateTriggerLog(ctx context.Context, entry *models.TriggerLog) error
	GetTriggerLogByID(ctx context.Context, id string) (*models.TriggerLog, error)
	ListTriggerLogs(ctx context.Context, f TriggerLogFilter) ([]models.TriggerLog, int, error)
}

// DocumentStore owns the documents table. Getters return (nil, nil) for a
// missing row, including an id that is not a UUID. The Mark* methods keep
// status, chunk_count and error_message consistent with each other.
//
// A document in processing is leased: the claim sets a deadline, and the
// pipeline run that starts stamps its run id on the row. Only that run may
// finish the document. An expired lease can be claimed again.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByWorkflow(ctx context.Context, workflowID string) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// ClaimDocumentForProcessing moves the document to processing unless a
	// live lease holds it. It reports false when one does.
	ClaimDocumentForProcessing(ctx context.Context, id string) (bool, error)
	// StartProcessingRun stamps runID on a claimed document. It reports false
	// when the document is not claimed or another live run holds it.
	StartProcessingRun(ctx context.Context, id, runID string) (bool, error)
	// MarkDocumentReady and MarkDocumentError release the lease held by runID.
	// An empty runID matches a claim no run has started. They return
	// ErrRunSuperseded when runID does not hold the document.
	MarkDocumentReady(ctx context.Context, id, runID string, chunkCount int) error
	MarkDocumentError(ctx context.Context, id, runID, message string) error
	// FailExpiredRuns moves documents whose lease has run out to error.
	FailExpiredRuns(ctx context.Context, message string) (int64, error)
}

// KnowledgeStore owns the knowledge_base table. Rows are addressed by the
// metadata file_id of their source document, scoped to the workflow.
type KnowledgeStore interface {
	DeleteDocumentChunks(ctx context.Context, workflowID, documentID string) (int64, error)
	InsertKnowledgeChunks(ctx context.Context, chunks []models.KnowledgeChunk) error
	CountDocumentChunks(ctx context.Context, workflowID, documentID string) (int, error)
	SearchKnowledgeChunks(ctx context.Context, workflowID string, queryVec []float32, limit int) ([]models.KnowledgeChunk, error)

	// RunInTx calls fn with a store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(tx KnowledgeStore) error) error
}

// DbClient defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	UserStore
	WorkflowStore
	DocumentStore
	KnowledgeStore

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
// The bucket is bound when the client is constructed.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data io.Reader, contentType string) error
	GetFile(ctx context.Context, key string) ([]byte, error)
	DeleteFiles(ctx context.Context, keys ...string) error
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
}
