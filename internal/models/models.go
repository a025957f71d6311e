package models

import (
	"encoding/json"
	"time"
)

// Role is the access level of a dashboard user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// WorkflowType is either a hosted chat assistant or a parameterized trigger.
type WorkflowType string

const (
	WorkflowChat    WorkflowType = "chat"
	WorkflowTrigger WorkflowType = "trigger"
)

// Workflow is an automation-engine endpoint administrators expose to users.
type Workflow struct {
	ID               string          `db:"id" json:"id"`
	Name             string          `db:"name" json:"name"`
	Description      *string         `db:"description" json:"description"`
	Type             WorkflowType    `db:"type" json:"type"`
	WebhookURL       string          `db:"webhook_url" json:"webhook_url"`
	HasKnowledgeBase bool            `db:"has_knowledge_base" json:"has_knowledge_base"`
	Config           json.RawMessage `db:"config" json:"config"`
	IsActive         bool            `db:"is_active" json:"is_active"`
	CreatedBy        *string         `db:"created_by" json:"created_by"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// Assignment grants a user access to a workflow. The user fields are filled
// when assignments are listed.
type Assignment struct {
	UserID     string    `db:"user_id" json:"user_id"`
	WorkflowID string    `db:"workflow_id" json:"workflow_id"`
	AssignedBy *string   `db:"assigned_by" json:"assigned_by"`
	AssignedAt time.Time `db:"assigned_at" json:"assigned_at"`

	Email     string `db:"email" json:"email,omitempty"`
	FirstName string `db:"first_name" json:"first_name,omitempty"`
	LastName  string `db:"last_name" json:"last_name,omitempty"`
}

// FileKind is the declared format of an uploaded document.
type FileKind string

const (
	FileKindPDF  FileKind = "pdf"
	FileKindDOCX FileKind = "docx"
	FileKindTXT  FileKind = "txt"
	FileKindMD   FileKind = "md"
)

// SupportedFileKinds lists every kind the ingestion pipeline can extract.
var SupportedFileKinds = []FileKind{FileKindPDF, FileKindDOCX, FileKindTXT, FileKindMD}

// Valid reports whether k is one of SupportedFileKinds.
func (k FileKind) Valid() bool {
	for _, s := range SupportedFileKinds {
		if k == s {
			return true
		}
	}
	return false
}

// DocumentStatus is the ingestion lifecycle state of a document.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentReady      DocumentStatus = "ready"
	DocumentError      DocumentStatus = "error"
)

// Terminal reports whether no further transition happens without a new trigger.
func (s DocumentStatus) Terminal() bool {
	return s == DocumentReady || s == DocumentError
}

// Document represents one uploaded source file bound to a workflow.
type Document struct {
	ID            string         `db:"id" json:"id"`
	WorkflowID    string         `db:"workflow_id" json:"workflow_id"`
	UploadedBy    string         `db:"uploaded_by" json:"uploaded_by"`
	Name          string         `db:"name" json:"name"`
	FileType      FileKind       `db:"file_type" json:"file_type"`
	StoragePath   string         `db:"storage_path" json:"storage_path"` // object key inside the documents bucket
	FileSizeBytes *int64         `db:"file_size_bytes" json:"file_size_bytes"`
	Status        DocumentStatus `db:"status" json:"status"` // pending | processing | ready | error
	ErrorMessage  *string        `db:"error_message" json:"error_message"`
	ChunkCount    *int           `db:"chunk_count" json:"chunk_count"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// ChunkMetadata is stored as jsonb next to each knowledge-base row. The keys are
// read by the automation engine's vector store node, so they must stay stable.
type ChunkMetadata struct {
	DocID        string   `json:"doc_id"`
	FileID       string   `json:"file_id"`
	ChunkIndex   int      `json:"chunk_index"`
	WorkflowID   string   `json:"workflow_id"`
	DocumentName string   `json:"document_name"`
	FileType     FileKind `json:"file_type"`
}

// KnowledgeChunk is one retrievable unit derived from a Document.
type KnowledgeChunk struct {
	ID         string        `db:"id" json:"id"`
	WorkflowID string        `db:"workflow_id" json:"workflow_id"`
	DocumentID string        `db:"document_id" json:"document_id"`
	Content    string        `db:"content" json:"content"`
	Metadata   ChunkMetadata `db:"metadata" json:"metadata"`
	Embedding  []float32     `db:"embedding" json:"-"` // pgvector column
	Distance   float64       `db:"-" json:"distance,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// TriggerLog records one forwarded workflow invocation.
type TriggerLog struct {
	ID         string          `db:"id" json:"id"`
	WorkflowID string          `db:"workflow_id" json:"workflow_id"`
	UserID     string          `db:"user_id" json:"user_id"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	Response   json.RawMessage `db:"response" json:"response"`
	StatusCode int             `db:"status_code" json:"status_code"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`

	// Joined for display; empty once the workflow or user is gone.
	WorkflowName string `db:"workflow_name" json:"workflow_name,omitempty"`
	UserEmail    string `db:"user_email" json:"user_email,omitempty"`
}
