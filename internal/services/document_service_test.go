package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/flowdesk/internal/core/ingestion_engine"
	"github.com/markdave123-py/flowdesk/internal/models"
)

var (
	alice = Actor{UserID: "u-alice", Role: models.RoleUser}
	bob   = Actor{UserID: "u-bob", Role: models.RoleUser}
	admin = Actor{UserID: "u-admin", Role: models.RoleAdmin}

	fixedNow = time.UnixMilli(1700000000000)
)

type docDeps struct {
	store   *MockStore
	objects *MockObjects
	trigger *MockTrigger
	proc    *MockProcessor
	svc     *DocumentService
}

func newDocDeps() docDeps {
	d := docDeps{
		store:   new(MockStore),
		objects: new(MockObjects),
		trigger: new(MockTrigger),
		proc:    new(MockProcessor),
	}
	d.svc = NewDocumentService(d.store, d.objects, d.trigger, d.proc, 10<<20, 5)
	d.svc.now = func() time.Time { return fixedNow }
	return d
}

func activeWorkflow() *models.Workflow {
	return &models.Workflow{ID: "wf-1", Name: "Support", WebhookURL: "http://engine/hook", IsActive: true}
}

func aliceDoc() *models.Document {
	return &models.Document{
		ID: "doc-1", WorkflowID: "wf-1", UploadedBy: alice.UserID, Name: "guide.pdf",
		FileType: models.FileKindPDF, StoragePath: "wf-1/u-alice/1700000000000_guide.pdf", Status: models.DocumentReady,
	}
}

func TestFileKindOf(t *testing.T) {
	tests := []struct {
		name, declared string
		want           models.FileKind
		wantErr        bool
	}{
		{"report.PDF", "", models.FileKindPDF, false},
		{"notes.md", "", models.FileKindMD, false},
		{"whatever", ".docx", models.FileKindDOCX, false},
		{"whatever", "TXT", models.FileKindTXT, false},
		{"sheet.xlsx", "", "", true},
		{"noext", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name+tt.declared, func(t *testing.T) {
			got, err := FileKindOf(tt.name, tt.declared)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFileType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitiateUpload_Success(t *testing.T) {
	d := newDocDeps()
	d.store.On("GetWorkflowByID", mock.Anything, "wf-1").Return(activeWorkflow(), nil)
	d.store.On("IsUserAssigned", mock.Anything, alice.UserID, "wf-1").Return(true, nil)
	d.objects.On("PresignUpload", mock.Anything, "wf-1/u-alice/1700000000000_guide.pdf", "application/pdf", uploadURLTTL).
		Return("https://s3.test/signed", nil)
	d.store.On("CreateDocument", mock.Anything, mock.MatchedBy(func(doc *models.Document) bool {
		return doc.Status == models.DocumentPending &&
			doc.UploadedBy == alice.UserID &&
			doc.StoragePath == "wf-1/u-alice/1700000000000_guide.pdf" &&
			doc.FileSizeBytes != nil && *doc.FileSizeBytes == 2048
	})).Return(nil)

	ticket, err := d.svc.InitiateUpload(context.Background(), alice, "wf-1", UploadRequest{Name: "guide.pdf", Size: 2048})
	require.NoError(t, err)

	assert.NotEmpty(t, ticket.DocumentID)
	assert.Equal(t, "https://s3.test/signed", ticket.UploadURL)
	assert.Equal(t, fixedNow.Add(uploadURLTTL), ticket.ExpiresAt)
	d.store.AssertExpectations(t)
	d.objects.AssertExpectations(t)
}

func TestInitiateUpload_Rejections(t *testing.T) {
	t.Run("unsupported kind", func(t *testing.T) {
		d := newDocDeps()
		_, err := d.svc.InitiateUpload(context.Background(), alice, "wf-1", UploadRequest{Name: "a.exe", Size: 1})
		assert.ErrorIs(t, err, ErrUnsupportedFileType)
		d.store.AssertNotCalled(t, "GetWorkflowByID", mock.Anything, mock.Anything)
	})

	t.Run("too large", func(t *testing.T) {
		d := newDocDeps()
		_, err := d.svc.InitiateUpload(context.Background(), alice, "wf-1", UploadRequest{Name: "a.pdf", Size: 11 << 20})
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})

	t.Run("unknown workflow", func(t *testing.T) {
		d := newDocDeps()
		d.store.On("GetWorkflowByID", mock.Anything, "wf-x").Return(nil, nil)
		_, err := d.svc.InitiateUpload(context.Background(), alice, "wf-x", UploadRequest{Name: "a.pdf", Size: 1})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("not assigned", func(t *testing.T) {
		d := newDocDeps()
		d.store.On("GetWorkflowByID", mock.Anything, "wf-1").Return(activeWorkflow(), nil)
		d.store.On("IsUserAssigned", mock.Anything, bob.UserID, "wf-1").Return(false, nil)
		_, err := d.svc.InitiateUpload(context.Background(), bob, "wf-1", UploadRequest{Name: "a.pdf", Size: 1})
		assert.ErrorIs(t, err, ErrForbidden)
		d.objects.AssertNotCalled(t, "PresignUpload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestInitiateUpload_AdminSkipsAssignment(t *testing.T) {
	d := newDocDeps()
	d.store.On("GetWorkflowByID", mock.Anything, "wf-1").Return(activeWorkflow(), nil)
	d.objects.On("PresignUpload", mock.Anything, mock.Anything, "text/markdown", uploadURLTTL).Return("https://s3.test/x", nil)
	d.store.On("CreateDocument", mock.Anything, mock.Anything).Return(nil)

	_, err := d.svc.InitiateUpload(context.Background(), admin, "wf-1", UploadRequest{Name: "readme.md", Size: 10})
	require.NoError(t, err)
	d.store.AssertNotCalled(t, "IsUserAssigned", mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadFiles_StoresRecordsAndTriggersEach(t *testing.T) {
	d := newDocDeps()
	d.store.On("GetWorkflowByID", mock.Anything, "wf-1").Return(activeWorkflow(), nil)
	d.store.On("IsUserAssigned", mock.Anything, alice.UserID, "wf-1").Return(true, nil)
	d.objects.On("UploadFile", mock.Anything, "wf-1/u-alice/1700000000000_a.txt", mock.Anything, "text/plain").Return(nil)
	d.objects.On("UploadFile", mock.Anything, "wf-1/u-alice/1700000000000_b.pdf", mock.Anything, "application/pdf").Return(nil)
	d.store.On("CreateDocument", mock.Anything, mock.Anything).Return(nil)
	d.store.On("ClaimDocumentForProcessing", mock.Anything, mock.Anything).Return(true, nil)
	d.trigger.On("Trigger", mock.Anything, mock.Anything).Return(nil)

	files := []UploadFile{
		{Name: "a.txt", Size: 3, Body: strings.NewReader("abc")},
		{Name: "b.pdf", Size: 4, ContentType: "application/octet-stream", Body: strings.NewReader("%PDF")},
	}
	results, err := d.svc.UploadFiles(context.Background(), alice, "wf-1", files)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.Empty(t, r.Error)
		require.NotNil(t, r.Document)
		assert.Equal(t, models.DocumentProcessing, r.Document.Status)
	}
	d.trigger.AssertNumberOfCalls(t, "Trigger", 2)
}

func TestUploadFiles_ValidatesWholeBatchFirst(t *testing.T) {
	d := newDocDeps()

	files := []UploadFile{
		{Name: "a.txt", Size: 3, Body: strings.NewReader("abc")},
		{Name: "b.zip", Size: 3, Body: strings.NewReader("zip")},
	}
	_, err := d.svc.UploadFiles(context.Background(), alice, "wf-1", files)
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
	d.objects.AssertNotCalled(t, "UploadFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	many := make([]UploadFile, 6)
	for i := range many {
		many[i] = UploadFile{Name: "a.txt", Size: 1, Body: strings.NewReader("a")}
	}
	_, err = d.svc.UploadFiles(context.Background(), alice, "wf-1", many)
	assert.ErrorIs(t, err, ErrTooManyFiles)

	_, err = d.svc.UploadFiles(context.Background(), alice, "wf-1", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUploadFiles_RowFailureRemovesObject(t *testing.T) {
	d := newDocDeps()
	d.store.On("GetWorkflowByID", mock.Anything, "wf-1").Return(activeWorkflow(), nil)
	d.store.On("IsUserAssigned", mock.Anything, alice.UserID, "wf-1").Return(true, nil)
	d.objects.On("UploadFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	d.store.On("CreateDocument", mock.Anything, mock.Anything).Return(errors.New("insert failed"))
	d.objects.On("DeleteFiles", mock.Anything, []string{"wf-1/u-alice/1700000000000_a.txt"}).Return(nil)

	results, err := d.svc.UploadFiles(context.Background(), alice, "wf-1", []UploadFile{
		{Name: "a.txt", Size: 1, Body: strings.NewReader("a")},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Document)
	assert.Contains(t, results[0].Error, "insert failed")
	d.objects.AssertExpectations(t)
	d.trigger.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything)
}

func TestTriggerProcessing(t *testing.T) {
	t.Run("claims and schedules", func(t *testing.T) {
		d := newDocDeps()
		d.store.On("GetDocumentByID", mock.Anything, "doc-1").Return(aliceDoc(), nil)
		d.store.On("ClaimDocumentForProcessing", mock.Anything, "doc-1").Return(true, nil)
		d.trigger.On("Trigger", mock.Anything, "doc-1").Return(nil)

		require.NoError(t, d.svc.TriggerProcessing(context.Background(), alice, "doc-1"))
		d.trigger.AssertExpectations(t)
	})

	t.Run("missing document", func(t *testing.T) {
		d := newDocDeps()
		d.store.On("GetDocumentByID", mock.Anything, "doc-x").Return(nil, nil)
		assert.ErrorIs(t, d.svc.TriggerProcessing(context.Background(), alice, "doc-x"), ErrNotFound)
	})

	t.Run("other users document", func(t *testing.T) {
		d := newDocDeps()
		d.store.On("GetDocumentByID", mock.Anything, "doc-1").Return(aliceDoc(), nil)
		assert.ErrorIs(t, d.svc.TriggerProcessing(context.Background(), bob, "doc-1"), ErrForbidden)
		d.store.AssertNotCalled(t, "ClaimDocumentForProcessing", mock.Anything, mock.Anything)
	})

	t.Run("already processing", func(t *testing.T) {
		d := newDocDeps()
		d.store.On("GetDocumentByID", mock.Anything, "doc-1").Return(aliceDoc(), nil)
		d.store.On("ClaimDocumentForProcessing", mock.Anything, "doc-1").Return(false, nil)
		assert.ErrorIs(t, d.svc.TriggerProcessing(context.Background(), admin, "doc-1"), ErrAlreadyProcessing)
		d.trigger.AssertNotCalled(t, "Trigger", mock.Anything, mock.Anything)
	})

	t.Run("schedule failure releases the claim", func(t *testing.T) {
		d := newDocDeps()
		d.store.On("GetDocumentByID", mock.Anything, "doc-1").Return(aliceDoc(), nil)
		d.store.On("ClaimDocumentForProcessing", mock.Anything, "doc-1").Return(true, nil)
		d.trigger.On("Trigger", mock.Anything, "doc-1").Return(ingestion_engine.ErrQueueFull)
		d.store.On("MarkDocumentError", mock.Anything, "doc-1", "", mock.MatchedBy(func(msg string) bool {
			return strings.HasPrefix(msg, "could not schedule processing")
		})).Return(nil)

		err := d.svc.TriggerProcessing(context.Background(), alice, "doc-1")
		assert.ErrorIs(t, err, ingestion_engine.ErrQueueFull)
		d.store.AssertExpectations(t)
	})
}

func TestProcessNow(t *testing.T) {
	t.Run("runs the pipeline after claiming", func(t *testing.T) {
		d := newDocDeps()
		d.store.On("GetDocumentByID", mock.Anything, "doc-1").Return(aliceDoc(), nil)
		d.store.On("ClaimDocumentForProcessing", mock.Anything, "doc-1").Return(true, nil)
		d.proc.On("ProcessDocument", mock.Anything, "doc-1").Return(ingestion_engine.Result{Success: true, Chunks: 12})

		res, err := d.svc.ProcessNow(context.Background(), "doc-1")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, 12, res.Chunks)
	})

	t.Run("missing document", func(t *testing.T) {
		d := newDocDeps()
		d.store.On("GetDocumentByID", mock.Anything, "doc-x").Return(nil, nil)
		_, err := d.svc.ProcessNow(context.Background(), "doc-x")
		assert.ErrorIs(t, err, ErrNotFound)
		d.proc.AssertNotCalled(t, "ProcessDocument", mock.Anything, mock.Anything)
	})

	t.Run("already processing", func(t *testing.T) {
		d := newDocDeps()
		d.store.On("GetDocumentByID", mock.Anything, "doc-1").Return(aliceDoc(), nil)
		d.store.On("ClaimDocumentForProcessing", mock.Anything, "doc-1").Return(false, nil)
		_, err := d.svc.ProcessNow(context.Background(), "doc-1")
		assert.ErrorIs(t, err, ErrAlreadyProcessing)
	})
}

func TestStatus(t *testing.T) {
	d := newDocDeps()
	doc := aliceDoc()
	chunks := 7
	doc.ChunkCount = &chunks
	d.store.On("GetDocumentByID", mock.Anything, "doc-1").Return(doc, nil)

	view, err := d.svc.Status(context.Background(), alice, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentReady, view.Status)
	require.NotNil(t, view.ChunkCount)
	assert.Equal(t, 7, *view.ChunkCount)
	assert.Nil(t, view.ErrorMessage)

	_, err = d.svc.Status(context.Background(), bob, "doc-1")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = d.svc.Status(context.Background(), admin, "doc-1")
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	t.Run("removes chunks, object and row in order", func(t *testing.T) {
		d := newDocDeps()
		doc := aliceDoc()
		var order []string
		d.store.On("GetDocumentByID", mock.Anything, "doc-1").Return(doc, nil)
		d.store.On("DeleteDocumentChunks", mock.Anything, "wf-1", "doc-1").Return(int64(3), nil).
			Run(func(mock.Arguments) { order = append(order, "chunks") })
		d.objects.On("DeleteFiles", mock.Anything, []string{doc.StoragePath}).Return(nil).
			Run(func(mock.Arguments) { order = append(order, "object") })
		d.store.On("DeleteDocument", mock.Anything, "doc-1").Return(nil).
			Run(func(mock.Arguments) { order = append(order, "row") })

		require.NoError(t, d.svc.Delete(context.Background(), alice, "doc-1"))
		assert.Equal(t, []string{"chunks", "object", "row"}, order)
	})

	t.Run("storage failure keeps the row", func(t *testing.T) {
		d := newDocDeps()
		doc := aliceDoc()
		d.store.On("GetDocumentByID", mock.Anything, "doc-1").Return(doc, nil)
		d.store.On("DeleteDocumentChunks", mock.Anything, "wf-1", "doc-1").Return(int64(0), nil)
		d.objects.On("DeleteFiles", mock.Anything, []string{doc.StoragePath}).Return(errors.New("s3 down"))

		assert.Error(t, d.svc.Delete(context.Background(), alice, "doc-1"))
		d.store.AssertNotCalled(t, "DeleteDocument", mock.Anything, mock.Anything)
	})

	t.Run("forbidden for other users", func(t *testing.T) {
		d := newDocDeps()
		d.store.On("GetDocumentByID", mock.Anything, "doc-1").Return(aliceDoc(), nil)
		assert.ErrorIs(t, d.svc.Delete(context.Background(), bob, "doc-1"), ErrForbidden)
	})
}

func TestList(t *testing.T) {
	d := newDocDeps()
	d.store.On("GetWorkflowByID", mock.Anything, "wf-1").Return(activeWorkflow(), nil)
	d.store.On("IsUserAssigned", mock.Anything, alice.UserID, "wf-1").Return(true, nil)
	d.store.On("ListDocumentsByWorkflow", mock.Anything, "wf-1").Return([]models.Document{*aliceDoc()}, nil)

	docs, err := d.svc.List(context.Background(), alice, "wf-1")
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
