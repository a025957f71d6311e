package ingestion_engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/models"
)

// memDocs is an in-memory core.DocumentStore that records every status change.
// A claimed document holds a lease; runs records the run that started on it
// and expired marks leases that have run out.
type memDocs struct {
	mu       sync.Mutex
	docs     map[string]*models.Document
	history  map[string][]models.DocumentStatus
	runs     map[string]string
	expired  map[string]bool
	getErr   error
	startErr error
}

func newMemDocs(docs ...models.Document) *memDocs {
	m := &memDocs{
		docs:    map[string]*models.Document{},
		history: map[string][]models.DocumentStatus{},
		runs:    map[string]string{},
		expired: map[string]bool{},
	}
	for i := range docs {
		d := docs[i]
		m.docs[d.ID] = &d
	}
	return m
}

func (m *memDocs) setStatus(id string, st models.DocumentStatus, chunks *int, msg *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return errors.New("no such document")
	}
	d.Status, d.ChunkCount, d.ErrorMessage = st, chunks, msg
	m.history[id] = append(m.history[id], st)
	return nil
}

func (m *memDocs) get(id string) models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.docs[id]
}

func (m *memDocs) CreateDocument(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := *doc
	m.docs[d.ID] = &d
	return nil
}

func (m *memDocs) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memDocs) ListDocumentsByWorkflow(_ context.Context, workflowID string) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, d := range m.docs {
		if d.WorkflowID == workflowID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *memDocs) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *memDocs) ClaimDocumentForProcessing(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok || (d.Status == models.DocumentProcessing && !m.expired[id]) {
		return false, nil
	}
	d.Status, d.ChunkCount, d.ErrorMessage = models.DocumentProcessing, nil, nil
	m.history[id] = append(m.history[id], models.DocumentProcessing)
	m.runs[id], m.expired[id] = "", false
	return true, nil
}

func (m *memDocs) StartProcessingRun(_ context.Context, id, runID string) (bool, error) {
	if m.startErr != nil {
		return false, m.startErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok || d.Status != models.DocumentProcessing || (m.runs[id] != "" && !m.expired[id]) {
		return false, nil
	}
	m.runs[id], m.expired[id] = runID, false
	return true, nil
}

func (m *memDocs) MarkDocumentReady(_ context.Context, id, runID string, chunkCount int) error {
	return m.finish(id, runID, models.DocumentReady, &chunkCount, nil)
}

func (m *memDocs) MarkDocumentError(_ context.Context, id, runID, message string) error {
	return m.finish(id, runID, models.DocumentError, nil, &message)
}

func (m *memDocs) FailExpiredRuns(_ context.Context, message string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, d := range m.docs {
		if d.Status == models.DocumentProcessing && m.expired[id] {
			msg := message
			d.Status, d.ChunkCount, d.ErrorMessage = models.DocumentError, nil, &msg
			m.history[id] = append(m.history[id], models.DocumentError)
			m.runs[id], m.expired[id] = "", false
			n++
		}
	}
	return n, nil
}

func (m *memDocs) finish(id, runID string, st models.DocumentStatus, chunks *int, msg *string) error {
	m.mu.Lock()
	d, ok := m.docs[id]
	held := ok && d.Status == models.DocumentProcessing && m.runs[id] == runID
	m.mu.Unlock()
	if !held {
		return fmt.Errorf("document %s: %w", id, core.ErrRunSuperseded)
	}
	m.mu.Lock()
	m.runs[id] = ""
	m.mu.Unlock()
	return m.setStatus(id, st, chunks, msg)
}

// claim puts a document in processing the way the trigger boundary does.
func (m *memDocs) claim(id string) {
	if ok, _ := m.ClaimDocumentForProcessing(context.Background(), id); !ok {
		panic("claim " + id + " failed")
	}
}

// memKB is an in-memory core.KnowledgeStore. RunInTx snapshots the rows and
// restores them when fn fails.
type memKB struct {
	mu         sync.Mutex
	rows       []models.KnowledgeChunk
	ops        []string
	insertSize []int
	failInsert int // 1-based insert call that fails; 0 never
	inserts    int
	failDelete error
	// intruder rows land with the first insert, as if another writer
	// interleaved with the transaction.
	intruder []models.KnowledgeChunk
}

func (k *memKB) DeleteDocumentChunks(_ context.Context, workflowID, documentID string) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.ops = append(k.ops, "delete")
	if k.failDelete != nil {
		return 0, k.failDelete
	}
	kept := k.rows[:0:0]
	var n int64
	for _, r := range k.rows {
		if r.WorkflowID == workflowID && r.Metadata.FileID == documentID {
			n++
			continue
		}
		kept = append(kept, r)
	}
	k.rows = kept
	return n, nil
}

func (k *memKB) InsertKnowledgeChunks(_ context.Context, chunks []models.KnowledgeChunk) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.inserts++
	k.ops = append(k.ops, "insert")
	k.insertSize = append(k.insertSize, len(chunks))
	if k.failInsert == k.inserts {
		return errors.New("insert rejected")
	}
	k.rows = append(k.rows, chunks...)
	if k.inserts == 1 {
		k.rows = append(k.rows, k.intruder...)
	}
	return nil
}

func (k *memKB) CountDocumentChunks(_ context.Context, workflowID, documentID string) (int, error) {
	k.mu.Lock()
	k.ops = append(k.ops, "count")
	k.mu.Unlock()
	return len(k.documentRows(workflowID, documentID)), nil
}

func (k *memKB) SearchKnowledgeChunks(_ context.Context, workflowID string, _ []float32, limit int) ([]models.KnowledgeChunk, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	var out []models.KnowledgeChunk
	for _, r := range k.rows {
		if r.WorkflowID == workflowID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (k *memKB) RunInTx(_ context.Context, fn func(tx core.KnowledgeStore) error) error {
	k.mu.Lock()
	snapshot := append([]models.KnowledgeChunk(nil), k.rows...)
	k.mu.Unlock()

	if err := fn(k); err != nil {
		k.mu.Lock()
		k.rows = snapshot
		k.ops = append(k.ops, "rollback")
		k.mu.Unlock()
		return err
	}
	return nil
}

// documentRows returns the rows of one document ordered by chunk index.
func (k *memKB) documentRows(workflowID, documentID string) []models.KnowledgeChunk {
	k.mu.Lock()
	defer k.mu.Unlock()
	var out []models.KnowledgeChunk
	for _, r := range k.rows {
		if r.WorkflowID == workflowID && r.Metadata.FileID == documentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metadata.ChunkIndex < out[j].Metadata.ChunkIndex })
	return out
}

type memObjects struct {
	files map[string][]byte
}

func (o *memObjects) UploadFile(_ context.Context, key string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	o.files[key] = b
	return nil
}

func (o *memObjects) GetFile(_ context.Context, key string) ([]byte, error) {
	b, ok := o.files[key]
	if !ok {
		return nil, core.ErrObjectNotFound
	}
	return bytes.Clone(b), nil
}

func (o *memObjects) DeleteFiles(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(o.files, k)
	}
	return nil
}

func (o *memObjects) PresignUpload(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return "https://storage.test/" + key, nil
}

// stubProvider embeds every text as a vector of its rune length, so order is
// observable in the output.
type stubProvider struct {
	mu    sync.Mutex
	dim   int
	calls [][]string
	fail  func(call int, texts []string) error
}

func (p *stubProvider) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.calls = append(p.calls, append([]string(nil), texts...))
	call := len(p.calls)
	p.mu.Unlock()

	if p.fail != nil {
		if err := p.fail(call, texts); err != nil {
			return nil, err
		}
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, p.dim)
		v[0] = float32(len([]rune(t)))
		out[i] = v
	}
	return out, nil
}

func (p *stubProvider) callSizes() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	sizes := make([]int, len(p.calls))
	for i, c := range p.calls {
		sizes[i] = len(c)
	}
	return sizes
}
