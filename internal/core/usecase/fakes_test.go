package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

type repoFake struct {
	mu        sync.Mutex
	docs      map[string]domain.StoredDocument
	results   []domain.ResultRecord
	reviewSet []string
	createErr error
	appendErr error
}

func newRepoFake(docs ...domain.StoredDocument) *repoFake {
	f := &repoFake{docs: map[string]domain.StoredDocument{}}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *repoFake) Create(_ context.Context, doc *domain.StoredDocument) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = *doc
	return nil
}

func (f *repoFake) GetByID(_ context.Context, id string) (*domain.StoredDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	return &doc, nil
}

func (f *repoFake) SetReviewRequired(_ context.Context, id string, required bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "set review", fmt.Errorf("id=%s", id))
	}
	doc.RequiresReview = required
	f.docs[id] = doc
	f.reviewSet = append(f.reviewSet, id)
	return nil
}

func (f *repoFake) AppendResult(_ context.Context, rec domain.ResultRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, rec)
	return nil
}

func (f *repoFake) LatestResult(_ context.Context, documentID string, kind domain.ResultKind) (*domain.ResultRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.results) - 1; i >= 0; i-- {
		if r := f.results[i]; r.DocumentID == documentID && r.Kind == kind {
			return &r, nil
		}
	}
	return nil, domain.WrapError(domain.ErrResultNotFound, "latest result", fmt.Errorf("%s/%s", documentID, kind))
}

func (f *repoFake) ListResults(_ context.Context, documentID string, kind domain.ResultKind) ([]domain.ResultRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ResultRecord
	for _, r := range f.results {
		if r.DocumentID == documentID && r.Kind == kind {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *repoFake) countResults(kind domain.ResultKind) int {
	n := 0
	for _, r := range f.results {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

// resultsFake round-trips through JSON so tests see what a real store returns.
type resultsFake struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	saveErr error
}

func newResultsFake() *resultsFake { return &resultsFake{blobs: map[string][]byte{}} }

func (f *resultsFake) SaveResult(_ context.Context, kind domain.ResultKind, id string, v any) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := string(kind) + "/" + id
	if _, exists := f.blobs[key]; exists {
		return errors.New("result already exists")
	}
	f.blobs[key] = raw
	return nil
}

func (f *resultsFake) LoadResult(_ context.Context, kind domain.ResultKind, id string, v any) error {
	f.mu.Lock()
	raw, ok := f.blobs[string(kind)+"/"+id]
	f.mu.Unlock()
	if !ok {
		return domain.WrapError(domain.ErrResultNotFound, "load result", fmt.Errorf("%s/%s", kind, id))
	}
	return json.Unmarshal(raw, v)
}

type storeFake struct {
	data           map[string][]byte
	meta           map[string]domain.StoredDocument
	quarantined    [][]byte
	saveErr        error
	openErr        error
	discardErr     error
	discarded      []string
	quarantinePath string
}

func newStoreFake() *storeFake {
	return &storeFake{data: map[string][]byte{}, meta: map[string]domain.StoredDocument{}, quarantinePath: "quarantine/2026/10/q.bin"}
}

func (f *storeFake) Save(_ context.Context, doc *domain.StoredDocument, plaintext []byte) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	doc.Size = int64(len(plaintext))
	doc.SHA256 = fmt.Sprintf("sha-%d", len(plaintext))
	f.data[doc.ID] = append([]byte(nil), plaintext...)
	f.meta[doc.ID] = *doc
	return nil
}

func (f *storeFake) Open(_ context.Context, id string) (*domain.StoredDocument, []byte, error) {
	if f.openErr != nil {
		return nil, nil, f.openErr
	}
	data, ok := f.data[id]
	if !ok {
		return nil, nil, domain.WrapError(domain.ErrDocumentNotFound, "open", fmt.Errorf("id=%s", id))
	}
	doc := f.meta[id]
	return &doc, append([]byte(nil), data...), nil
}

func (f *storeFake) Metadata(_ context.Context, id string) (*domain.StoredDocument, error) {
	doc, ok := f.meta[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "metadata", fmt.Errorf("id=%s", id))
	}
	return &doc, nil
}

func (f *storeFake) Discard(_ context.Context, id string) error {
	f.discarded = append(f.discarded, id)
	if f.discardErr != nil {
		return f.discardErr
	}
	delete(f.data, id)
	delete(f.meta, id)
	return nil
}

func (f *storeFake) Quarantine(_ context.Context, _ string, data []byte, _ domain.ScanResult) (string, error) {
	f.quarantined = append(f.quarantined, data)
	return f.quarantinePath, nil
}

type auditFake struct {
	mu     sync.Mutex
	events []domain.AuditEvent
	err    error
}

func (f *auditFake) Record(_ context.Context, event domain.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *auditFake) types() []domain.AuditEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AuditEventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}

type escalation struct {
	contentID string
	reason    string
	risk      domain.UPLRiskLevel
	details   map[string]any
}

type reviewerFake struct {
	verdict     domain.ReviewVerdict
	reviewErr   error
	escalateErr error
	texts       []string
	escalations []escalation
}

func (f *reviewerFake) ReviewContent(_ context.Context, text, _ string) (domain.ReviewVerdict, error) {
	f.texts = append(f.texts, text)
	if f.reviewErr != nil {
		return domain.ReviewVerdict{}, f.reviewErr
	}
	return f.verdict, nil
}

func (f *reviewerFake) Escalate(_ context.Context, contentID, reason string, risk domain.UPLRiskLevel, details map[string]any) error {
	f.escalations = append(f.escalations, escalation{contentID: contentID, reason: reason, risk: risk, details: details})
	return f.escalateErr
}

type observerFake struct {
	uploads     []string
	stages      []string
	confidences []float64
	levels      []domain.ComplianceLevel
}

func (f *observerFake) UploadHandled(outcome string) { f.uploads = append(f.uploads, outcome) }

func (f *observerFake) StageCompleted(stage domain.ResultKind, status string, _ time.Duration) {
	f.stages = append(f.stages, string(stage)+":"+status)
}

func (f *observerFake) ExtractionConfidence(_ domain.ExtractionStrategy, confidence float64) {
	f.confidences = append(f.confidences, confidence)
}

func (f *observerFake) ComplianceLevel(level domain.ComplianceLevel) {
	f.levels = append(f.levels, level)
}

func testDeps(repo *repoFake, results *resultsFake, audit *auditFake, observer *observerFake) StageDeps {
	return StageDeps{Repo: repo, Results: results, Audit: audit, Observer: observer}
}

func uploaded(id, uploader string) domain.StoredDocument {
	return domain.StoredDocument{
		ID:         id,
		Filename:   "brief.txt",
		MimeType:   "text/plain",
		UploaderID: uploader,
		CreatedAt:  time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
	}
}
