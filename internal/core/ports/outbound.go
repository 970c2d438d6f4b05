package ports

import (
	"context"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

// Cipher is the encryption boundary. Implementations must be AEAD.
type Cipher interface {
	Encrypt(plaintext []byte, keyID string) ([]byte, error)
	Decrypt(ciphertext []byte, keyID string) ([]byte, error)
	Hash(value string) string
}

// DocumentStore is the secure file substrate for document bytes, sidecars and
// quarantine. Blobs and sidecars are written once.
type DocumentStore interface {
	Save(ctx context.Context, doc *domain.StoredDocument, plaintext []byte) error
	Open(ctx context.Context, documentID string) (*domain.StoredDocument, []byte, error)
	Metadata(ctx context.Context, documentID string) (*domain.StoredDocument, error)
	Quarantine(ctx context.Context, filename string, data []byte, scan domain.ScanResult) (string, error)
	// Discard removes a saved blob and its sidecar. Used to roll back an
	// upload the index refused. A missing document is not an error.
	Discard(ctx context.Context, documentID string) error
}

// ResultStore persists stage results as encrypted JSON, one file per result.
type ResultStore interface {
	SaveResult(ctx context.Context, kind domain.ResultKind, id string, v any) error
	LoadResult(ctx context.Context, kind domain.ResultKind, id string, v any) error
}

// DocumentRepository indexes documents and the append-only result history.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.StoredDocument) error
	GetByID(ctx context.Context, id string) (*domain.StoredDocument, error)
	SetReviewRequired(ctx context.Context, id string, required bool) error
	AppendResult(ctx context.Context, rec domain.ResultRecord) error
	LatestResult(ctx context.Context, documentID string, kind domain.ResultKind) (*domain.ResultRecord, error)
	ListResults(ctx context.Context, documentID string, kind domain.ResultKind) ([]domain.ResultRecord, error)
}

// ReviewQueueRepository stores attorney review escalations.
type ReviewQueueRepository interface {
	Enqueue(ctx context.Context, item domain.ReviewItem) error
	ListPending(ctx context.Context, limit int) ([]domain.ReviewItem, error)
}

// AuditSink receives audit events. The pipeline never reads from it.
type AuditSink interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}

// AttorneyReview is the external review desk.
type AttorneyReview interface {
	ReviewContent(ctx context.Context, text, contentID string) (domain.ReviewVerdict, error)
	Escalate(ctx context.Context, contentID, reason string, risk domain.UPLRiskLevel, details map[string]any) error
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// EscalationPublisher fans escalations out to other services.
type EscalationPublisher interface {
	PublishEscalation(ctx context.Context, item domain.ReviewItem) error
}

// MalwareScanner runs a signature pass over raw bytes.
type MalwareScanner interface {
	Scan(ctx context.Context, data []byte) domain.ScanResult
}

// PDFTextReader reads the text layer of a PDF.
type PDFTextReader interface {
	ReadPages(ctx context.Context, data []byte) ([]domain.PageText, error)
}

// PageRasterizer renders PDF pages to image files inside workDir and returns
// their paths in page order.
type PageRasterizer interface {
	Rasterize(ctx context.Context, pdfPath, workDir string) ([]string, error)
}

// TextRecognizer runs word-level OCR over one image file.
type TextRecognizer interface {
	Recognize(ctx context.Context, imagePath string, page int) (domain.PageRecognition, error)
}

// CaseGraph records relationships between documents, cases, courts and
// parties. Optional.
type CaseGraph interface {
	LinkClassification(ctx context.Context, result *domain.ClassificationResult) error
}

// ResultIndexer makes analysis results searchable. Optional.
type ResultIndexer interface {
	IndexAnalysis(ctx context.Context, result *domain.AnalysisResult) error
}

// QuarantineMirror keeps an off-host copy of quarantined bytes. Optional.
type QuarantineMirror interface {
	Mirror(ctx context.Context, key string, data []byte) error
}

// PipelineObserver receives stage outcomes for metrics. Optional.
type PipelineObserver interface {
	UploadHandled(outcome string)
	StageCompleted(stage domain.ResultKind, status string, duration time.Duration)
	ExtractionConfidence(strategy domain.ExtractionStrategy, confidence float64)
	ComplianceLevel(level domain.ComplianceLevel)
}
