package ports

import (
	"context"
	"io"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

type UploadRequest struct {
	Filename   string
	UploaderID string
	Body       io.Reader
}

// UploadOutcome carries warnings and validation errors alongside the stored
// document. Document is nil whenever Errors is non-empty.
type UploadOutcome struct {
	Document *domain.StoredDocument `json:"document,omitempty"`
	Warnings []string               `json:"warnings"`
	Errors   []string               `json:"errors"`
}

// DocumentIntake is the inbound contract for upload and retrieval.
type DocumentIntake interface {
	Upload(ctx context.Context, req UploadRequest) (UploadOutcome, error)
	Retrieve(ctx context.Context, documentID string, requester domain.Requester) ([]byte, error)
}

// DocumentReader is the inbound read model for document metadata and the
// latest stored result of each stage.
type DocumentReader interface {
	GetDocument(ctx context.Context, id string, requester domain.Requester) (*domain.StoredDocument, error)
	LatestResult(ctx context.Context, documentID string, kind domain.ResultKind, requester domain.Requester) (*ResultView, error)
}

// ResultView pairs the index record with the decrypted result body.
type ResultView struct {
	Record domain.ResultRecord `json:"record"`
	Result any                 `json:"result"`
}

type ExtractionService interface {
	Process(ctx context.Context, documentID string, requester domain.Requester) (*domain.ExtractionResult, error)
}

type ClassificationService interface {
	Classify(ctx context.Context, documentID string, requester domain.Requester) (*domain.ClassificationResult, error)
}

type ComplianceService interface {
	Analyze(ctx context.Context, documentID string, analysisType domain.AnalysisType, requester domain.Requester) (*domain.AnalysisResult, error)
}

// DocumentProcessor is the inbound contract for asynchronous pipeline runs.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// ReviewExporter renders the pending attorney review queue.
type ReviewExporter interface {
	ExportPending(ctx context.Context, w io.Writer) error
}
