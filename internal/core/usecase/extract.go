package usecase

import (
	"context"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

// TextExtractor folds every extraction failure into the result it fills.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.StoredDocument, data []byte, result *domain.ExtractionResult)
}

type ExtractDocumentUseCase struct {
	deps      StageDeps
	store     ports.DocumentStore
	extractor TextExtractor
	now       func() time.Time
}

func NewExtractDocumentUseCase(deps StageDeps, store ports.DocumentStore, extractor TextExtractor) *ExtractDocumentUseCase {
	return &ExtractDocumentUseCase{
		deps:      deps.withDefaults(),
		store:     store,
		extractor: extractor,
		now:       time.Now,
	}
}

// Process extracts text from the stored document. Only a missing document,
// a denied requester or a failed result write are returned as errors.
func (uc *ExtractDocumentUseCase) Process(ctx context.Context, documentID string, requester domain.Requester) (*domain.ExtractionResult, error) {
	started := uc.now()
	doc, err := uc.deps.authorize(ctx, documentID, requester, "extract document")
	if err != nil {
		return nil, err
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}
	result := &domain.ExtractionResult{
		ID:         id,
		DocumentID: doc.ID,
		Status:     domain.ExtractionPending,
		Blocks:     []domain.TextBlock{},
		Warnings:   []string{},
		Errors:     []string{},
		CreatedAt:  started.UTC(),
	}

	stored, data, openErr := uc.store.Open(ctx, doc.ID)
	switch {
	case openErr != nil:
		result.Status = domain.ExtractionFailed
		result.SetConfidence(0)
		result.Errors = append(result.Errors, domain.WrapError(domain.ErrExtraction, "open document", openErr).Error())
	case uc.extractor == nil:
		result.Status = domain.ExtractionSkipped
		result.SetConfidence(0)
		result.Warnings = append(result.Warnings, "no extractor configured")
	default:
		uc.extractor.Extract(ctx, stored, data, result)
	}

	rec := domain.ResultRecord{
		ID:         result.ID,
		DocumentID: doc.ID,
		Status:     string(result.Status),
		Confidence: result.Confidence,
		CreatedAt:  result.CreatedAt,
	}
	if err := uc.deps.persist(ctx, domain.ResultExtraction, rec, result); err != nil {
		uc.deps.Observer.StageCompleted(domain.ResultExtraction, "storage_error", time.Since(started))
		return nil, err
	}

	uc.deps.audit(ctx, domain.AuditEvent{
		EventType:  extractionEvent(result.Status),
		DocumentID: doc.ID,
		UserID:     requester.ID,
		Details: map[string]any{
			"extraction_id": result.ID,
			"strategy":      string(result.Strategy),
			"confidence":    result.Confidence,
			"page_count":    result.PageCount,
			"warnings":      len(result.Warnings),
			"errors":        result.Errors,
		},
	})

	uc.deps.Observer.StageCompleted(domain.ResultExtraction, string(result.Status), time.Since(started))
	if result.Status == domain.ExtractionCompleted {
		uc.deps.Observer.ExtractionConfidence(result.Strategy, result.Confidence)
	}
	uc.deps.Logger.Info("extraction finished",
		"document_id", doc.ID,
		"extraction_id", result.ID,
		"status", result.Status,
		"strategy", result.Strategy,
		"confidence", result.Confidence,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return result, nil
}

func extractionEvent(status domain.ExtractionStatus) domain.AuditEventType {
	switch status {
	case domain.ExtractionFailed:
		return domain.AuditExtractionFailed
	case domain.ExtractionSkipped:
		return domain.AuditExtractionSkipped
	default:
		return domain.AuditExtractionCompleted
	}
}
