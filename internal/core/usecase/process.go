package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

// ProcessDocumentUseCase runs the three stages in order for the background
// worker, acting as the system requester.
type ProcessDocumentUseCase struct {
	extractor  ports.ExtractionService
	classifier ports.ClassificationService
	analyzer   ports.ComplianceService
	requester  domain.Requester
}

func NewProcessDocumentUseCase(
	extractor ports.ExtractionService,
	classifier ports.ClassificationService,
	analyzer ports.ComplianceService,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		extractor:  extractor,
		classifier: classifier,
		analyzer:   analyzer,
		requester:  domain.SystemRequester(),
	}
}

// ProcessByID stops at the first hard failure. Degraded stage results do not
// stop the pipeline; later stages see them and stay conservative.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.extract(ctx, documentID); err != nil {
		return err
	}
	if err := uc.classify(ctx, documentID); err != nil {
		return err
	}
	return uc.analyze(ctx, documentID)
}

func (uc *ProcessDocumentUseCase) extract(ctx context.Context, documentID string) error {
	if _, err := uc.extractor.Process(ctx, documentID, uc.requester); err != nil {
		return fmt.Errorf("extract document: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) classify(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "classify document", err)
	}
	if _, err := uc.classifier.Classify(ctx, documentID, uc.requester); err != nil {
		return fmt.Errorf("classify document: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) analyze(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapError(domain.ErrTemporary, "analyze document", err)
	}
	if _, err := uc.analyzer.Analyze(ctx, documentID, domain.AnalysisComprehensive, uc.requester); err != nil {
		return fmt.Errorf("analyze document: %w", err)
	}
	return nil
}
