package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

// DocumentQueryUseCase is the read side: document index rows and the
// newest result of each stage, for the same audience as Retrieve.
type DocumentQueryUseCase struct {
	deps StageDeps
}

func NewDocumentQueryUseCase(deps StageDeps) *DocumentQueryUseCase {
	return &DocumentQueryUseCase{deps: deps.withDefaults()}
}

func (uc *DocumentQueryUseCase) GetDocument(ctx context.Context, id string, requester domain.Requester) (*domain.StoredDocument, error) {
	return uc.deps.authorize(ctx, id, requester, "get document")
}

func (uc *DocumentQueryUseCase) LatestResult(
	ctx context.Context,
	documentID string,
	kind domain.ResultKind,
	requester domain.Requester,
) (*ports.ResultView, error) {
	if _, err := uc.deps.authorize(ctx, documentID, requester, "latest result"); err != nil {
		return nil, err
	}
	rec, err := uc.deps.Repo.LatestResult(ctx, documentID, kind)
	if err != nil {
		return nil, err
	}

	body := newResultBody(kind)
	if body == nil {
		return nil, domain.WrapError(domain.ErrValidation, "latest result", fmt.Errorf("unknown result kind %q", kind))
	}
	if err := uc.deps.Results.LoadResult(ctx, kind, rec.ID, body); err != nil {
		return nil, fmt.Errorf("load %s result: %w", kind, err)
	}
	return &ports.ResultView{Record: *rec, Result: body}, nil
}

func newResultBody(kind domain.ResultKind) any {
	switch kind {
	case domain.ResultExtraction:
		return &domain.ExtractionResult{}
	case domain.ResultClassification:
		return &domain.ClassificationResult{}
	case domain.ResultAnalysis:
		return &domain.AnalysisResult{}
	default:
		return nil
	}
}

// latestExtraction returns the newest extraction for a document, or nil when
// none has been recorded yet.
func latestExtraction(ctx context.Context, deps StageDeps, documentID string) (*domain.ExtractionResult, error) {
	rec, err := deps.Repo.LatestResult(ctx, documentID, domain.ResultExtraction)
	if err != nil {
		if domain.IsKind(err, domain.ErrResultNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var out domain.ExtractionResult
	if err := deps.Results.LoadResult(ctx, domain.ResultExtraction, rec.ID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func latestClassification(ctx context.Context, deps StageDeps, documentID string) (*domain.ClassificationResult, error) {
	rec, err := deps.Repo.LatestResult(ctx, documentID, domain.ResultClassification)
	if err != nil {
		if domain.IsKind(err, domain.ErrResultNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var out domain.ClassificationResult
	if err := deps.Results.LoadResult(ctx, domain.ResultClassification, rec.ID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
