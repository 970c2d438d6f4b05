package usecase

import (
	"context"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

const reviewExcerptRunes = 1000

// DocumentClassifier degrades result itself before returning an error.
type DocumentClassifier interface {
	Classify(text string, result *domain.ClassificationResult) error
}

type ClassifyDocumentUseCase struct {
	deps       StageDeps
	classifier DocumentClassifier
	reviewer   ports.AttorneyReview
	graph      ports.CaseGraph
	now        func() time.Time
}

// NewClassifyDocumentUseCase wires the classification stage. graph may be nil.
func NewClassifyDocumentUseCase(
	deps StageDeps,
	classifier DocumentClassifier,
	reviewer ports.AttorneyReview,
	graph ports.CaseGraph,
) *ClassifyDocumentUseCase {
	return &ClassifyDocumentUseCase{
		deps:       deps.withDefaults(),
		classifier: classifier,
		reviewer:   reviewer,
		graph:      graph,
		now:        time.Now,
	}
}

func (uc *ClassifyDocumentUseCase) Classify(ctx context.Context, documentID string, requester domain.Requester) (*domain.ClassificationResult, error) {
	started := uc.now()
	doc, err := uc.deps.authorize(ctx, documentID, requester, "classify document")
	if err != nil {
		return nil, err
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}
	result := &domain.ClassificationResult{
		ID:         id,
		DocumentID: doc.ID,
		Warnings:   []string{},
		CreatedAt:  started.UTC(),
	}

	var text string
	extraction, err := latestExtraction(ctx, uc.deps, doc.ID)
	switch {
	case err != nil:
		result.Warnings = append(result.Warnings, "latest extraction could not be loaded; classifying empty text")
		uc.deps.Logger.Warn("load extraction for classification", "document_id", doc.ID, "error", err)
	case extraction == nil:
		result.Warnings = append(result.Warnings, "no extraction found; classifying empty text")
	default:
		result.ExtractionID = extraction.ID
		text = extraction.ExtractedText
	}

	failed := false
	if uc.classifier == nil {
		failed = true
		classifyDegrade(result, "no classifier configured")
	} else if err := uc.classifier.Classify(text, result); err != nil {
		failed = true
		uc.deps.Logger.Error("classification failed", "document_id", doc.ID, "error", err)
	}
	if !failed {
		result.AttorneyReviewRequired = uc.needsReview(ctx, doc.ID, text, result)
	}

	if uc.graph != nil && !failed {
		if err := uc.graph.LinkClassification(ctx, result); err != nil {
			uc.deps.Logger.Warn("case graph link failed", "document_id", doc.ID, "error", err)
		}
	}

	rec := domain.ResultRecord{
		ID:         result.ID,
		DocumentID: doc.ID,
		Status:     classificationStatus(failed),
		Confidence: result.Confidence,
		CreatedAt:  result.CreatedAt,
	}
	if err := uc.deps.persist(ctx, domain.ResultClassification, rec, result); err != nil {
		uc.deps.Observer.StageCompleted(domain.ResultClassification, "storage_error", time.Since(started))
		return nil, err
	}
	if result.AttorneyReviewRequired {
		if err := uc.deps.Repo.SetReviewRequired(ctx, doc.ID, true); err != nil {
			uc.deps.Logger.Warn("set review flag failed", "document_id", doc.ID, "error", err)
		}
	}

	event := domain.AuditClassificationComplete
	if failed {
		event = domain.AuditClassificationFailed
	}
	uc.deps.audit(ctx, domain.AuditEvent{
		EventType:  event,
		DocumentID: doc.ID,
		UserID:     requester.ID,
		Details: map[string]any{
			"classification_id":        result.ID,
			"document_type":            string(result.DocumentType),
			"subject_category":         string(result.SubjectCategory),
			"confidence":               result.Confidence,
			"attorney_review_required": result.AttorneyReviewRequired,
		},
	})

	uc.deps.Observer.StageCompleted(domain.ResultClassification, rec.Status, time.Since(started))
	uc.deps.Logger.Info("classification finished",
		"document_id", doc.ID,
		"classification_id", result.ID,
		"document_type", result.DocumentType,
		"subject", result.SubjectCategory,
		"review_required", result.AttorneyReviewRequired,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return result, nil
}

// needsReview asks the review desk about the head of the text. Any failure
// to get an answer means review.
func (uc *ClassifyDocumentUseCase) needsReview(ctx context.Context, documentID, text string, result *domain.ClassificationResult) bool {
	if uc.reviewer == nil {
		result.Warnings = append(result.Warnings, "attorney review desk unavailable; review required")
		return true
	}
	verdict, err := uc.reviewer.ReviewContent(ctx, excerpt(text, reviewExcerptRunes), documentID)
	if err != nil {
		uc.deps.Logger.Warn("review content failed", "document_id", documentID, "error", err)
		result.Warnings = append(result.Warnings, "attorney review check failed; review required")
		return true
	}
	return verdict.RequiresReview
}

func classifyDegrade(result *domain.ClassificationResult, reason string) {
	result.Warnings = append(result.Warnings, reason)
	result.DocumentType = domain.DocUnknown
	result.SubjectCategory = domain.SubjectGeneral
	result.ConfidenceLevel = domain.LevelForScore(0)
	result.AttorneyReviewRequired = true
	result.DisclaimerRequired = true
}

func classificationStatus(failed bool) string {
	if failed {
		return "failed"
	}
	return "completed"
}

func excerpt(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
