package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/compliance"
	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

// ComplianceAnalyzer forces result into the failure shape before returning
// an error.
type ComplianceAnalyzer interface {
	Analyze(ctx context.Context, in compliance.Input, result *domain.AnalysisResult) error
}

type AnalyzeDocumentUseCase struct {
	deps     StageDeps
	analyzer ComplianceAnalyzer
	reviewer ports.AttorneyReview
	index    ports.ResultIndexer
	now      func() time.Time
}

// NewAnalyzeDocumentUseCase wires the compliance stage. index may be nil.
func NewAnalyzeDocumentUseCase(
	deps StageDeps,
	analyzer ComplianceAnalyzer,
	reviewer ports.AttorneyReview,
	index ports.ResultIndexer,
) *AnalyzeDocumentUseCase {
	return &AnalyzeDocumentUseCase{
		deps:     deps.withDefaults(),
		analyzer: analyzer,
		reviewer: reviewer,
		index:    index,
		now:      time.Now,
	}
}

func (uc *AnalyzeDocumentUseCase) Analyze(
	ctx context.Context,
	documentID string,
	analysisType domain.AnalysisType,
	requester domain.Requester,
) (*domain.AnalysisResult, error) {
	started := uc.now()
	doc, err := uc.deps.authorize(ctx, documentID, requester, "analyze document")
	if err != nil {
		return nil, err
	}
	if analysisType == "" {
		analysisType = domain.AnalysisComprehensive
	}

	id, err := newID()
	if err != nil {
		return nil, err
	}
	result := &domain.AnalysisResult{
		ID:           id,
		DocumentID:   doc.ID,
		AnalysisType: analysisType,
		Dates:        []domain.ContextualDate{},
		Parties:      []domain.ContextualParty{},
		KeyFindings:  []string{},
		ReviewNotes:  []string{},
		Warnings:     []string{},
		CreatedAt:    started.UTC(),
	}

	in := compliance.Input{}
	if extraction, err := latestExtraction(ctx, uc.deps, doc.ID); err != nil {
		result.Warnings = append(result.Warnings, "latest extraction could not be loaded")
		uc.deps.Logger.Warn("load extraction for analysis", "document_id", doc.ID, "error", err)
	} else if extraction == nil {
		result.Warnings = append(result.Warnings, "no extraction found; analysing empty text")
	} else {
		result.ExtractionID = extraction.ID
		in.Text = extraction.ExtractedText
	}
	if classification, err := latestClassification(ctx, uc.deps, doc.ID); err != nil {
		uc.deps.Logger.Warn("load classification for analysis", "document_id", doc.ID, "error", err)
	} else if classification != nil {
		result.ClassificationID = classification.ID
		in.Classification = classification
	}

	if uc.analyzer == nil {
		compliance.Fail(result, domain.WrapError(domain.ErrComplianceAssessment, "analyze", errors.New("no analyzer configured")))
	} else if err := uc.analyzer.Analyze(ctx, in, result); err != nil {
		uc.deps.Logger.Error("compliance analysis failed", "document_id", doc.ID, "error", err)
	}

	rec := domain.ResultRecord{
		ID:         result.ID,
		DocumentID: doc.ID,
		Status:     string(result.ComplianceLevel),
		Confidence: result.Flags.UPLRiskScore,
		CreatedAt:  result.CreatedAt,
	}
	persistErr := uc.deps.persist(ctx, domain.ResultAnalysis, rec, result)

	// Escalation is attempted even when the result could not be written.
	if result.Flags.AttorneyReviewRequired {
		uc.escalate(ctx, doc.ID, requester, result)
	}
	if persistErr != nil {
		uc.deps.Observer.StageCompleted(domain.ResultAnalysis, "storage_error", time.Since(started))
		return nil, persistErr
	}

	if uc.index != nil {
		if err := uc.index.IndexAnalysis(ctx, result); err != nil {
			uc.deps.Logger.Warn("index analysis failed", "document_id", doc.ID, "error", err)
		}
	}

	event := domain.AuditAnalysisCompleted
	if result.Failed {
		event = domain.AuditAnalysisFailed
	}
	uc.deps.audit(ctx, domain.AuditEvent{
		EventType:  event,
		DocumentID: doc.ID,
		UserID:     requester.ID,
		Details: map[string]any{
			"analysis_id":      result.ID,
			"analysis_type":    string(result.AnalysisType),
			"compliance_level": string(result.ComplianceLevel),
			"upl_risk_level":   string(result.Flags.UPLRiskLevel),
			"upl_risk_score":   result.Flags.UPLRiskScore,
		},
	})

	uc.deps.Observer.ComplianceLevel(result.ComplianceLevel)
	uc.deps.Observer.StageCompleted(domain.ResultAnalysis, analysisStatus(result), time.Since(started))
	uc.deps.Logger.Info("analysis finished",
		"document_id", doc.ID,
		"analysis_id", result.ID,
		"compliance_level", result.ComplianceLevel,
		"upl_risk_level", result.Flags.UPLRiskLevel,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return result, nil
}

func (uc *AnalyzeDocumentUseCase) escalate(ctx context.Context, documentID string, requester domain.Requester, result *domain.AnalysisResult) {
	if err := uc.deps.Repo.SetReviewRequired(ctx, documentID, true); err != nil {
		uc.deps.Logger.Warn("set review flag failed", "document_id", documentID, "error", err)
	}
	if uc.reviewer == nil {
		uc.deps.Logger.Warn("attorney review desk unavailable; escalation not queued", "document_id", documentID)
		return
	}

	reason := "compliance analysis requires attorney review"
	if len(result.ReviewNotes) > 0 {
		reason = strings.Join(result.ReviewNotes, "; ")
	}
	details := map[string]any{
		"document_id":      documentID,
		"analysis_type":    string(result.AnalysisType),
		"compliance_level": string(result.ComplianceLevel),
		"upl_risk_score":   result.Flags.UPLRiskScore,
		"failed":           result.Failed,
	}
	if err := uc.reviewer.Escalate(ctx, result.ID, reason, result.Flags.UPLRiskLevel, details); err != nil {
		uc.deps.Logger.Error("escalate for attorney review failed", "document_id", documentID, "analysis_id", result.ID, "error", err)
		return
	}
	uc.deps.audit(ctx, domain.AuditEvent{
		EventType:  domain.AuditReviewEscalated,
		DocumentID: documentID,
		UserID:     requester.ID,
		Details:    map[string]any{"analysis_id": result.ID, "risk_level": string(result.Flags.UPLRiskLevel)},
	})
}

func analysisStatus(result *domain.AnalysisResult) string {
	if result.Failed {
		return "failed"
	}
	return "completed"
}
