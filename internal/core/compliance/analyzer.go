package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

const (
	maxKeyConcepts  = 8
	maxBulletPoints = 6
	advancedWords   = 2500
	advancedCites   = 5
	basicWords      = 400
)

// Input is everything one analysis looks at.
type Input struct {
	Text           string
	Classification *domain.ClassificationResult
}

// Analyzer produces the educational analysis and its compliance level.
type Analyzer struct {
	assessor *Assessor
	reviewer ports.AttorneyReview
	now      func() time.Time
	logger   *slog.Logger
}

func NewAnalyzer(assessor *Assessor, reviewer ports.AttorneyReview, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{assessor: assessor, reviewer: reviewer, now: time.Now, logger: logger}
}

// Analyze fills result for the requested analysis type. It only returns an
// error after forcing result into the failure shape, so callers can always
// persist what they get.
func (a *Analyzer) Analyze(ctx context.Context, in Input, result *domain.AnalysisResult) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = domain.WrapError(domain.ErrComplianceAssessment, "analyze", fmt.Errorf("panic: %v", rec))
		}
		if err != nil {
			Fail(result, err)
		}
	}()

	if result.AnalysisType == "" {
		result.AnalysisType = domain.AnalysisComprehensive
	}
	result.Disclaimers = Disclaimers()
	if in.Classification == nil {
		return domain.WrapError(domain.ErrComplianceAssessment, "analyze", fmt.Errorf("no classification for document %s", result.DocumentID))
	}

	book := a.assessor.Phrasebook()
	upl := a.assessor.Assess(in.Text)
	advice := Matches(book.LegalAdvice, in.Text)
	privileged := Matches(book.Privileged, in.Text)
	jurisdiction := Matches(book.JurisdictionTriggers, in.Text)

	var notes []string
	reviewFlagged := upl.RequiresReview
	if upl.RequiresReview {
		notes = append(notes, fmt.Sprintf("UPL risk is %s (score %.2f)", upl.Level, upl.Score))
	}
	if a.reviewer == nil {
		reviewFlagged = true
		notes = append(notes, "attorney review desk unavailable; review required by default")
	} else {
		verdict, reviewErr := a.reviewer.ReviewContent(ctx, in.Text, result.ID)
		switch {
		case reviewErr != nil:
			reviewFlagged = true
			notes = append(notes, "attorney review check failed; review required by default")
			a.logger.Warn("review content failed", "document_id", result.DocumentID, "error", reviewErr)
		case verdict.RequiresReview:
			reviewFlagged = true
			notes = append(notes, verdict.Reasons...)
		}
	}
	if len(advice) > 0 {
		notes = append(notes, "content contains legal-advice phrasing: "+strings.Join(advice, ", "))
	}

	result.ComplianceLevel = DecideLevel(reviewFlagged, len(advice) > 0, upl.Level)
	result.Flags = domain.ComplianceFlags{
		AttorneyReviewRequired:      result.ComplianceLevel == domain.ComplianceRequiresAttorneyReview,
		ContainsLegalAdviceLanguage: len(advice) > 0,
		ContainsPrivilegedContent:   len(privileged) > 0,
		NeedsJurisdictionWarning:    len(jurisdiction) > 0 || in.Classification.Metadata.Jurisdiction != "",
		UPLRiskLevel:                upl.Level,
		UPLRiskScore:                upl.Score,
	}
	if result.Flags.ContainsPrivilegedContent {
		result.Warnings = append(result.Warnings, "document appears to contain privileged material")
	}

	c := in.Classification
	switch result.AnalysisType {
	case domain.AnalysisSummary:
		result.Summary = a.summary(in.Text, c)
	case domain.AnalysisDates:
		result.Dates = a.dates(c.Metadata.Dates)
	case domain.AnalysisParties:
		result.Parties = parties(c.Metadata.Parties)
	default:
		result.Summary = a.summary(in.Text, c)
		result.Dates = a.dates(c.Metadata.Dates)
		result.Parties = parties(c.Metadata.Parties)
		result.KeyFindings = keyFindings(c, upl)
	}

	if result.Flags.AttorneyReviewRequired {
		result.ReviewNotes = append(result.ReviewNotes, notes...)
	} else {
		result.ReviewNotes = append(result.ReviewNotes, "No attorney review required; content is presented for education only.")
	}
	return nil
}

// Fail forces the most conservative outcome.
func Fail(result *domain.AnalysisResult, cause error) {
	result.Failed = true
	result.ComplianceLevel = domain.ComplianceRequiresAttorneyReview
	result.Flags.AttorneyReviewRequired = true
	if result.Flags.UPLRiskLevel == "" {
		result.Flags.UPLRiskLevel = domain.UPLRiskCritical
		result.Flags.UPLRiskScore = 1
	}
	result.Disclaimers = Disclaimers()
	msg := "analysis failed; escalated for attorney review"
	if cause != nil {
		msg += ": " + cause.Error()
	}
	result.ReviewNotes = append(result.ReviewNotes, msg)
}

func (a *Analyzer) summary(text string, c *domain.ClassificationResult) domain.EducationalSummary {
	s := domain.EducationalSummary{
		Purpose:            purposeByType[c.DocumentType],
		ProceduralContext:  contextBySubject[c.SubjectCategory],
		KeyConcepts:        keyConcepts(c),
		Complexity:         complexity(text, c),
		LearningObjectives: objectivesBySubject[c.SubjectCategory],
	}
	if s.Purpose == "" {
		s.Purpose = purposeByType[domain.DocUnknown]
	}
	if s.ProceduralContext == "" {
		s.ProceduralContext = contextBySubject[domain.SubjectGeneral]
	}
	if s.LearningObjectives == nil {
		s.LearningObjectives = []string{"Understand the general structure of legal documents"}
	}

	s.BulletPoints = append(s.BulletPoints,
		fmt.Sprintf("Document type: %s (%.0f%% confidence)", c.DocumentType, c.DocumentTypeConfidence),
		fmt.Sprintf("Subject area: %s (%.0f%% confidence)", c.SubjectCategory, c.SubjectConfidence),
	)
	if c.Metadata.CaseNumber != "" {
		s.BulletPoints = append(s.BulletPoints, "Case number: "+c.Metadata.CaseNumber)
	}
	if c.Metadata.CourtName != "" {
		s.BulletPoints = append(s.BulletPoints, "Court: "+c.Metadata.CourtName)
	}
	if n := len(c.Metadata.Dates); n > 0 {
		s.BulletPoints = append(s.BulletPoints, fmt.Sprintf("%d date(s) referenced", n))
	}
	if n := len(c.Patterns.Citations); n > 0 {
		s.BulletPoints = append(s.BulletPoints, fmt.Sprintf("%d legal citation(s) referenced", n))
	}
	if len(s.BulletPoints) > maxBulletPoints {
		s.BulletPoints = s.BulletPoints[:maxBulletPoints]
	}
	return s
}

func keyConcepts(c *domain.ClassificationResult) []string {
	out := make([]string, 0, maxKeyConcepts)
	seen := map[string]bool{}
	for _, group := range [][]string{c.Patterns.LegalTerms, c.Metadata.Keywords, c.Patterns.ProceduralTerms} {
		for _, term := range group {
			key := strings.ToLower(term)
			if seen[key] || len(out) >= maxKeyConcepts {
				continue
			}
			seen[key] = true
			out = append(out, term)
		}
	}
	return out
}

func complexity(text string, c *domain.ClassificationResult) domain.ComplexityTier {
	words := len(strings.Fields(text))
	cites := len(c.Patterns.Citations)
	switch {
	case words > advancedWords || cites >= advancedCites:
		return domain.ComplexityAdvanced
	case words < basicWords && cites == 0:
		return domain.ComplexityBasic
	default:
		return domain.ComplexityIntermediate
	}
}

func (a *Analyzer) dates(in []domain.ExtractedDate) []domain.ContextualDate {
	now := a.now()
	out := make([]domain.ContextualDate, 0, len(in))
	for _, d := range in {
		note := dateContext[d.Kind]
		if note == "" {
			note = dateContext[domain.DateDocument]
		}
		if d.Date != nil && d.Date.Before(now) {
			note += pastDateClause
		}
		out = append(out, domain.ContextualDate{ExtractedDate: d, EducationalContext: note})
	}
	return out
}

func parties(in []domain.ExtractedParty) []domain.ContextualParty {
	out := make([]domain.ContextualParty, 0, len(in))
	for _, p := range in {
		out = append(out, domain.ContextualParty{ExtractedParty: p, EducationalContext: contextForParty(p)})
	}
	return out
}

func keyFindings(c *domain.ClassificationResult, upl UPLAssessment) []string {
	findings := []string{
		fmt.Sprintf("Classified as %s in the %s area", c.DocumentType, c.SubjectCategory),
		fmt.Sprintf("UPL risk %s (score %.2f)", upl.Level, upl.Score),
	}
	if c.Metadata.Jurisdiction != "" {
		findings = append(findings, "Jurisdiction appears to be "+c.Metadata.Jurisdiction)
	}
	if len(c.Metadata.Parties) > 0 {
		findings = append(findings, fmt.Sprintf("%d part(ies) identified", len(c.Metadata.Parties)))
	}
	if len(upl.HighRiskPhrases) > 0 {
		findings = append(findings, "High-risk phrasing: "+strings.Join(upl.HighRiskPhrases, ", "))
	}
	if !upl.DisclaimerPresent {
		findings = append(findings, "No disclaimer language found in the source text")
	}
	return findings
}
