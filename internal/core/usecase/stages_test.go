package usecase

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/kirillkom/legal-intake/internal/core/compliance"
	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/extraction"
)

const docID = "0192f0c1-7a1e-7000-8000-00000000a001"

var owner = domain.Requester{ID: "client-1", Role: domain.RoleClient}

type stageFixture struct {
	repo     *repoFake
	results  *resultsFake
	store    *storeFake
	audit    *auditFake
	observer *observerFake
	reviewer *reviewerFake
	deps     StageDeps
}

func newStageFixture(text string) *stageFixture {
	f := &stageFixture{
		repo:     newRepoFake(uploaded(docID, owner.ID)),
		results:  newResultsFake(),
		store:    newStoreFake(),
		audit:    &auditFake{},
		observer: &observerFake{},
		reviewer: &reviewerFake{verdict: domain.ReviewVerdict{RiskLevel: domain.UPLRiskLow}},
	}
	f.store.data[docID] = []byte(text)
	f.store.meta[docID] = uploaded(docID, owner.ID)
	f.deps = testDeps(f.repo, f.results, f.audit, f.observer)
	return f
}

func (f *stageFixture) extract(t *testing.T) *domain.ExtractionResult {
	t.Helper()
	engine := extraction.NewEngine(extraction.DefaultConfig(), nil, nil, nil, nil)
	res, err := NewExtractDocumentUseCase(f.deps, f.store, engine).Process(context.Background(), docID, owner)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	return res
}

type classifierFake struct {
	docType domain.DocumentType
	err     error
	texts   []string
}

func (c *classifierFake) Classify(text string, result *domain.ClassificationResult) error {
	c.texts = append(c.texts, text)
	if c.err != nil {
		result.DocumentType = domain.DocUnknown
		result.AttorneyReviewRequired = true
		return c.err
	}
	result.DocumentType = c.docType
	result.SubjectCategory = domain.SubjectGeneral
	result.DocumentTypeConfidence = 70
	result.Confidence = 35
	return nil
}

type analyzerFake struct {
	level  domain.ComplianceLevel
	err    error
	inputs []compliance.Input
}

func (a *analyzerFake) Analyze(_ context.Context, in compliance.Input, result *domain.AnalysisResult) error {
	a.inputs = append(a.inputs, in)
	if a.err != nil {
		compliance.Fail(result, a.err)
		return a.err
	}
	result.ComplianceLevel = a.level
	result.Flags.AttorneyReviewRequired = a.level == domain.ComplianceRequiresAttorneyReview
	result.Flags.UPLRiskLevel = domain.UPLRiskLow
	return nil
}

func TestExtractPlainTextScenario(t *testing.T) {
	f := newStageFixture("This is a test document.")

	res := f.extract(t)

	if res.Status != domain.ExtractionCompleted || res.Strategy != domain.StrategyTextDocument {
		t.Fatalf("unexpected status/strategy %s/%s", res.Status, res.Strategy)
	}
	if res.Confidence != 100 || res.ExtractedText != "This is a test document." {
		t.Fatalf("unexpected extraction %v %q", res.Confidence, res.ExtractedText)
	}
	if f.repo.countResults(domain.ResultExtraction) != 1 {
		t.Fatalf("expected one indexed extraction")
	}
	if !slices.Contains(f.audit.types(), domain.AuditExtractionCompleted) {
		t.Fatalf("expected extraction audit event, got %v", f.audit.types())
	}
	if len(f.observer.confidences) != 1 || f.observer.confidences[0] != 100 {
		t.Fatalf("unexpected confidence observations %v", f.observer.confidences)
	}
}

func TestExtractOpenFailureIsRecordedNotReturned(t *testing.T) {
	f := newStageFixture("text")
	f.store.openErr = domain.WrapError(domain.ErrIntegrity, "verify document", errors.New("sha256 mismatch"))

	res := f.extract(t)

	if res.Status != domain.ExtractionFailed || len(res.Errors) == 0 {
		t.Fatalf("expected failed result with errors, got %+v", res)
	}
	if !slices.Contains(f.audit.types(), domain.AuditExtractionFailed) {
		t.Fatalf("expected extraction_failed audit event")
	}
}

func TestExtractResultWriteFailureIsHard(t *testing.T) {
	f := newStageFixture("text")
	f.results.saveErr = domain.WrapError(domain.ErrStorage, "write result", errors.New("read-only fs"))

	engine := extraction.NewEngine(extraction.DefaultConfig(), nil, nil, nil, nil)
	_, err := NewExtractDocumentUseCase(f.deps, f.store, engine).Process(context.Background(), docID, owner)
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestExtractUnauthorizedPersistsNothing(t *testing.T) {
	f := newStageFixture("text")
	engine := extraction.NewEngine(extraction.DefaultConfig(), nil, nil, nil, nil)

	_, err := NewExtractDocumentUseCase(f.deps, f.store, engine).Process(context.Background(), docID, domain.Requester{ID: "other", Role: domain.RoleParalegal})
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if len(f.repo.results) != 0 {
		t.Fatalf("expected nothing persisted, got %d records", len(f.repo.results))
	}
}

func TestClassifyUsesLatestExtractionAndReviewExcerpt(t *testing.T) {
	long := strings.Repeat("word ", 400)
	f := newStageFixture(long)
	extracted := f.extract(t)
	classifier := &classifierFake{docType: domain.DocMotion}
	f.reviewer.verdict = domain.ReviewVerdict{RequiresReview: true, RiskLevel: domain.UPLRiskHigh}

	res, err := NewClassifyDocumentUseCase(f.deps, classifier, f.reviewer, nil).Classify(context.Background(), docID, owner)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if res.ExtractionID != extracted.ID {
		t.Fatalf("expected extraction id %s, got %s", extracted.ID, res.ExtractionID)
	}
	if len(classifier.texts) != 1 || classifier.texts[0] != extracted.ExtractedText {
		t.Fatalf("classifier did not see the extracted text")
	}
	if len(f.reviewer.texts) != 1 || len([]rune(f.reviewer.texts[0])) != reviewExcerptRunes {
		t.Fatalf("expected a %d rune review excerpt", reviewExcerptRunes)
	}
	if !res.AttorneyReviewRequired {
		t.Fatalf("expected review required from desk verdict")
	}
	if !f.repo.docs[docID].RequiresReview {
		t.Fatalf("expected document review flag set")
	}
}

func TestClassifyWithoutExtractionWarns(t *testing.T) {
	f := newStageFixture("")
	classifier := &classifierFake{docType: domain.DocUnknown}

	res, err := NewClassifyDocumentUseCase(f.deps, classifier, f.reviewer, nil).Classify(context.Background(), docID, owner)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "no extraction") {
		t.Fatalf("expected missing extraction warning, got %v", res.Warnings)
	}
	if classifier.texts[0] != "" {
		t.Fatalf("expected empty text, got %q", classifier.texts[0])
	}
	if res.AttorneyReviewRequired {
		t.Fatalf("clean desk verdict should not require review")
	}
}

func TestClassifyReviewDeskErrorForcesReview(t *testing.T) {
	f := newStageFixture("text")
	f.reviewer.reviewErr = errors.New("desk offline")

	res, err := NewClassifyDocumentUseCase(f.deps, &classifierFake{docType: domain.DocBrief}, f.reviewer, nil).Classify(context.Background(), docID, owner)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !res.AttorneyReviewRequired {
		t.Fatalf("expected review required when the desk fails")
	}
}

func TestClassifyFailureIsPersistedAndAudited(t *testing.T) {
	f := newStageFixture("text")
	classifier := &classifierFake{err: domain.WrapError(domain.ErrClassification, "classify", errors.New("panic: boom"))}

	res, err := NewClassifyDocumentUseCase(f.deps, classifier, f.reviewer, nil).Classify(context.Background(), docID, owner)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if res.DocumentType != domain.DocUnknown || !res.AttorneyReviewRequired {
		t.Fatalf("expected degraded result, got %+v", res)
	}
	rec, _ := f.repo.LatestResult(context.Background(), docID, domain.ResultClassification)
	if rec == nil || rec.Status != "failed" {
		t.Fatalf("expected failed classification record, got %+v", rec)
	}
	if !slices.Contains(f.audit.types(), domain.AuditClassificationFailed) {
		t.Fatalf("expected classification_failed audit event")
	}
	if len(f.reviewer.texts) != 0 {
		t.Fatalf("desk should not be consulted after a failed classification")
	}
}

func TestAnalyzeEscalatesWhenReviewRequired(t *testing.T) {
	f := newStageFixture("you should file a lawsuit")
	f.extract(t)
	if _, err := NewClassifyDocumentUseCase(f.deps, &classifierFake{docType: domain.DocUnknown}, f.reviewer, nil).
		Classify(context.Background(), docID, owner); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	analyzer := &analyzerFake{level: domain.ComplianceRequiresAttorneyReview}

	res, err := NewAnalyzeDocumentUseCase(f.deps, analyzer, f.reviewer, nil).Analyze(context.Background(), docID, "", owner)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if res.AnalysisType != domain.AnalysisComprehensive {
		t.Fatalf("expected comprehensive default, got %s", res.AnalysisType)
	}
	if analyzer.inputs[0].Text != "you should file a lawsuit" || analyzer.inputs[0].Classification == nil {
		t.Fatalf("analyzer input incomplete: %+v", analyzer.inputs[0])
	}
	if len(f.reviewer.escalations) != 1 {
		t.Fatalf("expected one escalation, got %d", len(f.reviewer.escalations))
	}
	esc := f.reviewer.escalations[0]
	if esc.contentID != res.ID || esc.details["document_id"] != docID {
		t.Fatalf("unexpected escalation %+v", esc)
	}
	if !f.repo.docs[docID].RequiresReview {
		t.Fatalf("expected document review flag set")
	}
	if !slices.Contains(f.audit.types(), domain.AuditReviewEscalated) {
		t.Fatalf("expected escalation audit event")
	}
	if len(f.observer.levels) != 1 || f.observer.levels[0] != domain.ComplianceRequiresAttorneyReview {
		t.Fatalf("unexpected level observations %v", f.observer.levels)
	}
}

func TestAnalyzeEducationalOnlyDoesNotEscalate(t *testing.T) {
	f := newStageFixture("This is a test document.")
	f.extract(t)

	res, err := NewAnalyzeDocumentUseCase(f.deps, &analyzerFake{level: domain.ComplianceEducationalOnly}, f.reviewer, nil).
		Analyze(context.Background(), docID, domain.AnalysisSummary, owner)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if res.ComplianceLevel != domain.ComplianceEducationalOnly {
		t.Fatalf("unexpected level %s", res.ComplianceLevel)
	}
	if len(f.reviewer.escalations) != 0 || f.repo.docs[docID].RequiresReview {
		t.Fatalf("educational content must not be escalated")
	}
}

func TestAnalyzeFailureStillPersistsAndEscalates(t *testing.T) {
	f := newStageFixture("text")
	f.results.saveErr = domain.WrapError(domain.ErrStorage, "write result", errors.New("disk full"))
	analyzer := &analyzerFake{err: domain.WrapError(domain.ErrComplianceAssessment, "analyze", errors.New("no classification"))}

	_, err := NewAnalyzeDocumentUseCase(f.deps, analyzer, f.reviewer, nil).Analyze(context.Background(), docID, "", owner)
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if len(f.reviewer.escalations) != 1 {
		t.Fatalf("expected escalation even when persistence fails")
	}
	if f.reviewer.escalations[0].risk != domain.UPLRiskCritical {
		t.Fatalf("expected critical risk on failure, got %s", f.reviewer.escalations[0].risk)
	}
}

func TestLatestResultDecodesByKind(t *testing.T) {
	f := newStageFixture("This is a test document.")
	first := f.extract(t)
	second := f.extract(t)
	uc := NewDocumentQueryUseCase(f.deps)

	view, err := uc.LatestResult(context.Background(), docID, domain.ResultExtraction, owner)
	if err != nil {
		t.Fatalf("LatestResult() error = %v", err)
	}
	got, ok := view.Result.(*domain.ExtractionResult)
	if !ok {
		t.Fatalf("expected extraction body, got %T", view.Result)
	}
	if got.ID != second.ID || got.ID == first.ID {
		t.Fatalf("expected newest extraction %s, got %s", second.ID, got.ID)
	}

	_, err = uc.LatestResult(context.Background(), docID, domain.ResultAnalysis, owner)
	if !domain.IsKind(err, domain.ErrResultNotFound) {
		t.Fatalf("expected result not found, got %v", err)
	}
	_, err = uc.LatestResult(context.Background(), docID, domain.ResultExtraction, domain.Requester{ID: "x", Role: domain.RoleClient})
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestGetDocumentAllowsElevatedRoles(t *testing.T) {
	f := newStageFixture("")
	uc := NewDocumentQueryUseCase(f.deps)

	doc, err := uc.GetDocument(context.Background(), docID, domain.Requester{ID: "co-1", Role: domain.RoleComplianceOfficer})
	if err != nil {
		t.Fatalf("GetDocument() error = %v", err)
	}
	if doc.ID != docID {
		t.Fatalf("unexpected document %s", doc.ID)
	}
}
