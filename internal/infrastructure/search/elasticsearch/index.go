package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
)

// analysisDocument is the searchable projection of an analysis. Extracted
// text never leaves the encrypted store.
type analysisDocument struct {
	AnalysisID       string   `json:"analysis_id"`
	DocumentID       string   `json:"document_id"`
	ClassificationID string   `json:"classification_id,omitempty"`
	AnalysisType     string   `json:"analysis_type"`
	ComplianceLevel  string   `json:"compliance_level"`
	UPLRiskLevel     string   `json:"upl_risk_level"`
	UPLRiskScore     float64  `json:"upl_risk_score"`
	ReviewRequired   bool     `json:"attorney_review_required"`
	Purpose          string   `json:"purpose,omitempty"`
	KeyConcepts      []string `json:"key_concepts,omitempty"`
	KeyFindings      []string `json:"key_findings,omitempty"`
	Failed           bool     `json:"failed"`
	CreatedAt        string   `json:"created_at"`
}

type Index struct {
	client   *elasticsearch.Client
	index    string
	executor *resilience.Executor
	logger   *slog.Logger
}

func New(url, index string, executor *resilience.Executor, logger *slog.Logger) (*Index, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{url}})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig(), resilience.WithLogger(logger))
	}
	if index == "" {
		index = "legal-analyses"
	}
	return &Index{client: client, index: index, executor: executor, logger: logger}, nil
}

// IndexAnalysis upserts the analysis under its own ID, so re-indexing the
// same result is harmless.
func (i *Index) IndexAnalysis(ctx context.Context, result *domain.AnalysisResult) error {
	if result == nil {
		return nil
	}
	body, err := json.Marshal(project(result))
	if err != nil {
		return fmt.Errorf("marshal analysis for index: %w", err)
	}

	return i.executor.Execute(ctx, "elasticsearch.index_analysis", func(ctx context.Context) error {
		res, err := i.client.Index(
			i.index,
			bytes.NewReader(body),
			i.client.Index.WithDocumentID(result.ID),
			i.client.Index.WithContext(ctx),
		)
		if err != nil {
			return domain.WrapError(domain.ErrTemporary, "index analysis", err)
		}
		defer res.Body.Close()
		if res.IsError() {
			msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
			err := fmt.Errorf("elasticsearch status %d: %s", res.StatusCode, bytes.TrimSpace(msg))
			if res.StatusCode >= 500 || res.StatusCode == 429 {
				return domain.WrapError(domain.ErrTemporary, "index analysis", err)
			}
			return err
		}
		i.logger.Debug("analysis indexed", "analysis_id", result.ID, "index", i.index)
		return nil
	}, classifyIndexError)
}

func project(r *domain.AnalysisResult) analysisDocument {
	return analysisDocument{
		AnalysisID:       r.ID,
		DocumentID:       r.DocumentID,
		ClassificationID: r.ClassificationID,
		AnalysisType:     string(r.AnalysisType),
		ComplianceLevel:  string(r.ComplianceLevel),
		UPLRiskLevel:     string(r.Flags.UPLRiskLevel),
		UPLRiskScore:     r.Flags.UPLRiskScore,
		ReviewRequired:   r.Flags.AttorneyReviewRequired,
		Purpose:          r.Summary.Purpose,
		KeyConcepts:      r.Summary.KeyConcepts,
		KeyFindings:      r.KeyFindings,
		Failed:           r.Failed,
		CreatedAt:        r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func classifyIndexError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err); ok {
		return class
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
