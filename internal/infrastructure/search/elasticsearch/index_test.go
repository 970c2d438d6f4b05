package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
)

func esServer(t *testing.T, status int, seen *[]*http.Request, bodies *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		*seen = append(*seen, r)
		*bodies = append(*bodies, string(raw))
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIndexAnalysisPutsProjectionUnderResultID(t *testing.T) {
	var seen []*http.Request
	var bodies []string
	srv := esServer(t, http.StatusCreated, &seen, &bodies)

	idx, err := New(srv.URL, "", resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1}), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	err = idx.IndexAnalysis(context.Background(), &domain.AnalysisResult{
		ID:              "analysis-1",
		DocumentID:      "doc-1",
		AnalysisType:    domain.AnalysisComprehensive,
		ComplianceLevel: domain.ComplianceEducationalOnly,
		Flags:           domain.ComplianceFlags{UPLRiskLevel: domain.UPLRiskMedium, UPLRiskScore: 0.4},
		CreatedAt:       time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("IndexAnalysis() error = %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("expected one request, got %d", len(seen))
	}
	if seen[0].Method != http.MethodPut || !strings.HasSuffix(seen[0].URL.Path, "/legal-analyses/_doc/analysis-1") {
		t.Fatalf("unexpected request %s %s", seen[0].Method, seen[0].URL.Path)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(bodies[0]), &doc); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if doc["compliance_level"] != "educational_only" || doc["upl_risk_score"] != 0.4 {
		t.Fatalf("unexpected body %v", doc)
	}
	if _, leaked := doc["extracted_text"]; leaked {
		t.Fatalf("projection must not carry document text")
	}
}

func TestIndexAnalysisSurfacesClientErrors(t *testing.T) {
	var seen []*http.Request
	var bodies []string
	srv := esServer(t, http.StatusBadRequest, &seen, &bodies)

	idx, err := New(srv.URL, "legal", resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 3}), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := idx.IndexAnalysis(context.Background(), &domain.AnalysisResult{ID: "a"}); err == nil {
		t.Fatalf("expected error on 400")
	}
	if len(seen) != 1 {
		t.Fatalf("4xx must not be retried, got %d requests", len(seen))
	}
}
