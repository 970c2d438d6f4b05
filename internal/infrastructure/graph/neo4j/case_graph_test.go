package neo4j

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
)

type recordedRun struct {
	cypher string
	params map[string]any
}

func newTestGraph(runs *[]recordedRun, err error) *CaseGraph {
	exec := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1})
	return newCaseGraph(func(_ context.Context, cypher string, params map[string]any) error {
		*runs = append(*runs, recordedRun{cypher: cypher, params: params})
		return err
	}, Options{ResilienceExecutor: exec})
}

func TestLinkClassificationSendsCaseCourtAndParties(t *testing.T) {
	var runs []recordedRun
	g := newTestGraph(&runs, nil)

	err := g.LinkClassification(context.Background(), &domain.ClassificationResult{
		ID:              "cls-1",
		DocumentID:      "doc-1",
		DocumentType:    domain.DocMotion,
		SubjectCategory: domain.SubjectBankruptcy,
		Metadata: domain.DocumentMetadata{
			CaseNumber:   "2023-CV-1234",
			CourtName:    "United States Bankruptcy Court",
			Jurisdiction: "Federal",
			Parties:      []domain.ExtractedParty{{Name: "Acme Corp", Role: "debtor"}},
		},
		CreatedAt: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("LinkClassification() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one query, got %d", len(runs))
	}
	if !strings.Contains(runs[0].cypher, "MERGE (d:Document {id: $document_id})") {
		t.Fatalf("unexpected cypher %s", runs[0].cypher)
	}
	p := runs[0].params
	if p["case_number"] != "2023-CV-1234" || p["document_type"] != "motion" || p["classified_at"] != "2026-10-18T00:00:00Z" {
		t.Fatalf("unexpected params %v", p)
	}
	parties, ok := p["parties"].([]map[string]any)
	if !ok || len(parties) != 1 || parties[0]["role"] != "debtor" {
		t.Fatalf("unexpected parties param %v", p["parties"])
	}
}

func TestLinkClassificationNilIsNoop(t *testing.T) {
	var runs []recordedRun
	g := newTestGraph(&runs, nil)
	if err := g.LinkClassification(context.Background(), nil); err != nil {
		t.Fatalf("LinkClassification(nil) error = %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected no queries")
	}
}

func TestLinkClassificationPropagatesErrors(t *testing.T) {
	var runs []recordedRun
	g := newTestGraph(&runs, errors.New("syntax error"))
	if err := g.LinkClassification(context.Background(), &domain.ClassificationResult{DocumentID: "doc-1"}); err == nil {
		t.Fatalf("expected error")
	}
}
