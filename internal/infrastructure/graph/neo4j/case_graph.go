package neo4j

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
)

const linkClassificationCypher = `
MERGE (d:Document {id: $document_id})
SET d.document_type = $document_type,
    d.subject_category = $subject_category,
    d.classification_id = $classification_id,
    d.classified_at = $classified_at
WITH d
FOREACH (_ IN CASE WHEN $case_number <> '' THEN [1] ELSE [] END |
  MERGE (c:Case {number: $case_number})
  MERGE (d)-[:FILED_IN]->(c))
FOREACH (_ IN CASE WHEN $court_name <> '' THEN [1] ELSE [] END |
  MERGE (ct:Court {name: $court_name})
  SET ct.jurisdiction = $jurisdiction
  MERGE (d)-[:BEFORE]->(ct))
FOREACH (p IN $parties |
  MERGE (pt:Party {name: p.name})
  MERGE (d)-[r:NAMES]->(pt)
  SET r.role = p.role)
`

type runFunc func(ctx context.Context, cypher string, params map[string]any) error

// CaseGraph links classified documents to their case, court and parties.
type CaseGraph struct {
	driver   neo4j.DriverWithContext
	run      runFunc
	database string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	Database           string
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

func New(ctx context.Context, uri, user, password string, options Options) (*CaseGraph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	g := newCaseGraph(nil, options)
	g.driver = driver
	g.run = g.executeQuery
	return g, nil
}

func newCaseGraph(run runFunc, options Options) *CaseGraph {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	executor := options.ResilienceExecutor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig(), resilience.WithLogger(logger))
	}
	database := options.Database
	if database == "" {
		database = "neo4j"
	}
	return &CaseGraph{run: run, database: database, executor: executor, logger: logger}
}

func (g *CaseGraph) executeQuery(ctx context.Context, cypher string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, g.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(g.database),
		neo4j.ExecuteQueryWithWritersRouting(),
	)
	return err
}

func (g *CaseGraph) LinkClassification(ctx context.Context, result *domain.ClassificationResult) error {
	if result == nil {
		return nil
	}
	params := linkParams(result)
	return g.executor.Execute(ctx, "neo4j.link_classification", func(ctx context.Context) error {
		return g.run(ctx, linkClassificationCypher, params)
	}, classifyNeo4jError)
}

func linkParams(result *domain.ClassificationResult) map[string]any {
	parties := make([]map[string]any, 0, len(result.Metadata.Parties))
	for _, p := range result.Metadata.Parties {
		parties = append(parties, map[string]any{"name": p.Name, "role": p.Role})
	}
	return map[string]any{
		"document_id":       result.DocumentID,
		"classification_id": result.ID,
		"document_type":     string(result.DocumentType),
		"subject_category":  string(result.SubjectCategory),
		"classified_at":     result.CreatedAt.UTC().Format(time.RFC3339),
		"case_number":       result.Metadata.CaseNumber,
		"court_name":        result.Metadata.CourtName,
		"jurisdiction":      result.Metadata.Jurisdiction,
		"parties":           parties,
	}
}

func classifyNeo4jError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err); ok {
		return class
	}
	if neo4j.IsRetryable(err) || neo4j.IsConnectivityError(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func (g *CaseGraph) Close(ctx context.Context) error {
	if g.driver == nil {
		return nil
	}
	return g.driver.Close(ctx)
}
