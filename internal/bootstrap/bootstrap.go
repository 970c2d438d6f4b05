package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/legal-intake/internal/config"
	"github.com/kirillkom/legal-intake/internal/core/classification"
	"github.com/kirillkom/legal-intake/internal/core/compliance"
	"github.com/kirillkom/legal-intake/internal/core/extraction"
	"github.com/kirillkom/legal-intake/internal/core/intake"
	"github.com/kirillkom/legal-intake/internal/core/ports"
	"github.com/kirillkom/legal-intake/internal/core/usecase"
	"github.com/kirillkom/legal-intake/internal/infrastructure/audit"
	"github.com/kirillkom/legal-intake/internal/infrastructure/crypto/aead"
	"github.com/kirillkom/legal-intake/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/legal-intake/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/legal-intake/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/legal-intake/internal/infrastructure/mirror/s3"
	"github.com/kirillkom/legal-intake/internal/infrastructure/ocr/tesseract"
	"github.com/kirillkom/legal-intake/internal/infrastructure/queue/nats"
	"github.com/kirillkom/legal-intake/internal/infrastructure/repository/sqlstore"
	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
	"github.com/kirillkom/legal-intake/internal/infrastructure/review"
	"github.com/kirillkom/legal-intake/internal/infrastructure/rules"
	"github.com/kirillkom/legal-intake/internal/infrastructure/scanner/signature"
	"github.com/kirillkom/legal-intake/internal/infrastructure/search/elasticsearch"
	"github.com/kirillkom/legal-intake/internal/infrastructure/storage/securefs"
	"github.com/kirillkom/legal-intake/internal/observability/metrics"
)

// Options carries what differs between binaries. Every field is optional.
type Options struct {
	Logger   *slog.Logger
	Pipeline *metrics.PipelineMetrics
	// OnQueueLag receives the publish-to-delivery delay of ingestion events.
	OnQueueLag func(time.Duration)
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	DB    *sql.DB
	Queue ports.MessageQueue

	IntakeUC   *usecase.IntakeDocumentUseCase
	QueryUC    *usecase.DocumentQueryUseCase
	ExtractUC  *usecase.ExtractDocumentUseCase
	ClassifyUC *usecase.ClassifyDocumentUseCase
	AnalyzeUC  *usecase.AnalyzeDocumentUseCase
	ProcessUC  *usecase.ProcessDocumentUseCase

	ReviewExporter *xlsx.ReviewExporter

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (app *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	app = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	executor := newExecutor(cfg, logger, opts.Pipeline)

	dialect, err := sqlstore.ParseDialect(cfg.RepositoryDriver)
	if err != nil {
		return nil, err
	}
	db, err := sqlstore.Open(dialect, cfg.RepositoryDSN())
	if err != nil {
		return nil, fmt.Errorf("open %s repository: %w", dialect, err)
	}
	app.DB = db
	app.closers = append(app.closers, func() { _ = db.Close() })
	if err := sqlstore.EnsureSchema(ctx, db, dialect); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	repo := sqlstore.NewDocumentRepository(db, dialect)
	reviewQueue := sqlstore.NewReviewQueueRepository(db, dialect)
	auditRepo := sqlstore.NewAuditRepository(db, dialect)

	masterKey, err := aead.ParseMasterKey(cfg.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("parse master key: %w", err)
	}
	cipher, err := aead.New(masterKey)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	store, err := securefs.New(cfg.StoragePath, cipher)
	if err != nil {
		return nil, fmt.Errorf("init secure storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		EscalationSubject:  cfg.NATSEscalationSubject,
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: executor,
		Logger:             logger,
		OnLag:              opts.OnQueueLag,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.Queue = queue
	app.closers = append(app.closers, queue.Close)

	bundle, err := rules.Load(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	assessor := compliance.NewAssessor(compliance.Config{
		MediumThreshold:   cfg.UPLThresholdMedium,
		HighThreshold:     cfg.UPLThresholdHigh,
		CriticalThreshold: cfg.UPLThresholdCritical,
	}, bundle.Compliance)

	deskOpts := []review.Option{review.WithPublisher(queue)}
	if opts.Pipeline != nil {
		deskOpts = append(deskOpts, review.WithEscalationObserver(opts.Pipeline.RecordEscalation))
	}
	desk := review.NewDesk(assessor, reviewQueue, logger, deskOpts...)

	ocr := tesseract.New(tesseract.Config{
		Pdftoppm:  cfg.PdftoppmPath,
		Tesseract: cfg.TesseractPath,
		Language:  cfg.OCRLanguage,
		DPI:       cfg.OCRDPI,
		MaxPages:  cfg.OCRMaxPages,
	}, executor, logger)
	if cfg.OCREnabled {
		if err := ocr.Available(); err != nil {
			logger.Warn("ocr binaries not found; scanned documents will fail extraction", "error", err)
		}
	}
	extractor := extraction.NewEngine(extraction.Config{
		MinTextLength:     cfg.OCRMinTextLength,
		MinWordConfidence: cfg.OCRMinWordConfidence,
		PageConcurrency:   cfg.OCRPageConcurrency,
		OCREnabled:        cfg.OCREnabled,
	}, pdftext.NewReader(), ocr, ocr, logger)

	classifier := classification.NewEngine(classification.Config{
		TypeScale:    cfg.ClassifyTypeScale,
		TypeFloor:    cfg.ClassifyTypeFloor,
		SubjectScale: cfg.ClassifySubjectScale,
		SubjectFloor: cfg.ClassifySubjectFloor,
	}, bundle.Classification, logger)
	analyzer := compliance.NewAnalyzer(assessor, desk, logger)

	graph, index, mirror := optionalAdapters(ctx, cfg, executor, logger, app)

	deps := usecase.StageDeps{
		Repo:    repo,
		Results: store,
		Audit:   audit.Fanout{audit.NewLogSink(logger), auditRepo},
		Logger:  logger,
	}
	if opts.Pipeline != nil {
		deps.Observer = opts.Pipeline
	}

	app.IntakeUC = usecase.NewIngestDocumentUseCase(deps, intake.NewValidator(cfg.MaxUploadBytes), signature.New(), store, queue, mirror)
	app.QueryUC = usecase.NewDocumentQueryUseCase(deps)
	app.ExtractUC = usecase.NewExtractDocumentUseCase(deps, store, extractor)
	app.ClassifyUC = usecase.NewClassifyDocumentUseCase(deps, classifier, desk, graph)
	app.AnalyzeUC = usecase.NewAnalyzeDocumentUseCase(deps, analyzer, desk, index)
	app.ProcessUC = usecase.NewProcessDocumentUseCase(app.ExtractUC, app.ClassifyUC, app.AnalyzeUC)
	app.ReviewExporter = xlsx.NewReviewExporter(reviewQueue, cfg.ReviewExportLimit, logger)

	logger.Info("bootstrap complete",
		"repository_driver", string(dialect),
		"ocr_enabled", cfg.OCREnabled,
		"case_graph", graph != nil,
		"search_index", index != nil,
		"quarantine_mirror", mirror != nil,
	)
	return app, nil
}

// optionalAdapters connects the graph, search and mirror backends that are
// configured. A backend that fails to connect is logged and left out.
func optionalAdapters(
	ctx context.Context,
	cfg config.Config,
	executor *resilience.Executor,
	logger *slog.Logger,
	app *App,
) (ports.CaseGraph, ports.ResultIndexer, ports.QuarantineMirror) {
	var (
		graph  ports.CaseGraph
		index  ports.ResultIndexer
		mirror ports.QuarantineMirror
	)

	if cfg.Neo4jURI != "" {
		g, err := neo4j.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, neo4j.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			logger.Warn("case graph disabled", "error", err)
		} else {
			graph = g
			app.closers = append(app.closers, func() { _ = g.Close(context.Background()) })
		}
	}

	if cfg.ElasticsearchURL != "" {
		idx, err := elasticsearch.New(cfg.ElasticsearchURL, cfg.ElasticsearchIndex, executor, logger)
		if err != nil {
			logger.Warn("search index disabled", "error", err)
		} else {
			index = idx
		}
	}

	if cfg.QuarantineS3Bucket != "" {
		m, err := s3.New(s3.Config{
			Bucket:   cfg.QuarantineS3Bucket,
			Region:   cfg.QuarantineS3Region,
			Endpoint: cfg.QuarantineS3Endpoint,
		}, executor, logger)
		if err != nil {
			logger.Warn("quarantine mirror disabled", "error", err)
		} else {
			mirror = m
		}
	}
	return graph, index, mirror
}

// newExecutor shares one breaker set across adapters. OCR binaries get a
// single attempt: a failed tesseract run fails the same way again.
func newExecutor(cfg config.Config, logger *slog.Logger, pipeline *metrics.PipelineMetrics) *resilience.Executor {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.ResilienceRetryAttempts
	rc.BreakerEnabled = cfg.ResilienceBreakerEnabled
	rc.BreakerOpenTimeout = cfg.ResilienceOpenTimeout
	return resilience.NewExecutor(rc.WithAttempts("ocr.", 1), executorOptions(logger, pipeline)...)
}

func executorOptions(logger *slog.Logger, pipeline *metrics.PipelineMetrics) []resilience.Option {
	out := []resilience.Option{resilience.WithLogger(logger)}
	if pipeline != nil {
		out = append(out, resilience.WithStateObserver(pipeline.BreakerStateChanged))
	}
	return out
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
