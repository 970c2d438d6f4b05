package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/kirillkom/legal-intake/internal/bootstrap"
	"github.com/kirillkom/legal-intake/internal/config"
	"github.com/kirillkom/legal-intake/internal/observability/logging"
	"github.com/kirillkom/legal-intake/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:     logger,
		Pipeline:   workerMetrics.Pipeline(),
		OnQueueLag: workerMetrics.ObserveQueueLag,
	})
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux(workerMetrics.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker metrics server error", "error", err)
		}
	}()

	grpcServer, healthServer, err := serveHealth(cfg.WorkerHealthPort, logger)
	if err != nil {
		logger.Error("health server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("worker subscribed", "subject", cfg.NATSSubject, "queue_group", cfg.NATSQueueGroup)
	err = app.Queue.SubscribeDocumentIngested(ctx, func(handlerCtx context.Context, documentID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, cfg.PipelineTimeout)
		defer cancel()

		done := workerMetrics.TrackDocument()
		started := time.Now()
		err := app.ProcessUC.ProcessByID(processCtx, documentID)
		done(err)
		logger.Info("document run finished",
			"document_id", documentID,
			"outcome", metrics.RunOutcome(err),
			"duration_ms", time.Since(started).Milliseconds(),
		)
		return err
	})
	if err != nil {
		logger.Error("worker subscribe error", "error", err)
	}

	healthServer.Shutdown()
	grpcServer.GracefulStop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker metrics shutdown error", "error", err)
	}
}

func metricsMux(metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func serveHealth(port string, logger *slog.Logger) (*grpc.Server, *health.Server, error) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, nil, err
	}
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	go func() {
		logger.Info("worker grpc health listening", "port", port)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc health serve error", "error", err)
		}
	}()
	return grpcServer, hs, nil
}
