package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/legal-intake/internal/adapters/mcp"
	"github.com/kirillkom/legal-intake/internal/bootstrap"
	"github.com/kirillkom/legal-intake/internal/config"
	"github.com/kirillkom/legal-intake/internal/observability/logging"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	// stdout carries the MCP protocol.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	tools := mcpadapter.NewTools(mcpadapter.Services{
		Intake:         app.IntakeUC,
		Reader:         app.QueryUC,
		Extraction:     app.ExtractUC,
		Classification: app.ClassifyUC,
		Compliance:     app.AnalyzeUC,
	})
	if err := server.ServeStdio(mcpadapter.NewServer("legal-intake", version, tools)); err != nil {
		logger.Error("mcp server stopped", "error", err)
	}
}
