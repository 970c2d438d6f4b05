// Package audit provides audit sinks: a structured log line, a database
// row, or both.
package audit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

// LogSink writes each event as one INFO line on the audit logger.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "audit")}
}

func (s *LogSink) Record(ctx context.Context, event domain.AuditEvent) error {
	s.logger.InfoContext(ctx, "audit event",
		"event_type", event.EventType,
		"document_id", event.DocumentID,
		"user_id", event.UserID,
		"occurred_at", event.OccurredAt,
		"details", event.Details,
	)
	return nil
}

// Fanout records to every sink and joins their errors.
type Fanout []ports.AuditSink

func (f Fanout) Record(ctx context.Context, event domain.AuditEvent) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
