package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

// StageDeps are the collaborators shared by every stage use case. Audit, Observer and Logger
// are optional.
type StageDeps struct {
	Repo     ports.DocumentRepository
	Results  ports.ResultStore
	Audit    ports.AuditSink
	Observer ports.PipelineObserver
	Logger   *slog.Logger
}

func (d StageDeps) withDefaults() StageDeps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Observer == nil {
		d.Observer = noopObserver{}
	}
	return d
}

// authorize loads the document index row and checks the requester may act
// on it. A denial is audited.
func (d StageDeps) authorize(ctx context.Context, documentID string, requester domain.Requester, op string) (*domain.StoredDocument, error) {
	doc, err := d.Repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !requester.CanAccess(doc) {
		d.audit(ctx, domain.AuditEvent{
			EventType:  domain.AuditAccessDenied,
			DocumentID: documentID,
			UserID:     requester.ID,
			Details:    map[string]any{"operation": op, "role": string(requester.Role)},
		})
		return nil, domain.WrapError(domain.ErrUnauthorized, op, fmt.Errorf("requester %q may not access document %s", requester.ID, documentID))
	}
	return doc, nil
}

// audit is one-way: a sink failure is logged and swallowed.
func (d StageDeps) audit(ctx context.Context, event domain.AuditEvent) {
	if d.Audit == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := d.Audit.Record(ctx, event); err != nil {
		d.Logger.Warn("audit record failed", "event_type", event.EventType, "document_id", event.DocumentID, "error", err)
	}
}

// persist writes the encrypted result and then its index record. Either
// failing is a hard storage failure.
func (d StageDeps) persist(ctx context.Context, kind domain.ResultKind, rec domain.ResultRecord, result any) error {
	if err := d.Results.SaveResult(ctx, kind, rec.ID, result); err != nil {
		return fmt.Errorf("persist %s result: %w", kind, err)
	}
	rec.Kind = kind
	if err := d.Repo.AppendResult(ctx, rec); err != nil {
		return fmt.Errorf("index %s result: %w", kind, err)
	}
	return nil
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", domain.WrapError(domain.ErrStorage, "generate id", err)
	}
	return id.String(), nil
}

type noopObserver struct{}

func (noopObserver) UploadHandled(string) {}
func (noopObserver) StageCompleted(domain.ResultKind, string, time.Duration) {}
func (noopObserver) ExtractionConfidence(domain.ExtractionStrategy, float64) {}
func (noopObserver) ComplianceLevel(domain.ComplianceLevel) {}
