package sqlstore

import (
	"context"
	"database/sql"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

// AuditRepository appends audit events to the audit_events table.
type AuditRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewAuditRepository(db *sql.DB, dialect Dialect) *AuditRepository {
	return &AuditRepository{db: db, dialect: dialect}
}

func (r *AuditRepository) Record(ctx context.Context, event domain.AuditEvent) error {
	details, err := marshalDetails(event.Details)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, rebind(r.dialect, `
INSERT INTO audit_events (event_type, document_id, user_id, details, occurred_at)
VALUES ($1,$2,$3,$4,$5)
`), string(event.EventType), event.DocumentID, event.UserID, details, event.OccurredAt.UTC())
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "record audit event", err)
	}
	return nil
}
