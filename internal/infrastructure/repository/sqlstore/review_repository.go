package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

const defaultPendingLimit = 500

// ReviewQueueRepository stores attorney review escalations.
type ReviewQueueRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewReviewQueueRepository(db *sql.DB, dialect Dialect) *ReviewQueueRepository {
	return &ReviewQueueRepository{db: db, dialect: dialect}
}

func (r *ReviewQueueRepository) Enqueue(ctx context.Context, item domain.ReviewItem) error {
	details, err := marshalDetails(item.Details)
	if err != nil {
		return err
	}
	status := item.Status
	if status == "" {
		status = domain.ReviewPending
	}
	_, err = r.db.ExecContext(ctx, rebind(r.dialect, `
INSERT INTO review_queue (id, content_id, document_id, reason, risk_level, details, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`), item.ID, item.ContentID, item.DocumentID, item.Reason, string(item.RiskLevel), details, string(status), item.CreatedAt.UTC())
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "enqueue review", err)
	}
	return nil
}

// ListPending returns pending escalations oldest first.
func (r *ReviewQueueRepository) ListPending(ctx context.Context, limit int) ([]domain.ReviewItem, error) {
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	rows, err := r.db.QueryContext(ctx, rebind(r.dialect, `
SELECT id, content_id, document_id, reason, risk_level, details, status, created_at
FROM review_queue
WHERE status = $1
ORDER BY created_at ASC
LIMIT $2
`), string(domain.ReviewPending), limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "list pending reviews", err)
	}
	defer rows.Close()

	out := make([]domain.ReviewItem, 0)
	for rows.Next() {
		var (
			item       domain.ReviewItem
			risk       string
			status     string
			detailsRaw []byte
		)
		if err := rows.Scan(&item.ID, &item.ContentID, &item.DocumentID, &item.Reason, &risk, &detailsRaw, &status, &item.CreatedAt); err != nil {
			return nil, domain.WrapError(domain.ErrStorage, "scan review", err)
		}
		if len(detailsRaw) > 0 {
			if err := json.Unmarshal(detailsRaw, &item.Details); err != nil {
				return nil, domain.WrapError(domain.ErrStorage, "unmarshal review details", err)
			}
		}
		item.RiskLevel = domain.UPLRiskLevel(risk)
		item.Status = domain.ReviewStatus(status)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "iterate reviews", err)
	}
	return out, nil
}

func marshalDetails(details map[string]any) (string, error) {
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return "", domain.WrapError(domain.ErrStorage, "marshal details", err)
	}
	return string(raw), nil
}
