// Package review implements the attorney review desk: an in-process content
// check backed by a persistent escalation queue.
package review

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

// ContentChecker decides whether a piece of content needs an attorney.
type ContentChecker interface {
	Review(text string) domain.ReviewVerdict
}

// Desk satisfies ports.AttorneyReview. The publisher is optional.
type Desk struct {
	checker    ContentChecker
	queue      ports.ReviewQueueRepository
	publisher  ports.EscalationPublisher
	logger     *slog.Logger
	now        func() time.Time
	onEscalate func(domain.UPLRiskLevel)
}

type Option func(*Desk)

func WithPublisher(p ports.EscalationPublisher) Option {
	return func(d *Desk) { d.publisher = p }
}

// WithEscalationObserver is called once per escalation that reached the queue.
func WithEscalationObserver(fn func(domain.UPLRiskLevel)) Option {
	return func(d *Desk) { d.onEscalate = fn }
}

func NewDesk(checker ContentChecker, queue ports.ReviewQueueRepository, logger *slog.Logger, opts ...Option) *Desk {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Desk{checker: checker, queue: queue, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Desk) ReviewContent(ctx context.Context, text, contentID string) (domain.ReviewVerdict, error) {
	if err := ctx.Err(); err != nil {
		return domain.ReviewVerdict{}, err
	}
	if d.checker == nil {
		return domain.ReviewVerdict{}, errors.New("review desk has no content checker")
	}
	verdict := d.checker.Review(text)
	if verdict.RequiresReview {
		d.logger.Info("content flagged for attorney review",
			"content_id", contentID,
			"risk_level", verdict.RiskLevel,
			"reasons", verdict.Reasons,
		)
	}
	return verdict, nil
}

// Escalate queues the item for an attorney. A publish failure is logged;
// the queue row is the record of truth.
func (d *Desk) Escalate(ctx context.Context, contentID, reason string, risk domain.UPLRiskLevel, details map[string]any) error {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "escalate", err)
	}
	item := domain.ReviewItem{
		ID:        id.String(),
		ContentID: contentID,
		Reason:    reason,
		RiskLevel: risk,
		Details:   details,
		Status:    domain.ReviewPending,
		CreatedAt: d.now().UTC(),
	}
	if docID, ok := details["document_id"].(string); ok {
		item.DocumentID = docID
	}

	if d.queue == nil {
		return domain.WrapError(domain.ErrStorage, "escalate", errors.New("review queue not configured"))
	}
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return err
	}
	if d.onEscalate != nil {
		d.onEscalate(risk)
	}
	d.logger.Warn("attorney review escalated",
		"review_id", item.ID,
		"content_id", contentID,
		"document_id", item.DocumentID,
		"risk_level", risk,
		"reason", reason,
	)

	if d.publisher != nil {
		if err := d.publisher.PublishEscalation(ctx, item); err != nil {
			d.logger.Warn("publish escalation failed", "review_id", item.ID, "error", err)
		}
	}
	return nil
}
