package review

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

type fakeChecker struct {
	verdict domain.ReviewVerdict
	texts   []string
}

func (f *fakeChecker) Review(text string) domain.ReviewVerdict {
	f.texts = append(f.texts, text)
	return f.verdict
}

type fakeQueue struct {
	items []domain.ReviewItem
	err   error
}

func (f *fakeQueue) Enqueue(_ context.Context, item domain.ReviewItem) error {
	if f.err != nil {
		return f.err
	}
	f.items = append(f.items, item)
	return nil
}

func (f *fakeQueue) ListPending(context.Context, int) ([]domain.ReviewItem, error) {
	return f.items, nil
}

type fakePublisher struct {
	published []domain.ReviewItem
	err       error
}

func (f *fakePublisher) PublishEscalation(_ context.Context, item domain.ReviewItem) error {
	f.published = append(f.published, item)
	return f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReviewContentDelegatesToChecker(t *testing.T) {
	checker := &fakeChecker{verdict: domain.ReviewVerdict{RequiresReview: true, Reasons: []string{"mandatory review subject: bankruptcy"}}}
	desk := NewDesk(checker, &fakeQueue{}, quietLogger())

	verdict, err := desk.ReviewContent(context.Background(), "Chapter 7 petition", "cls-1")
	if err != nil {
		t.Fatalf("ReviewContent() error = %v", err)
	}
	if !verdict.RequiresReview || len(checker.texts) != 1 {
		t.Fatalf("unexpected verdict %+v (calls=%d)", verdict, len(checker.texts))
	}
}

func TestReviewContentHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	desk := NewDesk(&fakeChecker{}, &fakeQueue{}, quietLogger())
	if _, err := desk.ReviewContent(ctx, "x", "c"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEscalateQueuesAndPublishes(t *testing.T) {
	queue := &fakeQueue{}
	publisher := &fakePublisher{err: errors.New("nats down")}
	var observed []domain.UPLRiskLevel
	desk := NewDesk(&fakeChecker{}, queue, quietLogger(),
		WithPublisher(publisher),
		WithEscalationObserver(func(r domain.UPLRiskLevel) { observed = append(observed, r) }),
	)

	err := desk.Escalate(context.Background(), "analysis-1", "critical UPL risk", domain.UPLRiskCritical,
		map[string]any{"document_id": "doc-1", "score": 0.9})
	if err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	if len(queue.items) != 1 {
		t.Fatalf("queued items = %d, want 1", len(queue.items))
	}
	item := queue.items[0]
	if item.DocumentID != "doc-1" || item.Status != domain.ReviewPending || item.ID == "" {
		t.Fatalf("unexpected item %+v", item)
	}
	if len(publisher.published) != 1 || publisher.published[0].ID != item.ID {
		t.Fatalf("publisher did not receive the queued item")
	}
	if len(observed) != 1 || observed[0] != domain.UPLRiskCritical {
		t.Fatalf("observer calls = %v", observed)
	}
}

func TestEscalateFailsWhenQueueFails(t *testing.T) {
	queue := &fakeQueue{err: domain.WrapError(domain.ErrStorage, "enqueue review", errors.New("disk full"))}
	publisher := &fakePublisher{}
	desk := NewDesk(&fakeChecker{}, queue, quietLogger(), WithPublisher(publisher))

	err := desk.Escalate(context.Background(), "analysis-1", "reason", domain.UPLRiskHigh, nil)
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if len(publisher.published) != 0 {
		t.Fatalf("nothing should be published when the queue write fails")
	}
}
