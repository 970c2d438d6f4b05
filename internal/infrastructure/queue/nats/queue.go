package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
)

const (
	DefaultIngestSubject     = "documents.ingested"
	DefaultEscalationSubject = "legal.review.escalations"
	DefaultQueueGroup        = "pipeline-workers"

	publishedAtHeader = "Legal-Published-At"
)

type Queue struct {
	conn              *nats.Conn
	subject           string
	escalationSubject string
	queueGroup        string
	executor          *resilience.Executor
	logger            *slog.Logger
	onLag             func(time.Duration)
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	EscalationSubject    string
	QueueGroup           string
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
	// OnLag receives the publish-to-delivery delay of each ingested message.
	OnLag func(time.Duration)
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("legal-intake"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newQueue(conn, subject, options, logger), nil
}

func newQueue(conn *nats.Conn, subject string, options Options, logger *slog.Logger) *Queue {
	if subject == "" {
		subject = DefaultIngestSubject
	}
	escalation := options.EscalationSubject
	if escalation == "" {
		escalation = DefaultEscalationSubject
	}
	group := options.QueueGroup
	if group == "" {
		group = DefaultQueueGroup
	}
	return &Queue{
		conn:              conn,
		subject:           subject,
		escalationSubject: escalation,
		queueGroup:        group,
		executor:          options.ResilienceExecutor,
		logger:            logger,
		onLag:             options.OnLag,
	}
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishDocumentIngested(ctx context.Context, documentID string) error {
	msg := nats.NewMsg(q.subject)
	msg.Data = []byte(documentID)
	msg.Header.Set(publishedAtHeader, time.Now().UTC().Format(time.RFC3339Nano))
	return q.publish(ctx, "nats.publish", msg)
}

// PublishEscalation announces an attorney review escalation as JSON.
func (q *Queue) PublishEscalation(ctx context.Context, item domain.ReviewItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal escalation: %w", err)
	}
	msg := nats.NewMsg(q.escalationSubject)
	msg.Data = payload
	return q.publish(ctx, "nats.publish_escalation", msg)
}

func (q *Queue) publish(ctx context.Context, operation string, msg *nats.Msg) error {
	call := func(_ context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, operation, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return asTemporary(operation, err)
	}
	return nil
}

// SubscribeDocumentIngested joins the worker queue group and blocks until
// ctx is done, then drains the subscription.
func (q *Queue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.queueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		q.observeLag(msg)

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		documentID := string(msg.Data)
		if err := handler(handlerCtx, documentID); err != nil {
			q.logger.Error("worker handler error", "document_id", documentID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) observeLag(msg *nats.Msg) {
	if q.onLag == nil || msg.Header == nil {
		return
	}
	raw := msg.Header.Get(publishedAtHeader)
	if raw == "" {
		return
	}
	published, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return
	}
	if lag := time.Since(published); lag >= 0 {
		q.onLag(lag)
	}
}
