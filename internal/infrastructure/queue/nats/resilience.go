package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
)

// connectionErrors clear up once the client reconnects, so a publish that
// hits one is worth another attempt.
var connectionErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrConnectionReconnecting,
}

func classifyNATSError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err); ok {
		return class
	}
	for _, target := range connectionErrors {
		if errors.Is(err, target) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
	}
	// Bad subjects and oversized payloads fail the same way every time.
	return resilience.ErrorClassification{RecordFailure: true}
}

// asTemporary marks connection trouble and open breakers as ErrTemporary so
// callers answer 503 instead of 500. Other errors pass through unchanged.
func asTemporary(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
