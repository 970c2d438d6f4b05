package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errTransient = errors.New("transient")

func retryOnTransient(err error) ErrorClassification {
	return ErrorClassification{Retryable: errors.Is(err, errTransient), RecordFailure: true}
}

func TestExecuteRetryBudget(t *testing.T) {
	fast := Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
	}.WithAttempts("ocr.", 1).WithAttempts("ocr.tesseract.slow", 2)

	tests := []struct {
		name      string
		operation string
		failures  int
		failWith  error
		wantCalls int
		wantErr   bool
	}{
		{name: "recovers within budget", operation: "nats.publish", failures: 2, failWith: errTransient, wantCalls: 3},
		{name: "gives up after budget", operation: "nats.publish", failures: 5, failWith: errTransient, wantCalls: 3, wantErr: true},
		{name: "permanent error is not retried", operation: "nats.publish", failures: 5, failWith: errors.New("permanent"), wantCalls: 1, wantErr: true},
		{name: "prefix override runs once", operation: "ocr.tesseract", failures: 5, failWith: errTransient, wantCalls: 1, wantErr: true},
		{name: "longest prefix wins", operation: "ocr.tesseract.slow", failures: 5, failWith: errTransient, wantCalls: 2, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := NewExecutor(fast)
			calls := 0
			err := exec.Execute(context.Background(), tt.operation, func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.failWith
				}
				return nil
			}, retryOnTransient)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestWithAttemptsDoesNotShareOverrides(t *testing.T) {
	base := DefaultConfig().WithAttempts("ocr.", 1)
	derived := base.WithAttempts("s3.", 5)
	if _, ok := base.AttemptsByPrefix["s3."]; ok {
		t.Fatalf("override leaked into the base config")
	}
	if derived.attemptsFor("s3.mirror_quarantine") != 5 || derived.attemptsFor("ocr.pdftoppm") != 1 {
		t.Fatalf("unexpected overrides %v", derived.AttemptsByPrefix)
	}
	if derived.attemptsFor("neo4j.link_classification") != 3 {
		t.Fatalf("operations without an override keep the default budget")
	}
}

func TestExecuteStopsWhenContextEnds(t *testing.T) {
	exec := NewExecutor(Config{RetryMaxAttempts: 5, RetryInitialBackoff: time.Hour, RetryMaxBackoff: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := exec.Execute(ctx, "elasticsearch.index_analysis", func(context.Context) error {
		calls++
		cancel()
		return errTransient
	}, retryOnTransient)
	if !errors.Is(err, errTransient) || calls != 1 {
		t.Fatalf("expected the last error after one call, got %v after %d calls", err, calls)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestExecuteReportsBreakerTransitions(t *testing.T) {
	var transitions []string
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		BreakerEnabled:          true,
		BreakerMinRequests:      1,
		BreakerFailureRatio:     1,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	}, WithStateObserver(func(op string, from, to gobreaker.State) {
		transitions = append(transitions, op+":"+from.String()+"->"+to.String())
	}))

	_ = exec.Execute(context.Background(), "tesseract", func(context.Context) error {
		return errors.New("exit status 1")
	}, nil)

	if exec.State("tesseract") != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", exec.State("tesseract"))
	}
	if len(transitions) != 1 || transitions[0] != "tesseract:closed->open" {
		t.Fatalf("unexpected transitions %v", transitions)
	}
	if exec.State("never-called") != gobreaker.StateClosed {
		t.Fatalf("unknown operation must report closed")
	}
}

func TestClassifyCommon(t *testing.T) {
	if class, ok := ClassifyCommon(context.Canceled); !ok || class.RecordFailure || class.Retryable {
		t.Fatalf("cancellation must be neither retried nor recorded, got %+v ok=%v", class, ok)
	}
	if class, ok := ClassifyCommon(gobreaker.ErrOpenState); !ok || !class.Retryable {
		t.Fatalf("open breaker must be retryable, got %+v ok=%v", class, ok)
	}
	if _, ok := ClassifyCommon(errors.New("other")); ok {
		t.Fatalf("unknown errors are left to the adapter")
	}
}
