package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

type recordingSink struct {
	events []domain.AuditEvent
	err    error
}

func (r *recordingSink) Record(_ context.Context, event domain.AuditEvent) error {
	r.events = append(r.events, event)
	return r.err
}

func TestLogSinkWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := sink.Record(context.Background(), domain.AuditEvent{
		EventType:  domain.AuditDocumentUploaded,
		DocumentID: "doc-1",
		UserID:     "user-1",
		Details:    map[string]any{"size": 12},
		OccurredAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["event_type"] != "document_uploaded" || line["document_id"] != "doc-1" || line["component"] != "audit" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestFanoutRecordsEverywhereAndJoinsErrors(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("db down")}
	fan := Fanout{ok, nil, failing}

	err := fan.Record(context.Background(), domain.AuditEvent{EventType: domain.AuditAccessDenied})
	if err == nil || err.Error() != "db down" {
		t.Fatalf("Record() error = %v, want db down", err)
	}
	if len(ok.events) != 1 || len(failing.events) != 1 {
		t.Fatalf("every sink must see the event")
	}
}
