package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// redactedKeys never reach the log output with their value. Document text
// and credentials both show up as attributes in adapter errors.
var redactedKeys = map[string]struct{}{
	"master_key":     {},
	"password":       {},
	"neo4j_password": {},
	"content":        {},
	"extracted_text": {},
	"content_base64": {},
}

const redacted = "[redacted]"

func NewJSONLogger(service, level string) *slog.Logger {
	return NewJSONLoggerTo(os.Stdout, service, level)
}

// NewJSONLoggerTo is used by binaries whose stdout carries a protocol.
func NewJSONLoggerTo(w io.Writer, service, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: redact,
	})).With("service", service)
}

func redact(_ []string, attr slog.Attr) slog.Attr {
	if _, ok := redactedKeys[strings.ToLower(attr.Key)]; ok {
		return slog.String(attr.Key, redacted)
	}
	return attr
}

func parseLevel(level string) slog.Level {
	var lvl slog.Level
	switch v := strings.ToLower(strings.TrimSpace(level)); v {
	case "warning":
		return slog.LevelWarn
	case "debug", "info", "warn", "error":
		_ = lvl.UnmarshalText([]byte(v))
		return lvl
	default:
		return slog.LevelInfo
	}
}
