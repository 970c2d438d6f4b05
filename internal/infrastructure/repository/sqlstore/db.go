// Package sqlstore indexes documents, result history, review escalations
// and audit events over database/sql. Postgres (pgx) and SQLite (modernc)
// share one set of queries; SQLite also backs the in-memory mode.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
	Memory   Dialect = "memory"
)

// ParseDialect accepts the REPOSITORY_DRIVER values.
func ParseDialect(raw string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(raw))) {
	case Postgres, "pg", "pgx":
		return Postgres, nil
	case SQLite:
		return SQLite, nil
	case Memory, "":
		return Memory, nil
	default:
		return "", fmt.Errorf("unknown repository driver %q", raw)
	}
}

// Open connects and pings. For the memory dialect dsn is ignored and the
// pool is pinned to one connection so every query sees the same database.
func Open(dialect Dialect, dsn string) (*sql.DB, error) {
	var (
		driver string
		source string
	)
	switch dialect {
	case Postgres:
		driver, source = "pgx", dsn
	case SQLite:
		driver, source = "sqlite", sqliteDSN(dsn)
	case Memory:
		driver, source = "sqlite", "file:legal-intake?mode=memory&cache=shared"
	default:
		return nil, fmt.Errorf("unknown dialect %q", dialect)
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if dialect == Postgres {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	} else {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders for SQLite, which numbers them ?N.
func rebind(d Dialect, query string) string {
	if d == Postgres {
		return query
	}
	return placeholder.ReplaceAllString(query, "?$1")
}

// EnsureSchema creates every table the pipeline indexes into.
func EnsureSchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if dialect == Postgres {
		// Serialize bootstrap DDL across api/worker startups.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
			return fmt.Errorf("acquire schema lock: %w", err)
		}
	}

	for _, stmt := range schemaFor(dialect) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema ddl: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func schemaFor(d Dialect) []string {
	ts, js, serial := "TIMESTAMPTZ", "JSONB", "BIGSERIAL PRIMARY KEY"
	if d != Postgres {
		ts, js, serial = "TIMESTAMP", "TEXT", "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	r := strings.NewReplacer("{ts}", ts, "{json}", js, "{serial}", serial)
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	size BIGINT NOT NULL,
	mime_type TEXT NOT NULL,
	declared_type TEXT NOT NULL DEFAULT '',
	uploader_id TEXT NOT NULL,
	md5 TEXT NOT NULL,
	sha256 TEXT NOT NULL,
	key_id TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	scan_verdict TEXT NOT NULL,
	compliance_flags {json} NOT NULL,
	requires_review BOOLEAN NOT NULL DEFAULT FALSE,
	created_at {ts} NOT NULL,
	updated_at {ts} NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_requires_review ON documents(requires_review)`,
		`CREATE TABLE IF NOT EXISTS pipeline_results (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at {ts} NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_pipeline_results_doc_kind ON pipeline_results(document_id, kind, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS review_queue (
	id TEXT PRIMARY KEY,
	content_id TEXT NOT NULL,
	document_id TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL,
	risk_level TEXT NOT NULL,
	details {json} NOT NULL,
	status TEXT NOT NULL,
	created_at {ts} NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_review_queue_status ON review_queue(status, created_at)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
	id {serial},
	event_type TEXT NOT NULL,
	document_id TEXT NOT NULL DEFAULT '',
	user_id TEXT NOT NULL DEFAULT '',
	details {json} NOT NULL,
	occurred_at {ts} NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_document ON audit_events(document_id, occurred_at)`,
	}
	for i, s := range stmts {
		stmts[i] = r.Replace(s)
	}
	return stmts
}
