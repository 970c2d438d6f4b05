package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

const documentColumns = `id, filename, size, mime_type, declared_type, uploader_id, md5, sha256, key_id, storage_path, scan_verdict, compliance_flags, requires_review, created_at`

type DocumentRepository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewDocumentRepository(db *sql.DB, dialect Dialect) *DocumentRepository {
	return &DocumentRepository{db: db, dialect: dialect, now: time.Now}
}

func (r *DocumentRepository) q(query string) string {
	return rebind(r.dialect, query)
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.StoredDocument) error {
	flags := doc.ComplianceFlags
	if flags == nil {
		flags = []string{}
	}
	flagsJSON, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("marshal compliance flags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, r.q(`
INSERT INTO documents (`+documentColumns+`, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`),
		doc.ID, doc.Filename, doc.Size, doc.MimeType, doc.DeclaredType, doc.UploaderID, doc.MD5, doc.SHA256,
		doc.KeyID, doc.StoragePath, string(doc.ScanVerdict), string(flagsJSON), doc.RequiresReview,
		doc.CreatedAt.UTC(), doc.CreatedAt.UTC(),
	)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "insert document", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.StoredDocument, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`), id)

	var (
		doc      domain.StoredDocument
		verdict  string
		flagsRaw []byte
	)
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.Size, &doc.MimeType, &doc.DeclaredType, &doc.UploaderID, &doc.MD5,
		&doc.SHA256, &doc.KeyID, &doc.StoragePath, &verdict, &flagsRaw, &doc.RequiresReview, &doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, domain.WrapError(domain.ErrStorage, "scan document", err)
	}
	if err := json.Unmarshal(flagsRaw, &doc.ComplianceFlags); err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "unmarshal compliance flags", err)
	}
	doc.ScanVerdict = domain.ScanVerdict(verdict)
	return &doc, nil
}

// SetReviewRequired is the only mutation a document row ever sees.
func (r *DocumentRepository) SetReviewRequired(ctx context.Context, id string, required bool) error {
	result, err := r.db.ExecContext(ctx, r.q(`
UPDATE documents
SET requires_review = $2, updated_at = $3
WHERE id = $1
`), id, required, r.now().UTC())
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "set review required", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "set review required rows affected", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "set review required", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *DocumentRepository) AppendResult(ctx context.Context, rec domain.ResultRecord) error {
	_, err := r.db.ExecContext(ctx, r.q(`
INSERT INTO pipeline_results (id, document_id, kind, status, confidence, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`), rec.ID, rec.DocumentID, string(rec.Kind), rec.Status, rec.Confidence, rec.CreatedAt.UTC())
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "append result", err)
	}
	return nil
}

// LatestResult returns the newest record; ties on created_at fall back to
// the ID, which is time-ordered.
func (r *DocumentRepository) LatestResult(ctx context.Context, documentID string, kind domain.ResultKind) (*domain.ResultRecord, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
SELECT id, document_id, kind, status, confidence, created_at
FROM pipeline_results
WHERE document_id = $1 AND kind = $2
ORDER BY created_at DESC, id DESC
LIMIT 1
`), documentID, string(kind))

	rec, err := scanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrResultNotFound, "latest result", fmt.Errorf("%s for document %s", kind, documentID))
		}
		return nil, domain.WrapError(domain.ErrStorage, "latest result", err)
	}
	return &rec, nil
}

func (r *DocumentRepository) ListResults(ctx context.Context, documentID string, kind domain.ResultKind) ([]domain.ResultRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`
SELECT id, document_id, kind, status, confidence, created_at
FROM pipeline_results
WHERE document_id = $1 AND kind = $2
ORDER BY created_at ASC, id ASC
`), documentID, string(kind))
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "list results", err)
	}
	defer rows.Close()

	out := make([]domain.ResultRecord, 0)
	for rows.Next() {
		rec, err := scanResult(rows)
		if err != nil {
			return nil, domain.WrapError(domain.ErrStorage, "scan result", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "iterate results", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (domain.ResultRecord, error) {
	var (
		rec  domain.ResultRecord
		kind string
	)
	if err := row.Scan(&rec.ID, &rec.DocumentID, &kind, &rec.Status, &rec.Confidence, &rec.CreatedAt); err != nil {
		return domain.ResultRecord{}, err
	}
	rec.Kind = domain.ResultKind(kind)
	return rec, nil
}
