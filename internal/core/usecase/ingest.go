package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/intake"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

const (
	uploadAccepted    = "accepted"
	uploadRejected    = "rejected"
	uploadQuarantined = "quarantined"
	uploadFailed      = "failed"
)

// IntakeDocumentUseCase validates, scans, encrypts and indexes uploads, and
// serves authorised retrievals.
type IntakeDocumentUseCase struct {
	deps      StageDeps
	validator *intake.Validator
	scanner   ports.MalwareScanner
	store     ports.DocumentStore
	queue     ports.MessageQueue
	mirror    ports.QuarantineMirror
	now       func() time.Time
}

// NewIngestDocumentUseCase wires the intake stage. queue and mirror may be nil.
func NewIngestDocumentUseCase(
	deps StageDeps,
	validator *intake.Validator,
	scanner ports.MalwareScanner,
	store ports.DocumentStore,
	queue ports.MessageQueue,
	mirror ports.QuarantineMirror,
) *IntakeDocumentUseCase {
	if validator == nil {
		validator = intake.NewValidator(0)
	}
	return &IntakeDocumentUseCase{
		deps:      deps.withDefaults(),
		validator: validator,
		scanner:   scanner,
		store:     store,
		queue:     queue,
		mirror:    mirror,
		now:       time.Now,
	}
}

func (uc *IntakeDocumentUseCase) Upload(ctx context.Context, req ports.UploadRequest) (ports.UploadOutcome, error) {
	var outcome ports.UploadOutcome
	if req.Body == nil {
		req.Body = strings.NewReader("")
	}
	// One byte past the limit is enough to reject oversize bodies.
	data, err := io.ReadAll(io.LimitReader(req.Body, uc.validator.MaxBytes()+1))
	if err != nil {
		return outcome, domain.WrapError(domain.ErrValidation, "read upload", err)
	}

	report := uc.validator.Validate(req.Filename, data)
	outcome.Warnings = append(outcome.Warnings, report.Warnings...)
	if !report.OK() {
		outcome.Errors = report.Errors
		uc.deps.Observer.UploadHandled(uploadRejected)
		uc.deps.audit(ctx, domain.AuditEvent{
			EventType: domain.AuditUploadRejected,
			UserID:    req.UploaderID,
			Details:   map[string]any{"filename": req.Filename, "errors": report.Errors},
		})
		return outcome, domain.WrapError(domain.ErrValidation, "upload", errors.New(strings.Join(report.Errors, "; ")))
	}

	scan := domain.ScanResult{Verdict: domain.ScanClean}
	if uc.scanner != nil {
		scan = uc.scanner.Scan(ctx, data)
	}
	switch scan.Verdict {
	case domain.ScanInfected:
		return uc.quarantine(ctx, req, data, scan, outcome)
	case domain.ScanSuspicious:
		outcome.Warnings = append(outcome.Warnings, "suspicious content patterns: "+strings.Join(scan.Matches, ", "))
	}

	id, err := newID()
	if err != nil {
		return outcome, err
	}
	doc := &domain.StoredDocument{
		ID:              id,
		Filename:        req.Filename,
		MimeType:        report.DetectedType,
		DeclaredType:    report.DeclaredType,
		UploaderID:      req.UploaderID,
		ScanVerdict:     scan.Verdict,
		ComplianceFlags: []string{},
		CreatedAt:       uc.now().UTC(),
	}
	if err := uc.store.Save(ctx, doc, data); err != nil {
		return outcome, fmt.Errorf("store document: %w", err)
	}
	if err := uc.deps.Repo.Create(ctx, doc); err != nil {
		details := map[string]any{"filename": doc.Filename, "error": err.Error()}
		if dErr := uc.store.Discard(ctx, doc.ID); dErr != nil {
			details["discard_error"] = dErr.Error()
			uc.deps.Logger.Error("discard unindexed document failed", "document_id", doc.ID, "error", dErr)
		}
		uc.deps.Observer.UploadHandled(uploadFailed)
		uc.deps.audit(ctx, domain.AuditEvent{
			EventType:  domain.AuditUploadFailed,
			DocumentID: doc.ID,
			UserID:     req.UploaderID,
			Details:    details,
		})
		return outcome, fmt.Errorf("index document: %w", err)
	}

	uc.deps.audit(ctx, domain.AuditEvent{
		EventType:  domain.AuditDocumentUploaded,
		DocumentID: doc.ID,
		UserID:     req.UploaderID,
		Details: map[string]any{
			"filename":     doc.Filename,
			"size":         doc.Size,
			"mime_type":    doc.MimeType,
			"sha256":       doc.SHA256,
			"scan_verdict": string(scan.Verdict),
			"warnings":     outcome.Warnings,
		},
	})

	if uc.queue != nil {
		if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
			outcome.Warnings = append(outcome.Warnings, "document stored but pipeline processing was not scheduled")
			uc.deps.Logger.Warn("publish ingestion event failed", "document_id", doc.ID, "error", err)
		}
	}

	uc.deps.Observer.UploadHandled(uploadAccepted)
	uc.deps.Logger.Info("document uploaded", "document_id", doc.ID, "size", doc.Size, "mime_type", doc.MimeType)
	outcome.Document = doc
	return outcome, nil
}

func (uc *IntakeDocumentUseCase) quarantine(
	ctx context.Context,
	req ports.UploadRequest,
	data []byte,
	scan domain.ScanResult,
	outcome ports.UploadOutcome,
) (ports.UploadOutcome, error) {
	path, err := uc.store.Quarantine(ctx, req.Filename, data, scan)
	if err != nil {
		uc.deps.Logger.Error("quarantine write failed", "filename", req.Filename, "error", err)
	}
	if uc.mirror != nil && path != "" {
		if mErr := uc.mirror.Mirror(ctx, path, data); mErr != nil {
			uc.deps.Logger.Warn("quarantine mirror failed", "path", path, "error", mErr)
		}
	}

	uc.deps.Observer.UploadHandled(uploadQuarantined)
	uc.deps.audit(ctx, domain.AuditEvent{
		EventType: domain.AuditDocumentQuarantined,
		UserID:    req.UploaderID,
		Details: map[string]any{
			"filename":        req.Filename,
			"signatures":      scan.Matches,
			"quarantine_path": path,
		},
	})
	uc.deps.Logger.Warn("upload quarantined", "filename", req.Filename, "signatures", scan.Matches)

	outcome.Errors = append(outcome.Errors, "malware detected: "+strings.Join(scan.Matches, ", "))
	cause := fmt.Errorf("malware signature match: %s", strings.Join(scan.Matches, ", "))
	if err != nil {
		cause = errors.Join(cause, err)
	}
	return outcome, domain.WrapError(domain.ErrSecurity, "upload", cause)
}

// Retrieve decrypts the document for its uploader or an elevated role.
// Every call is audited, allowed or not.
func (uc *IntakeDocumentUseCase) Retrieve(ctx context.Context, documentID string, requester domain.Requester) ([]byte, error) {
	doc, err := uc.deps.authorize(ctx, documentID, requester, "retrieve document")
	if err != nil {
		return nil, err
	}
	_, data, err := uc.store.Open(ctx, doc.ID)
	if err != nil {
		uc.deps.audit(ctx, domain.AuditEvent{
			EventType:  domain.AuditRetrievalFailed,
			DocumentID: doc.ID,
			UserID:     requester.ID,
			Details: map[string]any{
				"role":       string(requester.Role),
				"error_kind": storageErrorKind(err),
				"error":      err.Error(),
			},
		})
		return nil, fmt.Errorf("retrieve document: %w", err)
	}
	uc.deps.audit(ctx, domain.AuditEvent{
		EventType:  domain.AuditDocumentRetrieved,
		DocumentID: doc.ID,
		UserID:     requester.ID,
		Details:    map[string]any{"role": string(requester.Role), "size": len(data)},
	})
	return data, nil
}

// storageErrorKind names the failure class of a store read for audit.
func storageErrorKind(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrIntegrity):
		return "integrity"
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return "not_found"
	default:
		return "storage"
	}
}
