package securefs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/infrastructure/crypto/aead"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	c, err := aead.New(bytes.Repeat([]byte{42}, 32))
	if err != nil {
		t.Fatalf("aead.New() error = %v", err)
	}
	base := t.TempDir()
	s, err := New(base, c)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.now = func() time.Time { return time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC) }
	return s, base
}

func newDoc() *domain.StoredDocument {
	return &domain.StoredDocument{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Filename:   "motion.txt",
		MimeType:   "text/plain",
		UploaderID: "user-1",
	}
}

func TestSaveWritesPartitionedBlobAndSidecar(t *testing.T) {
	s, base := newTestStore(t)
	doc := newDoc()
	payload := []byte("MOTION FOR SUMMARY JUDGMENT")

	if err := s.Save(context.Background(), doc, payload); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	dir := filepath.Join(base, "documents", "2024", "03")
	for _, name := range []string{doc.ID + ".enc", doc.ID + ".meta"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Fatalf("%s: expected mode 0600, got %o", name, info.Mode().Perm())
		}
	}

	blob, err := os.ReadFile(filepath.Join(dir, doc.ID+".enc"))
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if bytes.Contains(blob, payload) {
		t.Fatalf("blob must not contain plaintext")
	}

	sum := sha256.Sum256(payload)
	if doc.SHA256 != hex.EncodeToString(sum[:]) {
		t.Fatalf("sha256 not computed over plaintext")
	}
	if doc.MD5 == "" || doc.KeyID == "" {
		t.Fatalf("expected md5 and key id to be set: %+v", doc)
	}
}

func TestOpenRoundTripIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	doc := newDoc()
	payload := []byte("This is a test document.")
	if err := s.Save(context.Background(), doc, payload); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		got, plain, err := s.Open(context.Background(), doc.ID)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if !bytes.Equal(plain, payload) {
			t.Fatalf("retrieval %d returned different bytes", i)
		}
		if got.SHA256 != doc.SHA256 {
			t.Fatalf("sidecar sha mismatch")
		}
	}
}

func TestOpenDetectsTamperedBlob(t *testing.T) {
	s, _ := newTestStore(t)
	doc := newDoc()
	if err := s.Save(context.Background(), doc, []byte("original")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	blob, _ := os.ReadFile(doc.StoragePath)
	blob[len(blob)-1] ^= 0x01
	if err := os.WriteFile(doc.StoragePath, blob, 0o600); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	_, _, err := s.Open(context.Background(), doc.ID)
	if !domain.IsKind(err, domain.ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
}

func TestSaveRefusesOverwrite(t *testing.T) {
	s, _ := newTestStore(t)
	doc := newDoc()
	if err := s.Save(context.Background(), doc, []byte("one")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	again := *doc
	if err := s.Save(context.Background(), &again, []byte("two")); !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage on duplicate id, got %v", err)
	}
}

func TestOpenMissingDocument(t *testing.T) {
	s, _ := newTestStore(t)
	_, _, err := s.Open(context.Background(), uuid.NewString())
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	_, err = s.Metadata(context.Background(), "../../etc/passwd")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound for traversal id, got %v", err)
	}
}

func TestQuarantineStaysOutOfDocumentTree(t *testing.T) {
	s, base := newTestStore(t)
	path, err := s.Quarantine(context.Background(), "evil.txt", []byte("payload"), domain.ScanResult{
		Verdict: domain.ScanInfected,
		Matches: []string{"eicar-test-file"},
	})
	if err != nil {
		t.Fatalf("Quarantine() error = %v", err)
	}
	if !strings.HasPrefix(path, filepath.Join(base, "quarantine", "2024", "03")) {
		t.Fatalf("unexpected quarantine path %s", path)
	}
	entries, err := os.ReadDir(filepath.Join(base, "documents"))
	if err != nil {
		t.Fatalf("read documents dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("quarantine must not write into the document store")
	}
	report := strings.TrimSuffix(path, ".bin") + ".json"
	if _, err := os.Stat(report); err != nil {
		t.Fatalf("expected quarantine report: %v", err)
	}
}

func TestResultRoundTrip(t *testing.T) {
	s, base := newTestStore(t)
	id := uuid.NewString()
	in := domain.ExtractionResult{ID: id, DocumentID: "doc", Status: domain.ExtractionCompleted, ExtractedText: "hello"}

	if err := s.SaveResult(context.Background(), domain.ResultExtraction, id, in); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	if err := s.SaveResult(context.Background(), domain.ResultExtraction, id, in); !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("results must be append-only, got %v", err)
	}
	raw, _ := os.ReadFile(filepath.Join(base, "ocr", id+".json.enc"))
	if bytes.Contains(raw, []byte("hello")) {
		t.Fatalf("result file must be encrypted")
	}

	var out domain.ExtractionResult
	if err := s.LoadResult(context.Background(), domain.ResultExtraction, id, &out); err != nil {
		t.Fatalf("LoadResult() error = %v", err)
	}
	if out.ExtractedText != "hello" || out.Status != domain.ExtractionCompleted {
		t.Fatalf("unexpected result: %+v", out)
	}

	err := s.LoadResult(context.Background(), domain.ResultAnalysis, uuid.NewString(), &out)
	if !domain.IsKind(err, domain.ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound, got %v", err)
	}
}

func TestDiscardRemovesBlobAndSidecar(t *testing.T) {
	s, base := newTestStore(t)
	doc := newDoc()
	if err := s.Save(context.Background(), doc, []byte("unindexed upload")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := s.Discard(context.Background(), doc.ID); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(base, "documents", "2024", "03"))
	if err != nil {
		t.Fatalf("read partition: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty partition, found %d files", len(entries))
	}
	if _, _, err := s.Open(context.Background(), doc.ID); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found after discard, got %v", err)
	}
	if err := s.Discard(context.Background(), doc.ID); err != nil {
		t.Fatalf("second Discard() error = %v", err)
	}
}
