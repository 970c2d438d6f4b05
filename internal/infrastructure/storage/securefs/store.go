package securefs

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

const (
	documentsDir  = "documents"
	quarantineDir = "quarantine"

	blobExt    = ".enc"
	sidecarExt = ".meta"
	resultExt  = ".json.enc"

	dirMode  fs.FileMode = 0o700
	fileMode fs.FileMode = 0o600
)

var idPattern = regexp.MustCompile(`^[0-9a-fA-F-]{8,64}$`)

// Store keeps encrypted document blobs with JSON sidecars partitioned by
// year/month, a quarantine area, and one encrypted file per stage result.
type Store struct {
	basePath string
	cipher   ports.Cipher
	now      func() time.Time
}

func New(basePath string, cipher ports.Cipher) (*Store, error) {
	if basePath == "" {
		basePath = "./storage"
	}
	if cipher == nil {
		return nil, errors.New("cipher is required")
	}
	dirs := []string{
		basePath,
		filepath.Join(basePath, documentsDir),
		filepath.Join(basePath, quarantineDir),
		filepath.Join(basePath, string(domain.ResultExtraction)),
		filepath.Join(basePath, string(domain.ResultClassification)),
		filepath.Join(basePath, string(domain.ResultAnalysis)),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return &Store{basePath: basePath, cipher: cipher, now: time.Now}, nil
}

// Save checksums the plaintext, encrypts it under a fresh key ID and writes
// the blob and its sidecar. Both files are created exclusively.
func (s *Store) Save(_ context.Context, doc *domain.StoredDocument, plaintext []byte) error {
	if doc == nil || !idPattern.MatchString(doc.ID) {
		return domain.WrapError(domain.ErrStorage, "save document", errors.New("invalid document id"))
	}

	md5Sum := md5.Sum(plaintext)
	shaSum := sha256.Sum256(plaintext)
	doc.MD5 = hex.EncodeToString(md5Sum[:])
	doc.SHA256 = hex.EncodeToString(shaSum[:])
	doc.Size = int64(len(plaintext))
	doc.KeyID = "dk-" + uuid.NewString()

	sealed, err := s.cipher.Encrypt(plaintext, doc.KeyID)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "encrypt document", err)
	}

	created := doc.CreatedAt
	if created.IsZero() {
		created = s.now().UTC()
		doc.CreatedAt = created
	}
	dir := filepath.Join(s.basePath, documentsDir, created.Format("2006"), created.Format("01"))
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return domain.WrapError(domain.ErrStorage, "create partition", err)
	}

	blobPath := filepath.Join(dir, doc.ID+blobExt)
	doc.StoragePath = blobPath
	if err := writeExclusive(blobPath, sealed); err != nil {
		return domain.WrapError(domain.ErrStorage, "write document blob", err)
	}

	sidecar, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		_ = os.Remove(blobPath)
		return domain.WrapError(domain.ErrStorage, "marshal sidecar", err)
	}
	if err := writeExclusive(filepath.Join(dir, doc.ID+sidecarExt), sidecar); err != nil {
		_ = os.Remove(blobPath)
		return domain.WrapError(domain.ErrStorage, "write sidecar", err)
	}
	return nil
}

// Open decrypts the blob and verifies it against the SHA-256 recorded at
// upload time.
func (s *Store) Open(ctx context.Context, documentID string) (*domain.StoredDocument, []byte, error) {
	doc, err := s.Metadata(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	sealed, err := os.ReadFile(doc.StoragePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, domain.WrapError(domain.ErrDocumentNotFound, "read document blob", err)
		}
		return nil, nil, domain.WrapError(domain.ErrStorage, "read document blob", err)
	}
	plaintext, err := s.cipher.Decrypt(sealed, doc.KeyID)
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrIntegrity, "decrypt document", err)
	}
	sum := sha256.Sum256(plaintext)
	if hex.EncodeToString(sum[:]) != doc.SHA256 {
		return nil, nil, domain.WrapError(domain.ErrIntegrity, "verify document", fmt.Errorf("sha256 mismatch for %s", documentID))
	}
	return doc, plaintext, nil
}

func (s *Store) Metadata(_ context.Context, documentID string) (*domain.StoredDocument, error) {
	if !idPattern.MatchString(documentID) {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "locate document", fmt.Errorf("id=%s", documentID))
	}
	matches, err := filepath.Glob(filepath.Join(s.basePath, documentsDir, "*", "*", documentID+sidecarExt))
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "locate document", err)
	}
	if len(matches) == 0 {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "locate document", fmt.Errorf("id=%s", documentID))
	}

	raw, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "read sidecar", err)
	}
	var doc domain.StoredDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, domain.WrapError(domain.ErrIntegrity, "decode sidecar", err)
	}
	// The blob always sits next to its sidecar.
	doc.StoragePath = filepath.Join(filepath.Dir(matches[0]), documentID+blobExt)
	return &doc, nil
}

// Discard removes the blob and sidecar of documentID.
func (s *Store) Discard(ctx context.Context, documentID string) error {
	doc, err := s.Metadata(ctx, documentID)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			return nil
		}
		return err
	}
	sidecar := filepath.Join(filepath.Dir(doc.StoragePath), documentID+sidecarExt)
	var errs []error
	for _, path := range []string{doc.StoragePath, sidecar} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return domain.WrapError(domain.ErrStorage, "discard document", errors.Join(errs...))
	}
	return nil
}

type quarantineReport struct {
	ID               string            `json:"id"`
	OriginalFilename string            `json:"original_filename"`
	Size             int               `json:"size"`
	SHA256           string            `json:"sha256"`
	Scan             domain.ScanResult `json:"scan"`
	QuarantinedAt    time.Time         `json:"quarantined_at"`
}

// Quarantine writes rejected bytes outside the document tree. Nothing under
// the quarantine root is reachable through Open.
func (s *Store) Quarantine(_ context.Context, filename string, data []byte, scan domain.ScanResult) (string, error) {
	now := s.now().UTC()
	dir := filepath.Join(s.basePath, quarantineDir, now.Format("2006"), now.Format("01"))
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return "", domain.WrapError(domain.ErrStorage, "create quarantine partition", err)
	}

	id := uuid.NewString()
	path := filepath.Join(dir, id+".bin")
	if err := writeExclusive(path, data); err != nil {
		return "", domain.WrapError(domain.ErrStorage, "write quarantine blob", err)
	}

	sum := sha256.Sum256(data)
	report, err := json.MarshalIndent(quarantineReport{
		ID:               id,
		OriginalFilename: filename,
		Size:             len(data),
		SHA256:           hex.EncodeToString(sum[:]),
		Scan:             scan,
		QuarantinedAt:    now,
	}, "", "  ")
	if err != nil {
		return path, domain.WrapError(domain.ErrStorage, "marshal quarantine report", err)
	}
	if err := writeExclusive(filepath.Join(dir, id+".json"), report); err != nil {
		return path, domain.WrapError(domain.ErrStorage, "write quarantine report", err)
	}
	return path, nil
}

// SaveResult encrypts v as JSON under storage/<kind>/<id>.json.enc. Results
// are never overwritten.
func (s *Store) SaveResult(_ context.Context, kind domain.ResultKind, id string, v any) error {
	path, err := s.resultPath(kind, id)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "marshal result", err)
	}
	sealed, err := s.cipher.Encrypt(raw, resultKeyID(kind, id))
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "encrypt result", err)
	}
	if err := writeExclusive(path, sealed); err != nil {
		return domain.WrapError(domain.ErrStorage, "write result", err)
	}
	return nil
}

func (s *Store) LoadResult(_ context.Context, kind domain.ResultKind, id string, v any) error {
	path, err := s.resultPath(kind, id)
	if err != nil {
		return err
	}
	sealed, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.WrapError(domain.ErrResultNotFound, "read result", fmt.Errorf("%s/%s", kind, id))
		}
		return domain.WrapError(domain.ErrStorage, "read result", err)
	}
	raw, err := s.cipher.Decrypt(sealed, resultKeyID(kind, id))
	if err != nil {
		return domain.WrapError(domain.ErrIntegrity, "decrypt result", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.WrapError(domain.ErrIntegrity, "decode result", err)
	}
	return nil
}

func (s *Store) resultPath(kind domain.ResultKind, id string) (string, error) {
	if _, ok := domain.ParseResultKind(string(kind)); !ok {
		return "", domain.WrapError(domain.ErrStorage, "result path", fmt.Errorf("unknown result kind %q", kind))
	}
	if !idPattern.MatchString(id) {
		return "", domain.WrapError(domain.ErrResultNotFound, "result path", fmt.Errorf("invalid result id %q", id))
	}
	return filepath.Join(s.basePath, string(kind), id+resultExt), nil
}

func resultKeyID(kind domain.ResultKind, id string) string {
	return "result/" + string(kind) + "/" + id
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return os.Chmod(path, fileMode)
}
