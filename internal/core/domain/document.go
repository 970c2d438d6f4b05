package domain

import (
	"slices"
	"time"
)

type ScanVerdict string

const (
	ScanClean      ScanVerdict = "clean"
	ScanSuspicious ScanVerdict = "suspicious"
	ScanInfected   ScanVerdict = "infected"
)

// ScanResult is the outcome of a signature pass over raw upload bytes.
type ScanResult struct {
	Verdict ScanVerdict `json:"verdict"`
	Matches []string    `json:"matches,omitempty"`
}

// StoredDocument is the immutable record of an accepted upload. Only
// RequiresReview changes after creation and it lives in the document index.
type StoredDocument struct {
	ID              string      `json:"id"`
	Filename        string      `json:"filename"`
	Size            int64       `json:"size"`
	MimeType        string      `json:"mime_type"`
	DeclaredType    string      `json:"declared_type,omitempty"`
	UploaderID      string      `json:"uploader_id"`
	MD5             string      `json:"md5"`
	SHA256          string      `json:"sha256"`
	KeyID           string      `json:"key_id"`
	StoragePath     string      `json:"storage_path"`
	ScanVerdict     ScanVerdict `json:"scan_verdict"`
	ComplianceFlags []string    `json:"compliance_flags"`
	RequiresReview  bool        `json:"requires_review"`
	CreatedAt       time.Time   `json:"created_at"`
}

type Role string

const (
	RoleClient            Role = "client"
	RoleParalegal         Role = "paralegal"
	RoleAttorney          Role = "attorney"
	RoleComplianceOfficer Role = "compliance_officer"
	RoleAdmin             Role = "admin"
	RoleSystem            Role = "system"
)

var elevatedRoles = []Role{RoleAttorney, RoleComplianceOfficer, RoleAdmin, RoleSystem}

// Requester identifies the caller of a pipeline stage.
type Requester struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (r Requester) Elevated() bool {
	return slices.Contains(elevatedRoles, r.Role)
}

// CanAccess reports whether the requester may read the document bytes.
func (r Requester) CanAccess(doc *StoredDocument) bool {
	if doc == nil || r.ID == "" {
		return false
	}
	return r.ID == doc.UploaderID || r.Elevated()
}

// SystemRequester is used by the background pipeline worker.
func SystemRequester() Requester {
	return Requester{ID: "pipeline-worker", Role: RoleSystem}
}
