// Package intake validates raw uploads before anything touches storage.
package intake

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const DefaultMaxUploadBytes int64 = 100 << 20

var suspiciousFilenameSequences = []string{"..", "/", `\`, "<", ">", "|", ":", "*", "?", `"`}

var extensionTypes = map[string]string{
	".txt":  "text/plain",
	".text": "text/plain",
	".md":   "text/plain",
	".csv":  "text/csv",
	".log":  "text/plain",
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".rtf":  "text/rtf",
}

// Report is the validator's verdict. Errors are fatal to the upload,
// warnings are carried onto the stored document.
type Report struct {
	DetectedType string
	DeclaredType string
	Warnings     []string
	Errors       []string
}

func (r Report) OK() bool { return len(r.Errors) == 0 }

type Validator struct {
	maxBytes int64
}

func NewValidator(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Validator{maxBytes: maxBytes}
}

func (v *Validator) MaxBytes() int64 { return v.maxBytes }

func (v *Validator) Validate(filename string, data []byte) Report {
	var report Report

	if len(data) == 0 {
		report.Errors = append(report.Errors, "file is empty")
		return report
	}
	if int64(len(data)) > v.maxBytes {
		report.Errors = append(report.Errors, fmt.Sprintf("file size %d exceeds maximum of %d bytes", len(data), v.maxBytes))
		return report
	}

	detected := mimetype.Detect(data)
	report.DetectedType = baseType(detected.String())
	report.DeclaredType = DeclaredType(filename)

	if report.DeclaredType == "" {
		report.Warnings = append(report.Warnings, fmt.Sprintf("unrecognized file extension %q", filepath.Ext(filename)))
	} else if !typesCompatible(report.DeclaredType, detected) {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"content type mismatch: extension suggests %s but content is %s",
			report.DeclaredType, report.DetectedType,
		))
	}

	if seq := SuspiciousSequence(filename); seq != "" {
		report.Warnings = append(report.Warnings, fmt.Sprintf("suspicious filename: contains %q", seq))
	}
	return report
}

// DeclaredType is the MIME type implied by the file extension, or "".
func DeclaredType(filename string) string {
	return extensionTypes[strings.ToLower(filepath.Ext(filename))]
}

// SuspiciousSequence returns the first path-traversal or shell metacharacter
// sequence found in the name.
func SuspiciousSequence(filename string) string {
	for _, seq := range suspiciousFilenameSequences {
		if strings.Contains(filename, seq) {
			return seq
		}
	}
	return ""
}

func typesCompatible(declared string, detected *mimetype.MIME) bool {
	for m := detected; m != nil; m = m.Parent() {
		if baseType(m.String()) == declared {
			return true
		}
	}
	// Plain text sniffs as text/plain regardless of flavour.
	if strings.HasPrefix(declared, "text/") && detected.Is("text/plain") {
		return true
	}
	return false
}

func baseType(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime)
}
