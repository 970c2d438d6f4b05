// Package extraction decides how a stored document yields text and turns raw
// OCR output into positioned, confidence-scored blocks.
package extraction

import (
	"bytes"
	"path/filepath"
	"strings"
)

type SourceFormat string

const (
	FormatText  SourceFormat = "text"
	FormatPDF   SourceFormat = "pdf"
	FormatImage SourceFormat = "image"
)

var textExtensions = map[string]bool{
	".txt":  true,
	".text": true,
	".md":   true,
	".csv":  true,
	".log":  true,
}

var pdfMagic = []byte("%PDF-")

// DetectFormat picks the extraction family. The extension wins for plain
// text; PDF is recognised by extension, sniffed type or magic bytes.
func DetectFormat(filename, mimeType string, data []byte) SourceFormat {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case textExtensions[ext]:
		return FormatText
	case ext == ".pdf", mimeType == "application/pdf", bytes.HasPrefix(data, pdfMagic):
		return FormatPDF
	case strings.HasPrefix(mimeType, "text/plain"):
		return FormatText
	default:
		return FormatImage
	}
}
