// Package pdftext reads the embedded text layer of a PDF page by page.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

const maxParentDepth = 16

var ErrEmptyDocument = errors.New("pdf has no pages")

type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

// ReadPages returns one entry per page. A page whose content stream cannot
// be decoded yields empty text rather than failing the document; a document
// that cannot be parsed at all returns an error.
func (r *Reader) ReadPages(ctx context.Context, data []byte) (pages []domain.PageText, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("parse pdf: %v", rec)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	total := doc.NumPage()
	if total == 0 {
		return nil, ErrEmptyDocument
	}

	pages = make([]domain.PageText, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		width, height := mediaBox(page.V)
		text, textErr := page.GetPlainText(nil)
		if textErr != nil {
			text = ""
		}
		pages = append(pages, domain.PageText{
			Page:   i,
			Text:   strings.TrimSpace(text),
			Width:  width,
			Height: height,
		})
	}
	return pages, nil
}

// mediaBox resolves the page size, following inheritance through Parent.
func mediaBox(v pdf.Value) (width, height float64) {
	for depth := 0; depth < maxParentDepth && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			return box.Index(2).Float64() - box.Index(0).Float64(), box.Index(3).Float64() - box.Index(1).Float64()
		}
		v = v.Key("Parent")
	}
	return 0, 0
}
