package pdftext

import (
	"context"
	"testing"
)

func TestReadPagesRejectsGarbage(t *testing.T) {
	pages, err := NewReader().ReadPages(context.Background(), []byte("%PDF-1.4 this is not a real pdf"))
	if err == nil {
		t.Fatalf("expected error for malformed pdf, got %d pages", len(pages))
	}
}

func TestReadPagesRejectsEmptyInput(t *testing.T) {
	if _, err := NewReader().ReadPages(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty input")
	}
}
