package signature

import (
	"context"
	"testing"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

func TestScanDetectsEICAR(t *testing.T) {
	res := New().Scan(context.Background(), []byte(EICAR))
	if res.Verdict != domain.ScanInfected {
		t.Fatalf("expected infected verdict, got %s", res.Verdict)
	}
	if len(res.Matches) != 1 || res.Matches[0] != "eicar-test-file" {
		t.Fatalf("unexpected matches: %v", res.Matches)
	}
}

func TestScanFlagsSuspiciousContent(t *testing.T) {
	res := New().Scan(context.Background(), []byte("%PDF-1.4 /OpenAction << /S /JavaScript >>"))
	if res.Verdict != domain.ScanSuspicious {
		t.Fatalf("expected suspicious verdict, got %s", res.Verdict)
	}
	if len(res.Matches) != 2 {
		t.Fatalf("expected two suspicious matches, got %v", res.Matches)
	}
}

func TestScanCleanText(t *testing.T) {
	res := New().Scan(context.Background(), []byte("This is a test document."))
	if res.Verdict != domain.ScanClean {
		t.Fatalf("expected clean verdict, got %s", res.Verdict)
	}
}

func TestScanELFOnlyMatchesPrefix(t *testing.T) {
	body := append([]byte("header "), []byte("\x7fELF")...)
	if res := New().Scan(context.Background(), body); res.Verdict != domain.ScanClean {
		t.Fatalf("expected clean when ELF magic is not at offset 0, got %s", res.Verdict)
	}
	if res := New().Scan(context.Background(), []byte("\x7fELF\x02\x01")); res.Verdict != domain.ScanInfected {
		t.Fatalf("expected infected for ELF binary, got %s", res.Verdict)
	}
}
