package signature

import (
	"bytes"
	"context"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

// EICAR is the industry standard antivirus test string.
const EICAR = `X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`

type Signature struct {
	Name    string
	Pattern []byte

	// PrefixOnly restricts the match to the start of the payload.
	PrefixOnly bool
}

var defaultInfected = []Signature{
	{Name: "eicar-test-file", Pattern: []byte("EICAR-STANDARD-ANTIVIRUS-TEST-FILE")},
	{Name: "pe-executable", Pattern: []byte("This program cannot be run in DOS mode")},
	{Name: "elf-executable", Pattern: []byte("\x7fELF"), PrefixOnly: true},
}

var defaultSuspicious = []Signature{
	{Name: "embedded-script-tag", Pattern: []byte("<script")},
	{Name: "javascript-uri", Pattern: []byte("javascript:")},
	{Name: "pdf-javascript", Pattern: []byte("/JavaScript")},
	{Name: "pdf-launch-action", Pattern: []byte("/Launch")},
	{Name: "pdf-open-action", Pattern: []byte("/OpenAction")},
	{Name: "office-macro", Pattern: []byte("vbaProject.bin")},
	{Name: "shell-eval", Pattern: []byte("eval(")},
}

type Scanner struct {
	infected   []Signature
	suspicious []Signature
}

func New() *Scanner {
	return &Scanner{infected: defaultInfected, suspicious: defaultSuspicious}
}

func NewWithSignatures(infected, suspicious []Signature) *Scanner {
	return &Scanner{infected: infected, suspicious: suspicious}
}

// Scan reports infected when any infected signature matches, otherwise
// suspicious when any suspicious signature matches.
func (s *Scanner) Scan(_ context.Context, data []byte) domain.ScanResult {
	if hits := matchAll(data, s.infected); len(hits) > 0 {
		return domain.ScanResult{Verdict: domain.ScanInfected, Matches: hits}
	}
	if hits := matchAll(data, s.suspicious); len(hits) > 0 {
		return domain.ScanResult{Verdict: domain.ScanSuspicious, Matches: hits}
	}
	return domain.ScanResult{Verdict: domain.ScanClean}
}

func matchAll(data []byte, sigs []Signature) []string {
	var hits []string
	for _, sig := range sigs {
		if sig.PrefixOnly {
			if bytes.HasPrefix(data, sig.Pattern) {
				hits = append(hits, sig.Name)
			}
			continue
		}
		if bytes.Contains(data, sig.Pattern) {
			hits = append(hits, sig.Name)
		}
	}
	return hits
}
