package domain

import "testing"

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  ConfidenceLevel
	}{
		{95, ConfidenceHigh},
		{90, ConfidenceHigh},
		{89.99, ConfidenceMedium},
		{75, ConfidenceMedium},
		{70, ConfidenceMedium},
		{69.99, ConfidenceLow},
		{55, ConfidenceLow},
		{50, ConfidenceLow},
		{49.99, ConfidencePoor},
		{20, ConfidencePoor},
		{0, ConfidencePoor},
		{100, ConfidenceHigh},
	}
	for _, tt := range tests {
		if got := LevelForScore(tt.score); got != tt.want {
			t.Fatalf("LevelForScore(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestSetConfidenceDerivesLevel(t *testing.T) {
	var r ExtractionResult
	r.SetConfidence(70)
	if r.Confidence != 70 || r.ConfidenceLevel != ConfidenceMedium {
		t.Fatalf("SetConfidence(70) gave %v/%q", r.Confidence, r.ConfidenceLevel)
	}
	r.SetConfidence(49.99)
	if r.ConfidenceLevel != ConfidencePoor {
		t.Fatalf("level not recomputed: %q", r.ConfidenceLevel)
	}
}
