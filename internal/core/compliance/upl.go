// Package compliance scores content for unauthorized-practice-of-law risk
// and decides how far an analysis may go before an attorney has to look.
package compliance

import (
	"math"
	"regexp"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

const (
	highRiskWeight        = 0.3
	missingDisclaimerRisk = 0.4
	longContentRisk       = 0.1
	longContentChars      = 1000
)

// NamedPattern is a compiled phrase pattern with a stable name used in
// review reasons.
type NamedPattern struct {
	Name    string
	Pattern *regexp.Regexp
}

// Phrasebook holds every phrase family the compliance checks look for.
type Phrasebook struct {
	HighRisk             []NamedPattern
	LegalAdvice          []NamedPattern
	Disclaimers          []NamedPattern
	Privileged           []NamedPattern
	MandatoryReview      []NamedPattern
	JurisdictionTriggers []NamedPattern
}

// Matches returns the names of patterns in list that match text, once each.
func Matches(list []NamedPattern, text string) []string {
	var out []string
	for _, p := range list {
		if p.Pattern != nil && p.Pattern.MatchString(text) {
			out = append(out, p.Name)
		}
	}
	return out
}

type Config struct {
	MediumThreshold   float64
	HighThreshold     float64
	CriticalThreshold float64
}

func DefaultConfig() Config {
	return Config{
		MediumThreshold:   0.3,
		HighThreshold:     0.5,
		CriticalThreshold: 0.8,
	}
}

// Valid reports whether the thresholds are strictly increasing inside (0,1].
func (c Config) Valid() bool {
	return c.MediumThreshold > 0 &&
		c.MediumThreshold < c.HighThreshold &&
		c.HighThreshold < c.CriticalThreshold &&
		c.CriticalThreshold <= 1
}

// UPLAssessment is the outcome of scoring one piece of content.
type UPLAssessment struct {
	Score             float64             `json:"score"`
	Level             domain.UPLRiskLevel `json:"level"`
	HighRiskPhrases   []string            `json:"high_risk_phrases,omitempty"`
	DisclaimerPresent bool                `json:"disclaimer_present"`
	RequiresReview    bool                `json:"requires_review"`
}

type Assessor struct {
	cfg  Config
	book Phrasebook
}

func NewAssessor(cfg Config, book Phrasebook) *Assessor {
	if !cfg.Valid() {
		cfg = DefaultConfig()
	}
	return &Assessor{cfg: cfg, book: book}
}

func (a *Assessor) Phrasebook() Phrasebook {
	return a.book
}

// Assess scores text: each distinct high-risk pattern adds its weight once
// however often it occurs, a missing disclaimer adds more, and so does long
// content. The score is clamped to [0,1].
func (a *Assessor) Assess(text string) UPLAssessment {
	out := UPLAssessment{HighRiskPhrases: Matches(a.book.HighRisk, text)}

	score := highRiskWeight * float64(len(out.HighRiskPhrases))
	out.DisclaimerPresent = len(Matches(a.book.Disclaimers, text)) > 0
	if !out.DisclaimerPresent {
		score += missingDisclaimerRisk
	}
	if len([]rune(text)) > longContentChars {
		score += longContentRisk
	}

	out.Score = math.Round(math.Max(0, math.Min(1, score))*100) / 100
	out.Level = a.Level(out.Score)
	out.RequiresReview = out.Level == domain.UPLRiskCritical
	return out
}

// Level buckets a score; a score equal to a threshold takes the higher level.
func (a *Assessor) Level(score float64) domain.UPLRiskLevel {
	switch {
	case score >= a.cfg.CriticalThreshold:
		return domain.UPLRiskCritical
	case score >= a.cfg.HighThreshold:
		return domain.UPLRiskHigh
	case score >= a.cfg.MediumThreshold:
		return domain.UPLRiskMedium
	default:
		return domain.UPLRiskLow
	}
}

// Review is the desk-side check: content needs an attorney when it carries
// high-risk phrasing, touches a mandatory-review subject, hits a
// jurisdiction trigger or scores critical.
func (a *Assessor) Review(text string) domain.ReviewVerdict {
	upl := a.Assess(text)
	verdict := domain.ReviewVerdict{RiskLevel: upl.Level}
	for _, name := range upl.HighRiskPhrases {
		verdict.Reasons = append(verdict.Reasons, "high-risk phrasing: "+name)
	}
	for _, name := range Matches(a.book.MandatoryReview, text) {
		verdict.Reasons = append(verdict.Reasons, "mandatory review subject: "+name)
	}
	for _, name := range Matches(a.book.JurisdictionTriggers, text) {
		verdict.Reasons = append(verdict.Reasons, "jurisdiction-specific trigger: "+name)
	}
	if upl.RequiresReview {
		verdict.Reasons = append(verdict.Reasons, "critical UPL risk")
	}
	verdict.RequiresReview = len(verdict.Reasons) > 0
	return verdict
}
