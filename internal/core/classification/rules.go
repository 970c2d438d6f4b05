// Package classification scores extracted text against weighted pattern
// tables and pulls structured metadata out of legal documents.
package classification

import (
	"regexp"
	"sort"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

const (
	pointsPerMatch    = 10.0
	multiPatternBonus = 5.0
	defaultRuleWeight = 1.0
)

// Rule is one compiled pattern and its weight.
type Rule struct {
	Pattern *regexp.Regexp
	Weight  float64
}

// CategoryRules lists the patterns that vote for one category.
type CategoryRules struct {
	Category string
	Rules    []Rule
}

// RuleTable is ordered; on equal scores the earlier category wins.
type RuleTable []CategoryRules

// Vocabulary drives the free-form pattern sets and keyword metadata.
type Vocabulary struct {
	Keywords        []string
	LegalTerms      []string
	ProceduralTerms []string
}

type Rules struct {
	DocumentTypes RuleTable
	Subjects      RuleTable
	Vocabulary    Vocabulary
}

// ScoreCategory applies the scoring formula to one category: ten points per
// occurrence scaled by the rule weight, plus a bonus once more than one
// distinct pattern has matched.
func ScoreCategory(c CategoryRules, text string) domain.CategoryScore {
	out := domain.CategoryScore{Category: c.Category}
	for _, r := range c.Rules {
		if r.Pattern == nil {
			continue
		}
		n := len(r.Pattern.FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		w := r.Weight
		if w <= 0 {
			w = defaultRuleWeight
		}
		out.Matches += n
		out.Distinct++
		out.Score += pointsPerMatch * w * float64(n)
	}
	if out.Distinct > 1 {
		out.Score += multiPatternBonus
	}
	return out
}

// Score returns every category with a non-zero score, highest first. Equal
// scores keep table order.
func Score(table RuleTable, text string) []domain.CategoryScore {
	scores := make([]domain.CategoryScore, 0, len(table))
	for _, c := range table {
		if s := ScoreCategory(c, text); s.Score > 0 {
			scores = append(scores, s)
		}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores
}
