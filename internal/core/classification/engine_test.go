package classification

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

func rule(pattern string, weight float64) Rule {
	return Rule{Pattern: regexp.MustCompile("(?i)" + pattern), Weight: weight}
}

func testRules() Rules {
	return Rules{
		DocumentTypes: RuleTable{
			{Category: "motion", Rules: []Rule{rule(`\bmotion\b`, 1), rule(`\bmovant\b`, 2)}},
			{Category: "order", Rules: []Rule{rule(`\bso\s+ordered\b`, 3)}},
		},
		Subjects: RuleTable{
			{Category: "bankruptcy_procedure", Rules: []Rule{rule(`\bchapter\s+7\b`, 3), rule(`\bdebtor\b`, 1)}},
			{Category: "civil_procedure", Rules: []Rule{rule(`\bdiscovery\b`, 1)}},
		},
		Vocabulary: Vocabulary{
			Keywords:        []string{"automatic stay", "discharge"},
			LegalTerms:      []string{"jurisdiction"},
			ProceduralTerms: []string{"hearing"},
		},
	}
}

func TestScoreCategoryAddsBonusForDistinctPatterns(t *testing.T) {
	c := CategoryRules{Category: "motion", Rules: []Rule{rule(`\bmotion\b`, 1), rule(`\bmovant\b`, 2)}}

	got := ScoreCategory(c, "motion motion movant")
	assert.InDelta(t, 45, got.Score, 0.001)
	assert.Equal(t, 3, got.Matches)
	assert.Equal(t, 2, got.Distinct)

	single := ScoreCategory(c, "motion motion")
	assert.InDelta(t, 20, single.Score, 0.001)
	assert.Equal(t, 1, single.Distinct)
}

func TestScoreCategoryIsMonotonic(t *testing.T) {
	c := CategoryRules{Category: "motion", Rules: []Rule{rule(`\bmotion\b`, 1), rule(`\bmovant\b`, 0)}}
	prev := 0.0
	text := ""
	for i := 0; i < 5; i++ {
		text += " motion"
		got := ScoreCategory(c, text)
		require.Greater(t, got.Score, prev)
		prev = got.Score
	}
	// zero weight falls back to the default
	assert.InDelta(t, 10, ScoreCategory(c, "movant").Score, 0.001)
}

func TestScoreKeepsTableOrderOnTies(t *testing.T) {
	table := RuleTable{
		{Category: "first", Rules: []Rule{rule(`alpha`, 1)}},
		{Category: "second", Rules: []Rule{rule(`beta`, 1)}},
		{Category: "third", Rules: []Rule{rule(`gamma`, 5)}},
		{Category: "silent", Rules: []Rule{rule(`delta`, 1)}},
	}
	scores := Score(table, "beta alpha gamma")
	require.Len(t, scores, 3)
	assert.Equal(t, "third", scores[0].Category)
	assert.Equal(t, "first", scores[1].Category)
	assert.Equal(t, "second", scores[2].Category)
}

func TestClassifyAppliesFloors(t *testing.T) {
	engine := NewEngine(DefaultConfig(), testRules(), nil)

	var weak domain.ClassificationResult
	require.NoError(t, engine.Classify("A motion was mentioned once.", &weak))
	assert.Equal(t, domain.DocUnknown, weak.DocumentType)
	assert.Zero(t, weak.DocumentTypeConfidence)
	assert.Equal(t, domain.SubjectGeneral, weak.SubjectCategory)
	require.Len(t, weak.TypeScores, 1)
	assert.Contains(t, weak.Warnings[0], "below the 50 floor")
	assert.True(t, weak.DisclaimerRequired)

	var strong domain.ClassificationResult
	require.NoError(t, engine.Classify("Movant files this motion. The debtor filed under Chapter 7.", &strong))
	assert.Equal(t, domain.DocMotion, strong.DocumentType)
	assert.InDelta(t, 70, strong.DocumentTypeConfidence, 0.001)
	assert.Equal(t, domain.SubjectBankruptcy, strong.SubjectCategory)
	assert.InDelta(t, 67.5, strong.SubjectConfidence, 0.001)
	assert.InDelta(t, (70+67.5)/2, strong.Confidence, 0.001)
	assert.Equal(t, domain.LevelForScore(strong.Confidence), strong.ConfidenceLevel)
	assert.Empty(t, strong.Warnings)
}

func TestClassifyCapsConfidenceAt100(t *testing.T) {
	engine := NewEngine(DefaultConfig(), testRules(), nil)
	var result domain.ClassificationResult
	require.NoError(t, engine.Classify("SO ORDERED. So ordered. so ordered.", &result))
	assert.Equal(t, domain.DocOrder, result.DocumentType)
	assert.InDelta(t, 100, result.DocumentTypeConfidence, 0.001)
}

func TestClassifyWithEmptyRules(t *testing.T) {
	engine := NewEngine(DefaultConfig(), Rules{}, nil)
	var result domain.ClassificationResult
	require.NoError(t, engine.Classify("anything at all", &result))
	assert.Equal(t, domain.DocUnknown, result.DocumentType)
	assert.Equal(t, domain.SubjectGeneral, result.SubjectCategory)
	assert.Zero(t, result.Confidence)
	assert.NotNil(t, result.Metadata.Parties)
}

func TestDegrade(t *testing.T) {
	result := domain.ClassificationResult{
		DocumentType:           domain.DocMotion,
		SubjectCategory:        domain.SubjectCivil,
		DocumentTypeConfidence: 80,
		Confidence:             80,
	}
	Degrade(&result, assert.AnError)

	assert.Equal(t, domain.DocUnknown, result.DocumentType)
	assert.Equal(t, domain.SubjectGeneral, result.SubjectCategory)
	assert.Zero(t, result.Confidence)
	assert.True(t, result.AttorneyReviewRequired)
	assert.True(t, result.DisclaimerRequired)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "attorney review required")
}

func TestClassifyFillsMetadataAndPatterns(t *testing.T) {
	engine := NewEngine(DefaultConfig(), testRules(), nil)
	text := "Case No. 2023-cv-1234\nThe automatic stay applies under 11 U.S.C. § 362.\nThe hearing addressed jurisdiction."

	var result domain.ClassificationResult
	require.NoError(t, engine.Classify(text, &result))
	assert.Equal(t, "2023-CV-1234", result.Metadata.CaseNumber)
	assert.Equal(t, []string{"automatic stay"}, result.Metadata.Keywords)
	assert.Contains(t, result.Patterns.Citations, "11 U.S.C. § 362")
	assert.Equal(t, []string{"jurisdiction"}, result.Patterns.LegalTerms)
	assert.Equal(t, []string{"hearing"}, result.Patterns.ProceduralTerms)
}
