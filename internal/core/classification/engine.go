package classification

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

type Config struct {
	TypeScale    float64
	TypeFloor    float64
	SubjectScale float64
	SubjectFloor float64
}

func DefaultConfig() Config {
	return Config{
		TypeScale:    2.0,
		TypeFloor:    50,
		SubjectScale: 1.5,
		SubjectFloor: 40,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()
	if out.TypeScale <= 0 {
		out.TypeScale = def.TypeScale
	}
	if out.SubjectScale <= 0 {
		out.SubjectScale = def.SubjectScale
	}
	if out.TypeFloor < 0 || out.TypeFloor > 100 {
		out.TypeFloor = def.TypeFloor
	}
	if out.SubjectFloor < 0 || out.SubjectFloor > 100 {
		out.SubjectFloor = def.SubjectFloor
	}
	return out
}

type Engine struct {
	cfg    Config
	rules  Rules
	logger *slog.Logger
}

func NewEngine(cfg Config, rules Rules, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg.normalize(), rules: rules, logger: logger}
}

// Classify fills the category, confidence, metadata and pattern fields of
// result. A panic inside a rule degrades the result to unknown with review
// required instead of escaping.
func (e *Engine) Classify(text string, result *domain.ClassificationResult) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = domain.WrapError(domain.ErrClassification, "classify", fmt.Errorf("panic: %v", rec))
		}
		if err != nil {
			Degrade(result, err)
		}
	}()

	result.DisclaimerRequired = true
	result.TypeScores = Score(e.rules.DocumentTypes, text)
	result.SubjectSignals = Score(e.rules.Subjects, text)

	result.DocumentType = domain.DocUnknown
	if len(result.TypeScores) > 0 {
		best := result.TypeScores[0]
		conf := rescale(best.Score, e.cfg.TypeScale)
		if conf >= e.cfg.TypeFloor {
			result.DocumentType = domain.DocumentType(best.Category)
			result.DocumentTypeConfidence = conf
		} else {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"document type %q scored %.0f, below the %.0f floor; reported as unknown", best.Category, conf, e.cfg.TypeFloor))
		}
	}

	result.SubjectCategory = domain.SubjectGeneral
	if len(result.SubjectSignals) > 0 {
		best := result.SubjectSignals[0]
		conf := rescale(best.Score, e.cfg.SubjectScale)
		if conf >= e.cfg.SubjectFloor {
			result.SubjectCategory = domain.SubjectCategory(best.Category)
			result.SubjectConfidence = conf
		} else {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"subject %q scored %.0f, below the %.0f floor; reported as general_legal", best.Category, conf, e.cfg.SubjectFloor))
		}
	}

	result.Confidence = (result.DocumentTypeConfidence + result.SubjectConfidence) / 2
	result.ConfidenceLevel = domain.LevelForScore(result.Confidence)

	result.Metadata = ExtractMetadata(text, e.rules.Vocabulary)
	result.Patterns = ExtractPatterns(text, e.rules.Vocabulary)

	e.logger.Debug("document classified",
		"document_id", result.DocumentID,
		"document_type", result.DocumentType,
		"subject", result.SubjectCategory,
		"type_confidence", result.DocumentTypeConfidence,
		"subject_confidence", result.SubjectConfidence,
	)
	return nil
}

// Degrade turns result into the conservative failure shape.
func Degrade(result *domain.ClassificationResult, cause error) {
	result.DocumentType = domain.DocUnknown
	result.SubjectCategory = domain.SubjectGeneral
	result.DocumentTypeConfidence = 0
	result.SubjectConfidence = 0
	result.Confidence = 0
	result.ConfidenceLevel = domain.LevelForScore(0)
	result.AttorneyReviewRequired = true
	result.DisclaimerRequired = true
	if cause != nil {
		result.Warnings = append(result.Warnings, "classification failed; attorney review required: "+cause.Error())
	}
}

func rescale(score, scale float64) float64 {
	return math.Min(100, score*scale)
}
