package domain

import "time"

type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidencePoor   ConfidenceLevel = "poor"
)

const (
	HighConfidenceThreshold   = 90.0
	MediumConfidenceThreshold = 70.0
	LowConfidenceThreshold    = 50.0
)

// LevelForScore maps a 0-100 score to its band. Boundary values belong to
// the higher band.
func LevelForScore(score float64) ConfidenceLevel {
	switch {
	case score >= HighConfidenceThreshold:
		return ConfidenceHigh
	case score >= MediumConfidenceThreshold:
		return ConfidenceMedium
	case score >= LowConfidenceThreshold:
		return ConfidenceLow
	default:
		return ConfidencePoor
	}
}

type ExtractionStatus string

const (
	ExtractionPending    ExtractionStatus = "pending"
	ExtractionProcessing ExtractionStatus = "processing"
	ExtractionCompleted  ExtractionStatus = "completed"
	ExtractionFailed     ExtractionStatus = "failed"
	ExtractionSkipped    ExtractionStatus = "skipped"
)

type ExtractionStrategy string

const (
	StrategyTextDocument  ExtractionStrategy = "text_document"
	StrategySearchablePDF ExtractionStrategy = "searchable_pdf"
	StrategyScannedPDF    ExtractionStrategy = "scanned_pdf"
	StrategyImage         ExtractionStrategy = "image"
)

type BoundingBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type TextBlock struct {
	Text       string      `json:"text"`
	Box        BoundingBox `json:"bbox"`
	Page       int         `json:"page"`
	Confidence float64     `json:"confidence"`
}

type PageDimension struct {
	Page   int     `json:"page"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RecognizedWord is a single OCR word before confidence filtering.
type RecognizedWord struct {
	Text       string      `json:"text"`
	Box        BoundingBox `json:"bbox"`
	Line       int         `json:"line"`
	Confidence float64     `json:"confidence"`
}

// PageRecognition is the raw OCR output for one page.
type PageRecognition struct {
	Page   int              `json:"page"`
	Width  float64          `json:"width"`
	Height float64          `json:"height"`
	Words  []RecognizedWord `json:"words"`
}

// PageText is the text layer of one PDF page.
type PageText struct {
	Page   int     `json:"page"`
	Text   string  `json:"text"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type ExtractionResult struct {
	ID              string             `json:"id"`
	DocumentID      string             `json:"document_id"`
	Status          ExtractionStatus   `json:"status"`
	Strategy        ExtractionStrategy `json:"strategy,omitempty"`
	Confidence      float64            `json:"confidence"`
	ConfidenceLevel ConfidenceLevel    `json:"confidence_level"`
	ExtractedText   string             `json:"extracted_text"`
	OriginalText    string             `json:"original_text,omitempty"`
	Blocks          []TextBlock        `json:"blocks"`
	PageCount       int                `json:"page_count"`
	Pages           []PageDimension    `json:"pages,omitempty"`
	Warnings        []string           `json:"warnings"`
	Errors          []string           `json:"errors"`
	CreatedAt       time.Time          `json:"created_at"`
}

// SetConfidence keeps the level in step with the score.
func (r *ExtractionResult) SetConfidence(score float64) {
	r.Confidence = score
	r.ConfidenceLevel = LevelForScore(score)
}
