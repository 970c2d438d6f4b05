package domain

import "time"

type ComplianceLevel string

// RequiresAttorneyReview is terminal: nothing downgrades it.
const (
	ComplianceEducationalOnly        ComplianceLevel = "educational_only"
	ComplianceFlaggedForReview       ComplianceLevel = "flagged_for_review"
	ComplianceRequiresAttorneyReview ComplianceLevel = "requires_attorney_review"
	ComplianceApproved               ComplianceLevel = "compliance_approved"
)

type UPLRiskLevel string

const (
	UPLRiskLow      UPLRiskLevel = "low"
	UPLRiskMedium   UPLRiskLevel = "medium"
	UPLRiskHigh     UPLRiskLevel = "high"
	UPLRiskCritical UPLRiskLevel = "critical"
)

type AnalysisType string

const (
	AnalysisComprehensive AnalysisType = "comprehensive"
	AnalysisSummary       AnalysisType = "summary"
	AnalysisDates         AnalysisType = "dates"
	AnalysisParties       AnalysisType = "parties"
)

// ParseAnalysisType defaults to comprehensive on empty input.
func ParseAnalysisType(raw string) (AnalysisType, bool) {
	switch AnalysisType(raw) {
	case "":
		return AnalysisComprehensive, true
	case AnalysisComprehensive, AnalysisSummary, AnalysisDates, AnalysisParties:
		return AnalysisType(raw), true
	default:
		return "", false
	}
}

type ComplexityTier string

const (
	ComplexityBasic        ComplexityTier = "basic"
	ComplexityIntermediate ComplexityTier = "intermediate"
	ComplexityAdvanced     ComplexityTier = "advanced"
)

type EducationalSummary struct {
	Purpose            string         `json:"purpose"`
	KeyConcepts        []string       `json:"key_concepts"`
	ProceduralContext  string         `json:"procedural_context"`
	BulletPoints       []string       `json:"bullet_points"`
	Complexity         ComplexityTier `json:"complexity"`
	LearningObjectives []string       `json:"learning_objectives"`
}

type ContextualDate struct {
	ExtractedDate
	EducationalContext string `json:"educational_context"`
}

type ContextualParty struct {
	ExtractedParty
	EducationalContext string `json:"educational_context"`
}

type ComplianceFlags struct {
	AttorneyReviewRequired      bool         `json:"attorney_review_required"`
	ContainsLegalAdviceLanguage bool         `json:"contains_legal_advice_language"`
	ContainsPrivilegedContent   bool         `json:"contains_privileged_content"`
	NeedsJurisdictionWarning    bool         `json:"needs_jurisdiction_warning"`
	UPLRiskLevel                UPLRiskLevel `json:"upl_risk_level"`
	UPLRiskScore                float64      `json:"upl_risk_score"`
}

type DisclaimerBundle struct {
	General                      string `json:"general"`
	NoAttorneyClientRelationship string `json:"no_attorney_client_relationship"`
	Jurisdiction                 string `json:"jurisdiction"`
	Accuracy                     string `json:"accuracy"`
	SeekCounsel                  string `json:"seek_counsel"`
}

type AnalysisResult struct {
	ID               string             `json:"id"`
	DocumentID       string             `json:"document_id"`
	ClassificationID string             `json:"classification_id,omitempty"`
	ExtractionID     string             `json:"extraction_id,omitempty"`
	AnalysisType     AnalysisType       `json:"analysis_type"`
	Summary          EducationalSummary `json:"summary"`
	Dates            []ContextualDate   `json:"dates"`
	Parties          []ContextualParty  `json:"parties"`
	KeyFindings      []string           `json:"key_findings"`
	Disclaimers      DisclaimerBundle   `json:"disclaimers"`
	Flags            ComplianceFlags    `json:"compliance_flags"`
	ComplianceLevel  ComplianceLevel    `json:"compliance_level"`
	ReviewNotes      []string           `json:"attorney_review_notes"`
	Warnings         []string           `json:"warnings"`
	Failed           bool               `json:"failed"`
	CreatedAt        time.Time          `json:"created_at"`
}
