package domain

import "time"

type DocumentType string

const (
	DocMotion         DocumentType = "motion"
	DocPetition       DocumentType = "petition"
	DocOrder          DocumentType = "order"
	DocComplaint      DocumentType = "complaint"
	DocAnswer         DocumentType = "answer"
	DocBrief          DocumentType = "brief"
	DocContract       DocumentType = "contract"
	DocCorrespondence DocumentType = "correspondence"
	DocFinancial      DocumentType = "financial"
	DocProcedural     DocumentType = "procedural"
	DocUnknown        DocumentType = "unknown"
)

var DocumentTypes = []DocumentType{
	DocMotion, DocPetition, DocOrder, DocComplaint, DocAnswer, DocBrief,
	DocContract, DocCorrespondence, DocFinancial, DocProcedural, DocUnknown,
}

type SubjectCategory string

const (
	SubjectBankruptcy     SubjectCategory = "bankruptcy_procedure"
	SubjectCivil          SubjectCategory = "civil_procedure"
	SubjectContract       SubjectCategory = "contract_law"
	SubjectFamily         SubjectCategory = "family_law"
	SubjectCriminal       SubjectCategory = "criminal_law"
	SubjectEmployment     SubjectCategory = "employment_law"
	SubjectRealEstate     SubjectCategory = "real_estate"
	SubjectIP             SubjectCategory = "intellectual_property"
	SubjectGeneral        SubjectCategory = "general_legal"
	SubjectAdministrative SubjectCategory = "administrative"
)

var SubjectCategories = []SubjectCategory{
	SubjectBankruptcy, SubjectCivil, SubjectContract, SubjectFamily, SubjectCriminal,
	SubjectEmployment, SubjectRealEstate, SubjectIP, SubjectGeneral, SubjectAdministrative,
}

// CategoryScore is the raw rule score for one category.
type CategoryScore struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	Matches  int     `json:"matches"`
	Distinct int     `json:"distinct_patterns"`
}

type DateKind string

const (
	DateFiling   DateKind = "filing"
	DateHearing  DateKind = "hearing"
	DateDeadline DateKind = "deadline"
	DateDocument DateKind = "document"
)

type ExtractedDate struct {
	Text string     `json:"text"`
	Date *time.Time `json:"date,omitempty"`
	Kind DateKind   `json:"kind"`
}

type ExtractedParty struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type DocumentMetadata struct {
	CaseNumber   string           `json:"case_number,omitempty"`
	CourtName    string           `json:"court_name,omitempty"`
	Attorneys    []string         `json:"attorneys"`
	Dates        []ExtractedDate  `json:"dates"`
	Parties      []ExtractedParty `json:"parties"`
	Jurisdiction string           `json:"jurisdiction,omitempty"`
	Keywords     []string         `json:"keywords"`
}

type PatternSets struct {
	Citations       []string `json:"citations"`
	LegalTerms      []string `json:"legal_terms"`
	ProceduralTerms []string `json:"procedural_terms"`
}

type ClassificationResult struct {
	ID                     string           `json:"id"`
	DocumentID             string           `json:"document_id"`
	ExtractionID           string           `json:"extraction_id,omitempty"`
	DocumentType           DocumentType     `json:"document_type"`
	SubjectCategory        SubjectCategory  `json:"subject_category"`
	DocumentTypeConfidence float64          `json:"document_type_confidence"`
	SubjectConfidence      float64          `json:"subject_confidence"`
	Confidence             float64          `json:"confidence"`
	ConfidenceLevel        ConfidenceLevel  `json:"confidence_level"`
	TypeScores             []CategoryScore  `json:"type_scores"`
	SubjectSignals         []CategoryScore  `json:"subject_signals"`
	Metadata               DocumentMetadata `json:"metadata"`
	Patterns               PatternSets      `json:"patterns"`
	AttorneyReviewRequired bool             `json:"attorney_review_required"`
	DisclaimerRequired     bool             `json:"disclaimer_required"`
	Warnings               []string         `json:"warnings"`
	CreatedAt              time.Time        `json:"created_at"`
}

// HasSubjectSignal reports whether a subject scored at all, even when it
// did not clear the confidence floor.
func (r *ClassificationResult) HasSubjectSignal(subject SubjectCategory) bool {
	for _, s := range r.SubjectSignals {
		if s.Category == string(subject) && s.Score > 0 {
			return true
		}
	}
	return false
}
