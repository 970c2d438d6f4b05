package domain

import "time"

type ResultKind string

const (
	ResultExtraction     ResultKind = "ocr"
	ResultClassification ResultKind = "classification"
	ResultAnalysis       ResultKind = "analysis"
)

func ParseResultKind(raw string) (ResultKind, bool) {
	switch ResultKind(raw) {
	case ResultExtraction, ResultClassification, ResultAnalysis:
		return ResultKind(raw), true
	}
	return "", false
}

// ResultRecord indexes one persisted stage result. Records are only ever
// appended; the newest per document and kind is authoritative.
type ResultRecord struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"document_id"`
	Kind       ResultKind `json:"kind"`
	Status     string     `json:"status"`
	Confidence float64    `json:"confidence"`
	CreatedAt  time.Time  `json:"created_at"`
}

type AuditEventType string

const (
	AuditDocumentUploaded       AuditEventType = "document_uploaded"
	AuditUploadRejected         AuditEventType = "document_upload_rejected"
	AuditDocumentQuarantined    AuditEventType = "document_quarantined"
	AuditUploadFailed           AuditEventType = "document_upload_failed"
	AuditDocumentRetrieved      AuditEventType = "document_retrieved"
	AuditRetrievalFailed        AuditEventType = "document_retrieval_failed"
	AuditAccessDenied           AuditEventType = "document_access_denied"
	AuditExtractionCompleted    AuditEventType = "extraction_completed"
	AuditExtractionFailed       AuditEventType = "extraction_failed"
	AuditExtractionSkipped      AuditEventType = "extraction_skipped"
	AuditClassificationComplete AuditEventType = "classification_completed"
	AuditClassificationFailed   AuditEventType = "classification_failed"
	AuditAnalysisCompleted      AuditEventType = "analysis_completed"
	AuditAnalysisFailed         AuditEventType = "analysis_failed"
	AuditReviewEscalated        AuditEventType = "attorney_review_escalated"
)

type AuditEvent struct {
	EventType  AuditEventType `json:"event_type"`
	DocumentID string         `json:"document_id"`
	UserID     string         `json:"user_id"`
	Details    map[string]any `json:"details"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ReviewVerdict is the attorney review desk's answer for a piece of content.
type ReviewVerdict struct {
	RequiresReview bool         `json:"requires_review"`
	RiskLevel      UPLRiskLevel `json:"risk_level"`
	Reasons        []string     `json:"reasons,omitempty"`
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewResolved ReviewStatus = "resolved"
)

// ReviewItem is one escalation waiting on an attorney.
type ReviewItem struct {
	ID         string         `json:"id"`
	ContentID  string         `json:"content_id"`
	DocumentID string         `json:"document_id,omitempty"`
	Reason     string         `json:"reason"`
	RiskLevel  UPLRiskLevel   `json:"risk_level"`
	Details    map[string]any `json:"details,omitempty"`
	Status     ReviewStatus   `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
}
