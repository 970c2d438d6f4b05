package compliance

import "github.com/kirillkom/legal-intake/internal/core/domain"

// educationalContextRequired is policy: every analysis is framed as
// education, so ComplianceApproved is never reached today.
const educationalContextRequired = true

// DecideLevel applies the compliance state machine. The first matching rule
// wins and scores are never averaged across rules.
func DecideLevel(reviewFlagged, legalAdvice bool, risk domain.UPLRiskLevel) domain.ComplianceLevel {
	switch {
	case reviewFlagged || legalAdvice:
		return domain.ComplianceRequiresAttorneyReview
	case risk == domain.UPLRiskHigh:
		return domain.ComplianceFlaggedForReview
	case educationalContextRequired:
		return domain.ComplianceEducationalOnly
	default:
		return domain.ComplianceApproved
	}
}
