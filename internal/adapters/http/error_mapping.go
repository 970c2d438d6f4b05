package httpadapter

import (
	"net/http"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrDocumentNotFound), domain.IsKind(err, domain.ErrResultNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrSecurity):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
