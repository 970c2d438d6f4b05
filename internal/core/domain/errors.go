package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrResultNotFound   = errors.New("result not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTemporary        = errors.New("temporary failure")

	ErrValidation           = errors.New("validation failed")
	ErrSecurity             = errors.New("security violation")
	ErrExtraction           = errors.New("extraction failed")
	ErrClassification       = errors.New("classification failed")
	ErrComplianceAssessment = errors.New("compliance assessment failed")
	ErrIntegrity            = errors.New("integrity check failed")
	ErrStorage              = errors.New("storage failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
