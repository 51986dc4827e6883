package app

import (
	"fmt"
	"net/http"
)

// DomainError is rendered as the JSON error envelope {code, error, details}.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}

func pageNotFound(slug string) *DomainError {
	return domainError(http.StatusNotFound, "PAGE_NOT_FOUND", "Page not found", map[string]any{"slug": slug})
}
