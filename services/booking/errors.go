package booking

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced to API clients.
const (
	CodeValidation          = "validationError"
	CodeBusinessRule        = "businessRuleError"
	CodeNotFound            = "notFound"
	CodeSlotConflict        = "slotConflict"
	CodeOutsideAvailability = "outsideAvailability"
	CodeOutsideServiceArea  = "outsideServiceArea"
	CodeRepository          = "repositoryError"
)

// DomainError carries a stable code alongside the message so handlers can map
// it to an HTTP status without string matching.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

func NewValidationError(msg string) error {
	return &DomainError{Code: CodeValidation, Message: msg}
}

func NewBusinessRuleError(msg string) error {
	return &DomainError{Code: CodeBusinessRule, Message: msg}
}

func NewNotFoundError(msg string) error {
	return &DomainError{Code: CodeNotFound, Message: msg}
}

func NewSlotConflictError() error {
	return &DomainError{Code: CodeSlotConflict, Message: "requested window overlaps a confirmed booking"}
}

func NewOutsideAvailabilityError() error {
	return &DomainError{Code: CodeOutsideAvailability, Message: "requested window is outside instructor availability"}
}

func NewOutsideServiceAreaError() error {
	return &DomainError{Code: CodeOutsideServiceArea, Message: "requested location is outside the instructor's service area"}
}

func NewRepositoryError(err error) error {
	return &DomainError{Code: CodeRepository, Message: "storage operation failed", Err: err}
}

// CodeOf extracts the stable code from err, or empty for unknown errors.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
