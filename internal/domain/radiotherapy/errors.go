package radiotherapy

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientInput is returned when a schedule cannot be generated
	// because the start date, fraction count or dose is missing.
	ErrInsufficientInput = errors.New("start date, total fractions and dose per fraction are required to generate a schedule")
	ErrNotFound          = errors.New("not found")
)

// ValidationError rejects a request before anything is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
