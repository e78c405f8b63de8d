package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrFeatureDisabled  = errors.New("feature disabled")
	ErrReadOnly         = errors.New("manual data is read-only")
	ErrFKViolation      = errors.New("foreign key violation: account_id does not exist in the referenced accounts table")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrUpstream         = errors.New("upstream request failed")
	ErrUnknownSlug      = errors.New("unknown_slug")
	ErrUnknownField     = errors.New("unknown_field")
	ErrUnsupported      = errors.New("operation not supported by this backend")
)

// ValidationError reports a field value that failed normalization.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
