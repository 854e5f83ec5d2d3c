/*
errors.go - Error types for the audit engine

ERROR CATEGORIES:
  1. Input errors - structurally invalid requests. Fatal to the call, returned
     as one *InputError listing every problem found.
  2. Bundle errors - no bundle supplied, or the requested version is unknown.

Data-quality problems (a rate that cannot be resolved) are NOT errors. They
degrade the affected snapshot entry to incomplete and surface as a
RATE_UNAVAILABLE flag, so the rest of the audit still completes.

SEE ALSO:
  - validate.go: Produces InputError
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package audit

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned when the request is structurally invalid.
	ErrInvalidInput = errors.New("invalid audit input")

	// ErrBundleRequired is returned when Run is called without a bundle.
	ErrBundleRequired = errors.New("rate table bundle required")

	// ErrBundleNotFound is returned when a requested bundle version is unknown.
	ErrBundleNotFound = errors.New("rate table bundle not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// FieldError is one validation problem. Line is -1 for profile fields.
type FieldError struct {
	Line   int    `json:"line"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e FieldError) String() string {
	if e.Line < 0 {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("line %d %s: %s", e.Line, e.Field, e.Reason)
}

// InputError collects every validation problem in a request.
type InputError struct {
	Problems []FieldError
}

func (e *InputError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput, strings.Join(parts, "; "))
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrBundleRequired)
}

// IsNotFound returns true if the error indicates a missing bundle.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBundleNotFound)
}
