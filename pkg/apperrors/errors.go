// Package apperrors defines the tagged error taxonomy surfaced at the
// boundary of the query execution core. Callers are expected to classify
// failures with errors.As rather than string matching.
package apperrors

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports invalid caller input: a missing required variable,
// a malformed search path, a multi-statement query, and similar.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// CastError reports a value that could not be converted to its resolved
// semantic type. Hint is an engine-agnostic description of the expected
// format.
type CastError struct {
	Value any
	Type  string
	Hint  string
}

func (e *CastError) Error() string {
	value := fmt.Sprintf("%v", e.Value)
	if s, ok := e.Value.(string); ok {
		value = fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("cannot cast %s to %s: %s", value, e.Type, e.Hint)
}

// VisibilityError reports schemas or relations denied by policy. Relations
// holds the rendered names of everything that was blocked.
type VisibilityError struct {
	Relations []string
}

func (e *VisibilityError) Error() string {
	if len(e.Relations) == 1 {
		return fmt.Sprintf("access to relation %s is not allowed", e.Relations[0])
	}
	return fmt.Sprintf("access to relations %s is not allowed", strings.Join(e.Relations, ", "))
}

// EngineError wraps a native driver failure after classification. Message is
// the stable human-readable form produced by the engine's error formatter.
type EngineError struct {
	Message string
	Err     error
}

func (e *EngineError) Error() string { return e.Message }

func (e *EngineError) Unwrap() error { return e.Err }

// TimeoutError reports a statement or transaction that exceeded its budget.
// No partial results accompany it.
type TimeoutError struct {
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Budget > 0 {
		return fmt.Sprintf("query exceeded its time budget of %s", e.Budget)
	}
	return "query exceeded its time budget"
}
