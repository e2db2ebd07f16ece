package apperrors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCastErrorMessage(t *testing.T) {
	err := &CastError{Value: "not-a-uuid", Type: "uuid", Hint: "expected 8-4-4-4-12 hex digits"}
	assert.Equal(t, `cannot cast "not-a-uuid" to uuid: expected 8-4-4-4-12 hex digits`, err.Error())

	err = &CastError{Value: 3.5, Type: "integer", Hint: "expected a whole number"}
	assert.Equal(t, "cannot cast 3.5 to integer: expected a whole number", err.Error())
}

func TestVisibilityErrorMessage(t *testing.T) {
	err := &VisibilityError{Relations: []string{"public.secrets"}}
	assert.Equal(t, "access to relation public.secrets is not allowed", err.Error())

	err = &VisibilityError{Relations: []string{"public.secrets", "hr.salaries"}}
	assert.Equal(t, "access to relations public.secrets, hr.salaries is not allowed", err.Error())
}

func TestTimeoutErrorMessage(t *testing.T) {
	assert.Equal(t, "query exceeded its time budget of 5s", (&TimeoutError{Budget: 5 * time.Second}).Error())
	assert.Equal(t, "query exceeded its time budget", (&TimeoutError{}).Error())
}

func TestEngineErrorUnwrap(t *testing.T) {
	native := errors.New("native")
	err := &EngineError{Message: "classified", Err: native}
	assert.Equal(t, "classified", err.Error())
	assert.ErrorIs(t, err, native)
}

func TestValidationf(t *testing.T) {
	err := Validationf("missing required variable %q", "min_age")
	assert.Equal(t, `missing required variable "min_age"`, err.Error())

	var validationErr *ValidationError
	assert.ErrorAs(t, fmt.Errorf("run query: %w", err), &validationErr)
}
