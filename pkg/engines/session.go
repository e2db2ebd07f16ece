package engines

import (
	"context"
	"errors"
	"regexp"

	"github.com/typhoonworks/lotus-sub001/pkg/apperrors"
)

// searchPathRegex limits search paths to schema identifier characters plus
// commas and spaces; anything else cannot be interpolated into a SET
// statement safely.
var searchPathRegex = regexp.MustCompile(`^[A-Za-z0-9_$, ]+$`)

// ValidateSearchPath rejects search paths carrying characters outside the
// schema-list alphabet.
func ValidateSearchPath(path string) error {
	if path == "" {
		return nil
	}
	if !searchPathRegex.MatchString(path) {
		return apperrors.Validationf("malformed search path %q", path)
	}
	return nil
}

// WrapTimeout converts context-deadline failures into the timeout error of
// the taxonomy; everything else passes through.
func WrapTimeout(err error, session Session) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &apperrors.TimeoutError{Budget: session.Timeout}
	}
	return err
}
