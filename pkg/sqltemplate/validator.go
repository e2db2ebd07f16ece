package sqltemplate

import (
	"strings"

	"github.com/typhoonworks/lotus-sub001/pkg/apperrors"
)

// ValidateAndNormalize strips a trailing semicolon and rejects statements
// that contain more than one SQL statement. The execution pipeline only ever
// runs a single statement per transaction.
func ValidateAndNormalize(sqlText string) (string, error) {
	sqlText = strings.TrimSpace(sqlText)
	if sqlText == "" {
		return "", apperrors.Validationf("statement is empty")
	}

	normalized := stripTrailingSemicolon(sqlText)

	if hasSemicolonOutsideStrings(normalized) {
		return "", apperrors.Validationf("multiple SQL statements not allowed; only single statements are permitted")
	}
	return normalized, nil
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of string literals or quoted identifiers.
func hasSemicolonOutsideStrings(sqlText string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prev := rune(0)

	for _, char := range sqlText {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// A doubled quote ('') exits and immediately re-enters, which
			// keeps the scan inside the literal.
			if char == '\'' && prev != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prev != '\\' {
				state = stateNormal
			}
		}
		prev = char
	}
	return false
}

func stripTrailingSemicolon(sqlText string) string {
	sqlText = strings.TrimRight(sqlText, " \t\n\r")
	if strings.HasSuffix(sqlText, ";") {
		sqlText = strings.TrimRight(strings.TrimSuffix(sqlText, ";"), " \t\n\r")
	}
	return sqlText
}
