package sqltemplate

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionResult describes a parameter value that matched a SQL injection
// pattern.
type InjectionResult struct {
	Variable    string
	Value       any
	Fingerprint string
}

// CheckValueForInjection scans a resolved parameter value with libinjection.
// Only strings are scanned; numbers, booleans, and byte values cannot carry
// injection payloads. Returns nil when the value is clean.
//
// Values are bound positionally and never interpolated, so this is
// defense-in-depth rather than the primary control.
func CheckValueForInjection(variable string, value any) *InjectionResult {
	s, ok := value.(string)
	if !ok {
		return nil
	}
	isSQLi, fingerprint := libinjection.IsSQLi(s)
	if !isSQLi {
		return nil
	}
	return &InjectionResult{
		Variable:    variable,
		Value:       value,
		Fingerprint: string(fingerprint),
	}
}
