package sqltypes

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/typhoonworks/lotus-sub001/pkg/apperrors"
)

// Caster converts raw values (typically strings supplied by the caller or
// stored as defaults) into engine-native representations for a semantic
// type. Custom handlers registered for an engine-native type name take
// precedence over the built-in rules.
type Caster struct {
	handlers *HandlerRegistry
}

// NewCaster returns a Caster backed by the given registry. A nil registry
// means built-ins only.
func NewCaster(handlers *HandlerRegistry) *Caster {
	if handlers == nil {
		handlers = NewHandlerRegistry()
	}
	return &Caster{handlers: handlers}
}

// Cast converts value into the engine-native representation of t.
// Failures are *apperrors.CastError values naming the offending value, the
// target type, and a format hint.
func (c *Caster) Cast(value any, t SemanticType, ctx Context) (any, error) {
	if ctx.NativeType != "" {
		if h := c.handlers.Lookup(ctx.NativeType); h != nil {
			if h.RequiresCasting(value) {
				return h.Cast(value, ctx)
			}
			// The handler owns this native type and says the value is
			// already in storage form.
			return value, nil
		}
	}
	return castBuiltin(value, t, ctx)
}

func castBuiltin(value any, t SemanticType, ctx Context) (any, error) {
	switch t.Kind {
	case KindUUID:
		return castUUID(value)
	case KindInteger:
		return castInteger(value)
	case KindFloat:
		return castFloat(value)
	case KindDecimal:
		return castDecimal(value)
	case KindBoolean:
		return castBoolean(value)
	case KindDate:
		return castTemporal(value, t, "2006-01-02", "an ISO-8601 date (YYYY-MM-DD)")
	case KindTime:
		return castTemporal(value, t, "15:04:05", "an ISO-8601 time (HH:MM:SS)")
	case KindDatetime:
		return castDatetime(value)
	case KindJSON, KindComposite:
		return castJSON(value, t)
	case KindBinary:
		return castBinary(value)
	case KindText, KindEnum:
		return stringify(value), nil
	case KindArray:
		return castArray(value, t, ctx)
	default:
		// Untyped: pass through as supplied.
		return value, nil
	}
}

func castErr(value any, t SemanticType, hint string) error {
	return &apperrors.CastError{Value: value, Type: t.String(), Hint: hint}
}

const uuidHint = "expected 8-4-4-4-12 hex digits"

// castUUID parses a canonical dashed UUID and returns the 16-byte value.
// Engines that store UUIDs as strings override this through the handler
// registry.
func castUUID(value any) (any, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		if len(v) != 36 {
			return nil, castErr(value, Scalar(KindUUID), uuidHint)
		}
		u, err := uuid.Parse(v)
		if err != nil {
			return nil, castErr(value, Scalar(KindUUID), uuidHint)
		}
		return u, nil
	default:
		return nil, castErr(value, Scalar(KindUUID), uuidHint)
	}
}

func castInteger(value any) (any, error) {
	t := Scalar(KindInteger)
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return nil, castErr(value, t, "expected a whole number")
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, castErr(value, t, "expected a base-10 integer")
		}
		return n, nil
	default:
		return nil, castErr(value, t, "expected a base-10 integer")
	}
}

func castFloat(value any) (any, error) {
	t := Scalar(KindFloat)
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, castErr(value, t, "expected a decimal number")
		}
		return f, nil
	default:
		return nil, castErr(value, t, "expected a decimal number")
	}
}

func castDecimal(value any) (any, error) {
	t := Scalar(KindDecimal)
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, castErr(value, t, "expected an exact decimal number")
		}
		return d, nil
	default:
		return nil, castErr(value, t, "expected an exact decimal number")
	}
}

func castBoolean(value any) (any, error) {
	t := Scalar(KindBoolean)
	switch v := value.(type) {
	case bool:
		return v, nil
	case int:
		switch v {
		case 1:
			return true, nil
		case 0:
			return false, nil
		}
	case int64:
		switch v {
		case 1:
			return true, nil
		case 0:
			return false, nil
		}
	case float64:
		switch v {
		case 1:
			return true, nil
		case 0:
			return false, nil
		}
	case string:
		switch v {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
	}
	return nil, castErr(value, t, `expected one of true/false, 1/0, yes/no, on/off`)
}

func castTemporal(value any, t SemanticType, layout, want string) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		parsed, err := time.Parse(layout, v)
		if err != nil {
			return nil, castErr(value, t, "expected "+want)
		}
		return parsed, nil
	default:
		return nil, castErr(value, t, "expected "+want)
	}
}

func castDatetime(value any) (any, error) {
	t := Scalar(KindDatetime)
	const hint = "expected an ISO-8601 datetime (YYYY-MM-DDTHH:MM:SS, optional zone offset)"
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return parsed, nil
		}
		if parsed, err := time.Parse("2006-01-02T15:04:05", v); err == nil {
			return parsed, nil
		}
		return nil, castErr(value, t, hint)
	default:
		return nil, castErr(value, t, hint)
	}
}

func castJSON(value any, t SemanticType) (any, error) {
	switch v := value.(type) {
	case map[string]any, []any:
		return v, nil
	case string:
		if !json.Valid([]byte(v)) {
			return nil, castErr(value, t, "expected valid JSON")
		}
		return v, nil
	default:
		return nil, castErr(value, t, "expected a JSON document, map, or list")
	}
}

func castBinary(value any) (any, error) {
	if b, ok := value.([]byte); ok {
		return b, nil
	}
	return nil, castErr(value, Scalar(KindBinary), "expected raw bytes")
}

func castArray(value any, t SemanticType, ctx Context) (any, error) {
	elem := Scalar(KindText)
	if t.Elem != nil {
		elem = *t.Elem
	}

	switch v := value.(type) {
	case []any:
		return castElements(v, elem, t, ctx)
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return castElements(items, elem, t, ctx)
	case string:
		if items, ok := parseBraceArray(v); ok {
			return castElements(items, elem, t, ctx)
		}
		var items []any
		if err := json.Unmarshal([]byte(v), &items); err != nil {
			return nil, castErr(value, t, `expected {a,b,c} array syntax or a JSON array`)
		}
		return castElements(items, elem, t, ctx)
	default:
		return nil, castErr(value, t, `expected a list, {a,b,c} array syntax, or a JSON array`)
	}
}

func castElements(items []any, elem, t SemanticType, ctx Context) (any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		cast, err := castBuiltin(item, elem, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = cast
	}
	return out, nil
}

// parseBraceArray handles the engine-native {a,b,c} array literal form.
// Nested braces are not supported; strings fall through to JSON parsing.
func parseBraceArray(s string) ([]any, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return nil, false
	}
	inner := trimmed[1 : len(trimmed)-1]
	if strings.ContainsAny(inner, "{}") {
		return nil, false
	}
	if strings.TrimSpace(inner) == "" {
		return []any{}, true
	}
	parts := strings.Split(inner, ",")
	items := make([]any, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `"`)
		items[i] = p
	}
	return items, true
}

func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
