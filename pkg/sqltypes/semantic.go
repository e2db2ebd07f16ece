// Package sqltypes normalizes engine-native column types into a closed set of
// semantic types and converts raw values into engine-native representations.
package sqltypes

import "strings"

// Kind identifies one semantic type in the closed set.
type Kind string

const (
	KindUUID      Kind = "uuid"
	KindInteger   Kind = "integer"
	KindFloat     Kind = "float"
	KindDecimal   Kind = "decimal"
	KindBoolean   Kind = "boolean"
	KindDate      Kind = "date"
	KindTime      Kind = "time"
	KindDatetime  Kind = "datetime"
	KindJSON      Kind = "json"
	KindBinary    Kind = "binary"
	KindText      Kind = "text"
	KindEnum      Kind = "enum"
	KindComposite Kind = "composite"
	KindArray     Kind = "array"
)

// SemanticType is an engine-agnostic column type. The zero value means
// "untyped": no cast is applied and placeholders carry no type annotation.
type SemanticType struct {
	Kind Kind
	Elem *SemanticType // element type, set only when Kind == KindArray
}

// Scalar returns the semantic type for a scalar kind.
func Scalar(k Kind) SemanticType {
	return SemanticType{Kind: k}
}

// Array returns the semantic type for an array of elem.
func Array(elem SemanticType) SemanticType {
	return SemanticType{Kind: KindArray, Elem: &elem}
}

// IsZero reports whether the type is the untyped zero value.
func (t SemanticType) IsZero() bool {
	return t.Kind == ""
}

// IsArray reports whether the type is an array type.
func (t SemanticType) IsArray() bool {
	return t.Kind == KindArray
}

// IsText reports whether the type is plain text.
func (t SemanticType) IsText() bool {
	return t.Kind == KindText
}

// Equal compares two semantic types, including array element types.
func (t SemanticType) Equal(o SemanticType) bool {
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind != KindArray {
		return true
	}
	if t.Elem == nil || o.Elem == nil {
		return t.Elem == o.Elem
	}
	return t.Elem.Equal(*o.Elem)
}

func (t SemanticType) String() string {
	if t.Kind == KindArray {
		if t.Elem == nil {
			return "array"
		}
		return t.Elem.String() + "[]"
	}
	return string(t.Kind)
}

var scalarKinds = map[Kind]bool{
	KindUUID: true, KindInteger: true, KindFloat: true, KindDecimal: true,
	KindBoolean: true, KindDate: true, KindTime: true, KindDatetime: true,
	KindJSON: true, KindBinary: true, KindText: true, KindEnum: true,
	KindComposite: true,
}

// manualAliases maps the type names stored-variable metadata uses to the
// semantic kinds they mean.
var manualAliases = map[string]Kind{
	"number":    KindInteger,
	"int":       KindInteger,
	"bool":      KindBoolean,
	"string":    KindText,
	"timestamp": KindDatetime,
}

// Parse interprets a stored manual type string ("integer", "uuid",
// "integer[]") as a semantic type. The second result is false for strings
// outside the closed set and its aliases.
func Parse(s string) (SemanticType, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if base, ok := strings.CutSuffix(s, "[]"); ok {
		elem, valid := Parse(base)
		if !valid {
			return SemanticType{}, false
		}
		return Array(elem), true
	}
	k := Kind(s)
	if alias, ok := manualAliases[s]; ok {
		k = alias
	}
	if !scalarKinds[k] {
		return SemanticType{}, false
	}
	return Scalar(k), true
}
