// Package visibility evaluates schema, table, and column access rules
// against the relations a statement touches. Rules come from the host's
// configuration plus per-engine built-in deny lists; deny always wins.
package visibility

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/typhoonworks/lotus-sub001/pkg/engines"
)

// Builtins is the slice of the engine contract the rule evaluation needs:
// the fixed deny patterns for system relations and schemas.
type Builtins interface {
	BuiltinDenies() []string
	BuiltinSchemaDenies() []string
}

// matcher matches a single name part, either exactly or, when the pattern
// starts with '~', by regex.
type matcher struct {
	exact string
	re    *regexp.Regexp
}

func newMatcher(pattern string) (matcher, error) {
	if strings.HasPrefix(pattern, "~") {
		re, err := regexp.Compile(pattern[1:])
		if err != nil {
			return matcher{}, fmt.Errorf("invalid rule pattern %q: %w", pattern, err)
		}
		return matcher{re: re}, nil
	}
	return matcher{exact: pattern}, nil
}

func (m matcher) match(s string) bool {
	if m.re != nil {
		return m.re.MatchString(s)
	}
	return m.exact == s
}

// tablePattern is one table-level rule. A bare-string rule matches its table
// part in any schema; a tuple rule pins the schema part, and a tuple whose
// schema pattern is empty matches only relations with an empty schema, so a
// rule written for a schema-less engine never bleeds into another engine's
// namespaces.
type tablePattern struct {
	schemaAny bool
	schema    matcher
	table     matcher
}

func (p tablePattern) matches(rel engines.Relation) bool {
	if !p.schemaAny && !p.schema.match(rel.Schema) {
		return false
	}
	return p.table.match(rel.Table)
}

// appliesToSchema reports whether this rule participates in the allow
// posture for relations in the given schema.
func (p tablePattern) appliesToSchema(schema string) bool {
	return p.schemaAny || p.schema.match(schema)
}

// Action is the resolved access decision for a column.
type Action string

const (
	ActionAllow Action = "allow"
	ActionOmit  Action = "omit"
	ActionMask  Action = "mask"
	ActionError Action = "error"
)

// ColumnPolicy is the normalized outcome of column rule evaluation.
// ShowInSchema controls whether the column appears in catalog browsing.
type ColumnPolicy struct {
	Action       Action
	Mask         string
	ShowInSchema bool
}

// columnRule is one column-level rule at one of three precedence levels:
// schema+table+column, table+column, or column only.
type columnRule struct {
	hasSchema bool
	hasTable  bool
	schema    matcher
	table     matcher
	column    matcher

	action       Action
	mask         string
	showInSchema *bool
}

func (r columnRule) policy() *ColumnPolicy {
	p := &ColumnPolicy{Action: r.action, Mask: r.mask, ShowInSchema: true}
	if p.Action == "" {
		p.Action = ActionAllow
	}
	if r.showInSchema != nil {
		p.ShowInSchema = *r.showInSchema
	}
	return p
}

// Rules is the compiled rule set for one target database.
type Rules struct {
	schemaAllow []matcher
	schemaDeny  []matcher
	tableAllow  []tablePattern
	tableDeny   []tablePattern
	columns     []columnRule
}

// compilePatterns turns engine-supplied builtin patterns into matchers. The
// patterns are fixed per-engine constants; a malformed one is treated as an
// exact name rather than silently dropped.
func compilePatterns(patterns []string) []matcher {
	out := make([]matcher, 0, len(patterns))
	for _, p := range patterns {
		m, err := newMatcher(p)
		if err != nil {
			m = matcher{exact: p}
		}
		out = append(out, m)
	}
	return out
}
