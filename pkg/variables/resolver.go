// Package variables discovers which {{variable}} occurrences in a SQL
// statement bind to which table.column, using targeted regex heuristics over
// a normalized copy of the statement.
//
// This is deliberately not a SQL parser. Known blind spots, accepted as
// limitations: implicit bindings in multi-table statements resolve to the
// first FROM table, derived-table aliases are ignored, and columns referenced
// through deep CTEs or nested subqueries may come back unbound.
package variables

import (
	"regexp"
	"strings"

	"github.com/typhoonworks/lotus-sub001/pkg/sqltemplate"
)

// Binding connects one variable name to the table.column it compares
// against. Column is empty when the variable appears outside any
// recognizable comparison (SELECT list, VALUES clause), meaning no automatic
// type can be inferred for it.
type Binding struct {
	Variable string
	Table    string
	Column   string
	Explicit bool
}

var (
	lineCommentRegex  = regexp.MustCompile(`--[^\n]*`)
	blockCommentRegex = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespaceRegex   = regexp.MustCompile(`\s+`)

	fromClauseRegex = regexp.MustCompile(`\bfrom\s+([a-z_][\w.]*(?:\s+(?:as\s+)?[a-z_]\w*)?(?:\s*,\s*[a-z_][\w.]*(?:\s+(?:as\s+)?[a-z_]\w*)?)*)`)
	joinClauseRegex = regexp.MustCompile(`\bjoin\s+([a-z_][\w.]*)(?:\s+(?:as\s+)?([a-z_]\w*))?`)

	comparison = `\s*(?:<=|>=|<>|!=|=|<|>|\b(?:ilike|like|in)\b)\s*\(?\s*`

	explicitRegex = regexp.MustCompile(`([a-z_]\w*)\.([a-z_]\w*)` + comparison + `\{\{([a-z_]\w*)\}\}`)
	implicitRegex = regexp.MustCompile(`(?:^|[^.\w])([a-z_]\w*)` + comparison + `\{\{([a-z_]\w*)\}\}`)
)

// reservedWords are tokens that can follow a table name in a FROM clause but
// are never aliases.
var reservedWords = map[string]bool{
	"where": true, "join": true, "on": true, "left": true, "right": true,
	"inner": true, "outer": true, "cross": true, "full": true, "natural": true,
	"group": true, "order": true, "limit": true, "offset": true, "having": true,
	"union": true, "intersect": true, "except": true, "set": true, "using": true,
	"values": true, "select": true, "as": true, "and": true, "or": true,
	"not": true, "in": true, "like": true, "ilike": true,
}

// ResolveBindings heuristically binds every {{variable}} in the statement to
// a table and column. Explicit (qualified) comparisons win over implicit
// ones, which win over unbound occurrences; the result is deduplicated by
// variable name in order of first appearance.
func ResolveBindings(sqlText string) []Binding {
	normalized := normalize(sqlText)
	aliases, primary := tableAliases(normalized)

	resolved := make(map[string]Binding)

	// Explicit pass: alias_or_table.column <op> {{var}}.
	for _, m := range explicitRegex.FindAllStringSubmatch(normalized, -1) {
		qualifier, column, variable := m[1], m[2], m[3]
		table := qualifier
		if base, ok := aliases[qualifier]; ok {
			table = base
		}
		if _, ok := resolved[variable]; !ok {
			resolved[variable] = Binding{Variable: variable, Table: table, Column: column, Explicit: true}
		}
	}

	// Implicit pass: bare column <op> {{var}}, bound to the first FROM table.
	for _, m := range implicitRegex.FindAllStringSubmatch(normalized, -1) {
		column, variable := m[1], m[2]
		if reservedWords[column] {
			continue
		}
		if _, ok := resolved[variable]; !ok {
			resolved[variable] = Binding{Variable: variable, Table: primary, Column: column}
		}
	}

	// Unbound pass: everything left gets no column and therefore no
	// automatic type.
	var bindings []Binding
	for _, name := range sqltemplate.ExtractVariables(normalized) {
		if b, ok := resolved[name]; ok {
			bindings = append(bindings, b)
			continue
		}
		bindings = append(bindings, Binding{Variable: name, Table: primary})
	}
	return bindings
}

func normalize(sqlText string) string {
	s := lineCommentRegex.ReplaceAllString(sqlText, " ")
	s = blockCommentRegex.ReplaceAllString(s, " ")
	s = strings.ToLower(s)
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// tableAliases extracts "table [AS] alias" pairs from FROM and JOIN clauses
// of an already-normalized statement, plus the first FROM table. Derived
// tables ("FROM (SELECT ...)") contribute nothing.
func tableAliases(normalized string) (map[string]string, string) {
	aliases := make(map[string]string)
	primary := ""

	record := func(table, alias string) {
		if primary == "" {
			primary = table
		}
		if alias != "" && !reservedWords[alias] {
			aliases[alias] = table
		}
	}

	for _, m := range fromClauseRegex.FindAllStringSubmatch(normalized, -1) {
		for _, item := range strings.Split(m[1], ",") {
			fields := strings.Fields(strings.TrimSpace(item))
			if len(fields) == 0 {
				continue
			}
			table := fields[0]
			alias := ""
			switch {
			case len(fields) >= 3 && fields[1] == "as":
				alias = fields[2]
			case len(fields) >= 2 && fields[1] != "as":
				alias = fields[1]
			}
			if reservedWords[table] {
				continue
			}
			if reservedWords[alias] {
				alias = ""
			}
			record(table, alias)
		}
	}

	for _, m := range joinClauseRegex.FindAllStringSubmatch(normalized, -1) {
		table, alias := m[1], m[2]
		if reservedWords[table] {
			continue
		}
		if primary == "" {
			// A JOIN before any FROM never happens in valid SQL; keep the
			// FROM table as primary regardless.
			primary = table
		}
		if alias != "" && !reservedWords[alias] {
			aliases[alias] = table
		}
	}

	return aliases, primary
}
