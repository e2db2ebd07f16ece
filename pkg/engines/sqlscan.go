package engines

import (
	"regexp"
	"strings"
)

// Plan output for MySQL and SQLite reports tables by the name or alias that
// appears in the statement, so plan-derived relations have to be resolved
// back through the statement text. These helpers regex-scan FROM and JOIN
// clauses; they are heuristics, bounded on purpose.

var (
	fromListRegex = regexp.MustCompile(`(?i)\bfrom\s+([A-Za-z_][\w.]*(?:\s+(?:as\s+)?[A-Za-z_]\w*)?(?:\s*,\s*[A-Za-z_][\w.]*(?:\s+(?:as\s+)?[A-Za-z_]\w*)?)*)`)
	joinRegex     = regexp.MustCompile(`(?i)\bjoin\s+([A-Za-z_][\w.]*)(?:\s+(?:as\s+)?([A-Za-z_]\w*))?`)

	clauseKeywords = map[string]bool{
		"where": true, "join": true, "on": true, "left": true, "right": true,
		"inner": true, "outer": true, "cross": true, "full": true,
		"natural": true, "group": true, "order": true, "limit": true,
		"offset": true, "having": true, "union": true, "set": true,
		"using": true, "select": true, "as": true, "values": true,
	}
)

// tableRefs scans FROM and JOIN clauses for (table, alias) pairs,
// lower-cased. FROM clauses can carry a comma-separated list of tables, each
// with its own optional alias, so the clause is captured whole and split.
func tableRefs(sqlText string) [][2]string {
	var refs [][2]string
	add := func(table, alias string) {
		if table == "" || clauseKeywords[table] {
			return
		}
		if clauseKeywords[alias] {
			alias = ""
		}
		refs = append(refs, [2]string{table, alias})
	}
	for _, m := range fromListRegex.FindAllStringSubmatch(sqlText, -1) {
		for _, item := range strings.Split(strings.ToLower(m[1]), ",") {
			fields := strings.Fields(item)
			switch len(fields) {
			case 1:
				add(fields[0], "")
			case 2:
				add(fields[0], fields[1])
			case 3:
				add(fields[0], fields[2])
			}
		}
	}
	for _, m := range joinRegex.FindAllStringSubmatch(sqlText, -1) {
		add(strings.ToLower(m[1]), strings.ToLower(m[2]))
	}
	return refs
}

// AliasMap extracts an alias -> base table map from the statement's FROM and
// JOIN clauses. Keys and values are lower-cased.
func AliasMap(sqlText string) map[string]string {
	aliases := make(map[string]string)
	for _, ref := range tableRefs(sqlText) {
		if ref[1] != "" {
			aliases[ref[1]] = ref[0]
		}
	}
	return aliases
}

// ExtractRelations collects every relation named in FROM and JOIN clauses of
// the statement text. Qualified names split into (schema, table).
func ExtractRelations(sqlText string) []Relation {
	var rels []Relation
	seen := make(map[Relation]bool)
	for _, ref := range tableRefs(sqlText) {
		rel := SplitRelation(ref[0])
		if !seen[rel] {
			seen[rel] = true
			rels = append(rels, rel)
		}
	}
	return rels
}

// SplitRelation splits a possibly schema-qualified name into a Relation.
func SplitRelation(name string) Relation {
	if idx := strings.LastIndexByte(name, '.'); idx != -1 {
		return Relation{Schema: name[:idx], Table: name[idx+1:]}
	}
	return Relation{Table: name}
}
