package visibility

import (
	"github.com/typhoonworks/lotus-sub001/pkg/engines"
)

// SchemaAllowed reports whether a schema is visible. The schema passes when
// it matches an allow rule (or no schema allow rules exist at all) and does
// not match any user or builtin deny rule.
func (r *Rules) SchemaAllowed(builtins Builtins, schema string) bool {
	for _, m := range compilePatterns(builtins.BuiltinSchemaDenies()) {
		if m.match(schema) {
			return false
		}
	}
	for _, m := range r.schemaDeny {
		if m.match(schema) {
			return false
		}
	}
	if len(r.schemaAllow) == 0 {
		return true
	}
	for _, m := range r.schemaAllow {
		if m.match(schema) {
			return true
		}
	}
	return false
}

// RelationAllowed reports whether a relation is visible. A denied schema
// denies every relation in it regardless of table-level allow rules, and
// deny rules win over allow rules. The allow posture is schema-scoped: a
// relation only needs to match an allow rule when some allow rule applies to
// its schema (a bare rule, or a tuple rule naming that schema).
func (r *Rules) RelationAllowed(builtins Builtins, rel engines.Relation) bool {
	if rel.Schema != "" && !r.SchemaAllowed(builtins, rel.Schema) {
		return false
	}
	for _, m := range compilePatterns(builtins.BuiltinDenies()) {
		if m.match(rel.Table) {
			return false
		}
	}
	for _, p := range r.tableDeny {
		if p.matches(rel) {
			return false
		}
	}
	postured := false
	for _, p := range r.tableAllow {
		if !p.appliesToSchema(rel.Schema) {
			continue
		}
		postured = true
		if p.matches(rel) {
			return true
		}
	}
	return !postured
}

// ColumnPolicy resolves the access policy for a column given the relations
// the statement touched. Rules are tried at three precedence levels, most
// specific first: schema+table+column, then table+column, then column only.
// The first match wins; no match returns nil, meaning allow unmasked.
func (r *Rules) ColumnPolicy(touched []engines.Relation, column string) *ColumnPolicy {
	for _, rule := range r.columns {
		if !rule.hasSchema || !rule.hasTable {
			continue
		}
		for _, rel := range touched {
			if rule.schema.match(rel.Schema) && rule.table.match(rel.Table) && rule.column.match(column) {
				return rule.policy()
			}
		}
	}
	for _, rule := range r.columns {
		if rule.hasSchema || !rule.hasTable {
			continue
		}
		for _, rel := range touched {
			if rule.table.match(rel.Table) && rule.column.match(column) {
				return rule.policy()
			}
		}
	}
	for _, rule := range r.columns {
		if rule.hasSchema || rule.hasTable {
			continue
		}
		if rule.column.match(column) {
			return rule.policy()
		}
	}
	return nil
}

// VisibleColumns filters catalog columns for schema browsing. A column is
// dropped when its policy omits it or sets show_in_schema to false.
func (r *Rules) VisibleColumns(rel engines.Relation, columns []engines.ColumnInfo) []engines.ColumnInfo {
	visible := make([]engines.ColumnInfo, 0, len(columns))
	for _, col := range columns {
		p := r.ColumnPolicy([]engines.Relation{rel}, col.Name)
		if p != nil && (p.Action == ActionOmit || !p.ShowInSchema) {
			continue
		}
		visible = append(visible, col)
	}
	return visible
}

// BlockedRelations filters a relation list down to those the rules deny.
func (r *Rules) BlockedRelations(builtins Builtins, rels []engines.Relation) []engines.Relation {
	var blocked []engines.Relation
	for _, rel := range rels {
		if !r.RelationAllowed(builtins, rel) {
			blocked = append(blocked, rel)
		}
	}
	return blocked
}
