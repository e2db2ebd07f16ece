package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/typhoonworks/lotus-sub001/pkg/engines"
)

// myTx adapts a database/sql transaction to the engines.Tx contract.
// database is the connection's current schema, used to qualify plan-derived
// relation names.
type myTx struct {
	tx       *sql.Tx
	database string
}

func (t *myTx) Query(ctx context.Context, sqlText string, args ...any) (*engines.Result, error) {
	rows, err := t.tx.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return engines.ScanRows(rows)
}

// PlanRelations runs EXPLAIN FORMAT=JSON and walks query_block / nested_loop
// / table structures for table names. MySQL's planner reports tables by the
// identifier used in the statement, which can be an alias and can be
// truncated for derived names, so plan-derived names resolve through an
// alias map scanned from the statement text, with a full text-scan fallback
// when the plan output is unusable.
func (t *myTx) PlanRelations(ctx context.Context, sqlText string, args []any) ([]engines.Relation, error) {
	var planJSON string
	if err := t.tx.QueryRowContext(ctx, "EXPLAIN FORMAT=JSON "+sqlText, args...).Scan(&planJSON); err != nil {
		return nil, err
	}
	names, err := tableNamesFromPlanJSON(planJSON)
	if err != nil {
		return nil, err
	}
	rels := resolvePlanNames(names, sqlText)
	// Unqualified names live in the connection's database; schema-level
	// rules only apply to a relation that carries its schema.
	for i := range rels {
		if rels[i].Schema == "" {
			rels[i].Schema = t.database
		}
	}
	return rels, nil
}

// tableNamesFromPlanJSON collects every "table_name" value anywhere in the
// plan document, which covers query_block, nested_loop, materialized
// subqueries, and union branches without enumerating each shape.
func tableNamesFromPlanJSON(planJSON string) ([]string, error) {
	var doc any
	if err := json.Unmarshal([]byte(planJSON), &doc); err != nil {
		return nil, fmt.Errorf("parse plan JSON: %w", err)
	}

	var names []string
	seen := make(map[string]bool)
	var walk func(node any)
	walk = func(node any) {
		switch n := node.(type) {
		case map[string]any:
			if name, ok := n["table_name"].(string); ok && name != "" && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
			for _, v := range n {
				walk(v)
			}
		case []any:
			for _, v := range n {
				walk(v)
			}
		}
	}
	walk(doc)
	return names, nil
}

// systemSchemas are the MySQL schemas for which the planner reports
// ambiguous identifiers; touching them forces the text fallback.
var systemSchemas = []string{"information_schema", "performance_schema", "mysql.", "sys."}

func resolvePlanNames(names []string, sqlText string) []engines.Relation {
	aliases := engines.AliasMap(sqlText)

	var rels []engines.Relation
	seen := make(map[engines.Relation]bool)
	allShort := true
	for _, name := range names {
		lower := strings.ToLower(name)
		if base, ok := aliases[lower]; ok {
			lower = base
		}
		if len(lower) > 2 {
			allShort = false
		}
		rel := engines.SplitRelation(lower)
		if !seen[rel] {
			seen[rel] = true
			rels = append(rels, rel)
		}
	}

	if len(rels) == 0 || allShort || touchesSystemSchema(sqlText) {
		return engines.ExtractRelations(sqlText)
	}
	return rels
}

func touchesSystemSchema(sqlText string) bool {
	lower := strings.ToLower(sqlText)
	for _, schema := range systemSchemas {
		if strings.Contains(lower, schema) {
			return true
		}
	}
	return false
}

var _ engines.Tx = (*myTx)(nil)
