package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/typhoonworks/lotus-sub001/pkg/engines"
)

// pgTx adapts a pgx transaction to the engines.Tx contract.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Query(ctx context.Context, sqlText string, args ...any) (*engines.Result, error) {
	rows, err := t.tx.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := &engines.Result{
		Columns: make([]string, len(fields)),
		Rows:    make([][]any, 0),
	}
	for i, fd := range fields {
		result.Columns[i] = string(fd.Name)
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		row := make([]any, len(values))
		copy(row, values)
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result.NumRows = len(result.Rows)
	result.Command = rows.CommandTag().String()
	return result, nil
}

// PlanRelations wraps the statement in EXPLAIN (VERBOSE, FORMAT JSON) and
// recursively walks the plan tree, collecting every node that carries both a
// schema and a relation name. The caller's statement is never executed.
func (t *pgTx) PlanRelations(ctx context.Context, sqlText string, args []any) ([]engines.Relation, error) {
	var planJSON string
	explain := "EXPLAIN (VERBOSE, FORMAT JSON) " + sqlText
	if err := t.tx.QueryRow(ctx, explain, args...).Scan(&planJSON); err != nil {
		return nil, err
	}
	return relationsFromPlanJSON(planJSON)
}

// relationsFromPlanJSON parses EXPLAIN (FORMAT JSON) output. The top level is
// an array of {"Plan": {...}} objects; nested plans live under "Plans".
func relationsFromPlanJSON(planJSON string) ([]engines.Relation, error) {
	var wrappers []map[string]any
	if err := json.Unmarshal([]byte(planJSON), &wrappers); err != nil {
		return nil, fmt.Errorf("parse plan JSON: %w", err)
	}

	var rels []engines.Relation
	seen := make(map[engines.Relation]bool)
	var walk func(node map[string]any)
	walk = func(node map[string]any) {
		schema, hasSchema := node["Schema"].(string)
		table, hasTable := node["Relation Name"].(string)
		if hasSchema && hasTable {
			rel := engines.Relation{Schema: schema, Table: table}
			if !seen[rel] {
				seen[rel] = true
				rels = append(rels, rel)
			}
		}
		if children, ok := node["Plans"].([]any); ok {
			for _, child := range children {
				if childNode, ok := child.(map[string]any); ok {
					walk(childNode)
				}
			}
		}
	}

	for _, wrapper := range wrappers {
		if plan, ok := wrapper["Plan"].(map[string]any); ok {
			walk(plan)
		}
	}
	return rels, nil
}

var _ engines.Tx = (*pgTx)(nil)
