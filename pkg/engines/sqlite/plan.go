package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/typhoonworks/lotus-sub001/pkg/engines"
)

type liteTx struct {
	tx *sql.Tx
}

func (t *liteTx) Query(ctx context.Context, sqlText string, args ...any) (*engines.Result, error) {
	rows, err := t.tx.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return engines.ScanRows(rows)
}

// scanSearchRegex pulls the relation name out of EXPLAIN QUERY PLAN detail
// lines such as "SCAN users" or "SEARCH orders USING INDEX ...". Older
// SQLite versions prefix the name with "TABLE".
var scanSearchRegex = regexp.MustCompile(`(?i)\b(?:SCAN|SEARCH)\s+(?:TABLE\s+)?([A-Za-z_][A-Za-z0-9_]*)(?:\s+AS\s+([A-Za-z_][A-Za-z0-9_]*))?`)

// PlanRelations runs EXPLAIN QUERY PLAN and collects every table the plan
// scans or searches. Plan output reports aliases verbatim in some builds, so
// names are resolved against the statement's FROM/JOIN clauses.
func (t *liteTx) PlanRelations(ctx context.Context, sqlText string, args []any) ([]engines.Relation, error) {
	rows, err := t.tx.QueryContext(ctx, "EXPLAIN QUERY PLAN "+sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []string
	for rows.Next() {
		var id, parent, notused int
		var detail string
		if err := rows.Scan(&id, &parent, &notused, &detail); err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		details = append(details, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read plan rows: %w", err)
	}

	aliases := engines.AliasMap(sqlText)
	seen := make(map[string]struct{})
	var relations []engines.Relation
	add := func(name string) {
		if name == "" {
			return
		}
		if resolved, ok := aliases[strings.ToLower(name)]; ok {
			name = resolved
		}
		name = engines.SplitRelation(name).Table
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		relations = append(relations, engines.Relation{Table: name})
	}
	for _, detail := range details {
		for _, m := range scanSearchRegex.FindAllStringSubmatch(detail, -1) {
			add(m[1])
		}
	}

	if len(relations) == 0 {
		// Trivial plans (constant selects against sqlite_master views, or
		// subquery-flattened statements) can come back empty; fall back to
		// the statement text.
		for _, rel := range engines.ExtractRelations(sqlText) {
			add(rel.Table)
		}
	}
	return relations, nil
}

var _ engines.Tx = (*liteTx)(nil)
