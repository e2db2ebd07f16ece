package sqlite

import (
	"context"
	"fmt"

	"github.com/typhoonworks/lotus-sub001/pkg/engines"
)

// ListSchemas returns nil; SQLite relations carry no schema.
func (e *Engine) ListSchemas(_ context.Context) ([]string, error) {
	return nil, nil
}

// ListTables lists user tables and views from sqlite_master.
func (e *Engine) ListTables(ctx context.Context, _ string) ([]engines.Relation, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type IN ('table', 'view')
		  AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []engines.Relation
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, engines.Relation{Table: name})
	}
	return tables, rows.Err()
}

// GetTableSchema reads column metadata via PRAGMA table_info.
func (e *Engine) GetTableSchema(ctx context.Context, _ string, table string) ([]engines.ColumnInfo, error) {
	rows, err := e.db.QueryContext(ctx, "SELECT name, type, \"notnull\", pk FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("table info for %s: %w", table, err)
	}
	defer rows.Close()

	var columns []engines.ColumnInfo
	for rows.Next() {
		var name, dataType string
		var notNull, pk int
		if err := rows.Scan(&name, &dataType, &notNull, &pk); err != nil {
			return nil, fmt.Errorf("scan column info: %w", err)
		}
		columns = append(columns, engines.ColumnInfo{
			Name:     name,
			DataType: dataType,
			Nullable: notNull == 0,
			Primary:  pk > 0,
		})
	}
	return columns, rows.Err()
}

// ResolveTableSchema returns the empty schema for every table.
func (e *Engine) ResolveTableSchema(_ context.Context, _ string) (string, error) {
	return "", nil
}
