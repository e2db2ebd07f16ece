package mysql

import (
	"context"
	"fmt"

	"github.com/typhoonworks/lotus-sub001/pkg/engines"
)

// ListSchemas returns all non-system schemas.
func (e *Engine) ListSchemas(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
		ORDER BY schema_name`)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan schema name: %w", err)
		}
		schemas = append(schemas, name)
	}
	return schemas, rows.Err()
}

// ListTables returns tables and views in a schema, defaulting to the
// configured database.
func (e *Engine) ListTables(ctx context.Context, schema string) ([]engines.Relation, error) {
	if schema == "" {
		schema = e.cfg.Database
	}
	rows, err := e.db.QueryContext(ctx, `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		  AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables in %s: %w", schema, err)
	}
	defer rows.Close()

	var rels []engines.Relation
	for rows.Next() {
		var rel engines.Relation
		if err := rows.Scan(&rel.Schema, &rel.Table); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

// GetTableSchema returns the columns of a table. COLUMN_TYPE is used rather
// than DATA_TYPE because the UUID and boolean storage conventions
// (char(36), binary(16), tinyint(1)) only show in the sized form.
func (e *Engine) GetTableSchema(ctx context.Context, schema, table string) ([]engines.ColumnInfo, error) {
	if schema == "" {
		schema = e.cfg.Database
	}
	rows, err := e.db.QueryContext(ctx, `
		SELECT column_name, column_type, is_nullable = 'YES', column_key = 'PRI'
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("describe %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	var columns []engines.ColumnInfo
	for rows.Next() {
		var col engines.ColumnInfo
		if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable, &col.Primary); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// ResolveTableSchema prefers the configured database, then any schema that
// contains the table.
func (e *Engine) ResolveTableSchema(ctx context.Context, table string) (string, error) {
	var schema string
	err := e.db.QueryRowContext(ctx, `
		SELECT table_schema
		FROM information_schema.tables
		WHERE table_name = ?
		ORDER BY table_schema = DATABASE() DESC
		LIMIT 1`, table).Scan(&schema)
	if err != nil {
		return "", fmt.Errorf("resolve schema for %s: %w", table, err)
	}
	return schema, nil
}
