package postgres

import (
	"context"
	"fmt"

	"github.com/typhoonworks/lotus-sub001/pkg/engines"
)

// ListSchemas returns all non-system schemas.
func (e *Engine) ListSchemas(ctx context.Context) ([]string, error) {
	rows, err := e.pool.Query(ctx, `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema')
		  AND schema_name NOT LIKE 'pg_toast%'
		  AND schema_name NOT LIKE 'pg_temp%'
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

// ListTables returns tables and views in a schema.
func (e *Engine) ListTables(ctx context.Context, schema string) ([]engines.Relation, error) {
	if schema == "" {
		schema = "public"
	}
	rows, err := e.pool.Query(ctx, `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema = $1
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

// GetTableSchema returns the columns of a table, with native type strings
// shaped for sqltypes.MapType ("integer", "uuid", "integer[]").
func (e *Engine) GetTableSchema(ctx context.Context, schema, table string) ([]engines.ColumnInfo, error) {
	if schema == "" {
		schema = "public"
	}
	rows, err := e.pool.Query(ctx, `
		SELECT
			c.column_name,
			CASE
				WHEN c.data_type = 'ARRAY' THEN COALESCE(et.data_type, ltrim(c.udt_name, '_')) || '[]'
				ELSE c.data_type
			END AS data_type,
			c.is_nullable = 'YES',
			COALESCE(pk.is_primary, false)
		FROM information_schema.columns c
		LEFT JOIN information_schema.element_types et
			ON et.object_schema = c.table_schema
			AND et.object_name = c.table_name
			AND et.collection_type_identifier = c.dtd_identifier
		LEFT JOIN (
			SELECT kcu.column_name, true AS is_primary
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON kcu.constraint_name = tc.constraint_name
				AND kcu.table_schema = tc.table_schema
			WHERE tc.table_schema = $1
			  AND tc.table_name = $2
			  AND tc.constraint_type = 'PRIMARY KEY'
		) pk ON pk.column_name = c.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`, schema, table)
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

// ResolveTableSchema returns the schema a bare table name resolves to under
// the connection's search path.
func (e *Engine) ResolveTableSchema(ctx context.Context, table string) (string, error) {
	var schema string
	err := e.pool.QueryRow(ctx, `
		SELECT n.nspname
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relname = $1 AND pg_table_is_visible(c.oid)
		LIMIT 1`, table).Scan(&schema)
	if err != nil {
		return "", fmt.Errorf("resolve schema for %s: %w", table, err)
	}
	return schema, nil
}
