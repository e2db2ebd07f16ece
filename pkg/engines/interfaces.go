// Package engines defines the capability interface each supported database
// engine implements, a static registry keyed by engine identifier, and the
// normalized result types the rest of the pipeline consumes.
package engines

import (
	"context"
	"time"

	"github.com/typhoonworks/lotus-sub001/pkg/sqltypes"
)

// Relation identifies a queryable object in an engine's catalog. Schema is
// empty for schema-less engines.
type Relation struct {
	Schema string
	Table  string
}

func (r Relation) String() string {
	if r.Schema == "" {
		return r.Table
	}
	return r.Schema + "." + r.Table
}

// Session holds per-execution settings scoped strictly to one transaction.
// They are never persisted and never shared across concurrent executions on
// the same pooled connection.
type Session struct {
	ReadOnly         bool
	StatementTimeout time.Duration
	SearchPath       string
	Timeout          time.Duration
}

// ColumnInfo describes one column of a catalog table.
type ColumnInfo struct {
	Name     string
	DataType string // engine-native type string, input to sqltypes.MapType
	Nullable bool
	Primary  bool
}

// Result is the normalized tabular outcome of one statement.
type Result struct {
	Columns    []string
	Rows       [][]any
	NumRows    int
	DurationMs int64
	Command    string
	Meta       map[string]any
}

// Tx is the handle passed to the function executing inside a transaction.
// PlanRelations runs the engine's EXPLAIN variant against the statement and
// reports every relation it would touch; it never executes the statement.
type Tx interface {
	Query(ctx context.Context, sqlText string, args ...any) (*Result, error)
	PlanRelations(ctx context.Context, sqlText string, args []any) ([]Relation, error)
}

// Engine is the per-engine capability contract.
//
// ExecuteInTransaction opens a transaction, applies the session settings
// (read-only mode, statement timeout, search path) with transaction-local
// scope, runs fn, and restores session state on every exit path so pooled
// connections are never handed back polluted.
//
// BuiltinDenies and BuiltinSchemaDenies return visibility rule patterns
// (exact names, or regexes prefixed with '~') for system relations and
// schemas that are always hidden.
type Engine interface {
	ID() string

	ExecuteInTransaction(ctx context.Context, session Session, fn func(ctx context.Context, tx Tx) error) error

	// ParamPlaceholder returns the engine's positional placeholder syntax
	// for the given 1-based index, optionally annotated with a cast for the
	// semantic type.
	ParamPlaceholder(index int, name string, t sqltypes.SemanticType) string

	BuiltinDenies() []string
	BuiltinSchemaDenies() []string
	DefaultSchemas() []string

	ListSchemas(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, schema string) ([]Relation, error)
	GetTableSchema(ctx context.Context, schema, table string) ([]ColumnInfo, error)
	// ResolveTableSchema returns the schema a bare table name resolves to,
	// honoring the engine's search order. Schema-less engines return "".
	ResolveTableSchema(ctx context.Context, table string) (string, error)

	Close() error
}
