package executor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/typhoonworks/lotus-sub001/pkg/apperrors"
	"github.com/typhoonworks/lotus-sub001/pkg/cache"
	"github.com/typhoonworks/lotus-sub001/pkg/engines"
	"github.com/typhoonworks/lotus-sub001/pkg/sqltypes"
	"github.com/typhoonworks/lotus-sub001/pkg/visibility"
)

// fakeTx records the statement the executor actually ran.
type fakeTx struct {
	planRels    []engines.Relation
	planErr     error
	executedSQL string
	executed    bool
	args        []any
}

func (f *fakeTx) Query(_ context.Context, sqlText string, args ...any) (*engines.Result, error) {
	f.executed = true
	f.executedSQL = sqlText
	f.args = args
	return &engines.Result{
		Columns: []string{"id"},
		Rows:    [][]any{{int64(1)}},
		NumRows: 1,
		Command: "SELECT 1",
	}, nil
}

func (f *fakeTx) PlanRelations(_ context.Context, _ string, _ []any) ([]engines.Relation, error) {
	return f.planRels, f.planErr
}

// fakeEngine is a scriptable engine: placeholder style, catalog contents,
// and the relations preflight will report.
type fakeEngine struct {
	id          string
	positional  bool // $N when true, ? otherwise
	catalog     map[string][]engines.ColumnInfo
	tx          *fakeTx
	lastSession engines.Session
	txCount     int
}

func (f *fakeEngine) ID() string { return f.id }

func (f *fakeEngine) ExecuteInTransaction(ctx context.Context, session engines.Session, fn func(ctx context.Context, tx engines.Tx) error) error {
	f.lastSession = session
	f.txCount++
	return fn(ctx, f.tx)
}

func (f *fakeEngine) ParamPlaceholder(index int, _ string, _ sqltypes.SemanticType) string {
	if f.positional {
		return fmt.Sprintf("$%d", index)
	}
	return "?"
}

func (f *fakeEngine) BuiltinDenies() []string       { return nil }
func (f *fakeEngine) BuiltinSchemaDenies() []string { return nil }
func (f *fakeEngine) DefaultSchemas() []string      { return nil }

func (f *fakeEngine) ListSchemas(context.Context) ([]string, error) { return nil, nil }
func (f *fakeEngine) ListTables(context.Context, string) ([]engines.Relation, error) {
	return nil, nil
}

func (f *fakeEngine) GetTableSchema(_ context.Context, _, table string) ([]engines.ColumnInfo, error) {
	cols, ok := f.catalog[table]
	if !ok {
		return nil, fmt.Errorf("no such table %s", table)
	}
	return cols, nil
}

func (f *fakeEngine) ResolveTableSchema(context.Context, string) (string, error) { return "", nil }
func (f *fakeEngine) Close() error                                               { return nil }

func newFakeEngine(id string, positional bool) *fakeEngine {
	return &fakeEngine{
		id:         id,
		positional: positional,
		tx:         &fakeTx{planRels: []engines.Relation{{Table: "users"}}},
		catalog: map[string][]engines.ColumnInfo{
			"users": {
				{Name: "id", DataType: "integer", Primary: true},
				{Name: "age", DataType: "integer"},
				{Name: "name", DataType: "text"},
			},
		},
	}
}

func newExecutor(eng *fakeEngine, rules *visibility.Rules, opts ...Option) *Executor {
	if rules == nil {
		rules = &visibility.Rules{}
	}
	return New(eng, rules, zap.NewNop(), opts...)
}

func TestExecutePositionalPlaceholders(t *testing.T) {
	eng := newFakeEngine("postgres", true)
	exec := newExecutor(eng, nil)

	def := "30"
	result, err := exec.Execute(context.Background(), Request{
		SQL: "SELECT * FROM users WHERE age > {{min_age}}",
		Variables: []VariableSpec{
			{Name: "min_age", Type: "number", Default: &def},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM users WHERE age > $1", eng.tx.executedSQL)
	assert.Equal(t, []any{int64(30)}, eng.tx.args)
	assert.Equal(t, 1, result.NumRows)
	assert.Equal(t, "postgres", result.Meta["engine"])
}

func TestExecuteQuestionMarkPlaceholders(t *testing.T) {
	eng := newFakeEngine("sqlite", false)
	exec := newExecutor(eng, nil)

	def := "30"
	_, err := exec.Execute(context.Background(), Request{
		SQL: "SELECT * FROM users WHERE age > {{min_age}}",
		Variables: []VariableSpec{
			{Name: "min_age", Type: "number", Default: &def},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM users WHERE age > ?", eng.tx.executedSQL)
	assert.Equal(t, []any{int64(30)}, eng.tx.args)
}

func TestExecuteRepeatedVariable(t *testing.T) {
	eng := newFakeEngine("postgres", true)
	exec := newExecutor(eng, nil)

	_, err := exec.Execute(context.Background(), Request{
		SQL:    "SELECT * FROM users WHERE name = {{n}} OR nick = {{n}}",
		Values: map[string]string{"n": "Jack"},
	})
	require.NoError(t, err)

	// Each occurrence gets its own position, both carrying the same value.
	assert.Equal(t, "SELECT * FROM users WHERE name = $1 OR nick = $2", eng.tx.executedSQL)
	assert.Equal(t, []any{"Jack", "Jack"}, eng.tx.args)
}

func TestExecuteSuppliedValueBeatsDefault(t *testing.T) {
	eng := newFakeEngine("postgres", true)
	exec := newExecutor(eng, nil)

	def := "30"
	_, err := exec.Execute(context.Background(), Request{
		SQL: "SELECT * FROM users WHERE age > {{min_age}}",
		Variables: []VariableSpec{
			{Name: "min_age", Type: "number", Default: &def},
		},
		Values: map[string]string{"min_age": "65"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(65)}, eng.tx.args)
}

func TestExecuteDetectedColumnTypeBeatsManual(t *testing.T) {
	eng := newFakeEngine("postgres", true)
	exec := newExecutor(eng, nil)

	// The catalog says users.age is integer; the stored metadata claiming
	// text loses to the detected type.
	_, err := exec.Execute(context.Background(), Request{
		SQL: "SELECT * FROM users WHERE age > {{min_age}}",
		Variables: []VariableSpec{
			{Name: "min_age", Type: "text"},
		},
		Values: map[string]string{"min_age": "30"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(30)}, eng.tx.args)
}

func TestExecuteMissingVariable(t *testing.T) {
	eng := newFakeEngine("postgres", true)
	exec := newExecutor(eng, nil)

	_, err := exec.Execute(context.Background(), Request{
		SQL: "SELECT * FROM users WHERE age > {{min_age}}",
	})
	require.Error(t, err)

	var validationErr *apperrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, err.Error(), "min_age")
	assert.False(t, eng.tx.executed)
}

func TestExecuteCastFailure(t *testing.T) {
	eng := newFakeEngine("postgres", true)
	exec := newExecutor(eng, nil)

	_, err := exec.Execute(context.Background(), Request{
		SQL:    "SELECT * FROM users WHERE age > {{min_age}}",
		Values: map[string]string{"min_age": "thirty"},
	})
	require.Error(t, err)

	var castErr *apperrors.CastError
	require.ErrorAs(t, err, &castErr)
	assert.Contains(t, err.Error(), "thirty")
	assert.False(t, eng.tx.executed)
}

func TestExecutePreflightDenialBlocksExecution(t *testing.T) {
	eng := newFakeEngine("postgres", true)
	eng.tx.planRels = []engines.Relation{{Schema: "public", Table: "secrets"}}

	rules, err := visibility.ParseRules([]byte(`
table_visibility:
  deny: [secrets]
`))
	require.NoError(t, err)
	exec := newExecutor(eng, rules)

	_, err = exec.Execute(context.Background(), Request{
		SQL: "SELECT * FROM secrets",
	})
	require.Error(t, err)

	var visErr *apperrors.VisibilityError
	require.ErrorAs(t, err, &visErr)
	assert.Contains(t, err.Error(), "public.secrets")
	assert.False(t, eng.tx.executed, "denied statement must never reach the engine")
}

func TestExecuteForcesReadOnly(t *testing.T) {
	eng := newFakeEngine("postgres", true)
	exec := newExecutor(eng, nil)

	_, err := exec.Execute(context.Background(), Request{
		SQL:     "SELECT * FROM users",
		Session: engines.Session{ReadOnly: false, Timeout: time.Second},
	})
	require.NoError(t, err)
	assert.True(t, eng.lastSession.ReadOnly)
	assert.Equal(t, time.Second, eng.lastSession.Timeout)
}

func TestExecuteRejectsVariableInStringLiteral(t *testing.T) {
	eng := newFakeEngine("postgres", true)
	exec := newExecutor(eng, nil)

	_, err := exec.Execute(context.Background(), Request{
		SQL:    "SELECT * FROM users WHERE name = '{{n}}'",
		Values: map[string]string{"n": "Jack"},
	})
	require.Error(t, err)

	var validationErr *apperrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, err.Error(), "n")
}

func TestExecuteRejectsMultipleStatements(t *testing.T) {
	eng := newFakeEngine("postgres", true)
	exec := newExecutor(eng, nil)

	_, err := exec.Execute(context.Background(), Request{
		SQL: "SELECT 1; DROP TABLE users",
	})
	require.Error(t, err)
	assert.False(t, eng.tx.executed)
}

func TestExecuteRejectsInjectionValues(t *testing.T) {
	eng := newFakeEngine("postgres", true)
	exec := newExecutor(eng, nil)

	_, err := exec.Execute(context.Background(), Request{
		SQL:    "SELECT * FROM users WHERE name = {{n}}",
		Values: map[string]string{"n": "x' OR '1'='1"},
	})
	require.Error(t, err)

	var validationErr *apperrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.False(t, eng.tx.executed)
}

func TestExecuteCaching(t *testing.T) {
	eng := newFakeEngine("postgres", true)
	exec := newExecutor(eng, nil, WithCache(cache.NewMemoryCache()))

	req := Request{
		SQL:      "SELECT * FROM users",
		CacheTTL: time.Minute,
	}

	first, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	_, hasHit := first.Meta["cache"]
	assert.False(t, hasHit)

	second, err := exec.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "hit", second.Meta["cache"])
	assert.Equal(t, 1, eng.txCount, "cached execution must not touch the engine again")
}

func TestExecuteVariableBindingMeta(t *testing.T) {
	eng := newFakeEngine("postgres", true)
	exec := newExecutor(eng, nil)

	result, err := exec.Execute(context.Background(), Request{
		SQL:    "SELECT * FROM users u WHERE u.age > {{min}} AND name = {{n}}",
		Values: map[string]string{"min": "18", "n": "Jack"},
	})
	require.NoError(t, err)

	vars := result.Meta["variables"].([]map[string]any)
	require.Len(t, vars, 2)
	assert.Equal(t, "min", vars[0]["name"])
	assert.Equal(t, "explicit", vars[0]["binding"])
	assert.Equal(t, "implicit", vars[1]["binding"])
}

func TestExecuteMixedCaseVariableKeepsBinding(t *testing.T) {
	eng := newFakeEngine("postgres", true)
	exec := newExecutor(eng, nil)

	result, err := exec.Execute(context.Background(), Request{
		SQL:    "SELECT * FROM users WHERE age > {{Min_Age}}",
		Values: map[string]string{"Min_Age": "30"},
	})
	require.NoError(t, err)

	// Column detection binds the lower-cased name, so the value is cast to
	// the column's integer type rather than passed through as text.
	assert.Equal(t, []any{int64(30)}, eng.tx.args)
	vars := result.Meta["variables"].([]map[string]any)
	require.Len(t, vars, 1)
	assert.Equal(t, "Min_Age", vars[0]["name"])
	assert.Equal(t, "integer", vars[0]["type"])
	assert.Equal(t, "implicit", vars[0]["binding"])
}
