package preflight

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/typhoonworks/lotus-sub001/pkg/apperrors"
	"github.com/typhoonworks/lotus-sub001/pkg/engines"
	"github.com/typhoonworks/lotus-sub001/pkg/sqltypes"
	"github.com/typhoonworks/lotus-sub001/pkg/visibility"
)

// fakeTx serves a canned plan and records whether the real query ran.
type fakeTx struct {
	planRels []engines.Relation
	planErr  error
	queried  bool
}

func (f *fakeTx) Query(_ context.Context, _ string, _ ...any) (*engines.Result, error) {
	f.queried = true
	return &engines.Result{}, nil
}

func (f *fakeTx) PlanRelations(_ context.Context, _ string, _ []any) ([]engines.Relation, error) {
	return f.planRels, f.planErr
}

// fakeEngine satisfies the engine contract with static answers.
type fakeEngine struct {
	denies       []string
	schemaDenies []string
}

func (f *fakeEngine) ID() string { return "fake" }

func (f *fakeEngine) ExecuteInTransaction(ctx context.Context, _ engines.Session, fn func(ctx context.Context, tx engines.Tx) error) error {
	return fn(ctx, &fakeTx{})
}

func (f *fakeEngine) ParamPlaceholder(index int, _ string, _ sqltypes.SemanticType) string {
	return "?"
}

func (f *fakeEngine) BuiltinDenies() []string       { return f.denies }
func (f *fakeEngine) BuiltinSchemaDenies() []string { return f.schemaDenies }
func (f *fakeEngine) DefaultSchemas() []string      { return nil }

func (f *fakeEngine) ListSchemas(context.Context) ([]string, error) { return nil, nil }
func (f *fakeEngine) ListTables(context.Context, string) ([]engines.Relation, error) {
	return nil, nil
}
func (f *fakeEngine) GetTableSchema(context.Context, string, string) ([]engines.ColumnInfo, error) {
	return nil, nil
}
func (f *fakeEngine) ResolveTableSchema(context.Context, string) (string, error) { return "", nil }
func (f *fakeEngine) Close() error                                               { return nil }

func mustRules(t *testing.T, yaml string) *visibility.Rules {
	t.Helper()
	rules, err := visibility.ParseRules([]byte(yaml))
	require.NoError(t, err)
	return rules
}

func TestAuthorizeAllowed(t *testing.T) {
	a := New(zap.NewNop())
	tx := &fakeTx{planRels: []engines.Relation{{Schema: "public", Table: "users"}}}

	err := a.Authorize(context.Background(), tx, &fakeEngine{}, &visibility.Rules{}, "SELECT * FROM users", nil)
	assert.NoError(t, err)
}

func TestAuthorizeBlockedRelationNamed(t *testing.T) {
	a := New(zap.NewNop())
	tx := &fakeTx{planRels: []engines.Relation{
		{Schema: "public", Table: "users"},
		{Schema: "public", Table: "secrets"},
	}}
	rules := mustRules(t, `
table_visibility:
  deny: [secrets]
`)

	err := a.Authorize(context.Background(), tx, &fakeEngine{}, rules, "SELECT * FROM users JOIN secrets", nil)
	require.Error(t, err)

	var visErr *apperrors.VisibilityError
	require.ErrorAs(t, err, &visErr)
	assert.Contains(t, err.Error(), "public.secrets")
	assert.NotContains(t, err.Error(), "public.users")
}

func TestAuthorizeSeesRelationsThroughViews(t *testing.T) {
	// The plan reports base relations even when the statement only names a
	// view; the rules apply to what the plan touches.
	a := New(zap.NewNop())
	tx := &fakeTx{planRels: []engines.Relation{{Schema: "hr", Table: "salaries"}}}
	rules := mustRules(t, `
schema_visibility:
  deny: [hr]
`)

	err := a.Authorize(context.Background(), tx, &fakeEngine{}, rules, "SELECT * FROM salary_summary", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hr.salaries")
}

func TestAuthorizeBuiltinDenies(t *testing.T) {
	a := New(zap.NewNop())
	tx := &fakeTx{planRels: []engines.Relation{{Table: "lotus_queries"}}}
	eng := &fakeEngine{denies: []string{"~^lotus_"}}

	err := a.Authorize(context.Background(), tx, eng, &visibility.Rules{}, "SELECT * FROM lotus_queries", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lotus_queries")
}

func TestAuthorizePlanErrorClassified(t *testing.T) {
	a := New(zap.NewNop())
	tx := &fakeTx{planErr: errors.New("syntax error at position 12 (query: EXPLAIN SELECT * FORM users)")}

	err := a.Authorize(context.Background(), tx, &fakeEngine{}, &visibility.Rules{}, "SELECT * FORM users", nil)
	require.Error(t, err)

	var engErr *apperrors.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Contains(t, engErr.Message, "syntax error at position 12")
	assert.NotContains(t, engErr.Message, "EXPLAIN")
}
