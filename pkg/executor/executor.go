// Package executor assembles the full pipeline: template validation,
// variable binding, type detection and casting, placeholder substitution,
// plan-based authorization, and read-only transactional execution.
package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/typhoonworks/lotus-sub001/pkg/apperrors"
	"github.com/typhoonworks/lotus-sub001/pkg/cache"
	"github.com/typhoonworks/lotus-sub001/pkg/engines"
	"github.com/typhoonworks/lotus-sub001/pkg/logging"
	"github.com/typhoonworks/lotus-sub001/pkg/preflight"
	"github.com/typhoonworks/lotus-sub001/pkg/sqltemplate"
	"github.com/typhoonworks/lotus-sub001/pkg/sqltypes"
	"github.com/typhoonworks/lotus-sub001/pkg/variables"
	"github.com/typhoonworks/lotus-sub001/pkg/visibility"
)

// VariableSpec is the stored metadata attached to one template variable.
// Type is a manual semantic type name, used only when column-based detection
// is unavailable or yields text. Widget and Options are UI concerns carried
// through untouched.
type VariableSpec struct {
	Name    string   `json:"name" yaml:"name"`
	Type    string   `json:"type,omitempty" yaml:"type,omitempty"`
	Default *string  `json:"default,omitempty" yaml:"default,omitempty"`
	Widget  string   `json:"widget,omitempty" yaml:"widget,omitempty"`
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// Request is one execution of a stored statement with optional overrides.
type Request struct {
	SQL       string
	Variables []VariableSpec
	Values    map[string]string // supplied overrides, win over defaults
	Session   engines.Session
	CacheKey  string
	CacheTTL  time.Duration
}

// Executor runs requests against one engine under one rule set.
type Executor struct {
	engine     engines.Engine
	rules      *visibility.Rules
	authorizer *preflight.Authorizer
	caster     *sqltypes.Caster
	cache      cache.Cache
	logger     *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithCache installs a result cache consulted when a request carries a TTL.
func WithCache(c cache.Cache) Option {
	return func(e *Executor) { e.cache = c }
}

// WithHandlers installs a custom type-handler registry.
func WithHandlers(reg *sqltypes.HandlerRegistry) Option {
	return func(e *Executor) { e.caster = sqltypes.NewCaster(reg) }
}

func New(engine engines.Engine, rules *visibility.Rules, logger *zap.Logger, opts ...Option) *Executor {
	e := &Executor{
		engine:     engine,
		rules:      rules,
		authorizer: preflight.New(logger),
		caster:     sqltypes.NewCaster(nil),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one statement. Sessions are always read-only regardless of
// what the request asks for.
func (e *Executor) Execute(ctx context.Context, req Request) (*engines.Result, error) {
	sqlText, args, meta, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	run := func() (any, error) {
		return e.run(ctx, req.Session, sqlText, args, meta)
	}

	if e.cache != nil && req.CacheTTL > 0 {
		key := req.CacheKey
		if key == "" {
			key = cacheKey(e.engine.ID(), sqlText, args)
		}
		value, hit, err := e.cache.GetOrStore(key, req.CacheTTL, run)
		if err != nil {
			return nil, err
		}
		result := value.(*engines.Result)
		if hit {
			cached := *result
			cached.Meta = cloneMeta(result.Meta)
			cached.Meta["cache"] = "hit"
			return &cached, nil
		}
		return result, nil
	}

	value, err := run()
	if err != nil {
		return nil, err
	}
	return value.(*engines.Result), nil
}

// prepare turns the template into parameterized SQL plus its argument list.
func (e *Executor) prepare(ctx context.Context, req Request) (string, []any, map[string]any, error) {
	sqlText, err := sqltemplate.ValidateAndNormalize(req.SQL)
	if err != nil {
		return "", nil, nil, err
	}
	if quoted := sqltemplate.VariablesInStringLiterals(sqlText); len(quoted) > 0 {
		return "", nil, nil, apperrors.Validationf(
			"variable %s appears inside a string literal; placeholders cannot be bound there", quoted[0])
	}

	bindings := make(map[string]variables.Binding)
	for _, b := range variables.ResolveBindings(sqlText) {
		bindings[b.Variable] = b
	}

	specs := make(map[string]VariableSpec, len(req.Variables))
	for _, spec := range req.Variables {
		specs[spec.Name] = spec
	}

	type resolved struct {
		value      any
		kind       string // explicit, implicit, unbound
		semantic   sqltypes.SemanticType
		nativeType string
	}
	values := make(map[string]*resolved)
	var args []any
	varsMeta := make([]map[string]any, 0, len(req.Variables))

	for _, name := range sqltemplate.Occurrences(sqlText) {
		r, ok := values[name]
		if !ok {
			r = &resolved{}
			// ResolveBindings works on normalized (lower-cased) text, so the
			// occurrence's name has to be lowered to find its binding.
			binding := bindings[strings.ToLower(name)]
			spec := specs[name]

			raw, found := req.Values[name]
			if !found {
				if spec.Default == nil {
					return "", nil, nil, apperrors.Validationf("missing required variable %q and no default is set", name)
				}
				raw = *spec.Default
			}

			r.semantic, r.nativeType = e.resolveType(ctx, binding, spec)
			switch {
			case binding.Explicit:
				r.kind = "explicit"
			case binding.Column != "":
				r.kind = "implicit"
			default:
				r.kind = "unbound"
			}

			r.value, err = e.caster.Cast(raw, r.semantic, sqltypes.Context{
				Engine:     e.engine.ID(),
				Table:      binding.Table,
				Column:     binding.Column,
				NativeType: r.nativeType,
			})
			if err != nil {
				return "", nil, nil, err
			}

			if hit := sqltemplate.CheckValueForInjection(name, r.value); hit != nil {
				e.logger.Warn("rejected parameter value matching injection pattern",
					zap.String("variable", hit.Variable),
					zap.String("fingerprint", hit.Fingerprint))
				return "", nil, nil, apperrors.Validationf("value for variable %q matches a SQL injection pattern", name)
			}

			values[name] = r
			varsMeta = append(varsMeta, map[string]any{
				"name":    name,
				"type":    r.semantic.String(),
				"binding": r.kind,
			})
		}

		placeholder := e.engine.ParamPlaceholder(len(args)+1, name, r.semantic)
		sqlText = sqltemplate.ReplaceNext(sqlText, name, placeholder)
		args = append(args, r.value)
	}

	meta := map[string]any{
		"engine":    e.engine.ID(),
		"variables": varsMeta,
	}
	return sqlText, args, meta, nil
}

// resolveType picks the semantic type for one variable: a non-text
// column-detected type wins, then the stored manual type, then detected
// text, then untyped.
func (e *Executor) resolveType(ctx context.Context, binding variables.Binding, spec VariableSpec) (sqltypes.SemanticType, string) {
	var detected sqltypes.SemanticType
	var nativeType string
	if binding.Table != "" && binding.Column != "" {
		nativeType = e.lookupNativeType(ctx, binding.Table, binding.Column)
		if nativeType != "" {
			detected = sqltypes.MapType(e.engine.ID(), nativeType)
		}
	}

	if !detected.IsZero() && !detected.IsText() {
		return detected, nativeType
	}
	if manual, ok := sqltypes.Parse(spec.Type); ok {
		return manual, nativeType
	}
	return detected, nativeType
}

// lookupNativeType finds the engine-native type of table.column via catalog
// introspection. Best effort; failures just leave the variable untyped.
func (e *Executor) lookupNativeType(ctx context.Context, table, column string) string {
	schema, err := e.engine.ResolveTableSchema(ctx, table)
	if err != nil {
		e.logger.Debug("table schema resolution failed",
			zap.String("table", table), zap.String("error", logging.SanitizeError(err)))
		return ""
	}
	columns, err := e.engine.GetTableSchema(ctx, schema, table)
	if err != nil {
		e.logger.Debug("catalog lookup failed",
			zap.String("table", table), zap.String("error", logging.SanitizeError(err)))
		return ""
	}
	for _, col := range columns {
		if col.Name == column {
			return col.DataType
		}
	}
	return ""
}

// run executes the prepared statement under a read-only transaction, with
// preflight authorization inside the same transaction so the plan sees the
// same search path.
func (e *Executor) run(ctx context.Context, session engines.Session, sqlText string, args []any, meta map[string]any) (*engines.Result, error) {
	session.ReadOnly = true

	var result *engines.Result
	start := time.Now()
	err := e.engine.ExecuteInTransaction(ctx, session, func(ctx context.Context, tx engines.Tx) error {
		if err := e.authorizer.Authorize(ctx, tx, e.engine, e.rules, sqlText, args); err != nil {
			return err
		}
		var err error
		result, err = tx.Query(ctx, sqlText, args...)
		return err
	})
	if err != nil {
		return nil, e.classify(err, sqlText)
	}

	result.DurationMs = time.Since(start).Milliseconds()
	result.Meta = meta
	e.logger.Debug("statement executed",
		zap.String("engine", e.engine.ID()),
		zap.String("query", logging.SanitizeQuery(sqlText)),
		zap.Int("rows", result.NumRows),
		zap.Int64("duration_ms", result.DurationMs))
	return result, nil
}

// classify tags native driver failures that were not already converted
// further down the stack.
func (e *Executor) classify(err error, sqlText string) error {
	var (
		validation *apperrors.ValidationError
		castErr    *apperrors.CastError
		visErr     *apperrors.VisibilityError
		engErr     *apperrors.EngineError
		timeout    *apperrors.TimeoutError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &castErr),
		errors.As(err, &visErr), errors.As(err, &engErr), errors.As(err, &timeout):
		return err
	}
	e.logger.Debug("query failed",
		zap.String("engine", e.engine.ID()),
		zap.String("query", logging.SanitizeQuery(sqlText)),
		zap.String("error", logging.SanitizeError(err)))
	return &apperrors.EngineError{Message: engines.ClassifyError(err), Err: err}
}

func cacheKey(engineID, sqlText string, args []any) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%v", engineID, sqlText, args)
	return hex.EncodeToString(h.Sum(nil))
}

func cloneMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	return out
}
