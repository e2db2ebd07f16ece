// Package postgres implements the engine contract for PostgreSQL using
// pgx/v5 connection pools.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/typhoonworks/lotus-sub001/pkg/apperrors"
	"github.com/typhoonworks/lotus-sub001/pkg/config"
	"github.com/typhoonworks/lotus-sub001/pkg/engines"
	"github.com/typhoonworks/lotus-sub001/pkg/logging"
	"github.com/typhoonworks/lotus-sub001/pkg/sqltypes"
)

// Engine provides PostgreSQL connectivity and session control.
type Engine struct {
	pool   *pgxpool.Pool
	cfg    *config.EngineConfig
	logger *zap.Logger
}

// New creates a PostgreSQL engine from connection config.
func New(ctx context.Context, cfg *config.EngineConfig, logger *zap.Logger) (*Engine, error) {
	dsn := cfg.PostgresDSN()
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config %s: %w", logging.SanitizeDSN(dsn), err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return &Engine{pool: pool, cfg: cfg, logger: logger}, nil
}

func (e *Engine) ID() string { return sqltypes.EnginePostgres }

// ExecuteInTransaction runs fn inside a transaction with the session
// settings applied via SET LOCAL, so they are discarded on commit and
// rollback alike and pooled connections never carry them forward.
func (e *Engine) ExecuteInTransaction(ctx context.Context, session engines.Session, fn func(ctx context.Context, tx engines.Tx) error) error {
	if err := engines.ValidateSearchPath(session.SearchPath); err != nil {
		return err
	}

	if session.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, session.Timeout)
		defer cancel()
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return wrapTimeout(fmt.Errorf("begin transaction: %w", err), session)
	}
	defer tx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck // no-op after commit

	if session.ReadOnly {
		if _, err := tx.Exec(ctx, "SET LOCAL transaction_read_only = on"); err != nil {
			return wrapTimeout(fmt.Errorf("set read-only mode: %w", err), session)
		}
	}
	if session.StatementTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL statement_timeout = %d", session.StatementTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return wrapTimeout(fmt.Errorf("set statement timeout: %w", err), session)
		}
	}
	if session.SearchPath != "" {
		stmt := fmt.Sprintf("SET LOCAL search_path = %s", session.SearchPath)
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return wrapTimeout(fmt.Errorf("set search path: %w", err), session)
		}
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return wrapTimeout(err, session)
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapTimeout(fmt.Errorf("commit transaction: %w", err), session)
	}
	return nil
}

// wrapTimeout extends the context-deadline mapping with the server-side
// statement_timeout cancellation, which surfaces as SQLSTATE 57014 once the
// transaction's SET LOCAL statement_timeout fires.
func wrapTimeout(err error, session engines.Session) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "57014" {
		return &apperrors.TimeoutError{Budget: session.StatementTimeout}
	}
	return engines.WrapTimeout(err, session)
}

// ParamPlaceholder returns $N, with a ::type cast suffix for semantic types
// where Postgres needs help resolving the parameter type from a text value.
func (e *Engine) ParamPlaceholder(index int, name string, t sqltypes.SemanticType) string {
	return Placeholder(index, name, t)
}

// Placeholder is ParamPlaceholder without the engine receiver, usable in
// tests and by callers that only need the syntax.
func Placeholder(index int, _ string, t sqltypes.SemanticType) string {
	if cast := pgCast(t); cast != "" {
		return fmt.Sprintf("$%d::%s", index, cast)
	}
	return fmt.Sprintf("$%d", index)
}

func pgCast(t sqltypes.SemanticType) string {
	switch t.Kind {
	case sqltypes.KindUUID:
		return "uuid"
	case sqltypes.KindDecimal:
		return "numeric"
	case sqltypes.KindDate:
		return "date"
	case sqltypes.KindTime:
		return "time"
	case sqltypes.KindDatetime:
		return "timestamptz"
	case sqltypes.KindJSON:
		return "jsonb"
	case sqltypes.KindArray:
		if t.Elem != nil {
			if base := pgCast(*t.Elem); base != "" {
				return base + "[]"
			}
		}
		return ""
	default:
		return ""
	}
}

func (e *Engine) BuiltinDenies() []string {
	return []string{"~^lotus_"}
}

func (e *Engine) BuiltinSchemaDenies() []string {
	return []string{"pg_catalog", "information_schema", "~^pg_toast", "~^pg_temp_"}
}

func (e *Engine) DefaultSchemas() []string {
	return []string{"public"}
}

// Close releases the pool.
func (e *Engine) Close() error {
	e.pool.Close()
	return nil
}

// classifier claims pgconn error values.
type classifier struct{}

func (classifier) Handles(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}

func (classifier) Format(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err.Error()
	}
	msg := fmt.Sprintf("%s (SQLSTATE %s)", pgErr.Message, pgErr.Code)
	if pgErr.Detail != "" {
		msg += ": " + pgErr.Detail
	}
	return msg
}

var _ engines.Engine = (*Engine)(nil)
