// Package sqlite implements the engine contract for SQLite over database/sql
// with the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	sqlite3 "modernc.org/sqlite"

	"github.com/typhoonworks/lotus-sub001/pkg/config"
	"github.com/typhoonworks/lotus-sub001/pkg/engines"
	"github.com/typhoonworks/lotus-sub001/pkg/sqltypes"
)

// Engine provides SQLite connectivity and session control. SQLite is
// schema-less in this system's terms: every relation has an empty schema.
type Engine struct {
	db     *sql.DB
	cfg    *config.EngineConfig
	logger *zap.Logger
}

// New creates a SQLite engine for the configured database file.
func New(_ context.Context, cfg *config.EngineConfig, logger *zap.Logger) (*Engine, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite engine requires a database path")
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", cfg.Path, err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(int(cfg.MaxConnections))
	}
	return &Engine{db: db, cfg: cfg, logger: logger}, nil
}

// NewFromDB wraps an existing database handle. Used by tests.
func NewFromDB(db *sql.DB, cfg *config.EngineConfig, logger *zap.Logger) *Engine {
	return &Engine{db: db, cfg: cfg, logger: logger}
}

func (e *Engine) ID() string { return sqltypes.EngineSQLite }

// ExecuteInTransaction pins one connection, enables PRAGMA query_only for
// read-only sessions, runs fn in a transaction, and switches the pragma back
// off on every exit path. Older SQLite builds without the pragma get a
// warning instead of a failure; the statement still runs inside a
// transaction that is always rolled back on error.
func (e *Engine) ExecuteInTransaction(ctx context.Context, session engines.Session, fn func(ctx context.Context, tx engines.Tx) error) error {
	if session.SearchPath != "" {
		e.logger.Debug("search path ignored for sqlite target", zap.String("search_path", session.SearchPath))
	}

	budget := session.Timeout
	if session.StatementTimeout > 0 && (budget == 0 || session.StatementTimeout < budget) {
		// SQLite has no server-side statement timeout; the statement budget
		// becomes the context deadline.
		budget = session.StatementTimeout
	}
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return engines.WrapTimeout(fmt.Errorf("acquire connection: %w", err), session)
	}
	defer conn.Close()

	if session.ReadOnly {
		if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			e.logger.Warn("PRAGMA query_only unsupported; read-only mode not enforced by the engine",
				zap.Error(err))
		} else {
			defer func() {
				restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if _, err := conn.ExecContext(restoreCtx, "PRAGMA query_only = OFF"); err != nil {
					e.logger.Warn("failed to restore query_only pragma", zap.Error(err))
				}
			}()
		}
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return engines.WrapTimeout(fmt.Errorf("begin transaction: %w", err), session)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(ctx, &liteTx{tx: tx}); err != nil {
		return engines.WrapTimeout(err, session)
	}
	if err := tx.Commit(); err != nil {
		return engines.WrapTimeout(fmt.Errorf("commit transaction: %w", err), session)
	}
	return nil
}

// ParamPlaceholder returns the bare ? placeholder; SQLite needs no casts.
func (e *Engine) ParamPlaceholder(index int, name string, t sqltypes.SemanticType) string {
	return Placeholder(index, name, t)
}

// Placeholder is ParamPlaceholder without the engine receiver.
func Placeholder(_ int, _ string, _ sqltypes.SemanticType) string {
	return "?"
}

func (e *Engine) BuiltinDenies() []string {
	return []string{"~^sqlite_", "~^lotus_"}
}

func (e *Engine) BuiltinSchemaDenies() []string { return nil }

func (e *Engine) DefaultSchemas() []string { return nil }

// Close releases the database handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

// classifier claims modernc sqlite error values.
type classifier struct{}

func (classifier) Handles(err error) bool {
	var liteErr *sqlite3.Error
	return errors.As(err, &liteErr)
}

func (classifier) Format(err error) string {
	var liteErr *sqlite3.Error
	if !errors.As(err, &liteErr) {
		return err.Error()
	}
	return fmt.Sprintf("%s (SQLite error %d)", liteErr.Error(), liteErr.Code())
}

var _ engines.Engine = (*Engine)(nil)
