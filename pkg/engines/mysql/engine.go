// Package mysql implements the engine contract for MySQL over database/sql
// with the go-sql-driver driver.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/typhoonworks/lotus-sub001/pkg/apperrors"
	"github.com/typhoonworks/lotus-sub001/pkg/config"
	"github.com/typhoonworks/lotus-sub001/pkg/engines"
	"github.com/typhoonworks/lotus-sub001/pkg/sqltypes"
)

// Engine provides MySQL connectivity and session control.
type Engine struct {
	db     *sql.DB
	cfg    *config.EngineConfig
	logger *zap.Logger
}

// New creates a MySQL engine from connection config.
func New(ctx context.Context, cfg *config.EngineConfig, logger *zap.Logger) (*Engine, error) {
	mycfg := mysql.NewConfig()
	mycfg.Net = "tcp"
	mycfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mycfg.User = cfg.User
	mycfg.Passwd = cfg.Password
	mycfg.DBName = cfg.Database
	mycfg.ParseTime = true
	mycfg.MultiStatements = false

	db, err := sql.Open("mysql", mycfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("connect to mysql: %w", err)
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

func (e *Engine) ID() string { return sqltypes.EngineMySQL }

// ExecuteInTransaction pins one connection, applies the statement timeout as
// a session variable, opens a read-only transaction, and restores the
// session variable on every exit path before the connection returns to the
// pool. MySQL has no SET LOCAL, so restoration is explicit.
func (e *Engine) ExecuteInTransaction(ctx context.Context, session engines.Session, fn func(ctx context.Context, tx engines.Tx) error) error {
	if session.SearchPath != "" {
		e.logger.Debug("search path ignored for mysql target", zap.String("search_path", session.SearchPath))
	}

	if session.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, session.Timeout)
		defer cancel()
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return wrapTimeout(fmt.Errorf("acquire connection: %w", err), session)
	}
	defer conn.Close()

	if session.StatementTimeout > 0 {
		stmt := fmt.Sprintf("SET SESSION max_execution_time = %d", session.StatementTimeout.Milliseconds())
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return wrapTimeout(fmt.Errorf("set statement timeout: %w", err), session)
		}
		defer func() {
			// Restore with a fresh context: the pooled connection must come
			// back clean even when the caller's context is already dead.
			restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if _, err := conn.ExecContext(restoreCtx, "SET SESSION max_execution_time = DEFAULT"); err != nil {
				e.logger.Warn("failed to restore session statement timeout", zap.Error(err))
			}
		}()
	}

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: session.ReadOnly})
	if err != nil {
		return wrapTimeout(fmt.Errorf("begin transaction: %w", err), session)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(ctx, &myTx{tx: tx, database: e.cfg.Database}); err != nil {
		return wrapTimeout(err, session)
	}
	if err := tx.Commit(); err != nil {
		return wrapTimeout(fmt.Errorf("commit transaction: %w", err), session)
	}
	return nil
}

// wrapTimeout extends the context-deadline mapping with the server-side
// cutoff: error 3024 is what the session's max_execution_time raises.
func wrapTimeout(err error, session engines.Session) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 3024 {
		return &apperrors.TimeoutError{Budget: session.StatementTimeout}
	}
	return engines.WrapTimeout(err, session)
}

// ParamPlaceholder returns ?, wrapped in a CAST for semantic types MySQL
// would otherwise coerce from text with surprising rules.
func (e *Engine) ParamPlaceholder(index int, name string, t sqltypes.SemanticType) string {
	return Placeholder(index, name, t)
}

// Placeholder is ParamPlaceholder without the engine receiver.
func Placeholder(_ int, _ string, t sqltypes.SemanticType) string {
	if cast := myCast(t); cast != "" {
		return "CAST(? AS " + cast + ")"
	}
	return "?"
}

func myCast(t sqltypes.SemanticType) string {
	switch t.Kind {
	case sqltypes.KindInteger:
		return "SIGNED"
	case sqltypes.KindDecimal:
		return "DECIMAL(65,30)"
	case sqltypes.KindDate:
		return "DATE"
	case sqltypes.KindTime:
		return "TIME"
	case sqltypes.KindDatetime:
		return "DATETIME"
	case sqltypes.KindJSON:
		return "JSON"
	default:
		return ""
	}
}

func (e *Engine) BuiltinDenies() []string {
	return []string{"~^lotus_"}
}

func (e *Engine) BuiltinSchemaDenies() []string {
	return []string{"mysql", "information_schema", "performance_schema", "sys"}
}

func (e *Engine) DefaultSchemas() []string {
	if e.cfg != nil && e.cfg.Database != "" {
		return []string{e.cfg.Database}
	}
	return nil
}

// Close releases the database handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

// classifier claims go-sql-driver error values.
type classifier struct{}

func (classifier) Handles(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr)
}

func (classifier) Format(err error) string {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err.Error()
	}
	return fmt.Sprintf("%s (MySQL error %d)", myErr.Message, myErr.Number)
}

var _ engines.Engine = (*Engine)(nil)
