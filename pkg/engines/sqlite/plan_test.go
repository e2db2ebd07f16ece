package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typhoonworks/lotus-sub001/pkg/engines"
)

func planTx(t *testing.T, mock sqlmock.Sqlmock, db *sql.DB) engines.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)
	return &liteTx{tx: tx}
}

func planRows(details ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "parent", "notused", "detail"})
	for i, d := range details {
		rows.AddRow(i+2, 0, 0, d)
	}
	return rows
}

func TestPlanRelationsScanAndSearch(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	sqlText := "SELECT u.id FROM users u JOIN orders ON orders.user_id = u.id"
	tx := planTx(t, mock, db)
	mock.ExpectQuery("EXPLAIN QUERY PLAN " + sqlText).
		WillReturnRows(planRows("SCAN users AS u", "SEARCH orders USING INDEX idx_orders_user (user_id=?)"))

	rels, err := tx.PlanRelations(context.Background(), sqlText, nil)
	require.NoError(t, err)
	assert.Equal(t, []engines.Relation{
		{Table: "users"},
		{Table: "orders"},
	}, rels)
}

func TestPlanRelationsResolvesAliases(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	// Some builds report the alias, not the base table.
	sqlText := "SELECT a.id FROM accounts a WHERE a.id = ?"
	tx := planTx(t, mock, db)
	mock.ExpectQuery("EXPLAIN QUERY PLAN " + sqlText).
		WillReturnRows(planRows("SEARCH a USING INTEGER PRIMARY KEY (rowid=?)"))

	rels, err := tx.PlanRelations(context.Background(), sqlText, nil)
	require.NoError(t, err)
	assert.Equal(t, []engines.Relation{{Table: "accounts"}}, rels)
}

func TestPlanRelationsLegacyTableKeyword(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	sqlText := "SELECT id FROM users"
	tx := planTx(t, mock, db)
	mock.ExpectQuery("EXPLAIN QUERY PLAN " + sqlText).
		WillReturnRows(planRows("SCAN TABLE users"))

	rels, err := tx.PlanRelations(context.Background(), sqlText, nil)
	require.NoError(t, err)
	assert.Equal(t, []engines.Relation{{Table: "users"}}, rels)
}

func TestPlanRelationsEmptyPlanFallsBackToText(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	sqlText := "SELECT id FROM users WHERE 1 = 0"
	tx := planTx(t, mock, db)
	mock.ExpectQuery("EXPLAIN QUERY PLAN " + sqlText).
		WillReturnRows(planRows())

	rels, err := tx.PlanRelations(context.Background(), sqlText, nil)
	require.NoError(t, err)
	assert.Equal(t, []engines.Relation{{Table: "users"}}, rels)
}
