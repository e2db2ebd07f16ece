package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typhoonworks/lotus-sub001/pkg/engines"
	"github.com/typhoonworks/lotus-sub001/pkg/sqltypes"
)

func TestTableNamesFromPlanJSON(t *testing.T) {
	planJSON := `{
	  "query_block": {
	    "select_id": 1,
	    "nested_loop": [
	      {"table": {"table_name": "users", "access_type": "ALL"}},
	      {"table": {"table_name": "orders", "access_type": "ref"}}
	    ]
	  }
	}`

	names, err := tableNamesFromPlanJSON(planJSON)
	require.NoError(t, err)
	assert.Equal(t, []string{"users", "orders"}, names)
}

func TestTableNamesFromPlanJSONMaterializedSubquery(t *testing.T) {
	planJSON := `{
	  "query_block": {
	    "table": {
	      "table_name": "derived",
	      "materialized_from_subquery": {
	        "query_block": {
	          "table": {"table_name": "events"}
	        }
	      }
	    }
	  }
	}`

	names, err := tableNamesFromPlanJSON(planJSON)
	require.NoError(t, err)
	assert.Contains(t, names, "events")
}

func TestTableNamesFromPlanJSONMalformed(t *testing.T) {
	_, err := tableNamesFromPlanJSON(`{"query_block": `)
	assert.Error(t, err)
}

func TestResolvePlanNames(t *testing.T) {
	t.Run("aliases resolve to base tables", func(t *testing.T) {
		sql := "SELECT * FROM users usr JOIN orders ord ON ord.user_id = usr.id"
		rels := resolvePlanNames([]string{"usr", "ord"}, sql)
		assert.Equal(t, []engines.Relation{
			{Table: "users"},
			{Table: "orders"},
		}, rels)
	})

	t.Run("empty plan falls back to statement text", func(t *testing.T) {
		sql := "SELECT * FROM users WHERE id = 1"
		rels := resolvePlanNames(nil, sql)
		assert.Equal(t, []engines.Relation{{Table: "users"}}, rels)
	})

	t.Run("all-short names fall back to statement text", func(t *testing.T) {
		// Single-letter identifiers from the planner are too ambiguous to
		// authorize against.
		sql := "SELECT * FROM users u JOIN orders o ON o.user_id = u.id"
		rels := resolvePlanNames([]string{"u", "o"}, sql)
		assert.Equal(t, []engines.Relation{
			{Table: "users"},
			{Table: "orders"},
		}, rels)
	})

	t.Run("system schema statements fall back to statement text", func(t *testing.T) {
		sql := "SELECT * FROM information_schema.tables"
		rels := resolvePlanNames([]string{"tables"}, sql)
		assert.Equal(t, []engines.Relation{
			{Schema: "information_schema", Table: "tables"},
		}, rels)
	})
}

func TestMySQLPlaceholder(t *testing.T) {
	tests := []struct {
		name     string
		semantic sqltypes.SemanticType
		expected string
	}{
		{"untyped", sqltypes.SemanticType{}, "?"},
		{"text", sqltypes.Scalar(sqltypes.KindText), "?"},
		{"integer", sqltypes.Scalar(sqltypes.KindInteger), "CAST(? AS SIGNED)"},
		{"decimal", sqltypes.Scalar(sqltypes.KindDecimal), "CAST(? AS DECIMAL(65,30))"},
		{"date", sqltypes.Scalar(sqltypes.KindDate), "CAST(? AS DATE)"},
		{"time", sqltypes.Scalar(sqltypes.KindTime), "CAST(? AS TIME)"},
		{"datetime", sqltypes.Scalar(sqltypes.KindDatetime), "CAST(? AS DATETIME)"},
		{"json", sqltypes.Scalar(sqltypes.KindJSON), "CAST(? AS JSON)"},
		{"uuid stays bare", sqltypes.Scalar(sqltypes.KindUUID), "?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Placeholder(1, "v", tt.semantic))
		})
	}
}
