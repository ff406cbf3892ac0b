package adapter

import (
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
)

const postgresPlanJSON = `[
  {
    "Plan": {
      "Node Type": "Seq Scan",
      "Relation Name": "events",
      "Total Cost": 1543.25,
      "Plan Rows": 250000,
      "Plans": [
        {
          "Node Type": "Seq Scan",
          "Relation Name": "details",
          "Plan Rows": 120
        }
      ]
    }
  }
]`

func TestParsePostgresPlan(t *testing.T) {
	est, err := parsePostgresPlan([]byte(postgresPlanJSON))
	assert.NoError(t, err)

	assert.Equal(t, UnitCostUnits, est.Unit)
	assert.Equal(t, 1543.25, *est.RawValue)
	assert.Equal(t, 250000.0, *est.EstimatedRows)
	assert.Equal(t, "Seq Scan", est.PlanNode)

	// The root scan exceeds the warning threshold, the child does not.
	assert.Equal(t, 1, len(est.Warnings))
	assert.True(t, strings.Contains(est.Warnings[0], "events"))
	assert.True(t, strings.Contains(est.Summary, "cost: 1543.2 units"))
	assert.True(t, strings.Contains(est.Summary, "~250.0K rows"))
}

func TestParsePostgresPlanEmpty(t *testing.T) {
	est, err := parsePostgresPlan([]byte(`[]`))
	assert.NoError(t, err)
	assert.Equal(t, "no plan returned", est.Summary)
}

func TestParsePostgresPlanInvalid(t *testing.T) {
	_, err := parsePostgresPlan([]byte(`{not json`))
	assert.Error(t, err)
}

const mysqlPlanJSON = `{
  "query_block": {
    "select_id": 1,
    "cost_info": {"query_cost": "820.50"},
    "table": {
      "table_name": "orders",
      "access_type": "ALL",
      "rows_examined_per_scan": 150000
    }
  }
}`

func TestParseMySQLPlan(t *testing.T) {
	est, err := parseMySQLPlan([]byte(mysqlPlanJSON))
	assert.NoError(t, err)

	assert.Equal(t, 820.5, *est.RawValue)
	assert.Equal(t, 150000.0, *est.EstimatedRows)
	assert.Equal(t, 1, len(est.Warnings))
	assert.True(t, strings.Contains(est.Warnings[0], "orders"))
}

func TestParseMySQLPlanNestedLoop(t *testing.T) {
	plan := `{
	  "query_block": {
	    "cost_info": {"query_cost": "12.5"},
	    "nested_loop": [
	      {"table": {"table_name": "a", "access_type": "ref", "rows_examined_per_scan": 10}},
	      {"table": {"table_name": "b", "access_type": "eq_ref", "rows_examined_per_scan": 1}}
	    ]
	  }
	}`

	est, err := parseMySQLPlan([]byte(plan))
	assert.NoError(t, err)
	assert.Equal(t, 11.0, *est.EstimatedRows)
	assert.Equal(t, 0, len(est.Warnings))
}

func TestParseMySQLPlanMissingQueryBlock(t *testing.T) {
	est, err := parseMySQLPlan([]byte(`{}`))
	assert.NoError(t, err)
	assert.Equal(t, "no plan returned", est.Summary)
}

func TestParseSQLitePlan(t *testing.T) {
	est := parseSQLitePlan([]string{
		"SCAN tasks",
		"SEARCH users USING INDEX idx_users_id (id=?)",
	})

	assert.Equal(t, 1, len(est.Warnings))
	assert.True(t, strings.Contains(est.Warnings[0], "SCAN tasks"))
	assert.True(t, strings.Contains(est.Summary, "query plan:"))

	// SQLite exposes no numeric cost; the gate must tolerate the gaps.
	assert.Zero(t, est.RawValue)
	assert.Zero(t, est.EstimatedRows)
}

func TestFormatRows(t *testing.T) {
	assert.Equal(t, "42", formatRows(42))
	assert.Equal(t, "1.5K", formatRows(1500))
	assert.Equal(t, "2.0M", formatRows(2_000_000))
	assert.Equal(t, "3.1B", formatRows(3_100_000_000))
}
