package policy

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func tablesOf(t *testing.T, sql string) []string {
	t.Helper()

	stmt, err := parseOne(sql)
	assert.NoError(t, err)

	return ExtractTables(stmt)
}

func TestExtractTablesSimpleSelect(t *testing.T) {
	assert.Equal(t, []string{"users"}, tablesOf(t, "SELECT id FROM users"))
}

func TestExtractTablesNoTables(t *testing.T) {
	assert.Equal(t, 0, len(tablesOf(t, "SELECT 1")))
}

func TestExtractTablesSchemaQualified(t *testing.T) {
	assert.Equal(t, []string{"analytics.events"}, tablesOf(t, "SELECT * FROM analytics.events"))
}

func TestExtractTablesJoin(t *testing.T) {
	sql := "SELECT * FROM orders o JOIN customers c ON o.customer_id = c.id"
	assert.Equal(t, []string{"customers", "orders"}, tablesOf(t, sql))
}

func TestExtractTablesCTEExcluded(t *testing.T) {
	sql := "WITH recent AS (SELECT * FROM orders) SELECT * FROM recent JOIN customers ON recent.cid = customers.id"
	assert.Equal(t, []string{"customers", "orders"}, tablesOf(t, sql))
}

func TestExtractTablesSubquery(t *testing.T) {
	sql := "SELECT * FROM users WHERE id IN (SELECT user_id FROM sessions)"
	assert.Equal(t, []string{"sessions", "users"}, tablesOf(t, sql))
}

func TestExtractTablesUnion(t *testing.T) {
	sql := "SELECT a FROM x UNION SELECT b FROM y"
	assert.Equal(t, []string{"x", "y"}, tablesOf(t, sql))
}

func TestExtractTablesInsertTarget(t *testing.T) {
	sql := "INSERT INTO archive SELECT * FROM live"
	assert.Equal(t, []string{"archive", "live"}, tablesOf(t, sql))
}

func TestExtractTablesUpdateTarget(t *testing.T) {
	sql := "UPDATE t SET a = 1 WHERE id IN (SELECT id FROM u)"
	assert.Equal(t, []string{"t", "u"}, tablesOf(t, sql))
}

func TestExtractTablesDeleteTarget(t *testing.T) {
	assert.Equal(t, []string{"t"}, tablesOf(t, "DELETE FROM t WHERE id = 1"))
}

func TestExtractTablesWritableCTE(t *testing.T) {
	sql := "WITH d AS (DELETE FROM audit_rows WHERE id = 1 RETURNING *) SELECT * FROM d"
	assert.Equal(t, []string{"audit_rows"}, tablesOf(t, sql))
}

func TestExtractTablesDDL(t *testing.T) {
	assert.Equal(t, []string{"t"}, tablesOf(t, "DROP TABLE t"))
	assert.Equal(t, []string{"a", "b"}, tablesOf(t, "TRUNCATE TABLE a, b"))
	assert.Equal(t, []string{"t"}, tablesOf(t, "ALTER TABLE t ADD COLUMN c INT"))
}

func TestExtractTablesDeduplicated(t *testing.T) {
	sql := "SELECT * FROM t WHERE id IN (SELECT id FROM t)"
	assert.Equal(t, []string{"t"}, tablesOf(t, sql))
}
