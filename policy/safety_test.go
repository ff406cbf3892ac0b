package policy

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"

	"github.com/mautbach/dbastion/diagnostics"
)

func parseStmt(t *testing.T, sql string) tree.Statement {
	t.Helper()

	stmt, err := parseOne(sql)
	assert.NoError(t, err)

	return stmt
}

func TestCheckMultipleStatements(t *testing.T) {
	diag := CheckMultipleStatements("SELECT 1; DROP TABLE x")
	assert.NotZero(t, diag)
	assert.Equal(t, diagnostics.MultipleStatements, diag.Code)
	assert.Equal(t, diagnostics.LevelError, diag.Level)
	assert.Equal(t, 2, len(diag.Notes))

	// The primary span points at the separator.
	assert.Equal(t, 1, len(diag.Spans))
	assert.Equal(t, ";", diag.Spans[0].Span.Slice("SELECT 1; DROP TABLE x"))
}

func TestCheckMultipleStatementsSingle(t *testing.T) {
	assert.Zero(t, CheckMultipleStatements("SELECT 1"))
}

func TestCheckMultipleStatementsTrailingSemicolon(t *testing.T) {
	assert.Zero(t, CheckMultipleStatements("SELECT 1;"))
}

func TestCheckDeleteWithoutWhere(t *testing.T) {
	diag := CheckDeleteWithoutWhere(parseStmt(t, "DELETE FROM t"))
	assert.NotZero(t, diag)
	assert.Equal(t, diagnostics.DeleteWithoutWhere, diag.Code)

	assert.Zero(t, CheckDeleteWithoutWhere(parseStmt(t, "DELETE FROM t WHERE id = 1")))
	assert.Zero(t, CheckDeleteWithoutWhere(parseStmt(t, "SELECT 1")))
}

func TestCheckUpdateWithoutWhere(t *testing.T) {
	diag := CheckUpdateWithoutWhere(parseStmt(t, "UPDATE t SET a = 1"))
	assert.NotZero(t, diag)
	assert.Equal(t, diagnostics.UpdateWithoutWhere, diag.Code)

	assert.Zero(t, CheckUpdateWithoutWhere(parseStmt(t, "UPDATE t SET a = 1 WHERE id = 1")))
}

func TestCrossJoinWarnsWithoutCondition(t *testing.T) {
	for _, sql := range []string{
		"SELECT * FROM a, b",
		"SELECT * FROM a CROSS JOIN b",
		"SELECT * FROM a, b WHERE a.x > 10",
	} {
		diag := CheckCrossJoinNoCondition(parseStmt(t, sql))
		assert.NotZero(t, diag, "sql: %s", sql)
		assert.Equal(t, diagnostics.CrossJoinNoCondition, diag.Code)
		assert.Equal(t, diagnostics.LevelWarning, diag.Level)
	}
}

func TestCrossJoinSuppressedByLinkingWhere(t *testing.T) {
	for _, sql := range []string{
		"SELECT * FROM a, b WHERE a.id = b.id",
		"SELECT * FROM a CROSS JOIN b WHERE a.id = b.id",
		"SELECT * FROM a AS x, b AS y WHERE x.id = y.id",
		"SELECT * FROM a, b WHERE a.id = b.id AND a.flag",
	} {
		assert.Zero(t, CheckCrossJoinNoCondition(parseStmt(t, sql)), "sql: %s", sql)
	}
}

func TestCrossJoinExplicitConditionsOK(t *testing.T) {
	for _, sql := range []string{
		"SELECT * FROM a JOIN b ON a.id = b.id",
		"SELECT * FROM a JOIN b USING (id)",
		"SELECT * FROM a NATURAL JOIN b",
		"SELECT * FROM a LEFT JOIN b ON a.id = b.id",
	} {
		assert.Zero(t, CheckCrossJoinNoCondition(parseStmt(t, sql)), "sql: %s", sql)
	}
}

func TestCrossJoinThreeWayLinkedFolding(t *testing.T) {
	// After a JOIN, the right side's identifiers fold into the left set,
	// so c can link against b alone.
	sql := "SELECT * FROM a JOIN b ON a.id = b.id, c WHERE b.id = c.id"
	assert.Zero(t, CheckCrossJoinNoCondition(parseStmt(t, sql)))

	unlinked := "SELECT * FROM a JOIN b ON a.id = b.id, c"
	assert.NotZero(t, CheckCrossJoinNoCondition(parseStmt(t, unlinked)))
}

func TestConstantConditionTautology(t *testing.T) {
	for _, sql := range []string{
		"SELECT * FROM t WHERE 1 = 1",
		"SELECT * FROM t WHERE 'a' = 'a'",
		"SELECT * FROM t WHERE true",
		"SELECT * FROM t WHERE id = 5 OR 1 = 1",
	} {
		diag := CheckConstantCondition(parseStmt(t, sql))
		assert.NotZero(t, diag, "sql: %s", sql)
		assert.Equal(t, diagnostics.ConstantCondition, diag.Code)
		assert.Equal(t, diagnostics.LevelWarning, diag.Level)
	}
}

func TestConstantConditionClean(t *testing.T) {
	for _, sql := range []string{
		"SELECT * FROM t WHERE id = 1",
		"SELECT * FROM t WHERE a = b",
		"SELECT * FROM t",
		"SELECT * FROM t WHERE name = 'a'",
	} {
		assert.Zero(t, CheckConstantCondition(parseStmt(t, sql)), "sql: %s", sql)
	}
}

func TestDangerousFunctionBlocked(t *testing.T) {
	blocked := map[string]struct{}{"pg_terminate_backend": {}}

	diag := CheckDangerousFunctions(parseStmt(t, "SELECT pg_terminate_backend(1)"), blocked)
	assert.NotZero(t, diag)
	assert.Equal(t, diagnostics.DangerousFunction, diag.Code)
	assert.Equal(t, diagnostics.LevelError, diag.Level)
}

func TestDangerousFunctionInsideExpression(t *testing.T) {
	blocked := map[string]struct{}{"pg_terminate_backend": {}}

	sql := "SELECT id FROM t WHERE pg_terminate_backend(pid) IS NOT NULL"
	assert.NotZero(t, CheckDangerousFunctions(parseStmt(t, sql), blocked))
}

func TestDangerousFunctionNotBlocked(t *testing.T) {
	blocked := map[string]struct{}{"pg_terminate_backend": {}}

	assert.Zero(t, CheckDangerousFunctions(parseStmt(t, "SELECT count(*) FROM t"), blocked))
	assert.Zero(t, CheckDangerousFunctions(parseStmt(t, "SELECT 1"), nil))
}
