package policy

import (
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/mautbach/dbastion/diagnostics"
)

func TestPipelineBareSelectGetsLimited(t *testing.T) {
	result := Run("SELECT id FROM users", Options{Limit: DefaultLimit})

	assert.False(t, result.Blocked)
	assert.Equal(t, string(ClassRead), result.Classification)
	assert.True(t, result.HasCode(diagnostics.LimitInjected))
	assert.True(t, strings.Contains(result.EffectiveSQL(), "LIMIT 1000"),
		"got: %s", result.EffectiveSQL())
	assert.Equal(t, []string{"users"}, result.Tables)
}

func TestPipelineLimitRoundTrip(t *testing.T) {
	first := Run("SELECT id FROM users", Options{Limit: DefaultLimit})
	assert.True(t, first.HasCode(diagnostics.LimitInjected))

	second := Run(first.EffectiveSQL(), Options{Limit: DefaultLimit})
	assert.False(t, second.HasCode(diagnostics.LimitInjected))
	assert.Equal(t, first.EffectiveSQL(), second.EffectiveSQL())
}

func TestPipelineLimitDisabled(t *testing.T) {
	result := Run("SELECT id FROM users", Options{Limit: 0})

	assert.False(t, result.Healed)
	assert.False(t, result.HasCode(diagnostics.LimitInjected))
	assert.Equal(t, "SELECT id FROM users", result.EffectiveSQL())
}

func TestPipelineMultiStatementInjection(t *testing.T) {
	result := Run("SELECT 1; DROP TABLE x", Options{Limit: DefaultLimit})

	assert.True(t, result.Blocked)
	assert.True(t, result.HasCode(diagnostics.MultipleStatements))
	assert.Equal(t, 1, len(result.Diagnostics))
}

func TestPipelineSyntaxError(t *testing.T) {
	result := Run("SELEC id FRM users", Options{})

	assert.True(t, result.Blocked)
	assert.True(t, result.HasCode(diagnostics.SyntaxError))
}

func TestPipelineMergeFailsClosed(t *testing.T) {
	// The grammar has no MERGE node, so the statement cannot reach the
	// DML classification; it must still end up blocked.
	sql := "MERGE INTO t USING s ON t.id = s.id WHEN MATCHED THEN UPDATE SET a = s.a"

	for _, allowWrite := range []bool{false, true} {
		result := Run(sql, Options{AllowWrite: allowWrite})
		assert.True(t, result.Blocked)
		assert.True(t, result.HasCode(diagnostics.SyntaxError))
	}
}

func TestPipelineSelectIntoFailsClosed(t *testing.T) {
	result := Run("SELECT * INTO archive FROM live", Options{AllowWrite: true})

	assert.True(t, result.Blocked)
	assert.True(t, result.HasCode(diagnostics.SyntaxError))
}

func TestPipelineWriteBlocked(t *testing.T) {
	result := Run("DELETE FROM t WHERE id = 1", Options{})

	assert.True(t, result.Blocked)
	assert.Equal(t, string(ClassDML), result.Classification)
	assert.True(t, result.HasCode(diagnostics.WriteBlocked))
}

func TestPipelineWriteAllowed(t *testing.T) {
	result := Run("DELETE FROM t WHERE id = 1", Options{AllowWrite: true})

	assert.False(t, result.Blocked)
	assert.False(t, result.HasCode(diagnostics.WriteBlocked))
}

func TestPipelineWritableCTEEscalates(t *testing.T) {
	sql := "WITH d AS (DELETE FROM t WHERE id = 1 RETURNING *) SELECT * FROM d"
	result := Run(sql, Options{})

	assert.True(t, result.Blocked)
	assert.Equal(t, string(ClassDML), result.Classification)
	assert.True(t, result.HasCode(diagnostics.WriteBlocked))
}

func TestPipelineDDLBlocked(t *testing.T) {
	result := Run("DROP TABLE t", Options{})

	assert.True(t, result.Blocked)
	assert.True(t, result.HasCode(diagnostics.DDLBlocked))
}

func TestPipelineAdminAlwaysBlocked(t *testing.T) {
	for _, sql := range []string{
		"GRANT SELECT ON TABLE t TO alice",
		"COPY t FROM STDIN",
	} {
		result := Run(sql, Options{AllowWrite: true})
		assert.True(t, result.Blocked, "sql: %s", sql)
		assert.Equal(t, string(ClassAdmin), result.Classification)
		assert.True(t, result.HasCode(diagnostics.AdminBlocked))
	}
}

func TestPipelineUnknownBlocked(t *testing.T) {
	result := Run("SET application_name = 'probe'", Options{AllowWrite: true})

	assert.True(t, result.Blocked)
	assert.Equal(t, string(ClassUnknown), result.Classification)
	assert.True(t, result.HasCode(diagnostics.StatementUnknown))
}

func TestPipelineDeleteWithoutWhere(t *testing.T) {
	result := Run("DELETE FROM t", Options{AllowWrite: true})

	assert.True(t, result.Blocked)
	assert.True(t, result.HasCode(diagnostics.DeleteWithoutWhere))
}

func TestPipelineCrossJoinLinkedWhereSuppressed(t *testing.T) {
	result := Run("SELECT * FROM a, b WHERE a.id = b.id", Options{Limit: DefaultLimit})

	assert.False(t, result.Blocked)
	assert.False(t, result.HasCode(diagnostics.CrossJoinNoCondition))
}

func TestPipelineCrossJoinWarningDoesNotBlock(t *testing.T) {
	result := Run("SELECT * FROM a, b", Options{Limit: DefaultLimit})

	assert.False(t, result.Blocked)
	assert.True(t, result.HasCode(diagnostics.CrossJoinNoCondition))
	// Warnings do not suppress enrichment.
	assert.True(t, result.HasCode(diagnostics.LimitInjected))
}

func TestPipelineDangerousFunction(t *testing.T) {
	result := Run("SELECT pg_terminate_backend(1)", Options{
		Limit:              DefaultLimit,
		DangerousFunctions: map[string]struct{}{"pg_terminate_backend": {}},
	})

	assert.True(t, result.Blocked)
	assert.True(t, result.HasCode(diagnostics.DangerousFunction))
	// A blocked read is never enriched.
	assert.False(t, result.HasCode(diagnostics.LimitInjected))
}

func TestPipelineDiagnosticOrderDeterministic(t *testing.T) {
	sql := "SELECT * FROM a, b WHERE 1 = 1"

	first := Run(sql, Options{Limit: DefaultLimit})
	second := Run(sql, Options{Limit: DefaultLimit})

	assert.Equal(t, first.Codes(), second.Codes())
}

func TestPipelineOriginalSQLNeverMutated(t *testing.T) {
	sql := "SELECT id FROM users"
	result := Run(sql, Options{Limit: DefaultLimit})

	assert.Equal(t, sql, result.OriginalSQL)
	assert.NotEqual(t, result.OriginalSQL, result.EffectiveSQL())
}
