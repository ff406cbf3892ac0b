package diagnostics

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestSpan(t *testing.T) {
	s := Span{Start: 7, End: 13}

	assert.Equal(t, 6, s.Len())
	assert.False(t, s.IsEmpty())
	assert.Equal(t, "world!", s.Slice("hello, world!"))

	assert.True(t, Span{Start: 3, End: 3}.IsEmpty())
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "Q0001", SyntaxError.String())
	assert.Equal(t, "Q0202", MultipleStatements.String())
	assert.Equal(t, "Q0601", LimitInjected.String())
}

func TestDiagnosticBuilder(t *testing.T) {
	d := Error(DeleteWithoutWhere, "DELETE without WHERE clause").
		WithNote("this would affect all rows in the table").
		WithTemplate("add a WHERE clause")

	assert.Equal(t, LevelError, d.Level)
	assert.True(t, d.IsBlocking())
	assert.Equal(t, 1, len(d.Notes))
	assert.Equal(t, 1, len(d.Suggestions))
	assert.Equal(t, HasPlaceholders, d.Suggestions[0].Applicability)
	assert.Equal(t, 0, len(d.AutoFixable()))
}

func TestWarningAndInfoDoNotBlock(t *testing.T) {
	assert.False(t, Warning(CrossJoinNoCondition, "w").IsBlocking())
	assert.False(t, Info(LimitInjected, "i").IsBlocking())
}

func TestApplyFixesSingle(t *testing.T) {
	sql := "SELECT * FROM users"
	d := Error(SyntaxError, "x").WithFix("replace star", Span{Start: 7, End: 8}, "id")

	healed, ok := ApplyFixes(sql, []*Diagnostic{d})
	assert.True(t, ok)
	assert.Equal(t, "SELECT id FROM users", healed)
}

func TestApplyFixesMultipleNonOverlapping(t *testing.T) {
	sql := "SELECT a, b FROM t"
	d := Error(SyntaxError, "x").
		WithFix("first", Span{Start: 7, End: 8}, "aa").
		WithFix("second", Span{Start: 10, End: 11}, "bb")

	healed, ok := ApplyFixes(sql, []*Diagnostic{d})
	assert.True(t, ok)
	assert.Equal(t, "SELECT aa, bb FROM t", healed)
}

func TestApplyFixesOverlapRejectsWholeBatch(t *testing.T) {
	sql := "SELECT a FROM t"
	d := Error(SyntaxError, "x").
		WithFix("first", Span{Start: 0, End: 8}, "A").
		WithFix("second", Span{Start: 6, End: 10}, "B")

	_, ok := ApplyFixes(sql, []*Diagnostic{d})
	assert.False(t, ok)
}

func TestApplyFixesAdjacentSpansAllowed(t *testing.T) {
	sql := "abcdef"
	d := Error(SyntaxError, "x").
		WithFix("first", Span{Start: 0, End: 3}, "X").
		WithFix("second", Span{Start: 3, End: 6}, "Y")

	healed, ok := ApplyFixes(sql, []*Diagnostic{d})
	assert.True(t, ok)
	assert.Equal(t, "XY", healed)
}

func TestApplyFixesEmptyBatch(t *testing.T) {
	d := Warning(CrossJoinNoCondition, "w").WithTemplate("not machine applicable")

	_, ok := ApplyFixes("SELECT 1", []*Diagnostic{d})
	assert.False(t, ok)

	_, ok = ApplyFixes("SELECT 1", nil)
	assert.False(t, ok)
}

func TestApplyFixesSkipsNonMachineApplicable(t *testing.T) {
	sql := "SELECT * FROM t"
	d := Warning(ConstantCondition, "w").
		WithSuggestion("maybe", Span{Start: 0, End: 6}, "DELETE")

	_, ok := ApplyFixes(sql, []*Diagnostic{d})
	assert.False(t, ok)
}

func TestResultEffectiveSQL(t *testing.T) {
	r := &Result{OriginalSQL: "SELECT 1"}
	assert.Equal(t, "SELECT 1", r.EffectiveSQL())

	r.HealedSQL = "SELECT 1 LIMIT 1000"
	r.Healed = true
	assert.Equal(t, "SELECT 1 LIMIT 1000", r.EffectiveSQL())
}

func TestResultCodesAndHasCode(t *testing.T) {
	r := &Result{Diagnostics: []*Diagnostic{
		Error(WriteBlocked, "w"),
		Info(LimitInjected, "l"),
	}}

	assert.Equal(t, []string{"Q0301", "Q0601"}, r.Codes())
	assert.True(t, r.HasCode(WriteBlocked))
	assert.False(t, r.HasCode(DDLBlocked))
}

func TestResultAppliedFixes(t *testing.T) {
	r := &Result{Diagnostics: []*Diagnostic{
		Error(SyntaxError, "x").WithFix("replace star", Span{Start: 0, End: 1}, "id"),
		Warning(ConstantCondition, "w").WithTemplate("not applied"),
	}}

	assert.Equal(t, []string{"Q0001: replace star"}, r.AppliedFixes())
}
