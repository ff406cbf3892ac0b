package policy

import (
	"strings"

	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"
	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree/treecmp"

	"github.com/mautbach/dbastion/diagnostics"
)

// CheckMultipleStatements blocks SQL containing more than one statement
// (possible injection). Trailing semicolons do not count as statements.
func CheckMultipleStatements(sql string) *diagnostics.Diagnostic {
	if countStatements(sql) <= 1 {
		return nil
	}

	semi := strings.IndexByte(sql, ';')
	if semi < 0 {
		semi = len(sql) / 2
	}

	return diagnostics.Error(diagnostics.MultipleStatements, "multiple statements detected").
		WithSpan(diagnostics.Span{Start: semi, End: semi + 1}, "second statement starts here").
		WithNote("only single statements are allowed (possible SQL injection)").
		WithNote("split into separate dbastion query calls if intentional")
}

// CheckDeleteWithoutWhere blocks DELETE statements that have no WHERE clause.
func CheckDeleteWithoutWhere(stmt tree.Statement) *diagnostics.Diagnostic {
	del, ok := stmt.(*tree.Delete)
	if !ok || del.Where != nil {
		return nil
	}

	return diagnostics.Error(diagnostics.DeleteWithoutWhere, "DELETE without WHERE clause").
		WithNote("this would affect all rows in the table").
		WithTemplate("add a WHERE clause: DELETE FROM ... WHERE <condition>")
}

// CheckUpdateWithoutWhere blocks UPDATE statements that have no WHERE clause.
func CheckUpdateWithoutWhere(stmt tree.Statement) *diagnostics.Diagnostic {
	upd, ok := stmt.(*tree.Update)
	if !ok || upd.Where != nil {
		return nil
	}

	return diagnostics.Error(diagnostics.UpdateWithoutWhere, "UPDATE without WHERE clause").
		WithNote("this would affect all rows in the table").
		WithTemplate("add a WHERE clause: UPDATE ... SET ... WHERE <condition>")
}

// comparison operators that can act as a join-link predicate
var joinPredicateSymbols = map[treecmp.ComparisonOperatorSymbol]struct{}{
	treecmp.EQ:                {},
	treecmp.NE:                {},
	treecmp.LT:                {},
	treecmp.GT:                {},
	treecmp.LE:                {},
	treecmp.GE:                {},
	treecmp.IsDistinctFrom:    {},
	treecmp.IsNotDistinctFrom: {},
}

// CheckCrossJoinNoCondition warns on CROSS JOINs and comma-joins without
// any join condition (cartesian product).
//
// A WHERE predicate suppresses the warning when it links the two sides: an
// equality/inequality/IS comparison referencing a column qualified by a
// left-side identifier and one qualified by a right-side identifier.
// Explicit CROSS JOINs get the same treatment because some dialects parse
// `FROM a, b` with a linking WHERE as an explicit CROSS JOIN. After each
// join the right-side identifiers fold into the running left-side set.
func CheckCrossJoinNoCondition(stmt tree.Statement) *diagnostics.Diagnostic {
	var diag *diagnostics.Diagnostic

	v := &astVisitor{}
	v.selectClause = func(sc *tree.SelectClause) {
		if diag != nil || len(sc.From.Tables) == 0 {
			return
		}

		leftIDs := map[string]struct{}{}

		for i, te := range sc.From.Tables {
			if i == 0 {
				diag = walkJoinTree(te, leftIDs, sc.Where)
				if diag != nil {
					return
				}

				continue
			}

			rightIDs := map[string]struct{}{}

			if d := walkJoinTree(te, rightIDs, sc.Where); d != nil {
				diag = d
				return
			}

			// Implicit comma-join: only a linking WHERE predicate saves it.
			if !whereLinksTables(sc.Where, leftIDs, rightIDs) {
				diag = diagnostics.Warning(diagnostics.CrossJoinNoCondition,
					"join without condition produces a cartesian product").
					WithNote("add ON/USING, or a WHERE predicate linking both tables")

				return
			}

			foldIDs(leftIDs, rightIDs)
		}
	}
	v.statement(stmt)

	return diag
}

// walkJoinTree descends a FROM item, accumulating relation identifiers
// into ids and checking every explicit join it contains.
func walkJoinTree(expr tree.TableExpr, ids map[string]struct{}, where *tree.Where) *diagnostics.Diagnostic {
	switch t := expr.(type) {
	case *tree.AliasedTableExpr:
		if t.As.Alias != "" {
			ids[strings.ToLower(string(t.As.Alias))] = struct{}{}
		}

		if tn, ok := resolveTableExpr(t.Expr); ok {
			ids[strings.ToLower(string(tn.ObjectName))] = struct{}{}
			return nil
		}

		if t.As.Alias != "" {
			// Aliased subquery: the alias is its only identifier.
			return nil
		}

		return walkJoinTree(t.Expr, ids, where)
	case *tree.ParenTableExpr:
		return walkJoinTree(t.Expr, ids, where)
	case *tree.TableName:
		ids[strings.ToLower(string(t.ObjectName))] = struct{}{}
		return nil
	case *tree.UnresolvedObjectName:
		tn := t.ToTableName()
		ids[strings.ToLower(string(tn.ObjectName))] = struct{}{}

		return nil
	case *tree.JoinTableExpr:
		if d := walkJoinTree(t.Left, ids, where); d != nil {
			return d
		}

		rightIDs := map[string]struct{}{}
		if d := walkJoinTree(t.Right, rightIDs, where); d != nil {
			return d
		}

		isCross := t.JoinType == tree.AstCross
		hasCond := t.Cond != nil

		if isCross && !whereLinksTables(where, ids, rightIDs) {
			return diagnostics.Warning(diagnostics.CrossJoinNoCondition,
				"CROSS JOIN or join without condition produces a cartesian product").
				WithNote("this may return an extremely large result set")
		}

		if !isCross && !hasCond && !whereLinksTables(where, ids, rightIDs) {
			return diagnostics.Warning(diagnostics.CrossJoinNoCondition,
				"join without condition produces a cartesian product").
				WithNote("add ON/USING, or a WHERE predicate linking both tables")
		}

		foldIDs(ids, rightIDs)

		return nil
	default:
		return nil
	}
}

func foldIDs(dst, src map[string]struct{}) {
	for k := range src {
		dst[k] = struct{}{}
	}
}

// whereLinksTables reports whether the WHERE clause contains a comparison
// predicate referencing columns qualified by identifiers from both sides.
func whereLinksTables(where *tree.Where, leftIDs, rightIDs map[string]struct{}) bool {
	if where == nil {
		return false
	}

	linked := false

	walkExpr(where.Expr, func(x tree.Expr) {
		if linked {
			return
		}

		cmp, ok := x.(*tree.ComparisonExpr)
		if !ok {
			return
		}

		if _, ok := joinPredicateSymbols[cmp.Operator.Symbol]; !ok {
			return
		}

		refs := qualifierRefs(cmp)
		if intersects(refs, leftIDs) && intersects(refs, rightIDs) {
			linked = true
		}
	})

	return linked
}

// qualifierRefs collects the table qualifiers of every qualified column
// reference inside an expression, lower-cased.
func qualifierRefs(e tree.Expr) map[string]struct{} {
	refs := map[string]struct{}{}

	walkExpr(e, func(x tree.Expr) {
		if name, ok := x.(*tree.UnresolvedName); ok && name.NumParts >= 2 {
			refs[strings.ToLower(name.Parts[1])] = struct{}{}
		}
	})

	return refs
}

func intersects(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}

	return false
}

// CheckConstantCondition warns on constant WHERE conditions like
// WHERE 1=1 or WHERE true — tautologies typical of injection patterns.
func CheckConstantCondition(stmt tree.Statement) *diagnostics.Diagnostic {
	where := firstWhere(stmt)
	if where == nil {
		return nil
	}

	var diag *diagnostics.Diagnostic

	walkExpr(where.Expr, func(x tree.Expr) {
		if diag != nil {
			return
		}

		switch n := x.(type) {
		case *tree.DBool:
			if bool(*n) {
				diag = constantConditionDiag(n)
			}
		case *tree.ComparisonExpr:
			if n.Operator.Symbol != treecmp.EQ {
				return
			}

			if literalsEqual(n.Left, n.Right) {
				diag = constantConditionDiag(n)
			}
		}
	})

	return diag
}

func constantConditionDiag(node tree.Expr) *diagnostics.Diagnostic {
	return diagnostics.Warning(diagnostics.ConstantCondition,
		"constant WHERE condition: "+tree.AsString(node)).
		WithNote("possible SQL injection pattern or accidental tautology")
}

// literalsEqual reports whether two literal constants have matching
// string-ness and equal payload.
func literalsEqual(l, r tree.Expr) bool {
	if ls, ok := l.(*tree.StrVal); ok {
		rs, ok := r.(*tree.StrVal)
		return ok && ls.RawString() == rs.RawString()
	}

	if ln, ok := l.(*tree.NumVal); ok {
		rn, ok := r.(*tree.NumVal)
		return ok && tree.AsString(ln) == tree.AsString(rn)
	}

	return false
}

// firstWhere returns the root statement's WHERE clause: the select's for
// reads, the statement's own for UPDATE/DELETE.
func firstWhere(stmt tree.Statement) *tree.Where {
	switch s := stmt.(type) {
	case *tree.Select:
		if sc, ok := s.Select.(*tree.SelectClause); ok {
			return sc.Where
		}
	case *tree.ParenSelect:
		return firstWhere(s.Select)
	case *tree.Update:
		return s.Where
	case *tree.Delete:
		return s.Where
	}

	return nil
}

// CheckDangerousFunctions blocks calls to engine-specific system functions
// that can cause damage even inside a SELECT. The blocklist is supplied by
// the engine adapter, keyed on lower-cased function name; the first match
// fires.
func CheckDangerousFunctions(stmt tree.Statement, blocked map[string]struct{}) *diagnostics.Diagnostic {
	if len(blocked) == 0 {
		return nil
	}

	var diag *diagnostics.Diagnostic

	v := &astVisitor{}
	v.scalarExpr = func(e tree.Expr) {
		if diag != nil {
			return
		}

		fn, ok := e.(*tree.FuncExpr)
		if !ok {
			return
		}

		name := functionName(fn)
		if _, hit := blocked[strings.ToLower(name)]; hit {
			diag = diagnostics.Error(diagnostics.DangerousFunction,
				"dangerous function blocked: "+name).
				WithNote("this function can cause damage even inside a SELECT")
		}
	}
	v.statement(stmt)

	return diag
}

// functionName extracts the bare function name, dropping any schema prefix.
func functionName(fn *tree.FuncExpr) string {
	name := tree.AsString(&fn.Func)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}

	return name
}
