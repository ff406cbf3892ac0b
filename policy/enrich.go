package policy

import (
	"fmt"

	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"

	"github.com/mautbach/dbastion/diagnostics"
)

// DefaultLimit is the row cap injected into unbounded reads.
const DefaultLimit = 1000

// InjectLimit adds LIMIT to unbounded SELECT statements, returning the
// (possibly modified) statement and an info diagnostic when the limit was
// added. No LIMIT is added when:
//   - the statement is not a plain SELECT (set operations are left alone)
//   - a LIMIT is already present
//   - a GROUP BY is present (aggregations naturally bound the result)
//
// The rewrite is structural, so no byte span is attached; callers
// re-serialize the statement to obtain the healed SQL.
func InjectLimit(stmt tree.Statement, limit int) (tree.Statement, *diagnostics.Diagnostic) {
	sel, ok := stmt.(*tree.Select)
	if !ok {
		return stmt, nil
	}

	clause, ok := sel.Select.(*tree.SelectClause)
	if !ok {
		return stmt, nil
	}

	if sel.Limit != nil && sel.Limit.Count != nil {
		return stmt, nil
	}

	if len(clause.GroupBy) > 0 {
		return stmt, nil
	}

	if sel.Limit != nil {
		// OFFSET without LIMIT: keep the offset, cap the count.
		sel.Limit.Count = tree.NewDInt(tree.DInt(limit))
	} else {
		sel.Limit = &tree.Limit{Count: tree.NewDInt(tree.DInt(limit))}
	}

	diag := diagnostics.Info(diagnostics.LimitInjected,
		fmt.Sprintf("LIMIT %d added to unbounded SELECT", limit)).
		WithNote("override with --no-limit or --limit N")

	return sel, diag
}
