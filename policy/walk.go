package policy

import (
	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"
)

// astVisitor walks a statement tree, firing the configured callbacks for
// every select clause and every scalar expression it passes, including
// those inside CTE bodies and subqueries. Either callback may be nil.
type astVisitor struct {
	selectClause func(sc *tree.SelectClause)
	scalarExpr   func(e tree.Expr)
}

func (v *astVisitor) statement(stmt tree.Statement) {
	switch s := stmt.(type) {
	case *tree.Select:
		v.sel(s)
	case *tree.ParenSelect:
		v.statement(s.Select)
	case *tree.Insert:
		v.with(s.With)

		if s.Rows != nil {
			v.sel(s.Rows)
		}

		v.returning(s.Returning)
	case *tree.Update:
		v.with(s.With)

		for _, ue := range s.Exprs {
			v.expr(ue.Expr)
		}

		for _, te := range s.From {
			v.tableExpr(te)
		}

		v.where(s.Where)
		v.returning(s.Returning)
	case *tree.Delete:
		v.with(s.With)
		v.where(s.Where)
		v.returning(s.Returning)
	case *tree.CreateTable:
		if s.AsSource != nil {
			v.sel(s.AsSource)
		}
	}
}

func (v *astVisitor) with(w *tree.With) {
	if w == nil {
		return
	}

	for _, cte := range w.CTEList {
		v.statement(cte.Stmt)
	}
}

func (v *astVisitor) sel(s *tree.Select) {
	if s == nil {
		return
	}

	v.with(s.With)
	v.selBody(s.Select)

	for _, ob := range s.OrderBy {
		v.expr(ob.Expr)
	}

	if s.Limit != nil {
		v.expr(s.Limit.Count)
		v.expr(s.Limit.Offset)
	}
}

func (v *astVisitor) selBody(body tree.SelectStatement) {
	switch b := body.(type) {
	case *tree.SelectClause:
		if v.selectClause != nil {
			v.selectClause(b)
		}

		for _, te := range b.From.Tables {
			v.tableExpr(te)
		}

		for _, se := range b.Exprs {
			v.expr(se.Expr)
		}

		v.where(b.Where)
		v.where(b.Having)

		for _, g := range b.GroupBy {
			v.expr(g)
		}
	case *tree.UnionClause:
		v.sel(b.Left)
		v.sel(b.Right)
	case *tree.ValuesClause:
		for _, row := range b.Rows {
			for _, e := range row {
				v.expr(e)
			}
		}
	case *tree.ParenSelect:
		v.sel(b.Select)
	}
}

func (v *astVisitor) tableExpr(expr tree.TableExpr) {
	switch t := expr.(type) {
	case *tree.AliasedTableExpr:
		v.tableExpr(t.Expr)
	case *tree.ParenTableExpr:
		v.tableExpr(t.Expr)
	case *tree.JoinTableExpr:
		v.tableExpr(t.Left)
		v.tableExpr(t.Right)

		if on, ok := t.Cond.(*tree.OnJoinCond); ok {
			v.expr(on.Expr)
		}
	case *tree.Subquery:
		v.selBody(t.Select)
	}
}

func (v *astVisitor) where(w *tree.Where) {
	if w != nil {
		v.expr(w.Expr)
	}
}

func (v *astVisitor) returning(r tree.ReturningClause) {
	if exprs, ok := r.(*tree.ReturningExprs); ok {
		for _, se := range *exprs {
			v.expr(se.Expr)
		}
	}
}

// expr fires scalarExpr for every node of a scalar expression and descends
// into subqueries, which the expression walker does not enter on its own.
func (v *astVisitor) expr(e tree.Expr) {
	if e == nil {
		return
	}

	walkExpr(e, func(x tree.Expr) {
		if v.scalarExpr != nil {
			v.scalarExpr(x)
		}

		if sq, ok := x.(*tree.Subquery); ok {
			v.selBody(sq.Select)
		}
	})
}
