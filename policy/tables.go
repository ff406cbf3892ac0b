package policy

import (
	"sort"
	"strings"

	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"
)

// ExtractTables resolves the physical tables a statement references.
// CTE alias names are subtracted so only real tables remain; DML targets
// are added explicitly because they sit outside any select scope; DDL
// statements are covered by a plain walk over their name lists. The
// extractor never fails — unrecognized node shapes simply contribute
// nothing.
func ExtractTables(stmt tree.Statement) []string {
	c := &tableCollector{
		cteNames: map[string]struct{}{},
		tables:   map[string]struct{}{},
	}

	c.collectCTENames(stmt)
	c.statement(stmt)

	out := make([]string, 0, len(c.tables))
	for name := range c.tables {
		out = append(out, name)
	}

	sort.Strings(out)

	return out
}

type tableCollector struct {
	cteNames map[string]struct{}
	tables   map[string]struct{}
}

func (c *tableCollector) add(tn *tree.TableName) {
	name := tableNameString(tn)
	if name == "" {
		return
	}

	// Unqualified references to a CTE binding are not physical tables.
	if !tn.ExplicitSchema {
		if _, ok := c.cteNames[strings.ToLower(name)]; ok {
			return
		}
	}

	c.tables[name] = struct{}{}
}

// collectCTENames gathers every WITH alias reachable from the statement so
// references to them can be excluded from the physical table set.
func (c *tableCollector) collectCTENames(stmt tree.Statement) {
	var with *tree.With

	switch s := stmt.(type) {
	case *tree.Select:
		visitCTEs(s, func(cte *tree.CTE) {
			c.cteNames[strings.ToLower(string(cte.Name.Alias))] = struct{}{}
			c.collectCTENames(cte.Stmt)
		})

		return
	case *tree.ParenSelect:
		c.collectCTENames(s.Select)
		return
	case *tree.Insert:
		with = s.With
	case *tree.Update:
		with = s.With
	case *tree.Delete:
		with = s.With
	}

	if with == nil {
		return
	}

	for _, cte := range with.CTEList {
		c.cteNames[strings.ToLower(string(cte.Name.Alias))] = struct{}{}
		c.collectCTENames(cte.Stmt)
	}
}

func (c *tableCollector) statement(stmt tree.Statement) {
	switch s := stmt.(type) {
	case *tree.Select:
		c.sel(s)
	case *tree.ParenSelect:
		c.statement(s.Select)
	case *tree.Insert:
		c.withBodies(s.With)
		c.target(s.Table)

		if s.Rows != nil {
			c.sel(s.Rows)
		}

		c.returning(s.Returning)
	case *tree.Update:
		c.withBodies(s.With)
		c.target(s.Table)

		for _, ue := range s.Exprs {
			c.expr(ue.Expr)
		}

		for _, te := range s.From {
			c.tableExpr(te)
		}

		c.where(s.Where)
		c.returning(s.Returning)
	case *tree.Delete:
		c.withBodies(s.With)
		c.target(s.Table)
		c.where(s.Where)
		c.returning(s.Returning)
	case *tree.Truncate:
		for i := range s.Tables {
			c.add(&s.Tables[i])
		}
	case *tree.CreateTable:
		c.add(&s.Table)

		if s.AsSource != nil {
			c.sel(s.AsSource)
		}
	case *tree.DropTable:
		for i := range s.Names {
			c.add(&s.Names[i])
		}
	case *tree.AlterTable:
		if s.Table != nil {
			tn := s.Table.ToTableName()
			c.add(&tn)
		}
	case *tree.CreateIndex:
		c.add(&s.Table)
	}
}

// target records a DML target table. Targets are not inside any select
// scope, so they never collide with CTE lookup order.
func (c *tableCollector) target(expr tree.TableExpr) {
	if tn, ok := resolveTableExpr(expr); ok {
		c.add(tn)
	}
}

func (c *tableCollector) withBodies(with *tree.With) {
	if with == nil {
		return
	}

	for _, cte := range with.CTEList {
		c.statement(cte.Stmt)
	}
}

func (c *tableCollector) sel(s *tree.Select) {
	if s == nil {
		return
	}

	if s.With != nil {
		for _, cte := range s.With.CTEList {
			c.statement(cte.Stmt)
		}
	}

	c.selBody(s.Select)

	for _, ob := range s.OrderBy {
		c.expr(ob.Expr)
	}

	if s.Limit != nil {
		c.expr(s.Limit.Count)
		c.expr(s.Limit.Offset)
	}
}

func (c *tableCollector) selBody(body tree.SelectStatement) {
	switch b := body.(type) {
	case *tree.SelectClause:
		for _, te := range b.From.Tables {
			c.tableExpr(te)
		}

		for _, se := range b.Exprs {
			c.expr(se.Expr)
		}

		c.where(b.Where)
		c.where(b.Having)

		for _, g := range b.GroupBy {
			c.expr(g)
		}
	case *tree.UnionClause:
		c.sel(b.Left)
		c.sel(b.Right)
	case *tree.ValuesClause:
		for _, row := range b.Rows {
			for _, e := range row {
				c.expr(e)
			}
		}
	case *tree.ParenSelect:
		c.sel(b.Select)
	}
}

func (c *tableCollector) tableExpr(expr tree.TableExpr) {
	switch t := expr.(type) {
	case *tree.AliasedTableExpr:
		c.tableExpr(t.Expr)
	case *tree.ParenTableExpr:
		c.tableExpr(t.Expr)
	case *tree.JoinTableExpr:
		c.tableExpr(t.Left)
		c.tableExpr(t.Right)

		if on, ok := t.Cond.(*tree.OnJoinCond); ok {
			c.expr(on.Expr)
		}
	case *tree.Subquery:
		c.selBody(t.Select)
	case *tree.TableName:
		c.add(t)
	case *tree.UnresolvedObjectName:
		tn := t.ToTableName()
		c.add(&tn)
	}
}

func (c *tableCollector) where(w *tree.Where) {
	if w != nil {
		c.expr(w.Expr)
	}
}

func (c *tableCollector) returning(r tree.ReturningClause) {
	if exprs, ok := r.(*tree.ReturningExprs); ok {
		for _, se := range *exprs {
			c.expr(se.Expr)
		}
	}
}

// expr scans a scalar expression for subqueries, which carry their own
// select scopes.
func (c *tableCollector) expr(e tree.Expr) {
	walkExpr(e, func(x tree.Expr) {
		if sq, ok := x.(*tree.Subquery); ok {
			c.selBody(sq.Select)
		}
	})
}
