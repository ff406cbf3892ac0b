// Package policy implements the decision pipeline that sits between a raw
// SQL string and an engine: parsing, classification, table extraction,
// safety checks, enrichment, and the access verdict. All findings are
// diagnostics values; nothing in this package touches a database.
package policy

import (
	"fmt"

	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/parser"
	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"
)

// parseOne parses sql into a single statement AST. The dialect tag is
// advisory: the grammar is PostgreSQL-family, and the tag is routed to the
// engine adapters rather than to the parser. Tokenizer panics on malformed
// input (unclosed strings, embedded NUL) are recovered and surfaced as
// parse errors so the pipeline can emit a syntax diagnostic instead of
// crashing.
func parseOne(sql string) (stmt tree.Statement, err error) {
	defer func() {
		if r := recover(); r != nil {
			stmt = nil
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()

	s, err := parser.ParseOne(sql)
	if err != nil {
		return nil, err
	}

	return s.AST, nil
}

// countStatements reports how many non-empty statements sql contains.
// Tokenizer failures count as a single statement so the error surfaces
// through the single-statement parse path instead.
func countStatements(sql string) (n int) {
	defer func() {
		if r := recover(); r != nil {
			n = 1
		}
	}()

	stmts, err := parser.Parse(sql)
	if err != nil {
		return 1
	}

	for _, s := range stmts {
		if s.AST != nil {
			n++
		}
	}

	return n
}

// deparse re-serializes a statement AST. Used after structural rewrites
// (enrichment) to produce the healed SQL.
func deparse(stmt tree.Statement) string {
	return tree.AsString(stmt)
}

// exprVisitor adapts a callback to the parser's expression visitor.
type exprVisitor struct {
	fn func(tree.Expr)
}

func (v *exprVisitor) VisitPre(expr tree.Expr) (bool, tree.Expr) {
	v.fn(expr)
	return true, expr
}

func (v *exprVisitor) VisitPost(expr tree.Expr) tree.Expr {
	return expr
}

// walkExpr invokes fn on expr and every sub-expression. Subquery bodies
// are not entered; fn sees the *tree.Subquery node and callers that need
// its select scope descend into it themselves.
func walkExpr(expr tree.Expr, fn func(tree.Expr)) {
	if expr == nil {
		return
	}

	tree.WalkExpr(&exprVisitor{fn: fn}, expr)
}

// tableNameString renders a table reference as schema.table, omitting the
// schema qualifier when it was not written. Unquoted identifiers arrive
// already case-folded by the parser.
func tableNameString(tn *tree.TableName) string {
	name := string(tn.ObjectName)
	if tn.ExplicitSchema {
		return string(tn.SchemaName) + "." + name
	}

	return name
}

// resolveTableExpr unwraps aliasing and parentheses down to a physical
// table name, if the expression is one.
func resolveTableExpr(expr tree.TableExpr) (*tree.TableName, bool) {
	switch t := expr.(type) {
	case *tree.TableName:
		return t, true
	case *tree.UnresolvedObjectName:
		tn := t.ToTableName()
		return &tn, true
	case *tree.AliasedTableExpr:
		return resolveTableExpr(t.Expr)
	case *tree.ParenTableExpr:
		return resolveTableExpr(t.Expr)
	default:
		return nil, false
	}
}
