package policy

import (
	"strings"

	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"
)

// Classification buckets a statement by the kind of damage it can do.
type Classification string

const (
	ClassRead    Classification = "read"
	ClassDML     Classification = "dml"
	ClassDDL     Classification = "ddl"
	ClassAdmin   Classification = "admin"
	ClassUnknown Classification = "unknown"
)

// Classify buckets a parsed statement. Purely structural; the database is
// never consulted.
//
// Security-critical: anything that cannot be positively identified as a
// safe READ falls into DML, DDL, ADMIN or UNKNOWN — all blocked by
// default. In particular:
//   - writable CTEs (WITH d AS (DELETE ...) SELECT ...) escalate to DML
//   - GRANT/REVOKE/COPY are ADMIN and always blocked
//   - TRUNCATE is DDL
//   - statements the grammar decodes but this switch does not (SET, SHOW,
//     PREPARE, ...) are UNKNOWN and blocked by the access check
//
// MERGE and SELECT INTO have no node in this grammar; they never reach the
// classifier and fail closed as parse errors upstream.
func Classify(stmt tree.Statement) Classification {
	switch s := stmt.(type) {
	case *tree.Grant, *tree.Revoke, *tree.CopyFrom, *tree.CopyTo:
		return ClassAdmin
	case *tree.Select:
		if hasDMLInCTE(s) {
			return ClassDML
		}

		return ClassRead
	case *tree.ParenSelect:
		return Classify(s.Select)
	case *tree.Insert, *tree.Update, *tree.Delete:
		return ClassDML
	case *tree.Truncate:
		return ClassDDL
	}

	tag := stmt.StatementTag()
	for _, prefix := range []string{"CREATE", "DROP", "ALTER", "RENAME", "COMMENT"} {
		if strings.HasPrefix(tag, prefix) {
			return ClassDDL
		}
	}

	return ClassUnknown
}

// hasDMLInCTE reports whether any common table expression reachable from
// the select — including CTEs of nested set operations — binds a DML
// statement.
func hasDMLInCTE(sel *tree.Select) bool {
	found := false

	visitCTEs(sel, func(cte *tree.CTE) {
		switch cte.Stmt.(type) {
		case *tree.Insert, *tree.Update, *tree.Delete:
			found = true
		}
	})

	return found
}

// visitCTEs walks every WITH binding reachable from the select statement.
func visitCTEs(sel *tree.Select, fn func(*tree.CTE)) {
	if sel == nil {
		return
	}

	if sel.With != nil {
		for _, cte := range sel.With.CTEList {
			fn(cte)

			if inner, ok := cte.Stmt.(*tree.Select); ok {
				visitCTEs(inner, fn)
			}
		}
	}

	switch body := sel.Select.(type) {
	case *tree.UnionClause:
		visitCTEs(body.Left, fn)
		visitCTEs(body.Right, fn)
	case *tree.ParenSelect:
		visitCTEs(body.Select, fn)
	}
}
