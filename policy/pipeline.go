package policy

import (
	"strings"

	"github.com/mautbach/dbastion/diagnostics"
)

// Options control a single pipeline run.
type Options struct {
	// Dialect is the advisory dialect tag; it is recorded with the result
	// and routed to engine adapters, not to the grammar.
	Dialect string

	// AllowWrite permits DML and DDL statements. ADMIN statements are
	// blocked regardless.
	AllowWrite bool

	// Limit is the auto-LIMIT value for unbounded SELECTs. Zero or
	// negative disables enrichment.
	Limit int

	// DangerousFunctions is the engine-supplied blocklist of lower-cased
	// function names.
	DangerousFunctions map[string]struct{}
}

// Run executes the full policy pipeline on a SQL string:
//
//  1. multiple-statement check (injection detection)
//  2. parse
//  3. classify and extract tables
//  4. access control (writes blocked unless allowed; admin always blocked)
//  5. safety checks in deterministic order
//  6. enrichment (auto-LIMIT) when nothing blocked a READ
//
// Diagnostics appear in the result in emission order; the verdict is
// blocked whenever any of them is an error.
func Run(sql string, opts Options) *diagnostics.Result {
	sql = strings.TrimSpace(sql)
	result := &diagnostics.Result{OriginalSQL: sql}

	// Step 1: multiple statement check
	if diag := CheckMultipleStatements(sql); diag != nil {
		result.Diagnostics = append(result.Diagnostics, diag)
		result.Blocked = true

		return result
	}

	// Step 2: parse
	stmt, err := parseOne(sql)
	if err != nil {
		result.Diagnostics = append(result.Diagnostics,
			diagnostics.Error(diagnostics.SyntaxError, "SQL syntax error: "+err.Error()))
		result.Blocked = true

		return result
	}

	// Step 3: classify and extract tables
	classification := Classify(stmt)
	result.Classification = string(classification)
	result.Tables = ExtractTables(stmt)

	// Step 4: access control
	switch classification {
	case ClassDML:
		if !opts.AllowWrite {
			result.Diagnostics = append(result.Diagnostics,
				diagnostics.Error(diagnostics.WriteBlocked, "write operation blocked").
					WithNote("pass --allow-write to enable DML operations"))
		}
	case ClassDDL:
		if !opts.AllowWrite {
			result.Diagnostics = append(result.Diagnostics,
				diagnostics.Error(diagnostics.DDLBlocked, "DDL operation blocked").
					WithNote("pass --allow-write to enable DDL operations"))
		}
	case ClassAdmin:
		result.Diagnostics = append(result.Diagnostics,
			diagnostics.Error(diagnostics.AdminBlocked, "administrative statement blocked").
				WithNote("privilege, bulk-copy and session-control statements are never executed"))
	case ClassUnknown:
		result.Diagnostics = append(result.Diagnostics,
			diagnostics.Error(diagnostics.StatementUnknown, "statement type could not be classified").
				WithNote("only statements positively identified as safe are allowed"))
	}

	// Step 5: safety checks, deterministic order
	for _, diag := range []*diagnostics.Diagnostic{
		CheckDeleteWithoutWhere(stmt),
		CheckUpdateWithoutWhere(stmt),
		CheckCrossJoinNoCondition(stmt),
		CheckConstantCondition(stmt),
		CheckDangerousFunctions(stmt, opts.DangerousFunctions),
	} {
		if diag != nil {
			result.Diagnostics = append(result.Diagnostics, diag)
		}
	}

	blocked := false

	for _, d := range result.Diagnostics {
		if d.IsBlocking() {
			blocked = true
		}
	}

	// Step 6: enrichment, only for unblocked reads
	if !blocked && classification == ClassRead && opts.Limit > 0 {
		enriched, diag := InjectLimit(stmt, opts.Limit)
		if diag != nil {
			result.Diagnostics = append(result.Diagnostics, diag)
			result.HealedSQL = deparse(enriched)
			result.Healed = true
		}
	}

	result.Blocked = blocked

	return result
}
