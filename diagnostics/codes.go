package diagnostics

import "fmt"

// Code is a stable, searchable diagnostic code rendered as Q<nnnn>.
//
// Ranges:
//   - Q0001  — general (syntax errors)
//   - Q01xx  — schema validation
//   - Q02xx  — safety checks
//   - Q03xx  — classification / access control
//   - Q04xx  — cost estimation
//   - Q05xx  — data warnings
//   - Q06xx  — enrichment (info-level)
//
// New codes must take unused numbers in the matching band.
type Code int

const (
	// General
	SyntaxError Code = 1

	// Schema validation (Q01xx)
	TableNotFound   Code = 101
	ColumnNotFound  Code = 102
	AmbiguousColumn Code = 103

	// Safety checks (Q02xx)
	DeleteWithoutWhere   Code = 201
	MultipleStatements   Code = 202
	UpdateWithoutWhere   Code = 203
	CrossJoinNoCondition Code = 204
	ConstantCondition    Code = 205
	DangerousFunction    Code = 206

	// Classification / access control (Q03xx)
	WriteBlocked     Code = 301
	DDLBlocked       Code = 302
	AdminBlocked     Code = 303
	StatementUnknown Code = 304

	// Cost estimation (Q04xx)
	CostOverThreshold Code = 401
	FullTableScan     Code = 402

	// Data warnings (Q05xx)
	ValueNotInColumn Code = 501
	TypeMismatch     Code = 502

	// Enrichment (Q06xx)
	LimitInjected      Code = 601
	SelectStarExpanded Code = 602
)

func (c Code) String() string {
	return fmt.Sprintf("Q%04d", int(c))
}
