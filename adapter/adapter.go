// Package adapter defines the engine adapter contract consumed by the
// gateway — connect, dry-run, execute, introspect — together with the
// normalized cost model that makes byte-billed, unit-billed and row-billed
// engines comparable, and the concrete adapters for PostgreSQL, MySQL and
// SQLite built on database/sql.
package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mautbach/dbastion"
)

// Error definitions
var (
	// ErrConnection wraps connection establishment failures.
	ErrConnection = errors.New("database connection failed")
	// ErrQuery wraps engine-reported query failures.
	ErrQuery = errors.New("query execution failed")
	// ErrUnsupported wraps operations an engine cannot perform.
	ErrUnsupported = errors.New("operation not supported by this engine")
	// ErrMissingParam indicates a required connection parameter was absent.
	ErrMissingParam = errors.New("missing connection parameter")
)

// DatabaseType tags the engine an adapter drives.
type DatabaseType string

const (
	TypePostgres DatabaseType = "postgres"
	TypeMySQL    DatabaseType = "mysql"
	TypeSQLite   DatabaseType = "sqlite"
)

// ConnectionConfig identifies a target engine and its parameters.
type ConnectionConfig struct {
	Name   string
	Type   DatabaseType
	Params map[string]string
}

// CostUnit names the native unit of an engine's cost model.
type CostUnit string

const (
	UnitBytes      CostUnit = "bytes"
	UnitCostUnits  CostUnit = "cost_units"
	UnitPartitions CostUnit = "partitions"
)

// CostEstimate is the unified cost estimate across engines. Any field may
// be absent; the cost gate treats a missing field as "cannot evaluate this
// dimension".
type CostEstimate struct {
	RawValue         *float64
	Unit             CostUnit
	EstimatedGB      *float64
	EstimatedCostUSD *float64
	EstimatedRows    *float64
	PlanNode         string
	Warnings         []string
	Summary          string
}

// ExecutionResult carries the rows of an executed statement.
type ExecutionResult struct {
	Columns    []string
	Rows       []map[string]any
	RowCount   int
	Cost       *CostEstimate
	DurationMS float64
}

// IntrospectionLevel controls how deep Introspect descends.
type IntrospectionLevel string

const (
	IntrospectCatalog   IntrospectionLevel = "catalog"
	IntrospectStructure IntrospectionLevel = "structure"
)

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	Name     string
	DataType string
	Nullable bool
	Comment  string
}

// TableInfo describes one table.
type TableInfo struct {
	Schema           string
	Name             string
	RowCountEstimate *int64
	Columns          []ColumnInfo
}

// SchemaMetadata is the result of an Introspect call.
type SchemaMetadata struct {
	Tables []TableInfo
}

// Adapter is the engine contract the gateway consumes. Implementations own
// exactly one driver handle per instance and never mutate global state.
// Connect and Close are idempotent. DryRun returns (nil, nil) when the
// engine cannot estimate the given statement type — any other failure is
// an adapter error.
type Adapter interface {
	Connect(ctx context.Context, config ConnectionConfig) error
	Close() error

	// DryRun estimates the statement without side effects.
	DryRun(ctx context.Context, sqlText string) (*CostEstimate, error)

	// Execute runs the statement and returns all rows. Labels are attached
	// to the server-side session, natively or as a leading comment.
	Execute(ctx context.Context, sqlText string, labels map[string]string) (*ExecutionResult, error)

	Introspect(ctx context.Context, level IntrospectionLevel) (*SchemaMetadata, error)
	ListSchemas(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, schema string) ([]TableInfo, error)
	DescribeTable(ctx context.Context, table, schema string) (*TableInfo, error)

	Dialect() dbastion.Dialect
	Type() DatabaseType

	// DangerousFunctions returns lower-cased names of functions that can
	// cause damage even inside a SELECT.
	DangerousFunctions() map[string]struct{}
}

// openDatabase opens and pings a database/sql handle with the shared
// connection parameters.
func openDatabase(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	return db, nil
}

// labelComment renders session labels as a leading SQL comment, with keys
// sorted for a stable wire form.
func labelComment(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+labels[k])
	}

	return "/* dbastion: " + strings.Join(pairs, ", ") + " */ "
}

// scanRows drains a row set into column-keyed maps, converting []byte
// payloads to strings.
func scanRows(rows *sql.Rows) ([]string, []map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get column names: %w", err)
	}

	var out []map[string]any

	values := make([]any, len(columns))

	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = convertSQLValue(values[i])
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return columns, out, nil
}

// convertSQLValue converts driver values to JSON-friendly Go types
func convertSQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	return v
}

// isWriteWithoutReturning detects INSERT/UPDATE/DELETE without a RETURNING
// clause, which produce no row set and must go through Exec.
func isWriteWithoutReturning(sqlText string) bool {
	s := strings.ToUpper(strings.TrimSpace(sqlText))

	// Skip a leading comment block (session labels).
	if strings.HasPrefix(s, "/*") {
		if end := strings.Index(s, "*/"); end >= 0 {
			s = strings.TrimSpace(s[end+2:])
		}
	}

	if strings.HasPrefix(s, "INSERT") || strings.HasPrefix(s, "UPDATE") || strings.HasPrefix(s, "DELETE") {
		return !strings.Contains(s, " RETURNING ") && !strings.HasSuffix(s, " RETURNING")
	}

	return false
}

// floatPtr returns a pointer to a float64 value
func floatPtr(f float64) *float64 {
	return &f
}
