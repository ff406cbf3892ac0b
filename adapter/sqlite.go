package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mautbach/dbastion"
	_ "github.com/mattn/go-sqlite3" // register the sqlite3 driver
)

// SQLiteAdapter drives a local SQLite database. Dry-run uses
// EXPLAIN QUERY PLAN, which yields plan text but no numeric cost; the
// cost gate tolerates the gaps.
type SQLiteAdapter struct {
	db *sql.DB
}

func (a *SQLiteAdapter) Connect(ctx context.Context, config ConnectionConfig) error {
	if a.db != nil {
		return nil
	}

	path := config.Params["path"]
	if path == "" {
		path = ":memory:"
	}

	db, err := openDatabase(ctx, a.Dialect().DriverName(), path)
	if err != nil {
		return err
	}

	// Limit connections to avoid locking issues when multiple connections
	// are opened.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	a.db = db

	return nil
}

func (a *SQLiteAdapter) Close() error {
	if a.db == nil {
		return nil
	}

	err := a.db.Close()
	a.db = nil

	return err
}

func (a *SQLiteAdapter) conn() (*sql.DB, error) {
	if a.db == nil {
		return nil, dbastion.ErrNotConnected
	}

	return a.db, nil
}

func (a *SQLiteAdapter) DryRun(ctx context.Context, sqlText string) (*CostEstimate, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "EXPLAIN QUERY PLAN "+sqlText)
	if err != nil {
		// SQLite reports unsupported statement types as syntax errors.
		if strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: EXPLAIN QUERY PLAN failed: %w", ErrQuery, err)
	}
	defer rows.Close()

	var details []string

	for rows.Next() {
		var id, parent, notUsed int

		var detail string

		if err := rows.Scan(&id, &parent, &notUsed, &detail); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQuery, err)
		}

		details = append(details, detail)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}

	// DDL produces an empty plan: nothing to estimate.
	if len(details) == 0 {
		return nil, nil
	}

	return parseSQLitePlan(details), nil
}

func (a *SQLiteAdapter) Execute(ctx context.Context, sqlText string, labels map[string]string) (*ExecutionResult, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}

	sqlText = labelComment(labels) + sqlText
	start := time.Now()

	if isWriteWithoutReturning(sqlText) {
		res, err := db.ExecContext(ctx, sqlText)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQuery, err)
		}

		affected, _ := res.RowsAffected()
		lastID, _ := res.LastInsertId()

		return &ExecutionResult{
			Columns:    []string{"rows_affected", "last_insert_id"},
			Rows:       []map[string]any{{"rows_affected": affected, "last_insert_id": lastID}},
			RowCount:   1,
			DurationMS: float64(time.Since(start)) / float64(time.Millisecond),
		}, nil
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	defer rows.Close()

	columns, data, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}

	return &ExecutionResult{
		Columns:    columns,
		Rows:       data,
		RowCount:   len(data),
		DurationMS: float64(time.Since(start)) / float64(time.Millisecond),
	}, nil
}

func (a *SQLiteAdapter) Introspect(ctx context.Context, level IntrospectionLevel) (*SchemaMetadata, error) {
	tables, err := a.ListTables(ctx, "")
	if err != nil {
		return nil, err
	}

	if level == IntrospectCatalog {
		return &SchemaMetadata{Tables: tables}, nil
	}

	for i := range tables {
		columns, err := a.tableColumns(ctx, tables[i].Name)
		if err != nil {
			return nil, err
		}

		tables[i].Columns = columns
	}

	return &SchemaMetadata{Tables: tables}, nil
}

func (a *SQLiteAdapter) tableColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT name, type, \"notnull\" FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	defer rows.Close()

	var columns []ColumnInfo

	for rows.Next() {
		var (
			name, dataType string
			notNull        int
		)

		if err := rows.Scan(&name, &dataType, &notNull); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQuery, err)
		}

		columns = append(columns, ColumnInfo{Name: name, DataType: dataType, Nullable: notNull == 0})
	}

	return columns, rows.Err()
}

func (a *SQLiteAdapter) ListSchemas(ctx context.Context) ([]string, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_database_list ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("%w: list schemas failed: %w", ErrQuery, err)
	}
	defer rows.Close()

	var schemas []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQuery, err)
		}

		schemas = append(schemas, name)
	}

	return schemas, rows.Err()
}

func (a *SQLiteAdapter) ListTables(ctx context.Context, schema string) ([]TableInfo, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}

	if schema == "" {
		schema = "main"
	}

	quoted := `"` + strings.ReplaceAll(schema, `"`, `""`) + `"`

	rows, err := db.QueryContext(ctx,
		`SELECT name FROM `+quoted+`.sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: list tables failed: %w", ErrQuery, err)
	}
	defer rows.Close()

	var tables []TableInfo

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQuery, err)
		}

		tables = append(tables, TableInfo{Schema: schema, Name: name})
	}

	return tables, rows.Err()
}

func (a *SQLiteAdapter) DescribeTable(ctx context.Context, table, schema string) (*TableInfo, error) {
	if schema == "" {
		schema = "main"
	}

	columns, err := a.tableColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	return &TableInfo{Schema: schema, Name: table, Columns: columns}, nil
}

func (a *SQLiteAdapter) Dialect() dbastion.Dialect {
	return dbastion.DialectSQLite
}

func (a *SQLiteAdapter) Type() DatabaseType {
	return TypeSQLite
}

func (a *SQLiteAdapter) DangerousFunctions() map[string]struct{} {
	return map[string]struct{}{
		// extension loading
		"load_extension": {},
		// file system access (CLI builds)
		"readfile":  {},
		"writefile": {},
		"edit":      {},
	}
}
