package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mautbach/dbastion"
)

// MySQL error numbers raised when EXPLAIN is handed a statement it cannot
// plan.
const (
	mysqlErrSyntax       = 1064
	mysqlErrNotSupported = 1235
)

// MySQLAdapter drives MySQL/MariaDB through go-sql-driver. Dry-run uses
// EXPLAIN FORMAT=JSON; labels ride as a leading SQL comment.
type MySQLAdapter struct {
	db *sql.DB
}

func (a *MySQLAdapter) Connect(ctx context.Context, config ConnectionConfig) error {
	if a.db != nil {
		return nil
	}

	dsn := config.Params["dsn"]
	if dsn == "" {
		return fmt.Errorf("%w: mysql requires 'dsn'", ErrMissingParam)
	}

	db, err := openDatabase(ctx, a.Dialect().DriverName(), dsn)
	if err != nil {
		return err
	}

	a.db = db

	return nil
}

func (a *MySQLAdapter) Close() error {
	if a.db == nil {
		return nil
	}

	err := a.db.Close()
	a.db = nil

	return err
}

func (a *MySQLAdapter) conn() (*sql.DB, error) {
	if a.db == nil {
		return nil, dbastion.ErrNotConnected
	}

	return a.db, nil
}

func (a *MySQLAdapter) DryRun(ctx context.Context, sqlText string) (*CostEstimate, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}

	var plan []byte

	err = db.QueryRowContext(ctx, "EXPLAIN FORMAT=JSON "+sqlText).Scan(&plan)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) {
			if myErr.Number == mysqlErrSyntax || myErr.Number == mysqlErrNotSupported {
				return nil, nil
			}
		}

		return nil, fmt.Errorf("%w: EXPLAIN failed: %w", ErrQuery, err)
	}

	estimate, err := parseMySQLPlan(plan)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}

	return estimate, nil
}

func (a *MySQLAdapter) Execute(ctx context.Context, sqlText string, labels map[string]string) (*ExecutionResult, error) {
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

func (a *MySQLAdapter) Introspect(ctx context.Context, level IntrospectionLevel) (*SchemaMetadata, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT table_schema, table_name
		 FROM information_schema.tables
		 WHERE table_schema NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
		 ORDER BY table_schema, table_name`)
	if err != nil {
		return nil, fmt.Errorf("%w: introspection failed: %w", ErrQuery, err)
	}
	defer rows.Close()

	var tables []TableInfo

	for rows.Next() {
		var schema, name string
		if err := rows.Scan(&schema, &name); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQuery, err)
		}

		tables = append(tables, TableInfo{Schema: schema, Name: name})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}

	if level == IntrospectCatalog {
		return &SchemaMetadata{Tables: tables}, nil
	}

	for i := range tables {
		columns, err := a.tableColumns(ctx, tables[i].Schema, tables[i].Name)
		if err != nil {
			return nil, err
		}

		tables[i].Columns = columns
	}

	return &SchemaMetadata{Tables: tables}, nil
}

func (a *MySQLAdapter) tableColumns(ctx context.Context, schema, table string) ([]ColumnInfo, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT column_name, data_type, is_nullable, column_comment
		 FROM information_schema.columns
		 WHERE table_schema = ? AND table_name = ?
		 ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	defer rows.Close()

	var columns []ColumnInfo

	for rows.Next() {
		var name, dataType, nullable, comment string
		if err := rows.Scan(&name, &dataType, &nullable, &comment); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQuery, err)
		}

		columns = append(columns, ColumnInfo{
			Name:     name,
			DataType: dataType,
			Nullable: nullable == "YES",
			Comment:  comment,
		})
	}

	return columns, rows.Err()
}

func (a *MySQLAdapter) ListSchemas(ctx context.Context) ([]string, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT schema_name FROM information_schema.schemata
		 WHERE schema_name NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
		 ORDER BY schema_name`)
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

func (a *MySQLAdapter) ListTables(ctx context.Context, schema string) ([]TableInfo, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}

	query := `SELECT table_schema, table_name FROM information_schema.tables
		 WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		 ORDER BY table_name`

	rows, err := db.QueryContext(ctx, query, schema)
	if err != nil {
		return nil, fmt.Errorf("%w: list tables failed: %w", ErrQuery, err)
	}
	defer rows.Close()

	var tables []TableInfo

	for rows.Next() {
		var tableSchema, name string
		if err := rows.Scan(&tableSchema, &name); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQuery, err)
		}

		tables = append(tables, TableInfo{Schema: tableSchema, Name: name})
	}

	return tables, rows.Err()
}

func (a *MySQLAdapter) DescribeTable(ctx context.Context, table, schema string) (*TableInfo, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}

	if schema == "" {
		if err := db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&schema); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQuery, err)
		}
	}

	columns, err := a.tableColumns(ctx, schema, table)
	if err != nil {
		return nil, err
	}

	info := &TableInfo{Schema: schema, Name: table, Columns: columns}

	var estimate sql.NullInt64

	err = db.QueryRowContext(ctx,
		`SELECT table_rows FROM information_schema.tables
		 WHERE table_schema = ? AND table_name = ?`, schema, table).Scan(&estimate)
	if err == nil && estimate.Valid {
		info.RowCountEstimate = &estimate.Int64
	}

	return info, nil
}

func (a *MySQLAdapter) Dialect() dbastion.Dialect {
	return dbastion.DialectMySQL
}

func (a *MySQLAdapter) Type() DatabaseType {
	return TypeMySQL
}

func (a *MySQLAdapter) DangerousFunctions() map[string]struct{} {
	return map[string]struct{}{
		// timing / DoS primitives
		"sleep":     {},
		"benchmark": {},
		// user-level locks
		"get_lock":     {},
		"release_lock": {},
		// file system access
		"load_file": {},
		// replication control
		"master_pos_wait": {},
	}
}
