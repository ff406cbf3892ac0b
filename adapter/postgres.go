package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx driver
	"github.com/mautbach/dbastion"
)

// SQLSTATEs Postgres raises when EXPLAIN is handed a statement it cannot
// plan (DDL and most utility statements).
const (
	pgSyntaxError         = "42601"
	pgFeatureNotSupported = "0A000"
)

// PostgresAdapter drives PostgreSQL through the pgx stdlib driver.
// Dry-run uses EXPLAIN (FORMAT JSON); labels ride as a leading SQL
// comment.
type PostgresAdapter struct {
	db *sql.DB
}

func (a *PostgresAdapter) Connect(ctx context.Context, config ConnectionConfig) error {
	if a.db != nil {
		return nil
	}

	dsn := config.Params["dsn"]
	if dsn == "" {
		return fmt.Errorf("%w: postgres requires 'dsn'", ErrMissingParam)
	}

	db, err := openDatabase(ctx, a.Dialect().DriverName(), dsn)
	if err != nil {
		return err
	}

	a.db = db

	return nil
}

func (a *PostgresAdapter) Close() error {
	if a.db == nil {
		return nil
	}

	err := a.db.Close()
	a.db = nil

	return err
}

func (a *PostgresAdapter) conn() (*sql.DB, error) {
	if a.db == nil {
		return nil, dbastion.ErrNotConnected
	}

	return a.db, nil
}

func (a *PostgresAdapter) DryRun(ctx context.Context, sqlText string) (*CostEstimate, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}

	var plan []byte

	err = db.QueryRowContext(ctx, "EXPLAIN (FORMAT JSON) "+sqlText).Scan(&plan)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// EXPLAIN only supports SELECT/INSERT/UPDATE/DELETE — DDL
			// produces a syntax error, which means "cannot estimate".
			if pgErr.Code == pgSyntaxError || pgErr.Code == pgFeatureNotSupported {
				return nil, nil
			}
		}

		return nil, fmt.Errorf("%w: EXPLAIN failed: %w", ErrQuery, err)
	}

	estimate, err := parsePostgresPlan(plan)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}

	return estimate, nil
}

func (a *PostgresAdapter) Execute(ctx context.Context, sqlText string, labels map[string]string) (*ExecutionResult, error) {
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

		return &ExecutionResult{
			Columns:    []string{"rows_affected"},
			Rows:       []map[string]any{{"rows_affected": affected}},
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

func (a *PostgresAdapter) Introspect(ctx context.Context, level IntrospectionLevel) (*SchemaMetadata, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT table_schema, table_name
		 FROM information_schema.tables
		 WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
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

func (a *PostgresAdapter) tableColumns(ctx context.Context, schema, table string) ([]ColumnInfo, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT column_name, data_type, is_nullable
		 FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2
		 ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	defer rows.Close()

	var columns []ColumnInfo

	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQuery, err)
		}

		columns = append(columns, ColumnInfo{Name: name, DataType: dataType, Nullable: nullable == "YES"})
	}

	return columns, rows.Err()
}

func (a *PostgresAdapter) ListSchemas(ctx context.Context) ([]string, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT schema_name FROM information_schema.schemata
		 WHERE schema_name NOT IN ('pg_catalog', 'information_schema')
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

func (a *PostgresAdapter) ListTables(ctx context.Context, schema string) ([]TableInfo, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}

	if schema == "" {
		schema = "public"
	}

	rows, err := db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = $1 ORDER BY table_name`, schema)
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

func (a *PostgresAdapter) DescribeTable(ctx context.Context, table, schema string) (*TableInfo, error) {
	db, err := a.conn()
	if err != nil {
		return nil, err
	}

	if schema == "" {
		schema = "public"
	}

	columns, err := a.tableColumns(ctx, schema, table)
	if err != nil {
		return nil, err
	}

	info := &TableInfo{Schema: schema, Name: table, Columns: columns}

	var estimate int64

	err = db.QueryRowContext(ctx,
		`SELECT reltuples::bigint FROM pg_class c
		 JOIN pg_namespace n ON n.oid = c.relnamespace
		 WHERE n.nspname = $1 AND c.relname = $2`, schema, table).Scan(&estimate)
	if err == nil && estimate >= 0 {
		info.RowCountEstimate = &estimate
	}

	return info, nil
}

func (a *PostgresAdapter) Dialect() dbastion.Dialect {
	return dbastion.DialectPostgres
}

func (a *PostgresAdapter) Type() DatabaseType {
	return TypePostgres
}

func (a *PostgresAdapter) DangerousFunctions() map[string]struct{} {
	return map[string]struct{}{
		// process control
		"pg_terminate_backend": {},
		"pg_cancel_backend":    {},
		// file system access
		"pg_read_file":        {},
		"pg_read_binary_file": {},
		// large object I/O
		"lo_import": {},
		"lo_export": {},
		// advisory locks
		"pg_advisory_lock":      {},
		"pg_advisory_xact_lock": {},
		// config mutation
		"set_config": {},
		// replication / WAL
		"pg_switch_wal":           {},
		"pg_create_restore_point": {},
	}
}
