package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mautbach/dbastion/adapter"
	"github.com/mautbach/dbastion/connection"
)

// SchemaCmd represents the schema command group: drill-down introspection
// (schemas → tables → columns).
type SchemaCmd struct {
	Ls   SchemaLsCmd   `cmd:"" help:"List schemas, or tables within a schema"`
	Show SchemaShowCmd `cmd:"" help:"Show columns of a table"`
}

// SchemaLsCmd lists schemas, or the tables of one schema.
type SchemaLsCmd struct {
	Name   string `arg:"" optional:"" help:"Schema name to list tables of"`
	DB     string `required:"" env:"DBASTION_DB" help:"Connection name or type:key=val."`
	Format string `help:"Output format" enum:"json,text" default:"json"`
}

// Run executes the schema ls command
func (cmd *SchemaLsCmd) Run(ctx *Context) error {
	return withAdapter(cmd.DB, cmd.Format, func(eng adapter.Adapter) error {
		runCtx, stop := signalContext()
		defer stop()

		if cmd.Name != "" {
			tables, err := eng.ListTables(runCtx, cmd.Name)
			if err != nil {
				return err
			}

			if cmd.Format == "json" {
				names := make([]string, 0, len(tables))
				for _, t := range tables {
					names = append(names, t.Name)
				}

				return printJSON(map[string]any{"schema": cmd.Name, "tables": names})
			}

			if len(tables) == 0 {
				fmt.Printf("No tables in '%s'.\n", cmd.Name)
				return nil
			}

			for _, t := range tables {
				fmt.Println(t.Name)
			}

			return nil
		}

		schemas, err := eng.ListSchemas(runCtx)
		if err != nil {
			return err
		}

		if cmd.Format == "json" {
			if schemas == nil {
				schemas = []string{}
			}

			return printJSON(map[string]any{"schemas": schemas})
		}

		if len(schemas) == 0 {
			fmt.Println("No schemas found.")
			return nil
		}

		for _, s := range schemas {
			fmt.Println(s)
		}

		return nil
	})
}

// SchemaShowCmd shows the columns of one table.
type SchemaShowCmd struct {
	TableRef string `arg:"" help:"schema.table or just table"`
	DB       string `required:"" env:"DBASTION_DB" help:"Connection name or type:key=val."`
	Format   string `help:"Output format" enum:"json,text" default:"json"`
}

// Run executes the schema show command
func (cmd *SchemaShowCmd) Run(ctx *Context) error {
	schemaName, tableName, found := strings.Cut(cmd.TableRef, ".")
	if !found {
		schemaName, tableName = "", cmd.TableRef
	}

	return withAdapter(cmd.DB, cmd.Format, func(eng adapter.Adapter) error {
		runCtx, stop := signalContext()
		defer stop()

		info, err := eng.DescribeTable(runCtx, tableName, schemaName)
		if err != nil {
			return err
		}

		if cmd.Format == "json" {
			doc := map[string]any{
				"schema": info.Schema,
				"table":  info.Name,
			}
			if info.RowCountEstimate != nil {
				doc["row_count_estimate"] = *info.RowCountEstimate
			}

			columns := make([]map[string]any, 0, len(info.Columns))

			for _, c := range info.Columns {
				col := map[string]any{
					"name":     c.Name,
					"type":     c.DataType,
					"nullable": c.Nullable,
				}
				if c.Comment != "" {
					col["comment"] = c.Comment
				}

				columns = append(columns, col)
			}

			doc["columns"] = columns

			return printJSON(doc)
		}

		fmt.Printf("%s.%s\n", info.Schema, info.Name)

		if info.RowCountEstimate != nil {
			fmt.Printf("  rows: ~%d\n", *info.RowCountEstimate)
		}

		for _, c := range info.Columns {
			nullable := "NULL"
			if !c.Nullable {
				nullable = "NOT NULL"
			}

			line := fmt.Sprintf("  %s  %s  %s", c.Name, c.DataType, nullable)
			if c.Comment != "" {
				line += "  -- " + c.Comment
			}

			fmt.Println(line)
		}

		return nil
	})
}

// withAdapter resolves the connection reference, connects, runs fn and
// always closes. Adapter failures render as a single error document.
func withAdapter(db, format string, fn func(adapter.Adapter) error) error {
	config, err := connection.ParseRef(db)
	if err != nil {
		return err
	}

	eng, err := adapter.New(config.Type)
	if err != nil {
		return err
	}

	runCtx, stop := signalContext()
	defer stop()

	if err := eng.Connect(runCtx, config); err != nil {
		return emitAdapterError(err, format)
	}
	defer eng.Close()

	if err := fn(eng); err != nil {
		return emitAdapterError(err, format)
	}

	return nil
}

// emitAdapterError prints an adapter failure as the single output document
// and exits non-zero.
func emitAdapterError(err error, format string) error {
	if format == "json" {
		if jsonErr := printJSON(map[string]any{"error": err.Error()}); jsonErr != nil {
			return jsonErr
		}
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}

	os.Exit(1)

	return nil
}

func printJSON(doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(data))

	return nil
}
