package main

import (
	"github.com/mautbach/dbastion/gateway"
)

// ValidateCmd represents the validate command
type ValidateCmd struct {
	SQL        string `arg:"" help:"SQL statement to validate"`
	Dialect    string `help:"SQL dialect (postgres, mysql, sqlite)"`
	Format     string `help:"Output format" enum:"json,text" default:"text"`
	Limit      int    `help:"Auto-LIMIT value (0 to disable)" default:"1000"`
	AllowWrite bool   `help:"Allow DML/DDL statements."`
}

// Run executes the validate command
func (cmd *ValidateCmd) Run(ctx *Context) error {
	gw := &gateway.Gateway{}

	env := gw.Validate(cmd.SQL, gateway.Options{
		Dialect:    cmd.Dialect,
		AllowWrite: cmd.AllowWrite,
		Limit:      cmd.Limit,
	})

	return emitEnvelope(env, cmd.Format)
}
