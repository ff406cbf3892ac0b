package main

import (
	"github.com/mautbach/dbastion/connection"
	"github.com/mautbach/dbastion/gateway"
)

// ExecCmd represents the exec command: it executes writes that `query`
// validated but refused to run. Agent harnesses should require human
// approval before invoking it.
type ExecCmd struct {
	SQL        string   `arg:"" help:"SQL statement to execute"`
	DB         string   `required:"" env:"DBASTION_DB" help:"Connection name or type:key=val."`
	Dialect    string   `help:"SQL dialect override (postgres, mysql, sqlite)"`
	Format     string   `help:"Output format" enum:"json,text" default:"json"`
	SkipDryRun bool     `help:"Skip cost estimation, execute directly"`
	MaxGB      *float64 `help:"Block if the estimated scan exceeds N GB"`
	MaxUSD     *float64 `help:"Block if the estimated cost exceeds $N"`
	MaxRows    *float64 `help:"Block if the estimated rows exceed N"`
}

// Run executes the exec command
func (cmd *ExecCmd) Run(ctx *Context) error {
	gw, _, err := newGateway(ctx)
	if err != nil {
		return err
	}

	config, err := connection.ParseRef(cmd.DB)
	if err != nil {
		return err
	}

	runCtx, stop := signalContext()
	defer stop()

	env := gw.ExecuteWrite(runCtx, cmd.SQL, config, gateway.Options{
		Dialect:    cmd.Dialect,
		SkipDryRun: cmd.SkipDryRun,
		MaxGB:      cmd.MaxGB,
		MaxUSD:     cmd.MaxUSD,
		MaxRows:    cmd.MaxRows,
	})

	return emitEnvelope(env, cmd.Format)
}
