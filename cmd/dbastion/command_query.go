package main

import (
	"github.com/mautbach/dbastion/connection"
	"github.com/mautbach/dbastion/gateway"
)

// QueryCmd represents the query command
type QueryCmd struct {
	SQL        string   `arg:"" help:"SQL statement to run"`
	DB         string   `required:"" env:"DBASTION_DB" help:"Connection name or type:key=val."`
	Dialect    string   `help:"SQL dialect override (postgres, mysql, sqlite)"`
	Format     string   `help:"Output format" enum:"json,text" default:"json"`
	Limit      int      `help:"Auto-LIMIT value (0 to disable)" default:"1000"`
	NoLimit    bool     `help:"Disable auto-LIMIT injection"`
	DryRun     bool     `help:"Estimate cost only, do not execute"`
	SkipDryRun bool     `help:"Skip cost estimation, execute directly"`
	MaxGB      *float64 `help:"Block if the estimated scan exceeds N GB"`
	MaxUSD     *float64 `help:"Block if the estimated cost exceeds $N"`
	MaxRows    *float64 `help:"Block if the estimated rows exceed N"`
}

// Run executes the query command
func (cmd *QueryCmd) Run(ctx *Context) error {
	gw, _, err := newGateway(ctx)
	if err != nil {
		return err
	}

	config, err := connection.ParseRef(cmd.DB)
	if err != nil {
		return err
	}

	limit := cmd.Limit
	if cmd.NoLimit {
		limit = 0
	}

	runCtx, stop := signalContext()
	defer stop()

	env := gw.Query(runCtx, cmd.SQL, config, gateway.Options{
		Dialect:    cmd.Dialect,
		Limit:      limit,
		DryRunOnly: cmd.DryRun,
		SkipDryRun: cmd.SkipDryRun,
		MaxGB:      cmd.MaxGB,
		MaxUSD:     cmd.MaxUSD,
		MaxRows:    cmd.MaxRows,
	})

	return emitEnvelope(env, cmd.Format)
}
