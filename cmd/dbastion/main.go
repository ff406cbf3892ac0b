package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/mautbach/dbastion"
	"github.com/mautbach/dbastion/gateway"
	"github.com/mautbach/dbastion/querylog"
)

// Context represents the global context for commands
type Context struct {
	Config  string
	Verbose bool
	Quiet   bool
}

// CLI represents the command-line interface
var CLI struct {
	Config   string      `help:"Configuration file path" default:"dbastion.yaml"`
	Verbose  bool        `help:"Enable verbose output" short:"v"`
	Quiet    bool        `help:"Suppress output" short:"q"`
	Query    QueryCmd    `cmd:"" help:"Run a guarded SQL query"`
	Exec     ExecCmd     `cmd:"" help:"Execute a validated write (DML/DDL)"`
	Validate ValidateCmd `cmd:"" help:"Check SQL through the policy engine without executing"`
	Schema   SchemaCmd   `cmd:"" help:"Browse database schemas, tables, and columns"`
	Connect  ConnectCmd  `cmd:"" help:"Manage named database connections"`
	Log      LogCmd      `cmd:"" help:"Inspect the per-project query log"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`
}

// VersionCmd represents the version command
type VersionCmd struct{}

// Run executes the version command
func (cmd *VersionCmd) Run() error {
	fmt.Println("dbastion v0.1.0")
	return nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM so pending
// adapter operations abort and connections close before exit.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newGateway builds the gateway with the configured query log, running
// retention cleanup as a side effect of every invocation.
func newGateway(ctx *Context) (*gateway.Gateway, *dbastion.Config, error) {
	config, err := dbastion.LoadConfig(ctx.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := querylog.New(config.Log.Root)

	if _, err := logger.Cleanup(config.Log.RetentionDays); err != nil && ctx.Verbose {
		fmt.Fprintf(os.Stderr, "log cleanup failed: %v\n", err)
	}

	return &gateway.Gateway{Log: logger}, config, nil
}

// emitEnvelope prints the single output document and terminates with the
// envelope's exit code when it is non-zero.
func emitEnvelope(env *gateway.Envelope, format string) error {
	switch format {
	case "json", "":
		doc, err := env.RenderJSON()
		if err != nil {
			return err
		}

		fmt.Println(doc)
	case "text":
		if out := env.RenderText(); out != "" {
			fmt.Println(out)
		}
	default:
		return fmt.Errorf("%w: %s", dbastion.ErrUnsupportedFormat, format)
	}

	if code := env.ExitCode(); code != 0 {
		os.Exit(code)
	}

	return nil
}

func main() {
	ctx := kong.Parse(&CLI)

	appCtx := &Context{
		Config:  CLI.Config,
		Verbose: CLI.Verbose,
		Quiet:   CLI.Quiet,
	}

	err := ctx.Run(appCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
