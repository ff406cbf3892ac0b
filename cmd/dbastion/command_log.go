package main

import (
	"fmt"

	"github.com/mautbach/dbastion"
	"github.com/mautbach/dbastion/querylog"
)

// LogCmd represents the log command group for the per-project query log.
type LogCmd struct {
	Tail    LogTailCmd    `cmd:"" help:"Print the newest query log entries"`
	Cleanup LogCleanupCmd `cmd:"" help:"Delete log files past the retention horizon"`
}

// LogTailCmd prints recent audit records.
type LogTailCmd struct {
	Count int `short:"n" help:"Number of entries to show" default:"20"`
}

// Run executes the log tail command
func (cmd *LogTailCmd) Run(ctx *Context) error {
	config, err := dbastion.LoadConfig(ctx.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	lines, err := querylog.New(config.Log.Root).Tail(cmd.Count)
	if err != nil {
		return err
	}

	if len(lines) == 0 {
		fmt.Println("No query log entries for this project.")
		return nil
	}

	for _, line := range lines {
		fmt.Println(line)
	}

	return nil
}

// LogCleanupCmd runs retention cleanup immediately.
type LogCleanupCmd struct{}

// Run executes the log cleanup command
func (cmd *LogCleanupCmd) Run(ctx *Context) error {
	config, err := dbastion.LoadConfig(ctx.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	deleted, err := querylog.New(config.Log.Root).Cleanup(config.Log.RetentionDays)
	if err != nil {
		return err
	}

	if !ctx.Quiet {
		fmt.Printf("Deleted %d expired log file(s).\n", deleted)
	}

	return nil
}
