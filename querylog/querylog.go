// Package querylog appends one audit record per gateway invocation to
// per-project daily JSONL files and removes files past the retention
// horizon. Appends use O_APPEND so concurrent invocations never corrupt
// prior lines.
package querylog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultRetentionDays is how long daily log files are kept.
const DefaultRetentionDays = 30

// Entry is one audit record. Fields mirror the stable JSONL contract.
type Entry struct {
	Timestamp    string            `json:"ts"`
	InvocationID string            `json:"invocation_id"`
	DB           string            `json:"db,omitempty"`
	Dialect      string            `json:"dialect,omitempty"`
	SQL          string            `json:"sql"`
	EffectiveSQL string            `json:"effective_sql"`
	Tables       []string          `json:"tables"`
	Blocked      bool              `json:"blocked"`
	Diagnostics  []string          `json:"diagnostics"`
	DryRun       bool              `json:"dry_run"`
	CostGB       *float64          `json:"cost_gb"`
	CostUSD      *float64          `json:"cost_usd"`
	DurationMS   *float64          `json:"duration_ms"`
	Labels       map[string]string `json:"labels,omitempty"`
}

// Logger writes entries for one project below a root directory.
type Logger struct {
	root    string
	project string
}

// New creates a logger rooted at root for the current working directory's
// project slug.
func New(root string) *Logger {
	return &Logger{root: root, project: projectSlug()}
}

// projectSlug encodes the working directory into a directory-safe slug.
func projectSlug() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "unknown"
	}

	slug := strings.ReplaceAll(cwd, string(filepath.Separator), "-")

	return strings.TrimLeft(slug, "-")
}

func (l *Logger) dir() string {
	return filepath.Join(l.root, l.project)
}

// Append writes one entry to today's file. The timestamp and invocation id
// are filled in here; callers supply the rest.
func (l *Logger) Append(entry Entry) error {
	now := time.Now().UTC()
	entry.Timestamp = now.Format(time.RFC3339)
	entry.InvocationID = uuid.NewString()

	if entry.Tables == nil {
		entry.Tables = []string{}
	}

	if entry.Diagnostics == nil {
		entry.Diagnostics = []string{}
	}

	if err := os.MkdirAll(l.dir(), 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(l.dir(), now.Format("2006-01-02")+".jsonl")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode log entry: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}

	return nil
}

// Cleanup unlinks log files older than retentionDays and removes the
// project directory when it becomes empty. Returns the number of files
// deleted. Files whose names do not parse as dates are left alone.
func (l *Logger) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	deleted := 0

	entries, err := os.ReadDir(l.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}

		stem := strings.TrimSuffix(entry.Name(), ".jsonl")

		fileDate, err := time.ParseInLocation("2006-01-02", stem, time.UTC)
		if err != nil {
			continue
		}

		if fileDate.Before(cutoff) {
			if err := os.Remove(filepath.Join(l.dir(), entry.Name())); err == nil {
				deleted++
			}
		}
	}

	// Best effort: drop the directory once nothing is left in it.
	os.Remove(l.dir())

	return deleted, nil
}

// Tail returns up to n raw JSONL lines from the newest log file, oldest
// first.
func (l *Logger) Tail(n int) ([]string, error) {
	entries, err := os.ReadDir(l.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	newest := ""

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}

		if entry.Name() > newest {
			newest = entry.Name()
		}
	}

	if newest == "" {
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(l.dir(), newest))
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	return lines, nil
}
