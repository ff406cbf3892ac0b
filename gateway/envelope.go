package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/mautbach/dbastion/adapter"
	"github.com/mautbach/dbastion/diagnostics"
)

// Decision is the single verdict of an invocation.
type Decision string

const (
	// DecisionAllow means the statement passed policy and was (or may be) executed.
	DecisionAllow Decision = "allow"
	// DecisionAsk means a write passed policy through the read entry point
	// and was not executed; a human should approve it.
	DecisionAsk Decision = "ask"
	// DecisionDeny means a blocking diagnostic, cost breach or adapter error.
	DecisionDeny Decision = "deny"
)

// Envelope is the one output document each invocation produces.
type Envelope struct {
	Decision   Decision
	Result     *diagnostics.Result
	Estimate   *adapter.CostEstimate
	CostError  string
	Exec       *adapter.ExecutionResult
	DryRunOnly bool
	Err        string
}

// ExitCode maps the decision to the process exit code: 0 for allow and
// ask, 1 for deny and adapter errors.
func (e *Envelope) ExitCode() int {
	if e.Decision == DecisionDeny || e.Err != "" {
		return 1
	}

	return 0
}

// RenderJSON serializes the envelope as a single indented JSON document.
func (e *Envelope) RenderJSON() (string, error) {
	doc := map[string]any{"decision": string(e.Decision)}

	if e.Result != nil {
		diags := make([]diagnostics.JSONDiagnostic, 0, len(e.Result.Diagnostics))
		for _, d := range e.Result.Diagnostics {
			diags = append(diags, d.ToJSON())
		}

		tables := e.Result.Tables
		if tables == nil {
			tables = []string{}
		}

		doc["original_sql"] = e.Result.OriginalSQL
		doc["effective_sql"] = e.Result.EffectiveSQL()
		doc["blocked"] = e.Result.Blocked
		doc["tables"] = tables
		doc["diagnostics"] = diags
		doc["applied_fixes"] = e.Result.AppliedFixes()

		if e.Result.Healed {
			doc["healed_sql"] = e.Result.HealedSQL
		}

		if e.Result.Classification != "" {
			doc["classification"] = e.Result.Classification
		}
	}

	if e.Estimate != nil {
		est := map[string]any{"summary": e.Estimate.Summary}

		if e.Estimate.EstimatedGB != nil {
			est["estimated_gb"] = *e.Estimate.EstimatedGB
		}

		if e.Estimate.EstimatedCostUSD != nil {
			est["estimated_cost_usd"] = *e.Estimate.EstimatedCostUSD
		}

		if e.Estimate.EstimatedRows != nil {
			est["estimated_rows"] = *e.Estimate.EstimatedRows
		}

		if e.Estimate.PlanNode != "" {
			est["plan"] = e.Estimate.PlanNode
		}

		if len(e.Estimate.Warnings) > 0 {
			est["warnings"] = e.Estimate.Warnings
		}

		doc["estimate"] = est
	}

	if e.CostError != "" {
		doc["blocked"] = true
		doc["cost_error"] = e.CostError
	}

	if e.Exec != nil {
		rows := e.Exec.Rows
		if rows == nil {
			rows = []map[string]any{}
		}

		doc["columns"] = e.Exec.Columns
		doc["rows"] = rows
		doc["row_count"] = e.Exec.RowCount
		doc["duration_ms"] = e.Exec.DurationMS
	}

	if e.DryRunOnly {
		doc["dry_run"] = true
	}

	if e.Err != "" {
		doc["error"] = e.Err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return string(data), nil
}

// RenderText renders the envelope for terminals: decision header,
// compiler-style diagnostics, the estimate, then a simple table.
func (e *Envelope) RenderText() string {
	var lines []string

	switch e.Decision {
	case DecisionAllow:
		lines = append(lines, color.GreenString("decision: allow"))
	case DecisionAsk:
		lines = append(lines, color.YellowString("decision: ask")+" (use `dbastion exec` to execute)")
	case DecisionDeny:
		lines = append(lines, color.RedString("decision: deny"))
	}

	if e.Result != nil {
		if text := diagnostics.RenderText(e.Result); text != "" {
			lines = append(lines, text)
		}
	}

	if e.Estimate != nil && e.Estimate.Summary != "" {
		lines = append(lines, "estimate: "+e.Estimate.Summary)
	}

	if e.CostError != "" {
		lines = append(lines, "", "error: "+e.CostError)
		return strings.Join(lines, "\n")
	}

	if e.Err != "" {
		lines = append(lines, "error: "+e.Err)
		return strings.Join(lines, "\n")
	}

	if e.DryRunOnly {
		return strings.Join(lines, "\n")
	}

	if e.Exec != nil {
		lines = append(lines, renderTable(e.Exec))
	}

	return strings.Join(lines, "\n")
}

// renderTable prints an execution result as simple column-aligned text.
func renderTable(result *adapter.ExecutionResult) string {
	var lines []string

	if len(result.Columns) > 0 {
		lines = append(lines, strings.Join(result.Columns, " | "))

		seps := make([]string, len(result.Columns))
		for i, c := range result.Columns {
			width := len(c)
			if width < 5 {
				width = 5
			}

			seps[i] = strings.Repeat("-", width)
		}

		lines = append(lines, strings.Join(seps, "-+-"))

		for _, row := range result.Rows {
			cells := make([]string, len(result.Columns))
			for i, c := range result.Columns {
				cells[i] = fmt.Sprintf("%v", row[c])
			}

			lines = append(lines, strings.Join(cells, " | "))
		}
	}

	lines = append(lines, fmt.Sprintf("\n(%d rows, %.0fms)", result.RowCount, result.DurationMS))

	if result.Cost != nil && result.Cost.Summary != "" {
		lines = append(lines, "cost: "+result.Cost.Summary)
	}

	return strings.Join(lines, "\n")
}
