package adapter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Plan parsing for the dry-run path. Each engine returns its EXPLAIN
// output in a different shape; these parsers reduce them to the normalized
// CostEstimate the cost gate understands.

const seqScanWarnRows = 100_000

// parsePostgresPlan reduces EXPLAIN (FORMAT JSON) output to a CostEstimate.
func parsePostgresPlan(data []byte) (*CostEstimate, error) {
	var container []map[string]any
	if err := json.Unmarshal(data, &container); err != nil {
		return nil, fmt.Errorf("failed to unmarshal postgres plan: %w", err)
	}

	if len(container) == 0 {
		return &CostEstimate{Summary: "no plan returned"}, nil
	}

	root, ok := container[0]["Plan"].(map[string]any)
	if !ok {
		return &CostEstimate{Summary: "no plan returned"}, nil
	}

	totalCost := getFloat(root, "Total Cost")
	planRows := getFloat(root, "Plan Rows")
	nodeType := getString(root, "Node Type")

	var warnings []string

	walkPostgresPlan(root, &warnings)

	parts := []string{
		fmt.Sprintf("cost: %.1f units", totalCost),
		fmt.Sprintf("~%s rows", formatRows(planRows)),
		nodeType,
	}
	if len(warnings) > 0 {
		parts = append(parts, "warnings: "+strings.Join(warnings, ", "))
	}

	return &CostEstimate{
		RawValue:      floatPtr(totalCost),
		Unit:          UnitCostUnits,
		EstimatedRows: floatPtr(planRows),
		PlanNode:      nodeType,
		Warnings:      warnings,
		Summary:       strings.Join(parts, " | "),
	}, nil
}

// walkPostgresPlan flags risky operations anywhere in the plan tree.
func walkPostgresPlan(node map[string]any, warnings *[]string) {
	nodeType := getString(node, "Node Type")
	rows := getFloat(node, "Plan Rows")
	relation := getString(node, "Relation Name")

	if nodeType == "Seq Scan" && rows > seqScanWarnRows {
		*warnings = append(*warnings, fmt.Sprintf("Seq Scan on %s (~%s rows)", relation, formatRows(rows)))
	}

	if children, ok := node["Plans"].([]any); ok {
		for _, child := range children {
			if childMap, ok := child.(map[string]any); ok {
				walkPostgresPlan(childMap, warnings)
			}
		}
	}
}

// parseMySQLPlan reduces EXPLAIN FORMAT=JSON output to a CostEstimate.
func parseMySQLPlan(data []byte) (*CostEstimate, error) {
	var container map[string]any
	if err := json.Unmarshal(data, &container); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mysql plan: %w", err)
	}

	block, ok := container["query_block"].(map[string]any)
	if !ok {
		return &CostEstimate{Summary: "no plan returned"}, nil
	}

	var queryCost float64

	if costInfo, ok := block["cost_info"].(map[string]any); ok {
		queryCost = getFloat(costInfo, "query_cost")
	}

	var (
		totalRows float64
		warnings  []string
	)

	walkMySQLBlock(block, &totalRows, &warnings)

	parts := []string{fmt.Sprintf("cost: %.1f units", queryCost)}
	if totalRows > 0 {
		parts = append(parts, fmt.Sprintf("~%s rows", formatRows(totalRows)))
	}

	if len(warnings) > 0 {
		parts = append(parts, "warnings: "+strings.Join(warnings, ", "))
	}

	est := &CostEstimate{
		RawValue: floatPtr(queryCost),
		Unit:     UnitCostUnits,
		Warnings: warnings,
		Summary:  strings.Join(parts, " | "),
	}
	if totalRows > 0 {
		est.EstimatedRows = floatPtr(totalRows)
	}

	return est, nil
}

// walkMySQLBlock accumulates examined-row estimates and full-scan warnings
// from a query_block and its nested loops.
func walkMySQLBlock(block map[string]any, totalRows *float64, warnings *[]string) {
	if table, ok := block["table"].(map[string]any); ok {
		rows := getFloat(table, "rows_examined_per_scan")
		*totalRows += rows

		if strings.EqualFold(getString(table, "access_type"), "ALL") && rows > seqScanWarnRows {
			*warnings = append(*warnings,
				fmt.Sprintf("full scan on %s (~%s rows)", getString(table, "table_name"), formatRows(rows)))
		}
	}

	if nested, ok := block["nested_loop"].([]any); ok {
		for _, child := range nested {
			if childMap, ok := child.(map[string]any); ok {
				walkMySQLBlock(childMap, totalRows, warnings)
			}
		}
	}
}

// parseSQLitePlan reduces EXPLAIN QUERY PLAN detail lines to a
// CostEstimate. SQLite exposes no numeric cost, so only the plan text and
// full-scan warnings are carried; the cost gate tolerates the gaps.
func parseSQLitePlan(details []string) *CostEstimate {
	var warnings []string

	for _, line := range details {
		upper := strings.ToUpper(line)
		if strings.HasPrefix(upper, "SCAN ") && !strings.Contains(upper, "USING INDEX") {
			warnings = append(warnings, "full scan: "+line)
		}
	}

	return &CostEstimate{
		Unit:     UnitCostUnits,
		Warnings: warnings,
		Summary:  "query plan:\n" + strings.Join(details, "\n"),
	}
}

func formatRows(n float64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", n/1_000_000_000)
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", n/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", n/1_000)
	default:
		return strconv.Itoa(int(n))
	}
}

func getString(obj map[string]any, key string) string {
	if v, ok := obj[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}

	return ""
}

// getFloat reads a numeric field, tolerating the string-encoded numbers
// MySQL emits in cost_info.
func getFloat(obj map[string]any, key string) float64 {
	switch v := obj[key].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}

		return f
	default:
		return 0
	}
}
