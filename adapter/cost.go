package adapter

import (
	"fmt"

	"github.com/mautbach/dbastion/diagnostics"
)

// CheckCostThreshold compares a normalized estimate against the requested
// thresholds and returns a Q0401 error diagnostic on the first breach.
// Thresholds check in fixed order: GB → USD → rows. A threshold whose
// dimension is absent from the estimate is a no-op for that threshold.
func CheckCostThreshold(estimate *CostEstimate, maxGB, maxUSD, maxRows *float64) *diagnostics.Diagnostic {
	if estimate == nil {
		return nil
	}

	if maxGB != nil && estimate.EstimatedGB != nil && *estimate.EstimatedGB > *maxGB {
		diag := diagnostics.Error(diagnostics.CostOverThreshold,
			fmt.Sprintf("query would scan %.1f GB (limit: %.1f GB)", *estimate.EstimatedGB, *maxGB))

		if estimate.EstimatedCostUSD != nil {
			diag.WithNote(fmt.Sprintf("estimated cost: $%.2f", *estimate.EstimatedCostUSD))
		}

		return diag
	}

	if maxUSD != nil && estimate.EstimatedCostUSD != nil && *estimate.EstimatedCostUSD > *maxUSD {
		return diagnostics.Error(diagnostics.CostOverThreshold,
			fmt.Sprintf("query cost $%.2f exceeds limit $%.2f", *estimate.EstimatedCostUSD, *maxUSD))
	}

	if maxRows != nil && estimate.EstimatedRows != nil && *estimate.EstimatedRows > *maxRows {
		diag := diagnostics.Error(diagnostics.CostOverThreshold,
			fmt.Sprintf("query estimates ~%.0f rows (limit: %.0f)", *estimate.EstimatedRows, *maxRows))

		for _, w := range estimate.Warnings {
			diag.WithNote(w)
		}

		if estimate.Summary != "" {
			diag.WithNote(estimate.Summary)
		}

		return diag
	}

	return nil
}

// CannotEstimate is the Q0401 denial used when cost thresholds were
// requested but the engine returned no estimate for this statement type.
func CannotEstimate() *diagnostics.Diagnostic {
	return diagnostics.Error(diagnostics.CostOverThreshold,
		"cost thresholds requested but database cannot estimate cost for this statement type")
}
