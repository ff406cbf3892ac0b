// Package gateway orchestrates the invocation surface: policy pipeline,
// adapter dry-run, cost gate, execution and the single verdict envelope.
// It owns the ask semantics for writes and writes one audit record per
// invocation.
package gateway

import (
	"context"

	"github.com/mautbach/dbastion"
	"github.com/mautbach/dbastion/adapter"
	"github.com/mautbach/dbastion/diagnostics"
	"github.com/mautbach/dbastion/policy"
	"github.com/mautbach/dbastion/querylog"
)

// autoLabels are attached to every executed statement.
var autoLabels = map[string]string{"tool": "dbastion"}

// Options carries the per-invocation knobs of the query and exec entry
// points.
type Options struct {
	// Dialect overrides the adapter's dialect tag for the policy run.
	Dialect string

	// AllowWrite is honored by Validate only; Query and ExecuteWrite set
	// their own write-allowance.
	AllowWrite bool

	// Limit is the auto-LIMIT value; zero disables enrichment.
	Limit int

	DryRunOnly bool
	SkipDryRun bool

	MaxGB   *float64
	MaxUSD  *float64
	MaxRows *float64
}

// Gateway runs invocations. Log may be nil to disable auditing; NewAdapter
// defaults to the static registry and exists for tests.
type Gateway struct {
	Log        *querylog.Logger
	NewAdapter func(adapter.DatabaseType) (adapter.Adapter, error)
}

func (g *Gateway) newAdapter(t adapter.DatabaseType) (adapter.Adapter, error) {
	if g.NewAdapter != nil {
		return g.NewAdapter(t)
	}

	return adapter.New(t)
}

// Validate runs the policy pipeline without touching any engine.
func (g *Gateway) Validate(sqlText string, opts Options) *Envelope {
	result := policy.Run(sqlText, policy.Options{
		Dialect:    opts.Dialect,
		AllowWrite: opts.AllowWrite,
		Limit:      opts.Limit,
	})

	decision := DecisionAllow
	if result.Blocked {
		decision = DecisionDeny
	}

	return &Envelope{Decision: decision, Result: result}
}

// Query runs the read entry point: policy, dry-run, cost gate, then
// execution for reads. Writes that pass policy stop at a decision of ask
// and are never executed here.
func (g *Gateway) Query(ctx context.Context, sqlText string, config adapter.ConnectionConfig, opts Options) *Envelope {
	return g.run(ctx, sqlText, config, opts, false)
}

// ExecuteWrite runs the write entry point: reads are rejected, validated
// writes run.
func (g *Gateway) ExecuteWrite(ctx context.Context, sqlText string, config adapter.ConnectionConfig, opts Options) *Envelope {
	return g.run(ctx, sqlText, config, opts, true)
}

func (g *Gateway) run(ctx context.Context, sqlText string, config adapter.ConnectionConfig, opts Options, writeEntry bool) *Envelope {
	eng, err := g.newAdapter(config.Type)
	if err != nil {
		return &Envelope{Decision: DecisionDeny, Err: err.Error()}
	}

	dialect := string(dbastion.NormalizeDialect(opts.Dialect))
	if dialect == "" {
		dialect = string(eng.Dialect())
	}

	// Write-allowance is granted here for both entry points: the access
	// check still blocks ADMIN and UNKNOWN, while DML/DDL pass through so
	// the read entry can downgrade them to ask instead of deny.
	result := policy.Run(sqlText, policy.Options{
		Dialect:            dialect,
		AllowWrite:         true,
		Limit:              opts.Limit,
		DangerousFunctions: eng.DangerousFunctions(),
	})

	isWrite := result.Classification == string(policy.ClassDML) ||
		result.Classification == string(policy.ClassDDL)

	if writeEntry && !result.Blocked && !isWrite {
		env := &Envelope{Decision: DecisionDeny, Result: result, Err: dbastion.ErrReadRejected.Error()}
		g.logResult(config, dialect, result, env, true)

		return env
	}

	if result.Blocked {
		env := &Envelope{Decision: DecisionDeny, Result: result}
		g.logResult(config, dialect, result, env, true)

		return env
	}

	if err := eng.Connect(ctx, config); err != nil {
		return &Envelope{Decision: DecisionDeny, Result: result, Err: err.Error()}
	}
	defer eng.Close()

	var estimate *adapter.CostEstimate

	hasThresholds := opts.MaxGB != nil || opts.MaxUSD != nil || opts.MaxRows != nil

	if !opts.SkipDryRun || opts.DryRunOnly {
		estimate, err = eng.DryRun(ctx, result.EffectiveSQL())
		if err != nil {
			return &Envelope{Decision: DecisionDeny, Result: result, Err: err.Error()}
		}

		costDiag := adapter.CheckCostThreshold(estimate, opts.MaxGB, opts.MaxUSD, opts.MaxRows)

		if estimate == nil && hasThresholds {
			costDiag = adapter.CannotEstimate()
		}

		if costDiag != nil {
			env := &Envelope{
				Decision:  DecisionDeny,
				Result:    result,
				Estimate:  estimate,
				CostError: costDiag.Message,
			}
			g.logResult(config, dialect, result, env, true)

			return env
		}
	}

	if opts.DryRunOnly {
		env := &Envelope{Decision: DecisionAllow, Result: result, Estimate: estimate, DryRunOnly: true}
		g.logResult(config, dialect, result, env, true)

		return env
	}

	// Reads execute through the read entry; writes stop at ask.
	if !writeEntry && isWrite {
		env := &Envelope{Decision: DecisionAsk, Result: result, Estimate: estimate}
		g.logResult(config, dialect, result, env, true)

		return env
	}

	execResult, err := eng.Execute(ctx, result.EffectiveSQL(), autoLabels)
	if err != nil {
		return &Envelope{Decision: DecisionDeny, Result: result, Estimate: estimate, Err: err.Error()}
	}

	env := &Envelope{Decision: DecisionAllow, Result: result, Estimate: estimate, Exec: execResult}
	g.logResult(config, dialect, result, env, false)

	return env
}

// logResult appends the audit record. Logging is best effort: an
// unwritable log never fails the invocation.
func (g *Gateway) logResult(config adapter.ConnectionConfig, dialect string, result *diagnostics.Result, env *Envelope, dryRun bool) {
	if g.Log == nil || result == nil {
		return
	}

	entry := querylog.Entry{
		DB:           config.Name,
		Dialect:      dialect,
		SQL:          result.OriginalSQL,
		EffectiveSQL: result.EffectiveSQL(),
		Tables:       result.Tables,
		Blocked:      result.Blocked || env.Decision == DecisionDeny,
		Diagnostics:  result.Codes(),
		DryRun:       dryRun,
		Labels:       autoLabels,
	}

	if env.Estimate != nil {
		entry.CostGB = env.Estimate.EstimatedGB
		entry.CostUSD = env.Estimate.EstimatedCostUSD
	}

	if env.Exec != nil {
		entry.DurationMS = &env.Exec.DurationMS
	}

	_ = g.Log.Append(entry)
}
