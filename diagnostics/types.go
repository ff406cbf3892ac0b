// Package diagnostics provides the typed finding model of the policy
// pipeline: leveled records with stable codes, byte spans into the original
// SQL, notes, and fix suggestions that can be spliced back into the text.
//
// Every check in the policy engine produces Diagnostic values rather than
// errors, so a single run can carry many findings and downstream code can
// filter by code without string matching. Machine-applicable suggestions
// are applied before execution; all diagnostics are returned to the caller
// so agents learn from corrections.
package diagnostics

import "sort"

// Level classifies diagnostic severity. Error blocks the pipeline.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Applicability describes how safely a suggestion can be applied.
type Applicability string

const (
	// MachineApplicable suggestions are deterministic and applied without review.
	MachineApplicable Applicability = "machine_applicable"
	// MaybeIncorrect suggestions are plausible but need human review.
	MaybeIncorrect Applicability = "maybe_incorrect"
	// HasPlaceholders suggestions contain template text a human must fill in.
	HasPlaceholders Applicability = "has_placeholders"
)

// Span is a half-open [Start, End) byte interval into the original SQL.
// The original text is never mutated; spans stay valid for its lifetime.
type Span struct {
	Start int
	End   int
}

// Slice returns the spanned substring of sql.
func (s Span) Slice(sql string) string {
	return sql[s.Start:s.End]
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// IsEmpty reports whether the span covers no bytes.
func (s Span) IsEmpty() bool {
	return s.Start == s.End
}

// SpanKind distinguishes the main location of a finding from supporting ones.
type SpanKind string

const (
	SpanPrimary   SpanKind = "primary"
	SpanSecondary SpanKind = "secondary"
)

// SpanLabel attaches a label to a span.
type SpanLabel struct {
	Span  Span
	Kind  SpanKind
	Label string
}

// SubstitutionPart is a single splice: replace the spanned bytes with Replacement.
type SubstitutionPart struct {
	Span        Span
	Replacement string
}

// Suggestion is a proposed change. Only MachineApplicable suggestions with
// non-overlapping parts are spliced automatically.
type Suggestion struct {
	Message       string
	Parts         []SubstitutionPart
	Applicability Applicability
}

// Diagnostic is one finding of the policy pipeline.
type Diagnostic struct {
	Level       Level
	Code        Code
	Message     string
	Spans       []SpanLabel
	Notes       []string
	Suggestions []Suggestion
}

// Error constructs a blocking diagnostic.
func Error(code Code, message string) *Diagnostic {
	return &Diagnostic{Level: LevelError, Code: code, Message: message}
}

// Warning constructs a non-blocking diagnostic.
func Warning(code Code, message string) *Diagnostic {
	return &Diagnostic{Level: LevelWarning, Code: code, Message: message}
}

// Info constructs an informational diagnostic.
func Info(code Code, message string) *Diagnostic {
	return &Diagnostic{Level: LevelInfo, Code: code, Message: message}
}

// WithSpan attaches a labeled primary span.
func (d *Diagnostic) WithSpan(span Span, label string) *Diagnostic {
	d.Spans = append(d.Spans, SpanLabel{Span: span, Kind: SpanPrimary, Label: label})
	return d
}

// WithSecondarySpan attaches a labeled secondary span.
func (d *Diagnostic) WithSecondarySpan(span Span, label string) *Diagnostic {
	d.Spans = append(d.Spans, SpanLabel{Span: span, Kind: SpanSecondary, Label: label})
	return d
}

// WithNote appends an explanatory note.
func (d *Diagnostic) WithNote(note string) *Diagnostic {
	d.Notes = append(d.Notes, note)
	return d
}

// WithFix appends a MachineApplicable single-part suggestion.
func (d *Diagnostic) WithFix(message string, span Span, replacement string) *Diagnostic {
	d.Suggestions = append(d.Suggestions, Suggestion{
		Message:       message,
		Parts:         []SubstitutionPart{{Span: span, Replacement: replacement}},
		Applicability: MachineApplicable,
	})
	return d
}

// WithSuggestion appends a MaybeIncorrect single-part suggestion.
func (d *Diagnostic) WithSuggestion(message string, span Span, replacement string) *Diagnostic {
	d.Suggestions = append(d.Suggestions, Suggestion{
		Message:       message,
		Parts:         []SubstitutionPart{{Span: span, Replacement: replacement}},
		Applicability: MaybeIncorrect,
	})
	return d
}

// WithTemplate appends a placeholder suggestion with no parts.
func (d *Diagnostic) WithTemplate(message string) *Diagnostic {
	d.Suggestions = append(d.Suggestions, Suggestion{
		Message:       message,
		Applicability: HasPlaceholders,
	})
	return d
}

// IsBlocking reports whether this diagnostic forces the pipeline verdict to blocked.
func (d *Diagnostic) IsBlocking() bool {
	return d.Level == LevelError
}

// AutoFixable returns the MachineApplicable suggestions.
func (d *Diagnostic) AutoFixable() []Suggestion {
	var out []Suggestion

	for _, s := range d.Suggestions {
		if s.Applicability == MachineApplicable {
			out = append(out, s)
		}
	}

	return out
}

// Result is the immutable outcome of one policy pipeline run.
type Result struct {
	OriginalSQL    string
	HealedSQL      string
	Healed         bool
	Diagnostics    []*Diagnostic
	Blocked        bool
	Classification string
	Tables         []string
}

// EffectiveSQL returns the healed rewrite when present, else the original.
func (r *Result) EffectiveSQL() string {
	if r.Healed {
		return r.HealedSQL
	}

	return r.OriginalSQL
}

// Codes returns the emitted diagnostic codes in pipeline order.
func (r *Result) Codes() []string {
	codes := make([]string, 0, len(r.Diagnostics))
	for _, d := range r.Diagnostics {
		codes = append(codes, d.Code.String())
	}

	return codes
}

// HasCode reports whether a diagnostic with the given code was emitted.
func (r *Result) HasCode(code Code) bool {
	for _, d := range r.Diagnostics {
		if d.Code == code {
			return true
		}
	}

	return false
}

// AppliedFixes summarizes the MachineApplicable suggestions as "Qnnnn: message".
func (r *Result) AppliedFixes() []string {
	var out []string

	for _, d := range r.Diagnostics {
		for _, s := range d.Suggestions {
			if s.Applicability == MachineApplicable {
				out = append(out, d.Code.String()+": "+s.Message)
			}
		}
	}

	return out
}

// ApplyFixes splices every MachineApplicable substitution into sql and
// returns the rewritten string. Parts are applied in reverse byte-offset
// order so earlier spans stay valid while later ones are rewritten. The
// whole batch is rejected (ok=false) when any two parts overlap; partial
// application is never performed. An empty batch also returns ok=false.
func ApplyFixes(sql string, diags []*Diagnostic) (string, bool) {
	var parts []SubstitutionPart

	for _, d := range diags {
		for _, s := range d.AutoFixable() {
			parts = append(parts, s.Parts...)
		}
	}

	if len(parts) == 0 {
		return "", false
	}

	sort.Slice(parts, func(i, j int) bool {
		return parts[i].Span.Start > parts[j].Span.Start
	})

	for i := 0; i < len(parts)-1; i++ {
		// parts[i] has the later start after the descending sort
		if parts[i+1].Span.End > parts[i].Span.Start {
			return "", false
		}
	}

	result := sql
	for _, part := range parts {
		result = result[:part.Span.Start] + part.Replacement + result[part.Span.End:]
	}

	return result, true
}
