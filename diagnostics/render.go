package diagnostics

import (
	"strings"

	"github.com/fatih/color"
)

// JSONDiagnostic is the wire form of a single diagnostic.
type JSONDiagnostic struct {
	Level   string   `json:"level"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Notes   []string `json:"notes"`
}

// ToJSON converts a diagnostic to its wire form.
func (d *Diagnostic) ToJSON() JSONDiagnostic {
	notes := d.Notes
	if notes == nil {
		notes = []string{}
	}

	return JSONDiagnostic{
		Level:   d.Level.String(),
		Code:    d.Code.String(),
		Message: d.Message,
		Notes:   notes,
	}
}

var levelColors = map[Level]*color.Color{
	LevelInfo:    color.New(color.FgCyan),
	LevelWarning: color.New(color.FgYellow),
	LevelError:   color.New(color.FgRed, color.Bold),
}

// RenderText renders diagnostics compiler-style:
//
//	error[Q0201]: DELETE without WHERE clause
//	  = note: this would affect all rows in the table
//	  = help: add a WHERE clause: DELETE FROM ... WHERE <condition>
func RenderText(result *Result) string {
	var lines []string

	for _, d := range result.Diagnostics {
		head := levelColors[d.Level].Sprintf("%s[%s]", d.Level, d.Code)
		lines = append(lines, head+": "+d.Message)

		for _, note := range d.Notes {
			lines = append(lines, "  = note: "+note)
		}

		for _, s := range d.Suggestions {
			prefix := "help"
			if s.Applicability == MachineApplicable {
				prefix = "fix"
			}

			lines = append(lines, "  = "+prefix+": "+s.Message)
		}
	}

	if result.Healed {
		lines = append(lines, "", "effective SQL: "+result.EffectiveSQL())
	}

	return strings.Join(lines, "\n")
}
