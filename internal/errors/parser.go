package errors

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Severity of a bundler diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Diagnostic is one structured message extracted from bundler output.
type Diagnostic struct {
	Severity Severity
	File     string
	Line     int
	Column   int
	Message  string
}

// String renders the diagnostic as file:line:col: message.
func (d Diagnostic) String() string {
	if d.File == "" {
		return d.Message
	}
	if d.Line == 0 {
		return fmt.Sprintf("%s: %s", d.File, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Column, d.Message)
}

var (
	// error: Unexpected end of file
	headerPattern = regexp.MustCompile(`^(?:✘ \[(ERROR|WARNING)\]|(error|warning|ERROR|WARNING|warn)):?\s+(.*)$`)
	// at /project/src/index.ts:4:10
	locationPattern = regexp.MustCompile(`^at\s+(.+?):(\d+):(\d+)$`)
	// src/index.ts:4:10: error: message
	inlinePattern = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s*(?:(error|warning):\s*)?(.+)$`)
	// src/index.ts:4:10:
	bareLocationPattern = regexp.MustCompile(`^(.+?):(\d+):(\d+):$`)
)

// ParseBundlerOutput extracts diagnostics from the combined output of an
// external bundler. It understands the bun/esbuild layout where a header line
// is followed by an indented location line, and the single-line
// file:line:col form. Lines that match neither are ignored unless they
// mention an error, in which case they become location-less diagnostics.
func ParseBundlerOutput(output string) []Diagnostic {
	var diagnostics []Diagnostic
	var current *Diagnostic

	flush := func() {
		if current != nil {
			diagnostics = append(diagnostics, *current)
			current = nil
		}
	}

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if m := headerPattern.FindStringSubmatch(line); m != nil {
			flush()
			current = &Diagnostic{
				Severity: severityOf(m[1] + m[2]),
				Message:  strings.TrimSpace(m[3]),
			}
			continue
		}

		if current != nil && current.File == "" {
			if m := locationPattern.FindStringSubmatch(line); m != nil {
				current.File, current.Line, current.Column = m[1], atoi(m[2]), atoi(m[3])
				flush()
				continue
			}
			if m := bareLocationPattern.FindStringSubmatch(line); m != nil {
				current.File, current.Line, current.Column = m[1], atoi(m[2]), atoi(m[3])
				flush()
				continue
			}
		}

		if m := inlinePattern.FindStringSubmatch(line); m != nil {
			flush()
			diagnostics = append(diagnostics, Diagnostic{
				Severity: severityOf(m[4]),
				File:     m[1],
				Line:     atoi(m[2]),
				Column:   atoi(m[3]),
				Message:  strings.TrimSpace(m[5]),
			})
			continue
		}

		if current == nil && strings.Contains(strings.ToLower(line), "error") {
			diagnostics = append(diagnostics, Diagnostic{Severity: SeverityError, Message: line})
		}
	}
	flush()

	return diagnostics
}

// DiagnosticStrings renders diagnostics with String.
func DiagnosticStrings(diagnostics []Diagnostic) []string {
	out := make([]string, 0, len(diagnostics))
	for _, d := range diagnostics {
		out = append(out, d.String())
	}
	return out
}

func severityOf(word string) Severity {
	switch strings.ToLower(word) {
	case "warning", "warn":
		return SeverityWarning
	default:
		return SeverityError
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
