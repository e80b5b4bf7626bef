package errors

import (
	"fmt"
	"strings"
)

// Reporter accumulates CompileErrors produced during Analyze and renders
// them. PlainLine is always available and is what the CLI contract
// requires on stdout; Render additionally produces the caret-annotated
// source excerpt used under -verbose.
type Reporter struct {
	sourceCache map[string][]string
	errs        []*CompileError
}

// NewReporter creates an empty Reporter.
func NewReporter() *Reporter {
	return &Reporter{sourceCache: make(map[string][]string)}
}

// SetSource registers the text of filename so Render can quote the
// offending line.
func (r *Reporter) SetSource(filename, content string) {
	r.sourceCache[filename] = strings.Split(content, "\n")
}

// Report records err.
func (r *Reporter) Report(err *CompileError) {
	r.errs = append(r.errs, err)
}

// HasErrors reports whether any error was recorded.
func (r *Reporter) HasErrors() bool { return len(r.errs) > 0 }

// Errors returns all recorded errors, in report order.
func (r *Reporter) Errors() []*CompileError { return r.errs }

// PlainLine is the §6-mandated unconditional output line for err.
func PlainLine(err *CompileError) string {
	return fmt.Sprintf("Semantic error: %s", err.Message)
}

// Render produces the verbose, colorized, caret-annotated rendering of
// err: an "error: [Kind] at position" header and the message, followed
// by the source line it occurred on (if loaded) with a caret under the
// offending column, and the hint if one is set.
func (r *Reporter) Render(err *CompileError) string {
	var sb strings.Builder

	header := fmt.Sprintf("%s [%s] at %s", Colorize("error:", ColorBoldRed), err.Kind, err.Pos)
	sb.WriteString(header)
	sb.WriteByte('\n')
	sb.WriteString("  ")
	sb.WriteString(err.Message)
	sb.WriteByte('\n')

	lines := r.sourceCache[err.Pos.Filename]
	if err.Pos.Line > 0 && err.Pos.Line <= len(lines) {
		src := lines[err.Pos.Line-1]
		sb.WriteString(fmt.Sprintf("  %s | %s\n", Colorize(fmt.Sprintf("%4d", err.Pos.Line), ColorCyan), src))
		padLen := err.Pos.Column - 1
		if padLen < 0 {
			padLen = 0
		}
		pad := strings.Repeat(" ", padLen)
		sb.WriteString(fmt.Sprintf("       | %s%s\n", pad, Colorize("^", ColorBoldRed)))
	}

	if err.Hint != "" {
		sb.WriteString(fmt.Sprintf("  %s %s\n", Colorize("hint:", ColorYellow), err.Hint))
	}

	return sb.String()
}
