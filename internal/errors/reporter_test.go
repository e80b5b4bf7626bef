package errors

import (
	"strings"
	"testing"

	"github.com/tangzhangming/nova/internal/token"
)

func TestPlainLineIsUnconditional(t *testing.T) {
	err := New(UndeclaredIdentifier, token.Position{Filename: "a.lo", Line: 3, Column: 5}, "undeclared identifier %q", "x")
	line := PlainLine(err)
	if !strings.HasPrefix(line, "Semantic error: ") {
		t.Errorf("expected plain line to start with 'Semantic error: ', got %q", line)
	}
	if !strings.Contains(line, `"x"`) {
		t.Errorf("expected plain line to include the identifier, got %q", line)
	}
}

func TestReporterAccumulates(t *testing.T) {
	r := NewReporter()
	if r.HasErrors() {
		t.Fatal("expected fresh reporter to have no errors")
	}
	r.Report(New(DuplicateClass, token.Position{Line: 1}, "class %q already declared", "A"))
	r.Report(New(UnknownBase, token.Position{Line: 2}, "unknown base class %q", "B"))
	if !r.HasErrors() || len(r.Errors()) != 2 {
		t.Fatalf("expected 2 recorded errors, got %d", len(r.Errors()))
	}
}

func TestRenderIncludesSourceAndCaret(t *testing.T) {
	SetColorsEnabled(false)
	r := NewReporter()
	r.SetSource("a.lo", "class A is\n  var x: Integer\nend\n")
	err := New(UndeclaredIdentifier, token.Position{Filename: "a.lo", Line: 2, Column: 8}, "undeclared identifier %q", "Integer")
	out := r.Render(err)
	if !strings.Contains(out, "var x: Integer") {
		t.Errorf("expected rendered output to quote the source line, got %q", out)
	}
	if !strings.Contains(out, "^") {
		t.Errorf("expected rendered output to include a caret, got %q", out)
	}
}
