package irgen

import (
	"fmt"
	"strings"
	"testing"

	"github.com/tangzhangming/nova/internal/layout"
	"github.com/tangzhangming/nova/internal/parser"
	"github.com/tangzhangming/nova/internal/sema"
)

func compile(t *testing.T, src string) (string, *layout.Program) {
	t.Helper()
	p := parser.New(src, "test.lo")
	prog := p.Parse()
	if p.HasErrors() {
		for _, e := range p.Errors() {
			t.Fatalf("parser error: %v", e)
		}
	}
	model, err := sema.New(nil).Analyze(prog)
	if err != nil {
		t.Fatalf("analysis error: %v", err)
	}
	lay, err2 := layout.Build(model)
	if err2 != nil {
		t.Fatalf("layout error: %v", err2)
	}
	ir := New(model, lay, nil).EmitModule()
	return ir, lay
}

// Scenario 1: the dispatch switch generated for x.f() carries a case
// for every descendant of the static receiver type that implements f,
// keyed by that descendant's own classId.
func TestEmitDispatchSwitchCoversDescendants(t *testing.T) {
	src := `
class A is
	method f(): Integer => 1
end

class B extends A is
	method f(): Integer => 2
end

class Main is
	var x: A()
	method g(): Integer => x.f()
end
`
	ir, lay := compile(t, src)

	a := lay.ByName["A"]
	b := lay.ByName["B"]
	if a.ClassID != 1 || b.ClassID != 2 {
		t.Fatalf("expected A=1, B=2, got A=%d B=%d", a.ClassID, b.ClassID)
	}

	gFunc := extractFunction(t, ir, "@Main_g")
	if !strings.Contains(gFunc, "switch i32") {
		t.Fatalf("expected a dispatch switch inside Main_g, got:\n%s", gFunc)
	}
	if !strings.Contains(gFunc, fmt.Sprintf("i32 %d, label", a.ClassID)) {
		t.Errorf("expected a case for A's classId %d in Main_g:\n%s", a.ClassID, gFunc)
	}
	if !strings.Contains(gFunc, fmt.Sprintf("i32 %d, label", b.ClassID)) {
		t.Errorf("expected a case for B's classId %d in Main_g:\n%s", b.ClassID, gFunc)
	}
}

// Scenario 4: Array construction and built-ins lower to the runtime ABI
// calls and primitive unbox/add sequence §4.11 specifies.
func TestEmitArrayBuiltinsLowerToRuntimeABI(t *testing.T) {
	src := `
class S is
	method build(): Integer is
		var a: Array[Integer](10)
		var n: a.Length()
		var f: a.get(0)
		return n.Plus(f)
	end
end
`
	ir, _ := compile(t, src)

	buildFunc := extractFunction(t, ir, "@S_build")
	for _, want := range []string{
		"call %Array* @o_array_new(i32 10)",
		"call i32 @o_array_length(%Array* ",
		"call i8* @o_array_get(%Array* ",
		"add i32 ",
	} {
		if !strings.Contains(buildFunc, want) {
			t.Errorf("expected S_build to contain %q, got:\n%s", want, buildFunc)
		}
	}
}

// No basic block contains an instruction emitted after its terminator.
func TestEmitNoInstructionsAfterTerminator(t *testing.T) {
	src := `
class A is
	method f(): Integer => 1
end

class B extends A is
	method f(): Integer => 2
end

class S is
	method build(): Integer is
		var a: Array[Integer](10)
		var n: a.Length()
		var f: a.get(0)
		if n.Less(0) then
			return Integer(0)
		else
			return n.Plus(f)
		end
	end
end

class Main is
	var x: A()
	method g(): Integer => x.f()
end
`
	ir, _ := compile(t, src)
	checkNoInstructionsAfterTerminator(t, ir)
}

func extractFunction(t *testing.T, ir, name string) string {
	t.Helper()
	idx := strings.Index(ir, "define")
	for idx != -1 {
		rest := ir[idx:]
		nameIdx := strings.Index(rest, name)
		brace := strings.Index(rest, "{")
		if nameIdx != -1 && brace != -1 && nameIdx < brace {
			end := strings.Index(rest, "\n}\n")
			if end == -1 {
				end = len(rest)
			}
			return rest[:end]
		}
		next := strings.Index(rest[1:], "define")
		if next == -1 {
			break
		}
		idx += 1 + next
	}
	t.Fatalf("function %s not found in emitted IR:\n%s", name, ir)
	return ""
}

var terminatorPrefixes = []string{"ret ", "ret void", "br ", "switch ", "unreachable"}

func isTerminator(line string) bool {
	for _, p := range terminatorPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// checkNoInstructionsAfterTerminator scans every `define ... { ... }`
// block in ir and fails if any basic block (delimited by a `label:`
// line) contains a non-blank line after its first terminator.
func checkNoInstructionsAfterTerminator(t *testing.T, ir string) {
	t.Helper()
	lines := strings.Split(ir, "\n")
	inFunc := false
	terminated := false
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "define "):
			inFunc = true
			terminated = false
		case line == "}":
			inFunc = false
		case !inFunc || line == "":
			continue
		case strings.HasSuffix(line, ":") && !strings.Contains(line, " "):
			// a label line opens a fresh block
			terminated = false
		case isTerminator(line):
			if terminated {
				t.Errorf("line %d: instruction %q after an earlier terminator in the same block", i+1, line)
			}
			terminated = true
		default:
			if terminated {
				t.Errorf("line %d: instruction %q emitted after a terminator", i+1, line)
			}
		}
	}
}
