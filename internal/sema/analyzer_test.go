package sema

import (
	"testing"

	"github.com/tangzhangming/nova/internal/ast"
	"github.com/tangzhangming/nova/internal/errors"
	"github.com/tangzhangming/nova/internal/parser"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	p := parser.New(src, "test.lo")
	prog := p.Parse()
	if p.HasErrors() {
		for _, e := range p.Errors() {
			t.Fatalf("parser error: %v", e)
		}
	}
	return prog
}

// Scenario 1: inheritance + override dispatch.
func TestAnalyzeInheritanceOverrideDispatch(t *testing.T) {
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
	prog := mustParse(t, src)
	model, err := New(nil).Analyze(prog)
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}

	wantOrder := []string{"A", "B", "Main"}
	if len(model.ClassOrder) != len(wantOrder) {
		t.Fatalf("expected classOrder %v, got %v", wantOrder, model.ClassOrder)
	}
	for i, name := range wantOrder {
		if model.ClassOrder[i] != name {
			t.Errorf("classOrder[%d] = %q, want %q (full: %v)", i, model.ClassOrder[i], name, model.ClassOrder)
		}
	}

	xField := model.ClassesByName["Main"].Fields[0]
	if xField.Name != "x" || xField.Type.Name != "A" {
		t.Errorf("expected field x: A, got %s: %s", xField.Name, xField.Type.Name)
	}
}

// Scenario 2: dead code elimination (unused field dropped).
func TestAnalyzeDeadFieldElimination(t *testing.T) {
	src := `
class S is
	var used: Integer(1)
	var unused: Integer(2)
	method m(): Integer is
		var keep: Integer(10)
		var drop: Integer(11)
		return keep
	end
end
`
	prog := mustParse(t, src)
	model, err := New(nil).Analyze(prog)
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}

	sc := model.ClassesByName["S"]
	if len(sc.Fields) != 1 || sc.Fields[0].Name != "used" {
		t.Fatalf("expected only field %q to survive, got %v", "used", fieldNames(sc.Fields))
	}

	m := sc.Methods["m"][0]
	body := m.Implementation.Body
	if len(body.Statements) != 2 {
		t.Fatalf("expected 2 surviving statements (keep, return), got %d", len(body.Statements))
	}
	if decl, ok := body.Statements[0].(*ast.VarDeclStmt); !ok || decl.Name != "keep" {
		t.Errorf("expected statement 0 to be VarDeclStmt(keep), got %#v", body.Statements[0])
	}
	if _, ok := body.Statements[1].(*ast.ReturnStmt); !ok {
		t.Errorf("expected statement 1 to be ReturnStmt, got %T", body.Statements[1])
	}
}

func fieldNames(fields []*VariableSymbol) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// Scenario 3: unreachable code after return.
func TestAnalyzeUnreachableAfterReturn(t *testing.T) {
	src := `
class S is
	method m(): Integer is
		return Integer(1)
		var z: Integer(2)
		return Integer(3)
	end
end
`
	prog := mustParse(t, src)
	model, err := New(nil).Analyze(prog)
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}

	m := model.ClassesByName["S"].Methods["m"][0]
	body := m.Implementation.Body
	if len(body.Statements) != 1 {
		t.Fatalf("expected body to reduce to 1 statement, got %d", len(body.Statements))
	}
	if _, ok := body.Statements[0].(*ast.ReturnStmt); !ok {
		t.Errorf("expected the surviving statement to be a ReturnStmt, got %T", body.Statements[0])
	}
}

// Scenario 4: array typing and built-ins.
func TestAnalyzeArrayTypingAndBuiltins(t *testing.T) {
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
	prog := mustParse(t, src)
	model, err := New(nil).Analyze(prog)
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}

	m := model.ClassesByName["S"].Methods["build"][0]
	body := m.Implementation.Body

	var aNode, nNode, fNode *ast.VarDeclStmt
	for _, s := range body.Statements {
		decl, ok := s.(*ast.VarDeclStmt)
		if !ok {
			continue
		}
		switch decl.Name {
		case "a":
			aNode = decl
		case "n":
			nNode = decl
		case "f":
			fNode = decl
		}
	}
	if aNode == nil || nNode == nil || fNode == nil {
		t.Fatalf("expected a, n, f locals to survive; body has %d statements", len(body.Statements))
	}

	if got := model.VariableTypes[aNode.ID()]; got.Name != "Array[Integer]" {
		t.Errorf("expected a: Array[Integer], got %s", got.Name)
	}
	if got := model.VariableTypes[nNode.ID()]; got.Name != "Integer" {
		t.Errorf("expected n: Integer, got %s", got.Name)
	}
	if got := model.VariableTypes[fNode.ID()]; got.Name != "Integer" {
		t.Errorf("expected f: Integer, got %s", got.Name)
	}
}

// Scenario 5: overload resolution + forward declaration.
func TestAnalyzeOverloadResolutionAndForwardDeclaration(t *testing.T) {
	src := `
class C is
	method f(): Integer
	method f(x: Integer): Integer => x
end
`
	prog := mustParse(t, src)
	model, err := New(nil).Analyze(prog)
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}

	overloads := model.ClassesByName["C"].Methods["f"]
	if len(overloads) != 2 {
		t.Fatalf("expected 2 overloads of f, got %d", len(overloads))
	}
	for _, m := range overloads {
		if m.Implementation != nil && m.Declaration == nil {
			t.Errorf("overload with an implementation should also record a declaration")
		}
	}

	zeroArg := model.ClassesByName["C"].MethodByExactSignature("f", nil)
	if zeroArg == nil {
		t.Fatal("expected a zero-arg overload of f")
	}
	if zeroArg.Implementation != nil {
		t.Errorf("expected the zero-arg overload to remain a forward declaration")
	}

	oneArg := model.ClassesByName["C"].MethodByExactSignature("f", []string{"Integer"})
	if oneArg == nil || oneArg.Implementation == nil {
		t.Fatal("expected a one-arg overload of f with an implementation")
	}
}

// Scenario 6: inheritance cycle.
func TestAnalyzeInheritanceCycle(t *testing.T) {
	src := `
class A extends B is
end

class B extends A is
end
`
	prog := mustParse(t, src)
	_, err := New(nil).Analyze(prog)
	if err == nil {
		t.Fatal("expected an inheritance-cycle error")
	}
	if err.Kind != errors.InheritanceCycleOrUnresolved {
		t.Errorf("expected InheritanceCycleOrUnresolved, got %s", err.Kind)
	}
}

// Quantified invariant: every VariableDeclaration that survives cleanup
// has a VariableTypes entry.
func TestAnalyzeVariableTypesCoverSurvivingLocals(t *testing.T) {
	src := `
class S is
	method m(): Integer is
		var a: Integer(1)
		return a
	end
end
`
	prog := mustParse(t, src)
	model, err := New(nil).Analyze(prog)
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}
	m := model.ClassesByName["S"].Methods["m"][0]
	decl := m.Implementation.Body.Statements[0].(*ast.VarDeclStmt)
	if _, ok := model.VariableTypes[decl.ID()]; !ok {
		t.Error("expected VariableTypes to contain an entry for the surviving local 'a'")
	}
}

// Quantified invariant: every expression node visited by the analyzer
// has an ExpressionTypes entry.
func TestAnalyzeExpressionTypesCoverVisitedExpressions(t *testing.T) {
	src := `
class S is
	var v: Integer(1)
	method m(): Integer is
		return this.v.Plus(Integer(2))
	end
end
`
	prog := mustParse(t, src)
	model, err := New(nil).Analyze(prog)
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}
	m := model.ClassesByName["S"].Methods["m"][0]
	ret := m.Implementation.Body.Statements[0].(*ast.ReturnStmt)
	if _, ok := model.ExpressionTypes[ret.Value.ID()]; !ok {
		t.Error("expected ExpressionTypes to contain an entry for the return expression")
	}
	call := ret.Value.(*ast.Call)
	access := call.Callee.(*ast.MemberAccess)
	if _, ok := model.ExpressionTypes[access.Target.ID()]; !ok {
		t.Error("expected ExpressionTypes to contain an entry for this.v")
	}
}

// Round trip: removing the only reference to a field makes it eliminated;
// re-adding a reference keeps it.
func TestAnalyzeDeadFieldRoundTrip(t *testing.T) {
	withUse := `
class S is
	var v: Integer(1)
	method m(): Integer => v
end
`
	prog := mustParse(t, withUse)
	model, err := New(nil).Analyze(prog)
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}
	if len(model.ClassesByName["S"].Fields) != 1 {
		t.Fatalf("expected field v to survive when referenced")
	}

	withoutUse := `
class S is
	var v: Integer(1)
	method m(): Integer => Integer(0)
end
`
	prog2 := mustParse(t, withoutUse)
	model2, err := New(nil).Analyze(prog2)
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}
	if len(model2.ClassesByName["S"].Fields) != 0 {
		t.Fatalf("expected field v to be eliminated when unreferenced, got %v", fieldNames(model2.ClassesByName["S"].Fields))
	}
}
