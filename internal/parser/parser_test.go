package parser

import (
	"testing"

	"github.com/tangzhangming/nova/internal/ast"
)

func TestParseMinimalClass(t *testing.T) {
	src := `
class Empty is
end
`
	p := New(src, "test.lo")
	prog := p.Parse()

	if p.HasErrors() {
		for _, err := range p.Errors() {
			t.Errorf("parser error: %v", err)
		}
	}
	if len(prog.Classes) != 1 {
		t.Fatalf("expected 1 class, got %d", len(prog.Classes))
	}
	if prog.Classes[0].Name != "Empty" {
		t.Errorf("expected class name Empty, got %s", prog.Classes[0].Name)
	}
}

func TestParseFieldsAndInheritance(t *testing.T) {
	src := `
class Animal is
	var name: Integer
	method speak(): Integer => name
end

class Dog extends Animal is
	var legs: Integer
end
`
	p := New(src, "test.lo")
	prog := p.Parse()

	if p.HasErrors() {
		for _, err := range p.Errors() {
			t.Errorf("parser error: %v", err)
		}
	}
	if len(prog.Classes) != 2 {
		t.Fatalf("expected 2 classes, got %d", len(prog.Classes))
	}
	dog := prog.Classes[1]
	if dog.Base != "Animal" {
		t.Errorf("expected Dog to extend Animal, got %q", dog.Base)
	}
	if len(dog.Fields()) != 1 {
		t.Errorf("expected 1 field on Dog, got %d", len(dog.Fields()))
	}

	animal := prog.Classes[0]
	methods := animal.Methods()
	if len(methods) != 1 {
		t.Fatalf("expected 1 method on Animal, got %d", len(methods))
	}
	body := methods[0].Body
	if body == nil || len(body.Statements) != 1 {
		t.Fatalf("expected desugared '=>' body to contain one statement")
	}
	if _, ok := body.Statements[0].(*ast.ReturnStmt); !ok {
		t.Errorf("expected desugared body's statement to be a ReturnStmt, got %T", body.Statements[0])
	}
}

func TestParseForwardDeclaration(t *testing.T) {
	src := `
class Shape is
	method area(): Real
end
`
	p := New(src, "test.lo")
	prog := p.Parse()

	if p.HasErrors() {
		for _, err := range p.Errors() {
			t.Errorf("parser error: %v", err)
		}
	}
	m := prog.Classes[0].Methods()[0]
	if !m.IsForwardDeclaration() {
		t.Errorf("expected area() to be a forward declaration")
	}
}

func TestParseConstructorAndStatements(t *testing.T) {
	src := `
class Counter is
	var count: Integer

	constructor(start: Integer) is
		count = start
	end

	method increment() is
		var step: Integer
		step = 1
		if count.Less(0) then
			count = 0
		else
			count = count.Plus(step)
		end
		while count.Less(10) loop
			count = count.Plus(1)
		end
		return
	end
end
`
	p := New(src, "test.lo")
	prog := p.Parse()

	if p.HasErrors() {
		for _, err := range p.Errors() {
			t.Errorf("parser error: %v", err)
		}
	}

	class := prog.Classes[0]
	if len(class.Constructors()) != 1 {
		t.Fatalf("expected 1 constructor, got %d", len(class.Constructors()))
	}

	methods := class.Methods()
	if len(methods) != 1 {
		t.Fatalf("expected 1 method, got %d", len(methods))
	}
	body := methods[0].Body
	if body == nil {
		t.Fatal("expected increment() to have a body")
	}
	if len(body.Statements) != 5 {
		t.Fatalf("expected 5 statements in increment(), got %d", len(body.Statements))
	}
	if _, ok := body.Statements[0].(*ast.VarDeclStmt); !ok {
		t.Errorf("expected statement 0 to be VarDeclStmt, got %T", body.Statements[0])
	}
	if _, ok := body.Statements[1].(*ast.AssignStmt); !ok {
		t.Errorf("expected statement 1 to be AssignStmt, got %T", body.Statements[1])
	}
	if _, ok := body.Statements[2].(*ast.IfStmt); !ok {
		t.Errorf("expected statement 2 to be IfStmt, got %T", body.Statements[2])
	}
	if _, ok := body.Statements[3].(*ast.WhileStmt); !ok {
		t.Errorf("expected statement 3 to be WhileStmt, got %T", body.Statements[3])
	}
}

func TestParseGenericConstructorCall(t *testing.T) {
	src := `
class Holder is
	var items: Array
	constructor() is
		items = Array[Integer](10)
	end
end
`
	p := New(src, "test.lo")
	prog := p.Parse()

	if p.HasErrors() {
		for _, err := range p.Errors() {
			t.Errorf("parser error: %v", err)
		}
	}

	ctor := prog.Classes[0].Constructors()[0]
	assign, ok := ctor.Body.Statements[0].(*ast.AssignStmt)
	if !ok {
		t.Fatalf("expected AssignStmt, got %T", ctor.Body.Statements[0])
	}
	call, ok := assign.Value.(*ast.ConstructorCall)
	if !ok {
		t.Fatalf("expected ConstructorCall, got %T", assign.Value)
	}
	if call.ClassName != "Array" {
		t.Errorf("expected constructor class Array, got %s", call.ClassName)
	}
	if call.GenericArg == nil || call.GenericArg.String() != "Integer" {
		t.Errorf("expected generic arg Integer, got %v", call.GenericArg)
	}
}

func TestParseMethodChainCall(t *testing.T) {
	src := `
class Demo is
	method run(): Integer => this.helper().Plus(1)
	method helper(): Integer => 41
end
`
	p := New(src, "test.lo")
	prog := p.Parse()

	if p.HasErrors() {
		for _, err := range p.Errors() {
			t.Errorf("parser error: %v", err)
		}
	}

	run := prog.Classes[0].Methods()[0]
	ret := run.Body.Statements[0].(*ast.ReturnStmt)
	outer, ok := ret.Value.(*ast.Call)
	if !ok {
		t.Fatalf("expected outer Call, got %T", ret.Value)
	}
	access, ok := outer.Callee.(*ast.MemberAccess)
	if !ok {
		t.Fatalf("expected Callee to be MemberAccess, got %T", outer.Callee)
	}
	if access.Member != "Plus" {
		t.Errorf("expected member Plus, got %s", access.Member)
	}
	inner, ok := access.Target.(*ast.Call)
	if !ok {
		t.Fatalf("expected inner Call, got %T", access.Target)
	}
	innerAccess, ok := inner.Callee.(*ast.MemberAccess)
	if !ok {
		t.Fatalf("expected inner Callee to be MemberAccess, got %T", inner.Callee)
	}
	if _, ok := innerAccess.Target.(*ast.ThisExpr); !ok {
		t.Errorf("expected innermost target to be ThisExpr, got %T", innerAccess.Target)
	}
}

func TestParseErrorRecoverySkipsToNextClass(t *testing.T) {
	src := `
class Broken is
	var x
end

class Fine is
end
`
	p := New(src, "test.lo")
	prog := p.Parse()

	if !p.HasErrors() {
		t.Fatal("expected a syntax error for the missing ':' in Broken")
	}
	var names []string
	for _, c := range prog.Classes {
		names = append(names, c.Name)
	}
	found := false
	for _, n := range names {
		if n == "Fine" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected recovery to still parse class Fine, got classes %v", names)
	}
}
