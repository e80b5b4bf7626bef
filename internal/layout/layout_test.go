package layout

import (
	"testing"

	"github.com/tangzhangming/nova/internal/parser"
	"github.com/tangzhangming/nova/internal/sema"
)

func buildLayout(t *testing.T, src string) *Program {
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
	layout, err2 := Build(model)
	if err2 != nil {
		t.Fatalf("layout error: %v", err2)
	}
	return layout
}

// classId sequence equals [1..N] in topological base-first order.
func TestBuildAssignsTopologicalClassIDs(t *testing.T) {
	src := `
class A is
end

class B extends A is
end

class Main extends B is
end
`
	prog := buildLayout(t, src)
	want := map[string]int{"A": 1, "B": 2, "Main": 3}
	for name, id := range want {
		cl, ok := prog.ByName[name]
		if !ok {
			t.Fatalf("missing layout for %s", name)
		}
		if cl.ClassID != id {
			t.Errorf("expected %s.ClassID == %d, got %d", name, id, cl.ClassID)
		}
	}
	for i, cl := range prog.Ordered {
		if cl.ClassID != i+1 {
			t.Errorf("Ordered[%d] has ClassID %d, want %d", i, cl.ClassID, i+1)
		}
	}
}

// Field index 0 is always __classId, and is not duplicated by a subclass.
func TestFieldZeroIsClassIDNotDuplicated(t *testing.T) {
	src := `
class A is
	var x: Integer(1)
	method getX(): Integer is
		return x
	end
end

class B extends A is
	var y: Integer(2)
	method getY(): Integer is
		return y
	end
end
`
	prog := buildLayout(t, src)

	a := prog.ByName["A"]
	if len(a.Fields) == 0 || a.Fields[0].Name != ClassIDField {
		t.Fatalf("expected A.Fields[0] == %s, got %v", ClassIDField, fieldNames(a.Fields))
	}
	if count := countField(a.Fields, ClassIDField); count != 1 {
		t.Errorf("expected exactly one %s field on A, got %d", ClassIDField, count)
	}

	b := prog.ByName["B"]
	if len(b.Fields) == 0 || b.Fields[0].Name != ClassIDField {
		t.Fatalf("expected B.Fields[0] == %s, got %v", ClassIDField, fieldNames(b.Fields))
	}
	if count := countField(b.Fields, ClassIDField); count != 1 {
		t.Errorf("expected %s to not be duplicated on B, got %d occurrences", ClassIDField, count)
	}

	wantOrder := []string{ClassIDField, "x", "y"}
	got := fieldNames(b.Fields)
	if len(got) != len(wantOrder) {
		t.Fatalf("expected B.Fields order %v, got %v", wantOrder, got)
	}
	for i, name := range wantOrder {
		if got[i] != name {
			t.Errorf("B.Fields[%d] = %q, want %q (full: %v)", i, got[i], name, got)
		}
	}
}

func fieldNames(fields []*FieldSlot) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

func countField(fields []*FieldSlot, name string) int {
	n := 0
	for _, f := range fields {
		if f.Name == name {
			n++
		}
	}
	return n
}

// A subclass override folds base-first: the method table entry for a
// shared signature resolves to the subclass's own implementation.
func TestMethodTableOverrideByOverwrite(t *testing.T) {
	src := `
class A is
	method f(): Integer => 1
end

class B extends A is
	method f(): Integer => 2
end
`
	prog := buildLayout(t, src)

	b := prog.ByName["B"]
	binding := b.MethodTable("f", nil)
	if binding == nil {
		t.Fatal("expected B's method table to resolve f()")
	}
	if binding.DeclaringClass != "B" {
		t.Errorf("expected B's f() to resolve to its own override, got declared on %s", binding.DeclaringClass)
	}

	a := prog.ByName["A"]
	aBinding := a.MethodTable("f", nil)
	if aBinding == nil || aBinding.DeclaringClass != "A" {
		t.Errorf("expected A's own f() binding to remain declared on A")
	}

	descendants := a.Descendants()
	if len(descendants) != 2 || descendants[0].Name != "A" || descendants[1].Name != "B" {
		t.Errorf("expected Descendants() == [A, B], got %v", fieldNames2(descendants))
	}
}

func fieldNames2(layouts []*ClassLayout) []string {
	out := make([]string, len(layouts))
	for i, l := range layouts {
		out[i] = l.Name
	}
	return out
}
