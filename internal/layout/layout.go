// Package layout computes per-class object layouts from a finished
// sema.SemanticModel: classId assignment, single-inheritance field
// linearization, and a method-signature-to-implementation table that
// folds inherited methods in before a subclass's own overrides are
// applied. It is the backend's only consumer of the analyzer's output
// beyond the IR emitter itself, grounded on the teacher's
// bytecode/object_layout.go and bytecode/vtable.go ClassLayout design —
// trimmed of the JIT-era fixed-offset/unsafe machinery, since the IR
// emitter addresses fields by GEP index, not by byte offset into a
// runtime object header.
package layout

import (
	"fmt"
	"strings"

	"github.com/tangzhangming/nova/internal/sema"
)

// ClassIDField is the name of the synthetic runtime-tag field every root
// class gets prepended at index 0.
const ClassIDField = "__classId"

// FieldSlot is one field in a class's linearized layout.
type FieldSlot struct {
	Name  string
	Type  sema.Type
	Index int
}

// MethodKey identifies one overload signature for the method table:
// a name plus its canonical parameter-type-name sequence, joined so it
// can key a plain map.
type MethodKey struct {
	Name   string
	Params string
}

func paramsKey(names []string) string { return strings.Join(names, ",") }

// MethodBinding is the method table's value: which class declares the
// implementation actually reached for this signature, and the symbol
// itself (whose Implementation may be nil if the method was only ever
// forward-declared).
type MethodBinding struct {
	DeclaringClass string
	Method         *sema.MethodSymbol
}

// ClassLayout is one class's computed layout.
type ClassLayout struct {
	Name       string
	ClassID    int
	Base       string // "" if none, or a builtin name (no layout to inherit)
	BaseLayout *ClassLayout

	Fields     []*FieldSlot
	fieldIndex map[string]int

	Methods map[MethodKey]*MethodBinding

	// Derived holds this class's direct subclasses, populated as they
	// are built, so dynamic dispatch (§4.10) can walk descendants
	// root-first, depth-first.
	Derived []*ClassLayout
}

func newClassLayout(name, base string) *ClassLayout {
	return &ClassLayout{
		Name:       name,
		Base:       base,
		fieldIndex: make(map[string]int),
		Methods:    make(map[MethodKey]*MethodBinding),
	}
}

func (c *ClassLayout) addField(name string, t sema.Type) {
	c.fieldIndex[name] = len(c.Fields)
	c.Fields = append(c.Fields, &FieldSlot{Name: name, Type: t, Index: len(c.Fields)})
}

// FieldIndex returns the GEP index of the named field, or -1.
func (c *ClassLayout) FieldIndex(name string) int {
	if idx, ok := c.fieldIndex[name]; ok {
		return idx
	}
	return -1
}

// FieldByIndex returns the field at idx, or nil.
func (c *ClassLayout) FieldByIndex(idx int) *FieldSlot {
	if idx < 0 || idx >= len(c.Fields) {
		return nil
	}
	return c.Fields[idx]
}

// MethodTable looks up the (name, paramTypeNames) signature, returning
// the binding that would actually be reached from an instance statically
// typed as this class (base entries already folded in by Build).
func (c *ClassLayout) MethodTable(name string, paramTypeNames []string) *MethodBinding {
	return c.Methods[MethodKey{Name: name, Params: paramsKey(paramTypeNames)}]
}

// Descendants returns c itself followed by every subclass, enumerated
// root-first depth-first through Derived — the iteration order §4.10
// requires for a dynamic-dispatch switch's case list.
func (c *ClassLayout) Descendants() []*ClassLayout {
	out := []*ClassLayout{c}
	for _, d := range c.Derived {
		out = append(out, d.Descendants()...)
	}
	return out
}

// Program is the whole-program output of Build: every class's layout,
// plus the designated entry class for §4.12's main generation.
type Program struct {
	ByName  map[string]*ClassLayout
	Ordered []*ClassLayout // classId order, 1..N
}

// EntryClass returns the class main() should instantiate: the one
// literally named "Main", else the first class in program order that
// has a layout, else nil.
func (p *Program) EntryClass() *ClassLayout {
	if c, ok := p.ByName["Main"]; ok {
		return c
	}
	for _, c := range p.Ordered {
		return c
	}
	return nil
}

// CanonicalParamName is §4.8's canonical parameter-type name: primitives
// keep their short name, everything else (class names, Array[E]/List[E])
// is sanitized to [A-Za-z0-9_].
func CanonicalParamName(t sema.Type) string {
	switch t.Kind {
	case sema.Integer:
		return "Integer"
	case sema.Real:
		return "Real"
	case sema.Boolean:
		return "Boolean"
	case sema.Void:
		return "Void"
	default:
		return sema.SanitizeTypeName(t.Name)
	}
}

// CanonicalParamNames maps CanonicalParamName over a parameter list.
func CanonicalParamNames(params []*sema.VariableSymbol) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = CanonicalParamName(p.Type)
	}
	return out
}

// Build implements §4.8 for the whole program: classId assignment,
// field linearization, and method-table folding, processed in
// model.ClassOrder (already base-first topological, per sema's
// analyzeClasses sweep).
func Build(model *sema.SemanticModel) (*Program, error) {
	prog := &Program{ByName: make(map[string]*ClassLayout, len(model.ClassOrder))}

	nextID := 1
	for _, name := range model.ClassOrder {
		cs, ok := model.ClassesByName[name]
		if !ok {
			return nil, fmt.Errorf("layout: class %q missing from semantic model", name)
		}

		cl := newClassLayout(name, cs.Base)
		cl.ClassID = nextID
		nextID++

		baseLayout, hasBaseLayout := prog.ByName[cs.Base]
		cl.BaseLayout = baseLayout

		if hasBaseLayout {
			for _, f := range baseLayout.Fields {
				cl.addField(f.Name, f.Type)
			}
			for k, v := range baseLayout.Methods {
				cl.Methods[k] = v
			}
			baseLayout.Derived = append(baseLayout.Derived, cl)
		} else {
			// no base, or a builtin base with no layout to inherit:
			// this class is a fresh root and gets the runtime tag.
			cl.addField(ClassIDField, sema.IntegerType)
		}

		for _, f := range cs.Fields {
			if cl.FieldIndex(f.Name) >= 0 {
				continue // already present via inheritance; shouldn't happen post-analysis
			}
			cl.addField(f.Name, f.Type)
		}

		for methodName, overloads := range cs.Methods {
			for _, m := range overloads {
				key := MethodKey{Name: methodName, Params: paramsKey(m.ParamTypeNames())}
				cl.Methods[key] = &MethodBinding{DeclaringClass: name, Method: m}
			}
		}

		prog.ByName[name] = cl
		prog.Ordered = append(prog.Ordered, cl)
	}

	return prog, nil
}
