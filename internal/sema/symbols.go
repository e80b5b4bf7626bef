package sema

import (
	"strings"

	"github.com/tangzhangming/nova/internal/ast"
)

// VariableKind classifies a VariableSymbol's storage.
type VariableKind int

const (
	Field VariableKind = iota
	Local
	Parameter
)

// VariableSymbol is a resolved field, local, or parameter. IsUsed is
// monotonic: cleanup only ever reads it after all uses within its scope
// have been recorded, never resets it.
type VariableSymbol struct {
	Name   string
	Type   Type
	Kind   VariableKind
	Node   ast.Node
	IsUsed bool
}

// MarkUsed records a read of this variable.
func (v *VariableSymbol) MarkUsed() { v.IsUsed = true }

// MethodSymbol is one overload of a method name: a parameter list, a
// resolved return type, and links back to the declaration/implementation
// AST nodes that contributed it.
type MethodSymbol struct {
	Name           string
	Params         []*VariableSymbol // Kind == Parameter, in order
	ReturnType     Type
	Declaration    *ast.MethodDecl // bodyless header, nil if none was seen
	Implementation *ast.MethodDecl // body-bearing node, nil until analyzed
}

// ParamTypeNames returns the canonical parameter-type-name sequence used
// for overload matching and mangling.
func (m *MethodSymbol) ParamTypeNames() []string {
	names := make([]string, len(m.Params))
	for i, p := range m.Params {
		names[i] = p.Type.Name
	}
	return names
}

func sameTypeNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ConstructorSymbol is one constructor overload.
type ConstructorSymbol struct {
	Params []*VariableSymbol
	Node   *ast.ConstructorDecl
}

func (c *ConstructorSymbol) ParamTypeNames() []string {
	names := make([]string, len(c.Params))
	for i, p := range c.Params {
		names[i] = p.Type.Name
	}
	return names
}

// ClassSymbol is the analyzer's working record for one class: its own
// fields/methods/constructors, plus the base-class name it extends.
type ClassSymbol struct {
	Name         string
	Base         string // "" if no base
	Node         *ast.ClassDecl
	Fields       []*VariableSymbol    // Kind == Field, insertion order
	fieldIndex   map[string]int       // Name -> index into Fields
	Overloads    map[string][]*MethodSymbol // methodName -> overload set
	Constructors []*ConstructorSymbol
	analyzed     bool
}

func newClassSymbol(decl *ast.ClassDecl) *ClassSymbol {
	return &ClassSymbol{
		Name:       decl.Name,
		Base:       decl.Base,
		Node:       decl,
		fieldIndex: make(map[string]int),
		Overloads:  make(map[string][]*MethodSymbol),
	}
}

// FieldByName returns the field symbol named name declared directly on
// this class, or nil.
func (c *ClassSymbol) FieldByName(name string) *VariableSymbol {
	if idx, ok := c.fieldIndex[name]; ok {
		return c.Fields[idx]
	}
	return nil
}

func (c *ClassSymbol) addField(f *VariableSymbol) {
	c.fieldIndex[f.Name] = len(c.Fields)
	c.Fields = append(c.Fields, f)
}

// removeField drops the field named name, used by dead-field cleanup.
func (c *ClassSymbol) removeField(name string) {
	out := c.Fields[:0]
	for _, f := range c.Fields {
		if f.Name != name {
			out = append(out, f)
		}
	}
	c.Fields = out
	delete(c.fieldIndex, name)
	for i, f := range c.Fields {
		c.fieldIndex[f.Name] = i
	}
}

// findOverload returns the existing MethodSymbol in this class whose
// parameter-type names match paramTypeNames exactly, or nil.
func (c *ClassSymbol) findOverload(name string, paramTypeNames []string) *MethodSymbol {
	for _, m := range c.Overloads[name] {
		if sameTypeNames(m.ParamTypeNames(), paramTypeNames) {
			return m
		}
	}
	return nil
}

// findConstructor returns the ConstructorSymbol whose parameter-type
// names match exactly, or nil.
func (c *ClassSymbol) findConstructor(paramTypeNames []string) *ConstructorSymbol {
	for _, ctor := range c.Constructors {
		if sameTypeNames(ctor.ParamTypeNames(), paramTypeNames) {
			return ctor
		}
	}
	return nil
}

// Scope is a lexical block of variable bindings with an optional parent.
// Lookups walk parents; declarations only ever touch the current scope.
type Scope struct {
	parent *Scope
	vars   map[string]*VariableSymbol
	// loopDepth counts enclosing while-loops at this scope, unused by
	// analysis today but threaded through per §4.6's "loopDepth+1" note
	// so a future break/continue extension has somewhere to read it.
	loopDepth int
	// allowsReturn is true inside a method/constructor body.
	allowsReturn bool
}

// NewRootScope creates a scope with no parent, used as ForFields or
// ForMethod per §3.
func NewRootScope(allowsReturn bool) *Scope {
	return &Scope{vars: make(map[string]*VariableSymbol), allowsReturn: allowsReturn}
}

// Child creates a nested scope (loop/if body) inheriting allowsReturn.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s, vars: make(map[string]*VariableSymbol), loopDepth: s.loopDepth, allowsReturn: s.allowsReturn}
}

// ChildLoop creates a nested scope with loopDepth incremented.
func (s *Scope) ChildLoop() *Scope {
	child := s.Child()
	child.loopDepth = s.loopDepth + 1
	return child
}

// AllowsReturn reports whether a `return` statement is legal in this scope.
func (s *Scope) AllowsReturn() bool { return s.allowsReturn }

// DeclaredHere reports whether name is bound in this exact scope (not a
// parent), used by the DuplicateVariable check.
func (s *Scope) DeclaredHere(name string) bool {
	_, ok := s.vars[name]
	return ok
}

// Declare binds name to sym in this scope.
func (s *Scope) Declare(name string, sym *VariableSymbol) {
	s.vars[name] = sym
}

// Lookup walks this scope then its parents, returning the first binding
// for name, or nil.
func (s *Scope) Lookup(name string) *VariableSymbol {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.vars[name]; ok {
			return sym
		}
	}
	return nil
}

// SanitizeTypeName replaces any character outside [A-Za-z0-9_] with '_',
// the canonical form used by the mangler and layout builder for
// reference type names (§4.8).
func SanitizeTypeName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
