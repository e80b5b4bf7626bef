// Package sema implements the semantic analyzer: name resolution,
// inheritance analysis, overload registration, type checking, usage
// tracking, and the three dead-code cleanups (dead field, dead local,
// unreachable-after-return). Its output is a SemanticModel consumed by
// the layout builder and IR emitter.
package sema

import (
	"fmt"
	"strings"

	"github.com/tangzhangming/nova/internal/ast"
	"github.com/tangzhangming/nova/internal/errors"
)

// TypeKind classifies a SemanticType.
type TypeKind int

const (
	Void TypeKind = iota
	Integer
	Real
	Boolean
	Array
	List
	Class
	Standard
	Unknown
)

func (k TypeKind) String() string {
	switch k {
	case Void:
		return "Void"
	case Integer:
		return "Integer"
	case Real:
		return "Real"
	case Boolean:
		return "Boolean"
	case Array:
		return "Array"
	case List:
		return "List"
	case Class:
		return "Class"
	case Standard:
		return "Standard"
	default:
		return "Unknown"
	}
}

// Type is a semantic type: a canonical name plus a kind tag. Apart from
// the Standard wildcard (see Equal), two Types are equal iff their names
// match byte-for-byte; kind alone is never
// used for comparison (spec's Array[E]/List[E] carry the element name
// inside Name, so two arrays of different element types have different
// Names even though both have kind Array).
type Type struct {
	Name string
	Kind TypeKind
}

// Equal reports whether t and other denote the same type, applying the
// Standard-is-a-universal-wildcard rule uniformly wherever two types
// are compared (overload matching, assignment, return, argument checks).
func (t Type) Equal(other Type) bool {
	if t.Kind == Standard || other.Kind == Standard {
		return true
	}
	return t.Name == other.Name
}

var (
	VoidType    = Type{Name: "Void", Kind: Void}
	IntegerType = Type{Name: "Integer", Kind: Integer}
	RealType    = Type{Name: "Real", Kind: Real}
	BooleanType = Type{Name: "Boolean", Kind: Boolean}
	StandardType = Type{Name: "Standard", Kind: Standard}
	UnknownType  = Type{Name: "Unknown", Kind: Unknown}
)

// ClassType returns the semantic type for a declared class named name.
func ClassType(name string) Type {
	return Type{Name: name, Kind: Class}
}

// ArrayType returns Array[elem].
func ArrayType(elem Type) Type {
	return Type{Name: fmt.Sprintf("Array[%s]", elem.Name), Kind: Array}
}

// ListType returns List[elem].
func ListType(elem Type) Type {
	return Type{Name: fmt.Sprintf("List[%s]", elem.Name), Kind: List}
}

// ArrayElemName extracts E from "Array[E]"; ok is false if t is not an
// Array-kind type of that shape.
func ArrayElemName(t Type) (string, bool) {
	return genericElemName(t, "Array")
}

// ListElemName extracts E from "List[E]".
func ListElemName(t Type) (string, bool) {
	return genericElemName(t, "List")
}

func genericElemName(t Type, prefix string) (string, bool) {
	p := prefix + "["
	if !strings.HasPrefix(t.Name, p) || !strings.HasSuffix(t.Name, "]") {
		return "", false
	}
	return t.Name[len(p) : len(t.Name)-1], true
}

// resolveTypeRef implements spec §4.3: built-ins, declared classes,
// Array[T]/List[T], and the legacy bare-Array/bare-List wildcard.
func (a *Analyzer) resolveTypeRef(ref ast.TypeRef) (Type, *errors.CompileError) {
	switch t := ref.(type) {
	case *ast.NamedTypeRef:
		switch t.Name {
		case "Integer":
			return IntegerType, nil
		case "Real":
			return RealType, nil
		case "Boolean":
			return BooleanType, nil
		case "Void", "void", "VOID":
			return VoidType, nil
		}
		if _, ok := a.classes[t.Name]; ok {
			return ClassType(t.Name), nil
		}
		return Type{}, a.errf(errors.TypeNotDeclared, t.Tok.Pos, "unknown type %q", t.Name)

	case *ast.GenericTypeRef:
		if t.Elem == nil {
			// legacy bare Array/List parameter-position spelling
			return StandardType, nil
		}
		elem, err := a.resolveTypeRef(t.Elem)
		if err != nil {
			return Type{}, err
		}
		if t.Name == "Array" {
			return ArrayType(elem), nil
		}
		return ListType(elem), nil

	default:
		return Type{}, a.errf(errors.TypeNotDeclared, ref.Pos(), "unknown type reference")
	}
}
