package sema

import "github.com/tangzhangming/nova/internal/ast"

// SemanticModel is the read-only snapshot Analyze produces: the
// expression-type and variable-type maps accumulated during analysis,
// plus a mirror projection of each class's surviving members. The layout
// builder and IR emitter only ever read through this type; the
// Analyzer's own mutable symbol tables do not escape it.
type SemanticModel struct {
	ExpressionTypes map[ast.NodeID]Type
	VariableTypes   map[ast.NodeID]Type
	ClassesByName   map[string]*SemanticClass
	// ClassOrder is the topological, base-first order classes were
	// analyzed in — the order the layout builder assigns classIds in.
	ClassOrder []string
}

// SemanticClass is the model's read-only view of one analyzed class.
type SemanticClass struct {
	Name         string
	Base         string
	Node         *ast.ClassDecl
	Fields       []*VariableSymbol
	Methods      map[string][]*MethodSymbol
	Constructors []*ConstructorSymbol
}

// MethodByExactSignature returns the method overload on this class
// (not walking inheritance) whose parameter-type names equal paramTypes
// exactly, or nil.
func (c *SemanticClass) MethodByExactSignature(name string, paramTypes []string) *MethodSymbol {
	for _, m := range c.Methods[name] {
		if sameTypeNames(m.ParamTypeNames(), paramTypes) {
			return m
		}
	}
	return nil
}

// buildSemanticModel implements step 4 of §4.1: a snapshot of the
// accumulated type maps plus a materialized SemanticClass per analyzed
// class.
func (a *Analyzer) buildSemanticModel() *SemanticModel {
	model := &SemanticModel{
		ExpressionTypes: a.exprTypes,
		VariableTypes:   a.varTypes,
		ClassesByName:   make(map[string]*SemanticClass, len(a.classes)),
		ClassOrder:      append([]string(nil), a.topoOrder...),
	}
	for name, cs := range a.classes {
		model.ClassesByName[name] = &SemanticClass{
			Name:         cs.Name,
			Base:         cs.Base,
			Node:         cs.Node,
			Fields:       cs.Fields,
			Methods:      cs.Overloads,
			Constructors: cs.Constructors,
		}
	}
	return model
}
