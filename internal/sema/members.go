package sema

import (
	"github.com/tangzhangming/nova/internal/ast"
	"github.com/tangzhangming/nova/internal/errors"
)

// analyzeMembers is the second half of AnalyzeClass (§4.1): it walks
// bodies in declaration order — fields first (so later fields and method
// bodies can reference earlier ones), then method implementations, then
// constructors. registerMembers has already resolved every signature
// without looking at a single body.
func (a *Analyzer) analyzeMembers(cs *ClassSymbol) *errors.CompileError {
	if err := a.analyzeFields(cs); err != nil {
		return err
	}
	if err := a.analyzeMethodBodies(cs); err != nil {
		return err
	}
	return a.analyzeConstructorBodies(cs)
}

// analyzeFields types each field from its initializer in declaration
// order, walking cs.Node.Members rather than an overload map so that a
// later field's initializer can see an earlier one via the this-field
// chain (§4.4's identifier-resolution fallback).
func (a *Analyzer) analyzeFields(cs *ClassSymbol) *errors.CompileError {
	fieldsScope := NewRootScope(false)
	for _, member := range cs.Node.Members {
		f, ok := member.(*ast.FieldDecl)
		if !ok {
			continue
		}
		if cs.FieldByName(f.Name) != nil {
			return a.errf(errors.DuplicateField, f.NameTok.Pos, "field %q already declared in class %q", f.Name, cs.Name)
		}
		t, err := a.evalExpr(f.Init, fieldsScope)
		if err != nil {
			return err
		}
		if t.Kind == Void {
			return a.errf(errors.VoidInitializer, f.Init.Pos(), "field %q's initializer has type Void", f.Name)
		}
		sym := &VariableSymbol{Name: f.Name, Type: t, Kind: Field, Node: f}
		cs.addField(sym)
		a.varTypes[f.NodeID] = t
	}
	return nil
}

// findImplementation returns the overload whose Implementation is md
// itself, by identity, per §4.2's body-analysis precondition.
func (cs *ClassSymbol) findImplementation(md *ast.MethodDecl) *MethodSymbol {
	for _, sym := range cs.Overloads[md.Name] {
		if sym.Implementation == md {
			return sym
		}
	}
	return nil
}

func (a *Analyzer) analyzeMethodBodies(cs *ClassSymbol) *errors.CompileError {
	for _, method := range cs.Node.Methods() {
		if method.Body == nil {
			continue // forward declaration only: nothing to walk
		}
		sym := cs.findImplementation(method)
		if sym == nil {
			return a.errf(errors.SignatureNotDeclared, method.Tok.Pos,
				"implementation of %q does not match any registered overload", method.Name)
		}

		scope := NewRootScope(true)
		for _, p := range sym.Params {
			scope.Declare(p.Name, p)
		}

		prevReturn := a.currentReturnType
		a.currentReturnType = sym.ReturnType
		err := a.analyzeBlock(method.Body, scope)
		a.currentReturnType = prevReturn
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) analyzeConstructorBodies(cs *ClassSymbol) *errors.CompileError {
	for _, ctor := range cs.Constructors {
		scope := NewRootScope(false)
		for _, p := range ctor.Params {
			scope.Declare(p.Name, p)
		}
		if err := a.analyzeBlock(ctor.Node.Body, scope); err != nil {
			return err
		}
	}
	return nil
}
