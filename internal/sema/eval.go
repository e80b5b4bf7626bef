package sema

import (
	"strings"

	"github.com/tangzhangming/nova/internal/ast"
	"github.com/tangzhangming/nova/internal/errors"
	"github.com/tangzhangming/nova/internal/token"
)

// evalExpr implements §4.4's expression evaluator: it computes expr's
// semantic type, records it into the analyzer's expression-type map, and
// returns it. Every call site that needs an expression's type goes
// through here so the recording never gets forgotten.
func (a *Analyzer) evalExpr(expr ast.Expression, scope *Scope) (Type, *errors.CompileError) {
	t, err := a.evalExprKind(expr, scope)
	if err != nil {
		return Type{}, err
	}
	a.exprTypes[expr.ID()] = t
	return t, nil
}

func (a *Analyzer) evalExprKind(expr ast.Expression, scope *Scope) (Type, *errors.CompileError) {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		return IntegerType, nil
	case *ast.RealLiteral:
		return RealType, nil
	case *ast.BoolLiteral:
		return BooleanType, nil
	case *ast.Ident:
		return a.evalIdent(e, scope)
	case *ast.ThisExpr:
		return ClassType(a.currentClass.Name), nil
	case *ast.ConstructorCall:
		return a.evalConstructorCall(e, scope)
	case *ast.Call:
		return a.evalCall(e, scope)
	case *ast.MemberAccess:
		return a.evalMemberAccessValue(e, scope)
	default:
		return Type{}, a.errf(errors.TypeNotDeclared, expr.Pos(), "unsupported expression form")
	}
}

func (a *Analyzer) evalIdent(e *ast.Ident, scope *Scope) (Type, *errors.CompileError) {
	if sym := scope.Lookup(e.Name); sym != nil {
		sym.MarkUsed()
		return sym.Type, nil
	}
	if a.currentClass != nil {
		if sym, _ := a.lookupField(a.currentClass, e.Name); sym != nil {
			sym.MarkUsed()
			return sym.Type, nil
		}
	}
	return Type{}, a.errf(errors.UndeclaredIdentifier, e.Tok.Pos, "undeclared identifier %q", e.Name)
}

func (a *Analyzer) evalArgs(args []ast.Expression, scope *Scope) ([]Type, *errors.CompileError) {
	out := make([]Type, len(args))
	for i, arg := range args {
		t, err := a.evalExpr(arg, scope)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// evalConstructorCall implements §4.4's `C(args)` rule: the Array/List
// generic-builtin cases, declared-class constructor overload resolution,
// built-in literal-typed construction, and the UnknownClass fallback.
func (a *Analyzer) evalConstructorCall(e *ast.ConstructorCall, scope *Scope) (Type, *errors.CompileError) {
	switch e.ClassName {
	case "Array":
		return a.evalArrayConstructor(e, scope)
	case "List":
		return a.evalListConstructor(e, scope)
	case "Integer", "Real", "Boolean":
		for _, arg := range e.Args {
			if _, err := a.evalExpr(arg, scope); err != nil {
				return Type{}, err
			}
		}
		switch e.ClassName {
		case "Integer":
			return IntegerType, nil
		case "Real":
			return RealType, nil
		default:
			return BooleanType, nil
		}
	default:
		return a.evalClassConstructor(e, scope)
	}
}

func (a *Analyzer) evalArrayConstructor(e *ast.ConstructorCall, scope *Scope) (Type, *errors.CompileError) {
	if e.GenericArg == nil {
		return Type{}, a.errf(errors.TypeNotDeclared, e.Tok.Pos,
			"Array constructor requires an explicit element type, e.g. Array[Integer](n)")
	}
	elem, err := a.resolveTypeRef(e.GenericArg)
	if err != nil {
		return Type{}, err
	}
	if len(e.Args) != 1 {
		return Type{}, a.errf(errors.ArgumentCountMismatch, e.Tok.Pos, "Array constructor takes exactly one Integer length argument")
	}
	argType, err := a.evalExpr(e.Args[0], scope)
	if err != nil {
		return Type{}, err
	}
	if !argType.Equal(IntegerType) {
		return Type{}, a.errf(errors.TypeMismatch, e.Args[0].Pos(), "Array length argument must be Integer, got %s", argType.Name)
	}
	return ArrayType(elem), nil
}

func (a *Analyzer) evalListConstructor(e *ast.ConstructorCall, scope *Scope) (Type, *errors.CompileError) {
	if e.GenericArg == nil {
		return Type{}, a.errf(errors.TypeNotDeclared, e.Tok.Pos,
			"List constructor requires an explicit element type, e.g. List[Integer]()")
	}
	elem, err := a.resolveTypeRef(e.GenericArg)
	if err != nil {
		return Type{}, err
	}
	switch len(e.Args) {
	case 0:
		// empty list
	case 1:
		t, err := a.evalExpr(e.Args[0], scope)
		if err != nil {
			return Type{}, err
		}
		if !t.Equal(elem) {
			return Type{}, a.errf(errors.TypeMismatch, e.Args[0].Pos(), "List singleton argument must be %s, got %s", elem.Name, t.Name)
		}
	case 2:
		t, err := a.evalExpr(e.Args[0], scope)
		if err != nil {
			return Type{}, err
		}
		if !t.Equal(elem) {
			return Type{}, a.errf(errors.TypeMismatch, e.Args[0].Pos(), "List replicate element argument must be %s, got %s", elem.Name, t.Name)
		}
		countType, err := a.evalExpr(e.Args[1], scope)
		if err != nil {
			return Type{}, err
		}
		if !countType.Equal(IntegerType) {
			return Type{}, a.errf(errors.TypeMismatch, e.Args[1].Pos(), "List replicate count must be Integer, got %s", countType.Name)
		}
	default:
		return Type{}, a.errf(errors.ArgumentCountMismatch, e.Tok.Pos, "List constructor takes 0, 1, or 2 arguments, got %d", len(e.Args))
	}
	return ListType(elem), nil
}

func (a *Analyzer) evalClassConstructor(e *ast.ConstructorCall, scope *Scope) (Type, *errors.CompileError) {
	cs, ok := a.classes[e.ClassName]
	if !ok {
		return Type{}, a.errf(errors.UnknownClass, e.Tok.Pos, "unknown class %q", e.ClassName)
	}
	argTypes, err := a.evalArgs(e.Args, scope)
	if err != nil {
		return Type{}, err
	}
	if len(cs.Constructors) == 0 {
		if len(e.Args) != 0 {
			return Type{}, a.errf(errors.ArgumentCountMismatch, e.Tok.Pos,
				"class %q declares no constructors; only a zero-argument call is valid", e.ClassName)
		}
		return ClassType(cs.Name), nil
	}
	ctor := matchConstructor(cs.Constructors, argTypes)
	if ctor == nil {
		return Type{}, a.errf(errors.NoMatchingOverload, e.Tok.Pos, "no constructor of %q matches the given argument types", e.ClassName)
	}
	if cerr := ensureArgumentsCompatible(ctor.Params, argTypes, e.Tok.Pos); cerr != nil {
		return Type{}, cerr
	}
	return ClassType(cs.Name), nil
}

// evalCall implements §4.4's `callee(args)` rule for both callee shapes.
func (a *Analyzer) evalCall(e *ast.Call, scope *Scope) (Type, *errors.CompileError) {
	switch callee := e.Callee.(type) {
	case *ast.Ident:
		return a.evalIdentCall(callee, e, scope)
	case *ast.MemberAccess:
		return a.evalMemberCall(callee, e, scope)
	default:
		return Type{}, a.errf(errors.UnsupportedExpressionTarget, e.Callee.Pos(), "unsupported call target")
	}
}

func (a *Analyzer) evalIdentCall(callee *ast.Ident, call *ast.Call, scope *Scope) (Type, *errors.CompileError) {
	argTypes, err := a.evalArgs(call.Args, scope)
	if err != nil {
		return Type{}, err
	}
	overloads := a.mergedOverloads(a.currentClass, callee.Name)
	if len(overloads) == 0 {
		return Type{}, a.errf(errors.MethodNotDeclared, callee.Tok.Pos, "method %q not declared", callee.Name)
	}
	m := matchMethod(overloads, argTypes)
	if m == nil {
		if !arityExists(overloads, len(argTypes)) {
			return Type{}, a.errf(errors.ArgumentCountMismatch, callee.Tok.Pos,
				"method %q: no overload takes %d arguments", callee.Name, len(argTypes))
		}
		return Type{}, a.errf(errors.NoMatchingOverload, callee.Tok.Pos, "no overload of %q matches the given argument types", callee.Name)
	}
	if cerr := ensureArgumentsCompatible(m.Params, argTypes, callee.Tok.Pos); cerr != nil {
		return Type{}, cerr
	}
	return m.ReturnType, nil
}

// evalMemberCall implements the `e.m(args)` branch: first the target's
// type, then the fixed Print/Array/List vocabularies, then declared-class
// method lookup, then the built-in "yield Standard" fallback.
func (a *Analyzer) evalMemberCall(member *ast.MemberAccess, call *ast.Call, scope *Scope) (Type, *errors.CompileError) {
	targetType, err := a.evalExpr(member.Target, scope)
	if err != nil {
		return Type{}, err
	}
	argTypes, err := a.evalArgs(call.Args, scope)
	if err != nil {
		return Type{}, err
	}

	switch {
	case isPrimitiveKind(targetType.Kind) && member.Member == "Print" && len(argTypes) == 0:
		return targetType, nil

	case targetType.Kind == Array:
		return a.evalArrayBuiltin(member, targetType, argTypes)

	case targetType.Kind == List:
		return a.evalListBuiltin(member, targetType, argTypes)

	case targetType.Kind == Class:
		cs := a.classes[targetType.Name]
		overloads := a.mergedOverloads(cs, member.Member)
		if len(overloads) == 0 {
			return Type{}, a.errf(errors.MethodNotDeclared, member.MemberTok.Pos,
				"method %q not declared on class %q", member.Member, targetType.Name)
		}
		m := matchMethod(overloads, argTypes)
		if m == nil {
			return Type{}, a.errf(errors.NoMatchingOverload, member.MemberTok.Pos,
				"no overload of %q matches the given argument types", member.Member)
		}
		if cerr := ensureArgumentsCompatible(m.Params, argTypes, member.MemberTok.Pos); cerr != nil {
			return Type{}, cerr
		}
		return m.ReturnType, nil

	case isPrimitiveKind(targetType.Kind):
		// a.Plus(b), a.Less(b), etc: the analyzer does not evaluate
		// operators (spec's non-goal); the emitter recognizes the fixed
		// vocabulary of §4.11 directly off targetType, so typing just
		// needs a permissive placeholder here.
		return StandardType, nil

	default:
		return StandardType, nil
	}
}

func isPrimitiveKind(k TypeKind) bool { return k == Integer || k == Real || k == Boolean }

func (a *Analyzer) evalArrayBuiltin(member *ast.MemberAccess, arrType Type, argTypes []Type) (Type, *errors.CompileError) {
	elemName, _ := ArrayElemName(arrType)
	elem := a.typeFromName(elemName)
	switch member.Member {
	case "Length":
		if len(argTypes) != 0 {
			return Type{}, a.errf(errors.ArgumentCountMismatch, member.MemberTok.Pos, "Array.Length takes no arguments")
		}
		return IntegerType, nil
	case "get":
		if len(argTypes) != 1 || !argTypes[0].Equal(IntegerType) {
			return Type{}, a.errf(errors.ArgumentCountMismatch, member.MemberTok.Pos, "Array.get takes one Integer index argument")
		}
		return elem, nil
	case "set":
		if len(argTypes) != 2 || !argTypes[0].Equal(IntegerType) || !argTypes[1].Equal(elem) {
			return Type{}, a.errf(errors.TypeMismatch, member.MemberTok.Pos, "Array.set takes (Integer, %s)", elem.Name)
		}
		return arrType, nil
	default:
		return Type{}, a.errf(errors.MethodNotDeclared, member.MemberTok.Pos, "unknown Array method %q", member.Member)
	}
}

func (a *Analyzer) evalListBuiltin(member *ast.MemberAccess, listType Type, argTypes []Type) (Type, *errors.CompileError) {
	elemName, _ := ListElemName(listType)
	elem := a.typeFromName(elemName)
	switch member.Member {
	case "append":
		if len(argTypes) != 1 || !argTypes[0].Equal(elem) {
			return Type{}, a.errf(errors.TypeMismatch, member.MemberTok.Pos, "List.append takes one %s argument", elem.Name)
		}
		return listType, nil
	case "head":
		if len(argTypes) != 0 {
			return Type{}, a.errf(errors.ArgumentCountMismatch, member.MemberTok.Pos, "List.head takes no arguments")
		}
		return elem, nil
	case "tail":
		if len(argTypes) != 0 {
			return Type{}, a.errf(errors.ArgumentCountMismatch, member.MemberTok.Pos, "List.tail takes no arguments")
		}
		return listType, nil
	case "toArray":
		if len(argTypes) != 0 {
			return Type{}, a.errf(errors.ArgumentCountMismatch, member.MemberTok.Pos, "List.toArray takes no arguments")
		}
		return ArrayType(elem), nil
	default:
		return Type{}, a.errf(errors.MethodNotDeclared, member.MemberTok.Pos, "unknown List method %q", member.Member)
	}
}

// evalMemberAccessValue implements §4.4's member-access-as-value rule
// (a MemberAccess that is not itself a Call's callee).
func (a *Analyzer) evalMemberAccessValue(e *ast.MemberAccess, scope *Scope) (Type, *errors.CompileError) {
	targetType, err := a.evalExpr(e.Target, scope)
	if err != nil {
		return Type{}, err
	}
	switch targetType.Kind {
	case Class:
		cs := a.classes[targetType.Name]
		sym, _ := a.lookupField(cs, e.Member)
		if sym == nil {
			return Type{}, a.errf(errors.TypeNotDeclared, e.MemberTok.Pos, "class %q has no field %q", targetType.Name, e.Member)
		}
		sym.MarkUsed()
		return sym.Type, nil
	case Unknown, Standard:
		return targetType, nil
	case Integer, Real, Boolean, Array, List:
		return UnknownType, nil
	default:
		return Type{}, a.errf(errors.TypeNotDeclared, e.MemberTok.Pos, "member access on unsupported type %q", targetType.Name)
	}
}

// ----------------------------------------------------------------------
// §4.5 Overload and argument matching
// ----------------------------------------------------------------------

func paramsMatch(params []*VariableSymbol, argTypes []Type) bool {
	if len(params) != len(argTypes) {
		return false
	}
	for i, p := range params {
		if !p.Type.Equal(argTypes[i]) {
			return false
		}
	}
	return true
}

// matchConstructor returns the first constructor overload, in list
// order, whose parameter types exactly match argTypes (Standard acting
// as a wildcard on either side per Type.Equal).
func matchConstructor(ctors []*ConstructorSymbol, argTypes []Type) *ConstructorSymbol {
	for _, c := range ctors {
		if paramsMatch(c.Params, argTypes) {
			return c
		}
	}
	return nil
}

// matchMethod returns the first overload, in list order, whose parameter
// types exactly match argTypes.
func matchMethod(methods []*MethodSymbol, argTypes []Type) *MethodSymbol {
	for _, m := range methods {
		if paramsMatch(m.Params, argTypes) {
			return m
		}
	}
	return nil
}

func arityExists(methods []*MethodSymbol, n int) bool {
	for _, m := range methods {
		if len(m.Params) == n {
			return true
		}
	}
	return false
}

// typesCompatible is EnsureTypesCompatible (§4.5): like Type.Equal, but
// additionally treats Unknown as a wildcard — used only for the
// post-selection recheck and for assignment/return/condition checks,
// never for overload selection itself.
func typesCompatible(expected, actual Type) bool {
	if expected.Kind == Standard || actual.Kind == Standard {
		return true
	}
	if expected.Kind == Unknown || actual.Kind == Unknown {
		return true
	}
	return expected.Name == actual.Name
}

// ensureArgumentsCompatible is EnsureArgumentsCompatible (§4.5): a
// post-selection recheck of argument count and type compatibility.
func ensureArgumentsCompatible(params []*VariableSymbol, argTypes []Type, pos token.Position) *errors.CompileError {
	if len(params) != len(argTypes) {
		return errors.New(errors.ArgumentCountMismatch, pos, "expected %d arguments, got %d", len(params), len(argTypes))
	}
	for i, p := range params {
		if !typesCompatible(p.Type, argTypes[i]) {
			return errors.New(errors.TypeMismatch, pos, "argument %d: expected %s, got %s", i+1, p.Type.Name, argTypes[i].Name)
		}
	}
	return nil
}

// typeFromName classifies a canonical type-name string (as stored inside
// Array[E]/List[E]) back into a full Type, so built-in container methods
// can report a properly-kinded element type rather than a bare name.
func (a *Analyzer) typeFromName(name string) Type {
	switch name {
	case "Integer":
		return IntegerType
	case "Real":
		return RealType
	case "Boolean":
		return BooleanType
	case "Void":
		return VoidType
	case "Standard":
		return StandardType
	}
	if strings.HasPrefix(name, "Array[") && strings.HasSuffix(name, "]") {
		return ArrayType(a.typeFromName(name[len("Array[") : len(name)-1]))
	}
	if strings.HasPrefix(name, "List[") && strings.HasSuffix(name, "]") {
		return ListType(a.typeFromName(name[len("List[") : len(name)-1]))
	}
	if _, ok := a.classes[name]; ok {
		return ClassType(name)
	}
	return UnknownType
}
