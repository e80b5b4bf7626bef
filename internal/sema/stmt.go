package sema

import (
	"github.com/tangzhangming/nova/internal/ast"
	"github.com/tangzhangming/nova/internal/errors"
)

// analyzeBlock implements §4.6's per-statement analysis plus §4.7's two
// body-level cleanups: unreachable-after-return elimination and
// dead-local elimination. It mutates block.Statements in place, which is
// the one AST rewrite spec.md permits outside the parser.
func (a *Analyzer) analyzeBlock(block *ast.BlockStmt, scope *Scope) *errors.CompileError {
	var kept []ast.Statement
	for _, stmt := range block.Statements {
		if err := a.analyzeStmt(stmt, scope); err != nil {
			return err
		}
		kept = append(kept, stmt)
		if _, isReturn := stmt.(*ast.ReturnStmt); isReturn {
			break // unreachable elimination: drop everything after return
		}
	}
	block.Statements = a.eliminateDeadLocals(kept)
	return nil
}

func (a *Analyzer) analyzeStmt(stmt ast.Statement, scope *Scope) *errors.CompileError {
	switch s := stmt.(type) {
	case *ast.VarDeclStmt:
		return a.analyzeVarDecl(s, scope)
	case *ast.AssignStmt:
		return a.analyzeAssign(s, scope)
	case *ast.WhileStmt:
		return a.analyzeWhile(s, scope)
	case *ast.IfStmt:
		return a.analyzeIf(s, scope)
	case *ast.ReturnStmt:
		return a.analyzeReturn(s, scope)
	case *ast.ExprStmt:
		_, err := a.evalExpr(s.Expr, scope)
		return err
	default:
		return a.errf(errors.TypeNotDeclared, stmt.Pos(), "unsupported statement form")
	}
}

func (a *Analyzer) analyzeVarDecl(s *ast.VarDeclStmt, scope *Scope) *errors.CompileError {
	if scope.DeclaredHere(s.Name) {
		return a.errf(errors.DuplicateVariable, s.NameTok.Pos, "local variable %q already declared in this scope", s.Name)
	}
	t, err := a.evalExpr(s.Init, scope)
	if err != nil {
		return err
	}
	if t.Kind == Void {
		return a.errf(errors.VoidInitializer, s.Init.Pos(), "local variable %q's initializer has type Void", s.Name)
	}
	sym := &VariableSymbol{Name: s.Name, Type: t, Kind: Local, Node: s}
	scope.Declare(s.Name, sym)
	a.varTypes[s.NodeID] = t
	a.localSymbols[s.NodeID] = sym
	return nil
}

// evalAssignTarget resolves an assignment target, restricted to the two
// shapes §3 (and the Open Questions note on this.field targets) allows:
// a bare identifier or a member access.
func (a *Analyzer) evalAssignTarget(target ast.Expression, scope *Scope) (Type, *errors.CompileError) {
	switch target.(type) {
	case *ast.Ident, *ast.MemberAccess:
		return a.evalExpr(target, scope)
	default:
		return Type{}, a.errf(errors.UnsupportedExpressionTarget, target.Pos(), "assignment target must be an identifier or member access")
	}
}

func (a *Analyzer) analyzeAssign(s *ast.AssignStmt, scope *Scope) *errors.CompileError {
	targetType, err := a.evalAssignTarget(s.Target, scope)
	if err != nil {
		return err
	}
	valueType, err := a.evalExpr(s.Value, scope)
	if err != nil {
		return err
	}
	if targetType.Kind == Void {
		return a.errf(errors.VoidAssignmentTarget, s.Target.Pos(), "cannot assign to a Void-typed target")
	}
	if !typesCompatible(targetType, valueType) {
		return a.errf(errors.TypeMismatch, s.Value.Pos(), "cannot assign %s to target of type %s", valueType.Name, targetType.Name)
	}
	return nil
}

func (a *Analyzer) checkBooleanCondition(cond ast.Expression, scope *Scope) *errors.CompileError {
	t, err := a.evalExpr(cond, scope)
	if err != nil {
		return err
	}
	if t.Kind != Boolean && t.Kind != Unknown && t.Kind != Standard {
		return a.errf(errors.TypeMismatch, cond.Pos(), "condition must be Boolean, got %s", t.Name)
	}
	return nil
}

func (a *Analyzer) analyzeWhile(s *ast.WhileStmt, scope *Scope) *errors.CompileError {
	if err := a.checkBooleanCondition(s.Cond, scope); err != nil {
		return err
	}
	return a.analyzeBlock(s.Body, scope.ChildLoop())
}

func (a *Analyzer) analyzeIf(s *ast.IfStmt, scope *Scope) *errors.CompileError {
	if err := a.checkBooleanCondition(s.Cond, scope); err != nil {
		return err
	}
	if err := a.analyzeBlock(s.Then, scope.Child()); err != nil {
		return err
	}
	if s.Else != nil {
		if err := a.analyzeBlock(s.Else, scope.Child()); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) analyzeReturn(s *ast.ReturnStmt, scope *Scope) *errors.CompileError {
	if !scope.AllowsReturn() {
		return a.errf(errors.ReturnOutsideMethod, s.Tok.Pos, "return is only allowed inside a method body")
	}
	if a.currentReturnType.Kind == Void {
		if s.Value != nil {
			return a.errf(errors.ReturnValueInVoid, s.Value.Pos(), "void method must not return a value")
		}
		return nil
	}
	if s.Value == nil {
		return a.errf(errors.MissingReturnValue, s.Tok.Pos, "method declared to return %s must return a value", a.currentReturnType.Name)
	}
	t, err := a.evalExpr(s.Value, scope)
	if err != nil {
		return err
	}
	if !typesCompatible(a.currentReturnType, t) {
		return a.errf(errors.TypeMismatch, s.Value.Pos(), "return type %s does not match declared return type %s", t.Name, a.currentReturnType.Name)
	}
	return nil
}

// eliminateDeadLocals implements §4.7's local half: a VarDeclStmt whose
// symbol's IsUsed is still false is dropped, unless its initializer is
// not side-effect-free (§4.7's glossary definition).
func (a *Analyzer) eliminateDeadLocals(stmts []ast.Statement) []ast.Statement {
	kept := stmts[:0]
	for _, stmt := range stmts {
		if decl, ok := stmt.(*ast.VarDeclStmt); ok {
			sym := a.localSymbols[decl.NodeID]
			if sym != nil && !sym.IsUsed && isSideEffectFree(decl.Init) {
				continue
			}
		}
		kept = append(kept, stmt)
	}
	return kept
}

// isSideEffectFree implements the glossary's "side-effect-free
// expression" definition: literals, identifiers, this, built-in
// constructors, and primitive member accesses over a pure target.
func isSideEffectFree(expr ast.Expression) bool {
	switch e := expr.(type) {
	case *ast.IntLiteral, *ast.RealLiteral, *ast.BoolLiteral, *ast.Ident, *ast.ThisExpr:
		return true
	case *ast.ConstructorCall:
		switch e.ClassName {
		case "Integer", "Real", "Boolean", "Array", "List":
			return true
		default:
			return false // user-defined class construction: side-effectful
		}
	case *ast.Call:
		return false // any call node is side-effectful
	case *ast.MemberAccess:
		return isSideEffectFree(e.Target)
	default:
		return false
	}
}
