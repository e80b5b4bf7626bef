package ast

import (
	"github.com/tangzhangming/nova/internal/token"
)

// ============================================================================
// AST node factory
// ============================================================================
//
// The parser builds every node through a Factory rather than literal
// struct composites, so that NodeID assignment (via IDAllocator) never
// gets forgotten at a call site. One Factory is created per parse.
// ============================================================================

// Factory constructs AST nodes, assigning each a unique NodeID from its
// IDAllocator.
type Factory struct {
	ids *IDAllocator
}

// NewFactory creates a Factory backed by a fresh IDAllocator.
func NewFactory() *Factory {
	return &Factory{ids: NewIDAllocator()}
}

func (f *Factory) NewClassDecl(tok token.Token, name string, nameTok token.Token, base string, baseTok token.Token, members []Member, endTok token.Token) *ClassDecl {
	return &ClassDecl{
		NodeID: f.ids.Next(), Tok: tok, EndTok: endTok,
		Name: name, NameTok: nameTok, Base: base, BaseTok: baseTok, Members: members,
	}
}

func (f *Factory) NewFieldDecl(tok token.Token, name string, nameTok token.Token, init Expression) *FieldDecl {
	return &FieldDecl{NodeID: f.ids.Next(), Tok: tok, Name: name, NameTok: nameTok, Init: init}
}

func (f *Factory) NewMethodDecl(tok token.Token, name string, nameTok token.Token, params []*Parameter, returnType TypeRef, body *BlockStmt, isExprBody bool) *MethodDecl {
	return &MethodDecl{
		NodeID: f.ids.Next(), Tok: tok, Name: name, NameTok: nameTok,
		Params: params, ReturnType: returnType, Body: body, IsExprBody: isExprBody,
	}
}

func (f *Factory) NewConstructorDecl(tok token.Token, params []*Parameter, body *BlockStmt) *ConstructorDecl {
	return &ConstructorDecl{NodeID: f.ids.Next(), Tok: tok, Params: params, Body: body}
}

func (f *Factory) NewParameter(nameTok token.Token, name string, typ TypeRef) *Parameter {
	return &Parameter{NodeID: f.ids.Next(), Name: name, NameTok: nameTok, Type: typ}
}

func (f *Factory) NewNamedTypeRef(tok token.Token, name string) *NamedTypeRef {
	return &NamedTypeRef{NodeID: f.ids.Next(), Tok: tok, Name: name}
}

func (f *Factory) NewGenericTypeRef(tok token.Token, name string, elem TypeRef) *GenericTypeRef {
	return &GenericTypeRef{NodeID: f.ids.Next(), Tok: tok, Name: name, Elem: elem}
}

func (f *Factory) NewBlockStmt(lbrace token.Token, stmts []Statement, rbrace token.Token) *BlockStmt {
	return &BlockStmt{NodeID: f.ids.Next(), LBraceTok: lbrace, Statements: stmts, RBraceTok: rbrace}
}

func (f *Factory) NewVarDeclStmt(tok token.Token, name string, nameTok token.Token, init Expression) *VarDeclStmt {
	return &VarDeclStmt{NodeID: f.ids.Next(), Tok: tok, Name: name, NameTok: nameTok, Init: init}
}

func (f *Factory) NewAssignStmt(target, value Expression) *AssignStmt {
	return &AssignStmt{NodeID: f.ids.Next(), Target: target, Value: value}
}

func (f *Factory) NewWhileStmt(tok token.Token, cond Expression, body *BlockStmt) *WhileStmt {
	return &WhileStmt{NodeID: f.ids.Next(), Tok: tok, Cond: cond, Body: body}
}

func (f *Factory) NewIfStmt(tok token.Token, cond Expression, then, els *BlockStmt) *IfStmt {
	return &IfStmt{NodeID: f.ids.Next(), Tok: tok, Cond: cond, Then: then, Else: els}
}

func (f *Factory) NewReturnStmt(tok token.Token, value Expression) *ReturnStmt {
	return &ReturnStmt{NodeID: f.ids.Next(), Tok: tok, Value: value}
}

func (f *Factory) NewExprStmt(expr Expression) *ExprStmt {
	return &ExprStmt{NodeID: f.ids.Next(), Expr: expr}
}

func (f *Factory) NewIntLiteral(tok token.Token, value int64) *IntLiteral {
	return &IntLiteral{NodeID: f.ids.Next(), Tok: tok, Value: value}
}

func (f *Factory) NewRealLiteral(tok token.Token, value float64) *RealLiteral {
	return &RealLiteral{NodeID: f.ids.Next(), Tok: tok, Value: value}
}

func (f *Factory) NewBoolLiteral(tok token.Token, value bool) *BoolLiteral {
	return &BoolLiteral{NodeID: f.ids.Next(), Tok: tok, Value: value}
}

func (f *Factory) NewIdent(tok token.Token, name string) *Ident {
	return &Ident{NodeID: f.ids.Next(), Tok: tok, Name: name}
}

func (f *Factory) NewThisExpr(tok token.Token) *ThisExpr {
	return &ThisExpr{NodeID: f.ids.Next(), Tok: tok}
}

func (f *Factory) NewConstructorCall(tok token.Token, className string, genericArg TypeRef, args []Expression, rparen token.Token) *ConstructorCall {
	return &ConstructorCall{
		NodeID: f.ids.Next(), Tok: tok, ClassName: className,
		GenericArg: genericArg, Args: args, RParenTok: rparen,
	}
}

func (f *Factory) NewCall(callee Expression, args []Expression, rparen token.Token) *Call {
	return &Call{NodeID: f.ids.Next(), Callee: callee, Args: args, RParenTok: rparen}
}

func (f *Factory) NewMemberAccess(target Expression, member string, memberTok token.Token) *MemberAccess {
	return &MemberAccess{NodeID: f.ids.Next(), Target: target, Member: member, MemberTok: memberTok}
}

// DesugarExprBody wraps expr in a single-statement block containing a
// ReturnStmt, for `=> expr` method bodies. This keeps MethodDecl.Body
// uniformly either nil (forward declaration) or a real block, so every
// later pass that walks method bodies has one shape to handle.
func (f *Factory) DesugarExprBody(arrow token.Token, expr Expression) *BlockStmt {
	ret := f.NewReturnStmt(arrow, expr)
	return f.NewBlockStmt(arrow, []Statement{ret}, arrow)
}
