// Package ast defines the abstract syntax tree for the source language: a
// small class-based object language that compiles to LLVM IR. The node
// set is a closed sum type per category (declaration, statement,
// expression, type reference) — exhaustive switches over concrete types
// stand in for a visitor interface.
package ast

import (
	"fmt"
	"strings"

	"github.com/tangzhangming/nova/internal/token"
)

// Node is implemented by every AST node.
type Node interface {
	ID() NodeID
	Pos() token.Position
	End() token.Position
	String() string
}

// TypeRef is a type reference: a named type or Array[T]/List[T].
type TypeRef interface {
	Node
	typeRefNode()
}

// Expression is any expression node.
type Expression interface {
	Node
	exprNode()
}

// Statement is any statement node.
type Statement interface {
	Node
	stmtNode()
}

// Member is a class member: a field, method, or constructor declaration.
type Member interface {
	Node
	memberNode()
}

// ============================================================================
// Program / class declarations
// ============================================================================

// Program is the whole compilation unit: an ordered list of classes.
type Program struct {
	Classes []*ClassDecl
}

// MergePrograms concatenates the class declarations of several parsed
// files, preserving per-file order, into one Program. Duplicate class
// names across files are not special-cased here — the analyzer's
// duplicate-class check catches them exactly as it would catch a
// duplicate within one file.
func MergePrograms(programs ...*Program) *Program {
	merged := &Program{}
	for _, p := range programs {
		if p == nil {
			continue
		}
		merged.Classes = append(merged.Classes, p.Classes...)
	}
	return merged
}

// ClassDecl is one `class Name [extends Base] is ... end` declaration.
type ClassDecl struct {
	NodeID  NodeID
	Tok     token.Token
	EndTok  token.Token
	Name    string
	NameTok token.Token
	Base    string // "" if no base class
	BaseTok token.Token
	Members []Member // fields, methods, constructors, declaration order
}

func (d *ClassDecl) ID() NodeID          { return d.NodeID }
func (d *ClassDecl) Pos() token.Position { return d.Tok.Pos }
func (d *ClassDecl) End() token.Position { return d.EndTok.Pos }
func (d *ClassDecl) String() string {
	var sb strings.Builder
	sb.WriteString("class ")
	sb.WriteString(d.Name)
	if d.Base != "" {
		sb.WriteString(" extends ")
		sb.WriteString(d.Base)
	}
	return sb.String()
}

// Fields returns the class's own field members, in declaration order.
func (d *ClassDecl) Fields() []*FieldDecl {
	var out []*FieldDecl
	for _, m := range d.Members {
		if f, ok := m.(*FieldDecl); ok {
			out = append(out, f)
		}
	}
	return out
}

// Methods returns the class's own method members, in declaration order.
func (d *ClassDecl) Methods() []*MethodDecl {
	var out []*MethodDecl
	for _, m := range d.Members {
		if mm, ok := m.(*MethodDecl); ok {
			out = append(out, mm)
		}
	}
	return out
}

// Constructors returns the class's own constructor members.
func (d *ClassDecl) Constructors() []*ConstructorDecl {
	var out []*ConstructorDecl
	for _, m := range d.Members {
		if c, ok := m.(*ConstructorDecl); ok {
			out = append(out, c)
		}
	}
	return out
}

// FieldDecl is `var Name : Init`.
type FieldDecl struct {
	NodeID  NodeID
	Tok     token.Token
	Name    string
	NameTok token.Token
	Init    Expression
}

func (d *FieldDecl) ID() NodeID          { return d.NodeID }
func (d *FieldDecl) Pos() token.Position { return d.Tok.Pos }
func (d *FieldDecl) End() token.Position { return d.Init.End() }
func (d *FieldDecl) String() string      { return fmt.Sprintf("var %s : %s", d.Name, d.Init) }
func (d *FieldDecl) memberNode()         {}

// MethodDecl is a method declaration. Body == nil means a forward
// declaration (no implementation). `=> expr` bodies are desugared by the
// parser into a Body whose sole statement is a ReturnStmt wrapping expr,
// so Body is always either nil or a real block.
type MethodDecl struct {
	NodeID     NodeID
	Tok        token.Token
	Name       string
	NameTok    token.Token
	Params     []*Parameter
	ReturnType TypeRef // nil if omitted (defaults to Void)
	Body       *BlockStmt
	// IsExprBody records whether Body was desugared from `=> expr`
	// rather than written as `is ... end`, so the analyzer can reject an
	// expression body with no declared return type — a block body may
	// legitimately omit one (it defaults to Void), but `=> expr` always
	// produces a value, so an omitted return type there is ambiguous.
	IsExprBody bool
}

func (d *MethodDecl) ID() NodeID          { return d.NodeID }
func (d *MethodDecl) Pos() token.Position { return d.Tok.Pos }
func (d *MethodDecl) End() token.Position {
	if d.Body != nil {
		return d.Body.End()
	}
	return d.NameTok.Pos
}
func (d *MethodDecl) String() string {
	parts := make([]string, len(d.Params))
	for i, p := range d.Params {
		parts[i] = p.String()
	}
	sig := fmt.Sprintf("method %s(%s)", d.Name, strings.Join(parts, ", "))
	if d.ReturnType != nil {
		sig += " : " + d.ReturnType.String()
	}
	return sig
}
func (d *MethodDecl) memberNode() {}

// IsForwardDeclaration reports whether this node has no body.
func (d *MethodDecl) IsForwardDeclaration() bool { return d.Body == nil }

// ConstructorDecl is `constructor(params) is ... end`.
type ConstructorDecl struct {
	NodeID NodeID
	Tok    token.Token
	Params []*Parameter
	Body   *BlockStmt
}

func (d *ConstructorDecl) ID() NodeID          { return d.NodeID }
func (d *ConstructorDecl) Pos() token.Position { return d.Tok.Pos }
func (d *ConstructorDecl) End() token.Position { return d.Body.End() }
func (d *ConstructorDecl) String() string {
	parts := make([]string, len(d.Params))
	for i, p := range d.Params {
		parts[i] = p.String()
	}
	return fmt.Sprintf("constructor(%s)", strings.Join(parts, ", "))
}
func (d *ConstructorDecl) memberNode() {}

// Parameter is a single method/constructor parameter.
type Parameter struct {
	NodeID  NodeID
	Name    string
	NameTok token.Token
	Type    TypeRef
}

func (p *Parameter) ID() NodeID          { return p.NodeID }
func (p *Parameter) Pos() token.Position { return p.NameTok.Pos }
func (p *Parameter) End() token.Position { return p.Type.End() }
func (p *Parameter) String() string      { return fmt.Sprintf("%s: %s", p.Name, p.Type) }

// ============================================================================
// Type references
// ============================================================================

// NamedTypeRef is a simple named type: Integer, Real, Boolean, Void, or a
// declared class name.
type NamedTypeRef struct {
	NodeID NodeID
	Tok    token.Token
	Name   string
}

func (t *NamedTypeRef) ID() NodeID          { return t.NodeID }
func (t *NamedTypeRef) Pos() token.Position { return t.Tok.Pos }
func (t *NamedTypeRef) End() token.Position { return t.Tok.Pos }
func (t *NamedTypeRef) String() string      { return t.Name }
func (t *NamedTypeRef) typeRefNode()        {}

// GenericTypeRef is Array[T] or List[T]. Elem is nil for the legacy bare
// `Array`/`List` parameter-position spelling.
type GenericTypeRef struct {
	NodeID NodeID
	Tok    token.Token
	Name   string // "Array" or "List"
	Elem   TypeRef
}

func (t *GenericTypeRef) ID() NodeID          { return t.NodeID }
func (t *GenericTypeRef) Pos() token.Position { return t.Tok.Pos }
func (t *GenericTypeRef) End() token.Position {
	if t.Elem != nil {
		return t.Elem.End()
	}
	return t.Tok.Pos
}
func (t *GenericTypeRef) String() string {
	if t.Elem == nil {
		return t.Name
	}
	return fmt.Sprintf("%s[%s]", t.Name, t.Elem.String())
}
func (t *GenericTypeRef) typeRefNode() {}

// ============================================================================
// Statements
// ============================================================================

// BlockStmt is a flat ordered sequence of statements: the body of a
// method, constructor, while-loop, or if/else branch.
type BlockStmt struct {
	NodeID     NodeID
	LBraceTok  token.Token
	Statements []Statement
	RBraceTok  token.Token
}

func (b *BlockStmt) ID() NodeID          { return b.NodeID }
func (b *BlockStmt) Pos() token.Position { return b.LBraceTok.Pos }
func (b *BlockStmt) End() token.Position { return b.RBraceTok.Pos }
func (b *BlockStmt) String() string      { return fmt.Sprintf("{ %d stmts }", len(b.Statements)) }
func (b *BlockStmt) stmtNode()           {}

// VarDeclStmt is a local variable declaration: `var Name : Init`. The
// declared type is inferred from Init's type; there is no separate type
// annotation syntax for locals, mirroring FieldDecl.
type VarDeclStmt struct {
	NodeID  NodeID
	Tok     token.Token
	Name    string
	NameTok token.Token
	Init    Expression
}

func (s *VarDeclStmt) ID() NodeID          { return s.NodeID }
func (s *VarDeclStmt) Pos() token.Position { return s.Tok.Pos }
func (s *VarDeclStmt) End() token.Position { return s.Init.End() }
func (s *VarDeclStmt) String() string      { return fmt.Sprintf("var %s : %s", s.Name, s.Init) }
func (s *VarDeclStmt) stmtNode()           {}

// AssignStmt is `Target = Value`. Target is either an *Ident or a
// *MemberAccess.
type AssignStmt struct {
	NodeID NodeID
	Target Expression
	Value  Expression
}

func (s *AssignStmt) ID() NodeID          { return s.NodeID }
func (s *AssignStmt) Pos() token.Position { return s.Target.Pos() }
func (s *AssignStmt) End() token.Position { return s.Value.End() }
func (s *AssignStmt) String() string      { return fmt.Sprintf("%s = %s", s.Target, s.Value) }
func (s *AssignStmt) stmtNode()           {}

// WhileStmt is `while Cond loop Body end`.
type WhileStmt struct {
	NodeID NodeID
	Tok    token.Token
	Cond   Expression
	Body   *BlockStmt
}

func (s *WhileStmt) ID() NodeID          { return s.NodeID }
func (s *WhileStmt) Pos() token.Position { return s.Tok.Pos }
func (s *WhileStmt) End() token.Position { return s.Body.End() }
func (s *WhileStmt) String() string      { return fmt.Sprintf("while %s loop ... end", s.Cond) }
func (s *WhileStmt) stmtNode()           {}

// IfStmt is `if Cond then Then [else Else] end`. Else is nil when absent.
type IfStmt struct {
	NodeID NodeID
	Tok    token.Token
	Cond   Expression
	Then   *BlockStmt
	Else   *BlockStmt
}

func (s *IfStmt) ID() NodeID          { return s.NodeID }
func (s *IfStmt) Pos() token.Position { return s.Tok.Pos }
func (s *IfStmt) End() token.Position {
	if s.Else != nil {
		return s.Else.End()
	}
	return s.Then.End()
}
func (s *IfStmt) String() string { return fmt.Sprintf("if %s then ... end", s.Cond) }
func (s *IfStmt) stmtNode()      {}

// ReturnStmt is `return [Value]`. Value is nil for a void return.
type ReturnStmt struct {
	NodeID NodeID
	Tok    token.Token
	Value  Expression
}

func (s *ReturnStmt) ID() NodeID          { return s.NodeID }
func (s *ReturnStmt) Pos() token.Position { return s.Tok.Pos }
func (s *ReturnStmt) End() token.Position {
	if s.Value != nil {
		return s.Value.End()
	}
	return s.Tok.Pos
}
func (s *ReturnStmt) String() string {
	if s.Value == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", s.Value)
}
func (s *ReturnStmt) stmtNode() {}

// ExprStmt is an expression evaluated purely for its side effects.
type ExprStmt struct {
	NodeID NodeID
	Expr   Expression
}

func (s *ExprStmt) ID() NodeID          { return s.NodeID }
func (s *ExprStmt) Pos() token.Position { return s.Expr.Pos() }
func (s *ExprStmt) End() token.Position { return s.Expr.End() }
func (s *ExprStmt) String() string      { return s.Expr.String() }
func (s *ExprStmt) stmtNode()           {}

// ============================================================================
// Expressions
// ============================================================================

// IntLiteral is an integer literal.
type IntLiteral struct {
	NodeID NodeID
	Tok    token.Token
	Value  int64
}

func (e *IntLiteral) ID() NodeID          { return e.NodeID }
func (e *IntLiteral) Pos() token.Position { return e.Tok.Pos }
func (e *IntLiteral) End() token.Position { return e.Tok.Pos }
func (e *IntLiteral) String() string      { return fmt.Sprintf("%d", e.Value) }
func (e *IntLiteral) exprNode()           {}

// RealLiteral is a floating point literal.
type RealLiteral struct {
	NodeID NodeID
	Tok    token.Token
	Value  float64
}

func (e *RealLiteral) ID() NodeID          { return e.NodeID }
func (e *RealLiteral) Pos() token.Position { return e.Tok.Pos }
func (e *RealLiteral) End() token.Position { return e.Tok.Pos }
func (e *RealLiteral) String() string      { return fmt.Sprintf("%g", e.Value) }
func (e *RealLiteral) exprNode()           {}

// BoolLiteral is `true`/`false`.
type BoolLiteral struct {
	NodeID NodeID
	Tok    token.Token
	Value  bool
}

func (e *BoolLiteral) ID() NodeID          { return e.NodeID }
func (e *BoolLiteral) Pos() token.Position { return e.Tok.Pos }
func (e *BoolLiteral) End() token.Position { return e.Tok.Pos }
func (e *BoolLiteral) String() string      { return fmt.Sprintf("%t", e.Value) }
func (e *BoolLiteral) exprNode()           {}

// Ident is a bare identifier reference.
type Ident struct {
	NodeID NodeID
	Tok    token.Token
	Name   string
}

func (e *Ident) ID() NodeID          { return e.NodeID }
func (e *Ident) Pos() token.Position { return e.Tok.Pos }
func (e *Ident) End() token.Position { return e.Tok.Pos }
func (e *Ident) String() string      { return e.Name }
func (e *Ident) exprNode()           {}

// ThisExpr is the `this` receiver reference.
type ThisExpr struct {
	NodeID NodeID
	Tok    token.Token
}

func (e *ThisExpr) ID() NodeID          { return e.NodeID }
func (e *ThisExpr) Pos() token.Position { return e.Tok.Pos }
func (e *ThisExpr) End() token.Position { return e.Tok.Pos }
func (e *ThisExpr) String() string      { return "this" }
func (e *ThisExpr) exprNode()           {}

// ConstructorCall is `ClassName(args)`, optionally `ClassName[Elem](args)`
// for the Array/List generic constructors.
type ConstructorCall struct {
	NodeID     NodeID
	Tok        token.Token
	ClassName  string
	GenericArg TypeRef // element type for Array[E](...)/List[E](...); nil otherwise
	Args       []Expression
	RParenTok  token.Token
}

func (e *ConstructorCall) ID() NodeID          { return e.NodeID }
func (e *ConstructorCall) Pos() token.Position { return e.Tok.Pos }
func (e *ConstructorCall) End() token.Position { return e.RParenTok.Pos }
func (e *ConstructorCall) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	name := e.ClassName
	if e.GenericArg != nil {
		name = fmt.Sprintf("%s[%s]", name, e.GenericArg.String())
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}
func (e *ConstructorCall) exprNode() {}

// Call is a unified call `Callee(Args)`. Callee is either an *Ident (a
// method looked up on the enclosing class) or a *MemberAccess (a method
// looked up on the member access target's type).
type Call struct {
	NodeID    NodeID
	Callee    Expression
	Args      []Expression
	RParenTok token.Token
}

func (e *Call) ID() NodeID          { return e.NodeID }
func (e *Call) Pos() token.Position { return e.Callee.Pos() }
func (e *Call) End() token.Position { return e.RParenTok.Pos }
func (e *Call) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Callee, strings.Join(parts, ", "))
}
func (e *Call) exprNode() {}

// MemberAccess is `Target.Member`, used both as a value expression and
// (as a Call's Callee) as the receiver of a method call.
type MemberAccess struct {
	NodeID    NodeID
	Target    Expression
	Member    string
	MemberTok token.Token
}

func (e *MemberAccess) ID() NodeID          { return e.NodeID }
func (e *MemberAccess) Pos() token.Position { return e.Target.Pos() }
func (e *MemberAccess) End() token.Position { return e.MemberTok.Pos }
func (e *MemberAccess) String() string      { return fmt.Sprintf("%s.%s", e.Target, e.Member) }
func (e *MemberAccess) exprNode()           {}
