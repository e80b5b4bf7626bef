// Package parser implements a recursive-descent parser for the source
// language's reduced grammar: class declarations with single
// inheritance, fields, methods (forward or implemented, block or `=>`
// expression body), constructors, and a small statement/expression set.
package parser

import (
	"fmt"

	"github.com/tangzhangming/nova/internal/ast"
	"github.com/tangzhangming/nova/internal/lexer"
	"github.com/tangzhangming/nova/internal/token"
)

// Parser turns a token stream into an *ast.Program, accumulating syntax
// errors rather than aborting on the first one.
type Parser struct {
	tokens   []token.Token
	current  int
	filename string
	factory  *ast.Factory

	errors    []Error
	panicMode bool
}

// Error is a syntax error tied to the position it was detected at.
type Error struct {
	Pos     token.Position
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// New creates a Parser over source, lexing it immediately.
func New(source, filename string) *Parser {
	l := lexer.New(source, filename)
	tokens := l.ScanTokens()

	p := &Parser{
		tokens:   tokens,
		filename: filename,
		factory:  ast.NewFactory(),
	}
	for _, lexErr := range l.Errors() {
		p.errors = append(p.errors, Error{Pos: lexErr.Pos, Message: lexErr.Message})
	}
	return p
}

// Errors returns the syntax errors accumulated while parsing.
func (p *Parser) Errors() []Error { return p.errors }

// HasErrors reports whether any syntax error was recorded.
func (p *Parser) HasErrors() bool { return len(p.errors) > 0 }

// Parse parses the whole token stream into a Program.
func (p *Parser) Parse() *ast.Program {
	prog := &ast.Program{}

	for !p.isAtEnd() {
		p.panicMode = false

		if !p.check(token.CLASS) {
			p.error(fmt.Sprintf("expected 'class', got %s", p.peek().Type))
			p.synchronize()
			continue
		}

		class := p.parseClassDecl()
		if p.panicMode {
			p.synchronize()
			continue
		}
		if class != nil {
			prog.Classes = append(prog.Classes, class)
		}
	}

	return prog
}

// ============================================================================
// Declarations
// ============================================================================

func (p *Parser) parseClassDecl() *ast.ClassDecl {
	classTok := p.advance() // 'class'

	nameTok, ok := p.consume(token.IDENT, "expected class name")
	if !ok {
		return nil
	}

	var base string
	var baseTok token.Token
	if p.check(token.EXTENDS) {
		p.advance()
		bt, ok := p.consume(token.IDENT, "expected base class name after 'extends'")
		if !ok {
			return nil
		}
		base = bt.Literal
		baseTok = bt
	}

	if _, ok := p.consume(token.IS, "expected 'is' after class header"); !ok {
		return nil
	}

	var members []ast.Member
	for !p.check(token.END) && !p.isAtEnd() {
		m := p.parseMember()
		if p.panicMode {
			return nil
		}
		if m != nil {
			members = append(members, m)
		}
	}

	endTok, ok := p.consume(token.END, "expected 'end' to close class body")
	if !ok {
		return nil
	}

	return p.factory.NewClassDecl(classTok, nameTok.Literal, nameTok, base, baseTok, members, endTok)
}

func (p *Parser) parseMember() ast.Member {
	switch {
	case p.check(token.VAR):
		return p.parseFieldDecl()
	case p.check(token.METHOD):
		return p.parseMethodDecl()
	case p.check(token.CONSTRUCTOR):
		return p.parseConstructorDecl()
	default:
		p.error(fmt.Sprintf("expected a field, method, or constructor declaration, got %s", p.peek().Type))
		return nil
	}
}

func (p *Parser) parseFieldDecl() *ast.FieldDecl {
	varTok := p.advance() // 'var'

	nameTok, ok := p.consume(token.IDENT, "expected field name")
	if !ok {
		return nil
	}

	if _, ok := p.consume(token.COLON, "expected ':' after field name"); !ok {
		return nil
	}

	init := p.parseExpression()
	if p.panicMode {
		return nil
	}

	return p.factory.NewFieldDecl(varTok, nameTok.Literal, nameTok, init)
}

func (p *Parser) parseMethodDecl() *ast.MethodDecl {
	methodTok := p.advance() // 'method'

	nameTok, ok := p.consume(token.IDENT, "expected method name")
	if !ok {
		return nil
	}

	params, ok := p.parseParameterList()
	if !ok {
		return nil
	}

	var returnType ast.TypeRef
	if p.check(token.COLON) {
		p.advance()
		returnType = p.parseTypeRef()
		if p.panicMode {
			return nil
		}
	}

	var body *ast.BlockStmt
	isExprBody := false
	switch {
	case p.check(token.IS):
		p.advance()
		body = p.parseBlockUntilEnd()
		if p.panicMode {
			return nil
		}
	case p.check(token.DOUBLE_ARROW):
		arrow := p.advance()
		expr := p.parseExpression()
		if p.panicMode {
			return nil
		}
		body = p.factory.DesugarExprBody(arrow, expr)
		isExprBody = true
	default:
		// no body: forward declaration
	}

	return p.factory.NewMethodDecl(methodTok, nameTok.Literal, nameTok, params, returnType, body, isExprBody)
}

func (p *Parser) parseConstructorDecl() *ast.ConstructorDecl {
	ctorTok := p.advance() // 'constructor'

	params, ok := p.parseParameterList()
	if !ok {
		return nil
	}

	if _, ok := p.consume(token.IS, "expected 'is' to open constructor body"); !ok {
		return nil
	}

	body := p.parseBlockUntilEnd()
	if p.panicMode {
		return nil
	}

	return p.factory.NewConstructorDecl(ctorTok, params, body)
}

func (p *Parser) parseParameterList() ([]*ast.Parameter, bool) {
	if _, ok := p.consume(token.LPAREN, "expected '('"); !ok {
		return nil, false
	}

	var params []*ast.Parameter
	for !p.check(token.RPAREN) {
		nameTok, ok := p.consume(token.IDENT, "expected parameter name")
		if !ok {
			return nil, false
		}
		if _, ok := p.consume(token.COLON, "expected ':' after parameter name"); !ok {
			return nil, false
		}
		typ := p.parseTypeRef()
		if p.panicMode {
			return nil, false
		}
		params = append(params, p.factory.NewParameter(nameTok, nameTok.Literal, typ))

		if p.check(token.COMMA) {
			p.advance()
			continue
		}
		break
	}

	if _, ok := p.consume(token.RPAREN, "expected ')' after parameter list"); !ok {
		return nil, false
	}
	return params, true
}

func (p *Parser) parseTypeRef() ast.TypeRef {
	nameTok, ok := p.consume(token.IDENT, "expected type name")
	if !ok {
		return nil
	}

	if nameTok.Literal == "Array" || nameTok.Literal == "List" {
		if p.check(token.LBRACKET) {
			p.advance()
			elem := p.parseTypeRef()
			if p.panicMode {
				return nil
			}
			if _, ok := p.consume(token.RBRACKET, "expected ']' after element type"); !ok {
				return nil
			}
			return p.factory.NewGenericTypeRef(nameTok, nameTok.Literal, elem)
		}
		// legacy bare Array/List, no generic argument
		return p.factory.NewGenericTypeRef(nameTok, nameTok.Literal, nil)
	}

	return p.factory.NewNamedTypeRef(nameTok, nameTok.Literal)
}

// ============================================================================
// Statements
// ============================================================================

// parseBlockUntilEnd parses statements until 'end', consuming the 'end'.
func (p *Parser) parseBlockUntilEnd() *ast.BlockStmt {
	startTok := p.peek()

	var stmts []ast.Statement
	for !p.check(token.END) && !p.isAtEnd() {
		s := p.parseStatement()
		if p.panicMode {
			return nil
		}
		if s != nil {
			stmts = append(stmts, s)
		}
	}

	endTok, ok := p.consume(token.END, "expected 'end' to close block")
	if !ok {
		return nil
	}

	return p.factory.NewBlockStmt(startTok, stmts, endTok)
}

func (p *Parser) parseStatement() ast.Statement {
	switch {
	case p.check(token.VAR):
		return p.parseVarDeclStmt()
	case p.check(token.IF):
		return p.parseIfStmt()
	case p.check(token.WHILE):
		return p.parseWhileStmt()
	case p.check(token.RETURN):
		return p.parseReturnStmt()
	default:
		return p.parseExprOrAssignStmt()
	}
}

func (p *Parser) parseVarDeclStmt() *ast.VarDeclStmt {
	varTok := p.advance()

	nameTok, ok := p.consume(token.IDENT, "expected local variable name")
	if !ok {
		return nil
	}

	if _, ok := p.consume(token.COLON, "expected ':' after local variable name"); !ok {
		return nil
	}

	init := p.parseExpression()
	if p.panicMode {
		return nil
	}

	return p.factory.NewVarDeclStmt(varTok, nameTok.Literal, nameTok, init)
}

func (p *Parser) parseIfStmt() *ast.IfStmt {
	ifTok := p.advance()

	cond := p.parseExpression()
	if p.panicMode {
		return nil
	}

	if _, ok := p.consume(token.THEN, "expected 'then' after condition"); !ok {
		return nil
	}

	thenStart := p.peek()
	var thenStmts []ast.Statement
	for !p.check(token.ELSE) && !p.check(token.END) && !p.isAtEnd() {
		s := p.parseStatement()
		if p.panicMode {
			return nil
		}
		if s != nil {
			thenStmts = append(thenStmts, s)
		}
	}
	thenEnd := p.peek()
	then := p.factory.NewBlockStmt(thenStart, thenStmts, thenEnd)

	var els *ast.BlockStmt
	if p.check(token.ELSE) {
		p.advance()
		els = p.parseBlockUntilEnd()
		if p.panicMode {
			return nil
		}
	} else {
		if _, ok := p.consume(token.END, "expected 'end' to close if statement"); !ok {
			return nil
		}
	}

	return p.factory.NewIfStmt(ifTok, cond, then, els)
}

func (p *Parser) parseWhileStmt() *ast.WhileStmt {
	whileTok := p.advance()

	cond := p.parseExpression()
	if p.panicMode {
		return nil
	}

	if _, ok := p.consume(token.LOOP, "expected 'loop' after condition"); !ok {
		return nil
	}

	body := p.parseBlockUntilEnd()
	if p.panicMode {
		return nil
	}

	return p.factory.NewWhileStmt(whileTok, cond, body)
}

func (p *Parser) parseReturnStmt() *ast.ReturnStmt {
	returnTok := p.advance()

	if p.check(token.END) || p.check(token.ELSE) {
		return p.factory.NewReturnStmt(returnTok, nil)
	}

	value := p.parseExpression()
	if p.panicMode {
		return nil
	}
	return p.factory.NewReturnStmt(returnTok, value)
}

// parseExprOrAssignStmt disambiguates `Target = Value` from a bare
// expression statement by speculatively parsing an expression first; if
// '=' follows, it is reinterpreted as the assignment target.
func (p *Parser) parseExprOrAssignStmt() ast.Statement {
	expr := p.parseExpression()
	if p.panicMode {
		return nil
	}

	if p.check(token.ASSIGN) {
		p.advance()
		value := p.parseExpression()
		if p.panicMode {
			return nil
		}
		return p.factory.NewAssignStmt(expr, value)
	}

	return p.factory.NewExprStmt(expr)
}

// ============================================================================
// Expressions
//
// The grammar has no infix operators: arithmetic, comparison, and
// boolean logic are all ordinary method calls (a.Plus(b)). The only
// precedence to resolve is postfix `.member`/`.member(args)` chaining
// over a primary expression.
// ============================================================================

func (p *Parser) parseExpression() ast.Expression {
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expression {
	expr := p.parsePrimary()
	if p.panicMode {
		return nil
	}

	for p.check(token.DOT) {
		p.advance()
		memberTok, ok := p.consume(token.IDENT, "expected member name after '.'")
		if !ok {
			return nil
		}

		access := p.factory.NewMemberAccess(expr, memberTok.Literal, memberTok)

		if p.check(token.LPAREN) {
			args, rparen, ok := p.parseArgumentList()
			if !ok {
				return nil
			}
			expr = p.factory.NewCall(access, args, rparen)
		} else {
			expr = access
		}
	}

	return expr
}

func (p *Parser) parsePrimary() ast.Expression {
	switch {
	case p.check(token.INT):
		tok := p.advance()
		return p.factory.NewIntLiteral(tok, tok.Value.(int64))

	case p.check(token.FLOAT):
		tok := p.advance()
		return p.factory.NewRealLiteral(tok, tok.Value.(float64))

	case p.check(token.TRUE):
		tok := p.advance()
		return p.factory.NewBoolLiteral(tok, true)

	case p.check(token.FALSE):
		tok := p.advance()
		return p.factory.NewBoolLiteral(tok, false)

	case p.check(token.THIS):
		tok := p.advance()
		return p.factory.NewThisExpr(tok)

	case p.check(token.LPAREN):
		p.advance()
		expr := p.parseExpression()
		if p.panicMode {
			return nil
		}
		if _, ok := p.consume(token.RPAREN, "expected ')' after expression"); !ok {
			return nil
		}
		return expr

	case p.check(token.IDENT):
		return p.parseIdentOrCall()

	default:
		p.error(fmt.Sprintf("expected an expression, got %s", p.peek().Type))
		return nil
	}
}

// parseIdentOrCall resolves a leading identifier into a bare Ident, a
// bare Call (method lookup on the enclosing class), or a ConstructorCall.
// `Name[Elem](args)` is always a ConstructorCall; `Name(args)` is a
// ConstructorCall when isClassName(Name) holds and otherwise a Call
// whose callee is a plain *ast.Ident.
func (p *Parser) parseIdentOrCall() ast.Expression {
	nameTok := p.advance()

	if p.check(token.LBRACKET) {
		// ClassName[Elem](args) generic constructor call
		p.advance()
		elem := p.parseTypeRef()
		if p.panicMode {
			return nil
		}
		if _, ok := p.consume(token.RBRACKET, "expected ']' after generic argument"); !ok {
			return nil
		}
		args, rparen, ok := p.parseArgumentList()
		if !ok {
			return nil
		}
		return p.factory.NewConstructorCall(nameTok, nameTok.Literal, elem, args, rparen)
	}

	if p.check(token.LPAREN) {
		args, rparen, ok := p.parseArgumentList()
		if !ok {
			return nil
		}
		if isClassName(nameTok.Literal) {
			return p.factory.NewConstructorCall(nameTok, nameTok.Literal, nil, args, rparen)
		}
		callee := p.factory.NewIdent(nameTok, nameTok.Literal)
		return p.factory.NewCall(callee, args, rparen)
	}

	return p.factory.NewIdent(nameTok, nameTok.Literal)
}

// isClassName applies the language's capitalization convention: class
// (and constructor) names start with an uppercase letter.
func isClassName(name string) bool {
	return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
}

func (p *Parser) parseArgumentList() ([]ast.Expression, token.Token, bool) {
	if _, ok := p.consume(token.LPAREN, "expected '('"); !ok {
		return nil, token.Token{}, false
	}

	var args []ast.Expression
	for !p.check(token.RPAREN) {
		arg := p.parseExpression()
		if p.panicMode {
			return nil, token.Token{}, false
		}
		args = append(args, arg)

		if p.check(token.COMMA) {
			p.advance()
			continue
		}
		break
	}

	rparen, ok := p.consume(token.RPAREN, "expected ')' after argument list")
	if !ok {
		return nil, token.Token{}, false
	}
	return args, rparen, true
}

// ============================================================================
// Low-level token helpers
// ============================================================================

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == token.EOF
}

func (p *Parser) peek() token.Token {
	return p.tokens[p.current]
}

func (p *Parser) advance() token.Token {
	tok := p.tokens[p.current]
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) check(t token.TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) consume(t token.TokenType, message string) (token.Token, bool) {
	if p.check(t) {
		return p.advance(), true
	}
	p.error(message)
	return token.Token{}, false
}

func (p *Parser) error(message string) {
	p.errors = append(p.errors, Error{Pos: p.peek().Pos, Message: message})
	p.panicMode = true
}

// synchronize discards tokens until a plausible declaration boundary, so
// one syntax error does not cascade into many.
func (p *Parser) synchronize() {
	p.panicMode = false
	for !p.isAtEnd() {
		if p.check(token.CLASS) {
			return
		}
		p.advance()
	}
}
