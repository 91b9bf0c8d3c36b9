package compiler

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent over a token slice
// ---------------------------------------------------------------------------

// Parser builds statements from tokens. It stops at the first error; there
// is no resynchronization.
type Parser struct {
	tokens []Token
	cur    int
}

// NewParser creates a parser over tokens, which must end with TokenEOF.
func NewParser(tokens []Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != TokenEOF {
		tokens = append(tokens, Token{Type: TokenEOF})
	}
	return &Parser{tokens: tokens}
}

// Parse lexes and parses preprocessed source text.
func Parse(src string) ([]Stmt, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).ParseProgram()
}

// ParseExpression parses src as a single expression, optionally followed
// by ';'.
func ParseExpression(src string) (Expr, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := NewParser(tokens)
	start := p.peek()
	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.check(TokenSemicolon) {
		p.advance()
	}
	if !p.check(TokenEOF) {
		return nil, p.fail(start, "unexpected %s after expression", p.peek())
	}
	return e, nil
}

// ParseProgram parses statements until end of input.
func (p *Parser) ParseProgram() ([]Stmt, error) {
	var stmts []Stmt
	for !p.check(TokenEOF) {
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

// ---------------------------------------------------------------------------
// Token navigation
// ---------------------------------------------------------------------------

func (p *Parser) peek() Token {
	return p.tokens[p.cur]
}

// peekAt looks n tokens past the current one, clamped to EOF.
func (p *Parser) peekAt(n int) Token {
	if p.cur+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.cur+n]
}

func (p *Parser) advance() Token {
	tok := p.tokens[p.cur]
	if tok.Type != TokenEOF {
		p.cur++
	}
	return tok
}

func (p *Parser) check(t TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) match(types ...TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			return true
		}
	}
	return false
}

// expect consumes a token of type t or fails the production begun at start.
func (p *Parser) expect(start Token, t TokenType, context string) (Token, error) {
	if p.check(t) {
		return p.advance(), nil
	}
	return Token{}, p.fail(start, "expected %s %s, got %s", t, context, p.peek())
}

// fail reports an error at the token that began the failing production.
func (p *Parser) fail(start Token, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	if at := p.peek(); at.Pos.Line != start.Pos.Line || at.Pos.Column != start.Pos.Column {
		msg = fmt.Sprintf("%s (in %s starting here, failed at line %d)", msg, start, at.Pos.Line)
	}
	return errorAt(ParseError, start.Pos, "%s", msg)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) statement() (Stmt, error) {
	start := p.peek()
	switch start.Type {
	case TokenLBrace:
		return p.block()
	case TokenHash:
		if p.peekAt(1).Type.IsTypeKeyword() {
			return p.constantDecl()
		}
	case TokenIntType, TokenFloatType, TokenStringType:
		return p.typedDecl()
	case TokenGlobal:
		return p.global()
	case TokenStore:
		return p.store()
	case TokenIf:
		return p.condition()
	case TokenString:
		if p.peekAt(1).Type == TokenAssign {
			return p.option()
		}
		return p.print()
	case TokenLBracket:
		if p.peekAt(1).Type == TokenLBracket {
			return p.sceneSwitch()
		}
	case TokenIdentifier:
		if p.peekAt(1).Type == TokenAssign {
			p.advance()
			return p.assignment(start, nil, start)
		}
	}
	return p.expressionStmt()
}

func (p *Parser) block() (*BlockStmt, error) {
	start, err := p.expect(p.peek(), TokenLBrace, "to open block")
	if err != nil {
		return nil, err
	}
	b := &BlockStmt{LBrace: start}
	for !p.check(TokenRBrace) {
		if p.check(TokenEOF) {
			return nil, p.fail(start, "unterminated block")
		}
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, s)
	}
	p.advance()
	return b, nil
}

// assignment parses "= expr ;" after the target name has been consumed.
func (p *Parser) assignment(start Token, typ *Token, name Token) (*AssignStmt, error) {
	if _, err := p.expect(start, TokenAssign, "in assignment to "+name.Literal); err != nil {
		return nil, err
	}
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(start, TokenSemicolon, "after assignment"); err != nil {
		return nil, err
	}
	return &AssignStmt{Type: typ, Name: name, Value: value}, nil
}

func (p *Parser) typedDecl() (Stmt, error) {
	typ := p.advance()
	if typ.Type == TokenFloatType {
		return nil, p.fail(typ, "FLOAT declarations are not supported")
	}
	name, err := p.expect(typ, TokenIdentifier, "after "+typ.Literal)
	if err != nil {
		return nil, err
	}
	return p.assignment(typ, &typ, name)
}

func (p *Parser) constantDecl() (Stmt, error) {
	hash := p.advance()
	typ := p.advance()
	if typ.Type == TokenFloatType {
		return nil, p.fail(hash, "FLOAT constants are not supported")
	}
	name, err := p.expect(hash, TokenIdentifier, "after #"+typ.Literal)
	if err != nil {
		return nil, err
	}
	a, err := p.assignment(hash, &typ, name)
	if err != nil {
		return nil, err
	}
	return &ConstantStmt{Hash: hash, Type: typ, Name: name, Value: a.Value}, nil
}

func (p *Parser) global() (Stmt, error) {
	kw := p.advance()
	name, err := p.expect(kw, TokenIdentifier, "after GLOBAL")
	if err != nil {
		return nil, err
	}
	if p.check(TokenSemicolon) {
		p.advance()
		return &GlobalDeclStmt{Keyword: kw, Name: name}, nil
	}
	a, err := p.assignment(kw, nil, name)
	if err != nil {
		return nil, err
	}
	return &GlobalDefStmt{Keyword: kw, Assign: a}, nil
}

func (p *Parser) store() (Stmt, error) {
	kw := p.advance()
	name, err := p.expect(kw, TokenIdentifier, "after STORE")
	if err != nil {
		return nil, err
	}
	a, err := p.assignment(kw, nil, name)
	if err != nil {
		return nil, err
	}
	return &StoreStmt{Keyword: kw, Assign: a}, nil
}

func (p *Parser) condition() (Stmt, error) {
	kw := p.advance()
	s := &ConditionStmt{Keyword: kw}
	var err error
	if s.Cond, err = p.expression(); err != nil {
		return nil, err
	}
	if s.Then, err = p.block(); err != nil {
		return nil, err
	}
	for p.check(TokenElif) {
		p.advance()
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		b, err := p.block()
		if err != nil {
			return nil, err
		}
		s.ElifConds = append(s.ElifConds, cond)
		s.ElifBlocks = append(s.ElifBlocks, b)
	}
	if p.check(TokenElse) {
		p.advance()
		if s.Else, err = p.block(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (p *Parser) option() (Stmt, error) {
	str := p.advance()
	p.advance() // '='
	if !p.check(TokenLBrace) {
		return nil, p.fail(str, "expected block after option %q", str.Literal)
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &OptionStmt{String: str, Body: body}, nil
}

func (p *Parser) print() (Stmt, error) {
	str := p.advance()
	if _, err := p.expect(str, TokenSemicolon, "after string"); err != nil {
		return nil, err
	}
	return &PrintStmt{String: str}, nil
}

func (p *Parser) sceneSwitch() (Stmt, error) {
	start := p.peek()
	scene, err := p.scene()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(start, TokenSemicolon, "after scene switch"); err != nil {
		return nil, err
	}
	return &SceneSwitchStmt{Scene: scene}, nil
}

func (p *Parser) expressionStmt() (Stmt, error) {
	start := p.peek()
	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(start, TokenSemicolon, "after expression"); err != nil {
		return nil, err
	}
	return &ExprStmt{X: e}, nil
}

// ---------------------------------------------------------------------------
// Expressions, lowest precedence first
// ---------------------------------------------------------------------------

func (p *Parser) expression() (Expr, error) {
	return p.logicalOr()
}

// binary parses a left-associative level: next (op next)*.
func (p *Parser) binary(next func() (Expr, error), ops ...TokenType) (Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for p.match(ops...) {
		op := p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) logicalOr() (Expr, error) {
	return p.binary(p.logicalAnd, TokenOr)
}

func (p *Parser) logicalAnd() (Expr, error) {
	return p.binary(p.equality, TokenAnd)
}

func (p *Parser) equality() (Expr, error) {
	return p.binary(p.comparison, TokenEqual, TokenBangEqual)
}

func (p *Parser) comparison() (Expr, error) {
	return p.binary(p.term, TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual)
}

func (p *Parser) term() (Expr, error) {
	return p.binary(p.factor, TokenPlus, TokenMinus)
}

func (p *Parser) factor() (Expr, error) {
	return p.binary(p.unary, TokenStar, TokenSlash)
}

func (p *Parser) unary() (Expr, error) {
	if p.match(TokenMinus, TokenBang) {
		op := p.advance()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: op, Operand: operand}, nil
	}
	return p.primary()
}

func (p *Parser) primary() (Expr, error) {
	start := p.peek()
	switch start.Type {
	case TokenLParen:
		p.advance()
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(start, TokenRParen, "to close parenthesis"); err != nil {
			return nil, err
		}
		return &ParenExpr{LParen: start, Inner: inner}, nil

	case TokenInteger, TokenFloat, TokenString:
		p.advance()
		return &LiteralExpr{Token: start}, nil

	case TokenHash:
		p.advance()
		name, err := p.expect(start, TokenIdentifier, "after '#'")
		if err != nil {
			return nil, err
		}
		return &VariableExpr{Name: name, Macro: true}, nil

	case TokenLBracket:
		return p.scene()

	case TokenIdentifier:
		p.advance()
		if p.check(TokenLParen) {
			return p.call(start)
		}
		return &VariableExpr{Name: start}, nil
	}
	return nil, p.fail(start, "expected expression, got %s", start)
}

// call parses an argument list after the callee name.
func (p *Parser) call(name Token) (Expr, error) {
	p.advance() // '('
	c := &CallExpr{Name: name}
	if p.check(TokenRParen) {
		p.advance()
		return c, nil
	}
	for {
		arg, err := p.expression()
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, arg)
		if p.check(TokenComma) {
			p.advance()
			continue
		}
		if _, err := p.expect(name, TokenRParen, "to close call to "+name.Literal); err != nil {
			return nil, err
		}
		return c, nil
	}
}

// scene parses [[name]].
func (p *Parser) scene() (*SceneExpr, error) {
	start := p.peek()
	for i := 0; i < 2; i++ {
		if _, err := p.expect(start, TokenLBracket, "in scene reference"); err != nil {
			return nil, err
		}
	}
	name, err := p.expect(start, TokenIdentifier, "as scene name")
	if err != nil {
		return nil, err
	}
	for i := 0; i < 2; i++ {
		if _, err := p.expect(start, TokenRBracket, "to close scene reference"); err != nil {
			return nil, err
		}
	}
	return &SceneExpr{Name: name}, nil
}
