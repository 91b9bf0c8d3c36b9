package compiler

import (
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for preprocessed scene source
// ---------------------------------------------------------------------------

// Lexer tokenizes scene source code. It expects macro definitions to have
// been removed and references substituted already.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// Tokenize scans the whole input. The returned slice always ends with a
// TokenEOF token.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// position returns the position of the current character.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

func (l *Lexer) skipWhitespace() {
	for !l.atEOF() && (l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n') {
		l.readChar()
	}
}

// single consumes one character and returns a token of type t.
func (l *Lexer) single(t TokenType, pos Position) Token {
	lit := string(l.ch)
	l.readChar()
	return Token{Type: t, Literal: lit, Pos: pos}
}

// pair consumes a one or two character operator. When the next character
// is '=' the two character form is produced.
func (l *Lexer) pair(one, two TokenType, pos Position) Token {
	first := l.ch
	l.readChar()
	if l.ch == '=' {
		l.readChar()
		return Token{Type: two, Literal: string(first) + "=", Pos: pos}
	}
	return Token{Type: one, Literal: string(first), Pos: pos}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()

	pos := l.position()
	if l.atEOF() {
		return Token{Type: TokenEOF, Pos: pos}, nil
	}

	switch l.ch {
	case '(':
		return l.single(TokenLParen, pos), nil
	case ')':
		return l.single(TokenRParen, pos), nil
	case '{':
		return l.single(TokenLBrace, pos), nil
	case '}':
		return l.single(TokenRBrace, pos), nil
	case '[':
		return l.single(TokenLBracket, pos), nil
	case ']':
		return l.single(TokenRBracket, pos), nil
	case ',':
		return l.single(TokenComma, pos), nil
	case ';':
		return l.single(TokenSemicolon, pos), nil
	case '#':
		return l.single(TokenHash, pos), nil
	case '+':
		return l.single(TokenPlus, pos), nil
	case '-':
		return l.single(TokenMinus, pos), nil
	case '*':
		return l.single(TokenStar, pos), nil
	case '/':
		return l.single(TokenSlash, pos), nil
	case '=':
		return l.pair(TokenAssign, TokenEqual, pos), nil
	case '!':
		return l.pair(TokenBang, TokenBangEqual, pos), nil
	case '<':
		return l.pair(TokenLess, TokenLessEqual, pos), nil
	case '>':
		return l.pair(TokenGreater, TokenGreaterEqual, pos), nil
	case '"':
		return l.readString(pos)
	}

	switch {
	case isDigit(l.ch):
		return l.readNumber(pos), nil
	case isIdentStart(l.ch):
		return l.readIdentifier(pos), nil
	}
	return Token{}, errorAt(LexError, pos, "unexpected character %q", l.ch)
}

// readString scans a quoted literal. A backslash consumes the following
// character without interpreting it; compound-string splitting decides
// what escapes mean later.
func (l *Lexer) readString(pos Position) (Token, error) {
	l.readChar() // opening quote
	start := l.pos
	for l.ch != '"' {
		if l.atEOF() {
			return Token{}, errorAt(LexError, pos, "unterminated string")
		}
		if l.ch == '\\' {
			l.readChar()
			if l.atEOF() {
				return Token{}, errorAt(LexError, pos, "unterminated string")
			}
		}
		l.readChar()
	}
	lit := l.input[start:l.pos]
	l.readChar() // closing quote
	return Token{Type: TokenString, Literal: lit, Pos: pos}, nil
}

// readNumber scans an integer, promoting it to a float only when the '.'
// is followed by a digit. Otherwise the '.' is left for the next token.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
		return Token{Type: TokenFloat, Literal: l.input[start:l.pos], Pos: pos}
	}
	return Token{Type: TokenInteger, Literal: l.input[start:l.pos], Pos: pos}
}

func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for isIdentPart(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	return Token{Type: LookupIdent(lit), Literal: lit, Pos: pos}
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch rune) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || isDigit(ch)
}
