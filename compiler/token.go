package compiler

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Token types for the narrative scene language
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota

	// Structural punctuation
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenComma     // ,
	TokenSemicolon // ;
	TokenHash      // #

	// Operators
	TokenPlus         // +
	TokenMinus        // -
	TokenStar         // *
	TokenSlash        // /
	TokenAssign       // =
	TokenEqual        // ==
	TokenBang         // !
	TokenBangEqual    // !=
	TokenLess         // <
	TokenLessEqual    // <=
	TokenGreater      // >
	TokenGreaterEqual // >=

	// Literals
	TokenIdentifier // foo, _bar2
	TokenString     // "hello %name"
	TokenInteger    // 42
	TokenFloat      // 3.14

	// Keywords
	TokenGlobal
	TokenStore
	TokenDisplay
	TokenHide
	TokenIf
	TokenElif
	TokenElse
	TokenAnd
	TokenOr

	// Type keywords
	TokenIntType
	TokenFloatType
	TokenStringType
)

var tokenNames = map[TokenType]string{
	TokenEOF:          "EOF",
	TokenLParen:       "LPAREN",
	TokenRParen:       "RPAREN",
	TokenLBrace:       "LBRACE",
	TokenRBrace:       "RBRACE",
	TokenLBracket:     "LBRACKET",
	TokenRBracket:     "RBRACKET",
	TokenComma:        "COMMA",
	TokenSemicolon:    "SEMICOLON",
	TokenHash:         "HASH",
	TokenPlus:         "PLUS",
	TokenMinus:        "MINUS",
	TokenStar:         "STAR",
	TokenSlash:        "SLASH",
	TokenAssign:       "ASSIGN",
	TokenEqual:        "EQUAL",
	TokenBang:         "BANG",
	TokenBangEqual:    "BANG_EQUAL",
	TokenLess:         "LESS",
	TokenLessEqual:    "LESS_EQUAL",
	TokenGreater:      "GREATER",
	TokenGreaterEqual: "GREATER_EQUAL",
	TokenIdentifier:   "IDENTIFIER",
	TokenString:       "STRING",
	TokenInteger:      "INTEGER",
	TokenFloat:        "FLOAT",
	TokenGlobal:       "GLOBAL",
	TokenStore:        "STORE",
	TokenDisplay:      "DISPLAY",
	TokenHide:         "HIDE",
	TokenIf:           "IF",
	TokenElif:         "ELIF",
	TokenElse:         "ELSE",
	TokenAnd:          "AND",
	TokenOr:           "OR",
	TokenIntType:      "INT",
	TokenFloatType:    "FLOAT_TYPE",
	TokenStringType:   "STRING_TYPE",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

// IsTypeKeyword reports whether the token names a declarable value type.
func (t TokenType) IsTypeKeyword() bool {
	return t == TokenIntType || t == TokenFloatType || t == TokenStringType
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string // lexeme; string literals hold the text between the quotes
	Pos     Position
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenString:
		return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
	case TokenIdentifier, TokenInteger, TokenFloat:
		return fmt.Sprintf("%s(%s)", t.Type, t.Literal)
	default:
		return t.Type.String()
	}
}

// keywords maps reserved words to their token types. Matching is
// case-sensitive: IF is a keyword, If is an identifier.
var keywords = map[string]TokenType{
	"GLOBAL":  TokenGlobal,
	"STORE":   TokenStore,
	"DISPLAY": TokenDisplay,
	"HIDE":    TokenHide,
	"IF":      TokenIf,
	"ELIF":    TokenElif,
	"ELSE":    TokenElse,
	"AND":     TokenAnd,
	"OR":      TokenOr,
	"INT":     TokenIntType,
	"FLOAT":   TokenFloatType,
	"STRING":  TokenStringType,
}

// LookupIdent returns the keyword token type for ident, or TokenIdentifier.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdentifier
}

// Keywords returns the reserved words of the language.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for k := range keywords {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
