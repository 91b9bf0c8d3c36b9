package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `( ) { } [ ] , ; # + - * / = == ! != < <= > >=`
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenComma, ","},
		{TokenSemicolon, ";"},
		{TokenHash, "#"},
		{TokenPlus, "+"},
		{TokenMinus, "-"},
		{TokenStar, "*"},
		{TokenSlash, "/"},
		{TokenAssign, "="},
		{TokenEqual, "=="},
		{TokenBang, "!"},
		{TokenBangEqual, "!="},
		{TokenLess, "<"},
		{TokenLessEqual, "<="},
		{TokenGreater, ">"},
		{TokenGreaterEqual, ">="},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok, err := l.NextToken()
		require.NoError(t, err)
		assert.Equal(t, exp.typ, tok.Type, "token[%d]", i)
		assert.Equal(t, exp.lit, tok.Literal, "token[%d]", i)
	}
}

func TestLexerKeywords(t *testing.T) {
	tests := []struct {
		input string
		want  TokenType
	}{
		{"IF", TokenIf},
		{"ELIF", TokenElif},
		{"ELSE", TokenElse},
		{"AND", TokenAnd},
		{"OR", TokenOr},
		{"GLOBAL", TokenGlobal},
		{"STORE", TokenStore},
		{"INT", TokenIntType},
		{"FLOAT", TokenFloatType},
		{"STRING", TokenStringType},
		{"If", TokenIdentifier},
		{"_if2", TokenIdentifier},
	}

	for _, tc := range tests {
		toks, err := Tokenize(tc.input)
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.want, toks[0].Type, tc.input)
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		types []TokenType
		lits  []string
	}{
		{"42", []TokenType{TokenInteger}, []string{"42"}},
		{"3.14", []TokenType{TokenFloat}, []string{"3.14"}},
		// a '.' without a digit after it is not part of the number
		{"7.", []TokenType{TokenInteger}, nil},
	}

	for _, tc := range tests {
		l := NewLexer(tc.input)
		for i, want := range tc.types {
			tok, err := l.NextToken()
			require.NoError(t, err, tc.input)
			assert.Equal(t, want, tok.Type, tc.input)
			if tc.lits != nil {
				assert.Equal(t, tc.lits[i], tok.Literal, tc.input)
			}
		}
	}

	// "7." leaves the '.' behind, which is not a token of the language
	_, err := Tokenize("7.")
	require.Error(t, err)
	assert.True(t, IsKind(err, LexError))
}

func TestLexerStrings(t *testing.T) {
	toks, err := Tokenize(`"Value: %x" "say \"hi\""`)
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, TokenString, toks[0].Type)
	assert.Equal(t, "Value: %x", toks[0].Literal)
	// escapes are kept verbatim for the compound string splitter
	assert.Equal(t, `say \"hi\"`, toks[1].Literal)
}

func TestLexerMultilineStringCountsLines(t *testing.T) {
	toks, err := Tokenize("\"one\ntwo\" x")
	require.NoError(t, err)
	assert.Equal(t, 1, toks[0].Pos.Line)
	assert.Equal(t, 2, toks[1].Pos.Line)
}

func TestLexerPositions(t *testing.T) {
	toks, err := Tokenize("INT x = 2;\n  x = x + 3;")
	require.NoError(t, err)

	assert.Equal(t, Position{Offset: 0, Line: 1, Column: 1}, toks[0].Pos)
	assert.Equal(t, 1, toks[1].Pos.Line)
	assert.Equal(t, 5, toks[1].Pos.Column)
	// second line: "  x"
	assert.Equal(t, 2, toks[5].Pos.Line)
	assert.Equal(t, 3, toks[5].Pos.Column)
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unterminated string", `"never closed`},
		{"trailing escape", `"abc\`},
		{"unknown character", "x = 1 @ 2;"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Tokenize(tc.input)
			require.Error(t, err)
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, LexError, e.Kind)
			assert.NotZero(t, e.Pos.Line)
		})
	}
}

func TestLexerUnknownCharacterPosition(t *testing.T) {
	_, err := Tokenize("x = 1;\ny = $;")
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 2, e.Pos.Line)
	assert.Equal(t, 5, e.Pos.Column)
}

func TestKeywordsSorted(t *testing.T) {
	kws := Keywords()
	assert.Contains(t, kws, "GLOBAL")
	assert.IsIncreasing(t, kws)
}
