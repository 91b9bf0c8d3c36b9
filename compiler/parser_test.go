package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, src string) Stmt {
	t.Helper()
	stmts, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	return stmts[0]
}

func TestParseAssignment(t *testing.T) {
	s := parseOne(t, "x = 1 + 2;")
	a, ok := s.(*AssignStmt)
	require.True(t, ok, "got %T", s)
	assert.Nil(t, a.Type)
	assert.Equal(t, "x", a.Name.Literal)

	bin, ok := a.Value.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, TokenPlus, bin.Op.Type)
}

func TestParseTypedDeclaration(t *testing.T) {
	s := parseOne(t, "INT hp = 10;")
	a := s.(*AssignStmt)
	require.NotNil(t, a.Type)
	assert.Equal(t, TokenIntType, a.Type.Type)
	assert.Equal(t, "hp", a.Name.Literal)
}

func TestParseFloatDeclarationRejected(t *testing.T) {
	for _, src := range []string{"FLOAT f = 1.5;", "#FLOAT F = 1.5;"} {
		_, err := Parse(src)
		require.Error(t, err, src)
		assert.True(t, IsKind(err, ParseError), src)
	}
}

func TestParseConstant(t *testing.T) {
	s := parseOne(t, "#INT LIMIT = 3 * 4;")
	c, ok := s.(*ConstantStmt)
	require.True(t, ok, "got %T", s)
	assert.Equal(t, "LIMIT", c.Name.Literal)
	assert.Equal(t, TokenIntType, c.Type.Type)
}

func TestParseMacroReference(t *testing.T) {
	s := parseOne(t, "x = #LIMIT;")
	v, ok := s.(*AssignStmt).Value.(*VariableExpr)
	require.True(t, ok)
	assert.True(t, v.Macro)
	assert.Equal(t, "LIMIT", v.Name.Literal)
}

func TestParsePrecedence(t *testing.T) {
	// 1 + 2 * 3 < 10 AND 1 OR 0  ==  ((1 + (2 * 3)) < 10 AND 1) OR 0
	s := parseOne(t, "x = 1 + 2 * 3 < 10 AND 1 OR 0;")
	or := s.(*AssignStmt).Value.(*BinaryExpr)
	assert.Equal(t, TokenOr, or.Op.Type)

	and := or.Left.(*BinaryExpr)
	assert.Equal(t, TokenAnd, and.Op.Type)

	lt := and.Left.(*BinaryExpr)
	assert.Equal(t, TokenLess, lt.Op.Type)

	plus := lt.Left.(*BinaryExpr)
	assert.Equal(t, TokenPlus, plus.Op.Type)

	mul := plus.Right.(*BinaryExpr)
	assert.Equal(t, TokenStar, mul.Op.Type)
}

func TestParseLeftAssociative(t *testing.T) {
	s := parseOne(t, "x = 10 - 3 - 2;")
	outer := s.(*AssignStmt).Value.(*BinaryExpr)
	inner, ok := outer.Left.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "10", inner.Left.(*LiteralExpr).Token.Literal)
	assert.Equal(t, "2", outer.Right.(*LiteralExpr).Token.Literal)
}

func TestParseUnary(t *testing.T) {
	s := parseOne(t, "x = -!1;")
	neg := s.(*AssignStmt).Value.(*UnaryExpr)
	assert.Equal(t, TokenMinus, neg.Op.Type)
	not := neg.Operand.(*UnaryExpr)
	assert.Equal(t, TokenBang, not.Op.Type)
}

func TestParseCall(t *testing.T) {
	s := parseOne(t, "custom_add(1, x + 2);")
	es, ok := s.(*ExprStmt)
	require.True(t, ok)
	call := es.X.(*CallExpr)
	assert.Equal(t, "custom_add", call.Name.Literal)
	assert.Len(t, call.Args, 2)

	s = parseOne(t, "tick();")
	assert.Empty(t, s.(*ExprStmt).X.(*CallExpr).Args)
}

func TestParseGlobalAndStore(t *testing.T) {
	stmts, err := Parse("GLOBAL a; GLOBAL b = 2; STORE c = 3;")
	require.NoError(t, err)
	require.Len(t, stmts, 3)

	decl := stmts[0].(*GlobalDeclStmt)
	assert.Equal(t, "a", decl.Name.Literal)
	def := stmts[1].(*GlobalDefStmt)
	assert.Equal(t, "b", def.Assign.Name.Literal)
	st := stmts[2].(*StoreStmt)
	assert.Equal(t, "c", st.Assign.Name.Literal)
}

func TestParseConditionChain(t *testing.T) {
	s := parseOne(t, `IF x < 1 { "a"; } ELIF x < 2 { "b"; } ELIF x < 3 { "c"; } ELSE { "d"; }`)
	c := s.(*ConditionStmt)
	assert.Len(t, c.Then.Stmts, 1)
	assert.Len(t, c.ElifConds, 2)
	assert.Len(t, c.ElifBlocks, 2)
	require.NotNil(t, c.Else)
	assert.Equal(t, "d", c.Else.Stmts[0].(*PrintStmt).String.Literal)
}

func TestParseOptionAndPrint(t *testing.T) {
	stmts, err := Parse(`"Hello"; "Continue" = { "On we go"; [[next]]; }`)
	require.NoError(t, err)
	require.Len(t, stmts, 2)

	p := stmts[0].(*PrintStmt)
	assert.Equal(t, "Hello", p.String.Literal)

	o := stmts[1].(*OptionStmt)
	assert.Equal(t, "Continue", o.String.Literal)
	require.Len(t, o.Body.Stmts, 2)
	sw := o.Body.Stmts[1].(*SceneSwitchStmt)
	assert.Equal(t, "next", sw.Scene.Name.Literal)
}

func TestParseNestedBlock(t *testing.T) {
	s := parseOne(t, "{ x = 1; { y = 2; } }")
	b := s.(*BlockStmt)
	require.Len(t, b.Stmts, 2)
	_, ok := b.Stmts[1].(*BlockStmt)
	assert.True(t, ok)
}

func TestParseExpression(t *testing.T) {
	e, err := ParseExpression("x + 1")
	require.NoError(t, err)
	_, ok := e.(*BinaryExpr)
	assert.True(t, ok)

	_, err = ParseExpression("x + 1;")
	assert.NoError(t, err)

	_, err = ParseExpression("x y")
	assert.True(t, IsKind(err, ParseError))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"missing semicolon", "x = 1", 1},
		{"print without semicolon", `"hi"`, 1},
		{"unterminated block", "{ x = 1;", 1},
		{"unclosed paren", "x = (1 + 2;", 1},
		{"option without block", `"go" = 1;`, 1},
		{"bad scene", "[[ 1 ]];", 1},
		{"error on later line", "x = 1;\ny = ;", 2},
		{"missing condition block", "IF 1 x = 2;", 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.src)
			require.Error(t, err)
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, ParseError, e.Kind)
			assert.Equal(t, tc.line, e.Pos.Line)
		})
	}
}
