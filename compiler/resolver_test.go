package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNatives() *Natives {
	n := NewNatives()
	n.MustRegister("custom_add", TypeInt, TypeInt, TypeInt)
	n.MustRegister("player_name", TypeStringPtr)
	n.MustRegister("greet", TypeInt, TypeStringPtr)
	return n
}

func testEnv() *Env {
	return &Env{
		Unit:    "test",
		Globals: NewGlobalTable(),
		Natives: testNatives(),
		Scenes:  map[string]uint32{"intro": NameHash("intro"), "forest": NameHash("forest")},
	}
}

func resolve(t *testing.T, src string, env *Env) (*Resolved, error) {
	t.Helper()
	expanded, err := Preprocess(src)
	require.NoError(t, err)
	stmts, err := Parse(expanded)
	require.NoError(t, err)
	return Resolve(stmts, env)
}

func mustResolve(t *testing.T, src string) *Resolved {
	t.Helper()
	res, err := resolve(t, src, testEnv())
	require.NoError(t, err)
	return res
}

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, kind, e.Kind, "error: %v", err)
}

func TestResolveImplicitTemporal(t *testing.T) {
	res := mustResolve(t, "INT x = 2; x = x + 3;")
	v, ok := res.Symbols.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, ScopeTemporal, v.Scope)
	assert.Equal(t, IntValue(2), v.Value)
	assert.Equal(t, 1, v.Site.Line)
	assert.Equal(t, 5, v.Site.Column)
}

func TestResolveRuntimeValueIsUnknown(t *testing.T) {
	res := mustResolve(t, "y = custom_add(1, 2);")
	v, ok := res.Symbols.Lookup("y")
	require.True(t, ok)
	assert.Equal(t, TypeInt, v.Value.Type)
	assert.False(t, v.Value.Known)
}

func TestResolveConstants(t *testing.T) {
	res := mustResolve(t, `\#INT LIMIT = 3 * 4; x = \#LIMIT + 1;`)
	assert.Equal(t, IntValue(12), res.Constants["LIMIT"])
	v, _ := res.Symbols.Lookup("x")
	assert.Equal(t, IntValue(13), v.Value)
}

func TestResolveIntRange(t *testing.T) {
	ok := []struct {
		src  string
		want int64
	}{
		{"x = 2147483647;", 2147483647},
		{"x = -2147483647 - 1;", -2147483648},
		{"x = 46340 * 46340;", 2147395600},
		{"x = -2147483647 / -1;", 2147483647},
	}
	for _, tc := range ok {
		res := mustResolve(t, tc.src)
		v, found := res.Symbols.Lookup("x")
		require.True(t, found)
		assert.Equal(t, IntValue(tc.want), v.Value, tc.src)
	}

	bad := []struct {
		name   string
		src    string
		column int
	}{
		{"literal too large", "x = 2147483648;", 5},
		{"huge literal", "x = 4294967296 * 4294967296;", 5},
		{"literal in runtime expression", "x = custom_add(1, 2) + 5000000000;", 24},
		{"sum", "x = 2147483647 + 1;", 16},
		{"difference", "x = -2147483647 - 2;", 17},
		{"product", "x = 65536 * 65536;", 11},
		{"negation", "x = -(-2147483647 - 1);", 5},
		{"quotient", "x = (-2147483647 - 1) / -1;", 23},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolve(t, tc.src, testEnv())
			requireKind(t, err, SemanticError)
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tc.column, e.Pos.Column)
			assert.Contains(t, e.Msg, "32 bits")
		})
	}
}

func TestResolveStringsDeduplicated(t *testing.T) {
	res := mustResolve(t, `"Continue" = { "a"; } "Continue" = { "b"; } "a";`)
	ids := make([]Identifier, 0, len(res.Strings))
	for _, cs := range res.Strings {
		ids = append(ids, cs.ID)
	}
	assert.Equal(t, []Identifier{"+Continue", "+a", "+b"}, ids)

	v, ok := res.Symbols.Lookup(AnonymousIdentifier("Continue"))
	require.True(t, ok)
	assert.Equal(t, StringValue("Continue"), v.Value)
}

func TestResolveCompoundFields(t *testing.T) {
	res := mustResolve(t, `x = 5; "Value: %x";`)
	cs, ok := res.Compound(AnonymousIdentifier("Value: %x"))
	require.True(t, ok)
	require.Len(t, cs.Fields, 2)

	assert.Equal(t, FieldText, cs.Fields[0].Kind)
	assert.Equal(t, "Value: ", cs.Fields[0].Text)
	_, ok = res.Symbols.Lookup(AnonymousIdentifier("Value: "))
	assert.True(t, ok, "text field registered as a variable")

	assert.Equal(t, FieldExpr, cs.Fields[1].Kind)
	assert.Equal(t, TypeInt, cs.Fields[1].Type)
	require.NotNil(t, cs.Fields[1].Expr)
}

func TestResolveStringPointerField(t *testing.T) {
	res := mustResolve(t, `"Hello %(player_name())!";`)
	cs := res.Strings[0]
	require.Len(t, cs.Fields, 3)
	assert.Equal(t, TypeStringPtr, cs.Fields[1].Type)
	assert.Equal(t, "!", cs.Fields[2].Text)
}

func TestResolveSortsByScope(t *testing.T) {
	res := mustResolve(t, "x = 1; STORE s = 2; GLOBAL g = 3;")
	vars := res.Symbols.Variables()
	require.Len(t, vars, 3)
	assert.Equal(t, Identifier("g"), vars[0].Name)
	assert.Equal(t, Identifier("s"), vars[1].Name)
	assert.Equal(t, Identifier("x"), vars[2].Name)
}

func TestResolveSceneSwitch(t *testing.T) {
	mustResolve(t, "[[forest]];")

	_, err := resolve(t, "[[cave]];", testEnv())
	requireKind(t, err, SemanticError)
}

func TestResolveGlobals(t *testing.T) {
	env := testEnv()
	_, err := resolve(t, "GLOBAL a; GLOBAL b = 4;", env)
	require.NoError(t, err)

	a, ok := env.Globals.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, ScopeGlobalDeclare, a.Scope)
	assert.Equal(t, 0, a.Index)
	b, _ := env.Globals.Lookup("b")
	assert.Equal(t, IntValue(4), b.Value)
	assert.Equal(t, "test", b.Unit)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind ErrorKind
	}{
		{"undefined variable", "x = y;", SemanticError},
		{"undefined function", "x = nope(1);", SemanticError},
		{"wrong arity", "x = custom_add(1);", SemanticError},
		{"wrong argument type", "x = greet(1);", SemanticError},
		{"type mismatch", "x = 1.5; x = 2;", SemanticError},
		{"typed redeclaration", "INT x = 1; INT x = 2;", SemanticError},
		{"declared type mismatch", "INT x = 1.5;", SemanticError},
		{"string arithmetic", `x = "a" + 1;`, SemanticError},
		{"mixed numeric types", "x = 1 + 1.5;", SemanticError},
		{"string assignment", `x = "text";`, SemanticError},
		{"string pointer assignment", "x = player_name();", SemanticError},
		{"string condition", `IF "a" { }`, SemanticError},
		{"division by zero", "x = 1 / 0;", SemanticError},
		{"undefined constant", `x = \#NOPE;`, SemanticError},
		{"constant redefinition", `\#INT A = 1; \#INT A = 2;`, SemanticError},
		{"non-constant constant", `x = custom_add(1, 2); \#INT A = x;`, SemanticError},
		{"global declared twice", "GLOBAL a; GLOBAL a;", SemanticError},
		{"global declared after definition", "GLOBAL a = 1; GLOBAL a;", SemanticError},
		{"global defined twice", "GLOBAL a = 1; GLOBAL a = 2;", SemanticError},
		{"global not constant", "x = custom_add(1, 2); GLOBAL a = x;", SemanticError},
		{"store not constant", "STORE s = custom_add(1, 2);", SemanticError},
		{"store redefined", "x = 1; STORE x = 2;", SemanticError},
		{"undefined field", `"%missing";`, SemanticError},
		{"float field", `"%(1.5)";`, UnsupportedError},
		{"scene field", `"%([[intro]])";`, SemanticError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolve(t, tc.src, testEnv())
			requireKind(t, err, tc.kind)
		})
	}
}

func TestResolveFieldErrorAtString(t *testing.T) {
	_, err := resolve(t, "x = 1;\n\"Oops %missing\";", testEnv())
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 2, e.Pos.Line)
	assert.Contains(t, e.Msg, "missing")
}
