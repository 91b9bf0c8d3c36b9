package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/narrative/compiler"
	"github.com/chazu/narrative/pkg/bytecode"
	"github.com/chazu/narrative/vm"
)

func natives() *compiler.Natives {
	n := compiler.NewNatives()
	n.MustRegister("custom_add", compiler.TypeInt, compiler.TypeInt, compiler.TypeInt)
	n.MustRegister("custom_sub", compiler.TypeInt, compiler.TypeInt, compiler.TypeInt)
	n.MustRegister("player_name", compiler.TypeStringPtr)
	return n
}

func load(t *testing.T, src string, globals []int32) (*vm.Machine, *bytes.Buffer) {
	t.Helper()
	env := &compiler.Env{
		Natives: natives(),
		Scenes:  map[string]uint32{"next": compiler.NameHash("next")},
	}
	p, err := compiler.Compile("scene", src, env)
	require.NoError(t, err)
	data, err := p.MarshalBinary()
	require.NoError(t, err)

	var out bytes.Buffer
	m := vm.New(&out, globals)
	m.MaxSteps = 10000
	m.Register("custom_add", 2, func(_ *vm.Machine, args []int32) (int32, error) {
		return args[0] + args[1], nil
	})
	m.Register("custom_sub", 2, func(_ *vm.Machine, args []int32) (int32, error) {
		return args[0] - args[1], nil
	})
	m.Register("player_name", 0, func(m *vm.Machine, _ []int32) (int32, error) {
		return m.InternString("Ada"), nil
	})
	require.NoError(t, m.Load(data))
	return m, &out
}

func run(t *testing.T, src string) string {
	t.Helper()
	m, out := load(t, src, nil)
	_, err := m.Run()
	require.NoError(t, err)
	return out.String()
}

func TestRunValueScenario(t *testing.T) {
	assert.Equal(t, "Value: 5\n", run(t, `INT x = 2; x = x + 3; "Value: %x";`))
}

func TestRunIfElse(t *testing.T) {
	out := run(t, `IF (1 < 2) { "yes"; } ELSE { "no"; }`)
	assert.Equal(t, "yes\n", out)
	assert.NotContains(t, out, "no")
}

func TestRunElifChain(t *testing.T) {
	src := `x = custom_add(%d, 0);
IF x == 1 { "one"; } ELIF x == 2 { "two"; } ELIF x == 3 { "three"; } ELSE { "many"; }`
	for n, want := range map[string]string{"1": "one\n", "2": "two\n", "3": "three\n", "9": "many\n"} {
		assert.Equal(t, want, run(t, strings.Replace(src, "%d", n, 1)), n)
	}
}

func TestRunOperators(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"custom_sub(10, 3)", "7"},
		{"10 - custom_add(3, 0)", "7"},
		{"custom_add(7, 0) / 2", "3"},
		{"-custom_add(4, 0)", "-4"},
		{"!custom_add(0, 0)", "1"},
		{"custom_add(2, 0) * 3 + 1", "7"},
		{"custom_add(2, 0) < 3 AND custom_add(0, 0) OR 0", "0"},
		{"custom_add(5, 0) >= 5", "1"},
		{"custom_add(5, 0) != 5", "0"},
	}
	for _, tc := range tests {
		out := run(t, "r = "+tc.expr+`; "%r";`)
		assert.Equal(t, tc.want+"\n", out, tc.expr)
	}
}

func TestRunStringPointerField(t *testing.T) {
	assert.Equal(t, "Hello Ada!\n", run(t, `"Hello %(player_name())!";`))
}

func TestRunOptions(t *testing.T) {
	m, out := load(t, `"Pick one"; "Left" = { "went left"; } "Right" = { "went right"; [[next]]; }`, nil)

	res, err := m.Run()
	require.NoError(t, err)
	assert.Equal(t, "Pick one\n", out.String())
	require.Equal(t, []int{0, 1}, res.Options)
	assert.False(t, res.Switched)

	text, err := m.OptionText(1)
	require.NoError(t, err)
	assert.Equal(t, "Right", text)
	assert.Equal(t, "Pick one\n", out.String(), "option text is not printed")

	out.Reset()
	res, err = m.Choose(1)
	require.NoError(t, err)
	assert.Equal(t, "went right\n", out.String())
	assert.True(t, res.Switched)
	assert.Equal(t, compiler.NameHash("next"), res.Scene)

	_, err = m.Choose(2)
	assert.Error(t, err)
}

func TestRunConditionalOption(t *testing.T) {
	m, _ := load(t, `IF custom_add(0, 0) { "Hidden" = { } } "Shown" = { }`, nil)
	res, err := m.Run()
	require.NoError(t, err)
	require.Len(t, res.Options, 1)
	text, err := m.OptionText(res.Options[0])
	require.NoError(t, err)
	assert.Equal(t, "Shown", text)
}

func TestRunGlobals(t *testing.T) {
	src := `GLOBAL gold = 0; gold = gold + 5; "%gold";`
	globals := []int32{10}
	m, out := load(t, src, globals)
	_, err := m.Run()
	require.NoError(t, err)
	assert.Equal(t, "15\n", out.String())
	assert.Equal(t, int32(15), globals[0])
}

func TestRunStoreIsPersisted(t *testing.T) {
	m, _ := load(t, `STORE visits = 1; visits = visits + 1; "%visits";`, nil)
	_, err := m.Run()
	require.NoError(t, err)
	assert.Equal(t, []int32{2}, m.Persisted())
}

func TestRestorePersisted(t *testing.T) {
	m, out := load(t, `STORE visits = 1; visits = visits + 1; "%visits";`, nil)
	require.NoError(t, m.Restore([]int32{41}))
	_, err := m.Run()
	require.NoError(t, err)
	assert.Equal(t, "42\n", out.String())
	assert.Equal(t, []int32{42}, m.Persisted())

	assert.Error(t, m.Restore(nil))
	assert.Error(t, vm.New(out, nil).Restore(nil))
}

func TestRunFaults(t *testing.T) {
	m, _ := load(t, `r = 1 / custom_add(0, 0); "%r";`, nil)
	_, err := m.Run()
	var re *vm.RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, bytecode.OpDiv, re.Op)
}

func TestRunMissingNative(t *testing.T) {
	env := &compiler.Env{Natives: natives()}
	p, err := compiler.Compile("scene", "custom_add(1, 2);", env)
	require.NoError(t, err)
	data, err := p.MarshalBinary()
	require.NoError(t, err)

	m := vm.New(&bytes.Buffer{}, nil)
	require.NoError(t, m.Load(data))
	_, err = m.Run()
	assert.Error(t, err)
}

func TestRunRejectsUndersizedStack(t *testing.T) {
	// a header that understates the stack depth must fault, not grow
	img := &bytecode.Image{
		Header: bytecode.Header{MaxStack: 1},
		Code: []bytecode.Instruction{
			{Op: bytecode.OpPush, Literal: 1},
			{Op: bytecode.OpPush, Literal: 2},
			{Op: bytecode.OpAdd},
			{Op: bytecode.OpPop},
			{Op: bytecode.OpEOX},
		},
	}
	data, err := img.MarshalBinary()
	require.NoError(t, err)

	m := vm.New(&bytes.Buffer{}, nil)
	require.NoError(t, m.Load(data))
	_, err = m.Run()
	assert.ErrorContains(t, err, "stack overflow")
}
