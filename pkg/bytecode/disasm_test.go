package bytecode

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisassembleEmpty(t *testing.T) {
	out := (&Image{}).Disassemble()
	assert.Contains(t, out, "; Options: 0")
	assert.Contains(t, out, "; Code:\n")
	assert.NotContains(t, out, "===")
}

func TestDisassembleDecoded(t *testing.T) {
	data, err := sampleImage().MarshalBinary()
	require.NoError(t, err)
	img, err := Decode(data)
	require.NoError(t, err)

	out := img.DisassembleWithName("intro")
	assert.True(t, strings.HasPrefix(out, "; === intro ===\n"), out)
	assert.Contains(t, out, "Persisted INTs: 1")
	assert.Contains(t, out, "Code offset: 0x000020")
	assert.Contains(t, out, "Max stack: 2")
	assert.Contains(t, out, ";   [  0] string 0003  body 0005\n")
	assert.Contains(t, out, "0000  PUSH     1\n")
	assert.Contains(t, out, "0001  CJUMP    3 -> 0004\n")
	assert.Contains(t, out, "0003  EOX\n")
}

func TestDisassembleHashes(t *testing.T) {
	img := &Image{Code: []Instruction{
		{Op: OpCall, Literal: 0xBEEF},
		{Op: OpSwitch, Literal: -1},
	}}
	out := img.Disassemble()
	assert.Contains(t, out, "CALL     0x00beef")
	assert.Contains(t, out, "SWITCH   0xffffffff")
}

func TestDisassembleWithAnnotations(t *testing.T) {
	img := &Image{Code: []Instruction{
		{Op: OpPrint, Literal: 2},
		{Op: OpEOX},
	}}
	out := img.DisassembleWith("", func(pc int, in Instruction) string {
		if in.Op == OpPrint {
			return "greeting"
		}
		return ""
	})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, fmt.Sprintf("0000  %-22s ; greeting", "PRINT    2"), lines[len(lines)-2])
	assert.Equal(t, "0001  EOX", lines[len(lines)-1])
}
