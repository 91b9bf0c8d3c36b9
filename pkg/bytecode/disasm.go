package bytecode

import (
	"fmt"
	"strings"
)

// Annotator returns a comment for an instruction, or "" for none.
type Annotator func(pc int, in Instruction) string

// Disassemble returns a human-readable listing for the image.
func (img *Image) Disassemble() string {
	return img.DisassembleWith("", nil)
}

// DisassembleWithName returns a listing with a name header.
func (img *Image) DisassembleWithName(name string) string {
	return img.DisassembleWith(name, nil)
}

// DisassembleWith returns a listing with a name header and per-instruction
// annotations.
func (img *Image) DisassembleWith(name string, annotate Annotator) string {
	var sb strings.Builder

	// Header
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	h := img.Header
	sb.WriteString(fmt.Sprintf("; Options: %d  Persisted INTs: %d  Code offset: 0x%06X  Max stack: %d\n",
		len(img.Options), h.PersistedInts, h.CodeOffset, h.MaxStack))
	sb.WriteString("\n")

	if len(img.Options) > 0 {
		sb.WriteString("; Options:\n")
		for i, o := range img.Options {
			sb.WriteString(fmt.Sprintf(";   [%3d] string %04X  body %04X\n", i, o.StringPC, o.BodyPC))
		}
		sb.WriteString("\n")
	}

	// Code section
	sb.WriteString("; Code:\n")
	for pc, in := range img.Code {
		line := formatInstruction(in)
		note := ""
		if annotate != nil {
			note = annotate(pc, in)
		}
		if note != "" {
			sb.WriteString(fmt.Sprintf("%04X  %-22s ; %s\n", pc, line, note))
		} else {
			sb.WriteString(fmt.Sprintf("%04X  %s\n", pc, line))
		}
	}
	return sb.String()
}

// formatInstruction renders one instruction. Jump literals hold the PC
// before the target, so the target itself is shown as well.
func formatInstruction(in Instruction) string {
	info := GetOpcodeInfo(in.Op)
	switch {
	case in.Op.IsJump():
		return fmt.Sprintf("%-8s %d -> %04X", info.Name, in.Literal, in.Literal+1)
	case in.Op == OpCall || in.Op == OpSwitch:
		return fmt.Sprintf("%-8s %#08x", info.Name, uint32(in.Literal))
	case info.HasLiteral:
		return fmt.Sprintf("%-8s %d", info.Name, in.Literal)
	default:
		return info.Name
	}
}
