package bytecode

import "fmt"

// Opcode represents a bytecode instruction. Values start at 1; the binary
// form stores Opcode-1 in one byte.
type Opcode byte

const (
	// ========================================================================
	// Stack
	// ========================================================================

	OpPush Opcode = iota + 1 // Push literal
	OpPop                    // Discard top of stack

	// ========================================================================
	// Output
	// ========================================================================

	OpPrint   // Run the compound string at PC literal
	OpPrintI  // Pop INT and append it to the line
	OpPrintS  // Pop string pointer and append it to the line
	OpPrintSL // Append the stored string at byte offset literal
	OpEndl    // End of compound string line
	OpDisplay // Make option literal visible

	// ========================================================================
	// Variables
	// ========================================================================

	OpRead   // Push INT at byte offset literal
	OpWrite  // Pop INT into byte offset literal
	OpReadG  // Push global at index literal
	OpWriteG // Pop into global at index literal

	// ========================================================================
	// Control flow
	// ========================================================================

	OpIJump // PC = literal, then advance
	OpCJump // Pop; if zero, PC = literal, then advance
	OpCall  // Call native with name hash literal

	// ========================================================================
	// Arithmetic and logic. Binary ops pop v1 (left) then v2 (right).
	// ========================================================================

	OpNeg
	OpNot
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr

	// ========================================================================
	// Execution
	// ========================================================================

	OpSwitch // Change to the scene with name hash literal
	OpEOX    // End of execution unit
)

// OpcodeInfo provides metadata about each opcode for listings and stack
// accounting.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // Values popped (-1 = depends on the callee)
	StackPush  int    // Values pushed
	HasLiteral bool   // Literal operand is meaningful
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpPush: {"PUSH", 0, 1, true},
	OpPop:  {"POP", 1, 0, false},

	OpPrint:   {"PRINT", 0, 0, true},
	OpPrintI:  {"PRINTI", 1, 0, false},
	OpPrintS:  {"PRINTS", 1, 0, false},
	OpPrintSL: {"PRINTSL", 0, 0, true},
	OpEndl:    {"ENDL", 0, 0, false},
	OpDisplay: {"DISPLAY", 0, 0, true},

	OpRead:   {"READ", 0, 1, true},
	OpWrite:  {"WRITE", 1, 0, true},
	OpReadG:  {"READG", 0, 1, true},
	OpWriteG: {"WRITEG", 1, 0, true},

	OpIJump: {"IJUMP", 0, 0, true},
	OpCJump: {"CJUMP", 1, 0, true},
	OpCall:  {"CALL", -1, 1, true},

	OpNeg: {"NEG", 1, 1, false},
	OpNot: {"NOT", 1, 1, false},
	OpAdd: {"ADD", 2, 1, false},
	OpSub: {"SUB", 2, 1, false},
	OpMul: {"MUL", 2, 1, false},
	OpDiv: {"DIV", 2, 1, false},
	OpEq:  {"EQ", 2, 1, false},
	OpNeq: {"NEQ", 2, 1, false},
	OpLt:  {"LT", 2, 1, false},
	OpLte: {"LTE", 2, 1, false},
	OpGt:  {"GT", 2, 1, false},
	OpGte: {"GTE", 2, 1, false},
	OpAnd: {"AND", 2, 1, false},
	OpOr:  {"OR", 2, 1, false},

	OpSwitch: {"SWITCH", 0, 0, true},
	OpEOX:    {"EOX", 0, 0, false},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns an OpcodeInfo named "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Valid reports whether op is part of the instruction set.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// StackDelta returns the net stack effect of op. CALL depends on the
// callee, so its pop count is supplied as argc.
func (op Opcode) StackDelta(argc int) int {
	info := GetOpcodeInfo(op)
	pop := info.StackPop
	if pop < 0 {
		pop = argc
	}
	return info.StackPush - pop
}

// IsJump reports whether the literal of op is a jump target.
func (op Opcode) IsJump() bool {
	return op == OpIJump || op == OpCJump
}

// IsBoundary reports whether op ends a statement sequence. The stack must
// be empty at every boundary.
func (op Opcode) IsBoundary() bool {
	return op == OpEndl || op == OpEOX
}

// OpcodeCount returns the size of the instruction set.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
