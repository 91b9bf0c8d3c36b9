package vm

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chazu/narrative/compiler"
	"github.com/chazu/narrative/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Natives
// ---------------------------------------------------------------------------

// Native is a host function callable with CALL. Arguments arrive in
// declaration order; STRING* values are handles from Machine.InternString.
type Native func(m *Machine, args []int32) (int32, error)

type native struct {
	arity int
	fn    Native
}

// ---------------------------------------------------------------------------
// Machine: executes one scene image at a time
// ---------------------------------------------------------------------------

// RuntimeError is a fault raised while executing a scene.
type RuntimeError struct {
	PC  int
	Op  bytecode.Opcode
	Msg string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("pc %04X (%s): %s", e.PC, e.Op, e.Msg)
}

// Result describes where execution stopped.
type Result struct {
	Options  []int  // indices of the options displayed, in display order
	Switched bool   // a SWITCH ended execution
	Scene    uint32 // target scene hash when Switched
}

// Machine is the reference interpreter. Its stack is sized from the image
// header, so a scene whose measured depth is wrong faults instead of
// growing the stack.
type Machine struct {
	Globals []int32
	Out     io.Writer

	natives map[uint32]native
	strs    []string

	img   *bytecode.Image
	data  []byte // writable copy of the image
	stack []int32
	sp    int
	shown []int
	pc    int
	op    bytecode.Opcode

	// MaxSteps bounds one Run or Choose; zero means no limit.
	MaxSteps int
}

// New creates a machine writing text to out. globals is the content of
// the globals file and is shared by every scene the machine loads.
func New(out io.Writer, globals []int32) *Machine {
	return &Machine{
		Globals: globals,
		Out:     out,
		natives: make(map[uint32]native),
		strs:    []string{""},
	}
}

// Register binds a native by name with the given parameter count.
func (m *Machine) Register(name string, arity int, fn Native) {
	m.natives[compiler.NameHash(name)] = native{arity: arity, fn: fn}
}

// InternString stores s and returns its STRING* handle.
func (m *Machine) InternString(s string) int32 {
	m.strs = append(m.strs, s)
	return int32(len(m.strs) - 1)
}

// String returns the string behind a STRING* handle.
func (m *Machine) String(h int32) (string, error) {
	if h < 0 || int(h) >= len(m.strs) {
		return "", fmt.Errorf("invalid string handle %d", h)
	}
	return m.strs[h], nil
}

// Load decodes a scene image and makes it current. Variables start from
// the values stored in the image.
func (m *Machine) Load(data []byte) error {
	img, err := bytecode.Decode(data)
	if err != nil {
		return err
	}
	m.img = img
	m.data = append([]byte(nil), img.Bytes()...)
	m.stack = make([]int32, img.Header.MaxStack)
	m.sp = 0
	return nil
}

// Image returns the current scene image.
func (m *Machine) Image() *bytecode.Image { return m.img }

// Run executes the main body of the current scene.
func (m *Machine) Run() (*Result, error) {
	return m.enter(0)
}

// Choose executes the body of option i of the current scene.
func (m *Machine) Choose(i int) (*Result, error) {
	if m.img == nil {
		return nil, fmt.Errorf("no scene loaded")
	}
	if i < 0 || i >= len(m.img.Options) {
		return nil, fmt.Errorf("option %d out of range (%d options)", i, len(m.img.Options))
	}
	return m.enter(m.img.Options[i].BodyPC)
}

// OptionText renders the display string of option i.
func (m *Machine) OptionText(i int) (text string, err error) {
	if m.img == nil || i < 0 || i >= len(m.img.Options) {
		return "", fmt.Errorf("option %d out of range", i)
	}
	var sb strings.Builder
	out := m.Out
	m.Out = &sb
	defer func() { m.Out = out }()
	if _, err := m.enter(m.img.Options[i].StringPC); err != nil {
		return "", err
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

// Persisted returns the current values of the persisted INT variables.
func (m *Machine) Persisted() []int32 {
	if m.img == nil {
		return nil
	}
	base := bytecode.DataOffset(len(m.img.Options))
	out := make([]int32, m.img.Header.PersistedInts)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(m.data[base+i*bytecode.IntSize:]))
	}
	return out
}

// Restore overwrites the persisted INT variables of the current scene with
// values saved by Persisted, typically before the scene was last left.
func (m *Machine) Restore(values []int32) error {
	if m.img == nil {
		return fmt.Errorf("no scene loaded")
	}
	if len(values) != m.img.Header.PersistedInts {
		return fmt.Errorf("scene has %d persisted INTs, got %d values", m.img.Header.PersistedInts, len(values))
	}
	base := bytecode.DataOffset(len(m.img.Options))
	for i, v := range values {
		binary.LittleEndian.PutUint32(m.data[base+i*bytecode.IntSize:], uint32(v))
	}
	return nil
}

// enter runs from pc until EOX, ENDL or SWITCH.
func (m *Machine) enter(pc int) (res *Result, err error) {
	if m.img == nil {
		return nil, fmt.Errorf("no scene loaded")
	}
	defer func() {
		if r := recover(); r != nil {
			re, ok := r.(*RuntimeError)
			if !ok {
				panic(r)
			}
			res, err = nil, re
		}
	}()
	m.shown = nil
	res = &Result{}
	m.exec(pc, res)
	res.Options = m.shown
	return res, nil
}

func (m *Machine) fault(format string, args ...interface{}) {
	panic(&RuntimeError{PC: m.pc, Op: m.op, Msg: fmt.Sprintf(format, args...)})
}

// ---------------------------------------------------------------------------
// Stack operations
// ---------------------------------------------------------------------------

func (m *Machine) push(v int32) {
	if m.sp >= len(m.stack) {
		m.fault("stack overflow: image declares a maximum depth of %d", len(m.stack))
	}
	m.stack[m.sp] = v
	m.sp++
}

func (m *Machine) pop() int32 {
	if m.sp <= 0 {
		m.fault("stack underflow")
	}
	m.sp--
	return m.stack[m.sp]
}

func (m *Machine) popN(n int) []int32 {
	if m.sp < n {
		m.fault("stack underflow")
	}
	args := make([]int32, n)
	// the first argument is on top
	for i := 0; i < n; i++ {
		args[i] = m.stack[m.sp-1-i]
	}
	m.sp -= n
	return args
}

// ---------------------------------------------------------------------------
// Memory
// ---------------------------------------------------------------------------

func (m *Machine) dataRange(off, size int) {
	if off < bytecode.DataOffset(len(m.img.Options)) || off+size > m.img.Header.CodeOffset {
		m.fault("offset %d outside the data section", off)
	}
}

func (m *Machine) readInt(off int) int32 {
	m.dataRange(off, bytecode.IntSize)
	return int32(binary.LittleEndian.Uint32(m.data[off:]))
}

func (m *Machine) writeInt(off int, v int32) {
	m.dataRange(off, bytecode.IntSize)
	binary.LittleEndian.PutUint32(m.data[off:], uint32(v))
}

func (m *Machine) global(i int32) *int32 {
	if i < 0 || int(i) >= len(m.Globals) {
		m.fault("global %d out of range (%d globals)", i, len(m.Globals))
	}
	return &m.Globals[i]
}

func (m *Machine) print(s string) {
	if _, err := io.WriteString(m.Out, s); err != nil {
		m.fault("write: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Interpreter loop
// ---------------------------------------------------------------------------

func (m *Machine) exec(pc int, res *Result) {
	code := m.img.Code
	steps := 0
	for {
		if pc < 0 || pc >= len(code) {
			m.pc, m.op = pc, 0
			m.fault("pc out of range")
		}
		if m.MaxSteps > 0 {
			if steps++; steps > m.MaxSteps {
				m.fault("step limit %d exceeded", m.MaxSteps)
			}
		}
		in := code[pc]
		m.pc, m.op = pc, in.Op

		switch in.Op {
		case bytecode.OpPush:
			m.push(in.Literal)

		case bytecode.OpPop:
			m.pop()

		// --- Text ---
		case bytecode.OpPrint:
			saved := m.pc
			m.exec(int(in.Literal), res)
			m.pc, m.op = saved, in.Op

		case bytecode.OpPrintI:
			m.print(strconv.Itoa(int(m.pop())))

		case bytecode.OpPrintS:
			s, err := m.String(m.pop())
			if err != nil {
				m.fault("%v", err)
			}
			m.print(s)

		case bytecode.OpPrintSL:
			off := int(in.Literal)
			m.dataRange(off, 4)
			s, err := m.img.StringAt(off)
			if err != nil {
				m.fault("%v", err)
			}
			m.print(s)

		case bytecode.OpEndl:
			m.print("\n")
			return

		case bytecode.OpDisplay:
			i := int(in.Literal)
			if i < 0 || i >= len(m.img.Options) {
				m.fault("option %d out of range", i)
			}
			m.shown = append(m.shown, i)

		// --- Variables ---
		case bytecode.OpRead:
			m.push(m.readInt(int(in.Literal)))

		case bytecode.OpWrite:
			m.writeInt(int(in.Literal), m.pop())

		case bytecode.OpReadG:
			m.push(*m.global(in.Literal))

		case bytecode.OpWriteG:
			v := m.pop()
			*m.global(in.Literal) = v

		// --- Control ---
		case bytecode.OpIJump:
			pc = int(in.Literal)

		case bytecode.OpCJump:
			if m.pop() == 0 {
				pc = int(in.Literal)
			}

		case bytecode.OpCall:
			h := uint32(in.Literal)
			n, ok := m.natives[h]
			if !ok {
				m.fault("no native with hash %#08x", h)
			}
			v, err := n.fn(m, m.popN(n.arity))
			if err != nil {
				m.fault("native %#08x: %v", h, err)
			}
			m.push(v)

		case bytecode.OpSwitch:
			res.Switched = true
			res.Scene = uint32(in.Literal)
			return

		case bytecode.OpEOX:
			return

		// --- Arithmetic and logic ---
		case bytecode.OpNeg:
			m.push(-m.pop())

		case bytecode.OpNot:
			m.push(boolInt(m.pop() == 0))

		default:
			// binary operators: the left operand is on top
			a := m.pop()
			b := m.pop()
			m.push(m.binary(in.Op, a, b))
		}
		pc++
	}
}

func (m *Machine) binary(op bytecode.Opcode, a, b int32) int32 {
	switch op {
	case bytecode.OpAdd:
		return a + b
	case bytecode.OpSub:
		return a - b
	case bytecode.OpMul:
		return a * b
	case bytecode.OpDiv:
		if b == 0 {
			m.fault("division by zero")
		}
		return a / b
	case bytecode.OpEq:
		return boolInt(a == b)
	case bytecode.OpNeq:
		return boolInt(a != b)
	case bytecode.OpLt:
		return boolInt(a < b)
	case bytecode.OpLte:
		return boolInt(a <= b)
	case bytecode.OpGt:
		return boolInt(a > b)
	case bytecode.OpGte:
		return boolInt(a >= b)
	case bytecode.OpAnd:
		return boolInt(a != 0 && b != 0)
	case bytecode.OpOr:
		return boolInt(a != 0 || b != 0)
	}
	m.fault("unknown opcode")
	return 0
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
