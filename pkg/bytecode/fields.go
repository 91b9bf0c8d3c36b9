package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/text/encoding/unicode"
)

// Field widths of the scene image format.
const (
	HeaderSize      = 8 // one 64-bit word
	OptionSize      = 4 // one 32-bit word per option
	IntSize         = 4
	InstructionSize = 5 // opcode byte + int32 literal
	CodeAlignment   = 4

	optionCountBits  = 16
	persistedIntBits = 16
	codeOffsetBits   = 24
	maxStackBits     = 8
	optionPCBits     = 16
	stringLengthBits = 32
	literalBits      = 32
)

// OverflowError reports a value that does not fit its field. Every packed
// field is checked before encoding; nothing wraps silently.
type OverflowError struct {
	Field string
	Value int64
	Bits  int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%s %d does not fit in %d bits", e.Field, e.Value, e.Bits)
}

func checkUnsigned(field string, v int64, bits int) error {
	if v < 0 || v > int64(1)<<bits-1 {
		return &OverflowError{Field: field, Value: v, Bits: bits}
	}
	return nil
}

func checkSigned(field string, v int64, bits int) error {
	lo, hi := -(int64(1) << (bits - 1)), int64(1)<<(bits-1)-1
	if v < lo || v > hi {
		return &OverflowError{Field: field, Value: v, Bits: bits}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Header
// ---------------------------------------------------------------------------

// Header is the first word of a scene image.
type Header struct {
	Options       int // bits 63-48
	PersistedInts int // bits 47-32
	CodeOffset    int // bits 31-8, byte offset of the instruction section
	MaxStack      int // bits 7-0
}

// Pack range-checks and packs the header into one word.
func (h Header) Pack() (uint64, error) {
	checks := []struct {
		name string
		v    int
		bits int
	}{
		{"option count", h.Options, optionCountBits},
		{"persisted int count", h.PersistedInts, persistedIntBits},
		{"instruction offset", h.CodeOffset, codeOffsetBits},
		{"max stack", h.MaxStack, maxStackBits},
	}
	for _, c := range checks {
		if err := checkUnsigned(c.name, int64(c.v), c.bits); err != nil {
			return 0, err
		}
	}
	return uint64(h.Options)<<48 | uint64(h.PersistedInts)<<32 |
		uint64(h.CodeOffset)<<8 | uint64(h.MaxStack), nil
}

// UnpackHeader splits a header word.
func UnpackHeader(w uint64) Header {
	return Header{
		Options:       int(w >> 48 & 0xFFFF),
		PersistedInts: int(w >> 32 & 0xFFFF),
		CodeOffset:    int(w >> 8 & 0xFFFFFF),
		MaxStack:      int(w & 0xFF),
	}
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Option is an entry of the options table.
type Option struct {
	StringPC int // PC of the display compound string
	BodyPC   int // PC of the choice body
}

// Pack range-checks and packs the option into one word.
func (o Option) Pack() (uint32, error) {
	if err := checkUnsigned("option string pc", int64(o.StringPC), optionPCBits); err != nil {
		return 0, err
	}
	if err := checkUnsigned("option body pc", int64(o.BodyPC), optionPCBits); err != nil {
		return 0, err
	}
	return uint32(o.StringPC)<<16 | uint32(o.BodyPC), nil
}

// UnpackOption splits an option word.
func UnpackOption(w uint32) Option {
	return Option{StringPC: int(w >> 16), BodyPC: int(w & 0xFFFF)}
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// Instruction is an opcode with its literal operand.
type Instruction struct {
	Op      Opcode
	Literal int32
}

// NewInstruction builds an instruction, checking the literal fits 32 bits.
func NewInstruction(op Opcode, literal int64) (Instruction, error) {
	if !op.Valid() {
		return Instruction{}, fmt.Errorf("invalid opcode %d", op)
	}
	if err := checkSigned(op.String()+" literal", literal, literalBits); err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: op, Literal: int32(literal)}, nil
}

func (in Instruction) String() string {
	if GetOpcodeInfo(in.Op).HasLiteral {
		return fmt.Sprintf("%s %d", in.Op, in.Literal)
	}
	return in.Op.String()
}

func (in Instruction) put(b []byte) {
	b[0] = byte(in.Op) - 1
	binary.LittleEndian.PutUint32(b[1:], uint32(in.Literal))
}

func readInstruction(b []byte) (Instruction, error) {
	op := Opcode(b[0] + 1)
	if !op.Valid() {
		return Instruction{}, fmt.Errorf("invalid opcode byte 0x%02X", b[0])
	}
	return Instruction{Op: op, Literal: int32(binary.LittleEndian.Uint32(b[1:]))}, nil
}

// ---------------------------------------------------------------------------
// Variable fields
// ---------------------------------------------------------------------------

// Field is a variable stored in the data section of a scene image.
type Field interface {
	Size() int
	encode() ([]byte, error)
}

// IntField is a 32-bit signed INT variable.
type IntField int64

// Size returns the encoded size in bytes.
func (f IntField) Size() int { return IntSize }

func (f IntField) encode() ([]byte, error) {
	if err := checkSigned("INT value", int64(f), literalBits); err != nil {
		return nil, err
	}
	b := make([]byte, IntSize)
	binary.LittleEndian.PutUint32(b, uint32(int32(f)))
	return b, nil
}

// StringField is a STRING variable: a 32-bit length (code units + 1)
// followed by NUL-terminated UTF-16LE code units.
type StringField string

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Size returns the encoded size in bytes.
func (f StringField) Size() int {
	units, err := f.units()
	if err != nil {
		return 4 + 2*(len(f)+1)
	}
	return 4 + len(units) + 2
}

func (f StringField) units() ([]byte, error) {
	return utf16le.NewEncoder().Bytes([]byte(f))
}

func (f StringField) encode() ([]byte, error) {
	units, err := f.units()
	if err != nil {
		return nil, fmt.Errorf("encode string %q: %w", string(f), err)
	}
	length := int64(len(units)/2 + 1)
	if err := checkUnsigned("string length", length, stringLengthBits); err != nil {
		return nil, err
	}
	b := make([]byte, 4+len(units)+2)
	binary.LittleEndian.PutUint32(b, uint32(length))
	copy(b[4:], units)
	return b, nil
}

// decodeString reads a STRING field at the start of b.
func decodeString(b []byte) (string, error) {
	if len(b) < 4 {
		return "", fmt.Errorf("string field truncated")
	}
	n := binary.LittleEndian.Uint32(b)
	if n == 0 || uint64(n) > math.MaxInt32 || 4+2*int(n) > len(b) {
		return "", fmt.Errorf("string field length %d out of bounds", n)
	}
	units := b[4 : 4+2*(int(n)-1)]
	s, err := utf16le.NewDecoder().Bytes(units)
	if err != nil {
		return "", fmt.Errorf("decode string: %w", err)
	}
	return string(s), nil
}

// Align rounds off up to the instruction section alignment.
func Align(off int) int {
	return (off + CodeAlignment - 1) / CodeAlignment * CodeAlignment
}

// MarshalGlobals encodes the globals file: one int32 per global in index
// order.
func MarshalGlobals(values []int64) ([]byte, error) {
	buf := make([]byte, 0, IntSize*len(values))
	for _, v := range values {
		b, err := IntField(v).encode()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

// UnmarshalGlobals decodes a globals file.
func UnmarshalGlobals(data []byte) ([]int32, error) {
	if len(data)%IntSize != 0 {
		return nil, fmt.Errorf("globals file of %d bytes is not a whole number of INTs", len(data))
	}
	out := make([]int32, len(data)/IntSize)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(data[i*IntSize:]))
	}
	return out, nil
}
