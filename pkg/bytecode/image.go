package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Image is a compiled scene laid out as the VM loads it:
//
//	header | options table | variable fields | padding | instructions
//
// All words are little-endian.
type Image struct {
	Header  Header
	Options []Option
	Fields  []Field // encode only; decoded images keep the raw bytes instead
	Code    []Instruction

	raw []byte
}

// DataOffset returns the byte offset of the first variable field.
func DataOffset(options int) int {
	return HeaderSize + OptionSize*options
}

// Layout computes the byte offset of every field and the instruction
// section offset for an image with the given option count.
func Layout(options int, fields []Field) (offsets []int, codeOffset int) {
	off := DataOffset(options)
	offsets = make([]int, len(fields))
	for i, f := range fields {
		offsets[i] = off
		off += f.Size()
	}
	return offsets, Align(off)
}

// MarshalBinary encodes the image. Header.Options and Header.CodeOffset
// are derived from the tables; every packed field is range-checked and the
// first overflow is returned as an *OverflowError.
func (img *Image) MarshalBinary() ([]byte, error) {
	_, codeOffset := Layout(len(img.Options), img.Fields)
	h := img.Header
	h.Options = len(img.Options)
	h.CodeOffset = codeOffset

	word, err := h.Pack()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, codeOffset+InstructionSize*len(img.Code))
	binary.LittleEndian.PutUint64(buf, word)

	off := HeaderSize
	for _, o := range img.Options {
		w, err := o.Pack()
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(buf[off:], w)
		off += OptionSize
	}
	for _, f := range img.Fields {
		b, err := f.encode()
		if err != nil {
			return nil, err
		}
		off += copy(buf[off:], b)
	}

	off = codeOffset
	for _, in := range img.Code {
		if !in.Op.Valid() {
			return nil, fmt.Errorf("invalid opcode %d at pc %d", in.Op, (off-codeOffset)/InstructionSize)
		}
		in.put(buf[off:])
		off += InstructionSize
	}
	return buf, nil
}

// Decode parses a scene image. The variable section is kept as raw bytes
// and read with IntAt and StringAt.
func Decode(data []byte) (*Image, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("image too short: %d bytes", len(data))
	}
	img := &Image{
		Header: UnpackHeader(binary.LittleEndian.Uint64(data)),
		raw:    append([]byte(nil), data...),
	}
	h := img.Header
	if DataOffset(h.Options) > h.CodeOffset || h.CodeOffset > len(data) {
		return nil, fmt.Errorf("instruction offset %d out of bounds", h.CodeOffset)
	}
	if (len(data)-h.CodeOffset)%InstructionSize != 0 {
		return nil, fmt.Errorf("instruction section of %d bytes is not a whole number of instructions", len(data)-h.CodeOffset)
	}

	off := HeaderSize
	for i := 0; i < h.Options; i++ {
		img.Options = append(img.Options, UnpackOption(binary.LittleEndian.Uint32(data[off:])))
		off += OptionSize
	}
	for off = h.CodeOffset; off < len(data); off += InstructionSize {
		in, err := readInstruction(data[off:])
		if err != nil {
			return nil, fmt.Errorf("pc %d: %w", len(img.Code), err)
		}
		img.Code = append(img.Code, in)
	}
	return img, nil
}

// Bytes returns the encoded form of a decoded image.
func (img *Image) Bytes() []byte {
	return img.raw
}

// IntAt reads the INT field at byte offset off.
func (img *Image) IntAt(off int) (int32, error) {
	if off < DataOffset(img.Header.Options) || off+IntSize > img.Header.CodeOffset {
		return 0, fmt.Errorf("INT offset %d outside the data section", off)
	}
	return int32(binary.LittleEndian.Uint32(img.raw[off:])), nil
}

// StringAt reads the STRING field at byte offset off.
func (img *Image) StringAt(off int) (string, error) {
	if off < DataOffset(img.Header.Options) || off >= img.Header.CodeOffset {
		return "", fmt.Errorf("STRING offset %d outside the data section", off)
	}
	return decodeString(img.raw[off:img.Header.CodeOffset])
}
