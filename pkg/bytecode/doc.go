// Package bytecode defines the scene image format executed by the narrative
// virtual machine.
//
// A scene image is a flat little-endian byte array that a runtime without
// dynamic allocation can use in place:
//
//   - Header: one 64-bit word packing the option count (16 bits), the count
//     of persisted INT variables (16 bits), the byte offset of the
//     instruction section (24 bits) and the maximum stack depth (8 bits).
//
//   - Options table: one 32-bit word per choice, display string PC in the
//     high half and choice body PC in the low half.
//
//   - Variables: INT fields as int32, STRING fields as a uint32 length
//     (code units + 1) followed by NUL-terminated UTF-16LE code units.
//     Instructions address them by byte offset from the image start.
//
//   - Instructions: starting at a 4-byte aligned offset, five bytes each,
//     the opcode stored as Opcode-1 followed by an int32 literal.
//
// Every packed field is range-checked when encoded. A value that does not
// fit its bit budget produces an *OverflowError rather than wrapping.
package bytecode
