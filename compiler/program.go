package compiler

import (
	"errors"
	"fmt"
	"sort"

	"github.com/chazu/narrative/pkg/bytecode"
)

// Slot is a variable placed in the data section of a scene image.
type Slot struct {
	Var    *Variable
	Offset int
	Field  bytecode.Field
}

// Program is a fully generated unit: every reference is resolved and the
// stack has been measured. It encodes to a scene image.
type Program struct {
	Unit          string
	Code          []bytecode.Instruction
	Options       []*Option
	Slots         []Slot
	PersistedInts int
	MaxStack      int
	CodeOffset    int
	Strings       map[Identifier]int // compound string PCs
	Calls         []uint32           // called native hashes, ascending
	Symbols       *SymbolTable

	res *Resolved
}

// Slot returns the data slot of id.
func (p *Program) Slot(id Identifier) (Slot, bool) {
	for _, s := range p.Slots {
		if s.Var.Name == id {
			return s, true
		}
	}
	return Slot{}, false
}

// Image returns the scene image for p.
func (p *Program) Image() *bytecode.Image {
	img := &bytecode.Image{
		Header: bytecode.Header{PersistedInts: p.PersistedInts, MaxStack: p.MaxStack},
		Code:   p.Code,
	}
	for _, o := range p.Options {
		img.Options = append(img.Options, bytecode.Option{StringPC: o.StringPC, BodyPC: o.BodyPC})
	}
	for _, s := range p.Slots {
		img.Fields = append(img.Fields, s.Field)
	}
	return img
}

// MarshalBinary encodes the scene image. A field that does not fit its bit
// budget is reported as a SerializationError.
func (p *Program) MarshalBinary() ([]byte, error) {
	b, err := p.Image().MarshalBinary()
	if err != nil {
		e := serializationError(Position{}, err)
		e.File = p.Unit
		return nil, e
	}
	return b, nil
}

// Listing returns the disassembly of p annotated with variable, string,
// native and scene names.
func (p *Program) Listing() string {
	byOffset := make(map[int]Identifier, len(p.Slots))
	for _, s := range p.Slots {
		byOffset[s.Offset] = s.Var.Name
	}
	byPC := make(map[int]Identifier, len(p.Strings))
	for id, pc := range p.Strings {
		byPC[pc] = id
	}
	scenes := make(map[uint32]string, len(p.res.Scenes))
	for name, h := range p.res.Scenes {
		scenes[h] = name
	}

	return p.Image().DisassembleWith(p.Unit, func(pc int, in bytecode.Instruction) string {
		switch in.Op {
		case bytecode.OpRead, bytecode.OpWrite, bytecode.OpPrintSL:
			if id, ok := byOffset[int(in.Literal)]; ok {
				return displayName(id)
			}
		case bytecode.OpReadG, bytecode.OpWriteG:
			vars := p.res.Globals.Variables()
			if i := int(in.Literal); i >= 0 && i < len(vars) {
				return "GLOBAL " + string(vars[i].Name)
			}
		case bytecode.OpPrint:
			if id, ok := byPC[int(in.Literal)]; ok {
				return displayName(id)
			}
		case bytecode.OpDisplay:
			if i := int(in.Literal); i >= 0 && i < len(p.Options) {
				return displayName(p.Options[i].ID)
			}
		case bytecode.OpCall:
			if proto, ok := p.res.Natives.ByHash(uint32(in.Literal)); ok {
				return proto.String()
			}
		case bytecode.OpSwitch:
			if name, ok := scenes[uint32(in.Literal)]; ok {
				return "[[" + name + "]]"
			}
		}
		return ""
	})
}

func displayName(id Identifier) string {
	if id.Anonymous() {
		return fmt.Sprintf("%q", string(id[1:]))
	}
	return string(id)
}

func serializationError(pos Position, err error) *Error {
	var oe *bytecode.OverflowError
	if errors.As(err, &oe) {
		return &Error{Kind: SerializationError, Pos: pos, Msg: oe.Error(), Err: err}
	}
	return &Error{Kind: InternalError, Pos: pos, Msg: err.Error(), Err: err}
}

// ---------------------------------------------------------------------------
// Finishing pass
// ---------------------------------------------------------------------------

// finish assigns option indices and variable offsets, then replaces every
// reference with its literal.
func (g *Generator) finish() (*Program, error) {
	for i, opt := range g.options {
		pc, ok := g.strings[opt.ID]
		if !ok {
			return nil, errorAt(InternalError, opt.Pos, "option string %s was not generated", displayName(opt.ID))
		}
		opt.Index = i
		opt.StringPC = pc
	}

	slots, persisted, err := g.layout()
	if err != nil {
		return nil, err
	}
	fields := make([]bytecode.Field, len(slots))
	for i, s := range slots {
		fields[i] = s.Field
	}
	offsets, codeOffset := bytecode.Layout(len(g.options), fields)
	byName := make(map[Identifier]int, len(slots))
	for i := range slots {
		slots[i].Offset = offsets[i]
		byName[slots[i].Var.Name] = offsets[i]
	}

	code := make([]bytecode.Instruction, len(g.code))
	for pc, p := range g.code {
		lit := p.lit
		switch p.ref {
		case refVariable:
			off, ok := byName[p.name]
			if !ok {
				return nil, errorAt(InternalError, p.pos, "variable %s has no slot", displayName(p.name))
			}
			lit = int64(off)
		case refString:
			spc, ok := g.strings[p.name]
			if !ok {
				return nil, errorAt(InternalError, p.pos, "string %s was not generated", displayName(p.name))
			}
			lit = int64(spc)
		case refOption:
			lit = int64(p.option.Index)
		case refLabel:
			target := g.labels[p.label]
			if target < 0 {
				return nil, errorAt(InternalError, p.pos, "jump at pc %d has no target", pc)
			}
			lit = int64(target - 1)
		}
		in, err := bytecode.NewInstruction(p.op, lit)
		if err != nil {
			return nil, serializationError(p.pos, err)
		}
		code[pc] = in
	}

	maxStack, err := measureStack(code, g.res.Natives)
	if err != nil {
		return nil, err
	}

	calls := make([]uint32, 0, len(g.calls))
	for h := range g.calls {
		calls = append(calls, h)
	}
	sort.Slice(calls, func(i, j int) bool { return calls[i] < calls[j] })

	return &Program{
		Unit:          g.res.Unit,
		Code:          code,
		Options:       g.options,
		Slots:         slots,
		PersistedInts: persisted,
		MaxStack:      maxStack,
		CodeOffset:    codeOffset,
		Strings:       g.strings,
		Calls:         calls,
		Symbols:       g.res.Symbols,
		res:           g.res,
	}, nil
}

// layout orders the referenced local variables INT first, then FLOAT, then
// STRING, keeping symbol table order within each group. STORE variables
// sort before temporaries, so the persisted INTs lead the data section.
func (g *Generator) layout() ([]Slot, int, error) {
	var slots []Slot
	persisted := 0
	vars := g.res.Symbols.Variables()

	for _, group := range []ValueType{TypeInt, TypeFloat, TypeString} {
		for _, v := range vars {
			if v.Scope.Global() || !g.used[v.Name] || v.Value.Type != group {
				continue
			}
			switch group {
			case TypeInt:
				var init int64
				if v.Scope == ScopeStore || g.inits[v.Name] {
					init = v.Value.Int
				}
				slots = append(slots, Slot{Var: v, Field: bytecode.IntField(init)})
				if v.Scope == ScopeStore {
					persisted++
				}
			case TypeFloat:
				return nil, 0, errorAt(UnsupportedError, v.Site, "FLOAT variable %s cannot be laid out", v.Name)
			case TypeString:
				slots = append(slots, Slot{Var: v, Field: bytecode.StringField(v.Value.Str)})
			}
		}
	}
	return slots, persisted, nil
}
