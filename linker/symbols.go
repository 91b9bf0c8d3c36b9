package linker

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/narrative/compiler"
	"github.com/chazu/narrative/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Symbol sidecar: debugging names for one scene image
// ---------------------------------------------------------------------------

// cborEncMode uses canonical options so equal symbol files encode to
// equal bytes.
var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("linker: cbor enc mode: %v", err))
	}
}

// SymbolFile is the content of a %08d.sym file.
type SymbolFile struct {
	BuildID string         `cbor:"1,keyasint"`
	Scene   string         `cbor:"2,keyasint"`
	Hash    uint32         `cbor:"3,keyasint"`
	Unit    string         `cbor:"4,keyasint"`
	Vars    []SymbolVar    `cbor:"5,keyasint,omitempty"`
	Options []SymbolOption `cbor:"6,keyasint,omitempty"`
	Strings []SymbolString `cbor:"7,keyasint,omitempty"`
	Natives []SymbolNative `cbor:"8,keyasint,omitempty"`
	Globals []SymbolGlobal `cbor:"9,keyasint,omitempty"`
	Scenes  []SymbolScene  `cbor:"10,keyasint,omitempty"`
}

// SymbolVar is a variable in the data section.
type SymbolVar struct {
	Name   string `cbor:"1,keyasint"`
	Scope  string `cbor:"2,keyasint"`
	Type   string `cbor:"3,keyasint"`
	Offset int    `cbor:"4,keyasint"`
}

// SymbolOption is an entry of the options table.
type SymbolOption struct {
	Text     string `cbor:"1,keyasint"`
	StringPC int    `cbor:"2,keyasint"`
	BodyPC   int    `cbor:"3,keyasint"`
}

// SymbolString is a compound string sub-sequence.
type SymbolString struct {
	Text string `cbor:"1,keyasint"`
	PC   int    `cbor:"2,keyasint"`
}

// SymbolNative is a native the scene calls.
type SymbolNative struct {
	Prototype string `cbor:"1,keyasint"`
	Hash      uint32 `cbor:"2,keyasint"`
}

// SymbolGlobal is an entry of the globals file.
type SymbolGlobal struct {
	Name  string `cbor:"1,keyasint"`
	Index int    `cbor:"2,keyasint"`
	Value int64  `cbor:"3,keyasint"`
}

// SymbolScene is a SWITCH target.
type SymbolScene struct {
	Name string `cbor:"1,keyasint"`
	Hash uint32 `cbor:"2,keyasint"`
	File string `cbor:"3,keyasint"`
}

func (b *Build) symbolsFor(u *Unit) *SymbolFile {
	p := u.Program
	sf := &SymbolFile{
		BuildID: b.ID.String(),
		Scene:   u.Source.Name,
		Hash:    u.Hash,
		Unit:    u.Source.unit(),
	}
	for _, s := range p.Slots {
		sf.Vars = append(sf.Vars, SymbolVar{
			Name:   displayName(s.Var.Name),
			Scope:  s.Var.Scope.String(),
			Type:   s.Var.Value.Type.String(),
			Offset: s.Offset,
		})
	}
	for _, o := range p.Options {
		sf.Options = append(sf.Options, SymbolOption{Text: displayName(o.ID), StringPC: o.StringPC, BodyPC: o.BodyPC})
	}
	for id, pc := range p.Strings {
		sf.Strings = append(sf.Strings, SymbolString{Text: displayName(id), PC: pc})
	}
	sort.Slice(sf.Strings, func(i, j int) bool { return sf.Strings[i].PC < sf.Strings[j].PC })
	for _, h := range p.Calls {
		if proto, ok := b.Natives.ByHash(h); ok {
			sf.Natives = append(sf.Natives, SymbolNative{Prototype: proto.String(), Hash: h})
		}
	}
	for _, v := range b.Globals.Variables() {
		sf.Globals = append(sf.Globals, SymbolGlobal{Name: string(v.Name), Index: v.Index, Value: v.Value.Int})
	}
	for _, other := range b.Units {
		sf.Scenes = append(sf.Scenes, SymbolScene{Name: other.Source.Name, Hash: other.Hash, File: other.FileName()})
	}
	return sf
}

func displayName(id compiler.Identifier) string {
	if id.Anonymous() {
		return fmt.Sprintf("%q", string(id[1:]))
	}
	return string(id)
}

func marshalSymbols(sf *SymbolFile) ([]byte, error) {
	return cborEncMode.Marshal(sf)
}

// UnmarshalSymbols decodes a symbol file.
func UnmarshalSymbols(data []byte) (*SymbolFile, error) {
	var sf SymbolFile
	if err := cbor.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("decoding symbols: %w", err)
	}
	return &sf, nil
}

// Annotator returns a disassembly annotator naming the operands of the
// scene image sf describes.
func (sf *SymbolFile) Annotator() bytecode.Annotator {
	vars := make(map[int]string, len(sf.Vars))
	for _, v := range sf.Vars {
		vars[v.Offset] = v.Name
	}
	strs := make(map[int]string, len(sf.Strings))
	for _, s := range sf.Strings {
		strs[s.PC] = s.Text
	}
	natives := make(map[uint32]string, len(sf.Natives))
	for _, n := range sf.Natives {
		natives[n.Hash] = n.Prototype
	}
	scenes := make(map[uint32]string, len(sf.Scenes))
	for _, s := range sf.Scenes {
		scenes[s.Hash] = "[[" + s.Name + "]] " + s.File
	}

	return func(_ int, in bytecode.Instruction) string {
		switch in.Op {
		case bytecode.OpRead, bytecode.OpWrite, bytecode.OpPrintSL:
			return vars[int(in.Literal)]
		case bytecode.OpReadG, bytecode.OpWriteG:
			if i := int(in.Literal); i >= 0 && i < len(sf.Globals) {
				return "GLOBAL " + sf.Globals[i].Name
			}
		case bytecode.OpPrint:
			return strs[int(in.Literal)]
		case bytecode.OpDisplay:
			if i := int(in.Literal); i >= 0 && i < len(sf.Options) {
				return sf.Options[i].Text
			}
		case bytecode.OpCall:
			return natives[uint32(in.Literal)]
		case bytecode.OpSwitch:
			return scenes[uint32(in.Literal)]
		}
		return ""
	}
}
