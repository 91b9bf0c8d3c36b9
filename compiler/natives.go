package compiler

import (
	"fmt"
	"hash/fnv"
	"sort"
)

// NameHash is the 32-bit dispatch key for native function and scene
// names (FNV-1a).
func NameHash(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	return h.Sum32()
}

// FunctionPrototype describes a native function the scripts may call.
type FunctionPrototype struct {
	Name    Identifier
	Returns ValueType
	Params  []ValueType
	Hash    uint32
}

func (p *FunctionPrototype) String() string {
	s := fmt.Sprintf("%s %s(", p.Returns, p.Name)
	for i, t := range p.Params {
		if i > 0 {
			s += ", "
		}
		s += t.String()
	}
	return s + ")"
}

// Natives is the fixed table of callable native functions, keyed both by
// name and by name hash.
type Natives struct {
	byName map[Identifier]*FunctionPrototype
	byHash map[uint32]*FunctionPrototype
}

// NewNatives returns an empty table.
func NewNatives() *Natives {
	return &Natives{
		byName: make(map[Identifier]*FunctionPrototype),
		byHash: make(map[uint32]*FunctionPrototype),
	}
}

// callable reports whether t can cross the native call boundary.
func callable(t ValueType) bool {
	return t == TypeInt || t == TypeStringPtr
}

// Register adds a prototype. Two different names with the same hash are
// rejected, as are types the VM stack cannot carry.
func (n *Natives) Register(name string, returns ValueType, params ...ValueType) (*FunctionPrototype, error) {
	id := Identifier(name)
	if _, dup := n.byName[id]; dup {
		return nil, &Error{Kind: SemanticError, Msg: fmt.Sprintf("native %s registered twice", name)}
	}
	if !callable(returns) {
		return nil, &Error{Kind: SemanticError, Msg: fmt.Sprintf("native %s: unsupported return type %s", name, returns)}
	}
	for i, p := range params {
		if !callable(p) {
			return nil, &Error{Kind: SemanticError, Msg: fmt.Sprintf("native %s: unsupported type %s for parameter %d", name, p, i)}
		}
	}
	h := NameHash(name)
	if other, clash := n.byHash[h]; clash {
		return nil, &Error{Kind: SemanticError, Msg: fmt.Sprintf("native %s: name hash %#08x collides with %s", name, h, other.Name)}
	}
	p := &FunctionPrototype{Name: id, Returns: returns, Params: append([]ValueType(nil), params...), Hash: h}
	n.byName[id] = p
	n.byHash[h] = p
	return p, nil
}

// MustRegister is Register for statically known tables; it panics on error.
func (n *Natives) MustRegister(name string, returns ValueType, params ...ValueType) *FunctionPrototype {
	p, err := n.Register(name, returns, params...)
	if err != nil {
		panic(err)
	}
	return p
}

// Lookup returns the prototype named id.
func (n *Natives) Lookup(id Identifier) (*FunctionPrototype, bool) {
	p, ok := n.byName[id]
	return p, ok
}

// ByHash returns the prototype with the given name hash.
func (n *Natives) ByHash(h uint32) (*FunctionPrototype, bool) {
	p, ok := n.byHash[h]
	return p, ok
}

// Arity returns the parameter count of the native with hash h.
func (n *Natives) Arity(h uint32) (int, bool) {
	p, ok := n.byHash[h]
	if !ok {
		return 0, false
	}
	return len(p.Params), true
}

// Prototypes returns every prototype sorted by name.
func (n *Natives) Prototypes() []*FunctionPrototype {
	out := make([]*FunctionPrototype, 0, len(n.byName))
	for _, p := range n.byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
