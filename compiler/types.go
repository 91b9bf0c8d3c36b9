package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Value types, values and variables
// ---------------------------------------------------------------------------

// ValueType is the static type of a value.
type ValueType uint8

const (
	TypeInvalid   ValueType = iota
	TypeInt                 // 32-bit signed integer
	TypeFloat               // type-checked, never generated
	TypeString              // string literal stored in the scene image
	TypeStringPtr           // runtime string pointer returned by natives
	TypeScene               // [[scene]] reference
)

var valueTypeNames = map[ValueType]string{
	TypeInvalid:   "INVALID",
	TypeInt:       "INT",
	TypeFloat:     "FLOAT",
	TypeString:    "STRING",
	TypeStringPtr: "STRING*",
	TypeScene:     "SCENE",
}

func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ValueType(%d)", t)
}

// Numeric reports whether arithmetic is defined on t.
func (t ValueType) Numeric() bool {
	return t == TypeInt || t == TypeFloat
}

// ParseValueType parses a type name as written in configuration:
// INT, FLOAT, STRING, STRING* or SCENE.
func ParseValueType(s string) (ValueType, error) {
	for t, name := range valueTypeNames {
		if t != TypeInvalid && name == s {
			return t, nil
		}
	}
	return TypeInvalid, fmt.Errorf("unknown value type %q", s)
}

// Value is a typed value whose literal may be unknown until runtime.
type Value struct {
	Type  ValueType
	Known bool
	Int   int64
	Float float64
	Str   string
}

// IntValue returns a known INT value.
func IntValue(v int64) Value { return Value{Type: TypeInt, Known: true, Int: v} }

// BoolValue returns the INT encoding of a truth value.
func BoolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

// FloatValue returns a known FLOAT value.
func FloatValue(v float64) Value { return Value{Type: TypeFloat, Known: true, Float: v} }

// StringValue returns a known STRING value.
func StringValue(s string) Value { return Value{Type: TypeString, Known: true, Str: s} }

// Unknown returns a value of type t whose literal is only known at runtime.
func Unknown(t ValueType) Value { return Value{Type: t} }

func (v Value) truthy() bool {
	if v.Type == TypeFloat {
		return v.Float != 0
	}
	return v.Int != 0
}

func (v Value) String() string {
	if !v.Known {
		return v.Type.String() + "(?)"
	}
	switch v.Type {
	case TypeFloat:
		return v.Type.String() + "(" + strconv.FormatFloat(v.Float, 'g', -1, 64) + ")"
	case TypeString:
		return v.Type.String() + "(" + strconv.Quote(v.Str) + ")"
	default:
		return fmt.Sprintf("%s(%d)", v.Type, v.Int)
	}
}

// Scope classifies where a variable lives. The order is significant:
// variables are laid out sorted by scope.
type Scope uint8

const (
	ScopeGlobalDefine Scope = iota
	ScopeGlobalDeclare
	ScopeStore
	ScopeTemporal
)

func (s Scope) String() string {
	switch s {
	case ScopeGlobalDefine:
		return "GLOBAL_DEFINE"
	case ScopeGlobalDeclare:
		return "GLOBAL_DECLARE"
	case ScopeStore:
		return "STORE"
	case ScopeTemporal:
		return "TEMPORAL"
	default:
		return fmt.Sprintf("Scope(%d)", s)
	}
}

// Global reports whether the scope belongs to the shared global table.
func (s Scope) Global() bool {
	return s == ScopeGlobalDefine || s == ScopeGlobalDeclare
}

// Identifier names a value. Anonymous string variables use the literal
// text prefixed with '+', which no source identifier can start with.
type Identifier string

// AnonymousIdentifier returns the identifier of the string variable that
// holds text.
func AnonymousIdentifier(text string) Identifier {
	return Identifier("+" + text)
}

// Anonymous reports whether id names a string literal.
func (id Identifier) Anonymous() bool {
	return len(id) > 0 && id[0] == '+'
}

// Variable is a symbol table entry.
type Variable struct {
	Scope Scope
	Name  Identifier
	Value Value
	Index int      // insertion order in its table
	Site  Position // declaring occurrence
	Unit  string   // declaring unit, globals only
}

func (v *Variable) String() string {
	return fmt.Sprintf("%s %s %s", v.Scope, v.Name, v.Value)
}
