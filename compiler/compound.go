package compiler

import (
	"fmt"
	"strings"
)

// FieldKind distinguishes the parts of a compound string.
type FieldKind uint8

const (
	FieldText FieldKind = iota // literal text, printed from the string table
	FieldExpr                  // %expr, evaluated and printed at runtime
)

// Field is one segment of a compound string.
type Field struct {
	Kind   FieldKind
	Text   string     // FieldText: text with escapes removed
	ID     Identifier // FieldText: anonymous variable holding Text
	Source string     // FieldExpr: expression source
	Expr   Expr       // FieldExpr: parsed expression
	Type   ValueType  // FieldExpr: resolved type
}

// CompoundString is a print or option string split into fields. Each one
// becomes an instruction sub-sequence ending in ENDL.
type CompoundString struct {
	ID     Identifier
	Raw    string
	Pos    Position
	Fields []Field
}

// splitCompound splits the raw text of a string literal. A '%' not
// preceded by a backslash opens an expression field which runs to the
// next whitespace, or across a balanced (...) group when one follows the
// '%' directly.
func splitCompound(raw string) ([]Field, error) {
	var fields []Field
	var text strings.Builder

	flush := func() {
		if text.Len() > 0 {
			t := text.String()
			fields = append(fields, Field{Kind: FieldText, Text: t, ID: AnonymousIdentifier(t)})
			text.Reset()
		}
	}

	for i := 0; i < len(raw); {
		c := raw[i]
		if c == '\\' && i+1 < len(raw) {
			switch raw[i+1] {
			case '%', '"', '\\':
				text.WriteByte(raw[i+1])
			default:
				text.WriteString(raw[i : i+2])
			}
			i += 2
			continue
		}
		if c != '%' {
			text.WriteByte(c)
			i++
			continue
		}

		flush()
		start := i + 1
		end := start
		if end < len(raw) && raw[end] == '(' {
			depth := 0
			for ; end < len(raw); end++ {
				if raw[end] == '(' {
					depth++
				} else if raw[end] == ')' {
					depth--
					if depth == 0 {
						end++
						break
					}
				}
			}
			if depth != 0 {
				return nil, fmt.Errorf("unbalanced parentheses in field %%%s", raw[start:])
			}
		} else {
			for end < len(raw) && !isFieldSpace(raw[end]) {
				end++
			}
		}
		if end == start {
			return nil, fmt.Errorf("empty expression field at offset %d", i)
		}
		fields = append(fields, Field{Kind: FieldExpr, Source: raw[start:end]})
		i = end
	}
	flush()
	return fields, nil
}

func isFieldSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
