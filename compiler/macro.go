package compiler

import (
	"strings"
)

// ---------------------------------------------------------------------------
// Macro preprocessor: #name = (body) definitions and #name substitution
// ---------------------------------------------------------------------------

// MacroTable holds the macro definitions collected from one or more
// sources. Definitions are shared: a name may only be defined once across
// every source collected into the same table.
type MacroTable struct {
	bodies map[string]string
	names  []string // definition order
}

// NewMacroTable returns an empty table.
func NewMacroTable() *MacroTable {
	return &MacroTable{bodies: make(map[string]string)}
}

// Names returns the defined macro names in definition order.
func (m *MacroTable) Names() []string {
	return append([]string(nil), m.names...)
}

// Body returns the replacement text of a macro.
func (m *MacroTable) Body(name string) (string, bool) {
	body, ok := m.bodies[name]
	return body, ok
}

// Preprocess runs both macro phases over a single source.
func Preprocess(src string) (string, error) {
	m := NewMacroTable()
	stripped, err := m.Collect(src)
	if err != nil {
		return "", err
	}
	return m.Expand(stripped)
}

// Collect removes every definition from src and records it in the table.
// A removed definition leaves its newlines behind so that line numbers
// reported by later phases still match the original text.
func (m *MacroTable) Collect(src string) (string, error) {
	var out strings.Builder
	out.Grow(len(src))

	for i := 0; i < len(src); {
		c := src[i]
		if c == '\\' && i+1 < len(src) && src[i+1] == '#' {
			out.WriteString(`\#`)
			i += 2
			continue
		}
		if c != '#' {
			out.WriteByte(c)
			i++
			continue
		}

		name, end, err := readMacroName(src, i)
		if err != nil {
			return "", err
		}
		j := skipSpaces(src, end)
		if j >= len(src) || src[j] != '=' || (j+1 < len(src) && src[j+1] == '=') {
			// a reference, handled by Expand
			out.WriteString(src[i:end])
			i = end
			continue
		}

		j = skipSpaces(src, j+1)
		if j >= len(src) || src[j] != '(' {
			return "", errorAt(MacroError, offsetPosition(src, i),
				"expected '(' after '=' in definition of #%s", name)
		}
		body, after, ok := readMacroBody(src, j)
		if !ok {
			return "", errorAt(MacroError, offsetPosition(src, i),
				"unterminated body in definition of #%s", name)
		}
		if _, dup := m.bodies[name]; dup {
			return "", errorAt(MacroError, offsetPosition(src, i), "macro #%s already defined", name)
		}
		m.bodies[name] = body
		m.names = append(m.names, name)

		out.WriteString(strings.Repeat("\n", strings.Count(src[i:after], "\n")))
		i = after
	}
	return out.String(), nil
}

// Expand substitutes every #name reference in src. Replacement text is
// expanded again, so macros may be built from other macros; a macro that
// reaches itself is an error. An escaped \# loses its backslash and is
// kept as a literal '#'.
func (m *MacroTable) Expand(src string) (string, error) {
	return m.expand(src, nil, nil)
}

func (m *MacroTable) expand(src string, active []string, origin *Position) (string, error) {
	var out strings.Builder
	out.Grow(len(src))

	for i := 0; i < len(src); {
		c := src[i]
		if c == '\\' && i+1 < len(src) && src[i+1] == '#' {
			out.WriteByte('#')
			i += 2
			continue
		}
		if c != '#' {
			out.WriteByte(c)
			i++
			continue
		}

		pos := offsetPosition(src, i)
		if origin != nil {
			pos = *origin
		}
		name, end, err := readMacroName(src, i)
		if err != nil {
			if e, ok := err.(*Error); ok && origin != nil {
				e.Pos = *origin
			}
			return "", err
		}
		body, ok := m.bodies[name]
		if !ok {
			return "", errorAt(MacroError, pos, "undefined macro #%s", name)
		}
		for _, a := range active {
			if a == name {
				return "", errorAt(MacroError, pos, "macro #%s expands to itself", name)
			}
		}
		expanded, err := m.expand(body, append(active, name), &pos)
		if err != nil {
			return "", err
		}
		out.WriteString(expanded)
		i = end
	}
	return out.String(), nil
}

// readMacroName reads the identifier after the '#' at src[i].
func readMacroName(src string, i int) (name string, end int, err error) {
	end = i + 1
	if end >= len(src) || !isIdentStart(rune(src[end])) {
		return "", 0, errorAt(MacroError, offsetPosition(src, i), "expected identifier after '#'")
	}
	for end < len(src) && isIdentPart(rune(src[end])) {
		end++
	}
	return src[i+1 : end], end, nil
}

// readMacroBody reads a parenthesized body starting at the '(' at src[i].
// Parentheses nest; the outermost pair is not part of the body.
func readMacroBody(src string, i int) (body string, after int, ok bool) {
	depth := 0
	for j := i; j < len(src); j++ {
		switch src[j] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return src[i+1 : j], j + 1, true
			}
		}
	}
	return "", 0, false
}

func skipSpaces(src string, i int) int {
	for i < len(src) && (src[i] == ' ' || src[i] == '\t' || src[i] == '\r' || src[i] == '\n') {
		i++
	}
	return i
}

// offsetPosition converts a byte offset into a line/column position.
// Columns count runes, as the lexer does.
func offsetPosition(src string, off int) Position {
	line, col := 1, 1
	for i, r := range src {
		if i >= off {
			break
		}
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return Position{Offset: off, Line: line, Column: col}
}
