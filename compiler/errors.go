package compiler

import (
	"errors"
	"fmt"
)

// ErrorKind classifies compilation failures by the phase that raised them.
type ErrorKind int

const (
	LexError ErrorKind = iota + 1
	MacroError
	ParseError
	SemanticError
	SerializationError
	UnsupportedError
	InternalError
)

var errorKindNames = map[ErrorKind]string{
	LexError:           "lex error",
	MacroError:         "macro error",
	ParseError:         "parse error",
	SemanticError:      "semantic error",
	SerializationError: "serialization error",
	UnsupportedError:   "unsupported",
	InternalError:      "internal error",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// Error is a located compilation failure. Compilation is fail-fast: the
// first Error raised in a unit aborts it.
type Error struct {
	Kind ErrorKind
	File string
	Pos  Position
	Msg  string
	Err  error // wrapped cause, if any
}

func (e *Error) Error() string {
	loc := fmt.Sprintf("line %d, column %d", e.Pos.Line, e.Pos.Column)
	if e.Pos.Line == 0 {
		loc = ""
	}
	switch {
	case e.File != "" && loc != "":
		return fmt.Sprintf("%s: %s: %s: %s", e.File, loc, e.Kind, e.Msg)
	case e.File != "":
		return fmt.Sprintf("%s: %s: %s", e.File, e.Kind, e.Msg)
	case loc != "":
		return fmt.Sprintf("%s: %s: %s", loc, e.Kind, e.Msg)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func errorAt(kind ErrorKind, pos Position, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// InFile attributes err to file when it is an *Error that does not name one
// yet. Other errors are returned unchanged.
func InFile(err error, file string) error {
	var e *Error
	if errors.As(err, &e) && e.File == "" {
		e.File = file
	}
	return err
}
