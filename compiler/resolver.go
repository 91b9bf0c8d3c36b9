package compiler

import (
	"errors"
)

// ---------------------------------------------------------------------------
// Resolver: scopes, types and constant folding
// ---------------------------------------------------------------------------

// Env is the link-wide context a unit is resolved against.
type Env struct {
	Unit    string            // unit name, recorded on globals it declares
	Globals *GlobalTable      // shared by every unit of a link
	Natives *Natives          // callable natives
	Scenes  map[string]uint32 // scene name to name hash
}

// Resolved is the output of resolving one unit.
type Resolved struct {
	Unit      string
	Stmts     []Stmt
	Symbols   *SymbolTable
	Strings   []*CompoundString // print and option strings, first use order
	Constants map[Identifier]Value
	Globals   *GlobalTable
	Natives   *Natives
	Scenes    map[string]uint32
}

// Compound returns the compound string registered under id.
func (r *Resolved) Compound(id Identifier) (*CompoundString, bool) {
	for _, cs := range r.Strings {
		if cs.ID == id {
			return cs, true
		}
	}
	return nil, false
}

// Resolver walks a unit once, building its symbol table and checking types.
type Resolver struct {
	env     *Env
	syms    *SymbolTable
	consts  *constEvaluator
	strings []*CompoundString
	seen    map[Identifier]*CompoundString
}

// Resolve resolves stmts against env. Globals declared or defined by the
// unit are added to env.Globals.
func Resolve(stmts []Stmt, env *Env) (*Resolved, error) {
	if env.Globals == nil {
		env.Globals = NewGlobalTable()
	}
	if env.Natives == nil {
		env.Natives = NewNatives()
	}
	r := &Resolver{
		env:    env,
		syms:   NewSymbolTable(),
		consts: &constEvaluator{constants: make(map[Identifier]Value)},
		seen:   make(map[Identifier]*CompoundString),
	}
	for _, s := range stmts {
		if err := r.stmt(s); err != nil {
			return nil, err
		}
	}
	r.syms.SortByScope()
	return &Resolved{
		Unit:      env.Unit,
		Stmts:     stmts,
		Symbols:   r.syms,
		Strings:   r.strings,
		Constants: r.consts.constants,
		Globals:   env.Globals,
		Natives:   env.Natives,
		Scenes:    env.Scenes,
	}, nil
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (r *Resolver) stmt(s Stmt) error {
	switch s := s.(type) {
	case *PrintStmt:
		return r.registerString(s.String)

	case *ExprStmt:
		_, err := r.evaluate(s.X)
		return err

	case *GlobalDeclStmt:
		id := Identifier(s.Name.Literal)
		if _, ok := r.syms.Lookup(id); ok {
			return errorAt(SemanticError, s.Name.Pos, "GLOBAL %s already defined or declared", id)
		}
		r.syms.Define(ScopeGlobalDeclare, id, IntValue(0), s.Name.Pos)
		r.env.Globals.Declare(id, r.env.Unit, s.Name.Pos)
		return nil

	case *GlobalDefStmt:
		id := Identifier(s.Assign.Name.Literal)
		v, err := r.constant(s.Assign.Value, "GLOBAL "+string(id))
		if err != nil {
			return err
		}
		if v.Type != TypeInt {
			return errorAt(SemanticError, s.Assign.Name.Pos, "GLOBAL %s must be INT, got %s", id, v.Type)
		}
		if _, ok := r.syms.Lookup(id); ok {
			return errorAt(SemanticError, s.Assign.Name.Pos, "GLOBAL %s already defined or declared", id)
		}
		r.syms.Define(ScopeGlobalDefine, id, v, s.Assign.Name.Pos)
		_, err = r.env.Globals.Define(id, v, r.env.Unit, s.Assign.Name.Pos)
		return err

	case *StoreStmt:
		id := Identifier(s.Assign.Name.Literal)
		v, err := r.constant(s.Assign.Value, "STORE "+string(id))
		if err != nil {
			return err
		}
		if v.Type != TypeInt {
			return errorAt(SemanticError, s.Assign.Name.Pos, "STORE %s must be INT, got %s", id, v.Type)
		}
		if _, ok := r.syms.Lookup(id); ok {
			return errorAt(SemanticError, s.Assign.Name.Pos, "STORE %s already defined", id)
		}
		r.syms.Define(ScopeStore, id, v, s.Assign.Name.Pos)
		return nil

	case *AssignStmt:
		return r.assign(s)

	case *ConstantStmt:
		id := Identifier(s.Name.Literal)
		if _, dup := r.consts.constants[id]; dup {
			return errorAt(SemanticError, s.Name.Pos, "constant #%s already defined", id)
		}
		v, err := r.constant(s.Value, "#"+string(id))
		if err != nil {
			return err
		}
		if want := declaredType(s.Type); v.Type != want {
			return errorAt(SemanticError, s.Name.Pos, "constant #%s declared %s but assigned %s", id, want, v.Type)
		}
		r.consts.constants[id] = v
		return nil

	case *BlockStmt:
		for _, inner := range s.Stmts {
			if err := r.stmt(inner); err != nil {
				return err
			}
		}
		return nil

	case *ConditionStmt:
		if err := r.condition(s.Cond); err != nil {
			return err
		}
		if err := r.stmt(s.Then); err != nil {
			return err
		}
		for i, cond := range s.ElifConds {
			if err := r.condition(cond); err != nil {
				return err
			}
			if err := r.stmt(s.ElifBlocks[i]); err != nil {
				return err
			}
		}
		if s.Else != nil {
			return r.stmt(s.Else)
		}
		return nil

	case *OptionStmt:
		if err := r.registerString(s.String); err != nil {
			return err
		}
		return r.stmt(s.Body)

	case *SceneSwitchStmt:
		_, err := r.scene(s.Scene)
		return err
	}
	return errorAt(InternalError, s.Pos(), "unhandled statement %T", s)
}

func (r *Resolver) assign(s *AssignStmt) error {
	id := Identifier(s.Name.Literal)
	v, err := r.evaluate(s.Value)
	if err != nil {
		return err
	}
	switch v.Type {
	case TypeString, TypeStringPtr:
		return errorAt(SemanticError, s.Name.Pos, "cannot store a string in %s", id)
	case TypeScene:
		return errorAt(SemanticError, s.Name.Pos, "cannot store a scene reference in %s", id)
	}

	existing, ok := r.syms.Lookup(id)
	if s.Type != nil {
		if ok {
			return errorAt(SemanticError, s.Name.Pos, "%s already defined", id)
		}
		if want := declaredType(*s.Type); v.Type != want {
			return errorAt(SemanticError, s.Name.Pos, "%s declared %s but assigned %s", id, want, v.Type)
		}
	}
	if ok {
		if existing.Value.Type != v.Type {
			return errorAt(SemanticError, s.Name.Pos, "cannot assign %s to %s of type %s", v.Type, id, existing.Value.Type)
		}
		return nil
	}
	r.syms.Define(ScopeTemporal, id, v, s.Name.Pos)
	return nil
}

func (r *Resolver) condition(e Expr) error {
	v, err := r.evaluate(e)
	if err != nil {
		return err
	}
	if v.Type != TypeInt {
		return errorAt(SemanticError, e.Pos(), "condition must be INT, got %s", v.Type)
	}
	return nil
}

// registerString records a print or option string as an anonymous STRING
// variable and splits it into fields. Identical text is registered once.
func (r *Resolver) registerString(tok Token) error {
	id := AnonymousIdentifier(tok.Literal)
	if _, ok := r.seen[id]; ok {
		return nil
	}
	if _, ok := r.syms.Lookup(id); !ok {
		r.syms.Define(ScopeTemporal, id, StringValue(tok.Literal), tok.Pos)
	}

	fields, err := splitCompound(tok.Literal)
	if err != nil {
		return errorAt(SemanticError, tok.Pos, "string %q: %v", tok.Literal, err)
	}
	for i := range fields {
		f := &fields[i]
		if f.Kind == FieldText {
			if _, ok := r.syms.Lookup(f.ID); !ok {
				r.syms.Define(ScopeTemporal, f.ID, StringValue(f.Text), tok.Pos)
			}
			continue
		}
		if err := r.field(tok, f); err != nil {
			return err
		}
	}

	cs := &CompoundString{ID: id, Raw: tok.Literal, Pos: tok.Pos, Fields: fields}
	r.seen[id] = cs
	r.strings = append(r.strings, cs)
	return nil
}

// field parses and types an embedded %expression. Errors are reported at
// the enclosing string literal.
func (r *Resolver) field(tok Token, f *Field) error {
	expr, err := ParseExpression(f.Source)
	if err != nil {
		return fieldError(tok, f, err)
	}
	v, err := r.evaluate(expr)
	if err != nil {
		return fieldError(tok, f, err)
	}
	switch v.Type {
	case TypeInt, TypeStringPtr:
	case TypeFloat:
		return errorAt(UnsupportedError, tok.Pos, "field %%%s: printing FLOAT values is not supported", f.Source)
	default:
		return errorAt(SemanticError, tok.Pos, "field %%%s: cannot print a %s", f.Source, v.Type)
	}
	f.Expr = expr
	f.Type = v.Type
	return nil
}

func fieldError(tok Token, f *Field, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return &Error{Kind: e.Kind, Pos: tok.Pos, Msg: "field %" + f.Source + ": " + e.Msg, Err: err}
	}
	return errorAt(SemanticError, tok.Pos, "field %%%s: %v", f.Source, err)
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// evaluate returns the constant value of e when it has one, otherwise its
// runtime type with an unknown literal.
func (r *Resolver) evaluate(e Expr) (Value, error) {
	v, err := r.consts.eval(e)
	if errors.Is(err, errNotConstant) {
		return r.check(e)
	}
	return v, err
}

// constant requires e to be a compile-time constant.
func (r *Resolver) constant(e Expr, what string) (Value, error) {
	v, err := r.consts.eval(e)
	if errors.Is(err, errNotConstant) {
		// surface real errors such as undefined names first
		if _, cerr := r.check(e); cerr != nil {
			return Value{}, cerr
		}
		return Value{}, errorAt(SemanticError, e.Pos(), "%s requires a compile-time constant", what)
	}
	return v, err
}

// check types e without folding it.
func (r *Resolver) check(e Expr) (Value, error) {
	switch e := e.(type) {
	case *ParenExpr:
		return r.check(e.Inner)

	case *LiteralExpr:
		return literalValue(e.Token)

	case *VariableExpr:
		id := Identifier(e.Name.Literal)
		if e.Macro {
			v, ok := r.consts.constants[id]
			if !ok {
				return Value{}, errorAt(SemanticError, e.Name.Pos, "undefined constant #%s", id)
			}
			return v, nil
		}
		v, ok := r.syms.Lookup(id)
		if !ok {
			return Value{}, errorAt(SemanticError, e.Name.Pos, "undefined variable %s", id)
		}
		return Unknown(v.Value.Type), nil

	case *SceneExpr:
		h, err := r.scene(e)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: TypeScene, Known: true, Int: int64(h)}, nil

	case *CallExpr:
		return r.call(e)

	case *UnaryExpr:
		v, err := r.check(e.Operand)
		if err != nil {
			return Value{}, err
		}
		t, err := unaryType(e.Op, v.Type)
		if err != nil {
			return Value{}, err
		}
		return Unknown(t), nil

	case *BinaryExpr:
		l, err := r.check(e.Left)
		if err != nil {
			return Value{}, err
		}
		rv, err := r.check(e.Right)
		if err != nil {
			return Value{}, err
		}
		t, err := binaryType(e.Op, l.Type, rv.Type)
		if err != nil {
			return Value{}, err
		}
		return Unknown(t), nil
	}
	return Value{}, errorAt(InternalError, e.Pos(), "unhandled expression %T", e)
}

func (r *Resolver) call(e *CallExpr) (Value, error) {
	id := Identifier(e.Name.Literal)
	proto, ok := r.env.Natives.Lookup(id)
	if !ok {
		return Value{}, errorAt(SemanticError, e.Name.Pos, "undefined function %s", id)
	}
	if len(e.Args) != len(proto.Params) {
		return Value{}, errorAt(SemanticError, e.Name.Pos, "%s takes %d arguments, got %d", id, len(proto.Params), len(e.Args))
	}
	for i, arg := range e.Args {
		v, err := r.evaluate(arg)
		if err != nil {
			return Value{}, err
		}
		if v.Type != proto.Params[i] {
			return Value{}, errorAt(SemanticError, arg.Pos(), "argument %d of %s must be %s, got %s", i+1, id, proto.Params[i], v.Type)
		}
	}
	return Unknown(proto.Returns), nil
}

func (r *Resolver) scene(e *SceneExpr) (uint32, error) {
	h, ok := r.env.Scenes[e.Name.Literal]
	if !ok {
		return 0, errorAt(SemanticError, e.Name.Pos, "unknown scene %s", e.Name.Literal)
	}
	return h, nil
}

// declaredType maps a type keyword to its value type.
func declaredType(tok Token) ValueType {
	switch tok.Type {
	case TokenIntType:
		return TypeInt
	case TokenFloatType:
		return TypeFloat
	case TokenStringType:
		return TypeString
	}
	return TypeInvalid
}
