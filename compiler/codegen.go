package compiler

import (
	"errors"

	"github.com/chazu/narrative/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Codegen: lower a resolved unit to scene bytecode
// ---------------------------------------------------------------------------

// refKind marks an instruction literal that is only known once the whole
// unit has been generated.
type refKind uint8

const (
	refNone     refKind = iota
	refVariable         // byte offset of a local variable
	refString           // PC of a compound string
	refOption           // index of an option in the final list
	refLabel            // PC before a jump target
)

// pendingInstr is an instruction whose literal may still be a reference.
// The finishing pass turns every pendingInstr into a bytecode.Instruction.
type pendingInstr struct {
	op     bytecode.Opcode
	lit    int64
	ref    refKind
	name   Identifier // refVariable, refString
	option *Option    // refOption
	label  int        // refLabel
	pos    Position
}

// Option is a choice allocated while generating a unit.
type Option struct {
	ID       Identifier // anonymous identifier of the display string
	Body     *BlockStmt
	Pos      Position
	Index    int // position in the final option list
	StringPC int
	BodyPC   int
}

var binaryOps = map[TokenType]bytecode.Opcode{
	TokenPlus:         bytecode.OpAdd,
	TokenMinus:        bytecode.OpSub,
	TokenStar:         bytecode.OpMul,
	TokenSlash:        bytecode.OpDiv,
	TokenEqual:        bytecode.OpEq,
	TokenBangEqual:    bytecode.OpNeq,
	TokenLess:         bytecode.OpLt,
	TokenLessEqual:    bytecode.OpLte,
	TokenGreater:      bytecode.OpGt,
	TokenGreaterEqual: bytecode.OpGte,
	TokenAnd:          bytecode.OpAnd,
	TokenOr:           bytecode.OpOr,
}

// Generator lowers one resolved unit. It is not safe for concurrent use,
// but generators for different units share no mutable state.
type Generator struct {
	res    *Resolved
	consts *constEvaluator

	code    []pendingInstr
	options []*Option
	cursor  int   // insertion point for new options
	labels  []int // label -> PC, -1 until placed
	depth   int   // block nesting; 0 is the top level of the main body

	strings map[Identifier]int // compound string PCs
	used    map[Identifier]bool
	inits   map[Identifier]bool // initialized by the image, not by code
	calls   map[uint32]bool
}

// Generate lowers res into a finished program.
func Generate(res *Resolved) (*Program, error) {
	g := &Generator{
		res:     res,
		consts:  &constEvaluator{constants: res.Constants},
		strings: make(map[Identifier]int),
		used:    make(map[Identifier]bool),
		inits:   make(map[Identifier]bool),
		calls:   make(map[uint32]bool),
	}
	if err := g.generate(); err != nil {
		return nil, InFile(err, res.Unit)
	}
	p, err := g.finish()
	if err != nil {
		return nil, InFile(err, res.Unit)
	}
	return p, nil
}

// generate emits the main body, then every option body, then every
// compound string.
func (g *Generator) generate() error {
	for _, s := range g.res.Stmts {
		if err := g.stmt(s); err != nil {
			return err
		}
	}
	g.emit(bytecode.OpEOX, 0, Position{})

	// Options allocated while compiling an option body are inserted right
	// after it, so the list may grow during this loop.
	g.depth = 1
	for i := 0; i < len(g.options); i++ {
		opt := g.options[i]
		opt.BodyPC = len(g.code)
		g.cursor = i + 1
		for _, s := range opt.Body.Stmts {
			if err := g.stmt(s); err != nil {
				return err
			}
		}
		g.emit(bytecode.OpEOX, 0, opt.Pos)
	}

	for _, cs := range g.res.Strings {
		g.strings[cs.ID] = len(g.code)
		for _, f := range cs.Fields {
			if f.Kind == FieldText {
				g.emitRef(pendingInstr{op: bytecode.OpPrintSL, ref: refVariable, name: f.ID, pos: cs.Pos})
				g.used[f.ID] = true
				continue
			}
			if err := g.expr(f.Expr); err != nil {
				return fieldError(Token{Pos: cs.Pos}, &f, err)
			}
			if f.Type == TypeStringPtr {
				g.emit(bytecode.OpPrintS, 0, cs.Pos)
			} else {
				g.emit(bytecode.OpPrintI, 0, cs.Pos)
			}
		}
		g.emit(bytecode.OpEndl, 0, cs.Pos)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func (g *Generator) emit(op bytecode.Opcode, lit int64, pos Position) {
	g.code = append(g.code, pendingInstr{op: op, lit: lit, pos: pos})
}

func (g *Generator) emitRef(in pendingInstr) {
	g.code = append(g.code, in)
}

func (g *Generator) newLabel() int {
	g.labels = append(g.labels, -1)
	return len(g.labels) - 1
}

// placeLabel binds label to the next instruction to be emitted.
func (g *Generator) placeLabel(label int) {
	g.labels[label] = len(g.code)
}

func (g *Generator) jump(op bytecode.Opcode, label int, pos Position) {
	g.emitRef(pendingInstr{op: op, ref: refLabel, label: label, pos: pos})
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *Generator) stmt(s Stmt) error {
	switch s := s.(type) {
	case *PrintStmt:
		g.emitRef(pendingInstr{op: bytecode.OpPrint, ref: refString, name: AnonymousIdentifier(s.String.Literal), pos: s.String.Pos})
		return nil

	case *ExprStmt:
		if !hasCall(s.X) {
			return nil
		}
		if err := g.expr(s.X); err != nil {
			return err
		}
		g.emit(bytecode.OpPop, 0, s.Pos())
		return nil

	case *GlobalDeclStmt, *GlobalDefStmt, *StoreStmt, *ConstantStmt:
		// values live in the image or the globals file
		return nil

	case *AssignStmt:
		return g.assign(s)

	case *BlockStmt:
		g.depth++
		defer func() { g.depth-- }()
		for _, inner := range s.Stmts {
			if err := g.stmt(inner); err != nil {
				return err
			}
		}
		return nil

	case *ConditionStmt:
		return g.condition(s)

	case *OptionStmt:
		opt := &Option{ID: AnonymousIdentifier(s.String.Literal), Body: s.Body, Pos: s.String.Pos}
		g.options = append(g.options, nil)
		copy(g.options[g.cursor+1:], g.options[g.cursor:])
		g.options[g.cursor] = opt
		g.cursor++
		g.emitRef(pendingInstr{op: bytecode.OpDisplay, ref: refOption, option: opt, pos: s.String.Pos})
		return nil

	case *SceneSwitchStmt:
		name := s.Scene.Name
		h, ok := g.res.Scenes[name.Literal]
		if !ok {
			return errorAt(InternalError, name.Pos, "unresolved scene %s", name.Literal)
		}
		g.emit(bytecode.OpSwitch, int64(int32(h)), name.Pos)
		return nil
	}
	return errorAt(InternalError, s.Pos(), "unhandled statement %T", s)
}

func (g *Generator) assign(s *AssignStmt) error {
	id := Identifier(s.Name.Literal)
	v, ok := g.res.Symbols.Lookup(id)
	if !ok {
		return errorAt(InternalError, s.Name.Pos, "unresolved variable %s", id)
	}
	// A constant first declaration at the top level is carried by the
	// variable's initial value in the image.
	if v.Scope == ScopeTemporal && v.Site == s.Name.Pos && v.Value.Known && g.depth == 0 {
		g.inits[id] = true
		return nil
	}
	if err := g.expr(s.Value); err != nil {
		return err
	}
	if v.Scope.Global() {
		gv, ok := g.res.Globals.Lookup(id)
		if !ok {
			return errorAt(InternalError, s.Name.Pos, "unresolved global %s", id)
		}
		g.emit(bytecode.OpWriteG, int64(gv.Index), s.Name.Pos)
		return nil
	}
	g.used[id] = true
	g.emitRef(pendingInstr{op: bytecode.OpWrite, ref: refVariable, name: id, pos: s.Name.Pos})
	return nil
}

// condition lowers IF/ELIF/ELSE. Each branch tests its condition, jumps
// past its block when false, and jumps to the end after its block unless
// it is the last branch.
func (g *Generator) condition(s *ConditionStmt) error {
	conds := append([]Expr{s.Cond}, s.ElifConds...)
	blocks := append([]*BlockStmt{s.Then}, s.ElifBlocks...)
	end := g.newLabel()

	for i, cond := range conds {
		if err := g.expr(cond); err != nil {
			return err
		}
		next := g.newLabel()
		g.jump(bytecode.OpCJump, next, cond.Pos())
		if err := g.stmt(blocks[i]); err != nil {
			return err
		}
		if i < len(conds)-1 || s.Else != nil {
			g.jump(bytecode.OpIJump, end, cond.Pos())
		}
		g.placeLabel(next)
	}
	if s.Else != nil {
		if err := g.stmt(s.Else); err != nil {
			return err
		}
	}
	g.placeLabel(end)
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (g *Generator) expr(e Expr) error {
	v, err := g.consts.eval(e)
	if err == nil {
		return g.push(e.Pos(), v)
	}
	if !errors.Is(err, errNotConstant) {
		return err
	}

	switch e := e.(type) {
	case *ParenExpr:
		return g.expr(e.Inner)

	case *VariableExpr:
		id := Identifier(e.Name.Literal)
		v, ok := g.res.Symbols.Lookup(id)
		if !ok {
			return errorAt(InternalError, e.Name.Pos, "unresolved variable %s", id)
		}
		if v.Scope.Global() {
			gv, ok := g.res.Globals.Lookup(id)
			if !ok {
				return errorAt(InternalError, e.Name.Pos, "unresolved global %s", id)
			}
			g.emit(bytecode.OpReadG, int64(gv.Index), e.Name.Pos)
			return nil
		}
		if v.Value.Type == TypeFloat {
			return errorAt(UnsupportedError, e.Name.Pos, "FLOAT variable %s cannot be generated", id)
		}
		g.used[id] = true
		g.emitRef(pendingInstr{op: bytecode.OpRead, ref: refVariable, name: id, pos: e.Name.Pos})
		return nil

	case *SceneExpr:
		return errorAt(SemanticError, e.Name.Pos, "scene [[%s]] can only be switched to", e.Name.Literal)

	case *CallExpr:
		proto, ok := g.res.Natives.Lookup(Identifier(e.Name.Literal))
		if !ok {
			return errorAt(InternalError, e.Name.Pos, "unresolved function %s", e.Name.Literal)
		}
		for i := len(e.Args) - 1; i >= 0; i-- {
			if err := g.expr(e.Args[i]); err != nil {
				return err
			}
		}
		g.calls[proto.Hash] = true
		g.emit(bytecode.OpCall, int64(int32(proto.Hash)), e.Name.Pos)
		return nil

	case *UnaryExpr:
		if err := g.expr(e.Operand); err != nil {
			return err
		}
		if e.Op.Type == TokenBang {
			g.emit(bytecode.OpNot, 0, e.Op.Pos)
		} else {
			g.emit(bytecode.OpNeg, 0, e.Op.Pos)
		}
		return nil

	case *BinaryExpr:
		// right first: the VM pops the left operand first
		if err := g.expr(e.Right); err != nil {
			return err
		}
		if err := g.expr(e.Left); err != nil {
			return err
		}
		op, ok := binaryOps[e.Op.Type]
		if !ok {
			return errorAt(InternalError, e.Op.Pos, "unknown operator %s", e.Op.Literal)
		}
		g.emit(op, 0, e.Op.Pos)
		return nil
	}
	return errorAt(InternalError, e.Pos(), "unhandled expression %T", e)
}

// push emits a folded constant.
func (g *Generator) push(pos Position, v Value) error {
	switch v.Type {
	case TypeInt:
		g.emit(bytecode.OpPush, v.Int, pos)
		return nil
	case TypeFloat:
		return errorAt(UnsupportedError, pos, "FLOAT values cannot be generated")
	}
	return errorAt(SemanticError, pos, "a %s cannot be evaluated on the stack", v.Type)
}

// hasCall reports whether evaluating e has side effects.
func hasCall(e Expr) bool {
	switch e := e.(type) {
	case *CallExpr:
		return true
	case *ParenExpr:
		return hasCall(e.Inner)
	case *UnaryExpr:
		return hasCall(e.Operand)
	case *BinaryExpr:
		return hasCall(e.Left) || hasCall(e.Right)
	}
	return false
}
