package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for scene scripts
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Pos() Position
	node() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// ParenExpr is a parenthesized expression.
type ParenExpr struct {
	LParen Token
	Inner  Expr
}

func (n *ParenExpr) Pos() Position { return n.LParen.Pos }
func (n *ParenExpr) node()         {}
func (n *ParenExpr) expr()         {}

// LiteralExpr is an integer, float or string literal.
type LiteralExpr struct {
	Token Token
}

func (n *LiteralExpr) Pos() Position { return n.Token.Pos }
func (n *LiteralExpr) node()         {}
func (n *LiteralExpr) expr()         {}

// VariableExpr reads a named value. Macro is set for #name references to
// compile-time constants.
type VariableExpr struct {
	Name  Token
	Macro bool
}

func (n *VariableExpr) Pos() Position { return n.Name.Pos }
func (n *VariableExpr) node()         {}
func (n *VariableExpr) expr()         {}

// SceneExpr is a [[name]] scene reference.
type SceneExpr struct {
	Name Token
}

func (n *SceneExpr) Pos() Position { return n.Name.Pos }
func (n *SceneExpr) node()         {}
func (n *SceneExpr) expr()         {}

// CallExpr invokes a native function.
type CallExpr struct {
	Name Token
	Args []Expr
}

func (n *CallExpr) Pos() Position { return n.Name.Pos }
func (n *CallExpr) node()         {}
func (n *CallExpr) expr()         {}

// UnaryExpr is a prefix operation: -x or !x.
type UnaryExpr struct {
	Op      Token
	Operand Expr
}

func (n *UnaryExpr) Pos() Position { return n.Op.Pos }
func (n *UnaryExpr) node()         {}
func (n *UnaryExpr) expr()         {}

// BinaryExpr is an infix operation.
type BinaryExpr struct {
	Op    Token
	Left  Expr
	Right Expr
}

func (n *BinaryExpr) Pos() Position { return n.Left.Pos() }
func (n *BinaryExpr) node()         {}
func (n *BinaryExpr) expr()         {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// PrintStmt prints a compound string: "Hello %name";
type PrintStmt struct {
	String Token
}

func (n *PrintStmt) Pos() Position { return n.String.Pos }
func (n *PrintStmt) node()         {}
func (n *PrintStmt) stmt()         {}

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	X Expr
}

func (n *ExprStmt) Pos() Position { return n.X.Pos() }
func (n *ExprStmt) node()         {}
func (n *ExprStmt) stmt()         {}

// GlobalDeclStmt declares a global without defining it: GLOBAL name;
type GlobalDeclStmt struct {
	Keyword Token
	Name    Token
}

func (n *GlobalDeclStmt) Pos() Position { return n.Keyword.Pos }
func (n *GlobalDeclStmt) node()         {}
func (n *GlobalDeclStmt) stmt()         {}

// GlobalDefStmt defines a global: GLOBAL name = expr;
type GlobalDefStmt struct {
	Keyword Token
	Assign  *AssignStmt
}

func (n *GlobalDefStmt) Pos() Position { return n.Keyword.Pos }
func (n *GlobalDefStmt) node()         {}
func (n *GlobalDefStmt) stmt()         {}

// StoreStmt declares a persisted variable: STORE name = expr;
type StoreStmt struct {
	Keyword Token
	Assign  *AssignStmt
}

func (n *StoreStmt) Pos() Position { return n.Keyword.Pos }
func (n *StoreStmt) node()         {}
func (n *StoreStmt) stmt()         {}

// AssignStmt assigns to a variable. Type is non-nil for typed
// declarations such as INT x = 2;
type AssignStmt struct {
	Type  *Token
	Name  Token
	Value Expr
}

func (n *AssignStmt) Pos() Position {
	if n.Type != nil {
		return n.Type.Pos
	}
	return n.Name.Pos
}
func (n *AssignStmt) node() {}
func (n *AssignStmt) stmt() {}

// ConstantStmt declares a macro constant: #INT NAME = expr;
type ConstantStmt struct {
	Hash  Token
	Type  Token
	Name  Token
	Value Expr
}

func (n *ConstantStmt) Pos() Position { return n.Hash.Pos }
func (n *ConstantStmt) node()         {}
func (n *ConstantStmt) stmt()         {}

// BlockStmt is a braced statement list.
type BlockStmt struct {
	LBrace Token
	Stmts  []Stmt
}

func (n *BlockStmt) Pos() Position { return n.LBrace.Pos }
func (n *BlockStmt) node()         {}
func (n *BlockStmt) stmt()         {}

// ConditionStmt is an IF / ELIF / ELSE chain. ElifConds and ElifBlocks
// are parallel slices.
type ConditionStmt struct {
	Keyword    Token
	Cond       Expr
	Then       *BlockStmt
	ElifConds  []Expr
	ElifBlocks []*BlockStmt
	Else       *BlockStmt
}

func (n *ConditionStmt) Pos() Position { return n.Keyword.Pos }
func (n *ConditionStmt) node()         {}
func (n *ConditionStmt) stmt()         {}

// OptionStmt is a player choice: "text" = { ... }
type OptionStmt struct {
	String Token
	Body   *BlockStmt
}

func (n *OptionStmt) Pos() Position { return n.String.Pos }
func (n *OptionStmt) node()         {}
func (n *OptionStmt) stmt()         {}

// SceneSwitchStmt changes scene: [[name]];
type SceneSwitchStmt struct {
	Scene *SceneExpr
}

func (n *SceneSwitchStmt) Pos() Position { return n.Scene.Pos() }
func (n *SceneSwitchStmt) node()         {}
func (n *SceneSwitchStmt) stmt()         {}
