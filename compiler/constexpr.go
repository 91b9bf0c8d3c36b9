package compiler

import (
	"errors"
	"math"
	"strconv"
)

// errNotConstant signals that an expression can only be evaluated at
// runtime. The resolver falls back to a runtime assignment when it sees it.
var errNotConstant = errors.New("not a compile-time constant")

// constEvaluator folds expressions built from literals, macro constants,
// parentheses and operators. Function calls, scene references and reads of
// ordinary variables are not constant.
type constEvaluator struct {
	constants map[Identifier]Value
}

func (c *constEvaluator) eval(e Expr) (Value, error) {
	switch e := e.(type) {
	case *ParenExpr:
		return c.eval(e.Inner)

	case *LiteralExpr:
		return literalValue(e.Token)

	case *VariableExpr:
		if !e.Macro {
			return Value{}, errNotConstant
		}
		v, ok := c.constants[Identifier(e.Name.Literal)]
		if !ok {
			return Value{}, errorAt(SemanticError, e.Name.Pos, "undefined constant #%s", e.Name.Literal)
		}
		return v, nil

	case *SceneExpr, *CallExpr:
		return Value{}, errNotConstant

	case *UnaryExpr:
		v, err := c.eval(e.Operand)
		if err != nil {
			return Value{}, err
		}
		if _, err := unaryType(e.Op, v.Type); err != nil {
			return Value{}, err
		}
		return foldUnary(e.Op, v)

	case *BinaryExpr:
		l, err := c.eval(e.Left)
		if err != nil {
			return Value{}, err
		}
		r, err := c.eval(e.Right)
		if err != nil {
			return Value{}, err
		}
		if _, err := binaryType(e.Op, l.Type, r.Type); err != nil {
			return Value{}, err
		}
		return foldBinary(e.Op, l, r)
	}
	return Value{}, errNotConstant
}

// literalValue converts a literal token to a known value.
func literalValue(tok Token) (Value, error) {
	switch tok.Type {
	case TokenInteger:
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil || n > math.MaxInt32 {
			return Value{}, errorAt(SemanticError, tok.Pos, "integer literal %s does not fit in 32 bits", tok.Literal)
		}
		return IntValue(n), nil
	case TokenFloat:
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return Value{}, errorAt(SemanticError, tok.Pos, "invalid float literal %s", tok.Literal)
		}
		return FloatValue(f), nil
	case TokenString:
		return StringValue(tok.Literal), nil
	}
	return Value{}, errorAt(SemanticError, tok.Pos, "%s is not a literal", tok)
}

// unaryType checks the operand of - or ! and returns the result type.
func unaryType(op Token, t ValueType) (ValueType, error) {
	if !t.Numeric() {
		return TypeInvalid, errorAt(SemanticError, op.Pos, "operator %s needs a numeric operand, got %s", op.Literal, t)
	}
	if op.Type == TokenBang {
		return TypeInt, nil
	}
	return t, nil
}

// binaryType checks both operands and returns the result type. Operands
// must share one numeric type; there are no implicit conversions.
func binaryType(op Token, l, r ValueType) (ValueType, error) {
	if !l.Numeric() || !r.Numeric() {
		return TypeInvalid, errorAt(SemanticError, op.Pos, "operator %s needs numeric operands, got %s and %s", op.Literal, l, r)
	}
	if l != r {
		return TypeInvalid, errorAt(SemanticError, op.Pos, "operator %s on mismatched types %s and %s", op.Literal, l, r)
	}
	switch op.Type {
	case TokenPlus, TokenMinus, TokenStar, TokenSlash:
		return l, nil
	}
	return TypeInt, nil
}

// intResult range-checks a folded INT. INT cells are 32 bits wide.
func intResult(op Token, n int64) (Value, error) {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return Value{}, errorAt(SemanticError, op.Pos, "constant %s result %d does not fit in 32 bits", op.Literal, n)
	}
	return IntValue(n), nil
}

func foldUnary(op Token, v Value) (Value, error) {
	if op.Type == TokenBang {
		return BoolValue(!v.truthy()), nil
	}
	if v.Type == TypeFloat {
		return FloatValue(-v.Float), nil
	}
	return intResult(op, -v.Int)
}

func foldBinary(op Token, l, r Value) (Value, error) {
	switch op.Type {
	case TokenAnd:
		return BoolValue(l.truthy() && r.truthy()), nil
	case TokenOr:
		return BoolValue(l.truthy() || r.truthy()), nil
	}

	if l.Type == TypeFloat {
		a, b := l.Float, r.Float
		switch op.Type {
		case TokenPlus:
			return FloatValue(a + b), nil
		case TokenMinus:
			return FloatValue(a - b), nil
		case TokenStar:
			return FloatValue(a * b), nil
		case TokenSlash:
			if b == 0 {
				return Value{}, errorAt(SemanticError, op.Pos, "division by zero in constant expression")
			}
			return FloatValue(a / b), nil
		case TokenEqual:
			return BoolValue(a == b), nil
		case TokenBangEqual:
			return BoolValue(a != b), nil
		case TokenLess:
			return BoolValue(a < b), nil
		case TokenLessEqual:
			return BoolValue(a <= b), nil
		case TokenGreater:
			return BoolValue(a > b), nil
		case TokenGreaterEqual:
			return BoolValue(a >= b), nil
		}
	} else {
		a, b := l.Int, r.Int
		switch op.Type {
		// operands are within 32 bits, so no int64 result wraps
		case TokenPlus:
			return intResult(op, a+b)
		case TokenMinus:
			return intResult(op, a-b)
		case TokenStar:
			return intResult(op, a*b)
		case TokenSlash:
			if b == 0 {
				return Value{}, errorAt(SemanticError, op.Pos, "division by zero in constant expression")
			}
			return intResult(op, a/b)
		case TokenEqual:
			return BoolValue(a == b), nil
		case TokenBangEqual:
			return BoolValue(a != b), nil
		case TokenLess:
			return BoolValue(a < b), nil
		case TokenLessEqual:
			return BoolValue(a <= b), nil
		case TokenGreater:
			return BoolValue(a > b), nil
		case TokenGreaterEqual:
			return BoolValue(a >= b), nil
		}
	}
	return Value{}, errorAt(SemanticError, op.Pos, "unknown operator %s", op.Literal)
}
