package irgen

import (
	"fmt"
	"strconv"

	"sysyc/internal/ast"
	"sysyc/internal/diagnostics"
	"sysyc/internal/symtab"
)

// ExpResult is what every expression visit returns: either a
// compile-time-folded literal (IsZeroDepth) or a reference to the
// SSA temporary holding the runtime value.
type ExpResult struct {
	IsZeroDepth bool
	Literal     int32
	Slot        string
}

func lit(v int32) ExpResult { return ExpResult{IsZeroDepth: true, Literal: v} }

// operandText renders a result the way a Koopa operand position expects:
// a decimal literal, or the name of the temporary/pointer holding it.
func operandText(r ExpResult) string {
	if r.IsZeroDepth {
		return strconv.Itoa(int(r.Literal))
	}
	return r.Slot
}

func boolOf(v int32) int32 {
	if v != 0 {
		return 1
	}
	return 0
}

var binMnemonic = map[string]string{
	"+": "add", "-": "sub", "*": "mul", "/": "div", "%": "mod",
	"<": "lt", ">": "gt", "<=": "le", ">=": "ge", "==": "eq", "!=": "ne",
}

// exp lowers one expression node, folding constants where every leaf
// resolves to ConstInt/literal (spec section 8's stability invariant:
// such expressions never allocate an SSA temporary).
func (c *Context) exp(e ast.Exp) (ExpResult, error) {
	switch n := e.(type) {
	case *ast.IntLit:
		return lit(n.Value), nil

	case *ast.Paren:
		// Transparent wrapper with respect to constant folding (4.7).
		return c.exp(n.Inner)

	case *ast.LVal:
		return c.lvalRead(n)

	case *ast.Call:
		return c.call(n)

	case *ast.UnaryOp:
		return c.unary(n)

	case *ast.BinOp:
		switch n.Op {
		case "&&":
			return c.logicalAnd(n.Left, n.Right)
		case "||":
			return c.logicalOr(n.Left, n.Right)
		default:
			return c.binaryArith(n.Op, n.Left, n.Right)
		}

	default:
		return ExpResult{}, diagnostics.Internal("irgen: unknown expression node %T", e)
	}
}

func (c *Context) unary(n *ast.UnaryOp) (ExpResult, error) {
	operand, err := c.exp(n.Exp)
	if err != nil {
		return ExpResult{}, err
	}
	switch n.Op {
	case "+":
		return operand, nil
	case "-":
		if operand.IsZeroDepth {
			return lit(-operand.Literal), nil
		}
		t := c.newTemp()
		c.emit("%s = sub 0, %s", t, operandText(operand))
		return ExpResult{Slot: t}, nil
	case "!":
		if operand.IsZeroDepth {
			return lit(boolOf(operand.Literal) ^ 1), nil
		}
		t := c.newTemp()
		c.emit("%s = eq %s, 0", t, operandText(operand))
		return ExpResult{Slot: t}, nil
	default:
		return ExpResult{}, diagnostics.Internal("irgen: unknown unary operator %q", n.Op)
	}
}

func (c *Context) binaryArith(op string, left, right ast.Exp) (ExpResult, error) {
	l, err := c.exp(left)
	if err != nil {
		return ExpResult{}, err
	}
	r, err := c.exp(right)
	if err != nil {
		return ExpResult{}, err
	}
	if l.IsZeroDepth && r.IsZeroDepth {
		if v, ok := foldConst(op, l.Literal, r.Literal); ok {
			return lit(v), nil
		}
	}
	mnemonic, ok := binMnemonic[op]
	if !ok {
		return ExpResult{}, diagnostics.Internal("irgen: unknown binary operator %q", op)
	}
	t := c.newTemp()
	c.emit("%s = %s %s, %s", t, mnemonic, operandText(l), operandText(r))
	return ExpResult{Slot: t}, nil
}

// foldConst evaluates op over two known-constant i32 operands with RV32
// wraparound/truncating-toward-zero semantics (spec Design Notes). It
// returns ok=false for a statically-zero divisor, deferring to emitted
// code so a divide-by-zero bug in the *input* program surfaces at
// runtime instead of panicking this compiler.
func foldConst(op string, l, r int32) (int32, bool) {
	switch op {
	case "+":
		return l + r, true
	case "-":
		return l - r, true
	case "*":
		return l * r, true
	case "/":
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case "%":
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case "<":
		return b2i(l < r), true
	case ">":
		return b2i(l > r), true
	case "<=":
		return b2i(l <= r), true
	case ">=":
		return b2i(l >= r), true
	case "==":
		return b2i(l == r), true
	case "!=":
		return b2i(l != r), true
	}
	return 0, false
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// logicalAnd lowers a && b per spec section 4.2: short-circuit via a
// stack slot seeded with the AND identity (0). When a folds to a known
// constant the slot machinery is skipped: a constant 0 yields 0 without
// evaluating b, and any other constant yields b normalized to {0,1}.
func (c *Context) logicalAnd(left, right ast.Exp) (ExpResult, error) {
	l, err := c.exp(left)
	if err != nil {
		return ExpResult{}, err
	}
	if l.IsZeroDepth {
		if l.Literal == 0 {
			return lit(0), nil
		}
		r, err := c.exp(right)
		if err != nil {
			return ExpResult{}, err
		}
		return c.normalizeBool(r), nil
	}
	return c.shortCircuit("l_and_exp", l, right, 0, true)
}

// logicalOr mirrors logicalAnd with the OR identity (1) and reversed
// branch targets.
func (c *Context) logicalOr(left, right ast.Exp) (ExpResult, error) {
	l, err := c.exp(left)
	if err != nil {
		return ExpResult{}, err
	}
	if l.IsZeroDepth {
		if l.Literal != 0 {
			return lit(1), nil
		}
		r, err := c.exp(right)
		if err != nil {
			return ExpResult{}, err
		}
		return c.normalizeBool(r), nil
	}
	return c.shortCircuit("l_or_exp", l, right, 1, false)
}

// normalizeBool folds a constant to {0,1} directly, or emits `ne 0`
// for a runtime value.
func (c *Context) normalizeBool(r ExpResult) ExpResult {
	if r.IsZeroDepth {
		return lit(boolOf(r.Literal))
	}
	t := c.newTemp()
	c.emit("%s = ne %s, 0", t, operandText(r))
	return ExpResult{Slot: t}
}

// shortCircuit implements the common slot+branch skeleton for a
// non-constant left operand. evalThenBranches selects whether the
// "then" block (which evaluates the right operand) is the true or the
// false target of the br.
func (c *Context) shortCircuit(kind string, l ExpResult, right ast.Exp, identity int32, evalThenBranches bool) (ExpResult, error) {
	k := c.kindCounter[kind]
	c.kindCounter[kind]++
	slot := fmt.Sprintf("%%tmp_%s_%d", kind, k)
	thenL := fmt.Sprintf("%%then_%s_%d", kind, k)
	endL := fmt.Sprintf("%%end_%s_%d", kind, k)

	c.emit("%s = alloc i32", slot)
	c.emit("store %d, %s", identity, slot)
	if evalThenBranches {
		c.emit("br %s, %s, %s", operandText(l), thenL, endL)
	} else {
		c.emit("br %s, %s, %s", operandText(l), endL, thenL)
	}
	c.emitRaw(thenL + ":")
	r, err := c.exp(right)
	if err != nil {
		return ExpResult{}, err
	}
	norm := c.normalizeBool(r)
	c.emit("store %s, %s", operandText(norm), slot)
	c.emit("jump %s", endL)
	c.emitRaw(endL + ":")
	result := c.newTemp()
	c.emit("%s = load %s", result, slot)
	return ExpResult{Slot: result}, nil
}

// call lowers a function call: evaluate args left-to-right, then emit
// `call`, binding a fresh temp only if the callee returns int. The two
// timer library functions are rewritten to their underscore-prefixed
// runtime names with an implicit source-line argument (4.7).
func (c *Context) call(n *ast.Call) (ExpResult, error) {
	entry, err := c.syms.Lookup(c.ns, n.Name)
	if err != nil {
		return ExpResult{}, diagnostics.Semantic(n.Name, "call to undeclared function")
	}
	if entry.Kind != symtab.Function {
		return ExpResult{}, diagnostics.Semantic(n.Name, "call to non-function")
	}

	callee := n.Name
	var argTexts []string
	switch n.Name {
	case "starttime":
		callee = "_sysy_starttime"
		argTexts = []string{strconv.Itoa(n.Line)}
	case "stoptime":
		callee = "_sysy_stoptime"
		argTexts = []string{strconv.Itoa(n.Line)}
	default:
		for _, a := range n.Args {
			r, err := c.exp(a)
			if err != nil {
				return ExpResult{}, err
			}
			argTexts = append(argTexts, operandText(r))
		}
	}

	joined := ""
	for i, a := range argTexts {
		if i > 0 {
			joined += ", "
		}
		joined += a
	}

	if entry.Ret == ast.Int {
		t := c.newTemp()
		c.emit("%s = call @%s(%s)", t, callee, joined)
		return ExpResult{Slot: t}, nil
	}
	c.emit("call @%s(%s)", callee, joined)
	return ExpResult{}, nil
}
