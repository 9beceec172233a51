package irgen

import (
	"fmt"

	"sysyc/internal/ast"
	"sysyc/internal/diagnostics"
	"sysyc/internal/symtab"
)

// block emits one AST Block: opens its own namespace chained to the
// currently active one, walks its items in order, and restores the
// enclosing namespace on return.
func (c *Context) block(b *ast.Block) error {
	restore := c.openScope(b.ID)
	defer restore()
	for _, item := range b.Items {
		if err := c.blockItem(item); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) blockItem(item ast.BlockItem) error {
	switch n := item.(type) {
	case *ast.Decl:
		return c.localDecl(n)
	case ast.StmtItem:
		return c.stmt(n.Stmt)
	default:
		return diagnostics.Internal("irgen: unknown block item %T", item)
	}
}

func (c *Context) stmt(s ast.Stmt) error {
	switch n := s.(type) {
	case *ast.Assign:
		return c.assign(n)
	case *ast.ExpStmt:
		if n.Exp == nil {
			return nil
		}
		_, err := c.exp(n.Exp)
		return err
	case *ast.BlockStmt:
		return c.block(n.Block)
	case *ast.Return:
		return c.ret(n)
	case *ast.If:
		return c.ifStmt(n)
	case *ast.While:
		return c.whileStmt(n)
	case *ast.Break:
		return c.breakStmt(n)
	case *ast.Continue:
		return c.continueStmt(n)
	default:
		return diagnostics.Internal("irgen: unknown statement %T", s)
	}
}

func (c *Context) assign(n *ast.Assign) error {
	entry, err := c.syms.Lookup(c.ns, n.LVal.Name)
	if err != nil {
		return err
	}
	if entry.Kind == symtab.ConstInt {
		return diagnostics.Semantic(n.LVal.Name, "assignment to a const")
	}
	if entry.Kind == symtab.Function {
		return diagnostics.Semantic(n.LVal.Name, "assignment to a function")
	}
	addr, err := c.lvalAddress(n.LVal)
	if err != nil {
		return err
	}
	if !addr.Scalar {
		return diagnostics.Semantic(n.LVal.Name, "assignment to an array")
	}
	val, err := c.exp(n.Exp)
	if err != nil {
		return err
	}
	c.emit("store %s, %s", operandText(val), addr.Ptr)
	return nil
}

// ret lowers a return statement via the dead-block trampoline described
// in spec section 4.2: jump into a label holding the real `ret`, then
// open a fresh (dead) block so any textually-following statements still
// have somewhere legal to land.
func (c *Context) ret(n *ast.Return) error {
	retL := fmt.Sprintf("%%ret_%d", n.ID)
	afterL := fmt.Sprintf("%%after_ret_%d", n.ID)
	c.emit("jump %s", retL)
	c.emitRaw(retL + ":")
	if n.Exp != nil {
		v, err := c.exp(n.Exp)
		if err != nil {
			return err
		}
		c.emit("ret %s", operandText(v))
	} else {
		c.emit("ret")
	}
	c.emitRaw(afterL + ":")
	return nil
}

func (c *Context) breakStmt(n *ast.Break) error {
	wf, err := c.currentWhile()
	if err != nil {
		return err
	}
	brL := fmt.Sprintf("%%break_while_%d", n.ID)
	afterL := fmt.Sprintf("%%after_break_while_%d", n.ID)
	c.emit("jump %s", brL)
	c.emitRaw(brL + ":")
	c.emit("jump %s", wf.endLabel)
	c.emitRaw(afterL + ":")
	return nil
}

func (c *Context) continueStmt(n *ast.Continue) error {
	wf, err := c.currentWhile()
	if err != nil {
		return err
	}
	coL := fmt.Sprintf("%%continue_while_%d", n.ID)
	afterL := fmt.Sprintf("%%after_continue_while_%d", n.ID)
	c.emit("jump %s", coL)
	c.emitRaw(coL + ":")
	c.emit("jump %s", wf.condLabel)
	c.emitRaw(afterL + ":")
	return nil
}

// ifStmt handles both the closed (Else != nil) and open (Else == nil)
// variants; the open variant simply routes the false branch of `br`
// straight to the shared end label instead of a separate else block.
func (c *Context) ifStmt(n *ast.If) error {
	cond, err := c.exp(n.Cond)
	if err != nil {
		return err
	}
	thenL := fmt.Sprintf("%%then_%d", n.ID)
	endL := fmt.Sprintf("%%end_%d", n.ID)

	if n.Else == nil {
		c.emit("br %s, %s, %s", operandText(cond), thenL, endL)
		c.emitRaw(thenL + ":")
		if err := c.stmt(n.Then); err != nil {
			return err
		}
		c.emit("jump %s", endL)
		c.emitRaw(endL + ":")
		return nil
	}

	elseL := fmt.Sprintf("%%else_%d", n.ID)
	c.emit("br %s, %s, %s", operandText(cond), thenL, elseL)
	c.emitRaw(thenL + ":")
	if err := c.stmt(n.Then); err != nil {
		return err
	}
	c.emit("jump %s", endL)
	c.emitRaw(elseL + ":")
	if err := c.stmt(n.Else); err != nil {
		return err
	}
	c.emit("jump %s", endL)
	c.emitRaw(endL + ":")
	return nil
}

func (c *Context) whileStmt(n *ast.While) error {
	condL := fmt.Sprintf("%%while_cond_%d", n.ID)
	bodyL := fmt.Sprintf("%%while_body_%d", n.ID)
	endL := fmt.Sprintf("%%while_end_%d", n.ID)

	c.emit("jump %s", condL)
	c.emitRaw(condL + ":")
	cond, err := c.exp(n.Cond)
	if err != nil {
		return err
	}
	c.emit("br %s, %s, %s", operandText(cond), bodyL, endL)
	c.emitRaw(bodyL + ":")

	c.pushWhile(condL, endL)
	err = c.stmt(n.Body)
	c.popWhile()
	if err != nil {
		return err
	}
	c.emit("jump %s", condL)
	c.emitRaw(endL + ":")
	return nil
}
