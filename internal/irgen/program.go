package irgen

import (
	"fmt"
	"strings"

	"sysyc/internal/ast"
	"sysyc/internal/diagnostics"
	"sysyc/internal/symtab"
)

// Emit lowers a whole SysY compilation unit to textual Koopa IR (spec
// section 4.2). It is the single entry point internal/driver calls.
func Emit(prog *ast.Program) (string, error) {
	c := newContext()
	if err := c.registerLibraryFuncs(); err != nil {
		return "", err
	}
	for _, item := range prog.Items {
		switch n := item.(type) {
		case *ast.Decl:
			if err := c.globalDecl(n); err != nil {
				return "", err
			}
		case *ast.FuncDef:
			if err := c.funcDef(n); err != nil {
				return "", err
			}
		default:
			return "", diagnostics.Internal("irgen: unknown top-level item %T", item)
		}
	}
	return c.sink.String(), nil
}

// paramKoopaType renders a parameter's Koopa-visible type: "i32" for a
// scalar, or "*T" for an array-decayed parameter, where T nests the
// trailing (non-decayed) dimensions.
func (c *Context) paramKoopaType(p *ast.Param) (string, error) {
	if !p.Array {
		return "i32", nil
	}
	t := "i32"
	for i := len(p.Dims) - 1; i >= 0; i-- {
		n, err := c.foldToInt(p.Dims[i])
		if err != nil {
			return "", err
		}
		t = fmt.Sprintf("[%s, %d]", t, n)
	}
	return "*" + t, nil
}

// funcDef lowers one function definition: registers it in the global
// namespace ahead of its own body (so it may recurse), emits the Koopa
// header, copies each incoming parameter into its own local stack slot
// (spec section 4.1's "%ident_block_id" convention), walks the body, and
// pads the end with an unconditional terminator so the final block --
// real or a dead one left open by a trailing return/break/continue --
// always satisfies Koopa's block-terminator requirement.
func (c *Context) funcDef(fn *ast.FuncDef) error {
	if err := c.syms.InsertLocal(symtab.GlobalID, fn.Name, symtab.Entry{Kind: symtab.Function, Ret: fn.Ret}); err != nil {
		return err
	}
	c.funcRets[fn.Name] = fn.Ret

	paramTypes := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		t, err := c.paramKoopaType(p)
		if err != nil {
			return err
		}
		paramTypes[i] = t
	}

	paramDecls := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		paramDecls[i] = fmt.Sprintf("%%%s: %s", p.Name, paramTypes[i])
	}
	if fn.Ret == ast.Int {
		c.emit("fun @%s(%s): i32 {", fn.Name, strings.Join(paramDecls, ", "))
	} else {
		c.emit("fun @%s(%s) {", fn.Name, strings.Join(paramDecls, ", "))
	}

	entryID := fn.Body.ID
	restore := c.openScope(entryID)
	c.emitRaw("%entry:")

	for i, p := range fn.Params {
		slot := symtab.PointerName('%', p.Name, entryID)
		c.emit("%s = alloc %s", slot, paramTypes[i])
		c.emit("store %%%s, %s", p.Name, slot)

		entry := symtab.Entry{Kind: symtab.VarInt, PointerName: slot}
		if p.Array {
			entry.Kind = symtab.PtrInt
			entry.Rank = len(p.Dims) + 1
		}
		if err := c.syms.InsertLocal(entryID, p.Name, entry); err != nil {
			restore()
			return err
		}
	}

	for _, item := range fn.Body.Items {
		if err := c.blockItem(item); err != nil {
			restore()
			return err
		}
	}
	restore()

	if fn.Ret == ast.Int {
		c.emit("ret 0")
	} else {
		c.emit("ret")
	}
	c.emit("}")
	return nil
}
