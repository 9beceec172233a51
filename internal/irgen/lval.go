package irgen

import (
	"sysyc/internal/ast"
	"sysyc/internal/diagnostics"
	"sysyc/internal/symtab"
)

// address is the result of walking an LVal's indices: Ptr names a Koopa
// pointer value, and Scalar says whether it already addresses a single
// i32 (so a read needs one more `load`) or a sub-array (so a read is
// itself the decayed pointer value, e.g. for argument passing).
type address struct {
	Ptr    string
	Scalar bool
}

// lvalAddress implements spec section 4.2's "Array element access"
// rule: k successive getelemptr steps for a true array, or a load
// followed by getptr-then-getelemptr for a pointer-parameter LVal, with
// a trailing `getelemptr p, 0` decay step when fewer than the full rank
// was indexed.
func (c *Context) lvalAddress(lv *ast.LVal) (address, error) {
	entry, err := c.syms.Lookup(c.ns, lv.Name)
	if err != nil {
		return address{}, err
	}

	switch entry.Kind {
	case symtab.VarInt:
		if len(lv.Indices) != 0 {
			return address{}, diagnostics.Semantic(lv.Name, "indexing a non-array")
		}
		return address{Ptr: entry.PointerName, Scalar: true}, nil

	case symtab.ConstInt:
		return address{}, diagnostics.Semantic(lv.Name, "indexing a non-array")

	case symtab.ArrayInt:
		cur := entry.PointerName
		for _, idxExp := range lv.Indices {
			idx, err := c.exp(idxExp)
			if err != nil {
				return address{}, err
			}
			t := c.newTemp()
			c.emit("%s = getelemptr %s, %s", t, cur, operandText(idx))
			cur = t
		}
		k := len(lv.Indices)
		if k == entry.Rank {
			return address{Ptr: cur, Scalar: true}, nil
		}
		t := c.newTemp()
		c.emit("%s = getelemptr %s, 0", t, cur)
		return address{Ptr: t, Scalar: false}, nil

	case symtab.PtrInt:
		base := c.newTemp()
		c.emit("%s = load %s", base, entry.PointerName)
		cur := base
		for i, idxExp := range lv.Indices {
			idx, err := c.exp(idxExp)
			if err != nil {
				return address{}, err
			}
			t := c.newTemp()
			if i == 0 {
				c.emit("%s = getptr %s, %s", t, cur, operandText(idx))
			} else {
				c.emit("%s = getelemptr %s, %s", t, cur, operandText(idx))
			}
			cur = t
		}
		k := len(lv.Indices)
		switch {
		case k == entry.Rank:
			return address{Ptr: cur, Scalar: true}, nil
		case k == 0:
			return address{Ptr: base, Scalar: false}, nil
		default:
			t := c.newTemp()
			c.emit("%s = getelemptr %s, 0", t, cur)
			return address{Ptr: t, Scalar: false}, nil
		}

	default:
		return address{}, diagnostics.Semantic(lv.Name, "used as a variable")
	}
}

// lvalRead evaluates an LVal in an expression (rhs) position: a const
// scalar folds, a fully-indexed variable/array/pointer loads, and a
// partially-indexed array/pointer decays to the pointer value itself.
func (c *Context) lvalRead(lv *ast.LVal) (ExpResult, error) {
	entry, err := c.syms.Lookup(c.ns, lv.Name)
	if err != nil {
		return ExpResult{}, err
	}
	if entry.Kind == symtab.ConstInt {
		if len(lv.Indices) != 0 {
			return ExpResult{}, diagnostics.Semantic(lv.Name, "indexing a non-array")
		}
		return lit(entry.Value), nil
	}

	addr, err := c.lvalAddress(lv)
	if err != nil {
		return ExpResult{}, err
	}
	if !addr.Scalar {
		return ExpResult{Slot: addr.Ptr}, nil
	}
	t := c.newTemp()
	c.emit("%s = load %s", t, addr.Ptr)
	return ExpResult{Slot: t}, nil
}
