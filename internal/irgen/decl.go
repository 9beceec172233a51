package irgen

import (
	"fmt"
	"strconv"
	"strings"

	"sysyc/internal/ast"
	"sysyc/internal/diagnostics"
	"sysyc/internal/symtab"
)

// libraryFunc describes one of the eight fixed library functions (spec
// section 4.1): its SysY-visible name, its Koopa decl signature, the
// name actually emitted in `call`/`decl` lines, and its return type.
type libraryFunc struct {
	name     string
	emitName string
	params   string
	ret      ast.BaseType
}

var libraryFuncs = []libraryFunc{
	{"getint", "getint", "", ast.Int},
	{"getch", "getch", "", ast.Int},
	{"getarray", "getarray", "*i32", ast.Int},
	{"putint", "putint", "i32", ast.Void},
	{"putch", "putch", "i32", ast.Void},
	{"putarray", "putarray", "i32, *i32", ast.Void},
	// starttime/stoptime are rewritten at call sites (SPEC_FULL 4.7) to
	// these underscore-prefixed runtime entry points, each taking the
	// call's source line as its sole argument.
	{"starttime", "_sysy_starttime", "i32", ast.Void},
	{"stoptime", "_sysy_stoptime", "i32", ast.Void},
}

// registerLibraryFuncs injects the eight library functions into the
// global namespace and emits their `decl` lines exactly once, ahead of
// any user declaration (spec section 4.1).
func (c *Context) registerLibraryFuncs() error {
	for _, lf := range libraryFuncs {
		entry := symtab.Entry{Kind: symtab.Function, Ret: lf.ret}
		if err := c.syms.InsertLocal(symtab.GlobalID, lf.name, entry); err != nil {
			return err
		}
		if lf.ret == ast.Int {
			c.emit("decl @%s(%s): i32", lf.emitName, lf.params)
		} else {
			c.emit("decl @%s(%s)", lf.emitName, lf.params)
		}
	}
	return nil
}

// foldToInt evaluates e and requires it to fold to a compile-time
// constant, as every array dimension and every const/global initializer
// leaf must.
func (c *Context) foldToInt(e ast.Exp) (int32, error) {
	r, err := c.exp(e)
	if err != nil {
		return 0, err
	}
	if !r.IsZeroDepth {
		return 0, diagnostics.Semantic("", "expected a constant expression")
	}
	return r.Literal, nil
}

func (c *Context) foldDims(shape []ast.Exp) ([]int, error) {
	dims := make([]int, len(shape))
	for i, e := range shape {
		v, err := c.foldToInt(e)
		if err != nil {
			return nil, err
		}
		dims[i] = int(v)
	}
	return dims, nil
}

// expandArrayInit implements spec section 4.2's brace-partial-fill rule:
// each leaf expression is evaluated with evalLeaf, each sub-brace is
// aligned to the largest dimension boundary its current offset divides,
// and any short sub-brace or trailing gap is padded with zero.
func expandArrayInit[T any](items []ast.Initializer, dims []int, evalLeaf func(ast.Exp) (T, error), zero T) ([]T, error) {
	total := 1
	for _, d := range dims {
		total *= d
	}
	out := make([]T, 0, total)
	for _, item := range items {
		if len(out) >= total {
			break
		}
		switch it := item.(type) {
		case ast.InitExp:
			v, err := evalLeaf(it.Exp)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		case ast.InitList:
			sub := alignedSubDims(dims, len(out))
			subTotal := 1
			for _, d := range sub {
				subTotal *= d
			}
			flat, err := expandArrayInit(it.Items, sub, evalLeaf, zero)
			if err != nil {
				return nil, err
			}
			for len(flat) < subTotal {
				flat = append(flat, zero)
			}
			out = append(out, flat...)
		default:
			return nil, diagnostics.Internal("irgen: unknown initializer node %T", item)
		}
	}
	for len(out) < total {
		out = append(out, zero)
	}
	return out, nil
}

// alignedSubDims finds the largest dimension boundary (below the full
// dims, i.e. consuming at least one leading dimension) that pos divides
// evenly, per spec section 4.2.
func alignedSubDims(dims []int, pos int) []int {
	d := len(dims)
	suffix := make([]int, d+1)
	suffix[d] = 1
	for i := d - 1; i >= 0; i-- {
		suffix[i] = suffix[i+1] * dims[i]
	}
	for j := 1; j <= d; j++ {
		if suffix[j] != 0 && pos%suffix[j] == 0 {
			return dims[j:]
		}
	}
	return nil
}

func koopaArrayType(dims []int) string {
	t := "i32"
	for i := len(dims) - 1; i >= 0; i-- {
		t = fmt.Sprintf("[%s, %d]", t, dims[i])
	}
	return t
}

// renderAggregate prints a flat int32 slice as a nested brace aggregate
// matching dims, for a global array's initializer.
func renderAggregate(flat []int32, dims []int) string {
	if len(dims) <= 1 {
		parts := make([]string, len(flat))
		for i, v := range flat {
			parts[i] = strconv.Itoa(int(v))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	chunk := 1
	for _, d := range dims[1:] {
		chunk *= d
	}
	n := dims[0]
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = renderAggregate(flat[i*chunk:(i+1)*chunk], dims[1:])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// multiIndex decomposes a linear position into one index per dimension,
// outermost first, for the per-element getelemptr chain a local array
// initializer emits.
func multiIndex(pos int, dims []int) []int {
	idx := make([]int, len(dims))
	for i := len(dims) - 1; i >= 0; i-- {
		idx[i] = pos % dims[i]
		pos /= dims[i]
	}
	return idx
}

// globalDecl handles one top-level (file-scope) Decl, per spec section
// 4.2's "Variables at file scope" and "Constants" rules.
func (c *Context) globalDecl(d *ast.Decl) error {
	for _, def := range d.Defs {
		if err := c.globalDef(d, def); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) globalDef(d *ast.Decl, def *ast.Def) error {
	dims, err := c.foldDims(def.Shape)
	if err != nil {
		return err
	}
	ptr := symtab.PointerName('@', def.Name, symtab.GlobalID)

	if len(dims) == 0 {
		if d.Const {
			ie, ok := def.Init.(ast.InitExp)
			if !ok {
				return diagnostics.Semantic(def.Name, "const requires a scalar initializer")
			}
			v, err := c.foldToInt(ie.Exp)
			if err != nil {
				return err
			}
			return c.syms.InsertLocal(symtab.GlobalID, def.Name, symtab.Entry{Kind: symtab.ConstInt, Value: v})
		}
		initText := "zeroinit"
		if def.HasInit {
			ie, ok := def.Init.(ast.InitExp)
			if !ok {
				return diagnostics.Semantic(def.Name, "global initializer must be a scalar")
			}
			v, err := c.foldToInt(ie.Exp)
			if err != nil {
				return err
			}
			initText = strconv.Itoa(int(v))
		}
		c.emit("global %s = alloc i32, %s", ptr, initText)
		return c.syms.InsertLocal(symtab.GlobalID, def.Name, symtab.Entry{Kind: symtab.VarInt, PointerName: ptr})
	}

	initText := "zeroinit"
	if def.HasInit {
		il, ok := def.Init.(ast.InitList)
		if !ok {
			return diagnostics.Semantic(def.Name, "array initializer must be a brace list")
		}
		// An empty `{ }` stays zeroinit, the same as no initializer.
		if len(il.Items) > 0 {
			flat, err := expandArrayInit(il.Items, dims, c.foldToInt, int32(0))
			if err != nil {
				return err
			}
			initText = renderAggregate(flat, dims)
		}
	}
	c.emit("global %s = alloc %s, %s", ptr, koopaArrayType(dims), initText)
	return c.syms.InsertLocal(symtab.GlobalID, def.Name, symtab.Entry{Kind: symtab.ArrayInt, PointerName: ptr, Rank: len(dims)})
}

// localDecl handles one in-function Decl.
func (c *Context) localDecl(d *ast.Decl) error {
	for _, def := range d.Defs {
		if err := c.localDef(d, def); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) localDef(d *ast.Decl, def *ast.Def) error {
	dims, err := c.foldDims(def.Shape)
	if err != nil {
		return err
	}
	if len(dims) == 0 {
		return c.localScalarDef(d, def)
	}
	return c.localArrayDef(d, def, dims)
}

func (c *Context) localScalarDef(d *ast.Decl, def *ast.Def) error {
	if d.Const {
		ie, ok := def.Init.(ast.InitExp)
		if !ok {
			return diagnostics.Semantic(def.Name, "const requires a scalar initializer")
		}
		v, err := c.foldToInt(ie.Exp)
		if err != nil {
			return err
		}
		return c.syms.InsertLocal(c.ns, def.Name, symtab.Entry{Kind: symtab.ConstInt, Value: v})
	}

	ptr := symtab.PointerName('@', def.Name, c.ns)
	c.emit("%s = alloc i32", ptr)

	var init *ExpResult
	if def.HasInit {
		ie, ok := def.Init.(ast.InitExp)
		if !ok {
			return diagnostics.Semantic(def.Name, "variable initializer must be a scalar")
		}
		v, err := c.exp(ie.Exp)
		if err != nil {
			return err
		}
		init = &v
	}
	if err := c.syms.InsertLocal(c.ns, def.Name, symtab.Entry{Kind: symtab.VarInt, PointerName: ptr}); err != nil {
		return err
	}
	if init != nil {
		c.emit("store %s, %s", operandText(*init), ptr)
	}
	return nil
}

// localArrayDef allocates a local array (const or var alike -- spec
// section 4.1 gives arrays a single ArrayInt entry kind regardless of
// constness) and, via a per-element getelemptr+store sequence, either
// its folded constant contents, its possibly-runtime initializer
// expressions, or all zeros when no initializer is present.
func (c *Context) localArrayDef(d *ast.Decl, def *ast.Def, dims []int) error {
	ptr := symtab.PointerName('@', def.Name, c.ns)
	c.emit("%s = alloc %s", ptr, koopaArrayType(dims))

	var items []ast.Initializer
	if def.HasInit {
		il, ok := def.Init.(ast.InitList)
		if !ok {
			return diagnostics.Semantic(def.Name, "array initializer must be a brace list")
		}
		items = il.Items
	}
	flat, err := expandArrayInit(items, dims, c.exp, lit(0))
	if err != nil {
		return err
	}

	if err := c.syms.InsertLocal(c.ns, def.Name, symtab.Entry{Kind: symtab.ArrayInt, PointerName: ptr, Rank: len(dims)}); err != nil {
		return err
	}

	total := len(flat)
	for pos := 0; pos < total; pos++ {
		idxs := multiIndex(pos, dims)
		cur := ptr
		for _, idx := range idxs {
			t := c.newTemp()
			c.emit("%s = getelemptr %s, %d", t, cur, idx)
			cur = t
		}
		c.emit("store %s, %s", operandText(flat[pos]), cur)
	}
	return nil
}
