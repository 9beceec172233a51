// Package irgen lowers a SysY ast.Program into textual Koopa IR (spec
// section 4.2). Per the Design Notes, all mutable state that the
// original compiler kept in file-scope globals -- fresh-id counters, the
// enclosing-while stack, the scope stack, the output sink, the symbol
// table directory -- is threaded explicitly through every visit as a
// single *Context value, making the emitter trivially multi-instantiable
// and independent of process lifetime.
package irgen

import (
	"fmt"
	"strings"

	"sysyc/internal/ast"
	"sysyc/internal/diagnostics"
	"sysyc/internal/symtab"
)

// whileFrame is one entry of the enclosing-while stack, routing break to
// the loop's end label and continue to its condition label.
type whileFrame struct {
	condLabel string
	endLabel  string
}

// Context carries everything one compilation needs. It is built fresh
// per Emit call; nothing here outlives a single AST's lowering.
type Context struct {
	sink strings.Builder

	syms *symtab.Directory
	ns   int // current namespace id (current block id, or symtab.GlobalID)

	tempCounter int
	kindCounter map[string]int

	whileStack []whileFrame

	// funcRets records each user-defined function's return type. Call
	// sites read the return type from the symbol table entry instead.
	funcRets map[string]ast.BaseType
}

func newContext() *Context {
	return &Context{
		syms:        symtab.NewDirectory(),
		ns:          symtab.GlobalID,
		kindCounter: map[string]int{},
		funcRets:    map[string]ast.BaseType{},
	}
}

// emit writes one line (already newline-free) to the output stream.
func (c *Context) emit(format string, args ...interface{}) {
	fmt.Fprintf(&c.sink, format, args...)
	c.sink.WriteByte('\n')
}

// emitRaw writes a line verbatim (already containing any needed
// trailing punctuation), used for block labels ("%then_3:") where a
// trailing format directive would be awkward.
func (c *Context) emitRaw(s string) {
	c.sink.WriteString(s)
	c.sink.WriteByte('\n')
}

// newTemp allocates the next globally-fresh SSA temporary name, "%N".
func (c *Context) newTemp() string {
	n := c.tempCounter
	c.tempCounter++
	return fmt.Sprintf("%%%d", n)
}

// label allocates the next monotonic label of the given kind ("then",
// "else", "end", "while_cond", ...) as described in spec section 3's
// Invariants list. Kind counters are independent of each other and of
// the temp counter, and are never reset across functions. The statement
// lowering in stmt.go does not call it: those labels are keyed by AST ids.
func (c *Context) label(kind string) string {
	n := c.kindCounter[kind]
	c.kindCounter[kind]++
	return fmt.Sprintf("%%%s_%d", kind, n)
}

// labelWithID forms a label using an AST-assigned id (the If/While/
// Return/Break/Continue node's own unique id) instead of a counter, for
// the label kinds that are keyed by the originating statement (then_K,
// while_cond_K, ret_K, ...).
func labelWithID(kind string, id int) string {
	return fmt.Sprintf("%%%s_%d", kind, id)
}

func (c *Context) pushWhile(condLabel, endLabel string) {
	c.whileStack = append(c.whileStack, whileFrame{condLabel: condLabel, endLabel: endLabel})
}

func (c *Context) popWhile() {
	c.whileStack = c.whileStack[:len(c.whileStack)-1]
}

func (c *Context) currentWhile() (whileFrame, error) {
	if len(c.whileStack) == 0 {
		return whileFrame{}, diagnostics.Semantic("", "break/continue outside any loop")
	}
	return c.whileStack[len(c.whileStack)-1], nil
}

// openScope opens a fresh child namespace for block id, chained to the
// currently active namespace, and returns a function that restores the
// previous namespace -- callers use `defer ctx.openScope(id)()`.
func (c *Context) openScope(id int) func() {
	c.syms.OpenScope(id, c.ns)
	prev := c.ns
	c.ns = id
	return func() { c.ns = prev }
}
