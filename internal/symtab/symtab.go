// Package symtab implements the scope-chain symbol table stack
// described in spec section 4.1: one table per AST block id, chained by
// parent id, plus a global table and an implicit root sentinel.
package symtab

import (
	"fmt"

	"sysyc/internal/ast"
	"sysyc/internal/diagnostics"
)

// NoParent is the sentinel parent id for the root/global namespace.
const NoParent = -1

// EntryKind tags a symbol table entry.
type EntryKind int

const (
	ConstInt EntryKind = iota
	VarInt
	ArrayInt
	PtrInt
	Function
)

// Entry is one symbol table binding. Which fields are meaningful depends
// on Kind: ConstInt uses Value; VarInt/ArrayInt/PtrInt use PointerName
// (and Rank for ArrayInt/PtrInt); Function uses Ret.
type Entry struct {
	Kind        EntryKind
	Value       int32        // ConstInt
	PointerName string       // VarInt, ArrayInt, PtrInt
	Rank        int          // ArrayInt, PtrInt: number of dims including decayed leading one
	Ret         ast.BaseType // Function
}

type table struct {
	parent  int
	entries map[string]Entry
}

// Directory is the process-wide (per-compilation) map from namespace id
// to table, keyed by AST block id. The global scope lives at id 0; every
// other namespace id is an ast.Block.ID and chains to its lexical parent.
type Directory struct {
	tables map[int]*table
}

// NewDirectory creates an empty directory with the global scope
// pre-created at id GlobalID.
const GlobalID = 0

func NewDirectory() *Directory {
	d := &Directory{tables: make(map[int]*table)}
	d.tables[GlobalID] = &table{parent: NoParent, entries: make(map[string]Entry)}
	return d
}

// OpenScope creates the table for a new namespace id, chained to parent.
// It aborts (internal-invariant) if id already has a table, since block
// ids are assigned uniquely by the parser.
func (d *Directory) OpenScope(id, parent int) {
	if _, exists := d.tables[id]; exists {
		panic(diagnostics.Internal("symtab: namespace %d opened twice", id))
	}
	d.tables[id] = &table{parent: parent, entries: make(map[string]Entry)}
}

// InsertLocal binds name to entry in namespace id. It aborts with a
// SemanticError if name is already bound in that same local table --
// SysY forbids redefinition within a block.
func (d *Directory) InsertLocal(id int, name string, entry Entry) error {
	t := d.require(id)
	if _, exists := t.entries[name]; exists {
		return diagnostics.Semantic(name, "redefinition of")
	}
	t.entries[name] = entry
	return nil
}

// Lookup searches namespace id, then its parent chain, for name.
func (d *Directory) Lookup(id int, name string) (Entry, error) {
	for cur := id; cur != NoParent; {
		t, ok := d.tables[cur]
		if !ok {
			return Entry{}, diagnostics.Internal("symtab: unknown namespace %d", cur)
		}
		if e, ok := t.entries[name]; ok {
			return e, nil
		}
		cur = t.parent
	}
	return Entry{}, diagnostics.Semantic(name, "use of undeclared identifier")
}

func (d *Directory) require(id int) *table {
	t, ok := d.tables[id]
	if !ok {
		panic(diagnostics.Internal("symtab: unknown namespace %d", id))
	}
	return t
}

// PointerName implements the section 4.1 naming convention:
// "@"+ident+"_"+blockID for user variables/arrays, "%"+ident+"_"+blockID
// for the synthetic parameter-slot pointer created inside a function's
// entry block. The leading sigil guarantees the result also satisfies
// the ^[@%][A-Za-z_]\w*_\d+$ invariant from spec section 8.
func PointerName(sigil byte, ident string, blockID int) string {
	return fmt.Sprintf("%c%s_%d", sigil, ident, blockID)
}
