package symtab

import (
	"testing"

	"sysyc/internal/ast"
)

func TestLookupFindsGlobal(t *testing.T) {
	d := NewDirectory()
	if err := d.InsertLocal(GlobalID, "n", Entry{Kind: ConstInt, Value: 7}); err != nil {
		t.Fatalf("InsertLocal: %v", err)
	}
	e, err := d.Lookup(GlobalID, "n")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if e.Kind != ConstInt || e.Value != 7 {
		t.Fatalf("got %+v, want ConstInt/7", e)
	}
}

func TestLookupWalksParentChain(t *testing.T) {
	d := NewDirectory()
	if err := d.InsertLocal(GlobalID, "g", Entry{Kind: ConstInt, Value: 1}); err != nil {
		t.Fatal(err)
	}
	d.OpenScope(1, GlobalID)
	d.OpenScope(2, 1)

	e, err := d.Lookup(2, "g")
	if err != nil {
		t.Fatalf("Lookup through two ancestors: %v", err)
	}
	if e.Value != 1 {
		t.Fatalf("got %d, want 1", e.Value)
	}
}

func TestLookupUndeclaredIsSemanticError(t *testing.T) {
	d := NewDirectory()
	_, err := d.Lookup(GlobalID, "nope")
	if err == nil {
		t.Fatal("expected an error for an undeclared identifier")
	}
	if got := err.Error(); got == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestInnerScopeShadowsOuter(t *testing.T) {
	d := NewDirectory()
	if err := d.InsertLocal(GlobalID, "x", Entry{Kind: ConstInt, Value: 1}); err != nil {
		t.Fatal(err)
	}
	d.OpenScope(1, GlobalID)
	if err := d.InsertLocal(1, "x", Entry{Kind: ConstInt, Value: 2}); err != nil {
		t.Fatal(err)
	}

	inner, err := d.Lookup(1, "x")
	if err != nil || inner.Value != 2 {
		t.Fatalf("inner lookup: got %+v, err %v", inner, err)
	}
	outer, err := d.Lookup(GlobalID, "x")
	if err != nil || outer.Value != 1 {
		t.Fatalf("outer lookup: got %+v, err %v", outer, err)
	}
}

func TestInsertLocalRejectsRedefinition(t *testing.T) {
	d := NewDirectory()
	if err := d.InsertLocal(GlobalID, "x", Entry{Kind: VarInt, PointerName: "@x_0"}); err != nil {
		t.Fatal(err)
	}
	err := d.InsertLocal(GlobalID, "x", Entry{Kind: VarInt, PointerName: "@x_0"})
	if err == nil {
		t.Fatal("expected redefinition to be rejected")
	}
}

func TestOpenScopeTwicePanics(t *testing.T) {
	d := NewDirectory()
	d.OpenScope(1, GlobalID)
	defer func() {
		if recover() == nil {
			t.Fatal("expected opening namespace 1 a second time to panic")
		}
	}()
	d.OpenScope(1, GlobalID)
}

func TestPointerNameFormat(t *testing.T) {
	cases := []struct {
		sigil byte
		ident string
		block int
		want  string
	}{
		{'@', "foo", 0, "@foo_0"},
		{'%', "n", 3, "%n_3"},
	}
	for _, c := range cases {
		if got := PointerName(c.sigil, c.ident, c.block); got != c.want {
			t.Errorf("PointerName(%q, %q, %d) = %q, want %q", c.sigil, c.ident, c.block, got, c.want)
		}
	}
}

func TestFunctionEntryCarriesReturnType(t *testing.T) {
	d := NewDirectory()
	if err := d.InsertLocal(GlobalID, "main", Entry{Kind: Function, Ret: ast.Int}); err != nil {
		t.Fatal(err)
	}
	e, err := d.Lookup(GlobalID, "main")
	if err != nil {
		t.Fatal(err)
	}
	if e.Kind != Function || e.Ret != ast.Int {
		t.Fatalf("got %+v", e)
	}
}
