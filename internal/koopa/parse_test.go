package koopa

import (
	"strings"
	"testing"
)

func TestParseSimpleReturn(t *testing.T) {
	src := `
fun @main(): i32 {
%entry:
	%0 = add 1, 2
	ret %0
}
`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(prog.Funcs) != 1 {
		t.Fatalf("got %d funcs, want 1", len(prog.Funcs))
	}
	f := prog.Funcs[0]
	if f.Name != "@main" || f.IsDecl {
		t.Fatalf("got %+v", f)
	}
	if len(f.Blocks) != 1 || len(f.Blocks[0].Insts) != 2 {
		t.Fatalf("got %d blocks", len(f.Blocks))
	}
	add := f.Value(f.Blocks[0].Insts[0])
	if add.Kind != InstBinary || add.BinOp != BAdd {
		t.Fatalf("got %+v", add)
	}
	ret := f.Value(f.Blocks[0].Insts[1])
	if ret.Kind != InstReturn || !ret.HasRetVal || ret.RetVal.Kind != OpRef {
		t.Fatalf("got %+v", ret)
	}
}

func TestParseDecl(t *testing.T) {
	prog, err := Parse("decl @getint(): i32\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := prog.FindFunc("@getint")
	if f == nil || !f.IsDecl || f.Ret.Kind != TyI32 {
		t.Fatalf("got %+v", f)
	}
}

func TestParseGlobalScalar(t *testing.T) {
	prog, err := Parse("global @x = alloc i32, 42\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(prog.Globals) != 1 {
		t.Fatalf("got %d globals", len(prog.Globals))
	}
	g := prog.Globals[0]
	if g.Name != "@x" || !g.Init.IsLiteral || g.Init.Literal != 42 {
		t.Fatalf("got %+v", g)
	}
}

func TestParseGlobalZeroinit(t *testing.T) {
	prog, err := Parse("global @x = alloc i32, zeroinit\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !prog.Globals[0].Init.Zero {
		t.Fatalf("got %+v", prog.Globals[0].Init)
	}
}

// TestParseNestedAggregateGlobal exercises the brace-depth-aware
// splitter on a 2D array initializer -- the case that motivated
// tracking bracket depth in splitTopLevel instead of splitting on every
// top-level comma blindly.
func TestParseNestedAggregateGlobal(t *testing.T) {
	prog, err := Parse("global @m = alloc [[i32, 3], 2], {{1, 2, 3}, {4, 5, 6}}\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	g := prog.Globals[0]
	if len(g.Init.Elems) != 2 {
		t.Fatalf("got %d outer elems, want 2", len(g.Init.Elems))
	}
	for i, row := range g.Init.Elems {
		if len(row.Elems) != 3 {
			t.Fatalf("row %d: got %d elems, want 3", i, len(row.Elems))
		}
	}
	if g.Init.Elems[1].Elems[2].Literal != 6 {
		t.Fatalf("got %+v", g.Init.Elems[1].Elems[2])
	}
	if g.Type.Kind != TyArray || g.Type.Len != 2 || g.Type.Elem.Kind != TyArray || g.Type.Elem.Len != 3 {
		t.Fatalf("got type %s", g.Type)
	}
}

func TestParseLoadStoreAlloc(t *testing.T) {
	src := `
fun @f(): i32 {
%entry:
	@x_1 = alloc i32
	store 5, @x_1
	%0 = load @x_1
	ret %0
}
`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := prog.Funcs[0]
	insts := f.Blocks[0].Insts
	alloc := f.Value(insts[0])
	if alloc.Kind != InstAlloc || alloc.AllocType.Kind != TyI32 {
		t.Fatalf("got %+v", alloc)
	}
	store := f.Value(insts[1])
	if store.Kind != InstStore || store.Val.Kind != OpImmediate || store.Val.Imm != 5 || store.Ptr.Ref != insts[0] {
		t.Fatalf("got %+v", store)
	}
	load := f.Value(insts[2])
	if load.Kind != InstLoad || load.Ptr.Ref != insts[0] {
		t.Fatalf("got %+v", load)
	}
}

func TestParseGetElemPtrChain(t *testing.T) {
	src := `
fun @f(): i32 {
%entry:
	@a_1 = alloc [i32, 10]
	%0 = getelemptr @a_1, 3
	%1 = load %0
	ret %1
}
`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := prog.Funcs[0]
	gep := f.Value(f.Blocks[0].Insts[1])
	if gep.Kind != InstGetElemPtr || gep.Idx.Imm != 3 || gep.Type.Kind != TyPointer || gep.Type.Elem.Kind != TyI32 {
		t.Fatalf("got %+v", gep)
	}
}

func TestParseBranchAndJump(t *testing.T) {
	src := `
fun @f(): i32 {
%entry:
	br 1, %then_0, %end_0
%then_0:
	jump %end_0
%end_0:
	ret 0
}
`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := prog.Funcs[0]
	if len(f.Blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(f.Blocks))
	}
	br := f.Value(f.Blocks[0].Insts[0])
	if br.Kind != InstBranch || br.TrueBB != "%then_0" || br.FalseBB != "%end_0" {
		t.Fatalf("got %+v", br)
	}
}

func TestParseCallWithArgs(t *testing.T) {
	src := `
decl @putint(i32)
fun @f(): i32 {
%entry:
	call @putint(1)
	ret 0
}
`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := prog.FindFunc("@f")
	call := f.Value(f.Blocks[0].Insts[0])
	if call.Kind != InstCall || call.Callee != "@putint" || len(call.Args) != 1 {
		t.Fatalf("got %+v", call)
	}
	if call.Type.Kind != TyUnit {
		t.Fatalf("want unit return type for a void decl, got %s", call.Type)
	}
}

// TestParseCallResolvesIntReturnType guards against re-mismatching the
// "@"-prefixed callee name against Function.Name when resolving a call's
// result type during re-parse.
func TestParseCallResolvesIntReturnType(t *testing.T) {
	src := `
decl @getint(): i32
fun @f(): i32 {
%entry:
	%0 = call @getint()
	ret %0
}
`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := prog.FindFunc("@f")
	call := f.Value(f.Blocks[0].Insts[0])
	if call.Kind != InstCall || call.Type == nil || call.Type.Kind != TyI32 {
		t.Fatalf("got %+v, want an i32-typed call", call)
	}
}

func TestParseFuncParams(t *testing.T) {
	prog, err := Parse("fun @add(%a: i32, %b: i32): i32 {\n%entry:\n\tret %a\n}\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f := prog.Funcs[0]
	if len(f.Params) != 2 {
		t.Fatalf("got %d params", len(f.Params))
	}
	ret := f.Value(f.Blocks[0].Insts[0])
	if !ret.HasRetVal || ret.RetVal.Kind != OpRef {
		t.Fatalf("got %+v", ret)
	}
	argRef := f.Value(ret.RetVal.Ref)
	if argRef.Kind != InstFuncArgRef || argRef.ArgIndex != 0 {
		t.Fatalf("got %+v", argRef)
	}
}

func TestParseRejectsUnknownTopLevel(t *testing.T) {
	_, err := Parse("bogus line\n")
	if err == nil {
		t.Fatal("expected an error for an unrecognized top-level line")
	}
}

func TestSplitTopLevelIgnoresNestedSeparators(t *testing.T) {
	got := splitTopLevel("{1, 2}, {3, 4}", ',')
	want := []string{"{1, 2}", "{3, 4}"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %v, want %v", got, want)
	}
}
