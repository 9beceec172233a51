package driver

import (
	"bytes"
	"strings"
	"testing"

	"sysyc/internal/ast"
	"sysyc/internal/report"
	"sysyc/internal/rvsim"
)

func silentPrinter() *report.Printer {
	return report.New(&bytes.Buffer{}, false)
}

func compileBoth(t *testing.T, prog *ast.Program) (koopaText, asm string) {
	t.Helper()
	koopaText, err := CompileProgram(prog, ModeKoopa, silentPrinter())
	if err != nil {
		t.Fatalf("CompileProgram(-koopa): %v", err)
	}
	asm, err = CompileProgram(prog, ModeRiscv, silentPrinter())
	if err != nil {
		t.Fatalf("CompileProgram(-riscv): %v", err)
	}
	return koopaText, asm
}

func runAndExpect(t *testing.T, asm string, want int32) {
	t.Helper()
	m, err := rvsim.Load(asm)
	if err != nil {
		t.Fatalf("rvsim.Load: %v", err)
	}
	got, err := m.Run("main", nil)
	if err != nil {
		t.Fatalf("rvsim.Run: %v", err)
	}
	if got != want {
		t.Fatalf("exit code = %d, want %d", got, want)
	}
}

// Scenario 1: int main(){return 0;} -- compiles and exits 0.
func TestScenarioReturnZero(t *testing.T) {
	prog := &ast.Program{Items: []ast.Item{
		&ast.FuncDef{Ret: ast.Int, Name: "main", Body: &ast.Block{ID: 1, Items: []ast.BlockItem{
			ast.StmtItem{Stmt: &ast.Return{ID: 2, Exp: &ast.IntLit{Value: 0}}},
		}}},
	}}
	_, asm := compileBoth(t, prog)
	runAndExpect(t, asm, 0)
}

// Scenario 2: int main(){int a = 1+2*3; return a;} -- exits 7, and the
// Koopa for 1+2*3 contains no add/mul (fully folded).
func TestScenarioConstantFoldedArithmetic(t *testing.T) {
	prog := &ast.Program{Items: []ast.Item{
		&ast.FuncDef{Ret: ast.Int, Name: "main", Body: &ast.Block{ID: 1, Items: []ast.BlockItem{
			&ast.Decl{Base: ast.Int, Defs: []*ast.Def{{
				Name: "a",
				Init: ast.InitExp{Exp: &ast.BinOp{
					Op:   "+",
					Left: &ast.IntLit{Value: 1},
					Right: &ast.BinOp{Op: "*", Left: &ast.IntLit{Value: 2}, Right: &ast.IntLit{Value: 3}},
				}},
				HasInit: true,
			}}},
			ast.StmtItem{Stmt: &ast.Return{ID: 2, Exp: &ast.LVal{Name: "a"}}},
		}}},
	}}
	koopaText, asm := compileBoth(t, prog)
	if strings.Contains(koopaText, "= add ") || strings.Contains(koopaText, "= mul ") {
		t.Fatalf("expected 1+2*3 fully folded, got:\n%s", koopaText)
	}
	runAndExpect(t, asm, 7)
}

// Scenario 3: int main(){int n=10,s=0,i=1; while(i<=n){s=s+i; i=i+1;}
// return s;} -- exits 55.
func TestScenarioWhileSum(t *testing.T) {
	prog := &ast.Program{Items: []ast.Item{
		&ast.FuncDef{Ret: ast.Int, Name: "main", Body: &ast.Block{ID: 1, Items: []ast.BlockItem{
			&ast.Decl{Base: ast.Int, Defs: []*ast.Def{
				{Name: "n", Init: ast.InitExp{Exp: &ast.IntLit{Value: 10}}, HasInit: true},
				{Name: "s", Init: ast.InitExp{Exp: &ast.IntLit{Value: 0}}, HasInit: true},
				{Name: "i", Init: ast.InitExp{Exp: &ast.IntLit{Value: 1}}, HasInit: true},
			}},
			ast.StmtItem{Stmt: &ast.While{
				ID:   2,
				Cond: &ast.BinOp{Op: "<=", Left: &ast.LVal{Name: "i"}, Right: &ast.LVal{Name: "n"}},
				Body: &ast.BlockStmt{Block: &ast.Block{ID: 3, Items: []ast.BlockItem{
					ast.StmtItem{Stmt: &ast.Assign{
						LVal: &ast.LVal{Name: "s"},
						Exp:  &ast.BinOp{Op: "+", Left: &ast.LVal{Name: "s"}, Right: &ast.LVal{Name: "i"}},
					}},
					ast.StmtItem{Stmt: &ast.Assign{
						LVal: &ast.LVal{Name: "i"},
						Exp:  &ast.BinOp{Op: "+", Left: &ast.LVal{Name: "i"}, Right: &ast.IntLit{Value: 1}},
					}},
				}}},
			}},
			ast.StmtItem{Stmt: &ast.Return{ID: 4, Exp: &ast.LVal{Name: "s"}}},
		}}},
	}}
	_, asm := compileBoth(t, prog)
	runAndExpect(t, asm, 55)
}

// Scenario 4: int main(){int a[2][3]={{1,2,3},{4,5,6}}; return a[1][2];}
// -- exits 6, and the backend emits exactly two getelemptr for the access.
func TestScenarioArrayIndexing(t *testing.T) {
	row := func(vals ...int32) ast.Initializer {
		items := make([]ast.Initializer, len(vals))
		for i, v := range vals {
			items[i] = ast.InitExp{Exp: &ast.IntLit{Value: v}}
		}
		return ast.InitList{Items: items}
	}
	prog := &ast.Program{Items: []ast.Item{
		&ast.FuncDef{Ret: ast.Int, Name: "main", Body: &ast.Block{ID: 1, Items: []ast.BlockItem{
			&ast.Decl{Base: ast.Int, Defs: []*ast.Def{{
				Name:  "a",
				Shape: []ast.Exp{&ast.IntLit{Value: 2}, &ast.IntLit{Value: 3}},
				Init:  ast.InitList{Items: []ast.Initializer{row(1, 2, 3), row(4, 5, 6)}},
				HasInit: true,
			}}},
			ast.StmtItem{Stmt: &ast.Return{ID: 2, Exp: &ast.LVal{
				Name:    "a",
				Indices: []ast.Exp{&ast.IntLit{Value: 1}, &ast.IntLit{Value: 2}},
			}}},
		}}},
	}}
	koopaText, asm := compileBoth(t, prog)
	// The initializer's per-element stores emit their own getelemptr
	// chains; only the return statement's block is the access.
	_, access, _ := strings.Cut(koopaText, "%ret_2:")
	access, _, _ = strings.Cut(access, "%after_ret_2:")
	if n := strings.Count(access, "getelemptr"); n != 2 {
		t.Fatalf("got %d getelemptr instructions for a[1][2], want exactly 2:\n%s", n, koopaText)
	}
	runAndExpect(t, asm, 6)
}

// Scenario 5: int fib(int n){if(n<2) return n; return fib(n-1)+fib(n-2);}
// int main(){return fib(10);} -- exits 55; prologue saves ra, epilogue
// restores it.
func TestScenarioRecursiveFib(t *testing.T) {
	fib := &ast.FuncDef{
		Ret: ast.Int, Name: "fib",
		Params: []*ast.Param{{Base: ast.Int, Name: "n"}},
		Body: &ast.Block{ID: 1, Items: []ast.BlockItem{
			ast.StmtItem{Stmt: &ast.If{
				ID:   2,
				Cond: &ast.BinOp{Op: "<", Left: &ast.LVal{Name: "n"}, Right: &ast.IntLit{Value: 2}},
				Then: &ast.Return{ID: 3, Exp: &ast.LVal{Name: "n"}},
			}},
			ast.StmtItem{Stmt: &ast.Return{ID: 4, Exp: &ast.BinOp{
				Op: "+",
				Left: &ast.Call{Name: "fib", Args: []ast.Exp{
					&ast.BinOp{Op: "-", Left: &ast.LVal{Name: "n"}, Right: &ast.IntLit{Value: 1}},
				}},
				Right: &ast.Call{Name: "fib", Args: []ast.Exp{
					&ast.BinOp{Op: "-", Left: &ast.LVal{Name: "n"}, Right: &ast.IntLit{Value: 2}},
				}},
			}}},
		}},
	}
	main := &ast.FuncDef{
		Ret: ast.Int, Name: "main",
		Body: &ast.Block{ID: 5, Items: []ast.BlockItem{
			ast.StmtItem{Stmt: &ast.Return{ID: 6, Exp: &ast.Call{Name: "fib", Args: []ast.Exp{&ast.IntLit{Value: 10}}}}},
		}},
	}
	prog := &ast.Program{Items: []ast.Item{fib, main}}

	koopaText, asm := compileBoth(t, prog)
	if !strings.Contains(koopaText, "call @fib(") {
		t.Fatalf("expected fib to call itself, got:\n%s", koopaText)
	}
	if !strings.Contains(asm, "sw ra,") {
		t.Fatalf("expected the recursive function's prologue to save ra, got:\n%s", asm)
	}
	if !strings.Contains(asm, "lw ra,") {
		t.Fatalf("expected the epilogue to restore ra, got:\n%s", asm)
	}
	runAndExpect(t, asm, 55)
}

// Scenario 6: int p(int x){putint(x); return 0;}
// int main(){int i=0; if(0 && p(1)) return 1;
//   while(i<3){ if(i==1){i=i+1;continue;} if(i==2) break; putint(i); i=i+1;}
//   return 0;}
// -- p is never called (0 && ... short-circuits at compile time); exits 0.
func TestScenarioShortCircuitSkipsCall(t *testing.T) {
	p := &ast.FuncDef{
		Ret: ast.Int, Name: "p",
		Params: []*ast.Param{{Base: ast.Int, Name: "x"}},
		Body: &ast.Block{ID: 1, Items: []ast.BlockItem{
			ast.StmtItem{Stmt: &ast.ExpStmt{Exp: &ast.Call{Name: "putint", Args: []ast.Exp{&ast.LVal{Name: "x"}}}}},
			ast.StmtItem{Stmt: &ast.Return{ID: 2, Exp: &ast.IntLit{Value: 0}}},
		}},
	}
	main := &ast.FuncDef{
		Ret: ast.Int, Name: "main",
		Body: &ast.Block{ID: 3, Items: []ast.BlockItem{
			&ast.Decl{Base: ast.Int, Defs: []*ast.Def{{Name: "i", Init: ast.InitExp{Exp: &ast.IntLit{Value: 0}}, HasInit: true}}},
			ast.StmtItem{Stmt: &ast.If{
				ID: 4,
				Cond: &ast.BinOp{
					Op:   "&&",
					Left: &ast.IntLit{Value: 0},
					Right: &ast.Call{Name: "p", Args: []ast.Exp{&ast.IntLit{Value: 1}}},
				},
				Then: &ast.Return{ID: 5, Exp: &ast.IntLit{Value: 1}},
			}},
			ast.StmtItem{Stmt: &ast.While{
				ID:   6,
				Cond: &ast.BinOp{Op: "<", Left: &ast.LVal{Name: "i"}, Right: &ast.IntLit{Value: 3}},
				Body: &ast.BlockStmt{Block: &ast.Block{ID: 7, Items: []ast.BlockItem{
					ast.StmtItem{Stmt: &ast.If{
						ID:   8,
						Cond: &ast.BinOp{Op: "==", Left: &ast.LVal{Name: "i"}, Right: &ast.IntLit{Value: 1}},
						Then: &ast.BlockStmt{Block: &ast.Block{ID: 9, Items: []ast.BlockItem{
							ast.StmtItem{Stmt: &ast.Assign{LVal: &ast.LVal{Name: "i"}, Exp: &ast.BinOp{Op: "+", Left: &ast.LVal{Name: "i"}, Right: &ast.IntLit{Value: 1}}}},
							ast.StmtItem{Stmt: &ast.Continue{ID: 10}},
						}}},
					}},
					ast.StmtItem{Stmt: &ast.If{
						ID:   11,
						Cond: &ast.BinOp{Op: "==", Left: &ast.LVal{Name: "i"}, Right: &ast.IntLit{Value: 2}},
						Then: &ast.Break{ID: 12},
					}},
					ast.StmtItem{Stmt: &ast.ExpStmt{Exp: &ast.Call{Name: "putint", Args: []ast.Exp{&ast.LVal{Name: "i"}}}}},
					ast.StmtItem{Stmt: &ast.Assign{LVal: &ast.LVal{Name: "i"}, Exp: &ast.BinOp{Op: "+", Left: &ast.LVal{Name: "i"}, Right: &ast.IntLit{Value: 1}}}},
				}}},
			}},
			ast.StmtItem{Stmt: &ast.Return{ID: 13, Exp: &ast.IntLit{Value: 0}}},
		}},
	}
	prog := &ast.Program{Items: []ast.Item{p, main}}

	koopaText, asm := compileBoth(t, prog)
	if strings.Contains(koopaText, "call @p(") {
		t.Fatalf("0 && p(1) must short-circuit at compile time -- p must never be called:\n%s", koopaText)
	}
	if !strings.Contains(koopaText, "call @putint(") {
		t.Fatalf("expected p's own body to still compile its putint call:\n%s", koopaText)
	}

	// putint is a library decl with no body (spec section 4.1): stub it
	// so the simulator can run main() to completion and observe a0.
	stubbed := asm + "\nputint:\n\tret\n"
	runAndExpect(t, stubbed, 0)
}
