package riscv

import (
	"sysyc/internal/diagnostics"
	"sysyc/internal/frame"
	"sysyc/internal/koopa"
)

// Emit lowers a whole parsed Koopa program to RV32IM assembly text:
// global data first, then one .text block per function definition
// (library declarations contribute no code, only a callable symbol).
func Emit(prog *koopa.Program) (string, error) {
	c := &Context{prog: prog}

	c.emit(".data")
	for _, g := range prog.Globals {
		c.emitGlobal(g)
	}

	c.emit(".text")
	for _, f := range prog.Funcs {
		if f.IsDecl {
			continue
		}
		if err := c.emitFuncDef(f); err != nil {
			return "", err
		}
	}
	return c.sink.String(), nil
}

func (c *Context) emitGlobal(g *koopa.GlobalDecl) {
	c.emit(".globl %s", asmName(g.Name))
	c.emitLabel(asmName(g.Name))
	c.emitGlobalInit(g.Init, g.Type)
}

func (c *Context) emitGlobalInit(init koopa.GlobalInit, t *koopa.Type) {
	switch {
	case init.Zero:
		c.emit(".zero %d", koopa.Size(t))
	case init.IsLiteral:
		c.emit(".word %d", init.Literal)
	default:
		for _, elem := range init.Elems {
			c.emitGlobalInit(elem, t.Elem)
		}
	}
}

func (c *Context) emitFuncDef(f *koopa.Function) error {
	c.curFunc = f
	c.plan = frame.Build(f)
	c.trampoID = 0

	c.emit(".globl %s", asmName(f.Name))
	c.emitLabel(asmName(f.Name))
	c.emitPrologue()

	for _, bb := range f.Blocks {
		c.emitLabel(c.blockLabel(bb.Name))
		for _, id := range bb.Insts {
			if err := c.lowerInst(f.Value(id)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Context) emitPrologue() {
	c.safeAddi("sp", "sp", -c.plan.FrameSize)
	if c.plan.IsWithCall {
		c.safeStore("ra", "sp", c.plan.FrameSize-4)
	}
}

func (c *Context) emitEpilogue() {
	if c.plan.IsWithCall {
		c.safeLoad("ra", "sp", c.plan.FrameSize-4)
	}
	c.safeAddi("sp", "sp", c.plan.FrameSize)
}

func (c *Context) lowerInst(v *koopa.Value) error {
	switch v.Kind {
	case koopa.InstAlloc:
		return nil // the slot is already reserved by the frame plan
	case koopa.InstLoad:
		c.lowerLoad(v)
	case koopa.InstStore:
		c.lowerStore(v)
	case koopa.InstGetElemPtr:
		c.lowerGetElemPtr(v)
	case koopa.InstGetPtr:
		c.lowerGetPtr(v)
	case koopa.InstBinary:
		c.lowerBinary(v)
	case koopa.InstBranch:
		c.lowerBranch(v)
	case koopa.InstJump:
		c.lowerJump(v)
	case koopa.InstCall:
		c.lowerCall(v)
	case koopa.InstReturn:
		c.lowerReturn(v)
	default:
		return diagnostics.Internal("riscv: unhandled instruction kind %d", v.Kind)
	}
	return nil
}

func (c *Context) lowerLoad(v *koopa.Value) {
	switch v.Ptr.Kind {
	case koopa.OpGlobal:
		c.emit("la t0, %s", asmName(v.Ptr.Name))
		c.emit("lw t0, 0(t0)")
	case koopa.OpRef:
		if ptrVal := c.curFunc.Value(v.Ptr.Ref); ptrVal.Kind == koopa.InstAlloc {
			off, _ := c.plan.Offset(v.Ptr.Ref)
			c.safeLoad("t0", "sp", off)
		} else {
			c.materialize(v.Ptr, "t0")
			c.emit("lw t0, 0(t0)")
		}
	}
	off, _ := c.plan.Offset(v.ID)
	c.safeStore("t0", "sp", off)
}

func (c *Context) lowerStore(v *koopa.Value) {
	c.materialize(v.Val, "t0")
	switch v.Ptr.Kind {
	case koopa.OpGlobal:
		c.emit("la t1, %s", asmName(v.Ptr.Name))
		c.emit("sw t0, 0(t1)")
	case koopa.OpRef:
		if ptrVal := c.curFunc.Value(v.Ptr.Ref); ptrVal.Kind == koopa.InstAlloc {
			off, _ := c.plan.Offset(v.Ptr.Ref)
			c.safeStore("t0", "sp", off)
		} else {
			c.materialize(v.Ptr, "t1")
			c.emit("sw t0, 0(t1)")
		}
	}
}

// lowerGetElemPtr and lowerGetPtr share the same scaled-offset
// computation; they differ only in how the base pointer is
// materialized (spec section 4.5's two table rows).
func (c *Context) lowerGetElemPtr(v *koopa.Value) {
	c.materializeAddr(v.Ptr, "t0")
	c.lowerIndexedAddr(v)
}

func (c *Context) lowerGetPtr(v *koopa.Value) {
	c.materialize(v.Ptr, "t0")
	c.lowerIndexedAddr(v)
}

func (c *Context) lowerIndexedAddr(v *koopa.Value) {
	c.materialize(v.Idx, "t1")
	elemSize := koopa.Size(v.Type.Elem)
	if isPowerOfTwo(elemSize) {
		c.emit("slli t1, t1, %d", log2(elemSize))
	} else {
		c.emit("li t2, %d", elemSize)
		c.emit("mul t1, t1, t2")
	}
	c.emit("add t0, t0, t1")
	off, _ := c.plan.Offset(v.ID)
	c.safeStore("t0", "sp", off)
}

func (c *Context) lowerBinary(v *koopa.Value) {
	if v.BinOp == koopa.BNe || v.BinOp == koopa.BEq {
		c.lowerEqNe(v)
		return
	}
	c.materialize(v.Val, "t0")
	c.materialize(v.Idx, "t1")
	switch v.BinOp {
	case koopa.BLt:
		c.emit("slt t0, t0, t1")
	case koopa.BGt:
		c.emit("slt t0, t1, t0")
	case koopa.BLe:
		c.emit("slt t0, t1, t0")
		c.emit("xori t0, t0, 1")
	case koopa.BGe:
		c.emit("slt t0, t0, t1")
		c.emit("xori t0, t0, 1")
	case koopa.BAdd:
		c.emit("add t0, t0, t1")
	case koopa.BSub:
		c.emit("sub t0, t0, t1")
	case koopa.BMul:
		c.emit("mul t0, t0, t1")
	case koopa.BDiv:
		c.emit("div t0, t0, t1")
	case koopa.BMod:
		c.emit("rem t0, t0, t1")
	case koopa.BAnd:
		c.emit("and t0, t0, t1")
	case koopa.BOr:
		c.emit("or t0, t0, t1")
	}
	off, _ := c.plan.Offset(v.ID)
	c.safeStore("t0", "sp", off)
}

// lowerEqNe special-cases a statically-zero operand, per spec section
// 4.5's binary op table, to avoid an unnecessary xor against x0.
func (c *Context) lowerEqNe(v *koopa.Value) {
	mnemonic := "snez"
	if v.BinOp == koopa.BEq {
		mnemonic = "seqz"
	}
	switch {
	case isZeroImm(v.Val):
		c.materialize(v.Idx, "t0")
		c.emit("%s t0, t0", mnemonic)
	case isZeroImm(v.Idx):
		c.materialize(v.Val, "t0")
		c.emit("%s t0, t0", mnemonic)
	default:
		c.materialize(v.Val, "t0")
		c.materialize(v.Idx, "t1")
		c.emit("xor t0, t0, t1")
		c.emit("%s t0, t0", mnemonic)
	}
	off, _ := c.plan.Offset(v.ID)
	c.safeStore("t0", "sp", off)
}

// lowerBranch always routes through the safe-branch trampoline (spec
// section 4.5) rather than trying to predict whether a direct `bnez`
// would stay in range.
func (c *Context) lowerBranch(v *koopa.Value) {
	c.materialize(v.Cond, "t0")
	trueL := c.blockLabel(v.TrueBB)
	falseL := c.blockLabel(v.FalseBB)
	tmp := c.newTrampolineLabel()
	c.emit("bnez t0, %s", tmp)
	c.emit("j %s", falseL)
	c.emitLabel(tmp)
	c.emit("j %s", trueL)
}

func (c *Context) lowerJump(v *koopa.Value) {
	c.emit("j %s", c.blockLabel(v.TargetBB))
}

func (c *Context) lowerCall(v *koopa.Value) {
	for i, a := range v.Args {
		if i < 8 {
			c.materialize(a, argReg(i))
		} else {
			c.materialize(a, "t0")
			c.safeStore("t0", "sp", (i-8)*4)
		}
	}
	c.emit("call %s", asmName(v.Callee))
	if v.Type != nil && v.Type.Kind != koopa.TyUnit {
		off, _ := c.plan.Offset(v.ID)
		c.safeStore("a0", "sp", off)
	}
}

func argReg(i int) string {
	return "a" + string(rune('0'+i))
}

func (c *Context) lowerReturn(v *koopa.Value) {
	if v.HasRetVal {
		c.materialize(v.RetVal, "a0")
	}
	c.emitEpilogue()
	c.emit("ret")
}
