package koopa

// ValueID is an arena index into a Function's Values slice: the
// "arena-style integer handle" the REDESIGN FLAGS call for in place of
// shared-pointer aliasing, so a frame-plan map can key on a comparable
// value without caring whether the backing store is a pointer.
type ValueID int

// OperandKind tags what an instruction operand refers to.
type OperandKind int

const (
	OpImmediate OperandKind = iota // a literal i32 constant
	OpRef                          // a prior instruction in the same function
	OpGlobal                       // a global symbol, by name
)

// Operand is everything an instruction can take as an input: an
// immediate, a reference to an earlier value (which, for a function
// parameter, is its InstFuncArgRef value -- see Function.Params), or a
// global symbol.
type Operand struct {
	Kind OperandKind
	Imm  int32
	Ref  ValueID
	Name string // OpGlobal
}

func Imm(v int32) Operand        { return Operand{Kind: OpImmediate, Imm: v} }
func Ref(id ValueID) Operand     { return Operand{Kind: OpRef, Ref: id} }
func Global(name string) Operand { return Operand{Kind: OpGlobal, Name: name} }

// InstKind enumerates the instruction set from spec section 3's table.
type InstKind int

const (
	InstAlloc InstKind = iota
	InstLoad
	InstStore
	InstGetElemPtr
	InstGetPtr
	InstBinary
	InstBranch
	InstJump
	InstCall
	InstReturn
	InstFuncArgRef
)

// BinOp is one of the Koopa binary mnemonics this compiler ever emits.
type BinOp string

const (
	BAdd BinOp = "add"
	BSub BinOp = "sub"
	BMul BinOp = "mul"
	BDiv BinOp = "div"
	BMod BinOp = "mod"
	BAnd BinOp = "and"
	BOr  BinOp = "or"
	BLt  BinOp = "lt"
	BGt  BinOp = "gt"
	BLe  BinOp = "le"
	BGe  BinOp = "ge"
	BEq  BinOp = "eq"
	BNe  BinOp = "ne"
)

// Value is one instruction's result, addressed by its ValueID within the
// owning Function. Which fields are meaningful depends on Kind.
type Value struct {
	ID   ValueID
	Type *Type
	Kind InstKind
	Name string // the "%0", "%tmp_l_and_exp_3" etc. label this value prints as, when referenced

	// InstAlloc
	AllocType *Type

	// InstLoad, InstGetElemPtr/InstGetPtr (Ptr), InstStore (Ptr)
	Ptr Operand

	// InstStore, InstBinary (Lhs/Rhs), InstGetElemPtr/InstGetPtr (Idx)
	Val Operand
	Idx Operand

	BinOp BinOp // InstBinary

	// InstBranch
	Cond      Operand
	TrueBB    string
	FalseBB   string

	// InstJump
	TargetBB string

	// InstCall
	Callee string
	Args   []Operand

	// InstReturn
	RetVal    Operand
	HasRetVal bool

	// InstFuncArgRef
	ArgIndex int
}

// BasicBlock is an ordered list of instruction ids within a Function.
type BasicBlock struct {
	Name  string
	Insts []ValueID
}

// Function is one Koopa function: either a declaration (no Blocks, used
// for the eight library functions) or a definition.
type Function struct {
	Name    string
	Params  []*Type
	Ret     *Type
	Blocks  []*BasicBlock
	Values  []*Value // arena; ValueID indexes here
	IsDecl  bool
}

func (f *Function) Value(id ValueID) *Value { return f.Values[id] }

// newValue appends a fresh value to the arena and returns its id.
func (f *Function) newValue(v *Value) ValueID {
	id := ValueID(len(f.Values))
	v.ID = id
	f.Values = append(f.Values, v)
	return id
}

// GlobalInit is a global variable's initializer: zeroinit, a literal, or
// a nested aggregate.
type GlobalInit struct {
	Zero      bool
	Literal   int32
	IsLiteral bool
	Elems     []GlobalInit // aggregate, one per array element of the outermost dimension
}

// GlobalDecl is a top-level `global @name = alloc T, init`.
type GlobalDecl struct {
	Name string
	Type *Type // the pointee type T (the value itself has type pointer(T))
	Init GlobalInit
}

// Program is the parsed raw program: declarations of the eight library
// functions, global variables, and function definitions, in source
// order -- the order the backend's §4.3 traversal depends on.
type Program struct {
	Globals []*GlobalDecl
	Funcs   []*Function
}

func (p *Program) FindFunc(name string) *Function {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}
