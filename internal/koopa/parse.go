package koopa

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads the textual Koopa this compiler's own emitter produces and
// builds the raw program model the backend walks. It is deliberately a
// hand-rolled line-oriented parser (not a general Koopa grammar): it only
// needs to understand the exact subset internal/irgen ever writes (see
// SPEC_FULL.md section 1).
func Parse(src string) (*Program, error) {
	lines := strings.Split(src, "\n")
	prog := &Program{}
	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(stripComment(lines[i]))
		if line == "" {
			i++
			continue
		}
		switch {
		case strings.HasPrefix(line, "decl "):
			f, err := parseDecl(line)
			if err != nil {
				return nil, err
			}
			prog.Funcs = append(prog.Funcs, f)
			i++
		case strings.HasPrefix(line, "global "):
			g, err := parseGlobal(line)
			if err != nil {
				return nil, err
			}
			prog.Globals = append(prog.Globals, g)
			i++
		case strings.HasPrefix(line, "fun "):
			f, consumed, err := parseFunc(lines, i, prog)
			if err != nil {
				return nil, err
			}
			prog.Funcs = append(prog.Funcs, f)
			i += consumed
		default:
			return nil, fmt.Errorf("koopa: unexpected top-level line %q", line)
		}
	}
	return prog, nil
}

func stripComment(s string) string {
	if idx := strings.Index(s, "//"); idx >= 0 {
		return s[:idx]
	}
	return s
}

// parseType parses one Koopa type: i32 | unit | *T | [T, N].
func parseType(s string) (*Type, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "i32":
		return I32, nil
	case s == "unit" || s == "":
		return Unit, nil
	case strings.HasPrefix(s, "*"):
		elem, err := parseType(s[1:])
		if err != nil {
			return nil, err
		}
		return Pointer(elem), nil
	case strings.HasPrefix(s, "["):
		inner := strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		parts := splitTopLevel(inner, ',')
		if len(parts) != 2 {
			return nil, fmt.Errorf("koopa: malformed array type %q", s)
		}
		elem, err := parseType(parts[0])
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("koopa: malformed array length in %q: %w", s, err)
		}
		return Array(elem, n), nil
	default:
		return nil, fmt.Errorf("koopa: unknown type %q", s)
	}
}

// splitTopLevel splits s on sep, ignoring occurrences nested inside
// [], (), or {} brackets -- needed so array-of-array types, call
// argument lists, and nested aggregate initializers split correctly.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	last := strings.TrimSpace(s[start:])
	if last != "" || len(out) > 0 {
		out = append(out, s[start:])
	}
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out
}

// parseDecl parses "decl @name(T1, T2): RET" or "decl @name(T1, T2)".
func parseDecl(line string) (*Function, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "decl "))
	name, paramsStr, retStr, err := splitSignature(rest)
	if err != nil {
		return nil, err
	}
	params, err := parseTypeList(paramsStr)
	if err != nil {
		return nil, err
	}
	ret, err := parseType(retStr)
	if err != nil {
		return nil, err
	}
	return &Function{Name: name, Params: params, Ret: ret, IsDecl: true}, nil
}

func parseTypeList(s string) ([]*Type, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []*Type
	for _, p := range splitTopLevel(s, ',') {
		t, err := parseType(p)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// splitSignature pulls "@name", the parenthesized param text, and the
// optional ": RET" suffix out of a decl/fun header's remainder.
func splitSignature(rest string) (name, params, ret string, err error) {
	open := strings.Index(rest, "(")
	close := strings.Index(rest, ")")
	if open < 0 || close < open {
		return "", "", "", fmt.Errorf("koopa: malformed signature %q", rest)
	}
	name = strings.TrimSpace(rest[:open])
	params = rest[open+1 : close]
	tail := strings.TrimSpace(rest[close+1:])
	tail = strings.TrimSuffix(tail, "{")
	tail = strings.TrimSpace(tail)
	if strings.HasPrefix(tail, ":") {
		ret = strings.TrimSpace(strings.TrimPrefix(tail, ":"))
	} else {
		ret = "unit"
	}
	return name, params, ret, nil
}

// parseGlobal parses "global @name = alloc T, INIT".
func parseGlobal(line string) (*GlobalDecl, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "global "))
	eq := strings.Index(rest, "=")
	if eq < 0 {
		return nil, fmt.Errorf("koopa: malformed global %q", line)
	}
	name := strings.TrimSpace(rest[:eq])
	rhs := strings.TrimSpace(rest[eq+1:])
	rhs = strings.TrimPrefix(rhs, "alloc")
	rhs = strings.TrimSpace(rhs)
	comma := splitTopLevel(rhs, ',')
	if len(comma) < 2 {
		return nil, fmt.Errorf("koopa: malformed global initializer %q", line)
	}
	typ, err := parseType(comma[0])
	if err != nil {
		return nil, err
	}
	initText := strings.TrimSpace(strings.Join(comma[1:], ","))
	init, err := parseGlobalInit(initText)
	if err != nil {
		return nil, err
	}
	return &GlobalDecl{Name: name, Type: typ, Init: init}, nil
}

func parseGlobalInit(s string) (GlobalInit, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "zeroinit":
		return GlobalInit{Zero: true}, nil
	case strings.HasPrefix(s, "{"):
		inner := strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
		var elems []GlobalInit
		for _, p := range splitTopLevel(inner, ',') {
			e, err := parseGlobalInit(p)
			if err != nil {
				return GlobalInit{}, err
			}
			elems = append(elems, e)
		}
		return GlobalInit{Elems: elems}, nil
	default:
		v, err := strconv.Atoi(s)
		if err != nil {
			return GlobalInit{}, fmt.Errorf("koopa: malformed global initializer %q: %w", s, err)
		}
		return GlobalInit{Literal: int32(v), IsLiteral: true}, nil
	}
}

// funcParser holds the per-function state needed while parsing its body:
// the name->ValueID table resolving every operand reference (parameters,
// temporaries and named local allocs alike) and the block currently being
// filled.
type funcParser struct {
	f       *Function
	names   map[string]ValueID
	globals *Program
	curBB   *BasicBlock
}

func parseFunc(lines []string, start int, prog *Program) (*Function, int, error) {
	header := strings.TrimSpace(stripComment(lines[start]))
	rest := strings.TrimSpace(strings.TrimPrefix(header, "fun "))
	if !strings.HasSuffix(rest, "{") {
		return nil, 0, fmt.Errorf("koopa: function header missing '{': %q", header)
	}
	name, paramsStr, retStr, err := splitSignature(rest)
	if err != nil {
		return nil, 0, err
	}
	ret, err := parseType(retStr)
	if err != nil {
		return nil, 0, err
	}

	f := &Function{Name: name, Ret: ret}
	fp := &funcParser{f: f, names: map[string]ValueID{}, globals: prog}

	for _, p := range splitTopLevel(paramsStr, ',') {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		colon := strings.Index(p, ":")
		if colon < 0 {
			return nil, 0, fmt.Errorf("koopa: malformed parameter %q", p)
		}
		pname := strings.TrimSpace(p[:colon])
		ptype, err := parseType(p[colon+1:])
		if err != nil {
			return nil, 0, err
		}
		f.Params = append(f.Params, ptype)
		id := f.newValue(&Value{Type: ptype, Kind: InstFuncArgRef, Name: pname, ArgIndex: len(f.Params) - 1})
		fp.names[pname] = id
	}

	i := start + 1
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(stripComment(lines[i]))
		if line == "" {
			continue
		}
		if line == "}" {
			return f, i - start + 1, nil
		}
		if strings.HasSuffix(line, ":") {
			bb := &BasicBlock{Name: strings.TrimSuffix(line, ":")}
			f.Blocks = append(f.Blocks, bb)
			fp.curBB = bb
			continue
		}
		if err := fp.parseInst(line); err != nil {
			return nil, 0, err
		}
	}
	return nil, 0, fmt.Errorf("koopa: unterminated function %q", name)
}

// parseInst parses one instruction line, appends the resulting Value (if
// any) to the arena, records it in fp.curBB, and registers its name for
// later operand resolution.
func (fp *funcParser) parseInst(line string) error {
	var lhsName string
	rhs := line
	if eq := strings.Index(line, " = "); eq >= 0 {
		lhsName = strings.TrimSpace(line[:eq])
		rhs = strings.TrimSpace(line[eq+3:])
	}

	fields := strings.Fields(rhs)
	if len(fields) == 0 {
		return fmt.Errorf("koopa: empty instruction")
	}
	op := fields[0]
	args := strings.TrimSpace(strings.TrimPrefix(rhs, op))

	var v *Value
	switch op {
	case "alloc":
		t, err := parseType(args)
		if err != nil {
			return err
		}
		v = &Value{Type: Pointer(t), Kind: InstAlloc, AllocType: t, Name: lhsName}
	case "load":
		ptr, err := fp.operand(args)
		if err != nil {
			return err
		}
		v = &Value{Type: fp.pointeeType(ptr), Kind: InstLoad, Ptr: ptr, Name: lhsName}
	case "store":
		parts := splitTopLevel(args, ',')
		if len(parts) != 2 {
			return fmt.Errorf("koopa: malformed store %q", line)
		}
		val, err := fp.operand(parts[0])
		if err != nil {
			return err
		}
		ptr, err := fp.operand(parts[1])
		if err != nil {
			return err
		}
		v = &Value{Type: Unit, Kind: InstStore, Val: val, Ptr: ptr}
	case "getelemptr", "getptr":
		parts := splitTopLevel(args, ',')
		if len(parts) != 2 {
			return fmt.Errorf("koopa: malformed %s %q", op, line)
		}
		ptr, err := fp.operand(parts[0])
		if err != nil {
			return err
		}
		idx, err := fp.operand(parts[1])
		if err != nil {
			return err
		}
		kind := InstGetElemPtr
		elemT := fp.elemType(ptr)
		if op == "getptr" {
			kind = InstGetPtr
			elemT = fp.pointeeType(ptr)
		}
		v = &Value{Type: Pointer(elemT), Kind: kind, Ptr: ptr, Idx: idx, Name: lhsName}
	case "br":
		parts := splitTopLevel(args, ',')
		if len(parts) != 3 {
			return fmt.Errorf("koopa: malformed br %q", line)
		}
		cond, err := fp.operand(parts[0])
		if err != nil {
			return err
		}
		v = &Value{Type: Unit, Kind: InstBranch, Cond: cond, TrueBB: strings.TrimSpace(parts[1]), FalseBB: strings.TrimSpace(parts[2])}
	case "jump":
		v = &Value{Type: Unit, Kind: InstJump, TargetBB: strings.TrimSpace(args)}
	case "call":
		open := strings.Index(args, "(")
		close := strings.LastIndex(args, ")")
		if open < 0 || close < open {
			return fmt.Errorf("koopa: malformed call %q", line)
		}
		callee := strings.TrimSpace(args[:open])
		var argOps []Operand
		for _, a := range splitTopLevel(args[open+1:close], ',') {
			if strings.TrimSpace(a) == "" {
				continue
			}
			o, err := fp.operand(a)
			if err != nil {
				return err
			}
			argOps = append(argOps, o)
		}
		retT := Unit
		if callee == fp.f.Name {
			// A recursive call: the function being parsed is not yet in
			// fp.globals.Funcs.
			retT = fp.f.Ret
		} else if def := fp.globals.FindFunc(callee); def != nil {
			retT = def.Ret
		}
		v = &Value{Type: retT, Kind: InstCall, Callee: callee, Args: argOps, Name: lhsName}
	case "ret":
		if strings.TrimSpace(args) == "" {
			v = &Value{Type: Unit, Kind: InstReturn}
		} else {
			val, err := fp.operand(args)
			if err != nil {
				return err
			}
			v = &Value{Type: Unit, Kind: InstReturn, RetVal: val, HasRetVal: true}
		}
	default:
		for _, bop := range []BinOp{BAdd, BSub, BMul, BDiv, BMod, BAnd, BOr, BLt, BGt, BLe, BGe, BEq, BNe} {
			if string(bop) == op {
				parts := splitTopLevel(args, ',')
				if len(parts) != 2 {
					return fmt.Errorf("koopa: malformed %s %q", op, line)
				}
				l, err := fp.operand(parts[0])
				if err != nil {
					return err
				}
				r, err := fp.operand(parts[1])
				if err != nil {
					return err
				}
				v = &Value{Type: I32, Kind: InstBinary, BinOp: bop, Val: l, Idx: r, Name: lhsName}
				goto appended
			}
		}
		return fmt.Errorf("koopa: unknown instruction %q", op)
	}
appended:
	id := fp.f.newValue(v)
	if fp.curBB == nil {
		return fmt.Errorf("koopa: instruction outside any basic block: %q", line)
	}
	fp.curBB.Insts = append(fp.curBB.Insts, id)
	if lhsName != "" {
		fp.names[lhsName] = id
	}
	return nil
}

func (fp *funcParser) operand(tok string) (Operand, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return Operand{}, fmt.Errorf("koopa: empty operand")
	}
	if n, err := strconv.Atoi(tok); err == nil {
		return Imm(int32(n)), nil
	}
	if id, ok := fp.names[tok]; ok {
		return Ref(id), nil
	}
	if strings.HasPrefix(tok, "@") {
		return Global(strings.TrimPrefix(tok, "@")), nil
	}
	return Operand{}, fmt.Errorf("koopa: unresolved operand %q", tok)
}

// pointeeType returns the type a pointer operand points to, by looking
// at how it was produced (alloc's AllocType, a global's element type, or
// a prior getelemptr/getptr's own pointer Type.Elem).
func (fp *funcParser) pointeeType(ptr Operand) *Type {
	switch ptr.Kind {
	case OpGlobal:
		if g := findGlobal(fp.globals, ptr.Name); g != nil {
			return g.Type
		}
		return I32
	case OpRef:
		val := fp.f.Value(ptr.Ref)
		if val.Kind == InstAlloc {
			return val.AllocType
		}
		if val.Type.Kind == TyPointer {
			return val.Type.Elem
		}
	}
	return I32
}

// elemType returns the element type one getelemptr step strips off an
// array-typed pointee.
func (fp *funcParser) elemType(ptr Operand) *Type {
	t := fp.pointeeType(ptr)
	if t.Kind == TyArray {
		return t.Elem
	}
	return t
}

func findGlobal(p *Program, name string) *GlobalDecl {
	for _, g := range p.Globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}
