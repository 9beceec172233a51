// Package rvsim is a minimal RV32IM interpreter used only by tests: it
// executes the integer-only instruction subset internal/riscv emits
// (spec section 4.5) well enough to check the exit-code scenarios in
// spec section 8, without shelling out to a real toolchain or assuming
// qemu/spike is installed.
//
// It is not a disassembler and does not decode real machine encodings:
// it fetches and dispatches on a small hand-rolled instruction
// representation parsed directly from the GNU-as text this compiler
// emits, rather than from a bytecode stream.
package rvsim

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// memSize is the flat memory backing both the .data segment and the
// stack; the stack starts near the top and grows down, matching the
// backend's sp-relative addressing.
const memSize = 1 << 20

// Machine is one interpreter instance: 32 integer registers, a flat
// byte-addressable memory, and a resolved, already-assembled program.
type Machine struct {
	regs [32]int32
	mem  []byte

	insts  []instr
	labels map[string]int // label -> index into insts

	dataBase map[string]int32 // global symbol -> byte offset into mem

	steps    int
	maxSteps int
}

type instr struct {
	op   string
	args []string
}

var abiNames = map[string]int{
	"zero": 0, "ra": 1, "sp": 2, "gp": 3, "tp": 4,
	"t0": 5, "t1": 6, "t2": 7,
	"s0": 8, "fp": 8, "s1": 9,
	"a0": 10, "a1": 11, "a2": 12, "a3": 13, "a4": 14, "a5": 15, "a6": 16, "a7": 17,
	"s2": 18, "s3": 19, "s4": 20, "s5": 21, "s6": 22, "s7": 23, "s8": 24, "s9": 25, "s10": 26, "s11": 27,
	"t3": 28, "t4": 29, "t5": 30, "t6": 31,
}

func regIndex(name string) (int, error) {
	if idx, ok := abiNames[name]; ok {
		return idx, nil
	}
	return 0, errors.Errorf("rvsim: unknown register %q", name)
}

// Load assembles asm's instruction stream and lays out its .data
// segment at the bottom of memory, leaving the rest for the stack.
// It understands exactly the directive and mnemonic set internal/riscv
// produces -- no pseudo-op expansion beyond what that package itself
// emits (li/mv/j/call/ret/bnez are already primitive enough to need
// none).
func Load(asm string) (*Machine, error) {
	m := &Machine{
		mem:      make([]byte, memSize),
		labels:   make(map[string]int),
		dataBase: make(map[string]int32),
		maxSteps: 10_000_000,
	}

	dataPos := int32(0)
	inData := true

	for _, raw := range strings.Split(asm, "\n") {
		line := strings.TrimSpace(stripComment(raw))
		if line == "" {
			continue
		}
		switch {
		case line == ".data":
			inData = true
			continue
		case line == ".text":
			inData = false
			continue
		case strings.HasPrefix(line, ".globl"):
			continue
		case strings.HasSuffix(line, ":"):
			label := strings.TrimSuffix(line, ":")
			if inData {
				m.dataBase[label] = dataPos
			} else {
				m.labels[label] = len(m.insts)
			}
			continue
		case strings.HasPrefix(line, ".word"):
			v, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, ".word")), 10, 32)
			if err != nil {
				return nil, errors.Wrap(err, "rvsim: bad .word operand")
			}
			putI32(m.mem, dataPos, int32(v))
			dataPos += 4
			continue
		case strings.HasPrefix(line, ".zero"):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, ".zero")))
			if err != nil {
				return nil, errors.Wrap(err, "rvsim: bad .zero operand")
			}
			dataPos += int32(n)
			continue
		}

		op, args := splitInstr(line)
		m.insts = append(m.insts, instr{op: op, args: args})
	}

	return m, nil
}

func stripComment(line string) string {
	if i := strings.Index(line, "#"); i >= 0 {
		return line[:i]
	}
	return line
}

func splitInstr(line string) (string, []string) {
	fields := strings.SplitN(line, " ", 2)
	op := fields[0]
	if len(fields) == 1 {
		return op, nil
	}
	rest := strings.Split(fields[1], ",")
	args := make([]string, len(rest))
	for i, a := range rest {
		args[i] = strings.TrimSpace(a)
	}
	return op, args
}

func putI32(mem []byte, off int32, v int32) {
	mem[off] = byte(v)
	mem[off+1] = byte(v >> 8)
	mem[off+2] = byte(v >> 16)
	mem[off+3] = byte(v >> 24)
}

func getI32(mem []byte, off int32) int32 {
	return int32(mem[off]) | int32(mem[off+1])<<8 | int32(mem[off+2])<<16 | int32(mem[off+3])<<24
}

// Run starts execution at label entry with argv placed in a0, a1, ...
// per the calling convention, and runs until the entry function's own
// `ret` executes with an empty call stack, or the step budget is
// exhausted. It reports a0's final value -- the exit-code scenarios in
// spec section 8 check this against "exits 55" and friends.
func (m *Machine) Run(entry string, argv []int32) (int32, error) {
	start, ok := m.labels[entry]
	if !ok {
		return 0, errors.Errorf("rvsim: no such label %q", entry)
	}
	for i, a := range argv {
		if i >= 8 {
			break
		}
		m.regs[10+i] = a
	}

	m.regs[abiNames["sp"]] = int32(len(m.mem) - 64)
	const haltPC = -1

	var callStack []int32
	pc := start
	for {
		if pc == haltPC {
			return m.regs[10], nil
		}
		if pc < 0 || pc >= len(m.insts) {
			return 0, errors.Errorf("rvsim: pc out of range: %d", pc)
		}
		m.steps++
		if m.steps > m.maxSteps {
			return 0, errors.New("rvsim: step budget exhausted (likely an infinite loop)")
		}

		in := m.insts[pc]
		next := pc + 1

		switch in.op {
		case "li":
			imm, err := m.imm(in.args[1])
			if err != nil {
				return 0, err
			}
			m.setReg(in.args[0], imm)
		case "la":
			addr, ok := m.dataBase[in.args[1]]
			if !ok {
				return 0, errors.Errorf("rvsim: unknown global %q", in.args[1])
			}
			m.setReg(in.args[0], addr)
		case "mv":
			m.setReg(in.args[0], m.getReg(in.args[1]))
		case "add":
			m.setReg(in.args[0], m.getReg(in.args[1])+m.getReg(in.args[2]))
		case "addi":
			imm, err := m.imm(in.args[2])
			if err != nil {
				return 0, err
			}
			m.setReg(in.args[0], m.getReg(in.args[1])+imm)
		case "sub":
			m.setReg(in.args[0], m.getReg(in.args[1])-m.getReg(in.args[2]))
		case "mul":
			m.setReg(in.args[0], m.getReg(in.args[1])*m.getReg(in.args[2]))
		case "div":
			rhs := m.getReg(in.args[2])
			if rhs == 0 {
				return 0, errors.New("rvsim: division by zero")
			}
			m.setReg(in.args[0], m.getReg(in.args[1])/rhs)
		case "rem":
			rhs := m.getReg(in.args[2])
			if rhs == 0 {
				return 0, errors.New("rvsim: division by zero")
			}
			m.setReg(in.args[0], m.getReg(in.args[1])%rhs)
		case "and":
			m.setReg(in.args[0], m.getReg(in.args[1])&m.getReg(in.args[2]))
		case "or":
			m.setReg(in.args[0], m.getReg(in.args[1])|m.getReg(in.args[2]))
		case "xor":
			m.setReg(in.args[0], m.getReg(in.args[1])^m.getReg(in.args[2]))
		case "xori":
			imm, err := m.imm(in.args[2])
			if err != nil {
				return 0, err
			}
			m.setReg(in.args[0], m.getReg(in.args[1])^imm)
		case "slt":
			if m.getReg(in.args[1]) < m.getReg(in.args[2]) {
				m.setReg(in.args[0], 1)
			} else {
				m.setReg(in.args[0], 0)
			}
		case "slli":
			imm, err := m.imm(in.args[2])
			if err != nil {
				return 0, err
			}
			m.setReg(in.args[0], m.getReg(in.args[1])<<uint(imm))
		case "snez":
			if m.getReg(in.args[1]) != 0 {
				m.setReg(in.args[0], 1)
			} else {
				m.setReg(in.args[0], 0)
			}
		case "seqz":
			if m.getReg(in.args[1]) == 0 {
				m.setReg(in.args[0], 1)
			} else {
				m.setReg(in.args[0], 0)
			}
		case "lw":
			base, off, err := m.memOperand(in.args[1])
			if err != nil {
				return 0, err
			}
			m.setReg(in.args[0], getI32(m.mem, base+off))
		case "sw":
			base, off, err := m.memOperand(in.args[1])
			if err != nil {
				return 0, err
			}
			putI32(m.mem, base+off, m.getReg(in.args[0]))
		case "j":
			target, ok := m.labels[in.args[0]]
			if !ok {
				return 0, errors.Errorf("rvsim: unknown label %q", in.args[0])
			}
			next = target
		case "bnez":
			if m.getReg(in.args[0]) != 0 {
				target, ok := m.labels[in.args[1]]
				if !ok {
					return 0, errors.Errorf("rvsim: unknown label %q", in.args[1])
				}
				next = target
			}
		case "call":
			target, ok := m.labels[in.args[0]]
			if !ok {
				return 0, errors.Errorf("rvsim: unknown label %q", in.args[0])
			}
			callStack = append(callStack, int32(next))
			next = target
		case "ret":
			if len(callStack) == 0 {
				next = haltPC
			} else {
				next = int(callStack[len(callStack)-1])
				callStack = callStack[:len(callStack)-1]
			}
		default:
			return 0, errors.Errorf("rvsim: unsupported instruction %q", in.op)
		}

		pc = next
	}
}

func (m *Machine) getReg(name string) int32 {
	idx, err := regIndex(name)
	if err != nil {
		panic(err)
	}
	return m.regs[idx]
}

func (m *Machine) setReg(name string, v int32) {
	idx, err := regIndex(name)
	if err != nil {
		panic(err)
	}
	if idx == 0 {
		return // x0 is hardwired zero, like real RISC-V
	}
	m.regs[idx] = v
}

func (m *Machine) imm(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "rvsim: bad immediate %q", s)
	}
	return int32(v), nil
}

// memOperand parses an `off(base)` address operand used by lw/sw.
func (m *Machine) memOperand(addrArg string) (base, off int32, err error) {
	openIdx := strings.Index(addrArg, "(")
	closeIdx := strings.Index(addrArg, ")")
	if openIdx < 0 || closeIdx < 0 {
		return 0, 0, errors.Errorf("rvsim: bad memory operand %q", addrArg)
	}
	off, err = m.imm(addrArg[:openIdx])
	if err != nil {
		return 0, 0, err
	}
	base = m.getReg(addrArg[openIdx+1 : closeIdx])
	return base, off, nil
}
