// Package frame implements the single per-function stack-frame planning
// pass described in spec section 4.4: it assigns a byte offset to every
// instruction the backend will need to spill, sizes the outgoing-args
// area from the function's widest call, and rounds the total frame size
// to a 16-byte boundary.
package frame

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"sysyc/internal/koopa"
)

// Plan is one function's frame layout: a byte offset for every value the
// backend must spill, plus the frame's total size and whether it needs
// to save ra.
type Plan struct {
	Offsets    map[koopa.ValueID]int
	FrameSize  int
	IsWithCall bool
}

// Build walks f's basic blocks in declaration order, assigning slots as
// it goes, then reserves ra's slot and rounds up.
func Build(f *koopa.Function) *Plan {
	maxCallArgs, hasCall := scanCalls(f)

	outgoing := 0
	if maxCallArgs > 8 {
		outgoing = (maxCallArgs - 8) * 4
	}

	offsets := make(map[koopa.ValueID]int)
	offset := outgoing
	for _, bb := range f.Blocks {
		for _, id := range bb.Insts {
			size, ok := slotSize(f.Value(id))
			if !ok {
				continue
			}
			offsets[id] = offset
			offset += size
		}
	}

	if hasCall {
		offset += 4
	}

	return &Plan{Offsets: offsets, FrameSize: roundTo16(offset), IsWithCall: hasCall}
}

func scanCalls(f *koopa.Function) (maxArgs int, hasCall bool) {
	for _, bb := range f.Blocks {
		for _, id := range bb.Insts {
			v := f.Value(id)
			if v.Kind != koopa.InstCall {
				continue
			}
			hasCall = true
			if len(v.Args) > maxArgs {
				maxArgs = len(v.Args)
			}
		}
	}
	return maxArgs, hasCall
}

// slotSize reports the stack-slot size v needs and whether it needs one
// at all. Unit-typed instructions (store, branch, jump, return, a
// void call) need none; a function-argument reference needs none either
// -- it is materialized directly from its calling-convention location
// (an aK register or the caller's outgoing-arg slot) the one time it is
// read, right after entry, and is never spilled.
func slotSize(v *koopa.Value) (size int, needed bool) {
	if v.Kind == koopa.InstFuncArgRef {
		return 0, false
	}
	if v.Kind == koopa.InstAlloc {
		return koopa.Size(v.AllocType), true
	}
	if v.Type == nil || v.Type.Kind == koopa.TyUnit {
		return 0, false
	}
	return 4, true
}

func roundTo16(n int) int {
	if rem := n % 16; rem != 0 {
		return n + (16 - rem)
	}
	return n
}

// Offset looks up id's assigned slot.
func (p *Plan) Offset(id koopa.ValueID) (int, bool) {
	off, ok := p.Offsets[id]
	return off, ok
}

// Dump renders a deterministic, value-id-ordered listing of the plan --
// map iteration order is not deterministic, so every id is sorted first.
// Nothing in the driver or the -v output calls it.
func (p *Plan) Dump() string {
	ids := make([]koopa.ValueID, 0, len(p.Offsets))
	for id := range p.Offsets {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "frame_size=%d with_call=%t\n", p.FrameSize, p.IsWithCall)
	for _, id := range ids {
		fmt.Fprintf(&b, "  %%%d: %d\n", int(id), p.Offsets[id])
	}
	return b.String()
}
