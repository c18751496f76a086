package bytecode

import (
	"fmt"

	"jclass/internal/classfmt"
)

// Handler is one exception table entry. CatchType is "" for a catch-all.
type Handler struct {
	StartPC   uint16 `json:"start_pc"`
	EndPC     uint16 `json:"end_pc"`
	HandlerPC uint16 `json:"handler_pc"`
	CatchType string `json:"catch_type,omitempty"`
}

// Covers reports whether pc lies in the protected range [StartPC, EndPC).
func (h Handler) Covers(pc int) bool {
	return pc >= int(h.StartPC) && pc < int(h.EndPC)
}

func bytecodeErr(format string, args ...any) error {
	return classfmt.Errorf(classfmt.KindInvalidBytecode, -1, format, args...)
}

// CheckHandlers verifies that every handler range and entry point falls on
// instruction boundaries of a code array of codeLen bytes.
func CheckHandlers(insts []Instruction, codeLen int, handlers []Handler) error {
	index := Index(insts)
	for i, h := range handlers {
		start, end, entry := int(h.StartPC), int(h.EndPC), int(h.HandlerPC)
		if start >= end {
			return bytecodeErr("exception handler %d: empty range [%d,%d)", i, start, end)
		}
		if _, ok := index[start]; !ok {
			return bytecodeErr("exception handler %d: start_pc %d is not an instruction start", i, start)
		}
		if _, ok := index[end]; !ok && end != codeLen {
			return bytecodeErr("exception handler %d: end_pc %d is not an instruction boundary", i, end)
		}
		if _, ok := index[entry]; !ok {
			return bytecodeErr("exception handler %d: handler_pc %d is not an instruction start", i, entry)
		}
	}
	return nil
}

// CheckLocals verifies that every local variable access fits in maxLocals.
// Category-2 values occupy two consecutive slots.
func CheckLocals(insts []Instruction, maxLocals int) error {
	for _, in := range insts {
		if in.Local < 0 {
			continue
		}
		width := 1
		switch {
		case in.Role == RoleLoad && in.Pushes[0].Category() == 2,
			in.Role == RoleStore && in.Pops[0].Category() == 2:
			width = 2
		}
		if in.Local+width > maxLocals {
			return bytecodeErr("pc %d: %s uses local %d, max_locals is %d", in.Offset, in.Name(), in.Local, maxLocals)
		}
	}
	return nil
}

// Flow holds the operand stack on entry to each reachable instruction.
type Flow struct {
	index    map[int]int
	stacks   [][]Item
	reached  []bool
	maxDepth int
}

// StackAt returns the entry stack of the instruction at offset, and false
// if no instruction starts there or it is unreachable.
func (f *Flow) StackAt(offset int) ([]Item, bool) {
	i, ok := f.index[offset]
	if !ok || !f.reached[i] {
		return nil, false
	}
	return f.stacks[i], true
}

// MaxDepth returns the deepest stack observed, in slots.
func (f *Flow) MaxDepth() int { return f.maxDepth }

type simulator struct {
	insts    []Instruction
	handlers []Handler
	maxStack int
	flow     *Flow
	work     []int
}

// Simulate runs the operand stack over every path through insts, starting
// from an empty stack at offset 0 and from a single reference at each
// exception handler. It checks pop kinds against what each instruction
// requires, keeps the depth within maxStack, and requires paths that join
// to agree on the category of every stack entry. Kinds that differ within
// the same category merge to Any1. Handlers must already have passed
// CheckHandlers.
func Simulate(insts []Instruction, handlers []Handler, maxStack int) (*Flow, error) {
	s := &simulator{
		insts:    insts,
		handlers: handlers,
		maxStack: maxStack,
		flow: &Flow{
			index:   Index(insts),
			stacks:  make([][]Item, len(insts)),
			reached: make([]bool, len(insts)),
		},
	}
	if len(insts) == 0 {
		return s.flow, nil
	}
	if err := s.merge(0, []Item{}); err != nil {
		return nil, err
	}
	for len(s.work) > 0 {
		i := s.work[len(s.work)-1]
		s.work = s.work[:len(s.work)-1]
		if err := s.step(i); err != nil {
			return nil, err
		}
	}
	return s.flow, nil
}

func (s *simulator) at(offset int) int { return s.flow.index[offset] }

func (s *simulator) merge(i int, st []Item) error {
	f := s.flow
	if !f.reached[i] {
		f.reached[i] = true
		f.stacks[i] = append([]Item{}, st...)
		s.work = append(s.work, i)
		return nil
	}
	cur := f.stacks[i]
	if len(cur) != len(st) {
		return bytecodeErr("pc %d: stack depth %d on one path, %d on another", s.insts[i].Offset, Slots(cur), Slots(st))
	}
	changed := false
	for j := range cur {
		if cur[j] == st[j] {
			continue
		}
		if cur[j].Category() != 1 || st[j].Category() != 1 {
			return bytecodeErr("pc %d: stack entry %d is %s on one path, %s on another", s.insts[i].Offset, j, cur[j], st[j])
		}
		if cur[j] != Any1 {
			cur[j] = Any1
			changed = true
		}
	}
	if changed {
		s.work = append(s.work, i)
	}
	return nil
}

func (s *simulator) step(i int) error {
	in := &s.insts[i]
	pre := s.flow.stacks[i]

	for _, h := range s.handlers {
		if h.Covers(in.Offset) {
			if err := s.merge(s.at(int(h.HandlerPC)), []Item{Ref}); err != nil {
				return err
			}
		}
	}

	st := append([]Item{}, pre...)
	var err error
	if in.Role == RoleStack {
		st, err = stackOp(in.Opcode, st)
	} else {
		st, err = popItems(st, in.Pops)
		st = append(st, in.Pushes...)
	}
	if err != nil {
		return bytecodeErr("pc %d: %s: %v", in.Offset, in.Name(), err)
	}
	depth := Slots(st)
	if depth > s.maxStack {
		return bytecodeErr("pc %d: %s: stack depth %d exceeds max_stack %d", in.Offset, in.Name(), depth, s.maxStack)
	}
	s.flow.maxDepth = max(s.flow.maxDepth, depth)

	for _, t := range in.Targets {
		if err := s.merge(s.at(t), st); err != nil {
			return err
		}
	}
	if !in.FallsThrough() {
		return nil
	}
	if i+1 >= len(s.insts) {
		return bytecodeErr("pc %d: %s: execution falls off the end of the code", in.Offset, in.Name())
	}
	if in.IsJsr() {
		// The subroutine returns here with the stack it was called with.
		return s.merge(i+1, pre)
	}
	return s.merge(i+1, st)
}

func popItems(st []Item, pops []Item) ([]Item, error) {
	for j := len(pops) - 1; j >= 0; j-- {
		if len(st) == 0 {
			return nil, fmt.Errorf("stack underflow")
		}
		got := st[len(st)-1]
		if !pops[j].accepts(got) {
			return nil, fmt.Errorf("expected %s, found %s", pops[j], got)
		}
		st = st[:len(st)-1]
	}
	return st, nil
}

// split returns the index in st where the top n slots begin. The boundary
// must not fall inside a category-2 value.
func split(st []Item, from, n int) (int, error) {
	i, slots := from, 0
	for slots < n {
		if i == 0 {
			return 0, fmt.Errorf("stack underflow")
		}
		i--
		slots += st[i].Category()
	}
	if slots != n {
		return 0, fmt.Errorf("operation splits a category 2 value")
	}
	return i, nil
}

// dupX copies the top dup slots below the skip slots under them.
func dupX(st []Item, dup, skip int) ([]Item, error) {
	top, err := split(st, len(st), dup)
	if err != nil {
		return nil, err
	}
	at, err := split(st, top, skip)
	if err != nil {
		return nil, err
	}
	out := make([]Item, 0, len(st)+len(st)-top)
	out = append(out, st[:at]...)
	out = append(out, st[top:]...)
	out = append(out, st[at:]...)
	return out, nil
}

func stackOp(op uint8, st []Item) ([]Item, error) {
	switch op {
	case OpPop, OpPop2:
		n := 1
		if op == OpPop2 {
			n = 2
		}
		i, err := split(st, len(st), n)
		if err != nil {
			return nil, err
		}
		return st[:i], nil
	case OpDup:
		return dupX(st, 1, 0)
	case OpDupX1:
		return dupX(st, 1, 1)
	case OpDupX2:
		return dupX(st, 1, 2)
	case OpDup2:
		return dupX(st, 2, 0)
	case OpDup2X1:
		return dupX(st, 2, 1)
	case OpDup2X2:
		return dupX(st, 2, 2)
	case OpSwap:
		n := len(st)
		if n < 2 {
			return nil, fmt.Errorf("stack underflow")
		}
		if st[n-1].Category() != 1 || st[n-2].Category() != 1 {
			return nil, fmt.Errorf("swap of a category 2 value")
		}
		st[n-1], st[n-2] = st[n-2], st[n-1]
		return st, nil
	}
	return nil, fmt.Errorf("not a stack opcode")
}
