package stackmap

import (
	"jclass/internal/bytecode"
	"jclass/internal/classfmt"
	"jclass/internal/descriptor"
)

// State is the full verifier state a frame describes.
type State struct {
	Offset int                `json:"offset"`
	Locals []VerificationType `json:"locals"`
	Stack  []VerificationType `json:"stack"`
}

func stackMapErr(format string, args ...any) error {
	return classfmt.Errorf(classfmt.KindInvalidStackMap, -1, format, args...)
}

// TypeOf maps a field type to its verification type.
func TypeOf(t descriptor.FieldType) VerificationType {
	switch {
	case t.Dims > 0:
		return VerificationType{Tag: Object, Class: t.String()}
	case t.Base == 'L':
		return VerificationType{Tag: Object, Class: t.ClassName}
	case t.Base == 'J':
		return VerificationType{Tag: Long}
	case t.Base == 'D':
		return VerificationType{Tag: Double}
	case t.Base == 'F':
		return VerificationType{Tag: Float}
	}
	return VerificationType{Tag: Integer}
}

// InitialLocals returns the implicit frame at offset 0: the receiver (for
// instance methods) followed by the parameters. In a constructor of any class
// but java/lang/Object the receiver is uninitializedThis.
func InitialLocals(class, method string, static bool, desc descriptor.Method) []VerificationType {
	locals := make([]VerificationType, 0, len(desc.Params)+1)
	if !static {
		if method == "<init>" && class != "java/lang/Object" {
			locals = append(locals, VerificationType{Tag: UninitializedThis})
		} else {
			locals = append(locals, VerificationType{Tag: Object, Class: class})
		}
	}
	for _, p := range desc.Params {
		locals = append(locals, TypeOf(p))
	}
	return locals
}

// Expand replays frames starting from the initial locals and returns the
// full state at each frame's offset.
func Expand(initial []VerificationType, frames []Frame) ([]State, error) {
	states := make([]State, 0, len(frames))
	locals := initial
	for i, f := range frames {
		var stack []VerificationType
		switch f.Kind {
		case Same, SameExtended:
		case SameLocals1StackItem, SameLocals1StackItemExtended:
			stack = f.Stack
		case Chop:
			if f.Chopped > len(locals) {
				return nil, stackMapErr("frame %d at %d: chop %d of %d locals", i, f.Offset, f.Chopped, len(locals))
			}
			locals = locals[:len(locals)-f.Chopped]
		case Append:
			locals = append(append([]VerificationType{}, locals...), f.Locals...)
		case Full:
			locals, stack = f.Locals, f.Stack
		}
		states = append(states, State{
			Offset: f.Offset,
			Locals: append([]VerificationType{}, locals...),
			Stack:  append([]VerificationType{}, stack...),
		})
	}
	return states, nil
}

// Check compares expanded states with the method's instructions: each state
// must sit on an instruction start, every uninitialized(offset) must name a
// new instruction, slot totals must fit max_locals and max_stack, and where
// the simulated stack reaches the offset it must have the frame's category
// shape. flow may be nil to skip the last check.
func Check(states []State, insts []bytecode.Instruction, flow *bytecode.Flow, maxLocals, maxStack int) error {
	index := bytecode.Index(insts)
	isNew := func(off uint16) bool {
		i, ok := index[int(off)]
		return ok && insts[i].Opcode == bytecode.OpNew
	}
	for _, s := range states {
		if _, ok := index[s.Offset]; !ok {
			return stackMapErr("frame offset %d is not an instruction start", s.Offset)
		}
		if n := Slots(s.Locals); n > maxLocals {
			return stackMapErr("frame at %d: %d local slots, max_locals is %d", s.Offset, n, maxLocals)
		}
		if n := Slots(s.Stack); n > maxStack {
			return stackMapErr("frame at %d: %d stack slots, max_stack is %d", s.Offset, n, maxStack)
		}
		for _, list := range [][]VerificationType{s.Locals, s.Stack} {
			for _, v := range list {
				if v.Tag == Uninitialized && !isNew(v.Offset) {
					return stackMapErr("frame at %d: uninitialized(%d) does not name a new instruction", s.Offset, v.Offset)
				}
			}
		}
		if flow == nil {
			continue
		}
		sim, ok := flow.StackAt(s.Offset)
		if !ok {
			continue
		}
		if !sameShape(sim, s.Stack) {
			return stackMapErr("frame at %d: stack %v, bytecode has %v", s.Offset, s.Stack, sim)
		}
	}
	return nil
}

func sameShape(sim []bytecode.Item, frame []VerificationType) bool {
	if len(sim) != len(frame) {
		return false
	}
	for i := range sim {
		if sim[i].Category() != frame[i].Category() {
			return false
		}
	}
	return true
}
