package bytecode

import (
	"sort"
	"strconv"
)

// BasicBlock is a run of instructions with a single entry point.
type BasicBlock struct {
	ID      int
	Start   int    // index into FuncCFG.Insts (inclusive)
	End     int    // index into FuncCFG.Insts (exclusive)
	Succs   []Succ // successor edges
	IsEntry bool
	IsTerm  bool // ends with a return, athrow or ret
}

// Succ describes a control-flow successor edge.
type Succ struct {
	BlockID int
	// Cond is "" for unconditional or fallthrough edges, "T"/"F" for the
	// taken and not-taken sides of a conditional branch, "default" or
	// "case N" for switches, "jsr" for subroutine calls and "catch" for
	// exception handler entries.
	Cond string
}

// FuncCFG is a per-method control flow graph.
type FuncCFG struct {
	Name   string
	Blocks []BasicBlock
	Insts  []Instruction
}

// BuildCFG constructs a control flow graph from a method's instructions.
//  1. Find block leaders: index 0, branch targets, handler entries, and
//     instructions after branches or terminators.
//  2. Partition instructions into blocks by leaders.
//  3. Compute successor edges from each block's last instruction, plus an
//     edge to every handler whose range overlaps the block.
func BuildCFG(name string, insts []Instruction, handlers []Handler) FuncCFG {
	if len(insts) == 0 {
		return FuncCFG{Name: name, Insts: insts}
	}
	index := Index(insts)

	// Pass 1: Identify block leaders.
	leaders := map[int]bool{0: true}
	for i, in := range insts {
		for _, t := range in.Targets {
			if idx, ok := index[t]; ok {
				leaders[idx] = true
			}
		}
		if (len(in.Targets) > 0 || in.Terminal()) && i+1 < len(insts) {
			leaders[i+1] = true
		}
	}
	for _, h := range handlers {
		if idx, ok := index[int(h.HandlerPC)]; ok {
			leaders[idx] = true
		}
	}

	sorted := make([]int, 0, len(leaders))
	for idx := range leaders {
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)

	// Pass 2: Partition into blocks.
	blocks := make([]BasicBlock, len(sorted))
	leaderToBlock := make(map[int]int, len(sorted))
	for i, start := range sorted {
		end := len(insts)
		if i+1 < len(sorted) {
			end = sorted[i+1]
		}
		blocks[i] = BasicBlock{ID: i, Start: start, End: end, IsEntry: start == 0}
		leaderToBlock[start] = i
	}
	blockAt := func(offset int) int {
		return leaderToBlock[index[offset]]
	}

	// Pass 3: Compute successors.
	for i := range blocks {
		blk := &blocks[i]
		last := &insts[blk.End-1]
		next, hasNext := leaderToBlock[blk.End]

		switch {
		case last.Terminal():
			blk.IsTerm = true
		case last.Role == RoleSwitch:
			blk.Succs = append(blk.Succs, Succ{BlockID: blockAt(last.Targets[0]), Cond: "default"})
			for k, t := range last.Targets[1:] {
				blk.Succs = append(blk.Succs, Succ{BlockID: blockAt(t), Cond: "case " + strconv.Itoa(int(last.Keys[k]))})
			}
		case last.IsJsr():
			blk.Succs = append(blk.Succs, Succ{BlockID: blockAt(last.Targets[0]), Cond: "jsr"})
			if hasNext {
				blk.Succs = append(blk.Succs, Succ{BlockID: next})
			}
		case last.Compare != nil:
			blk.Succs = append(blk.Succs, Succ{BlockID: blockAt(last.Targets[0]), Cond: "T"})
			if hasNext {
				blk.Succs = append(blk.Succs, Succ{BlockID: next, Cond: "F"})
			}
		case len(last.Targets) == 1:
			blk.Succs = append(blk.Succs, Succ{BlockID: blockAt(last.Targets[0])})
		case hasNext:
			blk.Succs = append(blk.Succs, Succ{BlockID: next})
		}

		lo, hi := insts[blk.Start].Offset, last.Offset
		for _, h := range handlers {
			if int(h.StartPC) <= hi && int(h.EndPC) > lo {
				blk.Succs = append(blk.Succs, Succ{BlockID: blockAt(int(h.HandlerPC)), Cond: "catch"})
			}
		}
	}

	return FuncCFG{Name: name, Blocks: blocks, Insts: insts}
}
