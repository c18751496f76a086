package callgraph

import (
	"github.com/zboralski/lattice"

	"jclass/internal/bytecode"
)

// BuildCFG constructs a lattice.CFGGraph from decoded methods. Each
// FuncInfo is split into basic blocks by bytecode.BuildCFG and then mapped
// to lattice types.
func BuildCFG(funcs []FuncInfo) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, f := range funcs {
		lcfg, _ := BuildFuncCFG(f.Name, f.Insts, f.Handlers)
		cg.Funcs = append(cg.Funcs, lcfg)
	}
	return cg
}

// BuildFuncCFG builds a single-method lattice.FuncCFG. It also returns the
// number of basic blocks, for filtering trivial methods.
func BuildFuncCFG(name string, insts []bytecode.Instruction, handlers []bytecode.Handler) (*lattice.FuncCFG, int) {
	bcfg := bytecode.BuildCFG(name, insts, handlers)
	return convertFuncCFG(&bcfg), len(bcfg.Blocks)
}

// convertFuncCFG maps a bytecode.FuncCFG to a lattice.FuncCFG. Invoke
// instructions become call sites of the block that holds them.
func convertFuncCFG(bcfg *bytecode.FuncCFG) *lattice.FuncCFG {
	lcfg := &lattice.FuncCFG{Name: bcfg.Name}
	for _, bb := range bcfg.Blocks {
		lb := &lattice.BasicBlock{
			ID:    bb.ID,
			Start: bb.Start,
			End:   bb.End,
			Term:  bb.IsTerm,
		}
		for _, s := range bb.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{
				BlockID: s.BlockID,
				Cond:    s.Cond,
			})
		}
		for idx := bb.Start; idx < bb.End && idx < len(bcfg.Insts); idx++ {
			if callee := calleeOf(&bcfg.Insts[idx]); callee != "" {
				lb.Calls = append(lb.Calls, lattice.CallSite{
					Offset: idx,
					Callee: callee,
				})
			}
		}
		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}
