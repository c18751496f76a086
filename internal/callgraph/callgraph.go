// Package callgraph turns decoded methods into lattice call graphs and
// per-method control flow graphs.
package callgraph

import (
	"github.com/zboralski/lattice"

	"jclass/internal/bytecode"
	"jclass/internal/classfile"
)

// FuncInfo holds the data needed to build call graph and CFG for one method.
type FuncInfo struct {
	Name     string // Class.name:descriptor, the form invoke symbols use
	Insts    []bytecode.Instruction
	Handlers []bytecode.Handler
}

// MethodName returns the node name of method m declared by class.
func MethodName(class string, m *classfile.Method) string {
	return class + "." + m.Name + ":" + m.Descriptor
}

// Funcs collects every method of c that has code.
func Funcs(c *classfile.Class) []FuncInfo {
	var out []FuncInfo
	for i := range c.Methods {
		m := &c.Methods[i]
		if m.Code == nil {
			continue
		}
		out = append(out, FuncInfo{
			Name:     MethodName(c.Name, m),
			Insts:    m.Code.Instructions,
			Handlers: m.Code.Handlers,
		})
	}
	return out
}

// BuildCallGraph constructs a lattice.Graph from decoded methods.
// Each method becomes a node and each invoke instruction an edge to the
// member it names. invokedynamic call sites have no static callee and are
// skipped.
func BuildCallGraph(funcs []FuncInfo) *lattice.Graph {
	g := &lattice.Graph{}
	for _, f := range funcs {
		g.Nodes = append(g.Nodes, f.Name)
		for i := range f.Insts {
			callee := calleeOf(&f.Insts[i])
			if callee == "" || f.Insts[i].Opcode == bytecode.OpInvokedynamic {
				continue
			}
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: f.Name,
				Callee: callee,
			})
		}
	}
	g.Dedup()
	return g
}

// calleeOf returns the resolved target of an invoke instruction, or "".
func calleeOf(in *bytecode.Instruction) string {
	if !in.IsInvoke() {
		return ""
	}
	return in.Symbol
}
