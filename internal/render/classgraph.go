package render

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/zboralski/lattice"
)

// ClassEdge is an aggregated call relation between two classes.
type ClassEdge struct {
	From, To string
	Calls    int // distinct method pairs
}

// ClassGraph is the class-level view of a method call graph.
type ClassGraph struct {
	Methods map[string]int // declared methods per class; 0 for external classes
	Edges   []ClassEdge
}

// External reports whether class was only seen as a callee owner.
func (cg *ClassGraph) External(class string) bool { return cg.Methods[class] == 0 }

// Classes aggregates g by owner class. Calls within one class are dropped.
// Edges are sorted by From, then To.
func Classes(g *lattice.Graph) *ClassGraph {
	cg := &ClassGraph{Methods: make(map[string]int)}
	for _, n := range g.Nodes {
		cg.Methods[Owner(n)]++
	}

	type key struct{ from, to string }
	counts := make(map[key]int)
	for _, e := range g.Edges {
		from, to := Owner(e.Caller), Owner(e.Callee)
		if from == to {
			continue
		}
		if _, ok := cg.Methods[to]; !ok {
			cg.Methods[to] = 0
		}
		counts[key{from, to}]++
	}
	for k, n := range counts {
		cg.Edges = append(cg.Edges, ClassEdge{From: k.from, To: k.to, Calls: n})
	}
	sort.Slice(cg.Edges, func(i, j int) bool {
		if cg.Edges[i].From != cg.Edges[j].From {
			return cg.Edges[i].From < cg.Edges[j].From
		}
		return cg.Edges[i].To < cg.Edges[j].To
	})
	return cg
}

// ClassgraphDOT renders a class-level callgraph where each class is one node
// and edges represent aggregated inter-class calls. maxNodes limits rendered
// classes (0 = all), keeping those with the most calls.
func ClassgraphDOT(g *lattice.Graph, title string, t Theme, maxNodes int) string {
	cg := Classes(g)

	involvement := make(map[string]int)
	for _, e := range cg.Edges {
		involvement[e.From] += e.Calls
		involvement[e.To] += e.Calls
	}
	ranked := make([]string, 0, len(involvement))
	for name := range involvement {
		ranked = append(ranked, name)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := involvement[ranked[i]], involvement[ranked[j]]
		if a != b {
			return a > b
		}
		return ranked[i] < ranked[j]
	})
	if maxNodes > 0 && len(ranked) > maxNodes {
		ranked = ranked[:maxNodes]
	}
	renderSet := make(map[string]bool, len(ranked))
	for _, name := range ranked {
		renderSet[name] = true
	}

	var b strings.Builder
	header(&b, "classgraph", t, `style="filled,rounded", fontsize=10, height=0.4, margin="0.15,0.08"`, title,
		"nodesep=0.5", "ranksep=0.8")

	maxMethods := 1
	for _, name := range ranked {
		if c := cg.Methods[name]; c > maxMethods {
			maxMethods = c
		}
	}
	for _, name := range ranked {
		id := dotID(name)
		methods := cg.Methods[name]
		if cg.External(name) {
			fmt.Fprintf(&b, "  %s [label=<<font point-size=\"10\">%s</font>>, fillcolor=%q, fontcolor=%q, style=\"filled,rounded,dashed\", tooltip=%q];\n",
				id, dotEscape(simpleName(name)), t.ExternalFill, t.ExternalText, name)
			continue
		}
		// Scale node height by method count (log scale).
		height := 0.4 + 0.3*math.Log2(float64(methods)+1)/math.Log2(float64(maxMethods)+1)
		htmlLabel := fmt.Sprintf("<<font point-size=\"10\">%s</font><br/><font point-size=\"7\" color=\"%s\">%d methods</font>>",
			dotEscape(simpleName(name)), t.ExternalText, methods)
		fmt.Fprintf(&b, "  %s [label=%s, height=%.2f, tooltip=%q];\n", id, htmlLabel, height, name)
	}
	b.WriteByte('\n')

	maxCalls := 1
	for _, e := range cg.Edges {
		if renderSet[e.From] && renderSet[e.To] && e.Calls > maxCalls {
			maxCalls = e.Calls
		}
	}
	for _, e := range cg.Edges {
		if !renderSet[e.From] || !renderSet[e.To] {
			continue
		}
		pw := 0.5 + 2.0*math.Log2(float64(e.Calls)+1)/math.Log2(float64(maxCalls)+1)
		attrs := fmt.Sprintf("penwidth=%.1f", pw)
		if e.Calls > 1 {
			attrs += fmt.Sprintf(", label=<<font point-size=\"7\" color=\"%s\">%d</font>>",
				t.ExternalText, e.Calls)
		}
		fmt.Fprintf(&b, "  %s -> %s [%s];\n", dotID(e.From), dotID(e.To), attrs)
	}

	b.WriteString("}\n")
	return b.String()
}
