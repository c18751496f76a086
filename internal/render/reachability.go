package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zboralski/lattice"
)

// FindEntryPoints returns declared methods that no other declared method
// invokes. Static initializers and main methods land here naturally.
func FindEntryPoints(g *lattice.Graph) []string {
	called := make(map[string]bool)
	for _, e := range g.Edges {
		if e.Caller != e.Callee {
			called[e.Callee] = true
		}
	}
	var entries []string
	for _, n := range g.Nodes {
		if !called[n] {
			entries = append(entries, n)
		}
	}
	sort.Strings(entries)
	return entries
}

// ReachableSet returns every method reachable from entryPoints along call
// edges, external callees included.
func ReachableSet(entryPoints []string, g *lattice.Graph) map[string]bool {
	callees := make(map[string][]string)
	for _, e := range g.Edges {
		callees[e.Caller] = append(callees[e.Caller], e.Callee)
	}

	seen := make(map[string]bool)
	var visit []string
	push := func(n string) {
		if !seen[n] {
			seen[n] = true
			visit = append(visit, n)
		}
	}
	for _, ep := range entryPoints {
		push(ep)
	}
	for i := 0; i < len(visit); i++ {
		for _, c := range callees[visit[i]] {
			push(c)
		}
	}
	return seen
}

// ReachabilityDOT renders the declared methods of g that are in reachable,
// one cluster per class. Entry points get a highlighted border. Calls to
// methods outside g are left out.
func ReachabilityDOT(g *lattice.Graph, reachable map[string]bool, entryPoints []string, title string, t Theme) string {
	declared := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		declared[n] = reachable[n]
	}
	entry := make(map[string]bool, len(entryPoints))
	shown := make(map[string]bool)
	for _, ep := range entryPoints {
		entry[ep] = true
		if declared[ep] {
			shown[ep] = true
		}
	}

	var edges []lattice.Edge
	for _, e := range g.Edges {
		if declared[e.Caller] && declared[e.Callee] {
			edges = append(edges, e)
			shown[e.Caller] = true
			shown[e.Callee] = true
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Caller != edges[j].Caller {
			return edges[i].Caller < edges[j].Caller
		}
		return edges[i].Callee < edges[j].Callee
	})

	byClass := make(map[string][]string)
	for n := range shown {
		byClass[Owner(n)] = append(byClass[Owner(n)], n)
	}
	classes := make([]string, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	var b strings.Builder
	header(&b, "reachable", t, `style=filled, fontsize=9, height=0.3, margin="0.12,0.06"`, title,
		"compound=true", "nodesep=0.4", "ranksep=0.6")

	for _, class := range classes {
		methods := byClass[class]
		sort.Strings(methods)
		fmt.Fprintf(&b, "  subgraph cluster_%s {\n", dotID(class))
		fmt.Fprintf(&b, "    label=<<font point-size=\"8\" color=\"%s\">%s</font>>;\n", t.ClusterLabel, dotEscape(class))
		fmt.Fprintf(&b, "    style=dotted; color=%q; penwidth=0.3;\n", t.ClusterBorder)
		for _, m := range methods {
			attrs := fmt.Sprintf("label=%q", truncLabel(stripOwner(m, class), 50))
			if entry[m] {
				attrs += fmt.Sprintf(", penwidth=1.5, color=%q", t.EntryEdge)
			}
			fmt.Fprintf(&b, "    %s [%s];\n", dotID(m), attrs)
		}
		b.WriteString("  }\n")
	}
	b.WriteByte('\n')

	for _, e := range edges {
		fmt.Fprintf(&b, "  %s -> %s;\n", dotID(e.Caller), dotID(e.Callee))
	}
	b.WriteString("}\n")
	return b.String()
}
