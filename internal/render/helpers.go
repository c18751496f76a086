// Package render produces Graphviz DOT views of a class call graph: one node
// per class, and the methods reachable from entry points.
package render

import (
	"fmt"
	"strings"
)

// dotEscape escapes a string for use in DOT HTML labels.
func dotEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// dotID creates a safe DOT identifier from a method or class name.
func dotID(name string) string {
	var b strings.Builder
	b.WriteString("n_")
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		} else {
			fmt.Fprintf(&b, "_%04x", c)
		}
	}
	return b.String()
}

// Owner returns the class part of a "Class.name:descriptor" node name.
// Internal class names never contain '.', so the first one separates it.
func Owner(node string) string {
	if i := strings.IndexByte(node, '.'); i > 0 {
		return node[:i]
	}
	return node
}

// stripOwner removes the owner prefix from a method node name.
// "a/B.run:()V" → "run:()V".
func stripOwner(node, owner string) string {
	prefix := owner + "."
	if strings.HasPrefix(node, prefix) {
		return node[len(prefix):]
	}
	return node
}

// simpleName drops the package from an internal class name.
func simpleName(class string) string {
	if i := strings.LastIndexByte(class, '/'); i >= 0 {
		return class[i+1:]
	}
	return class
}

// header opens a digraph with the theme's background, default node and
// edge styles, and an optional title label.
func header(b *strings.Builder, graph string, t Theme, nodeAttrs, title string, spacing ...string) {
	fmt.Fprintf(b, "digraph %s {\n", graph)
	b.WriteString("  rankdir=LR;\n  splines=true;\n")
	for _, s := range spacing {
		fmt.Fprintf(b, "  %s;\n", s)
	}
	fmt.Fprintf(b, "  bgcolor=%q;\n", t.Background)
	fmt.Fprintf(b, "  node [shape=rect, fillcolor=%q, color=%q, fontcolor=%q, penwidth=0.5, fontname=\"Helvetica Neue,Helvetica,Arial\", %s];\n",
		t.NodeFill, t.NodeBorder, t.TextColor, nodeAttrs)
	fmt.Fprintf(b, "  edge [penwidth=0.5, arrowsize=0.5, arrowhead=vee, color=%q];\n", t.EdgeCall)
	if title != "" {
		b.WriteString("  labelloc=t;\n  labeljust=l;\n")
		fmt.Fprintf(b, "  label=<<font face=\"Helvetica Neue,Helvetica\" point-size=\"8\" color=\"%s\">%s</font>>;\n",
			t.TextColor, dotEscape(title))
	}
	b.WriteByte('\n')
}

// truncLabel shortens a label to maxLen, appending "..." if truncated.
func truncLabel(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
