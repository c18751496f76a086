package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"jclass/internal/callgraph"
	"jclass/internal/output"
	"jclass/internal/render"
)

// graphSummary is written to graph.json next to the DOT files.
type graphSummary struct {
	Classes     int      `json:"classes"`
	Methods     int      `json:"methods"`
	Edges       int      `json:"edges"`
	ClassEdges  int      `json:"class_edges"`
	EntryPoints []string `json:"entry_points"`
	Reachable   int      `json:"reachable"`
}

func cmdGraph(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file (default ./jclass.toml if present)")
	outDir := fs.String("out", "", "output directory")
	title := fs.String("title", "jclass", "graph title")
	maxNodes := fs.Int("max-nodes", 0, "max class nodes in classgraph (0 = all)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *outDir == "" {
		return fmt.Errorf("--out is required")
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("at least one class file, archive or directory is required")
	}

	conf, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	classes, failed, err := loadClasses(context.Background(), conf, fs.Args())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "parsed %d classes (%d failed)\n", len(classes), failed)

	var funcs []callgraph.FuncInfo
	for _, c := range classes {
		funcs = append(funcs, callgraph.Funcs(c)...)
	}
	cg := callgraph.BuildCallGraph(funcs)

	entryPoints := render.FindEntryPoints(cg)
	reachable := render.ReachableSet(entryPoints, cg)
	fmt.Fprintf(os.Stderr, "entry points: %d, reachable methods: %d / %d\n",
		len(entryPoints), len(reachable), len(cg.Nodes))

	path, err := output.WriteDOT(*outDir, "classgraph",
		render.ClassgraphDOT(cg, *title+" (class level)", render.NASA, *maxNodes))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", path)

	path, err = output.WriteDOT(*outDir, "reachable",
		render.ReachabilityDOT(cg, reachable, entryPoints, *title+" (reachable)", render.NASA))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", path)

	summary := graphSummary{
		Classes:     len(classes),
		Methods:     len(cg.Nodes),
		Edges:       len(cg.Edges),
		ClassEdges:  len(render.Classes(cg).Edges),
		EntryPoints: entryPoints,
		Reachable:   len(reachable),
	}
	if err := output.WriteJSON(*outDir, "graph.json", summary); err != nil {
		return err
	}
	return nil
}
