package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"jclass/internal/callgraph"
	"jclass/internal/output"
)

func cmdCFG(args []string) error {
	fs := flag.NewFlagSet("cfg", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file (default ./jclass.toml if present)")
	outDir := fs.String("out", "", "output directory")
	all := fs.Bool("all", false, "also write CFGs of single-block methods")

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

	cfgDir := filepath.Join(*outDir, "cfg")
	var (
		funcs    []callgraph.FuncInfo
		cfgCount int
	)
	for _, c := range classes {
		for i := range c.Methods {
			m := &c.Methods[i]
			if m.Code == nil {
				continue
			}
			name := callgraph.MethodName(c.Name, m)
			lcfg, nblocks := callgraph.BuildFuncCFG(name, m.Code.Instructions, m.Code.Handlers)
			if nblocks > 1 || *all {
				g := &lattice.CFGGraph{Funcs: []*lattice.FuncCFG{lcfg}}
				if _, err := output.WriteDOT(cfgDir, methodRelPath(c.Name, m), render.DOTCFG(g, name)); err != nil {
					return err
				}
				cfgCount++
			}
		}
		funcs = append(funcs, callgraph.Funcs(c)...)
	}
	fmt.Fprintf(os.Stderr, "wrote %d CFGs to %s\n", cfgCount, cfgDir)

	cg := callgraph.BuildCallGraph(funcs)
	path, err := output.WriteDOT(*outDir, "callgraph", render.DOT(cg, "callgraph"))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d nodes, %d edges)\n", path, len(cg.Nodes), len(cg.Edges))
	return nil
}
