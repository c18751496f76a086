package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"jclass/internal/catalog"
	"jclass/internal/output"
)

func cmdRuns(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	catalogPath := fs.String("catalog", "", "SQLite catalog written by scan")
	jsonOut := fs.Bool("json", false, "output as JSON")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *catalogPath == "" {
		return fmt.Errorf("--catalog is required")
	}

	cat, err := catalog.Open(*catalogPath)
	if err != nil {
		return err
	}
	defer cat.Close()

	runs, err := cat.Runs(context.Background())
	if err != nil {
		return err
	}
	if *jsonOut {
		return output.Encode(os.Stdout, output.FormatJSON, runs)
	}
	for _, r := range runs {
		finished := "running"
		if !r.Finished.IsZero() {
			finished = r.Finished.Sub(r.Started).Round(time.Millisecond).String()
		}
		fmt.Printf("%s  %s  %6d files  %6d parsed  %6d failed  %-10s %s\n",
			r.ID, r.Started.Local().Format(time.DateTime), r.Files, r.Parsed, r.Failed,
			finished, strings.Join(r.Roots, " "))
	}
	return nil
}

func cmdFailures(args []string) error {
	fs := flag.NewFlagSet("failures", flag.ExitOnError)
	catalogPath := fs.String("catalog", "", "SQLite catalog written by scan")
	run := fs.String("run", "", "run ID (see jclass runs)")
	kind := fs.String("kind", "", "only failures of this kind")
	jsonOut := fs.Bool("json", false, "output as JSON")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *catalogPath == "" {
		return fmt.Errorf("--catalog is required")
	}
	if *run == "" {
		return fmt.Errorf("--run is required")
	}

	cat, err := catalog.Open(*catalogPath)
	if err != nil {
		return err
	}
	defer cat.Close()

	failures, err := cat.Failures(context.Background(), *run)
	if err != nil {
		return err
	}
	if *kind != "" {
		kept := failures[:0]
		for _, f := range failures {
			if f.Kind == *kind {
				kept = append(kept, f)
			}
		}
		failures = kept
	}
	if *jsonOut {
		return output.Encode(os.Stdout, output.FormatJSON, failures)
	}
	for _, f := range failures {
		fmt.Printf("%-32s %s: %s\n", f.Kind, f.Path, f.Message)
	}
	fmt.Fprintf(os.Stderr, "%d failures\n", len(failures))
	return nil
}

func cmdFind(args []string) error {
	fs := flag.NewFlagSet("find", flag.ExitOnError)
	catalogPath := fs.String("catalog", "", "SQLite catalog written by scan")
	run := fs.String("run", "", "run ID (default latest)")
	class := fs.String("class", "", "internal class name, e.g. java/lang/String")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *catalogPath == "" {
		return fmt.Errorf("--catalog is required")
	}
	if *class == "" {
		return fmt.Errorf("--class is required")
	}

	cat, err := catalog.Open(*catalogPath)
	if err != nil {
		return err
	}
	defer cat.Close()

	ctx := context.Background()
	if *run == "" {
		runs, err := cat.Runs(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("catalog %s has no runs", *catalogPath)
		}
		*run = runs[0].ID
	}
	paths, err := cat.FindClass(ctx, *run, strings.ReplaceAll(*class, ".", "/"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("%s not found in run %s", *class, *run)
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}
