package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"

	"jclass/internal/catalog"
	"jclass/internal/output"
	"jclass/internal/scan"
)

// scanSummary is the --json form of scan.Stats.
type scanSummary struct {
	Run     string           `json:"run,omitempty"`
	Files   int              `json:"files"`
	Parsed  int              `json:"parsed"`
	Failed  int              `json:"failed"`
	Bytes   int64            `json:"bytes"`
	Elapsed string           `json:"elapsed"`
	Kinds   []scan.KindCount `json:"kinds,omitempty"`
}

func cmdScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file (default ./jclass.toml if present)")
	workers := fs.Int("workers", 0, "parse workers (default from config, else one per CPU)")
	catalogPath := fs.String("catalog", "", "record the run in this SQLite catalog")
	outDir := fs.String("out", "", "write every parsed class under this directory")
	format := fs.String("format", "", "class output format: json or cbor")
	permit := fs.Bool("permit-instance-constants", false, "accept ConstantValue on instance fields")
	verbosity := fs.Int("v", -1, "log verbosity (default from config)")
	jsonOut := fs.Bool("json", false, "print the summary as JSON on stdout")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("at least one directory, archive or class file is required")
	}

	conf, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *workers > 0 {
		conf.Scan.Workers = *workers
	}
	if *catalogPath != "" {
		conf.Scan.Catalog = *catalogPath
	}
	if *outDir != "" {
		conf.Output.Dir = *outDir
	}
	if *format != "" {
		conf.Output.Format = *format
	}
	if *permit {
		conf.Parse.PermitConstantsInInstanceFields = true
	}
	if err := conf.Validate(); err != nil {
		return err
	}
	configureLogging(conf.Log, *verbosity)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var (
		consumers scan.Consumers
		cat       *catalog.Catalog
		runID     string
	)
	if conf.Scan.Catalog != "" {
		cat, err = catalog.Open(conf.Scan.Catalog)
		if err != nil {
			return err
		}
		defer cat.Close()
		if runID, err = cat.BeginRun(ctx, fs.Args()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "catalog %s: run %s\n", conf.Scan.Catalog, runID)
		consumers = append(consumers, cat)
	}
	if conf.Output.Dir != "" {
		f, err := output.ParseFormat(conf.Output.Format)
		if err != nil {
			return err
		}
		dir := conf.Output.Dir
		consumers = append(consumers, scan.ConsumerFunc(func(_ context.Context, r *scan.Result) error {
			if r.Err != nil {
				return nil
			}
			_, err := output.WriteClass(dir, f, r.Class)
			return err
		}))
	}

	s := &scan.Scanner{
		Walker:   walker(conf),
		Options:  conf.Parse.Options(),
		Workers:  conf.Scan.EffectiveWorkers(),
		Consumer: consumers,
	}
	stats, err := s.Run(ctx, fs.Args())
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if cat != nil {
		if err := cat.FinishRun(context.Background(), stats); err != nil {
			return err
		}
	}

	if *jsonOut {
		return output.Encode(os.Stdout, output.FormatJSON, scanSummary{
			Run:     runID,
			Files:   stats.Files,
			Parsed:  stats.Parsed,
			Failed:  stats.Failed,
			Bytes:   stats.Bytes,
			Elapsed: stats.Elapsed.Round(time.Millisecond).String(),
			Kinds:   stats.Kinds(),
		})
	}
	fmt.Fprintf(os.Stderr, "scanned %s files (%s) in %s\n",
		humanize.Comma(int64(stats.Files)), humanize.Bytes(uint64(stats.Bytes)), stats.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "  parsed: %s\n", humanize.Comma(int64(stats.Parsed)))
	fmt.Fprintf(os.Stderr, "  failed: %s\n", humanize.Comma(int64(stats.Failed)))
	for _, k := range stats.Kinds() {
		fmt.Fprintf(os.Stderr, "    %-32s %d\n", k.Kind, k.Count)
	}
	return nil
}
