package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"jclass/internal/classfile"
	"jclass/internal/output"
	"jclass/internal/source"
)

func cmdParse(args []string) error {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	cfgPath := fs.String("config", "", "config file (default ./jclass.toml if present)")
	format := fs.String("format", "", "output format: json or cbor")
	outDir := fs.String("out", "", "write one file per class under this directory instead of stdout")
	permit := fs.Bool("permit-instance-constants", false, "accept ConstantValue on instance fields")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("at least one class file, archive or directory is required")
	}

	conf, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *format != "" {
		conf.Output.Format = *format
	}
	if *permit {
		conf.Parse.PermitConstantsInInstanceFields = true
	}
	f, err := output.ParseFormat(conf.Output.Format)
	if err != nil {
		return err
	}

	session := classfile.NewSession(conf.Parse.Options())
	var total, failed int
	err = walker(conf).Walk(context.Background(), fs.Args(), func(file source.File) error {
		total++
		if file.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", file.Path, file.Err)
			failed++
			return nil
		}
		c, err := session.Parse(file.Data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", file.Path, err)
			failed++
			return nil
		}
		if *outDir == "" {
			return output.Encode(os.Stdout, f, c)
		}
		path, err := output.WriteClass(*outDir, f, c)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", path)
		return nil
	})
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to parse", failed, total)
	}
	return nil
}
