package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"jclass/internal/classfile"
	"jclass/internal/config"
	"jclass/internal/source"
)

// loadConfig reads path, or ./jclass.toml when path is empty.
func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadDir(".")
}

// configureLogging starts the commonlog backend. verbosity < 0 keeps the
// configured level.
func configureLogging(l config.Log, verbosity int) {
	if verbosity >= 0 {
		l.Verbosity = verbosity
	}
	var path *string
	if l.File != "" {
		path = &l.File
	}
	commonlog.Configure(l.Verbosity, path)
}

func walker(conf config.Config) *source.Walker {
	return conf.Scan.Walker()
}

// loadClasses parses every class under roots with one session. Files that
// fail are reported on stderr and skipped.
func loadClasses(ctx context.Context, conf config.Config, roots []string) ([]*classfile.Class, int, error) {
	session := classfile.NewSession(conf.Parse.Options())
	var (
		classes []*classfile.Class
		failed  int
	)
	err := walker(conf).Walk(ctx, roots, func(f source.File) error {
		if f.Err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", f.Path, f.Err)
			failed++
			return nil
		}
		c, err := session.Parse(f.Data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", f.Path, err)
			failed++
			return nil
		}
		classes = append(classes, c)
		return nil
	})
	return classes, failed, err
}

// sanitizeFilename replaces characters that are awkward in file names.
func sanitizeFilename(name string) string {
	r := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		";", "_",
		" ", "_",
	)
	s := r.Replace(name)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// methodRelPath returns "pkg/Class/name(desc)" with the class name kept as
// directories, so cfg/ mirrors the package layout.
func methodRelPath(class string, m *classfile.Method) string {
	return class + "/" + sanitizeFilename(m.Name+m.Descriptor)
}
