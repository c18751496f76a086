// Package config loads jclass.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"jclass/internal/classfmt"
	"jclass/internal/source"
)

// FileName is the config file looked up by LoadDir.
const FileName = "jclass.toml"

// Config is the full contents of jclass.toml. Command-line flags override
// individual fields after loading.
type Config struct {
	Parse  Parse  `toml:"parse"`
	Scan   Scan   `toml:"scan"`
	Output Output `toml:"output"`
	Log    Log    `toml:"log"`
}

// Parse holds the decoder limits.
type Parse struct {
	PermitConstantsInInstanceFields bool `toml:"permit-constants-in-instance-fields"`
	MaxCodeLength                   int  `toml:"max-code-length"`
	MaxConstantPoolCount            int  `toml:"max-constant-pool-count"`
	MaxMajorVersion                 int  `toml:"max-major-version"`
}

type Scan struct {
	Workers         int      `toml:"workers"` // 0 = one per CPU
	Catalog         string   `toml:"catalog"` // SQLite file; "" disables
	MaxFileSize     int64    `toml:"max-file-size"`
	MaxNestingDepth int      `toml:"max-nesting-depth"` // archives inside archives
	Skip            []string `toml:"skip"`              // path.Match patterns, matched against entry names
}

type Output struct {
	Format string `toml:"format"`
	Dir    string `toml:"dir"`
}

type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// DefaultMaxFileSize bounds a single class file read from disk or an archive.
const DefaultMaxFileSize = 64 << 20

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Scan:   Scan{MaxFileSize: DefaultMaxFileSize, MaxNestingDepth: source.DefaultMaxNestingDepth},
		Output: Output{Format: "json"},
		Log:    Log{Verbosity: 1},
	}
}

// Load reads the config file at path over the defaults. Unknown keys are an
// error, so typos do not pass silently.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config: %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDir loads dir/jclass.toml, or returns Default if there is none.
func LoadDir(dir string) (Config, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.Parse.MaxCodeLength < 0:
		return fmt.Errorf("parse.max-code-length %d is negative", c.Parse.MaxCodeLength)
	case c.Parse.MaxConstantPoolCount < 0:
		return fmt.Errorf("parse.max-constant-pool-count %d is negative", c.Parse.MaxConstantPoolCount)
	case c.Parse.MaxMajorVersion != 0 && (c.Parse.MaxMajorVersion < classfmt.MinMajorVersion || c.Parse.MaxMajorVersion > 0xffff):
		return fmt.Errorf("parse.max-major-version %d out of range", c.Parse.MaxMajorVersion)
	case c.Scan.Workers < 0:
		return fmt.Errorf("scan.workers %d is negative", c.Scan.Workers)
	case c.Scan.MaxFileSize <= 0:
		return fmt.Errorf("scan.max-file-size must be positive")
	case c.Scan.MaxNestingDepth <= 0:
		return fmt.Errorf("scan.max-nesting-depth must be positive")
	case c.Output.Format != "json" && c.Output.Format != "cbor":
		return fmt.Errorf("output.format %q is not json or cbor", c.Output.Format)
	}
	return nil
}

// Options converts the [parse] section to decoder options.
func (p Parse) Options() classfmt.Options {
	return classfmt.Options{
		PermitConstantsInInstanceFields: p.PermitConstantsInInstanceFields,
		MaxCodeLength:                   p.MaxCodeLength,
		MaxConstantPoolCount:            p.MaxConstantPoolCount,
		MaxMajorVersion:                 uint16(p.MaxMajorVersion),
	}
}

// Walker returns a source walker with the [scan] limits.
func (s Scan) Walker() *source.Walker {
	return &source.Walker{MaxFileSize: s.MaxFileSize, MaxNestingDepth: s.MaxNestingDepth, Skip: s.Skip}
}

// EffectiveWorkers returns the worker count, defaulting to one per CPU.
func (s Scan) EffectiveWorkers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.NumCPU()
}
