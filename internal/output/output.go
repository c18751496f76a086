// Package output writes jclass analysis results to files and streams.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"jclass/internal/classfile"
)

// Format is an encoding for parsed classes.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// ParseFormat validates a format name from the command line or config.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatCBOR:
		return f, nil
	}
	return "", fmt.Errorf("output: unknown format %q (want json or cbor)", s)
}

// Ext returns the file extension for f, without the dot.
func (f Format) Ext() string { return string(f) }

// cborEncMode encodes canonically, so equal classes always produce equal
// bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("output: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalCBOR returns the canonical CBOR encoding of v.
func MarshalCBOR(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

// Encode writes v to w in format f. JSON output is indented.
func Encode(w io.Writer, f Format, v any) error {
	switch f {
	case FormatCBOR:
		data, err := MarshalCBOR(v)
		if err != nil {
			return fmt.Errorf("output: encode cbor: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("output: encode json: %w", err)
		}
		return nil
	}
	return fmt.Errorf("output: unknown format %q", f)
}

// ClassPath returns where WriteClass puts c under dir: the internal name
// becomes a relative path, so java/lang/String goes to
// dir/java/lang/String.json.
func ClassPath(dir string, f Format, c *classfile.Class) string {
	return filepath.Join(dir, filepath.FromSlash(c.Name)+"."+f.Ext())
}

// WriteClass writes c to ClassPath(dir, f, c), creating parent directories.
func WriteClass(dir string, f Format, c *classfile.Class) (string, error) {
	path := ClassPath(dir, f, c)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("output: mkdir %s: %w", filepath.Dir(path), err)
	}
	return path, writeFile(path, f, c)
}

// WriteDOT writes a Graphviz document to dir/name.dot. name may contain
// path separators for directory grouping.
func WriteDOT(dir, name, dot string) (string, error) {
	path := filepath.Join(dir, name+".dot")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("output: mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(dot), 0644); err != nil {
		return "", fmt.Errorf("output: write %s: %w", path, err)
	}
	return path, nil
}

// WriteJSON writes v as indented JSON to dir/name.
func WriteJSON(dir, name string, v any) error {
	return writeFile(filepath.Join(dir, name), FormatJSON, v)
}

func writeFile(path string, f Format, v any) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	return encodeClose(out, path, f, v)
}

// encodeClose encodes v to w, then closes w. The close error is returned
// when encoding succeeded.
func encodeClose(w io.WriteCloser, path string, f Format, v any) (err error) {
	defer func() {
		if cerr := w.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("output: close %s: %w", path, cerr)
		}
	}()
	if err := Encode(w, f, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
