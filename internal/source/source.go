// Package source finds class files on disk: loose .class files, directory
// trees, and .jar/.zip archives including archives nested inside them.
package source

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultMaxNestingDepth is used when Walker.MaxNestingDepth is 0.
const DefaultMaxNestingDepth = 8

var (
	// ErrTooLarge is reported for files above Walker.MaxFileSize.
	ErrTooLarge = errors.New("source: file too large")
	// ErrTooDeep is reported for archives nested deeper than
	// Walker.MaxNestingDepth. Their contents are not visited.
	ErrTooDeep = errors.New("source: archive nested too deep")
)

// File is one class file found by a Walker. Path is the file system path,
// with "!" separating archive and entry names ("app.jar!/com/A.class").
// Err is set instead of Data when the file could not be read.
type File struct {
	Path string
	Data []byte
	Err  error
}

// Walker enumerates class files.
type Walker struct {
	MaxFileSize     int64    // 0 = no limit
	MaxNestingDepth int      // archives inside archives; 0 = DefaultMaxNestingDepth
	Skip            []string // path.Match patterns checked against slash-separated names
}

func (w *Walker) maxDepth() int {
	if w.MaxNestingDepth > 0 {
		return w.MaxNestingDepth
	}
	return DefaultMaxNestingDepth
}

// IsClass reports whether name looks like a class file.
func IsClass(name string) bool { return strings.HasSuffix(name, ".class") }

// IsArchive reports whether name looks like a jar or zip archive.
func IsArchive(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".jar" || ext == ".zip" || ext == ".war" || ext == ".ear" || ext == ".jmod"
}

// Walk calls fn for every class file under roots in lexical order. A root
// may be a directory, a class file or an archive. Read failures of single
// files are passed to fn in File.Err; Walk stops on the first error fn
// returns, on ctx cancellation, or when a root cannot be opened.
func (w *Walker) Walk(ctx context.Context, roots []string, fn func(File) error) error {
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("source: %w", err)
		}
		if !info.IsDir() {
			if err := w.file(ctx, root, filepath.Base(root), fn); err != nil {
				return err
			}
			continue
		}
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return fn(File{Path: p, Err: err})
			}
			if d.IsDir() {
				return nil
			}
			rel, _ := filepath.Rel(root, p)
			return w.file(ctx, p, filepath.ToSlash(rel), fn)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) skipped(name string) bool {
	for _, pat := range w.Skip {
		if ok, _ := path.Match(pat, name); ok {
			return true
		}
	}
	return false
}

// file handles one regular file; name is its path relative to the root.
func (w *Walker) file(ctx context.Context, p, name string, fn func(File) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.skipped(name) {
		return nil
	}
	switch {
	case IsClass(name):
		data, err := w.readFile(p)
		return fn(File{Path: p, Data: data, Err: err})
	case IsArchive(name):
		return w.archive(ctx, p, fn)
	}
	return nil
}

func (w *Walker) readFile(p string) ([]byte, error) {
	if w.MaxFileSize > 0 {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.Size() > w.MaxFileSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
		}
	}
	return os.ReadFile(p)
}

func (w *Walker) archive(ctx context.Context, p string, fn func(File) error) error {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return fn(File{Path: p, Err: fmt.Errorf("source: open archive: %w", err)})
	}
	defer zr.Close()
	return w.entries(ctx, p, &zr.Reader, 0, fn)
}

// entries visits the class files and nested archives of zr. label is the
// path of the archive itself and depth the number of archives enclosing it.
func (w *Walker) entries(ctx context.Context, label string, zr *zip.Reader, depth int, fn func(File) error) error {
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := f.Name
		if f.FileInfo().IsDir() || w.skipped(name) {
			continue
		}
		entryPath := label + "!/" + name
		switch {
		case IsClass(name):
			data, err := w.readEntry(f)
			if err := fn(File{Path: entryPath, Data: data, Err: err}); err != nil {
				return err
			}
		case IsArchive(name):
			if depth+1 > w.maxDepth() {
				err := fmt.Errorf("%w: more than %d levels", ErrTooDeep, w.maxDepth())
				if err := fn(File{Path: entryPath, Err: err}); err != nil {
					return err
				}
				continue
			}
			data, err := w.readEntry(f)
			if err != nil {
				if err := fn(File{Path: entryPath, Err: err}); err != nil {
					return err
				}
				continue
			}
			inner, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
			if err != nil {
				if err := fn(File{Path: entryPath, Err: fmt.Errorf("source: open archive: %w", err)}); err != nil {
					return err
				}
				continue
			}
			if err := w.entries(ctx, entryPath, inner, depth+1, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Walker) readEntry(f *zip.File) ([]byte, error) {
	if w.MaxFileSize > 0 && f.UncompressedSize64 > uint64(w.MaxFileSize) {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if w.MaxFileSize > 0 {
		// UncompressedSize64 comes from the archive and is not trusted.
		r = io.LimitReader(rc, w.MaxFileSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if w.MaxFileSize > 0 && int64(len(data)) > w.MaxFileSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, w.MaxFileSize)
	}
	return data, nil
}
