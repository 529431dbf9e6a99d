// Package archive packages a task work directory into a single zip file.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPatterns selects the data and notebook files handed to assessment takers.
var DefaultPatterns = []string{"**/*.csv", "**/*.ipynb"}

// Zipper writes every file under a directory matching one of Patterns into a zip,
// keeping paths relative to that directory. Entries carry no timestamps, so equal
// inputs give byte-identical archives.
type Zipper struct {
	Patterns []string
}

// New validates patterns and returns a Zipper. Empty patterns select DefaultPatterns.
func New(patterns []string) (Zipper, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return Zipper{}, fmt.Errorf("invalid archive pattern %q", p)
		}
	}
	return Zipper{Patterns: append([]string(nil), patterns...)}, nil
}

// Archive zips the matching files of dir into dest and returns how many were added.
func (z Zipper) Archive(dir, dest string) (int, error) {
	patterns := z.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return 0, err
	}
	if err := EnsureDir(filepath.Dir(dest)); err != nil {
		return 0, err
	}
	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	added := 0
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == absDest {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !matchAny(patterns, rel) {
			return nil
		}
		if err := addFile(zw, path, rel); err != nil {
			return fmt.Errorf("add %s: %w", rel, err)
		}
		added++
		return nil
	})
	if err != nil {
		zw.Close()
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("close archive: %w", err)
	}
	return added, out.Close()
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// EnsureDir creates path and its parents; an existing directory is not an error.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("ensure dir %s: %w", path, err)
	}
	return nil
}
