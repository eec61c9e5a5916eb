// Package archive gives read access to zip based containers (EPUB) and
// repacks them for the library.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	fixzip "github.com/hidez8891/zip"
)

// ErrNotFound is returned when requested entry is not present in archive.
var ErrNotFound = errors.New("archive entry not found")

// WalkFunc is called for each file entry visited by Walk. If an error is
// returned, processing stops.
type WalkFunc func(file *zip.File) error

// Container is opened zip archive. Entry names are case sensitive, lookups
// fall back to case insensitive match as many books are produced on systems
// which do not care.
type Container struct {
	name  string
	r     *zip.ReadCloser
	index map[string]*zip.File
}

// Open opens archive and indexes its entries. Entries with unsafe names make
// the whole archive unusable.
func Open(name string) (*Container, error) {
	r, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("unable to open archive (%s): %w", name, err)
	}
	c := &Container{name: name, r: r, index: make(map[string]*zip.File, len(r.File))}
	for _, f := range r.File {
		if !isSafePath(f.Name) {
			r.Close()
			return nil, fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", f.Name)
		}
		if !f.FileInfo().IsDir() {
			c.index[f.Name] = f
		}
	}
	return c, nil
}

func (c *Container) Name() string {
	return c.name
}

func (c *Container) Close() error {
	return c.r.Close()
}

// Lookup finds entry by name.
func (c *Container) Lookup(name string) (*zip.File, bool) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if f, ok := c.index[name]; ok {
		return f, true
	}
	for n, f := range c.index {
		if strings.EqualFold(n, name) {
			return f, true
		}
	}
	return nil, false
}

// ReadFile returns content of the entry.
func (c *Container) ReadFile(name string) ([]byte, error) {
	f, ok := c.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("unable to open archive entry %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("unable to read archive entry %s: %w", name, err)
	}
	return data, nil
}

// Walk visits all files with names starting with prefix in archive order.
func (c *Container) Walk(prefix string, walkFn WalkFunc) error {
	for _, f := range c.r.File {
		if f.FileInfo().IsDir() || !strings.HasPrefix(f.Name, prefix) {
			continue
		}
		if err := walkFn(f); err != nil {
			return err
		}
	}
	return nil
}

// Repack copies archive entries without recompression clearing data
// descriptor flags, some readers refuse EPUBs with streamed entries.
func Repack(from, to string) (err error) {
	r, err := fixzip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", from, err)
	}
	defer r.Close()

	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", to, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	w := fixzip.NewWriter(out)
	for _, file := range r.File {
		if !isSafePath(file.Name) {
			return fmt.Errorf("zip entry %q: %w", file.Name, fs.ErrInvalid)
		}
		file.Flags &= ^fixzip.FlagDataDescriptor
		if err := w.CopyFile(file); err != nil {
			return fmt.Errorf("unable to write target file (%s): %w", to, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("unable to finalize target file (%s): %w", to, err)
	}
	return nil
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	for part := range strings.SplitSeq(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
