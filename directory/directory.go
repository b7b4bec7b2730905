// Package directory defines the storage black box the engine reads and
// writes segment files through, plus a default OS-backed
// implementation so the engine is usable standalone.
package directory

import (
	"io"
	"os"
	"path/filepath"

	"github.com/nutmeg-labs/ember/ftserrors"
)

// WriteCloser is a writable, appendable file handle.
type WriteCloser interface {
	io.WriteCloser
	// Sync flushes the file to stable storage.
	Sync() error
}

// Directory is the storage black box: given a path it returns a readable
// byte slice (for mmap'd or in-memory backed segment files), a writable
// appender, or performs an atomic rename / delete. Implementations must be
// safe for concurrent use by multiple readers and at most one writer.
type Directory interface {
	// OpenRead returns the full contents of path as an immutable byte
	// slice. Implementations backed by mmap return a view, not a copy.
	OpenRead(path string) ([]byte, error)

	// OpenWrite returns a fresh writable appender for path, truncating any
	// existing content. The caller is responsible for Sync + Close.
	OpenWrite(path string) (WriteCloser, error)

	// AtomicRename replaces dst with the contents of src, atomically from
	// the perspective of any concurrent OpenRead(dst).
	AtomicRename(src, dst string) error

	// Delete removes path. Deleting a path that does not exist is not an
	// error.
	Delete(path string) error

	// Exists reports whether path is present.
	Exists(path string) (bool, error)

	// ListPrefix lists file names (not full paths) directly under the
	// directory root whose name starts with prefix. Used by segment GC to
	// enumerate on-disk files against the live meta.
	ListPrefix(prefix string) ([]string, error)
}

// osDirectory is the default Directory, backed by the local filesystem:
// thin wrappers over os.* with directory existence/permission handling
// folded into typed errors instead of bare fmt.Errorf.
type osDirectory struct {
	root string
}

// OpenOS creates (if necessary) and opens an OS-backed Directory rooted at
// root.
func OpenOS(root string) (Directory, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, ftserrors.ClassifyDirectoryError(err, root)
	}
	stat, err := os.Stat(root)
	if err != nil {
		return nil, ftserrors.ClassifyDirectoryError(err, root)
	}
	if !stat.IsDir() {
		return nil, ftserrors.NewDataError(nil, ftserrors.ErrorCodeIO, "path exists and is not a directory").
			WithFileName(root)
	}
	return &osDirectory{root: root}, nil
}

func (d *osDirectory) full(path string) string {
	return filepath.Join(d.root, path)
}

func (d *osDirectory) OpenRead(path string) ([]byte, error) {
	data, err := os.ReadFile(d.full(path))
	if err != nil {
		return nil, ftserrors.ClassifySegmentFileError(err, "", path)
	}
	return data, nil
}

type osWriteCloser struct {
	*os.File
}

func (d *osDirectory) OpenWrite(path string) (WriteCloser, error) {
	full := d.full(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, ftserrors.ClassifyDirectoryError(err, filepath.Dir(full))
	}
	f, err := os.OpenFile(full, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, ftserrors.ClassifySegmentFileError(err, "", path)
	}
	return &osWriteCloser{f}, nil
}

func (d *osDirectory) AtomicRename(src, dst string) error {
	if err := os.Rename(d.full(src), d.full(dst)); err != nil {
		return ftserrors.ClassifySegmentFileError(err, "", dst)
	}
	return nil
}

func (d *osDirectory) Delete(path string) error {
	err := os.Remove(d.full(path))
	if err != nil && !os.IsNotExist(err) {
		return ftserrors.ClassifySegmentFileError(err, "", path)
	}
	return nil
}

func (d *osDirectory) Exists(path string) (bool, error) {
	_, err := os.Stat(d.full(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, ftserrors.ClassifySegmentFileError(err, "", path)
}

func (d *osDirectory) ListPrefix(prefix string) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, ftserrors.ClassifyDirectoryError(err, d.root)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			names = append(names, name)
		}
	}
	return names, nil
}
