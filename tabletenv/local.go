package tabletenv

import (
	"os"
	"path/filepath"

	"github.com/colstore/tablet/errs"
)

// localEnv is an Environment backed by the local filesystem, rooted at
// a directory the tablet owns exclusively. Modeled on the teacher's
// filesystem.filesystem type, minus the process-wide advisory file lock
// (the tablet itself serializes writers per spec.md §5, so no extra
// locking is needed beyond what the OS already gives a single process).
type localEnv struct {
	root string
}

// Local returns an Environment rooted at root, creating it if absent.
func Local(root string) (Environment, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errs.IOErrorf("tabletenv: create root %q: %v", root, err)
	}
	return &localEnv{root: root}, nil
}

func (e *localEnv) abs(path string) string { return filepath.Join(e.root, path) }

type localFile struct{ f *os.File }

func (f *localFile) ReadAt(p []byte, off int64) (int, error) { return f.f.ReadAt(p, off) }
func (f *localFile) Write(p []byte) (int, error)             { return f.f.Write(p) }
func (f *localFile) Close() error                            { return f.f.Close() }
func (f *localFile) Size() (int64, error) {
	fi, err := f.f.Stat()
	if err != nil {
		return 0, errs.IOErrorf("tabletenv: stat: %v", err)
	}
	return fi.Size(), nil
}

func (e *localEnv) Create(path string) (File, error) {
	full := e.abs(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, errs.IOErrorf("tabletenv: mkdir for %q: %v", path, err)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errs.IOErrorf("tabletenv: create %q: %v", path, err)
	}
	return &localFile{f: f}, nil
}

func (e *localEnv) Open(path string) (File, error) {
	f, err := os.Open(e.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.IOErrorf("tabletenv: open %q: %v", path, err)
	}
	return &localFile{f: f}, nil
}

func (e *localEnv) Exists(path string) (bool, error) {
	_, err := os.Stat(e.abs(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errs.IOErrorf("tabletenv: stat %q: %v", path, err)
}

func (e *localEnv) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(e.abs(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.IOErrorf("tabletenv: readdir %q: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, ent := range entries {
		names = append(names, ent.Name())
	}
	return names, nil
}

func (e *localEnv) MkdirAll(dir string) error {
	if err := os.MkdirAll(e.abs(dir), 0o755); err != nil {
		return errs.IOErrorf("tabletenv: mkdir %q: %v", dir, err)
	}
	return nil
}

func (e *localEnv) Remove(path string) error {
	if err := os.Remove(e.abs(path)); err != nil && !os.IsNotExist(err) {
		return errs.IOErrorf("tabletenv: remove %q: %v", path, err)
	}
	return nil
}

func (e *localEnv) RemoveAll(path string) error {
	if err := os.RemoveAll(e.abs(path)); err != nil {
		return errs.IOErrorf("tabletenv: removeall %q: %v", path, err)
	}
	return nil
}

func (e *localEnv) Rename(oldPath, newPath string) error {
	if err := os.MkdirAll(filepath.Dir(e.abs(newPath)), 0o755); err != nil {
		return errs.IOErrorf("tabletenv: mkdir for %q: %v", newPath, err)
	}
	if err := os.Rename(e.abs(oldPath), e.abs(newPath)); err != nil {
		return errs.IOErrorf("tabletenv: rename %q -> %q: %v", oldPath, newPath, err)
	}
	return nil
}
