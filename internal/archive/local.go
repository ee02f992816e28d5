package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Local keeps the archive on disk:
//
//	{root}/text_archive/{CODE}/{CODE}_{TS}_log.json
//	{root}/{CODE}/{CODE}_{TS}_analysis.mp3
type Local struct {
	root string
}

func NewLocal(root string) *Local {
	return &Local{root: root}
}

func (l *Local) Root() string { return l.root }

// Dir returns the directory holding files of kind for code.
func (l *Local) Dir(kind Kind, code string) string {
	if kind == KindLog {
		return filepath.Join(l.root, "text_archive", code)
	}
	return filepath.Join(l.root, code)
}

// List returns file names of kind for code, sorted. A missing directory is an empty list.
func (l *Local) List(ctx context.Context, kind Kind, code string) ([]string, error) {
	if !ValidCode(code) {
		return nil, ErrInvalidCode
	}
	entries, err := os.ReadDir(l.Dir(kind, code))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s archive for %s: %w", kind, code, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, err := ParseName(e.Name()); err == nil && n.Kind == kind && n.Code == code {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (l *Local) Read(ctx context.Context, kind Kind, code, name string) ([]byte, error) {
	if err := checkName(kind, code, name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(l.Dir(kind, code), name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

func (l *Local) Write(ctx context.Context, kind Kind, code, name string, data []byte) error {
	if err := checkName(kind, code, name); err != nil {
		return err
	}
	dir := l.Dir(kind, code)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return writeFileAtomic(filepath.Join(dir, name), data)
}

// writeFileAtomic writes to a temp file in the same directory, syncs it and
// renames it over path. The temp file is removed on every failure.
func writeFileAtomic(path string, data []byte) (err error) {
	dir, base := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", base, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", base, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", base, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", base, err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", base, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming %s: %w", base, err)
	}
	return nil
}
