package narrative

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store is the run-scoped artifact directory. Every artifact is written
// exactly once; later reads for the same (date, run-id) come from disk, so a
// re-run with the same id performs no remote calls.
type Store struct {
	dir string
}

// NewStore creates the run directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the run directory path.
func (s *Store) Dir() string { return s.dir }

// Path returns the on-disk path of a named artifact.
func (s *Store) Path(name string) string { return filepath.Join(s.dir, name) }

// GetOrCompute returns the cached artifact bytes when the file exists,
// otherwise runs compute and persists its result. The second return reports a
// cache hit. A concurrent writer losing the O_EXCL race reads back the
// winner's bytes instead of overwriting them.
func (s *Store) GetOrCompute(name string, compute func() ([]byte, error)) ([]byte, bool, error) {
	p := s.Path(name)

	if data, err := os.ReadFile(p); err == nil {
		return data, true, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("read artifact %s: %w", name, err)
	}

	data, err := compute()
	if err != nil {
		return nil, false, err
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			existing, rerr := os.ReadFile(p)
			if rerr != nil {
				return nil, false, fmt.Errorf("read artifact %s: %w", name, rerr)
			}
			return existing, true, nil
		}
		return nil, false, fmt.Errorf("write artifact %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(p)
		return nil, false, fmt.Errorf("write artifact %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return nil, false, fmt.Errorf("write artifact %s: %w", name, err)
	}
	return data, false, nil
}

// Has reports whether a named artifact already exists.
func (s *Store) Has(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}
