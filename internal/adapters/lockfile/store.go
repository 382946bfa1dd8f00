// Package lockfile implements the on-disk lockfile store.
package lockfile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"featlock/internal/core/domain"
	"go.trai.ch/zerr"
)

const filePerm = 0o644

// Store implements ports.LockfileStore on the local filesystem.
type Store struct{}

// NewStore creates a new lockfile store.
func NewStore() *Store {
	return &Store{}
}

// Read loads and validates the lockfile at path. A missing file returns
// nil, nil; malformed content or failed validation is an error, never
// silently repaired.
func (s *Store) Read(path string) (*domain.Lockfile, error) {
	//nolint:gosec // Path derives from the configuration location
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read lockfile"), "path", path)
	}

	lf, err := domain.ParseLockfile(data)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	if err := lf.Validate(); err != nil {
		return nil, zerr.With(err, "path", path)
	}
	return &lf, nil
}

// Write persists the lockfile atomically in its canonical byte form. The
// entries are validated first so a broken set never reaches disk.
func (s *Store) Write(path string, lf domain.Lockfile) error {
	if err := lf.Validate(); err != nil {
		return err
	}
	data, err := lf.MarshalCanonical()
	if err != nil {
		return err
	}
	if err := atomicWriteFile(path, data); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write lockfile"), "path", path)
	}
	return nil
}

// atomicWriteFile writes data to a file atomically by writing to a temp file and renaming it.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, "lockfile-*.json")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()

	// Clean up temp file on error
	defer func() {
		if _, statErr := os.Stat(tmpName); statErr == nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, filePerm); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
