// Package cas implements the content-addressed registry response cache.
package cas

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"featlock/internal/core/domain"
	"go.trai.ch/zerr"
)

// Store implements ports.ContentStore using one JSON file per cache entry.
// Keys come from domain.ManifestCacheKey and domain.TagListCacheKey and are
// filename-safe by construction.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a new ContentStore backed by the given directory.
func NewStore(dir string) (*Store, error) {
	s := &Store{dir: filepath.Clean(dir)}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, zerr.Wrap(err, "failed to create response cache directory")
	}
	return s, nil
}

// GetManifest retrieves a cached manifest by cache key.
func (s *Store) GetManifest(key string) (*domain.CachedManifest, error) {
	var m domain.CachedManifest
	ok, err := s.read(key, &m)
	if err != nil || !ok {
		return nil, err
	}
	return &m, nil
}

// PutManifest stores a fetched manifest.
func (s *Store) PutManifest(key string, m domain.CachedManifest) error {
	return s.write(key, m)
}

// GetTagList retrieves a cached tag listing by cache key.
func (s *Store) GetTagList(key string) (*domain.CachedTagList, error) {
	var t domain.CachedTagList
	ok, err := s.read(key, &t)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}

// PutTagList stores a fetched tag listing.
func (s *Store) PutTagList(key string, t domain.CachedTagList) error {
	return s.write(key, t)
}

func (s *Store) entryPath(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *Store) read(key string, v any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	//nolint:gosec // Path is cleaned and keys are filename-safe by construction
	data, err := os.ReadFile(s.entryPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, zerr.Wrap(err, "failed to read response cache entry")
	}

	if len(data) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, zerr.Wrap(err, "failed to unmarshal response cache entry")
	}

	return true, nil
}

func (s *Store) write(key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal response cache entry")
	}

	//nolint:gosec // Path is cleaned and keys are filename-safe by construction
	if err := os.WriteFile(s.entryPath(key), data, 0o644); err != nil {
		return zerr.Wrap(err, "failed to write response cache entry")
	}

	return nil
}
