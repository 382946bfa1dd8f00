package ports

import "featlock/internal/core/domain"

// LockfileStore defines the interface for reading and persisting lockfiles.
//
//go:generate go run go.uber.org/mock/mockgen -source=lockfile.go -destination=mocks/mock_lockfile.go -package=mocks
type LockfileStore interface {
	// Read loads and validates the lockfile at path.
	// Returns nil, nil if no lockfile exists.
	Read(path string) (*domain.Lockfile, error)

	// Write persists the lockfile atomically in its canonical form.
	Write(path string, lf domain.Lockfile) error
}
