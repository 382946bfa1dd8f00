package ports

import "featlock/internal/core/domain"

// ContentStore defines the interface for the on-disk registry response cache.
// Manifest entries are content-addressed and immutable; tag listings carry
// their fetch time and expire at the consumer's discretion.
//
//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type ContentStore interface {
	// GetManifest retrieves a cached manifest by cache key.
	// Returns nil, nil if not found.
	GetManifest(key string) (*domain.CachedManifest, error)

	// PutManifest stores a fetched manifest.
	PutManifest(key string, m domain.CachedManifest) error

	// GetTagList retrieves a cached tag listing by cache key.
	// Returns nil, nil if not found.
	GetTagList(key string) (*domain.CachedTagList, error)

	// PutTagList stores a fetched tag listing.
	PutTagList(key string, t domain.CachedTagList) error
}
