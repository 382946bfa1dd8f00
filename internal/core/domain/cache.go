package domain

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/opencontainers/go-digest"
)

// CachedManifest records a manifest fetch for the content-addressed response
// cache, keyed by the digest the reference resolved to.
type CachedManifest struct {
	Reference    string        `json:"reference,omitzero"`
	CanonicalRef string        `json:"canonical_ref,omitzero"`
	Digest       digest.Digest `json:"digest,omitzero"`
	Manifest     Manifest      `json:"manifest,omitzero"`
	FetchedAt    time.Time     `json:"fetched_at,omitzero"`
}

// CachedTagList records a paginated tag listing for one repository. Tag lists
// are mutable on the registry side, so cached copies carry their fetch time
// and expire.
type CachedTagList struct {
	Repository string    `json:"repository,omitzero"`
	Tags       []string  `json:"tags,omitzero"`
	FetchedAt  time.Time `json:"fetched_at,omitzero"`
}

// Expired reports whether the cached tag list is older than the given
// time-to-live.
func (c CachedTagList) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return true
	}
	return now.Sub(c.FetchedAt) > ttl
}

// ManifestCacheKey returns the response-cache key for a manifest reference.
// The key is filename-safe.
func ManifestCacheKey(reference string) string {
	return fmt.Sprintf("manifest-%016x", xxhash.Sum64String(reference))
}

// TagListCacheKey returns the response-cache key for a repository's tag
// listing. The key is filename-safe.
func TagListCacheKey(registry, repository string) string {
	return fmt.Sprintf("tags-%016x", xxhash.Sum64String(registry+"/"+repository))
}
