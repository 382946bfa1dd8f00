package ports

import (
	"context"

	"featlock/internal/core/domain"
	"github.com/opencontainers/go-digest"
)

// RegistryClient defines the interface for talking to an OCI distribution
// registry.
//
//go:generate go run go.uber.org/mock/mockgen -source=registry.go -destination=mocks/mock_registry.go -package=mocks
type RegistryClient interface {
	// FetchManifest retrieves the manifest for a reference together with its
	// canonical digest. The digest comes from the registry's content-digest
	// header, or from hashing the raw body when the header is absent. It is
	// never derived from the tag.
	FetchManifest(ctx context.Context, ref domain.FeatureRef) (domain.Manifest, digest.Digest, error)

	// ListTags retrieves the published tags for a reference's repository,
	// following pagination. The returned order is the registry's; no sorting
	// is applied.
	ListTags(ctx context.Context, ref domain.FeatureRef) ([]string, error)

	// FetchBlob retrieves a blob and verifies its content against the
	// requested digest before returning.
	FetchBlob(ctx context.Context, ref domain.FeatureRef, dgst digest.Digest) ([]byte, error)
}
