// Package domain contains the core domain model for feature version
// resolution: registry references, version algebra, the lockfile, and the
// dependency graph of a resolved feature set.
package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

const (
	// DefaultRegistry is assumed when a reference omits the registry host.
	DefaultRegistry = "ghcr.io"

	// DefaultNamespace is where automatic mapping expands bare legacy ids to.
	DefaultNamespace = "devcontainers/features"
)

// FeatureRef identifies a feature by registry coordinates. Version holds the
// declared tag or digest and is empty for an untagged reference.
type FeatureRef struct {
	Registry  string
	Namespace string
	Name      string
	Version   string
}

// ParseFeatureRef parses a declared reference string into registry
// coordinates. A reference whose first segment is not a registry host falls
// back to DefaultRegistry. Non-registry forms (local paths, URLs, bare ids)
// are rejected with ErrInvalidFeatureRef; use IsRegistryRef to filter those
// beforehand and ExpandLegacyID to qualify bare ids.
func ParseFeatureRef(declared string) (FeatureRef, error) {
	if declared == "" || !IsRegistryRef(declared) {
		return FeatureRef{}, zerr.With(ErrInvalidFeatureRef, "reference", declared)
	}

	parts := strings.Split(declared, "/")
	name, version := splitNameVersion(parts[len(parts)-1])
	if name == "" {
		return FeatureRef{}, zerr.With(ErrInvalidFeatureRef, "reference", declared)
	}
	if looksLikeRegistry(parts[0]) {
		namespace := strings.Join(parts[1:len(parts)-1], "/")
		return FeatureRef{Registry: parts[0], Namespace: namespace, Name: name, Version: version}, nil
	}
	namespace := strings.Join(parts[:len(parts)-1], "/")
	return FeatureRef{Registry: DefaultRegistry, Namespace: namespace, Name: name, Version: version}, nil
}

// ExpandLegacyID maps a bare legacy feature id to its published home under
// the default registry and namespace. Automatic mapping proposes these
// expanded references as candidates.
func ExpandLegacyID(id string) string {
	return DefaultRegistry + "/" + DefaultNamespace + "/" + id
}

// IsLegacyID reports whether a declared reference is an unqualified feature
// id from before registry publishing, e.g. "go" or "docker-in-docker:2".
// Such ids are candidates for automatic mapping onto the default namespace.
func IsLegacyID(declared string) bool {
	if declared == "" || strings.HasPrefix(declared, ".") {
		return false
	}
	return !strings.ContainsAny(declared, "/\\")
}

// IsRegistryRef reports whether a declared reference denotes OCI registry
// coordinates. Local paths, direct URLs, and bare legacy ids are not
// versionable and are excluded from version resolution.
func IsRegistryRef(declared string) bool {
	if declared == "" {
		return false
	}
	for _, prefix := range []string{"./", "../", "/", "http://", "https://", "file://"} {
		if strings.HasPrefix(declared, prefix) {
			return false
		}
	}
	if strings.Contains(declared, "\\") {
		return false
	}
	// Windows drive paths such as C:\foo or D:/bar.
	if len(declared) >= 3 && declared[1] == ':' && (declared[2] == '/' || declared[2] == '\\') {
		return false
	}
	return strings.Contains(declared, "/")
}

// Tag returns the declared tag, defaulting to "latest" for untagged
// references. Digest-pinned references have no tag.
func (r FeatureRef) Tag() string {
	if r.IsDigestPinned() {
		return ""
	}
	if r.Version == "" {
		return "latest"
	}
	return r.Version
}

// IsDigestPinned reports whether the reference pins content by digest rather
// than by tag.
func (r FeatureRef) IsDigestPinned() bool {
	return strings.HasPrefix(r.Version, "sha256:")
}

// Repository returns the repository path below the registry host.
func (r FeatureRef) Repository() string {
	if r.Namespace == "" {
		return r.Name
	}
	return r.Namespace + "/" + r.Name
}

// Reference returns the full reference string including the registry host and
// the tag or digest.
func (r FeatureRef) Reference() string {
	base := r.Registry + "/" + r.Repository()
	if r.IsDigestPinned() {
		return base + "@" + r.Version
	}
	return base + ":" + r.Tag()
}

// ID returns the feature identity without any tag or digest, the form used as
// the lockfile key.
func (r FeatureRef) ID() string {
	return r.Registry + "/" + r.Repository()
}

// CanonicalFeatureID strips the tag or digest from a declared reference,
// yielding the identity used as the lockfile key. A colon is only treated as a
// tag separator when it appears after the last slash, so registry ports
// (localhost:5000/ns/name) survive intact.
func CanonicalFeatureID(declared string) string {
	if at := strings.Index(declared, "@"); at >= 0 {
		return declared[:at]
	}
	lastSlash := strings.LastIndex(declared, "/")
	if colon := strings.LastIndex(declared, ":"); colon > lastSlash {
		return declared[:colon]
	}
	return declared
}

// splitNameVersion splits "name", "name:tag", or "name@sha256:digest" into the
// name and the version component.
func splitNameVersion(s string) (name, version string) {
	if at := strings.Index(s, "@"); at >= 0 {
		return s[:at], s[at+1:]
	}
	if colon := strings.Index(s, ":"); colon >= 0 {
		return s[:colon], s[colon+1:]
	}
	return s, ""
}

// looksLikeRegistry reports whether a path segment denotes a registry host:
// it contains a dot (ghcr.io) or a numeric port (localhost:5000).
func looksLikeRegistry(s string) bool {
	if strings.Contains(s, ".") {
		return true
	}
	colon := strings.Index(s, ":")
	if colon < 0 || colon == len(s)-1 {
		return false
	}
	for _, c := range s[colon+1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
