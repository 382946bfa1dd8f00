package domain

import (
	"encoding/json"
	"errors"
	"sort"

	"github.com/opencontainers/go-digest"
	"go.trai.ch/zerr"
)

const (
	// MediaTypeManifest is the OCI image manifest media type requested when
	// fetching feature manifests.
	MediaTypeManifest = "application/vnd.oci.image.manifest.v1+json"

	// MediaTypeFeatureLayer is the layer media type feature publishers use
	// for the feature tarball.
	MediaTypeFeatureLayer = "application/vnd.devcontainers.layer.v1+tar"

	// AnnotationFeatureMetadata carries the feature metadata document as a
	// manifest annotation, sparing a blob fetch when present.
	AnnotationFeatureMetadata = "dev.containers.metadata"
)

// Descriptor references a blob by digest, as embedded in an OCI manifest.
type Descriptor struct {
	MediaType   string            `json:"mediaType"`
	Digest      digest.Digest     `json:"digest"`
	Size        int64             `json:"size"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Manifest is an OCI image manifest as served by the registry.
type Manifest struct {
	SchemaVersion int               `json:"schemaVersion"`
	MediaType     string            `json:"mediaType,omitempty"`
	ArtifactType  string            `json:"artifactType,omitempty"`
	Config        Descriptor        `json:"config"`
	Layers        []Descriptor      `json:"layers"`
	Annotations   map[string]string `json:"annotations,omitempty"`
}

// MetadataAnnotation extracts feature metadata embedded as a manifest
// annotation. The second return is false when the annotation is absent; a
// present but unparseable annotation is a registry response error.
func (m Manifest) MetadataAnnotation() (FeatureMetadata, bool, error) {
	raw, ok := m.Annotations[AnnotationFeatureMetadata]
	if !ok || raw == "" {
		return FeatureMetadata{}, false, nil
	}
	var meta FeatureMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return FeatureMetadata{}, false, zerr.Wrap(errors.Join(ErrRegistryResponse, err), "parse feature metadata annotation")
	}
	return meta, true, nil
}

// TagList is the registry response for a repository tag listing. Pages are
// concatenated into a single list before use.
type TagList struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// FeatureOption describes one configurable option published in feature
// metadata.
type FeatureOption struct {
	Type        string   `json:"type,omitempty"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Proposals   []string `json:"proposals,omitempty"`
	Description string   `json:"description,omitempty"`
}

// FeatureMetadata is the devcontainer-feature.json document a feature
// publishes, either inline as a manifest annotation or inside the layer
// tarball. Lifecycle commands keep their raw JSON shape since publishers use
// strings, arrays, and named maps interchangeably.
type FeatureMetadata struct {
	ID               string                     `json:"id"`
	Version          string                     `json:"version,omitempty"`
	Name             string                     `json:"name,omitempty"`
	Description      string                     `json:"description,omitempty"`
	DocumentationURL string                     `json:"documentationURL,omitempty"`
	LicenseURL       string                     `json:"licenseURL,omitempty"`
	Options          map[string]FeatureOption   `json:"options,omitempty"`
	ContainerEnv     map[string]string          `json:"containerEnv,omitempty"`
	Mounts           []json.RawMessage          `json:"mounts,omitempty"`
	Init             *bool                      `json:"init,omitempty"`
	Privileged       *bool                      `json:"privileged,omitempty"`
	CapAdd           []string                   `json:"capAdd,omitempty"`
	SecurityOpt      []string                   `json:"securityOpt,omitempty"`
	Entrypoint       string                     `json:"entrypoint,omitempty"`
	InstallsAfter    []string                   `json:"installsAfter,omitempty"`
	DependsOn        map[string]json.RawMessage `json:"dependsOn,omitempty"`

	OnCreateCommand      json.RawMessage `json:"onCreateCommand,omitempty"`
	UpdateContentCommand json.RawMessage `json:"updateContentCommand,omitempty"`
	PostCreateCommand    json.RawMessage `json:"postCreateCommand,omitempty"`
	PostStartCommand     json.RawMessage `json:"postStartCommand,omitempty"`
	PostAttachCommand    json.RawMessage `json:"postAttachCommand,omitempty"`
}

// Validate checks the structural invariants of published metadata. An empty
// id is the one hard failure; everything else is advisory.
func (m FeatureMetadata) Validate() error {
	if m.ID == "" {
		return zerr.Wrap(ErrRegistryResponse, "feature metadata has no id")
	}
	return nil
}

// DependencyRefs returns the declared hard dependencies in sorted-key order.
func (m FeatureMetadata) DependencyRefs() []string {
	if len(m.DependsOn) == 0 {
		return nil
	}
	refs := make([]string, 0, len(m.DependsOn))
	for ref := range m.DependsOn {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
