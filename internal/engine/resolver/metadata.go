package resolver

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"featlock/internal/core/domain"
	"featlock/internal/core/ports"
	"go.trai.ch/zerr"
)

// metadataFilename is the document a feature ships at the root of its layer
// tarball.
const metadataFilename = "devcontainer-feature.json"

// loadMetadata obtains the feature metadata document. A manifest annotation
// is authoritative: present but broken means the published artifact is
// broken, and the entry fails. Without the annotation the feature layer is
// fetched and its devcontainer-feature.json read; on that path everything
// except a digest mismatch degrades to empty metadata, since the lock entry
// is backed by the manifest digest either way.
func (r *Resolver) loadMetadata(ctx context.Context, e *domain.ResolvedFeature, m domain.Manifest, vertex ports.Vertex) (domain.FeatureMetadata, error) {
	meta, ok, err := m.MetadataAnnotation()
	if err != nil {
		return domain.FeatureMetadata{}, err
	}
	if ok {
		if err := meta.Validate(); err != nil {
			return domain.FeatureMetadata{}, err
		}
		return meta, nil
	}

	layer, ok := featureLayer(m)
	if !ok {
		return domain.FeatureMetadata{}, nil
	}

	blob, err := r.registry.FetchBlob(ctx, e.Ref, layer.Digest)
	if errors.Is(err, domain.ErrDigestMismatch) {
		return domain.FeatureMetadata{}, err
	}
	if err != nil {
		r.warnMetadata(e, vertex, err)
		return domain.FeatureMetadata{}, nil
	}

	meta, err = metadataFromLayer(blob)
	if err != nil {
		r.warnMetadata(e, vertex, err)
		return domain.FeatureMetadata{}, nil
	}
	if err := meta.Validate(); err != nil {
		r.warnMetadata(e, vertex, err)
		return domain.FeatureMetadata{}, nil
	}
	return meta, nil
}

func (r *Resolver) warnMetadata(e *domain.ResolvedFeature, vertex ports.Vertex, err error) {
	msg := fmt.Sprintf("feature metadata unavailable for %s: %v", e.Ref.Reference(), err)
	r.log.Warn(msg)
	vertex.Log(domain.LogLevelWarn, msg)
}

// featureLayer picks the layer carrying the feature tarball: the one with the
// devcontainers layer media type, or the first layer when no layer is typed
// that way.
func featureLayer(m domain.Manifest) (domain.Descriptor, bool) {
	for _, l := range m.Layers {
		if l.MediaType == domain.MediaTypeFeatureLayer {
			return l, true
		}
	}
	if len(m.Layers) > 0 {
		return m.Layers[0], true
	}
	return domain.Descriptor{}, false
}

// metadataFromLayer scans the layer tarball for the metadata document at the
// archive root and decodes it.
func metadataFromLayer(blob []byte) (domain.FeatureMetadata, error) {
	tr := tar.NewReader(bytes.NewReader(blob))
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.FeatureMetadata{}, zerr.Wrap(err, "read feature layer archive")
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if path.Clean(strings.TrimPrefix(hdr.Name, "./")) != metadataFilename {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return domain.FeatureMetadata{}, zerr.Wrap(err, "read feature metadata from layer")
		}
		var meta domain.FeatureMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return domain.FeatureMetadata{}, zerr.Wrap(err, "parse feature metadata from layer")
		}
		return meta, nil
	}
	return domain.FeatureMetadata{}, zerr.Wrap(domain.ErrRegistryResponse, "feature layer has no metadata document")
}
