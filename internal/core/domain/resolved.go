package domain

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/opencontainers/go-digest"
	"go.trai.ch/zerr"
)

// Origin records how a feature entered the resolution set.
type Origin int

const (
	// OriginDeclared marks features written in the configuration.
	OriginDeclared Origin = iota
	// OriginAutoMapped marks features contributed by automatic mapping.
	OriginAutoMapped
)

// String returns the origin name for log and report output.
func (o Origin) String() string {
	switch o {
	case OriginDeclared:
		return "declared"
	case OriginAutoMapped:
		return "auto-mapped"
	default:
		return "unknown"
	}
}

// ResolveState tracks a reference through its resolution lifecycle.
type ResolveState int

const (
	// StateDeclared is the initial state before any work happens.
	StateDeclared ResolveState = iota
	// StateResolving marks a reference with registry calls in flight.
	StateResolving
	// StateResolved is terminal success.
	StateResolved
	// StateFailed is terminal failure, scoped to this reference only.
	StateFailed
)

// String returns the state name for log output.
func (s ResolveState) String() string {
	switch s {
	case StateDeclared:
		return "declared"
	case StateResolving:
		return "resolving"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DeclaredFeature is one feature reference as it appears in the
// configuration, in declaration order, before any resolution.
type DeclaredFeature struct {
	Ref     string
	Options json.RawMessage
	Origin  Origin
}

// VersionTriple is the per-feature version report. Empty fields mean the
// value could not be determined; an empty string is never a valid version.
type VersionTriple struct {
	Current     string `json:"current,omitempty"`
	Wanted      string `json:"wanted,omitempty"`
	WantedMajor string `json:"wantedMajor,omitempty"`
	Latest      string `json:"latest,omitempty"`
	LatestMajor string `json:"latestMajor,omitempty"`
}

// Outdated reports whether the wanted or latest version is known to differ
// from the current one.
func (t VersionTriple) Outdated() bool {
	if t.Current == "" {
		return false
	}
	if t.Wanted != "" && t.Wanted != t.Current {
		return true
	}
	return t.Latest != "" && t.Latest != t.Current
}

// ResolvedFeature is the terminal record for one declared reference after
// resolution. Metadata is always present, possibly empty. Non-registry
// references (local paths, direct URLs) resolve without registry traffic and
// carry no version information.
type ResolvedFeature struct {
	DeclaredRef string
	ID          string
	Origin      Origin
	State       ResolveState
	Registry    bool
	Ref         FeatureRef
	Options     json.RawMessage
	Metadata    FeatureMetadata

	// CanonicalRef is the digest-qualified reference and Digest the manifest
	// digest it embeds. Both stay empty until resolution succeeds.
	CanonicalRef string
	Digest       digest.Digest

	Versions      VersionTriple
	DependsOn     []string
	InstallsAfter []string

	// Err holds the terminal failure for StateFailed entries.
	Err error
}

// LockVersion is the version persisted for this feature: the published
// metadata version when available, else the wanted version.
func (f ResolvedFeature) LockVersion() string {
	if f.Metadata.Version != "" {
		return f.Metadata.Version
	}
	return f.Versions.Wanted
}

// Lockable reports whether the feature carries everything a lockfile entry
// needs.
func (f ResolvedFeature) Lockable() bool {
	return f.State == StateResolved && f.Registry && f.CanonicalRef != "" && f.LockVersion() != ""
}

// GenerateLockfile builds the lockfile for a resolved set. Only successfully
// resolved registry features produce entries; dependsOn edges are kept only
// when the dependency is itself locked, so every reference in the file
// resolves.
func GenerateLockfile(features []ResolvedFeature) Lockfile {
	lf := NewLockfile()
	for _, f := range features {
		if !f.Lockable() {
			continue
		}
		lf.Features[f.ID] = LockfileEntry{
			Version:   f.LockVersion(),
			Resolved:  f.CanonicalRef,
			Integrity: f.Digest.String(),
		}
	}
	for _, f := range features {
		if !f.Lockable() || len(f.DependsOn) == 0 {
			continue
		}
		entry := lf.Features[f.ID]
		for _, dep := range f.DependsOn {
			if _, ok := lf.Features[dep]; ok {
				entry.DependsOn = append(entry.DependsOn, dep)
			}
		}
		sort.Strings(entry.DependsOn)
		lf.Features[f.ID] = entry
	}
	return lf
}

// MergedConfiguration is the effective configuration computed from a resolved
// feature set: the deduplicated features in declaration order, the
// topological install order, and the aggregated container settings from
// feature metadata.
type MergedConfiguration struct {
	Features     []ResolvedFeature
	InstallOrder []string

	ContainerEnv map[string]string
	Mounts       []json.RawMessage
	Init         bool
	Privileged   bool
	CapAdd       []string
	SecurityOpt  []string
}

// Feature returns the resolved feature with the given id.
func (m MergedConfiguration) Feature(id string) (ResolvedFeature, bool) {
	for _, f := range m.Features {
		if f.ID == id {
			return f, true
		}
	}
	return ResolvedFeature{}, false
}

// FailedFeatures returns the subset that terminally failed, in declaration
// order.
func (m MergedConfiguration) FailedFeatures() []ResolvedFeature {
	var failed []ResolvedFeature
	for _, f := range m.Features {
		if f.State == StateFailed {
			failed = append(failed, f)
		}
	}
	return failed
}

// OutdatedRow pairs a feature id with its version triple.
type OutdatedRow struct {
	ID       string
	Versions VersionTriple
}

// OutdatedReport lists version triples for the versionable declared features,
// in declaration order.
type OutdatedReport struct {
	Rows []OutdatedRow
}

// AnyOutdated reports whether any row is known to lag its wanted or latest
// version.
func (r OutdatedReport) AnyOutdated() bool {
	for _, row := range r.Rows {
		if row.Versions.Outdated() {
			return true
		}
	}
	return false
}

// MarshalJSON renders {"features": {id: triple, ...}} preserving declaration
// order, which a plain map would destroy.
func (r OutdatedReport) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"features":{`)
	for i, row := range r.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(row.ID)
		if err != nil {
			return nil, zerr.Wrap(err, "marshal feature id")
		}
		buf.Write(key)
		buf.WriteByte(':')
		triple, err := json.Marshal(row.Versions)
		if err != nil {
			return nil, zerr.Wrap(err, "marshal version triple")
		}
		buf.Write(triple)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}
