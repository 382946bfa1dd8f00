// Package resolver implements the feature resolution pipeline: merge policy
// over the declared set, bounded-parallel registry resolution, and assembly
// of the effective configuration in declaration order.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"featlock/internal/core/domain"
	"featlock/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Resolver turns declared feature references into a merged configuration by
// resolving each reference against its registry.
type Resolver struct {
	registry  ports.RegistryClient
	telemetry ports.Telemetry
	log       ports.Logger
}

// New creates a Resolver.
func New(registry ports.RegistryClient, telemetry ports.Telemetry, log ports.Logger) *Resolver {
	return &Resolver{
		registry:  registry,
		telemetry: telemetry,
		log:       log,
	}
}

// Options control a single resolution run.
type Options struct {
	// SkipAutoMapping discards automatic mapping candidates wholesale, so the
	// resolved set contains exactly the explicitly declared references.
	SkipAutoMapping bool

	// Lockfile supplies recorded versions for the "current" field of version
	// reports. The zero value means no lockfile exists.
	Lockfile domain.Lockfile

	// Concurrency bounds how many references resolve in parallel. Zero picks
	// the domain default.
	Concurrency int
}

func (o Options) concurrency() int {
	return domain.Settings{Concurrency: o.Concurrency}.EffectiveConcurrency()
}

// Resolve takes the declared references through policy filtering, resolves
// them against the registry with bounded parallelism, and reassembles the
// outcome in declaration order. Per-reference failures stay on the affected
// entry; Resolve itself fails only for invalid input, cancellation, or a
// dependency graph that cannot be ordered.
func (r *Resolver) Resolve(ctx context.Context, declared []domain.DeclaredFeature, opts Options) (domain.MergedConfiguration, error) {
	entries, err := prepare(declared, opts.SkipAutoMapping)
	if err != nil {
		return domain.MergedConfiguration{}, err
	}

	r.log.Info(fmt.Sprintf("resolving %d features", len(entries)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency())
	for i := range entries {
		if !entries[i].Registry {
			continue
		}
		g.Go(func() error {
			// Each goroutine owns exactly one slot; failures are recorded
			// on the entry, never returned, so siblings keep running.
			r.resolveOne(gctx, &entries[i], opts.Lockfile)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return domain.MergedConfiguration{}, zerr.Wrap(err, "resolution interrupted")
	}

	return merge(entries)
}

// prepare applies the merge policy and validates every reference before any
// network traffic: automatic mapping candidates are expanded onto the default
// namespace (or discarded when skip is set), registry references are parsed,
// version pins classified, and duplicate feature ids collapsed onto one
// entry. An unparseable reference or a malformed pin fails the whole run.
func prepare(declared []domain.DeclaredFeature, skip bool) ([]domain.ResolvedFeature, error) {
	entries := make([]domain.ResolvedFeature, 0, len(declared))
	index := make(map[string]int, len(declared))

	for _, d := range declared {
		if skip && d.Origin == domain.OriginAutoMapped {
			continue
		}
		e, err := newEntry(d)
		if err != nil {
			return nil, err
		}
		at, ok := index[e.ID]
		if !ok {
			index[e.ID] = len(entries)
			entries = append(entries, e)
			continue
		}
		// The same feature declared twice: an explicit declaration
		// supersedes an auto-mapped candidate, otherwise the first
		// occurrence wins. The survivor keeps the earliest slot.
		if entries[at].Origin == domain.OriginAutoMapped && e.Origin == domain.OriginDeclared {
			entries[at] = e
		}
	}
	return entries, nil
}

// newEntry builds the initial entry for one declared reference. Non-registry
// forms (local paths, direct URLs) carry no registry coordinates and resolve
// immediately, without version information.
func newEntry(d domain.DeclaredFeature) (domain.ResolvedFeature, error) {
	e := domain.ResolvedFeature{
		DeclaredRef: d.Ref,
		ID:          d.Ref,
		Origin:      d.Origin,
		State:       domain.StateDeclared,
		Options:     d.Options,
	}

	declared := d.Ref
	if d.Origin == domain.OriginAutoMapped {
		declared = domain.ExpandLegacyID(d.Ref)
	}
	if !domain.IsRegistryRef(declared) {
		e.State = domain.StateResolved
		return e, nil
	}

	ref, err := domain.ParseFeatureRef(declared)
	if err != nil {
		return domain.ResolvedFeature{}, err
	}
	if _, err := domain.ClassifyPin(ref); err != nil {
		return domain.ResolvedFeature{}, err
	}
	e.Registry = true
	e.Ref = ref
	e.ID = ref.ID()
	return e, nil
}

// resolveOne fetches everything one registry reference needs and records the
// outcome on its entry.
func (r *Resolver) resolveOne(ctx context.Context, e *domain.ResolvedFeature, lf domain.Lockfile) {
	e.State = domain.StateResolving
	ctx, vertex := r.telemetry.Record(ctx, "resolve "+e.Ref.Reference())

	manifest, dgst, err := r.registry.FetchManifest(ctx, e.Ref)
	if err != nil {
		r.fail(e, vertex, err)
		return
	}
	e.Digest = dgst
	e.CanonicalRef = e.ID + "@" + dgst.String()

	meta, err := r.loadMetadata(ctx, e, manifest, vertex)
	if err != nil {
		r.fail(e, vertex, err)
		return
	}
	e.Metadata = meta
	e.Versions = r.versions(ctx, e, lf, vertex)

	e.State = domain.StateResolved
	vertex.Complete(nil)
}

func (r *Resolver) fail(e *domain.ResolvedFeature, vertex ports.Vertex, err error) {
	e.State = domain.StateFailed
	e.Err = err
	r.log.Warn(fmt.Sprintf("failed to resolve %s: %v", e.Ref.Reference(), err))
	vertex.Complete(err)
}

// versions computes the version triple for a resolved entry. Tag-dependent
// fields degrade to empty when the tag list cannot be fetched; the entry
// still resolves.
func (r *Resolver) versions(ctx context.Context, e *domain.ResolvedFeature, lf domain.Lockfile, vertex ports.Vertex) domain.VersionTriple {
	kind, err := domain.ClassifyPin(e.Ref)
	if err != nil {
		// Pins were validated before resolution started.
		return domain.VersionTriple{}
	}

	tags, err := r.registry.ListTags(ctx, e.Ref)
	if err != nil {
		msg := fmt.Sprintf("tag listing unavailable for %s: %v", e.Ref.Reference(), err)
		r.log.Warn(msg)
		vertex.Log(domain.LogLevelWarn, msg)
		tags = nil
	}

	var t domain.VersionTriple
	if wanted, ok := domain.WantedVersion(kind, e.Ref.Tag(), tags, e.Metadata.Version); ok {
		t.Wanted = wanted
		if major, ok := domain.MajorOf(wanted); ok {
			t.WantedMajor = major
		}
	}
	if latest, ok := domain.LatestVersion(tags); ok {
		t.Latest = latest
		if major, ok := domain.MajorOf(latest); ok {
			t.LatestMajor = major
		}
	}
	if entry, ok := lf.Entry(e.ID); ok {
		t.Current = entry.Version
	} else {
		t.Current = t.Wanted
	}
	return t
}

// merge reassembles the resolved entries into the effective configuration:
// dependency edges are bridged onto set ids, the install order computed, and
// the per-feature container requirements aggregated. Entry order is the
// declaration order throughout.
func merge(entries []domain.ResolvedFeature) (domain.MergedConfiguration, error) {
	bridge := newEdgeBridge(entries)
	for i := range entries {
		entries[i].DependsOn = bridge.edges(entries[i].ID, entries[i].Metadata.DependencyRefs())
		entries[i].InstallsAfter = bridge.edges(entries[i].ID, entries[i].Metadata.InstallsAfter)
	}

	graph := domain.NewGraph()
	for i := range entries {
		node := domain.GraphNode{ID: domain.NewInternedString(entries[i].ID)}
		for _, dep := range entries[i].DependsOn {
			// Hard edges pointing outside the set stay visible on the
			// entry but cannot constrain the install order.
			if !bridge.inSet(dep) {
				continue
			}
			node.DependsOn = append(node.DependsOn, domain.NewInternedString(dep))
		}
		for _, dep := range entries[i].InstallsAfter {
			node.InstallsAfter = append(node.InstallsAfter, domain.NewInternedString(dep))
		}
		if err := graph.AddFeature(node); err != nil {
			return domain.MergedConfiguration{}, err
		}
	}
	if err := graph.Validate(); err != nil {
		return domain.MergedConfiguration{}, zerr.Wrap(err, "resolved feature set is not orderable")
	}

	merged := domain.MergedConfiguration{
		Features:     entries,
		InstallOrder: graph.InstallOrder(),
	}
	aggregate(&merged)
	return merged, nil
}

// aggregate folds per-feature container requirements into the merged
// configuration. Environment variables apply in declaration order with later
// features winning; mounts are deduplicated by their raw form; capability
// names are uppercased; boolean requirements are sticky once any feature
// sets them.
func aggregate(m *domain.MergedConfiguration) {
	env := make(map[string]string)
	seenMounts := make(map[string]struct{})
	caps := make(map[string]struct{})
	secOpts := make(map[string]struct{})

	for _, f := range m.Features {
		meta := f.Metadata
		for k, v := range meta.ContainerEnv {
			env[k] = v
		}
		for _, mount := range meta.Mounts {
			key := string(mount)
			if _, ok := seenMounts[key]; ok {
				continue
			}
			seenMounts[key] = struct{}{}
			m.Mounts = append(m.Mounts, mount)
		}
		if meta.Init != nil && *meta.Init {
			m.Init = true
		}
		if meta.Privileged != nil && *meta.Privileged {
			m.Privileged = true
		}
		for _, c := range meta.CapAdd {
			if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
				caps[c] = struct{}{}
			}
		}
		for _, o := range meta.SecurityOpt {
			if o = strings.TrimSpace(o); o != "" {
				secOpts[o] = struct{}{}
			}
		}
	}

	if len(env) > 0 {
		m.ContainerEnv = env
	}
	m.CapAdd = sortedKeys(caps)
	m.SecurityOpt = sortedKeys(secOpts)
}

// edgeBridge maps dependency references from feature metadata onto the ids
// of the resolved set. Publishers write dependsOn keys as full registry
// references and installsAfter entries as either references or short feature
// ids; both shapes are accepted.
type edgeBridge struct {
	ids     map[string]struct{}
	shortID map[string]string
}

func newEdgeBridge(entries []domain.ResolvedFeature) *edgeBridge {
	b := &edgeBridge{
		ids:     make(map[string]struct{}, len(entries)),
		shortID: make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		b.ids[e.ID] = struct{}{}
		if e.Metadata.ID != "" {
			b.shortID[e.Metadata.ID] = e.ID
		}
	}
	return b
}

// edges maps metadata references onto set ids where possible, dropping self
// references and duplicates while preserving order.
func (b *edgeBridge) edges(self string, refs []string) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		id := b.resolve(ref)
		if id == self {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (b *edgeBridge) resolve(ref string) string {
	id := domain.CanonicalFeatureID(ref)
	if _, ok := b.ids[id]; ok {
		return id
	}
	if full, ok := b.shortID[ref]; ok {
		return full
	}
	return id
}

func (b *edgeBridge) inSet(id string) bool {
	_, ok := b.ids[id]
	return ok
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
