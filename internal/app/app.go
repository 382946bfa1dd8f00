// Package app implements the application layer for featlock.
package app

import (
	"context"
	"fmt"
	"strings"

	"featlock/internal/adapters/registry"
	"featlock/internal/core/domain"
	"featlock/internal/core/ports"
	"featlock/internal/engine/resolver"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	loader   ports.ConfigLoader
	client   *registry.Client
	resolver *resolver.Resolver
	store    ports.LockfileStore
	log      ports.Logger
}

// New creates a new App instance.
func New(loader ports.ConfigLoader, client *registry.Client, res *resolver.Resolver, store ports.LockfileStore, log ports.Logger) *App {
	return &App{
		loader:   loader,
		client:   client,
		resolver: res,
		store:    store,
		log:      log,
	}
}

// Options name the workspace every command operates on.
type Options struct {
	// Workspace is the directory searched for the configuration and the tool
	// settings. Empty means the current directory.
	Workspace string

	// ConfigPath overrides configuration discovery with an explicit file.
	ConfigPath string
}

func (o Options) workspace() string {
	if o.Workspace == "" {
		return "."
	}
	return o.Workspace
}

// OutdatedOptions configure the outdated report.
type OutdatedOptions struct {
	Options
}

// OutdatedResult carries the version report for the configured features.
type OutdatedResult struct {
	ConfigPath string
	Report     domain.OutdatedReport
}

// Outdated resolves the configured features and reports current, wanted, and
// latest versions for each versionable feature, in declaration order.
// Features that fail to resolve keep an empty triple; they never abort the
// report.
func (a *App) Outdated(ctx context.Context, opts OutdatedOptions) (OutdatedResult, error) {
	cfg, settings, err := a.prepare(opts.Options)
	if err != nil {
		return OutdatedResult{}, err
	}
	lf, _, err := a.readLockfile(domain.LockfilePathFor(cfg.Path))
	if err != nil {
		return OutdatedResult{}, err
	}

	merged, err := a.resolver.Resolve(ctx, cfg.Features, resolver.Options{
		Lockfile:    lf,
		Concurrency: settings.Concurrency,
	})
	if err != nil {
		return OutdatedResult{}, err
	}

	report := domain.OutdatedReport{}
	for _, f := range merged.Features {
		if !f.Registry {
			continue
		}
		report.Rows = append(report.Rows, domain.OutdatedRow{ID: f.ID, Versions: f.Versions})
	}
	return OutdatedResult{ConfigPath: cfg.Path, Report: report}, nil
}

// LockOptions configure lockfile generation.
type LockOptions struct {
	Options

	// Frozen validates the existing lockfile against the configuration
	// instead of writing; any deviation is fatal.
	Frozen bool

	// DryRun computes the lockfile bytes without touching the filesystem.
	DryRun bool
}

// LockResult describes the outcome of a lock run.
type LockResult struct {
	// Path is where the lockfile lives (or would live, for a dry run).
	Path string

	// Bytes is the canonical serialized lockfile. Empty in frozen mode.
	Bytes []byte

	// Written reports whether the file was persisted.
	Written bool

	// Status relates the previous lockfile to the new content; Details name
	// each divergence.
	Status  domain.LockStatus
	Details []string

	// Failed lists features that did not resolve this run. Their previous
	// entries, when present, are carried over unchanged.
	Failed []string
}

// Lock resolves the configured features and writes the lockfile. In frozen
// mode it verifies instead: a missing lockfile or any divergence fails before
// any side effect.
func (a *App) Lock(ctx context.Context, opts LockOptions) (LockResult, error) {
	cfg, settings, err := a.prepare(opts.Options)
	if err != nil {
		return LockResult{}, err
	}
	lockPath := domain.LockfilePathFor(cfg.Path)
	disk, exists, err := a.readLockfile(lockPath)
	if err != nil {
		return LockResult{}, err
	}
	if opts.Frozen && !exists {
		return LockResult{}, zerr.With(domain.ErrLockfileMissing, "path", lockPath)
	}

	merged, err := a.resolver.Resolve(ctx, cfg.Features, resolver.Options{
		Lockfile:    disk,
		Concurrency: settings.Concurrency,
	})
	if err != nil {
		return LockResult{}, err
	}

	generated := domain.GenerateLockfile(merged.Features)
	if opts.Frozen {
		return a.verifyFrozen(lockPath, disk, generated, merged)
	}

	// A feature that failed this run keeps its previous pin; dropping it
	// would un-lock a feature over a transient registry problem.
	carried := domain.NewLockfile()
	var failed []string
	for _, f := range merged.FailedFeatures() {
		failed = append(failed, f.ID)
		if entry, ok := disk.Entry(f.ID); ok {
			carried.Features[f.ID] = entry
		}
	}
	final := carried.Merge(generated)
	pruneDanglingDeps(final)

	status := domain.LockMissing
	var details []string
	if exists {
		status, details = disk.Compare(final)
		for _, d := range details {
			a.log.Warn("lockfile drift: " + d)
		}
	}

	data, err := final.MarshalCanonical()
	if err != nil {
		return LockResult{}, err
	}
	result := LockResult{
		Path:    lockPath,
		Bytes:   data,
		Status:  status,
		Details: details,
		Failed:  failed,
	}
	if opts.DryRun {
		return result, nil
	}
	if err := a.store.Write(lockPath, final); err != nil {
		return LockResult{}, zerr.Wrap(err, "write lockfile")
	}
	result.Written = true
	a.log.Info(fmt.Sprintf("wrote %s (%d features)", lockPath, len(final.Features)))
	return result, nil
}

// verifyFrozen compares the lockfile on disk against the freshly resolved
// set. Verification needs every feature resolved; an unresolvable feature
// cannot be shown to match its locked entry.
func (a *App) verifyFrozen(lockPath string, disk, generated domain.Lockfile, merged domain.MergedConfiguration) (LockResult, error) {
	if failed := merged.FailedFeatures(); len(failed) > 0 {
		return LockResult{}, zerr.With(zerr.Wrap(failed[0].Err, "frozen verification requires every feature to resolve"), "feature", failed[0].ID)
	}
	status, details := disk.Compare(generated)
	if status != domain.LockMatched {
		err := zerr.With(domain.ErrLockfileMismatch, "path", lockPath)
		return LockResult{}, zerr.With(err, "details", strings.Join(details, "; "))
	}
	return LockResult{Path: lockPath, Status: domain.LockMatched}, nil
}

// PlanOptions configure the resolution plan.
type PlanOptions struct {
	Options

	// SkipAutoMapping discards automatic mapping candidates, leaving exactly
	// the explicitly declared features.
	SkipAutoMapping bool
}

// PlanResult carries the resolved set and its effective configuration.
type PlanResult struct {
	ConfigPath string
	Merged     domain.MergedConfiguration
}

// Plan resolves the configured features and returns them with their install
// order and the aggregated container requirements.
func (a *App) Plan(ctx context.Context, opts PlanOptions) (PlanResult, error) {
	cfg, settings, err := a.prepare(opts.Options)
	if err != nil {
		return PlanResult{}, err
	}
	lf, _, err := a.readLockfile(domain.LockfilePathFor(cfg.Path))
	if err != nil {
		return PlanResult{}, err
	}

	merged, err := a.resolver.Resolve(ctx, cfg.Features, resolver.Options{
		SkipAutoMapping: opts.SkipAutoMapping,
		Lockfile:        lf,
		Concurrency:     settings.Concurrency,
	})
	if err != nil {
		return PlanResult{}, err
	}
	return PlanResult{ConfigPath: cfg.Path, Merged: merged}, nil
}

// prepare loads the configuration and tool settings and applies the settings
// to the components that take them.
func (a *App) prepare(opts Options) (*domain.Configuration, domain.Settings, error) {
	cfg, err := a.loader.Load(opts.workspace(), opts.ConfigPath)
	if err != nil {
		return nil, domain.Settings{}, zerr.Wrap(err, "load configuration")
	}
	settings, err := a.loader.LoadSettings(opts.workspace())
	if err != nil {
		return nil, domain.Settings{}, zerr.Wrap(err, "load settings")
	}
	a.client.Configure(settings)
	if settings.Debug {
		if dbg, ok := a.log.(interface{ SetDebug(bool) }); ok {
			dbg.SetDebug(true)
		}
	}
	return cfg, settings, nil
}

// readLockfile loads the lockfile at path. The second return reports whether
// one exists; absence is not an error.
func (a *App) readLockfile(path string) (domain.Lockfile, bool, error) {
	lf, err := a.store.Read(path)
	if err != nil {
		return domain.Lockfile{}, false, zerr.Wrap(err, "read lockfile")
	}
	if lf == nil {
		return domain.Lockfile{}, false, nil
	}
	return *lf, true, nil
}

// pruneDanglingDeps drops dependsOn references to features absent from the
// lockfile, which carried-over entries can acquire when their dependency
// leaves the configuration. Every reference in a written lockfile must
// resolve.
func pruneDanglingDeps(lf domain.Lockfile) {
	for id, e := range lf.Features {
		if len(e.DependsOn) == 0 {
			continue
		}
		kept := make([]string, 0, len(e.DependsOn))
		for _, dep := range e.DependsOn {
			if _, ok := lf.Features[dep]; ok {
				kept = append(kept, dep)
			}
		}
		if len(kept) == 0 {
			kept = nil
		}
		e.DependsOn = kept
		lf.Features[id] = e
	}
}
