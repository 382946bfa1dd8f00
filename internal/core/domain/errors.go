package domain

import "go.trai.ch/zerr"

var (
	// ErrFeatureNotFound is returned when a registry reports that a manifest,
	// tag list, or blob does not exist. It is a normal outcome, not a transport failure.
	ErrFeatureNotFound = zerr.New("feature not found")

	// ErrAuthRequired is returned when a registry demands authentication and
	// no usable credential source is available.
	ErrAuthRequired = zerr.New("registry authentication required")

	// ErrAuthFailed is returned when the registry rejects the presented credentials.
	ErrAuthFailed = zerr.New("registry authentication failed")

	// ErrNetworkTimeout is returned when a registry request exceeds its time budget.
	ErrNetworkTimeout = zerr.New("registry request timed out")

	// ErrRegistryResponse is returned when a registry answers with a payload or
	// status the client cannot interpret.
	ErrRegistryResponse = zerr.New("unexpected registry response")

	// ErrDigestMismatch is returned when fetched content does not hash to the
	// digest it was requested by.
	ErrDigestMismatch = zerr.New("content digest mismatch")

	// ErrInvalidFeatureRef is returned when a declared feature reference cannot
	// be parsed into registry coordinates.
	ErrInvalidFeatureRef = zerr.New("invalid feature reference")

	// ErrInvalidVersionPin is returned when an explicit version target is
	// malformed. It is detected before any network activity.
	ErrInvalidVersionPin = zerr.New("invalid version pin")

	// ErrLockfileMissing is returned by frozen enforcement when no lockfile
	// exists, or when an entry for a declared feature is absent.
	ErrLockfileMissing = zerr.New("lockfile missing")

	// ErrLockfileMismatch is returned by frozen enforcement when the resolved
	// feature set deviates from the recorded lockfile.
	ErrLockfileMismatch = zerr.New("lockfile mismatch")

	// ErrLockfileInvalid is returned when a lockfile on disk fails structural
	// validation. Lockfiles are never auto-repaired.
	ErrLockfileInvalid = zerr.New("lockfile invalid")

	// ErrFeatureAlreadyExists is returned when the same feature id is added to
	// a dependency graph twice.
	ErrFeatureAlreadyExists = zerr.New("feature already exists")

	// ErrMissingDependency is returned when a feature references a dependency
	// that is not part of the graph.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrCycleDetected is returned when the dependency relations of the
	// resolved set form a cycle.
	ErrCycleDetected = zerr.New("dependency cycle detected")
)
