package domain

import "time"

const (
	// DefaultConcurrency bounds parallel feature resolution when settings do
	// not say otherwise.
	DefaultConcurrency = 6

	// MinConcurrency and MaxConcurrency clamp configured values.
	MinConcurrency = 1
	MaxConcurrency = 32

	// DefaultFetchTimeout applies per registry request, not per run.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultTagListTTL bounds how long cached tag listings are trusted.
	// Manifests are content-addressed and never expire; tag lists move.
	DefaultTagListTTL = 5 * time.Minute
)

// Configuration is a loaded devcontainer configuration: where it was found
// and the features it declares, in declaration order.
type Configuration struct {
	Path     string
	Features []DeclaredFeature
}

// RegistrySettings carries per-registry overrides from tool settings.
// Credential fields must never reach log or error output.
type RegistrySettings struct {
	Token     string
	Username  string
	Password  string
	PlainHTTP bool
}

// Settings are tool-level knobs, all optional. Zero values mean "use the
// default"; the Effective accessors apply defaults and clamping.
type Settings struct {
	Concurrency  int
	FetchTimeout time.Duration
	TagListTTL   time.Duration
	Debug        bool
	Registries   map[string]RegistrySettings
}

// EffectiveConcurrency returns the configured parallelism clamped to the
// supported range.
func (s Settings) EffectiveConcurrency() int {
	c := s.Concurrency
	if c == 0 {
		c = DefaultConcurrency
	}
	if c < MinConcurrency {
		c = MinConcurrency
	}
	if c > MaxConcurrency {
		c = MaxConcurrency
	}
	return c
}

// EffectiveFetchTimeout returns the per-request timeout to apply to registry
// calls.
func (s Settings) EffectiveFetchTimeout() time.Duration {
	if s.FetchTimeout <= 0 {
		return DefaultFetchTimeout
	}
	return s.FetchTimeout
}

// EffectiveTagListTTL returns how long cached tag listings stay fresh.
func (s Settings) EffectiveTagListTTL() time.Duration {
	if s.TagListTTL <= 0 {
		return DefaultTagListTTL
	}
	return s.TagListTTL
}

// RegistryFor returns the settings for one registry host, zero when none are
// configured.
func (s Settings) RegistryFor(host string) RegistrySettings {
	if s.Registries == nil {
		return RegistrySettings{}
	}
	return s.Registries[host]
}
