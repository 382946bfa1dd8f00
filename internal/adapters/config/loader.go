// Package config loads the devcontainer configuration and the optional
// featlock tool settings.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"featlock/internal/core/domain"
	"featlock/internal/core/ports"
	"github.com/tailscale/hujson"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// SettingsFilename is the optional tool settings file in the workspace root.
const SettingsFilename = "featlock.yaml"

// configCandidates are the discovery locations tried in order below the
// workspace root.
var configCandidates = []string{
	filepath.Join(".devcontainer", "devcontainer.json"),
	".devcontainer.json",
	"devcontainer.json",
}

// Loader implements ports.ConfigLoader. devcontainer.json files may carry
// comments and trailing commas; those are standardized away before parsing.
type Loader struct {
	Logger ports.Logger
}

// NewLoader returns a Loader.
func NewLoader(log ports.Logger) *Loader {
	return &Loader{Logger: log}
}

// Load discovers and reads the devcontainer configuration under the given
// workspace. A non-empty explicitPath overrides discovery; a relative one is
// taken relative to the workspace.
func (l *Loader) Load(workspace, explicitPath string) (*domain.Configuration, error) {
	path, err := l.resolvePath(workspace, explicitPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is provided by user
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read configuration"), "path", path)
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse configuration"), "path", path)
	}

	features, err := parseFeatures(std)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	if len(features) == 0 {
		l.Logger.Warn("configuration declares no features: " + path)
	}

	return &domain.Configuration{Path: path, Features: features}, nil
}

func (l *Loader) resolvePath(workspace, explicitPath string) (string, error) {
	if explicitPath != "" {
		if !filepath.IsAbs(explicitPath) {
			explicitPath = filepath.Join(workspace, explicitPath)
		}
		if _, err := os.Stat(explicitPath); err != nil {
			return "", zerr.With(zerr.Wrap(err, "configuration not found"), "path", explicitPath)
		}
		return explicitPath, nil
	}
	for _, rel := range configCandidates {
		path := filepath.Join(workspace, rel)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", zerr.With(zerr.New("no devcontainer configuration found"), "workspace", workspace)
}

// parseFeatures walks the top-level object and collects the features entries
// in declaration order. Decoding into a map would lose that order.
func parseFeatures(data []byte) ([]domain.DeclaredFeature, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to parse configuration")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, zerr.New("configuration root must be an object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, zerr.Wrap(err, "failed to parse configuration")
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, zerr.New("configuration root must be an object")
		}
		if key != "features" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, zerr.Wrap(err, "failed to parse configuration")
			}
			continue
		}
		return parseFeatureEntries(dec)
	}
	return nil, nil
}

func parseFeatureEntries(dec *json.Decoder) ([]domain.DeclaredFeature, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to parse features")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, zerr.New("features must be an object")
	}

	var features []domain.DeclaredFeature
	for dec.More() {
		refTok, err := dec.Token()
		if err != nil {
			return nil, zerr.Wrap(err, "failed to parse features")
		}
		ref, ok := refTok.(string)
		if !ok {
			return nil, zerr.New("features must be an object")
		}
		var options json.RawMessage
		if err := dec.Decode(&options); err != nil {
			return nil, zerr.Wrap(err, "failed to parse features")
		}
		features = append(features, domain.DeclaredFeature{
			Ref:     ref,
			Options: options,
			Origin:  originOf(ref),
		})
	}
	return features, nil
}

// originOf classifies a declared reference. Bare legacy ids become automatic
// mapping candidates; everything else counts as explicitly declared.
func originOf(ref string) domain.Origin {
	if domain.IsLegacyID(ref) {
		return domain.OriginAutoMapped
	}
	return domain.OriginDeclared
}

// LoadSettings reads featlock.yaml from the workspace. A missing file yields
// zero settings and no error; the domain defaults apply.
func (l *Loader) LoadSettings(workspace string) (domain.Settings, error) {
	path := filepath.Join(workspace, SettingsFilename)
	data, err := os.ReadFile(path) //nolint:gosec // path derives from the workspace flag
	if errors.Is(err, os.ErrNotExist) {
		return domain.Settings{}, nil
	}
	if err != nil {
		return domain.Settings{}, zerr.With(zerr.Wrap(err, "failed to read settings"), "path", path)
	}

	var file SettingsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return domain.Settings{}, zerr.With(zerr.Wrap(err, "failed to parse settings"), "path", path)
	}

	settings := domain.Settings{
		Concurrency: file.Concurrency,
		Debug:       file.Debug,
	}
	if file.Concurrency < 0 || file.Concurrency > domain.MaxConcurrency {
		l.Logger.Warn(fmt.Sprintf("concurrency %d is outside %d..%d and will be clamped",
			file.Concurrency, domain.MinConcurrency, domain.MaxConcurrency))
	}
	if settings.FetchTimeout, err = parseDuration(file.FetchTimeout, "fetchTimeout"); err != nil {
		return domain.Settings{}, zerr.With(err, "path", path)
	}
	if settings.TagListTTL, err = parseDuration(file.TagListTTL, "tagListTTL"); err != nil {
		return domain.Settings{}, zerr.With(err, "path", path)
	}
	for host, entry := range file.Registries {
		if settings.Registries == nil {
			settings.Registries = make(map[string]domain.RegistrySettings, len(file.Registries))
		}
		settings.Registries[host] = domain.RegistrySettings{
			Token:     entry.Token,
			Username:  entry.Username,
			Password:  entry.Password,
			PlainHTTP: entry.PlainHTTP,
		}
	}
	return settings, nil
}

func parseDuration(raw, field string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "invalid duration in settings"), "field", field)
	}
	return d, nil
}
