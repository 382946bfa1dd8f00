package ports

import "featlock/internal/core/domain"

// ConfigLoader defines the interface for loading the devcontainer
// configuration and the tool settings.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load discovers and reads the devcontainer configuration under the
	// given workspace. An explicit path overrides discovery.
	Load(workspace, explicitPath string) (*domain.Configuration, error)

	// LoadSettings reads the optional tool settings from the workspace.
	// Missing settings yield defaults, not an error.
	LoadSettings(workspace string) (domain.Settings, error)
}
