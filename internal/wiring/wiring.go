// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "featlock/internal/adapters/cas"
	_ "featlock/internal/adapters/config"
	_ "featlock/internal/adapters/lockfile"
	_ "featlock/internal/adapters/logger"
	_ "featlock/internal/adapters/registry"
	_ "featlock/internal/adapters/telemetry/progrock"
	// Register app and engine nodes.
	_ "featlock/internal/app"
	_ "featlock/internal/engine/resolver"
)
