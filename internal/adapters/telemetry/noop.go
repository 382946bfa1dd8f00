// Package telemetry provides progress recording implementations.
package telemetry

import (
	"context"
	"io"

	"featlock/internal/core/domain"
	"featlock/internal/core/ports"
)

// Noop is a Telemetry implementation that records nothing. It stands in
// wherever progress output is unwanted, such as scripted runs and tests.
type Noop struct{}

// NewNoop creates a new no-op Telemetry.
func NewNoop() *Noop {
	return &Noop{}
}

// Record returns a vertex that swallows everything.
func (n *Noop) Record(ctx context.Context, _ string, _ ...ports.VertexOption) (context.Context, ports.Vertex) {
	v := &NoopVertex{}
	return ports.ContextWithVertex(ctx, v), v
}

// Close does nothing.
func (n *Noop) Close() error { return nil }

// NoopVertex is a vertex that swallows everything.
type NoopVertex struct{}

// Stdout returns a writer that discards its input.
func (v *NoopVertex) Stdout() io.Writer { return io.Discard }

// Stderr returns a writer that discards its input.
func (v *NoopVertex) Stderr() io.Writer { return io.Discard }

// Log does nothing.
func (v *NoopVertex) Log(_ domain.LogLevel, _ string) {}

// Complete does nothing.
func (v *NoopVertex) Complete(_ error) {}

// Cached does nothing.
func (v *NoopVertex) Cached() {}
