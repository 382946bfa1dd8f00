package telemetry_test

import (
	"context"
	"testing"

	"featlock/internal/adapters/telemetry"
	"featlock/internal/adapters/telemetry/progrock"
	"featlock/internal/core/domain"
	"featlock/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterfaceSatisfaction(_ *testing.T) {
	var _ ports.Telemetry = (*telemetry.Noop)(nil)
	var _ ports.Vertex = (*telemetry.NoopVertex)(nil)
	var _ ports.Telemetry = (*progrock.Recorder)(nil)
	var _ ports.Vertex = (*progrock.Vertex)(nil)
}

func TestNoop_Record(t *testing.T) {
	noop := telemetry.NewNoop()

	ctx, vertex := noop.Record(context.Background(), "resolve ghcr.io/devcontainers/features/go")
	require.NotNil(t, vertex)

	carried, ok := ports.VertexFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, vertex, carried)

	n, err := vertex.Stdout().Write([]byte("manifest"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	n, err = vertex.Stderr().Write([]byte("ignored"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	vertex.Log(domain.LogLevelDebug, "cache miss")
	vertex.Cached()
	vertex.Complete(nil)
	require.NoError(t, noop.Close())
}
