package lockfile

import (
	"context"

	"featlock/internal/core/ports"
	"github.com/grindlemire/graft"
)

const NodeID graft.ID = "adapter.lockfile_store"

func init() {
	graft.Register(graft.Node[ports.LockfileStore]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.LockfileStore, error) {
			return NewStore(), nil
		},
	})
}
