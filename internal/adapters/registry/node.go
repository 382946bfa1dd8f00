package registry

import (
	"context"

	"featlock/internal/adapters/cas"
	"featlock/internal/adapters/logger"
	"featlock/internal/core/ports"
	"github.com/grindlemire/graft"
)

const NodeID graft.ID = "adapter.registry_client"

func init() {
	graft.Register(graft.Node[*Client]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID, cas.NodeID},
		Run: func(ctx context.Context) (*Client, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			cache, err := graft.Dep[ports.ContentStore](ctx)
			if err != nil {
				return nil, err
			}

			return NewClient(log, cache), nil
		},
	})
}
