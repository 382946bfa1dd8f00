package cas

import (
	"context"
	"os"
	"path/filepath"

	"featlock/internal/core/ports"
	"github.com/grindlemire/graft"
)

const NodeID graft.ID = "adapter.content_store"

func init() {
	graft.Register(graft.Node[ports.ContentStore]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.ContentStore, error) {
			dir, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			store, err := NewStore(dir)
			if err != nil {
				return nil, err
			}
			return store, nil
		},
	})
}

// DefaultDir returns the per-user response cache location.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "featlock", "registry"), nil
}
