package ingest

import (
	"context"

	"github.com/agentic-research/resmerge/internal/graph"
)

// IngestionTarget receives imported content. Parents are always added
// before their children, and siblings in their native order.
type IngestionTarget interface {
	AddNode(ctx context.Context, n *graph.Node) error
	SetSearchPaths(ctx context.Context, paths []string) error
}

// MemoryTarget adapts a MemoryStore to IngestionTarget.
func MemoryTarget(s *graph.MemoryStore) IngestionTarget {
	return memoryTarget{s}
}

type memoryTarget struct {
	store *graph.MemoryStore
}

func (t memoryTarget) AddNode(ctx context.Context, n *graph.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.store.AddNode(n)
	return nil
}

func (t memoryTarget) SetSearchPaths(ctx context.Context, paths []string) error {
	t.store.SetSearchPaths(paths)
	return nil
}
