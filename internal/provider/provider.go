// Package provider mounts merged views at logical roots. A Provider answers
// lookups under one merge root; a Host routes between several providers and
// the physical store.
package provider

import (
	"context"

	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/merge"
	"github.com/agentic-research/resmerge/internal/pathutil"
)

// DefaultVirtualRoot is where NewVirtual mounts the search-path overlay.
const DefaultVirtualRoot = "/virtual"

// BasePathSource yields the base paths of a mount, highest priority first.
// It is consulted on every lookup so that sources backed by a live store
// follow its configuration.
type BasePathSource interface {
	BasePaths() []string
}

// FixedPaths is an explicit base path list.
type FixedPaths []string

// BasePaths returns the paths normalized, in the order given.
func (f FixedPaths) BasePaths() []string {
	out := make([]string, len(f))
	for i, p := range f {
		out[i] = pathutil.Normalize(p)
	}
	return out
}

type searchPaths struct {
	store graph.Store
}

// SearchPaths reads the base paths from the store's search path list.
func SearchPaths(store graph.Store) BasePathSource {
	return searchPaths{store: store}
}

func (s searchPaths) BasePaths() []string {
	return s.store.SearchPaths()
}

// Provider is a merged view bound to one merge root. It holds no state
// beyond the root, the base path source and the merger.
type Provider struct {
	merger *merge.Merger
	root   string
	source BasePathSource
}

// New binds a provider at root that merges the paths source yields.
func New(merger *merge.Merger, root string, source BasePathSource) *Provider {
	return &Provider{
		merger: merger,
		root:   pathutil.Normalize("/" + root),
		source: source,
	}
}

// NewVirtual mounts the search-path overlay at root, or at
// DefaultVirtualRoot when root is empty.
func NewVirtual(merger *merge.Merger, root string) *Provider {
	if root == "" {
		root = DefaultVirtualRoot
	}
	return New(merger, root, SearchPaths(merger.Store()))
}

// Root returns the merge root.
func (p *Provider) Root() string { return p.root }

// Owns reports whether path lies at or under the merge root.
func (p *Provider) Owns(path string) bool {
	return pathutil.IsUnder(pathutil.Normalize(path), p.root)
}

// Lookup resolves an absolute path to its merged node. Paths outside the
// merge root and paths no base holds are absent, reported as nil.
func (p *Provider) Lookup(ctx context.Context, path string) (*merge.Node, error) {
	rel, ok := pathutil.Relativize(pathutil.Normalize(path), p.root)
	if !ok {
		return nil, nil
	}
	return p.merger.Merge(ctx, p.root, p.source.BasePaths(), rel)
}

// GetResource is Lookup behind the graph.Resource interface.
func (p *Provider) GetResource(ctx context.Context, path string) (graph.Resource, error) {
	n, err := p.Lookup(ctx, path)
	if n == nil || err != nil {
		return nil, err
	}
	return n, nil
}

// ListChildren merges the children of res. ok is false when res is not a
// merged node, leaving the listing to someone else.
func (p *Provider) ListChildren(ctx context.Context, res graph.Resource) (children []graph.Resource, ok bool, err error) {
	n, isMerged := res.(*merge.Node)
	if !isMerged || n == nil {
		return nil, false, nil
	}
	kids, err := n.Children(ctx)
	if err != nil {
		return nil, true, err
	}
	return toResources(kids), true, nil
}

func toResources(nodes []*merge.Node) []graph.Resource {
	out := make([]graph.Resource, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out
}
