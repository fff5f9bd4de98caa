package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/agentic-research/resmerge/internal/ctxlog"
	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/merge"
	"github.com/agentic-research/resmerge/internal/pathutil"
)

// SyntheticType is the resource type of the placeholder nodes a Host
// reports for ancestors of a mount root that the store does not hold.
const SyntheticType = "resmerge:synthetic"

// ErrMountExists is returned when a mount root is already taken.
var ErrMountExists = errors.New("mount root already in use")

// Host resolves absolute paths across mounted providers and the physical
// store. The provider with the longest root at or above a path answers for
// it; every other path goes to the store. A Host is the resolver of its
// merger, so merged nodes find their parents and children through it.
type Host struct {
	store  graph.Store
	merger *merge.Merger

	mu        sync.RWMutex
	providers []*Provider // longest root first
}

// NewHost returns a Host over store with nothing mounted. opts configure
// the merger every mounted provider shares.
func NewHost(store graph.Store, opts ...merge.Option) *Host {
	h := &Host{store: store}
	h.merger = merge.NewMerger(store, opts...)
	h.merger.SetResolver(h)
	return h
}

// Store returns the physical store.
func (h *Host) Store() graph.Store { return h.store }

// Merger returns the merger shared by the mounted providers.
func (h *Host) Merger() *merge.Merger { return h.merger }

// Directives returns the directive property names in use.
func (h *Host) Directives() merge.Directives { return h.merger.Directives() }

// Mount binds a new provider at root.
func (h *Host) Mount(root string, source BasePathSource) (*Provider, error) {
	return h.add(New(h.merger, root, source))
}

// MountVirtual binds the search-path overlay at root, or at
// DefaultVirtualRoot when root is empty.
func (h *Host) MountVirtual(root string) (*Provider, error) {
	return h.add(NewVirtual(h.merger, root))
}

func (h *Host) add(p *Provider) (*Provider, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, existing := range h.providers {
		if existing.root == p.root {
			return nil, fmt.Errorf("mount %s: %w", p.root, ErrMountExists)
		}
	}
	h.providers = append(h.providers, p)
	slices.SortStableFunc(h.providers, func(a, b *Provider) int {
		return len(b.root) - len(a.root)
	})
	return p, nil
}

// Providers returns the mounted providers, longest root first.
func (h *Host) Providers() []*Provider {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.providers)
}

// ProviderFor returns the provider that answers for path, or nil.
func (h *Host) ProviderFor(path string) *Provider {
	path = pathutil.Normalize("/" + path)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, p := range h.providers {
		if p.Owns(path) {
			return p
		}
	}
	return nil
}

// GetResource resolves an absolute path. Absent resources are (nil, nil).
func (h *Host) GetResource(ctx context.Context, path string) (graph.Resource, error) {
	path = pathutil.Normalize("/" + path)
	if p := h.ProviderFor(path); p != nil {
		return p.GetResource(ctx, path)
	}

	n, err := h.store.GetNode(ctx, path)
	if errors.Is(err, graph.ErrNotFound) {
		if h.isMountAncestor(path) {
			return &graph.Node{ID: path, Type: SyntheticType}, nil
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// ListChildren lists the children of res. Merged nodes are listed by the
// child fold, everything else by the store. A child that another mount
// answers for is replaced by what that mount resolves there, and mount
// roots below res that no listing holds are added at the end.
func (h *Host) ListChildren(ctx context.Context, res graph.Resource) ([]graph.Resource, error) {
	var listed []graph.Resource
	if n, ok := res.(*merge.Node); ok {
		merged, err := n.Children(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range merged {
			listed = append(listed, c)
		}
	} else {
		physical, err := h.store.ListChildren(ctx, res.Path())
		if err != nil && !errors.Is(err, graph.ErrNotFound) {
			return nil, err
		}
		for _, c := range physical {
			listed = append(listed, c)
		}
	}

	owner := h.ProviderFor(res.Path())
	kids := make([]graph.Resource, 0, len(listed))
	for _, c := range listed {
		if h.ProviderFor(c.Path()) == owner {
			kids = append(kids, c)
			continue
		}
		routed, err := h.GetResource(ctx, c.Path())
		if err != nil {
			return nil, err
		}
		if routed != nil {
			kids = append(kids, routed)
		}
	}
	return h.appendMountPaths(ctx, res.Path(), kids)
}

// FindByType returns every resource of type t as the host presents it: the
// path of each typed store node, and every logical path a mount maps onto
// that node. Merged results match when any backing is of
// type t. Results follow the store's type index order, without duplicates.
func (h *Host) FindByType(ctx context.Context, t string) ([]graph.Resource, error) {
	nodes, err := graph.NodesOfType(ctx, h.store, t)
	if err != nil {
		return nil, err
	}

	var out []graph.Resource
	seen := make(map[string]bool)
	add := func(path string) error {
		if seen[path] {
			return nil
		}
		seen[path] = true
		res, err := h.GetResource(ctx, path)
		if err != nil {
			return err
		}
		if res != nil && res.IsResourceType(t) {
			out = append(out, res)
		}
		return nil
	}

	providers := h.Providers()
	for _, n := range nodes {
		if err := add(n.ID); err != nil {
			return nil, err
		}
		for _, p := range providers {
			for _, base := range p.source.BasePaths() {
				rel, ok := pathutil.Relativize(n.ID, base)
				if !ok {
					continue
				}
				if err := add(pathutil.Join(p.root, rel)); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

// appendMountPaths adds the child of parent leading to each mount root
// below it, unless kids already holds that path.
func (h *Host) appendMountPaths(ctx context.Context, parent string, kids []graph.Resource) ([]graph.Resource, error) {
	for _, p := range h.Providers() {
		rel, ok := pathutil.Relativize(p.root, parent)
		if !ok || rel == "" {
			continue
		}
		first, _, _ := strings.Cut(rel, "/")
		childPath := pathutil.Join(parent, first)
		if slices.ContainsFunc(kids, func(r graph.Resource) bool { return r.Path() == childPath }) {
			continue
		}
		res, err := h.GetResource(ctx, childPath)
		if err != nil {
			return nil, err
		}
		if res == nil {
			ctxlog.FromContext(ctx).Debug("mount root has no backing", "root", p.root)
			continue
		}
		kids = append(kids, res)
	}
	return kids, nil
}

// isMountAncestor reports whether path lies strictly above a mount root.
func (h *Host) isMountAncestor(path string) bool {
	for _, p := range h.Providers() {
		if p.root != path && pathutil.IsUnder(p.root, path) {
			return true
		}
	}
	return false
}
