// Package merge builds the merged view of several physical subtrees: the
// mapping of a logical path onto its backing nodes, the merged node itself,
// and the child fold that applies the hide and reorder directives.
package merge

import (
	"context"
	"errors"
	"strings"

	"github.com/agentic-research/resmerge/internal/ctxlog"
	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/pathutil"
)

// DefaultPrefix namespaces the directive properties.
const DefaultPrefix = "sling:"

// Directives names the properties that steer the child fold.
type Directives struct {
	HideChildren string
	HideResource string
	OrderBefore  string
}

// DirectivesWithPrefix returns the directive names under prefix.
func DirectivesWithPrefix(prefix string) Directives {
	return Directives{
		HideChildren: prefix + "hideChildren",
		HideResource: prefix + "hideResource",
		OrderBefore:  prefix + "orderBefore",
	}
}

// DefaultDirectives returns the directive names under DefaultPrefix.
func DefaultDirectives() Directives {
	return DirectivesWithPrefix(DefaultPrefix)
}

func (d Directives) isDirective(key string) bool {
	return key == d.HideChildren || key == d.HideResource || key == d.OrderBefore
}

// Resolver resolves an absolute logical path. An absent resource is
// reported as (nil, nil).
type Resolver interface {
	GetResource(ctx context.Context, path string) (graph.Resource, error)
}

// storeResolver answers lookups straight from the physical store.
type storeResolver struct {
	store graph.Store
}

func (r storeResolver) GetResource(ctx context.Context, path string) (graph.Resource, error) {
	n, err := r.store.GetNode(ctx, path)
	if errors.Is(err, graph.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Merger maps logical paths onto backing nodes of a physical store.
// It holds no per-request state and is safe for concurrent use once
// configured.
type Merger struct {
	store      graph.Store
	resolver   Resolver
	directives Directives
}

// Option configures a Merger.
type Option func(*Merger)

// WithDirectives overrides the directive property names.
func WithDirectives(d Directives) Option {
	return func(m *Merger) { m.directives = d }
}

// WithResolver sets the resolver used by Node.Parent and Node.Child.
func WithResolver(r Resolver) Option {
	return func(m *Merger) { m.resolver = r }
}

// NewMerger returns a Merger over store that resolves parents and children
// through the store until a resolver is set.
func NewMerger(store graph.Store, opts ...Option) *Merger {
	m := &Merger{
		store:      store,
		resolver:   storeResolver{store: store},
		directives: DefaultDirectives(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetResolver replaces the resolver after construction. Hosts that mount
// providers built on this Merger register themselves here.
func (m *Merger) SetResolver(r Resolver) {
	m.resolver = r
}

// Store returns the physical store.
func (m *Merger) Store() graph.Store { return m.store }

// Directives returns the directive property names in use.
func (m *Merger) Directives() Directives { return m.directives }

// Merge resolves relativePath against every base path and returns the
// merged node, or nil when no base path holds a node there.
//
// basePaths are given highest priority first. Each hit is prepended to the
// backings, so the returned node's backings run lowest priority first and
// the last backing wins. A missing node under a base path is silent; any
// other store error is returned unchanged.
func (m *Merger) Merge(ctx context.Context, mergeRoot string, basePaths []string, relativePath string) (*Node, error) {
	var backings []*graph.Node
	for _, base := range basePaths {
		n, err := m.store.GetNode(ctx, pathutil.Join(base, relativePath))
		if errors.Is(err, graph.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		backings = append([]*graph.Node{n}, backings...)
	}
	if len(backings) == 0 {
		return nil, nil
	}
	ctxlog.FromContext(ctx).Debug("merged resource",
		"root", mergeRoot, "relative", relativePath, "backings", len(backings))
	return m.newNode(mergeRoot, relativePath, backings), nil
}

func (m *Merger) newNode(mergeRoot, relativePath string, backings []*graph.Node) *Node {
	return &Node{
		merger:       m,
		mergeRoot:    pathutil.Normalize(mergeRoot),
		relativePath: strings.TrimPrefix(pathutil.Normalize(relativePath), "/"),
		backings:     backings,
	}
}
