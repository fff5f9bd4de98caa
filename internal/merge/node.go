package merge

import (
	"context"

	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/pathutil"
)

// Node is a logical node of the merged view. Its identity is the logical
// path; the backing list only decides what the node looks like.
//
// Backings run lowest priority first. A Node is not modified once it has
// been handed out; only the child fold appends backings while it builds a
// sibling list.
type Node struct {
	merger       *Merger
	mergeRoot    string
	relativePath string
	backings     []*graph.Node
}

// Path returns the absolute logical path.
func (n *Node) Path() string {
	return pathutil.Join(n.mergeRoot, n.relativePath)
}

// Name returns the last segment of the relative path, so the merge root
// itself is named "". Listings that need a display name use the last
// segment of Path instead.
func (n *Node) Name() string {
	return pathutil.Name(n.relativePath)
}

// MergeRoot returns the logical root the node was merged under.
func (n *Node) MergeRoot() string { return n.mergeRoot }

// RelativePath returns the path below the merge root, "" for the root.
func (n *Node) RelativePath() string { return n.relativePath }

// Backings returns a copy of the backing list, lowest priority first.
func (n *Node) Backings() []*graph.Node {
	return append([]*graph.Node(nil), n.backings...)
}

func (n *Node) addBacking(b *graph.Node) {
	n.backings = append(n.backings, b)
}

func (n *Node) last() *graph.Node {
	if len(n.backings) == 0 {
		return nil
	}
	return n.backings[len(n.backings)-1]
}

// ResourceType returns the type of the highest-priority backing.
func (n *Node) ResourceType() string {
	if b := n.last(); b != nil {
		return b.Type
	}
	return ""
}

// ResourceSuperType returns the super type of the highest-priority backing.
func (n *Node) ResourceSuperType() string {
	if b := n.last(); b != nil {
		return b.SuperType
	}
	return ""
}

// IsResourceType reports whether any backing is of type t.
func (n *Node) IsResourceType(t string) bool {
	for _, b := range n.backings {
		if b.IsResourceType(t) {
			return true
		}
	}
	return false
}

// Metadata reports the logical path as the resolution path and the
// backing paths as mapped resources.
func (n *Node) Metadata() graph.Metadata {
	mapped := make([]string, len(n.backings))
	for i, b := range n.backings {
		mapped[i] = b.ID
	}
	md := graph.Metadata{
		ResolutionPath:  n.Path(),
		Merged:          true,
		MappedResources: mapped,
	}
	if b := n.last(); b != nil {
		md.ModTime = b.ModTime
	}
	return md
}

// ValueMap overlays the backing properties, last backing wins, with the
// directive properties removed.
func (n *Node) ValueMap() graph.ValueMap {
	vm := graph.ValueMap{}
	for _, b := range n.backings {
		for k, v := range b.Properties {
			vm[k] = v
		}
	}
	for k := range vm {
		if n.merger.directives.isDirective(k) {
			delete(vm, k)
		}
	}
	return vm
}

// Parent looks up the logical parent path through the resolver. The result
// is whatever is mounted there: a merged node, a physical node, or nil.
func (n *Node) Parent(ctx context.Context) (graph.Resource, error) {
	parent := pathutil.Parent(n.Path())
	if parent == "" {
		return nil, nil
	}
	return n.merger.resolver.GetResource(ctx, parent)
}

// Child looks up relPath below this node through the resolver.
func (n *Node) Child(ctx context.Context, relPath string) (graph.Resource, error) {
	return n.merger.resolver.GetResource(ctx, pathutil.Join(n.Path(), relPath))
}

// Children merges the children of all backings. Every call re-reads the
// store; nothing is cached.
func (n *Node) Children(ctx context.Context) ([]*Node, error) {
	return n.merger.MergeChildren(ctx, n)
}

// Equal reports whether both nodes have the same logical path.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	return n.Path() == o.Path()
}

var _ graph.Resource = (*Node)(nil)
