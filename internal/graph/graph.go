package graph

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/resmerge/internal/pathutil"
)

var (
	ErrNotFound = errors.New("node not found")
	ErrReadOnly = errors.New("read-only content tree")
)

// Metadata describes how a resource was resolved.
type Metadata struct {
	ResolutionPath  string    `json:"resolutionPath"`
	Merged          bool      `json:"mergedResource,omitempty"`
	MappedResources []string  `json:"mappedResources,omitempty"` // highest priority last
	ModTime         time.Time `json:"modTime,omitzero"`
}

// Resource is the read surface shared by physical and merged nodes.
type Resource interface {
	Path() string
	Name() string
	ResourceType() string
	ResourceSuperType() string
	IsResourceType(t string) bool
	Metadata() Metadata
	ValueMap() ValueMap
}

// Node is a physical node of the content repository.
// ID is the absolute, normalized path.
type Node struct {
	ID         string
	Type       string
	SuperType  string
	ModTime    time.Time
	Properties ValueMap
	Children   []string // Child node IDs in native order (MemoryStore only)
}

func (n *Node) Path() string              { return n.ID }
func (n *Node) Name() string              { return pathutil.Name(n.ID) }
func (n *Node) ResourceType() string      { return n.Type }
func (n *Node) ResourceSuperType() string { return n.SuperType }

// IsResourceType reports whether t names the node's type or super type.
func (n *Node) IsResourceType(t string) bool {
	return t != "" && (n.Type == t || n.SuperType == t)
}

func (n *Node) Metadata() Metadata {
	return Metadata{ResolutionPath: n.ID, ModTime: n.ModTime}
}

// ValueMap returns a copy of the node's properties.
func (n *Node) ValueMap() ValueMap {
	return n.Properties.Clone()
}

// cleanID turns any caller path into the absolute, normalized node ID.
func cleanID(p string) string {
	return pathutil.Normalize("/" + p)
}

// Store is the read-only physical content store.
type Store interface {
	// GetNode resolves an absolute path. Missing nodes yield ErrNotFound.
	GetNode(ctx context.Context, path string) (*Node, error)
	// ListChildren returns the children of path in native order.
	ListChildren(ctx context.Context, path string) ([]*Node, error)
	// SearchPaths returns the store's base paths, highest priority first.
	SearchPaths() []string
}

// TypeIndex is implemented by stores that can list nodes by resource type
// without walking the tree.
type TypeIndex interface {
	// NodesOfType returns every node whose type or super type is t.
	NodesOfType(ctx context.Context, t string) ([]*Node, error)
}

// NodesOfType lists the nodes of s whose type or super type is t. Stores
// without a TypeIndex are walked from the root in native order.
func NodesOfType(ctx context.Context, s Store, t string) ([]*Node, error) {
	if idx, ok := s.(TypeIndex); ok {
		return idx.NodesOfType(ctx, t)
	}
	root, err := s.GetNode(ctx, "/")
	if err != nil {
		return nil, err
	}
	var out []*Node
	var walk func(n *Node) error
	walk = func(n *Node) error {
		if n.IsResourceType(t) {
			out = append(out, n)
		}
		kids, err := s.ListChildren(ctx, n.ID)
		if err != nil {
			return err
		}
		for _, k := range kids {
			if err := walk(k); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return nil, err
	}
	return out, nil
}

// WithSearchPaths overrides the search paths reported by s.
func WithSearchPaths(s Store, paths []string) Store {
	return &searchPathStore{Store: s, paths: append([]string(nil), paths...)}
}

type searchPathStore struct {
	Store
	paths []string
}

func (s *searchPathStore) SearchPaths() []string {
	return append([]string(nil), s.paths...)
}

func (s *searchPathStore) NodesOfType(ctx context.Context, t string) ([]*Node, error) {
	return NodesOfType(ctx, s.Store, t)
}

func (s *searchPathStore) Close() error {
	return CloseStore(s.Store)
}

// CloseStore closes s if it holds resources.
func CloseStore(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------
// In-memory store with a resource-type index
// -----------------------------------------------------------------------------

type MemoryStore struct {
	mu          sync.RWMutex
	nodes       map[string]*Node
	searchPaths []string

	// Roaring bitmap index: resource type → set of node internal IDs.
	typeIndex   map[string]*roaring.Bitmap
	nodeIntID   map[string]uint32
	intToNodeID []string
	nextIntID   uint32
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		nodes:     make(map[string]*Node),
		typeIndex: make(map[string]*roaring.Bitmap),
		nodeIntID: make(map[string]uint32),
	}
	s.nodes["/"] = &Node{ID: "/"}
	return s
}

// SetSearchPaths configures the paths returned by SearchPaths.
func (s *MemoryStore) SetSearchPaths(paths []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchPaths = make([]string, len(paths))
	for i, p := range paths {
		s.searchPaths[i] = pathutil.Normalize(p)
	}
}

func (s *MemoryStore) SearchPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.searchPaths...)
}

// AddNode stores n and links it into its parent's child list. The parent
// must already exist; orphans are stored but unreachable through ListChildren.
// Re-adding an ID replaces the node and keeps its position under the parent.
func (s *MemoryStore) AddNode(n *Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = cleanID(n.ID)
	if old, ok := s.nodes[n.ID]; ok {
		s.unindexNode(old)
		if len(n.Children) == 0 {
			n.Children = old.Children
		}
	}
	s.nodes[n.ID] = n
	s.indexNode(n)

	parent, ok := s.nodes[pathutil.Parent(n.ID)]
	if !ok || n.ID == "/" {
		return
	}
	for _, c := range parent.Children {
		if c == n.ID {
			return
		}
	}
	parent.Children = append(parent.Children, n.ID)
}

// indexNode assigns an internal bitmap ID and registers the node's types.
// Must be called with s.mu held.
func (s *MemoryStore) indexNode(n *Node) {
	intID, ok := s.nodeIntID[n.ID]
	if !ok {
		intID = s.nextIntID
		s.nextIntID++
		s.nodeIntID[n.ID] = intID
		for uint32(len(s.intToNodeID)) <= intID {
			s.intToNodeID = append(s.intToNodeID, "")
		}
		s.intToNodeID[intID] = n.ID
	}
	for _, t := range []string{n.Type, n.SuperType} {
		if t == "" {
			continue
		}
		bm, exists := s.typeIndex[t]
		if !exists {
			bm = roaring.New()
			s.typeIndex[t] = bm
		}
		bm.Add(intID)
	}
}

// unindexNode clears n from the type bitmaps. Must be called with s.mu held.
func (s *MemoryStore) unindexNode(n *Node) {
	intID, ok := s.nodeIntID[n.ID]
	if !ok {
		return
	}
	for _, t := range []string{n.Type, n.SuperType} {
		if bm, exists := s.typeIndex[t]; exists {
			bm.Remove(intID)
			if bm.IsEmpty() {
				delete(s.typeIndex, t)
			}
		}
	}
}

// RemoveNode deletes the node at path together with its subtree.
func (s *MemoryStore) RemoveNode(path string) {
	path = cleanID(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[path]
	if !ok || path == "/" {
		return
	}
	s.removeSubtree(n)

	if parent, ok := s.nodes[pathutil.Parent(path)]; ok {
		kept := parent.Children[:0]
		for _, c := range parent.Children {
			if c != path {
				kept = append(kept, c)
			}
		}
		parent.Children = kept
	}
}

func (s *MemoryStore) removeSubtree(n *Node) {
	for _, c := range n.Children {
		if child, ok := s.nodes[c]; ok {
			s.removeSubtree(child)
		}
	}
	s.unindexNode(n)
	if intID, ok := s.nodeIntID[n.ID]; ok {
		s.intToNodeID[intID] = ""
		delete(s.nodeIntID, n.ID)
	}
	delete(s.nodes, n.ID)
}

// NodesOfType implements TypeIndex from the roaring type bitmaps. Nodes
// come back in insertion order.
func (s *MemoryStore) NodesOfType(ctx context.Context, t string) ([]*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	bm, ok := s.typeIndex[t]
	if !ok {
		return nil, nil
	}
	out := make([]*Node, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		intID := it.Next()
		if int(intID) >= len(s.intToNodeID) {
			continue
		}
		if n, ok := s.nodes[s.intToNodeID[intID]]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// GetNode implements Store.
func (s *MemoryStore) GetNode(ctx context.Context, path string) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[cleanID(path)]
	if !ok {
		return nil, ErrNotFound
	}
	return n, nil
}

// ListChildren implements Store.
func (s *MemoryStore) ListChildren(ctx context.Context, path string) ([]*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[cleanID(path)]
	if !ok {
		return nil, ErrNotFound
	}
	children := make([]*Node, 0, len(n.Children))
	for _, id := range n.Children {
		if c, ok := s.nodes[id]; ok {
			children = append(children, c)
		}
	}
	return children, nil
}

// Close is a no-op; MemoryStore holds no external resources.
func (s *MemoryStore) Close() error { return nil }
