package graph

import (
	"context"
	"testing"
)

func newTestStore() *MemoryStore {
	store := NewMemoryStore()
	store.AddNode(&Node{ID: "/libs"})
	store.AddNode(&Node{ID: "/libs/x", Type: "Tlibs", SuperType: "base/x"})
	store.AddNode(&Node{ID: "/libs/x/a"})
	store.AddNode(&Node{ID: "/libs/x/b", Properties: ValueMap{"title": "B"}})
	store.AddNode(&Node{ID: "/apps"})
	store.AddNode(&Node{ID: "/apps/x", Type: "Tapps", SuperType: "base/x"})
	return store
}

func TestMemoryStore_AddNodeAndGetNode(t *testing.T) {
	store := newTestStore()

	node, err := store.GetNode(context.Background(), "/libs/x")
	if err != nil {
		t.Fatalf("GetNode(/libs/x) returned error: %v", err)
	}
	if node.Type != "Tlibs" {
		t.Errorf("Type = %q, want %q", node.Type, "Tlibs")
	}
	if node.Name() != "x" {
		t.Errorf("Name = %q, want %q", node.Name(), "x")
	}
}

func TestMemoryStore_GetNodeNormalizesPath(t *testing.T) {
	store := newTestStore()

	for _, p := range []string{"libs/x", "/libs//x/", "/libs/./x"} {
		node, err := store.GetNode(context.Background(), p)
		if err != nil {
			t.Fatalf("GetNode(%q) should resolve to /libs/x: %v", p, err)
		}
		if node.ID != "/libs/x" {
			t.Errorf("ID = %q, want %q", node.ID, "/libs/x")
		}
	}
}

func TestMemoryStore_ListChildrenKeepsInsertionOrder(t *testing.T) {
	store := newTestStore()

	children, err := store.ListChildren(context.Background(), "/libs/x")
	if err != nil {
		t.Fatalf("ListChildren returned error: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("children = %d, want 2", len(children))
	}
	if children[0].Name() != "a" || children[1].Name() != "b" {
		t.Errorf("order = [%s %s], want [a b]", children[0].Name(), children[1].Name())
	}
}

func TestMemoryStore_ListChildrenRoot(t *testing.T) {
	store := newTestStore()

	roots, err := store.ListChildren(context.Background(), "/")
	if err != nil {
		t.Fatalf("ListChildren(/) returned error: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("roots = %d, want 2", len(roots))
	}
}

func TestMemoryStore_GetNodeNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetNode(context.Background(), "/nonexistent")
	if err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	_, err = store.ListChildren(context.Background(), "/nonexistent")
	if err != ErrNotFound {
		t.Errorf("ListChildren err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_AddNodeDeduplicates(t *testing.T) {
	store := newTestStore()
	store.AddNode(&Node{ID: "/libs/x/a", Type: "replaced"})

	children, err := store.ListChildren(context.Background(), "/libs/x")
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 {
		t.Errorf("children = %d, want 2 (deduped)", len(children))
	}
	if children[0].Type != "replaced" {
		t.Errorf("Type = %q, want replaced node in place", children[0].Type)
	}
}

func TestMemoryStore_RemoveNodeDropsSubtree(t *testing.T) {
	store := newTestStore()
	store.RemoveNode("/libs/x")

	if _, err := store.GetNode(context.Background(), "/libs/x/a"); err != ErrNotFound {
		t.Errorf("child of removed node still present: %v", err)
	}
	children, err := store.ListChildren(context.Background(), "/libs")
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 0 {
		t.Errorf("children = %d, want 0", len(children))
	}
	if got, _ := store.NodesOfType(context.Background(), "Tlibs"); len(got) != 0 {
		t.Errorf("type index still holds %d nodes", len(got))
	}
}

func TestMemoryStore_NodesOfType(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	got, err := store.NodesOfType(ctx, "base/x")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("NodesOfType(base/x) = %d nodes, want 2", len(got))
	}
	if got[0].ID != "/libs/x" || got[1].ID != "/apps/x" {
		t.Errorf("order = [%s %s], want insertion order", got[0].ID, got[1].ID)
	}
	if missing, _ := store.NodesOfType(ctx, "missing"); missing != nil {
		t.Error("unknown type should return nil")
	}
}

// unindexed hides the TypeIndex of the wrapped store.
type unindexed struct{ Store }

func TestNodesOfType_WalksStoresWithoutIndex(t *testing.T) {
	got, err := NodesOfType(context.Background(), unindexed{newTestStore()}, "base/x")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "/libs/x" || got[1].ID != "/apps/x" {
		t.Errorf("walk = %v, want [/libs/x /apps/x] in native order", ids(got))
	}
}

func TestNodesOfType_ThroughWrappers(t *testing.T) {
	ctx := context.Background()
	for name, s := range map[string]Store{
		"hotswap":      NewHotSwapStore(newTestStore()),
		"search paths": WithSearchPaths(newTestStore(), []string{"/apps"}),
	} {
		if _, ok := s.(TypeIndex); !ok {
			t.Errorf("%s: wrapper should expose TypeIndex", name)
			continue
		}
		got, err := NodesOfType(ctx, s, "Tapps")
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(got) != 1 || got[0].ID != "/apps/x" {
			t.Errorf("%s: got %v, want [/apps/x]", name, ids(got))
		}
	}
}

func ids(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestMemoryStore_HonoursCancelledContext(t *testing.T) {
	store := newTestStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.GetNode(ctx, "/libs/x"); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestWithSearchPaths(t *testing.T) {
	store := newTestStore()
	store.SetSearchPaths([]string{"/apps/", "/libs"})

	if got := store.SearchPaths(); got[0] != "/apps" || got[1] != "/libs" {
		t.Errorf("SearchPaths = %v", got)
	}
	wrapped := WithSearchPaths(store, []string{"/custom"})
	if got := wrapped.SearchPaths(); len(got) != 1 || got[0] != "/custom" {
		t.Errorf("wrapped SearchPaths = %v", got)
	}
	if _, err := wrapped.GetNode(context.Background(), "/libs/x"); err != nil {
		t.Errorf("wrapped store should delegate lookups: %v", err)
	}
}

func TestNode_IsResourceType(t *testing.T) {
	n := &Node{ID: "/libs/x", Type: "T", SuperType: "S"}
	if !n.IsResourceType("T") || !n.IsResourceType("S") {
		t.Error("type and super type should both match")
	}
	if n.IsResourceType("") || n.IsResourceType("other") {
		t.Error("unexpected type match")
	}
}

func TestHotSwapStore_Swap(t *testing.T) {
	first := newTestStore()
	second := NewMemoryStore()
	second.AddNode(&Node{ID: "/only-in-second"})

	h := NewHotSwapStore(first)
	if _, err := h.GetNode(context.Background(), "/libs/x"); err != nil {
		t.Fatalf("initial store lookup failed: %v", err)
	}
	if prev := h.Swap(second); prev != first {
		t.Error("Swap should return the previous store")
	}
	if _, err := h.GetNode(context.Background(), "/libs/x"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound after swap", err)
	}
	if _, err := h.GetNode(context.Background(), "/only-in-second"); err != nil {
		t.Errorf("swapped store lookup failed: %v", err)
	}
}
