package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/resmerge/internal/graph"
	"github.com/agentic-research/resmerge/internal/merge"
)

func newTestHost(t *testing.T) *Host {
	t.Helper()
	h := NewHost(newTestStore())
	_, err := h.Mount("/mnt/overlay", FixedPaths{"/apps", "/libs"})
	require.NoError(t, err)
	_, err = h.MountVirtual("")
	require.NoError(t, err)
	return h
}

func TestHost_MountTwiceFails(t *testing.T) {
	h := newTestHost(t)
	_, err := h.Mount("/mnt/overlay/", FixedPaths{"/libs"})
	assert.True(t, errors.Is(err, ErrMountExists))
}

func TestHost_Routing(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	merged, err := h.GetResource(ctx, "/mnt/overlay/x")
	require.NoError(t, err)
	require.IsType(t, &merge.Node{}, merged)

	virtual, err := h.GetResource(ctx, "/virtual/x/d")
	require.NoError(t, err)
	require.IsType(t, &merge.Node{}, virtual)

	physical, err := h.GetResource(ctx, "/apps/x")
	require.NoError(t, err)
	require.IsType(t, &graph.Node{}, physical)

	missing, err := h.GetResource(ctx, "/apps/zzz")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestHost_LongestRootWins(t *testing.T) {
	h := newTestHost(t)
	inner, err := h.Mount("/mnt/overlay/x/inner", FixedPaths{"/libs/x"})
	require.NoError(t, err)

	assert.Same(t, inner, h.ProviderFor("/mnt/overlay/x/inner/a"))
	assert.NotSame(t, inner, h.ProviderFor("/mnt/overlay/x/a"))
	assert.Equal(t, []string{"/mnt/overlay/x/inner", "/mnt/overlay", "/virtual"}, roots(h.Providers()))

	res, err := h.GetResource(context.Background(), "/mnt/overlay/x/inner/a")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"/libs/x/a"}, res.Metadata().MappedResources)
}

func roots(ps []*Provider) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Root()
	}
	return out
}

func TestHost_MergedParentAndChild(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	res, err := h.GetResource(ctx, "/mnt/overlay/x")
	require.NoError(t, err)
	n := res.(*merge.Node)

	parent, err := n.Parent(ctx)
	require.NoError(t, err)
	require.IsType(t, &merge.Node{}, parent, "the merge root is itself merged")
	assert.Equal(t, "/mnt/overlay", parent.Path())

	rootNode := parent.(*merge.Node)
	grand, err := rootNode.Parent(ctx)
	require.NoError(t, err)
	require.NotNil(t, grand)
	assert.Equal(t, SyntheticType, grand.ResourceType())

	child, err := n.Child(ctx, "d")
	require.NoError(t, err)
	require.NotNil(t, child)
	assert.Equal(t, "/mnt/overlay/x/d", child.Path())

	hidden, err := n.Child(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, hidden, "direct lookup does not apply hideResource")
}

func TestHost_ListChildren(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	root, err := h.GetResource(ctx, "/")
	require.NoError(t, err)
	kids, err := h.ListChildren(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, []string{"libs", "apps", "mnt", "virtual"}, resourceNames(kids))
	assert.Equal(t, SyntheticType, kids[2].ResourceType())

	mnt, err := h.ListChildren(ctx, kids[2])
	require.NoError(t, err)
	require.Len(t, mnt, 1)
	assert.Equal(t, "/mnt/overlay", mnt[0].Path())

	overlay, err := h.ListChildren(ctx, mnt[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, resourceNames(overlay))

	x, err := h.ListChildren(ctx, overlay[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "d"}, resourceNames(x))
}

func TestHost_PhysicalChildShadowedByMount(t *testing.T) {
	h := NewHost(newTestStore())
	_, err := h.Mount("/apps/x", FixedPaths{"/libs/x"})
	require.NoError(t, err)
	ctx := context.Background()

	apps, err := h.GetResource(ctx, "/apps")
	require.NoError(t, err)
	kids, err := h.ListChildren(ctx, apps)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.IsType(t, &merge.Node{}, kids[0])
	assert.Equal(t, "Tlibs", kids[0].ResourceType())
}

func TestHost_NestedMountReplacesMergedChild(t *testing.T) {
	h := newTestHost(t)
	_, err := h.Mount("/mnt/overlay/x/a", FixedPaths{"/libs/x/c"})
	require.NoError(t, err)
	_, err = h.Mount("/mnt/overlay/x/e", FixedPaths{"/libs/x/b"})
	require.NoError(t, err)
	ctx := context.Background()

	x, err := h.GetResource(ctx, "/mnt/overlay/x")
	require.NoError(t, err)
	kids, err := h.ListChildren(ctx, x)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "d", "e"}, resourceNames(kids))

	direct, err := h.GetResource(ctx, "/mnt/overlay/x/a")
	require.NoError(t, err)
	require.NotNil(t, direct)
	assert.Equal(t, []string{"/libs/x/c"}, direct.Metadata().MappedResources)
	assert.Equal(t, direct.Metadata(), kids[1].Metadata(), "listing and lookup route to the same mount")
	assert.Equal(t, []string{"/libs/x/b"}, kids[3].Metadata().MappedResources)
}

func resourcePaths(rs []graph.Resource) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Path()
	}
	return out
}

func TestHost_FindByType(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	libs, err := h.FindByType(ctx, "Tlibs")
	require.NoError(t, err)
	assert.Equal(t, []string{"/libs/x", "/mnt/overlay/x", "/virtual/x"}, resourcePaths(libs))
	assert.IsType(t, &graph.Node{}, libs[0])
	assert.IsType(t, &merge.Node{}, libs[1])
	assert.Equal(t, "Tapps", libs[1].ResourceType(), "a lower backing is enough to match")

	apps, err := h.FindByType(ctx, "Tapps")
	require.NoError(t, err)
	assert.Equal(t, []string{"/apps/x", "/mnt/overlay/x", "/virtual/x"}, resourcePaths(apps))

	none, err := h.FindByType(ctx, "Tnone")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHost_CustomDirectives(t *testing.T) {
	store := graph.NewMemoryStore()
	for _, n := range []*graph.Node{
		{ID: "/libs"},
		{ID: "/libs/a"},
		{ID: "/apps"},
		{ID: "/apps/a", Properties: graph.ValueMap{"ovl:hideResource": true}},
	} {
		store.AddNode(n)
	}
	store.SetSearchPaths([]string{"/apps", "/libs"})

	h := NewHost(store, merge.WithDirectives(merge.DirectivesWithPrefix("ovl:")))
	_, err := h.MountVirtual("/v")
	require.NoError(t, err)
	assert.Equal(t, "ovl:hideResource", h.Directives().HideResource)

	ctx := context.Background()
	root, err := h.GetResource(ctx, "/v")
	require.NoError(t, err)
	kids, err := h.ListChildren(ctx, root)
	require.NoError(t, err)
	assert.Empty(t, kids)
}
