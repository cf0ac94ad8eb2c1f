package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/discograph/entity"
	dgtest "github.com/teranos/discograph/internal/testing"
	"github.com/teranos/discograph/role"
)

func artist(id int, name string) *entity.Entity {
	return &entity.Entity{ID: id, Type: entity.Artist, Name: name}
}

func memberOf(member, group int) *entity.Relation {
	return &entity.Relation{
		EntityOneType: entity.Artist,
		EntityOneID:   member,
		EntityTwoType: entity.Artist,
		EntityTwoID:   group,
		Role:          role.MemberOf,
	}
}

// diamond builds center 1, children 2 and 3, a shared grandchild 4, and an
// unlinked node 5.
func diamond(t *testing.T) *trellis {
	t.Helper()
	tr := newTrellis()
	require.True(t, tr.add(artist(1, "Center"), 0))
	require.True(t, tr.add(artist(2, "Left"), 1))
	require.True(t, tr.add(artist(3, "Right"), 1))
	require.True(t, tr.add(artist(4, "Bottom"), 2))
	require.True(t, tr.add(artist(5, "Stray"), 1))
	require.False(t, tr.add(artist(1, "Center again"), 2))

	for _, r := range []*entity.Relation{
		memberOf(2, 1),
		memberOf(3, 1),
		memberOf(4, 2),
		memberOf(4, 3),
		memberOf(2, 3),
		memberOf(6, 1),
	} {
		tr.links[r.LinkKey()] = r
	}
	return tr
}

func TestTrellis_Connect(t *testing.T) {
	tr := diamond(t)

	assert.Equal(t, 1, tr.connect(), "link to an unknown node is dropped")
	assert.Len(t, tr.links, 5)

	left, _ := tr.node(entity.Key{Type: entity.Artist, ID: 2})
	right, _ := tr.node(entity.Key{Type: entity.Artist, ID: 3})
	assert.Equal(t, map[int]struct{}{0: {}}, left.parents)
	assert.Equal(t, map[int]struct{}{3: {}}, left.children)
	assert.Equal(t, map[int]struct{}{2: {}}, left.siblings)
	assert.Equal(t, map[int]struct{}{1: {}}, right.siblings)
	assert.Len(t, left.linkKeys, 3)
}

func TestTrellis_SubgraphSizes(t *testing.T) {
	tr := diamond(t)
	tr.connect()
	tr.computeSubgraphSizes(0)

	sizes := map[int]int{}
	for i, n := range tr.nodes {
		if n.subgraphSize != nil {
			sizes[i] = *n.subgraphSize
		}
	}
	// The shared grandchild is counted once under the center
	assert.Equal(t, map[int]int{0: 4, 1: 2, 2: 2, 3: 1}, sizes)
}

func TestTrellis_RemoveUnreached(t *testing.T) {
	tr := diamond(t)
	stray := &entity.Relation{
		EntityOneType: entity.Artist,
		EntityOneID:   5,
		EntityTwoType: entity.Artist,
		EntityTwoID:   4,
		Role:          role.Alias,
	}
	tr.links[stray.LinkKey()] = stray
	tr.connect()
	tr.computeSubgraphSizes(0)

	nodes, links := tr.removeUnreached()
	assert.Equal(t, 1, nodes)
	assert.Equal(t, 1, links)
	assert.False(t, tr.has(entity.Key{Type: entity.Artist, ID: 5}))
	assert.NotContains(t, tr.links, stray.LinkKey())

	bottom, _ := tr.node(entity.Key{Type: entity.Artist, ID: 4})
	assert.NotContains(t, bottom.linkKeys, stray.LinkKey())
	assert.NotContains(t, bottom.siblings, 4)
	assert.Len(t, bottom.parents, 2)
	assert.Equal(t, []int{0, 1, 2, 3}, tr.live())
}

func TestTrellis_Parentage(t *testing.T) {
	tr := diamond(t)
	tr.connect()

	assert.Equal(t, map[int]struct{}{0: {}, 1: {}, 2: {}, 3: {}}, tr.parentage(3))
	assert.Equal(t, map[int]struct{}{0: {}}, tr.parentage(0))
	assert.Equal(t, map[int]struct{}{0: {}, 2: {}, 3: {}}, tr.neighbors(1))
}

func TestBitset(t *testing.T) {
	a := newBitset(130)
	a.set(0)
	a.set(64)
	a.set(129)
	b := newBitset(130)
	b.set(64)
	b.set(65)
	a.union(b)
	assert.Equal(t, 4, a.count())
}

func TestPartition_BalancedPages(t *testing.T) {
	store := dgtest.SeefeelMemoryStore()
	b := NewBuilder(store, nil, 0, zaptest.NewLogger(t).Sugar())

	network, err := b.BuildEgoNetwork(context.Background(), seefeelCenter(t, store), Options{
		Degree:    2,
		PageCount: 2,
		Roles:     structuralRoles,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, network.Pages)

	pages := map[string][]int{}
	for _, n := range network.Nodes {
		pages[n.Name] = n.Pages
	}
	assert.Equal(t, map[string][]int{
		"Seefeel":         {1, 2},
		"Mark Clifford":   {1, 2},
		"Disjecta":        {1, 2},
		"Daren Seymour":   {1},
		"Sarah Peacock":   {1},
		"Justin Fletcher": {2},
		"Shige":           {2},
	}, pages)

	assert.Equal(t, []int{1}, network.LinkByKey("artist-41103-member-of-artist-2239").Pages)
	assert.Equal(t, []int{1, 2}, network.LinkByKey("artist-53714-alias-artist-66803").Pages)

	seefeel := network.NodeByKey("artist-2239")
	assert.Equal(t, map[int]int{1: 2, 2: 2}, seefeel.MissingByPage)
	assert.Nil(t, network.NodeByKey("artist-41103").MissingByPage)
}

func TestPartition_RoundRobin(t *testing.T) {
	store := dgtest.SeefeelMemoryStore()
	b := NewBuilder(store, nil, 0, zaptest.NewLogger(t).Sugar())

	network, err := b.BuildEgoNetwork(context.Background(), seefeelCenter(t, store), Options{
		Degree:    1,
		PageCount: 2,
		Roles:     structuralRoles,
	})
	require.NoError(t, err)

	pages := map[string][]int{}
	for _, n := range network.Nodes {
		pages[n.Key] = n.Pages
	}
	assert.Equal(t, map[string][]int{
		"artist-2239":   {1, 2},
		"artist-41103":  {1},
		"artist-51674":  {2},
		"artist-66803":  {1},
		"artist-115880": {2},
		"artist-489350": {1},
	}, pages)
}
