package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/discograph/errors"
	"github.com/teranos/discograph/role"
)

func id(n int) *int { return &n }

func seefeel() *Entity {
	return &Entity{
		ID:   2239,
		Type: Artist,
		Name: "Seefeel",
		RelationCounts: map[string]int{
			"Producer":  4,
			"Member Of": 5,
		},
		Entities: Sections{
			SectionMembers: {
				"Daren Seymour":   id(41103),
				"Justin Fletcher": id(51674),
				"Mark Clifford":   id(66803),
				"Sarah Peacock":   id(115880),
				"Shige":           id(489350),
				"Unresolved":      nil,
			},
			SectionAliases: {
				"Seefeel Too": id(99),
			},
		},
	}
}

func TestKeys(t *testing.T) {
	k := Key{Type: Artist, ID: 2239}
	assert.Equal(t, "artist-2239", k.JSONKey())
	assert.Equal(t, "label-7", Key{Type: Label, ID: 7}.String())

	parsed, err := ParseJSONKey("artist-2239")
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	for _, bad := range []string{"", "artist", "band-1", "artist-x", "artist-0", "label--4"} {
		_, err := ParseJSONKey(bad)
		require.Error(t, err, bad)
		assert.True(t, errors.IsInvalidRequestError(err), bad)
	}

	keys := []Key{{Label, 1}, {Artist, 30}, {Artist, 4}}
	SortKeys(keys)
	assert.Equal(t, []Key{{Artist, 4}, {Artist, 30}, {Label, 1}}, keys)
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("label")
	require.NoError(t, err)
	assert.Equal(t, Label, typ)
	assert.True(t, typ.Valid())

	_, err = ParseType("release")
	assert.True(t, errors.IsInvalidRequestError(err))
	assert.False(t, Type(9).Valid())
	assert.Equal(t, "unknown(9)", Type(9).String())
}

func TestSizeAndAliases(t *testing.T) {
	e := seefeel()
	assert.Equal(t, 6, e.Size(), "size counts section entries including unresolved")
	assert.Equal(t, []int{99}, e.AliasIDs())

	label := &Entity{ID: 1, Type: Label, Entities: Sections{SectionSublabels: {"a": id(2), "b": id(3)}}}
	assert.Equal(t, 2, label.Size())

	assert.Equal(t, 0, (&Entity{Type: Artist}).Size())
	assert.Empty(t, (&Entity{Type: Artist}).AliasIDs())
}

func TestSearchContent(t *testing.T) {
	tests := map[string]string{
		"Seefeel":               "seefeel",
		"Aphex Twin (2)":        "aphex twin",
		"  Mark   Clifford ":    "mark clifford",
		"Sarah Peacock's Band!": "sarah peacocks band",
		"Björk":                 "björk",
		"Warp Records Ltd.":     "warp records ltd",
	}
	for in, want := range tests {
		assert.Equal(t, want, SearchContent(in), in)
	}
}

func TestLinkKey(t *testing.T) {
	rel := &Relation{
		EntityOneType: Artist, EntityOneID: 41103,
		EntityTwoType: Artist, EntityTwoID: 2239,
		Role: "Member Of",
	}
	assert.Equal(t, "artist-41103-member-of-artist-2239", rel.LinkKey())
	assert.Equal(t, "written-by", NormalizeRole("Written-By"))
	assert.Equal(t, "released-on", NormalizeRole("Released \t On"))
	assert.True(t, rel.Complete())

	rel.EntityTwoID = 0
	assert.False(t, rel.Complete())
}

func TestYears(t *testing.T) {
	rel := &Relation{Releases: map[int]*int{1: id(1994), 2: nil, 3: id(1993), 4: id(1994)}}
	assert.Equal(t, []int{1993, 1994}, rel.Years())
	assert.Empty(t, (&Relation{}).Years())
}

func TestStructuralRelationsOf(t *testing.T) {
	t.Run("member of points member to group", func(t *testing.T) {
		rels := StructuralRelationsOf(seefeel(), []string{role.MemberOf})
		require.Len(t, rels, 5, "unresolved member is skipped")
		rel, ok := rels["artist-41103-member-of-artist-2239"]
		require.True(t, ok)
		assert.Equal(t, Key{Artist, 41103}, rel.EntityOneKey())
		assert.Equal(t, Key{Artist, 2239}, rel.EntityTwoKey())
	})

	t.Run("groups point self to group", func(t *testing.T) {
		member := &Entity{ID: 41103, Type: Artist, Name: "Daren Seymour",
			Entities: Sections{SectionGroups: {"Seefeel": id(2239)}}}
		rels := StructuralRelationsOf(member, []string{role.MemberOf})
		assert.Contains(t, rels, "artist-41103-member-of-artist-2239")
	})

	t.Run("alias stores lower id first", func(t *testing.T) {
		rels := StructuralRelationsOf(seefeel(), []string{role.Alias})
		require.Len(t, rels, 1)
		assert.Contains(t, rels, "artist-99-alias-artist-2239")
	})

	t.Run("relational roles derive nothing", func(t *testing.T) {
		assert.Empty(t, StructuralRelationsOf(seefeel(), []string{role.Producer}))
	})

	t.Run("labels only derive sublabel of", func(t *testing.T) {
		warp := &Entity{ID: 23528, Type: Label, Name: "Warp Records",
			Entities: Sections{
				SectionSublabels:   {"Arcola": id(41255), "Lost": nil},
				SectionParentLabel: {"Warp Holdings": id(1)},
			}}
		rels := StructuralRelationsOf(warp, []string{role.Alias, role.MemberOf, role.SublabelOf})
		assert.Len(t, rels, 2)
		assert.Contains(t, rels, "label-41255-sublabel-of-label-23528")
		assert.Contains(t, rels, "label-23528-sublabel-of-label-1")
	})

	t.Run("artists ignore sublabel of", func(t *testing.T) {
		assert.Empty(t, StructuralRelationsOf(seefeel(), []string{role.SublabelOf}))
	})
}

func TestRoleAccountedRelationCount(t *testing.T) {
	e := seefeel()
	assert.Equal(t, 0, RoleAccountedRelationCount(e, nil))
	assert.Equal(t, 6, RoleAccountedRelationCount(e, []string{role.MemberOf}), "members plus groups, unresolved included")
	assert.Equal(t, 1, RoleAccountedRelationCount(e, []string{role.Alias}))
	assert.Equal(t, 4, RoleAccountedRelationCount(e, []string{role.Producer}))
	assert.Equal(t, 11, RoleAccountedRelationCount(e, []string{role.Alias, role.MemberOf, role.Producer, role.Remix}))
	assert.Equal(t, 0, RoleAccountedRelationCount(e, []string{role.SublabelOf}))
}
