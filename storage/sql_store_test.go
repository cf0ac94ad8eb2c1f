package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/discograph/entity"
	"github.com/teranos/discograph/errors"
	dgtest "github.com/teranos/discograph/internal/testing"
	"github.com/teranos/discograph/role"
	"github.com/teranos/discograph/storage"
)

var (
	seefeelKey = entity.Key{Type: entity.Artist, ID: dgtest.SeefeelID}
	warpKey    = entity.Key{Type: entity.Label, ID: dgtest.WarpID}
	tooPureKey = entity.Key{Type: entity.Label, ID: dgtest.TooPureID}
	markKey    = entity.Key{Type: entity.Artist, ID: dgtest.MarkCliffordID}
)

func TestSQLStore_GetEntity(t *testing.T) {
	store := dgtest.SeefeelSQLStore(t)
	ctx := context.Background()

	e, err := store.GetEntity(ctx, seefeelKey)
	require.NoError(t, err)
	assert.Equal(t, "Seefeel", e.Name)
	assert.Equal(t, entity.Artist, e.Type)
	assert.Equal(t, map[string]int{role.ReleasedOn: 2, role.Producer: 1}, e.RelationCounts)
	assert.Len(t, e.Section(entity.SectionMembers), 5)
	assert.Equal(t, "English post-rock band formed in London in 1992.", e.Metadata["profile"])
	assert.Equal(t, "seefeel", e.SearchContent)

	// Unresolved references survive the round trip as nil ids
	shige, err := store.GetEntity(ctx, entity.Key{Type: entity.Artist, ID: dgtest.ShigeID})
	require.NoError(t, err)
	aliases := shige.Section(entity.SectionAliases)
	require.Contains(t, aliases, "Shigeru Ishihara")
	assert.Nil(t, aliases["Shigeru Ishihara"])

	_, err = store.GetEntity(ctx, entity.Key{Type: entity.Artist, ID: 999999})
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
	assert.True(t, errors.Is(err, errors.ErrEntityNotFound))
}

func TestSQLStore_MalformedColumns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sqlDB := dgtest.CreateTestDB(t)
	store := storage.NewSQLStore(sqlDB, zap.New(core).Sugar())
	dgtest.LoadSeefeel(t, store)
	ctx := context.Background()

	_, err := sqlDB.Exec(`UPDATE entity SET entities = '{"groups": ' WHERE entity_type = ? AND entity_id = ?`,
		int(entity.Artist), dgtest.ShigeID)
	require.NoError(t, err)
	_, err = sqlDB.Exec(`UPDATE relation SET releases = '[' WHERE role = ?`, role.Producer)
	require.NoError(t, err)

	members := []entity.Key{seefeelKey}
	for _, id := range dgtest.SeefeelMemberIDs {
		members = append(members, entity.Key{Type: entity.Artist, ID: id})
	}
	found, err := store.SearchEntitiesByKeys(ctx, members)
	require.NoError(t, err)
	require.Len(t, found, 6, "the damaged row stays in the batch")

	for _, e := range found {
		if e.ID != dgtest.ShigeID {
			continue
		}
		assert.Equal(t, "Shige", e.Name)
		assert.Empty(t, e.Entities)
	}

	rels, err := store.RelationsOf(ctx, seefeelKey)
	require.NoError(t, err)
	require.Len(t, rels, 3)
	for _, r := range rels {
		if r.Role == role.Producer {
			assert.Empty(t, r.Releases)
		} else {
			assert.NotEmpty(t, r.Releases)
		}
	}

	warnings := logs.FilterMessage("Ignoring malformed column")
	require.GreaterOrEqual(t, warnings.Len(), 2)
	assert.Equal(t, "artist-489350", warnings.All()[0].ContextMap()["entity_key"])
	assert.Equal(t, "entities", warnings.All()[0].ContextMap()["column"])
}

func TestSQLStore_SearchEntitiesByKeys(t *testing.T) {
	store := dgtest.SeefeelSQLStore(t)

	found, err := store.SearchEntitiesByKeys(context.Background(), []entity.Key{
		seefeelKey,
		warpKey,
		seefeelKey,
		{Type: entity.Artist, ID: 999999},
		// Same id as Warp, wrong type
		{Type: entity.Artist, ID: dgtest.WarpID},
	})
	require.NoError(t, err)

	names := make(map[entity.Key]string)
	for _, e := range found {
		names[e.Key()] = e.Name
	}
	assert.Equal(t, map[entity.Key]string{
		seefeelKey: "Seefeel",
		warpKey:    "Warp Records",
	}, names)

	empty, err := store.SearchEntitiesByKeys(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLStore_SearchRelationsByKeysAndRoles(t *testing.T) {
	store := dgtest.SeefeelSQLStore(t)
	ctx := context.Background()

	linkKeys := func(rels []*entity.Relation) []string {
		out := make([]string, 0, len(rels))
		for _, r := range rels {
			out = append(out, r.LinkKey())
		}
		return out
	}

	t.Run("matches either endpoint", func(t *testing.T) {
		rels, err := store.SearchRelationsByKeysAndRoles(ctx, []entity.Key{warpKey}, []string{role.ReleasedOn})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			"artist-2239-released-on-label-23528",
			"artist-53714-released-on-label-23528",
		}, linkKeys(rels))
	})

	t.Run("filters by role", func(t *testing.T) {
		rels, err := store.SearchRelationsByKeysAndRoles(ctx, []entity.Key{seefeelKey}, []string{role.Producer})
		require.NoError(t, err)
		assert.Equal(t, []string{"artist-66803-producer-artist-2239"}, linkKeys(rels))
		assert.Equal(t, map[int]*int{1002: intPtr(1993)}, rels[0].Releases)
	})

	t.Run("mixed types", func(t *testing.T) {
		rels, err := store.SearchRelationsByKeysAndRoles(ctx,
			[]entity.Key{markKey, tooPureKey}, []string{role.ReleasedOn, role.Producer})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			"artist-2239-released-on-label-3054",
			"artist-66803-producer-artist-2239",
		}, linkKeys(rels))
	})

	t.Run("no roles matches nothing", func(t *testing.T) {
		rels, err := store.SearchRelationsByKeysAndRoles(ctx, []entity.Key{seefeelKey}, nil)
		require.NoError(t, err)
		assert.Empty(t, rels)
	})
}

func TestSQLStore_SearchByName(t *testing.T) {
	store := dgtest.SeefeelSQLStore(t)
	ctx := context.Background()

	results, err := store.SearchByName(ctx, "SEEF", 10)
	require.NoError(t, err)
	assert.Equal(t, []storage.SearchResult{{Key: "artist-2239", Name: "Seefeel"}}, results)

	results, err = store.SearchByName(ctx, "records", 10)
	require.NoError(t, err)
	assert.Equal(t, []storage.SearchResult{{Key: "label-23528", Name: "Warp Records"}}, results)

	// Shorter names rank first
	results, err = store.SearchByName(ctx, "a", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"Arcola", "Disjecta", "Warp Records"},
		[]string{results[0].Name, results[1].Name, results[2].Name})

	results, err = store.SearchByName(ctx, "  !!  ", 10)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSQLStore_RelationsOf(t *testing.T) {
	store := dgtest.SeefeelSQLStore(t)

	rels, err := store.RelationsOf(context.Background(), seefeelKey)
	require.NoError(t, err)

	var got []string
	for _, r := range rels {
		got = append(got, r.LinkKey())
	}
	assert.Equal(t, []string{
		"artist-66803-producer-artist-2239",
		"artist-2239-released-on-label-3054",
		"artist-2239-released-on-label-23528",
	}, got)
}

func TestSQLStore_RandomEntity(t *testing.T) {
	store := dgtest.SeefeelSQLStore(t)
	ctx := context.Background()

	entities, _ := dgtest.Seefeel()
	known := make(map[entity.Key]bool)
	for _, e := range entities {
		known[e.Key()] = true
	}

	for i := 0; i < 20; i++ {
		key, err := store.RandomEntity(ctx, nil)
		require.NoError(t, err)
		assert.True(t, known[key], "unexpected key %s", key)

		key, err = store.RandomEntity(ctx, []string{role.Alias})
		require.NoError(t, err)
		assert.True(t, known[key], "unexpected key %s", key)

		key, err = store.RandomEntity(ctx, []string{role.Producer})
		require.NoError(t, err)
		assert.Contains(t, []entity.Key{markKey, seefeelKey}, key)
	}

	_, err := store.RandomEntity(ctx, []string{role.Remix})
	assert.True(t, errors.IsNotFoundError(err))

	empty := dgtest.CreateTestStore(t)
	_, err = empty.RandomEntity(ctx, nil)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestSQLStore_Stats(t *testing.T) {
	store := dgtest.SeefeelSQLStore(t)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Artists)
	assert.Equal(t, 3, stats.Labels)
	assert.Equal(t, 4, stats.Relations)
	assert.Equal(t, role.Default().Len(), stats.Roles)
	assert.Equal(t, map[string]int{role.ReleasedOn: 3, role.Producer: 1}, stats.RelationsByRole)
}

func intPtr(n int) *int { return &n }
