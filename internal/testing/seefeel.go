package testing

import (
	"context"
	"testing"

	"github.com/teranos/discograph/entity"
	"github.com/teranos/discograph/role"
	"github.com/teranos/discograph/storage"
)

// Seefeel fixture ids.
const (
	SeefeelID        = 2239
	DarenSeymourID   = 41103
	JustinFletcherID = 51674
	MarkCliffordID   = 66803
	SarahPeacockID   = 115880
	ShigeID          = 489350
	DisjectaID       = 53714

	WarpID    = 23528
	ArcolaID  = 41255
	TooPureID = 3054
)

// SeefeelMemberIDs lists the five members of Seefeel.
var SeefeelMemberIDs = []int{DarenSeymourID, JustinFletcherID, MarkCliffordID, SarahPeacockID, ShigeID}

func ref(id int) *int { return &id }

// Seefeel returns a small discography around the band Seefeel: the band, its
// five members, one member alias, two labels with a sublabel, and a few
// credits. Every call returns fresh values.
func Seefeel() ([]*entity.Entity, []*entity.Relation) {
	group := entity.Sections{entity.SectionGroups: {"Seefeel": ref(SeefeelID)}}
	member := func(id int, name string) *entity.Entity {
		return &entity.Entity{ID: id, Type: entity.Artist, Name: name, Entities: group}
	}

	mark := member(MarkCliffordID, "Mark Clifford")
	mark.Entities = entity.Sections{
		entity.SectionGroups:  {"Seefeel": ref(SeefeelID)},
		entity.SectionAliases: {"Disjecta": ref(DisjectaID)},
	}
	mark.RelationCounts = map[string]int{role.Producer: 1}

	shige := member(ShigeID, "Shige")
	shige.Entities = entity.Sections{
		entity.SectionGroups:  {"Seefeel": ref(SeefeelID)},
		entity.SectionAliases: {"Shigeru Ishihara": nil},
	}

	entities := []*entity.Entity{
		{
			ID:             SeefeelID,
			Type:           entity.Artist,
			Name:           "Seefeel",
			RelationCounts: map[string]int{role.ReleasedOn: 2, role.Producer: 1},
			Entities: entity.Sections{entity.SectionMembers: {
				"Daren Seymour":   ref(DarenSeymourID),
				"Justin Fletcher": ref(JustinFletcherID),
				"Mark Clifford":   ref(MarkCliffordID),
				"Sarah Peacock":   ref(SarahPeacockID),
				"Shige":           ref(ShigeID),
			}},
			Metadata: map[string]any{"profile": "English post-rock band formed in London in 1992."},
		},
		member(DarenSeymourID, "Daren Seymour"),
		member(JustinFletcherID, "Justin Fletcher"),
		mark,
		member(SarahPeacockID, "Sarah Peacock"),
		shige,
		{
			ID:             DisjectaID,
			Type:           entity.Artist,
			Name:           "Disjecta",
			RelationCounts: map[string]int{role.ReleasedOn: 1},
			Entities:       entity.Sections{entity.SectionAliases: {"Mark Clifford": ref(MarkCliffordID)}},
		},
		{
			ID:             WarpID,
			Type:           entity.Label,
			Name:           "Warp Records",
			RelationCounts: map[string]int{role.ReleasedOn: 2},
			Entities:       entity.Sections{entity.SectionSublabels: {"Arcola": ref(ArcolaID)}},
		},
		{
			ID:       ArcolaID,
			Type:     entity.Label,
			Name:     "Arcola",
			Entities: entity.Sections{entity.SectionParentLabel: {"Warp Records": ref(WarpID)}},
		},
		{
			ID:             TooPureID,
			Type:           entity.Label,
			Name:           "Too Pure",
			RelationCounts: map[string]int{role.ReleasedOn: 1},
		},
	}

	rel := func(one entity.Key, r string, two entity.Key, release, year int) *entity.Relation {
		return &entity.Relation{
			EntityOneType: one.Type,
			EntityOneID:   one.ID,
			EntityTwoType: two.Type,
			EntityTwoID:   two.ID,
			Role:          r,
			Releases:      map[int]*int{release: ref(year)},
		}
	}
	seefeel := entity.Key{Type: entity.Artist, ID: SeefeelID}
	relations := []*entity.Relation{
		rel(seefeel, role.ReleasedOn, entity.Key{Type: entity.Label, ID: WarpID}, 1001, 1994),
		rel(seefeel, role.ReleasedOn, entity.Key{Type: entity.Label, ID: TooPureID}, 1002, 1993),
		rel(entity.Key{Type: entity.Artist, ID: DisjectaID}, role.ReleasedOn, entity.Key{Type: entity.Label, ID: WarpID}, 1003, 1995),
		rel(entity.Key{Type: entity.Artist, ID: MarkCliffordID}, role.Producer, seefeel, 1002, 1993),
	}
	return entities, relations
}

// SeefeelMemoryStore returns a MemoryStore holding the Seefeel fixture.
func SeefeelMemoryStore() *storage.MemoryStore {
	store := storage.NewMemoryStore()
	entities, relations := Seefeel()
	for _, e := range entities {
		e.SearchContent = entity.SearchContent(e.Name)
		store.AddEntity(e)
	}
	for _, r := range relations {
		store.AddRelation(r)
	}
	return store
}

// LoadSeefeel writes the Seefeel fixture through the store's writers.
func LoadSeefeel(t *testing.T, store *storage.SQLStore) {
	t.Helper()

	ctx := context.Background()
	entities, relations := Seefeel()
	err := store.WithTx(ctx, func(tx *storage.SQLStore) error {
		if _, err := tx.SyncRoles(ctx, role.Default()); err != nil {
			return err
		}
		for _, e := range entities {
			if err := tx.UpsertEntity(ctx, e); err != nil {
				return err
			}
		}
		for _, r := range relations {
			if _, err := tx.InsertRelation(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to load Seefeel fixture: %v", err)
	}
}

// SeefeelSQLStore returns a migrated in-memory SQLStore holding the fixture.
func SeefeelSQLStore(t *testing.T) *storage.SQLStore {
	t.Helper()
	store := CreateTestStore(t)
	LoadSeefeel(t, store)
	return store
}
