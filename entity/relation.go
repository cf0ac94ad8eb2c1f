package entity

import (
	"regexp"
	"sort"
	"strings"

	"github.com/teranos/discograph/role"
)

// Relation is a typed edge between two entities. Releases maps a release id to
// its year, nil when the year is unknown.
type Relation struct {
	ID            int64        `json:"relation_id,omitempty" yaml:"id,omitempty"`
	EntityOneType Type         `json:"entity_one_type" yaml:"entity_one_type"`
	EntityOneID   int          `json:"entity_one_id" yaml:"entity_one_id"`
	EntityTwoType Type         `json:"entity_two_type" yaml:"entity_two_type"`
	EntityTwoID   int          `json:"entity_two_id" yaml:"entity_two_id"`
	Role          string       `json:"role" yaml:"role"`
	Releases      map[int]*int `json:"releases,omitempty" yaml:"releases,omitempty"`
	Random        float64      `json:"-" yaml:"-"`
}

// EntityOneKey is the source endpoint.
func (r *Relation) EntityOneKey() Key { return Key{Type: r.EntityOneType, ID: r.EntityOneID} }

// EntityTwoKey is the target endpoint.
func (r *Relation) EntityTwoKey() Key { return Key{Type: r.EntityTwoType, ID: r.EntityTwoID} }

// Complete reports whether both endpoint ids are present.
func (r *Relation) Complete() bool { return r.EntityOneID != 0 && r.EntityTwoID != 0 }

// LinkKey is the relation's canonical identity on the wire.
func (r *Relation) LinkKey() string {
	return LinkKey(r.EntityOneKey(), r.Role, r.EntityTwoKey())
}

// Years returns the distinct known release years, sorted.
func (r *Relation) Years() []int {
	seen := make(map[int]struct{})
	for _, y := range r.Releases {
		if y != nil {
			seen[*y] = struct{}{}
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

var wordPattern = regexp.MustCompile(`\s+`)

// NormalizeRole turns a role into its link key token: whitespace runs become
// '-' and the result is lower case. "Member Of" becomes "member-of".
func NormalizeRole(r string) string {
	return strings.ToLower(wordPattern.ReplaceAllString(r, "-"))
}

// LinkKey builds "{source}-{role}-{target}", e.g.
// "artist-41103-member-of-artist-2239".
func LinkKey(source Key, r string, target Key) string {
	return source.JSONKey() + "-" + NormalizeRole(r) + "-" + target.JSONKey()
}

func newRelation(one Key, r string, two Key) *Relation {
	return &Relation{
		EntityOneType: one.Type,
		EntityOneID:   one.ID,
		EntityTwoType: two.Type,
		EntityTwoID:   two.ID,
		Role:          r,
	}
}

// StructuralRelationsOf derives relations for the structural roles in roles
// from e's own sections, keyed by link key. Unresolved ids are skipped.
//
// Artists yield Alias (lower id first) and Member Of (member to group).
// Labels yield Sublabel Of (sublabel to parent).
func StructuralRelationsOf(e *Entity, roles []string) map[string]*Relation {
	relations := make(map[string]*Relation)
	add := func(rel *Relation) { relations[rel.LinkKey()] = rel }

	wanted := make(map[role.StructuralRole]bool, len(roles))
	for _, name := range roles {
		wanted[role.StructuralOf(name)] = true
	}

	self := e.Key()
	switch e.Type {
	case Artist:
		if wanted[role.AliasRole] {
			for _, id := range resolvedIDs(e.Section(SectionAliases)) {
				lo, hi := id, e.ID
				if hi < lo {
					lo, hi = hi, lo
				}
				add(newRelation(Key{Artist, lo}, role.Alias, Key{Artist, hi}))
			}
		}
		if wanted[role.MemberOfRole] {
			for _, id := range resolvedIDs(e.Section(SectionGroups)) {
				add(newRelation(self, role.MemberOf, Key{Artist, id}))
			}
			for _, id := range resolvedIDs(e.Section(SectionMembers)) {
				add(newRelation(Key{Artist, id}, role.MemberOf, self))
			}
		}
	case Label:
		if wanted[role.SublabelOfRole] {
			for _, id := range resolvedIDs(e.Section(SectionParentLabel)) {
				add(newRelation(self, role.SublabelOf, Key{Label, id}))
			}
			for _, id := range resolvedIDs(e.Section(SectionSublabels)) {
				add(newRelation(Key{Label, id}, role.SublabelOf, self))
			}
		}
	}
	return relations
}

// RoleAccountedRelationCount is how many relations e is expected to have
// across roles. Structural roles count section entries (resolved or not);
// relational roles read RelationCounts.
func RoleAccountedRelationCount(e *Entity, roles []string) int {
	count := 0
	for _, name := range roles {
		switch role.StructuralOf(name) {
		case role.AliasRole:
			count += len(e.Section(SectionAliases))
		case role.MemberOfRole:
			count += len(e.Section(SectionGroups)) + len(e.Section(SectionMembers))
		case role.SublabelOfRole:
			count += len(e.Section(SectionParentLabel)) + len(e.Section(SectionSublabels))
		default:
			count += e.RelationCounts[name]
		}
	}
	return count
}
