// Package entity is the discography data model: artists, labels and the
// typed relations between them.
package entity

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/teranos/discograph/errors"
)

// Type distinguishes artists from labels. The numeric values are stored.
type Type int

const (
	Artist Type = 1
	Label  Type = 2
)

func (t Type) String() string {
	switch t {
	case Artist:
		return "artist"
	case Label:
		return "label"
	}
	return "unknown(" + strconv.Itoa(int(t)) + ")"
}

// Valid reports whether t is Artist or Label.
func (t Type) Valid() bool { return t == Artist || t == Label }

// ParseType maps "artist" / "label" to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "artist":
		return Artist, nil
	case "label":
		return Label, nil
	}
	return 0, errors.NewInvalidRequestError("bad entity type %q", s)
}

// Key identifies an entity. Keys order by type, then id.
type Key struct {
	Type Type
	ID   int
}

// JSONKey renders the wire form, e.g. "artist-2239".
func (k Key) JSONKey() string {
	return k.Type.String() + "-" + strconv.Itoa(k.ID)
}

func (k Key) String() string { return k.JSONKey() }

// Less orders keys by (type, id).
func (k Key) Less(o Key) bool {
	if k.Type != o.Type {
		return k.Type < o.Type
	}
	return k.ID < o.ID
}

// ParseJSONKey is the inverse of Key.JSONKey.
func ParseJSONKey(s string) (Key, error) {
	typ, id, ok := strings.Cut(s, "-")
	if !ok {
		return Key{}, errors.NewInvalidRequestError("malformed entity key %q", s)
	}
	t, err := ParseType(typ)
	if err != nil {
		return Key{}, err
	}
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 {
		return Key{}, errors.NewInvalidRequestError("malformed entity id in %q", s)
	}
	return Key{Type: t, ID: n}, nil
}

// SortKeys sorts keys in place by (type, id).
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// Section names inside Entity.Entities.
const (
	SectionAliases     = "aliases"
	SectionGroups      = "groups"
	SectionMembers     = "members"
	SectionParentLabel = "parent_label"
	SectionSublabels   = "sublabels"
)

// Sections maps a section name to related entity names and their resolved
// ids. A nil id is a reference the loader could not resolve.
type Sections map[string]map[string]*int

// Entity is an artist or label.
type Entity struct {
	ID             int            `json:"entity_id" yaml:"id"`
	Type           Type           `json:"entity_type" yaml:"type"`
	Name           string         `json:"name" yaml:"name"`
	RelationCounts map[string]int `json:"relation_counts,omitempty" yaml:"relation_counts,omitempty"`
	Entities       Sections       `json:"entities,omitempty" yaml:"entities,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	SearchContent  string         `json:"-" yaml:"-"`
	Random         float64        `json:"-" yaml:"-"`
}

// Key returns the entity's identity.
func (e *Entity) Key() Key { return Key{Type: e.Type, ID: e.ID} }

// Section returns one section, or nil.
func (e *Entity) Section(name string) map[string]*int {
	if e.Entities == nil {
		return nil
	}
	return e.Entities[name]
}

// Size is the member count for artists and the sublabel count for labels.
func (e *Entity) Size() int {
	switch e.Type {
	case Artist:
		return len(e.Section(SectionMembers))
	case Label:
		return len(e.Section(SectionSublabels))
	}
	return 0
}

// AliasIDs returns the resolved alias ids, sorted.
func (e *Entity) AliasIDs() []int {
	return resolvedIDs(e.Section(SectionAliases))
}

func resolvedIDs(section map[string]*int) []int {
	ids := make([]int, 0, len(section))
	for _, id := range section {
		if id != nil && *id != 0 {
			ids = append(ids, *id)
		}
	}
	sort.Ints(ids)
	return ids
}

var (
	stripPattern = regexp.MustCompile(`\(\d+\)|[^\p{L}\p{N}\s]+`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// SearchContent reduces a name to its searchable form: lower case, Discogs
// disambiguation suffixes like "(2)" and punctuation removed, whitespace
// collapsed.
func SearchContent(name string) string {
	s := stripPattern.ReplaceAllString(strings.ToLower(name), "")
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}
