// Package types defines the discography fixture file format read by ixgest.
//
// A fixture lists entities and relations:
//
//	entities:
//	  - id: 2239
//	    type: artist
//	    name: Seefeel
//	    entities:
//	      members: {Mark Clifford: 66803, Shige: null}
//	relations:
//	  - source: artist-66803
//	    role: Producer
//	    target: artist-2239
//	    releases: {1002: 1993}
//
// A null section id is resolved by name during import.
package types

import "github.com/teranos/discograph/entity"

// Fixture is one fixture file.
type Fixture struct {
	Entities  []Entity   `yaml:"entities" json:"entities"`
	Relations []Relation `yaml:"relations" json:"relations"`
}

// Entity is an artist or label as written in a fixture.
type Entity struct {
	ID             int             `yaml:"id" json:"id"`
	Type           string          `yaml:"type" json:"type"`
	Name           string          `yaml:"name" json:"name"`
	RelationCounts map[string]int  `yaml:"relation_counts,omitempty" json:"relation_counts,omitempty"`
	Entities       entity.Sections `yaml:"entities,omitempty" json:"entities,omitempty"`
	Metadata       map[string]any  `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Relation is an edge between two entity keys such as "artist-2239".
type Relation struct {
	Source   string       `yaml:"source" json:"source"`
	Role     string       `yaml:"role" json:"role"`
	Target   string       `yaml:"target" json:"target"`
	Releases map[int]*int `yaml:"releases,omitempty" json:"releases,omitempty"`
}
