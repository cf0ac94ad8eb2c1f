// Package storage reads and writes the entity and relation tables.
//
// Repository is the narrow read contract the network builder consumes.
// Store adds the lookups the API surfaces need, and SQLStore implements both
// on SQLite. MemoryStore is a map-backed Repository for tests and fixtures.
package storage

import (
	"context"

	"github.com/teranos/discograph/entity"
)

// Batch sizes the builder uses when calling a Repository.
const (
	EntityBatchSize   = 1000
	RelationBatchSize = 500
)

// Repository is the builder's read contract. Result order is unspecified.
type Repository interface {
	// SearchEntitiesByKeys returns the entities that exist among keys.
	SearchEntitiesByKeys(ctx context.Context, keys []entity.Key) ([]*entity.Entity, error)

	// SearchRelationsByKeysAndRoles returns relations with either endpoint in
	// keys and a role in roles.
	SearchRelationsByKeysAndRoles(ctx context.Context, keys []entity.Key, roles []string) ([]*entity.Relation, error)
}

// Store is the full read surface used by the server, MCP tools and CLI.
type Store interface {
	Repository

	GetEntity(ctx context.Context, key entity.Key) (*entity.Entity, error)
	SearchByName(ctx context.Context, query string, limit int) ([]SearchResult, error)
	RelationsOf(ctx context.Context, key entity.Key) ([]*entity.Relation, error)
	RandomEntity(ctx context.Context, roles []string) (entity.Key, error)
	Stats(ctx context.Context) (*Stats, error)
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// SearchResult is one name search hit.
type SearchResult struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Stats summarizes table sizes.
type Stats struct {
	Artists         int            `json:"artists"`
	Labels          int            `json:"labels"`
	Relations       int            `json:"relations"`
	Roles           int            `json:"roles"`
	RelationsByRole map[string]int `json:"relations_by_role"`
}
