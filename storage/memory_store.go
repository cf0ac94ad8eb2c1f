package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/teranos/discograph/entity"
	"github.com/teranos/discograph/errors"
	"github.com/teranos/discograph/role"
)

// MemoryStore is a map-backed Store. It is safe for concurrent use. Reads
// return the stored pointers, so callers must not mutate results.
type MemoryStore struct {
	mu        sync.RWMutex
	entities  map[entity.Key]*entity.Entity
	relations map[string]*entity.Relation

	// Err, when set, is returned by every read.
	Err error
	// Calls counts repository reads, for asserting batching.
	Calls int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities:  make(map[entity.Key]*entity.Entity),
		relations: make(map[string]*entity.Relation),
	}
}

// AddEntity stores or replaces e.
func (m *MemoryStore) AddEntity(e *entity.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[e.Key()] = e
}

// AddRelation stores r under its link key.
func (m *MemoryStore) AddRelation(r *entity.Relation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		r.ID = int64(len(m.relations) + 1)
	}
	m.relations[r.LinkKey()] = r
}

func (m *MemoryStore) read() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	return m.Err
}

// SearchEntitiesByKeys implements Repository.
func (m *MemoryStore) SearchEntitiesByKeys(ctx context.Context, keys []entity.Key) ([]*entity.Entity, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*entity.Entity
	seen := make(map[entity.Key]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if e, ok := m.entities[k]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// SearchRelationsByKeysAndRoles implements Repository.
func (m *MemoryStore) SearchRelationsByKeysAndRoles(ctx context.Context, keys []entity.Key, roles []string) ([]*entity.Relation, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	wantKey := make(map[entity.Key]bool, len(keys))
	for _, k := range keys {
		wantKey[k] = true
	}
	wantRole := make(map[string]bool, len(roles))
	for _, r := range roles {
		wantRole[r] = true
	}

	var out []*entity.Relation
	for _, r := range m.relations {
		if !wantRole[r.Role] {
			continue
		}
		if wantKey[r.EntityOneKey()] || wantKey[r.EntityTwoKey()] {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetEntity implements Store.
func (m *MemoryStore) GetEntity(ctx context.Context, key entity.Key) (*entity.Entity, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entities[key]; ok {
		return e, nil
	}
	return nil, errors.NewEntityNotFoundError(key.JSONKey())
}

// SearchByName implements Store with a substring match on search content.
func (m *MemoryStore) SearchByName(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	content := entity.SearchContent(query)
	results := []SearchResult{}
	if content == "" {
		return results, nil
	}
	if limit <= 0 {
		limit = 10
	}

	m.mu.RLock()
	var hits []*entity.Entity
	for _, e := range m.entities {
		sc := e.SearchContent
		if sc == "" {
			sc = entity.SearchContent(e.Name)
		}
		if strings.Contains(sc, content) {
			hits = append(hits, e)
		}
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if len(hits[i].Name) != len(hits[j].Name) {
			return len(hits[i].Name) < len(hits[j].Name)
		}
		if hits[i].Name != hits[j].Name {
			return hits[i].Name < hits[j].Name
		}
		return hits[i].Key().Less(hits[j].Key())
	})
	for i, e := range hits {
		if i == limit {
			break
		}
		results = append(results, SearchResult{Key: e.Key().JSONKey(), Name: e.Name})
	}
	return results, nil
}

// RelationsOf implements Store.
func (m *MemoryStore) RelationsOf(ctx context.Context, key entity.Key) ([]*entity.Relation, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []*entity.Relation
	for _, r := range m.relations {
		if r.EntityOneKey() == key || r.EntityTwoKey() == key {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Role != b.Role {
			return a.Role < b.Role
		}
		if a.EntityOneKey() != b.EntityOneKey() {
			return a.EntityOneKey().Less(b.EntityOneKey())
		}
		return a.EntityTwoKey().Less(b.EntityTwoKey())
	})
	return out, nil
}

// RandomEntity implements Store deterministically: the lowest key, or the
// source of the lowest-keyed relation when roles include a relational role.
func (m *MemoryStore) RandomEntity(ctx context.Context, roles []string) (entity.Key, error) {
	if err := m.read(); err != nil {
		return entity.Key{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if role.HasRelational(roles) {
		wanted := make(map[string]bool, len(roles))
		for _, r := range roles {
			wanted[r] = true
		}
		var linkKeys []string
		for lk, r := range m.relations {
			if wanted[r.Role] {
				linkKeys = append(linkKeys, lk)
			}
		}
		if len(linkKeys) == 0 {
			return entity.Key{}, errors.NewNotFoundError("no relations stored for the requested roles")
		}
		sort.Strings(linkKeys)
		return m.relations[linkKeys[0]].EntityOneKey(), nil
	}

	if len(m.entities) == 0 {
		return entity.Key{}, errors.NewNotFoundError("no entities stored")
	}
	keys := make([]entity.Key, 0, len(m.entities))
	for k := range m.entities {
		keys = append(keys, k)
	}
	entity.SortKeys(keys)
	return keys[0], nil
}

// Stats implements Store.
func (m *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	if err := m.read(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{RelationsByRole: map[string]int{}, Roles: role.Default().Len()}
	for k := range m.entities {
		switch k.Type {
		case entity.Artist:
			stats.Artists++
		case entity.Label:
			stats.Labels++
		}
	}
	for _, r := range m.relations {
		stats.RelationsByRole[r.Role]++
		stats.Relations++
	}
	return stats, nil
}
