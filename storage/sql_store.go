package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/discograph/db"
	"github.com/teranos/discograph/entity"
	"github.com/teranos/discograph/errors"
	"github.com/teranos/discograph/logger"
	"github.com/teranos/discograph/role"
)

// Query constants
const (
	entityColumns = `entity_type, entity_id, name, relation_counts, metadata, entities, search_content, random`

	relationColumns = `relation_id, entity_one_type, entity_one_id, entity_two_type, entity_two_id, role, releases, random`

	EntityGetQuery = `SELECT ` + entityColumns + ` FROM entity WHERE entity_type = ? AND entity_id = ?`

	EntitySearchQuery = `
		SELECT entity_type, entity_id, name FROM entity
		WHERE search_content LIKE ? ESCAPE '\'
		ORDER BY length(search_content), name, entity_type, entity_id
		LIMIT ?`

	EntityRandomQuery = `
		SELECT entity_type, entity_id FROM entity
		WHERE random > ? ORDER BY random LIMIT 1`

	RelationsOfQuery = `SELECT ` + relationColumns + ` FROM relation
		WHERE (entity_one_type = ? AND entity_one_id = ?)
		   OR (entity_two_type = ? AND entity_two_id = ?)
		ORDER BY role, entity_one_id, entity_one_type, entity_two_id, entity_two_type`

	StatsEntityQuery   = `SELECT entity_type, COUNT(*) FROM entity GROUP BY entity_type`
	StatsRelationQuery = `SELECT role, COUNT(*) FROM relation GROUP BY role`
	StatsRoleQuery     = `SELECT COUNT(*) FROM role`
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store on SQLite.
type SQLStore struct {
	db     *sql.DB
	q      querier
	logger *zap.SugaredLogger
}

// NewSQLStore creates a store over an open, migrated database.
func NewSQLStore(sqlDB *sql.DB, logger *zap.SugaredLogger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SQLStore{db: sqlDB, q: sqlDB, logger: logger}
}

// DB exposes the underlying handle.
func (s *SQLStore) DB() *sql.DB { return s.db }

// wrapErr classifies driver errors: connection-level failures become
// repository-unavailable, everything else is wrapped with op.
func wrapErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if db.IsUnavailable(err) {
		return errors.WrapUnavailable(err, op)
	}
	return errors.Wrap(err, op)
}

// SearchEntitiesByKeys fetches entities in one query per entity type.
func (s *SQLStore) SearchEntitiesByKeys(ctx context.Context, keys []entity.Key) ([]*entity.Entity, error) {
	var out []*entity.Entity
	for typ, ids := range groupIDs(keys) {
		query := `SELECT ` + entityColumns + ` FROM entity WHERE entity_type = ? AND entity_id IN (` + placeholders(len(ids)) + `)`
		args := make([]any, 0, len(ids)+1)
		args = append(args, int(typ))
		for _, id := range ids {
			args = append(args, id)
		}

		found, err := s.queryEntities(ctx, query, args...)
		if err != nil {
			return nil, wrapErr(err, "search entities by keys")
		}
		out = append(out, found...)
	}
	return out, nil
}

// SearchRelationsByKeysAndRoles fetches relations touching keys whose role is
// in roles. An empty roles slice matches nothing.
func (s *SQLStore) SearchRelationsByKeysAndRoles(ctx context.Context, keys []entity.Key, roles []string) ([]*entity.Relation, error) {
	if len(keys) == 0 || len(roles) == 0 {
		return nil, nil
	}

	var (
		clauses []string
		args    []any
	)
	for typ, ids := range groupIDs(keys) {
		in := placeholders(len(ids))
		clauses = append(clauses,
			`(entity_one_type = ? AND entity_one_id IN (`+in+`))`,
			`(entity_two_type = ? AND entity_two_id IN (`+in+`))`)
		args = append(args, int(typ))
		for _, id := range ids {
			args = append(args, id)
		}
		args = append(args, int(typ))
		for _, id := range ids {
			args = append(args, id)
		}
	}
	for _, r := range roles {
		args = append(args, r)
	}

	query := `SELECT ` + relationColumns + ` FROM relation WHERE (` +
		strings.Join(clauses, " OR ") + `) AND role IN (` + placeholders(len(roles)) + `)`

	rels, err := s.queryRelations(ctx, query, args...)
	return rels, wrapErr(err, "search relations by keys and roles")
}

// GetEntity returns the entity for key or an entity-not-found error.
func (s *SQLStore) GetEntity(ctx context.Context, key entity.Key) (*entity.Entity, error) {
	found, err := s.queryEntities(ctx, EntityGetQuery, int(key.Type), key.ID)
	if err != nil {
		return nil, wrapErr(err, "get entity")
	}
	if len(found) == 0 {
		return nil, errors.NewEntityNotFoundError(key.JSONKey())
	}
	return found[0], nil
}

// SearchByName matches query against the normalized search content.
// Shorter names rank first.
func (s *SQLStore) SearchByName(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	content := entity.SearchContent(query)
	if content == "" {
		return []SearchResult{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	pattern := "%" + escapeLike(content) + "%"
	rows, err := s.q.QueryContext(ctx, EntitySearchQuery, pattern, limit)
	if err != nil {
		return nil, wrapErr(err, "search by name")
	}
	defer rows.Close()

	results := []SearchResult{}
	for rows.Next() {
		var (
			typ  int
			id   int
			name string
		)
		if err := rows.Scan(&typ, &id, &name); err != nil {
			return nil, wrapErr(err, "scan search result")
		}
		results = append(results, SearchResult{
			Key:  entity.Key{Type: entity.Type(typ), ID: id}.JSONKey(),
			Name: name,
		})
	}
	return results, wrapErr(rows.Err(), "iterate search results")
}

// RelationsOf returns every relation touching key, ordered by role then endpoints.
func (s *SQLStore) RelationsOf(ctx context.Context, key entity.Key) ([]*entity.Relation, error) {
	rels, err := s.queryRelations(ctx, RelationsOfQuery, int(key.Type), key.ID, int(key.Type), key.ID)
	return rels, wrapErr(err, "relations of entity")
}

// RandomEntity picks an entity uniformly by its random column. When roles
// include a relational role it picks a random relation with one of those
// roles and returns one of its endpoints instead.
func (s *SQLStore) RandomEntity(ctx context.Context, roles []string) (entity.Key, error) {
	if role.HasRelational(roles) {
		return s.randomRelationEndpoint(ctx, roles)
	}

	var typ, id int
	err := s.q.QueryRowContext(ctx, EntityRandomQuery, rand.Float64()).Scan(&typ, &id)
	if errors.Is(err, sql.ErrNoRows) {
		// Wrap around: the draw landed above the largest random value
		err = s.q.QueryRowContext(ctx, EntityRandomQuery, -1.0).Scan(&typ, &id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Key{}, errors.NewNotFoundError("no entities stored")
	}
	if err != nil {
		return entity.Key{}, wrapErr(err, "random entity")
	}
	return entity.Key{Type: entity.Type(typ), ID: id}, nil
}

func (s *SQLStore) randomRelationEndpoint(ctx context.Context, roles []string) (entity.Key, error) {
	query := `SELECT ` + relationColumns + ` FROM relation
		WHERE random > ? AND role IN (` + placeholders(len(roles)) + `)
		ORDER BY random, role LIMIT 1`

	pick := func(threshold float64) ([]*entity.Relation, error) {
		args := []any{threshold}
		for _, r := range roles {
			args = append(args, r)
		}
		return s.queryRelations(ctx, query, args...)
	}

	rels, err := pick(rand.Float64())
	if err == nil && len(rels) == 0 {
		rels, err = pick(-1)
	}
	if err != nil {
		return entity.Key{}, wrapErr(err, "random relation")
	}
	if len(rels) == 0 {
		return entity.Key{}, errors.NewNotFoundError("no relations stored for the requested roles")
	}
	if rand.IntN(2) == 0 {
		return rels[0].EntityOneKey(), nil
	}
	return rels[0].EntityTwoKey(), nil
}

// Stats counts rows per table.
func (s *SQLStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{RelationsByRole: map[string]int{}}

	rows, err := s.q.QueryContext(ctx, StatsEntityQuery)
	if err != nil {
		return nil, wrapErr(err, "entity stats")
	}
	for rows.Next() {
		var typ, n int
		if err := rows.Scan(&typ, &n); err != nil {
			rows.Close()
			return nil, wrapErr(err, "scan entity stats")
		}
		switch entity.Type(typ) {
		case entity.Artist:
			stats.Artists = n
		case entity.Label:
			stats.Labels = n
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "iterate entity stats")
	}

	rows, err = s.q.QueryContext(ctx, StatsRelationQuery)
	if err != nil {
		return nil, wrapErr(err, "relation stats")
	}
	for rows.Next() {
		var (
			r string
			n int
		)
		if err := rows.Scan(&r, &n); err != nil {
			rows.Close()
			return nil, wrapErr(err, "scan relation stats")
		}
		stats.RelationsByRole[r] = n
		stats.Relations += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "iterate relation stats")
	}

	if err := s.q.QueryRowContext(ctx, StatsRoleQuery).Scan(&stats.Roles); err != nil {
		return nil, wrapErr(err, "role stats")
	}
	return stats, nil
}

func (s *SQLStore) queryEntities(ctx context.Context, query string, args ...any) ([]*entity.Entity, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Entity
	for rows.Next() {
		e, err := s.scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) queryRelations(ctx context.Context, query string, args ...any) ([]*entity.Relation, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Relation
	for rows.Next() {
		r, err := s.scanRelation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanEntity reads one entity row. A JSON column that fails to decode is
// logged and left empty; the row itself is still returned.
func (s *SQLStore) scanEntity(row scanner) (*entity.Entity, error) {
	var (
		e            entity.Entity
		typ          int
		countsJSON   string
		metadataJSON string
		sectionsJSON string
	)
	if err := row.Scan(&typ, &e.ID, &e.Name, &countsJSON, &metadataJSON, &sectionsJSON, &e.SearchContent, &e.Random); err != nil {
		return nil, errors.Wrap(err, "scan entity")
	}
	e.Type = entity.Type(typ)

	key := e.Key().JSONKey()
	if err := unmarshalColumn(countsJSON, &e.RelationCounts); err != nil {
		e.RelationCounts = nil
		s.badColumn(key, "relation_counts", err)
	}
	if err := unmarshalColumn(metadataJSON, &e.Metadata); err != nil {
		e.Metadata = nil
		s.badColumn(key, "metadata", err)
	}
	if err := unmarshalColumn(sectionsJSON, &e.Entities); err != nil {
		e.Entities = nil
		s.badColumn(key, "entities", err)
	}
	return &e, nil
}

func (s *SQLStore) scanRelation(row scanner) (*entity.Relation, error) {
	var (
		r            entity.Relation
		oneType      int
		twoType      int
		releasesJSON string
	)
	if err := row.Scan(&r.ID, &oneType, &r.EntityOneID, &twoType, &r.EntityTwoID, &r.Role, &releasesJSON, &r.Random); err != nil {
		return nil, errors.Wrap(err, "scan relation")
	}
	r.EntityOneType = entity.Type(oneType)
	r.EntityTwoType = entity.Type(twoType)
	if err := unmarshalColumn(releasesJSON, &r.Releases); err != nil {
		r.Releases = nil
		s.badColumn(r.LinkKey(), "releases", err)
	}
	return &r, nil
}

func (s *SQLStore) badColumn(key, column string, err error) {
	s.logger.Warnw("Ignoring malformed column",
		logger.FieldEntityKey, key,
		"column", column,
		"error", err,
	)
}

func unmarshalColumn(raw string, dst any) error {
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

// groupIDs splits keys by type, dropping duplicates.
func groupIDs(keys []entity.Key) map[entity.Type][]int {
	groups := make(map[entity.Type][]int)
	seen := make(map[entity.Key]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		groups[k.Type] = append(groups[k.Type], k.ID)
	}
	return groups
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
