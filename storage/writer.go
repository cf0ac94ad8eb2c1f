package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/rand/v2"

	"github.com/teranos/discograph/db"
	"github.com/teranos/discograph/entity"
	"github.com/teranos/discograph/errors"
	"github.com/teranos/discograph/role"
)

const (
	EntityUpsertQuery = `
		INSERT INTO entity (entity_type, entity_id, name, relation_counts, metadata, entities, search_content, random)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			name = excluded.name,
			relation_counts = excluded.relation_counts,
			metadata = excluded.metadata,
			entities = excluded.entities,
			search_content = excluded.search_content`

	RelationInsertQuery = `
		INSERT INTO relation (entity_one_type, entity_one_id, entity_two_type, entity_two_id, role, releases, random)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	RelationFetchQuery = `SELECT ` + relationColumns + ` FROM relation
		WHERE entity_one_type = ? AND entity_one_id = ? AND entity_two_type = ? AND entity_two_id = ? AND role = ?`

	RelationUpdateReleasesQuery = `UPDATE relation SET releases = ? WHERE relation_id = ?`

	RoleUpsertQuery = `
		INSERT INTO role (role_name, role_category, role_subcategory) VALUES (?, ?, ?)
		ON CONFLICT (role_name) DO UPDATE SET
			role_category = excluded.role_category,
			role_subcategory = excluded.role_subcategory`

	RelationCountsQuery = `
		SELECT entity_type, entity_id, role, SUM(n) FROM (
			SELECT entity_one_type AS entity_type, entity_one_id AS entity_id, role, COUNT(*) AS n
			FROM relation GROUP BY entity_one_type, entity_one_id, role
			UNION ALL
			SELECT entity_two_type, entity_two_id, role, COUNT(*)
			FROM relation GROUP BY entity_two_type, entity_two_id, role
		) GROUP BY entity_type, entity_id, role`

	EntityUpdateCountsQuery = `UPDATE entity SET relation_counts = ? WHERE entity_type = ? AND entity_id = ?`
)

// EntityFields holds marshaled JSON columns of an entity.
type EntityFields struct {
	RelationCountsJSON string
	MetadataJSON       string
	EntitiesJSON       string
}

// MarshalEntityFields marshals the JSON columns of e. Nil maps become "{}".
func MarshalEntityFields(e *entity.Entity) (*EntityFields, error) {
	if e == nil {
		return nil, errors.New("entity is nil")
	}
	counts, err := marshalColumn(e.RelationCounts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal relation_counts")
	}
	metadata, err := marshalColumn(e.Metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal metadata")
	}
	sections, err := marshalColumn(e.Entities)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal entities")
	}
	return &EntityFields{
		RelationCountsJSON: counts,
		MetadataJSON:       metadata,
		EntitiesJSON:       sections,
	}, nil
}

func marshalColumn[M ~map[K]V, K comparable, V any](m M) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WithTx runs fn against a store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *SQLStore) WithTx(ctx context.Context, fn func(tx *SQLStore) error) error {
	if s.db == nil {
		return errors.New("WithTx called on a transaction-bound store")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(err, "begin transaction")
	}

	bound := &SQLStore{q: tx, logger: s.logger}
	if err := fn(bound); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warnw("Rollback failed", "error", rbErr)
		}
		return err
	}
	return wrapErr(tx.Commit(), "commit transaction")
}

// UpsertEntity inserts e or replaces its name, counts, metadata and sections.
// Search content is derived from the name when empty; random is assigned on
// first insert.
func (s *SQLStore) UpsertEntity(ctx context.Context, e *entity.Entity) error {
	if !e.Type.Valid() || e.ID <= 0 {
		return errors.NewInvalidRequestError("cannot store entity %s", e.Key())
	}
	if e.Name == "" {
		return errors.NewInvalidRequestError("entity %s has no name", e.Key())
	}

	fields, err := MarshalEntityFields(e)
	if err != nil {
		return err
	}
	if e.SearchContent == "" {
		e.SearchContent = entity.SearchContent(e.Name)
	}
	if e.Random == 0 {
		e.Random = rand.Float64()
	}

	_, err = s.q.ExecContext(ctx, EntityUpsertQuery,
		int(e.Type), e.ID, e.Name,
		fields.RelationCountsJSON, fields.MetadataJSON, fields.EntitiesJSON,
		e.SearchContent, e.Random,
	)
	return wrapErr(err, "upsert entity")
}

// InsertRelation stores r, or merges its releases into the existing relation
// with the same endpoints and role. It reports whether a row was created and
// fills r.ID either way.
func (s *SQLStore) InsertRelation(ctx context.Context, r *entity.Relation) (bool, error) {
	if !r.Complete() {
		return false, errors.NewInvalidRequestError("relation %q has a missing endpoint", r.LinkKey())
	}
	if r.Role == role.Alias && r.EntityOneID > r.EntityTwoID {
		r.EntityOneID, r.EntityTwoID = r.EntityTwoID, r.EntityOneID
		r.EntityOneType, r.EntityTwoType = r.EntityTwoType, r.EntityOneType
	}
	if r.Random == 0 {
		r.Random = rand.Float64()
	}

	releases, err := marshalColumn(r.Releases)
	if err != nil {
		return false, errors.Wrap(err, "failed to marshal releases")
	}

	res, err := s.q.ExecContext(ctx, RelationInsertQuery,
		int(r.EntityOneType), r.EntityOneID, int(r.EntityTwoType), r.EntityTwoID,
		r.Role, releases, r.Random,
	)
	if err == nil {
		r.ID, err = res.LastInsertId()
		return true, wrapErr(err, "relation id")
	}
	if !db.IsUniqueViolation(err) {
		return false, wrapErr(err, "insert relation")
	}

	// Fetch the existing row and fold in any new releases
	existing, err := s.queryRelations(ctx, RelationFetchQuery,
		int(r.EntityOneType), r.EntityOneID, int(r.EntityTwoType), r.EntityTwoID, r.Role)
	if err != nil {
		return false, wrapErr(err, "fetch existing relation")
	}
	if len(existing) == 0 {
		return false, errors.AssertionFailedf("unique violation for %s but no row found", r.LinkKey())
	}
	current := existing[0]
	r.ID = current.ID
	r.Random = current.Random

	merged := current.Releases
	if merged == nil {
		merged = map[int]*int{}
	}
	changed := false
	for id, year := range r.Releases {
		if old, ok := merged[id]; !ok || (old == nil && year != nil) {
			merged[id] = year
			changed = true
		}
	}
	r.Releases = merged
	if !changed {
		return false, nil
	}

	raw, err := marshalColumn(merged)
	if err != nil {
		return false, errors.Wrap(err, "failed to marshal releases")
	}
	_, err = s.q.ExecContext(ctx, RelationUpdateReleasesQuery, raw, r.ID)
	return false, wrapErr(err, "update relation releases")
}

// SyncRoles mirrors catalog into the role table and returns the row count written.
func (s *SQLStore) SyncRoles(ctx context.Context, catalog *role.Catalog) (int, error) {
	roles := catalog.Roles()
	for _, r := range roles {
		if _, err := s.q.ExecContext(ctx, RoleUpsertQuery, r.Name, r.Category, r.Subcategory); err != nil {
			return 0, wrapErr(err, "sync role "+r.Name)
		}
	}
	s.logger.Debugw("Synced role catalog", "count", len(roles))
	return len(roles), nil
}

// RecomputeRelationCounts rebuilds relation_counts on every entity from the
// relation table, for relational roles only. Structural counts come from the
// entity's own sections.
func (s *SQLStore) RecomputeRelationCounts(ctx context.Context) (int, error) {
	rows, err := s.q.QueryContext(ctx, RelationCountsQuery)
	if err != nil {
		return 0, wrapErr(err, "count relations")
	}

	counts := make(map[entity.Key]map[string]int)
	for rows.Next() {
		var (
			typ, id, n int
			r          string
		)
		if err := rows.Scan(&typ, &id, &r, &n); err != nil {
			rows.Close()
			return 0, wrapErr(err, "scan relation counts")
		}
		if role.KindOf(r) == role.Structural {
			continue
		}
		k := entity.Key{Type: entity.Type(typ), ID: id}
		if counts[k] == nil {
			counts[k] = make(map[string]int)
		}
		counts[k][r] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, wrapErr(err, "iterate relation counts")
	}

	updated := 0
	for k, byRole := range counts {
		raw, err := marshalColumn(byRole)
		if err != nil {
			return updated, errors.Wrap(err, "failed to marshal relation_counts")
		}
		res, err := s.q.ExecContext(ctx, EntityUpdateCountsQuery, raw, int(k.Type), k.ID)
		if err != nil {
			return updated, wrapErr(err, "update relation_counts")
		}
		if n, _ := res.RowsAffected(); n > 0 {
			updated++
		}
	}
	return updated, nil
}

// LookupIDByName resolves a name to an entity id within one type.
// It returns 0 when no entity has that exact name.
func (s *SQLStore) LookupIDByName(ctx context.Context, typ entity.Type, name string) (int, error) {
	var id int
	err := s.q.QueryRowContext(ctx,
		`SELECT entity_id FROM entity WHERE entity_type = ? AND name = ? ORDER BY entity_id LIMIT 1`,
		int(typ), name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, wrapErr(err, "lookup entity by name")
}
