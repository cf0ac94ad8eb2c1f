package fixture

// Discography fixture ingestion into the entity and relation tables.

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/teranos/discograph/db"
	"github.com/teranos/discograph/entity"
	"github.com/teranos/discograph/errors"
	"github.com/teranos/discograph/ixgest/types"
	"github.com/teranos/discograph/logger"
	"github.com/teranos/discograph/role"
	"github.com/teranos/discograph/storage"
)

const (
	// DefaultMaxAttempts bounds how often a write transaction is retried on SQLITE_BUSY
	DefaultMaxAttempts = 4

	// DefaultBackoff is the delay before the first retry; it doubles per attempt
	DefaultBackoff = 50 * time.Millisecond
)

// Seefeel is the embedded demo fixture used by test mode.
//
//go:embed fixtures/seefeel.yaml
var Seefeel []byte

// FixtureProcessor imports discography fixtures through the storage writers.
type FixtureProcessor struct {
	store       *storage.SQLStore
	catalog     *role.Catalog
	dryRun      bool
	verbosity   int
	logger      *zap.SugaredLogger
	maxAttempts int
	backoff     time.Duration
}

// ProcessingResult represents the result of one fixture import
type ProcessingResult struct {
	Source               string    `json:"source"`
	BatchID              string    `json:"batch_id"`
	DryRun               bool      `json:"dry_run"`
	EntitiesProcessed    int       `json:"entities_processed"`
	RelationsCreated     int       `json:"relations_created"`
	RelationsMerged      int       `json:"relations_merged"`
	RolesSynced          int       `json:"roles_synced"`
	CountsRecomputed     int       `json:"counts_recomputed"`
	ResolvedReferences   int       `json:"resolved_references"`
	UnresolvedReferences []string  `json:"unresolved_references,omitempty"`
	Attempts             int       `json:"attempts"`
	Success              bool      `json:"success"`
	Message              string    `json:"message"`
	StartTime            time.Time `json:"start_time"`
	EndTime              time.Time `json:"end_time"`
}

// NewFixtureProcessor creates a fixture processor writing to store. A nil catalog
// selects the embedded role catalog.
func NewFixtureProcessor(store *storage.SQLStore, catalog *role.Catalog, dryRun bool, verbosity int, logger *zap.SugaredLogger) *FixtureProcessor {
	if catalog == nil {
		catalog = role.Default()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FixtureProcessor{
		store:       store,
		catalog:     catalog,
		dryRun:      dryRun,
		verbosity:   verbosity,
		logger:      logger.Named("ixgest"),
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
	}
}

// SetRetry overrides the busy retry policy.
func (p *FixtureProcessor) SetRetry(maxAttempts int, backoff time.Duration) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	p.maxAttempts = maxAttempts
	p.backoff = backoff
}

// Parse decodes a fixture. format is "json" or "yaml"; anything else is
// treated as YAML.
func Parse(data []byte, format string) (*types.Fixture, error) {
	var f types.Fixture
	switch strings.ToLower(format) {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, errors.Wrap(err, "failed to parse JSON fixture")
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, errors.Wrap(err, "failed to parse YAML fixture")
		}
	}
	return &f, nil
}

// Load reads and parses a fixture file, choosing the format by extension.
func Load(path string) (*types.Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read fixture %s", path)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	return Parse(data, format)
}

// ProcessFile loads and imports the fixture at path.
func (p *FixtureProcessor) ProcessFile(ctx context.Context, path string) (*ProcessingResult, error) {
	f, err := Load(path)
	if err != nil {
		return &ProcessingResult{Source: path, DryRun: p.dryRun, Message: err.Error()}, err
	}
	return p.Process(ctx, f, path)
}

// Process validates f, resolves section names to ids and writes everything
// in one transaction. In dry-run mode nothing is written but validation and
// name resolution still run.
func (p *FixtureProcessor) Process(ctx context.Context, f *types.Fixture, source string) (*ProcessingResult, error) {
	result := &ProcessingResult{
		Source:    source,
		BatchID:   uuid.NewString(),
		DryRun:    p.dryRun,
		StartTime: time.Now(),
	}
	log := p.logger.With(logger.FieldBatchID, result.BatchID, "source", source)
	fail := func(err error) (*ProcessingResult, error) {
		result.EndTime = time.Now()
		result.Message = err.Error()
		log.Warnw("Fixture import failed", "error", err)
		return result, err
	}

	entities, err := convertEntities(f.Entities)
	if err != nil {
		return fail(err)
	}
	relations, err := p.convertRelations(f.Relations)
	if err != nil {
		return fail(err)
	}

	resolved, unresolved, err := p.resolveSections(ctx, entities)
	if err != nil {
		return fail(err)
	}
	result.ResolvedReferences = resolved
	result.UnresolvedReferences = unresolved
	result.EntitiesProcessed = len(entities)
	if len(unresolved) > 0 && logger.ShouldOutput(p.verbosity, logger.OutputProgress) {
		log.Infow("Unresolved section references", "count", len(unresolved), "names", unresolved)
	}

	if p.dryRun {
		result.Success = true
		result.EndTime = time.Now()
		result.Message = fmt.Sprintf("Dry run: %d entities and %d relations validated", len(entities), len(relations))
		log.Infow("Fixture validated", "entities", len(entities), "relations", len(relations))
		return result, nil
	}

	recompute := true
	for _, e := range entities {
		if len(e.RelationCounts) > 0 {
			recompute = false
			break
		}
	}

	err = p.withRetry(ctx, result, func(tx *storage.SQLStore) error {
		result.RelationsCreated, result.RelationsMerged, result.CountsRecomputed = 0, 0, 0

		n, err := tx.SyncRoles(ctx, p.catalog)
		if err != nil {
			return err
		}
		result.RolesSynced = n

		for _, e := range entities {
			if err := tx.UpsertEntity(ctx, e); err != nil {
				return errors.Wrapf(err, "entity %s", e.Key())
			}
		}
		for _, r := range relations {
			created, err := tx.InsertRelation(ctx, r)
			if err != nil {
				return errors.Wrapf(err, "relation %s", r.LinkKey())
			}
			if created {
				result.RelationsCreated++
			} else {
				result.RelationsMerged++
			}
		}

		if recompute {
			n, err := tx.RecomputeRelationCounts(ctx)
			if err != nil {
				return err
			}
			result.CountsRecomputed = n
		}
		return nil
	})
	if err != nil {
		return fail(err)
	}

	result.Success = true
	result.EndTime = time.Now()
	result.Message = fmt.Sprintf("Imported %d entities and %d relations (%d merged)",
		result.EntitiesProcessed, result.RelationsCreated, result.RelationsMerged)
	log.Infow("Fixture imported",
		"entities", result.EntitiesProcessed,
		"relations_created", result.RelationsCreated,
		"relations_merged", result.RelationsMerged,
		"counts_recomputed", result.CountsRecomputed,
		"attempts", result.Attempts,
		"duration", result.EndTime.Sub(result.StartTime),
	)
	return result, nil
}

// withRetry runs fn in a transaction, retrying the whole transaction while
// SQLite reports the database busy.
func (p *FixtureProcessor) withRetry(ctx context.Context, result *ProcessingResult, fn func(tx *storage.SQLStore) error) error {
	delay := p.backoff
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		result.Attempts = attempt
		err = p.store.WithTx(ctx, fn)
		if err == nil || !db.IsBusy(err) {
			return err
		}
		if attempt == p.maxAttempts {
			break
		}
		p.logger.Debugw("Database busy, retrying import", "attempt", attempt, "delay", delay)
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "import cancelled while waiting to retry")
		case <-time.After(delay):
		}
		delay *= 2
	}
	return errors.Wrapf(err, "database still busy after %d attempts", p.maxAttempts)
}

func convertEntities(in []types.Entity) ([]*entity.Entity, error) {
	out := make([]*entity.Entity, 0, len(in))
	seen := make(map[entity.Key]bool, len(in))
	for i, fe := range in {
		t, err := entity.ParseType(fe.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "entities[%d]", i)
		}
		if fe.ID <= 0 {
			return nil, errors.NewInvalidRequestError("entities[%d]: id must be positive", i)
		}
		if strings.TrimSpace(fe.Name) == "" {
			return nil, errors.NewInvalidRequestError("entities[%d]: name is required", i)
		}
		e := &entity.Entity{
			ID:             fe.ID,
			Type:           t,
			Name:           fe.Name,
			RelationCounts: fe.RelationCounts,
			Entities:       fe.Entities,
			Metadata:       fe.Metadata,
			SearchContent:  entity.SearchContent(fe.Name),
		}
		if seen[e.Key()] {
			return nil, errors.NewInvalidRequestError("entities[%d]: duplicate entity %s", i, e.Key())
		}
		seen[e.Key()] = true
		out = append(out, e)
	}
	return out, nil
}

func (p *FixtureProcessor) convertRelations(in []types.Relation) ([]*entity.Relation, error) {
	out := make([]*entity.Relation, 0, len(in))
	for i, fr := range in {
		if err := p.catalog.Validate([]string{fr.Role}); err != nil {
			return nil, errors.Wrapf(err, "relations[%d]", i)
		}
		source, err := entity.ParseJSONKey(fr.Source)
		if err != nil {
			return nil, errors.Wrapf(err, "relations[%d] source", i)
		}
		target, err := entity.ParseJSONKey(fr.Target)
		if err != nil {
			return nil, errors.Wrapf(err, "relations[%d] target", i)
		}
		out = append(out, &entity.Relation{
			EntityOneType: source.Type,
			EntityOneID:   source.ID,
			EntityTwoType: target.Type,
			EntityTwoID:   target.ID,
			Role:          fr.Role,
			Releases:      fr.Releases,
		})
	}
	return out, nil
}

// sectionType is the entity type a section refers to.
func sectionType(section string) (entity.Type, bool) {
	switch section {
	case entity.SectionAliases, entity.SectionGroups, entity.SectionMembers:
		return entity.Artist, true
	case entity.SectionParentLabel, entity.SectionSublabels:
		return entity.Label, true
	}
	return 0, false
}

// resolveSections fills nil section ids by name, first within the fixture and
// then against the database. It returns how many were resolved and the
// sorted "entity: name" references that stayed unresolved.
func (p *FixtureProcessor) resolveSections(ctx context.Context, entities []*entity.Entity) (int, []string, error) {
	byName := make(map[entity.Type]map[string]int)
	for _, e := range entities {
		if byName[e.Type] == nil {
			byName[e.Type] = make(map[string]int)
		}
		if _, dup := byName[e.Type][e.Name]; !dup {
			byName[e.Type][e.Name] = e.ID
		}
	}

	resolved := 0
	var unresolved []string
	for _, e := range entities {
		for section, refs := range e.Entities {
			t, ok := sectionType(section)
			if !ok {
				return 0, nil, errors.NewInvalidRequestError("entity %s: unknown section %q", e.Key(), section)
			}
			for name, id := range refs {
				if id != nil {
					continue
				}
				found := byName[t][name]
				if found == 0 {
					var err error
					found, err = p.store.LookupIDByName(ctx, t, name)
					if err != nil {
						return 0, nil, err
					}
				}
				if found == 0 {
					unresolved = append(unresolved, e.Name+": "+name)
					continue
				}
				refs[name] = &found
				resolved++
			}
		}
	}
	sort.Strings(unresolved)
	return resolved, unresolved, nil
}
