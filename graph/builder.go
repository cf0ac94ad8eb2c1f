package graph

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/discograph/entity"
	"github.com/teranos/discograph/errors"
	"github.com/teranos/discograph/logger"
	"github.com/teranos/discograph/role"
	"github.com/teranos/discograph/storage"
)

// Builder defaults.
const (
	DefaultMaxNodes  = 400
	DefaultLinkRatio = 10
	DefaultPageCount = 1
)

// prunableRoles fan out too widely to follow once the network is a quarter full.
var prunableRoles = []string{
	role.ReleasedOn,
	role.CompiledOn,
	role.Producer,
	role.Remix,
	role.DJMix,
	role.WrittenBy,
}

// Options bound one ego network build. Zero values select the defaults.
type Options struct {
	// Degree is the deepest BFS distance explored. 0 yields the center alone.
	Degree    int
	MaxNodes  int
	LinkRatio int
	Roles     []string
	PageCount int
	// Year, when set, keeps only relational relations with a release in range.
	// Relations without any known release year always pass.
	Year *YearRange
}

// MaxLinks is MaxNodes * LinkRatio.
func (o Options) MaxLinks() int { return o.MaxNodes * o.LinkRatio }

func (o Options) withDefaults() (Options, error) {
	if o.Degree < 0 {
		return o, errors.NewInvalidRequestError("degree must be >= 0, got %d", o.Degree)
	}
	if o.MaxNodes < 0 {
		return o, errors.NewInvalidRequestError("max_nodes must be > 0, got %d", o.MaxNodes)
	}
	if o.LinkRatio < 0 {
		return o, errors.NewInvalidRequestError("link_ratio must be > 0, got %d", o.LinkRatio)
	}
	if o.PageCount < 0 {
		return o, errors.NewInvalidRequestError("page_count must be > 0, got %d", o.PageCount)
	}
	if o.Year != nil && o.Year.From > o.Year.To {
		return o, errors.NewInvalidRequestError("year range %s is reversed", o.Year)
	}
	if o.MaxNodes == 0 {
		o.MaxNodes = DefaultMaxNodes
	}
	if o.LinkRatio == 0 {
		o.LinkRatio = DefaultLinkRatio
	}
	if o.PageCount == 0 {
		o.PageCount = DefaultPageCount
	}
	return o, nil
}

// YearRange is an inclusive range of release years.
type YearRange struct {
	From int
	To   int
}

// String renders "1994" or "1990-1999".
func (y *YearRange) String() string {
	if y.From == y.To {
		return strconv.Itoa(y.From)
	}
	return strconv.Itoa(y.From) + "-" + strconv.Itoa(y.To)
}

// ParseYearRange parses "1994" or "1990-1999". Range bounds are sorted, so
// "1999-1990" is the same range. An empty string yields nil.
func ParseYearRange(s string) (*YearRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	from, to, isRange := strings.Cut(s, "-")
	a, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil {
		return nil, errors.NewInvalidRequestError("bad year %q", s)
	}
	if !isRange {
		return &YearRange{From: a, To: a}, nil
	}
	b, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil {
		return nil, errors.NewInvalidRequestError("bad year range %q", s)
	}
	if a > b {
		a, b = b, a
	}
	return &YearRange{From: a, To: b}, nil
}

// Matches reports whether r has no known year or a year within range.
// A nil range matches everything.
func (y *YearRange) Matches(r *entity.Relation) bool {
	if y == nil {
		return true
	}
	years := r.Years()
	if len(years) == 0 {
		return true
	}
	for _, year := range years {
		if year >= y.From && year <= y.To {
			return true
		}
	}
	return false
}

// Builder builds ego networks from a Repository. It holds no per-build state
// and is safe for concurrent use.
type Builder struct {
	repo      storage.Repository
	catalog   *role.Catalog
	metrics   *Metrics
	verbosity int
	logger    *zap.SugaredLogger
}

// NewBuilder creates a builder over repo. A nil catalog selects the embedded
// role catalog.
func NewBuilder(repo storage.Repository, catalog *role.Catalog, verbosity int, log *zap.SugaredLogger) *Builder {
	if catalog == nil {
		catalog = role.Default()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Builder{
		repo:      repo,
		catalog:   catalog,
		verbosity: verbosity,
		logger:    log.Named("graph.builder"),
	}
}

// WithMetrics records build metrics on m.
func (b *Builder) WithMetrics(m *Metrics) *Builder {
	b.metrics = m
	return b
}

// BuildEgoNetwork explores the network around center, which the caller has
// already resolved. Unknown role names fail with ErrInvalidRoleFilter.
// Repository failures are returned wrapped and never retried; malformed
// entities and relations are dropped and logged.
func (b *Builder) BuildEgoNetwork(ctx context.Context, center *entity.Entity, opts Options) (*Network, error) {
	start := time.Now()
	network, err := b.build(ctx, center, opts)
	b.metrics.observeBuild(start, network, err)
	if err != nil {
		return nil, err
	}
	return network, nil
}

func (b *Builder) build(ctx context.Context, center *entity.Entity, opts Options) (*Network, error) {
	if center == nil {
		return nil, errors.NewInvalidRequestError("center entity is required")
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	structural, relational, err := b.catalog.Partition(opts.Roles)
	if err != nil {
		return nil, err
	}

	s := &search{
		b:           b,
		logger:      logger.FromContext(ctx, b.logger).With("center", center.Key().JSONKey()),
		center:      center,
		opts:        opts,
		maxLinks:    opts.MaxLinks(),
		structural:  structural,
		relational:  relational,
		provisional: append([]string(nil), relational...),
		trellis:     newTrellis(),
		frontier:    make(map[entity.Key]struct{}),
	}
	s.logger.Debugw("Searching",
		"max_nodes", opts.MaxNodes,
		"max_links", s.maxLinks,
		"degree", opts.Degree,
		"roles", s.allRoles(),
	)

	if err := s.run(ctx); err != nil {
		return nil, err
	}
	return s.finish()
}

// search is the state of one build.
type search struct {
	b      *Builder
	logger *zap.SugaredLogger
	center *entity.Entity
	opts   Options

	maxLinks    int
	structural  []string
	relational  []string
	provisional []string
	pruned      []string

	trellis      *trellis
	frontier     map[entity.Key]struct{}
	shouldBreak  bool
	lastDistance int
}

func (s *search) allRoles() []string {
	return append(append([]string(nil), s.structural...), s.relational...)
}

func (s *search) run(ctx context.Context) error {
	s.frontier[s.center.Key()] = struct{}{}

	for d := 0; d <= s.opts.Degree; d++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "build cancelled at distance %d", d)
		}
		s.lastDistance = d
		s.logger.Debugw("Search round",
			"distance", d,
			"nodes", len(s.trellis.index),
			"links", len(s.trellis.links),
			"frontier", len(s.frontier),
		)
		if logger.ShouldOutput(s.b.verbosity, logger.OutputFrontier) {
			s.logger.Debugw("Frontier", "keys", sortedKeys(s.frontier))
		}

		entities, err := s.fetchEntities(ctx, d)
		if err != nil {
			return err
		}
		s.processEntities(d, entities)
		if len(s.frontier) == 0 || s.shouldBreak {
			break
		}

		s.checkNodeBudget(d)
		s.pruneRoles(d)
		relations := make(map[string]*entity.Relation)
		if !s.shouldBreak {
			s.expandStructural(relations)
			if err := s.expandRelational(ctx, d, relations); err != nil {
				return err
			}
		}
		s.checkRelationBudget(d, relations)

		s.frontier = make(map[entity.Key]struct{})
		s.processRelations(relations)
	}
	return nil
}

func (s *search) fetchEntities(ctx context.Context, d int) ([]*entity.Entity, error) {
	keys := sortedKeys(s.frontier)
	var entities []*entity.Entity
	for start := 0; start < len(keys); start += storage.EntityBatchSize {
		end := min(start+storage.EntityBatchSize, len(keys))
		found, err := s.b.repo.SearchEntitiesByKeys(ctx, keys[start:end])
		if err != nil {
			return nil, errors.Wrapf(err, "fetch entities at distance %d", d)
		}
		entities = append(entities, found...)
	}

	// The caller resolved the center already; keep it if the store lost it since
	if d == 0 && !containsKey(entities, s.center.Key()) {
		s.logger.Warnw("Center missing from repository, using caller's entity")
		entities = append(entities, s.center)
	}
	return entities, nil
}

func (s *search) processEntities(d int, entities []*entity.Entity) {
	sort.Slice(entities, func(i, j int) bool { return entities[i].Key().Less(entities[j].Key()) })
	for _, e := range entities {
		if e.ID == 0 || e.Name == "" {
			delete(s.frontier, e.Key())
			s.logger.Debugw("Dropped malformed entity", "key", e.Key().JSONKey())
			continue
		}
		s.trellis.add(e, d)
	}
}

func (s *search) checkNodeBudget(d int) {
	if d > 0 && len(s.trellis.index) >= s.opts.MaxNodes {
		s.logger.Debugw("Max nodes: exiting next search loop", "nodes", len(s.trellis.index))
		s.shouldBreak = true
	}
}

func (s *search) pruneRoles(d int) {
	if d == 0 || float64(len(s.trellis.index)) <= float64(s.opts.MaxNodes)/4 {
		return
	}
	drop := prunableRoles
	if s.center.Type == entity.Artist {
		drop = append(append([]string(nil), drop...), role.SublabelOf)
	}
	for _, r := range drop {
		if i := indexOf(s.provisional, r); i >= 0 {
			s.provisional = append(s.provisional[:i], s.provisional[i+1:]...)
			s.pruned = append(s.pruned, r)
			s.b.metrics.observePrune(r)
			s.logger.Debugw("Pruned role", "role", r, "distance", d)
		}
	}
}

func (s *search) expandStructural(relations map[string]*entity.Relation) {
	if len(s.structural) == 0 {
		return
	}
	for _, k := range sortedKeys(s.frontier) {
		n, ok := s.trellis.node(k)
		if !ok {
			continue
		}
		for lk, r := range entity.StructuralRelationsOf(n.entity, s.structural) {
			relations[lk] = r
		}
	}
}

func (s *search) expandRelational(ctx context.Context, d int, relations map[string]*entity.Relation) error {
	for _, k := range sortedKeys(s.frontier) {
		n, ok := s.trellis.node(k)
		if !ok {
			continue
		}
		count := entity.RoleAccountedRelationCount(n.entity, s.provisional)
		if d > 0 && s.maxLinks < count {
			delete(s.frontier, k)
			s.logger.Debugw("Pre-pruned dense entity", "key", k.JSONKey(), "name", n.entity.Name, "count", count)
		}
	}

	if len(s.provisional) == 0 || d >= s.opts.Degree {
		return nil
	}

	keys := sortedKeys(s.frontier)
	filtered := 0
	for start := 0; start < len(keys); start += storage.RelationBatchSize {
		end := min(start+storage.RelationBatchSize, len(keys))
		found, err := s.b.repo.SearchRelationsByKeysAndRoles(ctx, keys[start:end], s.provisional)
		if err != nil {
			return errors.Wrapf(err, "fetch relations at distance %d", d)
		}
		for _, r := range found {
			if !s.opts.Year.Matches(r) {
				filtered++
				continue
			}
			relations[r.LinkKey()] = r
		}
	}
	if filtered > 0 {
		s.logger.Debugw("Filtered relations by year", "year", s.opts.Year.String(), "count", filtered)
	}
	return nil
}

func (s *search) checkRelationBudget(d int, relations map[string]*entity.Relation) {
	switch {
	case len(relations) == 0:
		s.shouldBreak = true
	case len(relations) >= 3*s.maxLinks:
		s.logger.Debugw("Max links: exiting next search loop", "relations", len(relations))
		s.shouldBreak = true
	case d > 1 && len(relations) >= s.maxLinks:
		s.logger.Debugw("Max links: exiting next search loop", "relations", len(relations))
		s.shouldBreak = true
	}
}

func (s *search) processRelations(relations map[string]*entity.Relation) {
	linkKeys := make([]string, 0, len(relations))
	for lk := range relations {
		linkKeys = append(linkKeys, lk)
	}
	sort.Strings(linkKeys)

	for _, lk := range linkKeys {
		r := relations[lk]
		if !r.Complete() {
			s.logger.Debugw("Dropped relation with missing endpoint", "link", lk)
			continue
		}
		for _, k := range []entity.Key{r.EntityOneKey(), r.EntityTwoKey()} {
			if !s.trellis.has(k) {
				s.frontier[k] = struct{}{}
			}
		}
		s.trellis.links[lk] = r
	}
}

func (s *search) finish() (*Network, error) {
	t := s.trellis
	centerIdx, ok := t.index[s.center.Key()]
	if !ok {
		return nil, errors.NewEntityNotFoundError(s.center.Key().JSONKey())
	}

	dropped := t.connect()
	t.computeSubgraphSizes(centerIdx)
	removedNodes, removedLinks := t.removeUnreached()
	s.logger.Debugw("Built trellis",
		"nodes", len(t.index),
		"links", len(t.links),
		"dangling_links", dropped,
		"unreached_nodes", removedNodes,
		"unreached_links", removedLinks,
	)

	p := newPartitioner(t, s.opts.PageCount, s.logger)
	p.partition(s.lastDistance)
	p.apply()

	clusters := t.assignClusters()

	allRoles := s.allRoles()
	for _, i := range t.live() {
		n := t.nodes[i]
		// Counts from a damaged row can trail the links reached through neighbors
		n.missing = max(0, entity.RoleAccountedRelationCount(n.entity, allRoles)-len(n.linkKeys))
	}

	network := t.serialize(s.center, s.opts.PageCount)
	s.logger.Infow("Built ego network",
		"nodes", len(network.Nodes),
		"links", len(network.Links),
		"distance", s.lastDistance,
		"clusters", clusters,
		"pruned_roles", s.pruned,
	)
	return network, nil
}

func sortedKeys(set map[entity.Key]struct{}) []entity.Key {
	keys := make([]entity.Key, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	entity.SortKeys(keys)
	return keys
}

func containsKey(entities []*entity.Entity, key entity.Key) bool {
	for _, e := range entities {
		if e.Key() == key {
			return true
		}
	}
	return false
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
