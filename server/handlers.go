package server

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/teranos/discograph/cache"
	"github.com/teranos/discograph/graph"
	"github.com/teranos/discograph/logger"
	"github.com/teranos/discograph/storage"
	"github.com/teranos/discograph/version"
)

// HandleNetwork serves GET /api/{entityType}/network/{entityID}.
func (s *DiscographServer) HandleNetwork(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Bad Entity Type")
		return
	}
	q, err := s.parseNetworkQuery(key, r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	network, err := s.network(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, network)
}

// network returns the cached network for q or builds and caches it.
// Only complete builds are cached.
func (s *DiscographServer) network(ctx context.Context, q *networkQuery) (*graph.Network, error) {
	log := logger.FromContext(ctx, s.logger)
	cacheKey := q.cacheKey()

	var cached graph.Network
	hit, err := s.cache.Get(ctx, cacheKey, &cached)
	if err != nil {
		log.Warnw("Cache read failed, building network", logger.FieldCacheKey, cacheKey, logger.FieldError, err)
	}
	if hit {
		log.Debugw("Network cache hit", logger.FieldCacheKey, cacheKey)
		return &cached, nil
	}

	center, err := s.store.GetEntity(ctx, q.key)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	network, err := s.builder.BuildEgoNetwork(ctx, center, s.options(q))
	if err != nil {
		return nil, err
	}
	log.Infow("Network built",
		logger.FieldEntityKey, q.key.JSONKey(),
		logger.FieldRoles, q.roles,
		logger.FieldNodeCount, len(network.Nodes),
		logger.FieldLinkCount, len(network.Links),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
		"mobile", q.mobile,
	)
	if logger.ShouldOutput(int(s.verbosity.Load()), logger.OutputDataDump) {
		log.Debugw("Network payload", "network", network)
	}

	if err := s.cache.Set(ctx, cacheKey, network, 0); err != nil {
		log.Warnw("Cache write failed", logger.FieldCacheKey, cacheKey, logger.FieldError, err)
	}
	return network, nil
}

// HandleRelations serves GET /api/{entityType}/relations/{entityID}: every
// relation touching the entity whose role the catalog knows, ordered by role
// then endpoints.
func (s *DiscographServer) HandleRelations(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Bad Entity Type")
		return
	}
	if _, err := s.store.GetEntity(r.Context(), key); err != nil {
		s.writeError(w, r, err)
		return
	}
	relations, err := s.store.RelationsOf(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sort.Slice(relations, func(i, j int) bool {
		a, b := relations[i], relations[j]
		if a.Role != b.Role {
			return a.Role < b.Role
		}
		if a.EntityOneKey() != b.EntityOneKey() {
			return a.EntityOneKey().Less(b.EntityOneKey())
		}
		return a.EntityTwoKey().Less(b.EntityTwoKey())
	})

	results := make([]RelationResult, 0, len(relations))
	for _, rel := range relations {
		known, ok := s.catalog.Lookup(rel.Role)
		if !ok {
			continue
		}
		results = append(results, RelationResult{
			Role:     rel.Role,
			Key:      rel.LinkKey(),
			Source:   rel.EntityOneKey().JSONKey(),
			Target:   rel.EntityTwoKey().JSONKey(),
			Category: known.Category,
		})
	}
	writeJSON(w, http.StatusOK, RelationsResponse{Results: results})
}

// HandleSearch serves GET /api/search/{query}.
func (s *DiscographServer) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.PathValue("query")
	log := logger.FromContext(r.Context(), s.logger)
	cacheKey := cache.SearchKey(query)

	var resp struct {
		Results []storage.SearchResult `json:"results"`
	}
	hit, err := s.cache.Get(r.Context(), cacheKey, &resp)
	if err != nil {
		log.Warnw("Cache read failed", logger.FieldCacheKey, cacheKey, logger.FieldError, err)
	}
	if hit {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	results, err := s.store.SearchByName(r.Context(), query, SearchResultLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if results == nil {
		results = []storage.SearchResult{}
	}
	resp.Results = results
	log.Debugw("Search served", logger.FieldQuery, query, logger.FieldCount, len(results))

	if err := s.cache.Set(r.Context(), cacheKey, resp, 0); err != nil {
		log.Warnw("Cache write failed", logger.FieldCacheKey, cacheKey, logger.FieldError, err)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRandom serves GET /api/random. With a relational role filter the
// pick is an endpoint of a random matching relation.
func (s *DiscographServer) HandleRandom(w http.ResponseWriter, r *http.Request) {
	roles, err := s.parseRoles(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	key, err := s.store.RandomEntity(r.Context(), roles)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"center": key.JSONKey()})
}

// HandleRoles serves GET /api/roles.
func (s *DiscographServer) HandleRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": s.catalog.Categories(),
	})
}

// HandleHealth serves GET /health. A store that cannot be counted is 503.
func (s *DiscographServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	resp := HealthResponse{
		Status:  "ok",
		Version: info.Version,
		Commit:  info.Short(),
		State:   stateString(s.getState()),
		Clients: s.ClientCount(),
	}

	status := http.StatusOK
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		logger.FromContext(r.Context(), s.logger).Warnw("Health check failed", logger.FieldError, err)
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	} else {
		resp.Artists = stats.Artists
		resp.Labels = stats.Labels
		resp.Relations = stats.Relations
	}
	if s.getState() != ServerStateRunning {
		resp.Status = stateString(s.getState())
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
