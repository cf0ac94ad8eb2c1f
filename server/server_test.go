package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/discograph/am"
	"github.com/teranos/discograph/cache"
	"github.com/teranos/discograph/errors"
	"github.com/teranos/discograph/graph"
	dgtest "github.com/teranos/discograph/internal/testing"
	"github.com/teranos/discograph/storage"
)

// testConfig returns the default configuration with overrides applied.
func testConfig(t *testing.T, overrides map[string]any) *am.Config {
	t.Helper()
	v := viper.New()
	am.SetDefaults(v)
	for key, value := range overrides {
		v.Set(key, value)
	}
	cfg, err := am.LoadWithViper(v)
	require.NoError(t, err)
	return cfg
}

func newTestServer(t *testing.T, cfg *am.Config, store storage.Store, c cache.Cache) *DiscographServer {
	t.Helper()
	if cfg == nil {
		cfg = testConfig(t, nil)
	}
	s, err := New(cfg, store, c, 0, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(s.cancel)
	return s
}

// get serves one GET through the full handler chain.
func get(t *testing.T, s *DiscographServer, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func nodeKeys(n *graph.Network) []string {
	keys := make([]string, 0, len(n.Nodes))
	for _, node := range n.Nodes {
		keys = append(keys, node.Key)
	}
	return keys
}

func TestNew_Validation(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	cfg := testConfig(t, nil)
	store := dgtest.SeefeelMemoryStore()

	_, err := New(nil, store, nil, 0, log)
	assert.Error(t, err)

	_, err = New(cfg, nil, nil, 0, log)
	assert.Error(t, err)

	_, err = New(cfg, store, nil, 5, log)
	assert.Error(t, err)

	bad := testConfig(t, map[string]any{"network.degree": 0})
	_, err = New(bad, store, nil, 0, log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network.degree")

	s, err := New(cfg, store, nil, 2, nil)
	require.NoError(t, err)
	defer s.cancel()
	assert.Equal(t, int32(2), s.verbosity.Load())
	assert.IsType(t, cache.NopCache{}, s.cache)
	assert.Equal(t, ServerStateRunning, s.getState())
}

func TestHandleNetwork(t *testing.T) {
	s := newTestServer(t, nil, dgtest.SeefeelMemoryStore(), nil)

	rec := get(t, s, "/api/artist/network/2239?roles=Released%20On&year=1994")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	network := decode[graph.Network](t, rec)
	assert.Equal(t, "artist-2239", network.Center.Key)
	assert.Equal(t, "Seefeel", network.Center.Name)
	assert.Equal(t, []string{"artist-2239", "label-23528"}, nodeKeys(&network))
	require.Len(t, network.Links, 1)
	assert.Equal(t, "artist-2239-released-on-label-23528", network.Links[0].Key)
}

func TestHandleNetwork_RolesArraySyntax(t *testing.T) {
	s := newTestServer(t, nil, dgtest.SeefeelMemoryStore(), nil)

	rec := get(t, s, "/api/artist/network/2239?roles[]=Producer")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	network := decode[graph.Network](t, rec)
	assert.Equal(t, []string{"artist-2239", "artist-66803"}, nodeKeys(&network))
}

func TestHandleNetwork_NoRolesIsCenterOnly(t *testing.T) {
	s := newTestServer(t, nil, dgtest.SeefeelMemoryStore(), nil)

	rec := get(t, s, "/api/artist/network/2239")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	network := decode[graph.Network](t, rec)
	assert.Equal(t, []string{"artist-2239"}, nodeKeys(&network))
	assert.Empty(t, network.Links)
}

func TestHandleNetwork_MobileBudget(t *testing.T) {
	cfg := testConfig(t, map[string]any{"network.mobile_degree": 1})
	s := newTestServer(t, cfg, dgtest.SeefeelMemoryStore(), nil)

	web := decode[graph.Network](t, get(t, s, "/api/artist/network/2239?roles=Released%20On"))
	mobile := decode[graph.Network](t, get(t, s, "/api/artist/network/2239?roles=Released%20On&mobile=true"))

	assert.NotNil(t, web.NodeByKey("artist-53714"), "web reaches Disjecta through Warp")
	assert.Nil(t, mobile.NodeByKey("artist-53714"), "mobile stops at degree one")
}

func TestHandleNetwork_Errors(t *testing.T) {
	s := newTestServer(t, nil, dgtest.SeefeelMemoryStore(), nil)

	tests := []struct {
		name        string
		target      string
		status      int
		message     string
		subcategory string
	}{
		{"bad entity type", "/api/release/network/1", http.StatusNotFound, "Bad Entity Type", ""},
		{"non numeric id", "/api/artist/network/abc", http.StatusNotFound, "Bad Entity Type", ""},
		{"zero id", "/api/artist/network/0", http.StatusNotFound, "Bad Entity Type", ""},
		{"missing entity", "/api/artist/network/999999", http.StatusNotFound, "No Data", ""},
		{"unknown role", "/api/artist/network/2239?roles=Kazoo", http.StatusBadRequest, "", "invalid_role"},
		{"bad year", "/api/artist/network/2239?year=nineties", http.StatusBadRequest, "", "invalid_year"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.target)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode[map[string]string](t, rec)
			if tt.message != "" {
				assert.Equal(t, map[string]string{"error": tt.message}, body)
				return
			}
			assert.Equal(t, "request", body["category"])
			assert.Equal(t, tt.subcategory, body["subcategory"])
			assert.NotEmpty(t, body["request_id"])
		})
	}
}

func TestHandleNetwork_UnknownRoleHint(t *testing.T) {
	s := newTestServer(t, nil, dgtest.SeefeelMemoryStore(), nil)

	rec := get(t, s, "/api/artist/network/2239?roles=Kazoo")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Contains(t, body["error"], "Kazoo")
	assert.Contains(t, body["hint"], "/api/roles")
}

func TestHandleNetwork_RepositoryUnavailable(t *testing.T) {
	store := dgtest.SeefeelMemoryStore()
	store.Err = errors.ErrRepositoryUnavailable
	s := newTestServer(t, nil, store, nil)

	rec := get(t, s, "/api/artist/network/2239?roles=Producer")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "repository", body["category"])
}

func TestHandleNetwork_Cache(t *testing.T) {
	store := dgtest.SeefeelMemoryStore()
	mem := cache.NewMemoryCache(time.Hour)
	s := newTestServer(t, nil, store, mem)

	first := get(t, s, "/api/artist/network/2239?roles=Released%20On")
	require.Equal(t, http.StatusOK, first.Code)
	reads := store.Calls
	require.Positive(t, reads)
	assert.Equal(t, 1, mem.Len())

	second := get(t, s, "/api/artist/network/2239?roles=Released%20On")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, reads, store.Calls, "cache hit must not touch the store")
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	// A different role filter is a different entry
	third := get(t, s, "/api/artist/network/2239?roles=Producer")
	require.Equal(t, http.StatusOK, third.Code)
	assert.Greater(t, store.Calls, reads)
	assert.Equal(t, 2, mem.Len())
}

func TestHandleNetwork_ErrorsAreNotCached(t *testing.T) {
	mem := cache.NewMemoryCache(time.Hour)
	s := newTestServer(t, nil, dgtest.SeefeelMemoryStore(), mem)

	rec := get(t, s, "/api/artist/network/999999?roles=Producer")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, mem.Len())
}

func TestHandleRelations(t *testing.T) {
	s := newTestServer(t, nil, dgtest.SeefeelMemoryStore(), nil)

	rec := get(t, s, "/api/artist/relations/2239")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[RelationsResponse](t, rec)
	keys := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		keys = append(keys, r.Key)
		assert.NotEmpty(t, r.Category, r.Key)
	}
	assert.Equal(t, []string{
		"artist-66803-producer-artist-2239",
		"artist-2239-released-on-label-3054",
		"artist-2239-released-on-label-23528",
	}, keys)

	producer := resp.Results[0]
	assert.Equal(t, "Producer", producer.Role)
	assert.Equal(t, "artist-66803", producer.Source)
	assert.Equal(t, "artist-2239", producer.Target)
}

func TestHandleRelations_Errors(t *testing.T) {
	s := newTestServer(t, nil, dgtest.SeefeelMemoryStore(), nil)

	rec := get(t, s, "/api/group/relations/2239")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Bad Entity Type"}`, rec.Body.String())

	rec = get(t, s, "/api/label/relations/999999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"No Data"}`, rec.Body.String())

	// Arcola exists but has no relations
	rec = get(t, s, "/api/label/relations/41255")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[]}`, rec.Body.String())
}

func TestHandleSearch(t *testing.T) {
	s := newTestServer(t, nil, dgtest.SeefeelMemoryStore(), nil)

	rec := get(t, s, "/api/search/seef")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[struct {
		Results []storage.SearchResult `json:"results"`
	}](t, rec)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, storage.SearchResult{Key: "artist-2239", Name: "Seefeel"}, resp.Results[0])

	rec = get(t, s, "/api/search/zzzz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[]}`, rec.Body.String())
}

func TestHandleSearch_Cache(t *testing.T) {
	store := dgtest.SeefeelMemoryStore()
	s := newTestServer(t, nil, store, cache.NewMemoryCache(time.Hour))

	require.Equal(t, http.StatusOK, get(t, s, "/api/search/warp").Code)
	reads := store.Calls
	rec := get(t, s, "/api/search/warp")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, reads, store.Calls)
	assert.Contains(t, rec.Body.String(), "label-23528")
}

func TestHandleRandom(t *testing.T) {
	s := newTestServer(t, nil, dgtest.SeefeelMemoryStore(), nil)

	rec := get(t, s, "/api/random")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"center":"artist-2239"}`, rec.Body.String())

	rec = get(t, s, "/api/random?roles=Producer")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"center":"artist-66803"}`, rec.Body.String())

	rec = get(t, s, "/api/random?roles=Kazoo")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRandom_EmptyStore(t *testing.T) {
	s := newTestServer(t, nil, storage.NewMemoryStore(), nil)

	rec := get(t, s, "/api/random")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRoles(t *testing.T) {
	s := newTestServer(t, nil, dgtest.SeefeelMemoryStore(), nil)

	rec := get(t, s, "/api/roles")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[struct {
		Categories []struct {
			Name  string   `json:"name"`
			Roles []string `json:"roles"`
		} `json:"categories"`
	}](t, rec)
	require.NotEmpty(t, resp.Categories)

	var all []string
	for _, c := range resp.Categories {
		assert.NotEmpty(t, c.Name)
		all = append(all, c.Roles...)
	}
	assert.Contains(t, all, "Released On")
	assert.Contains(t, all, "Member Of")
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, nil, dgtest.SeefeelMemoryStore(), nil)

	rec := get(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "running", health.State)
	assert.Equal(t, 7, health.Artists)
	assert.Equal(t, 3, health.Labels)
	assert.Equal(t, 4, health.Relations)
	assert.Zero(t, health.Clients)
	assert.NotEmpty(t, health.Version)
}

func TestHandleHealth_Unavailable(t *testing.T) {
	store := dgtest.SeefeelMemoryStore()
	store.Err = errors.ErrRepositoryUnavailable
	s := newTestServer(t, nil, store, nil)

	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", decode[HealthResponse](t, rec).Status)
}

func TestHandleHealth_Draining(t *testing.T) {
	s := newTestServer(t, nil, dgtest.SeefeelMemoryStore(), nil)
	s.setState(ServerStateDraining)

	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "draining", health.Status)
	assert.Equal(t, "draining", health.State)
}

func TestHandleNetwork_SQLStore(t *testing.T) {
	s := newTestServer(t, nil, dgtest.SeefeelSQLStore(t), nil)

	rec := get(t, s, "/api/label/network/23528?roles=Released%20On&year=1995")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	network := decode[graph.Network](t, rec)
	assert.Equal(t, "Warp Records", network.Center.Name)
	assert.Equal(t, []string{"artist-53714", "label-23528"}, sortedCopy(nodeKeys(&network)))
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
