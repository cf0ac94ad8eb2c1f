package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Route patterns, also used as the route label on request metrics.
const (
	RouteNetwork   = "/api/{entityType}/network/{entityID}"
	RouteRelations = "/api/{entityType}/relations/{entityID}"
	RouteSearch    = "/api/search/{query}"
	RouteRandom    = "/api/random"
	RouteRoles     = "/api/roles"
	RouteHealth    = "/health"
	RouteWebSocket = "/ws"
)

// setupHTTPRoutes builds the private mux and wraps it in the middleware
// shared by every route.
func (s *DiscographServer) setupHTTPRoutes() http.Handler {
	mux := http.NewServeMux()

	api := func(route, bucket string, h http.HandlerFunc) {
		mux.HandleFunc("GET "+route, s.withMetrics(route, s.withRateLimit(bucket, h)))
	}
	api(RouteNetwork, bucketAPI, s.HandleNetwork)
	api(RouteRelations, bucketAPI, s.HandleRelations)
	api(RouteSearch, bucketSearch, s.HandleSearch)
	api(RouteRandom, bucketAPI, s.HandleRandom)
	api(RouteRoles, bucketAPI, s.HandleRoles)

	mux.HandleFunc("GET "+RouteHealth, s.withMetrics(RouteHealth, s.HandleHealth))
	mux.HandleFunc("GET "+RouteWebSocket, s.withMetrics(RouteWebSocket, s.HandleWebSocket))

	if m := s.settings.Load().metrics; m.Enabled {
		mux.Handle("GET "+m.Path, promhttp.Handler())
		s.logger.Debugw("Metrics endpoint enabled", "path", m.Path)
	}

	return s.withRecovery(s.withRequestID(s.withCORS(mux)))
}
