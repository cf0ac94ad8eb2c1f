package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/teranos/discograph/am"
	"github.com/teranos/discograph/cache"
	"github.com/teranos/discograph/errors"
	"github.com/teranos/discograph/graph"
	"github.com/teranos/discograph/role"
	"github.com/teranos/discograph/storage"
)

// buildMetrics registers the builder collectors on the default registry
// once per process, however many servers are created.
var buildMetrics = sync.OnceValue(func() *graph.Metrics {
	return graph.NewMetrics(prometheus.DefaultRegisterer)
})

// New creates a server over store. A nil cache disables caching.
func New(cfg *am.Config, store storage.Store, c cache.Cache, verbosity int, log *zap.SugaredLogger) (*DiscographServer, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if verbosity < 0 || verbosity > 4 {
		return nil, errors.Newf("verbosity must be 0-4, got %d", verbosity)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	if c == nil {
		c = cache.NopCache{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	log = log.Named("server")

	catalog := role.Default()
	builder := graph.NewBuilder(store, catalog, verbosity, log).
		WithMetrics(buildMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	s := &DiscographServer{
		store:      store,
		builder:    builder,
		catalog:    catalog,
		cache:      c,
		limiters:   newClientLimiters(),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.settings.Store(newSettings(cfg))
	s.verbosity.Store(int32(verbosity))
	s.handler = s.setupHTTPRoutes()
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s, nil
}
