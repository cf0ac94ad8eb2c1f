// Package server exposes ego networks, relations and name search over HTTP
// and streams networks to WebSocket clients.
package server

import (
	"context"
	"net/http"
	"net/netip"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/teranos/discograph/am"
	"github.com/teranos/discograph/cache"
	"github.com/teranos/discograph/graph"
	"github.com/teranos/discograph/role"
	"github.com/teranos/discograph/storage"
)

// DiscographServer serves the discograph API.
type DiscographServer struct {
	store   storage.Store
	builder *graph.Builder
	catalog *role.Catalog
	cache   cache.Cache

	// settings is swapped whole on config reload
	settings atomic.Pointer[settings]
	limiters *clientLimiters

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	verbosity     atomic.Int32
	logger        *zap.SugaredLogger
	configWatcher *am.ConfigWatcher

	handler    http.Handler
	httpServer *http.Server
	listenAddr string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	state  atomic.Int32
}

// settings are the reloadable parts of the configuration.
type settings struct {
	network am.NetworkConfig
	server  am.ServerConfig
	metrics am.MetricsConfig
	proxies []netip.Prefix
}

// newSettings expects a validated cfg.
func newSettings(cfg *am.Config) *settings {
	proxies, _ := cfg.Server.TrustedProxyPrefixes()
	return &settings{
		network: cfg.Network,
		server:  cfg.Server,
		metrics: cfg.Metrics,
		proxies: proxies,
	}
}

// Handler returns the root HTTP handler with all middleware applied.
func (s *DiscographServer) Handler() http.Handler {
	return s.handler
}

// ClientCount returns the number of connected WebSocket clients.
func (s *DiscographServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// handleClientRegister handles a new client connection
func (s *DiscographServer) handleClientRegister(client *Client) {
	s.mu.Lock()
	if len(s.clients) >= MaxClients {
		s.mu.Unlock()
		s.logger.Warnw("Max clients reached, rejecting connection",
			"client_id", client.id,
			"max_clients", MaxClients,
		)
		client.close()
		return
	}
	s.clients[client] = true
	total := len(s.clients)
	s.mu.Unlock()

	s.logger.Infow("Client connected",
		"client_id", client.id,
		"total_clients", total,
	)
}

// handleClientUnregister handles a client disconnection
func (s *DiscographServer) handleClientUnregister(client *Client) {
	s.mu.Lock()
	if _, ok := s.clients[client]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.clients, client)
	total := len(s.clients)
	s.mu.Unlock()

	client.close()
	s.logger.Infow("Client disconnected",
		"client_id", client.id,
		"total_clients", total,
	)
}

// Run is the client hub event loop. It returns when the server context ends.
func (s *DiscographServer) Run() {
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debugw("Server hub stopping due to context cancellation")
			return
		case client := <-s.register:
			s.handleClientRegister(client)
		case client := <-s.unregister:
			s.handleClientUnregister(client)
		}
	}
}
