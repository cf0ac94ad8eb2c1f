package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/teranos/discograph/am"
	"github.com/teranos/discograph/errors"
	grapherror "github.com/teranos/discograph/graph/error"
	"github.com/teranos/discograph/logger"
)

// limiterIdle is how long an idle client's rate limit bucket is kept
const limiterIdle = 10 * time.Minute

// getState returns the current server state
func (s *DiscographServer) getState() ServerState {
	return ServerState(s.state.Load())
}

// setState atomically updates the server state
func (s *DiscographServer) setState(newState ServerState) {
	s.state.Store(int32(newState))
	s.logger.Infow("Server state changed", "new_state", stateString(newState))
}

// stateString returns human-readable state name
func stateString(state ServerState) string {
	switch state {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// HandleWebSocket upgrades GET /ws and starts the client pumps.
func (s *DiscographServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.getState() != ServerStateRunning {
		writeMessage(w, http.StatusServiceUnavailable, "Server shutting down")
		return
	}
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ge := grapherror.New(grapherror.CategoryWebSocket, err, "WebSocket upgrade failed").
			WithSubcategory(grapherror.SubcategoryWSUpgrade)
		logger.FromContext(r.Context(), s.logger).Warnw("WebSocket upgrade failed", ge.ToLogFields()...)
		return
	}

	client := newClient(s, conn)
	select {
	case s.register <- client:
	case <-s.ctx.Done():
		conn.Close()
		return
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
	go func() {
		defer s.wg.Done()
		client.readPump()
	}()
}

// Start runs the client hub and background upkeep, then serves HTTP on
// port until Stop is called or ctx ends. A port of 0 picks a free port;
// Addr reports it once listening.
func (s *DiscographServer) Start(ctx context.Context, port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errors.WithHint(
			errors.Wrapf(err, "failed to listen on port %d", port),
			"choose another port with --port or server.port")
	}
	return s.Serve(ctx, listener)
}

// Serve is Start on an existing listener.
func (s *DiscographServer) Serve(ctx context.Context, listener net.Listener) error {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.Run()
	}()
	go func() {
		defer s.wg.Done()
		s.sweepLimiters()
	}()

	go func() {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
			defer cancel()
			if err := s.Stop(stopCtx); err != nil {
				s.logger.Warnw("Shutdown after context cancellation failed", logger.FieldError, err)
			}
		case <-s.ctx.Done():
		}
	}()

	s.mu.Lock()
	s.listenAddr = listener.Addr().String()
	s.mu.Unlock()
	s.logger.Infow("HTTP server listening", logger.FieldAddress, s.listenAddr)

	if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Addr is the address the server listens on, empty before Serve.
func (s *DiscographServer) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listenAddr
}

func (s *DiscographServer) sweepLimiters() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiters.sweep(limiterIdle); n > 0 {
				s.logger.Debugw("Dropped idle rate limiters", logger.FieldCount, n)
			}
		}
	}
}

// WatchConfig reloads network budgets, rate limits and allowed origins when
// the config file at path changes.
func (s *DiscographServer) WatchConfig(path string) error {
	watcher, err := am.NewConfigWatcher(path)
	if err != nil {
		return err
	}
	watcher.OnReload(s.applyConfig)
	watcher.Start()
	s.configWatcher = watcher
	s.logger.Infow("Watching config for changes", "path", path)
	return nil
}

// applyConfig swaps in the reloadable settings of cfg. Invalid configs are
// rejected and the current settings kept.
func (s *DiscographServer) applyConfig(cfg *am.Config) error {
	if err := cfg.Validate(); err != nil {
		s.logger.Warnw("Ignoring invalid config reload", logger.FieldError, err)
		return err
	}
	old := s.settings.Swap(newSettings(cfg))
	s.logger.Infow("Config reloaded",
		"degree", cfg.Network.Degree,
		"max_nodes", cfg.Network.MaxNodes,
		"rate_limit_per_minute", cfg.Server.RateLimitPerMinute,
		"previous_max_nodes", old.network.MaxNodes,
	)

	// Cached networks were built under the old budgets
	if old.network != cfg.Network {
		if err := s.cache.Clear(s.ctx); err != nil {
			s.logger.Warnw("Failed to clear cache after budget change", logger.FieldError, err)
		} else {
			s.logger.Infow("Cleared cache after budget change")
		}
	}
	return nil
}

// Stop drains HTTP requests, closes WebSocket clients and waits for the
// server goroutines. It is safe to call more than once.
func (s *DiscographServer) Stop(ctx context.Context) error {
	if s.getState() == ServerStateStopped {
		return nil
	}
	s.logger.Infow("Initiating server shutdown")
	s.setState(ServerStateDraining)

	var shutdownErr error
	if err := s.httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		shutdownErr = errors.Wrap(err, "http shutdown")
	}

	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
		delete(s.clients, client)
	}
	s.mu.Unlock()
	if len(clients) > 0 {
		s.logger.Infow("Closing client connections", "count", len(clients))
	}

	s.cancel()
	for _, client := range clients {
		client.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Infow("All goroutines stopped cleanly")
	case <-ctx.Done():
		s.logger.Warnw("Goroutine shutdown timed out", logger.FieldError, ctx.Err())
	}

	if s.configWatcher != nil {
		if err := s.configWatcher.Stop(); err != nil {
			s.logger.Warnw("Failed to stop config watcher", logger.FieldError, err)
		}
	}

	s.setState(ServerStateStopped)
	s.logger.Infow("Server shutdown complete")
	return shutdownErr
}
