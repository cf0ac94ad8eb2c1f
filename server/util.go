package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// upgrader creates a WebSocket upgrader with origin checking from config
func (s *DiscographServer) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
}

// checkOrigin validates a WebSocket origin against the allowed origins.
// Requests without an Origin header (CLI clients, tests) are allowed.
func (s *DiscographServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return s.originAllowed(origin)
}

// originAllowed prefix-matches origin so any port of an allowed host passes.
func (s *DiscographServer) originAllowed(origin string) bool {
	for _, allowed := range s.settings.Load().server.AllowedOrigins {
		if allowed == "*" || strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}
