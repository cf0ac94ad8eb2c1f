package server

import (
	"time"

	"github.com/teranos/discograph/graph"
)

const (
	// MaxClients is the maximum number of concurrent WebSocket clients
	MaxClients = 100
	// MaxClientMessageQueueSize bounds the per-client outbound queue
	MaxClientMessageQueueSize = 16
	// ShutdownTimeout is how long Stop waits for goroutines and in-flight requests
	ShutdownTimeout = 30 * time.Second
	// SearchResultLimit caps /api/search results
	SearchResultLimit = 20
)

// ServerState represents the server lifecycle state
type ServerState int

const (
	ServerStateRunning  ServerState = iota // Normal operation
	ServerStateDraining                    // Graceful shutdown in progress
	ServerStateStopped                     // Shutdown complete
)

// NetworkRequest is what a WebSocket client sends to ask for a network.
type NetworkRequest struct {
	Type   string   `json:"type,omitempty"` // "network" (default) or "ping"
	Key    string   `json:"key"`
	Roles  []string `json:"roles,omitempty"`
	Year   string   `json:"year,omitempty"`
	Mobile bool     `json:"mobile,omitempty"`
}

// NetworkMessage is the WebSocket reply: a network or an error payload.
type NetworkMessage struct {
	Type    string            `json:"type"` // "network", "error" or "pong"
	Key     string            `json:"key,omitempty"`
	Network *graph.Network    `json:"network,omitempty"`
	Error   map[string]string `json:"error,omitempty"`
}

// RelationResult is one row of /api/{type}/relations/{id}.
type RelationResult struct {
	Role     string `json:"role"`
	Key      string `json:"key"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Category string `json:"category"`
}

// RelationsResponse wraps relation rows.
type RelationsResponse struct {
	Results []RelationResult `json:"results"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	State     string `json:"state"`
	Clients   int    `json:"clients"`
	Artists   int    `json:"artists"`
	Labels    int    `json:"labels"`
	Relations int    `json:"relations"`
}
