// Package am ("as configured") loads discograph configuration from TOML files
// and DISCOGRAPH_* environment variables.
package am

import "time"

// Config represents the discograph configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Network  NetworkConfig  `mapstructure:"network"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`

	// TestMode routes storage to an in-memory database seeded by the caller.
	TestMode bool `mapstructure:"test_mode"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`

	// Per client IP. 0 disables limiting.
	RateLimitPerMinute       int `mapstructure:"rate_limit_per_minute"`
	SearchRateLimitPerMinute int `mapstructure:"search_rate_limit_per_minute"`

	// Addresses or CIDR ranges of reverse proxies whose X-Forwarded-For is
	// believed. Empty trusts nobody and keys clients on the peer address.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// NetworkConfig holds the ego-network budgets used by the API.
// Web and mobile clients get different budgets.
type NetworkConfig struct {
	Degree         int `mapstructure:"degree"`
	MaxNodes       int `mapstructure:"max_nodes"`
	LinkRatio      int `mapstructure:"link_ratio"`
	PageCount      int `mapstructure:"page_count"`
	MobileDegree   int `mapstructure:"mobile_degree"`
	MobileMaxNodes int `mapstructure:"mobile_max_nodes"`
}

// CacheConfig selects and configures the response cache
type CacheConfig struct {
	Type          string        `mapstructure:"type"` // memory, redis or none
	TTL           time.Duration `mapstructure:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisPassword string        `mapstructure:"redis_password"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Server port constants
const (
	DefaultServerPort = 5000
)
