package am

import (
	"fmt"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "discograph.db")
	v.SetDefault("test_mode", false)

	// Server configuration defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.rate_limit_per_minute", 60)
	v.SetDefault("server.search_rate_limit_per_minute", 120)
	v.SetDefault("server.trusted_proxies", []string{})

	// Network budgets (web and mobile)
	v.SetDefault("network.degree", 3)
	v.SetDefault("network.max_nodes", 400)
	v.SetDefault("network.link_ratio", 10)
	v.SetDefault("network.page_count", 1)
	v.SetDefault("network.mobile_degree", 3)
	v.SetDefault("network.mobile_max_nodes", 25)

	// Cache defaults
	v.SetDefault("cache.type", CacheMemory)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("cache.redis_password", "DISCOGRAPH_REDIS_PASSWORD")
	v.BindEnv("database.path", "DISCOGRAPH_DATABASE_PATH")
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "discograph.db"
	}
	return c.Database.Path
}

// GetServerPort returns server.port, or DefaultServerPort when unset
func (c *Config) GetServerPort() int {
	if c.Server.Port == 0 {
		return DefaultServerPort
	}
	return c.Server.Port
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s, Port: %d, Cache: %s, Network: {Degree: %d, MaxNodes: %d}}",
		c.Database.Path, c.Server.Port, c.Cache.Type, c.Network.Degree, c.Network.MaxNodes)
}
