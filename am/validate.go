package am

import "github.com/teranos/discograph/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be within 0-65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitPerMinute < 0 {
		return errors.Newf("server.rate_limit_per_minute must be >= 0, got %d", c.Server.RateLimitPerMinute)
	}
	if c.Server.SearchRateLimitPerMinute < 0 {
		return errors.Newf("server.search_rate_limit_per_minute must be >= 0, got %d", c.Server.SearchRateLimitPerMinute)
	}

	if _, err := c.Server.TrustedProxyPrefixes(); err != nil {
		return err
	}

	// Budgets feed straight into the network builder, which rejects non-positive values
	budgets := []struct {
		key   string
		value int
	}{
		{"network.degree", c.Network.Degree},
		{"network.max_nodes", c.Network.MaxNodes},
		{"network.link_ratio", c.Network.LinkRatio},
		{"network.page_count", c.Network.PageCount},
		{"network.mobile_degree", c.Network.MobileDegree},
		{"network.mobile_max_nodes", c.Network.MobileMaxNodes},
	}
	for _, b := range budgets {
		if b.value <= 0 {
			return errors.Newf("%s must be > 0, got %d", b.key, b.value)
		}
	}

	switch c.Cache.Type {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr cannot be empty when cache.type = \"redis\"")
		}
	default:
		return errors.WithHint(
			errors.Newf("unknown cache.type %q", c.Cache.Type),
			"use one of: memory, redis, none")
	}
	if c.Cache.TTL < 0 {
		return errors.Newf("cache.ttl must be >= 0, got %s", c.Cache.TTL)
	}

	if c.Metrics.Enabled && (c.Metrics.Path == "" || c.Metrics.Path[0] != '/') {
		return errors.Newf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}

	return nil
}
