package am

import (
	"net/netip"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Create isolated viper instance without loading user/system config
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, "discograph.db", cfg.Database.Path)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60, cfg.Server.RateLimitPerMinute)
	assert.Equal(t, 3, cfg.Network.Degree)
	assert.Equal(t, 400, cfg.Network.MaxNodes)
	assert.Equal(t, 10, cfg.Network.LinkRatio)
	assert.Equal(t, 1, cfg.Network.PageCount)
	assert.Equal(t, 3, cfg.Network.MobileDegree)
	assert.Equal(t, 25, cfg.Network.MobileMaxNodes)
	assert.Equal(t, CacheMemory, cfg.Cache.Type)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.False(t, cfg.TestMode)
	assert.Empty(t, cfg.Server.TrustedProxies)

	require.NoError(t, cfg.Validate())
}

func TestTrustedProxyPrefixes(t *testing.T) {
	cfg := ServerConfig{TrustedProxies: []string{"10.0.0.7", "172.16.5.4/12", "2001:db8::1"}}

	prefixes, err := cfg.TrustedProxyPrefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 3)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.7/32"), prefixes[0])
	assert.Equal(t, netip.MustParsePrefix("172.16.0.0/12"), prefixes[1])
	assert.Equal(t, netip.MustParsePrefix("2001:db8::1/128"), prefixes[2])

	none, err := ServerConfig{}.TrustedProxyPrefixes()
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = ServerConfig{TrustedProxies: []string{"10.0.0.0/33"}}.TrustedProxyPrefixes()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10.0.0.0/33")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")
	content := `
test_mode = true

[database]
path = "/var/lib/discograph/discograph.db"

[network]
max_nodes = 150
link_ratio = 3

[cache]
type = "redis"
ttl = "10m"
redis_addr = "cache:6379"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.True(t, cfg.TestMode)
	assert.Equal(t, "/var/lib/discograph/discograph.db", cfg.GetDatabasePath())
	assert.Equal(t, 150, cfg.Network.MaxNodes)
	assert.Equal(t, 3, cfg.Network.LinkRatio)
	assert.Equal(t, 3, cfg.Network.Degree, "unset keys keep defaults")
	assert.Equal(t, CacheRedis, cfg.Cache.Type)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "cache:6379", cfg.Cache.RedisAddr)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		v := viper.New()
		SetDefaults(v)
		cfg, err := LoadWithViper(v)
		require.NoError(t, err)
		return *cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"negative port", func(c *Config) { c.Server.Port = -1 }, "server.port"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"zero rate limit disables limiting", func(c *Config) { c.Server.RateLimitPerMinute = 0 }, ""},
		{"negative rate limit", func(c *Config) { c.Server.RateLimitPerMinute = -5 }, "rate_limit_per_minute"},
		{"zero degree", func(c *Config) { c.Network.Degree = 0 }, "network.degree"},
		{"zero max nodes", func(c *Config) { c.Network.MaxNodes = 0 }, "network.max_nodes"},
		{"zero link ratio", func(c *Config) { c.Network.LinkRatio = 0 }, "network.link_ratio"},
		{"zero pages", func(c *Config) { c.Network.PageCount = 0 }, "network.page_count"},
		{"zero mobile nodes", func(c *Config) { c.Network.MobileMaxNodes = 0 }, "network.mobile_max_nodes"},
		{"unknown cache", func(c *Config) { c.Cache.Type = "memcached" }, "unknown cache.type"},
		{"redis without address", func(c *Config) { c.Cache.Type = CacheRedis; c.Cache.RedisAddr = "" }, "redis_addr"},
		{"cache disabled", func(c *Config) { c.Cache.Type = CacheNone }, ""},
		{"relative metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics.path"},
		{"metrics disabled ignores path", func(c *Config) { c.Metrics.Enabled = false; c.Metrics.Path = "" }, ""},
		{"trusted proxies", func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.1", "172.16.0.0/12", "::1"} }, ""},
		{"bad trusted proxy", func(c *Config) { c.Server.TrustedProxies = []string{"proxy.internal"} }, "server.trusted_proxies"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ExplicitConfigAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "explicit.toml")
	require.NoError(t, os.WriteFile(path, []byte("[network]\nmax_nodes = 99\ndegree = 4\n"), 0644))

	t.Setenv("DISCOGRAPH_NETWORK_DEGREE", "7")
	SetConfigPath(path)
	t.Cleanup(func() { SetConfigPath("") })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 99, cfg.Network.MaxNodes)
	assert.Equal(t, 7, cfg.Network.Degree, "environment overrides files")
	assert.Equal(t, path, ConfigFileUsed())

	paths := ConfigPaths()
	require.NotEmpty(t, paths)
	assert.Equal(t, "/etc/discograph/am.toml", paths[0])
	assert.Equal(t, path, paths[len(paths)-1], "--config has the highest file precedence")
}

func TestConfigWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "am.toml")
	require.NoError(t, os.WriteFile(path, []byte("[network]\nmax_nodes = 50\n"), 0644))

	SetConfigPath(path)
	t.Cleanup(func() { SetConfigPath("") })

	watcher, err := NewConfigWatcher(path)
	require.NoError(t, err)
	watcher.SetDebounce(20 * time.Millisecond)

	var seen atomic.Int64
	watcher.OnReload(func(cfg *Config) error {
		seen.Store(int64(cfg.Network.MaxNodes))
		return nil
	})
	watcher.Start()
	t.Cleanup(func() { watcher.Stop() })

	require.NoError(t, os.WriteFile(path, []byte("[network]\nmax_nodes = 120\n"), 0644))

	require.Eventually(t, func() bool { return seen.Load() == 120 },
		5*time.Second, 20*time.Millisecond)
}

func TestConfigWatcher_InvalidReloadKeepsCallbacksQuiet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "am.toml")
	require.NoError(t, os.WriteFile(path, []byte("[network]\nmax_nodes = 50\n"), 0644))

	SetConfigPath(path)
	t.Cleanup(func() { SetConfigPath("") })

	watcher, err := NewConfigWatcher(path)
	require.NoError(t, err)

	var calls atomic.Int32
	watcher.OnReload(func(cfg *Config) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, os.WriteFile(path, []byte("[network]\nmax_nodes = 0\n"), 0644))
	err = watcher.reload()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network.max_nodes")
	assert.Equal(t, int32(0), calls.Load())

	require.NoError(t, watcher.Stop())
	require.NoError(t, watcher.Stop(), "Stop is idempotent")
}
