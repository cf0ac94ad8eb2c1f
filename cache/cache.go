// Package cache stores rendered API responses. Values are JSON encoded so
// every backend round-trips the same bytes.
package cache

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/teranos/discograph/am"
	"github.com/teranos/discograph/entity"
	"github.com/teranos/discograph/errors"
)

// DefaultTTL applies when the configuration leaves ttl unset.
const DefaultTTL = time.Hour

// Cache is a JSON value cache. Get reports false on a miss and decodes a hit
// into dst. A ttl of 0 selects the backend default.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
	_ Cache = NopCache{}
)

// New builds the backend named by cfg.Type. The redis backend is pinged
// before it is returned.
func New(ctx context.Context, cfg am.CacheConfig, log *zap.SugaredLogger) (Cache, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	log = log.Named("cache")
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	switch cfg.Type {
	case am.CacheMemory, "":
		log.Infow("Using memory cache", "ttl", ttl)
		return NewMemoryCache(ttl), nil
	case am.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, errors.WithHint(
				errors.Wrapf(err, "failed to connect to redis at %s", cfg.RedisAddr),
				"set cache.type = \"memory\" to run without redis",
			)
		}
		log.Infow("Using redis cache", "addr", cfg.RedisAddr, "db", cfg.RedisDB, "ttl", ttl)
		return NewRedisCache(client, ttl, log), nil
	case am.CacheNone:
		log.Infow("Caching disabled")
		return NopCache{}, nil
	default:
		return nil, errors.Newf("unknown cache type %q", cfg.Type)
	}
}

var wordPattern = regexp.MustCompile(`\s+`)

// NetworkKey is the cache key of one network response, e.g.
// "discograph:/api/artist/network/2239/mobile?roles[]=Alias&roles[]=Member+Of&year=1990-1999".
// Role tokens are sorted so the order a client sends them in does not matter.
// year is "" when the request has no year filter.
func NetworkKey(t entity.Type, id int, mobile bool, roles []string, year string) string {
	var b strings.Builder
	b.WriteString("discograph:/api/")
	b.WriteString(t.String())
	b.WriteString("/network/")
	b.WriteString(strconv.Itoa(id))
	if mobile {
		b.WriteString("/mobile")
	}

	var parts []string
	if len(roles) > 0 {
		tokens := make([]string, 0, len(roles))
		for _, r := range roles {
			tokens = append(tokens, "roles[]="+wordPattern.ReplaceAllString(r, "+"))
		}
		sort.Strings(tokens)
		parts = append(parts, strings.Join(tokens, "&"))
	}
	if year != "" {
		parts = append(parts, "year="+year)
	}
	if len(parts) > 0 {
		b.WriteString("?")
		b.WriteString(strings.Join(parts, "&"))
	}
	return b.String()
}

// SearchKey is the cache key of one name search.
func SearchKey(query string) string {
	return "discograph:/api/search/" + wordPattern.ReplaceAllString(query, "+")
}
