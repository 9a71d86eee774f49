// Package idempotency decides whether a result was already generated for a
// (kind, identity, distinguishing key) triple. The store is authoritative;
// an in-process cache and a Redis marker only short-circuit positive answers.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"travel-planner-workers/internal/common/logger"
	"travel-planner-workers/internal/common/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL       = 24 * time.Hour
	DefaultCacheSize = 1024
)

// Duplicate sources, used as metric labels.
const (
	SourceCache = "cache"
	SourceRedis = "redis"
	SourceStore = "store"
)

var ErrDuplicateRequest = errors.New("DUPLICATE_REQUEST")

// DuplicateRequestError names the request that already has a stored result.
type DuplicateRequestError struct {
	Kind     string
	Identity string
	Key      string
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("%s already generated for %s (%s)", e.Kind, e.Identity, e.Key)
}

func (e *DuplicateRequestError) Unwrap() error {
	return ErrDuplicateRequest
}

// Lookup is the authoritative existence check, normally the result store.
type Lookup interface {
	Exists(ctx context.Context, kind, identity, key string) (bool, error)
}

type Config struct {
	TTL       time.Duration
	CacheSize int
}

// Guard answers "already generated?" It never stores results itself.
type Guard struct {
	lookup Lookup
	redis  *redis.Client
	cache  *expirable.LRU[string, struct{}]
	ttl    time.Duration
	logger logger.Logger
}

// NewGuard builds a guard over lookup. rdb may be nil, in which case only
// the cache and the lookup are consulted.
func NewGuard(lookup Lookup, rdb *redis.Client, cfg Config, log logger.Logger) *Guard {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	return &Guard{
		lookup: lookup,
		redis:  rdb,
		cache:  expirable.NewLRU[string, struct{}](cfg.CacheSize, nil, cfg.TTL),
		ttl:    cfg.TTL,
		logger: log.WithFields(map[string]interface{}{"component": "idempotency"}),
	}
}

// MarkerKey is the Redis key recording a stored result.
func MarkerKey(kind, identity, key string) string {
	return fmt.Sprintf("generated:%s:%s:%s", kind, identity, key)
}

// AlreadyGenerated reports whether a result exists. Cache and Redis misses
// or failures fall through to the lookup; only a lookup failure is returned.
func (g *Guard) AlreadyGenerated(ctx context.Context, kind, identity, key string) (bool, error) {
	marker := MarkerKey(kind, identity, key)

	if g.cache.Contains(marker) {
		g.duplicate(kind, SourceCache)
		return true, nil
	}

	if g.redis != nil {
		n, err := g.redis.Exists(ctx, marker).Result()
		switch {
		case err != nil:
			g.logger.Warn("redis marker check failed, using store", map[string]interface{}{
				"marker": marker,
				"error":  err.Error(),
			})
		case n > 0:
			g.cache.Add(marker, struct{}{})
			g.duplicate(kind, SourceRedis)
			return true, nil
		}
	}

	exists, err := g.lookup.Exists(ctx, kind, identity, key)
	if err != nil {
		return false, err
	}
	if exists {
		g.remember(ctx, marker)
		g.duplicate(kind, SourceStore)
	}
	return exists, nil
}

// Check returns a *DuplicateRequestError when a result already exists.
func (g *Guard) Check(ctx context.Context, kind, identity, key string) error {
	exists, err := g.AlreadyGenerated(ctx, kind, identity, key)
	if err != nil {
		return err
	}
	if exists {
		return &DuplicateRequestError{Kind: kind, Identity: identity, Key: key}
	}
	return nil
}

// MarkGenerated records a successful insert. Redis failures are logged; the
// store still holds the record.
func (g *Guard) MarkGenerated(ctx context.Context, kind, identity, key string) {
	g.remember(ctx, MarkerKey(kind, identity, key))
}

func (g *Guard) remember(ctx context.Context, marker string) {
	g.cache.Add(marker, struct{}{})
	if g.redis == nil {
		return
	}
	if err := g.redis.Set(ctx, marker, "1", g.ttl).Err(); err != nil {
		g.logger.Warn("failed to set redis marker", map[string]interface{}{
			"marker": marker,
			"error":  err.Error(),
		})
	}
}

func (g *Guard) duplicate(kind, source string) {
	metrics.GenerationDuplicatesTotal.WithLabelValues(kind, source).Inc()
}
