// Package intentcache caches classified intents per user and query text.
package intentcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/askdex/internal/db"
	"github.com/kailas-cloud/askdex/internal/domain/query/intent"
)

// DefaultTTL bounds how long a cached intent survives catalog changes.
const DefaultTTL = 15 * time.Minute

// store is the consumer interface for the intent cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache stores intents in a key-value store. Failures degrade to misses.
type Cache struct {
	store      store
	prefix     string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates an intent cache.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	s store,
	prefix string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store:      s,
		prefix:     prefix,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Get returns the cached intent for a user's query.
func (c *Cache) Get(ctx context.Context, userID, query string) (intent.Intent, bool) {
	key := c.Key(userID, query)

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached intent", zap.String("key", key), zap.Error(err))
		}
		c.incCache("miss")
		return intent.Intent{}, false
	}

	in, err := intent.Parse(data)
	if err != nil {
		c.logger.Warn("Discarding malformed cached intent", zap.String("key", key), zap.Error(err))
		c.incCache("miss")
		return intent.Intent{}, false
	}

	c.incCache("hit")
	return in, true
}

// Put caches an intent. Errors are logged, not returned.
func (c *Cache) Put(ctx context.Context, userID, query string, in intent.Intent) {
	key := c.Key(userID, query)

	data, err := in.MarshalJSON()
	if err != nil {
		c.logger.Warn("Failed to encode intent", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache intent", zap.String("key", key), zap.Error(err))
	}
}

// Key returns the cache key for a user's query. Queries differing only in
// case or whitespace share a key.
func (c *Cache) Key(userID, query string) string {
	h := sha256.Sum256([]byte(Normalize(query)))
	return c.prefix + "intent:" + userID + ":" + hex.EncodeToString(h[:])
}

// Normalize lowercases a query and collapses its whitespace.
func Normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

func (c *Cache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
