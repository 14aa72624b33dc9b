package rewrite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Cache remembers successful suggestions for identical requests for a fixed TTL.
// Failures are never cached.
type Cache struct {
	next  Rewriter
	cache *ttlcache.Cache[string, string]
}

// NewCache wraps next with a TTL cache and starts its expiration loop.
func NewCache(next Rewriter, ttl time.Duration) *Cache {
	c := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go c.Start()
	return &Cache{next: next, cache: c}
}

// Rewrite returns a cached suggestion or delegates to the wrapped Rewriter.
func (c *Cache) Rewrite(ctx context.Context, req Request, credential string) (string, error) {
	key := cacheKey(req)
	if item := c.cache.Get(key); item != nil {
		slog.Debug("rewrite cache hit", "model", req.ModelID)
		return item.Value(), nil
	}

	suggestion, err := c.next.Rewrite(ctx, req, credential)
	if err != nil {
		return "", err
	}
	c.cache.Set(key, suggestion, ttlcache.DefaultTTL)
	return suggestion, nil
}

// Len returns the number of cached suggestions.
func (c *Cache) Len() int {
	return c.cache.Len()
}

// Close stops the cache expiration loop.
func (c *Cache) Close() {
	c.cache.Stop()
}

// cacheKey hashes the parts of the request that determine the suggestion.
func cacheKey(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.ModelID))
	h.Write([]byte{0})
	h.Write([]byte(req.PromptTemplate))
	h.Write([]byte{0})
	h.Write([]byte(req.SourceText))
	return hex.EncodeToString(h.Sum(nil))
}
