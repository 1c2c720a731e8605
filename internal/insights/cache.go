package insights

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// CacheStore persists cache entries. storage.FileSystem satisfies it.
type CacheStore interface {
	Save(ctx context.Context, path string, data []byte) error
	Load(ctx context.Context, path string) ([]byte, error)
}

// ResponseCache keeps successful completions keyed by provider and prompt so
// re-analyzing an unchanged story does not call the model again.
type ResponseCache struct {
	store  CacheStore
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

type cachedResponse struct {
	Provider  string    `json:"provider"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// NewResponseCache keeps entries for ttl. A nil logger uses the default one.
func NewResponseCache(store CacheStore, ttl time.Duration, logger *slog.Logger) *ResponseCache {
	if logger == nil {
		logger = slog.Default().With("component", "insights_cache")
	}
	return &ResponseCache{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// Get returns the cached completion for the prompt pair if it has not expired.
func (c *ResponseCache) Get(ctx context.Context, provider, system, user string) (string, bool) {
	key := cacheKey(provider, system, user)
	data, err := c.store.Load(ctx, cachePath(key))
	if err != nil {
		c.logger.Debug("Cache miss", "key", key)
		return "", false
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Warn("Cache entry unreadable", "key", key, "error", err)
		return "", false
	}
	if age := c.now().Sub(cached.Timestamp); age > c.ttl {
		c.logger.Debug("Cache entry expired", "key", key, "age", age, "ttl", c.ttl)
		return "", false
	}

	c.logger.Debug("Cache hit", "key", key, "response_length", len(cached.Response))
	return cached.Response, true
}

func (c *ResponseCache) Set(ctx context.Context, provider, system, user, response string) error {
	data, err := json.Marshal(cachedResponse{
		Provider:  provider,
		Response:  response,
		Timestamp: c.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshaling cached response: %w", err)
	}
	return c.store.Save(ctx, cachePath(cacheKey(provider, system, user)), data)
}

func cacheKey(provider, system, user string) string {
	h := sha256.New()
	for _, part := range []string{provider, system, user} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func cachePath(key string) string {
	return "cache/insights/" + key + ".json"
}
