package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/dealcore/internal/cache"
)

const llmKeyPrefix = cache.KeyPrefix + "llm:"

// CachedProvider memoizes completions in the key-value store. Store
// failures fall through to the wrapped provider.
type CachedProvider struct {
	inner Provider
	store cache.Store
	ttl   time.Duration
	log   zerolog.Logger
}

// NewCachedProvider wraps inner. A nil store disables caching.
func NewCachedProvider(inner Provider, store cache.Store, ttl time.Duration, log zerolog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedProvider{inner: inner, store: store, ttl: ttl, log: log}
}

// Name returns the wrapped provider name
func (c *CachedProvider) Name() string {
	return c.inner.Name()
}

// IsAvailable delegates to the wrapped provider
func (c *CachedProvider) IsAvailable(ctx context.Context) bool {
	return c.inner.IsAvailable(ctx)
}

// Complete returns a cached completion when one exists for the same request
func (c *CachedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if c.store == nil {
		return c.inner.Complete(ctx, req)
	}

	key := completionKey(c.inner.Name(), req)
	if data, err := c.store.Get(ctx, key); err == nil {
		var resp CompletionResponse
		if err := json.Unmarshal(data, &resp); err == nil {
			resp.Cached = true
			return &resp, nil
		}
	}

	resp, err := c.inner.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(resp); err == nil {
		if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
			c.log.Debug().Err(err).Msg("llm cache write failed")
		}
	}
	return resp, nil
}

// Score asks for a single number through the cache
func (c *CachedProvider) Score(ctx context.Context, prompt string) (*float64, error) {
	return scoreVia(ctx, c, prompt)
}

func completionKey(provider string, req CompletionRequest) string {
	h := sha256.New()
	for _, part := range []string{
		provider, req.Model, req.System, req.Prompt,
		strconv.FormatBool(req.JSON),
		strconv.Itoa(req.MaxTokens),
		strconv.FormatFloat(req.Temperature, 'f', -1, 64),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return llmKeyPrefix + hex.EncodeToString(h.Sum(nil)[:16])
}
