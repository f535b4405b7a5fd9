package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ppiankov/dealcore/internal/freshness"
	"github.com/ppiankov/dealcore/internal/model"
)

const searchKeyPrefix = KeyPrefix + "search:"

// NormalizeQuery lower-cases and collapses whitespace
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Fingerprint generates the cache key for a query and its filters
func Fingerprint(query string, maxPrice *decimal.Decimal, category string) string {
	price := ""
	if maxPrice != nil {
		price = maxPrice.String()
	}
	parts := []string{NormalizeQuery(query), price, strings.ToLower(strings.TrimSpace(category))}
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return searchKeyPrefix + hex.EncodeToString(hash[:16])
}

// RecordCache stores search record bundles with freshness-derived TTLs.
// Store failures never surface: reads degrade to a miss and writes to a no-op.
type RecordCache struct {
	store     Store
	policy    *freshness.Policy
	log       zerolog.Logger
	opTimeout time.Duration
}

// NewRecordCache creates a record cache over store
func NewRecordCache(store Store, policy *freshness.Policy, log zerolog.Logger, opTimeout time.Duration) *RecordCache {
	if opTimeout <= 0 {
		opTimeout = 2 * time.Second
	}
	return &RecordCache{
		store:     store,
		policy:    policy,
		log:       log,
		opTimeout: opTimeout,
	}
}

// Get returns the entry stored under fp. It does not touch the entry.
func (c *RecordCache) Get(ctx context.Context, fp string) (*model.CacheEntry, bool) {
	if c.store == nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	data, err := c.store.Get(ctx, fp)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.log.Warn().Err(err).Str("key", fp).Msg("record cache get failed, treating as miss")
		}
		return nil, false
	}

	var entry model.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.log.Warn().Err(err).Str("key", fp).Msg("record cache entry unreadable, treating as miss")
		return nil, false
	}
	return &entry, true
}

// Put writes entry under fp. TTLSeconds is always assigned from the policy.
func (c *RecordCache) Put(ctx context.Context, fp string, entry model.CacheEntry) {
	if c.store == nil {
		return
	}

	ttl := c.policy.TTLFor(entry.Category, entry.IsPriceSensitive)
	entry.TTLSeconds = int64(ttl / time.Second)

	data, err := json.Marshal(entry)
	if err != nil {
		c.log.Warn().Err(err).Str("key", fp).Msg("record cache marshal failed")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.store.Set(ctx, fp, data, ttl); err != nil {
		c.log.Warn().Err(err).Str("key", fp).Msg("record cache put failed, continuing without cache")
		return
	}
	c.log.Debug().Str("key", fp).Dur("ttl", ttl).Int("offers", len(entry.Offers)).Msg("record cache put")
}

// PutAsync starts Put in the background. The returned wait func blocks
// until the write has finished and must be called before the turn ends.
func (c *RecordCache) PutAsync(ctx context.Context, fp string, entry model.CacheEntry) (wait func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Put(ctx, fp, entry)
	}()
	return func() { <-done }
}

// Invalidate removes the entry stored under fp
func (c *RecordCache) Invalidate(ctx context.Context, fp string) error {
	if c.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.store.Delete(ctx, fp)
}

// Clear removes every search entry
func (c *RecordCache) Clear(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.store.DeleteByPrefix(ctx, searchKeyPrefix)
}

// Policy returns the freshness policy used for TTLs
func (c *RecordCache) Policy() *freshness.Policy {
	return c.policy
}
