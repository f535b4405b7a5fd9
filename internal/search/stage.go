package search

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ppiankov/dealcore/internal/cache"
	"github.com/ppiankov/dealcore/internal/freshness"
	"github.com/ppiankov/dealcore/internal/model"
	"github.com/ppiankov/dealcore/internal/normalize"
)

// State is the terminal cache state of one search
type State string

const (
	StateHitFresh  State = "hit-fresh"
	StateHitStale  State = "hit-stale"
	StateMiss      State = "miss"
	StateRefreshed State = "refreshed"
)

// Outcome is the result of one search stage run
type Outcome struct {
	Query          string
	State          State
	Offers         []model.Offer
	Category       string
	PriceSensitive bool
	MaxPrice       *decimal.Decimal
	FetchedAt      time.Time
	Warning        string
	Fingerprint    string

	wait func()
}

// FromCache reports whether the offers were served without a fetch
func (o *Outcome) FromCache() bool {
	return o.State == StateHitFresh || o.State == StateHitStale
}

// Wait blocks until the background cache write, if any, has finished
func (o *Outcome) Wait() {
	if o.wait != nil {
		o.wait()
	}
}

// Stage runs CHECK_CACHE → (HIT_FRESH | HIT_STALE | MISS) → FETCH →
// NORMALIZE → CACHE_WRITE for a query.
type Stage struct {
	provider       Provider
	cache          *cache.RecordCache
	policy         *freshness.Policy
	timeout        time.Duration
	maxResults     int
	includeDomains []string
	now            func() time.Time
	log            zerolog.Logger
}

// Option configures a Stage
type Option func(*Stage)

// WithLogger sets the stage logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Stage) { s.log = log }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Stage) { s.now = now }
}

// NewStage creates a search stage
func NewStage(provider Provider, rc *cache.RecordCache, cfg model.SearchConfig, opts ...Option) *Stage {
	s := &Stage{
		provider:       provider,
		cache:          rc,
		policy:         rc.Policy(),
		timeout:        cfg.Timeout,
		maxResults:     cfg.MaxResults,
		includeDomains: cfg.IncludeDomains,
		now:            time.Now,
		log:            zerolog.Nop(),
	}
	if s.timeout <= 0 {
		s.timeout = 10 * time.Second
	}
	if s.maxResults <= 0 {
		s.maxResults = 20
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes the stage for query
func (s *Stage) Run(ctx context.Context, query string) (*Outcome, error) {
	// 1. Classify the query
	category := freshness.DetectCategory(query)
	sensitive := s.policy.IsPriceSensitive(query)
	maxPrice := ParseMaxPrice(query)
	fp := cache.Fingerprint(query, maxPrice, category)

	out := &Outcome{
		Query:          query,
		Category:       category,
		PriceSensitive: sensitive,
		MaxPrice:       maxPrice,
		Fingerprint:    fp,
	}

	// 2. Check cache
	now := s.now()
	state := StateMiss
	if entry, ok := s.cache.Get(ctx, fp); ok {
		decision := s.policy.Decide(entry.Age(now), category, sensitive)
		switch decision.Action {
		case freshness.ActionUse, freshness.ActionWarn:
			out.State = StateHitFresh
			if decision.Action == freshness.ActionWarn {
				out.State = StateHitStale
				out.Warning = decision.Message
			}
			out.Offers = entry.Offers
			out.FetchedAt = entry.CachedAt
			s.log.Debug().Str("query", query).Str("state", string(out.State)).
				Str("level", string(decision.Level)).Int("offers", len(entry.Offers)).Msg("search served from cache")
			return out, nil
		case freshness.ActionRefresh:
			state = StateRefreshed
		}
	}

	// 3. Fetch
	filters := model.Filters{
		MaxPrice:       maxPrice,
		Category:       category,
		MaxResults:     s.maxResults,
		IncludeDomains: s.includeDomains,
	}
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	records, err := s.provider.Search(fetchCtx, query, filters)
	cancel()
	if err != nil {
		s.log.Warn().Err(err).Str("query", query).Msg("search provider failed")
		return nil, fmt.Errorf("%w: %w", model.ErrSearchUnavailable, err)
	}

	// 4. Normalize
	if len(records) > s.maxResults {
		records = records[:s.maxResults]
	}
	offers := normalize.NormalizeAll(records)
	if maxPrice != nil {
		offers = underPrice(offers, *maxPrice)
	}

	out.State = state
	out.Offers = offers
	out.FetchedAt = s.now()

	// 5. Write back
	if len(offers) > 0 {
		out.wait = s.cache.PutAsync(context.WithoutCancel(ctx), fp, model.CacheEntry{
			Query:            query,
			Offers:           offers,
			Category:         category,
			IsPriceSensitive: sensitive,
			CachedAt:         out.FetchedAt,
		})
	}

	s.log.Debug().Str("query", query).Str("state", string(state)).
		Int("records", len(records)).Int("offers", len(offers)).Msg("search fetched")
	return out, nil
}

// Invalidate drops the cached entry for query
func (s *Stage) Invalidate(ctx context.Context, query string) error {
	fp := cache.Fingerprint(query, ParseMaxPrice(query), freshness.DetectCategory(query))
	return s.cache.Invalidate(ctx, fp)
}

// underPrice keeps offers with no price or a price at or below ceiling
func underPrice(offers []model.Offer, ceiling decimal.Decimal) []model.Offer {
	kept := offers[:0]
	for _, o := range offers {
		if o.Price != nil && o.Price.GreaterThan(ceiling) {
			continue
		}
		kept = append(kept, o)
	}
	return kept
}
