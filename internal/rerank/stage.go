package rerank

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/dealcore/internal/llm"
	"github.com/ppiankov/dealcore/internal/model"
)

// Semantic adjustment bounds
const (
	MinAdjustment = -20.0
	MaxAdjustment = 20.0
)

// RankContext carries the set-level signals the score needs
type RankContext struct {
	FetchedAt time.Time
	MaxPrice  *decimal.Decimal
}

// Stage produces the final ordered, numbered offer list
type Stage struct {
	scorer      *Scorer
	provider    llm.Provider
	semantic    bool
	topN        int
	workers     int
	callTimeout time.Duration
	now         func() time.Time
	log         zerolog.Logger
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

// NewStage creates a rerank stage. A nil provider disables the semantic adjustment.
func NewStage(provider llm.Provider, cfg model.RerankConfig, opts ...Option) *Stage {
	s := &Stage{
		scorer:      NewScorer(cfg.Weights),
		provider:    provider,
		semantic:    cfg.Semantic && provider != nil,
		topN:        cfg.TopN,
		workers:     cfg.Workers,
		callTimeout: cfg.CallTimeout,
		now:         time.Now,
		log:         zerolog.Nop(),
	}
	if s.topN <= 0 {
		s.topN = 10
	}
	if s.workers <= 0 {
		s.workers = 4
	}
	if s.callTimeout <= 0 {
		s.callTimeout = 5 * time.Second
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rerank scores, sorts and truncates offers, then numbers them 1..N in the
// order they will be shown. The input slice is not modified.
func (s *Stage) Rerank(ctx context.Context, query string, offers []model.Offer, rc RankContext) []model.Offer {
	if len(offers) == 0 {
		return []model.Offer{}
	}

	ranked := make([]model.Offer, len(offers))
	copy(ranked, offers)

	base, _ := s.scorer.Score(ranked, rc.FetchedAt, s.now(), rc.MaxPrice)
	adjust := s.adjustments(ctx, query, ranked)
	for i := range ranked {
		ranked[i].RankScore = base[i] + adjust[i]
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return less(&ranked[i], &ranked[j])
	})

	if len(ranked) > s.topN {
		ranked = ranked[:s.topN]
	}
	for i := range ranked {
		ranked[i].SequenceNumber = i + 1
	}

	s.log.Debug().Str("query", query).Int("in", len(offers)).Int("out", len(ranked)).
		Bool("semantic", s.semantic).Msg("rerank done")
	return ranked
}

// less orders by final score, then quality, then price (unknown last),
// then provider order
func less(a, b *model.Offer) bool {
	if a.RankScore != b.RankScore {
		return a.RankScore > b.RankScore
	}
	if a.QualityScore != b.QualityScore {
		return a.QualityScore > b.QualityScore
	}
	switch {
	case a.Price != nil && b.Price == nil:
		return true
	case a.Price == nil && b.Price != nil:
		return false
	case a.Price != nil && b.Price != nil && !a.Price.Equal(*b.Price):
		return a.Price.LessThan(*b.Price)
	}
	return a.Position < b.Position
}

// adjustments asks the model for a bounded boost per offer. Any failure
// yields 0 for that offer.
func (s *Stage) adjustments(ctx context.Context, query string, offers []model.Offer) []float64 {
	adjust := make([]float64, len(offers))
	if !s.semantic {
		return adjust
	}

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range offers {
		i := i
		prompt := SemanticPrompt(query, &offers[i])
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
			defer cancel()

			v, err := s.provider.Score(callCtx, prompt)
			if err != nil {
				s.log.Debug().Err(err).Int("offer", i).Msg("semantic adjustment unavailable")
				return nil
			}
			if v == nil {
				s.log.Debug().Int("offer", i).Msg("semantic adjustment malformed")
				return nil
			}
			adjust[i] = clamp(*v, MinAdjustment, MaxAdjustment)
			return nil
		})
	}
	_ = g.Wait()
	return adjust
}

// SemanticPrompt builds the adjustment prompt for one offer
func SemanticPrompt(query string, o *model.Offer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User query: %q\n\n", query)
	b.WriteString("Product listing:\n")
	fmt.Fprintf(&b, "- Name: %s\n", o.Name())
	if o.Price != nil {
		fmt.Fprintf(&b, "- Price: $%s\n", o.Price.StringFixed(2))
	}
	if o.Store != "" {
		fmt.Fprintf(&b, "- Store: %s\n", o.Store)
	}
	if o.Rating != nil {
		fmt.Fprintf(&b, "- Rating: %.1f/5\n", *o.Rating)
	}
	fmt.Fprintf(&b, "\nHow well does this listing match what the user is looking for? "+
		"Reply with one integer between %d and %d: positive for a strong match, "+
		"negative for an accessory, wrong model or unrelated item, 0 if unsure.",
		int(MinAdjustment), int(MaxAdjustment))
	return b.String()
}
