// Package resolve maps a follow-up utterance to offers in the session's
// latest result set. Strategies run in a fixed order and the first
// confident answer wins; the language model is only a last resort and
// can never name an offer outside the set.
package resolve

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/dealcore/internal/llm"
	"github.com/ppiankov/dealcore/internal/model"
)

// Confidence levels
const (
	ConfidentThreshold    = 0.9
	ExactConfidence       = 1.0
	SuperlativeConf       = 0.95
	AttributeConfidence   = 0.9
	AmbiguousConfidence   = 0.5
	defaultFuzzyFloor     = 0.5
	defaultLLMCallTimeout = 10 * time.Second
)

// strategy returns matches for the utterance and whether the search must
// stop regardless of confidence (a numeric reference outside the set)
type strategy struct {
	name model.MatchMethod
	run  func(utterance string, rs *model.ResultSet) (matches []model.ProductMatch, stop bool)
}

// Resolver resolves follow-up references
type Resolver struct {
	provider    llm.Provider
	useLLM      bool
	fuzzyFloor  float64
	callTimeout time.Duration
	log         zerolog.Logger
	strategies  []strategy
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the resolver logger
func WithLogger(log zerolog.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// WithCallTimeout bounds the language-model fallback
func WithCallTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.callTimeout = d }
}

// New creates a resolver. A nil provider disables the model fallback.
func New(provider llm.Provider, cfg model.ResolverConfig, opts ...Option) *Resolver {
	r := &Resolver{
		provider:    provider,
		useLLM:      cfg.UseLLM && provider != nil,
		fuzzyFloor:  cfg.FuzzyFloor,
		callTimeout: defaultLLMCallTimeout,
		log:         zerolog.Nop(),
	}
	if r.fuzzyFloor <= 0 || r.fuzzyFloor > 1 {
		r.fuzzyFloor = defaultFuzzyFloor
	}
	for _, opt := range opts {
		opt(r)
	}

	r.strategies = []strategy{
		{model.MatchExactNumber, matchNumber},
		{model.MatchOrdinal, matchOrdinal},
		{model.MatchDescription, matchSuperlative},
		{model.MatchAttribute, matchAttribute},
		{model.MatchFuzzyName, r.matchFuzzy},
	}
	return r
}

// Resolve returns the offers the utterance refers to. The result is one
// of: confident matches, a single ambiguous match listing the candidates,
// or empty when nothing in the set fits.
func (r *Resolver) Resolve(ctx context.Context, utterance string, rs *model.ResultSet) []model.ProductMatch {
	if rs == nil || len(rs.Offers) == 0 {
		return nil
	}

	var tentative []model.ProductMatch
	for _, s := range r.strategies {
		matches, stop := s.run(utterance, rs)
		if stop {
			r.log.Debug().Str("strategy", string(s.name)).Msg("reference outside result set")
			return nil
		}
		if len(matches) == 0 {
			continue
		}
		if isConfident(matches) {
			r.log.Debug().Str("strategy", string(s.name)).Int("matches", len(matches)).Msg("reference resolved")
			return matches
		}
		if tentative == nil {
			tentative = matches
		}
	}

	if r.useLLM {
		matches := r.matchLLM(ctx, utterance, rs)
		if isConfident(matches) || (tentative == nil && len(matches) > 0) {
			return matches
		}
	}
	return tentative
}

// isConfident reports whether every match is a single offer at or above
// the stop threshold
func isConfident(matches []model.ProductMatch) bool {
	if len(matches) == 0 {
		return false
	}
	for _, m := range matches {
		if m.Offer == nil || m.Confidence < ConfidentThreshold {
			return false
		}
	}
	return true
}

// ambiguous builds the clarification result for several candidates
func ambiguous(method model.MatchMethod, reason string, candidates []*model.Offer) []model.ProductMatch {
	return []model.ProductMatch{{
		Confidence:            AmbiguousConfidence,
		Method:                method,
		AmbiguousAlternatives: candidates,
		Reason:                reason,
	}}
}
