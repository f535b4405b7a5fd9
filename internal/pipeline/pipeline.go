// Package pipeline runs one conversational turn: a search turn goes
// search → verify → rerank → synthesize, a follow-up turn resolves a
// reference against the session's last results and answers from the
// grounded fact sheet.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/dealcore/internal/cache"
	"github.com/ppiankov/dealcore/internal/facts"
	"github.com/ppiankov/dealcore/internal/freshness"
	"github.com/ppiankov/dealcore/internal/llm"
	"github.com/ppiankov/dealcore/internal/model"
	"github.com/ppiankov/dealcore/internal/rerank"
	"github.com/ppiankov/dealcore/internal/resolve"
	"github.com/ppiankov/dealcore/internal/search"
	"github.com/ppiankov/dealcore/internal/session"
	"github.com/ppiankov/dealcore/internal/synth"
	"github.com/ppiankov/dealcore/internal/verify"
	"github.com/ppiankov/dealcore/internal/worker"
)

const defaultTurnTimeout = 45 * time.Second

// Deps are the external capabilities a pipeline runs against
type Deps struct {
	Store   cache.Store     // shared key-value store for records and sessions
	Search  search.Provider // external search capability
	Checker verify.Checker  // url probe, nil skips probing
	LLM     llm.Provider    // optional, nil disables every model call
}

// Pipeline orchestrates search and follow-up turns
type Pipeline struct {
	search      *search.Stage
	verify      *verify.Stage
	rerank      *rerank.Stage
	synth       *synth.Stage
	resolver    *resolve.Resolver
	sessions    *session.Store
	narrator    llm.Provider
	strictness  model.Strictness
	turnTimeout time.Duration
	log         zerolog.Logger
	closers     []func() error
}

// Option configures a Pipeline
type Option func(*options)

type options struct {
	log zerolog.Logger
	now func() time.Time
}

// WithLogger sets the logger passed to every stage
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithClock overrides time.Now for freshness and ranking decisions
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New wires the stages over deps
func New(cfg *model.Config, deps Deps, opts ...Option) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, errors.New("pipeline: store is required")
	}
	if deps.Search == nil {
		return nil, errors.New("pipeline: search provider is required")
	}

	o := options{log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	policy := freshness.NewPolicy(cfg.Freshness)
	records := cache.NewRecordCache(deps.Store, policy, o.log.With().Str("component", "cache").Logger(), cfg.Store.OpTimeout)
	sessions := session.NewStore(deps.Store, cfg.Store.SessionTTL)

	callTimeout := time.Duration(cfg.LLM.Timeout) * time.Second
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}

	p := &Pipeline{
		search: search.NewStage(deps.Search, records, cfg.Search,
			search.WithLogger(o.log.With().Str("component", "search").Logger()),
			search.WithClock(o.now)),
		verify: verify.NewStage(deps.Checker, cfg.Verification, o.log.With().Str("component", "verify").Logger()),
		rerank: rerank.NewStage(deps.LLM, cfg.Rerank,
			rerank.WithLogger(o.log.With().Str("component", "rerank").Logger()),
			rerank.WithClock(o.now)),
		synth: synth.NewStage(sessions, o.log.With().Str("component", "synth").Logger()),
		resolver: resolve.New(deps.LLM, cfg.Resolver,
			resolve.WithLogger(o.log.With().Str("component", "resolve").Logger()),
			resolve.WithCallTimeout(callTimeout)),
		sessions:    sessions,
		narrator:    deps.LLM,
		strictness:  cfg.Verification.Strictness,
		turnTimeout: cfg.TurnTimeout,
		log:         o.log,
	}
	if p.turnTimeout <= 0 {
		p.turnTimeout = defaultTurnTimeout
	}
	return p, nil
}

// SearchResponse is the outcome of a search turn
type SearchResponse struct {
	SessionID string
	ResultSet *model.ResultSet
	Summary   string
	State     search.State
}

// RunSearch runs a search turn and replaces the session's result set. The
// background cache write has finished by the time it returns.
func (p *Pipeline) RunSearch(ctx context.Context, query, sessionID string) (*SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("run search: empty query")
	}

	ctx, cancel := context.WithTimeout(ctx, p.turnTimeout)
	defer cancel()

	// 1. Search (cache-aware)
	outcome, err := p.search.Run(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("run search: %w", err)
	}
	defer outcome.Wait()

	// 2. Verify
	verified := p.verify.Verify(ctx, query, outcome.Offers, p.strictness)

	// 3. Rerank
	ranked := p.rerank.Rerank(ctx, query, verified, rerank.RankContext{
		FetchedAt: outcome.FetchedAt,
		MaxPrice:  outcome.MaxPrice,
	})

	// 4. Synthesize
	rs, summary, err := p.synth.Synthesize(ctx, sessionID, outcome, ranked)
	if err != nil {
		return nil, fmt.Errorf("run search: %w", err)
	}

	p.log.Info().
		Str("session", sessionID).
		Str("query", query).
		Str("state", string(outcome.State)).
		Int("fetched", len(outcome.Offers)).
		Int("verified", len(verified)).
		Int("shown", len(rs.Offers)).
		Msg("search turn complete")

	return &SearchResponse{
		SessionID: sessionID,
		ResultSet: rs,
		Summary:   summary,
		State:     outcome.State,
	}, nil
}

// Answer is the grounded answer about one referenced offer
type Answer struct {
	Offer     *model.Offer
	Match     model.ProductMatch
	Claims    []model.VerifiedClaim
	Narrative string // optional model prose, empty when absent or rejected
}

// FollowUpResponse is the outcome of a follow-up turn
type FollowUpResponse struct {
	SessionID string
	Answers   []Answer
	Text      string
}

// Claims returns every claim across the answers in order
func (r *FollowUpResponse) Claims() []model.VerifiedClaim {
	var out []model.VerifiedClaim
	for _, a := range r.Answers {
		out = append(out, a.Claims...)
	}
	return out
}

// RunFollowUp resolves the utterance against the session's last result set
// and answers from the matched offers' source data. Errors are
// model.ErrNoResultSet, *model.AmbiguousReferenceError or
// model.ErrProductNotFound.
func (p *Pipeline) RunFollowUp(ctx context.Context, utterance, sessionID string) (*FollowUpResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.turnTimeout)
	defer cancel()

	rs, err := p.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("run follow-up: %w", err)
	}

	matches := p.resolver.Resolve(ctx, utterance, rs)
	if len(matches) == 0 {
		return nil, fmt.Errorf("run follow-up %q: %w", utterance, model.ErrProductNotFound)
	}
	if matches[0].IsAmbiguous() {
		return nil, &model.AmbiguousReferenceError{
			Utterance:    utterance,
			Alternatives: matches[0].AmbiguousAlternatives,
		}
	}

	asked := facts.ClaimsFromQuestion(utterance)
	resp := &FollowUpResponse{SessionID: sessionID}
	sections := make([]string, 0, len(matches))
	for _, m := range matches {
		answer := Answer{
			Offer:  m.Offer,
			Match:  m,
			Claims: claimsFor(m.Offer, asked),
		}
		body, err := facts.Assemble(answer.Claims)
		if err != nil {
			return nil, fmt.Errorf("run follow-up: %w", err)
		}
		answer.Narrative = p.narrate(ctx, utterance, m.Offer, body)

		section := fmt.Sprintf("#%d %s\n%s", m.Offer.SequenceNumber, m.Offer.Name(), body)
		if answer.Narrative != "" {
			section += "\n\n" + facts.RenderNarrative(answer.Narrative)
		}
		sections = append(sections, section)
		resp.Answers = append(resp.Answers, answer)
	}
	resp.Text = strings.Join(sections, "\n\n")

	p.log.Info().
		Str("session", sessionID).
		Int("matches", len(matches)).
		Str("method", string(matches[0].Method)).
		Float64("confidence", matches[0].Confidence).
		Msg("follow-up turn complete")
	return resp, nil
}

// claimsFor is the offer's fact sheet plus any asked-about claim the sheet
// does not already cover
func claimsFor(offer *model.Offer, asked []model.Claim) []model.VerifiedClaim {
	sheet := facts.FactSheet(offer)
	have := make(map[string]bool, len(sheet))
	for _, c := range sheet {
		have[c.Key] = true
	}
	for _, c := range asked {
		vc := facts.VerifyClaim(c, offer)
		if have[vc.Key] {
			continue
		}
		have[vc.Key] = true
		sheet = append(sheet, vc)
	}
	return sheet
}

// Warm runs only the search stage so the query's records land in cache
func (p *Pipeline) Warm(ctx context.Context, query string) (worker.WarmReport, error) {
	ctx, cancel := context.WithTimeout(ctx, p.turnTimeout)
	defer cancel()

	outcome, err := p.search.Run(ctx, query)
	if err != nil {
		return worker.WarmReport{}, err
	}
	outcome.Wait()
	return worker.WarmReport{State: string(outcome.State), Offers: len(outcome.Offers)}, nil
}

// Invalidate drops the cached records for query
func (p *Pipeline) Invalidate(ctx context.Context, query string) error {
	return p.search.Invalidate(ctx, query)
}

// Close releases resources the pipeline opened itself
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
