package verify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/dealcore/internal/model"
	"github.com/ppiankov/dealcore/internal/util"
	"github.com/ppiankov/dealcore/internal/worker"
)

const (
	completenessWeight = 0.4
	relevanceWeight    = 0.6
)

// Stage scores and filters offers
type Stage struct {
	checker         Checker
	workers         int
	probeTimeout    time.Duration
	strictThreshold float64
	penalty         float64
	skipProbe       bool
	log             zerolog.Logger
}

// NewStage creates a verification stage. A nil checker skips probing.
func NewStage(checker Checker, cfg model.VerificationConfig, log zerolog.Logger) *Stage {
	s := &Stage{
		checker:         checker,
		workers:         cfg.Workers,
		probeTimeout:    cfg.ProbeTimeout,
		strictThreshold: cfg.StrictThreshold,
		penalty:         cfg.UnreachablePenalty,
		skipProbe:       cfg.SkipProbe || checker == nil,
		log:             log,
	}
	if s.workers <= 0 {
		s.workers = 5
	}
	if s.probeTimeout <= 0 {
		s.probeTimeout = 5 * time.Second
	}
	if s.strictThreshold <= 0 {
		s.strictThreshold = 75
	}
	return s
}

// probeJob probes one offer url under its own timeout
type probeJob struct {
	index   int
	url     string
	checker Checker
	timeout time.Duration
}

func (j *probeJob) Execute(ctx context.Context) worker.Result {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	return &probeJobResult{index: j.index, probe: j.checker.Probe(ctx, j.url)}
}

type probeJobResult struct {
	index int
	probe ProbeResult
}

func (r *probeJobResult) GetError() error {
	if r.probe.Error == "" {
		return nil
	}
	return errors.New(r.probe.Error)
}

// Verify scores every offer and drops those the strictness policy rejects.
// Survivors keep their input order.
func (s *Stage) Verify(ctx context.Context, query string, offers []model.Offer, strictness model.Strictness) []model.Offer {
	if len(offers) == 0 {
		return []model.Offer{}
	}

	reach := s.probeAll(ctx, offers)
	queryTokens := util.ContentTokens(query)

	scored := make([]model.Offer, len(offers))
	for i, o := range offers {
		o.Reachability = reach[i]
		o.QualityScore = s.quality(&o, queryTokens)
		scored[i] = o
	}

	kept := make([]model.Offer, 0, len(scored))
	for i := range scored {
		if s.keep(&scored[i], strictness) {
			kept = append(kept, scored[i])
		}
	}

	s.log.Debug().Str("strictness", string(strictness)).
		Int("in", len(offers)).Int("kept", len(kept)).Msg("verification done")
	return kept
}

// probeAll runs the probes on a bounded pool. Probes that never ran or
// timed out are unknown.
func (s *Stage) probeAll(ctx context.Context, offers []model.Offer) []model.Reachability {
	reach := make([]model.Reachability, len(offers))
	for i := range reach {
		reach[i] = model.ReachabilityUnknown
	}
	if s.skipProbe {
		return reach
	}

	pool := worker.NewPool(ctx, s.workers)
	pool.Start()
	for i, o := range offers {
		job := &probeJob{index: i, url: o.URL, checker: s.checker, timeout: s.probeTimeout}
		if !pool.Submit(job) {
			break
		}
	}

	var unknown, unreachable int
	for _, r := range pool.Wait() {
		res, ok := r.(*probeJobResult)
		if !ok {
			continue
		}
		reach[res.index] = res.probe.Reachability
	}
	for _, r := range reach {
		switch r {
		case model.ReachabilityUnknown:
			unknown++
		case model.ReachabilityUnreachable:
			unreachable++
		}
	}

	if ctx.Err() != nil {
		s.log.Warn().Err(model.ErrVerificationTimeout).Int("unknown", unknown).Msg("verification cut short")
	} else if unknown > 0 || unreachable > 0 {
		s.log.Debug().Int("unknown", unknown).Int("unreachable", unreachable).Msg("probe failures")
	}
	return reach
}

// quality combines completeness and relevance, minus an unreachable penalty
func (s *Stage) quality(o *model.Offer, queryTokens []string) float64 {
	completeness := 0.0
	if o.IsComplete() {
		completeness = 100
	}
	score := completenessWeight*completeness + relevanceWeight*Relevance(queryTokens, o)
	if o.Reachability == model.ReachabilityUnreachable {
		score -= s.penalty
	}
	return clamp(score, 0, 100)
}

func (s *Stage) keep(o *model.Offer, strictness model.Strictness) bool {
	switch strictness {
	case model.StrictnessLenient:
		return true
	case model.StrictnessStrict:
		return o.QualityScore >= s.strictThreshold && o.Reachability != model.ReachabilityUnreachable
	default:
		return o.IsComplete()
	}
}

// Relevance is the share of query tokens found in the offer's title or
// attribute values, 0-100. An empty query is fully relevant.
func Relevance(queryTokens []string, o *model.Offer) float64 {
	if len(queryTokens) == 0 {
		return 100
	}

	var b strings.Builder
	b.WriteString(o.Title)
	for _, v := range o.Attributes {
		b.WriteByte(' ')
		b.WriteString(v)
	}
	have := make(map[string]struct{})
	for _, tok := range util.Tokens(b.String()) {
		have[tok] = struct{}{}
	}

	hits := 0
	for _, tok := range queryTokens {
		if _, ok := have[tok]; ok {
			hits++
		}
	}
	return 100 * float64(hits) / float64(len(queryTokens))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
