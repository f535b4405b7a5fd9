// Package synth turns a ranked offer list into the numbered result set the
// user sees and persists it for follow-up turns.
package synth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/dealcore/internal/model"
	"github.com/ppiankov/dealcore/internal/search"
	"github.com/ppiankov/dealcore/internal/session"
)

// Stage builds and persists result sets
type Stage struct {
	sessions *session.Store
	log      zerolog.Logger
}

// NewStage creates a synthesis stage
func NewStage(sessions *session.Store, log zerolog.Logger) *Stage {
	return &Stage{sessions: sessions, log: log}
}

// Synthesize builds the ResultSet for one turn, replaces the session's
// previous set with it and renders the summary. A store failure is logged
// and the turn still returns its results.
func (s *Stage) Synthesize(ctx context.Context, sessionID string, outcome *search.Outcome, ranked []model.Offer) (*model.ResultSet, string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, "", fmt.Errorf("synthesize: empty session id")
	}

	offers := make([]model.Offer, len(ranked))
	copy(offers, ranked)
	for i := range offers {
		offers[i].SequenceNumber = i + 1
	}

	rs := &model.ResultSet{
		Query:            outcome.Query,
		SessionID:        sessionID,
		Category:         outcome.Category,
		FetchedAt:        outcome.FetchedAt,
		Offers:           offers,
		IsPriceSensitive: outcome.PriceSensitive,
		Warning:          outcome.Warning,
		FromCache:        outcome.FromCache(),
	}
	if rs.FetchedAt.IsZero() {
		rs.FetchedAt = time.Now()
	}

	if err := s.sessions.Save(ctx, rs); err != nil {
		s.log.Warn().Err(err).Str("session", sessionID).Msg("result set not persisted, follow-ups will not resolve")
	}

	return rs, Render(rs), nil
}

// Render formats a result set as a numbered list. Only fields present on
// an offer are mentioned.
func Render(rs *model.ResultSet) string {
	var b strings.Builder

	if rs.Warning != "" {
		fmt.Fprintf(&b, "%s %s\n\n", model.StatusInferred.Marker(), rs.Warning)
	}

	if len(rs.Offers) == 0 {
		fmt.Fprintf(&b, "No deals found for %q.", rs.Query)
		return b.String()
	}

	noun := "deals"
	if len(rs.Offers) == 1 {
		noun = "deal"
	}
	fmt.Fprintf(&b, "Found %d %s for %q:\n", len(rs.Offers), noun, rs.Query)

	for i := range rs.Offers {
		b.WriteString(RenderLine(&rs.Offers[i]))
		b.WriteByte('\n')
	}
	b.WriteString("\nAsk about any deal by number, name or description.")
	return b.String()
}

// RenderLine formats one offer: "#N Name: $price at Store (rated 4.5/5), was $X"
func RenderLine(o *model.Offer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s", o.SequenceNumber, o.Name())

	if o.Price != nil {
		fmt.Fprintf(&b, ": $%s", o.Price.StringFixed(2))
	} else {
		b.WriteString(": price not specified")
	}
	if o.Store != "" {
		fmt.Fprintf(&b, " at %s", o.Store)
	}
	if o.Rating != nil {
		fmt.Fprintf(&b, " (rated %.1f/5)", *o.Rating)
	}
	if o.OriginalPrice != nil && o.Price != nil && o.OriginalPrice.GreaterThan(*o.Price) {
		fmt.Fprintf(&b, ", was $%s", o.OriginalPrice.StringFixed(2))
	}
	return b.String()
}
