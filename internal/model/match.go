package model

// MatchMethod names the resolver strategy that produced a match
type MatchMethod string

const (
	MatchExactNumber MatchMethod = "exact-number"
	MatchOrdinal     MatchMethod = "ordinal"
	MatchDescription MatchMethod = "description"
	MatchAttribute   MatchMethod = "attribute"
	MatchFuzzyName   MatchMethod = "fuzzy-name"
	MatchLLM         MatchMethod = "llm"
)

// ProductMatch is a resolution result. Offer points into the ResultSet it
// was resolved against and is nil when the match is ambiguous.
type ProductMatch struct {
	Offer                 *Offer      `json:"offer,omitempty"`
	Confidence            float64     `json:"confidence"`
	Method                MatchMethod `json:"method"`
	AmbiguousAlternatives []*Offer    `json:"ambiguous_alternatives,omitempty"`
	Reason                string      `json:"reason,omitempty"`
}

// IsAmbiguous reports whether the match needs clarification
func (m ProductMatch) IsAmbiguous() bool {
	return m.Offer == nil && len(m.AmbiguousAlternatives) > 1
}
