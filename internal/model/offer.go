package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Well-known attribute keys
const (
	AttrColor     = "color"
	AttrStorage   = "storage"
	AttrCondition = "condition"
	AttrPriceTier = "price_tier"
	AttrStore     = "store"
	AttrDiscount  = "discount"
)

// Reachability records the outcome of the URL existence probe
type Reachability string

const (
	ReachabilityUnchecked   Reachability = ""
	ReachabilityReachable   Reachability = "reachable"
	ReachabilityUnreachable Reachability = "unreachable"
	ReachabilityUnknown     Reachability = "unknown" // probe timed out, was cancelled, or robots.txt said no
)

// Offer is one canonical product listing derived from a raw search record
type Offer struct {
	SequenceNumber int               `json:"sequence_number"`
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	CleanName      string            `json:"clean_name"`
	Price          *decimal.Decimal  `json:"price,omitempty"`
	OriginalPrice  *decimal.Decimal  `json:"original_price,omitempty"`
	Currency       string            `json:"currency,omitempty"`
	Store          string            `json:"store,omitempty"`
	URL            string            `json:"url"`
	Rating         *float64          `json:"rating,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	SourceSnippet  map[string]string `json:"source_snippet"`
	Inferred       map[string]string `json:"inferred,omitempty"` // field path -> disclosed derivation rule
	QualityScore   float64           `json:"quality_score"`
	RankScore      float64           `json:"rank_score"`
	Reachability   Reachability      `json:"reachability,omitempty"`
	Position       int               `json:"position"` // provider order, 0-based
}

// MarkInferred records that field was derived by rule rather than read from the source
func (o *Offer) MarkInferred(field, rule string) {
	if o.Inferred == nil {
		o.Inferred = make(map[string]string)
	}
	o.Inferred[field] = rule
}

// InferenceRule returns the disclosed rule for an inferred field
func (o *Offer) InferenceRule(field string) (string, bool) {
	rule, ok := o.Inferred[field]
	return rule, ok
}

// Attribute returns an attribute value by case-insensitive key
func (o *Offer) Attribute(key string) (string, bool) {
	if v, ok := o.Attributes[key]; ok {
		return v, true
	}
	lk := strings.ToLower(key)
	for k, v := range o.Attributes {
		if strings.ToLower(k) == lk {
			return v, true
		}
	}
	return "", false
}

// IsComplete reports whether title, price, store and url are all present
func (o *Offer) IsComplete() bool {
	return strings.TrimSpace(o.Title) != "" &&
		o.Price != nil &&
		strings.TrimSpace(o.Store) != "" &&
		strings.TrimSpace(o.URL) != ""
}

// DiscountPercent returns the discount implied by OriginalPrice, or 0
func (o *Offer) DiscountPercent() float64 {
	if o.Price == nil || o.OriginalPrice == nil || !o.OriginalPrice.IsPositive() {
		return 0
	}
	if !o.OriginalPrice.GreaterThan(*o.Price) {
		return 0
	}
	pct := o.OriginalPrice.Sub(*o.Price).Div(*o.OriginalPrice).Mul(decimal.NewFromInt(100))
	f, _ := pct.Float64()
	return f
}

// Name returns CleanName, falling back to Title
func (o *Offer) Name() string {
	if o.CleanName != "" {
		return o.CleanName
	}
	return o.Title
}

// RawRecord is a candidate record as returned by a search provider
type RawRecord struct {
	Title         string            `json:"title"`
	URL           string            `json:"url"`
	Content       string            `json:"content,omitempty"`
	Price         string            `json:"price,omitempty"`
	OriginalPrice string            `json:"original_price,omitempty"`
	Rating        string            `json:"rating,omitempty"`
	Store         string            `json:"store,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// Snippet returns the non-empty provider fields verbatim
func (r RawRecord) Snippet() map[string]string {
	s := make(map[string]string)
	put := func(k, v string) {
		if strings.TrimSpace(v) != "" {
			s[k] = v
		}
	}
	put("title", r.Title)
	put("url", r.URL)
	put("content", r.Content)
	put("price", r.Price)
	put("original_price", r.OriginalPrice)
	put("rating", r.Rating)
	put("store", r.Store)
	for k, v := range r.Extra {
		put(k, v)
	}
	return s
}

// Filters narrow a provider search
type Filters struct {
	MaxPrice       *decimal.Decimal `json:"max_price,omitempty"`
	Category       string           `json:"category,omitempty"`
	MaxResults     int              `json:"max_results,omitempty"`
	IncludeDomains []string         `json:"include_domains,omitempty"`
}
