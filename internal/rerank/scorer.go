// Package rerank orders verified offers by a weighted feature score plus an
// optional bounded adjustment from the language model.
package rerank

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ppiankov/dealcore/internal/model"
)

// Neutral values for offers missing a feature
const (
	neutralPrice  = 50.0
	neutralRating = 50.0
)

// freshnessWindow is the age at which the freshness factor reaches zero
const freshnessWindow = 24 * time.Hour

// Factors is the per-feature breakdown of an algorithmic score, each 0-100
type Factors struct {
	Price     float64
	Discount  float64
	Rating    float64
	Quality   float64
	Freshness float64
}

// Scorer computes the algorithmic score of offers within one result set
type Scorer struct {
	weights model.RerankWeights
}

// NewScorer creates a scorer. Zero weights fall back to the defaults.
func NewScorer(weights model.RerankWeights) *Scorer {
	if weights == (model.RerankWeights{}) {
		weights = model.DefaultConfig().Rerank.Weights
	}
	return &Scorer{weights: weights}
}

// priceRange is the spread of known prices in the set
type priceRange struct {
	min, max float64
	ok       bool
}

func rangeOf(offers []model.Offer) priceRange {
	var r priceRange
	for _, o := range offers {
		if o.Price == nil {
			continue
		}
		p, _ := o.Price.Float64()
		if !r.ok {
			r = priceRange{min: p, max: p, ok: true}
			continue
		}
		r.min = math.Min(r.min, p)
		r.max = math.Max(r.max, p)
	}
	return r
}

// Score returns the weighted sum and its factors for every offer, in order
func (s *Scorer) Score(offers []model.Offer, fetchedAt, now time.Time, maxPrice *decimal.Decimal) ([]float64, []Factors) {
	pr := rangeOf(offers)
	fresh := freshnessScore(fetchedAt, now)

	scores := make([]float64, len(offers))
	factors := make([]Factors, len(offers))
	for i := range offers {
		o := &offers[i]

		// 1. Price (lower is better)
		f := Factors{Price: priceScore(o, pr, maxPrice)}
		// 2. Discount
		f.Discount = discountScore(o)
		// 3. Rating
		f.Rating = neutralRating
		if o.Rating != nil {
			f.Rating = clamp(*o.Rating*20, 0, 100)
		}
		// 4. Verification quality
		f.Quality = clamp(o.QualityScore, 0, 100)
		// 5. Freshness of the whole set
		f.Freshness = fresh

		factors[i] = f
		scores[i] = f.Price*s.weights.Price +
			f.Discount*s.weights.Discount +
			f.Rating*s.weights.Rating +
			f.Quality*s.weights.Quality +
			f.Freshness*s.weights.Freshness
	}
	return scores, factors
}

// priceScore scores against the budget when one is set, otherwise
// min-max within the set
func priceScore(o *model.Offer, pr priceRange, maxPrice *decimal.Decimal) float64 {
	if o.Price == nil {
		return neutralPrice
	}
	p, _ := o.Price.Float64()

	if maxPrice != nil && maxPrice.IsPositive() {
		budget, _ := maxPrice.Float64()
		if p > budget {
			return 0
		}
		return clamp((budget-p)/budget*100, 0, 100)
	}

	if !pr.ok || pr.max == pr.min {
		return 100
	}
	return clamp((pr.max-p)/(pr.max-pr.min)*100, 0, 100)
}

var (
	percentOff = regexp.MustCompile(`([0-9]{1,2})\s*%`)
	saveAmount = regexp.MustCompile(`\$\s?([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
)

// discountScore prefers the price pair and falls back to the discount attribute
func discountScore(o *model.Offer) float64 {
	if pct := o.DiscountPercent(); pct > 0 {
		return clamp(pct, 0, 100)
	}

	text, ok := o.Attribute(model.AttrDiscount)
	if !ok {
		return 0
	}
	if m := percentOff.FindStringSubmatch(text); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return clamp(v, 0, 100)
	}
	if m := saveAmount.FindStringSubmatch(text); m != nil && o.Price != nil {
		saved, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		p, _ := o.Price.Float64()
		if err == nil && saved > 0 && p+saved > 0 {
			return clamp(saved/(p+saved)*100, 0, 100)
		}
	}
	return 0
}

func freshnessScore(fetchedAt, now time.Time) float64 {
	if fetchedAt.IsZero() {
		return 0
	}
	age := now.Sub(fetchedAt)
	if age < 0 {
		age = 0
	}
	return clamp(100*(1-float64(age)/float64(freshnessWindow)), 0, 100)
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
