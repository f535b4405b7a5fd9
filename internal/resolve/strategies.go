package resolve

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/dealcore/internal/model"
	"github.com/ppiankov/dealcore/internal/util"
)

// numberRef matches "#3", "product 3", "number 3", "deal 3", "item 3",
// "option 3", "result 3" and "no. 3"
var numberRef = regexp.MustCompile(`(?i)(?:#\s*([0-9]{1,3})\b|\b(?:product|number|deal|item|option|result|no\.)\s*#?\s*([0-9]{1,3})\b)`)

// matchNumber resolves explicit numeric references. Any number outside
// the set stops resolution.
func matchNumber(utterance string, rs *model.ResultSet) ([]model.ProductMatch, bool) {
	var nums []int
	seen := make(map[int]bool)
	for _, m := range numberRef.FindAllStringSubmatch(utterance, -1) {
		digits := m[1]
		if digits == "" {
			digits = m[2]
		}
		n, err := strconv.Atoi(digits)
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		nums = append(nums, n)
	}
	return bySequence(nums, rs, model.MatchExactNumber, "numbered reference")
}

// ordinalPattern matches an ordinal used as a position: "the second",
// "2nd deal". A bare ordinal without "the" or a head noun is not one.
func ordinalPattern(words string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:the\s+(?:` + words + `)|(?:` + words + `)\s+(?:one|deal|item|product|option|result|listing|offer)s?)\b`)
}

// compoundOrdinal is an ordinal word that is part of another word
var compoundOrdinal = regexp.MustCompile(`(?i)\b(?:second|2nd|first|1st)[\s-]+hand(?:ed)?\b|\bfirst[\s-]+(?:party|class|time)\b`)

var ordinalWords = []struct {
	pattern *regexp.Regexp
	n       int // 0 means the last offer
}{
	{ordinalPattern(`first|1st`), 1},
	{ordinalPattern(`second|2nd`), 2},
	{ordinalPattern(`third|3rd`), 3},
	{ordinalPattern(`fourth|4th`), 4},
	{ordinalPattern(`fifth|5th`), 5},
	{ordinalPattern(`sixth|6th`), 6},
	{ordinalPattern(`seventh|7th`), 7},
	{ordinalPattern(`eighth|8th`), 8},
	{ordinalPattern(`ninth|9th`), 9},
	{ordinalPattern(`tenth|10th`), 10},
	{regexp.MustCompile(`(?i)\b(?:the last|last (?:one|deal|item|product|option|result))\b`), 0},
}

// matchOrdinal resolves "first one", "3rd deal", "the last one" by
// position in the shown order
func matchOrdinal(utterance string, rs *model.ResultSet) ([]model.ProductMatch, bool) {
	type hit struct{ pos, n int }
	var hits []hit
	utterance = compoundOrdinal.ReplaceAllStringFunc(utterance, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
	for _, w := range ordinalWords {
		loc := w.pattern.FindStringIndex(utterance)
		if loc == nil {
			continue
		}
		n := w.n
		if n == 0 {
			n = len(rs.Offers)
		}
		hits = append(hits, hit{pos: loc[0], n: n})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	nums := make([]int, 0, len(hits))
	seen := make(map[int]bool)
	for _, h := range hits {
		if !seen[h.n] {
			seen[h.n] = true
			nums = append(nums, h.n)
		}
	}

	if len(nums) == 0 {
		return nil, false
	}
	// positions map onto the current order
	matches := make([]model.ProductMatch, 0, len(nums))
	for _, n := range nums {
		if n < 1 || n > len(rs.Offers) {
			return nil, true
		}
		matches = append(matches, model.ProductMatch{
			Offer:      &rs.Offers[n-1],
			Confidence: ExactConfidence,
			Method:     model.MatchOrdinal,
			Reason:     fmt.Sprintf("position %d in the list", n),
		})
	}
	return matches, false
}

func bySequence(nums []int, rs *model.ResultSet, method model.MatchMethod, reason string) ([]model.ProductMatch, bool) {
	if len(nums) == 0 {
		return nil, false
	}
	matches := make([]model.ProductMatch, 0, len(nums))
	for _, n := range nums {
		o := rs.BySequence(n)
		if o == nil {
			return nil, true
		}
		matches = append(matches, model.ProductMatch{
			Offer:      o,
			Confidence: ExactConfidence,
			Method:     method,
			Reason:     fmt.Sprintf("%s #%d", reason, n),
		})
	}
	return matches, false
}

// superlative compares one numeric field across the set
type superlative struct {
	pattern *regexp.Regexp
	reason  string
	value   func(o *model.Offer) (float64, bool)
	highest bool
}

func priceOf(o *model.Offer) (float64, bool) {
	if o.Price == nil {
		return 0, false
	}
	f, _ := o.Price.Float64()
	return f, true
}

func ratingOf(o *model.Offer) (float64, bool) {
	if o.Rating == nil {
		return 0, false
	}
	return *o.Rating, true
}

func discountOf(o *model.Offer) (float64, bool) {
	pct := o.DiscountPercent()
	return pct, pct > 0
}

var superlatives = []superlative{
	{regexp.MustCompile(`(?i)\b(?:most expensive|priciest|highest[- ]priced?|highest price)\b`), "highest price", priceOf, true},
	{regexp.MustCompile(`(?i)\b(?:cheapest|lowest[- ]priced?|lowest price|least expensive|most affordable)\b`), "lowest price", priceOf, false},
	{regexp.MustCompile(`(?i)\b(?:highest[- ]rated|best[- ]rated|top[- ]rated|best reviewed)\b`), "highest rating", ratingOf, true},
	{regexp.MustCompile(`(?i)\b(?:lowest[- ]rated|worst[- ]rated)\b`), "lowest rating", ratingOf, false},
	{regexp.MustCompile(`(?i)\b(?:biggest|largest|best|deepest) (?:discount|saving|savings|markdown)\b`), "largest discount", discountOf, true},
}

// matchSuperlative resolves "cheapest", "most expensive", "highest rated"
// and "biggest discount" by comparing the field across the set. A tie on
// the compared field is ambiguous.
func matchSuperlative(utterance string, rs *model.ResultSet) ([]model.ProductMatch, bool) {
	for _, s := range superlatives {
		if !s.pattern.MatchString(utterance) {
			continue
		}

		var best []*model.Offer
		var bestVal float64
		for i := range rs.Offers {
			o := &rs.Offers[i]
			v, ok := s.value(o)
			if !ok {
				continue
			}
			switch {
			case best == nil,
				s.highest && v > bestVal,
				!s.highest && v < bestVal:
				best, bestVal = []*model.Offer{o}, v
			case v == bestVal:
				best = append(best, o)
			}
		}

		switch len(best) {
		case 0:
			continue
		case 1:
			return []model.ProductMatch{{
				Offer:      best[0],
				Confidence: SuperlativeConf,
				Method:     model.MatchDescription,
				Reason:     s.reason,
			}}, false
		default:
			return ambiguous(model.MatchDescription, "tied on "+s.reason, best), false
		}
	}
	return nil, false
}

// attributeKeys are the attribute values a user can name
var attributeKeys = []string{
	model.AttrColor,
	model.AttrStorage,
	model.AttrCondition,
	model.AttrStore,
	model.AttrPriceTier,
}

var spacedCapacity = regexp.MustCompile(`(?i)\b([0-9]+)\s+(gb|tb)\b`)

// matchAttribute looks up the attribute values the utterance names. The
// offers matching the most named values win.
func matchAttribute(utterance string, rs *model.ResultSet) ([]model.ProductMatch, bool) {
	words := util.Tokens(spacedCapacity.ReplaceAllString(utterance, "$1$2"))
	if len(words) == 0 {
		return nil, false
	}

	var best []*model.Offer
	var bestHits []string
	bestCount := 0
	for i := range rs.Offers {
		o := &rs.Offers[i]

		values := make(map[string]struct{})
		for _, k := range attributeKeys {
			if v, ok := o.Attribute(k); ok && v != "" {
				values[strings.ToLower(v)] = struct{}{}
			}
		}
		if o.Store != "" {
			values[strings.ToLower(o.Store)] = struct{}{}
		}

		var hits []string
		for v := range values {
			if containsPhrase(words, util.Tokens(v)) {
				hits = append(hits, v)
			}
		}
		if c, ok := o.Attribute(model.AttrCondition); ok && isUsedCondition(util.Tokens(c)) &&
			!containsPhrase(words, util.Tokens(c)) && isUsedCondition(words) {
			hits = append(hits, strings.ToLower(c))
		}
		switch {
		case len(hits) == 0:
		case len(hits) > bestCount:
			best, bestCount, bestHits = []*model.Offer{o}, len(hits), hits
		case len(hits) == bestCount:
			best = append(best, o)
		}
	}

	sort.Strings(bestHits)
	reason := "attribute " + strings.Join(bestHits, ", ")
	switch len(best) {
	case 0:
		return nil, false
	case 1:
		return []model.ProductMatch{{
			Offer:      best[0],
			Confidence: AttributeConfidence,
			Method:     model.MatchAttribute,
			Reason:     reason,
		}}, false
	default:
		return ambiguous(model.MatchAttribute, reason, best), false
	}
}

// usedConditions are the ways a listing or a shopper says "not new"
var usedConditions = [][]string{
	{"used"}, {"refurbished"}, {"renewed"}, {"pre", "owned"}, {"preowned"},
	{"second", "hand"}, {"secondhand"}, {"open", "box"},
}

func isUsedCondition(words []string) bool {
	for _, c := range usedConditions {
		if containsPhrase(words, c) {
			return true
		}
	}
	return false
}

// containsPhrase reports whether phrase occurs as a contiguous run in words
func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(words); i++ {
		for j, p := range phrase {
			if words[i+j] != p {
				continue outer
			}
		}
		return true
	}
	return false
}

// Similarity scores how well the utterance names an offer: mostly the
// share of utterance tokens found in the name, plus token-set overlap.
func Similarity(utterance []string, o *model.Offer) float64 {
	sim, _ := similarity(utterance, o)
	return sim
}

func similarity(utterance []string, o *model.Offer) (sim, coverage float64) {
	if len(utterance) == 0 {
		return 0, 0
	}
	name := make(map[string]struct{})
	for _, tok := range util.ContentTokens(o.CleanName + " " + o.Title) {
		name[tok] = struct{}{}
	}
	if len(name) == 0 {
		return 0, 0
	}

	hits := 0
	for _, tok := range utterance {
		if _, ok := name[tok]; ok {
			hits++
		}
	}
	if hits == 0 {
		return 0, 0
	}
	coverage = float64(hits) / float64(len(utterance))
	jaccard := float64(hits) / float64(len(utterance)+len(name)-hits)
	return 0.7*coverage + 0.3*jaccard, coverage
}

// fuzzyTieMargin is how close two similarities must be to count as a tie
const fuzzyTieMargin = 0.05

// matchFuzzy picks the single best name match above the floor. Offers
// naming the utterance equally well, by equal coverage or a score within
// fuzzyTieMargin of the best, are ambiguous. Confidence is the similarity
// scaled so that a full name match is just confident.
func (r *Resolver) matchFuzzy(utterance string, rs *model.ResultSet) ([]model.ProductMatch, bool) {
	tokens := util.ContentTokens(utterance)
	if len(tokens) == 0 {
		return nil, false
	}

	type candidate struct {
		offer         *model.Offer
		sim, coverage float64
	}
	var candidates []candidate
	bestSim, bestCoverage := 0.0, 0.0
	for i := range rs.Offers {
		o := &rs.Offers[i]
		sim, coverage := similarity(tokens, o)
		if sim < r.fuzzyFloor {
			continue
		}
		candidates = append(candidates, candidate{o, sim, coverage})
		if sim > bestSim {
			bestSim, bestCoverage = sim, coverage
		}
	}

	var best []*model.Offer
	for _, c := range candidates {
		if c.coverage == bestCoverage || bestSim-c.sim <= fuzzyTieMargin {
			best = append(best, c.offer)
		}
	}

	switch len(best) {
	case 0:
		return nil, false
	case 1:
		return []model.ProductMatch{{
			Offer:      best[0],
			Confidence: ConfidentThreshold * bestSim,
			Method:     model.MatchFuzzyName,
			Reason:     fmt.Sprintf("name similarity %.2f", bestSim),
		}}, false
	default:
		return ambiguous(model.MatchFuzzyName, fmt.Sprintf("several names match equally (%.2f)", bestSim), best), false
	}
}
