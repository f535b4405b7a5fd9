// Package facts checks claims about an offer against the offer's source
// data. A claim is verified only when the source states it, inferred only
// under a disclosed rule, and unknown otherwise.
package facts

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ppiankov/dealcore/internal/model"
)

// NotSpecified replaces the value of a claim the source does not support
const NotSpecified = "not specified"

// RuleTierFromTitle is the disclosed rule behind the "tier" inference
const RuleTierFromTitle = "title contains a premium model marker (Pro, Max, Ultra, Plus)"

var tierMarker = regexp.MustCompile(`\b(Pro|Max|Ultra|Plus)\b`)

// VerifyClaim classifies one claim about offer
func VerifyClaim(claim model.Claim, offer *model.Offer) model.VerifiedClaim {
	key := strings.ToLower(strings.TrimSpace(claim.Key))

	switch claim.Kind {
	case model.ClaimKindPrice:
		return verifyAmount(keyOr(key, "price"), claim.Value, offer.Price, offer)
	case model.ClaimKindOriginalPrice:
		return verifyAmount(keyOr(key, "original price"), claim.Value, offer.OriginalPrice, offer)
	case model.ClaimKindAvailability:
		return verifyAvailability(claim.Value, offer)
	}

	switch key {
	case "price":
		return verifyAmount(key, claim.Value, offer.Price, offer)
	case "original price", "original_price", "list price", "was":
		return verifyAmount("original price", claim.Value, offer.OriginalPrice, offer)
	case "rating":
		return verifyRating(claim.Value, offer)
	case "store", "retailer", "seller":
		return verifyField("store", claim.Value, offer.Store, "store", offer)
	case "name", "title", "product":
		return verifyField("name", claim.Value, offer.Title, "title", offer)
	case "tier":
		return verifyTier(claim.Value, offer)
	case "availability", "stock", "in stock":
		return verifyAvailability(claim.Value, offer)
	}
	return verifyAttribute(key, claim.Value, offer)
}

func keyOr(key, def string) string {
	if key == "" {
		return def
	}
	return key
}

func verified(key, value string, offer *model.Offer) model.VerifiedClaim {
	return model.VerifiedClaim{
		Key:       key,
		Text:      fmt.Sprintf("%s: %s", key, value),
		Status:    model.StatusVerified,
		SourceURL: offer.URL,
	}
}

func inferred(key, value, rule string) model.VerifiedClaim {
	return model.VerifiedClaim{
		Key:    key,
		Text:   fmt.Sprintf("%s: %s", key, value),
		Status: model.StatusInferred,
		Rule:   rule,
	}
}

// Unknown is the blocked form of a claim: its value is replaced, never dropped
func Unknown(key string) model.VerifiedClaim {
	return model.VerifiedClaim{
		Key:    key,
		Text:   fmt.Sprintf("%s: %s", key, NotSpecified),
		Status: model.StatusUnknown,
	}
}

// verifyAmount requires the stated number to equal the source amount exactly
func verifyAmount(key, stated string, actual *decimal.Decimal, offer *model.Offer) model.VerifiedClaim {
	if actual == nil {
		return Unknown(key)
	}
	shown := "$" + actual.StringFixed(2)
	if strings.TrimSpace(stated) == "" {
		return verified(key, shown, offer)
	}
	d, ok := parseAmount(stated)
	if !ok || !d.Equal(*actual) {
		return Unknown(key)
	}
	return verified(key, shown, offer)
}

func verifyRating(stated string, offer *model.Offer) model.VerifiedClaim {
	if offer.Rating == nil {
		return Unknown("rating")
	}
	shown := strconv.FormatFloat(*offer.Rating, 'f', -1, 64) + "/5"
	if strings.TrimSpace(stated) == "" {
		return verified("rating", shown, offer)
	}
	m := numberPattern.FindString(stated)
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v != *offer.Rating {
		return Unknown("rating")
	}
	return verified("rating", shown, offer)
}

// verifyField checks a scalar offer field, honoring its inference rule
func verifyField(key, stated, actual, field string, offer *model.Offer) model.VerifiedClaim {
	if actual == "" {
		return Unknown(key)
	}
	if stated != "" && !sameText(stated, actual) {
		return Unknown(key)
	}
	if rule, ok := offer.InferenceRule(field); ok {
		return inferred(key, actual, rule)
	}
	return verified(key, actual, offer)
}

func verifyTier(stated string, offer *model.Offer) model.VerifiedClaim {
	m := tierMarker.FindString(offer.Title)
	if m == "" {
		return Unknown("tier")
	}
	value := "premium (" + m + " model)"
	if stated != "" && !strings.Contains(strings.ToLower(stated), "premium") &&
		!strings.EqualFold(strings.TrimSpace(stated), m) {
		return Unknown("tier")
	}
	return inferred("tier", value, RuleTierFromTitle)
}

// Stock indicators. Out-of-stock wording is checked first since it
// contains the in-stock words.
var (
	outOfStockWords = []string{"out of stock", "sold out", "unavailable", "not available"}
	inStockWords    = []string{"in stock", "available", "ships", "delivery"}
)

// Availability values
const (
	InStock    = "in stock"
	OutOfStock = "out of stock"
)

// verifyAvailability is verified only when the listing text carries a stock
// indicator, quoted as evidence
func verifyAvailability(stated string, offer *model.Offer) model.VerifiedClaim {
	status, quote := stockStatus(offer)
	if status == "" {
		return Unknown("availability")
	}
	if s := strings.ToLower(strings.TrimSpace(stated)); s != "" {
		wantsOut := strings.Contains(s, "out") || strings.Contains(s, "sold") || strings.Contains(s, "unavailable") || strings.Contains(s, "not")
		if wantsOut != (status == OutOfStock) {
			return Unknown("availability")
		}
	}
	return verified("availability", fmt.Sprintf("%s (%q)", status, quote), offer)
}

func stockStatus(offer *model.Offer) (string, string) {
	lower := make(map[string]string, len(offer.SourceSnippet))
	for k, v := range offer.SourceSnippet {
		if k != "url" {
			lower[k] = strings.ToLower(v)
		}
	}
	find := func(words []string) (string, bool) {
		for _, w := range words {
			for _, text := range lower {
				if wordIn(text, w) {
					return Excerpt(offer.SourceSnippet, w)
				}
			}
		}
		return "", false
	}
	if quote, ok := find(outOfStockWords); ok {
		return OutOfStock, quote
	}
	if quote, ok := find(inStockWords); ok {
		return InStock, quote
	}
	return "", ""
}

// verifyAttribute checks the attribute map first, then the raw source text
func verifyAttribute(key, stated string, offer *model.Offer) model.VerifiedClaim {
	if key == "" {
		return Unknown("claim")
	}

	attrKey := strings.ReplaceAll(key, " ", "_")
	if actual, ok := offer.Attribute(attrKey); ok {
		if stated != "" && !sameText(stated, actual) {
			return Unknown(key)
		}
		if rule, ok := offer.InferenceRule("attributes." + attrKey); ok {
			return inferred(key, actual, rule)
		}
		return verified(key, actual, offer)
	}

	if rule, ok := offer.InferenceRule(attrKey); ok && stated == "" {
		return inferred(key, "see listing", rule)
	}

	quote, ok := Excerpt(offer.SourceSnippet, key)
	if !ok {
		return Unknown(key)
	}
	if stated != "" && !strings.Contains(strings.ToLower(quote), strings.ToLower(strings.TrimSpace(stated))) {
		return Unknown(key)
	}
	return verified(key, fmt.Sprintf("%q", quote), offer)
}

// sameText compares case-insensitively, allowing either to contain the other
func sameText(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

var (
	amountText    = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]+)?`)
	numberPattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
)

func parseAmount(s string) (decimal.Decimal, bool) {
	m := amountText.FindString(s)
	if m == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

const excerptRadius = 60

// Excerpt returns the verbatim source text around the first mention of
// key, searching snippet fields in a fixed order
func Excerpt(snippet map[string]string, key string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(key))
	if needle == "" {
		return "", false
	}

	fields := make([]string, 0, len(snippet))
	for k := range snippet {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	pattern := regexp.MustCompile("(?i)" + regexp.QuoteMeta(needle))
	for _, f := range fields {
		if f == "url" {
			continue
		}
		text := snippet[f]
		loc := pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		start := loc[0] - excerptRadius
		if start < 0 {
			start = 0
		}
		end := loc[1] + excerptRadius
		if end > len(text) {
			end = len(text)
		}
		return strings.TrimSpace(strings.ToValidUTF8(text[start:end], "")), true
	}
	return "", false
}
