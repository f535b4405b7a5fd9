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

// SpecKeywords are the product specs a narrative may only mention when the
// source does
var SpecKeywords = []string{
	"storage", "ram", "memory", "processor", "cpu", "gpu", "screen",
	"display", "battery", "camera", "weight", "dimensions", "warranty",
}

// questionKeys maps question wording to the claim checked for it
var questionKeys = []struct {
	pattern *regexp.Regexp
	claim   model.Claim
}{
	{regexp.MustCompile(`(?i)\b(?:price|cost|how much)\b`), model.Claim{Kind: model.ClaimKindPrice, Key: "price"}},
	{regexp.MustCompile(`(?i)\b(?:was|original|list price|before|discount|saving)`), model.Claim{Kind: model.ClaimKindOriginalPrice, Key: "original price"}},
	{regexp.MustCompile(`(?i)\b(?:rating|rated|reviews?|stars?)\b`), model.Claim{Kind: model.ClaimKindAttribute, Key: "rating"}},
	{regexp.MustCompile(`(?i)\b(?:colou?rs?)\b`), model.Claim{Kind: model.ClaimKindAttribute, Key: model.AttrColor}},
	{regexp.MustCompile(`(?i)\b(?:condition|refurbished|used|new)\b`), model.Claim{Kind: model.ClaimKindAttribute, Key: model.AttrCondition}},
	{regexp.MustCompile(`(?i)\b(?:store|retailer|seller|where)\b`), model.Claim{Kind: model.ClaimKindAttribute, Key: "store"}},
	{regexp.MustCompile(`(?i)\b(?:in stock|stock|available|availability|sold out|ships?|shipping|deliver(?:y|s)?)\b`), model.Claim{Kind: model.ClaimKindAvailability, Key: "availability"}},
}

// ClaimsFromQuestion lists the claims a follow-up question asks about, in
// a stable order without duplicates
func ClaimsFromQuestion(question string) []model.Claim {
	var claims []model.Claim
	seen := make(map[string]bool)
	add := func(c model.Claim) {
		if seen[c.Key] {
			return
		}
		seen[c.Key] = true
		c.Text = question
		claims = append(claims, c)
	}

	for _, q := range questionKeys {
		if q.pattern.MatchString(question) {
			add(q.claim)
		}
	}
	lower := strings.ToLower(question)
	for _, kw := range SpecKeywords {
		if wordIn(lower, kw) {
			add(model.Claim{Kind: model.ClaimKindAttribute, Key: kw})
		}
	}
	return claims
}

var claimSplit = regexp.MustCompile(`^\s*([^:=]+?)\s*[:=]\s*(.+?)\s*$`)

// ParseClaim reads "key: value" text into a claim. Text without a
// separator becomes a bare attribute key.
func ParseClaim(text string) model.Claim {
	key, value := strings.TrimSpace(text), ""
	if m := claimSplit.FindStringSubmatch(text); m != nil {
		key, value = m[1], m[2]
	}
	key = strings.ToLower(key)

	kind := model.ClaimKindAttribute
	switch key {
	case "price", "current price", "sale price":
		kind, key = model.ClaimKindPrice, "price"
	case "original price", "original_price", "list price", "was", "msrp":
		kind, key = model.ClaimKindOriginalPrice, "original price"
	}
	return model.Claim{Kind: kind, Key: key, Value: value, Text: text}
}

// FactSheet lists everything the source says about offer, each claim
// classified. Missing price and store show as unknown rather than omitted.
func FactSheet(offer *model.Offer) []model.VerifiedClaim {
	sheet := []model.VerifiedClaim{
		VerifyClaim(model.Claim{Kind: model.ClaimKindPrice, Key: "price"}, offer),
	}
	if offer.OriginalPrice != nil {
		sheet = append(sheet, VerifyClaim(model.Claim{Kind: model.ClaimKindOriginalPrice, Key: "original price"}, offer))
	}
	sheet = append(sheet, VerifyClaim(model.Claim{Kind: model.ClaimKindAttribute, Key: "store"}, offer))
	if offer.Rating != nil {
		sheet = append(sheet, VerifyClaim(model.Claim{Kind: model.ClaimKindAttribute, Key: "rating"}, offer))
	}
	if stock := VerifyClaim(model.Claim{Kind: model.ClaimKindAvailability, Key: "availability"}, offer); stock.Status != model.StatusUnknown {
		sheet = append(sheet, stock)
	}

	keys := make([]string, 0, len(offer.Attributes))
	for k := range offer.Attributes {
		if k == model.AttrStore {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sheet = append(sheet, VerifyClaim(model.Claim{Kind: model.ClaimKindAttribute, Key: k}, offer))
	}

	if tier := VerifyClaim(model.Claim{Kind: model.ClaimKindAttribute, Key: "tier"}, offer); tier.Status != model.StatusUnknown {
		sheet = append(sheet, tier)
	}
	return sheet
}

// Assemble renders verified claims as answer lines. It refuses the whole
// answer when any claim lacks a status or a verified claim lacks a source.
func Assemble(claims []model.VerifiedClaim) (string, error) {
	var b strings.Builder
	for i, c := range claims {
		switch c.Status {
		case model.StatusVerified:
			if c.SourceURL == "" {
				return "", fmt.Errorf("%w: %q verified without a source", model.ErrHallucinationBlocked, c.Key)
			}
		case model.StatusInferred, model.StatusUnknown:
		default:
			return "", fmt.Errorf("%w: %q has no verification status", model.ErrHallucinationBlocked, c.Key)
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(RenderClaim(c))
	}
	return b.String(), nil
}

// RenderClaim formats one claim with its marker and provenance
func RenderClaim(c model.VerifiedClaim) string {
	switch c.Status {
	case model.StatusVerified:
		return fmt.Sprintf("%s %s (source: %s)", c.Status.Marker(), c.Text, c.SourceURL)
	case model.StatusInferred:
		return fmt.Sprintf("%s %s (inferred: %s)", c.Status.Marker(), c.Text, c.Rule)
	default:
		return fmt.Sprintf("%s %s: %s", c.Status.Marker(), c.Key, NotSpecified)
	}
}

// Issue is a statement in generated text that the source does not support
type Issue struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Issue kinds
const (
	IssuePrice  = "unverified_price"
	IssueNumber = "unverified_number"
	IssueSpec   = "unverified_spec"
	IssueTerm   = "unverified_term"
)

// NarrativeMarker heads model prose, which is never itself verified
const NarrativeMarker = "⚠️ summary (not verified):"

// RenderNarrative formats model prose under its marker
func RenderNarrative(text string) string {
	return NarrativeMarker + " " + text
}

var (
	dollarAmount = regexp.MustCompile(`\$\s*[0-9][0-9,]*(?:\.[0-9]{1,2})?`)
	listingRef   = regexp.MustCompile(`#\s*[0-9]+`)
	numberToken  = regexp.MustCompile(`\b[0-9]+(?:[.,][0-9]+)*[A-Za-z+]*`)
	wordToken    = regexp.MustCompile(`\b[A-Za-z][A-Za-z0-9+]*`)
)

// CheckText scans generated text for anything the source does not state:
// prices that differ from the offer, numbers and units, spec mentions and
// product terms absent from the listing
func CheckText(text string, offer *model.Offer) []Issue {
	var issues []Issue

	for _, m := range dollarAmount.FindAllString(text, -1) {
		d, ok := parseAmount(m)
		if !ok {
			continue
		}
		if (offer.Price != nil && d.Equal(*offer.Price)) ||
			(offer.OriginalPrice != nil && d.Equal(*offer.OriginalPrice)) {
			continue
		}
		issues = append(issues, Issue{Kind: IssuePrice, Detail: strings.TrimSpace(m)})
	}

	source := sourceText(offer)
	rest := listingRef.ReplaceAllString(dollarAmount.ReplaceAllString(text, " "), " ")
	seen := make(map[string]bool)
	for _, tok := range numberToken.FindAllString(rest, -1) {
		tok = strings.TrimRight(tok, ".,")
		low := strings.ToLower(tok)
		if seen[low] || wordIn(source, low) {
			continue
		}
		seen[low] = true
		issues = append(issues, Issue{Kind: IssueNumber, Detail: tok})
	}

	lower := strings.ToLower(text)
	for _, kw := range SpecKeywords {
		if !wordIn(lower, kw) {
			continue
		}
		if _, ok := offer.Attribute(kw); ok {
			continue
		}
		if _, ok := Excerpt(offer.SourceSnippet, kw); ok {
			continue
		}
		issues = append(issues, Issue{Kind: IssueSpec, Detail: kw})
	}

	for _, loc := range wordToken.FindAllStringIndex(rest, -1) {
		tok := rest[loc[0]:loc[1]]
		if !isProductTerm(tok, sentenceStart(rest, loc[0])) {
			continue
		}
		low := strings.ToLower(tok)
		if seen[low] || wordIn(source, low) {
			continue
		}
		seen[low] = true
		issues = append(issues, Issue{Kind: IssueTerm, Detail: tok})
	}
	return issues
}

// isProductTerm reports whether a word reads as a name: capitalized
// mid-sentence, or carrying an inner capital or digit anywhere
func isProductTerm(word string, atSentenceStart bool) bool {
	if word == "I" {
		return false
	}
	for i, r := range word {
		if i > 0 && (r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return true
		}
	}
	return !atSentenceStart && word[0] >= 'A' && word[0] <= 'Z'
}

func sentenceStart(text string, i int) bool {
	for i > 0 {
		i--
		switch text[i] {
		case ' ', '\t', '"', '\'', '(':
			continue
		case '.', '!', '?', ':', '\n':
			return true
		default:
			return false
		}
	}
	return true
}

// sourceText is everything the listing states, lower-cased
func sourceText(offer *model.Offer) string {
	parts := []string{offer.Title, offer.CleanName, offer.Store}
	for k, v := range offer.Attributes {
		parts = append(parts, k, v)
	}
	for k, v := range offer.SourceSnippet {
		if k != "url" {
			parts = append(parts, v)
		}
	}
	for _, d := range []*decimal.Decimal{offer.Price, offer.OriginalPrice} {
		if d != nil {
			parts = append(parts, d.String(), d.StringFixed(2))
		}
	}
	if offer.Rating != nil {
		parts = append(parts, strconv.FormatFloat(*offer.Rating, 'f', -1, 64)+"/5")
	}
	return strings.ToLower(strings.Join(parts, "\n"))
}

// wordIn reports whether word occurs in lower-cased text on word boundaries
func wordIn(text, word string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], word)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(word)
		if (start == 0 || !isWordByte(text[start-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z'
}
