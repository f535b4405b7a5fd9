package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	amountPattern   = regexp.MustCompile(`\$\s?([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	labelledPrice   = regexp.MustCompile(`(?i)\b(?:price[:\s]+\$?|(?:now|sale)[:\s]+\$)\s?([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	originalPattern = regexp.MustCompile(`(?i)\b(?:was|list price|msrp|reg\.?|originally)[:\s]+\$\s?([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	bareNumber      = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]+)?`)

	ratingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b([0-5](?:\.[0-9])?)\s*out of\s*5\b`),
		regexp.MustCompile(`(?i)\brating[:\s]+([0-5](?:\.[0-9])?)\b`),
		regexp.MustCompile(`(?i)\b([0-5](?:\.[0-9])?)\s*stars?\b`),
		regexp.MustCompile(`\b([0-5](?:\.[0-9])?)\s*/\s*5\b`),
	}

	discountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b[0-9]{1,2}%\s*off\b`),
		regexp.MustCompile(`(?i)\bsave\s*\$[0-9][0-9,]*(?:\.[0-9]{1,2})?`),
		regexp.MustCompile(`(?i)\bdiscount[:\s]+[0-9]{1,2}%`),
	}

	storagePattern   = regexp.MustCompile(`(?i)\b([0-9]+)\s?(gb|tb)\b`)
	conditionPattern = regexp.MustCompile(`(?i)\b(refurbished|renewed|pre-owned|used|open[- ]box)\b`)
	colorPattern     = regexp.MustCompile(`(?i)\b(black|white|silver|gold|rose gold|rose|blue|red|green|pink|purple|yellow|titanium|gray|grey|bronze|midnight|starlight)\b`)

	trailingParens = regexp.MustCompile(`\s*\([^()]*\)\s*$`)
	emptyParens    = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
	storeAffix     = regexp.MustCompile(`(?i)(^\s*(?:amazon\.com|amazon|best buy|walmart(?:\.com)?|target|ebay|newegg)\s*[:|-]\s*)|(\s*[:|-]\s*(?:amazon\.com|amazon|best buy|walmart(?:\.com)?|target|ebay|newegg)\s*$)`)
	separatorRun   = regexp.MustCompile(`\s*[,|/]\s*[,|/\s]*`)
)

// parseAmount turns "1,299.99" into a decimal
func parseAmount(s string) (*decimal.Decimal, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return nil, false
	}
	return &d, true
}

// priceField parses a provider price field such as "$1,299.99" or "USD 99"
func priceField(s string) (*decimal.Decimal, bool) {
	if m := amountPattern.FindStringSubmatch(s); m != nil {
		return parseAmount(m[1])
	}
	if m := bareNumber.FindString(s); m != "" {
		return parseAmount(m)
	}
	return nil, false
}

// priceFromText finds the current and original price in free text.
// The original price is taken from was/list/msrp wording and is never
// reused as the current price.
func priceFromText(text string) (current, original *decimal.Decimal) {
	var excluded [][]int
	if loc := originalPattern.FindStringSubmatchIndex(text); loc != nil {
		original, _ = parseAmount(text[loc[2]:loc[3]])
		excluded = append(excluded, loc[:2])
	}
	// "Save $70" is a discount, not a price
	for _, re := range discountPatterns {
		excluded = append(excluded, re.FindAllStringIndex(text, -1)...)
	}

	if loc := labelledPrice.FindStringSubmatchIndex(text); loc != nil && !within(loc[2], excluded) {
		if d, ok := parseAmount(text[loc[2]:loc[3]]); ok {
			return d, original
		}
	}

	for _, loc := range amountPattern.FindAllStringSubmatchIndex(text, -1) {
		if within(loc[0], excluded) {
			continue
		}
		if d, ok := parseAmount(text[loc[2]:loc[3]]); ok {
			return d, original
		}
	}
	return nil, original
}

func within(pos int, spans [][]int) bool {
	for _, span := range spans {
		if pos >= span[0] && pos < span[1] {
			return true
		}
	}
	return false
}

// ratingField parses "4.5", "4.5/5" or "4.5 stars"
func ratingField(s string) (*float64, bool) {
	if r, ok := ratingFromText(s); ok {
		return r, true
	}
	m := bareNumber.FindString(s)
	if m == "" {
		return nil, false
	}
	return boundedRating(m)
}

func ratingFromText(text string) (*float64, bool) {
	for _, re := range ratingPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if r, ok := boundedRating(m[1]); ok {
				return r, true
			}
		}
	}
	return nil, false
}

func boundedRating(s string) (*float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 5 {
		return nil, false
	}
	return &f, true
}

func discountFromText(text string) (string, bool) {
	for _, re := range discountPatterns {
		if m := re.FindString(text); m != "" {
			return strings.ToLower(strings.Join(strings.Fields(m), " ")), true
		}
	}
	return "", false
}

func storageFromText(text string) (string, bool) {
	m := storagePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1] + strings.ToUpper(m[2]), true
}

func conditionFromText(text string) (string, bool) {
	m := conditionPattern.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.ToLower(m), true
}

func colorFromText(text string) (string, bool) {
	m := colorPattern.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.ToLower(m), true
}

// priceTier buckets a price
func priceTier(p decimal.Decimal) string {
	switch {
	case p.LessThan(decimal.NewFromInt(100)):
		return "budget"
	case p.LessThan(decimal.NewFromInt(500)):
		return "mid-range"
	default:
		return "premium"
	}
}

// cleanName strips store affixes, trailing parentheses, and
// color/storage/condition tokens from a title
func cleanName(title string) string {
	name := storeAffix.ReplaceAllString(title, "")
	name = trailingParens.ReplaceAllString(name, "")
	name = storagePattern.ReplaceAllString(name, " ")
	name = conditionPattern.ReplaceAllString(name, " ")
	name = colorPattern.ReplaceAllString(name, " ")
	name = emptyParens.ReplaceAllString(name, " ")
	name = separatorRun.ReplaceAllString(name, " ")
	name = strings.Join(strings.Fields(name), " ")
	name = strings.Trim(name, " -:|,")
	if name == "" {
		return strings.TrimSpace(title)
	}
	return name
}
