package search

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var maxPricePattern = regexp.MustCompile(`(?i)(?:\b(?:under|below|less than|cheaper than|max(?:imum)?|up to)|<)\s*\$?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)\s*(k\b)?`)

// ParseMaxPrice extracts a price ceiling such as "under $500" or "below 1.5k"
func ParseMaxPrice(query string) *decimal.Decimal {
	m := maxPricePattern.FindStringSubmatch(query)
	if m == nil {
		return nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || !d.IsPositive() {
		return nil
	}
	if m[2] != "" {
		d = d.Mul(decimal.NewFromInt(1000))
	}
	return &d
}
