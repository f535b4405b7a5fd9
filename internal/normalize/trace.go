package normalize

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ppiankov/dealcore/internal/model"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Trace returns the populated fields of o that can neither be located in
// its source snippet nor carry an inference rule. An empty result means
// the offer is fully grounded.
func Trace(o model.Offer) []string {
	h := newHaystack(o.SourceSnippet)
	var bad []string

	check := func(field, value string) {
		if value == "" {
			return
		}
		if _, ok := o.InferenceRule(field); ok {
			return
		}
		if !h.contains(value) {
			bad = append(bad, field)
		}
	}

	check("title", o.Title)
	check("url", o.URL)
	check("store", o.Store)
	check("currency", o.Currency)

	if o.CleanName != "" {
		for _, w := range wordPattern.FindAllString(o.CleanName, -1) {
			if !h.contains(w) {
				bad = append(bad, "clean_name")
				break
			}
		}
	}
	if o.Price != nil && !h.containsAmount(*o.Price) {
		if _, ok := o.InferenceRule("price"); !ok {
			bad = append(bad, "price")
		}
	}
	if o.OriginalPrice != nil && !h.containsAmount(*o.OriginalPrice) {
		if _, ok := o.InferenceRule("original_price"); !ok {
			bad = append(bad, "original_price")
		}
	}
	if o.Rating != nil {
		check("rating", strconv.FormatFloat(*o.Rating, 'f', -1, 64))
	}

	keys := make([]string, 0, len(o.Attributes))
	for k := range o.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		check("attributes."+k, o.Attributes[k])
	}

	return bad
}

type haystack struct {
	text    string // lower-cased source text
	compact string // lower-cased with spaces, commas and dollar signs removed
}

func newHaystack(snippet map[string]string) haystack {
	keys := make([]string, 0, len(snippet))
	for k := range snippet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := snippet[k]
		b.WriteString(v)
		b.WriteString(" \n ")
		if k == "content" {
			b.WriteString(visibleText(v))
			b.WriteString(" \n ")
		}
	}
	text := strings.ToLower(b.String())
	compact := strings.NewReplacer(" ", "", ",", "", "$", "", "\n", "").Replace(text)
	return haystack{text: text, compact: compact}
}

func (h haystack) contains(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return true
	}
	if strings.Contains(h.text, v) {
		return true
	}
	return strings.Contains(h.compact, strings.NewReplacer(" ", "", ",", "", "$", "").Replace(v))
}

func (h haystack) containsAmount(d decimal.Decimal) bool {
	return strings.Contains(h.compact, d.String())
}
