// Package freshness decides whether cached offers can be reused.
package freshness

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/dealcore/internal/model"
)

// Action is what the caller should do with a cached entry
type Action string

const (
	ActionUse     Action = "use"
	ActionWarn    Action = "warn"
	ActionRefresh Action = "refresh"
)

// Level is the qualitative freshness bucket
type Level string

const (
	LevelFresh   Level = "fresh"
	LevelGood    Level = "good"
	LevelStale   Level = "stale"
	LevelExpired Level = "expired"
)

// Category names
const (
	CategoryElectronics = "electronics"
	CategoryGaming      = "gaming"
	CategorySoftware    = "software"
	CategoryFashion     = "fashion"
	CategoryHome        = "home"
	CategorySports      = "sports"
	CategoryBooks       = "books"
	CategoryDefault     = "default"
)

// Decision is the outcome of Decide
type Decision struct {
	Action    Action
	Level     Level
	Threshold time.Duration // effective threshold the age was judged against
	TTL       time.Duration // TTL to assign on the next write
	Message   string        // human-readable age warning, set for ActionWarn
}

// Policy is the freshness decision function. It holds only configuration
// and never reads the clock.
type Policy struct {
	thresholds     map[string]time.Duration
	defaultTTL     time.Duration
	priceSensitive time.Duration
	maxAge         time.Duration
	keywords       []*regexp.Regexp
}

// NewPolicy builds a policy from config, filling unset values with defaults
func NewPolicy(cfg model.FreshnessConfig) *Policy {
	def := model.DefaultConfig().Freshness

	p := &Policy{
		thresholds:     make(map[string]time.Duration),
		defaultTTL:     cfg.DefaultThreshold,
		priceSensitive: cfg.PriceSensitiveThreshold,
		maxAge:         cfg.MaxAge,
	}
	if p.defaultTTL <= 0 {
		p.defaultTTL = def.DefaultThreshold
	}
	if p.priceSensitive <= 0 {
		p.priceSensitive = def.PriceSensitiveThreshold
	}
	if p.maxAge <= 0 {
		p.maxAge = def.MaxAge
	}

	thresholds := cfg.CategoryThresholds
	if len(thresholds) == 0 {
		thresholds = def.CategoryThresholds
	}
	for k, v := range thresholds {
		if v > 0 {
			p.thresholds[strings.ToLower(k)] = v
		}
	}

	keywords := cfg.PriceSensitiveKeywords
	if len(keywords) == 0 {
		keywords = def.PriceSensitiveKeywords
	}
	p.keywords = compileKeywords(keywords)

	return p
}

// EffectiveThreshold returns min(category threshold, price-sensitive threshold)
func (p *Policy) EffectiveThreshold(category string, isPriceSensitive bool) time.Duration {
	threshold, ok := p.thresholds[strings.ToLower(category)]
	if !ok {
		threshold = p.defaultTTL
	}
	if isPriceSensitive && p.priceSensitive < threshold {
		threshold = p.priceSensitive
	}
	return threshold
}

// TTLFor returns the TTL to assign when writing an entry
func (p *Policy) TTLFor(category string, isPriceSensitive bool) time.Duration {
	return p.EffectiveThreshold(category, isPriceSensitive)
}

// MaxAge returns the absolute reuse ceiling
func (p *Policy) MaxAge() time.Duration {
	return p.maxAge
}

// Decide classifies an entry of the given age
func (p *Policy) Decide(age time.Duration, category string, isPriceSensitive bool) Decision {
	threshold := p.EffectiveThreshold(category, isPriceSensitive)
	d := Decision{
		Threshold: threshold,
		TTL:       threshold,
	}

	switch {
	case age >= p.maxAge:
		d.Action, d.Level = ActionRefresh, LevelExpired
	case age < threshold/2:
		d.Action, d.Level = ActionUse, LevelFresh
	case age < threshold:
		d.Action, d.Level = ActionUse, LevelGood
	default:
		d.Action, d.Level = ActionWarn, LevelStale
		d.Message = AgeMessage(age)
	}
	return d
}

// IsPriceSensitive reports whether the query contains a price-sensitive keyword
func (p *Policy) IsPriceSensitive(query string) bool {
	q := strings.ToLower(query)
	for _, re := range p.keywords {
		if re.MatchString(q) {
			return true
		}
	}
	return false
}

// AgeMessage renders a staleness warning
func AgeMessage(age time.Duration) string {
	hours := int(age.Hours())
	if hours < 1 {
		return fmt.Sprintf("Deals are %d minutes old; prices may have changed", int(age.Minutes()))
	}
	if hours == 1 {
		return "Deals are 1 hour old; prices may have changed"
	}
	return fmt.Sprintf("Deals are %d hours old; prices may have changed", hours)
}

type categoryRule struct {
	name     string
	keywords []*regexp.Regexp
}

// categoryRules are checked in order; the first hit wins.
var categoryRules = []categoryRule{
	{CategoryElectronics, compileKeywords([]string{
		"iphone", "ipad", "macbook", "laptop", "computer", "tablet", "phone", "smartphone",
		"tv", "television", "camera", "headphones", "earbuds", "airpods",
		"monitor", "smartwatch",
	})},
	{CategoryGaming, compileKeywords([]string{
		"nintendo", "playstation", "xbox", "switch", "ps5", "game", "gaming", "console",
	})},
	{CategorySoftware, compileKeywords([]string{
		"software", "app", "license", "subscription", "microsoft office", "adobe", "antivirus",
	})},
	{CategoryFashion, compileKeywords([]string{
		"shoes", "sneakers", "clothing", "shirt", "pants", "dress", "jacket", "jeans", "hoodie",
	})},
	{CategoryHome, compileKeywords([]string{
		"furniture", "kitchen", "appliance", "bed", "chair", "table", "sofa", "vacuum", "mattress",
	})},
	{CategorySports, compileKeywords([]string{
		"sports", "fitness", "gym", "workout", "running", "bike", "treadmill", "dumbbell",
	})},
	{CategoryBooks, compileKeywords([]string{
		"book", "novel", "paperback", "hardcover", "kindle", "ebook", "textbook", "audiobook",
	})},
}

// DetectCategory classifies a query into a fixed category set
func DetectCategory(query string) string {
	q := strings.ToLower(query)
	for _, rule := range categoryRules {
		for _, re := range rule.keywords {
			if re.MatchString(q) {
				return rule.name
			}
		}
	}
	return CategoryDefault
}

// compileKeywords builds whole-word matchers that also accept simple plurals
func compileKeywords(keywords []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		if kw == "" {
			continue
		}
		out = append(out, regexp.MustCompile(`\b`+regexp.QuoteMeta(kw)+`(?:s|es)?\b`))
	}
	return out
}
