package freshness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ppiankov/dealcore/internal/model"
)

func newTestPolicy() *Policy {
	return NewPolicy(model.DefaultConfig().Freshness)
}

func TestDecide_Buckets(t *testing.T) {
	p := newTestPolicy()

	tests := []struct {
		name      string
		age       time.Duration
		category  string
		sensitive bool
		action    Action
		level     Level
	}{
		{"electronics fresh", 1 * time.Hour, CategoryElectronics, false, ActionUse, LevelFresh},
		{"electronics good", 3 * time.Hour, CategoryElectronics, false, ActionUse, LevelGood},
		{"electronics stale", 5 * time.Hour, CategoryElectronics, false, ActionWarn, LevelStale},
		{"books good at 20h", 20 * time.Hour, CategoryBooks, false, ActionUse, LevelGood},
		{"default fresh", 11 * time.Hour, CategoryDefault, false, ActionUse, LevelFresh},
		{"unknown category uses default", 13 * time.Hour, "garden", false, ActionUse, LevelGood},
		{"price sensitive books stale", 5 * time.Hour, CategoryBooks, true, ActionWarn, LevelStale},
		{"exactly max age", 24 * time.Hour, CategoryBooks, false, ActionRefresh, LevelExpired},
		{"over max age", 30 * time.Hour, CategoryElectronics, false, ActionRefresh, LevelExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Decide(tt.age, tt.category, tt.sensitive)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.level, d.Level)
		})
	}
}

func TestDecide_NeverUsesPastCeiling(t *testing.T) {
	p := newTestPolicy()
	categories := []string{
		CategoryElectronics, CategoryGaming, CategorySoftware, CategoryFashion,
		CategoryHome, CategorySports, CategoryBooks, CategoryDefault, "unlisted",
	}
	for _, c := range categories {
		for _, sensitive := range []bool{false, true} {
			for age := 24*time.Hour + time.Second; age < 72*time.Hour; age += 97 * time.Minute {
				d := p.Decide(age, c, sensitive)
				if d.Action != ActionRefresh {
					t.Fatalf("category=%s sensitive=%v age=%v: got %s, want refresh", c, sensitive, age, d.Action)
				}
			}
		}
	}
}

func TestEffectiveThreshold_PriceSensitiveCapped(t *testing.T) {
	p := newTestPolicy()
	for _, c := range []string{CategoryElectronics, CategoryGaming, CategorySoftware, CategoryFashion,
		CategoryHome, CategorySports, CategoryBooks, CategoryDefault, "other"} {
		assert.LessOrEqual(t, p.EffectiveThreshold(c, true), 4*time.Hour, c)
	}
	assert.Equal(t, 8*time.Hour, p.EffectiveThreshold(CategoryGaming, false))
}

func TestDecide_TTLMatchesThreshold(t *testing.T) {
	p := newTestPolicy()
	d := p.Decide(0, CategoryFashion, false)
	assert.Equal(t, 12*time.Hour, d.TTL)
	assert.Equal(t, p.TTLFor(CategoryFashion, false), d.TTL)
}

func TestDecide_Deterministic(t *testing.T) {
	p := newTestPolicy()
	first := p.Decide(5*time.Hour, CategoryElectronics, false)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, p.Decide(5*time.Hour, CategoryElectronics, false))
	}
}

func TestDecide_WarnCarriesMessage(t *testing.T) {
	d := newTestPolicy().Decide(5*time.Hour, CategoryElectronics, false)
	assert.Equal(t, "Deals are 5 hours old; prices may have changed", d.Message)
}

func TestDetectCategory(t *testing.T) {
	tests := map[string]string{
		"iPhone 15":                   CategoryElectronics,
		"cheap gaming laptop":         CategoryElectronics,
		"Nintendo Switch OLED":        CategoryGaming,
		"adobe photoshop license":     CategorySoftware,
		"running shoes":               CategoryFashion,
		"kitchen table":               CategoryHome,
		"road bike":                   CategorySports,
		"hardcover cookbook":          CategoryBooks,
		"garden hose":                 CategoryDefault,
		"headphone stand for the TVs": CategoryElectronics,
	}
	for q, want := range tests {
		assert.Equal(t, want, DetectCategory(q), q)
	}
}

func TestIsPriceSensitive(t *testing.T) {
	p := newTestPolicy()
	assert.True(t, p.IsPriceSensitive("cheapest airpods"))
	assert.True(t, p.IsPriceSensitive("Best Deal on TVs"))
	assert.True(t, p.IsPriceSensitive("clearance sneakers"))
	assert.False(t, p.IsPriceSensitive("wholesale lumber"))
	assert.False(t, p.IsPriceSensitive("iphone 15"))

	custom := NewPolicy(model.FreshnessConfig{PriceSensitiveKeywords: []string{"steal"}})
	assert.True(t, custom.IsPriceSensitive("what a steal"))
	assert.False(t, custom.IsPriceSensitive("cheapest"))
}
