// Package normalize turns raw provider records into canonical offers.
// Every populated field is either read from the record or carries a
// disclosed inference rule in Offer.Inferred.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/ppiankov/dealcore/internal/model"
)

// Inference rules recorded on offers
const (
	RuleStoreFromHost   = "derived from url host"
	RulePriceTier       = "bucketed from price: under $100 budget, under $500 mid-range, otherwise premium"
	RuleCurrencyFromSym = "dollar sign in source"
)

// OfferID returns the stable identity of a listing
func OfferID(title, rawURL string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(title) + "\x00" + strings.TrimSpace(rawURL)))
	return hex.EncodeToString(hash[:8])
}

// Normalize parses a raw record into an Offer numbered seq
func Normalize(raw model.RawRecord, seq int) model.Offer {
	title := strings.TrimSpace(raw.Title)
	offer := model.Offer{
		SequenceNumber: seq,
		ID:             OfferID(raw.Title, raw.URL),
		Title:          title,
		CleanName:      cleanName(title),
		URL:            strings.TrimSpace(raw.URL),
		SourceSnippet:  raw.Snippet(),
		Attributes:     make(map[string]string),
	}

	content := visibleText(raw.Content)
	text := title + " " + content

	// Price: explicit fields first, then content wording
	if p, ok := priceField(raw.Price); ok {
		offer.Price = p
	}
	if p, ok := priceField(raw.OriginalPrice); ok {
		offer.OriginalPrice = p
	}
	if offer.Price == nil || offer.OriginalPrice == nil {
		current, original := priceFromText(content)
		if offer.Price == nil {
			offer.Price = current
		}
		if offer.OriginalPrice == nil {
			offer.OriginalPrice = original
		}
	}
	if offer.Price != nil && strings.Contains(raw.Price+" "+content, "$") {
		offer.Currency = "USD"
		offer.MarkInferred("currency", RuleCurrencyFromSym)
	}

	if r, ok := ratingField(raw.Rating); ok {
		offer.Rating = r
	} else if r, ok := ratingFromText(content); ok {
		offer.Rating = r
	}

	if s := strings.TrimSpace(raw.Store); s != "" {
		offer.Store = s
	} else if s := storeFromURL(offer.URL); s != "" {
		offer.Store = s
		offer.MarkInferred("store", RuleStoreFromHost)
	}

	// Variant tokens come from the title only so that lists of other
	// variants in the description do not leak into this offer.
	if v, ok := colorFromText(title); ok {
		offer.Attributes[model.AttrColor] = v
	}
	if v, ok := storageFromText(title); ok {
		offer.Attributes[model.AttrStorage] = v
	}
	if v, ok := conditionFromText(title); ok {
		offer.Attributes[model.AttrCondition] = v
	}
	if v, ok := discountFromText(text); ok {
		offer.Attributes[model.AttrDiscount] = v
	}
	if offer.Price != nil {
		offer.Attributes[model.AttrPriceTier] = priceTier(*offer.Price)
		offer.MarkInferred("attributes."+model.AttrPriceTier, RulePriceTier)
	}
	if offer.Store != "" {
		offer.Attributes[model.AttrStore] = offer.Store
		if rule, ok := offer.InferenceRule("store"); ok {
			offer.MarkInferred("attributes."+model.AttrStore, rule)
		}
	}

	return offer
}

// NormalizeAll normalizes records in provider order, numbering from 1
func NormalizeAll(records []model.RawRecord) []model.Offer {
	offers := make([]model.Offer, 0, len(records))
	for i, raw := range records {
		if strings.TrimSpace(raw.Title) == "" && strings.TrimSpace(raw.URL) == "" {
			continue
		}
		offer := Normalize(raw, len(offers)+1)
		offer.Position = i
		offers = append(offers, offer)
	}
	return offers
}
