package model

import "time"

// ResultSet is the numbered, ranked output of one search turn
type ResultSet struct {
	Query            string    `json:"query"`
	SessionID        string    `json:"session_id"`
	Category         string    `json:"category"`
	FetchedAt        time.Time `json:"fetched_at"`
	Offers           []Offer   `json:"offers"`
	IsPriceSensitive bool      `json:"is_price_sensitive"`
	Warning          string    `json:"warning,omitempty"`
	FromCache        bool      `json:"from_cache"`
}

// BySequence returns the offer numbered n, or nil
func (rs *ResultSet) BySequence(n int) *Offer {
	for i := range rs.Offers {
		if rs.Offers[i].SequenceNumber == n {
			return &rs.Offers[i]
		}
	}
	return nil
}

// CacheEntry is the record bundle stored under a fingerprint
type CacheEntry struct {
	Query            string    `json:"query"`
	Offers           []Offer   `json:"offers"`
	Category         string    `json:"category"`
	IsPriceSensitive bool      `json:"is_price_sensitive"`
	CachedAt         time.Time `json:"cached_at"`
	TTLSeconds       int64     `json:"ttl_seconds"` // as assigned at write time
}

// Age returns how old the entry is relative to now
func (e *CacheEntry) Age(now time.Time) time.Duration {
	age := now.Sub(e.CachedAt)
	if age < 0 {
		return 0
	}
	return age
}
