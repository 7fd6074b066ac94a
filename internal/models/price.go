package models

import (
	"time"
)

// PriceQuote represents a token's latest known price and auxiliary market
// statistics. Upserted whenever a fresh quote is fetched; callers fall back
// to the last stored value when the upstream is unavailable.
type PriceQuote struct {
	TokenID           string    `json:"tokenId"`
	Symbol            string    `json:"symbol"`
	Price             string    `json:"price"`
	Change24h         string    `json:"priceChange24h"`
	Volume24h         *string   `json:"volume24h,omitempty"`
	MarketCap         *string   `json:"marketCap,omitempty"`
	Rank              *int      `json:"rank,omitempty"`
	CirculatingSupply *string   `json:"circulatingSupply,omitempty"`
	ATH               *string   `json:"ath,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Fresh reports whether the quote was updated within the given window.
func (q *PriceQuote) Fresh(window time.Duration, now time.Time) bool {
	return now.Sub(q.UpdatedAt) < window
}
