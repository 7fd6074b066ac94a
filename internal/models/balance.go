package models

import (
	"time"
)

// Balance represents a (user, token) holding. One row per pair, upsert
// semantics. Amounts are decimal strings, never negative as stored.
type Balance struct {
	UserID    string    `json:"userId"`
	TokenID   string    `json:"tokenId"`
	Amount    string    `json:"amount"`
	UpdatedAt time.Time `json:"updatedAt"`
}
