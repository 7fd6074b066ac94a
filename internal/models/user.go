// Package models provides data models for the dashboard backend.
package models

import (
	"time"
)

// User represents a dashboard user. Users are created lazily on the first
// portfolio, transaction or swap request keyed by wallet address.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	WalletAddress *string   `json:"walletAddress,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}
