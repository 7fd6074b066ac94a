package models

import (
	"time"

	"github.com/defi-dashboard/internal/types"
)

// Transaction represents a simulated swap or spot trade. Once created it is
// immutable except for status/hash/timestamp transitions.
type Transaction struct {
	ID          int64                   `json:"id"`
	UserID      string                  `json:"userId"`
	Kind        types.TransactionKind   `json:"kind"`
	Status      types.TransactionStatus `json:"status"`
	FromTokenID string                  `json:"fromTokenId"`
	ToTokenID   string                  `json:"toTokenId"`
	FromAmount  string                  `json:"fromAmount"`
	ToAmount    string                  `json:"toAmount"`
	Price       string                  `json:"price"`
	TxHash      *string                 `json:"txHash,omitempty"`
	NetworkFee  string                  `json:"networkFee"`
	Metadata    map[string]string       `json:"metadata,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}
