// Package types defines shared types used across the dashboard backend.
package types

// TransactionKind identifies how a transaction was initiated.
type TransactionKind string

const (
	// KindSwap is a token-for-token exchange at an implied market rate
	KindSwap TransactionKind = "swap"
	// KindBuy is a spot buy of a token against a base token
	KindBuy TransactionKind = "buy"
	// KindSell is a spot sell of a token against a base token
	KindSell TransactionKind = "sell"
)

// IsValid reports whether the kind is one of the declared values.
func (k TransactionKind) IsValid() bool {
	switch k {
	case KindSwap, KindBuy, KindSell:
		return true
	}
	return false
}

// TransactionStatus represents the lifecycle state of a simulated transaction.
type TransactionStatus string

const (
	// StatusPending means the transaction was admitted but not yet settled
	StatusPending TransactionStatus = "pending"
	// StatusCompleted means settlement finished and balances were mutated
	StatusCompleted TransactionStatus = "completed"
	// StatusFailed means settlement was rejected and the reservation refunded
	StatusFailed TransactionStatus = "failed"
)

// Network tags the chain a token notionally lives on. Purely informational,
// nothing is ever submitted on-chain.
type Network string

const (
	NetworkEthereum Network = "ethereum"
	NetworkBitcoin  Network = "bitcoin"
	NetworkSolana   Network = "solana"
	NetworkPolygon  Network = "polygon"
	NetworkBNB      Network = "bnb"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
