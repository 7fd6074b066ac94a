// Package errors provides categorized errors for the dashboard backend.
// Every error carries a stable code that the API layer maps to an HTTP status.
package errors

import (
	"fmt"
	"net/http"

	"github.com/defi-dashboard/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryLedger represents ledger bookkeeping errors
	CategoryLedger ErrorCategory = "ledger"
	// CategoryUpstream represents price-feed errors
	CategoryUpstream ErrorCategory = "upstream"
	// CategorySystem represents internal errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// Stable error codes surfaced to API clients.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeTokenNotFound       = "TOKEN_NOT_FOUND"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeTransactionNotFound = "TRANSACTION_NOT_FOUND"
	CodePriceUnavailable    = "PRICE_UNAVAILABLE"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeUpstreamRateLimited = "UPSTREAM_RATE_LIMITED"
	CodeUpstreamError       = "UPSTREAM_ERROR"
	CodeInternalError       = "INTERNAL_ERROR"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError for the wire.
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewInvalidInputError creates an invalid input error.
func NewInvalidInputError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidInput,
		Message:    message,
	}
}

// NewTokenNotFoundError creates an unknown token error.
func NewTokenNotFoundError(tokenID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeTokenNotFound,
		Message:    fmt.Sprintf("token not found: %s", tokenID),
		Details: map[string]interface{}{
			"tokenId": tokenID,
		},
	}
}

// NewUserNotFoundError creates an unknown wallet error.
func NewUserNotFoundError(walletAddress string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeUserNotFound,
		Message:    fmt.Sprintf("no user for wallet: %s", walletAddress),
		Details: map[string]interface{}{
			"walletAddress": walletAddress,
		},
	}
}

// NewTransactionNotFoundError creates an unknown transaction error.
func NewTransactionNotFoundError(id int64) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeTransactionNotFound,
		Message:    fmt.Sprintf("transaction not found: %d", id),
	}
}

// NewPriceUnavailableError indicates no live or stored quote exists for a token.
func NewPriceUnavailableError(symbol string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodePriceUnavailable,
		Message:    fmt.Sprintf("no price available for %s", symbol),
		Details: map[string]interface{}{
			"symbol": symbol,
		},
	}
}

// NewInsufficientBalanceError indicates a debit exceeding the stored balance.
func NewInsufficientBalanceError(symbol, balance, requested string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryLedger,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInsufficientBalance,
		Message:    fmt.Sprintf("insufficient %s balance", symbol),
		Details: map[string]interface{}{
			"symbol":    symbol,
			"balance":   balance,
			"requested": requested,
		},
	}
}

// NewUpstreamRateLimitedError indicates the price feed request budget is exhausted.
func NewUpstreamRateLimitedError(cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeUpstreamRateLimited,
		Message:    "price feed rate limited",
		Cause:      cause,
	}
}

// NewUpstreamError indicates a non-rate-limit price feed failure.
func NewUpstreamError(cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusBadGateway,
		Code:       CodeUpstreamError,
		Message:    "price feed unavailable",
		Cause:      cause,
	}
}

// NewInternalError creates a generic internal error.
func NewInternalError(cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternalError,
		Message:    "an internal error occurred",
		Cause:      cause,
	}
}
