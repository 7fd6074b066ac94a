package storage

import "errors"

// Sentinel errors shared by all repository implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when inserting a record whose key exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned for nil or incomplete records.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientBalance is returned by AdjustBalance when the result
	// would go negative.
	ErrInsufficientBalance = errors.New("insufficient balance")
)
