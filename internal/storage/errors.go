package storage

import "errors"

// Errors shared by the run, trade and price stores.
var (
	// ErrNotFound is returned when a requested run or trade does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a run_id, a (run_id, trade_id) pair or a
	// (symbol, minute) close is already stored. Stored records are never overwritten.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when a record is missing its identifiers,
	// a trade is still open, or a trade names a different run.
	ErrInvalidInput = errors.New("invalid input")
)
