package ledger

import "errors"

// Sentinel failure kinds shared by every core component. Each one is a
// rejected operation, never a corrupted-state condition: the detecting
// operation aborts with none of its mutations applied.
var (
	// ErrUnauthorized indicates the caller is not the account owner.
	ErrUnauthorized = errors.New("caller is not the account owner")

	// ErrInsufficientBalance indicates the requested amount exceeds the
	// account's available funds.
	ErrInsufficientBalance = errors.New("insufficient account balance")

	// ErrInsufficientLiquidity indicates the pool cannot cover the output
	// side of a swap.
	ErrInsufficientLiquidity = errors.New("insufficient pool liquidity")

	// ErrSlippageExceeded indicates the computed output fell below the
	// caller's declared minimum.
	ErrSlippageExceeded = errors.New("output below caller minimum")

	// ErrZeroAmount indicates a degenerate zero or negative input.
	ErrZeroAmount = errors.New("amount must be positive")

	// ErrStalePrice indicates the oracle returned a non-positive or
	// out-of-date sample.
	ErrStalePrice = errors.New("stale or invalid oracle price")

	// ErrAccountNotFound indicates an unknown proxy account identifier.
	ErrAccountNotFound = errors.New("account not found")
)
