package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	ErrInvalid  = errors.New("invalid")
	// ErrInvalidAmount rejects non-numeric, zero or negative amounts before
	// any store access.
	ErrInvalidAmount = errors.New("invalid_amount")
	// ErrInsufficientBalance rejects a debit that would drive a currency
	// balance negative. The mutation is rolled back atomically.
	ErrInsufficientBalance = errors.New("insufficient_balance")
	// ErrWalletMissing signals that the lazy wallet bootstrap failed to
	// produce a required currency wallet. Not expected in normal operation.
	ErrWalletMissing = errors.New("wallet_missing")
	// ErrUnprocessable is used for semantic validation failures (HTTP 422)
	ErrUnprocessable = errors.New("unprocessable")
)
