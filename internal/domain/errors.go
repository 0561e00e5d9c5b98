package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrInvalidAmount rejects non-positive or non-finite trade amounts.
	ErrInvalidAmount = errors.New("invalid trade amount")

	// ErrInsufficientLiquidity means the probability already sits at a
	// hard bound on the requested side, so the pool cannot absorb any
	// amount in that direction.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrStaleLimitOrder marks a resting order whose owner lacks the
	// balance to cover its maker leg. Matching skips such orders and
	// continues; it never fails the taker's request.
	ErrStaleLimitOrder = errors.New("stale limit order")

	// ErrCalculation flags a non-finite numeric result. Such results are
	// surfaced, never silently coerced to zero.
	ErrCalculation = errors.New("calculation produced non-finite result")

	// ErrConcurrentModification means a commit was attempted against a
	// stale pool-state snapshot; the caller must retry the whole trade
	// from a fresh snapshot.
	ErrConcurrentModification = errors.New("concurrent market modification")

	ErrOrderNotOpen = errors.New("order is not open")
	ErrLockHeld     = errors.New("lock already held")
)
