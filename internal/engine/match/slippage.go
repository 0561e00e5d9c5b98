package match

import (
	"time"

	"github.com/rknoche6/manifold/internal/domain"
)

// DefaultMaxSlippage is how far a slippage-protected market order may move
// the price: ten probability points.
const DefaultMaxSlippage = 0.10

// DefaultProtectionExpiry is the cancellation deadline for the implicit
// limit order a protected trade leaves behind. Expiry is a wall-clock
// timeout re-checked at read time, not a cooperative cancel.
const DefaultProtectionExpiry = time.Second

// probFloor keeps derived limits strictly inside (0,1).
const probFloor = 0.001

// EffectiveLimit derives the binding limit probability for a taker.
//
// With protection enabled the limit is the basis probability shifted toward
// the taker's side by maxMove, turning the market order into an implicit
// limit order. With protection off the limit is unbounded on the taker's
// side; only the market's hard bounds apply.
func EffectiveLimit(basis float64, outcome domain.Side, protected bool, maxMove float64) float64 {
	if !protected {
		if outcome == domain.SideYes {
			return 1
		}
		return 0
	}
	if maxMove <= 0 {
		maxMove = DefaultMaxSlippage
	}
	if outcome == domain.SideYes {
		return clamp(basis+maxMove, probFloor, 1-probFloor)
	}
	return clamp(basis-maxMove, probFloor, 1-probFloor)
}

// IsExpired reports whether an order has passed its expiry time while not
// fully filled. An expired-but-partially-filled order keeps its filled
// portion committed; only the unfilled remainder is returned to the owner.
func IsExpired(order domain.LimitOrder, now time.Time) bool {
	if order.ExpiresAt == nil {
		return false
	}
	return now.After(*order.ExpiresAt) && order.Filled < order.Amount
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
