package domain

import "time"

// Side is the outcome a trade or resting order buys.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// OrderStatus tracks the limit-order lifecycle. Orders leave OPEN exactly
// once: to FILLED when the filled amount reaches the order amount, or to
// CANCELLED on explicit cancellation or self-expiry. A non-OPEN order is
// excluded from all future matching.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// LimitOrder is a standing offer to buy Side at LimitProb, filled
// opportunistically by later taker trades at the order's own price.
type LimitOrder struct {
	ID        string
	UserID    string
	MarketID  string
	AnswerID  string // empty for binary-family markets
	Side      Side
	LimitProb float64

	Amount float64 // total amount the owner committed
	Filled float64 // amount filled so far
	Shares float64 // shares acquired for the filled amount

	Status    OrderStatus
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Remaining is the unfilled portion of the order amount.
func (o LimitOrder) Remaining() float64 {
	r := o.Amount - o.Filled
	if r < 0 {
		return 0
	}
	return r
}

// OrderUpdate is the delta matching produced for one resting order. Applied
// atomically with the pool commit; Filled and Shares are the new totals.
type OrderUpdate struct {
	OrderID string
	Filled  float64
	Shares  float64
	Status  OrderStatus
}
