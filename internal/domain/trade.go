package domain

import "time"

// Fees charged on one trade, by recipient.
type Fees struct {
	Creator  float64
	Platform float64
}

// Total is the sum of all fee components.
func (f Fees) Total() float64 {
	return f.Creator + f.Platform
}

// Add returns the component-wise sum of two fee sets.
func (f Fees) Add(o Fees) Fees {
	return Fees{Creator: f.Creator + o.Creator, Platform: f.Platform + o.Platform}
}

// FeeSchedule configures trade fees. Creator fee applies only to the
// portion matched against the pool; amounts matched against resting orders
// transfer between users and carry no creator fee. Platform fee is deducted
// from shares before display.
type FeeSchedule struct {
	CreatorRate  float64
	PlatformRate float64
}

// TradeRequest is a taker's proposed trade against a market.
type TradeRequest struct {
	UserID   string
	MarketID string
	AnswerID string // required for multi markets
	Outcome  Side
	Amount   float64

	// LimitProb, when set, bounds how far the trade may move the price;
	// any unfilled remainder rests as an OPEN limit order.
	LimitProb *float64

	// Silent requests slippage protection: an implicit limit order a
	// bounded distance from the current price with a short expiry.
	Silent       bool
	ExpiresAfter time.Duration // expiry for the protected remainder
}

// MakerFill records one resting order consumed (partially or fully) by a
// taker trade. Amount is the taker-side amount matched at Prob.
type MakerFill struct {
	OrderID string
	MakerID string
	Amount  float64
	Shares  float64
	Prob    float64
}

// TradeResult is the realized outcome of a trade request.
//
// AmountSpent always equals the sum of maker-fill amounts plus PoolAmount;
// value only moves between the taker, resting-order owners and the pool
// reserve, minus recorded fees.
type TradeResult struct {
	BetID string

	AmountSpent float64
	Shares      float64
	PoolAmount  float64 // portion of AmountSpent matched against the pool

	ProbBefore float64
	ProbAfter  float64

	FullyFilled bool
	MakerFills  []MakerFill
	// SkippedOrderIDs lists resting orders passed over because their
	// owner could not cover the maker leg at fill time.
	SkippedOrderIDs []string

	Fees Fees

	// OrderID is set when an unfilled remainder was left resting as a
	// limit order.
	OrderID string
}

// Bet is the immutable historical record of one committed trade, the input
// to profit aggregation.
type Bet struct {
	ID         string
	UserID     string
	MarketID   string
	AnswerID   string
	Outcome    Side
	Amount     float64
	Shares     float64
	ProbBefore float64
	ProbAfter  float64
	Fees       Fees
	CreatedAt  time.Time
}

// TradeCommit bundles everything a committed trade writes: the new pool
// state (version-guarded), resting-order deltas, the bet record and any
// remainder order. Stores apply it as a single atomic unit.
type TradeCommit struct {
	MarketID string
	Version  int64 // expected market version; mismatch aborts the commit

	Pool    *Pool    // binary-family markets
	Answers []Answer // multi markets; full set when answers sum to one

	OrderUpdates []OrderUpdate
	Bet          Bet
	RestingOrder *LimitOrder
}
