package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists markets and their answers.
type MarketStore interface {
	GetByID(ctx context.Context, id string) (Market, error)
	GetByIDs(ctx context.Context, ids []string) ([]Market, error)
	Upsert(ctx context.Context, market Market) error
	ListActive(ctx context.Context, opts ListOpts) ([]Market, error)
}

// OrderStore persists limit orders. Mutable fields (Filled, Shares, Status)
// only ever change inside a trade commit or a cancellation, both serialized
// per market by the commit lock.
type OrderStore interface {
	Create(ctx context.Context, order LimitOrder) error
	GetByID(ctx context.Context, id string) (LimitOrder, error)
	// ListOpen returns OPEN orders for the market, restricted to one
	// answer when answerID is non-empty.
	ListOpen(ctx context.Context, marketID, answerID string) ([]LimitOrder, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]LimitOrder, error)
	Update(ctx context.Context, update OrderUpdate) error
}

// BetStore persists immutable bet records.
type BetStore interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]Bet, error)
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Bet, error)
}

// CommitStore applies a trade commit atomically: pool state (guarded by the
// market version), order updates, the bet record and any resting remainder
// are written in one transaction. Returns ErrConcurrentModification when
// the market version no longer matches.
type CommitStore interface {
	Commit(ctx context.Context, commit TradeCommit) error
}

// BalanceSource reads user balances for one token. The engine only reads
// balances (to detect stale limit orders); debits and credits belong to the
// surrounding request layer.
type BalanceSource interface {
	Balances(ctx context.Context, userIDs []string, token Token) (map[string]float64, error)
}

// LeagueStore persists season registrations and earnings entries.
type LeagueStore interface {
	ListRegistrants(ctx context.Context, season int) ([]string, error)
	// ReplaceSeason overwrites all earnings entries for the season in one
	// transaction.
	ReplaceSeason(ctx context.Context, season int, entries []EarningsEntry) error
}
