package domain

import "time"

// EarningsCategory labels one component of a user's season earnings.
type EarningsCategory string

const (
	CategoryProfit     EarningsCategory = "profit"
	CategoryCreatorFee EarningsCategory = "CREATOR_FEE"
)

// Season is a fixed scoring period for leaderboard aggregation.
type Season struct {
	ID    int
	Start time.Time
	End   time.Time
}

// EarningsEntry is one user's recomputed earnings for a season, keyed by
// (UserID, Season). Entries are produced fresh on every aggregation run and
// replaced wholesale, never incrementally mutated.
type EarningsEntry struct {
	UserID    string
	Season    int
	Total     float64
	Breakdown map[EarningsCategory]float64
}
