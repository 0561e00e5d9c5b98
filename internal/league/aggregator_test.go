package league

import (
	"fmt"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rknoche6/manifold/internal/domain"
)

var testSeason = domain.Season{
	ID:    12,
	Start: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func publicMarket(id, creator string) domain.Market {
	return domain.Market{
		ID:          id,
		CreatorID:   creator,
		Slug:        id + "-slug",
		OutcomeType: domain.OutcomeBinary,
		Pool:        domain.Pool{Yes: 100, No: 100},
		P:           0.5,
		Resolution:  "YES",
		Visibility:  domain.VisibilityPublic,
		IsRanked:    true,
	}
}

func TestAggregate_ProfitPerUser(t *testing.T) {
	market := publicMarket("m1", "creator")
	bets := []domain.Bet{
		{UserID: "alice", MarketID: "m1", Outcome: domain.SideYes, Amount: 50, Shares: 80},
		{UserID: "bob", MarketID: "m1", Outcome: domain.SideNo, Amount: 30, Shares: 60},
	}

	entries := New(nil, discardLogger()).Aggregate(
		testSeason, []string{"bob", "alice"}, bets, []domain.Market{market})

	require.Len(t, entries, 2)
	// Sorted by user id for deterministic reruns.
	assert.Equal(t, "alice", entries[0].UserID)
	assert.InDelta(t, 30, entries[0].Breakdown[domain.CategoryProfit], 1e-9)
	assert.Equal(t, "bob", entries[1].UserID)
	assert.InDelta(t, -30, entries[1].Breakdown[domain.CategoryProfit], 1e-9)
}

// A denylisted market's profit is excluded even though bets exist there.
func TestAggregate_DenylistedSlugExcluded(t *testing.T) {
	scored := publicMarket("m1", "creator")
	banned := publicMarket("m2", "creator")
	bets := []domain.Bet{
		{UserID: "alice", MarketID: "m1", Outcome: domain.SideYes, Amount: 50, Shares: 80},
		{UserID: "alice", MarketID: "m2", Outcome: domain.SideYes, Amount: 10, Shares: 500},
	}

	agg := New([]string{banned.Slug}, discardLogger())
	entries := agg.Aggregate(testSeason, []string{"alice"}, bets, []domain.Market{scored, banned})

	require.Len(t, entries, 1)
	assert.InDelta(t, 30, entries[0].Breakdown[domain.CategoryProfit], 1e-9)
}

func TestAggregate_PrivateAndUnrankedExcluded(t *testing.T) {
	private := publicMarket("m1", "c")
	private.Visibility = domain.VisibilityPrivate
	unranked := publicMarket("m2", "c")
	unranked.IsRanked = false

	bets := []domain.Bet{
		{UserID: "alice", MarketID: "m1", Outcome: domain.SideYes, Amount: 10, Shares: 100},
		{UserID: "alice", MarketID: "m2", Outcome: domain.SideYes, Amount: 10, Shares: 100},
	}

	entries := New(nil, discardLogger()).Aggregate(
		testSeason, []string{"alice"}, bets, []domain.Market{private, unranked})

	require.Len(t, entries, 1)
	assert.Zero(t, entries[0].Breakdown[domain.CategoryProfit])
}

// Registered users with no activity still get a zero entry.
func TestAggregate_InactiveRegistrant(t *testing.T) {
	entries := New(nil, discardLogger()).Aggregate(
		testSeason, []string{"ghost"}, nil, nil)

	require.Len(t, entries, 1)
	assert.Equal(t, "ghost", entries[0].UserID)
	assert.Zero(t, entries[0].Total)
	assert.Zero(t, entries[0].Breakdown[domain.CategoryProfit])
}

// Creator-fee income from bets in a registrant's own markets is merged as
// its own category.
func TestAggregate_CreatorFeesMerged(t *testing.T) {
	market := publicMarket("m1", "carol")
	bets := []domain.Bet{
		{UserID: "alice", MarketID: "m1", Outcome: domain.SideYes, Amount: 50, Shares: 80,
			Fees: domain.Fees{Creator: 1.5}},
		{UserID: "bob", MarketID: "m1", Outcome: domain.SideYes, Amount: 20, Shares: 30,
			Fees: domain.Fees{Creator: 0.5}},
	}

	entries := New(nil, discardLogger()).Aggregate(
		testSeason, []string{"carol"}, bets, []domain.Market{market})

	require.Len(t, entries, 1)
	assert.InDelta(t, 2.0, entries[0].Breakdown[domain.CategoryCreatorFee], 1e-9)
	assert.InDelta(t, 2.0, entries[0].Total, 1e-9)
}

// A user/market pair with inconsistent data is skipped; the rest of the
// season still aggregates.
func TestAggregate_CalculationErrorIsolated(t *testing.T) {
	good := publicMarket("m1", "c")
	bad := publicMarket("m2", "c")
	bad.Resolution = ""
	bad.Pool = domain.Pool{Yes: math.NaN(), No: 100}

	bets := []domain.Bet{
		{UserID: "alice", MarketID: "m1", Outcome: domain.SideYes, Amount: 50, Shares: 80},
		{UserID: "alice", MarketID: "m2", Outcome: domain.SideYes, Amount: 10, Shares: 10},
		{UserID: "bob", MarketID: "m1", Outcome: domain.SideYes, Amount: 10, Shares: 15},
	}

	entries := New(nil, discardLogger()).Aggregate(
		testSeason, []string{"alice", "bob"}, bets, []domain.Market{good, bad})

	require.Len(t, entries, 2)
	assert.InDelta(t, 30, entries[0].Breakdown[domain.CategoryProfit], 1e-9)
	assert.InDelta(t, 5, entries[1].Breakdown[domain.CategoryProfit], 1e-9)
}

// Running the aggregation twice on unchanged input yields bit-identical
// output. Many markets per user with rounding-prone amounts force the
// per-user sum through dozens of float additions whose result depends on
// summation order.
func TestAggregate_Idempotent(t *testing.T) {
	contracts := make([]domain.Market, 0, 30)
	bets := make([]domain.Bet, 0, 60)
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("m%02d", i)
		contracts = append(contracts, publicMarket(id, "carol"))
		bets = append(bets,
			domain.Bet{UserID: "alice", MarketID: id, Outcome: domain.SideYes,
				Amount: 0.1 * float64(i+1), Shares: 0.3 * float64(i+1),
				Fees: domain.Fees{Creator: 0.01 * float64(i+1)}},
			domain.Bet{UserID: "bob", MarketID: id, Outcome: domain.SideNo,
				Amount: 0.7 * float64(i+1), Shares: 1.1 * float64(i+1)},
		)
	}
	registrants := []string{"alice", "bob", "carol"}
	agg := New(nil, discardLogger())

	first := agg.Aggregate(testSeason, registrants, bets, contracts)
	second := agg.Aggregate(testSeason, registrants, bets, contracts)
	require.Equal(t, first, second)

	// Bitwise, not approximate: leaderboard reruns must not drift.
	for i := range first {
		assert.True(t, first[i].Total == second[i].Total,
			"total for %s drifted between runs", first[i].UserID)
	}
}
