package payout

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rknoche6/manifold/internal/domain"
)

func resolvedYes() domain.Market {
	return domain.Market{
		ID:          "mkt",
		OutcomeType: domain.OutcomeBinary,
		Pool:        domain.Pool{Yes: 100, No: 100},
		P:           0.5,
		Resolution:  "YES",
	}
}

func TestMetrics_ResolvedWin(t *testing.T) {
	bets := []domain.Bet{
		{UserID: "u", MarketID: "mkt", Outcome: domain.SideYes, Amount: 50, Shares: 80},
	}

	m, err := Metrics(resolvedYes(), bets)
	require.NoError(t, err)

	assert.InDelta(t, 50, m.Invested, 1e-9)
	assert.InDelta(t, 80, m.Payout, 1e-9)
	assert.InDelta(t, 30, m.Profit, 1e-9)
}

func TestMetrics_ResolvedLoss(t *testing.T) {
	bets := []domain.Bet{
		{UserID: "u", MarketID: "mkt", Outcome: domain.SideNo, Amount: 40, Shares: 90},
	}

	m, err := Metrics(resolvedYes(), bets)
	require.NoError(t, err)

	assert.InDelta(t, -40, m.Profit, 1e-9)
	assert.Zero(t, m.Payout)
}

// Open markets mark shares to the current probability.
func TestMetrics_MarkToMarket(t *testing.T) {
	market := resolvedYes()
	market.Resolution = ""
	market.Pool = domain.Pool{Yes: 50, No: 200} // prob 0.8

	bets := []domain.Bet{
		{UserID: "u", MarketID: "mkt", Outcome: domain.SideYes, Amount: 100, Shares: 150},
	}

	m, err := Metrics(market, bets)
	require.NoError(t, err)

	assert.InDelta(t, 120, m.Payout, 1e-9) // 150 shares at 0.8
	assert.InDelta(t, 20, m.Profit, 1e-9)
}

func TestMetrics_MktResolution(t *testing.T) {
	market := resolvedYes()
	market.Resolution = "MKT"
	prob := 0.3
	market.ResolutionProb = &prob

	bets := []domain.Bet{
		{Outcome: domain.SideYes, Amount: 10, Shares: 40},
		{Outcome: domain.SideNo, Amount: 10, Shares: 20},
	}

	m, err := Metrics(market, bets)
	require.NoError(t, err)

	// 40*0.3 + 20*0.7 = 26 against 20 invested.
	assert.InDelta(t, 6, m.Profit, 1e-9)
	assert.InDelta(t, 20, m.Redeemable, 1e-9)
}

func TestMetrics_MktResolutionWithoutProb(t *testing.T) {
	market := resolvedYes()
	market.Resolution = "MKT"

	_, err := Metrics(market, []domain.Bet{{Outcome: domain.SideYes, Amount: 1, Shares: 1}})
	assert.ErrorIs(t, err, domain.ErrCalculation)
}

// Inconsistent market data produces a reported error, never a silent zero.
func TestMetrics_NonFiniteIsError(t *testing.T) {
	market := resolvedYes()
	market.Resolution = ""
	market.Pool = domain.Pool{Yes: math.NaN(), No: 100}

	_, err := Metrics(market, []domain.Bet{{Outcome: domain.SideYes, Amount: 10, Shares: 10}})
	assert.ErrorIs(t, err, domain.ErrCalculation)
}

func TestMetrics_MultiAnswerResolution(t *testing.T) {
	market := domain.Market{
		ID:          "multi",
		OutcomeType: domain.OutcomeMultiOneOf,
		Answers: []domain.Answer{
			{ID: "a", Resolution: "YES"},
			{ID: "b", Resolution: "NO"},
		},
	}
	bets := []domain.Bet{
		{MarketID: "multi", AnswerID: "a", Outcome: domain.SideYes, Amount: 10, Shares: 25},
		{MarketID: "multi", AnswerID: "b", Outcome: domain.SideYes, Amount: 10, Shares: 25},
	}

	m, err := Metrics(market, bets)
	require.NoError(t, err)

	assert.InDelta(t, 5, m.Profit, 1e-9) // won 25, lost 10 stake, minus 10
}

func TestTradeFees_PoolPortionOnly(t *testing.T) {
	schedule := domain.FeeSchedule{CreatorRate: 0.02, PlatformRate: 0.01}

	fees := TradeFees(100, schedule)
	assert.InDelta(t, 2, fees.Creator, 1e-12)
	assert.InDelta(t, 1, fees.Platform, 1e-12)
	assert.InDelta(t, 3, fees.Total(), 1e-12)

	// Nothing matched against the pool means no creator fee: that value
	// transfers between users, not to the market.
	assert.Equal(t, domain.Fees{}, TradeFees(0, schedule))
}
