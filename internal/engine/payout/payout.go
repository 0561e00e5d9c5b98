// Package payout computes share values, fees and per-market profit. The
// same math runs at trade time (fee accounting) and in batch scoring
// (profit aggregation), so conservation bugs cannot hide between the two.
package payout

import (
	"fmt"
	"math"

	"github.com/rknoche6/manifold/internal/domain"
	"github.com/rknoche6/manifold/internal/engine/cpmm"
)

// ProfitMetrics summarizes a user's position in one market.
type ProfitMetrics struct {
	Invested   float64 // total amount paid in
	Payout     float64 // value of held shares at resolution or mark
	Profit     float64 // Payout - Invested
	Redeemable float64 // YES/NO share pairs redeemable for 1 each
}

// TradeFees returns the fees charged on one trade. Creator fee applies to
// the pool-matched amount only: value matched against resting orders
// transfers between users, not to the market, so it carries no creator fee.
func TradeFees(poolAmount float64, schedule domain.FeeSchedule) domain.Fees {
	if poolAmount <= 0 {
		return domain.Fees{}
	}
	return domain.Fees{
		Creator:  poolAmount * schedule.CreatorRate,
		Platform: poolAmount * schedule.PlatformRate,
	}
}

// Metrics computes a user's profit in one market over their bets there.
//
// Resolved markets value shares by the resolution outcome; open markets
// mark to the current probability. A non-finite result is a calculation
// error and is reported, never coerced to zero: inconsistent market data
// must surface, not guess.
func Metrics(market domain.Market, bets []domain.Bet) (ProfitMetrics, error) {
	var m ProfitMetrics
	var yesShares, noShares float64

	for _, bet := range bets {
		value, err := shareValue(market, bet)
		if err != nil {
			return ProfitMetrics{}, err
		}
		m.Invested += bet.Amount
		m.Payout += bet.Shares * value
		if bet.Outcome == domain.SideYes {
			yesShares += bet.Shares
		} else {
			noShares += bet.Shares
		}
	}

	m.Profit = m.Payout - m.Invested
	m.Redeemable = math.Min(yesShares, noShares)

	if !finite(m.Invested) || !finite(m.Payout) || !finite(m.Profit) {
		return ProfitMetrics{}, fmt.Errorf("payout: market %s: %w", market.ID, domain.ErrCalculation)
	}
	return m, nil
}

// shareValue returns the value of one share of the bet's outcome.
func shareValue(market domain.Market, bet domain.Bet) (float64, error) {
	if market.OutcomeType.IsMulti() {
		answer := market.AnswerByID(bet.AnswerID)
		if answer == nil {
			return 0, fmt.Errorf("payout: market %s: answer %q: %w", market.ID, bet.AnswerID, domain.ErrNotFound)
		}
		return answerShareValue(*answer, bet.Outcome), nil
	}

	switch market.Resolution {
	case "YES":
		return oneIf(bet.Outcome == domain.SideYes), nil
	case "NO":
		return oneIf(bet.Outcome == domain.SideNo), nil
	case "MKT":
		if market.ResolutionProb == nil {
			return 0, fmt.Errorf("payout: market %s: MKT resolution without probability: %w", market.ID, domain.ErrCalculation)
		}
		return sideValue(*market.ResolutionProb, bet.Outcome), nil
	case "":
		return sideValue(cpmm.Probability(market.Pool, market.P), bet.Outcome), nil
	default:
		return 0, fmt.Errorf("payout: market %s: resolution %q: %w", market.ID, market.Resolution, domain.ErrCalculation)
	}
}

func answerShareValue(answer domain.Answer, outcome domain.Side) float64 {
	switch answer.Resolution {
	case "YES":
		return oneIf(outcome == domain.SideYes)
	case "NO":
		return oneIf(outcome == domain.SideNo)
	default:
		return sideValue(cpmm.AnswerProbability(answer), outcome)
	}
}

func sideValue(prob float64, outcome domain.Side) float64 {
	if outcome == domain.SideNo {
		return 1 - prob
	}
	return prob
}

func oneIf(won bool) float64 {
	if won {
		return 1
	}
	return 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
