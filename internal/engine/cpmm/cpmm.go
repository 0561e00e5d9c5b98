// Package cpmm implements the constant-product market-maker curve: pure
// conversions between pool reserves, probabilities and trade amounts.
//
// A pool holds YES and NO reserves y and n with a weight p in (0,1). The
// quantity k = y^p * n^(1-p) is invariant under trades net of the amount
// paid in.
package cpmm

import (
	"math"

	"github.com/rknoche6/manifold/internal/domain"
)

// probDecimals is the display precision for probabilities (two-decimal
// percent). The amount solver converges to values that can differ from a
// target by less than display precision, so all "unchanged" and "at bound"
// checks compare at this precision rather than raw float equality.
const probDecimals = 4

// RoundProb rounds a probability to display precision.
func RoundProb(p float64) float64 {
	return math.Round(p*1e4) / 1e4
}

// ProbEqual reports whether two probabilities have the same formatted
// (2-decimal-percent) representation.
func ProbEqual(a, b float64) bool {
	return RoundProb(a) == RoundProb(b)
}

// Probability returns the YES probability implied by the pool.
func Probability(pool domain.Pool, p float64) float64 {
	return p * pool.No / (p*pool.No + (1-p)*pool.Yes)
}

// OutcomeProbability returns the probability of the given side.
func OutcomeProbability(pool domain.Pool, p float64, outcome domain.Side) float64 {
	prob := Probability(pool, p)
	if outcome == domain.SideNo {
		return 1 - prob
	}
	return prob
}

func invariant(pool domain.Pool, p float64) float64 {
	return math.Pow(pool.Yes, p) * math.Pow(pool.No, 1-p)
}

// SharesForBet returns the number of outcome shares received for betting
// amount on the given side, preserving the curve invariant.
func SharesForBet(pool domain.Pool, p, amount float64, outcome domain.Side) float64 {
	if amount == 0 {
		return 0
	}
	y, n := pool.Yes, pool.No
	k := invariant(pool, p)
	if outcome == domain.SideYes {
		// y + b - ((k * (b + n)^(p-1)))^(1/p)
		return y + amount - math.Pow(k*math.Pow(amount+n, p-1), 1/p)
	}
	return n + amount - math.Pow(k*math.Pow(amount+y, -p), 1/(1-p))
}

// ApplyBet applies a bet to the pool and returns the new reserves and the
// shares received. The amount paid in is added to both reserves and the
// shares received are withdrawn from the bet side, which keeps the
// invariant k unchanged net of the amount.
func ApplyBet(pool domain.Pool, p, amount float64, outcome domain.Side) (domain.Pool, float64, error) {
	shares := SharesForBet(pool, p, amount, outcome)
	if !isFinite(shares) || shares < 0 {
		return domain.Pool{}, 0, domain.ErrCalculation
	}

	var next domain.Pool
	if outcome == domain.SideYes {
		next = domain.Pool{Yes: pool.Yes + amount - shares, No: pool.No + amount}
	} else {
		next = domain.Pool{Yes: pool.Yes + amount, No: pool.No + amount - shares}
	}
	if !isFinite(next.Yes) || !isFinite(next.No) || next.Yes <= 0 || next.No <= 0 {
		return domain.Pool{}, 0, domain.ErrCalculation
	}
	return next, shares, nil
}

// AmountToProbability returns the bet amount on the given side that moves
// the pool's probability to target. Returns +Inf when the target is
// unreachable (outside (0,1) or on the wrong side of the current price).
func AmountToProbability(pool domain.Pool, p, target float64, outcome domain.Side) float64 {
	if math.IsNaN(target) || target <= 0 || target >= 1 {
		return math.Inf(1)
	}
	prob := target
	if outcome == domain.SideNo {
		prob = 1 - prob
	}

	y, n := pool.Yes, pool.No
	k := invariant(pool, p)
	if outcome == domain.SideYes {
		r := (p * (prob - 1)) / ((p - 1) * prob)
		amount := math.Pow(r, -p) * (k - n*math.Pow(r, p))
		return nonNegative(amount)
	}
	r := ((1 - p) * prob) / (-p * (prob - 1))
	amount := math.Pow(r, p-1) * (k - y*math.Pow(r, 1-p))
	return nonNegative(amount)
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
