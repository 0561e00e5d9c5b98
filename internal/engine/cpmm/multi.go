package cpmm

import (
	"math"

	"github.com/rknoche6/manifold/internal/domain"
)

// answerP is the curve weight for answer sub-pools: always symmetric.
const answerP = 0.5

// AnswerProbability returns the YES probability of one answer's sub-pool.
func AnswerProbability(a domain.Answer) float64 {
	return Probability(a.Pool, answerP)
}

// SumProbabilities returns the sum of all answers' probabilities.
func SumProbabilities(answers []domain.Answer) float64 {
	var sum float64
	for _, a := range answers {
		sum += AnswerProbability(a)
	}
	return sum
}

// ApplyMultiBet applies a bet to answers[idx] and returns the updated
// answer set and the shares received.
//
// When sumToOne holds, the sibling answers are renormalized in the same
// call so that probabilities continue to sum to 1: each sibling keeps its
// total liquidity and its relative weight among siblings, and its reserves
// are recomputed from the rescaled probability. The whole answer set is a
// single coordinated update; callers must commit it as one unit.
func ApplyMultiBet(answers []domain.Answer, idx int, amount float64, outcome domain.Side, sumToOne bool) ([]domain.Answer, float64, error) {
	if idx < 0 || idx >= len(answers) {
		return nil, 0, domain.ErrNotFound
	}

	next := make([]domain.Answer, len(answers))
	copy(next, answers)

	target := next[idx]
	oldProb := AnswerProbability(target)

	pool, shares, err := ApplyBet(target.Pool, answerP, amount, outcome)
	if err != nil {
		return nil, 0, err
	}
	target.Pool = pool
	next[idx] = target

	if !sumToOne || len(next) == 1 {
		return next, shares, nil
	}

	newProb := AnswerProbability(target)
	oldRest := 1 - oldProb
	newRest := 1 - newProb
	if oldRest <= 0 || !isFinite(newRest) || newRest <= 0 {
		return nil, 0, domain.ErrCalculation
	}

	// Rescale siblings so the set sums to 1 again. Using the actual
	// sibling sum (not 1-oldProb) keeps the update stable when the input
	// set was only sum-to-one within display tolerance.
	var siblingSum float64
	for i, a := range next {
		if i != idx {
			siblingSum += AnswerProbability(a)
		}
	}
	if siblingSum <= 0 {
		return nil, 0, domain.ErrCalculation
	}

	scale := newRest / siblingSum
	for i := range next {
		if i == idx {
			continue
		}
		a := next[i]
		prob := AnswerProbability(a) * scale
		if !isFinite(prob) || prob <= 0 || prob >= 1 {
			return nil, 0, domain.ErrCalculation
		}
		a.Pool = poolForProbability(a.Pool, prob)
		next[i] = a
	}
	return next, shares, nil
}

// poolForProbability recomputes reserves for a symmetric sub-pool so that
// it prices at prob while keeping total liquidity (yes + no) unchanged.
func poolForProbability(pool domain.Pool, prob float64) domain.Pool {
	liquidity := pool.Yes + pool.No
	return domain.Pool{
		Yes: liquidity * (1 - prob),
		No:  liquidity * prob,
	}
}

// MultiAmountToProbability returns the amount on answers[idx] that moves
// that answer's probability to target. Sibling renormalization does not
// change the traded answer's own sub-pool, so the binary solver applies.
func MultiAmountToProbability(answers []domain.Answer, idx int, target float64, outcome domain.Side) float64 {
	if idx < 0 || idx >= len(answers) {
		return math.Inf(1)
	}
	return AmountToProbability(answers[idx].Pool, answerP, target, outcome)
}
