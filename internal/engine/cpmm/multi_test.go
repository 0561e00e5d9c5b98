package cpmm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rknoche6/manifold/internal/domain"
)

func thirdsAnswers() []domain.Answer {
	// Three answers at 1/3 each; prob of a symmetric sub-pool is
	// no/(yes+no).
	return []domain.Answer{
		{ID: "a", Pool: domain.Pool{Yes: 100, No: 50}},
		{ID: "b", Pool: domain.Pool{Yes: 100, No: 50}},
		{ID: "c", Pool: domain.Pool{Yes: 100, No: 50}},
	}
}

func TestApplyMultiBet_SumToOneStaysNormalized(t *testing.T) {
	answers := thirdsAnswers()
	require.InDelta(t, 1.0, SumProbabilities(answers), 1e-9)

	next, shares, err := ApplyMultiBet(answers, 0, 30, domain.SideYes, true)
	require.NoError(t, err)

	assert.InDelta(t, 67.5, shares, 1e-9)
	assert.InDelta(t, 0.5614, AnswerProbability(next[0]), 1e-3)
	assert.InDelta(t, 1.0, SumProbabilities(next), 1e-9)

	// Siblings keep relative weight: both were equal, both stay equal.
	assert.InDelta(t, AnswerProbability(next[1]), AnswerProbability(next[2]), 1e-12)
}

func TestApplyMultiBet_SumToOnePreservesSiblingLiquidity(t *testing.T) {
	answers := thirdsAnswers()

	next, _, err := ApplyMultiBet(answers, 0, 30, domain.SideYes, true)
	require.NoError(t, err)

	for _, i := range []int{1, 2} {
		assert.InDelta(t, 150, next[i].Pool.Yes+next[i].Pool.No, 1e-9)
	}
}

func TestApplyMultiBet_NoBetLowersTargetRaisesSiblings(t *testing.T) {
	answers := thirdsAnswers()

	next, _, err := ApplyMultiBet(answers, 1, 20, domain.SideNo, true)
	require.NoError(t, err)

	assert.Less(t, AnswerProbability(next[1]), 1.0/3)
	assert.Greater(t, AnswerProbability(next[0]), 1.0/3)
	assert.InDelta(t, 1.0, SumProbabilities(next), 1e-9)
}

// Additive markets leave sibling answers untouched; their probabilities are
// not required to sum to one.
func TestApplyMultiBet_IndependentAnswers(t *testing.T) {
	answers := thirdsAnswers()

	next, _, err := ApplyMultiBet(answers, 0, 30, domain.SideYes, false)
	require.NoError(t, err)

	assert.Equal(t, answers[1].Pool, next[1].Pool)
	assert.Equal(t, answers[2].Pool, next[2].Pool)
	assert.Greater(t, AnswerProbability(next[0]), 1.0/3)
}

func TestApplyMultiBet_DoesNotMutateInput(t *testing.T) {
	answers := thirdsAnswers()
	orig := answers[0].Pool

	_, _, err := ApplyMultiBet(answers, 0, 30, domain.SideYes, true)
	require.NoError(t, err)
	assert.Equal(t, orig, answers[0].Pool)
}

func TestApplyMultiBet_BadIndex(t *testing.T) {
	_, _, err := ApplyMultiBet(thirdsAnswers(), 5, 10, domain.SideYes, true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
