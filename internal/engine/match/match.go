// Package match implements the fill engine: it takes a trade request plus a
// snapshot of pool state and standing limit orders, and computes how the
// trade fills against resting orders first and the automated pool second.
//
// Fill is pure. It mutates nothing it is given; it returns the new pool
// state and per-order deltas for the caller to commit as one atomic unit.
package match

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rknoche6/manifold/internal/domain"
	"github.com/rknoche6/manifold/internal/engine/cpmm"
	"github.com/rknoche6/manifold/internal/engine/payout"
)

// amountEps is the tolerance below which a residual amount counts as zero.
const amountEps = 1e-9

// Snapshot is everything matching reads: a consistent view of the market,
// its open limit orders and maker balances at match start.
type Snapshot struct {
	Market domain.Market
	Orders []domain.LimitOrder

	// Balances holds maker balances for the market's token. A maker who
	// cannot cover a fill is skipped. Nil disables the check.
	Balances map[string]float64

	Fees        domain.FeeSchedule
	MaxSlippage float64 // slippage-protection bound; 0 means the default
	Now         time.Time
}

// Result is the outcome of matching one request against a snapshot.
type Result struct {
	domain.TradeResult

	// Remaining is the unfilled portion of the requested amount. The
	// caller decides whether it rests as a limit order or is returned.
	Remaining float64

	// Pool is the new market-level pool (binary-family markets).
	Pool *domain.Pool
	// Answers is the new answer set (multi markets). For sum-to-one
	// markets it includes renormalized siblings and must be committed
	// whole.
	Answers []domain.Answer

	OrderUpdates []domain.OrderUpdate
}

// Fill matches a trade request against the snapshot.
//
// The effective taker limit is the explicit limit probability if given,
// else one derived from slippage protection, else only the market's hard
// bounds. Matchable resting orders fill first in price-time priority at
// their own prices; any remainder runs against the curve, clamped so the
// resulting probability never crosses the taker's limit or a hard bound.
func Fill(req domain.TradeRequest, snap Snapshot) (*Result, error) {
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= 0 {
		return nil, fmt.Errorf("match: amount %v: %w", req.Amount, domain.ErrInvalidAmount)
	}
	if req.LimitProb != nil && (math.IsNaN(*req.LimitProb) || *req.LimitProb <= 0 || *req.LimitProb >= 1) {
		return nil, fmt.Errorf("match: limit %v: %w", *req.LimitProb, domain.ErrInvalidAmount)
	}

	market := snap.Market
	curve, err := resolveCurve(market, req.AnswerID)
	if err != nil {
		return nil, err
	}

	probBefore := cpmm.Probability(curve.pool, curve.p)
	if atBound(probBefore, market, req.Outcome) {
		return nil, fmt.Errorf("match: market %s at %s bound: %w",
			market.ID, req.Outcome, domain.ErrInsufficientLiquidity)
	}

	limit := takerLimit(req, probBefore, snap.MaxSlippage)

	res := &Result{}
	res.ProbBefore = probBefore
	res.Remaining = req.Amount

	fillMakers(req, snap, limit, res)
	if err := fillPool(req, snap, curve, limit, res); err != nil {
		return nil, err
	}

	res.AmountSpent = req.Amount - res.Remaining
	res.FullyFilled = res.Remaining <= amountEps
	if res.FullyFilled {
		res.Remaining = 0
	}

	res.Fees = payout.TradeFees(res.PoolAmount, snap.Fees)
	// Platform fee comes out of the payout side, not the amount paid.
	res.Shares -= res.Fees.Platform
	if res.Shares < 0 {
		res.Shares = 0
	}

	if !finite(res.Shares) || !finite(res.ProbAfter) {
		return nil, fmt.Errorf("match: market %s: %w", market.ID, domain.ErrCalculation)
	}
	return res, nil
}

// curveState is the pool the request trades against.
type curveState struct {
	pool     domain.Pool
	p        float64
	answer   int // index into Market.Answers, -1 for binary-family
	sumToOne bool
}

func resolveCurve(market domain.Market, answerID string) (curveState, error) {
	if market.OutcomeType.IsBinaryFamily() {
		return curveState{pool: market.Pool, p: market.P, answer: -1}, nil
	}
	for i, a := range market.Answers {
		if a.ID == answerID {
			return curveState{
				pool:     a.Pool,
				p:        0.5,
				answer:   i,
				sumToOne: market.ShouldAnswersSumToOne,
			}, nil
		}
	}
	return curveState{}, fmt.Errorf("match: market %s: answer %q: %w", market.ID, answerID, domain.ErrNotFound)
}

// atBound reports whether the probability already sits at (or past) the
// hard bound on the requested side, at display precision.
func atBound(prob float64, market domain.Market, outcome domain.Side) bool {
	if outcome == domain.SideYes {
		return prob >= market.MaxProb || cpmm.ProbEqual(prob, market.MaxProb)
	}
	return prob <= market.MinProb || cpmm.ProbEqual(prob, market.MinProb)
}

func takerLimit(req domain.TradeRequest, basis, maxSlippage float64) float64 {
	if req.LimitProb != nil {
		return *req.LimitProb
	}
	return EffectiveLimit(basis, req.Outcome, req.Silent, maxSlippage)
}

// fillMakers walks matchable resting orders in price-time priority,
// filling each at its own limit probability. Expired orders encountered on
// the way are settled (cancelled) as part of the same commit.
func fillMakers(req domain.TradeRequest, snap Snapshot, limit float64, res *Result) {
	candidates := make([]domain.LimitOrder, 0, len(snap.Orders))
	for _, o := range snap.Orders {
		if o.Status != domain.OrderStatusOpen {
			continue
		}
		if o.AnswerID != req.AnswerID {
			continue
		}
		if IsExpired(o, snap.Now) {
			res.OrderUpdates = append(res.OrderUpdates, domain.OrderUpdate{
				OrderID: o.ID,
				Filled:  o.Filled,
				Shares:  o.Shares,
				Status:  domain.OrderStatusCancelled,
			})
			continue
		}
		if o.Side != req.Outcome.Opposite() {
			continue
		}
		if !priceMatches(o.LimitProb, limit, req.Outcome) {
			continue
		}
		if o.Remaining() <= amountEps {
			continue
		}
		candidates = append(candidates, o)
	}

	// Most favorable price to the taker first; ties go to the earlier
	// order (price-time priority).
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.LimitProb != b.LimitProb {
			if req.Outcome == domain.SideYes {
				return a.LimitProb < b.LimitProb
			}
			return a.LimitProb > b.LimitProb
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	for _, o := range candidates {
		if res.Remaining <= amountEps {
			break
		}

		price := o.LimitProb // the resting order's price is honored
		takerPrice, makerPrice := price, 1-price
		if req.Outcome == domain.SideNo {
			takerPrice, makerPrice = 1-price, price
		}

		// Match in share space: the taker's remaining budget buys
		// remaining/takerPrice shares, the maker's remaining commitment
		// backs remaining/makerPrice. Each matched share is paid for by
		// takerPrice from the taker plus makerPrice from the maker, so
		// value only moves between the two parties and neither side is
		// ever debited beyond what it committed.
		shares := math.Min(res.Remaining/takerPrice, o.Remaining()/makerPrice)
		takerCost := shares * takerPrice
		makerCost := shares * makerPrice

		if snap.Balances != nil {
			if bal, ok := snap.Balances[o.UserID]; !ok || bal+amountEps < makerCost {
				res.SkippedOrderIDs = append(res.SkippedOrderIDs, o.ID)
				continue
			}
		}

		status := domain.OrderStatusOpen
		if o.Filled+makerCost >= o.Amount-amountEps {
			status = domain.OrderStatusFilled
		}
		res.OrderUpdates = append(res.OrderUpdates, domain.OrderUpdate{
			OrderID: o.ID,
			Filled:  o.Filled + makerCost,
			Shares:  o.Shares + shares,
			Status:  status,
		})
		res.MakerFills = append(res.MakerFills, domain.MakerFill{
			OrderID: o.ID,
			MakerID: o.UserID,
			Amount:  takerCost,
			Shares:  shares,
			Prob:    price,
		})
		res.Shares += shares
		res.Remaining -= takerCost
	}
}

// fillPool applies whatever the resting orders left against the curve,
// clamped so the resulting probability crosses neither the taker's limit
// nor the market's hard bounds.
func fillPool(req domain.TradeRequest, snap Snapshot, curve curveState, limit float64, res *Result) error {
	market := snap.Market
	res.ProbAfter = cpmm.Probability(curve.pool, curve.p)
	defer func() {
		if curve.answer < 0 {
			pool := curve.pool
			res.Pool = &pool
		}
	}()

	if res.Remaining <= amountEps {
		return nil
	}

	bound := limit
	if req.Outcome == domain.SideYes {
		bound = math.Min(bound, market.MaxProb)
	} else {
		bound = math.Max(bound, market.MinProb)
	}

	prob := cpmm.Probability(curve.pool, curve.p)
	roomLeft := (req.Outcome == domain.SideYes && bound > prob && !cpmm.ProbEqual(bound, prob)) ||
		(req.Outcome == domain.SideNo && bound < prob && !cpmm.ProbEqual(bound, prob))
	if !roomLeft {
		return nil
	}

	toBound := cpmm.AmountToProbability(curve.pool, curve.p, bound, req.Outcome)
	amount := math.Min(res.Remaining, toBound)
	if amount <= amountEps {
		return nil
	}

	var shares float64
	var err error
	if curve.answer >= 0 {
		var answers []domain.Answer
		answers, shares, err = cpmm.ApplyMultiBet(market.Answers, curve.answer, amount, req.Outcome, curve.sumToOne)
		if err != nil {
			return fmt.Errorf("match: market %s: %w", market.ID, err)
		}
		res.Answers = answers
		curve.pool = answers[curve.answer].Pool
	} else {
		curve.pool, shares, err = cpmm.ApplyBet(curve.pool, curve.p, amount, req.Outcome)
		if err != nil {
			return fmt.Errorf("match: market %s: %w", market.ID, err)
		}
	}

	res.Shares += shares
	res.Remaining -= amount
	res.PoolAmount = amount
	res.ProbAfter = cpmm.Probability(curve.pool, curve.p)
	return nil
}

func priceMatches(orderProb, limit float64, outcome domain.Side) bool {
	if outcome == domain.SideYes {
		return orderProb <= limit || cpmm.ProbEqual(orderProb, limit)
	}
	return orderProb >= limit || cpmm.ProbEqual(orderProb, limit)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
