// Package service orchestrates the engine packages behind transactional,
// observable operations: trade placement, order cancellation and season
// aggregation.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rknoche6/manifold/internal/domain"
	"github.com/rknoche6/manifold/internal/engine/match"
	"github.com/rknoche6/manifold/internal/metrics"
)

// tradeChannel is the Pub/Sub channel for live trade events; tradeStream is
// the durable trimmed log behind it.
const (
	tradeChannel = "trades"
	tradeStream  = "trades:log"
)

// TradeConfig holds the engine parameters the trade service applies on every
// request.
type TradeConfig struct {
	Fees             domain.FeeSchedule
	MaxSlippage      float64
	ProtectionExpiry time.Duration
	CommitLockTTL    time.Duration
}

// TradeService serializes trades per commit unit, runs the fill engine on a
// consistent snapshot and commits the outcome atomically.
type TradeService struct {
	markets  domain.MarketStore
	orders   domain.OrderStore
	commits  domain.CommitStore
	balances domain.BalanceSource
	locks    domain.LockManager
	bus      domain.SignalBus
	metrics  *metrics.EngineMetrics
	cfg      TradeConfig
	logger   *slog.Logger

	now func() time.Time
}

// NewTradeService creates a TradeService with all required dependencies.
func NewTradeService(
	markets domain.MarketStore,
	orders domain.OrderStore,
	commits domain.CommitStore,
	balances domain.BalanceSource,
	locks domain.LockManager,
	bus domain.SignalBus,
	m *metrics.EngineMetrics,
	cfg TradeConfig,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		markets:  markets,
		orders:   orders,
		commits:  commits,
		balances: balances,
		locks:    locks,
		bus:      bus,
		metrics:  m,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// commitUnit is the lock key for a trade: the whole market, except on multi
// markets whose answers trade independently, where each answer is its own
// unit.
func commitUnit(market domain.Market, answerID string) string {
	if market.OutcomeType.IsMulti() && !market.ShouldAnswersSumToOne {
		return market.ID + ":" + answerID
	}
	return market.ID
}

// PlaceTrade matches a trade request against the market under the commit
// lock and persists the result. The returned TradeResult reflects exactly
// what was committed.
func (s *TradeService) PlaceTrade(ctx context.Context, req domain.TradeRequest) (domain.TradeResult, error) {
	market, err := s.markets.GetByID(ctx, req.MarketID)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("trade_service: load market %q: %w", req.MarketID, err)
	}
	if market.IsResolved() {
		return domain.TradeResult{}, fmt.Errorf("trade_service: market %q is resolved: %w", req.MarketID, domain.ErrInvalidAmount)
	}

	unlock, err := s.locks.Acquire(ctx, commitUnit(market, req.AnswerID), s.cfg.CommitLockTTL)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("trade_service: lock market %q: %w", req.MarketID, err)
	}
	defer unlock()

	// Reload under the lock so the matched snapshot is the committed one.
	market, err = s.markets.GetByID(ctx, req.MarketID)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("trade_service: reload market %q: %w", req.MarketID, err)
	}

	snap, err := s.buildSnapshot(ctx, market, req.AnswerID)
	if err != nil {
		return domain.TradeResult{}, err
	}

	res, err := match.Fill(req, snap)
	if err != nil {
		return domain.TradeResult{}, fmt.Errorf("trade_service: match: %w", err)
	}

	commit := s.buildCommit(req, market, res)
	if err := s.commits.Commit(ctx, commit); err != nil {
		if isConflict(err) {
			s.metrics.RecordCommitConflict()
		}
		return domain.TradeResult{}, fmt.Errorf("trade_service: commit trade: %w", err)
	}

	s.publishTrade(ctx, commit.Bet, res)
	s.record(market, req, res)

	out := res.TradeResult
	out.BetID = commit.Bet.ID
	if commit.RestingOrder != nil {
		out.OrderID = commit.RestingOrder.ID
	}
	return out, nil
}

// buildSnapshot loads the open orders and maker balances the fill engine
// reads.
func (s *TradeService) buildSnapshot(ctx context.Context, market domain.Market, answerID string) (match.Snapshot, error) {
	orders, err := s.orders.ListOpen(ctx, market.ID, answerID)
	if err != nil {
		return match.Snapshot{}, fmt.Errorf("trade_service: list open orders: %w", err)
	}

	makerIDs := make([]string, 0, len(orders))
	seen := make(map[string]bool, len(orders))
	for _, o := range orders {
		if !seen[o.UserID] {
			seen[o.UserID] = true
			makerIDs = append(makerIDs, o.UserID)
		}
	}

	var balances map[string]float64
	if len(makerIDs) > 0 {
		balances, err = s.balances.Balances(ctx, makerIDs, market.Token)
		if err != nil {
			return match.Snapshot{}, fmt.Errorf("trade_service: load maker balances: %w", err)
		}
	}

	return match.Snapshot{
		Market:      market,
		Orders:      orders,
		Balances:    balances,
		Fees:        s.cfg.Fees,
		MaxSlippage: s.cfg.MaxSlippage,
		Now:         s.now(),
	}, nil
}

// buildCommit assembles the atomic write set for one matched trade. Any
// unfilled remainder rests as a limit order when the taker gave an explicit
// limit, or as a short-lived protected order on a slippage-protected trade.
func (s *TradeService) buildCommit(req domain.TradeRequest, market domain.Market, res *match.Result) domain.TradeCommit {
	now := s.now()

	bet := domain.Bet{
		ID:         uuid.New().String(),
		UserID:     req.UserID,
		MarketID:   req.MarketID,
		AnswerID:   req.AnswerID,
		Outcome:    req.Outcome,
		Amount:     res.AmountSpent,
		Shares:     res.Shares,
		ProbBefore: res.ProbBefore,
		ProbAfter:  res.ProbAfter,
		Fees:       res.Fees,
		CreatedAt:  now,
	}

	commit := domain.TradeCommit{
		MarketID:     req.MarketID,
		Version:      market.Version,
		Pool:         res.Pool,
		Answers:      res.Answers,
		OrderUpdates: res.OrderUpdates,
		Bet:          bet,
	}

	if res.Remaining > 0 && (req.LimitProb != nil || req.Silent) {
		order := domain.LimitOrder{
			ID:        uuid.New().String(),
			UserID:    req.UserID,
			MarketID:  req.MarketID,
			AnswerID:  req.AnswerID,
			Side:      req.Outcome,
			Amount:    req.Amount,
			Filled:    res.AmountSpent,
			Shares:    res.Shares,
			Status:    domain.OrderStatusOpen,
			CreatedAt: now,
		}

		if req.LimitProb != nil {
			order.LimitProb = *req.LimitProb
			if req.ExpiresAfter > 0 {
				t := now.Add(req.ExpiresAfter)
				order.ExpiresAt = &t
			}
		} else {
			order.LimitProb = match.EffectiveLimit(res.ProbBefore, req.Outcome, true, s.cfg.MaxSlippage)
			expiry := req.ExpiresAfter
			if expiry <= 0 {
				expiry = s.cfg.ProtectionExpiry
			}
			t := now.Add(expiry)
			order.ExpiresAt = &t
		}

		commit.RestingOrder = &order
	}

	return commit
}

func (s *TradeService) publishTrade(ctx context.Context, bet domain.Bet, res *match.Result) {
	evt, _ := json.Marshal(map[string]any{
		"event":        "trade_committed",
		"bet_id":       bet.ID,
		"market":       bet.MarketID,
		"answer":       bet.AnswerID,
		"outcome":      string(bet.Outcome),
		"amount":       bet.Amount,
		"shares":       bet.Shares,
		"prob_before":  bet.ProbBefore,
		"prob_after":   bet.ProbAfter,
		"fully_filled": res.FullyFilled,
	})
	if err := s.bus.Publish(ctx, tradeChannel, evt); err != nil {
		s.logger.WarnContext(ctx, "trade_service: publish event failed",
			slog.String("bet_id", bet.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, tradeStream, evt); err != nil {
		s.logger.WarnContext(ctx, "trade_service: stream append failed",
			slog.String("bet_id", bet.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *TradeService) record(market domain.Market, req domain.TradeRequest, res *match.Result) {
	s.metrics.RecordTrade(
		string(req.Outcome), string(market.OutcomeType),
		res.AmountSpent, res.Fees.Total(), res.ProbAfter-res.ProbBefore,
	)

	expired := 0
	for _, u := range res.OrderUpdates {
		if u.Status == domain.OrderStatusCancelled {
			expired++
		}
	}
	s.metrics.RecordMatching(len(res.MakerFills), len(res.SkippedOrderIDs), expired, res.Remaining > 0 && (req.LimitProb != nil || req.Silent))

	for _, id := range res.SkippedOrderIDs {
		s.logger.Warn("trade_service: resting order skipped",
			slog.String("order_id", id),
			slog.String("market", market.ID),
			slog.String("error", domain.ErrStaleLimitOrder.Error()),
		)
	}

	s.logger.Info("trade_service: trade committed",
		slog.String("market", market.ID),
		slog.String("outcome", string(req.Outcome)),
		slog.Float64("amount", res.AmountSpent),
		slog.Float64("shares", res.Shares),
		slog.Float64("prob_after", res.ProbAfter),
		slog.Int("maker_fills", len(res.MakerFills)),
		slog.Bool("fully_filled", res.FullyFilled),
	)
}

// CancelOrder cancels a user's open limit order. Already-expired orders are
// settled the same way; the filled portion and its shares always stand.
func (s *TradeService) CancelOrder(ctx context.Context, userID, orderID string) (domain.LimitOrder, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.LimitOrder{}, fmt.Errorf("trade_service: load order %q: %w", orderID, err)
	}
	if order.UserID != userID {
		return domain.LimitOrder{}, fmt.Errorf("trade_service: order %q: %w", orderID, domain.ErrNotFound)
	}
	if order.Status != domain.OrderStatusOpen {
		return domain.LimitOrder{}, fmt.Errorf("trade_service: order %q: %w", orderID, domain.ErrOrderNotOpen)
	}

	market, err := s.markets.GetByID(ctx, order.MarketID)
	if err != nil {
		return domain.LimitOrder{}, fmt.Errorf("trade_service: load market %q: %w", order.MarketID, err)
	}

	// Serialize against trades so the order cannot fill mid-cancel.
	unlock, err := s.locks.Acquire(ctx, commitUnit(market, order.AnswerID), s.cfg.CommitLockTTL)
	if err != nil {
		return domain.LimitOrder{}, fmt.Errorf("trade_service: lock market %q: %w", order.MarketID, err)
	}
	defer unlock()

	order, err = s.orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.LimitOrder{}, fmt.Errorf("trade_service: reload order %q: %w", orderID, err)
	}
	if order.Status != domain.OrderStatusOpen {
		return domain.LimitOrder{}, fmt.Errorf("trade_service: order %q: %w", orderID, domain.ErrOrderNotOpen)
	}

	update := domain.OrderUpdate{
		OrderID: order.ID,
		Filled:  order.Filled,
		Shares:  order.Shares,
		Status:  domain.OrderStatusCancelled,
	}
	if err := s.orders.Update(ctx, update); err != nil {
		return domain.LimitOrder{}, fmt.Errorf("trade_service: cancel order %q: %w", orderID, err)
	}
	order.Status = domain.OrderStatusCancelled

	evt, _ := json.Marshal(map[string]any{
		"event":    "order_cancelled",
		"order_id": order.ID,
		"market":   order.MarketID,
		"filled":   order.Filled,
		"returned": order.Remaining(),
	})
	if err := s.bus.Publish(ctx, tradeChannel, evt); err != nil {
		s.logger.WarnContext(ctx, "trade_service: publish cancel event failed",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("trade_service: order cancelled",
		slog.String("order_id", order.ID),
		slog.Float64("filled", order.Filled),
		slog.Float64("returned", order.Remaining()),
	)
	return order, nil
}

// ExpireOrders settles open orders in one order book (market plus answer)
// whose deadline has passed. Trades settle expired orders lazily during
// matching; this sweep covers quiet markets.
func (s *TradeService) ExpireOrders(ctx context.Context, marketID, answerID string) (int, error) {
	orders, err := s.orders.ListOpen(ctx, marketID, answerID)
	if err != nil {
		return 0, fmt.Errorf("trade_service: list open orders for %q: %w", marketID, err)
	}

	now := s.now()
	var expired int
	for _, o := range orders {
		if !match.IsExpired(o, now) {
			continue
		}
		update := domain.OrderUpdate{
			OrderID: o.ID,
			Filled:  o.Filled,
			Shares:  o.Shares,
			Status:  domain.OrderStatusCancelled,
		}
		if err := s.orders.Update(ctx, update); err != nil {
			return expired, fmt.Errorf("trade_service: expire order %q: %w", o.ID, err)
		}
		expired++
	}
	if expired > 0 {
		s.metrics.RecordMatching(0, 0, expired, false)
	}
	return expired, nil
}

// ListUserOrders returns one user's limit orders, newest first.
func (s *TradeService) ListUserOrders(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.LimitOrder, error) {
	orders, err := s.orders.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("trade_service: list orders for %q: %w", userID, err)
	}
	return orders, nil
}

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrConcurrentModification)
}
