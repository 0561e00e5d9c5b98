package service

import (
	"context"
	"fmt"

	"github.com/rknoche6/manifold/internal/domain"
	"github.com/rknoche6/manifold/internal/engine/cpmm"
)

// MarketView is a market decorated with its current display probabilities.
type MarketView struct {
	domain.Market
	Probability float64      `json:"probability"`
	AnswerProbs []AnswerProb `json:"answer_probs,omitempty"`
}

// AnswerProb pairs an answer with its current probability.
type AnswerProb struct {
	AnswerID    string  `json:"answer_id"`
	Probability float64 `json:"probability"`
}

// MarketService exposes read paths over markets and their bet history.
type MarketService struct {
	markets domain.MarketStore
	bets    domain.BetStore
}

// NewMarketService creates a MarketService.
func NewMarketService(markets domain.MarketStore, bets domain.BetStore) *MarketService {
	return &MarketService{markets: markets, bets: bets}
}

// GetMarket returns one market with display probabilities attached.
func (s *MarketService) GetMarket(ctx context.Context, id string) (MarketView, error) {
	market, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return MarketView{}, fmt.Errorf("market_service: get market %q: %w", id, err)
	}
	return decorate(market), nil
}

// ListActive returns unresolved markets with display probabilities.
func (s *MarketService) ListActive(ctx context.Context, opts domain.ListOpts) ([]MarketView, error) {
	markets, err := s.markets.ListActive(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list active: %w", err)
	}
	views := make([]MarketView, 0, len(markets))
	for _, m := range markets {
		views = append(views, decorate(m))
	}
	return views, nil
}

// ListBets returns a market's bet history, newest first.
func (s *MarketService) ListBets(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Bet, error) {
	bets, err := s.bets.ListByMarket(ctx, marketID, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list bets for %q: %w", marketID, err)
	}
	return bets, nil
}

func decorate(m domain.Market) MarketView {
	view := MarketView{Market: m}
	if m.OutcomeType.IsBinaryFamily() {
		view.Probability = cpmm.RoundProb(cpmm.Probability(m.Pool, m.P))
		return view
	}
	for _, a := range m.Answers {
		view.AnswerProbs = append(view.AnswerProbs, AnswerProb{
			AnswerID:    a.ID,
			Probability: cpmm.RoundProb(cpmm.AnswerProbability(a)),
		})
	}
	return view
}
