// Package league aggregates historical bets into per-user season earnings
// for leaderboard scoring. It is a full recompute over immutable records:
// running it twice on unchanged input produces identical output.
package league

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rknoche6/manifold/internal/domain"
	"github.com/rknoche6/manifold/internal/engine/payout"
)

// workers bounds the per-user fan-out.
const workers = 8

// Aggregator computes season earnings ledgers.
type Aggregator struct {
	denylist map[string]bool
	logger   *slog.Logger
}

// New creates an Aggregator. Markets whose slug appears in denylist are
// excluded from profit scoring even when bets exist there.
func New(denylist []string, logger *slog.Logger) *Aggregator {
	set := make(map[string]bool, len(denylist))
	for _, slug := range denylist {
		set[slug] = true
	}
	return &Aggregator{denylist: set, logger: logger}
}

// Aggregate computes one earnings entry per registrant for the season.
//
// Bets are grouped per user then per market; private, unranked and
// denylisted markets are excluded. A user/market pair whose profit comes
// out non-finite is logged and skipped so the rest of the season still
// aggregates. Creator-fee income from bets in a registrant's own markets
// is merged as a separate category. Registrants with no activity get a
// zero entry. Output is sorted by user id so reruns are byte-identical.
func (a *Aggregator) Aggregate(
	season domain.Season,
	registrants []string,
	bets []domain.Bet,
	contracts []domain.Market,
) []domain.EarningsEntry {
	contractsByID := make(map[string]domain.Market, len(contracts))
	for _, c := range contracts {
		contractsByID[c.ID] = c
	}

	betsByUser := make(map[string][]domain.Bet)
	for _, b := range bets {
		betsByUser[b.UserID] = append(betsByUser[b.UserID], b)
	}

	creatorFees := make(map[string]float64)
	for _, b := range bets {
		if c, ok := contractsByID[b.MarketID]; ok && b.Fees.Creator > 0 {
			creatorFees[c.CreatorID] += b.Fees.Creator
		}
	}

	profits := make([]float64, len(registrants))
	var g errgroup.Group
	g.SetLimit(workers)
	var mu sync.Mutex
	var skipped int

	for i, userID := range registrants {
		g.Go(func() error {
			total, n := a.userProfit(userID, betsByUser[userID], contractsByID)
			profits[i] = total
			if n > 0 {
				mu.Lock()
				skipped += n
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() // workers only report via profits and the skip counter

	if skipped > 0 {
		a.logger.Warn("league: skipped user/market pairs with calculation errors",
			slog.Int("season", season.ID),
			slog.Int("skipped", skipped),
		)
	}

	entries := make([]domain.EarningsEntry, 0, len(registrants))
	for i, userID := range registrants {
		breakdown := map[domain.EarningsCategory]float64{
			domain.CategoryProfit: profits[i],
		}
		total := profits[i]
		if fee, ok := creatorFees[userID]; ok {
			breakdown[domain.CategoryCreatorFee] = fee
			total += fee
		}
		entries = append(entries, domain.EarningsEntry{
			UserID:    userID,
			Season:    season.ID,
			Total:     total,
			Breakdown: breakdown,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].UserID < entries[j].UserID
	})
	return entries
}

// userProfit sums profit over one user's scorable markets. Returns the
// total and the count of user/market pairs skipped for calculation errors.
func (a *Aggregator) userProfit(
	userID string,
	userBets []domain.Bet,
	contractsByID map[string]domain.Market,
) (float64, int) {
	betsByMarket := make(map[string][]domain.Bet)
	for _, b := range userBets {
		betsByMarket[b.MarketID] = append(betsByMarket[b.MarketID], b)
	}

	// Sum in sorted market order: float addition is order-sensitive, and
	// reruns over unchanged input must produce bit-identical totals.
	marketIDs := make([]string, 0, len(betsByMarket))
	for id := range betsByMarket {
		marketIDs = append(marketIDs, id)
	}
	sort.Strings(marketIDs)

	var total float64
	var skipped int
	for _, marketID := range marketIDs {
		marketBets := betsByMarket[marketID]
		contract, ok := contractsByID[marketID]
		if !ok {
			continue
		}
		if contract.Visibility != domain.VisibilityPublic || !contract.IsRanked || a.denylist[contract.Slug] {
			continue
		}

		metrics, err := payout.Metrics(contract, marketBets)
		if err != nil {
			if errors.Is(err, domain.ErrCalculation) {
				a.logger.Error("league: profit is not finite",
					slog.String("market", contract.Slug),
					slog.String("user", userID),
				)
				skipped++
				continue
			}
			a.logger.Error("league: profit metrics failed",
				slog.String("market", contract.Slug),
				slog.String("user", userID),
				slog.String("error", err.Error()),
			)
			skipped++
			continue
		}
		total += metrics.Profit
	}
	return total, skipped
}
