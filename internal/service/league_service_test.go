package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rknoche6/manifold/internal/domain"
	"github.com/rknoche6/manifold/internal/league"
	"github.com/rknoche6/manifold/internal/metrics"
)

type fakeLeagueStore struct {
	registrants []string
	replaced    map[int][]domain.EarningsEntry
}

func (f *fakeLeagueStore) ListRegistrants(context.Context, int) ([]string, error) {
	return f.registrants, nil
}

func (f *fakeLeagueStore) ReplaceSeason(_ context.Context, season int, entries []domain.EarningsEntry) error {
	if f.replaced == nil {
		f.replaced = make(map[int][]domain.EarningsEntry)
	}
	f.replaced[season] = entries
	return nil
}

type fakeBetStore struct {
	bets []domain.Bet
}

func (f *fakeBetStore) ListBetween(_ context.Context, from, to time.Time) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, b := range f.bets {
		if !b.CreatedAt.Before(from) && b.CreatedAt.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBetStore) ListByMarket(context.Context, string, domain.ListOpts) ([]domain.Bet, error) {
	return nil, nil
}

func monthlySeasons(start time.Time) func(int) (time.Time, time.Time, error) {
	return func(season int) (time.Time, time.Time, error) {
		return start.AddDate(0, season-1, 0), start.AddDate(0, season, 0), nil
	}
}

func TestAggregateSeasonReplacesLedger(t *testing.T) {
	seasonStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	market := binaryMarket("m1")
	market.Resolution = "YES"
	store := newMemStore()
	store.markets["m1"] = market

	leagues := &fakeLeagueStore{registrants: []string{"alice", "bob"}}
	bets := &fakeBetStore{bets: []domain.Bet{
		{
			ID: "b1", UserID: "alice", MarketID: "m1",
			Outcome: domain.SideYes, Amount: 100, Shares: 150,
			CreatedAt: seasonStart.Add(24 * time.Hour),
		},
		// Outside the season window; must not count.
		{
			ID: "b2", UserID: "alice", MarketID: "m1",
			Outcome: domain.SideYes, Amount: 100, Shares: 150,
			CreatedAt: seasonStart.AddDate(0, 2, 0),
		},
	}}

	svc := NewLeagueService(
		leagues, bets, store,
		league.New(nil, slog.New(slog.DiscardHandler)),
		monthlySeasons(seasonStart),
		metrics.New(),
		slog.New(slog.DiscardHandler),
	)

	entries, err := svc.AggregateSeason(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Sorted by user id: alice won 150 shares for 100, bob was inactive.
	assert.Equal(t, "alice", entries[0].UserID)
	assert.InDelta(t, 50, entries[0].Total, 1e-9)
	assert.Equal(t, "bob", entries[1].UserID)
	assert.InDelta(t, 0, entries[1].Total, 1e-9)

	require.Contains(t, leagues.replaced, 1)
	assert.Equal(t, entries, leagues.replaced[1])
}

func TestAggregateSeasonNoRegistrants(t *testing.T) {
	svc := NewLeagueService(
		&fakeLeagueStore{}, &fakeBetStore{}, newMemStore(),
		league.New(nil, slog.New(slog.DiscardHandler)),
		monthlySeasons(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		metrics.New(),
		slog.New(slog.DiscardHandler),
	)

	entries, err := svc.AggregateSeason(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCurrentSeason(t *testing.T) {
	svc := NewLeagueService(
		&fakeLeagueStore{}, &fakeBetStore{}, newMemStore(),
		league.New(nil, slog.New(slog.DiscardHandler)),
		monthlySeasons(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		metrics.New(),
		slog.New(slog.DiscardHandler),
	)

	season, err := svc.CurrentSeason(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, season)

	_, err = svc.CurrentSeason(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}
