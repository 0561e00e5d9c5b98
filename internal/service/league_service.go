package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rknoche6/manifold/internal/domain"
	"github.com/rknoche6/manifold/internal/league"
	"github.com/rknoche6/manifold/internal/metrics"
)

// LeagueService runs season profit aggregation: a full, idempotent recompute
// of every registrant's earnings from the immutable bet log.
type LeagueService struct {
	leagues domain.LeagueStore
	bets    domain.BetStore
	markets domain.MarketStore

	aggregator *league.Aggregator

	// SeasonDates maps a season id to its [start, end) window.
	seasonDates func(season int) (time.Time, time.Time, error)

	// snapshots, when non-nil, receives a JSON copy of each finished
	// ledger. Snapshot failures are logged but never fail the run.
	snapshots domain.BlobWriter

	metrics *metrics.EngineMetrics
	logger  *slog.Logger
}

// NewLeagueService creates a LeagueService.
func NewLeagueService(
	leagues domain.LeagueStore,
	bets domain.BetStore,
	markets domain.MarketStore,
	aggregator *league.Aggregator,
	seasonDates func(season int) (time.Time, time.Time, error),
	m *metrics.EngineMetrics,
	logger *slog.Logger,
) *LeagueService {
	return &LeagueService{
		leagues:     leagues,
		bets:        bets,
		markets:     markets,
		aggregator:  aggregator,
		seasonDates: seasonDates,
		metrics:     m,
		logger:      logger,
	}
}

// WithSnapshots attaches a blob writer that archives each finished season
// ledger.
func (s *LeagueService) WithSnapshots(w domain.BlobWriter) *LeagueService {
	s.snapshots = w
	return s
}

// AggregateSeason recomputes and replaces the earnings ledger for one
// season. Safe to re-run at any time; output depends only on the bet log.
func (s *LeagueService) AggregateSeason(ctx context.Context, season int) ([]domain.EarningsEntry, error) {
	started := time.Now()

	entries, err := s.aggregateSeason(ctx, season)
	if err != nil {
		s.metrics.RecordAggregation("error", time.Since(started).Seconds(), 0)
		return nil, err
	}

	s.metrics.RecordAggregation("ok", time.Since(started).Seconds(), len(entries))
	s.logger.Info("league_service: season aggregated",
		slog.Int("season", season),
		slog.Int("users", len(entries)),
		slog.Duration("took", time.Since(started)),
	)
	return entries, nil
}

func (s *LeagueService) aggregateSeason(ctx context.Context, season int) ([]domain.EarningsEntry, error) {
	start, end, err := s.seasonDates(season)
	if err != nil {
		return nil, fmt.Errorf("league_service: season %d: %w", season, err)
	}

	registrants, err := s.leagues.ListRegistrants(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("league_service: list registrants: %w", err)
	}
	if len(registrants) == 0 {
		s.logger.Info("league_service: no registrants, skipping",
			slog.Int("season", season))
		return nil, nil
	}

	bets, err := s.bets.ListBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("league_service: list season bets: %w", err)
	}

	marketIDs := make([]string, 0)
	seen := make(map[string]bool)
	for _, b := range bets {
		if !seen[b.MarketID] {
			seen[b.MarketID] = true
			marketIDs = append(marketIDs, b.MarketID)
		}
	}
	contracts, err := s.markets.GetByIDs(ctx, marketIDs)
	if err != nil {
		return nil, fmt.Errorf("league_service: load season markets: %w", err)
	}

	entries := s.aggregator.Aggregate(
		domain.Season{ID: season, Start: start, End: end},
		registrants, bets, contracts,
	)

	if err := s.leagues.ReplaceSeason(ctx, season, entries); err != nil {
		return nil, fmt.Errorf("league_service: replace season %d: %w", season, err)
	}

	s.archiveSnapshot(ctx, season, entries)
	return entries, nil
}

// archiveSnapshot writes the finished ledger to blob storage, best effort.
func (s *LeagueService) archiveSnapshot(ctx context.Context, season int, entries []domain.EarningsEntry) {
	if s.snapshots == nil {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"season":       season,
		"generated_at": time.Now().UTC(),
		"entries":      entries,
	})
	if err != nil {
		s.logger.Warn("league_service: marshal snapshot failed",
			slog.Int("season", season),
			slog.String("error", err.Error()),
		)
		return
	}

	path := fmt.Sprintf("leagues/season-%d/%s.json", season, uuid.New().String())
	if err := s.snapshots.Put(ctx, path, bytes.NewReader(payload), "application/json"); err != nil {
		s.logger.Warn("league_service: snapshot upload failed",
			slog.Int("season", season),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("league_service: snapshot archived",
		slog.Int("season", season),
		slog.String("path", path),
	)
}

// CurrentSeason returns the season id containing now, or an error before
// season one starts.
func (s *LeagueService) CurrentSeason(now time.Time) (int, error) {
	for season := 1; ; season++ {
		start, end, err := s.seasonDates(season)
		if err != nil {
			return 0, err
		}
		if now.Before(start) {
			return 0, fmt.Errorf("league_service: %s is before season one", now.Format("2006-01-02"))
		}
		if now.Before(end) {
			return season, nil
		}
	}
}
