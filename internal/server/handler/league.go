package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rknoche6/manifold/internal/domain"
)

// LeagueRunner defines what the league handler needs from the league
// service.
type LeagueRunner interface {
	AggregateSeason(ctx context.Context, season int) ([]domain.EarningsEntry, error)
	CurrentSeason(now time.Time) (int, error)
}

// LeagueHandler serves season aggregation endpoints.
type LeagueHandler struct {
	leagues LeagueRunner
	logger  *slog.Logger
}

// NewLeagueHandler creates a LeagueHandler.
func NewLeagueHandler(leagues LeagueRunner, logger *slog.Logger) *LeagueHandler {
	return &LeagueHandler{leagues: leagues, logger: logger}
}

// UpdateSeason recomputes the earnings ledger for one season. Without a
// season query parameter it scores the current season.
// POST /api/league/update?season=3
func (h *LeagueHandler) UpdateSeason(w http.ResponseWriter, r *http.Request) {
	season := 0
	if v := r.URL.Query().Get("season"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "season must be a positive integer")
			return
		}
		season = n
	} else {
		n, err := h.leagues.CurrentSeason(time.Now().UTC())
		if err != nil {
			writeError(w, http.StatusBadRequest, "no current season")
			return
		}
		season = n
	}

	entries, err := h.leagues.AggregateSeason(r.Context(), season)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: league update failed",
			slog.Int("season", season),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update season")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"season":  season,
		"users":   len(entries),
		"entries": entries,
	})
}
