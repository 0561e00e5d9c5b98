package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rknoche6/manifold/internal/domain"
)

// LeagueStore implements domain.LeagueStore using PostgreSQL.
type LeagueStore struct {
	pool *pgxpool.Pool
}

// NewLeagueStore creates a new LeagueStore backed by the given pool.
func NewLeagueStore(pool *pgxpool.Pool) *LeagueStore {
	return &LeagueStore{pool: pool}
}

// ListRegistrants returns the user ids registered for a season, sorted so
// aggregation output is deterministic.
func (s *LeagueStore) ListRegistrants(ctx context.Context, season int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM leagues WHERE season = $1 ORDER BY user_id`, season)
	if err != nil {
		return nil, fmt.Errorf("postgres: list registrants for season %d: %w", season, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan registrant: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReplaceSeason overwrites every registrant's earnings for the season in one
// transaction. Entries are keyed (user_id, season) so re-running a season is
// idempotent.
func (s *LeagueStore) ReplaceSeason(ctx context.Context, season int, entries []domain.EarningsEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin replace season %d: %w", season, err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		breakdown, err := json.Marshal(e.Breakdown)
		if err != nil {
			return fmt.Errorf("postgres: marshal breakdown for %q: %w", e.UserID, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO leagues (user_id, season, earned, earned_breakdown, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (user_id, season) DO UPDATE SET
				earned = EXCLUDED.earned,
				earned_breakdown = EXCLUDED.earned_breakdown,
				updated_at = NOW()`,
			e.UserID, season, e.Total, breakdown,
		)
		if err != nil {
			return fmt.Errorf("postgres: replace earnings for %q season %d: %w", e.UserID, season, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit season %d: %w", season, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.LeagueStore = (*LeagueStore)(nil)
