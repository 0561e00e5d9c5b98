package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rknoche6/manifold/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

const betSelectCols = `id, user_id, market_id, answer_id, outcome, amount,
	shares, prob_before, prob_after, fee_creator, fee_platform, created_at`

func scanBetRows(rows pgx.Rows) ([]domain.Bet, error) {
	var bets []domain.Bet
	for rows.Next() {
		var b domain.Bet
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.MarketID, &b.AnswerID, &b.Outcome, &b.Amount,
			&b.Shares, &b.ProbBefore, &b.ProbAfter,
			&b.Fees.Creator, &b.Fees.Platform, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// ListBetween returns bets created in the half-open window [from, to),
// ordered by creation time.
func (s *BetStore) ListBetween(ctx context.Context, from, to time.Time) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+betSelectCols+` FROM bets
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets between: %w", err)
	}
	defer rows.Close()

	bets, err := scanBetRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bets: %w", err)
	}
	return bets, nil
}

// ListByMarket returns a market's bets, newest first.
func (s *BetStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Bet, error) {
	query := `SELECT ` + betSelectCols + ` FROM bets WHERE market_id = $1 ORDER BY created_at DESC`
	args := []any{marketID}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for %q: %w", marketID, err)
	}
	defer rows.Close()

	bets, err := scanBetRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan market bets: %w", err)
	}
	return bets, nil
}

// Compile-time interface check.
var _ domain.BetStore = (*BetStore)(nil)
