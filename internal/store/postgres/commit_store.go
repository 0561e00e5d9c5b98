package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rknoche6/manifold/internal/domain"
)

// CommitStore applies trade commits in a single transaction, guarded by the
// market version.
type CommitStore struct {
	pool *pgxpool.Pool
}

// NewCommitStore creates a new CommitStore backed by the given pool.
func NewCommitStore(pool *pgxpool.Pool) *CommitStore {
	return &CommitStore{pool: pool}
}

// Commit writes the pool state, order deltas, bet record and any resting
// remainder atomically. The market row update carries a version guard; a
// mismatch means another trade committed first and the whole transaction
// rolls back with ErrConcurrentModification.
func (s *CommitStore) Commit(ctx context.Context, c domain.TradeCommit) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin commit: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.bumpMarket(ctx, tx, c); err != nil {
		return err
	}

	for _, a := range c.Answers {
		tag, err := tx.Exec(ctx, `
			UPDATE answers SET pool_yes = $2, pool_no = $3
			WHERE id = $1`,
			a.ID, a.Pool.Yes, a.Pool.No,
		)
		if err != nil {
			return fmt.Errorf("postgres: commit answer %q: %w", a.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: answer %q: %w", a.ID, domain.ErrNotFound)
		}
	}

	for _, u := range c.OrderUpdates {
		tag, err := tx.Exec(ctx, `
			UPDATE limit_orders SET filled = $2, shares = $3, status = $4
			WHERE id = $1`,
			u.OrderID, u.Filled, u.Shares, u.Status,
		)
		if err != nil {
			return fmt.Errorf("postgres: commit order %q: %w", u.OrderID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: order %q: %w", u.OrderID, domain.ErrNotFound)
		}
	}

	b := c.Bet
	_, err = tx.Exec(ctx, `
		INSERT INTO bets (
			id, user_id, market_id, answer_id, outcome, amount, shares,
			prob_before, prob_after, fee_creator, fee_platform, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		b.ID, b.UserID, b.MarketID, b.AnswerID, b.Outcome, b.Amount, b.Shares,
		b.ProbBefore, b.ProbAfter, b.Fees.Creator, b.Fees.Platform, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: commit bet %q: %w", b.ID, err)
	}

	if o := c.RestingOrder; o != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO limit_orders (
				id, user_id, market_id, answer_id, side, limit_prob,
				amount, filled, shares, status, expires_at, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			o.ID, o.UserID, o.MarketID, o.AnswerID, o.Side, o.LimitProb,
			o.Amount, o.Filled, o.Shares, o.Status, o.ExpiresAt, o.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: commit resting order %q: %w", o.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit trade: %w", err)
	}
	return nil
}

// bumpMarket applies the pool update (binary-family markets) or just the
// version bump (multi markets, whose pools live on answer rows). Either way
// the update only succeeds against the expected version.
func (s *CommitStore) bumpMarket(ctx context.Context, tx pgx.Tx, c domain.TradeCommit) error {
	var tag interface{ RowsAffected() int64 }
	var err error

	if c.Pool != nil {
		tag, err = tx.Exec(ctx, `
			UPDATE markets SET pool_yes = $3, pool_no = $4, version = version + 1, updated_at = NOW()
			WHERE id = $1 AND version = $2`,
			c.MarketID, c.Version, c.Pool.Yes, c.Pool.No,
		)
	} else {
		tag, err = tx.Exec(ctx, `
			UPDATE markets SET version = version + 1, updated_at = NOW()
			WHERE id = $1 AND version = $2`,
			c.MarketID, c.Version,
		)
	}
	if err != nil {
		return fmt.Errorf("postgres: commit market %q: %w", c.MarketID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: market %q at version %d: %w",
			c.MarketID, c.Version, domain.ErrConcurrentModification)
	}
	return nil
}

// Compile-time interface check.
var _ domain.CommitStore = (*CommitStore)(nil)
