package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rknoche6/manifold/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderSelectCols = `id, user_id, market_id, answer_id, side, limit_prob,
	amount, filled, shares, status, expires_at, created_at`

func scanOrderRows(rows pgx.Rows) ([]domain.LimitOrder, error) {
	var orders []domain.LimitOrder
	for rows.Next() {
		var o domain.LimitOrder
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.MarketID, &o.AnswerID, &o.Side, &o.LimitProb,
			&o.Amount, &o.Filled, &o.Shares, &o.Status, &o.ExpiresAt, &o.CreatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Create inserts a new limit order.
func (s *OrderStore) Create(ctx context.Context, o domain.LimitOrder) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO limit_orders (
			id, user_id, market_id, answer_id, side, limit_prob,
			amount, filled, shares, status, expires_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		o.ID, o.UserID, o.MarketID, o.AnswerID, o.Side, o.LimitProb,
		o.Amount, o.Filled, o.Shares, o.Status, o.ExpiresAt, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns one limit order.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.LimitOrder, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM limit_orders WHERE id = $1`, id)

	var o domain.LimitOrder
	err := row.Scan(
		&o.ID, &o.UserID, &o.MarketID, &o.AnswerID, &o.Side, &o.LimitProb,
		&o.Amount, &o.Filled, &o.Shares, &o.Status, &o.ExpiresAt, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LimitOrder{}, fmt.Errorf("postgres: order %q: %w", id, domain.ErrNotFound)
		}
		return domain.LimitOrder{}, fmt.Errorf("postgres: get order %q: %w", id, err)
	}
	return o, nil
}

// ListOpen returns OPEN orders for a market, restricted to one answer when
// answerID is non-empty. Ordered by creation time so matching sees a
// stable snapshot.
func (s *OrderStore) ListOpen(ctx context.Context, marketID, answerID string) ([]domain.LimitOrder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderSelectCols+` FROM limit_orders
		WHERE market_id = $1 AND answer_id = $2 AND status = 'open'
		ORDER BY created_at`, marketID, answerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open orders for %q: %w", marketID, err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open orders: %w", err)
	}
	return orders, nil
}

// ListByUser returns a user's orders, newest first.
func (s *OrderStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.LimitOrder, error) {
	query := `SELECT ` + orderSelectCols + ` FROM limit_orders WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
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
		return nil, fmt.Errorf("postgres: list orders by user %q: %w", userID, err)
	}
	defer rows.Close()

	orders, err := scanOrderRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan user orders: %w", err)
	}
	return orders, nil
}

// Update applies one order delta.
func (s *OrderStore) Update(ctx context.Context, u domain.OrderUpdate) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE limit_orders SET filled = $2, shares = $3, status = $4
		WHERE id = $1`,
		u.OrderID, u.Filled, u.Shares, u.Status,
	)
	if err != nil {
		return fmt.Errorf("postgres: update order %q: %w", u.OrderID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: order %q: %w", u.OrderID, domain.ErrNotFound)
	}
	return nil
}

// Compile-time interface check.
var _ domain.OrderStore = (*OrderStore)(nil)
