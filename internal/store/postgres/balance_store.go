package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rknoche6/manifold/internal/domain"
)

// BalanceStore implements domain.BalanceSource reading user balances.
type BalanceStore struct {
	pool *pgxpool.Pool
}

// NewBalanceStore creates a new BalanceStore backed by the given pool.
func NewBalanceStore(pool *pgxpool.Pool) *BalanceStore {
	return &BalanceStore{pool: pool}
}

// Balances returns the balance for each of the given users in the token's
// currency. Unknown users are simply absent from the result, which the
// matching engine treats as a zero balance.
func (s *BalanceStore) Balances(ctx context.Context, userIDs []string, token domain.Token) (map[string]float64, error) {
	if len(userIDs) == 0 {
		return map[string]float64{}, nil
	}

	col := "mana_balance"
	if token == domain.TokenCash {
		col = "cash_balance"
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, `+col+` FROM users WHERE id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres: load balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]float64, len(userIDs))
	for rows.Next() {
		var id string
		var bal float64
		if err := rows.Scan(&id, &bal); err != nil {
			return nil, fmt.Errorf("postgres: scan balance: %w", err)
		}
		balances[id] = bal
	}
	return balances, rows.Err()
}

// Compile-time interface check.
var _ domain.BalanceSource = (*BalanceStore)(nil)
