package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rknoche6/manifold/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketSelectCols = `id, creator_id, slug, question, outcome_type, token,
	pool_yes, pool_no, p, sum_to_one, min_prob, max_prob,
	visibility, is_ranked, resolution, resolution_prob, version,
	created_at, updated_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	err := row.Scan(
		&m.ID, &m.CreatorID, &m.Slug, &m.Question, &m.OutcomeType, &m.Token,
		&m.Pool.Yes, &m.Pool.No, &m.P, &m.ShouldAnswersSumToOne,
		&m.MinProb, &m.MaxProb,
		&m.Visibility, &m.IsRanked, &m.Resolution, &m.ResolutionProb, &m.Version,
		&m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

// GetByID returns a market with its answers loaded.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketSelectCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, fmt.Errorf("postgres: market %q: %w", id, domain.ErrNotFound)
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %q: %w", id, err)
	}

	if m.OutcomeType.IsMulti() {
		if m.Answers, err = s.listAnswers(ctx, id); err != nil {
			return domain.Market{}, err
		}
	}
	return m, nil
}

func (s *MarketStore) listAnswers(ctx context.Context, marketID string) ([]domain.Answer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, market_id, idx, text, pool_yes, pool_no, resolution, created_at
		 FROM answers WHERE market_id = $1 ORDER BY idx`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list answers for %q: %w", marketID, err)
	}
	defer rows.Close()

	var answers []domain.Answer
	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(
			&a.ID, &a.MarketID, &a.Index, &a.Text,
			&a.Pool.Yes, &a.Pool.No, &a.Resolution, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// GetByIDs returns the markets (with answers) for the given ids. Missing
// ids are silently omitted.
func (s *MarketStore) GetByIDs(ctx context.Context, ids []string) ([]domain.Market, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+marketSelectCols+` FROM markets WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: get markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range markets {
		if markets[i].OutcomeType.IsMulti() {
			if markets[i].Answers, err = s.listAnswers(ctx, markets[i].ID); err != nil {
				return nil, err
			}
		}
	}
	return markets, nil
}

// Upsert inserts or replaces a market and its answers.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin upsert market: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO markets (
			id, creator_id, slug, question, outcome_type, token,
			pool_yes, pool_no, p, sum_to_one, min_prob, max_prob,
			visibility, is_ranked, resolution, resolution_prob, version,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,NOW())
		ON CONFLICT (id) DO UPDATE SET
			question = EXCLUDED.question,
			pool_yes = EXCLUDED.pool_yes,
			pool_no = EXCLUDED.pool_no,
			p = EXCLUDED.p,
			visibility = EXCLUDED.visibility,
			is_ranked = EXCLUDED.is_ranked,
			resolution = EXCLUDED.resolution,
			resolution_prob = EXCLUDED.resolution_prob,
			version = EXCLUDED.version,
			updated_at = NOW()`,
		m.ID, m.CreatorID, m.Slug, m.Question, m.OutcomeType, m.Token,
		m.Pool.Yes, m.Pool.No, m.P, m.ShouldAnswersSumToOne, m.MinProb, m.MaxProb,
		m.Visibility, m.IsRanked, m.Resolution, m.ResolutionProb, m.Version,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %q: %w", m.ID, err)
	}

	for _, a := range m.Answers {
		_, err = tx.Exec(ctx, `
			INSERT INTO answers (id, market_id, idx, text, pool_yes, pool_no, resolution, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (id) DO UPDATE SET
				pool_yes = EXCLUDED.pool_yes,
				pool_no = EXCLUDED.pool_no,
				resolution = EXCLUDED.resolution`,
			a.ID, a.MarketID, a.Index, a.Text, a.Pool.Yes, a.Pool.No, a.Resolution, a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: upsert answer %q: %w", a.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// ListActive returns unresolved markets with pagination.
func (s *MarketStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketSelectCols + ` FROM markets WHERE resolution = '' ORDER BY created_at DESC`
	args := []any{}
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
		return nil, fmt.Errorf("postgres: list active markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// Compile-time interface check.
var _ domain.MarketStore = (*MarketStore)(nil)
