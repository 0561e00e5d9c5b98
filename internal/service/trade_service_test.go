package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rknoche6/manifold/internal/domain"
	"github.com/rknoche6/manifold/internal/metrics"
)

// memStore is an in-memory implementation of the store interfaces, applying
// trade commits the same way the SQL store does: version-guarded and
// all-or-nothing.
type memStore struct {
	mu       sync.Mutex
	markets  map[string]domain.Market
	orders   map[string]domain.LimitOrder
	bets     []domain.Bet
	balances map[string]float64
}

func newMemStore() *memStore {
	return &memStore{
		markets:  make(map[string]domain.Market),
		orders:   make(map[string]domain.LimitOrder),
		balances: make(map[string]float64),
	}
}

func (m *memStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	market, ok := m.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return market, nil
}

func (m *memStore) GetByIDs(_ context.Context, ids []string) ([]domain.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Market
	for _, id := range ids {
		if market, ok := m.markets[id]; ok {
			out = append(out, market)
		}
	}
	return out, nil
}

func (m *memStore) Upsert(_ context.Context, market domain.Market) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets[market.ID] = market
	return nil
}

func (m *memStore) ListActive(_ context.Context, _ domain.ListOpts) ([]domain.Market, error) {
	return nil, nil
}

func (m *memStore) Create(_ context.Context, o domain.LimitOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	return nil
}

func (m *memStore) GetOrder(_ context.Context, id string) (domain.LimitOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.LimitOrder{}, domain.ErrNotFound
	}
	return o, nil
}

func (m *memStore) ListOpen(_ context.Context, marketID, answerID string) ([]domain.LimitOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LimitOrder
	for _, o := range m.orders {
		if o.MarketID == marketID && o.AnswerID == answerID && o.Status == domain.OrderStatusOpen {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ListByUser(_ context.Context, userID string, _ domain.ListOpts) ([]domain.LimitOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LimitOrder
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, u domain.OrderUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[u.OrderID]
	if !ok {
		return domain.ErrNotFound
	}
	o.Filled = u.Filled
	o.Shares = u.Shares
	o.Status = u.Status
	m.orders[u.OrderID] = o
	return nil
}

func (m *memStore) Commit(_ context.Context, c domain.TradeCommit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	market, ok := m.markets[c.MarketID]
	if !ok {
		return domain.ErrNotFound
	}
	if market.Version != c.Version {
		return domain.ErrConcurrentModification
	}

	if c.Pool != nil {
		market.Pool = *c.Pool
	}
	if len(c.Answers) > 0 {
		byID := make(map[string]domain.Answer, len(c.Answers))
		for _, a := range c.Answers {
			byID[a.ID] = a
		}
		for i, a := range market.Answers {
			if updated, ok := byID[a.ID]; ok {
				market.Answers[i].Pool = updated.Pool
			}
		}
	}
	market.Version++
	m.markets[c.MarketID] = market

	for _, u := range c.OrderUpdates {
		o := m.orders[u.OrderID]
		o.Filled = u.Filled
		o.Shares = u.Shares
		o.Status = u.Status
		m.orders[u.OrderID] = o
	}

	m.bets = append(m.bets, c.Bet)
	if c.RestingOrder != nil {
		m.orders[c.RestingOrder.ID] = *c.RestingOrder
	}
	return nil
}

func (m *memStore) Balances(_ context.Context, userIDs []string, _ domain.Token) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(userIDs))
	for _, id := range userIDs {
		if bal, ok := m.balances[id]; ok {
			out[id] = bal
		}
	}
	return out, nil
}

type noopLocks struct{}

func (noopLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}

type recordingBus struct {
	mu       sync.Mutex
	events   [][]byte
	streamed [][]byte
}

func (b *recordingBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, payload)
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, nil
}

func (b *recordingBus) StreamAppend(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed = append(b.streamed, payload)
	return nil
}

// orderStoreAdapter bridges memStore's GetOrder to the OrderStore interface
// without colliding with the market GetByID.
type orderStoreAdapter struct{ *memStore }

func (a orderStoreAdapter) GetByID(ctx context.Context, id string) (domain.LimitOrder, error) {
	return a.GetOrder(ctx, id)
}

func newTestService(store *memStore) (*TradeService, *recordingBus) {
	bus := &recordingBus{}
	svc := NewTradeService(
		store,
		orderStoreAdapter{store},
		store,
		store,
		noopLocks{},
		bus,
		metrics.New(),
		TradeConfig{
			MaxSlippage:      0.10,
			ProtectionExpiry: time.Second,
			CommitLockTTL:    5 * time.Second,
		},
		slog.New(slog.DiscardHandler),
	)
	return svc, bus
}

func binaryMarket(id string) domain.Market {
	return domain.Market{
		ID:          id,
		CreatorID:   "creator",
		Slug:        id,
		OutcomeType: domain.OutcomeBinary,
		Token:       domain.TokenMana,
		Pool:        domain.Pool{Yes: 100, No: 100},
		P:           0.5,
		MinProb:     0.01,
		MaxProb:     0.99,
		Visibility:  domain.VisibilityPublic,
		IsRanked:    true,
	}
}

func TestPlaceTradeAgainstPool(t *testing.T) {
	store := newMemStore()
	store.markets["m1"] = binaryMarket("m1")
	svc, bus := newTestService(store)

	res, err := svc.PlaceTrade(context.Background(), domain.TradeRequest{
		UserID:   "alice",
		MarketID: "m1",
		Outcome:  domain.SideYes,
		Amount:   100,
	})
	require.NoError(t, err)

	assert.True(t, res.FullyFilled)
	assert.InDelta(t, 150, res.Shares, 1e-9)
	assert.InDelta(t, 0.5, res.ProbBefore, 1e-9)
	assert.InDelta(t, 0.8, res.ProbAfter, 1e-9)
	assert.NotEmpty(t, res.BetID)
	assert.Empty(t, res.OrderID)

	market := store.markets["m1"]
	assert.InDelta(t, 50, market.Pool.Yes, 1e-9)
	assert.InDelta(t, 200, market.Pool.No, 1e-9)
	assert.Equal(t, int64(1), market.Version)

	require.Len(t, store.bets, 1)
	assert.Equal(t, "alice", store.bets[0].UserID)
	assert.Len(t, bus.events, 1)
	assert.Len(t, bus.streamed, 1)
}

func TestPlaceTradeProtectedRestsRemainder(t *testing.T) {
	store := newMemStore()
	store.markets["m1"] = binaryMarket("m1")
	svc, _ := newTestService(store)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	res, err := svc.PlaceTrade(context.Background(), domain.TradeRequest{
		UserID:   "alice",
		MarketID: "m1",
		Outcome:  domain.SideYes,
		Amount:   1000,
		Silent:   true,
	})
	require.NoError(t, err)

	// The curve stops at basis + 0.10; the rest waits as a protected order.
	assert.False(t, res.FullyFilled)
	assert.InDelta(t, 0.6, res.ProbAfter, 1e-4)
	require.NotEmpty(t, res.OrderID)

	order := store.orders[res.OrderID]
	assert.Equal(t, domain.OrderStatusOpen, order.Status)
	assert.InDelta(t, 0.6, order.LimitProb, 1e-4)
	assert.InDelta(t, 1000, order.Amount, 1e-9)
	assert.InDelta(t, res.AmountSpent, order.Filled, 1e-9)
	require.NotNil(t, order.ExpiresAt)
	assert.Equal(t, now.Add(time.Second), *order.ExpiresAt)
}

func TestProtectedOrderExpiresOnNextTrade(t *testing.T) {
	store := newMemStore()
	store.markets["m1"] = binaryMarket("m1")
	store.balances["alice"] = 10_000
	svc, _ := newTestService(store)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	res, err := svc.PlaceTrade(context.Background(), domain.TradeRequest{
		UserID:   "alice",
		MarketID: "m1",
		Outcome:  domain.SideYes,
		Amount:   1000,
		Silent:   true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.OrderID)
	filledBefore := store.orders[res.OrderID].Filled

	// 1.1s later the protected remainder is past its deadline; the next
	// trade settles it instead of filling against it.
	now = now.Add(1100 * time.Millisecond)

	_, err = svc.PlaceTrade(context.Background(), domain.TradeRequest{
		UserID:   "bob",
		MarketID: "m1",
		Outcome:  domain.SideNo,
		Amount:   10,
	})
	require.NoError(t, err)

	order := store.orders[res.OrderID]
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	assert.InDelta(t, filledBefore, order.Filled, 1e-9, "filled portion stands after expiry")
}

func TestPlaceTradeFillsRestingOrderFirst(t *testing.T) {
	store := newMemStore()
	store.markets["m1"] = binaryMarket("m1")
	store.balances["maker"] = 1_000
	store.orders["o1"] = domain.LimitOrder{
		ID:        "o1",
		UserID:    "maker",
		MarketID:  "m1",
		Side:      domain.SideNo,
		LimitProb: 0.5,
		Amount:    25,
		Status:    domain.OrderStatusOpen,
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	svc, _ := newTestService(store)

	res, err := svc.PlaceTrade(context.Background(), domain.TradeRequest{
		UserID:   "taker",
		MarketID: "m1",
		Outcome:  domain.SideYes,
		Amount:   25,
	})
	require.NoError(t, err)

	// The full amount matches the resting NO order at 0.50; the pool never
	// moves.
	require.Len(t, res.MakerFills, 1)
	assert.Equal(t, "o1", res.MakerFills[0].OrderID)
	assert.InDelta(t, 25, res.MakerFills[0].Amount, 1e-9)
	assert.InDelta(t, 50, res.Shares, 1e-9)
	assert.InDelta(t, 0.5, res.ProbAfter, 1e-9)

	order := store.orders["o1"]
	assert.Equal(t, domain.OrderStatusFilled, order.Status)

	market := store.markets["m1"]
	assert.InDelta(t, 100, market.Pool.Yes, 1e-9)
	assert.InDelta(t, 100, market.Pool.No, 1e-9)
}

// A resting order whose owner cannot cover the maker leg is passed over
// and reported; the trade still completes against the pool.
func TestPlaceTradeSkipsStaleOrder(t *testing.T) {
	store := newMemStore()
	store.markets["m1"] = binaryMarket("m1")
	store.balances["pauper"] = 10
	store.orders["o1"] = domain.LimitOrder{
		ID:        "o1",
		UserID:    "pauper",
		MarketID:  "m1",
		Side:      domain.SideNo,
		LimitProb: 0.5,
		Amount:    40,
		Status:    domain.OrderStatusOpen,
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	svc, _ := newTestService(store)

	res, err := svc.PlaceTrade(context.Background(), domain.TradeRequest{
		UserID:   "taker",
		MarketID: "m1",
		Outcome:  domain.SideYes,
		Amount:   20,
	})
	require.NoError(t, err)

	// Covering the fill would cost the maker 20 against a balance of 10.
	assert.Equal(t, []string{"o1"}, res.SkippedOrderIDs)
	assert.Empty(t, res.MakerFills)
	assert.True(t, res.FullyFilled)
	assert.Equal(t, domain.OrderStatusOpen, store.orders["o1"].Status)
	assert.Greater(t, store.markets["m1"].Pool.No, 100.0, "trade filled against the pool instead")
}

func TestPlaceTradeResolvedMarketRejected(t *testing.T) {
	store := newMemStore()
	m := binaryMarket("m1")
	m.Resolution = "YES"
	store.markets["m1"] = m
	svc, _ := newTestService(store)

	_, err := svc.PlaceTrade(context.Background(), domain.TradeRequest{
		UserID:   "alice",
		MarketID: "m1",
		Outcome:  domain.SideYes,
		Amount:   10,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestCancelOrder(t *testing.T) {
	store := newMemStore()
	store.markets["m1"] = binaryMarket("m1")
	store.orders["o1"] = domain.LimitOrder{
		ID:        "o1",
		UserID:    "alice",
		MarketID:  "m1",
		Side:      domain.SideYes,
		LimitProb: 0.4,
		Amount:    100,
		Filled:    30,
		Shares:    75,
		Status:    domain.OrderStatusOpen,
	}
	svc, _ := newTestService(store)

	order, err := svc.CancelOrder(context.Background(), "alice", "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	assert.InDelta(t, 30, order.Filled, 1e-9)
	assert.InDelta(t, 70, order.Remaining(), 1e-9)

	_, err = svc.CancelOrder(context.Background(), "alice", "o1")
	assert.ErrorIs(t, err, domain.ErrOrderNotOpen)
}

func TestCancelOrderWrongOwner(t *testing.T) {
	store := newMemStore()
	store.markets["m1"] = binaryMarket("m1")
	store.orders["o1"] = domain.LimitOrder{
		ID:       "o1",
		UserID:   "alice",
		MarketID: "m1",
		Amount:   100,
		Status:   domain.OrderStatusOpen,
	}
	svc, _ := newTestService(store)

	_, err := svc.CancelOrder(context.Background(), "mallory", "o1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExpireOrdersSweep(t *testing.T) {
	store := newMemStore()
	store.markets["m1"] = binaryMarket("m1")

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	store.orders["expired"] = domain.LimitOrder{
		ID: "expired", UserID: "a", MarketID: "m1",
		Amount: 100, Status: domain.OrderStatusOpen, ExpiresAt: &past,
	}
	store.orders["alive"] = domain.LimitOrder{
		ID: "alive", UserID: "b", MarketID: "m1",
		Amount: 100, Status: domain.OrderStatusOpen, ExpiresAt: &future,
	}
	svc, _ := newTestService(store)
	svc.now = func() time.Time { return now }

	n, err := svc.ExpireOrders(context.Background(), "m1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.OrderStatusCancelled, store.orders["expired"].Status)
	assert.Equal(t, domain.OrderStatusOpen, store.orders["alive"].Status)
}
