package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rknoche6/manifold/internal/domain"
)

// Trader defines what the bet handler needs from the trade service.
type Trader interface {
	PlaceTrade(ctx context.Context, req domain.TradeRequest) (domain.TradeResult, error)
	CancelOrder(ctx context.Context, userID, orderID string) (domain.LimitOrder, error)
	ListUserOrders(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.LimitOrder, error)
}

// BetHandler serves trade placement and order management endpoints.
type BetHandler struct {
	trader Trader
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(trader Trader, logger *slog.Logger) *BetHandler {
	return &BetHandler{trader: trader, logger: logger}
}

// placeBetRequest is the JSON body for POST /api/bet.
type placeBetRequest struct {
	UserID   string  `json:"user_id"`
	MarketID string  `json:"market_id"`
	AnswerID string  `json:"answer_id,omitempty"`
	Outcome  string  `json:"outcome"`
	Amount   float64 `json:"amount"`

	LimitProb      *float64 `json:"limit_prob,omitempty"`
	Silent         bool     `json:"silent,omitempty"`
	ExpiresAfterMS int64    `json:"expires_after_ms,omitempty"`
}

// PlaceBet matches and commits one trade.
// POST /api/bet
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var body placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.UserID == "" || body.MarketID == "" {
		writeError(w, http.StatusBadRequest, "user_id and market_id are required")
		return
	}
	outcome := domain.Side(body.Outcome)
	if outcome != domain.SideYes && outcome != domain.SideNo {
		writeError(w, http.StatusBadRequest, "outcome must be YES or NO")
		return
	}

	req := domain.TradeRequest{
		UserID:       body.UserID,
		MarketID:     body.MarketID,
		AnswerID:     body.AnswerID,
		Outcome:      outcome,
		Amount:       body.Amount,
		LimitProb:    body.LimitProb,
		Silent:       body.Silent,
		ExpiresAfter: time.Duration(body.ExpiresAfterMS) * time.Millisecond,
	}

	result, err := h.trader.PlaceTrade(r.Context(), req)
	if err != nil {
		h.writeTradeError(w, r, body.MarketID, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *BetHandler) writeTradeError(w http.ResponseWriter, r *http.Request, marketID string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid trade request")
	case errors.Is(err, domain.ErrInsufficientLiquidity):
		writeError(w, http.StatusUnprocessableEntity, "market cannot absorb this trade")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "market or answer not found")
	case errors.Is(err, domain.ErrLockHeld), errors.Is(err, domain.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "market is busy, retry")
	default:
		h.logger.ErrorContext(r.Context(), "handler: place bet failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to place bet")
	}
}

// CancelOrder cancels one of the caller's open limit orders.
// DELETE /api/orders/{id}
func (h *BetHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	userID := r.URL.Query().Get("user_id")
	if orderID == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "order id and user_id are required")
		return
	}

	order, err := h.trader.CancelOrder(r.Context(), userID, orderID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, domain.ErrOrderNotOpen):
			writeError(w, http.StatusConflict, "order is not open")
		case errors.Is(err, domain.ErrLockHeld):
			writeError(w, http.StatusConflict, "market is busy, retry")
		default:
			h.logger.ErrorContext(r.Context(), "handler: cancel order failed",
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to cancel order")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"order":    order,
		"returned": order.Remaining(),
	})
}

// ListOrders returns the caller's limit orders.
// GET /api/orders?user_id=...
func (h *BetHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	orders, err := h.trader.ListUserOrders(r.Context(), userID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list orders failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}
