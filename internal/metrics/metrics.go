// Package metrics provides Prometheus metrics for the market engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineMetrics collects and exposes engine-related Prometheus metrics.
type EngineMetrics struct {
	registry *prometheus.Registry

	// Trade metrics
	TradesTotal *prometheus.CounterVec
	TradeAmount *prometheus.HistogramVec
	TradeFees   prometheus.Counter
	ProbMove    *prometheus.HistogramVec

	// Matching metrics
	MakerFillsTotal    prometheus.Counter
	StaleOrdersSkipped prometheus.Counter
	ExpiredOrders      prometheus.Counter
	RestingOrders      prometheus.Counter
	CommitConflicts    prometheus.Counter

	// League metrics
	AggregationRuns     *prometheus.CounterVec
	AggregationDuration prometheus.Histogram
	AggregationUsers    prometheus.Gauge
}

// New creates an EngineMetrics collector with its own registry.
func New() *EngineMetrics {
	registry := prometheus.NewRegistry()

	m := &EngineMetrics{
		registry: registry,

		TradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketd_trades_total",
				Help: "Total number of committed trades",
			},
			[]string{"outcome", "outcome_type"},
		),
		TradeAmount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketd_trade_amount",
				Help:    "Trade amount in market currency",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
			},
			[]string{"outcome"},
		),
		TradeFees: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "marketd_trade_fees_total",
				Help: "Total fees collected across trades",
			},
		),
		ProbMove: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketd_trade_prob_move",
				Help:    "Absolute probability move per trade",
				Buckets: prometheus.LinearBuckets(0, 0.02, 11),
			},
			[]string{"outcome"},
		),

		MakerFillsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "marketd_maker_fills_total",
				Help: "Resting limit orders consumed by taker trades",
			},
		),
		StaleOrdersSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "marketd_stale_orders_skipped_total",
				Help: "Resting orders passed over due to insufficient maker balance",
			},
		),
		ExpiredOrders: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "marketd_expired_orders_total",
				Help: "Limit orders settled as expired during matching",
			},
		),
		RestingOrders: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "marketd_resting_orders_total",
				Help: "Unfilled remainders left resting as limit orders",
			},
		),
		CommitConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "marketd_commit_conflicts_total",
				Help: "Trade commits aborted by a market version mismatch",
			},
		),

		AggregationRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketd_league_aggregation_runs_total",
				Help: "Season profit aggregation runs by status",
			},
			[]string{"status"},
		),
		AggregationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "marketd_league_aggregation_duration_seconds",
				Help:    "Season profit aggregation run duration",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
		),
		AggregationUsers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketd_league_aggregation_users",
				Help: "Registrants scored in the latest aggregation run",
			},
		),
	}

	registry.MustRegister(
		m.TradesTotal,
		m.TradeAmount,
		m.TradeFees,
		m.ProbMove,
		m.MakerFillsTotal,
		m.StaleOrdersSkipped,
		m.ExpiredOrders,
		m.RestingOrders,
		m.CommitConflicts,
		m.AggregationRuns,
		m.AggregationDuration,
		m.AggregationUsers,
	)

	return m
}

// Registry returns the prometheus registry.
func (m *EngineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler serving the collected metrics.
func (m *EngineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordTrade records one committed trade.
func (m *EngineMetrics) RecordTrade(outcome, outcomeType string, amount, fees, probMove float64) {
	m.TradesTotal.WithLabelValues(outcome, outcomeType).Inc()
	m.TradeAmount.WithLabelValues(outcome).Observe(amount)
	m.TradeFees.Add(fees)
	if probMove < 0 {
		probMove = -probMove
	}
	m.ProbMove.WithLabelValues(outcome).Observe(probMove)
}

// RecordMatching records per-trade matching counters.
func (m *EngineMetrics) RecordMatching(makerFills, staleSkipped, expired int, restedRemainder bool) {
	m.MakerFillsTotal.Add(float64(makerFills))
	m.StaleOrdersSkipped.Add(float64(staleSkipped))
	m.ExpiredOrders.Add(float64(expired))
	if restedRemainder {
		m.RestingOrders.Inc()
	}
}

// RecordCommitConflict counts a version-guard abort.
func (m *EngineMetrics) RecordCommitConflict() {
	m.CommitConflicts.Inc()
}

// RecordAggregation records one season aggregation run.
func (m *EngineMetrics) RecordAggregation(status string, durationSec float64, users int) {
	m.AggregationRuns.WithLabelValues(status).Inc()
	if durationSec > 0 {
		m.AggregationDuration.Observe(durationSec)
	}
	m.AggregationUsers.Set(float64(users))
}
