// Package app provides top-level application lifecycle management for the
// market engine: dependency wiring, mode selection and shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rknoche6/manifold/internal/config"
	"github.com/rknoche6/manifold/internal/server"
	"github.com/rknoche6/manifold/internal/server/handler"
	"github.com/rknoche6/manifold/internal/server/ws"
)

// App is the root application object. It owns the configuration, logger and
// a list of cleanup functions called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, selects the operating mode and blocks until
// the context is cancelled or the mode finishes.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "serve":
		return a.serveMode(ctx, deps)
	case "league":
		return a.leagueMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// serveMode runs the HTTP/WebSocket API plus the scheduled league update.
func (a *App) serveMode(ctx context.Context, deps *Dependencies) error {
	hub := ws.NewHub(deps.SignalBus, a.logger)
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("ws hub stopped", slog.String("error", err.Error()))
		}
	}()

	srv := server.NewServer(
		server.Config{
			Port:            a.cfg.Server.Port,
			CORSOrigins:     a.cfg.Server.CORSOrigins,
			APIKey:          a.cfg.Server.APIKey,
			RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
		},
		server.Handlers{
			Health:  handler.NewHealthHandler(a.logger),
			Markets: handler.NewMarketHandler(deps.Markets, a.logger),
			Bets:    handler.NewBetHandler(deps.Trades, a.logger),
			Leagues: handler.NewLeagueHandler(deps.Leagues, a.logger),
			Metrics: deps.Metrics.Handler(),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	if interval := a.cfg.League.UpdateIntervalMinutes; interval > 0 {
		go a.scheduleLeagueUpdates(ctx, deps, time.Duration(interval)*time.Minute)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	grace := time.Duration(a.cfg.Server.ShutdownGraceSec) * time.Second
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

// scheduleLeagueUpdates re-aggregates the current season on a fixed cadence.
func (a *App) scheduleLeagueUpdates(ctx context.Context, deps *Dependencies, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			season, err := deps.Leagues.CurrentSeason(time.Now().UTC())
			if err != nil {
				a.logger.Warn("scheduled league update skipped",
					slog.String("error", err.Error()))
				continue
			}
			if _, err := deps.Leagues.AggregateSeason(ctx, season); err != nil {
				a.logger.Error("scheduled league update failed",
					slog.Int("season", season),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// leagueMode runs one aggregation for the current season and exits.
func (a *App) leagueMode(ctx context.Context, deps *Dependencies) error {
	season, err := deps.Leagues.CurrentSeason(time.Now().UTC())
	if err != nil {
		return fmt.Errorf("app: league mode: %w", err)
	}
	if _, err := deps.Leagues.AggregateSeason(ctx, season); err != nil {
		return fmt.Errorf("app: league mode: %w", err)
	}
	return nil
}

// Close tears down all resources in reverse registration order. Safe to
// call multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
