// Package config defines the top-level configuration for the market engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by MARKETD_* environment
// variables.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Engine   EngineConfig   `toml:"engine"`
	League   LeagueConfig   `toml:"league"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for season
// ledger snapshots.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// EngineConfig holds pricing and matching parameters.
type EngineConfig struct {
	CreatorFeeRate  float64 `toml:"creator_fee_rate"`
	PlatformFeeRate float64 `toml:"platform_fee_rate"`

	// MaxSlippage bounds how far a slippage-protected market order may
	// move the price, in probability points.
	MaxSlippage float64 `toml:"max_slippage"`
	// ProtectionExpiryMillis is the cancellation deadline for the
	// implicit limit order a protected trade leaves behind.
	ProtectionExpiryMillis int `toml:"protection_expiry_millis"`

	// CommitLockTTLMillis is the Redis lock TTL for one trade commit.
	CommitLockTTLMillis int `toml:"commit_lock_ttl_millis"`
}

// ProtectionExpiry returns the protected-order expiry as a duration.
func (e EngineConfig) ProtectionExpiry() time.Duration {
	return time.Duration(e.ProtectionExpiryMillis) * time.Millisecond
}

// CommitLockTTL returns the commit lock TTL as a duration.
func (e EngineConfig) CommitLockTTL() time.Duration {
	return time.Duration(e.CommitLockTTLMillis) * time.Millisecond
}

// LeagueConfig holds season scoring parameters. Seasons are consecutive
// calendar months counted from SeasonOneStart.
type LeagueConfig struct {
	SeasonOneStart string   `toml:"season_one_start"` // YYYY-MM-DD
	DenylistSlugs  []string `toml:"denylist_slugs"`
	// UpdateIntervalMinutes is the cadence of the scheduled aggregation
	// in serve mode; 0 disables the schedule.
	UpdateIntervalMinutes int `toml:"update_interval_minutes"`
}

// SeasonDates returns the [start, end) window for a season id.
func (l LeagueConfig) SeasonDates(season int) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", l.SeasonOneStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("config: parse season_one_start %q: %w", l.SeasonOneStart, err)
	}
	return start.AddDate(0, season-1, 0), start.AddDate(0, season, 0), nil
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port             int      `toml:"port"`
	CORSOrigins      []string `toml:"cors_origins"`
	APIKey           string   `toml:"api_key"` // empty disables auth
	RateLimitPerMin  int      `toml:"rate_limit_per_min"`
	ShutdownGraceSec int      `toml:"shutdown_grace_sec"`
}

// Defaults returns a Config populated with sensible defaults.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "manifold",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  8,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 8,
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Engine: EngineConfig{
			CreatorFeeRate:         0.0,
			PlatformFeeRate:        0.0,
			MaxSlippage:            0.10,
			ProtectionExpiryMillis: 1000,
			CommitLockTTLMillis:    5000,
		},
		League: LeagueConfig{
			SeasonOneStart:        "2023-05-01",
			UpdateIntervalMinutes: 60,
		},
		Server: ServerConfig{
			Port:             8080,
			RateLimitPerMin:  120,
			ShutdownGraceSec: 10,
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// Validate checks the configuration for obvious mistakes. It is called
// after Load, once env overrides have been applied.
func (c *Config) Validate() error {
	var problems []string

	switch c.Mode {
	case "serve", "league":
	default:
		problems = append(problems, fmt.Sprintf("mode %q is not one of serve, league", c.Mode))
	}

	if c.Engine.CreatorFeeRate < 0 || c.Engine.CreatorFeeRate >= 1 {
		problems = append(problems, "engine.creator_fee_rate must be in [0,1)")
	}
	if c.Engine.PlatformFeeRate < 0 || c.Engine.PlatformFeeRate >= 1 {
		problems = append(problems, "engine.platform_fee_rate must be in [0,1)")
	}
	if c.Engine.MaxSlippage <= 0 || c.Engine.MaxSlippage >= 1 {
		problems = append(problems, "engine.max_slippage must be in (0,1)")
	}
	if c.Engine.ProtectionExpiryMillis <= 0 {
		problems = append(problems, "engine.protection_expiry_millis must be positive")
	}

	if _, err := time.Parse("2006-01-02", c.League.SeasonOneStart); err != nil {
		problems = append(problems, "league.season_one_start must be YYYY-MM-DD")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be a valid port")
	}

	if c.S3.Enabled && strings.TrimSpace(c.S3.Bucket) == "" {
		problems = append(problems, "s3.bucket is required when s3 is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
