package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MARKETD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MARKETD_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "MARKETD_MODE")
	setStr(&cfg.LogLevel, "MARKETD_LOG_LEVEL")

	// ── Database ──
	setStr(&cfg.Database.DSN, "MARKETD_DATABASE_DSN")
	setStr(&cfg.Database.Host, "MARKETD_DATABASE_HOST")
	setInt(&cfg.Database.Port, "MARKETD_DATABASE_PORT")
	setStr(&cfg.Database.Database, "MARKETD_DATABASE_NAME")
	setStr(&cfg.Database.User, "MARKETD_DATABASE_USER")
	setStr(&cfg.Database.Password, "MARKETD_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "MARKETD_DATABASE_SSLMODE")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "MARKETD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARKETD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARKETD_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "MARKETD_REDIS_TLS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "MARKETD_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MARKETD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MARKETD_S3_REGION")
	setStr(&cfg.S3.Bucket, "MARKETD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MARKETD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MARKETD_S3_SECRET_KEY")

	// ── Engine ──
	setFloat(&cfg.Engine.CreatorFeeRate, "MARKETD_ENGINE_CREATOR_FEE_RATE")
	setFloat(&cfg.Engine.PlatformFeeRate, "MARKETD_ENGINE_PLATFORM_FEE_RATE")
	setFloat(&cfg.Engine.MaxSlippage, "MARKETD_ENGINE_MAX_SLIPPAGE")
	setInt(&cfg.Engine.ProtectionExpiryMillis, "MARKETD_ENGINE_PROTECTION_EXPIRY_MILLIS")

	// ── Server ──
	setInt(&cfg.Server.Port, "MARKETD_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "MARKETD_SERVER_API_KEY")
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
