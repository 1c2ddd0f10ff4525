package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Load reads the TOML file at path over the built-in defaults, then applies
// SOLBOT_* environment overrides. An empty path skips the file. The result is
// not validated; call Config.Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// .env is optional.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose SOLBOT_* variable is set and
// non-empty. Secrets normally arrive this way.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PublicKey, "SOLBOT_WALLET_PUBLIC_KEY")
	setStr(&cfg.Wallet.SecretKey, "SOLBOT_WALLET_SECRET_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "SOLBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "SOLBOT_WALLET_KEY_PASSWORD")

	// ── Solana ──
	setStr(&cfg.Solana.RPCURL, "SOLBOT_SOLANA_RPC_URL")

	// ── Engine ──
	setBool(&cfg.Engine.Simulation, "SOLBOT_ENGINE_SIMULATION")
	setDecimal(&cfg.Engine.InitialCapital, "SOLBOT_ENGINE_INITIAL_CAPITAL")
	setDecimal(&cfg.Engine.MaxCapital, "SOLBOT_ENGINE_MAX_CAPITAL")
	setDecimal(&cfg.Engine.BuyAmount, "SOLBOT_ENGINE_BUY_AMOUNT")
	setDecimal(&cfg.Engine.SellMultiplier, "SOLBOT_ENGINE_SELL_MULTIPLIER")
	setDecimal(&cfg.Engine.TrailingStopFraction, "SOLBOT_ENGINE_TRAILING_STOP_FRACTION")
	setFloat64(&cfg.Engine.TrustThreshold, "SOLBOT_ENGINE_TRUST_THRESHOLD")
	setDuration(&cfg.Engine.PredictBudget, "SOLBOT_ENGINE_PREDICT_BUDGET")
	setDuration(&cfg.Engine.LockTTL, "SOLBOT_ENGINE_LOCK_TTL")
	setBool(&cfg.Engine.DistributedLocks, "SOLBOT_ENGINE_DISTRIBUTED_LOCKS")

	// ── Executor ──
	setBool(&cfg.Executor.Simulate, "SOLBOT_EXECUTOR_SIMULATE")
	setStringSlice(&cfg.Executor.Venues, "SOLBOT_EXECUTOR_VENUES")
	setDuration(&cfg.Executor.LatencyTarget, "SOLBOT_EXECUTOR_LATENCY_TARGET")
	setDuration(&cfg.Executor.VenueTimeout, "SOLBOT_EXECUTOR_VENUE_TIMEOUT")
	setFloat64(&cfg.Executor.RatePerSecond, "SOLBOT_EXECUTOR_RATE_PER_SECOND")
	setInt(&cfg.Executor.RateBurst, "SOLBOT_EXECUTOR_RATE_BURST")
	setInt(&cfg.Executor.BreakerFailures, "SOLBOT_EXECUTOR_BREAKER_FAILURES")

	// ── Sentinel ──
	setStr(&cfg.Sentinel.URL, "SOLBOT_SENTINEL_URL")
	setStr(&cfg.Sentinel.APIKey, "SOLBOT_SENTINEL_API_KEY")
	setDuration(&cfg.Sentinel.Timeout, "SOLBOT_SENTINEL_TIMEOUT")
	setFloat64(&cfg.Sentinel.OfflineScore, "SOLBOT_SENTINEL_OFFLINE_SCORE")
	setBool(&cfg.Sentinel.OfflineBreakout, "SOLBOT_SENTINEL_OFFLINE_BREAKOUT")

	// ── Feed ──
	setStr(&cfg.Feed.CandidateChannel, "SOLBOT_FEED_CANDIDATE_CHANNEL")
	setStr(&cfg.Feed.PriceChannel, "SOLBOT_FEED_PRICE_CHANNEL")
	setInt(&cfg.Feed.Workers, "SOLBOT_FEED_WORKERS")
	setBool(&cfg.Feed.Streams, "SOLBOT_FEED_STREAMS")
	setStr(&cfg.Feed.StreamStartID, "SOLBOT_FEED_STREAM_START_ID")
	setDuration(&cfg.Feed.MaxCandidateAge, "SOLBOT_FEED_MAX_CANDIDATE_AGE")

	// ── Journal ──
	setStr(&cfg.Journal.Dir, "SOLBOT_JOURNAL_DIR")
	setBool(&cfg.Journal.Stream, "SOLBOT_JOURNAL_STREAM")
	setStr(&cfg.Journal.ReportDir, "SOLBOT_JOURNAL_REPORT_DIR")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SOLBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SOLBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "SOLBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SOLBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SOLBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SOLBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SOLBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SOLBOT_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "SOLBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SOLBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SOLBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SOLBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SOLBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SOLBOT_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "SOLBOT_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "SOLBOT_REDIS_KEY_PREFIX")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SOLBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SOLBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SOLBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "SOLBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SOLBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SOLBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SOLBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SOLBOT_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SOLBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SOLBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SOLBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SOLBOT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "SOLBOT_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SOLBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SOLBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SOLBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SOLBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SOLBOT_MODE")
	setStr(&cfg.LogLevel, "SOLBOT_LOG_LEVEL")
}

// Typed env helpers. Each only touches dst when the variable is non-empty
// and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDecimal(dst *decimal.Decimal, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			*dst = d
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
