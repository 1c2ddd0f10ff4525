// Package config defines the bot's configuration and its validation rules.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration. Fields come from a TOML file and may be
// overridden by SOLBOT_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Solana   SolanaConfig   `toml:"solana"`
	Engine   EngineConfig   `toml:"engine"`
	Executor ExecutorConfig `toml:"executor"`
	Sentinel SentinelConfig `toml:"sentinel"`
	Feed     FeedConfig     `toml:"feed"`
	Journal  JournalConfig  `toml:"journal"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the trading wallet secret. Either SecretKey or an
// encrypted file plus its password.
type WalletConfig struct {
	PublicKey        string `toml:"public_key"`
	SecretKey        string `toml:"secret_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// SolanaConfig points at the cluster RPC. It is only probed for health.
type SolanaConfig struct {
	RPCURL string `toml:"rpc_url"`
}

// EngineConfig drives the decision engine. Amounts are in the base currency.
type EngineConfig struct {
	Simulation           bool            `toml:"simulation"`
	InitialCapital       decimal.Decimal `toml:"initial_capital"`
	MaxCapital           decimal.Decimal `toml:"max_capital"`
	BuyAmount            decimal.Decimal `toml:"buy_amount"`
	SellMultiplier       decimal.Decimal `toml:"sell_multiplier"`
	TrailingStopFraction decimal.Decimal `toml:"trailing_stop_fraction"`
	TrustThreshold       float64         `toml:"trust_threshold"`
	PredictBudget        duration        `toml:"predict_budget"`
	LockTTL              duration        `toml:"lock_ttl"`
	// DistributedLocks serializes tokens through Redis instead of in-process.
	DistributedLocks bool `toml:"distributed_locks"`
}

// ExecutorConfig configures the venue chain.
type ExecutorConfig struct {
	Simulate        bool     `toml:"simulate"`
	Venues          []string `toml:"venues"`
	LatencyTarget   duration `toml:"latency_target"`
	VenueTimeout    duration `toml:"venue_timeout"`
	RatePerSecond   float64  `toml:"rate_per_second"`
	RateBurst       int      `toml:"rate_burst"`
	BreakerFailures int      `toml:"breaker_failures"`
	BreakerInterval duration `toml:"breaker_interval"`
	BreakerCooldown duration `toml:"breaker_cooldown"`
}

// SentinelConfig locates the risk and creator-graph service. With no URL,
// every candidate gets OfflineScore and OfflineBreakout.
type SentinelConfig struct {
	URL             string   `toml:"url"`
	APIKey          string   `toml:"api_key"`
	Timeout         duration `toml:"timeout"`
	OfflineScore    float64  `toml:"offline_score"`
	OfflineBreakout bool     `toml:"offline_breakout"`
}

// FeedConfig names the ingestion channels and worker layout.
type FeedConfig struct {
	CandidateChannel string   `toml:"candidate_channel"`
	PriceChannel     string   `toml:"price_channel"`
	DedupTTL         duration `toml:"dedup_ttl"`
	Workers          int      `toml:"workers"`
	QueueSize        int      `toml:"queue_size"`
	// MaxCandidateAge skips candidates observed longer ago than this. Zero
	// accepts any age.
	MaxCandidateAge duration `toml:"max_candidate_age"`
	// Streams replays the durable candidate/price streams alongside pub/sub.
	// StreamStartID "$" reads entries added after startup, "0" the whole stream.
	Streams       bool   `toml:"streams"`
	StreamStartID string `toml:"stream_start_id"`
}

// JournalConfig locates the trade log files and report output.
type JournalConfig struct {
	Dir         string `toml:"dir"`
	HistorySize int    `toml:"history_size"`
	// Stream mirrors every record onto the Redis trade stream.
	Stream    bool   `toml:"stream"`
	ReportDir string `toml:"report_dir"`
}

// PostgresConfig holds the trade archive connection.
type PostgresConfig struct {
	Enabled       bool     `toml:"enabled"`
	DSN           string   `toml:"dsn"`
	Host          string   `toml:"host"`
	Port          int      `toml:"port"`
	Database      string   `toml:"database"`
	User          string   `toml:"user"`
	Password      string   `toml:"password"`
	SSLMode       string   `toml:"ssl_mode"`
	PoolMaxConns  int      `toml:"pool_max_conns"`
	PoolMinConns  int      `toml:"pool_min_conns"`
	RunMigrations bool     `toml:"run_migrations"`
	Timeout       duration `toml:"connect_timeout"`
}

// RedisConfig holds the bus, lock and cache connection.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	PriceTTL   duration `toml:"price_ttl"`
	// StreamMaxLen caps each stream approximately; zero keeps the bus default.
	StreamMaxLen int64 `toml:"stream_max_len"`
}

// S3Config holds the report archive bucket.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration lets TOML carry strings like "800ms".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds the operator API settings.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds chat alert credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with sensible defaults for local
// simulation.
func Defaults() Config {
	return Config{
		Solana: SolanaConfig{
			RPCURL: "https://api.mainnet-beta.solana.com",
		},
		Engine: EngineConfig{
			Simulation:           true,
			InitialCapital:       decimal.RequireFromString("0.05"),
			MaxCapital:           decimal.Zero,
			BuyAmount:            decimal.RequireFromString("0.01"),
			SellMultiplier:       decimal.RequireFromString("2.0"),
			TrailingStopFraction: decimal.RequireFromString("0.15"),
			TrustThreshold:       0.7,
			PredictBudget:        duration{800 * time.Millisecond},
			LockTTL:              duration{30 * time.Second},
		},
		Executor: ExecutorConfig{
			Venues:          []string{"jupiter", "raydium", "orca"},
			LatencyTarget:   duration{150 * time.Millisecond},
			VenueTimeout:    duration{2 * time.Second},
			RatePerSecond:   10,
			RateBurst:       5,
			BreakerFailures: 3,
			BreakerInterval: duration{time.Minute},
			BreakerCooldown: duration{30 * time.Second},
		},
		Sentinel: SentinelConfig{
			Timeout: duration{5 * time.Second},
		},
		Feed: FeedConfig{
			CandidateChannel: "candidates",
			PriceChannel:     "prices",
			DedupTTL:         duration{30 * time.Second},
			Workers:          8,
			QueueSize:        64,
			MaxCandidateAge:  duration{time.Minute},
			StreamStartID:    "$",
		},
		Journal: JournalConfig{
			Dir:         "data",
			HistorySize: 1000,
			ReportDir:   "reports",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "solbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
			Timeout:       duration{10 * time.Second},
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "solbot",
			PriceTTL:   duration{10 * time.Minute},

			StreamMaxLen: 10000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "solbot-reports",
			Prefix:         "reports",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"trade":  true,
	"report": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var knownVenues = map[string]bool{
	"jupiter": true,
	"raydium": true,
	"orca":    true,
}

// RealTrading reports whether orders will reach a venue.
func (c *Config) RealTrading() bool {
	return !c.Engine.Simulation && !c.Executor.Simulate
}

// Validate returns one error listing every problem found.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		add("unknown mode %q (valid: trade, report)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	if mode == "trade" && c.RealTrading() {
		if c.Wallet.SecretKey == "" && c.Wallet.EncryptedKeyPath == "" {
			add("wallet: secret_key or encrypted_key_path is required for real trading")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			add("wallet: key_password is required when encrypted_key_path is set")
		}
	}

	e := c.Engine
	if e.InitialCapital.IsNegative() {
		add("engine: initial_capital must be >= 0")
	}
	if e.MaxCapital.IsNegative() {
		add("engine: max_capital must be >= 0 (0 disables the cap)")
	}
	if !e.BuyAmount.IsPositive() {
		add("engine: buy_amount must be > 0")
	}
	if !e.SellMultiplier.GreaterThan(decimal.NewFromInt(1)) {
		add("engine: sell_multiplier must be > 1")
	}
	if !e.TrailingStopFraction.IsPositive() || !e.TrailingStopFraction.LessThan(decimal.NewFromInt(1)) {
		add("engine: trailing_stop_fraction must be in (0, 1)")
	}
	if e.TrustThreshold < 0 || e.TrustThreshold > 1 {
		add("engine: trust_threshold must be in [0, 1]")
	}
	if e.PredictBudget.Duration <= 0 {
		add("engine: predict_budget must be > 0")
	}
	if e.DistributedLocks && !c.Redis.Enabled {
		add("engine: distributed_locks requires redis.enabled")
	}

	if len(c.Executor.Venues) == 0 && c.RealTrading() {
		add("executor: venues must not be empty for real trading")
	}
	for _, v := range c.Executor.Venues {
		if !knownVenues[strings.ToLower(strings.TrimSpace(v))] {
			add("executor: unknown venue %q (valid: jupiter, raydium, orca)", v)
		}
	}
	if c.Executor.BreakerFailures < 1 {
		add("executor: breaker_failures must be >= 1")
	}

	if c.Sentinel.OfflineScore < 0 || c.Sentinel.OfflineScore > 1 {
		add("sentinel: offline_score must be in [0, 1]")
	}

	if mode == "trade" {
		if !c.Redis.Enabled {
			add("redis: must be enabled in trade mode (the feed arrives over redis)")
		}
		if c.Feed.Workers < 1 {
			add("feed: workers must be >= 1")
		}
		if c.Feed.MaxCandidateAge.Duration < 0 {
			add("feed: max_candidate_age must be >= 0")
		}
	}
	if c.Journal.Stream && !c.Redis.Enabled {
		add("journal: stream requires redis.enabled")
	}
	if c.Journal.Dir == "" && !c.Postgres.Enabled {
		add("journal: dir must be set when postgres is disabled")
	}
	if mode == "report" && c.Journal.ReportDir == "" {
		add("journal: report_dir must not be empty in report mode")
	}

	if c.Postgres.Enabled {
		p := c.Postgres
		if strings.TrimSpace(p.DSN) == "" {
			if p.Host == "" {
				add("postgres: host must not be empty (or set postgres.dsn)")
			}
			if p.Port <= 0 || p.Port > 65535 {
				add("postgres: port must be 1-65535, got %d", p.Port)
			}
			if p.Database == "" {
				add("postgres: database must not be empty")
			}
		}
		if p.PoolMaxConns < 1 {
			add("postgres: pool_max_conns must be >= 1")
		}
		if p.PoolMinConns < 0 || p.PoolMinConns > p.PoolMaxConns {
			add("postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			add("s3: region must not be empty")
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		add("server: port must be 1-65535, got %d", c.Server.Port)
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
