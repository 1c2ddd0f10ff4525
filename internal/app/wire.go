package app

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/TwiZzy841/solana-ai-trading-bot/internal/blob/s3"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/cache/redis"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/config"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/crypto"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/metrics"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/notify"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/platform/solana"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/server/handler"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/store/postgres"
)

// Dependencies bundles the infrastructure every mode draws on. Optional
// backends are nil when disabled in config.
type Dependencies struct {
	Metrics *metrics.Registry

	// Postgres
	TradeStore *postgres.TradeStore
	AuditStore *postgres.AuditStore

	// Redis
	SignalBus   *redis.SignalBus
	PriceCache  *redis.PriceCache
	LockManager *redis.LockManager
	RateLimiter *redis.RateLimiter

	// S3
	Reports *s3blob.ReportArchiver

	Solana   *solana.Client
	Notifier *notify.Notifier

	// Wallet is set only for real trading.
	Wallet ed25519.PrivateKey

	// HealthChecks feed GET /api/health.
	HealthChecks map[string]handler.Pinger
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Wire constructs every enabled backend and returns a cleanup function that
// releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{
		Metrics:      metrics.New(),
		HealthChecks: make(map[string]handler.Pinger),
	}

	if strings.EqualFold(cfg.Mode, "trade") && cfg.RealTrading() {
		key, err := crypto.LoadKey(crypto.KeyConfig{
			SecretKey:        cfg.Wallet.SecretKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
			PublicKey:        cfg.Wallet.PublicKey,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: wallet: %w", err))
		}
		deps.Wallet = key
		logger.InfoContext(ctx, "wallet loaded",
			slog.String("public_key", crypto.EncodePublicKey(key.Public().(ed25519.PublicKey))),
		)
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:            cfg.Postgres.DSN,
			Host:           cfg.Postgres.Host,
			Port:           cfg.Postgres.Port,
			Database:       cfg.Postgres.Database,
			User:           cfg.Postgres.User,
			Password:       cfg.Postgres.Password,
			SSLMode:        cfg.Postgres.SSLMode,
			MaxConns:       cfg.Postgres.PoolMaxConns,
			MinConns:       cfg.Postgres.PoolMinConns,
			ConnectTimeout: cfg.Postgres.Timeout.Duration,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.TradeStore = postgres.NewTradeStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.HealthChecks["postgres"] = pgClient
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBusWithMaxLen(redisClient, cfg.Redis.StreamMaxLen)
		deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Redis.PriceTTL.Duration)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.HealthChecks["redis"] = redisClient
	}

	// --- S3 ---
	if cfg.S3.Enabled {
		bucket, err := s3blob.Open(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Reports = s3blob.NewReportArchiver(bucket, cfg.S3.Prefix)
		deps.HealthChecks["s3"] = pingFunc(bucket.Health)
	}

	// --- Solana RPC ---
	if cfg.Solana.RPCURL != "" {
		deps.Solana = solana.NewClient(cfg.Solana.RPCURL, 0)
		deps.HealthChecks["solana"] = deps.Solana
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
