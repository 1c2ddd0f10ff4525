package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/config"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/engine"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/executor"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/feed"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/journal"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/ledger"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/notify"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/platform/sentinel"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/registry"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/server"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/server/handler"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/server/middleware"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/server/ws"
)

// TradeMode runs the feed, engine, observers and operator API until ctx is
// cancelled or a component fails.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode",
		slog.Bool("simulation", a.cfg.Engine.Simulation),
		slog.Bool("executor_simulate", a.cfg.Executor.Simulate),
	)
	startedAt := time.Now().UTC()

	j, err := a.buildJournal(ctx, deps)
	if err != nil {
		return err
	}

	eng, err := a.buildEngine(deps, j)
	if err != nil {
		return err
	}
	if a.cfg.Engine.InitialCapital.IsPositive() {
		if err := eng.SetCapital(a.cfg.Engine.InitialCapital); err != nil {
			return fmt.Errorf("app: initial capital: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	// Feed: bus -> subscriber -> dispatcher -> engine.
	dispatcher := feed.NewDispatcher(eng, a.cfg.Feed.Workers, a.cfg.Feed.QueueSize, a.logger)
	feedCfg := feed.Config{
		CandidateChannel: a.cfg.Feed.CandidateChannel,
		PriceChannel:     a.cfg.Feed.PriceChannel,
		DedupTTL:         a.cfg.Feed.DedupTTL.Duration,
		MaxCandidateAge:  a.cfg.Feed.MaxCandidateAge.Duration,
		CleanupInterval:  feed.DefaultConfig().CleanupInterval,
	}
	sub := feed.NewSubscriber(feedCfg, deps.SignalBus, dispatcher, deps.PriceCache, deps.Metrics, a.logger)
	g.Go(func() error { return dispatcher.Run(ctx) })
	g.Go(func() error { return sub.Run(ctx) })

	if a.cfg.Feed.Streams {
		poller := feed.NewStreamPoller(deps.SignalBus, sub, map[string]string{
			feedCfg.CandidateChannel: feedCfg.CandidateChannel,
			feedCfg.PriceChannel:     feedCfg.PriceChannel,
		}, a.cfg.Feed.StreamStartID, 0, a.logger)
		g.Go(func() error { return poller.Run(ctx) })
	}

	if deps.Notifier.Enabled() {
		obs := notify.NewTradeObserver(deps.Notifier)
		g.Go(func() error { return j.RunObserver(ctx, obs, 64) })

		hello := notify.Message{Title: "solbot started"}
		hello.Add("mode", string(eng.Mode()))
		hello.Add("capital", a.cfg.Engine.InitialCapital.String())
		hello.Add("venues", strings.Join(a.cfg.Executor.Venues, ", "))
		g.Go(func() error {
			if err := deps.Notifier.Notify(ctx, hello); err != nil {
				a.logger.WarnContext(ctx, "startup alert failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps, eng, j, startedAt)
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("app: trade mode: %w", err)
	}
	return nil
}

// ReportMode exports the trade history as a JSON report and CSV, and
// uploads both when object storage is configured.
func (a *App) ReportMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting report mode")

	loader, err := a.historyLoader(deps)
	if err != nil {
		return err
	}
	records, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("app: load history: %w", err)
	}

	now := time.Now().UTC()
	report := journal.BuildReport(records, journal.ReportParameters{
		BuyAmount:      a.cfg.Engine.BuyAmount,
		SellMultiplier: a.cfg.Engine.SellMultiplier,
	}, now)

	var jsonBuf, csvBuf bytes.Buffer
	if err := journal.WriteReport(&jsonBuf, report); err != nil {
		return err
	}
	if err := journal.WriteCSV(&csvBuf, records); err != nil {
		return err
	}

	stamp := now.Format("20060102T150405Z")
	files := []struct {
		name        string
		contentType string
		data        []byte
	}{
		{"report-" + stamp + ".json", "application/json", jsonBuf.Bytes()},
		{"trades-" + stamp + ".csv", "text/csv", csvBuf.Bytes()},
	}

	if err := os.MkdirAll(a.cfg.Journal.ReportDir, 0o755); err != nil {
		return fmt.Errorf("app: report dir: %w", err)
	}
	for _, f := range files {
		path := filepath.Join(a.cfg.Journal.ReportDir, f.name)
		if err := os.WriteFile(path, f.data, 0o644); err != nil {
			return fmt.Errorf("app: write %s: %w", f.name, err)
		}
		a.logger.InfoContext(ctx, "report written", slog.String("path", path))

		if deps.Reports != nil {
			key, err := deps.Reports.Upload(ctx, f.name, f.contentType, historyMode(records), f.data)
			if err != nil {
				return err
			}
			a.logger.InfoContext(ctx, "report uploaded", slog.String("key", key))
		}
	}

	a.logger.InfoContext(ctx, "report complete",
		slog.Int("trades", len(records)),
		slog.String("realized", report.ProfitLoss.Total().String()),
	)
	return nil
}

// historyMode is the mode shared by every record, or empty when the history
// mixes simulated and real trades.
func historyMode(records []domain.TradeRecord) domain.TradeMode {
	if len(records) == 0 {
		return ""
	}
	mode := records[0].Mode
	for _, r := range records[1:] {
		if r.Mode != mode {
			return ""
		}
	}
	return mode
}

// buildJournal attaches every configured sink and replays persisted history
// into memory so P&L survives restarts.
func (a *App) buildJournal(ctx context.Context, deps *Dependencies) (*journal.Journal, error) {
	var sinks []journal.Appender
	if a.cfg.Journal.Dir != "" {
		fs, err := journal.NewFileSink(a.cfg.Journal.Dir, a.logger)
		if err != nil {
			return nil, fmt.Errorf("app: journal file sink: %w", err)
		}
		sinks = append(sinks, fs)
	}
	if deps.TradeStore != nil {
		sinks = append(sinks, deps.TradeStore)
	}
	if a.cfg.Journal.Stream && deps.SignalBus != nil {
		sinks = append(sinks, journal.NewStreamSink(deps.SignalBus, journal.TradeStream))
	}

	j := journal.New(a.cfg.Journal.HistorySize, deps.Metrics, a.logger, sinks...)

	loader, err := a.historyLoader(deps)
	if err != nil {
		return nil, err
	}
	records, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load history: %w", err)
	}
	j.Seed(records)
	a.logger.InfoContext(ctx, "journal history loaded", slog.Int("records", len(records)))
	return j, nil
}

// historyLoader prefers the database over the local files.
func (a *App) historyLoader(deps *Dependencies) (journal.Loader, error) {
	if deps.TradeStore != nil {
		return deps.TradeStore, nil
	}
	if a.cfg.Journal.Dir == "" {
		return nil, errors.New("app: no trade history source configured")
	}
	fs, err := journal.NewFileSink(a.cfg.Journal.Dir, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: journal file sink: %w", err)
	}
	return fs, nil
}

func (a *App) buildEngine(deps *Dependencies, j *journal.Journal) (*engine.Engine, error) {
	venues, err := executor.BuildVenues(a.cfg.Executor.Venues)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	gw := executor.New(executorConfig(a.cfg), venues, deps.Metrics, a.logger)

	var locks domain.LockManager = registry.NewKeyLock()
	if a.cfg.Engine.DistributedLocks && deps.LockManager != nil {
		locks = deps.LockManager
	}

	d := engine.Deps{
		Ledger:   ledger.New(a.cfg.Engine.MaxCapital),
		Registry: registry.New(),
		Locks:    locks,
		Gateway:  gw,
		Journal:  j,
		Metrics:  deps.Metrics,
	}
	if deps.AuditStore != nil {
		d.Audit = deps.AuditStore
	}

	if a.cfg.Sentinel.URL != "" {
		client := sentinel.NewClient(a.cfg.Sentinel.URL, a.cfg.Sentinel.APIKey, a.cfg.Sentinel.Timeout.Duration)
		d.Risk = client
		d.Creators = client
	} else {
		a.logger.Warn("sentinel url not set, using fixed offline signals",
			slog.Float64("score", a.cfg.Sentinel.OfflineScore),
			slog.Bool("breakout", a.cfg.Sentinel.OfflineBreakout),
		)
		static := sentinel.Static{TrustScore: a.cfg.Sentinel.OfflineScore, Breakout: a.cfg.Sentinel.OfflineBreakout}
		d.Risk = static
		d.Creators = static
	}

	eng, err := engine.New(engineConfig(a.cfg), d, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return eng, nil
}

func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, eng *engine.Engine, j *journal.Journal, startedAt time.Time) {
	var archive handler.TradeArchive
	if deps.TradeStore != nil {
		archive = deps.TradeStore
	}
	var limiter domain.RateLimiter = middleware.NewLocalLimiter(10 * time.Minute)
	if deps.RateLimiter != nil {
		limiter = deps.RateLimiter
	}

	hub := ws.NewHub(j, eng, ws.Config{StartedAt: startedAt}, a.logger)
	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Status:     handler.NewStatusHandler(eng, startedAt),
		Capital:    handler.NewCapitalHandler(eng, a.logger),
		Positions:  handler.NewPositionHandler(eng),
		Parameters: handler.NewParameterHandler(eng, a.logger),
		Trades:     handler.NewTradeHandler(j, archive, a.logger),
		Metrics:    deps.Metrics.Handler(),
	}
	if deps.AuditStore != nil {
		handlers.Audit = handler.NewAuditHandler(deps.AuditStore, a.logger)
	}
	if deps.PriceCache != nil {
		handlers.Positions.WithQuotes(deps.PriceCache, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, limiter, a.logger)

	g.Go(func() error { return hub.Run(ctx) })
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Simulation:           cfg.Engine.Simulation,
		TrailingStopFraction: cfg.Engine.TrailingStopFraction,
		TrustThreshold:       cfg.Engine.TrustThreshold,
		PredictBudget:        cfg.Engine.PredictBudget.Duration,
		LockTTL:              cfg.Engine.LockTTL.Duration,
		BuyAmount:            cfg.Engine.BuyAmount,
		SellMultiplier:       cfg.Engine.SellMultiplier,
	}
}

func executorConfig(cfg *config.Config) executor.Config {
	return executor.Config{
		Simulate:        cfg.Executor.Simulate,
		LatencyTarget:   cfg.Executor.LatencyTarget.Duration,
		VenueTimeout:    cfg.Executor.VenueTimeout.Duration,
		RatePerSecond:   cfg.Executor.RatePerSecond,
		RateBurst:       cfg.Executor.RateBurst,
		BreakerFailures: uint32(cfg.Executor.BreakerFailures),
		BreakerInterval: cfg.Executor.BreakerInterval.Duration,
		BreakerCooldown: cfg.Executor.BreakerCooldown.Duration,
	}
}
