// Package app owns the bot's lifecycle: it wires backends from config and
// runs the selected mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/config"
)

// App runs one mode against the configured backends.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	cleanup func()
}

func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger.With(slog.String("component", "app"))}
}

type modeFunc func(*App, context.Context, *Dependencies) error

var modes = map[string]modeFunc{
	"trade":  (*App).TradeMode,
	"report": (*App).ReportMode,
}

// Run wires the backends and blocks in the configured mode: trade runs
// until ctx is cancelled, report returns once the files are written.
func (a *App) Run(ctx context.Context) error {
	name := strings.ToLower(a.cfg.Mode)
	run, ok := modes[name]
	if !ok {
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
	a.logger.InfoContext(ctx, "starting", slog.String("mode", name))

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire: %w", err)
	}
	a.cleanup = cleanup
	return run(a, ctx, deps)
}

// Close releases whatever Run wired. Calling it again is a no-op.
func (a *App) Close() {
	if a.cleanup == nil {
		return
	}
	a.logger.Info("releasing backends")
	a.cleanup()
	a.cleanup = nil
}
