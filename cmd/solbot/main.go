// Command solbot is the trading bot entry point. It loads and validates
// configuration, then runs the configured mode until SIGINT or SIGTERM.
//
// With -encrypt-key it instead seals the configured wallet secret into a
// password-protected key file and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/app"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/config"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/crypto"
)

func main() {
	configPath := flag.String("config", "config.toml", "configuration file; empty uses defaults and env only")
	mode := flag.String("mode", "", "override the configured mode (trade or report)")
	encryptTo := flag.String("encrypt-key", "", "write wallet.secret_key encrypted with wallet.key_password to this path and exit")
	flag.Parse()

	if err := run(*configPath, *mode, *encryptTo); err != nil {
		fmt.Fprintln(os.Stderr, "solbot:", err)
		os.Exit(1)
	}
}

func run(configPath, mode, encryptTo string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if mode != "" {
		cfg.Mode = mode
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if encryptTo != "" {
		addr, err := crypto.SealSecretFile(encryptTo, cfg.Wallet.SecretKey, cfg.Wallet.KeyPassword)
		if err != nil {
			return err
		}
		logger.Info("encrypted key written", slog.String("path", encryptTo), slog.String("public_key", addr))
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Debug("configuration", slog.Any("config", config.RedactedConfig(cfg)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot := app.New(cfg, logger)
	defer bot.Close()

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("exited with error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("solbot stopped")
	return nil
}
