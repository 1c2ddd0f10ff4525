package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
)

// Observer reacts to executed trades after the fact. Errors are logged and
// never affect the trade.
type Observer interface {
	Name() string
	OnTrade(ctx context.Context, rec domain.TradeRecord) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc struct {
	ObserverName string
	Fn           func(ctx context.Context, rec domain.TradeRecord) error
}

func (o ObserverFunc) Name() string { return o.ObserverName }

func (o ObserverFunc) OnTrade(ctx context.Context, rec domain.TradeRecord) error {
	return o.Fn(ctx, rec)
}

// RunObserver feeds obs from its own subscription until ctx is done. Each
// observer runs in its own goroutine so a slow one only loses its own
// records.
func (j *Journal) RunObserver(ctx context.Context, obs Observer, buffer int) error {
	ch, cancel := j.Subscribe(obs.Name(), buffer)
	defer cancel()
	logger := j.logger.With(slog.String("observer", obs.Name()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case rec, ok := <-ch:
			if !ok {
				return nil
			}
			if err := safeNotify(ctx, obs, rec); err != nil {
				logger.Warn("observer failed",
					slog.String("token", rec.Token),
					slog.String("action", string(rec.Action)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func safeNotify(ctx context.Context, obs Observer, rec domain.TradeRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("journal: observer %s panicked: %v", obs.Name(), r)
		}
	}()
	return obs.OnTrade(ctx, rec)
}
