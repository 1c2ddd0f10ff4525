// Package notify fans trade alerts out to operator chat channels. Events are
// filtered by name so an operator can, for example, subscribe to exits only.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Event names understood by the filter.
const (
	EventBuy      = "trade.buy"
	EventSell     = "trade.sell"
	EventDump     = "trade.dump"
	EventSimulate = "trade.simulated"
)

// Sender is one notification channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Notifier delivers messages whose event passes the filter to every Sender
// in parallel. An empty filter admits every event.
type Notifier struct {
	senders []Sender
	filter  map[string]struct{}
	logger  *slog.Logger
}

func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	n := &Notifier{
		senders: senders,
		filter:  make(map[string]struct{}),
		logger:  logger.With(slog.String("component", "notifier")),
	}
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			n.filter[e] = struct{}{}
		}
	}
	return n
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool { return len(n.senders) > 0 }

// Allows reports whether event passes the filter.
func (n *Notifier) Allows(event string) bool {
	if len(n.filter) == 0 {
		return true
	}
	_, ok := n.filter[event]
	return ok
}

// Notify delivers msg if its event passes the filter. A message without an
// event always passes. Every sender is tried; failures are joined.
func (n *Notifier) Notify(ctx context.Context, msg Message) error {
	if msg.Event != "" && !n.Allows(msg.Event) {
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, s := range n.senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Send(ctx, msg); err != nil {
				n.logger.WarnContext(ctx, "alert not delivered",
					slog.String("sender", s.Name()),
					slog.String("event", msg.Event),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}
