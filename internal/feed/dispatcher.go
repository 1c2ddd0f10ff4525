package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/TwiZzy841/solana-ai-trading-bot/internal/domain"
	"github.com/TwiZzy841/solana-ai-trading-bot/internal/engine"
)

// Handler evaluates feed events. *engine.Engine satisfies it.
type Handler interface {
	HandleCandidate(ctx context.Context, ev domain.CandidateEvent) (engine.Outcome, error)
	HandlePriceUpdate(ctx context.Context, up domain.PriceUpdate) (engine.Outcome, error)
}

var _ Handler = (*engine.Engine)(nil)

// ErrDispatcherStopped is returned by Candidate and Price once Run has exited.
var ErrDispatcherStopped = errors.New("feed: dispatcher stopped")

type job struct {
	candidate *domain.CandidateEvent
	price     *domain.PriceUpdate
}

func (j job) token() string {
	if j.candidate != nil {
		return j.candidate.Token
	}
	return j.price.Token
}

// Dispatcher fans events out to a fixed set of workers. Events for the same
// token always land on the same worker, so they are evaluated in arrival
// order while different tokens proceed in parallel.
type Dispatcher struct {
	handler Handler
	shards  []chan job
	logger  *slog.Logger

	done     chan struct{}
	doneOnce sync.Once
}

// NewDispatcher creates a dispatcher with workers shards, each buffering
// queue events.
func NewDispatcher(h Handler, workers, queue int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 64
	}
	shards := make([]chan job, workers)
	for i := range shards {
		shards[i] = make(chan job, queue)
	}
	return &Dispatcher{
		handler: h,
		shards:  shards,
		logger:  logger.With(slog.String("component", "dispatcher")),
		done:    make(chan struct{}),
	}
}

// Run starts the workers and blocks until ctx is done or a handler reports a
// fatal error. Unconfigured capital is fatal; everything else is logged.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.doneOnce.Do(func() { close(d.done) })

	g, ctx := errgroup.WithContext(ctx)
	for i, ch := range d.shards {
		log := d.logger.With(slog.Int("worker", i))
		g.Go(func() error { return d.work(ctx, ch, log) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Dispatcher) work(ctx context.Context, ch <-chan job, log *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-ch:
			if err := d.handle(ctx, j); err != nil {
				if errors.Is(err, domain.ErrCapitalNotConfigured) {
					log.Error("stopping: capital not configured", slog.String("token", j.token()))
					return err
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn("event failed",
					slog.String("token", j.token()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, j job) error {
	var err error
	if j.candidate != nil {
		_, err = d.handler.HandleCandidate(ctx, *j.candidate)
	} else {
		_, err = d.handler.HandlePriceUpdate(ctx, *j.price)
	}
	return err
}

// Candidate queues ev. It blocks while the token's worker is full.
func (d *Dispatcher) Candidate(ctx context.Context, ev domain.CandidateEvent) error {
	return d.enqueue(ctx, job{candidate: &ev})
}

// Price queues up. It blocks while the token's worker is full.
func (d *Dispatcher) Price(ctx context.Context, up domain.PriceUpdate) error {
	return d.enqueue(ctx, job{price: &up})
}

func (d *Dispatcher) enqueue(ctx context.Context, j job) error {
	ch := d.shards[d.shardFor(j.token())]
	select {
	case ch <- j:
		return nil
	case <-d.done:
		return ErrDispatcherStopped
	case <-ctx.Done():
		return fmt.Errorf("feed: enqueue %s: %w", j.token(), ctx.Err())
	}
}

func (d *Dispatcher) shardFor(token string) int {
	return int(xxhash.Sum64String(token) % uint64(len(d.shards)))
}
