package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"signalwatch/internal/dispatch"
	"signalwatch/internal/registry"
	"signalwatch/internal/signal"
	"signalwatch/internal/source"
	"signalwatch/internal/state"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Subscriptions is the read side of the registry.
type Subscriptions interface {
	Snapshot() []registry.Subscription
}

// Querier resolves the current classification of one symbol.
type Querier interface {
	Query(ctx context.Context, symbol signal.Symbol) source.Result
}

// Dispatcher fans one alert out to every channel.
type Dispatcher interface {
	Send(ctx context.Context, ev signal.AlertEvent) []dispatch.Outcome
}

// Observer is notified of sweep level events.
type Observer interface {
	SweepCompleted(pairs int, elapsed time.Duration)
	Triggered(classification string)
}

type nopObserver struct{}

func (nopObserver) SweepCompleted(int, time.Duration) {}
func (nopObserver) Triggered(string) {}

// SweepReport summarizes one cycle.
type SweepReport struct {
	Pairs     int
	NotFound  int
	Triggered int
	Withheld  int
	Failed    int
	Duration  time.Duration
}

type Scheduler struct {
	subs       Subscriptions
	source     Querier
	store      state.Store
	dispatcher Dispatcher

	interval        time.Duration
	workers         int
	alertWorthy     signal.AlertWorthy
	requireDelivery bool

	locks    *state.KeyLock
	clock    Clock
	logger   *zap.Logger
	observer Observer
}

type Option func(*Scheduler)

// WithInterval sets the pause between the end of one sweep and the start of the next.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithWorkers bounds the number of symbols evaluated at once.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithAlertWorthy(a signal.AlertWorthy) Option {
	return func(s *Scheduler) {
		if len(a) > 0 {
			s.alertWorthy = a
		}
	}
}

// WithRequireDelivery withholds the state update when every channel failed.
func WithRequireDelivery(v bool) Option {
	return func(s *Scheduler) { s.requireDelivery = v }
}

// WithKeyLock shares a lock table with other writers of the same store.
func WithKeyLock(l *state.KeyLock) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.locks = l
		}
	}
}

func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

func New(subs Subscriptions, src Querier, store state.Store, d Dispatcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		subs:        subs,
		source:      src,
		store:       store,
		dispatcher:  d,
		interval:    300 * time.Second,
		workers:     4,
		alertWorthy: signal.DefaultAlertWorthy(),
		locks:       state.NewKeyLock(),
		clock:       RealClock(),
		logger:      zap.NewNop(),
		observer:    nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps immediately and then once per interval until ctx is done.
// A sweep in progress is finished before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("monitor started",
		zap.Duration("interval", s.interval),
		zap.Int("workers", s.workers),
	)
	for {
		report := s.Sweep(context.WithoutCancel(ctx))
		s.logger.Info("sweep completed",
			zap.Int("pairs", report.Pairs),
			zap.Int("not_found", report.NotFound),
			zap.Int("triggered", report.Triggered),
			zap.Int("withheld", report.Withheld),
			zap.Int("failed", report.Failed),
			zap.Duration("elapsed", report.Duration),
		)

		select {
		case <-ctx.Done():
			s.logger.Info("monitor stopped")
			return ctx.Err()
		case <-s.clock.After(s.interval):
		}
	}
}

type tally struct {
	mu sync.Mutex
	r  SweepReport
}

func (t *tally) add(f func(r *SweepReport)) {
	t.mu.Lock()
	f(&t.r)
	t.mu.Unlock()
}

// Sweep evaluates every (subscriber, symbol) pair of the current snapshot once.
// Pairs not yet started when ctx is done are skipped.
func (s *Scheduler) Sweep(ctx context.Context) SweepReport {
	start := s.clock.Now()
	var t tally

	var g errgroup.Group
	g.SetLimit(s.workers)

sweep:
	for _, sub := range s.subs.Snapshot() {
		for _, sym := range sub.Symbols {
			if ctx.Err() != nil {
				break sweep
			}
			g.Go(func() error {
				s.evaluate(ctx, sub.Subscriber, sym, &t)
				return nil
			})
		}
	}
	_ = g.Wait()

	t.r.Duration = s.clock.Now().Sub(start)
	s.observer.SweepCompleted(t.r.Pairs, t.r.Duration)
	return t.r
}

func (s *Scheduler) evaluate(ctx context.Context, sub signal.Subscriber, sym signal.Symbol, t *tally) {
	t.add(func(r *SweepReport) { r.Pairs++ })

	log := s.logger.With(
		zap.String("subscriber", string(sub)),
		zap.String("symbol", string(sym)),
	)
	defer func() {
		if rec := recover(); rec != nil {
			t.add(func(r *SweepReport) { r.Failed++ })
			log.Error("symbol evaluation panicked", zap.Error(fmt.Errorf("%v", rec)), zap.Stack("stack"))
		}
	}()

	res := s.source.Query(ctx, sym)
	if !res.Found() {
		t.add(func(r *SweepReport) { r.NotFound++ })
		log.Info("no venue answered", zap.Error(res.Err()))
		return
	}
	if len(res.Errors) > 0 {
		log.Debug("answered after venue failures", zap.String("venue", res.Venue), zap.Error(res.Err()))
	}
	if !s.alertWorthy.Contains(res.Classification) {
		return
	}

	unlock := s.locks.Lock(state.Key{Subscriber: sub, Symbol: sym})
	defer unlock()

	last, ok, err := s.store.LastAlerted(ctx, sub, sym)
	if err != nil {
		t.add(func(r *SweepReport) { r.Failed++ })
		log.Warn("failed to read signal state", zap.Error(err))
		return
	}
	if ok && last == res.Classification {
		return
	}

	ev := signal.AlertEvent{
		Subscriber:     sub,
		Symbol:         sym,
		Classification: res.Classification,
		Venue:          res.Venue,
		Timestamp:      s.clock.Now(),
	}
	outcomes := s.dispatcher.Send(ctx, ev)
	t.add(func(r *SweepReport) { r.Triggered++ })
	s.observer.Triggered(res.Classification.String())

	delivered := dispatch.Delivered(outcomes)
	log.Info("alert triggered",
		zap.String("classification", res.Classification.String()),
		zap.String("previous", last.String()),
		zap.String("venue", res.Venue),
		zap.Bool("delivered", delivered),
	)

	if s.requireDelivery && !delivered {
		t.add(func(r *SweepReport) { r.Withheld++ })
		log.Warn("no channel delivered, state not advanced")
		return
	}
	if err := s.store.Record(ctx, sub, sym, res.Classification); err != nil {
		t.add(func(r *SweepReport) { r.Failed++ })
		log.Warn("failed to record signal state", zap.Error(err))
	}
}
