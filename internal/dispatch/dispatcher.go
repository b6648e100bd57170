package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"signalwatch/internal/signal"

	"go.uber.org/zap"
)

// Channel is one independent output for rendered alerts.
type Channel interface {
	Name() string
	Send(ctx context.Context, ev signal.AlertEvent, message string) error
}

// Outcome is the result of one channel for one alert.
type Outcome struct {
	Channel  string
	Err      error
	Duration time.Duration
}

// Observer is notified once per channel attempt.
type Observer interface {
	ChannelSent(channel string, ok bool, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ChannelSent(string, bool, time.Duration) {}

// Render builds the human readable alert text.
func Render(ev signal.AlertEvent) string {
	return fmt.Sprintf("🚨 %s Alert: %s on %s!", ev.Symbol, ev.Classification, ev.Venue)
}

// Delivered reports whether at least one channel succeeded.
func Delivered(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if o.Err == nil {
			return true
		}
	}
	return false
}

type Dispatcher struct {
	channels []Channel
	timeout  time.Duration
	logger   *zap.Logger
	observer Observer
}

type Option func(*Dispatcher)

// WithChannelTimeout bounds each channel call; zero disables the bound.
func WithChannelTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(disp *Dispatcher) {
		if l != nil {
			disp.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(disp *Dispatcher) {
		if o != nil {
			disp.observer = o
		}
	}
}

func New(channels []Channel, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		channels: append([]Channel(nil), channels...),
		timeout:  10 * time.Second,
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Channels returns the configured channel names in order.
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.channels))
	for i, ch := range d.channels {
		names[i] = ch.Name()
	}
	return names
}

// Send pushes ev to every channel concurrently and waits for all of them.
// A failing channel never affects the others and never makes Send fail.
// Outcomes are returned in channel order.
func (d *Dispatcher) Send(ctx context.Context, ev signal.AlertEvent) []Outcome {
	message := Render(ev)
	outcomes := make([]Outcome, len(d.channels))

	var wg sync.WaitGroup
	for i, ch := range d.channels {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			outcomes[i] = d.sendOne(ctx, ch, ev, message)
		}(i, ch)
	}
	wg.Wait()

	return outcomes
}

func (d *Dispatcher) sendOne(ctx context.Context, ch Channel, ev signal.AlertEvent, message string) (out Outcome) {
	out.Channel = ch.Name()
	start := time.Now()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("channel %s panicked: %v", out.Channel, r)
		}
		out.Duration = time.Since(start)
		d.observer.ChannelSent(out.Channel, out.Err == nil, out.Duration)

		if out.Err != nil {
			d.logger.Warn("alert channel failed",
				zap.String("channel", out.Channel),
				zap.String("subscriber", string(ev.Subscriber)),
				zap.String("symbol", string(ev.Symbol)),
				zap.String("classification", ev.Classification.String()),
				zap.Error(out.Err),
			)
			return
		}
		d.logger.Debug("alert channel delivered",
			zap.String("channel", out.Channel),
			zap.String("symbol", string(ev.Symbol)),
			zap.Duration("elapsed", out.Duration),
		)
	}()

	out.Err = ch.Send(ctx, ev, message)
	return out
}
