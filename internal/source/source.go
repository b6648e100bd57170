package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signalwatch/internal/signal"
	"signalwatch/pkg/tradingview"
)

// Provider returns the raw recommendation label for one symbol on one venue.
type Provider interface {
	Recommendation(ctx context.Context, r tradingview.Request) (string, error)
}

// Observer is notified of every venue call.
type Observer interface {
	VenueQueried(venue string, ok bool, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) VenueQueried(string, bool, time.Duration) {}

// VenueError records why one venue could not answer.
type VenueError struct {
	Venue string
	Err   error
}

func (e VenueError) Error() string {
	return fmt.Sprintf("%s: %v", e.Venue, e.Err)
}

func (e VenueError) Unwrap() error { return e.Err }

// Result is the outcome of one Query. A zero Classification means no venue answered.
type Result struct {
	Classification signal.Classification
	Venue          string
	Errors         []VenueError // venues tried before the answer, or all of them on NotFound
}

func (r Result) Found() bool {
	return r.Classification != ""
}

// Err joins the venue errors for logging; nil when the venue list was empty.
func (r Result) Err() error {
	errs := make([]error, len(r.Errors))
	for i := range r.Errors {
		errs[i] = r.Errors[i]
	}
	return errors.Join(errs...)
}

type Source struct {
	provider Provider
	venues   []string
	screener string
	interval tradingview.Interval
	timeout  time.Duration
	observer Observer
}

type Option func(*Source)

func WithScreener(screener string) Option {
	return func(s *Source) { s.screener = screener }
}

func WithInterval(interval tradingview.Interval) Option {
	return func(s *Source) { s.interval = interval }
}

// WithVenueTimeout bounds every single venue call; zero disables the bound.
func WithVenueTimeout(d time.Duration) Option {
	return func(s *Source) { s.timeout = d }
}

func WithObserver(o Observer) Option {
	return func(s *Source) {
		if o != nil {
			s.observer = o
		}
	}
}

// New builds a Source that tries venues in the given order.
func New(provider Provider, venues []string, opts ...Option) *Source {
	s := &Source{
		provider: provider,
		venues:   append([]string(nil), venues...),
		screener: tradingview.ScreenerForex,
		interval: tradingview.Interval5Min,
		timeout:  10 * time.Second,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Venues() []string {
	return append([]string(nil), s.venues...)
}

// Query asks each venue in priority order and stops at the first usable answer.
// Venue failures never surface as an error; they are carried in Result.Errors.
func (s *Source) Query(ctx context.Context, symbol signal.Symbol) Result {
	var res Result
	for _, venue := range s.venues {
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, VenueError{Venue: venue, Err: ctx.Err()})
			break
		}

		c, err := s.queryVenue(ctx, venue, symbol)
		if err != nil {
			res.Errors = append(res.Errors, VenueError{Venue: venue, Err: err})
			continue
		}
		res.Classification = c
		res.Venue = venue
		return res
	}
	return res
}

func (s *Source) queryVenue(ctx context.Context, venue string, symbol signal.Symbol) (signal.Classification, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	label, err := s.provider.Recommendation(ctx, tradingview.Request{
		Symbol:   string(symbol),
		Screener: s.screener,
		Exchange: venue,
		Interval: s.interval,
	})
	if err == nil && label == "" {
		err = tradingview.ErrNoData
	}
	var c signal.Classification
	if err == nil {
		c, err = signal.ParseClassification(label)
	}
	s.observer.VenueQueried(venue, err == nil, time.Since(start))
	return c, err
}
