package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"signalwatch/internal/signal"

	"github.com/samber/lo"
)

var ErrEmptySymbols = errors.New("subscription needs at least one symbol")

// Subscription is one subscriber's tracked symbol set.
type Subscription struct {
	Subscriber signal.Subscriber `json:"subscriber"`
	Symbols    []signal.Symbol   `json:"symbols"`
}

// Backend persists subscriptions across restarts.
type Backend interface {
	SaveSubscription(ctx context.Context, sub signal.Subscriber, symbols []signal.Symbol) error
	DeleteSubscription(ctx context.Context, sub signal.Subscriber) error
	LoadSubscriptions(ctx context.Context) (map[signal.Subscriber][]signal.Symbol, error)
}

// Registry maps subscribers to their tracked symbols.
// Stored slices are never mutated after insertion, so readers can share them.
type Registry struct {
	writeMu sync.Mutex // serializes writers so backend and memory agree on order
	mu      sync.RWMutex
	subs    map[signal.Subscriber][]signal.Symbol
	backend Backend
}

type Option func(*Registry)

func WithBackend(b Backend) Option {
	return func(r *Registry) { r.backend = b }
}

func New(opts ...Option) *Registry {
	r := &Registry{
		subs: make(map[signal.Subscriber][]signal.Symbol),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Set replaces the subscriber's tracked set. Duplicates are dropped.
func (r *Registry) Set(ctx context.Context, sub signal.Subscriber, symbols []signal.Symbol) error {
	symbols = lo.Uniq(lo.Filter(symbols, func(s signal.Symbol, _ int) bool { return s != "" }))
	if len(symbols) == 0 {
		return ErrEmptySymbols
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if r.backend != nil {
		if err := r.backend.SaveSubscription(ctx, sub, symbols); err != nil {
			return fmt.Errorf("persist subscription: %w", err)
		}
	}

	r.mu.Lock()
	r.subs[sub] = symbols
	r.mu.Unlock()
	return nil
}

// Remove deletes the subscription and reports whether one existed.
func (r *Registry) Remove(ctx context.Context, sub signal.Subscriber) (bool, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.RLock()
	_, ok := r.subs[sub]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if r.backend != nil {
		if err := r.backend.DeleteSubscription(ctx, sub); err != nil {
			return false, fmt.Errorf("delete subscription: %w", err)
		}
	}

	r.mu.Lock()
	delete(r.subs, sub)
	r.mu.Unlock()
	return true, nil
}

// Get returns a copy of the subscriber's symbols.
func (r *Registry) Get(sub signal.Subscriber) ([]signal.Symbol, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	symbols, ok := r.subs[sub]
	if !ok {
		return nil, false
	}
	return append([]signal.Symbol(nil), symbols...), true
}

// Snapshot returns a point-in-time copy of every subscription, sorted by subscriber.
func (r *Registry) Snapshot() []Subscription {
	r.mu.RLock()
	out := lo.MapToSlice(r.subs, func(sub signal.Subscriber, symbols []signal.Symbol) Subscription {
		return Subscription{
			Subscriber: sub,
			Symbols:    append([]signal.Symbol(nil), symbols...),
		}
	})
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Subscriber < out[j].Subscriber })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Restore replaces the in-memory state with what the backend holds.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	if r.backend == nil {
		return 0, nil
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	loaded, err := r.backend.LoadSubscriptions(ctx)
	if err != nil {
		return 0, fmt.Errorf("load subscriptions: %w", err)
	}

	subs := make(map[signal.Subscriber][]signal.Symbol, len(loaded))
	for sub, symbols := range loaded {
		if symbols = lo.Uniq(symbols); len(symbols) > 0 {
			subs[sub] = symbols
		}
	}

	r.mu.Lock()
	r.subs = subs
	r.mu.Unlock()
	return len(subs), nil
}
