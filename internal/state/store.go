package state

import (
	"context"

	"signalwatch/internal/signal"
)

// Store keeps the last classification that triggered an alert per (subscriber, symbol).
type Store interface {
	LastAlerted(ctx context.Context, sub signal.Subscriber, sym signal.Symbol) (signal.Classification, bool, error)
	Record(ctx context.Context, sub signal.Subscriber, sym signal.Symbol, c signal.Classification) error
	// Forget drops every record of an unsubscribed subscriber.
	Forget(ctx context.Context, sub signal.Subscriber) error
}

// Key identifies one state machine.
type Key struct {
	Subscriber signal.Subscriber
	Symbol     signal.Symbol
}
