package state

import (
	"context"
	"sync"

	"signalwatch/internal/signal"
)

type MemoryStore struct {
	globalMu sync.RWMutex
	data     map[signal.Subscriber]*subscriberSignals
}

type subscriberSignals struct {
	mu      sync.Mutex
	signals map[signal.Symbol]signal.Classification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[signal.Subscriber]*subscriberSignals),
	}
}

func (s *MemoryStore) LastAlerted(_ context.Context, sub signal.Subscriber, sym signal.Symbol) (signal.Classification, bool, error) {
	s.globalMu.RLock()
	store, ok := s.data[sub]
	s.globalMu.RUnlock()
	if !ok {
		return "", false, nil
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	c, ok := store.signals[sym]
	return c, ok, nil
}

func (s *MemoryStore) Record(_ context.Context, sub signal.Subscriber, sym signal.Symbol, c signal.Classification) error {
	// Fast path: lock per-subscriber store only
	s.globalMu.RLock()
	store, ok := s.data[sub]
	s.globalMu.RUnlock()

	if !ok {
		s.globalMu.Lock()
		if store, ok = s.data[sub]; !ok {
			store = &subscriberSignals{signals: make(map[signal.Symbol]signal.Classification)}
			s.data[sub] = store
		}
		s.globalMu.Unlock()
	}

	store.mu.Lock()
	store.signals[sym] = c
	store.mu.Unlock()
	return nil
}

func (s *MemoryStore) Forget(_ context.Context, sub signal.Subscriber) error {
	s.globalMu.Lock()
	delete(s.data, sub)
	s.globalMu.Unlock()
	return nil
}

// CountAll returns the number of records across all subscribers.
func (s *MemoryStore) CountAll() int {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	total := 0
	for _, store := range s.data {
		store.mu.Lock()
		total += len(store.signals)
		store.mu.Unlock()
	}
	return total
}
