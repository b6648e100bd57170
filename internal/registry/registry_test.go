package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"signalwatch/internal/signal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

// go test -v --run TestSetReplaces
func TestSetReplaces(t *testing.T) {
	r := New()

	require.NoError(t, r.Set(ctx, "1", []signal.Symbol{"EURUSD", "USDJPY", "EURUSD"}))
	got, ok := r.Get("1")
	require.True(t, ok)
	assert.Equal(t, []signal.Symbol{"EURUSD", "USDJPY"}, got)

	require.NoError(t, r.Set(ctx, "1", []signal.Symbol{"GBPUSD"}))
	got, _ = r.Get("1")
	assert.Equal(t, []signal.Symbol{"GBPUSD"}, got)
	assert.Equal(t, 1, r.Len())
}

// go test -v --run TestSetRejectsEmpty
func TestSetRejectsEmpty(t *testing.T) {
	r := New()
	assert.ErrorIs(t, r.Set(ctx, "1", nil), ErrEmptySymbols)
	assert.ErrorIs(t, r.Set(ctx, "1", []signal.Symbol{""}), ErrEmptySymbols)
	assert.Equal(t, 0, r.Len())
}

// go test -v --run TestRemove
func TestRemove(t *testing.T) {
	r := New()
	require.NoError(t, r.Set(ctx, "1", []signal.Symbol{"EURUSD"}))

	removed, err := r.Remove(ctx, "1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = r.Remove(ctx, "1")
	require.NoError(t, err)
	assert.False(t, removed)

	_, ok := r.Get("1")
	assert.False(t, ok)
}

// go test -v --run TestSnapshotIsCopy
func TestSnapshotIsCopy(t *testing.T) {
	r := New()
	require.NoError(t, r.Set(ctx, "b", []signal.Symbol{"EURUSD"}))
	require.NoError(t, r.Set(ctx, "a", []signal.Symbol{"USDJPY"}))

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, signal.Subscriber("a"), snap[0].Subscriber)
	assert.Equal(t, signal.Subscriber("b"), snap[1].Subscriber)

	snap[0].Symbols[0] = "MUTATED"
	got, _ := r.Get("a")
	assert.Equal(t, []signal.Symbol{"USDJPY"}, got)

	require.NoError(t, r.Set(ctx, "a", []signal.Symbol{"AUDUSD"}))
	assert.Equal(t, signal.Symbol("MUTATED"), snap[0].Symbols[0])
}

// go test -v --run TestConcurrentSetAndSnapshot
func TestConcurrentSetAndSnapshot(t *testing.T) {
	r := New()
	setA := []signal.Symbol{"A1", "A2", "A3"}
	setB := []signal.Symbol{"B1", "B2"}
	other := []signal.Symbol{"X1"}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for n := 0; n < 500; n++ {
				s := setA
				if (n+i)%2 == 0 {
					s = setB
				}
				assert.NoError(t, r.Set(ctx, "s", s))
				assert.NoError(t, r.Set(ctx, signal.Subscriber(fmt.Sprintf("o%d", i)), other))
			}
		}(i)
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			for _, sub := range r.Snapshot() {
				switch sub.Subscriber {
				case "s":
					if len(sub.Symbols) == 3 {
						assert.Equal(t, setA, sub.Symbols)
					} else {
						assert.Equal(t, setB, sub.Symbols)
					}
				default:
					assert.Equal(t, other, sub.Symbols)
				}
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-readerDone
	assert.Equal(t, 5, r.Len())
}

type fakeBackend struct {
	mu      sync.Mutex
	data    map[signal.Subscriber][]signal.Symbol
	failErr error
}

func (f *fakeBackend) SaveSubscription(_ context.Context, sub signal.Subscriber, symbols []signal.Symbol) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.data[sub] = symbols
	return nil
}

func (f *fakeBackend) DeleteSubscription(_ context.Context, sub signal.Subscriber) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	delete(f.data, sub)
	return nil
}

func (f *fakeBackend) LoadSubscriptions(context.Context) (map[signal.Subscriber][]signal.Symbol, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	out := make(map[signal.Subscriber][]signal.Symbol, len(f.data))
	for k, v := range f.data {
		out[k] = v
	}
	return out, nil
}

// go test -v --run TestBackendWriteThrough
func TestBackendWriteThrough(t *testing.T) {
	b := &fakeBackend{data: map[signal.Subscriber][]signal.Symbol{}}
	r := New(WithBackend(b))

	require.NoError(t, r.Set(ctx, "1", []signal.Symbol{"EURUSD"}))
	assert.Equal(t, []signal.Symbol{"EURUSD"}, b.data["1"])

	b.failErr = errors.New("db down")
	err := r.Set(ctx, "1", []signal.Symbol{"USDJPY"})
	assert.ErrorIs(t, err, b.failErr)
	got, _ := r.Get("1")
	assert.Equal(t, []signal.Symbol{"EURUSD"}, got, "memory must not change when backend fails")

	_, err = r.Remove(ctx, "1")
	assert.Error(t, err)
	assert.Equal(t, 1, r.Len())

	b.failErr = nil
	removed, err := r.Remove(ctx, "1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, b.data)
}

// go test -v --run TestRestore
func TestRestore(t *testing.T) {
	b := &fakeBackend{data: map[signal.Subscriber][]signal.Symbol{
		"1": {"EURUSD", "EURUSD"},
		"2": {},
	}}
	r := New(WithBackend(b))

	n, err := r.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, ok := r.Get("1")
	require.True(t, ok)
	assert.Equal(t, []signal.Symbol{"EURUSD"}, got)

	n, err = New().Restore(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
