package state

import "sync"

// KeyLock hands out one mutex per Key. Entries are dropped once nobody holds or waits on them.
type KeyLock struct {
	mu    sync.Mutex
	locks map[Key]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[Key]*keyEntry)}
}

// Lock blocks until key is free and returns its unlock function.
func (k *KeyLock) Lock(key Key) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *KeyLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
