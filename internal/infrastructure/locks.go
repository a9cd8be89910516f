package infrastructure

import "sync"

// KeyedLocks serializes inbound processing per key (the engine keys by user
// id). Duplicate webhook deliveries and rapid double-sends for the same
// user otherwise race the session read-modify-persist sequence.
type KeyedLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{locks: make(map[string]*lockEntry)}
}

// Lock blocks until the key is exclusively held and returns the unlock
// function. Entries are reference counted and removed once unused.
func (k *KeyedLocks) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
