package keymutex

import "sync"

// KeyMutex provides a mutex per string key. Services use it to serialize
// read-modify-write cycles on a single batch, order, or profile without
// blocking unrelated keys.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an empty KeyMutex.
func New() *KeyMutex {
	return &KeyMutex{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for the given key, creating it on first use.
func (k *KeyMutex) Lock(key string) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
}

// Unlock releases the mutex for the given key. Unlocking a key that was
// never locked panics, same as sync.Mutex.
func (k *KeyMutex) Unlock(key string) {
	k.mu.Lock()
	m, ok := k.locks[key]
	k.mu.Unlock()

	if !ok {
		panic("keymutex: unlock of unknown key " + key)
	}
	m.Unlock()
}
