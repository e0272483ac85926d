// lock.go implements per-key mutual exclusion.
//
// Revision allocation must be serialised per unit, not per backend: two
// different codes never wait for each other. Locks are reference counted
// and dropped once nobody holds or waits for them.

package storage

import (
	"strconv"
	"sync"
)

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex hands out one mutex per key.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// Lock acquires the mutex for key and returns its release function.
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l := k.locks[key]
	if l == nil {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// held returns the number of live keys, for tests.
func (k *KeyedMutex) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func itoa(n int) string { return strconv.Itoa(n) }
