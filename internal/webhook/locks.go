package webhook

import "sync"

// keyedLocks serializes work per key (invitee ID) while letting different keys run concurrently.
//
// Entries are reference counted and removed once no goroutine holds or waits
// on them, so the map stays bounded by the number of in-flight keys.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu      sync.Mutex
	waiters int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{
		locks: make(map[string]*keyedLock),
	}
}

// Lock blocks until the lock for key is held and returns the matching unlock func
func (k *keyedLocks) Lock(key string) func() {
	k.mu.Lock()
	lock, exists := k.locks[key]
	if !exists {
		lock = &keyedLock{}
		k.locks[key] = lock
	}
	lock.waiters++
	k.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		k.mu.Lock()
		lock.waiters--
		if lock.waiters == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// size reports the number of tracked keys
func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
