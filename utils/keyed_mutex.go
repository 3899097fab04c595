package utils

import "sync"

// KeyedMutex hands out one lock per key. Entries are reference counted and
// dropped once nobody holds or waits on them, so the map only contains keys
// that are in use.
type KeyedMutex struct {
	mutex sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until the lock for key is held and returns its release func.
func (km *KeyedMutex) Lock(key string) func() {
	km.mutex.Lock()
	lock, ok := km.locks[key]
	if !ok {
		lock = &keyedLock{}
		km.locks[key] = lock
	}
	lock.refs++
	km.mutex.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		km.mutex.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(km.locks, key)
		}
		km.mutex.Unlock()
	}
}

// Len returns the number of keys currently locked or awaited.
func (km *KeyedMutex) Len() int {
	km.mutex.Lock()
	defer km.mutex.Unlock()
	return len(km.locks)
}
