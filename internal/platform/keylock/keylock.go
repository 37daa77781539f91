// Package keylock provides a mutex per string key. The engine uses it to
// serialize check-then-insert sequences that must not interleave: slot
// generation per doctor-branch+date, release-rule uniqueness writes per
// doctor-branch, and queue recomputation per branch+day.
package keylock

import "sync"

// KeyLock hands out one mutex per key. Locks are created on first use and
// kept for the life of the process; the key space here (doctor-branches,
// branch-days) is small and bounded.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*sync.RWMutex)}
}

func (k *KeyLock) get(key string) *sync.RWMutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		k.locks[key] = l
	}
	return l
}

// Lock acquires the write lock for key and returns the unlock function.
func (k *KeyLock) Lock(key string) func() {
	l := k.get(key)
	l.Lock()
	return l.Unlock
}

// RLock acquires the read lock for key, letting snapshot reads proceed
// concurrently with each other but not with a writer.
func (k *KeyLock) RLock(key string) func() {
	l := k.get(key)
	l.RLock()
	return l.RUnlock
}
