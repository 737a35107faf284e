package authz

import "sync"

// keyLock serializes mutations per key. Assignment and request mutations
// lock on the (userID, retreatID) pair so concurrent invites, accepts,
// and revokes for the same membership cannot interleave.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*keyLockEntry)}
}

// lock acquires the mutex for key and returns the unlock function.
func (k *keyLock) lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyLockEntry{}
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

func memberKey(userID, retreatID string) string {
	return userID + ":" + retreatID
}
