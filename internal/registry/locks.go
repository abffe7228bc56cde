package registry

import (
	"fmt"
	"sync"

	"github.com/systmms/credvault/pkg/secretref"
)

// keyedLocks serializes mutations per (scope, name) pair. The store's
// compare-and-set on key_version is the backstop for writers in other
// processes; this mutex keeps in-process callers from ever reaching it.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*sync.Mutex)}
}

func lockKey(scope secretref.Scope, name string) string {
	return fmt.Sprintf("%s/%s", scope, name)
}

// acquire blocks until the pair's lock is held and returns the release func.
func (k *keyedLocks) acquire(scope secretref.Scope, name string) func() {
	key := lockKey(scope, name)

	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
