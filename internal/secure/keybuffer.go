// Package secure holds encryption key material in protected memory.
//
// Key bytes live inside a memguard enclave: encrypted at rest in memory,
// mlocked where the platform allows it, and wiped when the buffer is
// destroyed. The key is only ever decrypted for the duration of a single
// cipher operation via Use.
package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a KeyBuffer is used after Destroy.
var ErrDestroyed = errors.New("key buffer has been destroyed")

// KeyBuffer stores a symmetric key in a memguard enclave. The caller should
// zero its own copy of the key after construction; the buffer keeps the only
// long-lived copy.
type KeyBuffer struct {
	enclave *memguard.Enclave

	mu        sync.RWMutex
	destroyed bool
}

// NewKeyBuffer copies key material into a protected enclave.
func NewKeyBuffer(key []byte) *KeyBuffer {
	return &KeyBuffer{enclave: memguard.NewEnclave(key)}
}

// Use decrypts the key into a locked buffer, invokes fn with the raw bytes,
// and wipes the plaintext before returning. The bytes must not escape fn.
func (b *KeyBuffer) Use(fn func(key []byte) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return ErrDestroyed
	}

	locked, err := b.enclave.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(locked.Bytes())
}

// Destroy marks the buffer unusable. Idempotent. The enclave's encrypted
// contents are left for garbage collection; call memguard.Purge at process
// exit for full cleanup.
func (b *KeyBuffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return
	}
	b.enclave = nil
	b.destroyed = true
}
