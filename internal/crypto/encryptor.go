// Package crypto implements authenticated encryption for secret plaintext.
//
// The cipher is AES-256-GCM with a random nonce prepended to the sealed
// output. Key material is held in protected memory (internal/secure) and is
// only decrypted for the duration of a single cipher operation.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	cverrors "github.com/systmms/credvault/internal/errors"
	"github.com/systmms/credvault/internal/secure"
)

// KeySize is the required key length for AES-256.
const KeySize = 32

// Encryptor seals and opens secret values. Implementations must never log or
// return plaintext in error paths.
type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// AESGCM is the production Encryptor. Construct with NewAESGCM or FromSource.
type AESGCM struct {
	key *secure.KeyBuffer
}

// NewAESGCM creates an encryptor from raw key bytes. The caller should zero
// its copy of the key afterwards.
func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != KeySize {
		return nil, cverrors.New(cverrors.TypeEncryptionConfigUnavailable,
			"supply a 32-byte key (64 hex characters or base64)",
			"encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	return &AESGCM{key: secure.NewKeyBuffer(key)}, nil
}

// FromSource loads key material from the given source and builds the
// encryptor. A missing key is reported as encryption_config_unavailable
// before any store I/O can happen.
func FromSource(source KeySource) (*AESGCM, error) {
	key, err := source.Load()
	if err != nil {
		return nil, err
	}
	enc, err := NewAESGCM(key)
	for i := range key {
		key[i] = 0
	}
	return enc, err
}

// Encrypt seals plaintext, returning nonce||ciphertext.
func (e *AESGCM) Encrypt(plaintext []byte) ([]byte, error) {
	var out []byte
	err := e.key.Use(func(key []byte) error {
		gcm, err := newGCM(key)
		if err != nil {
			return err
		}
		nonce := make([]byte, gcm.NonceSize())
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return fmt.Errorf("generating nonce: %w", err)
		}
		out = gcm.Seal(nonce, nonce, plaintext, nil)
		return nil
	})
	if err != nil {
		return nil, cverrors.Wrap(cverrors.TypeEncryptionFailed,
			"check the configured encryption key", err, "sealing secret value")
	}
	return out, nil
}

// Decrypt opens nonce||ciphertext produced by Encrypt.
func (e *AESGCM) Decrypt(ciphertext []byte) ([]byte, error) {
	var out []byte
	err := e.key.Use(func(key []byte) error {
		gcm, err := newGCM(key)
		if err != nil {
			return err
		}
		if len(ciphertext) < gcm.NonceSize() {
			return fmt.Errorf("ciphertext shorter than nonce")
		}
		nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
		out, err = gcm.Open(nil, nonce, sealed, nil)
		return err
	})
	if err != nil {
		return nil, cverrors.Wrap(cverrors.TypeDecryptionFailed,
			"the ciphertext may be corrupt or encrypted under a different key", err,
			"opening secret value")
	}
	return out, nil
}

// Destroy wipes the key material. The encryptor is unusable afterwards.
func (e *AESGCM) Destroy() {
	e.key.Destroy()
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
