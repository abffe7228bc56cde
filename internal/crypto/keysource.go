package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"os"

	"github.com/zalando/go-keyring"

	cverrors "github.com/systmms/credvault/internal/errors"
)

// DefaultKeyEnv is the environment variable checked for the encryption key.
const DefaultKeyEnv = "CREDVAULT_KEY"

// DefaultKeyringService is the OS keyring service name for the key entry.
const DefaultKeyringService = "credvault"

// DefaultKeyringAccount is the OS keyring account name for the key entry.
const DefaultKeyringAccount = "encryption-key"

// KeySource supplies encryption key material from out-of-band configuration.
type KeySource interface {
	Load() ([]byte, error)
}

// EnvKeySource reads a hex- or base64-encoded key from an environment
// variable.
type EnvKeySource struct {
	Var string
}

// Load implements KeySource.
func (s EnvKeySource) Load() ([]byte, error) {
	name := s.Var
	if name == "" {
		name = DefaultKeyEnv
	}
	raw := os.Getenv(name)
	if raw == "" {
		return nil, cverrors.New(cverrors.TypeEncryptionConfigUnavailable,
			"export "+name+" with a 32-byte key (64 hex characters or base64)",
			"environment variable %s is not set", name)
	}
	return decodeKey(raw)
}

// KeyringSource reads the key from the OS keyring (Secret Service on Linux,
// Keychain on macOS, Credential Manager on Windows).
type KeyringSource struct {
	Service string
	Account string
}

// Load implements KeySource.
func (s KeyringSource) Load() ([]byte, error) {
	service, account := s.Service, s.Account
	if service == "" {
		service = DefaultKeyringService
	}
	if account == "" {
		account = DefaultKeyringAccount
	}

	raw, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, cverrors.New(cverrors.TypeEncryptionConfigUnavailable,
				"run 'credvault key set' to install the encryption key, or export "+DefaultKeyEnv,
				"no key stored in OS keyring under %s/%s", service, account)
		}
		return nil, cverrors.Wrap(cverrors.TypeEncryptionConfigUnavailable,
			"check that an OS keyring service is available", err,
			"reading key from OS keyring")
	}
	return decodeKey(raw)
}

// Store writes an encoded key into the OS keyring.
func (s KeyringSource) Store(encoded string) error {
	if _, err := decodeKey(encoded); err != nil {
		return err
	}
	service, account := s.Service, s.Account
	if service == "" {
		service = DefaultKeyringService
	}
	if account == "" {
		account = DefaultKeyringAccount
	}
	if err := keyring.Set(service, account, encoded); err != nil {
		return cverrors.Wrap(cverrors.TypeInvalidConfig,
			"check that an OS keyring service is available", err,
			"storing key in OS keyring")
	}
	return nil
}

// ChainKeySource tries each source in order, returning the first key found.
// Only when every source reports the key as absent does the chain fail.
type ChainKeySource []KeySource

// Load implements KeySource.
func (c ChainKeySource) Load() ([]byte, error) {
	var lastErr error
	for _, source := range c {
		key, err := source.Load()
		if err == nil {
			return key, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = cverrors.New(cverrors.TypeEncryptionConfigUnavailable,
			"configure an encryption key via environment or OS keyring",
			"no key sources configured")
	}
	return nil, lastErr
}

// DefaultKeySource checks the environment first, then the OS keyring.
func DefaultKeySource() KeySource {
	return ChainKeySource{EnvKeySource{}, KeyringSource{}}
}

func decodeKey(raw string) ([]byte, error) {
	if decoded, err := hex.DecodeString(raw); err == nil && len(decoded) == KeySize {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) == KeySize {
		return decoded, nil
	}
	return nil, cverrors.New(cverrors.TypeEncryptionConfigUnavailable,
		"the key must decode to exactly 32 bytes as hex or base64",
		"encryption key is malformed")
}
