// Package errors defines the typed failure taxonomy for the credential
// registry. Every failure that crosses the registry boundary is an *Error
// carrying a stable type, a human-readable detail, and a remediation string
// suitable for direct display. Error text never contains plaintext or
// ciphertext; use Mask for any value that has to be echoed.
package errors

import (
	"errors"
	"fmt"
)

// Type identifies a failure class. Values are stable strings so they can be
// matched by callers and serialized into API responses.
type Type string

const (
	// Input validation. No I/O is performed when these are returned.
	TypeInvalidScope    Type = "invalid_scope"
	TypeInvalidName     Type = "invalid_name"
	TypeInvalidValue    Type = "invalid_value"
	TypeInvalidSource   Type = "invalid_source"
	TypeInvalidProvider Type = "invalid_provider"
	TypeInvalidConfig   Type = "invalid_config"

	// Encryption. Both abort before any write.
	TypeEncryptionConfigUnavailable Type = "encryption_config_unavailable"
	TypeEncryptionFailed            Type = "encryption_failed"
	TypeDecryptionFailed            Type = "decryption_failed"

	// Persistence and audit coupling.
	TypeSecretPersistenceFailed      Type = "secret_persistence_failed"
	TypeSecretAuditPersistenceFailed Type = "secret_audit_persistence_failed"
	TypeConcurrentRotationConflict   Type = "concurrent_rotation_conflict"

	// Rotation protocol.
	TypeRotationPrecheckFailed   Type = "provider_rotation_precheck_failed"
	TypeRotationValidationFailed Type = "provider_rotation_validation_failed"
	TypeRotationRollbackFailed   Type = "provider_rotation_rollback_failed"
	TypeCredentialMissing        Type = "provider_credential_missing"

	// Validator boundary.
	TypeValidatorException     Type = "validator_exception"
	TypeInvalidValidatorResult Type = "invalid_validator_result"

	// Read side.
	TypeSecretNotFound Type = "secret_not_found"
	TypeSecretRevoked  Type = "secret_revoked"
)

// Error is the typed failure record used everywhere in the registry.
type Error struct {
	Type        Type
	Detail      string
	Remediation string
	Err         error
}

func (e *Error) Error() string {
	msg := string(e.Type)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Remediation != "" {
		msg += "\n  Try: " + e.Remediation
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on the type alone, so sentinel comparison works:
// errors.Is(err, &Error{Type: TypeCredentialMissing}).
func (e *Error) Is(target error) bool {
	var te *Error
	if !errors.As(target, &te) {
		return false
	}
	return te.Type == e.Type
}

// New builds a typed error with a formatted detail.
func New(t Type, remediation, format string, args ...interface{}) *Error {
	return &Error{
		Type:        t,
		Detail:      fmt.Sprintf(format, args...),
		Remediation: remediation,
	}
}

// Wrap builds a typed error around an underlying cause.
func Wrap(t Type, remediation string, err error, format string, args ...interface{}) *Error {
	return &Error{
		Type:        t,
		Detail:      fmt.Sprintf(format, args...),
		Remediation: remediation,
		Err:         err,
	}
}

// TypeOf extracts the failure type from an error chain, or "" if the chain
// carries no typed error.
func TypeOf(err error) Type {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// IsType reports whether the error chain carries the given failure type.
func IsType(err error, t Type) bool {
	return TypeOf(err) == t
}

// Mask redacts a sensitive value for error text, keeping just enough shape
// to recognize which value was meant.
func Mask(value string) string {
	if len(value) <= 8 {
		return "***"
	}
	return value[:3] + "***" + value[len(value)-3:]
}
