// Package secretref defines the domain types for the credential ledger:
// versioned secret references, lifecycle audit records, and the ephemeral
// snapshots handed to callers. Rows are immutable; the active version for a
// (scope, name) pair is always the one with the highest key version.
package secretref

import (
	"fmt"
	"time"
)

// Scope is the namespace a secret belongs to.
type Scope string

const (
	ScopeInstance    Scope = "instance"
	ScopeProject     Scope = "project"
	ScopeIntegration Scope = "integration"
)

// ParseScope validates a scope string at the boundary.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeInstance, ScopeProject, ScopeIntegration:
		return Scope(s), nil
	}
	return "", fmt.Errorf("unknown scope %q (expected instance, project, or integration)", s)
}

// Valid reports whether the scope is one of the known values.
func (s Scope) Valid() bool {
	_, err := ParseScope(string(s))
	return err == nil
}

// Source records how a secret version entered the ledger.
type Source string

const (
	SourceEnv        Source = "env"
	SourceOnboarding Source = "onboarding"
	SourceRotation   Source = "rotation"
)

// ParseSource validates a source string at the boundary.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceEnv, SourceOnboarding, SourceRotation:
		return Source(s), nil
	}
	return "", fmt.Errorf("unknown source %q (expected env, onboarding, or rotation)", s)
}

// Valid reports whether the source is one of the known values.
func (s Source) Valid() bool {
	_, err := ParseSource(string(s))
	return err == nil
}

// Action is the lifecycle event type recorded in the audit trail.
type Action string

const (
	ActionCreate Action = "create"
	ActionRotate Action = "rotate"
	ActionRevoke Action = "revoke"
)

// Outcome is the recorded result of a lifecycle event.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// SecretReference is one immutable row of the secret ledger. Rotation and
// rollback both append a new row with KeyVersion = previous + 1; nothing
// rewrites or deletes an existing row.
type SecretReference struct {
	ID            string
	Scope         Scope
	Name          string
	Ciphertext    []byte
	KeyVersion    int
	Source        Source
	LastRotatedAt time.Time
	ExpiresAt     *time.Time

	// RevokedAt marks the row as withdrawn from active use. The ciphertext
	// is retained so history stays inspectable; consumers must treat a
	// revoked reference as unusable.
	RevokedAt *time.Time
}

// Revoked reports whether the reference has been withdrawn.
func (r *SecretReference) Revoked() bool {
	return r != nil && r.RevokedAt != nil
}

// Clone returns a deep copy, including the ciphertext bytes. Snapshots handed
// to callers must not alias ledger-owned buffers.
func (r *SecretReference) Clone() *SecretReference {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Ciphertext = append([]byte(nil), r.Ciphertext...)
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		cp.ExpiresAt = &t
	}
	if r.RevokedAt != nil {
		t := *r.RevokedAt
		cp.RevokedAt = &t
	}
	return &cp
}

// Metadata is the read-side projection of a SecretReference. It never carries
// ciphertext.
type Metadata struct {
	ID            string     `json:"id"`
	Scope         Scope      `json:"scope"`
	Name          string     `json:"name"`
	KeyVersion    int        `json:"key_version"`
	Source        Source     `json:"source"`
	LastRotatedAt time.Time  `json:"last_rotated_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Revoked       bool       `json:"revoked,omitempty"`
}

// MetadataOf projects a reference into its non-sensitive metadata.
func MetadataOf(r *SecretReference) Metadata {
	return Metadata{
		ID:            r.ID,
		Scope:         r.Scope,
		Name:          r.Name,
		KeyVersion:    r.KeyVersion,
		Source:        r.Source,
		LastRotatedAt: r.LastRotatedAt,
		ExpiresAt:     r.ExpiresAt,
		Revoked:       r.Revoked(),
	}
}

// Actor identifies who initiated a lifecycle event.
type Actor struct {
	ID    string
	Email string
}

// AuditRecord is one immutable row of the lifecycle audit trail. Every
// successful mutation of a SecretReference has a matching record.
type AuditRecord struct {
	SecretRefID string
	Scope       Scope
	Name        string
	Action      Action
	Outcome     Outcome
	ActorID     string
	ActorEmail  string
	OccurredAt  time.Time
}

// CredentialContext is a point-in-time snapshot of the active credential for
// a provider, including the ciphertext for in-process decryption by an
// authorized consumer. A context captured before a rotation keeps referencing
// the version that was active at capture time.
type CredentialContext struct {
	Provider      string
	ID            string
	Scope         Scope
	Name          string
	KeyVersion    int
	Source        Source
	LastRotatedAt time.Time
	Ciphertext    []byte
}

// Verification is a checkpoint result inside a RotationReport.
type Verification struct {
	KeyVersion   int    `json:"key_version"`
	Verification string `json:"verification,omitempty"`
}

// RotationReport summarizes one rotation attempt for the caller.
type RotationReport struct {
	Provider             string       `json:"provider"`
	Scope                Scope        `json:"scope"`
	Name                 string       `json:"name"`
	Before               Verification `json:"before"`
	After                Verification `json:"after"`
	ReferencesSwitchedAt time.Time    `json:"references_switched_at"`
	RollbackPerformed    bool         `json:"rollback_performed"`
	ContinuityAlarm      bool         `json:"continuity_alarm"`
}
