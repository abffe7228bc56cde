// Package store persists the secret ledger and its lifecycle audit trail.
//
// Both tables are append-only: a SecretReference row is never updated in
// place, and the active version for a (scope, name) pair is derived as the
// row with the highest key version. The only departures from append-only are
// Retract and ClearRevocation, which exist solely so the registry can unwind
// a mutation whose paired audit write failed.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/systmms/credvault/pkg/secretref"
)

// ErrVersionConflict is returned by Append when the expected previous
// version no longer matches, i.e. a concurrent writer won the race.
var ErrVersionConflict = errors.New("secret version conflict: expected previous version no longer active")

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("secret reference not found")

// Store is the append-only secret reference ledger.
type Store interface {
	// GetActive returns the highest-version row for (scope, name), or
	// (nil, nil) when the pair has no versions.
	GetActive(ctx context.Context, scope secretref.Scope, name string) (*secretref.SecretReference, error)

	// Get returns the row with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*secretref.SecretReference, error)

	// Append inserts a new immutable row. expectedPrev is the key version
	// the caller observed as active (0 for a first persist); if another
	// writer has appended in the meantime the insert fails with
	// ErrVersionConflict and the ledger is unchanged.
	Append(ctx context.Context, ref *secretref.SecretReference, expectedPrev int) (*secretref.SecretReference, error)

	// Retract removes the row with the given id. It is a compensation
	// primitive for failed audit coupling, valid only for the most recent
	// append; it is never part of normal operation.
	Retract(ctx context.Context, id string) error

	// ListActiveAll returns the active version of every (scope, name) pair.
	ListActiveAll(ctx context.Context) ([]*secretref.SecretReference, error)

	// Revoke marks the row withdrawn from active use. Ciphertext is
	// retained.
	Revoke(ctx context.Context, id string, at time.Time) error

	// ClearRevocation undoes Revoke; compensation only.
	ClearRevocation(ctx context.Context, id string) error
}

// AuditLog is the append-only lifecycle event trail.
type AuditLog interface {
	Append(ctx context.Context, rec secretref.AuditRecord) error

	// List returns events for (scope, name), newest first, up to limit
	// (limit <= 0 means all). Empty scope and name list every event.
	List(ctx context.Context, scope secretref.Scope, name string, limit int) ([]secretref.AuditRecord, error)
}
