// Package registry orchestrates the credential lifecycle: persisting new
// secret versions, rotating provider credentials with pre/post verification
// and automatic rollback, revoking references, and serving read-side
// snapshots.
//
// Every mutation couples a secret ledger write with a lifecycle audit write.
// The two succeed or fail together: when the audit write fails, the
// just-written ledger row is retracted before the failure is reported, so no
// partial state is ever observable.
package registry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/systmms/credvault/internal/catalog"
	"github.com/systmms/credvault/internal/crypto"
	cverrors "github.com/systmms/credvault/internal/errors"
	"github.com/systmms/credvault/internal/incident"
	"github.com/systmms/credvault/internal/logging"
	"github.com/systmms/credvault/internal/store"
	"github.com/systmms/credvault/pkg/rotation"
	"github.com/systmms/credvault/pkg/secretref"
)

// Options configures a Registry. Encryptor, Store, and Audit are required;
// everything else has a usable default.
type Options struct {
	Encryptor crypto.Encryptor
	Store     store.Store
	Audit     store.AuditLog

	// Catalog resolves provider names; defaults to the built-in catalog.
	Catalog *catalog.Catalog

	// Validator is the rotation checkpoint hook. When nil, the provider's
	// key-format validator from the catalog is used instead.
	Validator rotation.Validator

	// Alarms records standing continuity alarms; optional.
	Alarms *incident.Manager

	Logger *logging.Logger

	// Clock and NewID are injectable for tests.
	Clock func() time.Time
	NewID func() string
}

// Registry is the credential lifecycle orchestrator. Safe for concurrent use.
type Registry struct {
	enc       crypto.Encryptor
	store     store.Store
	audit     store.AuditLog
	catalog   *catalog.Catalog
	validator rotation.Validator
	alarms    *incident.Manager
	logger    *logging.Logger
	locks     *keyedLocks
	clock     func() time.Time
	newID     func() string
}

// New validates options and builds a Registry.
func New(opts Options) (*Registry, error) {
	if opts.Encryptor == nil || opts.Store == nil || opts.Audit == nil {
		return nil, cverrors.New(cverrors.TypeInvalidConfig,
			"supply Encryptor, Store, and Audit when constructing the registry",
			"missing required registry dependency")
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.Builtin()
	}
	if opts.Logger == nil {
		opts.Logger = logging.New(false, true)
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	return &Registry{
		enc:       opts.Encryptor,
		store:     opts.Store,
		audit:     opts.Audit,
		catalog:   opts.Catalog,
		validator: opts.Validator,
		alarms:    opts.Alarms,
		logger:    opts.Logger,
		locks:     newKeyedLocks(),
		clock:     opts.Clock,
		newID:     opts.NewID,
	}, nil
}

// PersistRequest carries the inputs of a persist call. Scope and Source are
// raw strings parsed once at this boundary.
type PersistRequest struct {
	Scope     string
	Name      string
	Value     string
	Source    string
	Actor     secretref.Actor
	ExpiresAt *time.Time
}

// Persist stores a new version of a secret and its paired audit record.
// Validation failures return before any I/O. The returned metadata never
// contains ciphertext.
func (r *Registry) Persist(ctx context.Context, req PersistRequest) (*secretref.Metadata, error) {
	scope, name, source, err := r.validatePersist(req)
	if err != nil {
		return nil, err
	}

	unlock := r.locks.acquire(scope, name)
	defer unlock()

	meta, err := r.persistLocked(ctx, scope, name, req.Value, source, req.Actor, req.ExpiresAt)
	outcome := "succeeded"
	if err != nil {
		outcome = "failed"
	}
	recordPersist(string(scope), outcome)
	return meta, err
}

func (r *Registry) validatePersist(req PersistRequest) (secretref.Scope, string, secretref.Source, error) {
	scope, err := secretref.ParseScope(req.Scope)
	if err != nil {
		return "", "", "", cverrors.Wrap(cverrors.TypeInvalidScope,
			"use one of: instance, project, integration", err, "validating scope")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "", "", "", cverrors.New(cverrors.TypeInvalidName,
			"supply a non-empty secret name", "secret name must not be empty")
	}
	if req.Value == "" {
		return "", "", "", cverrors.New(cverrors.TypeInvalidValue,
			"supply a non-empty secret value", "secret value must not be empty")
	}
	source, err := secretref.ParseSource(req.Source)
	if err != nil {
		return "", "", "", cverrors.Wrap(cverrors.TypeInvalidSource,
			"use one of: env, onboarding, rotation", err, "validating source")
	}
	return scope, name, source, nil
}

// persistLocked runs the encrypt-append-audit sequence. The caller must hold
// the pair's lock.
func (r *Registry) persistLocked(ctx context.Context, scope secretref.Scope, name, value string,
	source secretref.Source, actor secretref.Actor, expiresAt *time.Time) (*secretref.Metadata, error) {

	active, err := r.store.GetActive(ctx, scope, name)
	if err != nil {
		return nil, cverrors.Wrap(cverrors.TypeSecretPersistenceFailed,
			"check that the secret store is reachable", err, "resolving active version")
	}

	expectedPrev := 0
	if active != nil {
		expectedPrev = active.KeyVersion
		// Re-persisting an existing secret is a rotation, unless the prior
		// version came from the environment and the caller re-asserts env.
		if !(active.Source == secretref.SourceEnv && source == secretref.SourceEnv) {
			source = secretref.SourceRotation
		}
	}

	ciphertext, err := r.enc.Encrypt([]byte(value))
	if err != nil {
		return nil, err
	}

	ref := &secretref.SecretReference{
		ID:            r.newID(),
		Scope:         scope,
		Name:          name,
		Ciphertext:    ciphertext,
		KeyVersion:    expectedPrev + 1,
		Source:        source,
		LastRotatedAt: r.clock(),
		ExpiresAt:     expiresAt,
	}

	action := secretref.ActionRotate
	if expectedPrev == 0 {
		action = secretref.ActionCreate
	}

	stored, err := r.appendCoupled(ctx, ref, expectedPrev, action, secretref.OutcomeSucceeded, actor)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("persisted %s/%s version %d (source %s)", scope, name, stored.KeyVersion, source)
	meta := secretref.MetadataOf(stored)
	return &meta, nil
}

// appendCoupled writes a ledger row and its audit record as one unit. When
// the audit write fails, the row is retracted before the error is returned,
// leaving the previously active version in place.
func (r *Registry) appendCoupled(ctx context.Context, ref *secretref.SecretReference, expectedPrev int,
	action secretref.Action, outcome secretref.Outcome, actor secretref.Actor) (*secretref.SecretReference, error) {

	stored, err := r.store.Append(ctx, ref, expectedPrev)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, cverrors.Wrap(cverrors.TypeConcurrentRotationConflict,
				"another rotation won the race; re-read the active version and retry", err,
				"appending version %d of %s/%s", ref.KeyVersion, ref.Scope, ref.Name)
		}
		return nil, cverrors.Wrap(cverrors.TypeSecretPersistenceFailed,
			"check that the secret store is reachable", err,
			"appending version %d of %s/%s", ref.KeyVersion, ref.Scope, ref.Name)
	}

	rec := secretref.AuditRecord{
		SecretRefID: stored.ID,
		Scope:       stored.Scope,
		Name:        stored.Name,
		Action:      action,
		Outcome:     outcome,
		ActorID:     actor.ID,
		ActorEmail:  actor.Email,
		OccurredAt:  r.clock(),
	}
	if err := r.audit.Append(ctx, rec); err != nil {
		recordAuditWriteFailure()
		if retractErr := r.store.Retract(ctx, stored.ID); retractErr != nil {
			r.logger.Error("failed to retract %s/%s version %d after audit failure: %v",
				stored.Scope, stored.Name, stored.KeyVersion, retractErr)
		}
		return nil, cverrors.Wrap(cverrors.TypeSecretAuditPersistenceFailed,
			"check that the audit log is reachable; the secret mutation was rolled back", err,
			"recording %s audit for %s/%s", action, stored.Scope, stored.Name)
	}

	return stored, nil
}

// ProviderCredentialContext returns a point-in-time snapshot of a provider's
// active credential, including ciphertext for in-process decryption. Reads
// are not lifecycle events; no audit entry is written.
func (r *Registry) ProviderCredentialContext(ctx context.Context, provider string) (*secretref.CredentialContext, error) {
	spec, err := r.catalog.Get(provider)
	if err != nil {
		return nil, err
	}

	active, err := r.store.GetActive(ctx, spec.Scope, spec.SecretName)
	if err != nil {
		return nil, cverrors.Wrap(cverrors.TypeSecretPersistenceFailed,
			"check that the secret store is reachable", err, "resolving active version")
	}
	if active == nil {
		return nil, cverrors.New(cverrors.TypeCredentialMissing,
			"persist an initial credential for "+provider+" before resolving it",
			"no active credential for provider %q (%s/%s)", provider, spec.Scope, spec.SecretName)
	}
	if active.Revoked() {
		return nil, cverrors.New(cverrors.TypeSecretRevoked,
			"persist a replacement credential for "+provider,
			"active credential for provider %q has been revoked", provider)
	}

	snapshot := active.Clone()
	return &secretref.CredentialContext{
		Provider:      provider,
		ID:            snapshot.ID,
		Scope:         snapshot.Scope,
		Name:          snapshot.Name,
		KeyVersion:    snapshot.KeyVersion,
		Source:        snapshot.Source,
		LastRotatedAt: snapshot.LastRotatedAt,
		Ciphertext:    snapshot.Ciphertext,
	}, nil
}

// ListSecretMetadata returns the active-version metadata of every
// (scope, name) pair. Ciphertext is never included on this path.
func (r *Registry) ListSecretMetadata(ctx context.Context) ([]secretref.Metadata, error) {
	refs, err := r.store.ListActiveAll(ctx)
	if err != nil {
		return nil, cverrors.Wrap(cverrors.TypeSecretPersistenceFailed,
			"check that the secret store is reachable", err, "listing active versions")
	}

	out := make([]secretref.Metadata, 0, len(refs))
	for _, ref := range refs {
		out = append(out, secretref.MetadataOf(ref))
	}
	return out, nil
}

// Revoke marks a secret reference withdrawn from active use and records the
// revoke audit event, with the same coupling contract as a persist: if the
// audit write fails, the revocation is cleared again. Revoking an already
// revoked reference is a no-op.
func (r *Registry) Revoke(ctx context.Context, secretRefID string, actor secretref.Actor) error {
	ref, err := r.store.Get(ctx, secretRefID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return cverrors.New(cverrors.TypeSecretNotFound,
				"check the secret reference id", "no secret reference %q", secretRefID)
		}
		return cverrors.Wrap(cverrors.TypeSecretPersistenceFailed,
			"check that the secret store is reachable", err, "loading secret reference")
	}

	unlock := r.locks.acquire(ref.Scope, ref.Name)
	defer unlock()

	// Re-read under the lock; another caller may have revoked meanwhile.
	ref, err = r.store.Get(ctx, secretRefID)
	if err != nil {
		return cverrors.Wrap(cverrors.TypeSecretPersistenceFailed,
			"check that the secret store is reachable", err, "loading secret reference")
	}
	if ref.Revoked() {
		return nil
	}

	if err := r.store.Revoke(ctx, secretRefID, r.clock()); err != nil {
		return cverrors.Wrap(cverrors.TypeSecretPersistenceFailed,
			"check that the secret store is reachable", err, "revoking secret reference")
	}

	rec := secretref.AuditRecord{
		SecretRefID: ref.ID,
		Scope:       ref.Scope,
		Name:        ref.Name,
		Action:      secretref.ActionRevoke,
		Outcome:     secretref.OutcomeSucceeded,
		ActorID:     actor.ID,
		ActorEmail:  actor.Email,
		OccurredAt:  r.clock(),
	}
	if err := r.audit.Append(ctx, rec); err != nil {
		recordAuditWriteFailure()
		if clearErr := r.store.ClearRevocation(ctx, secretRefID); clearErr != nil {
			r.logger.Error("failed to clear revocation of %s after audit failure: %v", secretRefID, clearErr)
		}
		return cverrors.Wrap(cverrors.TypeSecretAuditPersistenceFailed,
			"check that the audit log is reachable; the revocation was rolled back", err,
			"recording revoke audit for %s/%s", ref.Scope, ref.Name)
	}

	r.logger.Info("revoked %s/%s version %d", ref.Scope, ref.Name, ref.KeyVersion)
	return nil
}

// AuditTrail returns lifecycle events, newest first. Empty scope and name
// return the full trail.
func (r *Registry) AuditTrail(ctx context.Context, scope secretref.Scope, name string, limit int) ([]secretref.AuditRecord, error) {
	recs, err := r.audit.List(ctx, scope, name, limit)
	if err != nil {
		return nil, cverrors.Wrap(cverrors.TypeSecretPersistenceFailed,
			"check that the audit log is reachable", err, "listing audit records")
	}
	return recs, nil
}
