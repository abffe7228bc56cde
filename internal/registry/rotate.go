package registry

import (
	"context"
	"strings"

	cverrors "github.com/systmms/credvault/internal/errors"
	"github.com/systmms/credvault/pkg/rotation"
	"github.com/systmms/credvault/pkg/secretref"
)

// RotateProviderCredential runs the two-checkpoint rotation protocol:
//
//  1. resolve the provider's credential and require an active version
//  2. before-checkpoint: verify the current credential is still usable
//  3. append the new version with its audit record as one unit
//  4. after-checkpoint: verify the candidate; on failure, roll back by
//     appending a corrective version that restores the prior content
//
// The report is non-nil whenever the candidate version was written, so a
// caller receiving provider_rotation_validation_failed or
// provider_rotation_rollback_failed can still inspect what happened.
func (r *Registry) RotateProviderCredential(ctx context.Context, provider, newValue string, actor secretref.Actor) (*secretref.RotationReport, error) {
	spec, err := r.catalog.Get(provider)
	if err != nil {
		return nil, err
	}
	if newValue == "" {
		return nil, cverrors.New(cverrors.TypeInvalidValue,
			"supply a non-empty replacement value", "replacement value must not be empty")
	}

	validator, err := r.resolveValidator(provider)
	if err != nil {
		return nil, err
	}

	unlock := r.locks.acquire(spec.Scope, spec.SecretName)
	defer unlock()

	report, err := r.rotateLocked(ctx, provider, spec.Scope, spec.SecretName, newValue, validator, actor)

	outcome := "succeeded"
	if err != nil {
		outcome = string(cverrors.TypeOf(err))
	}
	recordRotation(provider, outcome)
	return report, err
}

// resolveValidator prefers the injected validator, falling back to the
// provider's key-format convention from the catalog.
func (r *Registry) resolveValidator(provider string) (rotation.Validator, error) {
	if r.validator != nil {
		return r.validator, nil
	}
	return r.catalog.Validator(provider)
}

func (r *Registry) rotateLocked(ctx context.Context, provider string, scope secretref.Scope, name, newValue string,
	validator rotation.Validator, actor secretref.Actor) (*secretref.RotationReport, error) {

	active, err := r.store.GetActive(ctx, scope, name)
	if err != nil {
		return nil, cverrors.Wrap(cverrors.TypeSecretPersistenceFailed,
			"check that the secret store is reachable", err, "resolving active version")
	}
	if active == nil {
		// Rotation replaces an existing credential; it is not a way to
		// create the first one.
		return nil, cverrors.New(cverrors.TypeCredentialMissing,
			"persist an initial credential for "+provider+" before rotating it",
			"no active credential for provider %q (%s/%s)", provider, scope, name)
	}

	// Before-checkpoint: no plaintext is exposed; this only sanity-checks
	// that the active credential is still usable for in-flight consumers.
	beforeDetail, err := r.runValidator(ctx, validator, rotation.Context{
		Provider:        provider,
		Stage:           rotation.StageBefore,
		Scope:           scope,
		Name:            name,
		PreviousVersion: active.KeyVersion,
	}, "")
	if err != nil {
		if cverrors.TypeOf(err) == "" {
			err = cverrors.Wrap(cverrors.TypeRotationPrecheckFailed,
				"resolve the reported issue with the current credential and retry", err,
				"before-checkpoint rejected rotation of %q", provider)
		}
		return nil, err
	}

	ciphertext, err := r.enc.Encrypt([]byte(newValue))
	if err != nil {
		return nil, err
	}

	candidate := &secretref.SecretReference{
		ID:            r.newID(),
		Scope:         scope,
		Name:          name,
		Ciphertext:    ciphertext,
		KeyVersion:    active.KeyVersion + 1,
		Source:        secretref.SourceRotation,
		LastRotatedAt: r.clock(),
		ExpiresAt:     active.ExpiresAt,
	}

	stored, err := r.appendCoupled(ctx, candidate, active.KeyVersion, secretref.ActionRotate, secretref.OutcomeSucceeded, actor)
	if err != nil {
		// Nothing new was switched in; no rollback needed.
		return nil, err
	}

	report := &secretref.RotationReport{
		Provider:             provider,
		Scope:                scope,
		Name:                 name,
		Before:               secretref.Verification{KeyVersion: active.KeyVersion, Verification: string(beforeDetail)},
		After:                secretref.Verification{KeyVersion: stored.KeyVersion},
		ReferencesSwitchedAt: stored.LastRotatedAt,
	}

	// After-checkpoint: the plaintext is available for format and liveness
	// checks against the provider's conventions.
	afterDetail, err := r.runValidator(ctx, validator, rotation.Context{
		Provider:         provider,
		Stage:            rotation.StageAfter,
		Scope:            scope,
		Name:             name,
		CandidateVersion: stored.KeyVersion,
		PreviousVersion:  active.KeyVersion,
		Value:            &newValue,
	}, newValue)
	if err == nil {
		report.After.Verification = string(afterDetail)
		r.logger.Info("rotated %q: version %d -> %d", provider, active.KeyVersion, stored.KeyVersion)
		return report, nil
	}

	return r.rollback(ctx, provider, active, stored, report, err, actor)
}

// rollback appends a corrective version restoring the pre-rotation content.
// The version number keeps advancing; history is never rewritten.
func (r *Registry) rollback(ctx context.Context, provider string, prior, failed *secretref.SecretReference,
	report *secretref.RotationReport, validationErr error, actor secretref.Actor) (*secretref.RotationReport, error) {

	report.After.Verification = validationErr.Error()

	corrective := &secretref.SecretReference{
		ID:            r.newID(),
		Scope:         prior.Scope,
		Name:          prior.Name,
		Ciphertext:    append([]byte(nil), prior.Ciphertext...),
		KeyVersion:    failed.KeyVersion + 1,
		Source:        prior.Source,
		LastRotatedAt: r.clock(),
		ExpiresAt:     prior.ExpiresAt,
	}

	_, err := r.appendCoupled(ctx, corrective, failed.KeyVersion, secretref.ActionRotate, secretref.OutcomeFailed, actor)
	if err != nil {
		// The most severe outcome: the candidate failed verification and
		// could not be rolled back, so the active credential is uncertain.
		report.RollbackPerformed = false
		report.ContinuityAlarm = true
		recordRollback(provider, "failed")
		setContinuityAlarm(provider)
		r.logger.Error("rollback of %q failed; active credential version is uncertain", provider)

		if r.alarms != nil {
			if _, alarmErr := r.alarms.RaiseContinuityAlarm(provider, prior.Scope, prior.Name, validationErr.Error()); alarmErr != nil {
				r.logger.Error("failed to record continuity alarm for %q: %v", provider, alarmErr)
			}
		}

		return report, cverrors.Wrap(cverrors.TypeRotationRollbackFailed,
			"manual containment required: verify which credential version is live and re-persist it", err,
			"rolling back failed rotation of %q", provider)
	}

	report.RollbackPerformed = true
	recordRollback(provider, "succeeded")
	r.logger.Warn("rotation of %q failed verification; rolled back to prior content", provider)

	return report, cverrors.Wrap(cverrors.TypeRotationValidationFailed,
		"the prior credential was restored; fix the new value and rotate again", validationErr,
		"after-checkpoint rejected rotation of %q", provider)
}

// runValidator invokes the pluggable validator behind a panic-converting
// boundary. A nil validator passes trivially. The candidate plaintext must
// never leak into the returned detail.
func (r *Registry) runValidator(ctx context.Context, v rotation.Validator, vc rotation.Context, plaintext string) (detail rotation.Detail, err error) {
	if v == nil {
		return "", nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			detail = ""
			err = cverrors.New(cverrors.TypeValidatorException,
				"fix the rotation validator implementation",
				"validator panicked at %s stage: %v", vc.Stage, rec)
		}
	}()

	detail, err = v.Validate(ctx, vc)
	if err != nil {
		if plaintext != "" && strings.Contains(err.Error(), plaintext) {
			return "", cverrors.New(cverrors.TypeInvalidValidatorResult,
				"validator errors must not contain secret material",
				"validator returned an error containing the candidate value at %s stage", vc.Stage)
		}
		return "", err
	}
	if plaintext != "" && strings.Contains(string(detail), plaintext) {
		return "", cverrors.New(cverrors.TypeInvalidValidatorResult,
			"validator details must not contain secret material",
			"validator returned a detail containing the candidate value at %s stage", vc.Stage)
	}
	return detail, nil
}
