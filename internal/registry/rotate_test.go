package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cverrors "github.com/systmms/credvault/internal/errors"
	"github.com/systmms/credvault/internal/incident"
	"github.com/systmms/credvault/internal/store"
	"github.com/systmms/credvault/pkg/rotation"
	"github.com/systmms/credvault/pkg/secretref"
)

func passValidator() rotation.Validator {
	return rotation.Func(func(context.Context, rotation.Context) (rotation.Detail, error) {
		return "ok", nil
	})
}

func stageFailValidator(stage rotation.Stage, err error) rotation.Validator {
	return rotation.Func(func(_ context.Context, vc rotation.Context) (rotation.Detail, error) {
		if vc.Stage == stage {
			return "", err
		}
		return "ok", nil
	})
}

func seedAnthropic(t *testing.T, env *testEnv) *secretref.Metadata {
	t.Helper()
	meta, err := env.registry.Persist(context.Background(),
		persistReq("integration", "providers/anthropic_api_key", "sk-ant-initial", "onboarding"))
	require.NoError(t, err)
	require.Equal(t, 1, meta.KeyVersion)
	return meta
}

func TestRotateUnknownProvider(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	_, err := env.registry.RotateProviderCredential(context.Background(), "nonexistent", "value", testActor)
	assert.True(t, cverrors.IsType(err, cverrors.TypeInvalidProvider))
}

func TestRotateEmptyValue(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	_, err := env.registry.RotateProviderCredential(context.Background(), "anthropic", "", testActor)
	assert.True(t, cverrors.IsType(err, cverrors.TypeInvalidValue))
}

func TestRotateRequiresExistingCredential(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	_, err := env.registry.RotateProviderCredential(context.Background(), "anthropic", "sk-ant-new", testActor)
	assert.True(t, cverrors.IsType(err, cverrors.TypeCredentialMissing))
}

func TestRotateSuccess(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(o *Options) { o.Validator = passValidator() })
	ctx := context.Background()
	seedAnthropic(t, env)

	firstCtx, err := env.registry.ProviderCredentialContext(ctx, "anthropic")
	require.NoError(t, err)

	report, err := env.registry.RotateProviderCredential(ctx, "anthropic", "sk-ant-rotated", testActor)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", report.Provider)
	assert.Equal(t, 1, report.Before.KeyVersion)
	assert.Equal(t, 2, report.After.KeyVersion)
	assert.False(t, report.RollbackPerformed)
	assert.False(t, report.ContinuityAlarm)
	assert.False(t, report.ReferencesSwitchedAt.IsZero())

	after, err := env.registry.ProviderCredentialContext(ctx, "anthropic")
	require.NoError(t, err)
	assert.Equal(t, 2, after.KeyVersion)
	assert.NotEqual(t, firstCtx.Ciphertext, after.Ciphertext)

	decrypted, err := env.enc.Decrypt(after.Ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-rotated", string(decrypted))
}

func TestRotatePrecheckFailureMutatesNothing(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(o *Options) {
		o.Validator = stageFailValidator(rotation.StageBefore, errors.New("current key rejected by provider"))
	})
	ctx := context.Background()
	seedAnthropic(t, env)

	_, err := env.registry.RotateProviderCredential(ctx, "anthropic", "sk-ant-new", testActor)
	assert.True(t, cverrors.IsType(err, cverrors.TypeRotationPrecheckFailed))

	active, err := env.mem.GetActive(ctx, secretref.ScopeIntegration, "providers/anthropic_api_key")
	require.NoError(t, err)
	assert.Equal(t, 1, active.KeyVersion)

	records, err := env.mem.Audit().List(ctx, "", "", 0)
	require.NoError(t, err)
	assert.Len(t, records, 1) // just the initial create
}

func TestRotateAfterFailureRollsBackContent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(o *Options) {
		o.Validator = stageFailValidator(rotation.StageAfter, errors.New("liveness probe failed"))
	})
	ctx := context.Background()
	seedAnthropic(t, env)

	before, err := env.registry.ProviderCredentialContext(ctx, "anthropic")
	require.NoError(t, err)

	report, err := env.registry.RotateProviderCredential(ctx, "anthropic", "sk-ant-bad", testActor)
	assert.True(t, cverrors.IsType(err, cverrors.TypeRotationValidationFailed))
	require.NotNil(t, report)
	assert.True(t, report.RollbackPerformed)
	assert.False(t, report.ContinuityAlarm)

	// version advanced by two, content restored
	after, err := env.registry.ProviderCredentialContext(ctx, "anthropic")
	require.NoError(t, err)
	assert.Equal(t, before.KeyVersion+2, after.KeyVersion)

	decrypted, err := env.enc.Decrypt(after.Ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-initial", string(decrypted))

	// the rollback is a forward ledger entry with its own audit row
	records, err := env.mem.Audit().List(ctx, "", "", 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, secretref.ActionRotate, records[0].Action)
	assert.Equal(t, secretref.OutcomeFailed, records[0].Outcome)
}

func TestRotateRollbackFailureRaisesContinuityAlarm(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	// appends: 1 = seed persist, 2 = candidate, 3 = rollback (fails)
	scripted := &scriptedStore{Store: mem, failAppendAt: 3, appendErr: errors.New("store unavailable")}
	alarms := incident.NewManager(t.TempDir())

	reg, err := New(Options{
		Encryptor: testEncryptor(t),
		Store:     scripted,
		Audit:     mem.Audit(),
		Validator: stageFailValidator(rotation.StageAfter, errors.New("liveness probe failed")),
		Alarms:    alarms,
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = reg.Persist(ctx, persistReq("integration", "providers/anthropic_api_key", "sk-ant-initial", "onboarding"))
	require.NoError(t, err)

	report, err := reg.RotateProviderCredential(ctx, "anthropic", "sk-ant-bad", testActor)
	assert.True(t, cverrors.IsType(err, cverrors.TypeRotationRollbackFailed))
	require.NotNil(t, report)
	assert.False(t, report.RollbackPerformed)
	assert.True(t, report.ContinuityAlarm)

	open, err := alarms.Open()
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "anthropic", open[0].Provider)
	assert.Equal(t, "critical", open[0].Severity)
}

func TestRotateAuditFailureOnCandidateNeedsNoRollback(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(o *Options) { o.Validator = passValidator() })
	ctx := context.Background()
	seedAnthropic(t, env)

	before, err := env.mem.GetActive(ctx, secretref.ScopeIntegration, "providers/anthropic_api_key")
	require.NoError(t, err)

	env.audit.fail = true
	_, err = env.registry.RotateProviderCredential(ctx, "anthropic", "sk-ant-new", testActor)
	assert.True(t, cverrors.IsType(err, cverrors.TypeSecretAuditPersistenceFailed))

	after, err := env.mem.GetActive(ctx, secretref.ScopeIntegration, "providers/anthropic_api_key")
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.KeyVersion, after.KeyVersion)
	assert.Equal(t, before.Ciphertext, after.Ciphertext)
}

func TestValidatorPanicIsConverted(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(o *Options) {
		o.Validator = rotation.Func(func(_ context.Context, vc rotation.Context) (rotation.Detail, error) {
			if vc.Stage == rotation.StageAfter {
				panic("validator bug")
			}
			return "ok", nil
		})
	})
	ctx := context.Background()
	seedAnthropic(t, env)

	report, err := env.registry.RotateProviderCredential(ctx, "anthropic", "sk-ant-new", testActor)
	// the panic fails the after-checkpoint, which triggers a rollback
	assert.True(t, cverrors.IsType(err, cverrors.TypeRotationValidationFailed))
	require.NotNil(t, report)
	assert.True(t, report.RollbackPerformed)
	assert.Contains(t, errors.Unwrap(err).Error(), "validator_exception")
}

func TestValidatorPanicAtPrecheck(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(o *Options) {
		o.Validator = rotation.Func(func(_ context.Context, vc rotation.Context) (rotation.Detail, error) {
			panic("validator bug")
		})
	})
	ctx := context.Background()
	seedAnthropic(t, env)

	_, err := env.registry.RotateProviderCredential(ctx, "anthropic", "sk-ant-new", testActor)
	assert.True(t, cverrors.IsType(err, cverrors.TypeValidatorException))

	active, err := env.mem.GetActive(ctx, secretref.ScopeIntegration, "providers/anthropic_api_key")
	require.NoError(t, err)
	assert.Equal(t, 1, active.KeyVersion)
}

func TestValidatorLeakingPlaintextIsRejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(o *Options) {
		o.Validator = rotation.Func(func(_ context.Context, vc rotation.Context) (rotation.Detail, error) {
			if vc.Stage == rotation.StageAfter {
				return rotation.Detail(fmt.Sprintf("verified value %s", *vc.Value)), nil
			}
			return "ok", nil
		})
	})
	ctx := context.Background()
	seedAnthropic(t, env)

	report, err := env.registry.RotateProviderCredential(ctx, "anthropic", "sk-ant-leaky", testActor)
	assert.True(t, cverrors.IsType(err, cverrors.TypeRotationValidationFailed))
	require.NotNil(t, report)
	assert.True(t, report.RollbackPerformed)
	assert.NotContains(t, report.After.Verification, "sk-ant-leaky")
	assert.NotContains(t, err.Error(), "sk-ant-leaky")
}

func TestRotateFallsBackToCatalogFormatValidator(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil) // no injected validator
	ctx := context.Background()
	seedAnthropic(t, env)

	// a key that violates the anthropic format convention is rolled back
	report, err := env.registry.RotateProviderCredential(ctx, "anthropic", "ghp_wrong_kind_of_key", testActor)
	assert.True(t, cverrors.IsType(err, cverrors.TypeRotationValidationFailed))
	require.NotNil(t, report)
	assert.True(t, report.RollbackPerformed)

	// a conforming key passes
	report, err = env.registry.RotateProviderCredential(ctx, "anthropic", "sk-ant-conforming", testActor)
	require.NoError(t, err)
	assert.False(t, report.RollbackPerformed)
}

func TestContextSnapshotSurvivesRotation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(o *Options) { o.Validator = passValidator() })
	ctx := context.Background()
	seedAnthropic(t, env)

	snapshot, err := env.registry.ProviderCredentialContext(ctx, "anthropic")
	require.NoError(t, err)
	snapshotCiphertext := append([]byte(nil), snapshot.Ciphertext...)

	_, err = env.registry.RotateProviderCredential(ctx, "anthropic", "sk-ant-rotated", testActor)
	require.NoError(t, err)

	// the captured context still references the version active at capture time
	assert.Equal(t, 1, snapshot.KeyVersion)
	assert.Equal(t, snapshotCiphertext, snapshot.Ciphertext)

	decrypted, err := env.enc.Decrypt(snapshot.Ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-initial", string(decrypted))
}
