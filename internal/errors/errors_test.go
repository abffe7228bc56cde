package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	t.Parallel()

	err := New(TypeInvalidScope, "use instance, project, or integration", "unknown scope %q", "global")

	assert.Contains(t, err.Error(), "invalid_scope")
	assert.Contains(t, err.Error(), `unknown scope "global"`)
	assert.Contains(t, err.Error(), "Try: use instance, project, or integration")
}

func TestWrapUnwrap(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("disk full")
	err := Wrap(TypeSecretPersistenceFailed, "retry once storage has space", cause, "appending version %d", 3)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestTypeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Type
	}{
		{"typed", New(TypeCredentialMissing, "", "no credential"), TypeCredentialMissing},
		{"wrapped typed", fmt.Errorf("outer: %w", New(TypeEncryptionFailed, "", "cipher")), TypeEncryptionFailed},
		{"untyped", stderrors.New("plain"), Type("")},
		{"nil", nil, Type("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, TypeOf(tt.err))
		})
	}
}

func TestIsMatchesOnType(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("outer: %w", New(TypeCredentialMissing, "persist an initial credential first", "no active version"))

	assert.True(t, stderrors.Is(err, &Error{Type: TypeCredentialMissing}))
	assert.False(t, stderrors.Is(err, &Error{Type: TypeRotationRollbackFailed}))
	assert.True(t, IsType(err, TypeCredentialMissing))
}

func TestMask(t *testing.T) {
	t.Parallel()

	require.Equal(t, "***", Mask("short"))
	require.Equal(t, "***", Mask(""))

	masked := Mask("sk-ant-api-key-value")
	assert.Equal(t, "sk-***lue", masked)
	assert.NotContains(t, masked, "api-key")
}
