package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cverrors "github.com/systmms/credvault/internal/errors"
	"github.com/systmms/credvault/pkg/secretref"
)

func TestBuiltinAnthropicSpec(t *testing.T) {
	t.Parallel()

	spec, err := Builtin().Get("anthropic")
	require.NoError(t, err)

	assert.Equal(t, secretref.ScopeIntegration, spec.Scope)
	assert.Equal(t, "providers/anthropic_api_key", spec.SecretName)
	assert.Equal(t, `^sk-ant-`, spec.KeyPattern)
}

func TestGetUnknownProvider(t *testing.T) {
	t.Parallel()

	_, err := Builtin().Get("nonexistent")
	assert.True(t, cverrors.IsType(err, cverrors.TypeInvalidProvider))
}

func TestListSorted(t *testing.T) {
	t.Parallel()

	specs := Builtin().List()
	require.NotEmpty(t, specs)
	for i := 1; i < len(specs); i++ {
		assert.Less(t, specs[i-1].Provider, specs[i].Provider)
	}
}

func TestValidatorFromKeyPattern(t *testing.T) {
	t.Parallel()

	c := Builtin()

	v, err := c.Validator("anthropic")
	require.NoError(t, err)
	assert.NotNil(t, v)

	// no key pattern declared
	v, err = c.Validator("slack_signing")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestLoadDirAcceptsValidDefinition(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	def := `kind: Provider
metadata:
  name: pagerduty
spec:
  scope: integration
  secretName: providers/pagerduty_api_key
  keyPattern: "^u\\+"
  description: PagerDuty API key
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pagerduty.yaml"), []byte(def), 0o600))

	c := Builtin()
	require.NoError(t, c.LoadDir(dir))

	spec, err := c.Get("pagerduty")
	require.NoError(t, err)
	assert.Equal(t, "providers/pagerduty_api_key", spec.SecretName)
}

func TestLoadDirRejectsWrongKind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	def := `kind: Service
metadata:
  name: broken
spec:
  scope: integration
  secretName: x
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte(def), 0o600))

	err := Builtin().LoadDir(dir)
	assert.True(t, cverrors.IsType(err, cverrors.TypeInvalidConfig))
}

func TestLoadDirRejectsBadScope(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	def := `kind: Provider
metadata:
  name: badscope
spec:
  scope: galaxy
  secretName: providers/x
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "badscope.yaml"), []byte(def), 0o600))

	err := Builtin().LoadDir(dir)
	assert.True(t, cverrors.IsType(err, cverrors.TypeInvalidConfig))
}

func TestLoadDirIgnoresNonYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not yaml"), 0o600))

	assert.NoError(t, Builtin().LoadDir(dir))
}
