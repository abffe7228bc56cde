package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cverrors "github.com/systmms/credvault/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	def, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1, def.Version)
	assert.Equal(t, "memory", def.Store.Dialect)
	assert.NotEmpty(t, def.Alarms.Dir)
}

func TestLoadFullDefinition(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version: 1
store:
  dialect: postgres
  dsn: postgres://localhost/credvault?sslmode=disable
encryption:
  keyEnv: CREDVAULT_KEY
  keyringService: credvault
catalog:
  dir: ./providers
alarms:
  dir: /var/lib/credvault
metrics:
  listen: ":9465"
`)

	def, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", def.Store.Dialect)
	assert.Equal(t, "postgres://localhost/credvault?sslmode=disable", def.Store.DSN)
	assert.Equal(t, "CREDVAULT_KEY", def.Encryption.KeyEnv)
	assert.Equal(t, "credvault", def.Encryption.KeyringService)
	assert.Equal(t, "./providers", def.Catalog.Dir)
	assert.Equal(t, "/var/lib/credvault", def.Alarms.Dir)
	assert.Equal(t, ":9465", def.Metrics.Listen)
}

func TestLoadDefaultsApplied(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
store:
  dialect: sqlite
  dsn: file:credvault.db
`)

	def, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, def.Version)
	assert.NotEmpty(t, def.Alarms.Dir)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "store: [unclosed")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, cverrors.IsType(err, cverrors.TypeInvalidConfig))
}

func TestLoadRejectsUnknownDialect(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
store:
  dialect: mongodb
  dsn: mongodb://localhost
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, cverrors.IsType(err, cverrors.TypeInvalidConfig))
	assert.Contains(t, err.Error(), "mongodb")
}

func TestLoadRejectsMissingDSN(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
store:
  dialect: mysql
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, cverrors.IsType(err, cverrors.TypeInvalidConfig))
	assert.Contains(t, err.Error(), "dsn")
}

func TestLoadRejectsWrongVersion(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version: 3
store:
  dialect: memory
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, cverrors.IsType(err, cverrors.TypeInvalidConfig))
}
