package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cverrors "github.com/systmms/credvault/internal/errors"
)

func TestRotateUnknownProvider(t *testing.T) {
	t.Setenv("CREDVAULT_KEY", testKeyHex)

	cfg, _ := testConfig(t)

	cmd := NewRotateCommand(cfg)
	cmd.SetArgs([]string{"no-such-provider"})
	cmd.SetIn(strings.NewReader("new-value"))
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, cverrors.IsType(err, cverrors.TypeInvalidProvider))
}

func TestRotateMissingCredential(t *testing.T) {
	t.Setenv("CREDVAULT_KEY", testKeyHex)

	cfg, _ := testConfig(t)

	cmd := NewRotateCommand(cfg)
	cmd.SetArgs([]string{"anthropic"})
	cmd.SetIn(strings.NewReader("sk-ant-new-value"))
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, cverrors.IsType(err, cverrors.TypeCredentialMissing))
}

func TestRotateRejectsEmptyValue(t *testing.T) {
	t.Setenv("CREDVAULT_KEY", testKeyHex)

	cfg, _ := testConfig(t)

	cmd := NewRotateCommand(cfg)
	cmd.SetArgs([]string{"anthropic"})
	cmd.SetIn(strings.NewReader(""))
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, cverrors.IsType(err, cverrors.TypeInvalidValue))
}

func TestGetMissingCredential(t *testing.T) {
	t.Setenv("CREDVAULT_KEY", testKeyHex)

	cfg, _ := testConfig(t)

	cmd := NewGetCommand(cfg)
	cmd.SetArgs([]string{"anthropic"})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, cverrors.IsType(err, cverrors.TypeCredentialMissing))
}

func TestProvidersListsBuiltins(t *testing.T) {
	t.Parallel()

	cfg, _ := testConfig(t)

	var out bytes.Buffer
	cmd := NewProvidersCommand(cfg)
	cmd.SetOut(&out)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "anthropic")
	assert.Contains(t, out.String(), "github")
	assert.Contains(t, out.String(), "providers/anthropic_api_key")
}

func TestAlarmsListEmpty(t *testing.T) {
	t.Parallel()

	cfg, logBuf := testConfig(t)

	cmd := NewAlarmsCommand(cfg)
	cmd.SetArgs([]string{"list"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, logBuf.String(), "No alarms")
}

func TestAlarmsResolveUnknownID(t *testing.T) {
	t.Parallel()

	cfg, _ := testConfig(t)

	cmd := NewAlarmsCommand(cfg)
	cmd.SetArgs([]string{"resolve", "CONT-unknown"})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
}
