package incident

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credvault/pkg/secretref"
)

func TestRaiseAndList(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir())

	alarm, err := m.RaiseContinuityAlarm("anthropic", secretref.ScopeIntegration,
		"providers/anthropic_api_key", "rollback append failed: store unavailable")
	require.NoError(t, err)

	assert.NotEmpty(t, alarm.ID)
	assert.Equal(t, "open", alarm.Status)
	assert.Equal(t, "critical", alarm.Severity)

	open, err := m.Open()
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, alarm.ID, open[0].ID)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir())

	alarm, err := m.RaiseContinuityAlarm("github", secretref.ScopeIntegration,
		"providers/github_token", "rollback failed")
	require.NoError(t, err)

	require.NoError(t, m.Resolve(alarm.ID, "manually re-persisted the credential"))

	resolved, err := m.Get(alarm.ID)
	require.NoError(t, err)
	assert.Equal(t, "resolved", resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, "manually re-persisted the credential", resolved.Notes)

	open, err := m.Open()
	require.NoError(t, err)
	assert.Empty(t, open)

	assert.Error(t, m.Resolve(alarm.ID, "again"))
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir())
	_, err := m.Get("CONT-missing")
	assert.Error(t, err)
}

func TestAuditLogLine(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := NewManager(dir)

	alarm, err := m.RaiseContinuityAlarm("stripe", secretref.ScopeIntegration,
		"providers/stripe_api_key", "rollback failed")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "continuity_alarm_raised")
	assert.Contains(t, string(data), alarm.ID)
}

func TestListEmptyDir(t *testing.T) {
	t.Parallel()

	m := NewManager(t.TempDir())
	alarms, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, alarms)
}
