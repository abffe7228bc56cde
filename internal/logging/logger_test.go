package logging

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)

	logger.Info("stored %s", "providers/anthropic_api_key")
	logger.Warn("expiry in %d days", 3)
	logger.Error("rotation failed")

	out := buf.String()
	assert.Contains(t, out, "✓ stored providers/anthropic_api_key")
	assert.Contains(t, out, "⚠ expiry in 3 days")
	assert.Contains(t, out, "✗ rotation failed")
}

func TestDebugSuppressedByDefault(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)
	logger.Debug("internal detail")
	assert.Empty(t, buf.String())

	debugLogger := NewWithWriter(&buf, true, true)
	debugLogger.Debug("internal detail")
	assert.Contains(t, buf.String(), "[DEBUG] internal detail")
}

func TestSecretAlwaysRedacted(t *testing.T) {
	t.Parallel()

	s := Secret("sk-ant-live-key")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", s))
	assert.NotContains(t, fmt.Sprintf("%s %v %#v", s, s, s), "sk-ant")
}

func TestRedact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		secrets []string
		want    string
	}{
		{"single match", "key is sk-ant-abc", []string{"sk-ant-abc"}, "key is [REDACTED]"},
		{"multiple", "a=secret1 b=secret2", []string{"secret1", "secret2"}, "a=[REDACTED] b=[REDACTED]"},
		{"short values untouched", "x=abc", []string{"abc"}, "x=abc"},
		{"no match", "nothing here", []string{"sk-ant-abc"}, "nothing here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Redact(tt.input, tt.secrets))
		})
	}
}
