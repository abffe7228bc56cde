package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewServerAppliesDefaults(t *testing.T) {
	t.Parallel()

	s := NewServer(ServerConfig{})
	assert.Equal(t, ":9465", s.Addr())

	s = NewServer(ServerConfig{Addr: ":9100"})
	assert.Equal(t, ":9100", s.Addr())
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()

	s := NewServer(ServerConfig{})
	assert.NoError(t, s.Stop(t.Context()))
}
