package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectionLimiterEnforcesPerIPBurst(t *testing.T) {
	l := newConnectionLimiter(connectionLimiterConfig{
		IPBurst:     2,
		IPRate:      0.0001,
		GlobalBurst: 100,
		GlobalRate:  1000,
	}, nil)
	defer l.stop()

	require.True(t, l.allow("10.0.0.1"))
	require.True(t, l.allow("10.0.0.1"))
	require.False(t, l.allow("10.0.0.1"))
}

func TestConnectionLimiterTracksIPsIndependently(t *testing.T) {
	l := newConnectionLimiter(connectionLimiterConfig{
		IPBurst:     1,
		IPRate:      0.0001,
		GlobalBurst: 100,
		GlobalRate:  1000,
	}, nil)
	defer l.stop()

	require.True(t, l.allow("10.0.0.1"))
	require.False(t, l.allow("10.0.0.1"))
	require.True(t, l.allow("10.0.0.2"))
}

func TestConnectionLimiterEnforcesGlobalBurst(t *testing.T) {
	l := newConnectionLimiter(connectionLimiterConfig{
		IPBurst:     1000,
		IPRate:      1000,
		GlobalBurst: 2,
		GlobalRate:  0.0001,
	}, nil)
	defer l.stop()

	require.True(t, l.allow("10.0.0.1"))
	require.True(t, l.allow("10.0.0.2"))
	require.False(t, l.allow("10.0.0.3"))
}
