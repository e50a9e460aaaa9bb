package httpx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoginLimiter_BurstThenRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewLoginLimiter(1, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, l.Allow("10.0.0.2"), "limits are per ip")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
}

func TestLoginLimiter_Defaults(t *testing.T) {
	l := NewLoginLimiter(0, 0)
	assert.Equal(t, defaultLoginRate, l.limit)
	assert.Equal(t, defaultLoginBurst, l.burst)
}

func TestLoginLimiter_NilAllows(t *testing.T) {
	var l *LoginLimiter
	assert.True(t, l.Allow("10.0.0.1"))
}

func TestLoginLimiter_SweepsIdleEntries(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewLoginLimiter(1, 1)
	l.now = func() time.Time { return now }

	l.Allow("10.0.0.9")
	now = now.Add(limiterIdleTTL + time.Minute)
	for range limiterSweepEvery {
		l.Allow("10.0.0.1")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.byIP, "10.0.0.9")
	assert.Contains(t, l.byIP, "10.0.0.1")
}
