package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterPerUserBuckets(t *testing.T) {
	rl, err := newRateLimiter(2, time.Minute)
	require.NoError(t, err)
	defer rl.Close()

	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u2"))
}

func TestRateLimiterDisabled(t *testing.T) {
	rl, err := newRateLimiter(0, time.Minute)
	require.NoError(t, err)
	defer rl.Close()

	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("u1"))
	}
}

func TestRateLimiterEvictsIdleCallers(t *testing.T) {
	rl, err := newRateLimiter(1, 50*time.Millisecond)
	require.NoError(t, err)
	defer rl.Close()

	require.True(t, rl.Allow("u1"))
	require.False(t, rl.Allow("u1"))

	time.Sleep(100 * time.Millisecond)
	_, ok := rl.limiters.Get("u1")
	assert.False(t, ok)
}

func TestRateLimiterKeepsActiveCallers(t *testing.T) {
	rl, err := newRateLimiter(1, 300*time.Millisecond)
	require.NoError(t, err)
	defer rl.Close()

	require.True(t, rl.Allow("u1"))
	time.Sleep(180 * time.Millisecond)
	require.False(t, rl.Allow("u1"))
	time.Sleep(180 * time.Millisecond)
	assert.False(t, rl.Allow("u1"))
}
