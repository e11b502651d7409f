package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(rl *RateLimiter, t time.Time) *time.Time {
	now := t
	rl.now = func() time.Time { return now }
	return &now
}

func TestRateLimiter_Burst(t *testing.T) {
	rl := NewRateLimiter(60, 2, 0)
	now := fixedClock(rl, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, rl.CheckRateLimit("a", 0))
	require.NoError(t, rl.CheckRateLimit("a", 0))

	err := rl.CheckRateLimit("a", 0)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, time.Second, rle.RetryAfter)

	assert.NoError(t, rl.CheckRateLimit("b", 0), "clients are independent")

	*now = now.Add(time.Second)
	assert.NoError(t, rl.CheckRateLimit("a", 0), "one token per second refills")
}

func TestRateLimiter_DataQuota(t *testing.T) {
	rl := NewRateLimiter(0, 0, 100)
	now := fixedClock(rl, time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC))

	require.NoError(t, rl.CheckRateLimit("a", 60))
	err := rl.CheckRateLimit("a", 60)
	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, int64(60), qe.Used)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), qe.Resets)
	assert.Equal(t, int64(60), rl.DataUsed("a"), "rejected uploads are not counted")

	*now = now.Add(2 * time.Hour)
	require.NoError(t, rl.CheckRateLimit("a", 60))
	assert.Equal(t, int64(60), rl.DataUsed("a"))
}

func TestRateLimiter_DefaultBurst(t *testing.T) {
	rl := NewRateLimiter(3, 0, 0)
	fixedClock(rl, time.Now())
	for range 3 {
		require.NoError(t, rl.CheckRateLimit("a", 0))
	}
	assert.Error(t, rl.CheckRateLimit("a", 0))
}
