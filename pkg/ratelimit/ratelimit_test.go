package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowAllow(t *testing.T) {
	sw := NewSlidingWindow(3, time.Minute)

	assert.True(t, sw.Allow())
	assert.True(t, sw.Allow())
	assert.True(t, sw.Allow())
	assert.False(t, sw.Allow(), "fourth event in the window must be rejected")
	assert.Equal(t, 0, sw.GetRemaining())
}

func TestSlidingWindowRecovers(t *testing.T) {
	sw := NewSlidingWindow(2, 50*time.Millisecond)

	require.True(t, sw.Allow())
	require.True(t, sw.Allow())
	require.False(t, sw.Allow())

	time.Sleep(60 * time.Millisecond)

	assert.True(t, sw.Allow(), "window slid past old events")
	assert.Equal(t, 1, sw.GetRemaining())
}

func TestSlidingWindowWait(t *testing.T) {
	sw := NewSlidingWindow(1, 30*time.Millisecond)
	require.True(t, sw.Allow())

	start := time.Now()
	require.NoError(t, sw.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSlidingWindowWaitHonorsContext(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	require.True(t, sw.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sw.Wait(ctx), context.DeadlineExceeded)
}
