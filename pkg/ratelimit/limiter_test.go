package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindow(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	sw := NewSlidingWindow(3, time.Second)
	sw.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		assert.True(t, sw.Allow(), "request %d", i+1)
	}
	assert.False(t, sw.Allow(), "window is full")

	clock = clock.Add(time.Second)
	assert.True(t, sw.Allow(), "oldest requests left the window")

	sw.Reset()
	assert.Empty(t, sw.requests)
}

func TestSlidingWindowWaitBlocksUntilSlotFrees(t *testing.T) {
	sw := NewSlidingWindow(1, 50*time.Millisecond)
	require.True(t, sw.Allow())

	start := time.Now()
	require.NoError(t, sw.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestSlidingWindowWaitHonoursContext(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	require.True(t, sw.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sw.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPerMinute(t *testing.T) {
	assert.IsType(t, Unlimited{}, PerMinute(0))
	assert.IsType(t, &SlidingWindow{}, PerMinute(120))

	u := PerMinute(-1)
	for i := 0; i < 1000; i++ {
		require.True(t, u.Allow())
	}
	assert.NoError(t, u.Wait(context.Background()))
}
