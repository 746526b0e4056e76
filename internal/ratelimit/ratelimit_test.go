package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenBucketDisabled(t *testing.T) {
	assert.Nil(t, NewTokenBucket(0, time.Minute))
	assert.Nil(t, PerMinute(-1))
}

func TestTokenBucketConsumesAndRefills(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewTokenBucket(2, time.Second)
	b.now = func() time.Time { return clock }
	b.lastRefill = clock

	ctx := context.Background()
	require.NoError(t, b.Wait(ctx))
	require.NoError(t, b.Wait(ctx))
	assert.Equal(t, 0, b.Available())

	clock = clock.Add(500 * time.Millisecond)
	assert.Equal(t, 1, b.Available())

	clock = clock.Add(5 * time.Second)
	assert.Equal(t, 2, b.Available(), "refill is capped at capacity")
}

func TestTokenBucketWaitHonorsContext(t *testing.T) {
	b := NewTokenBucket(1, time.Hour)
	require.NoError(t, b.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := b.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
