package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0

	err := Do(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0

	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("not ready")
		}
		return nil
	}, WithAttempts(5), WithInterval(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0

	err := Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("still down")
	}, WithAttempts(4), WithInterval(time.Millisecond))

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Contains(t, err.Error(), "failed after 4 attempts")
	assert.Contains(t, err.Error(), "still down")
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func() error {
		return fmt.Errorf("never succeeds")
	}, WithAttempts(10), WithInterval(time.Hour))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_BackoffMultiplierGrowsInterval(t *testing.T) {
	var timestamps []time.Time

	_ = Do(context.Background(), func() error {
		timestamps = append(timestamps, time.Now())
		return fmt.Errorf("fail")
	}, WithAttempts(3), WithInterval(10*time.Millisecond), WithBackoffMultiplier(2.0))

	require.Len(t, timestamps, 3)
	first := timestamps[1].Sub(timestamps[0])
	second := timestamps[2].Sub(timestamps[1])
	assert.Greater(t, second, first, "second wait should be longer than the first")
}
