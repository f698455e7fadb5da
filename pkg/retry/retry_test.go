package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPollSucceedsImmediately(t *testing.T) {
	outcome := Poll(context.Background(), 10*time.Millisecond, time.Second, func(ctx context.Context) (bool, error) {
		return true, nil
	})

	assert.Equal(t, Succeeded, outcome.Result)
	assert.Equal(t, 1, outcome.Attempts)
	assert.NoError(t, outcome.Err)
}

func TestPollSucceedsAfterRetries(t *testing.T) {
	calls := 0
	outcome := Poll(context.Background(), 5*time.Millisecond, time.Second, func(ctx context.Context) (bool, error) {
		calls++
		return calls >= 3, nil
	})

	assert.Equal(t, Succeeded, outcome.Result)
	assert.Equal(t, 3, outcome.Attempts)
}

func TestPollTimesOut(t *testing.T) {
	outcome := Poll(context.Background(), 5*time.Millisecond, 30*time.Millisecond, func(ctx context.Context) (bool, error) {
		return false, nil
	})

	assert.Equal(t, TimedOut, outcome.Result)
	assert.GreaterOrEqual(t, outcome.Elapsed, 30*time.Millisecond)
	assert.GreaterOrEqual(t, outcome.Attempts, 1)
}

func TestPollAbortsOnError(t *testing.T) {
	boom := errors.New("boom")
	outcome := Poll(context.Background(), 5*time.Millisecond, time.Second, func(ctx context.Context) (bool, error) {
		return false, boom
	})

	assert.Equal(t, Aborted, outcome.Result)
	assert.ErrorIs(t, outcome.Err, boom)
}

func TestPollAbortsOnParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	outcome := Poll(ctx, 5*time.Millisecond, 5*time.Second, func(ctx context.Context) (bool, error) {
		return false, nil
	})

	assert.Equal(t, Aborted, outcome.Result)
	assert.ErrorIs(t, outcome.Err, context.Canceled)
}
