package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestDelayDoubles(t *testing.T) {
	p := NewPolicy(3, time.Second, 0)
	want := []time.Duration{0, time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		assert.Equal(t, w, p.Delay(i), "Delay(%d)", i)
	}
}

func TestDelayCapped(t *testing.T) {
	p := NewPolicy(5, time.Second, 3*time.Second)
	assert.Equal(t, 3*time.Second, p.Delay(3))
}

func TestNewPolicyCollapsesInvalidValues(t *testing.T) {
	p := NewPolicy(0, -time.Second, 0)
	assert.Equal(t, 1, p.MaxAttempts)
	assert.Zero(t, p.BaseDelay)
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	var delays []time.Duration
	calls := 0
	attempts, err := Do(context.Background(), NewPolicy(3, time.Second, 0), Options{
		Sleep:   noSleep,
		OnRetry: func(_ Attempt, d time.Duration) { delays = append(delays, d) },
	}, func(context.Context, int) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0
	attempts, err := Do(context.Background(), NewPolicy(3, time.Second, 0), Options{
		Sleep:     noSleep,
		Retryable: func(err error) bool { return !errors.Is(err, fatal) },
	}, func(context.Context, int) error {
		calls++
		return fatal
	})
	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDoExhausted(t *testing.T) {
	last := errors.New("third")
	calls := 0
	_, err := Do(context.Background(), NewPolicy(3, 0, 0), Options{Sleep: noSleep}, func(context.Context, int) error {
		calls++
		if calls == 3 {
			return last
		}
		return errors.New("earlier")
	})
	assert.ErrorIs(t, err, last)
}

func TestDoCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, NewPolicy(3, time.Hour, 0), Options{
		OnRetry: func(Attempt, time.Duration) { cancel() },
	}, func(context.Context, int) error {
		calls++
		return errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
