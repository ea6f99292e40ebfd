package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() Policy {
	return Policy{
		StandardBase: 2 * time.Millisecond,
		TimeoutBase:  3 * time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		MaxAttempts:  3,
		Jitter:       false,
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	b := NewBackoff(testPolicy())

	calls := 0
	err := b.Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	b := NewBackoff(testPolicy())

	wantErr := errors.New("persistent")
	calls := 0
	err := b.Retry(context.Background(), func() error {
		calls++
		return wantErr
	}, nil, nil)

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	b := NewBackoff(testPolicy())

	calls := 0
	err := b.Retry(context.Background(), func() error {
		calls++
		return errors.New("fatal")
	}, nil, func(error) bool { return false })

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryContextCancellation(t *testing.T) {
	b := NewBackoff(Policy{
		StandardBase: time.Second,
		TimeoutBase:  time.Second,
		MaxDelay:     time.Second,
		MaxAttempts:  5,
	})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := b.Retry(ctx, func() error {
		calls++
		return errors.New("keep failing")
	}, nil, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDelayScalesWithAttempt(t *testing.T) {
	b := NewBackoff(Policy{
		StandardBase: 2 * time.Second,
		TimeoutBase:  3 * time.Second,
		MaxDelay:     30 * time.Second,
		MaxAttempts:  5,
	})

	tests := []struct {
		class   Class
		attempt int
		want    time.Duration
	}{
		{ClassStandard, 1, 2 * time.Second},
		{ClassStandard, 2, 4 * time.Second},
		{ClassStandard, 3, 6 * time.Second},
		{ClassTimeout, 1, 3 * time.Second},
		{ClassTimeout, 2, 6 * time.Second},
		{ClassTimeout, 3, 9 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, b.Delay(tt.class, tt.attempt))
	}
}

func TestDelayCappedAtMax(t *testing.T) {
	b := NewBackoff(Policy{
		StandardBase: 2 * time.Second,
		TimeoutBase:  3 * time.Second,
		MaxDelay:     30 * time.Second,
		MaxAttempts:  50,
	})

	assert.Equal(t, 30*time.Second, b.Delay(ClassStandard, 20))
	assert.Equal(t, 30*time.Second, b.Delay(ClassTimeout, 11))
}

func TestDelayJitterStaysBounded(t *testing.T) {
	b := NewBackoff(Policy{
		StandardBase: 100 * time.Millisecond,
		TimeoutBase:  100 * time.Millisecond,
		MaxDelay:     time.Second,
		MaxAttempts:  3,
		Jitter:       true,
	})

	for i := 0; i < 100; i++ {
		d := b.Delay(ClassStandard, 2)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}

func TestRetryUsesClassifier(t *testing.T) {
	b := NewBackoff(Policy{
		StandardBase: time.Millisecond,
		TimeoutBase:  time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		MaxAttempts:  2,
	})

	classified := false
	err := b.Retry(context.Background(), func() error {
		return errors.New("always")
	}, func(error) Class {
		classified = true
		return ClassTimeout
	}, nil)

	require.Error(t, err)
	assert.True(t, classified)
}
