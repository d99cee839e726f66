package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3, 10*time.Millisecond, 100*time.Millisecond)

	require.False(t, p.ShouldRetry(nil, 1))
	require.True(t, p.ShouldRetry(errors.New("connection reset"), 1))
	require.False(t, p.ShouldRetry(errors.New("connection reset"), 3))
	require.False(t, p.ShouldRetry(context.Canceled, 1))
	require.False(t, p.ShouldRetry(context.DeadlineExceeded, 1))
}

func TestExponentialRetryPolicyBackoffBounded(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(5, 10*time.Millisecond, 80*time.Millisecond)
	for attempt := 0; attempt < 10; attempt++ {
		d := p.Backoff(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 80*time.Millisecond)
	}
}

func TestNewExponentialRetryPolicyDefaults(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(0, 0, 0)
	require.Equal(t, 3, p.MaxAttempts())
}
