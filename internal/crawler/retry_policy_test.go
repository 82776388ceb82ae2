package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string   { return "net" }
func (e timeoutErr) Timeout() bool   { return e.timeout }
func (e timeoutErr) Temporary() bool { return false }

func TestExponentialRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3, time.Millisecond, 10*time.Millisecond)
	transport := errors.New("connection reset")

	require.True(t, p.ShouldRetry(transport, 1))
	require.True(t, p.ShouldRetry(transport, 2))
	require.False(t, p.ShouldRetry(transport, 3), "attempt budget exhausted")
	require.False(t, p.ShouldRetry(nil, 1))
	require.False(t, p.ShouldRetry(context.Canceled, 1))
	require.False(t, p.ShouldRetry(fmt.Errorf("wrapped: %w", context.DeadlineExceeded), 1))

	require.True(t, p.ShouldRetry(timeoutErr{timeout: true}, 1))
	require.True(t, p.ShouldRetry(timeoutErr{timeout: false}, 1), "refused connections are transport errors too")

	require.True(t, p.ShouldRetry(&StatusError{Code: http.StatusServiceUnavailable}, 1))
	require.True(t, p.ShouldRetry(&StatusError{Code: http.StatusTooManyRequests}, 1))
	require.False(t, p.ShouldRetry(&StatusError{Code: http.StatusNotFound}, 1))
}

func TestExponentialRetryPolicyDefaults(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(0, 0, 0)
	require.Equal(t, 3, p.MaxAttempts())
	require.Equal(t, 250*time.Millisecond, p.baseDelay)
	require.Equal(t, 5*time.Second, p.maxDelay)
}

func TestExponentialRetryPolicyBackoffBounded(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(5, 10*time.Millisecond, 40*time.Millisecond)
	for attempt := 0; attempt < 6; attempt++ {
		d := p.Backoff(attempt)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 40*time.Millisecond)
	}
}
