package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitSerializesPerHost(t *testing.T) {
	h := New(1000, 1) // fast limiter so the test doesn't sleep long
	ctx := context.Background()

	require.NoError(t, h.Wait(ctx, "https://example.com/a"))
	require.NoError(t, h.Wait(ctx, "https://example.com/b"))
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	h := New(0.001, 1) // effectively never refills within the test window
	require.NoError(t, h.Wait(context.Background(), "https://slow.example.com/a"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := h.Wait(ctx, "https://slow.example.com/a")
	require.Error(t, err)
}

func TestDistinctHostsGetDistinctLimiters(t *testing.T) {
	h := New(0.001, 1)
	require.NoError(t, h.Wait(context.Background(), "https://a.example.com/x"))
	// A different host should not be throttled by a.example.com's bucket.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, h.Wait(ctx, "https://b.example.com/x"))
}
