package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterWaitSpacesRequests(t *testing.T) {
	l := New(Config{RPS: 10, Burst: 1})
	ctx := context.Background()
	url := "http://etd.example/download/1"

	require.NoError(t, l.Wait(ctx, url))

	// 10 RPS with burst 1 means the next token arrives in ~100ms.
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "http://etd.example/download/2"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "http://a.example/1"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "http://b.example/1"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterDisabled(t *testing.T) {
	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for range 100 {
		require.NoError(t, l.Wait(ctx, "http://etd.example/x"))
	}
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterContextCanceled(t *testing.T) {
	l := New(Config{RPS: 0.1, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "http://etd.example/1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "http://etd.example/2"))
}
