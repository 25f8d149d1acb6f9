// Package system exercises the real-time clock adapter.
package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestClockNowUTC ensures the default clock returns UTC timestamps.
func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().Add(-time.Second)
	got := clk.Now()
	after := time.Now().Add(time.Second)

	require.Equal(t, time.UTC, got.Location())
	require.True(t, got.After(before) && got.Before(after), "%v outside [%v, %v]", got, before, after)
}

// TestClockInLocation reports wall time in the configured zone.
func TestClockInLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("WIB", 7*60*60)
	got := NewInLocation(loc).Now()
	require.Equal(t, loc, got.Location())
	require.Equal(t, time.UTC, NewInLocation(nil).Now().Location())
}

// TestNilClockFallsBack keeps a zero Clock usable.
func TestNilClockFallsBack(t *testing.T) {
	t.Parallel()

	var clk *Clock
	require.Equal(t, time.UTC, clk.Now().Location())
	require.Equal(t, time.UTC, (&Clock{}).Now().Location())
}

// TestClockNowMonotonic checks successive timestamps are non-decreasing.
func TestClockNowMonotonic(t *testing.T) {
	t.Parallel()

	clk := New()
	first := clk.Now()
	second := clk.Now()
	require.False(t, second.Before(first))
}
