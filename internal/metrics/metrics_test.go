package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSanitizeHost(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://etd.intranet.lib.ugm/home/x/1", "etd.intranet.lib.ugm"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, SanitizeHost(tc.input))
		})
	}
}

func TestStatusClass(t *testing.T) {
	require.Equal(t, "2xx", StatusClass(200))
	require.Equal(t, "4xx", StatusClass(403))
	require.Equal(t, "5xx", StatusClass(503))
	require.Equal(t, "error", StatusClass(0))
}

func TestObserveHelpersInitLazily(t *testing.T) {
	ObserveRemoteResponse("http://repo.test/download/1", 200)
	ObserveRemoteResponse("http://repo.test/download/2", 0)
	ObserveRateLimitDelay("repo.test", 250*time.Millisecond)
	ObserveFlush(nil, 12)
	ObserveFlush(errors.New("disk full"), 12)

	require.InDelta(t, 1.0, testutil.ToFloat64(remoteResponsesTotal.WithLabelValues("repo.test", "2xx")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(remoteResponsesTotal.WithLabelValues("repo.test", "error")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(catalogFlushesTotal.WithLabelValues("error")), 1e-9)
	require.InDelta(t, 12.0, testutil.ToFloat64(catalogRecords), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(rateLimitDelaysSeconds))
}

// Fuzz test for SanitizeHost.
func FuzzSanitizeHost(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://etd.example/id/5", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeHost(orig) == "" {
			t.Errorf("SanitizeHost(%q) returned an empty string", orig)
		}
	})
}
