// ABOUTME: Tests for the Prometheus collectors
// ABOUTME: Uses testutil to scrape the collector and the HTTP wrapper
package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbanbridge/vbanbridge-go/pkg/bridge"
)

type staticStats bridge.Stats

func (s staticStats) Stats() bridge.Stats { return bridge.Stats(s) }

func TestCollectorExposesDrops(t *testing.T) {
	c := NewCollector(staticStats{
		Stream:         "Mic",
		State:          "running",
		PacketsSent:    12,
		DroppedInvalid: 3,
		DroppedSender:  1,
	})

	expected := `
# HELP vban_packets_dropped_total Received packets dropped, by reason
# TYPE vban_packets_dropped_total counter
vban_packets_dropped_total{reason="format",stream="Mic"} 0
vban_packets_dropped_total{reason="invalid",stream="Mic"} 3
vban_packets_dropped_total{reason="sender",stream="Mic"} 1
vban_packets_dropped_total{reason="stream",stream="Mic"} 0
# HELP vban_session_running 1 while the session loops are running
# TYPE vban_session_running gauge
vban_session_running{stream="Mic"} 1
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"vban_packets_dropped_total", "vban_session_running")
	require.NoError(t, err)
}

func TestCollectorLintsClean(t *testing.T) {
	c := NewCollector(staticStats{Stream: "Mic"})
	problems, err := testutil.CollectAndLint(c)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestCollectorMetricCount(t *testing.T) {
	c := NewCollector(staticStats{Stream: "Mic"})
	// 2 packets, 2 bytes, 4 drops, 3 errors, underruns, frame,
	// 2 buffered, 2 capacity, 2 evicted, 2 peak, running
	assert.Equal(t, 22, testutil.CollectAndCount(c))
}

func TestHTTPWrapCountsStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTP(reg)

	handler := h.Wrap("/stats", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.Requests.WithLabelValues("/stats", "418")))
}
