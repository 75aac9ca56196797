// ABOUTME: HTTP request metrics for the monitor endpoint
// ABOUTME: Wraps handlers to count requests and time them by path and status
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTP holds request metrics for the monitor server
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewHTTP creates request metrics and registers them on reg
func NewHTTP(reg prometheus.Registerer) *HTTP {
	h := &HTTP{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vban_monitor_http_requests_total",
			Help: "Monitor HTTP requests by path and status",
		}, []string{"path", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vban_monitor_http_request_duration_seconds",
			Help:    "Monitor HTTP request latency",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"path"}),
	}
	reg.MustRegister(h.Requests, h.Duration)
	return h
}

// Wrap instruments next under the given path label
func (h *HTTP) Wrap(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.Requests.WithLabelValues(path, strconv.Itoa(rec.status)).Inc()
		h.Duration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes through so websocket upgrades work on wrapped handlers
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
