// ABOUTME: Prometheus collector exposing session counters
// ABOUTME: Reads a Stats snapshot on every scrape instead of mirroring counters
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vbanbridge/vbanbridge-go/pkg/bridge"
)

// StatsSource is anything that can produce a session snapshot
type StatsSource interface {
	Stats() bridge.Stats
}

// Collector implements prometheus.Collector over a StatsSource
type Collector struct {
	source StatsSource

	packets  *prometheus.Desc
	bytes    *prometheus.Desc
	dropped  *prometheus.Desc
	errors   *prometheus.Desc
	under    *prometheus.Desc
	frame    *prometheus.Desc
	buffered *prometheus.Desc
	capacity *prometheus.Desc
	evicted  *prometheus.Desc
	peak     *prometheus.Desc
	running  *prometheus.Desc
}

// NewCollector creates a collector labelled with the session's stream name
func NewCollector(source StatsSource) *Collector {
	labels := []string{"stream"}
	desc := func(name, help string, extra ...string) *prometheus.Desc {
		return prometheus.NewDesc("vban_"+name, help, append(labels, extra...), nil)
	}

	return &Collector{
		source:   source,
		packets:  desc("packets_total", "VBAN packets moved, by direction", "direction"),
		bytes:    desc("bytes_total", "VBAN bytes moved, by direction", "direction"),
		dropped:  desc("packets_dropped_total", "Received packets dropped, by reason", "reason"),
		errors:   desc("errors_total", "Socket and encode errors, by kind", "kind"),
		under:    desc("playback_underruns_total", "Playback requests filled with silence"),
		frame:    desc("next_frame", "Frame number the next outgoing packet will carry"),
		buffered: desc("buffer_samples", "Samples currently buffered", "buffer"),
		capacity: desc("buffer_capacity_samples", "Ring buffer capacity", "buffer"),
		evicted:  desc("buffer_evicted_samples_total", "Samples discarded by overflow", "buffer"),
		peak:     desc("peak_level", "Most recent normalized peak level", "buffer"),
		running:  desc("session_running", "1 while the session loops are running"),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.packets, c.bytes, c.dropped, c.errors, c.under, c.frame,
		c.buffered, c.capacity, c.evicted, c.peak, c.running,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.source.Stats()
	s := st.Stream

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), append([]string{s}, labels...)...)
	}
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, append([]string{s}, labels...)...)
	}

	counter(c.packets, st.PacketsReceived, "in")
	counter(c.packets, st.PacketsSent, "out")
	counter(c.bytes, st.BytesReceived, "in")
	counter(c.bytes, st.BytesSent, "out")

	counter(c.dropped, st.DroppedSender, "sender")
	counter(c.dropped, st.DroppedInvalid, "invalid")
	counter(c.dropped, st.DroppedStream, "stream")
	counter(c.dropped, st.DroppedFormat, "format")

	counter(c.errors, st.ReadErrors, "read")
	counter(c.errors, st.SendErrors, "send")
	counter(c.errors, st.EncodeErrors, "encode")
	counter(c.under, st.Underruns)

	gauge(c.frame, float64(st.FrameCounter))
	gauge(c.buffered, float64(st.CaptureBuffered), "capture")
	gauge(c.buffered, float64(st.PlaybackBuffered), "playback")
	gauge(c.capacity, float64(st.CaptureCapacity), "capture")
	gauge(c.capacity, float64(st.PlaybackCapacity), "playback")
	counter(c.evicted, st.CaptureEvicted, "capture")
	counter(c.evicted, st.PlaybackEvicted, "playback")
	gauge(c.peak, float64(st.CapturePeak), "capture")
	gauge(c.peak, float64(st.PlaybackPeak), "playback")

	running := 0.0
	if st.State == bridge.StateRunning.String() {
		running = 1
	}
	gauge(c.running, running)
}
