// ABOUTME: Session counters and the Stats snapshot
// ABOUTME: Counters are atomics so readers never contend with the loops
package bridge

import (
	"math"
	"sync/atomic"
)

// dropReason says why the receive loop discarded a datagram
type dropReason int

const (
	dropNone dropReason = iota
	dropSender
	dropInvalid
	dropStream
	dropFormat
)

func (r dropReason) String() string {
	switch r {
	case dropSender:
		return "sender"
	case dropInvalid:
		return "invalid"
	case dropStream:
		return "stream"
	case dropFormat:
		return "format"
	default:
		return "none"
	}
}

type counters struct {
	packetsReceived atomic.Uint64
	bytesReceived   atomic.Uint64
	packetsSent     atomic.Uint64
	bytesSent       atomic.Uint64

	droppedSender  atomic.Uint64
	droppedInvalid atomic.Uint64
	droppedStream  atomic.Uint64
	droppedFormat  atomic.Uint64

	readErrors   atomic.Uint64
	sendErrors   atomic.Uint64
	encodeErrors atomic.Uint64
	underruns    atomic.Uint64

	capturePeak  atomic.Uint32 // float32 bits
	playbackPeak atomic.Uint32
}

func (c *counters) drop(r dropReason) {
	switch r {
	case dropSender:
		c.droppedSender.Add(1)
	case dropInvalid:
		c.droppedInvalid.Add(1)
	case dropStream:
		c.droppedStream.Add(1)
	case dropFormat:
		c.droppedFormat.Add(1)
	}
}

func storePeak(v *atomic.Uint32, peak float32) {
	v.Store(math.Float32bits(peak))
}

func loadPeak(v *atomic.Uint32) float32 {
	return math.Float32frombits(v.Load())
}

// Stats is a point-in-time snapshot of a session
type Stats struct {
	ID         string `json:"id"`
	Stream     string `json:"stream"`
	State      string `json:"state"`
	Remote     string `json:"remote"`
	Local      string `json:"local"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`

	PacketsReceived uint64 `json:"packets_received"`
	BytesReceived   uint64 `json:"bytes_received"`
	PacketsSent     uint64 `json:"packets_sent"`
	BytesSent       uint64 `json:"bytes_sent"`

	DroppedSender  uint64 `json:"dropped_sender"`
	DroppedInvalid uint64 `json:"dropped_invalid"`
	DroppedStream  uint64 `json:"dropped_stream"`
	DroppedFormat  uint64 `json:"dropped_format"`

	ReadErrors   uint64 `json:"read_errors"`
	SendErrors   uint64 `json:"send_errors"`
	EncodeErrors uint64 `json:"encode_errors"`
	Underruns    uint64 `json:"underruns"`

	FrameCounter uint32 `json:"frame_counter"`

	CaptureBuffered  int    `json:"capture_buffered"`
	CaptureCapacity  int    `json:"capture_capacity"`
	CaptureEvicted   uint64 `json:"capture_evicted"`
	PlaybackBuffered int    `json:"playback_buffered"`
	PlaybackCapacity int    `json:"playback_capacity"`
	PlaybackEvicted  uint64 `json:"playback_evicted"`

	CapturePeak  float32 `json:"capture_peak"`
	PlaybackPeak float32 `json:"playback_peak"`
}

// Dropped is the total of all receive drops
func (s Stats) Dropped() uint64 {
	return s.DroppedSender + s.DroppedInvalid + s.DroppedStream + s.DroppedFormat
}
