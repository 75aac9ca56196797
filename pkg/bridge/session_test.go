// ABOUTME: Tests for the session lifecycle and both loops
// ABOUTME: Runs sessions against a plain UDP peer on loopback
package bridge

import (
	"io"
	"math"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbanbridge/vbanbridge-go/pkg/vban"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func testConfig(peerPort int) Config {
	return Config{
		RemoteIP:       "127.0.0.1",
		Port:           peerPort,
		BindAddress:    "127.0.0.1",
		LocalPort:      0,
		StreamName:     "Test",
		SampleRate:     48000,
		Channels:       2,
		ReceiveTimeout: 20 * time.Millisecond,
		Logger:         quietLogger(),
	}
}

func newPeer(t *testing.T) *net.UDPConn {
	t.Helper()
	peer, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { peer.Close() })
	return peer
}

func newTestSession(t *testing.T, mutate func(*Config)) (*Session, *net.UDPConn) {
	t.Helper()
	peer := newPeer(t)
	cfg := testConfig(peer.LocalAddr().(*net.UDPAddr).Port)
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Stop() })
	return s, peer
}

func readPacket(t *testing.T, peer *net.UDPConn) (vban.Header, []int16) {
	t.Helper()
	buf := make([]byte, 2048)
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := peer.ReadFromUDP(buf)
	require.NoError(t, err)
	h, samples, err := vban.Decode(buf[:n])
	require.NoError(t, err)
	return h, samples
}

func ramp(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(i - n/2)
	}
	return out
}

func encodePacket(t *testing.T, name string, rate int, samples []int16, channels int) []byte {
	t.Helper()
	pkt, err := vban.Encode(nil, vban.NewStreamName(name), rate, 7, samples, channels)
	require.NoError(t, err)
	return pkt
}

func TestSendLoopTransmitsBatches(t *testing.T) {
	s, peer := newTestSession(t, nil)
	require.NoError(t, s.Start())

	first := ramp(512)
	s.OnCapture(first)

	h, samples := readPacket(t, peer)
	assert.Equal(t, 256, h.Frames)
	assert.Equal(t, 2, h.Channels)
	assert.Equal(t, "Test", h.Name())
	assert.Equal(t, uint32(0), h.FrameCounter)
	assert.Equal(t, first, samples)

	s.OnCapture(ramp(512))
	h, _ = readPacket(t, peer)
	assert.Equal(t, uint32(1), h.FrameCounter)

	require.Eventually(t, func() bool { return s.Stats().PacketsSent == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2*(vban.HeaderSize+1024)), s.Stats().BytesSent)
	assert.Equal(t, uint32(2), s.FrameCounter())
}

func TestSendLoopWaitsForFullBatch(t *testing.T) {
	s, peer := newTestSession(t, nil)
	require.NoError(t, s.Start())

	s.OnCapture(ramp(300))
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(50*time.Millisecond)))
	_, _, err := peer.ReadFromUDP(make([]byte, 2048))
	assert.Error(t, err, "no packet until a whole batch is buffered")

	s.OnCapture(ramp(212))
	h, _ := readPacket(t, peer)
	assert.Equal(t, 256, h.Frames)
}

func TestSendBatchSizeForWideLayouts(t *testing.T) {
	s, peer := newTestSession(t, func(c *Config) { c.Channels = 4 })
	require.NoError(t, s.Start())

	s.OnCapture(ramp(179 * 4))
	h, samples := readPacket(t, peer)
	assert.Equal(t, 179, h.Frames)
	assert.Equal(t, 4, h.Channels)
	assert.Len(t, samples, 179*4)
	assert.LessOrEqual(t, h.PayloadSize(), vban.MaxPayloadSize)
}

func TestFrameCounterWraps(t *testing.T) {
	s, peer := newTestSession(t, nil)
	s.frame.Store(math.MaxUint32)
	require.NoError(t, s.Start())

	s.OnCapture(ramp(512))
	h, _ := readPacket(t, peer)
	assert.Equal(t, uint32(math.MaxUint32), h.FrameCounter)

	s.OnCapture(ramp(512))
	h, _ = readPacket(t, peer)
	assert.Equal(t, uint32(0), h.FrameCounter)
}

func TestReceiveLoopFeedsPlayback(t *testing.T) {
	s, peer := newTestSession(t, nil)
	require.NoError(t, s.Start())

	want := ramp(512)
	_, err := peer.WriteToUDP(encodePacket(t, "Test", 48000, want, 2), s.LocalAddr())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.Stats().PlaybackBuffered == 512 }, time.Second, 5*time.Millisecond)

	out := make([]int16, 512)
	assert.Equal(t, 512, s.RequestPlayback(out))
	assert.Equal(t, want, out)
	assert.Equal(t, uint64(1), s.Stats().PacketsReceived)
}

func TestWrongMagicIsDropped(t *testing.T) {
	s, peer := newTestSession(t, nil)
	require.NoError(t, s.Start())

	pkt := encodePacket(t, "Test", 48000, ramp(512), 2)
	pkt[0] = 'X'
	_, err := peer.WriteToUDP(pkt, s.LocalAddr())
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.Stats().DroppedInvalid == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, s.Stats().PlaybackBuffered)
	assert.Equal(t, uint64(0), s.Stats().PacketsReceived)
}

func TestHandleDatagramValidation(t *testing.T) {
	local := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
	stranger := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 9), Port: 6980}
	good := ramp(512)

	unsupported := encodePacket(t, "Test", 48000, good, 2)
	unsupported[4] |= vban.SubProtocolText

	tests := []struct {
		name     string
		mutate   func(*Config)
		from     *net.UDPAddr
		packet   []byte
		want     dropReason
		buffered int
	}{
		{"accepted", nil, local, encodePacket(t, "Test", 48000, good, 2), dropNone, 512},
		{"any source port from remote", nil, &net.UDPAddr{IP: local.IP, Port: 1}, encodePacket(t, "Test", 48000, good, 2), dropNone, 512},
		{"unknown sender", nil, stranger, encodePacket(t, "Test", 48000, good, 2), dropSender, 0},
		{"unknown sender allowed", func(c *Config) { c.AcceptAnySender = true }, stranger, encodePacket(t, "Test", 48000, good, 2), dropNone, 512},
		{"truncated", nil, local, []byte("VBAN"), dropInvalid, 0},
		{"other stream", nil, local, encodePacket(t, "Other", 48000, good, 2), dropStream, 0},
		{"other stream allowed", func(c *Config) { c.AcceptAnyStream = true }, local, encodePacket(t, "Other", 48000, good, 2), dropNone, 512},
		{"rate mismatch", nil, local, encodePacket(t, "Test", 44100, good, 2), dropFormat, 0},
		{"channel mismatch", nil, local, encodePacket(t, "Test", 48000, good[:256], 1), dropFormat, 0},
		{"not audio", nil, local, unsupported, dropFormat, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSession(t, tt.mutate)

			_, reason := s.handleDatagram(tt.packet, tt.from, nil)
			assert.Equal(t, tt.want, reason)
			assert.Equal(t, tt.buffered, s.Stats().PlaybackBuffered)
		})
	}
}

func TestRequestPlaybackUnderrunIsSilent(t *testing.T) {
	s, _ := newTestSession(t, nil)

	out := []int16{9, 9, 9, 9}
	assert.Equal(t, 0, s.RequestPlayback(out))
	assert.Equal(t, []int16{0, 0, 0, 0}, out)
	assert.Equal(t, uint64(1), s.Stats().Underruns)
}

func TestCapturePeakTracked(t *testing.T) {
	s, _ := newTestSession(t, nil)

	s.OnCapture([]int16{0, -16384, 100, 0})
	assert.InDelta(t, 0.5, s.Stats().CapturePeak, 1e-6)
}

func TestStartFailureUnwinds(t *testing.T) {
	s, _ := newTestSession(t, nil)

	// A closed socket cannot arm its read deadline
	require.NoError(t, s.conn.Close())

	err := s.Start()
	require.Error(t, err)
	assert.Equal(t, StateStopped, s.State())

	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after failed start")
	}

	assert.Nil(t, s.capture.Load())
	assert.Nil(t, s.playback.Load())

	assert.NotPanics(t, func() { s.OnCapture(ramp(512)) })
	out := []int16{1, 2}
	assert.Equal(t, 0, s.RequestPlayback(out))
	assert.Equal(t, []int16{0, 0}, out)

	assert.ErrorIs(t, s.Start(), ErrSessionClosed)
}

func TestLifecycle(t *testing.T) {
	s, _ := newTestSession(t, nil)
	assert.Equal(t, StateCreated, s.State())

	require.NoError(t, s.Start())
	assert.Equal(t, StateRunning, s.State())
	assert.ErrorIs(t, s.Start(), ErrAlreadyStarted)

	start := time.Now()
	require.NoError(t, s.Stop())
	assert.Less(t, time.Since(start), 500*time.Millisecond, "stop bounded by the receive timeout")
	assert.Equal(t, StateStopped, s.State())

	require.NoError(t, s.Stop(), "stop is idempotent")
	assert.ErrorIs(t, s.Start(), ErrSessionClosed)

	_, ok := <-s.Done()
	assert.False(t, ok)
}

func TestStopBeforeStart(t *testing.T) {
	s, _ := newTestSession(t, nil)

	require.NoError(t, s.Stop())
	assert.Equal(t, StateStopped, s.State())
	assert.Nil(t, s.capture.Load())
}

func TestOpenStartsSession(t *testing.T) {
	peer := newPeer(t)
	s, err := Open(testConfig(peer.LocalAddr().(*net.UDPAddr).Port))
	require.NoError(t, err)
	defer s.Stop()

	assert.Equal(t, StateRunning, s.State())
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, "Test", s.StreamName())
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no remote", func(c *Config) { c.RemoteIP = "" }},
		{"bad rate", func(c *Config) { c.SampleRate = 12345 }},
		{"too many channels", func(c *Config) { c.Channels = 300 }},
		{"tiny buffer", func(c *Config) { c.BufferSamples = 100 }},
		{"bad port", func(c *Config) { c.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(6980)
			tt.mutate(&cfg)
			s, err := New(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Nil(t, s)
		})
	}

	cfg := testConfig(6980)
	cfg.SampleRate = 12345
	_, err := New(cfg)
	assert.ErrorIs(t, err, vban.ErrUnsupportedRate)
}

func TestNewBindFailure(t *testing.T) {
	cfg := testConfig(6980)
	cfg.BindAddress = "203.0.113.77"

	s, err := New(cfg)
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestStreamNameTruncated(t *testing.T) {
	s, _ := newTestSession(t, func(c *Config) { c.StreamName = "a-very-long-stream-name" })
	assert.Equal(t, "a-very-long-stre", s.StreamName())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, vban.DefaultPort, cfg.Port)
	assert.Equal(t, vban.DefaultPort, cfg.LocalPort)
	assert.Equal(t, 48000, cfg.SampleRate)
	assert.Equal(t, DefaultBufferSamples, cfg.BufferSamples)
	assert.Equal(t, 100*time.Millisecond, cfg.ReceiveTimeout)
	assert.Equal(t, time.Millisecond, cfg.SendPollInterval)
}
