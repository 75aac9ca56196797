// ABOUTME: Tests for the feeder and bridge orchestration
// ABOUTME: Uses loopback UDP peers and the null audio backend
package app

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbanbridge/vbanbridge-go/internal/config"
	"github.com/vbanbridge/vbanbridge-go/pkg/audio"
	"github.com/vbanbridge/vbanbridge-go/pkg/audio/device"
	"github.com/vbanbridge/vbanbridge-go/pkg/audio/source"
	"github.com/vbanbridge/vbanbridge-go/pkg/bridge"
	"github.com/vbanbridge/vbanbridge-go/pkg/vban"
)

type collectSink struct {
	mu      sync.Mutex
	samples []int16
}

func (s *collectSink) OnCapture(samples []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, samples...)
}

func (s *collectSink) snapshot() []int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int16(nil), s.samples...)
}

// finiteSource yields frames of a constant value, then io.EOF
type finiteSource struct {
	remaining int
	rate      int
	channels  int
}

func (f *finiteSource) Read(samples []int16) (int, error) {
	if f.remaining == 0 {
		return 0, io.EOF
	}
	n := len(samples) / f.channels
	if n > f.remaining {
		n = f.remaining
	}
	for i := 0; i < n*f.channels; i++ {
		samples[i] = 1000
	}
	f.remaining -= n
	return n * f.channels, nil
}

func (f *finiteSource) SampleRate() int                    { return f.rate }
func (f *finiteSource) Channels() int                      { return f.channels }
func (f *finiteSource) Metadata() (string, string, string) { return "finite", "", "" }
func (f *finiteSource) Close() error                       { return nil }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestFeederPacesRealTime(t *testing.T) {
	sink := &collectSink{}
	f := NewFeeder(source.NewTone(440, 48000, 2), audio.Format{SampleRate: 48000, Channels: 2}, sink, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, f.Run(ctx))

	frames := len(sink.snapshot()) / 2
	assert.InDelta(t, 9600, frames, 4800, "about 200ms of audio delivered")
}

func TestFeederRemapsAndResamples(t *testing.T) {
	sink := &collectSink{}
	f := NewFeeder(source.NewTone(440, 24000, 1), audio.Format{SampleRate: 48000, Channels: 2}, sink, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, f.Run(ctx))

	out := sink.snapshot()
	require.NotEmpty(t, out)
	require.Zero(t, len(out)%2)
	for i := 0; i < len(out); i += 2 {
		require.Equal(t, out[i], out[i+1], "mono duplicated to both channels")
	}
}

func TestFeederFiniteSourceEnds(t *testing.T) {
	sink := &collectSink{}
	src := &finiteSource{remaining: 480, rate: 48000, channels: 2}
	f := NewFeeder(src, audio.Format{SampleRate: 48000, Channels: 2}, sink, nil)

	done := make(chan error, 1)
	go func() { done <- f.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("feeder did not stop at end of source")
	}
	assert.Len(t, sink.snapshot(), 960)
}

func testConfig(t *testing.T, peer *net.UDPConn) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Network.RemoteIP = "127.0.0.1"
	cfg.Network.Port = peer.LocalAddr().(*net.UDPAddr).Port
	cfg.Network.BindAddress = "127.0.0.1"
	cfg.Network.LocalPort = 0
	cfg.Audio.Backend = device.BackendNone
	cfg.Monitor.MDNS = false
	cfg.Monitor.Listen = "127.0.0.1:0"
	return cfg
}

func listenPeer(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBridgeSendsFeederAudio(t *testing.T) {
	peer := listenPeer(t)
	stats := make(chan bridge.Stats, 64)

	b := NewBridge(Options{
		Config: testConfig(t, peer),
		Logger: quietLogger(),
		Source: source.NewTone(440, 48000, 2),
		OnStats: func(st bridge.Stats) {
			select {
			case stats <- st:
			default:
			}
		},
		StatsInterval: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	buf := make([]byte, vban.MaxPacketSize)
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := peer.ReadFromUDP(buf)
	require.NoError(t, err)

	h, samples, err := vban.Decode(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, "Stream1", h.Name())
	assert.Len(t, samples, vban.MaxFramesPerPacket(2)*2)

	deadline := time.After(2 * time.Second)
	for sent := false; !sent; {
		select {
		case st := <-stats:
			sent = st.PacketsSent > 0 && st.State == "running"
		case <-deadline:
			t.Fatal("no stats reporting sent packets")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop")
	}
	assert.Equal(t, bridge.StateStopped, b.Session().State())
}

func TestBridgeFiniteSourceEndsRun(t *testing.T) {
	peer := listenPeer(t)
	cfg := testConfig(t, peer)
	cfg.Monitor.Listen = ""

	b := NewBridge(Options{
		Config: cfg,
		Logger: quietLogger(),
		Source: &finiteSource{remaining: 2048, rate: 48000, channels: 2},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, b.Run(ctx))
	assert.Equal(t, bridge.StateStopped, b.Session().State())
}

func TestBridgeDeviceFailureStopsSession(t *testing.T) {
	peer := listenPeer(t)
	boom := errors.New("no such device")

	b := NewBridge(Options{
		Config: testConfig(t, peer),
		Logger: quietLogger(),
		Devices: func(string, device.Config) (device.Device, error) {
			return nil, boom
		},
	})

	err := b.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, bridge.StateStopped, b.Session().State())
}

func TestBridgeInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.Backend = device.BackendNone
	cfg.Monitor.MDNS = false

	err := NewBridge(Options{Config: cfg, Logger: quietLogger()}).Run(context.Background())
	assert.ErrorIs(t, err, bridge.ErrInvalidConfig)
}
