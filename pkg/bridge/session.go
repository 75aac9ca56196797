// ABOUTME: Session lifecycle and the audio device boundary
// ABOUTME: Owns the UDP socket and both ring buffers, runs the receive and send loops
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"

	"github.com/vbanbridge/vbanbridge-go/pkg/audio"
	"github.com/vbanbridge/vbanbridge-go/pkg/vban"
)

var (
	// ErrSessionClosed is returned when starting a stopped session
	ErrSessionClosed = errors.New("session closed")

	// ErrAlreadyStarted is returned when starting a running session
	ErrAlreadyStarted = errors.New("session already started")
)

// State is the session lifecycle stage
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Session is one bidirectional VBAN stream
type Session struct {
	cfg        Config
	id         string
	log        *logrus.Entry
	conn       *net.UDPConn
	remote     *net.UDPAddr
	streamName [vban.StreamNameSize]byte

	// Buffers are swapped to nil on release so device callbacks that race
	// with Stop see silence instead of freed state.
	capture  atomic.Pointer[audio.RingBuffer]
	playback atomic.Pointer[audio.RingBuffer]

	running atomic.Bool
	state   atomic.Int32
	frame   atomic.Uint32
	stats   counters

	mu   sync.Mutex
	wg   sync.WaitGroup
	done chan struct{}
}

// New validates cfg, binds the socket and allocates buffers. The session is
// returned in StateCreated; no goroutines run until Start.
func New(cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	remote, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(cfg.RemoteIP, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve remote %s: %w", cfg.RemoteIP, err)
	}

	conn, err := listen(cfg)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	s := &Session{
		cfg:        cfg,
		id:         id,
		conn:       conn,
		remote:     remote,
		streamName: vban.NewStreamName(cfg.StreamName),
		done:       make(chan struct{}),
	}
	s.log = cfg.Logger.WithFields(logrus.Fields{
		"session": id[:8],
		"stream":  s.StreamName(),
	})
	s.capture.Store(audio.NewRingBuffer(cfg.BufferSamples))
	s.playback.Store(audio.NewRingBuffer(cfg.BufferSamples))
	s.state.Store(int32(StateCreated))

	s.log.WithFields(logrus.Fields{
		"local":       conn.LocalAddr().String(),
		"remote":      remote.String(),
		"sample_rate": cfg.SampleRate,
		"channels":    cfg.Channels,
	}).Info("Session created")

	return s, nil
}

func listen(cfg Config) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: controlSocket}
	addr := net.JoinHostPort(cfg.BindAddress, strconv.Itoa(cfg.LocalPort))

	pc, err := lc.ListenPacket(context.Background(), "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	conn := pc.(*net.UDPConn)

	if cfg.ReadBufferBytes > 0 {
		if err := conn.SetReadBuffer(cfg.ReadBufferBytes); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set read buffer: %w", err)
		}
	}
	if cfg.TOS > 0 {
		if err := ipv4.NewConn(conn).SetTOS(cfg.TOS); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set TOS: %w", err)
		}
	}
	return conn, nil
}

// Open creates and starts a session. It never returns a half-initialised one.
func Open(cfg Config) (*Session, error) {
	s, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

// Start launches both loops and returns once each has reported ready. If
// either fails its setup the session is fully released and ends Stopped.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateRunning:
		return ErrAlreadyStarted
	case StateStopping, StateStopped:
		return ErrSessionClosed
	}

	s.running.Store(true)
	ready := make(chan error, 2)
	s.wg.Add(2)
	go s.receiveLoop(ready)
	go s.sendLoop(ready)

	var startErr error
	for i := 0; i < 2; i++ {
		if err := <-ready; err != nil && startErr == nil {
			startErr = err
		}
	}
	if startErr != nil {
		s.log.WithError(startErr).Error("Session failed to start")
		s.shutdown()
		return fmt.Errorf("failed to start session: %w", startErr)
	}

	s.state.Store(int32(StateRunning))
	s.log.Info("Session started")
	return nil
}

// Stop halts both loops, closes the socket and releases the buffers. It is
// safe to call more than once and on a session that never started.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateStopped {
		return nil
	}
	s.shutdown()
	s.log.Info("Session stopped")
	return nil
}

// shutdown must hold s.mu
func (s *Session) shutdown() {
	s.state.Store(int32(StateStopping))
	s.running.Store(false)
	s.wg.Wait()

	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.WithError(err).Debug("Socket close error")
	}
	s.capture.Store(nil)
	s.playback.Store(nil)

	s.state.Store(int32(StateStopped))
	close(s.done)
}

// OnCapture pushes captured audio into the capture buffer. It never blocks
// beyond the buffer lock; overflow evicts the oldest samples.
func (s *Session) OnCapture(samples []int16) {
	rb := s.capture.Load()
	if rb == nil {
		return
	}
	rb.Push(samples)
	storePeak(&s.stats.capturePeak, audio.Peak(samples))
}

// RequestPlayback fills out from the playback buffer. When not enough audio
// is buffered out is filled with silence and an underrun is counted.
func (s *Session) RequestPlayback(out []int16) int {
	rb := s.playback.Load()
	if rb != nil && rb.ReadExact(out) {
		storePeak(&s.stats.playbackPeak, audio.Peak(out))
		return len(out)
	}

	clear(out)
	if rb != nil && len(out) > 0 {
		s.stats.underruns.Add(1)
	}
	storePeak(&s.stats.playbackPeak, 0)
	return 0
}

// ID is the session's UUID
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle stage
func (s *Session) State() State { return State(s.state.Load()) }

// Done is closed once the session reaches StateStopped
func (s *Session) Done() <-chan struct{} { return s.done }

// LocalAddr is the bound UDP address
func (s *Session) LocalAddr() *net.UDPAddr { return s.conn.LocalAddr().(*net.UDPAddr) }

// RemoteAddr is the resolved peer address
func (s *Session) RemoteAddr() *net.UDPAddr { return s.remote }

// StreamName is the name carried in outgoing headers
func (s *Session) StreamName() string { return vban.Header{StreamName: s.streamName}.Name() }

// Format is the session's sample rate and channel layout
func (s *Session) Format() audio.Format {
	return audio.Format{SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels}
}

// FrameCounter is the value the next sent packet will carry
func (s *Session) FrameCounter() uint32 { return s.frame.Load() }

// Stats returns a snapshot of counters and buffer levels
func (s *Session) Stats() Stats {
	st := Stats{
		ID:         s.id,
		Stream:     s.StreamName(),
		State:      s.State().String(),
		Remote:     s.remote.String(),
		Local:      s.conn.LocalAddr().String(),
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,

		PacketsReceived: s.stats.packetsReceived.Load(),
		BytesReceived:   s.stats.bytesReceived.Load(),
		PacketsSent:     s.stats.packetsSent.Load(),
		BytesSent:       s.stats.bytesSent.Load(),

		DroppedSender:  s.stats.droppedSender.Load(),
		DroppedInvalid: s.stats.droppedInvalid.Load(),
		DroppedStream:  s.stats.droppedStream.Load(),
		DroppedFormat:  s.stats.droppedFormat.Load(),

		ReadErrors:   s.stats.readErrors.Load(),
		SendErrors:   s.stats.sendErrors.Load(),
		EncodeErrors: s.stats.encodeErrors.Load(),
		Underruns:    s.stats.underruns.Load(),

		FrameCounter: s.frame.Load(),

		CapturePeak:  loadPeak(&s.stats.capturePeak),
		PlaybackPeak: loadPeak(&s.stats.playbackPeak),
	}

	if rb := s.capture.Load(); rb != nil {
		st.CaptureBuffered = rb.Size()
		st.CaptureCapacity = rb.Capacity()
		st.CaptureEvicted = rb.Evicted()
	}
	if rb := s.playback.Load(); rb != nil {
		st.PlaybackBuffered = rb.Size()
		st.PlaybackCapacity = rb.Capacity()
		st.PlaybackEvicted = rb.Evicted()
	}
	return st
}
