// ABOUTME: Device and Engine interfaces plus backend selection
// ABOUTME: Shared conversions between hardware buffers and int16 engine buffers
package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/vbanbridge/vbanbridge-go/pkg/audio"
)

// Backend names accepted by New
const (
	BackendMalgo     = "malgo"
	BackendOto       = "oto"
	BackendPortAudio = "portaudio"
	BackendNone      = "none"
)

// ErrUnknownBackend is returned by New for unrecognised backend names
var ErrUnknownBackend = errors.New("unknown audio backend")

// Engine is the capability a device drives. Both methods are called from
// hardware threads and must not block.
type Engine interface {
	// OnCapture receives interleaved samples in the engine's layout
	OnCapture(samples []int16)
	// RequestPlayback fills out completely and returns how many samples came
	// from buffered audio; the rest is silence.
	RequestPlayback(out []int16) int
}

// Device is an audio backend
type Device interface {
	Start(engine Engine) error
	Stop() error
	Name() string
}

// Config selects format and devices for a backend
type Config struct {
	SampleRate int
	// Channels is the engine's interleaved layout
	Channels int
	// CaptureChannels is what the input hardware is opened with
	CaptureChannels int
	InputDevice     string
	OutputDevice    string
	PeriodFrames    int
	DisableCapture  bool
	DisablePlayback bool
	Logger          *logrus.Entry
}

func (c Config) withDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = 48000
	}
	if c.Channels == 0 {
		c.Channels = 2
	}
	if c.CaptureChannels == 0 {
		c.CaptureChannels = 1
	}
	if c.PeriodFrames == 0 {
		c.PeriodFrames = 256
	}
	if c.Logger == nil {
		c.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return c
}

// Info describes one hardware device
type Info struct {
	Backend  string
	Name     string
	Capture  bool
	Playback bool
	Default  bool
}

// New creates a device for the named backend
func New(backend string, cfg Config) (Device, error) {
	cfg = cfg.withDefaults()
	switch backend {
	case BackendMalgo, "":
		return NewMalgo(cfg), nil
	case BackendOto:
		return NewOto(cfg), nil
	case BackendPortAudio:
		return NewPortAudio(cfg), nil
	case BackendNone:
		return Null{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// ListDevices enumerates hardware for the named backend
func ListDevices(backend string) ([]Info, error) {
	switch backend {
	case BackendMalgo, "":
		return listMalgo()
	case BackendPortAudio:
		return listPortAudio()
	case BackendOto:
		return []Info{{Backend: BackendOto, Name: "default", Playback: true, Default: true}}, nil
	case BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// Null is a device with no hardware
type Null struct{}

func (Null) Start(Engine) error { return nil }
func (Null) Stop() error        { return nil }
func (Null) Name() string       { return BackendNone }

// captureConverter turns raw hardware capture buffers into engine samples.
// It owns scratch space and is only used from the capture thread.
type captureConverter struct {
	hwChannels     int
	engineChannels int
	floats         []float32
	ints           []int16
	mapped         []int16
}

func newCaptureConverter(hwChannels, engineChannels int) *captureConverter {
	return &captureConverter{hwChannels: hwChannels, engineChannels: engineChannels}
}

// fromF32 converts little-endian float32 bytes and hands them to the engine
func (c *captureConverter) fromF32(engine Engine, raw []byte) {
	n := len(raw) / 4
	c.floats = grow32(c.floats, n)
	for i := 0; i < n; i++ {
		c.floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	c.ints = grow16(c.ints, n)
	audio.Float32ToInt16(c.ints, c.floats)
	c.deliver(engine, c.ints)
}

// fromS16 remaps int16 hardware samples and hands them to the engine
func (c *captureConverter) fromS16(engine Engine, samples []int16) {
	c.deliver(engine, samples)
}

func (c *captureConverter) deliver(engine Engine, samples []int16) {
	if c.hwChannels == c.engineChannels {
		engine.OnCapture(samples)
		return
	}
	c.mapped = audio.RemapChannels(c.mapped, samples, c.hwChannels, c.engineChannels)
	engine.OnCapture(c.mapped)
}

// playbackFiller pulls engine samples into raw hardware playback buffers
type playbackFiller struct {
	samples []int16
}

// toS16 fills raw with little-endian int16 from the engine
func (p *playbackFiller) toS16(engine Engine, raw []byte) {
	n := len(raw) / 2
	p.samples = grow16(p.samples, n)
	engine.RequestPlayback(p.samples)
	for i, s := range p.samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}
}

func grow16(buf []int16, n int) []int16 {
	if cap(buf) < n {
		return make([]int16, n)
	}
	return buf[:n]
}

func grow32(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}
