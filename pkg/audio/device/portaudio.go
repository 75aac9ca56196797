//go:build portaudio

// ABOUTME: PortAudio duplex backend
// ABOUTME: Built only with -tags portaudio since it links the system library
package device

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"
)

// PortAudio is a duplex portaudio stream on the default devices
type PortAudio struct {
	cfg Config

	mu      sync.Mutex
	stream  *portaudio.Stream
	capture *captureConverter
}

// NewPortAudio creates a portaudio device; nothing is opened until Start
func NewPortAudio(cfg Config) *PortAudio {
	cfg = cfg.withDefaults()
	return &PortAudio{
		cfg:     cfg,
		capture: newCaptureConverter(cfg.CaptureChannels, cfg.Channels),
	}
}

func (p *PortAudio) Name() string { return BackendPortAudio }

// Start initializes portaudio and opens the default duplex stream
func (p *PortAudio) Start(engine Engine) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return fmt.Errorf("portaudio device already started")
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	inputs := p.cfg.CaptureChannels
	if p.cfg.DisableCapture {
		inputs = 0
	}
	outputs := p.cfg.Channels
	if p.cfg.DisablePlayback {
		outputs = 0
	}

	stream, err := portaudio.OpenDefaultStream(inputs, outputs, float64(p.cfg.SampleRate), p.cfg.PeriodFrames,
		func(in, out []int16) {
			if len(in) > 0 {
				p.capture.fromS16(engine, in)
			}
			if len(out) > 0 {
				engine.RequestPlayback(out)
			}
		})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}
	p.stream = stream

	p.cfg.Logger.WithFields(logrus.Fields{
		"backend":     BackendPortAudio,
		"sample_rate": p.cfg.SampleRate,
		"channels":    p.cfg.Channels,
	}).Info("Audio device started")
	return nil
}

// Stop stops the stream and terminates portaudio
func (p *PortAudio) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}
	if err := p.stream.Stop(); err != nil {
		return err
	}
	if err := p.stream.Close(); err != nil {
		return err
	}
	p.stream = nil
	return portaudio.Terminate()
}

func listPortAudio() ([]Info, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	defaultIn, _ := portaudio.DefaultInputDevice()
	defaultOut, _ := portaudio.DefaultOutputDevice()

	out := make([]Info, 0, len(devices))
	for _, d := range devices {
		out = append(out, Info{
			Backend:  BackendPortAudio,
			Name:     d.Name,
			Capture:  d.MaxInputChannels > 0,
			Playback: d.MaxOutputChannels > 0,
			Default:  d == defaultIn || d == defaultOut,
		})
	}
	return out, nil
}
