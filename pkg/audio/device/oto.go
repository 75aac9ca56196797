// ABOUTME: Oto playback-only backend
// ABOUTME: Oto pulls from a reader that never blocks and yields silence on underrun
package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"
)

// Oto plays the engine's output through oto. It has no capture side.
type Oto struct {
	cfg Config

	mu     sync.Mutex
	otoCtx *oto.Context
	player *oto.Player
}

// NewOto creates an oto device; nothing is opened until Start
func NewOto(cfg Config) *Oto {
	return &Oto{cfg: cfg.withDefaults()}
}

func (o *Oto) Name() string { return BackendOto }

// Start creates the oto context and begins playback. Oto allows one context
// per process, so a stopped Oto device cannot be restarted.
func (o *Oto) Start(engine Engine) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx != nil {
		return fmt.Errorf("oto device already started")
	}

	frameTime := time.Duration(o.cfg.PeriodFrames) * time.Second / time.Duration(o.cfg.SampleRate)
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   o.cfg.SampleRate,
		ChannelCount: o.cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   2 * frameTime,
	})
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	o.otoCtx = ctx
	o.player = ctx.NewPlayer(&playbackReader{engine: engine})
	o.player.Play()

	o.cfg.Logger.WithFields(logrus.Fields{
		"backend":     BackendOto,
		"sample_rate": o.cfg.SampleRate,
		"channels":    o.cfg.Channels,
	}).Info("Audio device started")

	if !o.cfg.DisableCapture {
		o.cfg.Logger.Warn("oto has no capture support; only playback is active")
	}
	return nil
}

// Stop pauses the player and suspends the context
func (o *Oto) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		o.player.Pause()
		o.player = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			return fmt.Errorf("failed to suspend oto context: %w", err)
		}
	}
	return nil
}

// playbackReader adapts RequestPlayback to io.Reader for oto
type playbackReader struct {
	engine Engine
	filler playbackFiller
}

// Read always fills p entirely, padding with silence; it never returns an error.
func (r *playbackReader) Read(p []byte) (int, error) {
	n := len(p) &^ 1
	r.filler.toS16(r.engine, p[:n])
	return n, nil
}
