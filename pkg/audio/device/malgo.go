// ABOUTME: Malgo (miniaudio) duplex backend
// ABOUTME: Float32 capture and int16 playback driven by one device callback
package device

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/sirupsen/logrus"
)

// Malgo is a duplex miniaudio device
type Malgo struct {
	cfg Config

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	input    *malgo.DeviceInfo
	output   *malgo.DeviceInfo

	capture  *captureConverter
	playback playbackFiller
}

// NewMalgo creates a malgo device; nothing is opened until Start
func NewMalgo(cfg Config) *Malgo {
	cfg = cfg.withDefaults()
	return &Malgo{
		cfg:     cfg,
		capture: newCaptureConverter(cfg.CaptureChannels, cfg.Channels),
	}
}

func (m *Malgo) Name() string { return BackendMalgo }

// Start opens the device and begins driving engine
func (m *Malgo) Start(engine Engine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return fmt.Errorf("malgo device already started")
	}
	if m.cfg.DisableCapture && m.cfg.DisablePlayback {
		return fmt.Errorf("malgo device needs capture or playback")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	m.malgoCtx = ctx

	deviceType := malgo.Duplex
	switch {
	case m.cfg.DisableCapture:
		deviceType = malgo.Playback
	case m.cfg.DisablePlayback:
		deviceType = malgo.Capture
	}

	deviceConfig := malgo.DefaultDeviceConfig(deviceType)
	deviceConfig.SampleRate = uint32(m.cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(m.cfg.PeriodFrames)
	deviceConfig.Alsa.NoMMap = 1

	if !m.cfg.DisableCapture {
		deviceConfig.Capture.Format = malgo.FormatF32
		deviceConfig.Capture.Channels = uint32(m.cfg.CaptureChannels)
		if m.cfg.InputDevice != "" {
			info, err := findMalgoDevice(ctx, malgo.Capture, m.cfg.InputDevice)
			if err != nil {
				m.releaseContext()
				return err
			}
			m.input = info
			deviceConfig.Capture.DeviceID = info.ID.Pointer()
		}
	}

	if !m.cfg.DisablePlayback {
		deviceConfig.Playback.Format = malgo.FormatS16
		deviceConfig.Playback.Channels = uint32(m.cfg.Channels)
		if m.cfg.OutputDevice != "" {
			info, err := findMalgoDevice(ctx, malgo.Playback, m.cfg.OutputDevice)
			if err != nil {
				m.releaseContext()
				return err
			}
			m.output = info
			deviceConfig.Playback.DeviceID = info.ID.Pointer()
		}
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			if len(pInput) > 0 {
				m.capture.fromF32(engine, pInput)
			}
			if len(pOutput) > 0 {
				m.playback.toS16(engine, pOutput)
			}
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		m.releaseContext()
		return fmt.Errorf("failed to initialize audio device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		m.releaseContext()
		return fmt.Errorf("failed to start audio device: %w", err)
	}
	m.device = device

	m.cfg.Logger.WithFields(logrus.Fields{
		"backend":          BackendMalgo,
		"sample_rate":      m.cfg.SampleRate,
		"channels":         m.cfg.Channels,
		"capture_channels": m.cfg.CaptureChannels,
		"input":            deviceName(m.input),
		"output":           deviceName(m.output),
	}).Info("Audio device started")

	return nil
}

// Stop halts the callback and releases the device
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			m.cfg.Logger.WithError(err).Warn("Audio device stop error")
		}
		m.device.Uninit()
		m.device = nil
	}
	m.releaseContext()
	return nil
}

func (m *Malgo) releaseContext() {
	if m.malgoCtx == nil {
		return
	}
	if err := m.malgoCtx.Uninit(); err != nil {
		m.cfg.Logger.WithError(err).Warn("malgo context uninit error")
	}
	m.malgoCtx.Free()
	m.malgoCtx = nil
}

func findMalgoDevice(ctx *malgo.AllocatedContext, kind malgo.DeviceType, name string) (*malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for i := range infos {
		if infos[i].Name() == name {
			return &infos[i], nil
		}
	}
	// Fall back to a case-insensitive substring match
	for i := range infos {
		if strings.Contains(strings.ToLower(infos[i].Name()), strings.ToLower(name)) {
			return &infos[i], nil
		}
	}
	return nil, fmt.Errorf("audio device %q not found", name)
}

func deviceName(info *malgo.DeviceInfo) string {
	if info == nil {
		return "default"
	}
	return info.Name()
}

func listMalgo() ([]Info, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	var out []Info
	for _, kind := range []malgo.DeviceType{malgo.Capture, malgo.Playback} {
		infos, err := ctx.Devices(kind)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate devices: %w", err)
		}
		for _, info := range infos {
			out = append(out, Info{
				Backend:  BackendMalgo,
				Name:     info.Name(),
				Capture:  kind == malgo.Capture,
				Playback: kind == malgo.Playback,
				Default:  info.IsDefault != 0,
			})
		}
	}
	return out, nil
}
