//go:build !portaudio

// ABOUTME: PortAudio stub when the library is not compiled in
// ABOUTME: Every operation reports how to enable the backend
package device

import "errors"

// ErrPortAudioDisabled is returned when built without -tags portaudio
var ErrPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio stub
type PortAudio struct{}

// NewPortAudio returns the stub
func NewPortAudio(Config) *PortAudio {
	return &PortAudio{}
}

func (p *PortAudio) Name() string       { return BackendPortAudio }
func (p *PortAudio) Start(Engine) error { return ErrPortAudioDisabled }
func (p *PortAudio) Stop() error        { return nil }

func listPortAudio() ([]Info, error) {
	return nil, ErrPortAudioDisabled
}
