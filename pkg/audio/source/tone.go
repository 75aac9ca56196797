// ABOUTME: Sine wave test tone generator
// ABOUTME: Produces an endless 440Hz tone at half scale on every channel
package source

import (
	"math"
	"sync"
)

// DefaultToneFrequency is concert A
const DefaultToneFrequency = 440.0

// Tone generates a sine wave
type Tone struct {
	mu         sync.Mutex
	frame      uint64
	frequency  float64
	sampleRate int
	channels   int
}

// NewTone creates a tone generator
func NewTone(frequency float64, sampleRate, channels int) *Tone {
	if channels < 1 {
		channels = 1
	}
	return &Tone{
		frequency:  frequency,
		sampleRate: sampleRate,
		channels:   channels,
	}
}

func (t *Tone) Read(samples []int16) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	frames := len(samples) / t.channels
	for i := 0; i < frames; i++ {
		at := float64(t.frame+uint64(i)) / float64(t.sampleRate)
		v := int16(math.Sin(2*math.Pi*t.frequency*at) * 32767.0 * 0.5)
		for c := 0; c < t.channels; c++ {
			samples[i*t.channels+c] = v
		}
	}
	t.frame += uint64(frames)

	return frames * t.channels, nil
}

func (t *Tone) SampleRate() int { return t.sampleRate }
func (t *Tone) Channels() int   { return t.channels }
func (t *Tone) Metadata() (string, string, string) {
	return "Test Tone", "vbanbridge", ""
}
func (t *Tone) Close() error { return nil }
