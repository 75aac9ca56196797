//go:build !portaudio

// ABOUTME: Tests for the PortAudio stub
// ABOUTME: Verifies the disabled backend reports a clear error
package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPortAudioStubDisabled(t *testing.T) {
	var d Device = NewPortAudio(Config{})
	assert.ErrorIs(t, d.Start(&fakeEngine{}), ErrPortAudioDisabled)
	assert.NoError(t, d.Stop())

	_, err := ListDevices(BackendPortAudio)
	assert.ErrorIs(t, err, ErrPortAudioDisabled)
}
