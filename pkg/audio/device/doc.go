// ABOUTME: Audio hardware backends for the bridge
// ABOUTME: Wraps malgo, oto and portaudio behind one Device interface
// Package device connects platform audio hardware to an Engine.
//
// The Engine is the only thing a backend talks to: hardware capture
// callbacks hand interleaved int16 samples to OnCapture, and playback
// callbacks pull from RequestPlayback, which must always fill the buffer
// (silence on underrun). Backends never block the hardware thread.
//
// Backends:
//   - malgo: duplex via miniaudio, float32 capture converted at the boundary
//   - oto: playback only, pulled through an io.Reader
//   - portaudio: duplex, requires building with -tags portaudio
//   - none: no hardware, for headless relays and tests
//
// Example:
//
//	dev, err := device.New("malgo", device.Config{SampleRate: 48000, Channels: 2})
//	if err != nil {
//	    return err
//	}
//	if err := dev.Start(session); err != nil {
//	    return err
//	}
//	defer dev.Stop()
package device
