// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts interleaved int16 audio between sample rates
// Package resample provides streaming sample rate conversion.
//
// Uses linear interpolation between neighbouring frames. The resampler keeps
// the last frame of every chunk so consecutive calls produce a continuous
// signal, which matters when a file source is fed to the bridge in small
// blocks. Equal input and output rates pass samples through untouched.
//
// Example:
//
//	r := resample.New(44100, 48000, 2)
//	out = r.Resample(out, chunk)
package resample
