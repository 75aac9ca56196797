// ABOUTME: Audio sources that feed the bridge without a capture device
// ABOUTME: Decodes MP3, FLAC and WAV files, HTTP MP3 streams, ffmpeg pipes and test tones
// Package source provides PCM producers for the send path.
//
// Every source yields interleaved int16 samples at its native sample rate
// and channel count; the caller resamples and remaps to the session format.
// Local files loop when they reach the end, network streams do not.
//
// Example:
//
//	src, err := source.Open("music.flac")
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//
//	buf := make([]int16, 4096)
//	n, err := src.Read(buf)
package source
