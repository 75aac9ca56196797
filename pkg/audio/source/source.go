// ABOUTME: Source interface and constructor dispatching on path or URL
// ABOUTME: Empty path or "tone" yields a sine generator
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrUnsupportedFormat is returned for file extensions no decoder handles
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Source provides interleaved int16 PCM
type Source interface {
	// Read fills samples and returns how many were written. A finished
	// stream returns io.EOF.
	Read(samples []int16) (int, error)
	// SampleRate returns the native sample rate
	SampleRate() int
	// Channels returns the number of interleaved channels
	Channels() int
	// Metadata returns title, artist, album
	Metadata() (title, artist, album string)
	// Close releases the underlying file, connection or process
	Close() error
}

// Open creates a source from a file path or HTTP(S) URL
func Open(pathOrURL string) (Source, error) {
	if pathOrURL == "" || pathOrURL == "tone" {
		return NewTone(DefaultToneFrequency, 48000, 2), nil
	}

	log := logrus.WithField("source", pathOrURL)

	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		if strings.Contains(pathOrURL, ".m3u8") {
			log.Info("Streaming from HLS URL via ffmpeg")
			return NewFFmpeg(pathOrURL, 48000, 2)
		}
		log.Info("Streaming MP3 from HTTP URL")
		return NewHTTPMP3(pathOrURL)
	}

	if _, err := os.Stat(pathOrURL); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(pathOrURL))
	switch ext {
	case ".mp3":
		return NewMP3(pathOrURL)
	case ".flac":
		return NewFLAC(pathOrURL)
	case ".wav":
		return NewWAV(pathOrURL)
	default:
		return nil, fmt.Errorf("%w: %s (supported: .mp3, .flac, .wav)", ErrUnsupportedFormat, ext)
	}
}

func titleFromPath(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// le16 decodes little-endian int16 pairs from buf into dst
func le16(dst []int16, buf []byte) int {
	n := len(buf) / 2
	for i := 0; i < n; i++ {
		dst[i] = int16(uint16(buf[2*i]) | uint16(buf[2*i+1])<<8)
	}
	return n
}
