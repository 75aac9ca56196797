// ABOUTME: FLAC file source built on mewkiz/flac
// ABOUTME: Keeps samples left over from a decoded frame for the next read
package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"

	"github.com/vbanbridge/vbanbridge-go/pkg/audio"
)

// FLAC reads a looping FLAC file
type FLAC struct {
	file       *os.File
	stream     *flac.Stream
	sampleRate int
	channels   int
	bitDepth   int
	title      string
	pending    []int16
}

// NewFLAC opens a FLAC file
func NewFLAC(path string) (*FLAC, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	s := &FLAC{
		file:       f,
		stream:     stream,
		sampleRate: int(stream.Info.SampleRate),
		channels:   int(stream.Info.NChannels),
		bitDepth:   int(stream.Info.BitsPerSample),
		title:      titleFromPath(path),
	}

	logrus.WithFields(logrus.Fields{
		"title":       s.title,
		"sample_rate": s.sampleRate,
		"channels":    s.channels,
		"bit_depth":   s.bitDepth,
	}).Info("Loaded FLAC")

	return s, nil
}

func (s *FLAC) Read(samples []int16) (int, error) {
	read := 0
	restarted := false

	for read < len(samples) {
		if len(s.pending) > 0 {
			n := copy(samples[read:], s.pending)
			s.pending = s.pending[n:]
			read += n
			continue
		}

		frame, err := s.stream.ParseNext()
		if errors.Is(err, io.EOF) {
			// An empty file would spin forever
			if restarted {
				return read, io.EOF
			}
			if err := s.rewind(); err != nil {
				return read, err
			}
			restarted = true
			continue
		}
		if err != nil {
			return read, err
		}

		block := int(frame.BlockSize)
		s.pending = s.pending[:0]
		for i := 0; i < block; i++ {
			for ch := 0; ch < s.channels; ch++ {
				s.pending = append(s.pending, audio.ScaleToInt16(frame.Subframes[ch].Samples[i], s.bitDepth))
			}
		}
	}

	return read, nil
}

func (s *FLAC) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	stream, err := flac.New(s.file)
	if err != nil {
		return fmt.Errorf("failed to restart stream: %w", err)
	}
	s.stream = stream
	return nil
}

func (s *FLAC) SampleRate() int { return s.sampleRate }
func (s *FLAC) Channels() int   { return s.channels }
func (s *FLAC) Metadata() (string, string, string) {
	return s.title, "Unknown Artist", "Unknown Album"
}
func (s *FLAC) Close() error { return s.file.Close() }
