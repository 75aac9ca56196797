// ABOUTME: WAV file source built on youpy/go-wav
// ABOUTME: Accepts 16-bit integer PCM only and loops at end of file
package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/youpy/go-wav"
)

const wavFormatPCM = 1

// WAV reads a looping 16-bit PCM WAV file
type WAV struct {
	path       string
	file       *os.File
	reader     *wav.Reader
	sampleRate int
	channels   int
	buf        []byte
	fresh      bool
}

// NewWAV opens a WAV file
func NewWAV(path string) (*WAV, error) {
	s := &WAV{path: path}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *WAV) open() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open WAV file: %w", err)
	}

	r := wav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to read WAV format: %w", err)
	}
	if format.AudioFormat != wavFormatPCM || format.BitsPerSample != 16 {
		f.Close()
		return fmt.Errorf("%w: WAV must be 16-bit PCM, got format %d with %d bits",
			ErrUnsupportedFormat, format.AudioFormat, format.BitsPerSample)
	}

	s.file = f
	s.reader = r
	s.sampleRate = int(format.SampleRate)
	s.channels = int(format.NumChannels)
	s.fresh = true
	return nil
}

func (s *WAV) Read(samples []int16) (int, error) {
	if s.file == nil {
		return 0, io.EOF
	}

	n, err := readPCM(s.reader, samples, &s.buf)
	if err == nil {
		s.fresh = false
		return n, nil
	}
	if !errors.Is(err, io.EOF) {
		return n, err
	}
	// A data chunk with no samples would loop forever
	if n == 0 && s.fresh {
		return 0, io.EOF
	}

	s.file.Close()
	if err := s.open(); err != nil {
		s.file = nil
		return n, err
	}
	return n, nil
}

func (s *WAV) SampleRate() int { return s.sampleRate }
func (s *WAV) Channels() int   { return s.channels }
func (s *WAV) Metadata() (string, string, string) {
	return titleFromPath(s.path), "Unknown Artist", "Unknown Album"
}
func (s *WAV) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
