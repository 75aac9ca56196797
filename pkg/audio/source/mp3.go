// ABOUTME: MP3 file and HTTP stream sources
// ABOUTME: Decodes with go-mp3, which always yields 16-bit stereo
package source

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/hajimehoshi/go-mp3"
	"github.com/sirupsen/logrus"
)

// MP3 reads a looping MP3 file
type MP3 struct {
	file    *os.File
	decoder *mp3.Decoder
	title   string
	buf     []byte
}

// NewMP3 opens an MP3 file
func NewMP3(path string) (*MP3, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	s := &MP3{file: f, decoder: decoder, title: titleFromPath(path)}
	logrus.WithFields(logrus.Fields{
		"title":       s.title,
		"sample_rate": decoder.SampleRate(),
	}).Info("Loaded MP3")
	return s, nil
}

func (s *MP3) Read(samples []int16) (int, error) {
	n, err := readPCM(s.decoder, samples, &s.buf)
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, io.EOF) {
		return n, err
	}

	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return n, fmt.Errorf("failed to seek to start: %w", err)
	}
	decoder, err := mp3.NewDecoder(s.file)
	if err != nil {
		return n, fmt.Errorf("failed to restart decoder: %w", err)
	}
	s.decoder = decoder
	return n, nil
}

func (s *MP3) SampleRate() int { return s.decoder.SampleRate() }
func (s *MP3) Channels() int   { return 2 }
func (s *MP3) Metadata() (string, string, string) {
	return s.title, "Unknown Artist", "Unknown Album"
}
func (s *MP3) Close() error { return s.file.Close() }

// HTTPMP3 streams MP3 from an HTTP URL and ends at EOF
type HTTPMP3 struct {
	url      string
	response *http.Response
	decoder  *mp3.Decoder
	buf      []byte
}

// NewHTTPMP3 connects to url and starts decoding
func NewHTTPMP3(url string) (*HTTPMP3, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch HTTP stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	decoder, err := mp3.NewDecoder(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to decode MP3 stream: %w", err)
	}

	return &HTTPMP3{url: url, response: resp, decoder: decoder}, nil
}

func (s *HTTPMP3) Read(samples []int16) (int, error) {
	n, err := readPCM(s.decoder, samples, &s.buf)
	if n > 0 && errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

func (s *HTTPMP3) SampleRate() int { return s.decoder.SampleRate() }
func (s *HTTPMP3) Channels() int   { return 2 }
func (s *HTTPMP3) Metadata() (string, string, string) {
	return "HTTP Stream", s.url, ""
}
func (s *HTTPMP3) Close() error { return s.response.Body.Close() }

// readPCM fills samples with little-endian int16 read from r. A short read
// at the end of the stream returns the samples it got together with io.EOF.
func readPCM(r io.Reader, samples []int16, scratch *[]byte) (int, error) {
	need := len(samples) * 2
	if cap(*scratch) < need {
		*scratch = make([]byte, need)
	}
	buf := (*scratch)[:need]

	n, err := io.ReadFull(r, buf)
	got := le16(samples, buf[:n&^1])
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return got, err
}
