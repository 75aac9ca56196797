// ABOUTME: Source that pipes any URL or format through an ffmpeg subprocess
// ABOUTME: Used for HLS playlists and containers the native decoders do not cover
package source

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/sirupsen/logrus"
)

// FFmpeg decodes through an external ffmpeg process into s16le
type FFmpeg struct {
	url        string
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	reader     *bufio.Reader
	sampleRate int
	channels   int
	buf        []byte
}

// NewFFmpeg starts ffmpeg decoding url to the given rate and channel count
func NewFFmpeg(url string, sampleRate, channels int) (*FFmpeg, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	cmd := exec.Command("ffmpeg",
		"-loglevel", "error",
		"-i", url,
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"url":         url,
		"sample_rate": sampleRate,
		"channels":    channels,
	}).Info("Streaming via ffmpeg")

	return &FFmpeg{
		url:        url,
		cmd:        cmd,
		stdout:     stdout,
		reader:     bufio.NewReader(stdout),
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

func (s *FFmpeg) Read(samples []int16) (int, error) {
	n, err := readPCM(s.reader, samples, &s.buf)
	if n > 0 && err == io.EOF {
		return n, nil
	}
	return n, err
}

func (s *FFmpeg) SampleRate() int { return s.sampleRate }
func (s *FFmpeg) Channels() int   { return s.channels }
func (s *FFmpeg) Metadata() (string, string, string) {
	return "Live Stream", s.url, ""
}
func (s *FFmpeg) Close() error {
	s.stdout.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}
	return nil
}
