// ABOUTME: Process-wide logrus setup
// ABOUTME: Applies level and formatter, and routes output to a file when the TUI owns the terminal
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options controls logger setup
type Options struct {
	Level  string
	Format string
	File   string
	// Quiet suppresses terminal output; logs still go to File when set
	Quiet bool
}

// Setup configures logger and returns a closer for any opened log file
func Setup(logger *logrus.Logger, opts Options) (io.Closer, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	switch opts.Format {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("log format %q: want text or json", opts.Format)
	}

	var closer io.Closer = nopCloser{}
	var writers []io.Writer
	if !opts.Quiet {
		writers = append(writers, os.Stderr)
	}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
