// ABOUTME: Session configuration with defaults and validation
// ABOUTME: Zero values fall back to protocol defaults, except LocalPort where 0 means ephemeral
package bridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vbanbridge/vbanbridge-go/pkg/vban"
)

const (
	// DefaultBufferSamples is the capacity of each ring buffer
	DefaultBufferSamples = 4096

	// DefaultReceiveTimeout bounds how long the receive loop blocks
	DefaultReceiveTimeout = 100 * time.Millisecond

	// DefaultSendPollInterval is how long the send loop sleeps when starved
	DefaultSendPollInterval = time.Millisecond
)

// ErrInvalidConfig wraps every configuration validation failure
var ErrInvalidConfig = errors.New("invalid session config")

// Config holds session configuration
type Config struct {
	// RemoteIP is the peer host; packets are sent there and, unless
	// AcceptAnySender is set, only packets from it are accepted.
	RemoteIP string
	// Port is the peer's UDP port
	Port int

	BindAddress string
	// LocalPort is the port to listen on; 0 picks an ephemeral port
	LocalPort int

	// StreamName is truncated to 16 bytes
	StreamName string
	SampleRate int
	Channels   int

	// BufferSamples is the capacity in samples of each ring buffer
	BufferSamples int

	AcceptAnySender bool
	AcceptAnyStream bool

	ReceiveTimeout   time.Duration
	SendPollInterval time.Duration

	// ReadBufferBytes sets SO_RCVBUF when positive
	ReadBufferBytes int
	// TOS sets the IPv4 type-of-service byte when positive
	TOS int

	Logger *logrus.Entry
}

// DefaultConfig returns a configuration with protocol defaults and the
// standard local port
func DefaultConfig() Config {
	return Config{
		Port:             vban.DefaultPort,
		BindAddress:      "0.0.0.0",
		LocalPort:        vban.DefaultPort,
		StreamName:       "Stream1",
		SampleRate:       vban.DefaultSampleRate,
		Channels:         2,
		BufferSamples:    DefaultBufferSamples,
		ReceiveTimeout:   DefaultReceiveTimeout,
		SendPollInterval: DefaultSendPollInterval,
	}
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = vban.DefaultPort
	}
	if c.BindAddress == "" {
		c.BindAddress = "0.0.0.0"
	}
	if c.SampleRate == 0 {
		c.SampleRate = vban.DefaultSampleRate
	}
	if c.Channels == 0 {
		c.Channels = 2
	}
	if c.BufferSamples == 0 {
		c.BufferSamples = DefaultBufferSamples
	}
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = DefaultReceiveTimeout
	}
	if c.SendPollInterval <= 0 {
		c.SendPollInterval = DefaultSendPollInterval
	}
	if c.Logger == nil {
		c.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return c
}

// Validate reports the first problem with the configuration
func (c Config) Validate() error {
	if c.RemoteIP == "" {
		return fmt.Errorf("%w: remote IP is required", ErrInvalidConfig)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.LocalPort < 0 || c.LocalPort > 65535 {
		return fmt.Errorf("%w: local port %d out of range", ErrInvalidConfig, c.LocalPort)
	}
	if _, ok := vban.SampleRateIndex(c.SampleRate); !ok {
		return fmt.Errorf("%w: %w: %d Hz", ErrInvalidConfig, vban.ErrUnsupportedRate, c.SampleRate)
	}
	if c.Channels < 1 || c.Channels > vban.MaxChannels {
		return fmt.Errorf("%w: %d channels (want 1..%d)", ErrInvalidConfig, c.Channels, vban.MaxChannels)
	}
	if batch := vban.MaxFramesPerPacket(c.Channels) * c.Channels; c.BufferSamples < batch {
		return fmt.Errorf("%w: buffer of %d samples cannot hold one %d-sample packet",
			ErrInvalidConfig, c.BufferSamples, batch)
	}
	if c.TOS < 0 || c.TOS > 255 {
		return fmt.Errorf("%w: tos %d out of range", ErrInvalidConfig, c.TOS)
	}
	return nil
}
