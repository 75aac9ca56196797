// ABOUTME: Bridge application orchestration
// ABOUTME: Wires session, audio device, monitor server, mDNS and an optional feeder under one errgroup
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vbanbridge/vbanbridge-go/internal/config"
	"github.com/vbanbridge/vbanbridge-go/internal/server"
	"github.com/vbanbridge/vbanbridge-go/pkg/audio/device"
	"github.com/vbanbridge/vbanbridge-go/pkg/audio/source"
	"github.com/vbanbridge/vbanbridge-go/pkg/bridge"
	"github.com/vbanbridge/vbanbridge-go/pkg/discovery"
)

const (
	// DefaultDiscoveryTimeout bounds the mDNS lookup for remote_ip=auto
	DefaultDiscoveryTimeout = 3 * time.Second

	shutdownTimeout = 2 * time.Second
)

// DeviceFactory opens an audio device for a backend
type DeviceFactory func(backend string, cfg device.Config) (device.Device, error)

// Options configures a Bridge
type Options struct {
	Config *config.Config
	Logger *logrus.Logger

	// Source, when set, replaces device capture as the outgoing audio
	Source source.Source

	// OnStats receives a snapshot every StatsInterval while running
	OnStats       func(bridge.Stats)
	StatsInterval time.Duration

	DiscoveryTimeout time.Duration
	Devices          DeviceFactory
}

// Bridge runs one session end to end
type Bridge struct {
	opts Options
	log  *logrus.Entry

	session *bridge.Session
	dev     device.Device
	monitor *server.Server
	mdns    *discovery.Manager
}

// NewBridge creates a bridge; nothing is opened until Run
func NewBridge(opts Options) *Bridge {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = server.DefaultInterval
	}
	if opts.DiscoveryTimeout <= 0 {
		opts.DiscoveryTimeout = DefaultDiscoveryTimeout
	}
	if opts.Devices == nil {
		opts.Devices = device.New
	}
	return &Bridge{
		opts: opts,
		log:  logrus.NewEntry(opts.Logger),
	}
}

// Session returns the running session, or nil before Run has opened it
func (b *Bridge) Session() *bridge.Session {
	return b.session
}

// Run opens everything, blocks until ctx is cancelled, the session ends or
// the feeder finishes, then tears down in reverse order.
func (b *Bridge) Run(ctx context.Context) error {
	cfg := b.opts.Config
	sc := cfg.SessionConfig()
	sc.Logger = b.log

	if cfg.AutoRemote() {
		peer, err := discovery.FindStream(ctx, cfg.Network.StreamName, b.opts.DiscoveryTimeout)
		if err != nil {
			return fmt.Errorf("resolve remote: %w", err)
		}
		b.log.WithFields(logrus.Fields{
			"peer": peer.Instance,
			"host": peer.Host,
			"port": peer.Port,
		}).Info("Discovered remote bridge")
		sc.RemoteIP = peer.Host
		sc.Port = peer.Port
	}

	session, err := bridge.Open(sc)
	if err != nil {
		return err
	}
	b.session = session
	defer b.teardown()

	devCfg := cfg.DeviceConfig()
	devCfg.Logger = b.log
	devCfg.DisableCapture = b.opts.Source != nil
	dev, err := b.opts.Devices(cfg.Audio.Backend, devCfg)
	if err != nil {
		return fmt.Errorf("open audio device: %w", err)
	}
	if err := dev.Start(session); err != nil {
		return fmt.Errorf("start audio device: %w", err)
	}
	b.dev = dev

	if cfg.Monitor.Listen != "" {
		b.monitor = server.New(server.Config{
			Addr:   cfg.Monitor.Listen,
			Logger: b.log,
		}, session)
		if err := b.monitor.Start(); err != nil {
			return fmt.Errorf("start monitor: %w", err)
		}
	}

	if cfg.Monitor.MDNS {
		host, _ := os.Hostname()
		b.mdns = discovery.NewManager(discovery.Config{
			InstanceName: fmt.Sprintf("%s on %s", session.StreamName(), host),
			StreamName:   session.StreamName(),
			Port:         session.LocalAddr().Port,
			SampleRate:   sc.SampleRate,
			Channels:     sc.Channels,
			SessionID:    session.ID(),
		})
		if err := b.mdns.Advertise(); err != nil {
			b.log.WithError(err).Warn("mDNS advertisement unavailable")
			b.mdns = nil
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if b.opts.Source != nil {
		feeder := NewFeeder(b.opts.Source, session.Format(), session, b.log)
		g.Go(func() error {
			if err := feeder.Run(gctx); err != nil {
				return err
			}
			// A finished source ends the run
			return errSourceDone
		})
	}

	if b.opts.OnStats != nil {
		g.Go(func() error {
			b.publishStats(gctx)
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-session.Done():
			return bridge.ErrSessionClosed
		}
	})

	b.log.WithFields(logrus.Fields{
		"backend": dev.Name(),
		"local":   session.LocalAddr().String(),
		"remote":  session.RemoteAddr().String(),
	}).Info("Bridge running")

	err = g.Wait()
	if errors.Is(err, errSourceDone) {
		return nil
	}
	return err
}

var errSourceDone = errors.New("source finished")

func (b *Bridge) publishStats(ctx context.Context) {
	ticker := time.NewTicker(b.opts.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.opts.OnStats(b.session.Stats())
		}
	}
}

func (b *Bridge) teardown() {
	if b.mdns != nil {
		b.mdns.Stop()
	}
	if b.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := b.monitor.Shutdown(ctx); err != nil {
			b.log.WithError(err).Warn("Monitor shutdown error")
		}
		cancel()
	}
	if b.dev != nil {
		if err := b.dev.Stop(); err != nil {
			b.log.WithError(err).Warn("Audio device stop error")
		}
	}
	if b.session != nil {
		if err := b.session.Stop(); err != nil {
			b.log.WithError(err).Warn("Session stop error")
		}
	}
	b.log.Info("Bridge stopped")
}
