// ABOUTME: mDNS advertisement and browsing for VBAN bridges
// ABOUTME: Publishes stream metadata in TXT records and parses them back into peers
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/sirupsen/logrus"
)

// ServiceType is the mDNS service advertised by bridges
const ServiceType = "_vban._udp"

// ErrPeerNotFound is returned by FindStream when no peer answers in time
var ErrPeerNotFound = errors.New("no peer found for stream")

// Config holds advertisement configuration
type Config struct {
	InstanceName string
	StreamName   string
	Port         int
	SampleRate   int
	Channels     int
	SessionID    string
	// IPs to advertise; local non-loopback IPv4 addresses when empty
	IPs []net.IP
}

// Peer describes a discovered bridge
type Peer struct {
	Instance   string
	Host       string
	Port       int
	Stream     string
	SampleRate int
	Channels   int
	ID         string
}

// Manager owns an mDNS advertisement
type Manager struct {
	config Config
	log    *logrus.Entry

	mu     sync.Mutex
	server *mdns.Server
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.InstanceName == "" {
		config.InstanceName = config.StreamName
	}
	return &Manager{
		config: config,
		log:    logrus.WithField("component", "discovery"),
	}
}

// Advertise publishes this bridge until Stop
func (m *Manager) Advertise() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		return nil
	}

	ips := m.config.IPs
	if len(ips) == 0 {
		var err error
		ips, err = localIPs()
		if err != nil {
			return fmt.Errorf("failed to get local IPs: %w", err)
		}
	}

	service, err := mdns.NewMDNSService(
		m.config.InstanceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		txtRecords(m.config),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}
	m.server = server

	m.log.WithFields(logrus.Fields{
		"instance": m.config.InstanceName,
		"stream":   m.config.StreamName,
		"port":     m.config.Port,
	}).Info("Advertising mDNS service")
	return nil
}

// Stop withdraws the advertisement. Safe to call more than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server == nil {
		return
	}
	if err := m.server.Shutdown(); err != nil {
		m.log.WithError(err).Warn("mDNS shutdown error")
	}
	m.server = nil
}

// Browse collects every bridge that answers within timeout
func Browse(ctx context.Context, timeout time.Duration) ([]Peer, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	var peers []Peer
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		seen := make(map[string]bool)
		for entry := range entries {
			p := peerFromEntry(entry)
			key := p.Instance + "|" + p.Host
			if seen[key] {
				continue
			}
			seen[key] = true
			peers = append(peers, p)
		}
	}()

	params := &mdns.QueryParam{
		Service:     ServiceType,
		Domain:      "local",
		Timeout:     timeout,
		Entries:     entries,
		DisableIPv6: true,
	}
	err := mdns.QueryContext(ctx, params)
	close(entries)
	<-collected

	if err != nil && !errors.Is(err, context.Canceled) {
		return peers, fmt.Errorf("mdns query failed: %w", err)
	}
	return peers, nil
}

// FindStream browses for a peer publishing stream
func FindStream(ctx context.Context, stream string, timeout time.Duration) (Peer, error) {
	peers, err := Browse(ctx, timeout)
	if err != nil {
		return Peer{}, err
	}
	for _, p := range peers {
		if p.Stream == stream {
			return p, nil
		}
	}
	return Peer{}, fmt.Errorf("%w %q", ErrPeerNotFound, stream)
}

func txtRecords(c Config) []string {
	txt := []string{"stream=" + c.StreamName}
	if c.SampleRate > 0 {
		txt = append(txt, "sr="+strconv.Itoa(c.SampleRate))
	}
	if c.Channels > 0 {
		txt = append(txt, "ch="+strconv.Itoa(c.Channels))
	}
	if c.SessionID != "" {
		txt = append(txt, "id="+c.SessionID)
	}
	return txt
}

func parseTXT(fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

func peerFromEntry(e *mdns.ServiceEntry) Peer {
	txt := parseTXT(e.InfoFields)

	p := Peer{
		Instance: strings.TrimSuffix(e.Name, "."+ServiceType+".local."),
		Port:     e.Port,
		Stream:   txt["stream"],
		ID:       txt["id"],
	}
	p.SampleRate, _ = strconv.Atoi(txt["sr"])
	p.Channels, _ = strconv.Atoi(txt["ch"])

	switch {
	case e.AddrV4 != nil:
		p.Host = e.AddrV4.String()
	case e.AddrV6 != nil:
		p.Host = e.AddrV6.String()
	default:
		p.Host = strings.TrimSuffix(e.Host, ".")
	}
	return p
}

func localIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil && !ipnet.IP.IsLoopback() {
				ips = append(ips, ipnet.IP)
			}
		}
	}

	return ips, nil
}
