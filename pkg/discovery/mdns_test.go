// ABOUTME: Tests for mDNS discovery
// ABOUTME: Covers TXT encoding, entry parsing and manager lifecycle
package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
)

func TestNewManagerDefaultsInstance(t *testing.T) {
	m := NewManager(Config{StreamName: "Stream1", Port: 6980})
	assert.Equal(t, "Stream1", m.config.InstanceName)
}

func TestStopWithoutAdvertise(t *testing.T) {
	m := NewManager(Config{StreamName: "Stream1"})
	assert.NotPanics(t, func() {
		m.Stop()
		m.Stop()
	})
}

func TestTXTRecords(t *testing.T) {
	txt := txtRecords(Config{StreamName: "Mic", SampleRate: 48000, Channels: 2, SessionID: "abc"})
	assert.Equal(t, []string{"stream=Mic", "sr=48000", "ch=2", "id=abc"}, txt)

	assert.Equal(t, []string{"stream=Mic"}, txtRecords(Config{StreamName: "Mic"}))
}

func TestParseTXTSkipsMalformed(t *testing.T) {
	got := parseTXT([]string{"stream=A=B", "junk", "sr=44100"})
	assert.Equal(t, map[string]string{"stream": "A=B", "sr": "44100"}, got)
}

func TestPeerFromEntry(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "studio._vban._udp.local.",
		Host:       "studio.local.",
		AddrV4:     net.IPv4(192, 168, 1, 20),
		Port:       6980,
		InfoFields: []string{"stream=Stream1", "sr=48000", "ch=2", "id=1234"},
	}

	p := peerFromEntry(entry)
	assert.Equal(t, Peer{
		Instance:   "studio",
		Host:       "192.168.1.20",
		Port:       6980,
		Stream:     "Stream1",
		SampleRate: 48000,
		Channels:   2,
		ID:         "1234",
	}, p)
}

func TestPeerFromEntryFallsBackToHostname(t *testing.T) {
	p := peerFromEntry(&mdns.ServiceEntry{Name: "x._vban._udp.local.", Host: "box.local."})
	assert.Equal(t, "box.local", p.Host)
	assert.Equal(t, 0, p.SampleRate)
}
