// ABOUTME: Receive loop: socket to playback ring buffer
// ABOUTME: Validates sender, packet, stream name and layout before enqueueing
package bridge

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vbanbridge/vbanbridge-go/pkg/vban"
)

// readBufferSize exceeds MaxPacketSize so oversized datagrams are seen
// truncated and fail the length check instead of passing as valid.
const readBufferSize = 2048

func (s *Session) receiveLoop(ready chan<- error) {
	defer s.wg.Done()

	if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReceiveTimeout)); err != nil {
		ready <- fmt.Errorf("receive setup: %w", err)
		return
	}
	ready <- nil

	buf := make([]byte, readBufferSize)
	var samples []int16

	for s.running.Load() {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReceiveTimeout)); err != nil {
			s.stats.readErrors.Add(1)
			time.Sleep(s.cfg.SendPollInterval)
			continue
		}

		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if !s.running.Load() {
				return
			}
			// ICMP unreachable from the peer surfaces here as ECONNREFUSED
			s.stats.readErrors.Add(1)
			s.log.WithError(err).Debug("Receive error")
			time.Sleep(s.cfg.SendPollInterval)
			continue
		}

		var reason dropReason
		samples, reason = s.handleDatagram(buf[:n], addr, samples)
		if reason != dropNone {
			s.stats.drop(reason)
			s.log.WithFields(logrus.Fields{
				"reason": reason.String(),
				"from":   addr.String(),
				"bytes":  n,
			}).Debug("Dropped packet")
		}
	}
}

// handleDatagram validates one datagram and pushes its samples into the
// playback buffer. scratch is reused for decoding and returned for the next call.
func (s *Session) handleDatagram(data []byte, from *net.UDPAddr, scratch []int16) ([]int16, dropReason) {
	if !s.cfg.AcceptAnySender && !from.IP.Equal(s.remote.IP) {
		return scratch, dropSender
	}

	h, samples, err := vban.DecodeTo(scratch, data)
	if err != nil {
		if errors.Is(err, vban.ErrUnsupportedFormat) {
			return samples, dropFormat
		}
		return samples, dropInvalid
	}

	if !s.cfg.AcceptAnyStream && h.Name() != s.StreamName() {
		return samples, dropStream
	}

	if rate, _ := h.SampleRate(); rate != s.cfg.SampleRate || h.Channels != s.cfg.Channels {
		return samples, dropFormat
	}

	rb := s.playback.Load()
	if rb == nil {
		return samples, dropNone
	}
	rb.Push(samples)

	s.stats.packetsReceived.Add(1)
	s.stats.bytesReceived.Add(uint64(len(data)))
	return samples, dropNone
}
