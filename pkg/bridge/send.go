// ABOUTME: Send loop: capture ring buffer to socket
// ABOUTME: Sends fixed-size batches and advances the frame counter on each successful send
package bridge

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vbanbridge/vbanbridge-go/pkg/vban"
)

const sendLogInterval = 100

func (s *Session) sendLoop(ready chan<- error) {
	defer s.wg.Done()

	frames := vban.MaxFramesPerPacket(s.cfg.Channels)
	if frames == 0 {
		ready <- fmt.Errorf("send setup: no packet geometry for %d channels", s.cfg.Channels)
		return
	}
	batch := make([]int16, frames*s.cfg.Channels)
	packet := make([]byte, 0, vban.MaxPacketSize)
	ready <- nil

	for s.running.Load() {
		rb := s.capture.Load()
		if rb == nil || !rb.ReadExact(batch) {
			time.Sleep(s.cfg.SendPollInterval)
			continue
		}
		packet = s.sendBatch(packet, batch)
	}
}

// sendBatch encodes and transmits one batch. Failures are counted and the
// batch abandoned; the next batch supersedes it.
func (s *Session) sendBatch(packet []byte, batch []int16) []byte {
	frame := s.frame.Load()
	pkt, err := vban.Encode(packet[:0], s.streamName, s.cfg.SampleRate, frame, batch, s.cfg.Channels)
	if err != nil {
		s.stats.encodeErrors.Add(1)
		s.log.WithError(err).Debug("Encode failed")
		return packet
	}

	if _, err := s.conn.WriteToUDP(pkt, s.remote); err != nil {
		s.stats.sendErrors.Add(1)
		s.log.WithError(err).Debug("Send failed")
		return pkt
	}

	s.frame.Add(1)
	sent := s.stats.packetsSent.Add(1)
	s.stats.bytesSent.Add(uint64(len(pkt)))

	if sent%sendLogInterval == 0 {
		s.log.WithFields(logrus.Fields{
			"packets":  sent,
			"frame":    frame,
			"buffered": s.capture.Load().Size(),
		}).Debug("Send progress")
	}
	return pkt
}
