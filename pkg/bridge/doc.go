// ABOUTME: VBAN streaming engine package
// ABOUTME: Session owns the socket, both ring buffers and the receive and send loops
// Package bridge moves PCM audio between local ring buffers and a remote
// VBAN peer over UDP.
//
// Data flow:
//
//	capture callback → capture RingBuffer → send loop → socket → network
//	network → socket → receive loop → playback RingBuffer → playback callback
//
// A Session implements device.Engine, so an audio backend drives it
// directly: OnCapture feeds the capture buffer and RequestPlayback drains
// the playback buffer, substituting silence on underrun.
//
// The two loops each run on their own goroutine and stop cooperatively:
// Stop clears an atomic running flag, the receive loop notices within one
// read deadline and the send loop within one poll interval.
//
// Example:
//
//	cfg := bridge.DefaultConfig()
//	cfg.RemoteIP = "192.168.1.20"
//	cfg.StreamName = "Stream1"
//
//	s, err := bridge.Open(cfg)
//	if err != nil {
//	    return err
//	}
//	defer s.Stop()
package bridge
