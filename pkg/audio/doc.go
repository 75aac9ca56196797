// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, the drop-oldest RingBuffer and sample conversion functions
// Package audio provides the audio types shared by the bridge and its devices.
//
// Everything that crosses a package boundary is interleaved signed 16-bit PCM:
//   - Format: sample rate and channel layout of an interleaved stream
//   - RingBuffer: bounded FIFO with drop-oldest overflow, safe for one producer
//     and one consumer on different threads
//
// It also provides conversions at the device boundary:
//   - float32 ↔ int16
//   - n-bit integer → int16
//   - channel remapping (mono upmix, downmix, truncation)
//   - peak level and dBFS helpers for metering
//
// Example:
//
//	rb := audio.NewRingBuffer(4096)
//	rb.Push(captured)
//
//	batch := make([]int16, 512)
//	if rb.ReadExact(batch) {
//	    // send batch
//	}
package audio
