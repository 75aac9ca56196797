// ABOUTME: Bounded FIFO of interleaved int16 samples with drop-oldest overflow
// ABOUTME: Decouples the audio hardware clock from the network clock
package audio

import "sync"

// RingBuffer is a fixed-capacity FIFO backed by one contiguous slice.
// Live data always starts at index 0; reads and evictions shift the remainder
// to the front. Push never blocks and never fails: on overflow the oldest
// samples are discarded so latency stays bounded.
type RingBuffer struct {
	mu      sync.Mutex
	data    []int16
	size    int
	evicted uint64
}

// NewRingBuffer creates a ring buffer holding up to capacity samples.
// capacity must be positive.
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{
		data: make([]int16, capacity),
	}
}

// Push appends samples, first evicting exactly size+len(samples)-capacity of
// the oldest samples when they would not fit. It returns the number evicted.
func (rb *RingBuffer) Push(samples []int16) int {
	if len(samples) == 0 {
		return 0
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	capacity := len(rb.data)
	overflow := rb.size + len(samples) - capacity
	if overflow <= 0 {
		copy(rb.data[rb.size:], samples)
		rb.size += len(samples)
		return 0
	}

	rb.evicted += uint64(overflow)

	if overflow >= rb.size {
		// Everything buffered goes, plus the head of the incoming batch
		copy(rb.data, samples[overflow-rb.size:])
		rb.size = capacity
		return overflow
	}

	copy(rb.data, rb.data[overflow:rb.size])
	rb.size -= overflow
	copy(rb.data[rb.size:], samples)
	rb.size += len(samples)
	return overflow
}

// PopExact removes and returns exactly n samples, or returns false and leaves
// the buffer untouched when fewer than n are buffered or n <= 0.
func (rb *RingBuffer) PopExact(n int) ([]int16, bool) {
	if n <= 0 {
		return nil, false
	}
	out := make([]int16, n)
	if !rb.ReadExact(out) {
		return nil, false
	}
	return out, true
}

// ReadExact fills dst completely from the head of the buffer, or returns false
// without consuming anything. It does not allocate.
func (rb *RingBuffer) ReadExact(dst []int16) bool {
	n := len(dst)
	if n == 0 {
		return false
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.size < n {
		return false
	}

	copy(dst, rb.data[:n])
	copy(rb.data, rb.data[n:rb.size])
	rb.size -= n
	return true
}

// Size returns the number of buffered samples
func (rb *RingBuffer) Size() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size
}

// Capacity returns the fixed capacity in samples
func (rb *RingBuffer) Capacity() int {
	return len(rb.data)
}

// Evicted returns the total number of samples discarded by overflow
func (rb *RingBuffer) Evicted() uint64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.evicted
}

// Reset discards all buffered samples
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.size = 0
}
