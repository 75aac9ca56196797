// ABOUTME: Tests for the drop-oldest ring buffer
// ABOUTME: Covers eviction law, all-or-nothing reads and concurrent use
package audio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(start, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(start + i)
	}
	return out
}

func TestPushOverflowKeepsNewest(t *testing.T) {
	rb := NewRingBuffer(1024)

	assert.Equal(t, 0, rb.Push(seq(0, 600)))
	evicted := rb.Push(seq(600, 600))

	assert.Equal(t, 176, evicted)
	assert.Equal(t, 1024, rb.Size())
	assert.Equal(t, uint64(176), rb.Evicted())

	out, ok := rb.PopExact(1024)
	require.True(t, ok)
	assert.Equal(t, seq(176, 1024), out, "oldest 176 of the first push evicted")
}

func TestDropOldestLaw(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		held     int
		push     int
	}{
		{"fits", 100, 10, 20},
		{"exactly full", 100, 60, 40},
		{"partial eviction", 100, 90, 30},
		{"push equals capacity", 100, 50, 100},
		{"push larger than capacity", 100, 50, 250},
		{"empty buffer oversized push", 100, 0, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := NewRingBuffer(tt.capacity)
			rb.Push(seq(0, tt.held))

			evicted := rb.Push(seq(tt.held, tt.push))

			want := tt.held + tt.push - tt.capacity
			if want < 0 {
				want = 0
			}
			assert.Equal(t, want, evicted)
			assert.LessOrEqual(t, rb.Size(), rb.Capacity())

			total := tt.held + tt.push
			remaining := rb.Size()
			out, ok := rb.PopExact(remaining)
			require.True(t, ok)
			assert.Equal(t, seq(total-remaining, remaining), out, "newest samples retained in order")
		})
	}
}

func TestPopExactAllOrNothing(t *testing.T) {
	rb := NewRingBuffer(16)
	rb.Push(seq(0, 5))

	out, ok := rb.PopExact(6)
	assert.False(t, ok)
	assert.Nil(t, out)
	assert.Equal(t, 5, rb.Size(), "failed pop leaves buffer unchanged")

	out, ok = rb.PopExact(3)
	require.True(t, ok)
	assert.Equal(t, seq(0, 3), out)
	assert.Equal(t, 2, rb.Size())

	_, ok = rb.PopExact(0)
	assert.False(t, ok)
	_, ok = rb.PopExact(-1)
	assert.False(t, ok)
}

func TestReadExact(t *testing.T) {
	rb := NewRingBuffer(8)
	rb.Push(seq(10, 4))

	dst := make([]int16, 4)
	require.True(t, rb.ReadExact(dst))
	assert.Equal(t, seq(10, 4), dst)
	assert.False(t, rb.ReadExact(dst))
	assert.False(t, rb.ReadExact(nil))
}

func TestResetAndEmptyPush(t *testing.T) {
	rb := NewRingBuffer(4)
	assert.Equal(t, 0, rb.Push(nil))
	rb.Push(seq(0, 3))
	rb.Reset()
	assert.Equal(t, 0, rb.Size())
	assert.Equal(t, 4, rb.Capacity())
}

func TestConcurrentProducerConsumer(t *testing.T) {
	rb := NewRingBuffer(512)
	const batches = 2000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < batches; i++ {
			rb.Push(seq(i, 64))
			assert.LessOrEqual(t, rb.Size(), rb.Capacity())
		}
	}()

	go func() {
		defer wg.Done()
		dst := make([]int16, 128)
		for i := 0; i < batches; i++ {
			rb.ReadExact(dst)
		}
	}()

	wg.Wait()
	assert.LessOrEqual(t, rb.Size(), rb.Capacity())
	assert.Equal(t, 0, rb.Size()%64, "pushes and reads are whole batches")
}
