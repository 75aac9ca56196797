// ABOUTME: Tests for the streaming linear resampler
// ABOUTME: Verifies passthrough, rate ratios and chunk continuity
package resample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(frames, channels int) []int16 {
	out := make([]int16, frames*channels)
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			out[f*channels+c] = int16(f*100 + c)
		}
	}
	return out
}

func TestPassthrough(t *testing.T) {
	r := New(48000, 48000, 2)
	require.True(t, r.Passthrough())

	in := ramp(10, 2)
	out := r.Resample(nil, append(in, 99))
	assert.Equal(t, in, out, "partial trailing frame dropped")
}

func TestUpsampleDoubles(t *testing.T) {
	r := New(24000, 48000, 1)
	out := r.Resample(nil, []int16{0, 100, 200})

	assert.Equal(t, []int16{0, 50, 100, 150}, out)
}

func TestDownsampleHalves(t *testing.T) {
	r := New(48000, 24000, 2)
	out := r.Resample(nil, ramp(8, 2))

	assert.Equal(t, []int16{0, 1, 200, 201, 400, 401, 600, 601}, out)
}

func TestChunkContinuity(t *testing.T) {
	in := ramp(64, 2)

	whole := New(24000, 48000, 2).Resample(nil, in)

	chunked := New(24000, 48000, 2)
	var joined []int16
	buf := make([]int16, 0, 256)
	for start := 0; start < len(in); start += 14 {
		end := start + 14
		if end > len(in) {
			end = len(in)
		}
		buf = chunked.Resample(buf, in[start:end])
		joined = append(joined, buf...)
	}

	assert.Equal(t, whole, joined)
}

func TestResetForgetsHistory(t *testing.T) {
	r := New(24000, 48000, 1)
	r.Resample(nil, []int16{1000, 2000})
	r.Reset()

	out := r.Resample(nil, []int16{0, 100})
	assert.Equal(t, []int16{0, 50}, out)
}

func TestSampleEstimates(t *testing.T) {
	r := New(24000, 48000, 2)
	assert.Equal(t, 2*1920, r.OutputSamplesNeeded(2*960))
	assert.Equal(t, 2*480, r.InputSamplesNeeded(2*960))
}
