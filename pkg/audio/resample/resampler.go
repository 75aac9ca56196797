// ABOUTME: Streaming linear resampler for interleaved int16 audio
// ABOUTME: Carries the previous frame across chunks so block boundaries stay continuous
package resample

import "math"

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64 // in input frames, relative to the carried frame
	last       []int16
	primed     bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	if channels < 1 {
		channels = 1
	}
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		last:       make([]int16, channels),
	}
}

// Passthrough reports whether input and output rates match
func (r *Resampler) Passthrough() bool {
	return r.inputRate == r.outputRate
}

// Resample converts interleaved src at the input rate and appends the result
// at the output rate to dst[:0]. Trailing partial frames in src are ignored.
func (r *Resampler) Resample(dst, src []int16) []int16 {
	dst = dst[:0]
	ch := r.channels
	frames := len(src) / ch
	if frames == 0 {
		return dst
	}

	if r.Passthrough() {
		return append(dst, src[:frames*ch]...)
	}

	offset := 0
	if r.primed {
		offset = 1
	}
	total := frames + offset

	for {
		idx := int(r.position)
		if idx+1 >= total {
			break
		}
		frac := r.position - float64(idx)

		for c := 0; c < ch; c++ {
			a := float64(r.sample(src, idx, offset, c))
			b := float64(r.sample(src, idx+1, offset, c))
			dst = append(dst, clamp(math.Round(a+(b-a)*frac)))
		}
		r.position += r.ratio
	}

	// Rebase so the final frame of this chunk becomes index 0 of the next
	r.position -= float64(total - 1)
	copy(r.last, src[(frames-1)*ch:frames*ch])
	r.primed = true

	return dst
}

func (r *Resampler) sample(src []int16, idx, offset, c int) int16 {
	if idx < offset {
		return r.last[c]
	}
	return src[(idx-offset)*r.channels+c]
}

func clamp(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// Reset clears the carried frame and interpolation position
func (r *Resampler) Reset() {
	r.position = 0
	r.primed = false
	for i := range r.last {
		r.last[i] = 0
	}
}

// OutputSamplesNeeded estimates how many output samples inputSamples will produce
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(math.Ceil(float64(inputFrames) / r.ratio))
	return outputFrames * r.channels
}

// InputSamplesNeeded estimates how many input samples produce outputSamples
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(math.Ceil(float64(outputFrames) * r.ratio))
	return inputFrames * r.channels
}
