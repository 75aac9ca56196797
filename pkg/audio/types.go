// ABOUTME: Audio type definitions
// ABOUTME: Defines stream format and int16 sample conversions
package audio

import "math"

// Format describes an interleaved int16 stream
type Format struct {
	SampleRate int
	Channels   int
}

// SamplesPerFrames returns the interleaved sample count for n frames
func (f Format) SamplesPerFrames(n int) int {
	return n * f.Channels
}

// Float32ToInt16 converts normalized float samples into dst, clamping to [-1, 1].
// dst must be at least len(src) long.
func Float32ToInt16(dst []int16, src []float32) {
	for i, s := range src {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		dst[i] = int16(s * math.MaxInt16)
	}
}

// Int16ToFloat32 converts int16 samples into normalized floats in dst
func Int16ToFloat32(dst []float32, src []int16) {
	for i, s := range src {
		dst[i] = float32(s) / 32768
	}
}

// ScaleToInt16 converts a signed integer sample of the given bit depth to 16 bits
func ScaleToInt16(sample int32, bitDepth int) int16 {
	switch {
	case bitDepth == 16:
		return int16(sample)
	case bitDepth > 16:
		return int16(sample >> (bitDepth - 16))
	case bitDepth > 0:
		return int16(sample << (16 - bitDepth))
	default:
		return 0
	}
}

// RemapChannels converts interleaved src with srcCh channels into dstCh channels,
// appending to dst[:0]. Mono is duplicated to every output channel, any layout
// going to mono is averaged, other layouts copy the common channels and zero the rest.
func RemapChannels(dst []int16, src []int16, srcCh, dstCh int) []int16 {
	dst = dst[:0]
	if srcCh < 1 || dstCh < 1 {
		return dst
	}

	frames := len(src) / srcCh
	if srcCh == dstCh {
		return append(dst, src[:frames*srcCh]...)
	}

	for f := 0; f < frames; f++ {
		frame := src[f*srcCh : (f+1)*srcCh]

		switch {
		case srcCh == 1:
			for c := 0; c < dstCh; c++ {
				dst = append(dst, frame[0])
			}
		case dstCh == 1:
			var sum int32
			for _, s := range frame {
				sum += int32(s)
			}
			dst = append(dst, int16(sum/int32(srcCh)))
		default:
			for c := 0; c < dstCh; c++ {
				if c < srcCh {
					dst = append(dst, frame[c])
				} else {
					dst = append(dst, 0)
				}
			}
		}
	}

	return dst
}
