// ABOUTME: Level metering helpers
// ABOUTME: Peak amplitude and dBFS conversion used by the monitor
package audio

import "math"

// MinDB is the floor reported for silence
const MinDB = -60.0

// Peak returns the largest absolute sample normalized to [0, 1]
func Peak(samples []int16) float32 {
	var peak int32
	for _, s := range samples {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return float32(peak) / 32768
}

// LinearToDB converts a normalized amplitude to dBFS, floored at MinDB
func LinearToDB(amplitude float64) float64 {
	db := 20 * math.Log10(amplitude+1e-6)
	if db < MinDB {
		return MinDB
	}
	return db
}
