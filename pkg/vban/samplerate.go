// ABOUTME: VBAN sample-rate table
// ABOUTME: Maps sample rates in Hz to the 5-bit index carried in format_SR
package vban

// sampleRates is the protocol sample-rate table, indexed by the low 5 bits of format_SR.
var sampleRates = [...]int{
	6000, 12000, 24000, 48000, 96000, 192000, 384000,
	8000, 16000, 32000, 64000, 128000, 256000, 512000,
	11025, 22050, 44100, 88200, 176400, 352800, 705600,
}

// SampleRateIndex returns the format_SR index for a rate in Hz
func SampleRateIndex(hz int) (byte, bool) {
	for i, r := range sampleRates {
		if r == hz {
			return byte(i), true
		}
	}
	return 0, false
}

// SampleRate returns the rate in Hz for a format_SR index
func SampleRate(index byte) (int, bool) {
	if int(index) >= len(sampleRates) {
		return 0, false
	}
	return sampleRates[index], true
}

// SupportedSampleRates lists every rate the protocol can carry, in table order
func SupportedSampleRates() []int {
	out := make([]int, len(sampleRates))
	copy(out, sampleRates[:])
	return out
}
