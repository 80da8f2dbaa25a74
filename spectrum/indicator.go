package spectrum

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultHarmonics is the number of harmonics aggregated per component.
const DefaultHarmonics = 3

// NearestBin returns the index of the frequency closest to target. Ties
// resolve to the lowest index; an empty axis yields 0.
func NearestBin(freq []float64, target float64) int {
	best, bestDiff := 0, math.Inf(1)
	for i, f := range freq {
		if d := math.Abs(f - target); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}

// Indicator sums the amplitudes found at the first harmonics multiples of
// every fault frequency in ff. Each contribution covers the nearest bin
// widened by halfWidth bins on both sides, clipped to the spectrum.
func Indicator(s Spectrum, ff FaultFrequencies, harmonics, halfWidth int) float64 {
	n := s.Len()
	if n == 0 {
		return 0
	}
	amp, freq := s.Amplitude[:n], s.Frequency[:n]
	halfWidth = max(0, halfWidth)

	var esi float64
	for _, c := range Components() {
		base := ff.Base(c)
		for h := 1; h <= harmonics; h++ {
			idx := NearestBin(freq, float64(h)*base)
			lo, hi := max(0, idx-halfWidth), min(n-1, idx+halfWidth)
			esi += floats.Sum(amp[lo : hi+1])
		}
	}
	return esi
}
