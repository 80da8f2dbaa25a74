// Package indicator keeps the per-step ESI history of a bearing together
// with its centered moving average.
package indicator

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Smooth returns the centered moving average of xs over window points.
// Point i averages xs[i-window/2 .. i+(window-1)/2], clipped to the series,
// so the ends average fewer points.
func Smooth(xs []float64, window int) []float64 {
	window = max(1, window)
	before, after := window/2, (window-1)/2
	out := make([]float64, len(xs))
	for i := range xs {
		lo, hi := max(0, i-before), min(len(xs)-1, i+after)
		out[i] = floats.Sum(xs[lo:hi+1]) / float64(hi-lo+1)
	}
	return out
}

// History is the growing indicator record of one run. Every append
// recomputes the smoothed series over the whole history, so earlier
// smoothed values change as later points arrive.
type History struct {
	window   int
	raw      []float64
	smoothed []float64
}

// NewHistory returns an empty History smoothed over window points.
func NewHistory(window int) *History {
	return &History{window: max(1, window)}
}

// Append records v, substituting 0 for NaN or infinite values, and returns
// the smoothed value at the new point.
func (h *History) Append(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	h.raw = append(h.raw, v)
	h.smoothed = Smooth(h.raw, h.window)
	return h.smoothed[len(h.smoothed)-1]
}

// Len returns the number of recorded steps.
func (h *History) Len() int { return len(h.raw) }

// Raw returns a copy of the recorded values.
func (h *History) Raw() []float64 { return slices.Clone(h.raw) }

// Smoothed returns a copy of the current smoothed series.
func (h *History) Smoothed() []float64 { return slices.Clone(h.smoothed) }

// Max returns the largest recorded value, or 0 for an empty history.
func (h *History) Max() float64 {
	if len(h.raw) == 0 {
		return 0
	}
	return floats.Max(h.raw)
}
