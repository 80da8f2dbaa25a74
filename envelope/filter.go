package envelope

import (
	"errors"
	"fmt"
	"math"
)

// ErrSignalTooShort is returned when a signal cannot be padded for
// zero-phase filtering.
var ErrSignalTooShort = errors.New("signal too short for zero-phase filtering")

// biquad is one second-order section with a0 normalized to 1.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// HighPass is a Butterworth high-pass filter realized as cascaded
// second-order sections.
type HighPass struct {
	sections []biquad
	order    int
}

// NewHighPass designs an even-order Butterworth high-pass filter with the
// given cutoff (Hz) at sample rate fs (Hz).
func NewHighPass(order int, cutoff, fs float64) (*HighPass, error) {
	if order < 2 || order%2 != 0 {
		return nil, fmt.Errorf("high-pass order %d: must be even and at least 2", order)
	}
	if fs <= 0 || cutoff <= 0 || cutoff >= fs/2 {
		return nil, fmt.Errorf("high-pass cutoff %g Hz outside (0, %g)", cutoff, fs/2)
	}

	k := math.Tan(math.Pi * cutoff / fs)
	hp := &HighPass{order: order}
	for i := 1; i <= order/2; i++ {
		q := 1 / (2 * math.Sin(math.Pi*float64(2*i-1)/float64(2*order)))
		norm := 1 / (1 + k/q + k*k)
		hp.sections = append(hp.sections, biquad{
			b0: norm,
			b1: -2 * norm,
			b2: norm,
			a1: 2 * (k*k - 1) * norm,
			a2: (1 - k/q + k*k) * norm,
		})
	}
	return hp, nil
}

// PadLen is the number of samples reflected at each end before filtering.
func (h *HighPass) PadLen() int { return 3 * (h.order + 1) }

// FiltFilt runs the filter forward and backward over x so the result has
// no phase distortion. Both ends are extended by odd reflection and every
// section starts from its steady state.
func (h *HighPass) FiltFilt(x []float64) ([]float64, error) {
	pad := h.PadLen()
	n := len(x)
	if n <= pad {
		return nil, fmt.Errorf("%w: %d samples, need more than %d", ErrSignalTooShort, n, pad)
	}

	ext := make([]float64, n+2*pad)
	for i := range pad {
		ext[i] = 2*x[0] - x[pad-i]
		ext[n+pad+i] = 2*x[n-1] - x[n-2-i]
	}
	copy(ext[pad:], x)

	h.run(ext)
	reverse(ext)
	h.run(ext)
	reverse(ext)

	out := make([]float64, n)
	copy(out, ext[pad:pad+n])
	return out, nil
}

// run filters x in place through every section in transposed direct
// form II. Each section starts in the state a constant input of x[0],
// scaled by the DC gain of the preceding sections, would have settled to.
func (h *HighPass) run(x []float64) {
	level := x[0]
	for _, s := range h.sections {
		gain := (s.b0 + s.b1 + s.b2) / (1 + s.a1 + s.a2)
		z2 := (s.b2 - s.a2*gain) * level
		z1 := (s.b1 + s.b2 - (s.a1+s.a2)*gain) * level
		for i, v := range x {
			y := s.b0*v + z1
			z1 = s.b1*v - s.a1*y + z2
			z2 = s.b2*v - s.a2*y
			x[i] = y
		}
		level *= gain
	}
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
