// Package spectrum computes averaged envelope spectra (Welch) and the
// envelope spectrum indicator (ESI) aggregated over bearing fault
// frequencies and their harmonics.
package spectrum

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Spectrum is a single-sided amplitude spectrum. Amplitude[k] belongs to
// Frequency[k]; both hold SegmentLength/2 bins.
type Spectrum struct {
	Amplitude []float64
	Frequency []float64
}

// Len returns the number of bins.
func (s Spectrum) Len() int { return min(len(s.Amplitude), len(s.Frequency)) }

// Options configures Welch averaging.
type Options struct {
	SegmentLength int  // L, samples per segment
	Overlap       int  // samples shared by consecutive segments
	Hann          bool // periodic Hann taper instead of rectangular
}

// Averaged estimates the amplitude spectrum of env sampled at fs by
// averaging the power of overlapping segments. A non-positive segment
// length yields an empty spectrum.
func Averaged(env []float64, fs float64, opts Options) Spectrum {
	l := opts.SegmentLength
	if l <= 0 {
		return Spectrum{}
	}
	step := l - opts.Overlap
	if step <= 0 {
		step = l
	}
	if len(env) < l {
		padded := make([]float64, l)
		copy(padded, env)
		env = padded
	}
	segments := max(1, (len(env)-l)/step+1)

	win := taper(l, opts.Hann)
	fft := fourier.NewFFT(l)
	half := l / 2
	power := make([]float64, half)
	seg := make([]float64, l)
	var coeff []complex128
	norm := float64(l) * float64(l)

	for s := range segments {
		start := s * step
		clear(seg)
		copy(seg, env[start:min(start+l, len(env))])
		for i := range seg {
			seg[i] *= win[i]
		}
		coeff = fft.Coefficients(coeff, seg)
		for k := range half {
			re, im := real(coeff[k]), imag(coeff[k])
			power[k] += (re*re + im*im) / norm
		}
	}

	out := Spectrum{
		Amplitude: make([]float64, half),
		Frequency: make([]float64, half),
	}
	for k := range half {
		a := math.Sqrt(max(0, power[k]/float64(segments)))
		if k > 0 {
			a *= 2
		}
		out.Amplitude[k] = a
		out.Frequency[k] = float64(k) * fs / float64(l)
	}
	return out
}

// taper returns the n-point analysis window. The Hann window is periodic:
// a symmetric window over n+1 points with the last point dropped.
func taper(n int, hann bool) []float64 {
	w := make([]float64, n+1)
	for i := range w {
		w[i] = 1
	}
	if hann && n > 1 {
		w = window.Hann(w)
	}
	return w[:n]
}
