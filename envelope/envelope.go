// Package envelope extracts the amplitude envelope of a vibration signal:
// a zero-phase Butterworth high-pass removes the shaft-rate content, then
// the magnitude of the analytic signal gives the envelope.
package envelope

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Analytic returns the analytic signal of x, x + i·H{x}, computed in the
// frequency domain by zeroing negative frequencies.
func Analytic(x []float64) []complex128 {
	n := len(x)
	if n == 0 {
		return nil
	}
	seq := make([]complex128, n)
	for i, v := range x {
		seq[i] = complex(v, 0)
	}

	fft := fourier.NewCmplxFFT(n)
	coeff := fft.Coefficients(nil, seq)
	for k := range coeff {
		coeff[k] *= complex(hilbertWeight(k, n), 0)
	}
	out := fft.Sequence(seq, coeff)

	scale := complex(1/float64(n), 0)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// hilbertWeight is the frequency-domain multiplier for bin k of an n-point
// transform: DC and Nyquist pass unchanged, positive frequencies double
// and negative frequencies vanish.
func hilbertWeight(k, n int) float64 {
	switch {
	case k == 0:
		return 1
	case n%2 == 0 && k == n/2:
		return 1
	case k < (n+1)/2:
		return 2
	}
	return 0
}

// Extractor turns raw signals into envelopes.
type Extractor struct {
	hp *HighPass
}

// NewExtractor returns an Extractor whose high-pass has the given order and
// cutoff (Hz) at sample rate fs (Hz).
func NewExtractor(order int, cutoff, fs float64) (*Extractor, error) {
	hp, err := NewHighPass(order, cutoff, fs)
	if err != nil {
		return nil, err
	}
	return &Extractor{hp: hp}, nil
}

// Envelope returns |analytic(highpass(signal))|, one value per sample.
func (e *Extractor) Envelope(signal []float64) ([]float64, error) {
	filtered, err := e.hp.FiltFilt(signal)
	if err != nil {
		return nil, err
	}
	analytic := Analytic(filtered)
	env := make([]float64, len(analytic))
	for i, c := range analytic {
		env[i] = cmplx.Abs(c)
	}
	return env, nil
}
