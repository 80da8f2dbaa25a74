package kalman

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func exponential(n int, scale, rate float64) []float64 {
	z := make([]float64, n)
	for t := range z {
		z[t] = scale * math.Exp(rate*float64(t))
	}
	return z
}

func TestDegradationStep(t *testing.T) {
	d := NewDegradation(1, 0.1, 0.1, 0.05)
	d.Predict()

	esi, rate := d.State()
	require.InDelta(t, math.Exp(0.1), esi, 1e-12)
	require.InDelta(t, 0.1, rate, 1e-12)
	p := d.Covariance()
	require.InDelta(t, 0.254280551632034, p.At(0, 0), 1e-12)
	require.InDelta(t, 0.11051709180756478, p.At(0, 1), 1e-12)
	require.InDelta(t, 0.1, p.At(1, 1), 1e-12)

	innovation := d.Update(1.2)
	require.InDelta(t, 0.09482908192435224, innovation, 1e-12)
	esi, rate = d.State()
	require.InDelta(t, 1.1990767497643255, esi, 1e-12)
	require.InDelta(t, 0.14081397242295388, rate, 1e-12)
	p = d.Covariance()
	require.InDelta(t, 0.0024756601504269784, p.At(0, 0), 1e-12)
	require.InDelta(t, 0.0010759877559373668, p.At(0, 1), 1e-12)
	require.InDelta(t, 0.052433984957301685, p.At(1, 1), 1e-12)
}

func TestEstimateConvergesOnNoiselessExponential(t *testing.T) {
	const (
		n    = 80
		rate = 0.05
	)
	z := exponential(n, 1, rate)
	gamma := math.Exp(rate * 200)

	got := EstimateRUL(z, 0, n, gamma, Noise{Process: 0.1, Measurement: 0.05})
	require.Equal(t, Finite, got.Outcome)
	require.Equal(t, n-1, got.Iterations)
	require.InDelta(t, rate, got.InitialRate, 1e-12)

	want := math.Log(gamma/z[n-2]) / rate
	require.InEpsilon(t, want, got.Steps, 1e-3)
	require.InEpsilon(t, want, got.Value(), 1e-3)
	require.InDelta(t, rate, got.Rate, 1e-4)
}

func TestEstimateErrorShrinksWithHistoryLength(t *testing.T) {
	const rate = 0.05
	gamma := math.Exp(rate * 200)
	noise := Noise{Process: 0.1, Measurement: 0.05}

	prev := math.Inf(1)
	for _, n := range []int{10, 20, 40, 80, 120} {
		z := exponential(n, 1, rate)
		got := EstimateRUL(z, 0, n, gamma, noise)
		require.Equal(t, Finite, got.Outcome, "n=%d", n)

		want := math.Log(gamma/z[n-2]) / rate
		rel := math.Abs(got.Steps-want) / want
		require.Less(t, rel, prev, "n=%d", n)
		prev = rel
	}
	require.Less(t, prev, 1e-6)
}

func TestEstimateUnboundedForDecayingHistory(t *testing.T) {
	got := EstimateRUL(exponential(40, 5, -0.05), 0, 40, 10, Noise{Process: 0.1, Measurement: 0.05})
	require.Equal(t, Unbounded, got.Outcome)
	require.Less(t, got.Rate, 0.0)
	require.True(t, math.IsInf(got.Value(), 1))
}

func TestEstimatePastThreshold(t *testing.T) {
	got := EstimateRUL(exponential(40, 1, 0.1), 0, 40, 2, Noise{Process: 0.1, Measurement: 0.05})
	require.Equal(t, Finite, got.Outcome)
	require.Zero(t, got.Value())
}

func TestEstimateShortSpan(t *testing.T) {
	z := make([]float64, 30)
	for i := range z {
		z[i] = 1
	}
	noise := Noise{Process: 0.1, Measurement: 0.05}

	require.Equal(t, Undefined, EstimateRUL(z, 29, 30, 5, noise).Outcome)
	require.Equal(t, Undefined, EstimateRUL(z, 40, 50, 5, noise).Outcome)
	require.True(t, math.IsNaN(EstimateRUL(z, 29, 30, 5, noise).Value()))

	got := EstimateRUL(z, 28, 30, 5, noise)
	require.Equal(t, Finite, got.Outcome)
	require.Equal(t, 1, got.Iterations)
	require.False(t, math.IsInf(got.Value(), 0))
}

func TestEstimateUndefined(t *testing.T) {
	noise := Noise{Process: 0.1, Measurement: 0.05}
	require.Equal(t, Undefined, EstimateRUL(make([]float64, 20), 0, 20, 5, noise).Outcome)
	require.Equal(t, Undefined, EstimateRUL(nil, 0, 5, 5, noise).Outcome)
	require.Equal(t, Undefined, EstimateRUL(exponential(20, 1, 0.1), 0, 20, 0, noise).Outcome)
	require.Equal(t, Undefined, EstimateRUL(exponential(20, 1, 0.1), -1, 20, 5, noise).Outcome)
}

func TestInitialRate(t *testing.T) {
	z := []float64{1, 2, 4, 4, 0}
	require.InDelta(t, math.Log(2), InitialRate(z, 1), 1e-12)
	require.InDelta(t, math.Log(2), InitialRate(z, 2), 1e-12)
	require.Equal(t, MinInitialRate, InitialRate(z, 3))
	require.Equal(t, MinInitialRate, InitialRate(z, 4))
	require.Equal(t, MinInitialRate, InitialRate(z, 0))
	require.Equal(t, MinInitialRate, InitialRate(z, 5))

	falling := []float64{4, 2}
	require.InDelta(t, math.Log(2), InitialRate(falling, 1), 1e-12)
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "finite", Finite.String())
	require.Equal(t, "unbounded", Unbounded.String())
	require.Equal(t, "undefined", Undefined.String())
}
