package spectrum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func synthetic(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		t := float64(i)
		x[i] = 1.5 + math.Sin(0.37*t) + 0.4*math.Cos(1.9*t+0.3) + 0.1*math.Sin(0.011*t*t)
	}
	return x
}

func TestAveragedShape(t *testing.T) {
	s := Averaged(synthetic(1000), 25600, Options{SegmentLength: 256, Overlap: 64})
	require.Len(t, s.Amplitude, 128)
	require.Len(t, s.Frequency, 128)
	require.Equal(t, 128, s.Len())

	for k := 1; k < s.Len(); k++ {
		require.Greater(t, s.Frequency[k], s.Frequency[k-1])
	}
	for _, a := range s.Amplitude {
		require.GreaterOrEqual(t, a, 0.0)
	}
	require.InDelta(t, 100.0, s.Frequency[1], 1e-12)
}

func TestAveragedToneAmplitude(t *testing.T) {
	const l = 64
	env := make([]float64, 256)
	for i := range env {
		env[i] = 0.5 + 2*math.Cos(2*math.Pi*8*float64(i)/l)
	}

	s := Averaged(env, l, Options{SegmentLength: l, Overlap: 16})
	require.InDelta(t, 0.5, s.Amplitude[0], 1e-9)
	require.InDelta(t, 2.0, s.Amplitude[8], 1e-9)
	require.InDelta(t, 8.0, s.Frequency[8], 1e-12)
	for k, a := range s.Amplitude {
		if k != 0 && k != 8 {
			require.InDelta(t, 0, a, 1e-9, "bin %d", k)
		}
	}
}

func TestAveragedHannDC(t *testing.T) {
	env := make([]float64, 128)
	for i := range env {
		env[i] = 1
	}
	s := Averaged(env, 128, Options{SegmentLength: 128, Hann: true})
	require.InDelta(t, 0.5, s.Amplitude[0], 1e-9)
}

func TestAveragedEdgeCases(t *testing.T) {
	require.Zero(t, Averaged(synthetic(100), 1000, Options{}).Len())
	require.Zero(t, Averaged(synthetic(100), 1000, Options{SegmentLength: -4}).Len())

	short := Averaged(synthetic(10), 1000, Options{SegmentLength: 64})
	require.Equal(t, 32, short.Len())

	env := synthetic(500)
	fallback := Averaged(env, 1000, Options{SegmentLength: 64, Overlap: 64})
	plain := Averaged(env, 1000, Options{SegmentLength: 64})
	require.InDeltaSlice(t, plain.Amplitude, fallback.Amplitude, 1e-12)
}

func TestNearestBin(t *testing.T) {
	freq := []float64{0, 1, 2, 3}
	require.Equal(t, 1, NearestBin(freq, 1.5))
	require.Equal(t, 3, NearestBin(freq, 99))
	require.Equal(t, 0, NearestBin(freq, -4))
	require.Equal(t, 0, NearestBin(nil, 3))
}

func ramp(n int) Spectrum {
	s := Spectrum{Amplitude: make([]float64, n), Frequency: make([]float64, n)}
	for k := range n {
		s.Amplitude[k] = float64(k)
		s.Frequency[k] = float64(k)
	}
	return s
}

func TestIndicator(t *testing.T) {
	ff := FaultFrequencies{FTF: 10, BSF: 20, BPFO: 30, BPFI: 5}
	s := ramp(100)

	require.InDelta(t, 65.0, Indicator(s, ff, 1, 0), 1e-12)
	require.InDelta(t, 195.0, Indicator(s, ff, 2, 0), 1e-12)
	require.InDelta(t, 195.0, Indicator(s, ff, 1, 1), 1e-12)

	edge := FaultFrequencies{}
	require.InDelta(t, 4.0, Indicator(s, edge, 1, 1), 1e-12)
}

func TestIndicatorSingleBin(t *testing.T) {
	s := Spectrum{Amplitude: []float64{0.25}, Frequency: []float64{0}}
	ff := FaultFrequencies{FTF: 13.49, BSF: 72.33, BPFO: 107.91, BPFI: 172.09}
	require.InDelta(t, 3.0, Indicator(s, ff, DefaultHarmonics, 0), 1e-12)
}

func TestIndicatorEmpty(t *testing.T) {
	ff := FaultFrequencies{FTF: 1, BSF: 2, BPFO: 3, BPFI: 4}
	require.Zero(t, Indicator(Spectrum{}, ff, 3, 2))
}

func TestIndicatorMonotoneInHalfWidth(t *testing.T) {
	s := Averaged(synthetic(4096), 25600, Options{SegmentLength: 1024, Overlap: 256})
	ff := FaultFrequencies{FTF: 13.49, BSF: 72.33, BPFO: 107.91, BPFI: 172.09}

	prev := Indicator(s, ff, 3, 0)
	for bw := 1; bw <= 6; bw++ {
		cur := Indicator(s, ff, 3, bw)
		require.GreaterOrEqual(t, cur, prev, "bw %d", bw)
		prev = cur
	}
}
