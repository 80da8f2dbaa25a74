package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OrlandoFon/Backend-TCCRolamentos/dataset"
	"github.com/OrlandoFon/Backend-TCCRolamentos/kalman"
	"github.com/OrlandoFon/Backend-TCCRolamentos/simulation"
)

func TestStateApply(t *testing.T) {
	st := &state{meta: dataset.Metadata{Bearing: "Bearing1_2", Steps: 10, FDT: 4, EOL: 10}, gravity: 9.80665}

	st.apply(simulation.Event{Kind: simulation.KindIndicator, Step: 1,
		Indicator: &simulation.IndicatorUpdate{Raw: 2, Smoothed: 2, Gravity: 9.80665}})
	st.apply(simulation.Event{Kind: simulation.KindIndicator, Step: 2,
		Indicator: &simulation.IndicatorUpdate{Smoothed: 1, Gravity: 9.80665,
			Failure: &simulation.StepFailure{Err: dataset.ErrUnavailable}}})
	st.apply(simulation.Event{Kind: simulation.KindRUL, Step: 3,
		RUL: &kalman.RUL{Steps: 12.5, Outcome: kalman.Finite}})

	assert.Equal(t, []float64{2, 0}, st.raw)
	assert.Equal(t, []float64{2, 1}, st.smoothed)
	assert.Equal(t, 1, st.failures)
	assert.Equal(t, 3, st.step)
	require.NotNil(t, st.rul)
	assert.Equal(t, 3, st.rulStep)
	assert.Equal(t, []float64{12.5}, st.rulTrend)
	require.Len(t, st.feed, 2)
	assert.Equal(t, simulation.LabelUnavailable, st.feed[0].label)
	assert.Equal(t, "12.5 min", st.feed[1].label)
	assert.False(t, st.done)

	st.apply(simulation.Failure("Bearing1_2", errors.New("boom")))
	assert.True(t, st.done)
	assert.EqualError(t, st.err, "boom")
}

func TestRenderFrame(t *testing.T) {
	st := &state{meta: dataset.Metadata{Bearing: "Bearing1_2", Condition: "35Hz12kN", Steps: 10, FDT: 4, EOL: 10}, gravity: 9.80665}
	for i := 1; i <= 5; i++ {
		st.apply(simulation.Event{Kind: simulation.KindIndicator, Step: i,
			Indicator: &simulation.IndicatorUpdate{Raw: float64(i), Smoothed: float64(i), Gravity: 9.80665}})
	}
	st.apply(simulation.Event{Kind: simulation.KindRUL, Step: 5,
		RUL: &kalman.RUL{Steps: 4, Outcome: kalman.Finite}})

	frame := render(st, time.Now())
	lines := strings.Split(strings.TrimSuffix(frame, "\n"), "\n")
	for _, l := range lines {
		assert.Equal(t, width+2, visLen(l), "line %q", l)
	}
	assert.Contains(t, frame, "Bearing1_2")
	assert.Contains(t, frame, "4.0 min")
	assert.Contains(t, frame, "5/10")
}

func TestRulText(t *testing.T) {
	assert.Equal(t, "3.0 min", rulText(kalman.RUL{Steps: 3, Outcome: kalman.Finite}))
	assert.Equal(t, "undefined", rulText(kalman.RUL{Outcome: kalman.Undefined}))
	assert.Contains(t, rulText(kalman.RUL{Outcome: kalman.Unbounded}), "∞")
}

func TestSparklineAndDownsample(t *testing.T) {
	assert.Equal(t, "    ", sparkline(nil, 4, 1))
	assert.Equal(t, " ▄█", sparkline([]float64{0, 0.5, 1}, 3, 1))
	assert.Equal(t, "  ▄█", sparkline([]float64{0.5, 1}, 4, 1))
	assert.Equal(t, []float64{3, 4}, downsample([]float64{1, 3, 2, 4}, 2))
	assert.Equal(t, []float64{1, 2}, downsample([]float64{1, 2}, 4))
}

func TestVisLenAndClip(t *testing.T) {
	assert.Equal(t, 3, visLen(red+"abc"+rst))
	assert.Equal(t, "abc", clip("abc", 5))
	assert.Equal(t, "ab…", clip("abcdef", 3))
}

func TestErrorBar(t *testing.T) {
	assert.Equal(t, "──●──", errorBar(0, 10, 5))
	assert.Equal(t, "──┼●─", errorBar(5, 10, 5))
	assert.Equal(t, "●─┼──", errorBar(-10, 10, 5))
	assert.Equal(t, "──┼─●", errorBar(50, 10, 5))
	assert.Equal(t, "──●──", errorBar(3, 0, 5))
}
