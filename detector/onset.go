// Package detector finds the failure-onset step of a bearing from the
// per-step envelope spectra of its vibration history.
package detector

import (
	"errors"
	"fmt"
	"slices"

	"github.com/OrlandoFon/Backend-TCCRolamentos/spectrum"
)

// Harmonics is the number of harmonics monitored per fault component.
const Harmonics = 3

// WindowHalfWidth is the half width, in steps, of the window reported
// around an onset.
const WindowHalfWidth = 3

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid detection parameters")

// Params tunes onset detection.
type Params struct {
	Warmup         int     `yaml:"warmup"`          // steps used to learn the baseline
	PersistenceLen int     `yaml:"persistence_len"` // consecutive exceedances required
	AmpOffset      float64 `yaml:"amp_offset"`      // margin above the baseline
}

// DefaultParams returns warmup 3, persistence 3, offset 0.02.
func DefaultParams() Params {
	return Params{Warmup: 3, PersistenceLen: 3, AmpOffset: 0.02}
}

// Validate reports whether p can drive a detection.
func (p Params) Validate() error {
	if p.Warmup < 0 {
		return fmt.Errorf("%w: warmup %d is negative", ErrInvalidParams, p.Warmup)
	}
	if p.PersistenceLen < 1 {
		return fmt.Errorf("%w: persistence length %d must be at least 1", ErrInvalidParams, p.PersistenceLen)
	}
	return nil
}

// Trigger identifies the monitored series that crossed the threshold.
type Trigger struct {
	Component spectrum.Component
	Harmonic  int
}

func (t Trigger) String() string {
	if t.Component == "" {
		return "none"
	}
	return fmt.Sprintf("%s×%d", t.Component, t.Harmonic)
}

// Onset is a detected failure onset.
type Onset struct {
	Step      int // index of the first step of the winning run
	Lo, Hi    int // bounds of the window around Step
	Trigger   Trigger
	Baseline  float64
	Threshold float64
}

type series struct {
	trigger Trigger
	bin     int
}

// monitored lists the spectral columns watched for onset, component-major
// in enumeration order.
func monitored(freqs []float64, ff spectrum.FaultFrequencies) []series {
	var out []series
	for _, c := range spectrum.Components() {
		for h := 1; h <= Harmonics; h++ {
			out = append(out, series{
				trigger: Trigger{Component: c, Harmonic: h},
				bin:     spectrum.NearestBin(freqs, float64(h)*ff.Base(c)),
			})
		}
	}
	return out
}

func at(row []float64, bin int) float64 {
	if bin < len(row) {
		return row[bin]
	}
	return 0
}

// Detect scans amps (steps × bins) for the first step at which any
// monitored series stays strictly above baseline+AmpOffset for
// PersistenceLen consecutive steps. The baseline is the largest monitored
// amplitude over the warmup steps, or 0 without warmup. Earlier steps win;
// at the same step the series order of monitored decides.
func Detect(amps [][]float64, freqs []float64, ff spectrum.FaultFrequencies, p Params) (Onset, bool) {
	n := len(amps)
	if p.Validate() != nil || len(freqs) == 0 || n < p.Warmup+p.PersistenceLen {
		return Onset{}, false
	}
	watch := monitored(freqs, ff)

	var baseline float64
	seen := false
	for _, s := range watch {
		for t := range p.Warmup {
			if v := at(amps[t], s.bin); !seen || v > baseline {
				baseline, seen = v, true
			}
		}
	}
	threshold := baseline + p.AmpOffset

	for start := p.Warmup; start <= n-p.PersistenceLen; start++ {
		for _, s := range watch {
			if !exceeds(amps[start:start+p.PersistenceLen], s.bin, threshold) {
				continue
			}
			return Onset{
				Step:      start,
				Lo:        max(p.Warmup, start-WindowHalfWidth),
				Hi:        min(n-1, start+WindowHalfWidth),
				Trigger:   s.trigger,
				Baseline:  baseline,
				Threshold: threshold,
			}, true
		}
	}
	return Onset{}, false
}

func exceeds(rows [][]float64, bin int, threshold float64) bool {
	for _, row := range rows {
		if !(at(row, bin) > threshold) {
			return false
		}
	}
	return true
}

// OnsetDetector accumulates spectra one step at a time and runs Detect
// over everything seen so far.
type OnsetDetector struct {
	params Params
	ff     spectrum.FaultFrequencies
	freqs  []float64
	rows   [][]float64
}

// NewOnsetDetector creates an OnsetDetector for one bearing.
func NewOnsetDetector(ff spectrum.FaultFrequencies, p Params) *OnsetDetector {
	return &OnsetDetector{params: p, ff: ff}
}

// Push records the spectrum of the next step. The first non-empty spectrum
// fixes the frequency axis.
func (d *OnsetDetector) Push(s spectrum.Spectrum) {
	if d.freqs == nil && s.Len() > 0 {
		d.freqs = slices.Clone(s.Frequency[:s.Len()])
	}
	d.rows = append(d.rows, slices.Clone(s.Amplitude[:s.Len()]))
}

// PushMissing records a step without a spectrum as a row of zeros, sized
// to the known axis or to bins when no axis is known yet.
func (d *OnsetDetector) PushMissing(bins int) {
	if d.freqs != nil {
		bins = len(d.freqs)
	}
	d.rows = append(d.rows, make([]float64, max(0, bins)))
}

// Steps returns the number of recorded steps.
func (d *OnsetDetector) Steps() int { return len(d.rows) }

// HasSpectrum reports whether any real spectrum has been recorded.
func (d *OnsetDetector) HasSpectrum() bool { return d.freqs != nil }

// Detect runs onset detection over the recorded steps.
func (d *OnsetDetector) Detect() (Onset, bool) {
	return Detect(d.rows, d.freqs, d.ff, d.params)
}
