// Package config holds the immutable run configuration: signal constants,
// processing parameters and the XJTU-SY bearing tables.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/OrlandoFon/Backend-TCCRolamentos/detector"
	"github.com/OrlandoFon/Backend-TCCRolamentos/spectrum"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Bearing describes a bearing with known ground truth.
type Bearing struct {
	Name      string  `yaml:"name"`
	Condition string  `yaml:"condition"`
	Label     string  `yaml:"label"`
	FDT       int     `yaml:"fdt"` // failure detection time, steps
	EOL       int     `yaml:"eol"` // true end of life, steps
	Vt        float64 `yaml:"vt"`  // process noise
	Wt        float64 `yaml:"wt"`  // measurement noise
}

// HighPass configures the envelope pre-filter.
type HighPass struct {
	Order  int     `yaml:"order"`
	Cutoff float64 `yaml:"cutoff"` // Hz
}

// Welch configures spectrum averaging.
type Welch struct {
	SegmentLength int  `yaml:"segment_length"`
	Overlap       int  `yaml:"overlap"`
	Hann          bool `yaml:"hann"`
}

// Config is the full run configuration.
type Config struct {
	SamplingRate    float64         `yaml:"sampling_rate"`  // Hz
	SignalLength    int             `yaml:"signal_length"`  // samples per step
	Gravity         float64         `yaml:"gravity"`        // m/s² per g
	WAVFullScale    float64         `yaml:"wav_full_scale"` // g at full scale
	HighPass        HighPass        `yaml:"high_pass"`
	Welch           Welch           `yaml:"welch"`
	Harmonics       int             `yaml:"harmonics"`
	BinHalfWidth    int             `yaml:"bin_half_width"`
	SmoothingWindow int             `yaml:"smoothing_window"`
	RULCadence      int             `yaml:"rul_cadence"` // steps between RUL evaluations
	LeadTime        int             `yaml:"lead_time"`   // steps before FDT where filtering starts
	StepDelay       time.Duration   `yaml:"step_delay"`
	Detector        detector.Params `yaml:"detector"`

	Conditions        map[string]spectrum.FaultFrequencies `yaml:"conditions"`
	FileCounts        map[string]int                       `yaml:"file_counts"`
	Bearings          map[string]Bearing                   `yaml:"bearings"`
	ReferenceBearings map[string][]string                  `yaml:"reference_bearings"`
}

// Default returns the configuration of the XJTU-SY run-to-failure dataset.
func Default() Config {
	return Config{
		SamplingRate:    25600,
		SignalLength:    32768,
		Gravity:         9.81,
		WAVFullScale:    50,
		HighPass:        HighPass{Order: 4, Cutoff: 1000},
		Welch:           Welch{SegmentLength: 8192, Overlap: 2048},
		Harmonics:       spectrum.DefaultHarmonics,
		BinHalfWidth:    0,
		SmoothingWindow: 4,
		RULCadence:      3,
		LeadTime:        10,
		Detector:        detector.DefaultParams(),
		Conditions: map[string]spectrum.FaultFrequencies{
			"35Hz12kN":   {FTF: 13.49, BSF: 72.33, BPFO: 107.91, BPFI: 172.09},
			"37.5Hz11kN": {FTF: 14.45, BSF: 77.50, BPFO: 115.62, BPFI: 184.38},
			"40Hz10kN":   {FTF: 15.42, BSF: 82.66, BPFO: 123.32, BPFI: 196.68},
		},
		FileCounts: map[string]int{
			"Bearing1_1": 123, "Bearing1_2": 161, "Bearing1_3": 158, "Bearing1_4": 122, "Bearing1_5": 52,
			"Bearing2_1": 491, "Bearing2_2": 161, "Bearing2_3": 533, "Bearing2_4": 42, "Bearing2_5": 339,
			"Bearing3_1": 2538, "Bearing3_2": 2496, "Bearing3_3": 371, "Bearing3_4": 1515, "Bearing3_5": 114,
		},
		Bearings: map[string]Bearing{
			"Bearing1_2": {Name: "Bearing1_2", Condition: "35Hz12kN", Label: "Artigo B1 (C1)", FDT: 35, EOL: 126, Vt: 0.1, Wt: 0.05},
			"Bearing1_3": {Name: "Bearing1_3", Condition: "35Hz12kN", Label: "Artigo B2 (C1)", FDT: 59, EOL: 151, Vt: 0.1, Wt: 0.05},
			"Bearing2_1": {Name: "Bearing2_1", Condition: "37.5Hz11kN", Label: "Artigo B3 (C2)", FDT: 446, EOL: 490, Vt: 0.02, Wt: 0.05},
			"Bearing2_2": {Name: "Bearing2_2", Condition: "37.5Hz11kN", Label: "Artigo B4 (C2)", FDT: 47, EOL: 160, Vt: 0.05, Wt: 0.08},
			"Bearing3_3": {Name: "Bearing3_3", Condition: "40Hz10kN", Label: "Artigo B5 (C3)", FDT: 327, EOL: 353, Vt: 0.1, Wt: 0.1},
			"Bearing3_4": {Name: "Bearing3_4", Condition: "40Hz10kN", Label: "Artigo B6 (C3)", FDT: 1418, EOL: 1478, Vt: 0.1, Wt: 0.1},
		},
		ReferenceBearings: map[string][]string{
			"35Hz12kN":   {"Bearing1_2", "Bearing1_3"},
			"37.5Hz11kN": {"Bearing2_1", "Bearing2_2"},
			"40Hz10kN":   {"Bearing3_3", "Bearing3_4"},
		},
	}
}

// Load reads a YAML file and overlays it on Default. Map entries in the
// file are merged into the default tables.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	for name, b := range cfg.Bearings {
		if b.Name == "" {
			b.Name = name
			cfg.Bearings[name] = b
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and cross references between tables.
func (c Config) Validate() error {
	switch {
	case c.SamplingRate <= 0:
		return fmt.Errorf("%w: sampling rate %g", ErrInvalid, c.SamplingRate)
	case c.SignalLength <= 0:
		return fmt.Errorf("%w: signal length %d", ErrInvalid, c.SignalLength)
	case c.Gravity <= 0:
		return fmt.Errorf("%w: gravity %g", ErrInvalid, c.Gravity)
	case c.HighPass.Order < 2 || c.HighPass.Order%2 != 0:
		return fmt.Errorf("%w: high-pass order %d", ErrInvalid, c.HighPass.Order)
	case c.HighPass.Cutoff <= 0 || c.HighPass.Cutoff >= c.SamplingRate/2:
		return fmt.Errorf("%w: high-pass cutoff %g Hz", ErrInvalid, c.HighPass.Cutoff)
	case c.Welch.SegmentLength <= 0:
		return fmt.Errorf("%w: segment length %d", ErrInvalid, c.Welch.SegmentLength)
	case c.Welch.Overlap < 0:
		return fmt.Errorf("%w: overlap %d", ErrInvalid, c.Welch.Overlap)
	case c.Harmonics < 1:
		return fmt.Errorf("%w: harmonics %d", ErrInvalid, c.Harmonics)
	case c.BinHalfWidth < 0:
		return fmt.Errorf("%w: bin half width %d", ErrInvalid, c.BinHalfWidth)
	case c.SmoothingWindow < 1:
		return fmt.Errorf("%w: smoothing window %d", ErrInvalid, c.SmoothingWindow)
	case c.RULCadence < 1:
		return fmt.Errorf("%w: rul cadence %d", ErrInvalid, c.RULCadence)
	case c.LeadTime < 0:
		return fmt.Errorf("%w: lead time %d", ErrInvalid, c.LeadTime)
	case c.StepDelay < 0:
		return fmt.Errorf("%w: step delay %s", ErrInvalid, c.StepDelay)
	}
	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	for _, name := range slices.Sorted(maps.Keys(c.Bearings)) {
		b := c.Bearings[name]
		if _, ok := c.Conditions[b.Condition]; !ok {
			return fmt.Errorf("%w: bearing %s uses unknown condition %q", ErrInvalid, name, b.Condition)
		}
		if b.Vt < 0 || b.Wt < 0 {
			return fmt.Errorf("%w: bearing %s has negative noise", ErrInvalid, name)
		}
	}
	for _, cond := range slices.Sorted(maps.Keys(c.ReferenceBearings)) {
		if _, ok := c.Conditions[cond]; !ok {
			return fmt.Errorf("%w: reference bearings under unknown condition %q", ErrInvalid, cond)
		}
	}
	return nil
}

// SpectrumOptions returns the Welch options for spectrum.Averaged.
func (c Config) SpectrumOptions() spectrum.Options {
	return spectrum.Options{
		SegmentLength: c.Welch.SegmentLength,
		Overlap:       c.Welch.Overlap,
		Hann:          c.Welch.Hann,
	}
}

// Bearing looks up a bearing with known ground truth.
func (c Config) Bearing(name string) (Bearing, bool) {
	b, ok := c.Bearings[name]
	return b, ok
}

// ArticleBearings returns the bearings with ground truth sorted by name.
func (c Config) ArticleBearings() []Bearing {
	out := make([]Bearing, 0, len(c.Bearings))
	for _, name := range slices.Sorted(maps.Keys(c.Bearings)) {
		out = append(out, c.Bearings[name])
	}
	return out
}

// StartIndex is the first step the filter sees for a bearing whose failure
// was detected at fdt.
func (c Config) StartIndex(fdt int) int {
	return max(0, fdt-c.LeadTime-1)
}
