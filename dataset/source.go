// Package dataset provides vibration signals and bearing metadata for
// estimation runs: XJTU-SY style CSV and WAV trees on disk, and an
// in-memory source for synthetic runs.
package dataset

import (
	"errors"
	"fmt"

	"github.com/OrlandoFon/Backend-TCCRolamentos/config"
)

var (
	// ErrUnavailable marks a step whose signal cannot be read. Runs treat
	// it as a missing measurement, not a failure.
	ErrUnavailable = errors.New("signal unavailable")
	// ErrUnknownBearing is returned for bearings without metadata.
	ErrUnknownBearing = errors.New("unknown bearing")
)

// Metadata describes one bearing run.
type Metadata struct {
	Bearing   string
	Condition string
	Label     string
	FDT       int // configured failure detection time, steps
	EOL       int
	Steps     int // number of available steps, numbered from 1
	Vt, Wt    float64
}

// Source supplies signals and metadata. Signals are in m/s² and have the
// configured fixed length.
type Source interface {
	Signal(condition, bearing string, step int) ([]float64, error)
	Metadata(bearing string) (Metadata, error)
}

// catalog serves metadata from the configuration tables.
type catalog struct {
	cfg config.Config
}

func (c catalog) Metadata(bearing string) (Metadata, error) {
	b, ok := c.cfg.Bearing(bearing)
	if !ok {
		return Metadata{}, fmt.Errorf("%w: %s", ErrUnknownBearing, bearing)
	}
	return Metadata{
		Bearing:   b.Name,
		Condition: b.Condition,
		Label:     b.Label,
		FDT:       b.FDT,
		EOL:       b.EOL,
		Steps:     c.cfg.FileCounts[b.Name],
		Vt:        b.Vt,
		Wt:        b.Wt,
	}, nil
}

// FitLength zero-pads or truncates x to n samples.
func FitLength(x []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, x)
	return out
}

// Open returns the on-disk source for format ("csv" or "wav") rooted at root.
func Open(format, root string, cfg config.Config) (Source, error) {
	switch format {
	case "", "csv":
		return NewCSV(root, cfg), nil
	case "wav":
		return NewWAV(root, cfg), nil
	}
	return nil, fmt.Errorf("unsupported dataset format %q", format)
}
