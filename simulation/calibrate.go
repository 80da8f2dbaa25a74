package simulation

import (
	"context"
	"maps"
	"math"
	"slices"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/OrlandoFon/Backend-TCCRolamentos/config"
	"github.com/OrlandoFon/Backend-TCCRolamentos/dataset"
	"github.com/OrlandoFon/Backend-TCCRolamentos/spectrum"
)

// Calibrate computes the failure threshold gamma_bar: the mean, over the
// configured reference bearings, of each bearing's largest ESI across its
// whole history. Step counts come from cfg.FileCounts. Missing steps and
// steps whose spectrum fails are skipped.
func Calibrate(ctx context.Context, cfg config.Config, src dataset.Source, a Analyzer, log logrus.FieldLogger) (float64, error) {
	log = orStandard(log)
	var peaks []float64
	for _, cond := range slices.Sorted(maps.Keys(cfg.ReferenceBearings)) {
		ff, ok := cfg.Conditions[cond]
		if !ok {
			log.WithField("condition", cond).Warn("no fault frequencies for reference condition")
			continue
		}
		for _, bearing := range cfg.ReferenceBearings[cond] {
			peak, ok, err := peakIndicator(ctx, cfg, src, a, cond, bearing, ff, log)
			if err != nil {
				return 0, err
			}
			if ok {
				peaks = append(peaks, peak)
			}
		}
	}
	if len(peaks) == 0 {
		return 0, ErrCalibration
	}
	gamma := stat.Mean(peaks, nil)
	log.WithFields(logrus.Fields{"gamma_bar": gamma, "references": len(peaks)}).Info("threshold calibrated")
	return gamma, nil
}

func peakIndicator(ctx context.Context, cfg config.Config, src dataset.Source, a Analyzer,
	cond, bearing string, ff spectrum.FaultFrequencies, log logrus.FieldLogger) (float64, bool, error) {
	peak, found := 0.0, false
	for step := 1; step <= cfg.FileCounts[bearing]; step++ {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		sig, err := src.Signal(cond, bearing, step)
		if err != nil {
			continue
		}
		spec, err := a.Spectrum(sig)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{"bearing": bearing, "step": step}).Warn("skipping reference step")
			continue
		}
		esi := spectrum.Indicator(spec, ff, cfg.Harmonics, cfg.BinHalfWidth)
		if math.IsNaN(esi) {
			continue
		}
		if !found || esi > peak {
			peak, found = esi, true
		}
	}
	return peak, found, nil
}
