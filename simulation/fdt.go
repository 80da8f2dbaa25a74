package simulation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/OrlandoFon/Backend-TCCRolamentos/config"
	"github.com/OrlandoFon/Backend-TCCRolamentos/dataset"
	"github.com/OrlandoFon/Backend-TCCRolamentos/detector"
)

// FdtInput is what an FdtSource may consult. A nil Log means the standard
// logrus logger.
type FdtInput struct {
	Config   config.Config
	Source   dataset.Source
	Analyzer Analyzer
	Metadata dataset.Metadata
	Log      logrus.FieldLogger
}

// Resolution is a resolved failure detection time.
type Resolution struct {
	FDT   int // step index of the onset
	Start int // first step index the filter sees
	Onset detector.Onset
}

// FdtSource decides where the degradation filter starts for a run.
type FdtSource interface {
	ResolveStartIndex(ctx context.Context, in FdtInput) (Resolution, error)
}

func orStandard(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return logrus.StandardLogger()
	}
	return log
}

func resolution(cfg config.Config, onset detector.Onset) Resolution {
	return Resolution{FDT: onset.Step, Start: cfg.StartIndex(onset.Step), Onset: onset}
}

// FixedFdt uses a known failure detection time.
type FixedFdt struct {
	Step int
}

// ResolveStartIndex implements FdtSource.
func (f FixedFdt) ResolveStartIndex(_ context.Context, in FdtInput) (Resolution, error) {
	if f.Step < 0 {
		return Resolution{}, fmt.Errorf("%w: negative failure detection time %d", ErrDetection, f.Step)
	}
	last := max(0, in.Metadata.Steps-1)
	return resolution(in.Config, detector.Onset{
		Step: f.Step,
		Lo:   max(0, f.Step-detector.WindowHalfWidth),
		Hi:   min(last, f.Step+detector.WindowHalfWidth),
	}), nil
}

// DynamicFdt detects the failure onset from the bearing's own spectra
// before the run starts. Every step is analyzed once; missing or failing
// steps count as all-zero spectra.
type DynamicFdt struct {
	Params detector.Params
}

// ResolveStartIndex implements FdtSource.
func (d DynamicFdt) ResolveStartIndex(ctx context.Context, in FdtInput) (Resolution, error) {
	meta := in.Metadata
	ff, ok := in.Config.Conditions[meta.Condition]
	if !ok {
		return Resolution{}, fmt.Errorf("%w: unknown condition %q", config.ErrInvalid, meta.Condition)
	}
	log := orStandard(in.Log).WithField("bearing", meta.Bearing)
	log.WithField("steps", meta.Steps).Info("collecting spectra for onset detection")

	od := detector.NewOnsetDetector(ff, d.Params)
	fallback := in.Config.Welch.SegmentLength / 2
	for step := 1; step <= meta.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return Resolution{}, err
		}
		sig, err := in.Source.Signal(meta.Condition, meta.Bearing, step)
		if err != nil {
			log.WithField("step", step).Debug("signal unavailable, recording empty spectrum")
			od.PushMissing(fallback)
			continue
		}
		spec, err := in.Analyzer.Spectrum(sig)
		if err != nil {
			log.WithError(err).WithField("step", step).Warn("spectrum failed, recording empty spectrum")
			od.PushMissing(fallback)
			continue
		}
		od.Push(spec)
	}

	if !od.HasSpectrum() {
		return Resolution{}, fmt.Errorf("%w: no envelope spectrum could be computed for %s", ErrDetection, meta.Bearing)
	}
	onset, ok := od.Detect()
	if !ok {
		return Resolution{}, fmt.Errorf("%w: no sustained threshold crossing for %s", ErrDetection, meta.Bearing)
	}
	log.WithFields(logrus.Fields{
		"fdt":       onset.Step,
		"trigger":   onset.Trigger.String(),
		"threshold": onset.Threshold,
	}).Info("failure onset detected")
	return resolution(in.Config, onset), nil
}
