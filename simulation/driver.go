// Package simulation replays a bearing's vibration history step by step,
// emitting the health indicator at every step and a remaining-useful-life
// estimate at a fixed cadence once the degradation filter has started.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OrlandoFon/Backend-TCCRolamentos/config"
	"github.com/OrlandoFon/Backend-TCCRolamentos/dataset"
	"github.com/OrlandoFon/Backend-TCCRolamentos/indicator"
	"github.com/OrlandoFon/Backend-TCCRolamentos/kalman"
	"github.com/OrlandoFon/Backend-TCCRolamentos/spectrum"
)

var (
	// ErrCalibration means no reference bearing produced an indicator.
	ErrCalibration = errors.New("gamma_bar calibration produced no indicator values")
	// ErrDetection means the failure detection time could not be resolved.
	ErrDetection = errors.New("failure detection time could not be resolved")
	// ErrNotFinite marks a step whose indicator came out NaN or infinite.
	ErrNotFinite = errors.New("indicator is not finite")
	// ErrDriverConsumed is reported when a driver's stream is requested twice.
	ErrDriverConsumed = errors.New("driver event stream already consumed")
)

// Option configures a Driver.
type Option func(*Driver)

// WithAnalyzer replaces the envelope analyzer built from the configuration.
func WithAnalyzer(a Analyzer) Option {
	return func(d *Driver) { d.analyzer = a }
}

// WithFdtSource replaces the configured failure detection time.
func WithFdtSource(f FdtSource) Option {
	return func(d *Driver) { d.fdt = f }
}

// WithThreshold skips calibration and uses gamma as the failure threshold.
func WithThreshold(gamma float64) Option {
	return func(d *Driver) { d.threshold = &gamma }
}

// WithLogger sets the logger. The standard logrus logger is the default
// and replaces a nil log.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Driver) { d.log = log }
}

// Driver runs one bearing. Its event stream can be consumed once.
type Driver struct {
	cfg       config.Config
	source    dataset.Source
	bearing   string
	analyzer  Analyzer
	fdt       FdtSource
	threshold *float64
	log       logrus.FieldLogger
	consumed  atomic.Bool
}

// New returns a Driver for bearing. Nothing is read until the stream is
// consumed.
func New(cfg config.Config, src dataset.Source, bearing string, opts ...Option) *Driver {
	d := &Driver{
		cfg:     cfg,
		source:  src,
		bearing: bearing,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logrus.StandardLogger()
	}
	return d
}

// Events returns the run as a sequence. The sequence ends after the
// completion event, after a single error event, when the consumer stops,
// or when ctx is done. Ranging over it a second time yields one error
// event wrapping ErrDriverConsumed.
func (d *Driver) Events(ctx context.Context) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		if !d.consumed.CompareAndSwap(false, true) {
			yield(Failure(d.bearing, fmt.Errorf("%s: %w", d.bearing, ErrDriverConsumed)))
			return
		}
		d.run(ctx, yield)
	}
}

// Stream is a pull iterator over a driver's events.
type Stream struct {
	next func() (Event, bool)
	stop func()
}

// Stream returns the run as a pull iterator.
func (d *Driver) Stream(ctx context.Context) *Stream {
	next, stop := iter.Pull(d.Events(ctx))
	return &Stream{next: next, stop: stop}
}

// Next returns the next event; ok is false once the stream is exhausted.
func (s *Stream) Next() (ev Event, ok bool) { return s.next() }

// Close stops the run early. It is safe to call more than once.
func (s *Stream) Close() { s.stop() }

type stepResult struct {
	value   float64
	failure *StepFailure
}

// run resolves metadata, the threshold and the filter start, then steps
// through the history.
func (d *Driver) run(ctx context.Context, yield func(Event) bool) {
	log := d.log.WithField("bearing", d.bearing)

	meta, err := d.source.Metadata(d.bearing)
	if err != nil {
		yield(Failure(d.bearing, err))
		return
	}
	ff, ok := d.cfg.Conditions[meta.Condition]
	if !ok {
		yield(Failure(d.bearing, fmt.Errorf("%w: no fault frequencies for condition %q", config.ErrInvalid, meta.Condition)))
		return
	}
	analyzer := d.analyzer
	if analyzer == nil {
		a, err := NewEnvelopeAnalyzer(d.cfg)
		if err != nil {
			yield(Failure(d.bearing, fmt.Errorf("%w: %w", config.ErrInvalid, err)))
			return
		}
		analyzer = a
	}

	var gamma float64
	if d.threshold != nil {
		gamma = *d.threshold
	} else {
		log.Info("calibrating failure threshold")
		gamma, err = Calibrate(ctx, d.cfg, d.source, analyzer, d.log)
		if err != nil {
			yield(Failure(d.bearing, err))
			return
		}
	}

	fdt := d.fdt
	if fdt == nil {
		fdt = FixedFdt{Step: meta.FDT}
	}
	res, err := fdt.ResolveStartIndex(ctx, FdtInput{
		Config:   d.cfg,
		Source:   d.source,
		Analyzer: analyzer,
		Metadata: meta,
		Log:      d.log,
	})
	if err != nil {
		yield(Failure(d.bearing, err))
		return
	}
	log.WithFields(logrus.Fields{
		"fdt":       res.FDT,
		"start":     res.Start,
		"gamma_bar": gamma,
		"steps":     meta.Steps,
	}).Info("run started")

	cadence := max(1, d.cfg.RULCadence)
	hist := indicator.NewHistory(d.cfg.SmoothingWindow)
	noise := kalman.Noise{Process: meta.Vt, Measurement: meta.Wt}
	for step := 1; step <= meta.Steps; step++ {
		if ctx.Err() != nil {
			return
		}
		r := d.measure(analyzer, ff, meta, step)
		if r.failure != nil {
			log.WithError(r.failure.Err).WithField("step", step).Debug("step without indicator")
		}
		smoothed := hist.Append(r.value)
		if !yield(Event{
			Kind:    KindIndicator,
			Bearing: d.bearing,
			Step:    step,
			Indicator: &IndicatorUpdate{
				Raw:      r.value,
				Smoothed: smoothed,
				Gravity:  d.cfg.Gravity,
				Failure:  r.failure,
			},
		}) {
			return
		}

		if step-1 > res.Start && step%cadence == 0 {
			est := kalman.EstimateRUL(hist.Smoothed()[:step], res.Start, step, gamma, noise)
			log.WithFields(logrus.Fields{"step": step, "rul": est.Value(), "outcome": est.Outcome}).Debug("rul estimated")
			if !yield(Event{Kind: KindRUL, Bearing: d.bearing, Step: step, RUL: &est}) {
				return
			}
		}

		if d.cfg.StepDelay > 0 && step < meta.Steps {
			if err := sleep(ctx, d.cfg.StepDelay); err != nil {
				return
			}
		}
	}
	log.Info("run completed")
	yield(Event{Kind: KindCompletion, Bearing: d.bearing, Step: meta.Steps})
}

// measure computes one step's raw indicator. Failures are returned as
// values with a NaN indicator.
func (d *Driver) measure(a Analyzer, ff spectrum.FaultFrequencies, meta dataset.Metadata, step int) stepResult {
	sig, err := d.source.Signal(meta.Condition, meta.Bearing, step)
	if err != nil {
		return stepResult{value: math.NaN(), failure: &StepFailure{Err: err}}
	}
	spec, err := a.Spectrum(sig)
	if err != nil {
		return stepResult{value: math.NaN(), failure: &StepFailure{Err: err}}
	}
	esi := spectrum.Indicator(spec, ff, d.cfg.Harmonics, d.cfg.BinHalfWidth)
	if math.IsNaN(esi) || math.IsInf(esi, 0) {
		return stepResult{value: math.NaN(), failure: &StepFailure{Err: ErrNotFinite}}
	}
	return stepResult{value: esi}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
