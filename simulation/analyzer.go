package simulation

import (
	"github.com/OrlandoFon/Backend-TCCRolamentos/config"
	"github.com/OrlandoFon/Backend-TCCRolamentos/envelope"
	"github.com/OrlandoFon/Backend-TCCRolamentos/spectrum"
)

// Analyzer turns one step's signal into its averaged envelope spectrum.
type Analyzer interface {
	Spectrum(signal []float64) (spectrum.Spectrum, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(signal []float64) (spectrum.Spectrum, error)

// Spectrum calls f.
func (f AnalyzerFunc) Spectrum(signal []float64) (spectrum.Spectrum, error) { return f(signal) }

// EnvelopeAnalyzer high-pass filters a signal, takes its envelope and
// averages the envelope spectrum.
type EnvelopeAnalyzer struct {
	extractor *envelope.Extractor
	fs        float64
	opts      spectrum.Options
}

// NewEnvelopeAnalyzer builds the analyzer described by cfg.
func NewEnvelopeAnalyzer(cfg config.Config) (*EnvelopeAnalyzer, error) {
	ex, err := envelope.NewExtractor(cfg.HighPass.Order, cfg.HighPass.Cutoff, cfg.SamplingRate)
	if err != nil {
		return nil, err
	}
	return &EnvelopeAnalyzer{
		extractor: ex,
		fs:        cfg.SamplingRate,
		opts:      cfg.SpectrumOptions(),
	}, nil
}

// Spectrum implements Analyzer.
func (a *EnvelopeAnalyzer) Spectrum(signal []float64) (spectrum.Spectrum, error) {
	env, err := a.extractor.Envelope(signal)
	if err != nil {
		return spectrum.Spectrum{}, err
	}
	return spectrum.Averaged(env, a.fs, a.opts), nil
}
