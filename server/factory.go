package server

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/OrlandoFon/Backend-TCCRolamentos/config"
	"github.com/OrlandoFon/Backend-TCCRolamentos/dataset"
	"github.com/OrlandoFon/Backend-TCCRolamentos/simulation"
)

// NewDriverFactory returns a factory reading the dataset at the request's
// basePath, or defaultBase when none is given. Runs detect the failure
// onset from the data unless the request sets useCustomFdt to false;
// request parameters override cfg.Detector.
func NewDriverFactory(cfg config.Config, defaultBase, format string, log logrus.FieldLogger) DriverFactory {
	return func(req StartRequest) (*simulation.Driver, error) {
		base := req.BasePath
		if base == "" {
			base = defaultBase
		}
		if base == "" {
			return nil, fmt.Errorf("%w: basePath is required", ErrBadRequest)
		}
		src, err := dataset.Open(format, base, cfg)
		if err != nil {
			return nil, err
		}

		opts := []simulation.Option{simulation.WithLogger(log)}
		if req.UseCustomFdt == nil || *req.UseCustomFdt {
			p := cfg.Detector
			if req.FdtWarmup != nil {
				p.Warmup = *req.FdtWarmup
			}
			if req.FdtPersistenceLen != nil {
				p.PersistenceLen = *req.FdtPersistenceLen
			}
			if req.FdtAmpOffset != nil {
				p.AmpOffset = *req.FdtAmpOffset
			}
			if err := p.Validate(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
			}
			opts = append(opts, simulation.WithFdtSource(simulation.DynamicFdt{Params: p}))
		}
		return simulation.New(cfg, src, req.BearingName, opts...), nil
	}
}
