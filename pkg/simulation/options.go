package simulation

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sherine-k/schedlab/pkg/metrics"
	"github.com/sherine-k/schedlab/pkg/simclock"
	"github.com/sherine-k/schedlab/pkg/strategy"
)

// DefaultStallTimeout is the wall-clock time a process may run without
// suspending before the run is aborted with simclock.ErrStalled
const DefaultStallTimeout = 10 * time.Second

// Options tunes an Engine
type Options struct {
	Collectors         []metrics.Collector
	Logger             *logrus.Logger
	Estimator          strategy.Estimator
	WakeOnRelease      bool
	Horizon            simclock.Time
	StallTimeout       time.Duration
	AllowUnschedulable bool
	EnergyInterval     simclock.Duration
}

// SetOption sets one engine option
type SetOption func(opts *Options)

func defaultOptions() *Options {
	return &Options{
		Logger:         logrus.StandardLogger(),
		Estimator:      strategy.EstimatorSubmitTime,
		Horizon:        simclock.Forever,
		StallTimeout:   DefaultStallTimeout,
		EnergyInterval: 1,
	}
}

// WithCollector adds a collector that receives every measurement next to
// the engine's own recorder
func WithCollector(c metrics.Collector) SetOption {
	return func(opts *Options) {
		opts.Collectors = append(opts.Collectors, c)
	}
}

// WithLogger sets the logger runs report to
func WithLogger(l *logrus.Logger) SetOption {
	return func(opts *Options) {
		opts.Logger = l
	}
}

// WithEstimator selects the Backfill start-time estimator
func WithEstimator(e strategy.Estimator) SetOption {
	return func(opts *Options) {
		opts.Estimator = e
	}
}

// WithWakeOnRelease makes blocked jobs wait for a release instead of
// polling every time unit
func WithWakeOnRelease() SetOption {
	return func(opts *Options) {
		opts.WakeOnRelease = true
	}
}

// WithHorizon stops the run with an error once virtual time would pass t
func WithHorizon(t simclock.Time) SetOption {
	return func(opts *Options) {
		if t > 0 {
			opts.Horizon = t
		}
	}
}

// WithStallTimeout bounds the wall-clock time a single process may run
// without suspending. Non-positive values keep the default.
func WithStallTimeout(d time.Duration) SetOption {
	return func(opts *Options) {
		if d > 0 {
			opts.StallTimeout = d
		}
	}
}

// WithAllowUnschedulable lets jobs that fit no node enter the run. They
// wait until the horizon, or until the run deadlocks with WakeOnRelease.
func WithAllowUnschedulable() SetOption {
	return func(opts *Options) {
		opts.AllowUnschedulable = true
	}
}

// WithEnergyInterval sets how often node energy is accrued
func WithEnergyInterval(d simclock.Duration) SetOption {
	return func(opts *Options) {
		if d > 0 {
			opts.EnergyInterval = d
		}
	}
}
