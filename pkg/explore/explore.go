package explore

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sherine-k/schedlab/pkg/cluster"
	"github.com/sherine-k/schedlab/pkg/simclock"
	"github.com/sherine-k/schedlab/pkg/simulation"
	"github.com/sherine-k/schedlab/pkg/strategy"
)

// Scenario is one cluster configuration to explore
type Scenario struct {
	Name    string
	Cluster *cluster.Cluster
}

// Result is the outcome of one strategy on one scenario
type Result struct {
	RunID           string
	Scenario        string
	Strategy        strategy.Kind
	Jobs            int
	Makespan        simclock.Time
	AvgWait         float64
	MedianWait      float64
	P75Wait         float64
	AvgUtilization  float64
	PeakUtilization float64
	EnergyKWh       float64
	Err             error
}

// Store persists exploration results
type Store interface {
	Save(ctx context.Context, results []Result) error
}

// Explorer runs every strategy on every scenario with the same job set.
// Each run works on clones, so scenarios and jobs are never mutated.
type Explorer struct {
	scenarios []Scenario
	jobs      []*cluster.Job
	opts      *Options
}

// Options tunes an Explorer
type Options struct {
	Kinds         []strategy.Kind
	EngineOptions []simulation.SetOption
	Logger        *logrus.Logger
	Store         Store
}

// SetOption sets one explorer option
type SetOption func(opts *Options)

// WithKinds restricts the strategies explored
func WithKinds(kinds ...strategy.Kind) SetOption {
	return func(opts *Options) {
		opts.Kinds = kinds
	}
}

// WithEngineOptions passes options to every engine
func WithEngineOptions(setOptions ...simulation.SetOption) SetOption {
	return func(opts *Options) {
		opts.EngineOptions = append(opts.EngineOptions, setOptions...)
	}
}

// WithLogger sets the logger for the explorer and its engines
func WithLogger(l *logrus.Logger) SetOption {
	return func(opts *Options) {
		opts.Logger = l
	}
}

// WithStore saves the results once every run finished
func WithStore(s Store) SetOption {
	return func(opts *Options) {
		opts.Store = s
	}
}

// New creates an explorer
func New(scenarios []Scenario, jobs []*cluster.Job, setOptions ...SetOption) *Explorer {
	opts := &Options{
		Kinds:  strategy.Kinds(),
		Logger: logrus.StandardLogger(),
	}
	for _, setOption := range setOptions {
		setOption(opts)
	}
	return &Explorer{scenarios: scenarios, jobs: jobs, opts: opts}
}

// Run executes every combination in scenario order, then strategy order.
// A failed run is reported in its result and does not stop the others;
// only cancellation and store failures are returned.
func (x *Explorer) Run(ctx context.Context) ([]Result, error) {
	log := x.opts.Logger.WithField("component", "explore")
	var results []Result
	for _, sc := range x.scenarios {
		for _, kind := range x.opts.Kinds {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			log.WithFields(logrus.Fields{"scenario": sc.Name, "strategy": string(kind)}).Info("running simulation")
			results = append(results, x.runOne(ctx, sc, kind))
		}
	}

	if x.opts.Store != nil {
		if err := x.opts.Store.Save(ctx, results); err != nil {
			return results, errors.Wrap(err, "saving exploration results")
		}
	}
	return results, nil
}

func (x *Explorer) runOne(ctx context.Context, sc Scenario, kind strategy.Kind) Result {
	res := Result{Scenario: sc.Name, Strategy: kind, Jobs: len(x.jobs)}

	opts := append([]simulation.SetOption{simulation.WithLogger(x.opts.Logger)}, x.opts.EngineOptions...)
	engine, err := simulation.NewEngine(sc.Cluster.Clone(), cluster.CloneJobs(x.jobs), kind, opts...)
	if err != nil {
		res.Err = err
		return res
	}
	res.RunID = engine.RunID()
	if err := engine.Run(ctx); err != nil {
		res.Err = err
		return res
	}

	s := engine.Summary()
	res.Makespan = s.Makespan
	res.AvgWait = s.Waiting.Mean
	res.MedianWait = s.Waiting.Median
	res.P75Wait = s.Waiting.P75
	res.AvgUtilization = s.Utilization.AvgUtilization
	res.PeakUtilization = s.Utilization.PeakUtilization
	res.EnergyKWh = s.TotalEnergy
	return res
}

// WriteTable prints one aligned row per result
func WriteTable(w io.Writer, results []Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tSTRATEGY\tJOBS\tMAKESPAN\tAVG WAIT\tMEDIAN WAIT\tP75 WAIT\tAVG UTIL %\tPEAK UTIL %\tENERGY kWh\tSTATUS")
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.4f\t%s\n",
			r.Scenario, r.Strategy, r.Jobs, r.Makespan, r.AvgWait, r.MedianWait, r.P75Wait,
			r.AvgUtilization, r.PeakUtilization, r.EnergyKWh, status)
	}
	return tw.Flush()
}
