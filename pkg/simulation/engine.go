package simulation

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sherine-k/schedlab/pkg/cluster"
	"github.com/sherine-k/schedlab/pkg/metrics"
	"github.com/sherine-k/schedlab/pkg/simclock"
	"github.com/sherine-k/schedlab/pkg/strategy"
)

var (
	// ErrUnschedulable is returned when a job demands more than any node
	// holds, so it could never start.
	ErrUnschedulable = errors.New("jobs exceed the capacity of every node")
	// ErrDeadlock is returned when no event is left but jobs have not
	// completed.
	ErrDeadlock = errors.New("simulation drained with jobs still pending")
	// ErrAlreadyRun is returned by a second call to Run.
	ErrAlreadyRun = errors.New("engine already ran")
)

// Engine runs one job set on one cluster under one strategy
type Engine struct {
	cluster  *cluster.Cluster
	jobs     []*cluster.Job
	kind     strategy.Kind
	strategy strategy.Strategy
	opts     *Options

	runID    string
	log      *logrus.Entry
	recorder *metrics.Recorder

	started  bool
	finished int
	makespan simclock.Time
}

// NewEngine validates the inputs and prepares a run. The engine mutates c
// and jobs; pass clones to run the same inputs more than once.
func NewEngine(c *cluster.Cluster, jobs []*cluster.Job, kind strategy.Kind, setOptions ...SetOption) (*Engine, error) {
	opts := defaultOptions()
	for _, setOption := range setOptions {
		setOption(opts)
	}

	if c == nil {
		return nil, errors.Wrap(cluster.ErrInvalid, "no cluster given")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := cluster.ValidateJobs(jobs); err != nil {
		return nil, err
	}
	s, err := strategy.New(kind, strategy.Options{Estimator: opts.Estimator})
	if err != nil {
		return nil, err
	}

	// job processes are registered in submission order, ties keep input order
	ordered := append([]*cluster.Job(nil), jobs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SubmitTime < ordered[j].SubmitTime
	})

	runID := uuid.New().String()
	return &Engine{
		cluster:  c,
		jobs:     ordered,
		kind:     kind,
		strategy: s,
		opts:     opts,
		runID:    runID,
		log: opts.Logger.WithFields(logrus.Fields{
			"run":      runID,
			"strategy": string(kind),
		}),
		recorder: metrics.NewRecorder(),
	}, nil
}

// Run executes the simulation until every job completed
func (e *Engine) Run(ctx context.Context) error {
	if e.started {
		return ErrAlreadyRun
	}
	e.started = true

	if !e.opts.AllowUnschedulable {
		if names := e.unschedulable(); len(names) > 0 {
			return errors.Wrapf(ErrUnschedulable, "%s", strings.Join(names, ", "))
		}
	}

	clock := simclock.New(
		simclock.WithHorizon(e.opts.Horizon),
		simclock.WithStallTimeout(e.opts.StallTimeout),
	)
	collector := append(metrics.Multi{e.recorder}, e.opts.Collectors...)
	env := strategy.NewEnv(clock, e.cluster, collector, e.log, e.opts.WakeOnRelease)

	done := clock.NewSignal()
	if len(e.jobs) == 0 {
		done.Fire()
	}

	// Energy goes first so it accrues before any job moves at an instant
	clock.Register("energy", e.accrueEnergy(done))
	e.strategy.Attach(env, e.jobs)
	for _, job := range e.jobs {
		job := job
		clock.Register("job:"+job.Name, func(p *simclock.Proc) {
			e.strategy.Run(p, job)
			e.finished++
			if e.finished == len(e.jobs) {
				e.makespan = p.Now()
				done.Fire()
			}
		})
	}

	e.log.WithFields(logrus.Fields{
		"jobs":  len(e.jobs),
		"nodes": len(e.cluster.Nodes),
	}).Info("simulation started")

	if err := clock.Run(ctx); err != nil {
		return errors.Wrapf(err, "run %s", e.runID)
	}
	if e.finished < len(e.jobs) {
		return errors.Wrapf(ErrDeadlock, "run %s: %d of %d jobs never completed: %s",
			e.runID, len(e.jobs)-e.finished, len(e.jobs), strings.Join(e.pending(), ", "))
	}

	e.log.WithFields(logrus.Fields{
		"makespan":   e.makespan,
		"energy_kwh": e.cluster.TotalEnergy(),
	}).Info("simulation finished")
	return nil
}

// accrueEnergy charges every node its active power each interval until
// done fires, regardless of load. done is checked only once every other
// process is through with the instant. It also stops once no other process
// has anything scheduled, since then nothing can ever fire done.
func (e *Engine) accrueEnergy(done *simclock.Signal) simclock.ProcFunc {
	interval := e.opts.EnergyInterval
	return func(p *simclock.Proc) {
		for !done.Fired() {
			for _, n := range e.cluster.Nodes {
				n.Energy += n.PowerActive * float64(interval) / 3600
			}
			p.Sleep(interval)
			p.Settle()
			if !done.Fired() && p.Clock().Pending() == 0 {
				e.log.WithField("t", p.Now()).Warn("no runnable process left, stopping energy accounting")
				return
			}
		}
	}
}

func (e *Engine) unschedulable() []string {
	var names []string
	for _, job := range e.jobs {
		if !e.cluster.Schedulable(job) {
			names = append(names, job.Name)
		}
	}
	return names
}

func (e *Engine) pending() []string {
	var names []string
	for _, job := range e.jobs {
		if job.State != cluster.JobDone {
			names = append(names, job.Name)
		}
	}
	return names
}

// RunID returns the unique identifier of this run
func (e *Engine) RunID() string {
	return e.runID
}

// Kind returns the strategy the engine runs
func (e *Engine) Kind() strategy.Kind {
	return e.kind
}

// Recorder returns the in-memory measurements of the run
func (e *Engine) Recorder() *metrics.Recorder {
	return e.recorder
}

// Cluster returns the cluster the engine runs on
func (e *Engine) Cluster() *cluster.Cluster {
	return e.cluster
}

// Jobs returns the jobs in submission order
func (e *Engine) Jobs() []*cluster.Job {
	return e.jobs
}

// Makespan returns the instant the last job completed
func (e *Engine) Makespan() simclock.Time {
	return e.makespan
}
