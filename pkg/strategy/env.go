package strategy

import (
	"github.com/sirupsen/logrus"

	"github.com/sherine-k/schedlab/pkg/cluster"
	"github.com/sherine-k/schedlab/pkg/metrics"
	"github.com/sherine-k/schedlab/pkg/simclock"
)

// Env is the state shared by the processes of one run: the clock, the
// cluster, the collector, and the dispatch mechanics every policy reuses.
type Env struct {
	Clock   *simclock.Clock
	Cluster *cluster.Cluster
	Metrics metrics.Collector
	Log     *logrus.Entry

	// WakeOnRelease makes blocked processes wait for the next resource
	// release instead of polling every time unit.
	WakeOnRelease bool

	released *simclock.Signal
}

// NewEnv creates the environment of a run.
func NewEnv(clock *simclock.Clock, c *cluster.Cluster, collector metrics.Collector, log *logrus.Entry, wakeOnRelease bool) *Env {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Env{
		Clock:         clock,
		Cluster:       c,
		Metrics:       collector,
		Log:           log,
		WakeOnRelease: wakeOnRelease,
		released:      clock.NewSignal(),
	}
}

// submit suspends p until the job's submit time and records the submission.
func (e *Env) submit(p *simclock.Proc, job *cluster.Job) {
	p.SleepUntil(job.SubmitTime)
	job.State = cluster.JobSubmitted
	e.logJob(p, job).Debug("job submitted")
	e.Metrics.RecordSubmission(job, p.Now())
}

// commit places job on node without suspending between the capacity check
// and the decrement. Accounting failures abort the run.
func (e *Env) commit(p *simclock.Proc, job *cluster.Job, node *cluster.Node) {
	now := p.Now()
	if err := e.Cluster.Allocate(node, job, now); err != nil {
		p.Fail(err)
	}
	if err := job.MarkDispatched(now, node.Name); err != nil {
		p.Fail(err)
	}
	e.logJob(p, job).WithField("node", node.Name).WithField("waited", job.WaitingTime).Debug("job scheduled")
	e.Metrics.RecordStart(job, now)
	e.sample(p)
}

// hold runs a committed job to completion and gives its capacity back.
func (e *Env) hold(p *simclock.Proc, job *cluster.Job, node *cluster.Node) {
	p.Sleep(job.Duration)
	now := p.Now()
	if err := e.Cluster.Release(node, job, now); err != nil {
		p.Fail(err)
	}
	job.MarkDone(now)
	e.logJob(p, job).WithField("node", node.Name).Debug("job completed")
	e.Metrics.RecordEnd(job, now)
	e.sample(p)
	e.Metrics.RecordEnergy(node, node.Energy)

	released := e.released
	e.released = e.Clock.NewSignal()
	released.Fire()
}

// retry suspends a process that could not place work: one time unit by
// default, or until the next release (or any of extra) with WakeOnRelease.
func (e *Env) retry(p *simclock.Proc, extra ...*simclock.Signal) {
	if !e.WakeOnRelease {
		p.Sleep(1)
		return
	}
	p.WaitAny(append([]*simclock.Signal{e.released}, extra...)...)
}

func (e *Env) sample(p *simclock.Proc) {
	e.Metrics.RecordUtilization(p.Now(), e.Cluster.Utilization())
}

func (e *Env) logJob(p *simclock.Proc, job *cluster.Job) *logrus.Entry {
	return e.Log.WithFields(logrus.Fields{
		"t":   p.Now(),
		"job": job.Name,
	})
}
