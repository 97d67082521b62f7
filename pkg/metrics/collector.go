package metrics

import (
	"github.com/sherine-k/schedlab/pkg/cluster"
	"github.com/sherine-k/schedlab/pkg/simclock"
)

// Collector receives the measurements a simulation emits. Implementations
// must not influence the run; the engine never inspects what they do.
type Collector interface {
	RecordSubmission(job *cluster.Job, at simclock.Time)
	RecordStart(job *cluster.Job, at simclock.Time)
	RecordEnd(job *cluster.Job, at simclock.Time)
	RecordUtilization(at simclock.Time, percent float64)
	// RecordEnergy receives the cumulative consumption of node in kWh.
	RecordEnergy(node *cluster.Node, kwh float64)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordSubmission(*cluster.Job, simclock.Time) {}
func (Nop) RecordStart(*cluster.Job, simclock.Time) {}
func (Nop) RecordEnd(*cluster.Job, simclock.Time) {}
func (Nop) RecordUtilization(simclock.Time, float64) {}
func (Nop) RecordEnergy(*cluster.Node, float64) {}

// Multi forwards every measurement to each of its collectors in order.
type Multi []Collector

func (m Multi) RecordSubmission(job *cluster.Job, at simclock.Time) {
	for _, c := range m {
		c.RecordSubmission(job, at)
	}
}

func (m Multi) RecordStart(job *cluster.Job, at simclock.Time) {
	for _, c := range m {
		c.RecordStart(job, at)
	}
}

func (m Multi) RecordEnd(job *cluster.Job, at simclock.Time) {
	for _, c := range m {
		c.RecordEnd(job, at)
	}
}

func (m Multi) RecordUtilization(at simclock.Time, percent float64) {
	for _, c := range m {
		c.RecordUtilization(at, percent)
	}
}

func (m Multi) RecordEnergy(node *cluster.Node, kwh float64) {
	for _, c := range m {
		c.RecordEnergy(node, kwh)
	}
}
