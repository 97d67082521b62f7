package simulation

import (
	"github.com/sirupsen/logrus"

	"github.com/sherine-k/schedlab/pkg/cluster"
	"github.com/sherine-k/schedlab/pkg/metrics"
	"github.com/sherine-k/schedlab/pkg/simclock"
	"github.com/sherine-k/schedlab/pkg/strategy"
)

// NodeSummary is the end state of one node
type NodeSummary struct {
	Name           string
	GPUs           int
	CPUs           int
	Memory         int
	EnergyKWh      float64
	AvgUtilization float64
	IdleTime       simclock.Duration
}

// JobSummary is the outcome of one job
type JobSummary struct {
	Name        string
	Node        string
	State       cluster.JobState
	SubmitTime  simclock.Time
	StartTime   simclock.Time
	EndTime     simclock.Time
	WaitingTime simclock.Duration
}

// Summary describes a finished run
type Summary struct {
	RunID       string
	Strategy    strategy.Kind
	Makespan    simclock.Time
	Nodes       []NodeSummary
	Jobs        []JobSummary
	TotalEnergy float64
	Waiting     metrics.WaitingStats
	Utilization metrics.ClusterStats
}

// Summary collects the results of the run. Node statistics cover
// [0, makespan].
func (e *Engine) Summary() Summary {
	s := Summary{
		RunID:       e.runID,
		Strategy:    e.kind,
		Makespan:    e.makespan,
		TotalEnergy: e.cluster.TotalEnergy(),
		Waiting:     e.recorder.WaitingStats(),
		Utilization: e.recorder.ClusterStats(),
	}
	for _, n := range e.cluster.Nodes {
		s.Nodes = append(s.Nodes, NodeSummary{
			Name:           n.Name,
			GPUs:           n.GPUsTotal,
			CPUs:           n.CPUsTotal,
			Memory:         n.MemoryTotal,
			EnergyKWh:      n.Energy,
			AvgUtilization: n.AvgUtilization(e.makespan),
			IdleTime:       n.IdleTime(e.makespan),
		})
	}
	for _, j := range e.jobs {
		s.Jobs = append(s.Jobs, JobSummary{
			Name:        j.Name,
			Node:        j.Node,
			State:       j.State,
			SubmitTime:  j.SubmitTime,
			StartTime:   j.StartTime,
			EndTime:     j.EndTime,
			WaitingTime: j.WaitingTime,
		})
	}
	return s
}

// Log writes the summary as one entry per node and job plus a closing
// total.
func (s Summary) Log(log logrus.FieldLogger) {
	log = log.WithFields(logrus.Fields{"run": s.RunID, "strategy": string(s.Strategy)})
	for _, n := range s.Nodes {
		log.WithFields(logrus.Fields{
			"node":       n.Name,
			"gpus":       n.GPUs,
			"cpus":       n.CPUs,
			"memory":     n.Memory,
			"energy_kwh": n.EnergyKWh,
		}).Info("node summary")
	}
	for _, j := range s.Jobs {
		log.WithFields(logrus.Fields{
			"job":     j.Name,
			"node":    j.Node,
			"waiting": j.WaitingTime,
		}).Info("job summary")
	}
	log.WithFields(logrus.Fields{
		"makespan":      s.Makespan,
		"energy_kwh":    s.TotalEnergy,
		"avg_wait":      s.Waiting.Mean,
		"p25_wait":      s.Waiting.P25,
		"median_wait":   s.Waiting.Median,
		"p75_wait":      s.Waiting.P75,
		"avg_util_pct":  s.Utilization.AvgUtilization,
		"peak_util_pct": s.Utilization.PeakUtilization,
	}).Info("simulation summary")
}
