package cluster

import (
	"github.com/pkg/errors"

	"github.com/sherine-k/schedlab/pkg/simclock"
)

// JobState is the lifecycle state of a job during a run.
type JobState string

const (
	JobPending   JobState = "pending"
	JobSubmitted JobState = "submitted"
	JobWaiting   JobState = "waiting"
	JobRunning   JobState = "running"
	JobDone      JobState = "done"
)

// Job is a unit of work with a fixed run length and resource demand.
type Job struct {
	Name       string
	SubmitTime simclock.Time
	Duration   simclock.Duration
	GPUs       int
	CPUs       int
	Memory     int

	State       JobState
	WaitingTime simclock.Duration
	StartTime   simclock.Time
	EndTime     simclock.Time
	Node        string

	dispatched bool
}

// Dispatched reports whether the job has been committed to a node.
func (j *Job) Dispatched() bool {
	return j.dispatched
}

// MarkDispatched records the dispatch of j on node at time at. The waiting
// time is set exactly once.
func (j *Job) MarkDispatched(at simclock.Time, node string) error {
	if j.dispatched {
		return errors.Wrapf(ErrInvariant, "job %s dispatched twice (on %s at t=%d, again on %s at t=%d)", j.Name, j.Node, j.StartTime, node, at)
	}
	if at < j.SubmitTime {
		return errors.Wrapf(ErrInvariant, "job %s dispatched at t=%d before its submission at t=%d", j.Name, at, j.SubmitTime)
	}
	j.dispatched = true
	j.WaitingTime = simclock.Duration(at - j.SubmitTime)
	j.StartTime = at
	j.Node = node
	j.State = JobRunning
	return nil
}

// MarkDone records the completion of j at time at.
func (j *Job) MarkDone(at simclock.Time) {
	j.EndTime = at
	j.State = JobDone
}

// Clone returns a copy of the job definition with no run state.
func (j *Job) Clone() *Job {
	return &Job{
		Name:       j.Name,
		SubmitTime: j.SubmitTime,
		Duration:   j.Duration,
		GPUs:       j.GPUs,
		CPUs:       j.CPUs,
		Memory:     j.Memory,
		State:      JobPending,
	}
}

// CloneJobs clones every job of jobs.
func CloneJobs(jobs []*Job) []*Job {
	out := make([]*Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Clone())
	}
	return out
}

// ValidateJobs checks job definitions before a run.
func ValidateJobs(jobs []*Job) error {
	seen := make(map[string]bool, len(jobs))
	for i, j := range jobs {
		if j.Name == "" {
			return errors.Wrapf(ErrInvalid, "job %d: name is required", i)
		}
		if seen[j.Name] {
			return errors.Wrapf(ErrInvalid, "duplicate job name: %s", j.Name)
		}
		seen[j.Name] = true
		if j.SubmitTime < 0 {
			return errors.Wrapf(ErrInvalid, "job %s: submit time must not be negative", j.Name)
		}
		if j.Duration <= 0 {
			return errors.Wrapf(ErrInvalid, "job %s: duration must be greater than 0", j.Name)
		}
		if j.GPUs < 0 || j.CPUs < 0 || j.Memory < 0 {
			return errors.Wrapf(ErrInvalid, "job %s: resource demand must not be negative", j.Name)
		}
	}
	return nil
}
