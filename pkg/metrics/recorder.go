package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/sherine-k/schedlab/pkg/cluster"
	"github.com/sherine-k/schedlab/pkg/simclock"
)

// Recorder keeps every measurement in memory for reporting.
type Recorder struct {
	jobs        map[string]*JobRecord
	order       []string
	events      []Event
	samples     []Sample
	energy      map[string]float64
	energyOrder []string

	running     int
	waiting     int
	utilization float64
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		jobs:   make(map[string]*JobRecord),
		energy: make(map[string]float64),
	}
}

func (r *Recorder) record(job *cluster.Job) *JobRecord {
	rec, ok := r.jobs[job.Name]
	if !ok {
		rec = &JobRecord{Name: job.Name, SubmitTime: job.SubmitTime}
		r.jobs[job.Name] = rec
		r.order = append(r.order, job.Name)
	}
	return rec
}

func (r *Recorder) RecordSubmission(job *cluster.Job, at simclock.Time) {
	rec := r.record(job)
	rec.SubmitTime = at
	r.waiting++
	r.events = append(r.events, Event{
		Time:        at,
		Type:        EventTypeJobSubmitted,
		Job:         job.Name,
		Running:     r.running,
		Waiting:     r.waiting,
		Utilization: r.utilization,
		Message:     fmt.Sprintf("Job '%s' submitted", job.Name),
	})
}

func (r *Recorder) RecordStart(job *cluster.Job, at simclock.Time) {
	rec := r.record(job)
	rec.Started = true
	rec.StartTime = at
	rec.WaitingTime = job.WaitingTime
	rec.Node = job.Node
	r.waiting--
	r.running++
	r.events = append(r.events, Event{
		Time:        at,
		Type:        EventTypeJobStarted,
		Job:         job.Name,
		Node:        job.Node,
		Running:     r.running,
		Waiting:     r.waiting,
		Utilization: r.utilization,
		Message:     fmt.Sprintf("Job '%s' started on %s after waiting %d", job.Name, job.Node, job.WaitingTime),
		IsWarning:   job.WaitingTime > 0,
	})
}

func (r *Recorder) RecordEnd(job *cluster.Job, at simclock.Time) {
	rec := r.record(job)
	rec.Finished = true
	rec.EndTime = at
	r.running--
	r.events = append(r.events, Event{
		Time:        at,
		Type:        EventTypeJobFinished,
		Job:         job.Name,
		Node:        job.Node,
		Running:     r.running,
		Waiting:     r.waiting,
		Utilization: r.utilization,
		Message:     fmt.Sprintf("Job '%s' completed on %s", job.Name, job.Node),
	})
}

func (r *Recorder) RecordUtilization(at simclock.Time, percent float64) {
	r.samples = append(r.samples, Sample{Time: at, Percent: percent})
	r.utilization = percent
	// attach the sample to the event it follows, if any
	if n := len(r.events); n > 0 && r.events[n-1].Time == at {
		r.events[n-1].Utilization = percent
	}
}

// RecordEnergy keeps the latest cumulative value per node.
func (r *Recorder) RecordEnergy(node *cluster.Node, kwh float64) {
	if _, ok := r.energy[node.Name]; !ok {
		r.energyOrder = append(r.energyOrder, node.Name)
	}
	r.energy[node.Name] = kwh
}

// Jobs returns job records in first-seen order.
func (r *Recorder) Jobs() []JobRecord {
	out := make([]JobRecord, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.jobs[name])
	}
	return out
}

// Job returns the record of the named job.
func (r *Recorder) Job(name string) (JobRecord, bool) {
	rec, ok := r.jobs[name]
	if !ok {
		return JobRecord{}, false
	}
	return *rec, true
}

// Events returns all lifecycle events in emission order.
func (r *Recorder) Events() []Event {
	return r.events
}

// Warnings returns the events flagged as warnings: jobs that had to wait.
func (r *Recorder) Warnings() []Event {
	var warnings []Event
	for _, e := range r.events {
		if e.IsWarning {
			warnings = append(warnings, e)
		}
	}
	return warnings
}

// Samples returns all utilization samples in emission order.
func (r *Recorder) Samples() []Sample {
	return r.samples
}

// Energy returns the last reported energy per node, in first-reported order.
func (r *Recorder) Energy() ([]string, map[string]float64) {
	return r.energyOrder, r.energy
}

// ClusterStats summarises utilization samples.
type ClusterStats struct {
	AvgUtilization  float64
	PeakUtilization float64
	MinUtilization  float64
}

// ClusterStats returns average, peak and minimum utilization, or zeros when
// nothing was sampled.
func (r *Recorder) ClusterStats() ClusterStats {
	if len(r.samples) == 0 {
		return ClusterStats{}
	}
	stats := ClusterStats{
		PeakUtilization: math.Inf(-1),
		MinUtilization:  math.Inf(1),
	}
	var sum float64
	for _, s := range r.samples {
		sum += s.Percent
		stats.PeakUtilization = math.Max(stats.PeakUtilization, s.Percent)
		stats.MinUtilization = math.Min(stats.MinUtilization, s.Percent)
	}
	stats.AvgUtilization = sum / float64(len(r.samples))
	return stats
}

// WaitingStats summarises job waiting times.
type WaitingStats struct {
	Count  int
	Mean   float64
	P25    float64
	Median float64
	P75    float64
	Max    float64
}

// WaitingStats computes statistics over the waiting times of started jobs.
func (r *Recorder) WaitingStats() WaitingStats {
	values := make([]float64, 0, len(r.order))
	for _, name := range r.order {
		if rec := r.jobs[name]; rec.Started {
			values = append(values, float64(rec.WaitingTime))
		}
	}
	return ComputeWaitingStats(values)
}

// ComputeWaitingStats computes mean and quartiles of values. Quantiles use
// linear interpolation between closest ranks.
func ComputeWaitingStats(values []float64) WaitingStats {
	if len(values) == 0 {
		return WaitingStats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return WaitingStats{
		Count:  len(sorted),
		Mean:   sum / float64(len(sorted)),
		P25:    Quantile(sorted, 0.25),
		Median: Quantile(sorted, 0.5),
		P75:    Quantile(sorted, 0.75),
		Max:    sorted[len(sorted)-1],
	}
}

// Quantile returns the q-quantile of sorted using linear interpolation.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}
