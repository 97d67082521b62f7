package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sherine-k/schedlab/pkg/cluster"
	"github.com/sherine-k/schedlab/pkg/simclock"
)

// Prometheus exposes simulation measurements as Prometheus metrics on a
// private registry, labelled with the strategy that produced them.
type Prometheus struct {
	registry *prometheus.Registry

	submitted   prometheus.Counter
	started     prometheus.Counter
	finished    prometheus.Counter
	waiting     prometheus.Histogram
	utilization prometheus.Gauge
	virtualTime prometheus.Gauge
	energy      *prometheus.GaugeVec
}

// NewPrometheus creates and registers the simulation metrics.
func NewPrometheus(strategy string) *Prometheus {
	labels := prometheus.Labels{"strategy": strategy}
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "schedlab_jobs_submitted_total",
			Help:        "Total number of jobs submitted to the simulated cluster.",
			ConstLabels: labels,
		}),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "schedlab_jobs_started_total",
			Help:        "Total number of jobs dispatched onto a node.",
			ConstLabels: labels,
		}),
		finished: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "schedlab_jobs_finished_total",
			Help:        "Total number of jobs that completed.",
			ConstLabels: labels,
		}),
		waiting: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "schedlab_job_waiting_seconds",
			Help:        "Virtual time jobs spent between submission and dispatch.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 12),
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "schedlab_cluster_utilization_percent",
			Help:        "Last sampled share of cluster resources in use.",
			ConstLabels: labels,
		}),
		virtualTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "schedlab_virtual_time_seconds",
			Help:        "Virtual time of the last recorded measurement.",
			ConstLabels: labels,
		}),
		energy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "schedlab_node_energy_kwh",
			Help:        "Cumulative energy consumed by a node.",
			ConstLabels: labels,
		}, []string{"node"}),
	}
	p.registry.MustRegister(p.submitted, p.started, p.finished, p.waiting, p.utilization, p.virtualTime, p.energy)
	return p
}

// Registry returns the registry holding the simulation metrics.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the metrics for the node exporter textfile collector.
func (p *Prometheus) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, p.registry)
}

func (p *Prometheus) RecordSubmission(_ *cluster.Job, at simclock.Time) {
	p.submitted.Inc()
	p.tick(at)
}

func (p *Prometheus) RecordStart(job *cluster.Job, at simclock.Time) {
	p.started.Inc()
	p.waiting.Observe(float64(job.WaitingTime))
	p.tick(at)
}

func (p *Prometheus) RecordEnd(_ *cluster.Job, at simclock.Time) {
	p.finished.Inc()
	p.tick(at)
}

func (p *Prometheus) RecordUtilization(at simclock.Time, percent float64) {
	p.utilization.Set(percent)
	p.tick(at)
}

func (p *Prometheus) RecordEnergy(node *cluster.Node, kwh float64) {
	p.energy.WithLabelValues(node.Name).Set(kwh)
}

func (p *Prometheus) tick(at simclock.Time) {
	p.virtualTime.Set(float64(at))
}
