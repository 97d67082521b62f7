package generator

import (
	"fmt"
	"math/rand"

	"github.com/sherine-k/schedlab/pkg/config"
)

// Range is an inclusive integer interval
type Range struct {
	Min int
	Max int
}

func (r Range) valid() bool {
	return r.Min >= 0 && r.Min <= r.Max
}

// ClusterOptions bounds the nodes of a generated cluster
type ClusterOptions struct {
	NamePrefix  string
	Nodes       Range
	GPUs        Range
	CPUs        Range
	Memory      Range // GB
	PowerIdle   Range // W
	PowerActive Range // W
}

// JobOptions bounds a generated job set
type JobOptions struct {
	NamePrefix string
	Count      Range
	SubmitTime Range
	Duration   Range
	GPUs       Range
	CPUs       Range
	Memory     Range // GB
}

// DefaultClusterOptions returns the ranges used when none are given
func DefaultClusterOptions() ClusterOptions {
	return ClusterOptions{
		NamePrefix:  "node",
		Nodes:       Range{Min: 2, Max: 6},
		GPUs:        Range{Min: 4, Max: 8},
		CPUs:        Range{Min: 16, Max: 64},
		Memory:      Range{Min: 64, Max: 512},
		PowerIdle:   Range{Min: 80, Max: 150},
		PowerActive: Range{Min: 300, Max: 700},
	}
}

// DefaultJobOptions returns the ranges used when none are given
func DefaultJobOptions() JobOptions {
	return JobOptions{
		NamePrefix: "job",
		Count:      Range{Min: 10, Max: 50},
		SubmitTime: Range{Min: 0, Max: 100},
		Duration:   Range{Min: 5, Max: 20},
		GPUs:       Range{Min: 1, Max: 4},
		CPUs:       Range{Min: 1, Max: 8},
		Memory:     Range{Min: 1, Max: 8},
	}
}

// Generator produces random clusters and job sets. The same seed always
// yields the same output.
type Generator struct {
	rng *rand.Rand
}

// New creates a generator seeded with seed
func New(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

func (g *Generator) pick(r Range) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + g.rng.Intn(r.Max-r.Min+1)
}

// Cluster generates a cluster definition
func (g *Generator) Cluster(opts ClusterOptions) (config.ClusterFile, error) {
	for name, r := range map[string]Range{
		"nodes": opts.Nodes, "gpus": opts.GPUs, "cpus": opts.CPUs, "memory": opts.Memory,
		"power_idle": opts.PowerIdle, "power_active": opts.PowerActive,
	} {
		if !r.valid() {
			return config.ClusterFile{}, fmt.Errorf("%w: %s range [%d, %d]", config.ErrInvalid, name, r.Min, r.Max)
		}
	}
	if opts.Nodes.Max == 0 {
		return config.ClusterFile{}, fmt.Errorf("%w: a cluster needs at least one node", config.ErrInvalid)
	}

	count := g.pick(opts.Nodes)
	if count == 0 {
		count = 1
	}
	file := config.ClusterFile{Nodes: make([]config.NodeSpec, 0, count)}
	for i := 0; i < count; i++ {
		file.Nodes = append(file.Nodes, config.NodeSpec{
			Name:        fmt.Sprintf("%s-%d", opts.NamePrefix, i+1),
			GPUsTotal:   g.pick(opts.GPUs),
			CPUsTotal:   g.pick(opts.CPUs),
			MemoryTotal: config.Memory(g.pick(opts.Memory)),
			PowerIdle:   float64(g.pick(opts.PowerIdle)),
			PowerActive: float64(g.pick(opts.PowerActive)),
		})
	}
	return file, nil
}

// Jobs generates a job list. Names are unique within the list.
func (g *Generator) Jobs(opts JobOptions) ([]config.JobSpec, error) {
	for name, r := range map[string]Range{
		"count": opts.Count, "submit_time": opts.SubmitTime, "gpus": opts.GPUs,
		"cpus": opts.CPUs, "memory": opts.Memory,
	} {
		if !r.valid() {
			return nil, fmt.Errorf("%w: %s range [%d, %d]", config.ErrInvalid, name, r.Min, r.Max)
		}
	}
	if !opts.Duration.valid() || opts.Duration.Min < 1 {
		return nil, fmt.Errorf("%w: duration range [%d, %d] must start at 1 or more", config.ErrInvalid, opts.Duration.Min, opts.Duration.Max)
	}

	count := g.pick(opts.Count)
	specs := make([]config.JobSpec, 0, count)
	for i := 0; i < count; i++ {
		cpus := g.pick(opts.CPUs)
		specs = append(specs, config.JobSpec{
			Name:       fmt.Sprintf("%s-%03d", opts.NamePrefix, i+1),
			SubmitTime: int64(g.pick(opts.SubmitTime)),
			Duration:   int64(g.pick(opts.Duration)),
			GPUs:       g.pick(opts.GPUs),
			CPUs:       &cpus,
			Memory:     config.Memory(g.pick(opts.Memory)),
		})
	}
	return specs, nil
}

// FitJobs returns the jobs whose demand fits at least one node of file
func FitJobs(specs []config.JobSpec, file config.ClusterFile) []config.JobSpec {
	var fit []config.JobSpec
	for _, spec := range specs {
		cpus := 1
		if spec.CPUs != nil {
			cpus = *spec.CPUs
		}
		for _, n := range file.Nodes {
			if spec.GPUs <= n.GPUsTotal && cpus <= n.CPUsTotal && spec.Memory <= n.MemoryTotal {
				fit = append(fit, spec)
				break
			}
		}
	}
	return fit
}
