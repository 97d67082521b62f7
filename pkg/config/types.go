package config

// ClusterFile represents a cluster definition file
type ClusterFile struct {
	Nodes []NodeSpec `yaml:"nodes"`
}

// NodeSpec represents one node entry, or a family of nodes when
// NamePattern carries a "[first-last]" range
type NodeSpec struct {
	Name        string `yaml:"name,omitempty"`
	NamePattern string `yaml:"name_pattern,omitempty"`

	GPUsTotal   int    `yaml:"gpus_total"`
	CPUsTotal   int    `yaml:"cpus_total"`
	MemoryTotal Memory `yaml:"memory_total"`

	// Availability defaults to the totals when omitted
	GPUsAvailable   *int    `yaml:"gpus_available,omitempty"`
	CPUsAvailable   *int    `yaml:"cpus_available,omitempty"`
	MemoryAvailable *Memory `yaml:"memory_available,omitempty"`

	PowerIdle   float64 `yaml:"power_idle,omitempty"`
	PowerActive float64 `yaml:"power_active,omitempty"`
}

// JobSpec represents one job entry. With Cron set the entry is a template
// that expands into one job per schedule activation up to Until.
type JobSpec struct {
	Name       string `yaml:"name"`
	SubmitTime int64  `yaml:"submit_time"`
	Duration   int64  `yaml:"duration"`
	GPUs       int    `yaml:"gpus"`
	CPUs       *int   `yaml:"cpus,omitempty"`
	Memory     Memory `yaml:"memory,omitempty"`

	// For recurring jobs
	Cron  string `yaml:"cron,omitempty"`
	Until int64  `yaml:"until,omitempty"`
}

// defaultCPUs is the CPU demand of a job entry that does not set one
const defaultCPUs = 1
