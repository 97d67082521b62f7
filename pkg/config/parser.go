package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sherine-k/schedlab/pkg/cluster"
	"github.com/sherine-k/schedlab/pkg/simclock"
)

// ErrInvalid marks configuration errors
var ErrInvalid = errors.New("invalid configuration")

var rangePattern = regexp.MustCompile(`\[(\d+)-(\d+)\]`)

// maxPatternNodes bounds how many nodes a single name_pattern may expand into
const maxPatternNodes = 10000

// LoadCluster loads and parses a cluster definition file
func LoadCluster(filename string) (*cluster.Cluster, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read cluster file: %w", err)
	}
	c, err := ParseCluster(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster file %s: %w", filename, err)
	}
	return c, nil
}

// ParseCluster parses and validates a cluster definition
func ParseCluster(data []byte) (*cluster.Cluster, error) {
	var file ClusterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse cluster definition: %w", err)
	}
	return BuildCluster(file)
}

// BuildCluster expands name patterns and turns the entries into a
// validated cluster
func BuildCluster(file ClusterFile) (*cluster.Cluster, error) {
	if len(file.Nodes) == 0 {
		return nil, fmt.Errorf("%w: at least one node must be defined", ErrInvalid)
	}

	var nodes []*cluster.Node
	for i, def := range file.Nodes {
		specs, err := ExpandNodes(def)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		for _, spec := range specs {
			nodes = append(nodes, spec.node())
		}
	}

	c, err := cluster.New(nodes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return c, nil
}

// ExpandNodes expands the first "[first-last]" range of NamePattern into
// one entry per index. An entry without a pattern is returned as is.
func ExpandNodes(def NodeSpec) ([]NodeSpec, error) {
	if def.NamePattern == "" {
		return []NodeSpec{def}, nil
	}

	match := rangePattern.FindStringSubmatchIndex(def.NamePattern)
	if match == nil {
		// A pattern without a range names a single node
		node := def
		if node.Name == "" {
			node.Name = def.NamePattern
		}
		node.NamePattern = ""
		return []NodeSpec{node}, nil
	}

	start, err := strconv.Atoi(def.NamePattern[match[2]:match[3]])
	if err != nil {
		return nil, fmt.Errorf("%w: name_pattern %q: %w", ErrInvalid, def.NamePattern, err)
	}
	end, err := strconv.Atoi(def.NamePattern[match[4]:match[5]])
	if err != nil {
		return nil, fmt.Errorf("%w: name_pattern %q: %w", ErrInvalid, def.NamePattern, err)
	}
	if start > end {
		return nil, fmt.Errorf("%w: name_pattern %q: range start %d is after end %d", ErrInvalid, def.NamePattern, start, end)
	}
	if end-start >= maxPatternNodes {
		return nil, fmt.Errorf("%w: name_pattern %q: expands to more than %d nodes", ErrInvalid, def.NamePattern, maxPatternNodes)
	}

	prefix := def.NamePattern[:match[0]]
	suffix := def.NamePattern[match[1]:]
	nodes := make([]NodeSpec, 0, end-start+1)
	for i := start; i <= end; i++ {
		node := def
		node.Name = prefix + strconv.Itoa(i) + suffix
		node.NamePattern = ""
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (s NodeSpec) node() *cluster.Node {
	n := cluster.NewNode(s.Name, s.GPUsTotal, s.CPUsTotal, int(s.MemoryTotal))
	if s.GPUsAvailable != nil {
		n.GPUsAvailable = *s.GPUsAvailable
	}
	if s.CPUsAvailable != nil {
		n.CPUsAvailable = *s.CPUsAvailable
	}
	if s.MemoryAvailable != nil {
		n.MemoryAvailable = int(*s.MemoryAvailable)
	}
	n.PowerIdle = s.PowerIdle
	n.PowerActive = s.PowerActive
	return n
}

// LoadJobs loads and parses a job list file
func LoadJobs(filename string) ([]*cluster.Job, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs file: %w", err)
	}
	jobs, err := ParseJobs(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs file %s: %w", filename, err)
	}
	return jobs, nil
}

// ParseJobs parses and validates a job list
func ParseJobs(data []byte) ([]*cluster.Job, error) {
	var specs []JobSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse job list: %w", err)
	}
	return BuildJobs(specs)
}

// BuildJobs expands recurring templates and turns the entries into
// validated jobs
func BuildJobs(specs []JobSpec) ([]*cluster.Job, error) {
	var jobs []*cluster.Job
	for i, spec := range specs {
		if err := validateJobSpec(i, spec); err != nil {
			return nil, err
		}
		if spec.Cron == "" {
			jobs = append(jobs, spec.job())
			continue
		}
		instances, err := expandRecurring(spec)
		if err != nil {
			return nil, err
		}
		for _, instance := range instances {
			jobs = append(jobs, instance.job())
		}
	}

	if err := cluster.ValidateJobs(jobs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return jobs, nil
}

// validateJobSpec checks what the job model cannot see after expansion
func validateJobSpec(i int, spec JobSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return fmt.Errorf("%w: job %d: name is required", ErrInvalid, i)
	}
	if spec.Duration <= 0 {
		return fmt.Errorf("%w: job %s: duration must be greater than 0", ErrInvalid, spec.Name)
	}
	if spec.Cron == "" && spec.Until != 0 {
		return fmt.Errorf("%w: job %s: until is only valid with cron", ErrInvalid, spec.Name)
	}
	return nil
}

func (s JobSpec) job() *cluster.Job {
	cpus := defaultCPUs
	if s.CPUs != nil {
		cpus = *s.CPUs
	}
	return &cluster.Job{
		Name:       s.Name,
		SubmitTime: simclock.Time(s.SubmitTime),
		Duration:   simclock.Duration(s.Duration),
		GPUs:       s.GPUs,
		CPUs:       cpus,
		Memory:     int(s.Memory),
		State:      cluster.JobPending,
	}
}

// WriteCluster writes a cluster definition file
func WriteCluster(filename string, file ClusterFile) error {
	return writeYAML(filename, file)
}

// WriteJobs writes a job list file
func WriteJobs(filename string, specs []JobSpec) error {
	return writeYAML(filename, specs)
}

func writeYAML(filename string, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filename, err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}
