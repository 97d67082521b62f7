package cluster

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/sherine-k/schedlab/pkg/simclock"
)

var (
	// ErrInvalid marks malformed job or node definitions.
	ErrInvalid = errors.New("invalid definition")
	// ErrInvariant marks a resource accounting violation; a run that hits it
	// must abort.
	ErrInvariant = errors.New("resource invariant violated")
)

// Cluster is an ordered set of nodes. The order is the first-fit scan order.
type Cluster struct {
	Nodes []*Node
}

// New creates a cluster from nodes after validating them.
func New(nodes []*Node) (*Cluster, error) {
	c := &Cluster{Nodes: nodes}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks node names and capacities.
func (c *Cluster) Validate() error {
	if len(c.Nodes) == 0 {
		return errors.Wrap(ErrInvalid, "cluster has no nodes")
	}
	seen := make(map[string]bool, len(c.Nodes))
	for i, n := range c.Nodes {
		if n.Name == "" {
			return errors.Wrapf(ErrInvalid, "node %d: name is required", i)
		}
		if seen[n.Name] {
			return errors.Wrapf(ErrInvalid, "duplicate node name: %s", n.Name)
		}
		seen[n.Name] = true
		if n.GPUsTotal < 0 || n.CPUsTotal < 0 || n.MemoryTotal < 0 {
			return errors.Wrapf(ErrInvalid, "node %s: capacity must not be negative", n.Name)
		}
		if msg := outOfBounds(n); msg != "" {
			return errors.Wrap(ErrInvalid, msg)
		}
		if n.PowerIdle < 0 || n.PowerActive < 0 {
			return errors.Wrapf(ErrInvalid, "node %s: power must not be negative", n.Name)
		}
	}
	return nil
}

// Node returns the node called name, or nil.
func (c *Cluster) Node(name string) *Node {
	for _, n := range c.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// FindFirstFit returns the first node, in cluster order, that can host job,
// or nil. It has no side effects.
func FindFirstFit(c *Cluster, job *Job) *Node {
	for _, n := range c.Nodes {
		if CanPlace(n, job) {
			return n
		}
	}
	return nil
}

// Schedulable reports whether job fits on some node when that node is
// otherwise empty. Availability only returns to its initial value after
// releases, so a job failing this check can never be placed.
func (c *Cluster) Schedulable(job *Job) bool {
	for _, n := range c.Nodes {
		free := n.GPUsAvailable
		cpus := n.CPUsAvailable
		mem := n.MemoryAvailable
		for _, a := range n.allocations {
			free += a.Job.GPUs
			cpus += a.Job.CPUs
			mem += a.Job.Memory
		}
		if free >= job.GPUs && cpus >= job.CPUs && mem >= job.Memory {
			return true
		}
	}
	return false
}

// Allocate commits job to node at time now. The check and the decrement
// happen together so no other process can observe an intermediate state.
func (c *Cluster) Allocate(node *Node, job *Job, now simclock.Time) error {
	if !CanPlace(node, job) {
		return errors.Wrapf(ErrInvariant, "job %s does not fit on node %s (free gpus=%d cpus=%d mem=%d)",
			job.Name, node.Name, node.GPUsAvailable, node.CPUsAvailable, node.MemoryAvailable)
	}
	node.account(now)
	node.GPUsAvailable -= job.GPUs
	node.CPUsAvailable -= job.CPUs
	node.MemoryAvailable -= job.Memory
	node.allocations = append(node.allocations, Allocation{
		Job:   job,
		Start: now,
		End:   now + simclock.Time(job.Duration),
	})
	return c.check(node)
}

// Release returns the capacity job holds on node.
func (c *Cluster) Release(node *Node, job *Job, now simclock.Time) error {
	idx := -1
	for i, a := range node.allocations {
		if a.Job == job {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.Wrapf(ErrInvariant, "job %s released from node %s without an allocation", job.Name, node.Name)
	}
	node.account(now)
	node.allocations = append(node.allocations[:idx], node.allocations[idx+1:]...)
	node.GPUsAvailable += job.GPUs
	node.CPUsAvailable += job.CPUs
	node.MemoryAvailable += job.Memory
	return c.check(node)
}

// Utilization returns the share of all cluster resources in use, in percent.
// GPUs, CPUs and memory are summed into one pool.
func (c *Cluster) Utilization() float64 {
	var total, used int
	for _, n := range c.Nodes {
		total += n.GPUsTotal + n.CPUsTotal + n.MemoryTotal
		used += (n.GPUsTotal - n.GPUsAvailable) + (n.CPUsTotal - n.CPUsAvailable) + (n.MemoryTotal - n.MemoryAvailable)
	}
	if total == 0 {
		return 0
	}
	return float64(used) / float64(total) * 100
}

// TotalEnergy sums the energy of every node in kWh.
func (c *Cluster) TotalEnergy() float64 {
	var e float64
	for _, n := range c.Nodes {
		e += n.Energy
	}
	return e
}

// Clone returns a copy of the cluster with fresh run state.
func (c *Cluster) Clone() *Cluster {
	nodes := make([]*Node, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		nodes = append(nodes, n.Clone())
	}
	return &Cluster{Nodes: nodes}
}

func (c *Cluster) check(node *Node) error {
	if msg := outOfBounds(node); msg != "" {
		return errors.Wrap(ErrInvariant, msg)
	}
	var gpus, cpus, mem int
	for _, a := range node.allocations {
		gpus += a.Job.GPUs
		cpus += a.Job.CPUs
		mem += a.Job.Memory
	}
	if gpus > node.GPUsTotal || cpus > node.CPUsTotal || mem > node.MemoryTotal {
		return errors.Wrapf(ErrInvariant, "node %s over-allocated: running demand gpus=%d cpus=%d mem=%d exceeds totals %d/%d/%d",
			node.Name, gpus, cpus, mem, node.GPUsTotal, node.CPUsTotal, node.MemoryTotal)
	}
	return nil
}

func outOfBounds(n *Node) string {
	switch {
	case n.GPUsAvailable < 0 || n.GPUsAvailable > n.GPUsTotal:
		return fmt.Sprintf("node %s gpus available %d outside [0, %d]", n.Name, n.GPUsAvailable, n.GPUsTotal)
	case n.CPUsAvailable < 0 || n.CPUsAvailable > n.CPUsTotal:
		return fmt.Sprintf("node %s cpus available %d outside [0, %d]", n.Name, n.CPUsAvailable, n.CPUsTotal)
	case n.MemoryAvailable < 0 || n.MemoryAvailable > n.MemoryTotal:
		return fmt.Sprintf("node %s memory available %d outside [0, %d]", n.Name, n.MemoryAvailable, n.MemoryTotal)
	}
	return ""
}
