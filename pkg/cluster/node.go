package cluster

import (
	"github.com/sherine-k/schedlab/pkg/simclock"
)

// Node is one machine of the cluster. Totals are fixed for a run; the
// available fields move as jobs are dispatched and complete.
type Node struct {
	Name        string
	GPUsTotal   int
	CPUsTotal   int
	MemoryTotal int

	GPUsAvailable   int
	CPUsAvailable   int
	MemoryAvailable int

	PowerIdle   float64
	PowerActive float64

	// Energy is the accumulated consumption in kWh.
	Energy float64

	allocations []Allocation

	// time accounting for per-node statistics
	lastChange simclock.Time
	usedArea   float64
	idleTime   simclock.Duration
}

// Allocation is a job currently holding capacity on a node.
type Allocation struct {
	Job   *Job
	Start simclock.Time
	End   simclock.Time
}

// NewNode creates a node with all capacity available.
func NewNode(name string, gpus, cpus, memory int) *Node {
	return &Node{
		Name:            name,
		GPUsTotal:       gpus,
		CPUsTotal:       cpus,
		MemoryTotal:     memory,
		GPUsAvailable:   gpus,
		CPUsAvailable:   cpus,
		MemoryAvailable: memory,
	}
}

// CanPlace reports whether every available resource of node covers the
// demand of job. It has no side effects.
func CanPlace(node *Node, job *Job) bool {
	return node.GPUsAvailable >= job.GPUs &&
		node.CPUsAvailable >= job.CPUs &&
		node.MemoryAvailable >= job.Memory
}

// Allocations returns the jobs currently running on the node.
func (n *Node) Allocations() []Allocation {
	return n.allocations
}

// Busy reports whether any job runs on the node.
func (n *Node) Busy() bool {
	return len(n.allocations) > 0
}

// UsedFraction is the share of the node's summed capacity in use.
func (n *Node) UsedFraction() float64 {
	total := n.GPUsTotal + n.CPUsTotal + n.MemoryTotal
	if total == 0 {
		return 0
	}
	used := (n.GPUsTotal - n.GPUsAvailable) + (n.CPUsTotal - n.CPUsAvailable) + (n.MemoryTotal - n.MemoryAvailable)
	return float64(used) / float64(total)
}

// AvgUtilization returns the time-weighted utilization percentage of the
// node over [0, until].
func (n *Node) AvgUtilization(until simclock.Time) float64 {
	if until <= 0 {
		return 0
	}
	area := n.usedArea
	if until > n.lastChange {
		area += n.UsedFraction() * float64(until-n.lastChange)
	}
	return area / float64(until) * 100
}

// IdleTime returns how long the node held no job over [0, until].
func (n *Node) IdleTime(until simclock.Time) simclock.Duration {
	idle := n.idleTime
	if until > n.lastChange && !n.Busy() {
		idle += simclock.Duration(until - n.lastChange)
	}
	return idle
}

// Clone returns a copy of the node definition with its initial
// availability and no run state.
func (n *Node) Clone() *Node {
	return &Node{
		Name:            n.Name,
		GPUsTotal:       n.GPUsTotal,
		CPUsTotal:       n.CPUsTotal,
		MemoryTotal:     n.MemoryTotal,
		GPUsAvailable:   n.GPUsAvailable,
		CPUsAvailable:   n.CPUsAvailable,
		MemoryAvailable: n.MemoryAvailable,
		PowerIdle:       n.PowerIdle,
		PowerActive:     n.PowerActive,
	}
}

func (n *Node) account(now simclock.Time) {
	if now <= n.lastChange {
		return
	}
	span := now - n.lastChange
	n.usedArea += n.UsedFraction() * float64(span)
	if !n.Busy() {
		n.idleTime += simclock.Duration(span)
	}
	n.lastChange = now
}
