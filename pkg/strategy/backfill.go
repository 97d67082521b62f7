package strategy

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/sherine-k/schedlab/pkg/cluster"
	"github.com/sherine-k/schedlab/pkg/simclock"
)

// backfill keeps the queue in submission order. The head is the primary
// job; any queued job may jump ahead of it when the estimator says doing
// so does not delay the primary.
type backfill struct {
	q         *queue
	estimator Estimator
}

func newBackfill(est Estimator) *backfill {
	b := &backfill{estimator: est}
	b.q = newQueue("backfill-coordinator", b.next, false)
	return b
}

func (b *backfill) Kind() Kind {
	return KindBackfill
}

func (b *backfill) Attach(env *Env, jobs []*cluster.Job) {
	b.q.attach(env, jobs)
}

func (b *backfill) Run(p *simclock.Proc, job *cluster.Job) {
	b.q.enqueue(p, job)
}

func (b *backfill) next(q *queue, now simclock.Time) (*ticket, *cluster.Node) {
	sort.SliceStable(q.pending, func(i, j int) bool {
		return q.pending[i].job.SubmitTime < q.pending[j].job.SubmitTime
	})
	primary := q.pending[0].job
	c := q.env.Cluster

	var eligible func(job *cluster.Job, node *cluster.Node) bool
	switch b.estimator {
	case EstimatorReservation:
		shadow, reserved := Reservation(c, primary, now)
		eligible = func(job *cluster.Job, node *cluster.Node) bool {
			return job == primary || Backfillable(job, node, now, shadow, reserved)
		}
	default:
		est := EstimateBySubmitTime(now, primary, queuedJobs(q.pending))
		eligible = func(job *cluster.Job, node *cluster.Node) bool {
			return est < job.SubmitTime
		}
	}

	for _, t := range q.pending {
		node := cluster.FindFirstFit(c, t.job)
		if node == nil || !eligible(t.job, node) {
			continue
		}
		if t.job != primary {
			q.env.Log.WithFields(logrus.Fields{
				"t":        now,
				"job":      t.job.Name,
				"ahead_of": primary.Name,
			}).Debug("job backfilled")
		}
		return t, node
	}
	if node := cluster.FindFirstFit(c, primary); node != nil {
		return q.pending[0], node
	}
	return nil, nil
}

// EstimateBySubmitTime predicts the start of primary as now plus the
// earliest submit time among the other queued jobs, or now plus now when
// there are none. The estimate is never before now, so no queued job
// qualifies for backfilling under it and Backfill dispatches in submission
// order.
func EstimateBySubmitTime(now simclock.Time, primary *cluster.Job, queued []*cluster.Job) simclock.Time {
	earliest := now
	found := false
	for _, job := range queued {
		if job == primary {
			continue
		}
		if !found || job.SubmitTime < earliest {
			earliest = job.SubmitTime
			found = true
		}
	}
	return now + earliest
}

// Reservation returns the earliest instant at which primary fits on some
// node, assuming running jobs end on schedule and nothing else starts, and
// the node that instant belongs to. When primary never fits the instant is
// simclock.Forever and the node is nil.
func Reservation(c *cluster.Cluster, primary *cluster.Job, now simclock.Time) (simclock.Time, *cluster.Node) {
	shadow := simclock.Forever
	var reserved *cluster.Node
	for _, n := range c.Nodes {
		if at, ok := earliestFit(n, primary, now); ok && at < shadow {
			shadow, reserved = at, n
		}
	}
	return shadow, reserved
}

// Backfillable reports whether job, which fits on node right now, may start
// ahead of the primary reservation: it either ends by shadow or runs on a
// node other than the reserved one.
func Backfillable(job *cluster.Job, node *cluster.Node, now, shadow simclock.Time, reserved *cluster.Node) bool {
	if node == nil {
		return false
	}
	return now+simclock.Time(job.Duration) <= shadow || node != reserved
}

func earliestFit(n *cluster.Node, job *cluster.Job, now simclock.Time) (simclock.Time, bool) {
	if cluster.CanPlace(n, job) {
		return now, true
	}
	allocs := append([]cluster.Allocation(nil), n.Allocations()...)
	sort.SliceStable(allocs, func(i, j int) bool { return allocs[i].End < allocs[j].End })

	gpus, cpus, mem := n.GPUsAvailable, n.CPUsAvailable, n.MemoryAvailable
	for _, a := range allocs {
		gpus += a.Job.GPUs
		cpus += a.Job.CPUs
		mem += a.Job.Memory
		if gpus >= job.GPUs && cpus >= job.CPUs && mem >= job.Memory {
			if a.End < now {
				return now, true
			}
			return a.End, true
		}
	}
	return 0, false
}

func queuedJobs(pending []*ticket) []*cluster.Job {
	jobs := make([]*cluster.Job, 0, len(pending))
	for _, t := range pending {
		jobs = append(jobs, t.job)
	}
	return jobs
}
