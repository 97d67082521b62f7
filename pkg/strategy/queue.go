package strategy

import (
	"github.com/pkg/errors"

	"github.com/sherine-k/schedlab/pkg/cluster"
	"github.com/sherine-k/schedlab/pkg/simclock"
)

// ticket is a submitted job parked in a coordinator's queue.
type ticket struct {
	job  *cluster.Job
	done *simclock.Signal
}

// selector picks the next ticket to dispatch and the node to put it on, or
// returns nil when nothing in the queue can start now.
type selector func(q *queue, now simclock.Time) (*ticket, *cluster.Node)

// queue is the single owner of the pending jobs of a queue-based policy.
// Job processes only append to it; one coordinator process makes every
// dispatch decision, so a job can never be picked twice.
type queue struct {
	env      *Env
	name     string
	pending  []*ticket
	tickets  map[*cluster.Job]*ticket
	unplaced int
	arrived  *simclock.Signal

	pick selector

	// sampleOnRetry records a utilization sample after each failed attempt.
	sampleOnRetry bool
}

func newQueue(name string, pick selector, sampleOnRetry bool) *queue {
	return &queue{name: name, pick: pick, sampleOnRetry: sampleOnRetry}
}

func (q *queue) attach(env *Env, jobs []*cluster.Job) {
	q.env = env
	q.pending = nil
	q.unplaced = len(jobs)
	q.tickets = make(map[*cluster.Job]*ticket, len(jobs))
	for _, job := range jobs {
		q.tickets[job] = &ticket{job: job, done: env.Clock.NewSignal()}
	}
	q.arrived = env.Clock.NewSignal()
	if len(jobs) > 0 {
		env.Clock.Register(q.name, q.coordinate)
	}
}

// enqueue is the job process side: submit, join the queue, and wait until
// the coordinator has run the job to completion.
func (q *queue) enqueue(p *simclock.Proc, job *cluster.Job) {
	t, ok := q.tickets[job]
	if !ok {
		p.Fail(errors.Wrapf(cluster.ErrInvalid, "job %s is not part of this run", job.Name))
	}
	q.env.submit(p, job)
	job.State = cluster.JobWaiting
	q.pending = append(q.pending, t)

	arrived := q.arrived
	q.arrived = q.env.Clock.NewSignal()
	arrived.Fire()

	p.Wait(t.done)
}

func (q *queue) coordinate(p *simclock.Proc) {
	for q.unplaced > 0 {
		if len(q.pending) == 0 {
			p.Wait(q.arrived)
			continue
		}
		if t, node := q.pick(q, p.Now()); t != nil {
			q.dispatch(p, t, node)
			continue
		}
		q.env.retry(p, q.arrived)
		if q.sampleOnRetry {
			q.env.sample(p)
		}
	}
}

// dispatch commits t to node and starts its run as a process of its own.
func (q *queue) dispatch(p *simclock.Proc, t *ticket, node *cluster.Node) {
	q.remove(t)
	q.unplaced--
	q.env.commit(p, t.job, node)
	q.env.Clock.Register("run:"+t.job.Name, func(rp *simclock.Proc) {
		q.env.hold(rp, t.job, node)
		t.done.Fire()
	})
}

func (q *queue) remove(t *ticket) {
	for i, cur := range q.pending {
		if cur == t {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}
