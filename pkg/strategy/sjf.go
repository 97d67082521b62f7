package strategy

import (
	"sort"

	"github.com/sherine-k/schedlab/pkg/cluster"
	"github.com/sherine-k/schedlab/pkg/simclock"
)

// sjf dispatches the shortest queued job that fits. Equal durations keep
// their queue order.
type sjf struct {
	q *queue
}

func newSJF() *sjf {
	s := &sjf{}
	s.q = newQueue("sjf-coordinator", s.next, true)
	return s
}

func (s *sjf) Kind() Kind {
	return KindSJF
}

func (s *sjf) Attach(env *Env, jobs []*cluster.Job) {
	s.q.attach(env, jobs)
}

func (s *sjf) Run(p *simclock.Proc, job *cluster.Job) {
	s.q.enqueue(p, job)
}

func (s *sjf) next(q *queue, _ simclock.Time) (*ticket, *cluster.Node) {
	sort.SliceStable(q.pending, func(i, j int) bool {
		return q.pending[i].job.Duration < q.pending[j].job.Duration
	})
	for _, t := range q.pending {
		if node := cluster.FindFirstFit(q.env.Cluster, t.job); node != nil {
			return t, node
		}
	}
	return nil, nil
}
