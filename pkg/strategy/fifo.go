package strategy

import (
	"github.com/sherine-k/schedlab/pkg/cluster"
	"github.com/sherine-k/schedlab/pkg/simclock"
)

// fifo lets every job process poll for a first-fit node on its own. Jobs are
// tried in the order their processes run, which is submission order.
type fifo struct {
	env *Env
}

func (f *fifo) Kind() Kind {
	return KindFIFO
}

func (f *fifo) Attach(env *Env, _ []*cluster.Job) {
	f.env = env
}

func (f *fifo) Run(p *simclock.Proc, job *cluster.Job) {
	env := f.env
	env.submit(p, job)
	for {
		if node := cluster.FindFirstFit(env.Cluster, job); node != nil {
			env.commit(p, job, node)
			env.hold(p, job, node)
			return
		}
		job.State = cluster.JobWaiting
		env.retry(p)
		env.sample(p)
	}
}
