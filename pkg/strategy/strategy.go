package strategy

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/sherine-k/schedlab/pkg/cluster"
	"github.com/sherine-k/schedlab/pkg/simclock"
)

// Kind names a scheduling policy.
type Kind string

const (
	KindFIFO     Kind = "fifo"
	KindSJF      Kind = "sjf"
	KindBackfill Kind = "backfill"
)

// Kinds lists every supported policy in a stable order.
func Kinds() []Kind {
	return []Kind{KindFIFO, KindSJF, KindBackfill}
}

// ErrUnknownKind is returned for policy or estimator names that do not exist.
var ErrUnknownKind = errors.New("unknown scheduling strategy")

// ParseKind resolves a policy name, case-insensitively.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownKind, "%q (want one of fifo, sjf, backfill)", name)
}

// Estimator selects how Backfill predicts when the primary job can start.
type Estimator string

const (
	// EstimatorSubmitTime is now plus the earliest submit time among the
	// other queued jobs.
	EstimatorSubmitTime Estimator = "submit-time"
	// EstimatorReservation derives the primary's start from the end times of
	// running allocations.
	EstimatorReservation Estimator = "reservation"
)

// ParseEstimator resolves an estimator name. The empty name selects
// EstimatorSubmitTime.
func ParseEstimator(name string) (Estimator, error) {
	switch e := Estimator(strings.ToLower(strings.TrimSpace(name))); e {
	case "":
		return EstimatorSubmitTime, nil
	case EstimatorSubmitTime, EstimatorReservation:
		return e, nil
	}
	return "", errors.Wrapf(ErrUnknownKind, "backfill estimator %q (want submit-time or reservation)", name)
}

// Strategy places jobs onto the cluster over virtual time.
type Strategy interface {
	Kind() Kind
	// Attach binds the strategy to a run. It is called once, before any job
	// process is registered, and may register coordinating processes.
	Attach(env *Env, jobs []*cluster.Job)
	// Run is the body of the process of job. It returns once the job has
	// completed.
	Run(p *simclock.Proc, job *cluster.Job)
}

// Options tunes a strategy.
type Options struct {
	Estimator Estimator
}

// New creates a strategy of the given kind. Each run needs its own
// instance.
func New(kind Kind, opts Options) (Strategy, error) {
	switch kind {
	case KindFIFO:
		return &fifo{}, nil
	case KindSJF:
		return newSJF(), nil
	case KindBackfill:
		est, err := ParseEstimator(string(opts.Estimator))
		if err != nil {
			return nil, err
		}
		return newBackfill(est), nil
	}
	return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
}
