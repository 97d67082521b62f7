package strategy

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherine-k/schedlab/pkg/cluster"
	"github.com/sherine-k/schedlab/pkg/metrics"
	"github.com/sherine-k/schedlab/pkg/simclock"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newJob(name string, submit, duration, gpus int) *cluster.Job {
	return &cluster.Job{
		Name:       name,
		SubmitTime: simclock.Time(submit),
		Duration:   simclock.Duration(duration),
		GPUs:       gpus,
		CPUs:       1,
		Memory:     1,
	}
}

func singleNode(gpus int) *cluster.Cluster {
	c, err := cluster.New([]*cluster.Node{cluster.NewNode("n1", gpus, 16, 64)})
	if err != nil {
		panic(err)
	}
	return c
}

func simulate(t *testing.T, kind Kind, opts Options, wake bool, c *cluster.Cluster, jobs []*cluster.Job) *metrics.Recorder {
	t.Helper()
	clock := simclock.New(simclock.WithHorizon(1000))
	rec := metrics.NewRecorder()
	s, err := New(kind, opts)
	require.NoError(t, err)

	s.Attach(NewEnv(clock, c, rec, quietLog(), wake), jobs)
	for _, job := range jobs {
		job := job
		clock.Register("job:"+job.Name, func(p *simclock.Proc) {
			s.Run(p, job)
		})
	}
	require.NoError(t, clock.Run(context.Background()))
	for _, job := range jobs {
		require.Equal(t, cluster.JobDone, job.State, "job %s", job.Name)
	}
	return rec
}

type timing struct {
	start, end int
}

func timings(jobs []*cluster.Job) map[string]timing {
	out := make(map[string]timing, len(jobs))
	for _, j := range jobs {
		out[j.Name] = timing{start: int(j.StartTime), end: int(j.EndTime)}
	}
	return out
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "fifo", want: KindFIFO},
		{in: " SJF ", want: KindSJF},
		{in: "Backfill", want: KindBackfill},
		{in: "round-robin", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEstimator(t *testing.T) {
	got, err := ParseEstimator("")
	require.NoError(t, err)
	assert.Equal(t, EstimatorSubmitTime, got)

	got, err = ParseEstimator("Reservation")
	require.NoError(t, err)
	assert.Equal(t, EstimatorReservation, got)

	_, err = ParseEstimator("oracle")
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = New(KindBackfill, Options{Estimator: "oracle"})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestFIFOSerializesOnSingleGPU(t *testing.T) {
	for _, wake := range []bool{false, true} {
		t.Run(map[bool]string{false: "poll", true: "wake"}[wake], func(t *testing.T) {
			jobs := []*cluster.Job{newJob("a", 0, 5, 1), newJob("b", 0, 3, 1)}
			rec := simulate(t, KindFIFO, Options{}, wake, singleNode(1), jobs)

			assert.Equal(t, map[string]timing{"a": {0, 5}, "b": {5, 8}}, timings(jobs))
			assert.Equal(t, simclock.Duration(5), jobs[1].WaitingTime)

			b, ok := rec.Job("b")
			require.True(t, ok)
			assert.True(t, b.Finished)
			assert.Equal(t, simclock.Time(8), b.EndTime)
		})
	}
}

func TestFIFOSamplesUtilizationWhileWaiting(t *testing.T) {
	jobs := []*cluster.Job{newJob("a", 0, 3, 1), newJob("b", 0, 1, 1)}
	rec := simulate(t, KindFIFO, Options{}, false, singleNode(1), jobs)

	var retries int
	for _, s := range rec.Samples() {
		if s.Time > 0 && s.Time < 3 {
			retries++
		}
	}
	assert.Equal(t, 2, retries)
}

func TestSJFRunsShortestQueuedJobFirst(t *testing.T) {
	for _, wake := range []bool{false, true} {
		t.Run(map[bool]string{false: "poll", true: "wake"}[wake], func(t *testing.T) {
			jobs := []*cluster.Job{
				newJob("blocker", 0, 5, 1),
				newJob("long", 1, 10, 1),
				newJob("short", 2, 2, 1),
			}
			simulate(t, KindSJF, Options{}, wake, singleNode(1), jobs)

			assert.Equal(t, map[string]timing{
				"blocker": {0, 5},
				"short":   {5, 7},
				"long":    {7, 17},
			}, timings(jobs))
			assert.Equal(t, simclock.Duration(3), jobs[2].WaitingTime)
			assert.Equal(t, simclock.Duration(6), jobs[1].WaitingTime)
		})
	}
}

func TestSJFKeepsQueueOrderForEqualDurations(t *testing.T) {
	jobs := []*cluster.Job{
		newJob("blocker", 0, 2, 1),
		newJob("first", 1, 3, 1),
		newJob("second", 1, 3, 1),
	}
	simulate(t, KindSJF, Options{}, false, singleNode(1), jobs)

	assert.Equal(t, simclock.Time(2), jobs[1].StartTime)
	assert.Equal(t, simclock.Time(5), jobs[2].StartTime)
}

func TestSJFDispatchesSeveralJobsAtOneInstant(t *testing.T) {
	jobs := []*cluster.Job{newJob("a", 0, 4, 1), newJob("b", 0, 2, 1), newJob("c", 0, 3, 1)}
	simulate(t, KindSJF, Options{}, false, singleNode(3), jobs)

	for _, j := range jobs {
		assert.Equal(t, simclock.Time(0), j.StartTime, j.Name)
		assert.Equal(t, simclock.Duration(0), j.WaitingTime, j.Name)
	}
}

// big holds three of four GPUs, wide needs all four, small needs one.
func backfillScenario() []*cluster.Job {
	return []*cluster.Job{
		newJob("big", 0, 4, 3),
		newJob("wide", 1, 4, 4),
		newJob("small", 2, 1, 1),
	}
}

func TestBackfillSubmitTimeEstimatorBlocksBehindPrimary(t *testing.T) {
	jobs := backfillScenario()
	simulate(t, KindBackfill, Options{Estimator: EstimatorSubmitTime}, false, singleNode(4), jobs)

	assert.Equal(t, map[string]timing{
		"big":   {0, 4},
		"wide":  {4, 8},
		"small": {8, 9},
	}, timings(jobs))
}

func TestBackfillReservationEstimatorFillsGap(t *testing.T) {
	for _, wake := range []bool{false, true} {
		t.Run(map[bool]string{false: "poll", true: "wake"}[wake], func(t *testing.T) {
			jobs := backfillScenario()
			simulate(t, KindBackfill, Options{Estimator: EstimatorReservation}, wake, singleNode(4), jobs)

			assert.Equal(t, map[string]timing{
				"big":   {0, 4},
				"small": {2, 3},
				"wide":  {4, 8},
			}, timings(jobs))
		})
	}
}

func TestBackfillReservationDoesNotDelayPrimary(t *testing.T) {
	jobs := []*cluster.Job{
		newJob("big", 0, 4, 3),
		newJob("wide", 1, 4, 4),
		newJob("slow", 2, 5, 1),
	}
	simulate(t, KindBackfill, Options{Estimator: EstimatorReservation}, false, singleNode(4), jobs)

	assert.Equal(t, simclock.Time(4), jobs[1].StartTime)
	assert.Equal(t, simclock.Time(8), jobs[2].StartTime)
}

func TestEstimateBySubmitTime(t *testing.T) {
	primary := newJob("p", 1, 1, 1)
	others := []*cluster.Job{primary, newJob("x", 7, 1, 1), newJob("y", 3, 1, 1)}

	assert.Equal(t, simclock.Time(13), EstimateBySubmitTime(10, primary, others))
	assert.Equal(t, simclock.Time(20), EstimateBySubmitTime(10, primary, []*cluster.Job{primary}))
}

func TestReservationAndBackfillable(t *testing.T) {
	c, err := cluster.New([]*cluster.Node{cluster.NewNode("n1", 4, 16, 64), cluster.NewNode("n2", 2, 16, 64)})
	require.NoError(t, err)
	n1, n2 := c.Nodes[0], c.Nodes[1]

	running := newJob("running", 0, 6, 3)
	require.NoError(t, c.Allocate(n1, running, 0))
	other := newJob("other", 0, 9, 2)
	require.NoError(t, c.Allocate(n2, other, 0))

	primary := newJob("primary", 1, 5, 4)
	shadow, reserved := Reservation(c, primary, 2)
	assert.Equal(t, simclock.Time(6), shadow)
	assert.Same(t, n1, reserved)

	short := newJob("short", 2, 3, 1)
	long := newJob("long", 2, 8, 1)
	assert.True(t, Backfillable(short, n1, 2, shadow, reserved))
	assert.False(t, Backfillable(long, n1, 2, shadow, reserved))
	assert.True(t, Backfillable(long, n2, 2, shadow, reserved))
	assert.False(t, Backfillable(short, nil, 2, shadow, reserved))

	huge := newJob("huge", 1, 1, 8)
	shadow, reserved = Reservation(c, huge, 2)
	assert.Equal(t, simclock.Forever, shadow)
	assert.Nil(t, reserved)
}
