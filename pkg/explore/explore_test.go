package explore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherine-k/schedlab/pkg/cluster"
	"github.com/sherine-k/schedlab/pkg/simclock"
	"github.com/sherine-k/schedlab/pkg/simulation"
	"github.com/sherine-k/schedlab/pkg/strategy"
)

type memoryStore struct {
	saved []Result
	err   error
}

func (m *memoryStore) Save(_ context.Context, results []Result) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, results...)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func scenario(t *testing.T, name string, gpus int) Scenario {
	t.Helper()
	n := cluster.NewNode(name+"-1", gpus, 8, 32)
	n.PowerActive = 3600
	c, err := cluster.New([]*cluster.Node{n})
	require.NoError(t, err)
	return Scenario{Name: name, Cluster: c}
}

func jobs() []*cluster.Job {
	return []*cluster.Job{
		{Name: "a", SubmitTime: 0, Duration: 3, GPUs: 1, CPUs: 1, Memory: 1, State: cluster.JobPending},
		{Name: "b", SubmitTime: 1, Duration: 2, GPUs: 1, CPUs: 1, Memory: 1, State: cluster.JobPending},
	}
}

func TestExploreEveryCombination(t *testing.T) {
	store := &memoryStore{}
	small := scenario(t, "small", 1)
	wide := scenario(t, "wide", 2)
	input := jobs()

	x := New([]Scenario{small, wide}, input, WithLogger(quietLogger()), WithStore(store))
	results, err := x.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2*len(strategy.Kinds()))
	assert.Equal(t, results, store.saved)

	for i, r := range results {
		require.NoError(t, r.Err, "%s/%s", r.Scenario, r.Strategy)
		assert.NotEmpty(t, r.RunID)
		assert.Equal(t, 2, r.Jobs)
		assert.Equal(t, strategy.Kinds()[i%len(strategy.Kinds())], r.Strategy)
		if r.Scenario == "small" {
			assert.Equal(t, simclock.Time(5), r.Makespan)
			assert.InDelta(t, 1.0, r.AvgWait, 1e-9)
		} else {
			assert.Equal(t, simclock.Time(3), r.Makespan)
			assert.InDelta(t, 0.0, r.AvgWait, 1e-9)
		}
		assert.Positive(t, r.EnergyKWh)
	}

	// inputs are cloned for every run
	assert.Equal(t, cluster.JobPending, input[0].State)
	assert.Equal(t, 1, small.Cluster.Nodes[0].GPUsAvailable)
	assert.Zero(t, small.Cluster.Nodes[0].Energy)
}

func TestExploreRecordsFailedRuns(t *testing.T) {
	input := append(jobs(), &cluster.Job{Name: "huge", Duration: 1, GPUs: 4, CPUs: 1, Memory: 1})

	x := New([]Scenario{scenario(t, "small", 1)}, input,
		WithLogger(quietLogger()), WithKinds(strategy.KindFIFO, strategy.KindSJF))
	results, err := x.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, simulation.ErrUnschedulable)
		assert.NotEmpty(t, r.RunID)
	}

	x = New([]Scenario{scenario(t, "small", 1)}, input, WithLogger(quietLogger()),
		WithKinds(strategy.KindFIFO),
		WithEngineOptions(simulation.WithAllowUnschedulable(), simulation.WithWakeOnRelease()))
	results, err = x.Run(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err, simulation.ErrDeadlock)
}

func TestExploreStoreFailure(t *testing.T) {
	store := &memoryStore{err: errors.New("disk full")}
	x := New([]Scenario{scenario(t, "small", 1)}, jobs(), WithLogger(quietLogger()), WithStore(store))
	results, err := x.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, results, len(strategy.Kinds()))
}

func TestExploreStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	x := New([]Scenario{scenario(t, "small", 1)}, jobs(), WithLogger(quietLogger()))
	results, err := x.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, []Result{
		{Scenario: "small", Strategy: strategy.KindFIFO, Jobs: 2, Makespan: 5, AvgWait: 1, EnergyKWh: 5},
		{Scenario: "small", Strategy: strategy.KindSJF, Jobs: 2, Err: errors.New("boom")},
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "SCENARIO"))
	assert.Contains(t, lines[1], "fifo")
	assert.Contains(t, lines[1], "5.0000")
	assert.True(t, strings.HasSuffix(lines[1], "ok"))
	assert.True(t, strings.HasSuffix(lines[2], "boom"))
}
