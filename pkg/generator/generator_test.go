package generator

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherine-k/schedlab/pkg/config"
)

func TestSameSeedSameOutput(t *testing.T) {
	first, err := New(42).Jobs(DefaultJobOptions())
	require.NoError(t, err)
	second, err := New(42).Jobs(DefaultJobOptions())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	c1, err := New(7).Cluster(DefaultClusterOptions())
	require.NoError(t, err)
	c2, err := New(7).Cluster(DefaultClusterOptions())
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestJobsStayWithinRanges(t *testing.T) {
	opts := DefaultJobOptions()
	specs, err := New(1).Jobs(opts)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(specs), opts.Count.Min)
	require.LessOrEqual(t, len(specs), opts.Count.Max)

	seen := map[string]bool{}
	for _, s := range specs {
		assert.False(t, seen[s.Name], "duplicate name %s", s.Name)
		seen[s.Name] = true
		assert.GreaterOrEqual(t, s.SubmitTime, int64(opts.SubmitTime.Min))
		assert.LessOrEqual(t, s.SubmitTime, int64(opts.SubmitTime.Max))
		assert.GreaterOrEqual(t, s.Duration, int64(opts.Duration.Min))
		assert.LessOrEqual(t, s.Duration, int64(opts.Duration.Max))
		assert.GreaterOrEqual(t, s.GPUs, opts.GPUs.Min)
		assert.LessOrEqual(t, s.GPUs, opts.GPUs.Max)
		require.NotNil(t, s.CPUs)
		assert.LessOrEqual(t, *s.CPUs, opts.CPUs.Max)
		assert.LessOrEqual(t, int(s.Memory), opts.Memory.Max)
	}

	jobs, err := config.BuildJobs(specs)
	require.NoError(t, err)
	assert.Len(t, jobs, len(specs))
}

func TestClusterIsValid(t *testing.T) {
	opts := DefaultClusterOptions()
	file, err := New(3).Cluster(opts)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(file.Nodes), opts.Nodes.Min)

	c, err := config.BuildCluster(file)
	require.NoError(t, err)
	for _, n := range c.Nodes {
		assert.GreaterOrEqual(t, n.PowerActive, float64(opts.PowerActive.Min))
		assert.Equal(t, n.GPUsTotal, n.GPUsAvailable)
	}
}

func TestInvalidRanges(t *testing.T) {
	opts := DefaultJobOptions()
	opts.GPUs = Range{Min: 5, Max: 1}
	_, err := New(1).Jobs(opts)
	assert.ErrorIs(t, err, config.ErrInvalid)

	opts = DefaultJobOptions()
	opts.Duration = Range{Min: 0, Max: 3}
	_, err = New(1).Jobs(opts)
	assert.ErrorIs(t, err, config.ErrInvalid)

	copts := DefaultClusterOptions()
	copts.Nodes = Range{}
	_, err = New(1).Cluster(copts)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestFitJobs(t *testing.T) {
	one := 1
	file := config.ClusterFile{Nodes: []config.NodeSpec{{Name: "n", GPUsTotal: 2, CPUsTotal: 4, MemoryTotal: 8}}}
	specs := []config.JobSpec{
		{Name: "fits", Duration: 1, GPUs: 2, CPUs: &one, Memory: 8},
		{Name: "too-many-gpus", Duration: 1, GPUs: 3},
		{Name: "too-much-memory", Duration: 1, GPUs: 1, Memory: 9},
	}
	fit := FitJobs(specs, file)
	require.Len(t, fit, 1)
	assert.Equal(t, "fits", fit[0].Name)
}

func TestWrittenFilesLoadBack(t *testing.T) {
	g := New(11)
	file, err := g.Cluster(DefaultClusterOptions())
	require.NoError(t, err)
	specs, err := g.Jobs(DefaultJobOptions())
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, config.WriteCluster(filepath.Join(dir, "cluster.yaml"), file))
	require.NoError(t, config.WriteJobs(filepath.Join(dir, "jobs.yaml"), specs))

	c, err := config.LoadCluster(filepath.Join(dir, "cluster.yaml"))
	require.NoError(t, err)
	assert.Len(t, c.Nodes, len(file.Nodes))

	jobs, err := config.LoadJobs(filepath.Join(dir, "jobs.yaml"))
	require.NoError(t, err)
	require.Len(t, jobs, len(specs))
	assert.Equal(t, specs[0].Name, jobs[0].Name)
	assert.Equal(t, *specs[0].CPUs, jobs[0].CPUs)
}
