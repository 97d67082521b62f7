package cmd

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherine-k/schedlab/pkg/metrics"
	"github.com/sherine-k/schedlab/pkg/strategy"
)

func TestParseKinds(t *testing.T) {
	kinds, err := parseKinds(nil)
	require.NoError(t, err)
	assert.Equal(t, strategy.Kinds(), kinds)

	kinds, err = parseKinds([]string{"SJF", "backfill"})
	require.NoError(t, err)
	assert.Equal(t, []strategy.Kind{strategy.KindSJF, strategy.KindBackfill}, kinds)

	_, err = parseKinds([]string{"round-robin"})
	assert.ErrorIs(t, err, strategy.ErrUnknownKind)
}

func TestGenerateThenSimulate(t *testing.T) {
	dir := t.TempDir()
	reports := filepath.Join(dir, "reports")
	promPath := filepath.Join(dir, "schedlab.prom")

	rootCmd.SetArgs([]string{"generate", "--out-dir", dir, "--seed", "5", "--nodes", "2", "--jobs", "6", "--log-level", "error"})
	require.NoError(t, rootCmd.Execute())
	require.FileExists(t, filepath.Join(dir, "cluster.yaml"))
	require.FileExists(t, filepath.Join(dir, "jobs.yaml"))

	rootCmd.SetArgs([]string{
		"--cluster", filepath.Join(dir, "cluster.yaml"),
		"--jobs", filepath.Join(dir, "jobs.yaml"),
		"--scheduler", "backfill",
		"--estimator", "reservation",
		"--metrics-dir", reports,
		"--prom-file", promPath,
		"--log-level", "error",
	})
	require.NoError(t, rootCmd.Execute())

	for _, name := range []string{"backfill_jobs.csv", "backfill_nodes.csv", "backfill_cluster.csv"} {
		assert.FileExists(t, filepath.Join(reports, name))
	}
	prom, err := os.ReadFile(promPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `schedlab_jobs_finished_total{strategy="backfill"} 6`)
}

func TestRootRejectsUnknownScheduler(t *testing.T) {
	rootCmd.SetArgs([]string{"--scheduler", "lottery", "--log-level", "error"})
	err := rootCmd.Execute()
	assert.ErrorIs(t, err, strategy.ErrUnknownKind)
}

func TestServeMetricsUntilCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- serveMetrics(ctx, ln, metrics.NewPrometheus("fifo").Handler())
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `schedlab_jobs_submitted_total{strategy="fifo"} 0`)

	cancel()
	assert.NoError(t, <-served)
}
