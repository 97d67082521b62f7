package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sherine-k/schedlab/pkg/cluster"
	"github.com/sherine-k/schedlab/pkg/simclock"
)

// Report file suffixes written by WriteReport.
const (
	JobsReportSuffix    = "_jobs.csv"
	NodesReportSuffix   = "_nodes.csv"
	ClusterReportSuffix = "_cluster.csv"
)

// WriteReport writes the job, node and cluster CSV files for one run into
// dir, named after prefix. Node statistics are computed over [0, until].
// It returns the paths written.
func WriteReport(dir, prefix string, r *Recorder, c *cluster.Cluster, until simclock.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create metrics directory: %w", err)
	}

	var paths []string
	write := func(suffix string, header []string, rows [][]string) error {
		path := filepath.Join(dir, prefix+suffix)
		if err := writeCSV(path, header, rows); err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	}

	if err := write(JobsReportSuffix, jobHeader, jobRows(r)); err != nil {
		return nil, err
	}
	if err := write(NodesReportSuffix, nodeHeader, nodeRows(c, until)); err != nil {
		return nil, err
	}
	if err := write(ClusterReportSuffix, clusterHeader, clusterRows(r)); err != nil {
		return nil, err
	}
	return paths, nil
}

var (
	jobHeader     = []string{"job_name", "waiting_time_seconds", "submit_time", "start_time", "end_time"}
	nodeHeader    = []string{"node_name", "energy_consumed_kWh", "avg_utilization_percent", "avg_idle_time_seconds"}
	clusterHeader = []string{"avg_cluster_utilization_percent", "peak_cluster_utilization_percent", "min_cluster_utilization_percent"}
)

func jobRows(r *Recorder) [][]string {
	rows := make([][]string, 0, len(r.order))
	for _, rec := range r.Jobs() {
		// unset instants stay empty
		row := []string{rec.Name, "", strconv.FormatInt(int64(rec.SubmitTime), 10), "", ""}
		if rec.Started {
			row[1] = strconv.FormatInt(int64(rec.WaitingTime), 10)
			row[3] = strconv.FormatInt(int64(rec.StartTime), 10)
		}
		if rec.Finished {
			row[4] = strconv.FormatInt(int64(rec.EndTime), 10)
		}
		rows = append(rows, row)
	}
	return rows
}

func nodeRows(c *cluster.Cluster, until simclock.Time) [][]string {
	rows := make([][]string, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		rows = append(rows, []string{
			n.Name,
			formatFloat(n.Energy),
			formatFloat(n.AvgUtilization(until)),
			strconv.FormatInt(int64(n.IdleTime(until)), 10),
		})
	}
	return rows
}

func clusterRows(r *Recorder) [][]string {
	stats := r.ClusterStats()
	return [][]string{{
		formatFloat(stats.AvgUtilization),
		formatFloat(stats.PeakUtilization),
		formatFloat(stats.MinUtilization),
	}}
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header to %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows to %s: %w", path, err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
