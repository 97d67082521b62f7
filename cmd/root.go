package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sherine-k/schedlab/pkg/chart"
	"github.com/sherine-k/schedlab/pkg/config"
	"github.com/sherine-k/schedlab/pkg/metrics"
	"github.com/sherine-k/schedlab/pkg/simclock"
	"github.com/sherine-k/schedlab/pkg/simulation"
	"github.com/sherine-k/schedlab/pkg/strategy"
)

var (
	clusterFile        string
	jobsFile           string
	schedulerName      string
	estimatorName      string
	wakeOnRelease      bool
	horizon            int64
	stallTimeout       time.Duration
	allowUnschedulable bool
	metricsDir         string
	promFile           string
	promListen         string
	showChart          bool
	showEventSummary   bool
	showTimeline       bool
	timelineLimit      int
	logLevel           string
	logFile            string
)

var rootCmd = &cobra.Command{
	Use:   "schedlab",
	Short: "Cluster job scheduling simulator",
	Long: `A CLI tool that simulates job scheduling on a compute cluster.

This tool reads a cluster definition and a list of jobs, replays them in
virtual time under a scheduling strategy (fifo, sjf or backfill), and reports
waiting times, utilization and energy consumption, with optional charts,
CSV reports and Prometheus metrics.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	RunE:              runSimulation,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file")

	rootCmd.Flags().StringVarP(&clusterFile, "cluster", "c", "cluster.yaml", "Path to cluster definition file")
	rootCmd.Flags().StringVarP(&jobsFile, "jobs", "j", "jobs.yaml", "Path to jobs file")
	rootCmd.Flags().StringVarP(&schedulerName, "scheduler", "s", string(strategy.KindFIFO), "Scheduling strategy (fifo, sjf, backfill)")
	rootCmd.Flags().StringVar(&estimatorName, "estimator", string(strategy.EstimatorSubmitTime), "Backfill start estimator (submit-time, reservation)")
	rootCmd.Flags().BoolVar(&wakeOnRelease, "wake-on-release", false, "Wake waiting jobs on resource release instead of polling every time unit")
	rootCmd.Flags().Int64Var(&horizon, "horizon", 0, "Abort the run past this virtual time (0 means no limit)")
	rootCmd.Flags().DurationVar(&stallTimeout, "stall-timeout", simulation.DefaultStallTimeout, "Abort when a process runs this long without yielding")
	rootCmd.Flags().BoolVar(&allowUnschedulable, "allow-unschedulable", false, "Run even when some jobs fit no node")
	rootCmd.Flags().StringVar(&metricsDir, "metrics-dir", "", "Write job, node and cluster CSV reports to this directory")
	rootCmd.Flags().StringVar(&promFile, "prom-file", "", "Write Prometheus metrics in text format to this file")
	rootCmd.Flags().StringVar(&promListen, "prom-listen", "", "Serve Prometheus metrics on this address (e.g. :9090) until interrupted")
	rootCmd.Flags().BoolVar(&showChart, "chart", true, "Show job and utilization charts")
	rootCmd.Flags().BoolVar(&showEventSummary, "event-summary", true, "Show event summary")
	rootCmd.Flags().BoolVarP(&showTimeline, "timeline", "t", false, "Show detailed timeline of events")
	rootCmd.Flags().IntVarP(&timelineLimit, "timeline-limit", "l", 50, "Limit number of timeline events to display")
}

// engineOptions turns the shared simulation flags into engine options
func engineOptions(estimator strategy.Estimator) []simulation.SetOption {
	opts := []simulation.SetOption{
		simulation.WithLogger(logrus.StandardLogger()),
		simulation.WithEstimator(estimator),
		simulation.WithHorizon(simclock.Time(horizon)),
		simulation.WithStallTimeout(stallTimeout),
	}
	if wakeOnRelease {
		opts = append(opts, simulation.WithWakeOnRelease())
	}
	if allowUnschedulable {
		opts = append(opts, simulation.WithAllowUnschedulable())
	}
	return opts
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	kind, err := strategy.ParseKind(schedulerName)
	if err != nil {
		return fmt.Errorf("invalid --scheduler: %w", err)
	}
	estimator, err := strategy.ParseEstimator(estimatorName)
	if err != nil {
		return fmt.Errorf("invalid --estimator: %w", err)
	}

	c, err := config.LoadCluster(clusterFile)
	if err != nil {
		return fmt.Errorf("failed to load cluster: %w", err)
	}
	jobs, err := config.LoadJobs(jobsFile)
	if err != nil {
		return fmt.Errorf("failed to load jobs: %w", err)
	}

	fmt.Printf("Loaded cluster from %s and jobs from %s\n", clusterFile, jobsFile)
	fmt.Printf("  - Nodes: %d\n", len(c.Nodes))
	fmt.Printf("  - Jobs: %d\n", len(jobs))
	fmt.Printf("  - Scheduler: %s\n", kind)
	if kind == strategy.KindBackfill {
		fmt.Printf("  - Estimator: %s\n", estimator)
	}
	fmt.Println()

	opts := engineOptions(estimator)
	var prom *metrics.Prometheus
	var promListener net.Listener
	if promListen != "" {
		promListener, err = net.Listen("tcp", promListen)
		if err != nil {
			return fmt.Errorf("invalid --prom-listen: %w", err)
		}
		defer promListener.Close()
	}
	if promFile != "" || promListener != nil {
		prom = metrics.NewPrometheus(string(kind))
		opts = append(opts, simulation.WithCollector(prom))
	}

	engine, err := simulation.NewEngine(c, jobs, kind, opts...)
	if err != nil {
		return fmt.Errorf("failed to create simulation: %w", err)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	if err := engine.Run(ctx); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	summary := engine.Summary()
	summary.Log(logrus.StandardLogger())

	chartGen := chart.NewGenerator()
	recorder := engine.Recorder()
	events := recorder.Events()

	if showChart {
		timePoints := engine.TimePoints(chartGen.PlotWidth())
		fmt.Println(chartGen.GenerateJobChart(timePoints))
		fmt.Println(chartGen.GenerateUtilizationChart(timePoints))
	}

	if showEventSummary {
		fmt.Println(chartGen.GenerateEventSummary(events))
	}

	fmt.Println(chartGen.GenerateWaitingTable(recorder.Jobs()))
	fmt.Println(chartGen.GenerateWarnings(recorder.Warnings()))

	if showTimeline {
		fmt.Println(chartGen.GenerateDetailedTimeline(events, timelineLimit))
	}

	fmt.Printf("Makespan: %s, total energy: %.4f kWh, mean wait: %.2f\n",
		chart.FormatDuration(simclock.Duration(summary.Makespan)), summary.TotalEnergy, summary.Waiting.Mean)

	if metricsDir != "" {
		paths, err := metrics.WriteReport(metricsDir, string(kind), recorder, engine.Cluster(), engine.Makespan())
		if err != nil {
			return fmt.Errorf("failed to write metrics report: %w", err)
		}
		for _, p := range paths {
			logrus.WithField("path", p).Info("metrics report written")
		}
	}

	if promFile != "" {
		if err := prom.WriteTextfile(promFile); err != nil {
			return fmt.Errorf("failed to write prometheus metrics: %w", err)
		}
		logrus.WithField("path", promFile).Info("prometheus metrics written")
	}

	if promListener != nil {
		logrus.WithField("address", promListener.Addr().String()).Info("serving prometheus metrics, interrupt to stop")
		if err := serveMetrics(ctx, promListener, prom.Handler()); err != nil {
			return fmt.Errorf("failed to serve prometheus metrics: %w", err)
		}
	}

	return nil
}
