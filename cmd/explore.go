package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sherine-k/schedlab/pkg/cluster"
	"github.com/sherine-k/schedlab/pkg/config"
	"github.com/sherine-k/schedlab/pkg/explore"
	"github.com/sherine-k/schedlab/pkg/generator"
	"github.com/sherine-k/schedlab/pkg/simulation"
	"github.com/sherine-k/schedlab/pkg/strategy"
)

var (
	exploreClusters    []string
	exploreJobsFile    string
	exploreStrategies  []string
	exploreGenClusters int
	exploreGenJobs     int
	exploreSeed        int64
	explorePostgresURL string
)

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Compare every strategy over several clusters",
	Long: `Run the same job set under every scheduling strategy on every cluster
and print one result row per combination.

Clusters come from --cluster files or are generated at random. Jobs come
from --jobs or are generated at random; generated jobs that fit no cluster
are dropped so every run can complete.`,
	RunE: runExplore,
}

func init() {
	exploreCmd.Flags().StringSliceVarP(&exploreClusters, "cluster", "c", nil, "Cluster definition files (repeatable)")
	exploreCmd.Flags().StringVarP(&exploreJobsFile, "jobs", "j", "", "Jobs file (random jobs when empty)")
	exploreCmd.Flags().StringSliceVar(&exploreStrategies, "strategies", nil, "Strategies to compare (default all)")
	exploreCmd.Flags().IntVar(&exploreGenClusters, "generate-clusters", 3, "Number of random clusters when no --cluster is given")
	exploreCmd.Flags().IntVar(&exploreGenJobs, "generate-jobs", 20, "Number of random jobs when no --jobs is given")
	exploreCmd.Flags().Int64Var(&exploreSeed, "seed", 1, "Seed for random clusters and jobs")
	exploreCmd.Flags().StringVar(&explorePostgresURL, "pg-url", "", "PostgreSQL URL to store results in")
	exploreCmd.Flags().StringVar(&estimatorName, "estimator", string(strategy.EstimatorSubmitTime), "Backfill start estimator (submit-time, reservation)")
	exploreCmd.Flags().BoolVar(&wakeOnRelease, "wake-on-release", false, "Wake waiting jobs on resource release instead of polling every time unit")
	exploreCmd.Flags().Int64Var(&horizon, "horizon", 0, "Abort a run past this virtual time (0 means no limit)")
	exploreCmd.Flags().DurationVar(&stallTimeout, "stall-timeout", simulation.DefaultStallTimeout, "Abort a run when a process runs this long without yielding")
	exploreCmd.Flags().BoolVar(&allowUnschedulable, "allow-unschedulable", false, "Run even when some jobs fit no node")
	rootCmd.AddCommand(exploreCmd)
}

func runExplore(cmd *cobra.Command, args []string) error {
	estimator, err := strategy.ParseEstimator(estimatorName)
	if err != nil {
		return fmt.Errorf("invalid --estimator: %w", err)
	}
	kinds, err := parseKinds(exploreStrategies)
	if err != nil {
		return err
	}

	gen := generator.New(exploreSeed)
	scenarios, err := loadScenarios(gen)
	if err != nil {
		return err
	}
	jobs, err := loadExploreJobs(gen, scenarios)
	if err != nil {
		return err
	}

	setOptions := []explore.SetOption{
		explore.WithKinds(kinds...),
		explore.WithLogger(logrus.StandardLogger()),
		explore.WithEngineOptions(engineOptions(estimator)...),
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	if explorePostgresURL != "" {
		store, err := explore.OpenPostgres(ctx, explorePostgresURL)
		if err != nil {
			return fmt.Errorf("failed to open result store: %w", err)
		}
		defer store.Close(ctx)
		setOptions = append(setOptions, explore.WithStore(store))
	}

	results, err := explore.New(scenarios, jobs, setOptions...).Run(ctx)
	if err != nil {
		return fmt.Errorf("exploration failed: %w", err)
	}
	return explore.WriteTable(os.Stdout, results)
}

func parseKinds(names []string) ([]strategy.Kind, error) {
	if len(names) == 0 {
		return strategy.Kinds(), nil
	}
	kinds := make([]strategy.Kind, 0, len(names))
	for _, name := range names {
		kind, err := strategy.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("invalid --strategies: %w", err)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func loadScenarios(gen *generator.Generator) ([]explore.Scenario, error) {
	var scenarios []explore.Scenario
	for _, path := range exploreClusters {
		c, err := config.LoadCluster(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load cluster %s: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		scenarios = append(scenarios, explore.Scenario{Name: name, Cluster: c})
	}
	if len(scenarios) > 0 {
		return scenarios, nil
	}

	for i := 0; i < exploreGenClusters; i++ {
		file, err := gen.Cluster(generator.DefaultClusterOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to generate cluster: %w", err)
		}
		c, err := config.BuildCluster(file)
		if err != nil {
			return nil, fmt.Errorf("failed to build generated cluster: %w", err)
		}
		scenarios = append(scenarios, explore.Scenario{Name: fmt.Sprintf("random-%d", i+1), Cluster: c})
	}
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("%w: no cluster to explore", config.ErrInvalid)
	}
	return scenarios, nil
}

func loadExploreJobs(gen *generator.Generator, scenarios []explore.Scenario) ([]*cluster.Job, error) {
	if exploreJobsFile != "" {
		jobs, err := config.LoadJobs(exploreJobsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load jobs: %w", err)
		}
		return jobs, nil
	}

	opts := generator.DefaultJobOptions()
	opts.Count = generator.Range{Min: exploreGenJobs, Max: exploreGenJobs}
	specs, err := gen.Jobs(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate jobs: %w", err)
	}
	generated, err := config.BuildJobs(specs)
	if err != nil {
		return nil, fmt.Errorf("failed to build generated jobs: %w", err)
	}

	jobs := make([]*cluster.Job, 0, len(generated))
	for _, job := range generated {
		if schedulableEverywhere(job, scenarios) {
			jobs = append(jobs, job)
		}
	}
	if dropped := len(generated) - len(jobs); dropped > 0 {
		logrus.WithField("dropped", dropped).Warn("generated jobs that fit no node of some cluster were dropped")
	}
	return jobs, nil
}

func schedulableEverywhere(job *cluster.Job, scenarios []explore.Scenario) bool {
	for _, sc := range scenarios {
		if !sc.Cluster.Schedulable(job) {
			return false
		}
	}
	return true
}
