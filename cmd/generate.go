package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sherine-k/schedlab/pkg/config"
	"github.com/sherine-k/schedlab/pkg/generator"
)

var (
	generateOutDir string
	generateSeed   int64
	generateNodes  int
	generateJobs   int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a random cluster and job set",
	Long: `Generate a random cluster definition and a random job set and write
them as cluster.yaml and jobs.yaml. Jobs that fit no generated node are
dropped. The same seed always produces the same files.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateOutDir, "out-dir", "o", ".", "Directory to write cluster.yaml and jobs.yaml to")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 1, "Random seed")
	generateCmd.Flags().IntVar(&generateNodes, "nodes", 0, "Number of nodes (random when 0)")
	generateCmd.Flags().IntVar(&generateJobs, "jobs", 0, "Number of jobs (random when 0)")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	gen := generator.New(generateSeed)

	clusterOpts := generator.DefaultClusterOptions()
	if generateNodes > 0 {
		clusterOpts.Nodes = generator.Range{Min: generateNodes, Max: generateNodes}
	}
	file, err := gen.Cluster(clusterOpts)
	if err != nil {
		return fmt.Errorf("failed to generate cluster: %w", err)
	}

	jobOpts := generator.DefaultJobOptions()
	if generateJobs > 0 {
		jobOpts.Count = generator.Range{Min: generateJobs, Max: generateJobs}
	}
	specs, err := gen.Jobs(jobOpts)
	if err != nil {
		return fmt.Errorf("failed to generate jobs: %w", err)
	}
	specs = generator.FitJobs(specs, file)

	if err := os.MkdirAll(generateOutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	clusterPath := filepath.Join(generateOutDir, "cluster.yaml")
	jobsPath := filepath.Join(generateOutDir, "jobs.yaml")
	if err := config.WriteCluster(clusterPath, file); err != nil {
		return fmt.Errorf("failed to write cluster: %w", err)
	}
	if err := config.WriteJobs(jobsPath, specs); err != nil {
		return fmt.Errorf("failed to write jobs: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"nodes": len(file.Nodes),
		"jobs":  len(specs),
		"seed":  generateSeed,
	}).Info("generated cluster and jobs")
	fmt.Printf("Wrote %s and %s\n", clusterPath, jobsPath)
	return nil
}
