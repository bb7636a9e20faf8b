package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/sdc-prioritizer/internal/runner"
	"github.com/giantswarm/sdc-prioritizer/internal/scorer"
	"github.com/giantswarm/sdc-prioritizer/internal/strategy"
	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
)

func newExperimentCmd() *cobra.Command {
	var (
		name          string
		suiteNames    []string
		strategies    []string
		budget        int
		testsPerSuite int
		parallel      int
		outputDir     string
		timeout       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "experiment [data-dump.json]",
		Short: "Compare strategies over many test suites",
		Long: `Evaluate every strategy on every suite and compare their mean APFD.

Suites come either from a competition data dump, partitioned into suites of
--tests-per-suite roads, or from --suites naming stored, bundled or
--suites-dir suites.

Per-strategy CSV reports, summary.json and resultset.json are written to a
new directory below --output-dir. Every evaluation is appended to the history
store.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			if (len(args) == 0) == (len(suiteNames) == 0) {
				return fmt.Errorf("pass either a data dump or --suites")
			}
			if len(strategies) == 0 {
				strategies = strategy.Names()
			}
			if testsPerSuite == 0 {
				testsPerSuite = cfg.Experiment.TestsPerSuite
			}
			if parallel == 0 {
				parallel = cfg.Experiment.Parallel
			}
			if outputDir == "" {
				outputDir = cfg.Experiment.OutputDir
			}

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var suites []*testsuite.TestSuite
			if len(args) == 1 {
				suites, err = readDump(args[0], testsPerSuite)
				if err != nil {
					return err
				}
				if name == "" {
					name = "dump"
				}
			} else {
				for _, id := range suiteNames {
					suite, err := loadSuite(cmd, store, id)
					if err != nil {
						return err
					}
					suites = append(suites, suite)
				}
				if name == "" {
					name = "suites"
				}
			}

			r, err := runner.NewRunner(strategies, outputDir, parallel)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("budget") {
				if budget < 0 {
					return fmt.Errorf("--budget must not be negative, got %d", budget)
				}
				r.SetBudget(&budget)
			}
			r.SetRecorder(store)
			r.SetProgressFunc(func(suiteID, strategyName string, done, total int) {
				fmt.Printf("\r  Evaluated %d/%d (%s, %s)...", done, total, suiteID, strategyName)
			})

			fmt.Printf("Experiment: %s\n", name)
			fmt.Printf("Suites: %d\n", len(suites))
			fmt.Printf("Strategies: %d\n", len(strategies))
			for i, s := range strategies {
				fmt.Printf("  %d. %s\n", i+1, s)
			}
			fmt.Println()

			run, err := r.Run(ctx, name, suites)
			if err != nil {
				return err
			}

			fmt.Printf("\n\nExperiment completed.\n")
			fmt.Printf("Run ID: %s\n", run.ID)
			fmt.Printf("Duration: %s\n", run.Duration)
			fmt.Printf("Mean APFD:\n")
			summaries := run.Summaries()
			for _, s := range scorer.Ranked(summaries) {
				sum := summaries[s]
				fmt.Printf("  - %-28s %.4f (min %.4f, max %.4f, n=%d)\n", s, sum.Mean, sum.Min, sum.Max, sum.Count)
			}
			fmt.Printf("Results: %s\n", run.OutputDir)

			slog.Info("experiment complete", "run_id", run.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Experiment name (default: dump or suites)")
	cmd.Flags().StringSliceVar(&suiteNames, "suites", nil, "Suites to evaluate instead of a data dump")
	cmd.Flags().StringSliceVar(&strategies, "strategies", nil, "Strategies to compare (default: all)")
	cmd.Flags().IntVar(&budget, "budget", 0, "Road point budget per evaluation (default: unlimited)")
	cmd.Flags().IntVar(&testsPerSuite, "tests-per-suite", 0, "Roads per suite when partitioning a dump (default: experiment.tests_per_suite)")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "Concurrent evaluations (default: experiment.parallel)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for results (default: experiment.output_dir)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall timeout for the experiment (e.g. 10m). 0 means no timeout")

	return cmd
}

func readDump(path string, testsPerSuite int) ([]*testsuite.TestSuite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data dump: %w", err)
	}
	defer func() { _ = f.Close() }()

	return testsuite.DecodeDump(f, testsPerSuite)
}
