package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/sdc-prioritizer/internal/engine"
	"github.com/giantswarm/sdc-prioritizer/internal/history"
)

func newEvaluateCmd() *cobra.Command {
	var (
		strategyName string
		budget       int
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate <suite>",
		Short: "Rank a suite and score the ranking with APFD",
		Long: `Rank a suite, replay the ranking against the fault simulator and report its
APFD score. With --budget the replay stops before the first test whose road
points would exceed the budget.

The evaluation is appended to the history store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var b *int
			if cmd.Flags().Changed("budget") {
				if budget < 0 {
					return fmt.Errorf("--budget must not be negative, got %d", budget)
				}
				b = &budget
			}

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			suite, err := loadSuite(cmd, store, args[0])
			if err != nil {
				return err
			}

			start := time.Now()
			report, err := engine.Evaluate(suite, pickStrategy(strategyName, suite), b)
			if err != nil {
				return err
			}
			if _, err := store.SaveEvaluation(history.NewRecord(report, time.Since(start))); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			_, _ = fmt.Fprintf(out, "Suite:     %s\n", report.SuiteID)
			_, _ = fmt.Fprintf(out, "Strategy:  %s\n", report.Strategy)
			_, _ = fmt.Fprintf(out, "Executed:  %d/%d\n", report.Executed, report.TestCount)
			_, _ = fmt.Fprintf(out, "Failures:  %d %v\n", report.FailuresDetected, report.FailurePositions)
			_, _ = fmt.Fprintf(out, "Cost:      %d\n", report.ExecutionCost)
			if report.Budget != nil {
				_, _ = fmt.Fprintf(out, "Budget:    %d\n", *report.Budget)
			}
			_, _ = fmt.Fprintf(out, "APFD:      %.4f\n", report.Score)
			printDegradations(out, report.Degradations)
			return nil
		},
	}

	cmd.Flags().StringVar(&strategyName, "strategy", "", "Prioritization strategy (default: the suite's strategy)")
	cmd.Flags().IntVar(&budget, "budget", 0, "Road point budget (default: unlimited)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")

	return cmd
}
