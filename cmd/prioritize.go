package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/giantswarm/sdc-prioritizer/internal/engine"
	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
)

func newPrioritizeCmd() *cobra.Command {
	var (
		strategyName string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "prioritize <suite>",
		Short: "Rank the tests of a suite",
		Long: `Rank the tests of a suite with a prioritization strategy.

The suite is looked up among uploaded suites first, then among the bundled
suites and --suites-dir. Without --strategy the suite's configured strategy
is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			suite, err := loadSuite(cmd, store, args[0])
			if err != nil {
				return err
			}

			ranking, err := engine.Prioritize(suite, pickStrategy(strategyName, suite))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(ranking)
			}

			_, _ = fmt.Fprintf(out, "Suite: %s\nStrategy: %s\n\n", suite.ID, ranking.Strategy)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "RANK\tTEST\tSCORE")
			for i, id := range ranking.Order {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%.4f\n", i+1, id, ranking.Scores[i])
			}
			if err := w.Flush(); err != nil {
				return err
			}
			printDegradations(out, ranking.Degradations)
			return nil
		},
	}

	cmd.Flags().StringVar(&strategyName, "strategy", "", "Prioritization strategy (default: the suite's strategy)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the ranking as JSON")

	return cmd
}

// pickStrategy falls back to the suite's configured strategy.
func pickStrategy(name string, suite *testsuite.TestSuite) string {
	switch {
	case name != "":
		return name
	case suite.Strategy != "":
		return suite.Strategy
	default:
		return testsuite.DefaultStrategy
	}
}

func printDegradations(out io.Writer, degradations []testsuite.Degradation) {
	for _, d := range degradations {
		_, _ = fmt.Fprintf(out, "\nDegraded: %s", d.Code)
		if d.Detail != "" {
			_, _ = fmt.Fprintf(out, " (%s)", d.Detail)
		}
	}
	if len(degradations) > 0 {
		_, _ = fmt.Fprintln(out)
	}
}
