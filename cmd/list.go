package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/sdc-prioritizer/internal/testsuite"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available test suites",
		RunE: func(cmd *cobra.Command, args []string) error {
			suitesDir, _ := cmd.Flags().GetString("suites-dir")
			out := cmd.OutOrStdout()

			names, err := testsuite.List(suitesDir)
			if err != nil {
				return fmt.Errorf("failed to list test suites: %w", err)
			}

			var uploaded []testsuite.Upload
			if store, err := openStore(cmd); err != nil {
				slog.Debug("history store not available", "error", err)
			} else {
				uploaded, err = store.Uploads()
				_ = store.Close()
				if err != nil {
					return err
				}
			}

			if len(names) == 0 && len(uploaded) == 0 {
				_, _ = fmt.Fprintln(out, "No test suites found.")
				return nil
			}

			if len(names) > 0 {
				_, _ = fmt.Fprintf(out, "Available test suites:\n\n")
			}
			for _, name := range names {
				suite, err := testsuite.Load(name, suitesDir)
				if err != nil {
					_, _ = fmt.Fprintf(out, "  - %s (error loading: %v)\n", name, err)
					continue
				}
				_, _ = fmt.Fprintf(out, "  - %s\n", suite.Name)
				_, _ = fmt.Fprintf(out, "    Description: %s\n", suite.Description)
				_, _ = fmt.Fprintf(out, "    Version: %s\n", suite.Version)
				_, _ = fmt.Fprintf(out, "    Strategy: %s\n", suite.Strategy)
				_, _ = fmt.Fprintf(out, "    Tests: %d\n", len(suite.Tests))
				_, _ = fmt.Fprintf(out, "    Road points: %d\n\n", suite.TotalCost())
			}

			if len(uploaded) > 0 {
				_, _ = fmt.Fprintf(out, "Uploaded test suites:\n\n")
				for _, u := range uploaded {
					_, _ = fmt.Fprintf(out, "  - %s (%d tests, uploaded %s)\n", u.SuiteID, u.TestCount, u.CreatedAt.Format(time.RFC3339))
				}
			}

			return nil
		},
	}

	return cmd
}
